// internal/game/actions.go
package game

import (
	"encoding/json"

	"github.com/jason-s-yu/pokerbank/internal/models"
)

// ActionType is the wire tag of an action.
type ActionType string

const (
	ActionJoinGame             ActionType = "JOIN_GAME"
	ActionPlaceBet             ActionType = "PLACE_BET"
	ActionFold                 ActionType = "FOLD"
	ActionStartNewRound        ActionType = "START_NEW_ROUND"
	ActionStartNewEpoch        ActionType = "START_NEW_EPOCH"
	ActionEndBetting           ActionType = "END_BETTING"
	ActionCancelEndBetting     ActionType = "CANCEL_END_BETTING"
	ActionSelectWinner         ActionType = "SELECT_WINNER"
	ActionTakeLoan             ActionType = "TAKE_LOAN"
	ActionApproveLoan          ActionType = "APPROVE_LOAN"
	ActionRejectLoan           ActionType = "REJECT_LOAN"
	ActionPayLoan              ActionType = "PAY_LOAN"
	ActionKickPlayer           ActionType = "KICK_PLAYER"
	ActionRecoverAccount       ActionType = "RECOVER_ACCOUNT"
	ActionSetInitialMoney      ActionType = "SET_INITIAL_MONEY"
	ActionSetInitialState      ActionType = "SET_INITIAL_STATE"
	ActionSetPlayerActive      ActionType = "SET_PLAYER_ACTIVE"
	ActionSetPlayerInactive    ActionType = "SET_PLAYER_INACTIVE"
	ActionAddSpectator         ActionType = "ADD_SPECTATOR"
	ActionRemoveSpectator      ActionType = "REMOVE_SPECTATOR"
	ActionCancelGame           ActionType = "CANCEL_GAME"
	ActionToggleBankLoans      ActionType = "TOGGLE_BANK_LOANS"
	ActionLogAction            ActionType = "LOG_ACTION"
	ActionSetNeedsAction       ActionType = "SET_NEEDS_ACTION"
	ActionHostHeartbeat        ActionType = "HOST_HEARTBEAT"
	ActionMarkHostReconnecting ActionType = "MARK_HOST_RECONNECTING"
)

// Log-only entry types that do not correspond to a submitted action.
const (
	LogFoldWin         = "FOLD_WIN"
	LogLoanRequest     = "LOAN_REQUEST"
	LogHostReconnected = "HOST_RECONNECTED"
)

// Action is one variant of the action catalogue accepted by Apply.
type Action interface {
	Type() ActionType
}

type JoinGame struct {
	Player models.Player `json:"player"`
}

type PlaceBet struct {
	PlayerID string `json:"playerId"`
	Amount   int64  `json:"amount"`
}

type Fold struct {
	PlayerID string `json:"playerId"`
}

type StartNewRound struct{}

type StartNewEpoch struct{}

type EndBetting struct {
	PlayerID string `json:"playerId"`
}

type CancelEndBetting struct {
	PlayerID string `json:"playerId"`
}

type SelectWinner struct {
	PlayerID string `json:"playerId"`
}

// TakeLoan issues a bank loan immediately, or files a pending LoanRequest when Loan.From names a player.
// Loan.ID doubles as the request id.
type TakeLoan struct {
	PlayerID string      `json:"playerId"`
	Loan     models.Loan `json:"loan"`
}

type ApproveLoan struct {
	LoanRequestID string `json:"loanRequestId"`
}

type RejectLoan struct {
	LoanRequestID string `json:"loanRequestId"`
}

// PayLoan settles a loan in full. Amount is informational; the payback is derived from the loan.
type PayLoan struct {
	PlayerID string `json:"playerId"`
	LoanID   string `json:"loanId"`
	Amount   int64  `json:"amount"`
}

type KickPlayer struct {
	PlayerID string `json:"playerId"`
}

type RecoverAccount struct {
	SourcePlayerID string `json:"sourcePlayerId"`
	TargetPlayerID string `json:"targetPlayerId"`
}

type SetInitialMoney struct {
	Amount         int64 `json:"amount"`
	UpdateExisting bool  `json:"updateExisting"`
}

// SetInitialState replaces the local state with a fetched snapshot. Its wire payload is the snapshot itself.
type SetInitialState struct {
	State models.GameState
}

type SetPlayerActive struct {
	PlayerID string `json:"playerId"`
}

type SetPlayerInactive struct {
	PlayerID string `json:"playerId"`
}

type AddSpectator struct {
	SpectatorID string `json:"spectatorId"`
}

type RemoveSpectator struct {
	SpectatorID string `json:"spectatorId"`
}

type CancelGame struct {
	Reason string `json:"reason,omitempty"`
}

type ToggleBankLoans struct{}

// LogAction appends a free-form entry to the action log. Its wire payload is the entry itself.
type LogAction struct {
	Entry models.GameAction
}

type SetNeedsAction struct {
	PlayerID    string `json:"playerId"`
	NeedsAction bool   `json:"needsAction"`
}

type HostHeartbeat struct{}

type MarkHostReconnecting struct{}

// Unknown carries an action type this build does not recognise. Apply leaves state untouched.
type Unknown struct {
	Name    ActionType
	Payload json.RawMessage
}

func (JoinGame) Type() ActionType             { return ActionJoinGame }
func (PlaceBet) Type() ActionType             { return ActionPlaceBet }
func (Fold) Type() ActionType                 { return ActionFold }
func (StartNewRound) Type() ActionType        { return ActionStartNewRound }
func (StartNewEpoch) Type() ActionType        { return ActionStartNewEpoch }
func (EndBetting) Type() ActionType           { return ActionEndBetting }
func (CancelEndBetting) Type() ActionType     { return ActionCancelEndBetting }
func (SelectWinner) Type() ActionType         { return ActionSelectWinner }
func (TakeLoan) Type() ActionType             { return ActionTakeLoan }
func (ApproveLoan) Type() ActionType          { return ActionApproveLoan }
func (RejectLoan) Type() ActionType           { return ActionRejectLoan }
func (PayLoan) Type() ActionType              { return ActionPayLoan }
func (KickPlayer) Type() ActionType           { return ActionKickPlayer }
func (RecoverAccount) Type() ActionType       { return ActionRecoverAccount }
func (SetInitialMoney) Type() ActionType      { return ActionSetInitialMoney }
func (SetInitialState) Type() ActionType      { return ActionSetInitialState }
func (SetPlayerActive) Type() ActionType      { return ActionSetPlayerActive }
func (SetPlayerInactive) Type() ActionType    { return ActionSetPlayerInactive }
func (AddSpectator) Type() ActionType         { return ActionAddSpectator }
func (RemoveSpectator) Type() ActionType      { return ActionRemoveSpectator }
func (CancelGame) Type() ActionType           { return ActionCancelGame }
func (ToggleBankLoans) Type() ActionType      { return ActionToggleBankLoans }
func (LogAction) Type() ActionType            { return ActionLogAction }
func (SetNeedsAction) Type() ActionType       { return ActionSetNeedsAction }
func (HostHeartbeat) Type() ActionType        { return ActionHostHeartbeat }
func (MarkHostReconnecting) Type() ActionType { return ActionMarkHostReconnecting }
func (u Unknown) Type() ActionType            { return u.Name }

func (a SetInitialState) MarshalJSON() ([]byte, error) { return json.Marshal(a.State) }

func (a *SetInitialState) UnmarshalJSON(data []byte) error { return json.Unmarshal(data, &a.State) }

func (a LogAction) MarshalJSON() ([]byte, error) { return json.Marshal(a.Entry) }

func (a *LogAction) UnmarshalJSON(data []byte) error { return json.Unmarshal(data, &a.Entry) }
