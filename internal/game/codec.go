// internal/game/codec.go
package game

import (
	"encoding/json"
	"fmt"
)

// Envelope is the tagged wire form of an action: {"type": "PLACE_BET", "payload": {...}}.
type Envelope struct {
	Type    ActionType      `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type decodeFunc func(json.RawMessage) (Action, error)

func decodeAs[T Action](raw json.RawMessage) (Action, error) {
	var a T
	if len(raw) == 0 {
		return a, nil
	}
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, err
	}
	return a, nil
}

var decoders = map[ActionType]decodeFunc{
	ActionJoinGame:             decodeAs[JoinGame],
	ActionPlaceBet:             decodeAs[PlaceBet],
	ActionFold:                 decodeAs[Fold],
	ActionStartNewRound:        decodeAs[StartNewRound],
	ActionStartNewEpoch:        decodeAs[StartNewEpoch],
	ActionEndBetting:           decodeAs[EndBetting],
	ActionCancelEndBetting:     decodeAs[CancelEndBetting],
	ActionSelectWinner:         decodeAs[SelectWinner],
	ActionTakeLoan:             decodeAs[TakeLoan],
	ActionApproveLoan:          decodeAs[ApproveLoan],
	ActionRejectLoan:           decodeAs[RejectLoan],
	ActionPayLoan:              decodeAs[PayLoan],
	ActionKickPlayer:           decodeAs[KickPlayer],
	ActionRecoverAccount:       decodeAs[RecoverAccount],
	ActionSetInitialMoney:      decodeAs[SetInitialMoney],
	ActionSetInitialState:      decodeAs[SetInitialState],
	ActionSetPlayerActive:      decodeAs[SetPlayerActive],
	ActionSetPlayerInactive:    decodeAs[SetPlayerInactive],
	ActionAddSpectator:         decodeAs[AddSpectator],
	ActionRemoveSpectator:      decodeAs[RemoveSpectator],
	ActionCancelGame:           decodeAs[CancelGame],
	ActionToggleBankLoans:      decodeAs[ToggleBankLoans],
	ActionLogAction:            decodeAs[LogAction],
	ActionSetNeedsAction:       decodeAs[SetNeedsAction],
	ActionHostHeartbeat:        decodeAs[HostHeartbeat],
	ActionMarkHostReconnecting: decodeAs[MarkHostReconnecting],
}

// EncodeAction wraps an action in its envelope.
func EncodeAction(a Action) (Envelope, error) {
	if u, ok := a.(Unknown); ok {
		return Envelope{Type: u.Name, Payload: u.Payload}, nil
	}
	payload, err := json.Marshal(a)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", a.Type(), err)
	}
	return Envelope{Type: a.Type(), Payload: payload}, nil
}

// DecodeAction resolves an envelope into its concrete action. Unrecognised types decode to Unknown.
func DecodeAction(env Envelope) (Action, error) {
	dec, ok := decoders[env.Type]
	if !ok {
		return Unknown{Name: env.Type, Payload: env.Payload}, nil
	}
	a, err := dec(env.Payload)
	if err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", env.Type, err)
	}
	return a, nil
}

// MarshalAction is EncodeAction followed by json.Marshal of the envelope.
func MarshalAction(a Action) ([]byte, error) {
	env, err := EncodeAction(a)
	if err != nil {
		return nil, err
	}
	return json.Marshal(env)
}

// UnmarshalAction parses a JSON envelope into its concrete action.
func UnmarshalAction(data []byte) (Action, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("invalid action envelope: %w", err)
	}
	return DecodeAction(env)
}
