// internal/game/errors.go
package game

import (
	"errors"
	"fmt"
)

// ErrInvalidAction is wrapped by every precondition failure. A rejected action never changes state,
// and the rejection is reported only to the caller that submitted it.
var ErrInvalidAction = errors.New("invalid action")

var (
	ErrGameCancelled         = fmt.Errorf("%w: game is cancelled", ErrInvalidAction)
	ErrStaleSnapshot         = fmt.Errorf("%w: snapshot is not newer than local state", ErrInvalidAction)
	ErrGameCodeMismatch      = fmt.Errorf("%w: snapshot belongs to another game", ErrInvalidAction)
	ErrInvalidPlayer         = fmt.Errorf("%w: player must have an id and a name", ErrInvalidAction)
	ErrDuplicatePlayer       = fmt.Errorf("%w: player already joined", ErrInvalidAction)
	ErrNameTaken             = fmt.Errorf("%w: name is already taken", ErrInvalidAction)
	ErrUnknownPlayer         = fmt.Errorf("%w: unknown player", ErrInvalidAction)
	ErrPlayerFolded          = fmt.Errorf("%w: player has folded", ErrInvalidAction)
	ErrInvalidAmount         = fmt.Errorf("%w: invalid amount", ErrInvalidAction)
	ErrInsufficientFunds     = fmt.Errorf("%w: insufficient funds", ErrInvalidAction)
	ErrRoundLimit            = fmt.Errorf("%w: epoch has no rounds left", ErrInvalidAction)
	ErrNotFinalRound         = fmt.Errorf("%w: betting can only be ended on the final round", ErrInvalidAction)
	ErrAlreadyEndedBetting   = fmt.Errorf("%w: player already ended betting", ErrInvalidAction)
	ErrNotEndedBetting       = fmt.Errorf("%w: player has not ended betting", ErrInvalidAction)
	ErrWinnerSelectionOpen   = fmt.Errorf("%w: winner selection already open", ErrInvalidAction)
	ErrInvalidLoan           = fmt.Errorf("%w: invalid loan", ErrInvalidAction)
	ErrDuplicateLoan         = fmt.Errorf("%w: loan id already used", ErrInvalidAction)
	ErrBankLoansDisabled     = fmt.Errorf("%w: bank loans are disabled", ErrInvalidAction)
	ErrUnknownLender         = fmt.Errorf("%w: unknown lender", ErrInvalidAction)
	ErrSelfLoan              = fmt.Errorf("%w: cannot borrow from yourself", ErrInvalidAction)
	ErrUnknownLoanRequest    = fmt.Errorf("%w: unknown loan request", ErrInvalidAction)
	ErrLoanRequestNotPending = fmt.Errorf("%w: loan request is not pending", ErrInvalidAction)
	ErrUnknownLoan           = fmt.Errorf("%w: unknown loan", ErrInvalidAction)
	ErrLoanPaid              = fmt.Errorf("%w: loan already paid", ErrInvalidAction)
	ErrSelfRecovery          = fmt.Errorf("%w: source and target are the same player", ErrInvalidAction)
	ErrInvalidSpectator      = fmt.Errorf("%w: spectator id is required", ErrInvalidAction)
	ErrDuplicateSpectator    = fmt.Errorf("%w: spectator already registered", ErrInvalidAction)
	ErrUnknownSpectator      = fmt.Errorf("%w: unknown spectator", ErrInvalidAction)
	ErrInvalidStatus         = fmt.Errorf("%w: action not valid in current game status", ErrInvalidAction)
)
