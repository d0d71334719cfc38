package dispatch

import (
	"fmt"

	"github.com/jason-s-yu/pokerbank/internal/game"
	"github.com/jason-s-yu/pokerbank/internal/models"
)

var (
	// ErrForbidden is returned when the submitting identity may not perform an action.
	ErrForbidden = fmt.Errorf("%w: not permitted", game.ErrInvalidAction)
	// ErrRoundIncomplete is returned when the host advances before every player has acted.
	ErrRoundIncomplete = fmt.Errorf("%w: not every player has acted", game.ErrInvalidAction)
	// ErrBankLoanRefused is returned when a player with money left asks the house for a loan.
	ErrBankLoanRefused = fmt.Errorf("%w: bank loans are only for players with no money left", game.ErrInvalidAction)
	// ErrBettingClosed is returned for a bet before the host has started a round.
	ErrBettingClosed = fmt.Errorf("%w: betting opens when the host starts the round", game.ErrInvalidAction)
)

func forbidden(self models.Identity, act game.Action) error {
	return fmt.Errorf("%w: %s %q cannot submit %s", ErrForbidden, self.Role, self.ID, act.Type())
}

// Authorize checks that self may submit act against s. It does not check game rules; those belong
// to the transition engine.
func Authorize(self models.Identity, s models.GameState, act game.Action) error {
	ownSeat := func(playerID string) error {
		if !self.Seated() || playerID != self.ID {
			return forbidden(self, act)
		}
		return nil
	}
	hostOnly := func() error {
		if !self.IsHost() {
			return forbidden(self, act)
		}
		return nil
	}

	switch a := act.(type) {
	case game.JoinGame:
		return ownSeat(a.Player.ID)
	case game.PlaceBet:
		return ownSeat(a.PlayerID)
	case game.Fold:
		return ownSeat(a.PlayerID)
	case game.EndBetting:
		return ownSeat(a.PlayerID)
	case game.CancelEndBetting:
		return ownSeat(a.PlayerID)
	case game.TakeLoan:
		return ownSeat(a.PlayerID)
	case game.PayLoan:
		return ownSeat(a.PlayerID)
	case game.SetPlayerActive:
		return ownSeat(a.PlayerID)
	case game.SetPlayerInactive:
		return ownSeat(a.PlayerID)
	case game.ApproveLoan:
		return lenderOnly(self, s, a.LoanRequestID, act)
	case game.RejectLoan:
		return lenderOnly(self, s, a.LoanRequestID, act)
	case game.AddSpectator:
		if !self.IsSpectator() || a.SpectatorID != self.ID {
			return forbidden(self, act)
		}
		return nil
	case game.RemoveSpectator:
		if self.IsHost() || (self.IsSpectator() && a.SpectatorID == self.ID) {
			return nil
		}
		return forbidden(self, act)
	case game.StartNewRound, game.StartNewEpoch, game.SelectWinner, game.KickPlayer,
		game.RecoverAccount, game.SetInitialMoney, game.ToggleBankLoans, game.CancelGame,
		game.SetNeedsAction, game.HostHeartbeat:
		return hostOnly()
	case game.MarkHostReconnecting:
		if self.IsHost() {
			return forbidden(self, act)
		}
		return nil
	case game.LogAction:
		if self.IsSpectator() {
			return forbidden(self, act)
		}
		return nil
	case game.SetInitialState:
		// snapshots only arrive through the sync agent
		return forbidden(self, act)
	}
	return nil
}

func lenderOnly(self models.Identity, s models.GameState, requestID string, act game.Action) error {
	i := s.FindLoanRequest(requestID)
	if i < 0 {
		return nil
	}
	if !self.Seated() || s.LoanRequests[i].FromPlayerID != self.ID {
		return forbidden(self, act)
	}
	return nil
}

// CheckPolicy applies the table rules enforced before an action reaches the engine.
func CheckPolicy(s models.GameState, act game.Action) error {
	switch a := act.(type) {
	case game.PlaceBet:
		if !game.BettingOpen(s) {
			return ErrBettingClosed
		}
	case game.StartNewRound:
		if !game.CanStartNewRound(s) {
			return ErrRoundIncomplete
		}
	case game.StartNewEpoch:
		if game.IsFinalRound(s) && !game.CanStartNewRound(s) {
			return ErrRoundIncomplete
		}
	case game.TakeLoan:
		if a.Loan.IsBank() && s.BankLoans && !game.CanTakeBankLoan(s, a.PlayerID) {
			return ErrBankLoanRefused
		}
	case game.JoinGame:
		if game.NameTaken(s, a.Player.Name) {
			return fmt.Errorf("%w: %q", game.ErrNameTaken, a.Player.Name)
		}
	}
	return nil
}
