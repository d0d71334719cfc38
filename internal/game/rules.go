// internal/game/rules.go
package game

import (
	"math/rand/v2"
	"strings"

	"github.com/jason-s-yu/pokerbank/internal/models"
)

// RoundsPerEpoch is the number of betting rounds in one epoch.
const RoundsPerEpoch = 5

const (
	gameCodeLength   = 6
	gameCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// NewGame builds the initial snapshot for a freshly hosted game. The host seats itself with JoinGame.
func NewGame(code, host string, initialMoney, now int64) models.GameState {
	return models.GameState{
		GameCode:        code,
		Host:            host,
		HostLastActive:  now,
		Players:         []models.Player{},
		InitialMoney:    initialMoney,
		GameStatus:      models.StatusWaiting,
		LastStateUpdate: now,
		LoanRequests:    []models.LoanRequest{},
		Spectators:      []string{},
		ActionLog:       []models.GameAction{},
	}
}

// NewPlayer seats a player with the game's starting balance.
func NewPlayer(s models.GameState, id, name string, now int64) models.Player {
	return models.Player{
		ID:          id,
		Name:        strings.TrimSpace(name),
		Money:       s.InitialMoney,
		Loans:       []models.Loan{},
		IsActive:    true,
		LastActive:  now,
		NeedsAction: true,
	}
}

// NewGameCode returns a random six character join code.
func NewGameCode() string {
	var b strings.Builder
	b.Grow(gameCodeLength)
	for range gameCodeLength {
		b.WriteByte(gameCodeAlphabet[rand.IntN(len(gameCodeAlphabet))])
	}
	return b.String()
}

// ValidGameCode reports whether code has the shape produced by NewGameCode.
func ValidGameCode(code string) bool {
	if len(code) != gameCodeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		if strings.IndexByte(gameCodeAlphabet, code[i]) < 0 {
			return false
		}
	}
	return true
}

// NormalizeGameCode upper-cases and trims user input before lookup.
func NormalizeGameCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// IsFinalRound reports whether the epoch is on its last betting round.
func IsFinalRound(s models.GameState) bool {
	return s.CurrentRound == RoundsPerEpoch
}

// CanStartNewRound reports whether the host may advance play. At least one player must still be in.
// On the final round every remaining player must have ended betting; before that, every remaining
// player must have matched the highest bet or gone all in.
func CanStartNewRound(s models.GameState) bool {
	inPlay := 0
	final := IsFinalRound(s)
	for _, p := range s.Players {
		if p.IsFolded {
			continue
		}
		inPlay++
		if final {
			if !p.HasEndedBetting {
				return false
			}
			continue
		}
		if !p.IsAllIn && p.CurrentBet < s.HighestBet {
			return false
		}
	}
	return inPlay > 0
}

// NextRoundAction is what the host's "next" control submits: a new round while the epoch has rounds
// left, otherwise a new epoch.
func NextRoundAction(s models.GameState) Action {
	if s.CurrentRound >= RoundsPerEpoch {
		return StartNewEpoch{}
	}
	return StartNewRound{}
}

// MinCall is the amount playerID must add to match the highest bet, capped at the player's money.
func MinCall(s models.GameState, playerID string) int64 {
	p := s.Player(playerID)
	if p == nil {
		return 0
	}
	owed := s.HighestBet - p.CurrentBet
	if owed < 0 {
		return 0
	}
	return min(owed, p.Money)
}

// BettingOpen reports whether the table takes bets. Round 0 is the lobby before the host opens the
// first round of an epoch.
func BettingOpen(s models.GameState) bool {
	return s.GameStatus != models.StatusCancelled && s.CurrentRound > 0
}

// CanBet reports whether playerID may place a bet right now.
func CanBet(s models.GameState, playerID string) bool {
	if !BettingOpen(s) {
		return false
	}
	p := s.Player(playerID)
	return p != nil && !p.IsFolded && !p.HasEndedBetting && p.Money > 0
}

// CanTakeBankLoan reports whether playerID may borrow from the house. Bank loans are only offered to
// players who are out of money.
func CanTakeBankLoan(s models.GameState, playerID string) bool {
	if !s.BankLoans {
		return false
	}
	p := s.Player(playerID)
	return p != nil && p.Money == 0
}
