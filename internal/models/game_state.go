// internal/models/game_state.go
package models

import (
	"slices"
	"time"
)

// GameStatus is the lifecycle phase of a game.
type GameStatus string

const (
	StatusWaiting          GameStatus = "waiting"
	StatusActive           GameStatus = "active"
	StatusFinished         GameStatus = "finished"
	StatusCancelled        GameStatus = "cancelled"
	StatusHostReconnecting GameStatus = "host_reconnecting"
)

// GameState is the root aggregate replicated between clients. One exists per game code,
// and the JSON encoding of this struct is the snapshot exchanged with the state store.
type GameState struct {
	GameCode       string     `json:"gameCode"`
	Host           string     `json:"host"`
	HostLastActive int64      `json:"hostLastActive"`
	Players        []Player   `json:"players"`
	CurrentRound   int        `json:"currentRound"`
	CurrentEpoch   int        `json:"currentEpoch"`
	HighestBet     int64      `json:"highestBet"`
	MoneyPool      int64      `json:"moneyPool"`
	BankLoans      bool       `json:"bankLoansEnabled"`
	InitialMoney   int64      `json:"initialMoney"`
	GameStatus     GameStatus `json:"gameStatus"`

	// LastStateUpdate is the snapshot version. It is the only conflict-resolution signal across replicas.
	LastStateUpdate int64 `json:"lastStateUpdate"`

	LoanRequests        []LoanRequest `json:"loanRequests"`
	Spectators          []string      `json:"spectators"`
	ActionLog           []GameAction  `json:"actionLog"`
	ShowWinnerSelection bool          `json:"showWinnerSelection"`
}

// FindPlayer returns the index of the player with the given id, or -1.
func (s *GameState) FindPlayer(id string) int {
	for i := range s.Players {
		if s.Players[i].ID == id {
			return i
		}
	}
	return -1
}

// Player returns a pointer into Players for the given id, or nil.
func (s *GameState) Player(id string) *Player {
	if i := s.FindPlayer(id); i >= 0 {
		return &s.Players[i]
	}
	return nil
}

// FindLoanRequest returns the index of the loan request with the given id, or -1.
func (s *GameState) FindLoanRequest(id string) int {
	for i := range s.LoanRequests {
		if s.LoanRequests[i].ID == id {
			return i
		}
	}
	return -1
}

// HasSpectator reports whether id is registered as a spectator.
func (s *GameState) HasSpectator(id string) bool {
	for _, sp := range s.Spectators {
		if sp == id {
			return true
		}
	}
	return false
}

// ActivePlayers returns the players that have not folded in the current epoch.
func (s *GameState) ActivePlayers() []Player {
	var out []Player
	for _, p := range s.Players {
		if !p.IsFolded {
			out = append(out, p)
		}
	}
	return out
}

// TotalMoney is the sum of every player's money plus the pot.
func (s *GameState) TotalMoney() int64 {
	total := s.MoneyPool
	for _, p := range s.Players {
		total += p.Money
	}
	return total
}

// Clone returns a deep copy that shares no slices with s. Nil and empty slices are preserved as such.
func (s GameState) Clone() GameState {
	c := s
	if s.Players != nil {
		c.Players = make([]Player, len(s.Players))
		for i, p := range s.Players {
			c.Players[i] = p.Clone()
		}
	}
	c.LoanRequests = slices.Clone(s.LoanRequests)
	c.Spectators = slices.Clone(s.Spectators)
	c.ActionLog = slices.Clone(s.ActionLog)
	return c
}

// Millis converts a wall-clock time into the millisecond timestamps stored in snapshots.
func Millis(t time.Time) int64 {
	return t.UnixMilli()
}
