package models

import "slices"

// Player is one seat in a game. Money never goes negative outside of an in-flight bet.
type Player struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Money           int64  `json:"money"`
	IsFolded        bool   `json:"isFolded"`
	CurrentBet      int64  `json:"currentBet"`
	Loans           []Loan `json:"loans"`
	IsActive        bool   `json:"isActive"`
	LastActive      int64  `json:"lastActive"`
	IsAllIn         bool   `json:"isAllIn"`
	LastBetAmount   int64  `json:"lastBetAmount"`
	NeedsAction     bool   `json:"needsAction"`
	HasEndedBetting bool   `json:"hasEndedBetting"`
}

// Clone returns a copy of p with its own loan slice.
func (p Player) Clone() Player {
	c := p
	c.Loans = slices.Clone(p.Loans)
	return c
}

// FindLoan returns the index of the loan with the given id, or -1.
func (p *Player) FindLoan(id string) int {
	for i := range p.Loans {
		if p.Loans[i].ID == id {
			return i
		}
	}
	return -1
}

// OutstandingDebt sums totalOwed over unpaid loans.
func (p *Player) OutstandingDebt() int64 {
	var total int64
	for _, l := range p.Loans {
		if !l.IsPaid {
			total += l.TotalOwed
		}
	}
	return total
}
