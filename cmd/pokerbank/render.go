package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/pterm/pterm"

	"github.com/jason-s-yu/pokerbank/internal/game"
	"github.com/jason-s-yu/pokerbank/internal/models"
	"github.com/jason-s-yu/pokerbank/internal/presence"
)

// tracker decides which players are shown as away. main replaces it with the configured timeouts.
var tracker = presence.NewTracker()

// render prints the table, the pot, open loan requests, and the latest log entries.
func render(s models.GameState, self models.Identity) {
	pterm.Print(sprintState(s, self, models.Millis(time.Now())))
}

func sprintState(s models.GameState, self models.Identity, now int64) string {
	pbox := pterm.DefaultBox.WithHorizontalPadding(2)
	round := fmt.Sprintf("Round %d/%d", s.CurrentRound, game.RoundsPerEpoch)
	if game.IsFinalRound(s) {
		round = pterm.LightYellow(round + " (final)")
	}
	header := fmt.Sprintf("Game %s  |  Host %s  |  %s  |  Epoch %d\nPot %d  |  Highest bet %d  |  Bank loans %s",
		s.GameCode, s.Host, statusText(s.GameStatus), s.CurrentEpoch, s.MoneyPool, s.HighestBet, onOff(s.BankLoans))
	round += fmt.Sprintf("  |  In hand %d/%d", len(s.ActivePlayers()), len(s.Players))
	if game.CanBet(s, self.ID) {
		round += pterm.LightCyan("  |  your bet")
	}
	out := pbox.WithTitle(pterm.LightGreen("|POKERBANK|")).WithTitleTopCenter().Sprint(header + "\n" + round)
	out += "\n"

	data := pterm.TableData{{"Player", "Money", "Bet", "Status", "Debt"}}
	for _, p := range s.Players {
		name := p.Name
		if p.ID == self.ID {
			name = pterm.LightCyan(name + " (you)")
		}
		data = append(data, []string{
			name,
			strconv.FormatInt(p.Money, 10),
			strconv.FormatInt(p.CurrentBet, 10),
			playerStatus(p, now),
			strconv.FormatInt(p.OutstandingDebt(), 10),
		})
	}
	if table, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender(); err == nil {
		out += table + "\n"
	}

	for _, r := range s.LoanRequests {
		if r.Status != models.LoanPending {
			continue
		}
		out += pterm.Sprintfln("loan request %s: %s asks %s for %d (%s, owes %d)",
			r.ID, playerName(s, r.ToPlayerID), playerName(s, r.FromPlayerID), r.Amount, r.InterestType, r.TotalOwed)
	}
	if p := s.Player(self.ID); p != nil {
		for _, l := range p.Loans {
			if !l.IsPaid {
				out += pterm.Sprintfln("your loan %s from %s: owe %d", l.ID, l.From, l.TotalOwed)
			}
		}
	}

	start := max(0, len(s.ActionLog)-5)
	for _, e := range s.ActionLog[start:] {
		out += pterm.Gray(e.Description) + "\n"
	}
	return out
}

func statusText(st models.GameStatus) string {
	switch st {
	case models.StatusActive:
		return pterm.LightGreen(string(st))
	case models.StatusCancelled:
		return pterm.LightRed(string(st))
	case models.StatusHostReconnecting:
		return pterm.LightYellow(string(st))
	default:
		return string(st)
	}
}

func playerStatus(p models.Player, now int64) string {
	switch {
	case p.IsFolded:
		return pterm.LightRed("folded")
	case p.HasEndedBetting:
		return "ended"
	case p.IsAllIn:
		return pterm.LightMagenta("all-in")
	case !tracker.PlayerLive(p, now):
		return pterm.Gray("away")
	default:
		return pterm.LightGreen("active")
	}
}

func playerName(s models.GameState, id string) string {
	if p := s.Player(id); p != nil {
		return p.Name
	}
	return id
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
