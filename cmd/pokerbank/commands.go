package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/pterm/pterm"

	"github.com/jason-s-yu/pokerbank/internal/dispatch"
	"github.com/jason-s-yu/pokerbank/internal/game"
	"github.com/jason-s-yu/pokerbank/internal/models"
)

var errQuit = errors.New("quit")

const helpText = `commands:
  bet N | call | fold | end | unend
  loan bank N [overall|per_round|gift I] | loan NAME N [overall|per_round|gift I]
  approve [REQUEST] | reject [REQUEST] | pay LOAN
  round | winner NAME | kick NAME | recover FROM TO | money N [reset] | bankloans | cancel [REASON]
  away | back | show | help | quit`

// execute runs one input line against the dispatcher. It returns errQuit when the user asks to leave.
func execute(ctx context.Context, d *dispatch.Dispatcher, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	var err error
	switch cmd {
	case "bet":
		var n int64
		if n, err = amountArg(args, 0); err == nil {
			_, err = d.Bet(ctx, n)
		}
	case "call":
		s := d.State()
		n := game.MinCall(s, d.Identity().ID)
		if n <= 0 {
			return fmt.Errorf("nothing to call")
		}
		_, err = d.Bet(ctx, n)
	case "fold":
		_, err = d.Fold(ctx)
	case "end":
		_, err = d.EndBetting(ctx)
	case "unend":
		_, err = d.CancelEndBetting(ctx)
	case "round":
		_, err = d.AdvanceRound(ctx)
	case "winner":
		if len(args) < 1 {
			return usage("winner NAME")
		}
		_, err = d.SelectWinner(ctx, strings.Join(args, " "))
	case "loan":
		err = loan(ctx, d, args)
	case "approve", "reject":
		var id string
		if id, err = requestArg(d, args); err == nil {
			if cmd == "approve" {
				_, err = d.ApproveLoan(ctx, id)
			} else {
				_, err = d.RejectLoan(ctx, id)
			}
		}
	case "pay":
		if len(args) != 1 {
			return usage("pay LOAN")
		}
		_, err = d.PayLoan(ctx, args[0])
	case "kick":
		if len(args) < 1 {
			return usage("kick NAME")
		}
		_, err = d.Kick(ctx, strings.Join(args, " "))
	case "recover":
		if len(args) != 2 {
			return usage("recover FROM TO")
		}
		_, err = d.RecoverAccount(ctx, args[0], args[1])
	case "money":
		var n int64
		if n, err = amountArg(args, 0); err == nil {
			reset := len(args) > 1 && strings.EqualFold(args[1], "reset")
			_, err = d.SetInitialMoney(ctx, n, reset)
		}
	case "bankloans":
		_, err = d.ToggleBankLoans(ctx)
	case "cancel":
		_, err = d.Cancel(ctx, strings.Join(args, " "))
	case "away":
		_, err = d.SetVisible(ctx, false)
	case "back":
		_, err = d.SetVisible(ctx, true)
	case "show":
		render(d.State(), d.Identity())
	case "help", "?":
		pterm.Println(helpText)
	case "quit", "exit":
		return errQuit
	default:
		return fmt.Errorf("unknown command %q (try help)", cmd)
	}
	return err
}

func usage(form string) error {
	return fmt.Errorf("usage: %s", form)
}

func amountArg(args []string, i int) (int64, error) {
	if len(args) <= i {
		return 0, fmt.Errorf("missing amount")
	}
	n, err := strconv.ParseInt(args[i], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", args[i])
	}
	return n, nil
}

// interestArgs parses an optional "KIND INTEREST" pair, defaulting to an interest-free overall loan.
func interestArgs(args []string) (models.InterestType, int64, error) {
	if len(args) == 0 {
		return models.InterestOverall, 0, nil
	}
	kind := models.InterestType(strings.ToLower(args[0]))
	if !kind.Valid() {
		return "", 0, fmt.Errorf("unknown interest type %q", args[0])
	}
	var interest int64
	if len(args) > 1 {
		n, err := amountArg(args, 1)
		if err != nil {
			return "", 0, err
		}
		interest = n
	}
	return kind, interest, nil
}

func loan(ctx context.Context, d *dispatch.Dispatcher, args []string) error {
	if len(args) < 2 {
		return usage("loan bank|NAME N [overall|per_round|gift I]")
	}
	n, err := amountArg(args, 1)
	if err != nil {
		return err
	}
	kind, interest, err := interestArgs(args[2:])
	if err != nil {
		return err
	}
	if strings.EqualFold(args[0], "bank") {
		_, err = d.BankLoan(ctx, n, kind, interest)
	} else {
		_, err = d.RequestLoan(ctx, args[0], n, kind, interest)
	}
	return err
}

// requestArg picks the request named in args, or the oldest one waiting on this client.
func requestArg(d *dispatch.Dispatcher, args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	pending := d.PendingRequests()
	if len(pending) == 0 {
		return "", fmt.Errorf("no loan requests are waiting on you")
	}
	return pending[0].ID, nil
}
