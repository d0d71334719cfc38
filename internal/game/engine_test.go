// internal/game/engine_test.go
package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jason-s-yu/pokerbank/internal/models"
)

const t0 = int64(1_700_000_000_000)

// clock hands out strictly increasing millisecond timestamps.
type clock struct{ now int64 }

func (c *clock) tick() int64 {
	c.now += 1000
	return c.now
}

// seatedGame builds an active game with one player per name, each holding money.
func seatedGame(t *testing.T, c *clock, money int64, names ...string) models.GameState {
	t.Helper()
	s := NewGame("ABC123", names[0], money, c.now)
	for _, name := range names {
		var err error
		s, err = Apply(s, JoinGame{Player: NewPlayer(s, name, name, c.now)}, c.tick())
		require.NoError(t, err)
	}
	return s
}

func mustApply(t *testing.T, s models.GameState, a Action, now int64) models.GameState {
	t.Helper()
	next, err := Apply(s, a, now)
	require.NoError(t, err, "apply %s", a.Type())
	return next
}

func TestBettingUpdatesPotAndNeedsAction(t *testing.T) {
	c := &clock{now: t0}
	s := seatedGame(t, c, 500, "p1", "p2")

	s = mustApply(t, s, PlaceBet{PlayerID: "p1", Amount: 100}, c.tick())
	s = mustApply(t, s, PlaceBet{PlayerID: "p2", Amount: 150}, c.tick())

	assert.Equal(t, int64(150), s.HighestBet)
	assert.Equal(t, int64(250), s.MoneyPool)
	assert.True(t, s.Player("p1").NeedsAction)
	assert.False(t, s.Player("p2").NeedsAction)
	assert.Equal(t, int64(400), s.Player("p1").Money)
	assert.Equal(t, int64(350), s.Player("p2").Money)
	assert.Equal(t, int64(150), s.Player("p2").LastBetAmount)
}

func TestAllInBet(t *testing.T) {
	c := &clock{now: t0}
	s := seatedGame(t, c, 200, "p1", "p2")

	s = mustApply(t, s, PlaceBet{PlayerID: "p1", Amount: 200}, c.tick())
	p1 := s.Player("p1")
	assert.True(t, p1.IsAllIn)
	assert.Zero(t, p1.Money)

	_, err := Apply(s, PlaceBet{PlayerID: "p2", Amount: 201}, c.tick())
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.ErrorIs(t, err, ErrInvalidAction)
}

func TestLastFoldAwardsPot(t *testing.T) {
	c := &clock{now: t0}
	s := seatedGame(t, c, 500, "p1", "p2", "p3")
	s = mustApply(t, s, PlaceBet{PlayerID: "p1", Amount: 50}, c.tick())
	s = mustApply(t, s, PlaceBet{PlayerID: "p2", Amount: 70}, c.tick())
	s = mustApply(t, s, StartNewRound{}, c.tick())

	pot := s.MoneyPool
	before := s.Player("p3").Money
	epoch := s.CurrentEpoch

	s = mustApply(t, s, Fold{PlayerID: "p1"}, c.tick())
	assert.Equal(t, epoch, s.CurrentEpoch, "one fold with two players left does not close the epoch")
	s = mustApply(t, s, Fold{PlayerID: "p2"}, c.tick())

	assert.Equal(t, before+pot, s.Player("p3").Money)
	assert.Zero(t, s.MoneyPool)
	assert.Equal(t, epoch+1, s.CurrentEpoch)
	assert.Zero(t, s.CurrentRound)
	for _, p := range s.Players {
		assert.False(t, p.IsFolded, p.ID)
		assert.Zero(t, p.CurrentBet, p.ID)
	}
	last := s.ActionLog[len(s.ActionLog)-1]
	assert.Equal(t, LogFoldWin, last.Type)
	assert.Equal(t, "p3", last.PlayerID)
	assert.Equal(t, pot, last.Amount)
}

func TestFoldTwiceRejected(t *testing.T) {
	c := &clock{now: t0}
	s := seatedGame(t, c, 500, "p1", "p2", "p3")
	s = mustApply(t, s, Fold{PlayerID: "p1"}, c.tick())

	next, err := Apply(s, Fold{PlayerID: "p1"}, c.tick())
	assert.ErrorIs(t, err, ErrPlayerFolded)
	assert.Equal(t, s, next)

	_, err = Apply(s, PlaceBet{PlayerID: "p1", Amount: 10}, c.tick())
	assert.ErrorIs(t, err, ErrPlayerFolded)
}

func advanceToFinalRound(t *testing.T, c *clock, s models.GameState) models.GameState {
	t.Helper()
	for s.CurrentRound < RoundsPerEpoch {
		s = mustApply(t, s, StartNewRound{}, c.tick())
	}
	return s
}

func TestEndBettingOpensWinnerSelection(t *testing.T) {
	c := &clock{now: t0}
	s := seatedGame(t, c, 500, "p1", "p2", "p3")
	s = mustApply(t, s, Fold{PlayerID: "p3"}, c.tick())

	_, err := Apply(s, EndBetting{PlayerID: "p1"}, c.tick())
	assert.ErrorIs(t, err, ErrNotFinalRound)

	s = advanceToFinalRound(t, c, s)
	_, err = Apply(s, StartNewRound{}, c.tick())
	assert.ErrorIs(t, err, ErrRoundLimit)

	s = mustApply(t, s, EndBetting{PlayerID: "p1"}, c.tick())
	assert.False(t, s.ShowWinnerSelection)

	_, err = Apply(s, EndBetting{PlayerID: "p1"}, c.tick())
	assert.ErrorIs(t, err, ErrAlreadyEndedBetting)
	_, err = Apply(s, EndBetting{PlayerID: "p3"}, c.tick())
	assert.ErrorIs(t, err, ErrPlayerFolded)

	s = mustApply(t, s, EndBetting{PlayerID: "p2"}, c.tick())
	assert.True(t, s.ShowWinnerSelection)

	_, err = Apply(s, CancelEndBetting{PlayerID: "p2"}, c.tick())
	assert.ErrorIs(t, err, ErrWinnerSelectionOpen)
}

func TestCancelEndBetting(t *testing.T) {
	c := &clock{now: t0}
	s := seatedGame(t, c, 500, "p1", "p2")
	s = advanceToFinalRound(t, c, s)

	_, err := Apply(s, CancelEndBetting{PlayerID: "p1"}, c.tick())
	assert.ErrorIs(t, err, ErrNotEndedBetting)

	s = mustApply(t, s, EndBetting{PlayerID: "p1"}, c.tick())
	s = mustApply(t, s, CancelEndBetting{PlayerID: "p1"}, c.tick())
	assert.False(t, s.Player("p1").HasEndedBetting)
}

func TestSelectWinner(t *testing.T) {
	c := &clock{now: t0}
	s := seatedGame(t, c, 500, "p1", "p2")
	s = mustApply(t, s, PlaceBet{PlayerID: "p1", Amount: 100}, c.tick())
	s = mustApply(t, s, PlaceBet{PlayerID: "p2", Amount: 100}, c.tick())
	total := s.TotalMoney()

	s = mustApply(t, s, SelectWinner{PlayerID: "p2"}, c.tick())
	assert.Equal(t, int64(600), s.Player("p2").Money)
	assert.Zero(t, s.MoneyPool)
	assert.Equal(t, 1, s.CurrentEpoch)
	assert.Equal(t, total, s.TotalMoney())
}

func TestRoundResetsPerRoundFlags(t *testing.T) {
	c := &clock{now: t0}
	s := seatedGame(t, c, 500, "p1", "p2", "p3")
	s = mustApply(t, s, PlaceBet{PlayerID: "p1", Amount: 40}, c.tick())
	s = mustApply(t, s, Fold{PlayerID: "p3"}, c.tick())
	s = mustApply(t, s, StartNewRound{}, c.tick())

	assert.Equal(t, 1, s.CurrentRound)
	assert.Zero(t, s.HighestBet)
	assert.Equal(t, int64(40), s.MoneyPool, "the pot carries across rounds")
	assert.True(t, s.Player("p1").NeedsAction)
	assert.Zero(t, s.Player("p1").CurrentBet)
	assert.False(t, s.Player("p3").NeedsAction)
	assert.True(t, s.Player("p3").IsFolded)
}

func TestRecoverAccount(t *testing.T) {
	c := &clock{now: t0}
	s := seatedGame(t, c, 500, "a", "b")
	s = mustApply(t, s, ToggleBankLoans{}, c.tick())
	s = mustApply(t, s, PlaceBet{PlayerID: "a", Amount: 500}, c.tick())
	s = mustApply(t, s, TakeLoan{PlayerID: "a", Loan: models.Loan{ID: "l1", From: models.BankLender, Amount: 100, InterestType: models.InterestOverall, InterestAmount: 10}}, c.tick())
	s = mustApply(t, s, TakeLoan{PlayerID: "b", Loan: models.Loan{ID: "l2", From: models.BankLender, Amount: 20, InterestType: models.InterestPerRound}}, c.tick())

	aMoney := s.Player("a").Money
	aLoans := s.Player("a").Loans

	s = mustApply(t, s, RecoverAccount{SourcePlayerID: "a", TargetPlayerID: "b"}, c.tick())
	b := s.Player("b")
	assert.Equal(t, aMoney, b.Money)
	require.Len(t, b.Loans, 2)
	assert.Equal(t, "l2", b.Loans[0].ID)
	assert.Equal(t, aLoans[0], b.Loans[1])

	a := s.Player("a")
	assert.Equal(t, s.InitialMoney, a.Money)
	assert.Empty(t, a.Loans)

	_, err := Apply(s, RecoverAccount{SourcePlayerID: "a", TargetPlayerID: "a"}, c.tick())
	assert.ErrorIs(t, err, ErrSelfRecovery)
}

func TestBankLoan(t *testing.T) {
	c := &clock{now: t0}
	s := seatedGame(t, c, 100, "p1", "p2")
	loan := models.Loan{ID: "bank-1", From: models.BankLender, Amount: 300, InterestType: models.InterestOverall, InterestAmount: 30}

	_, err := Apply(s, TakeLoan{PlayerID: "p1", Loan: loan}, c.tick())
	assert.ErrorIs(t, err, ErrBankLoansDisabled)

	s = mustApply(t, s, ToggleBankLoans{}, c.tick())
	assert.True(t, s.BankLoans)
	s = mustApply(t, s, TakeLoan{PlayerID: "p1", Loan: loan}, c.tick())

	p1 := s.Player("p1")
	assert.Equal(t, int64(400), p1.Money)
	require.Len(t, p1.Loans, 1)
	assert.Equal(t, int64(330), p1.Loans[0].TotalOwed)
	assert.False(t, p1.Loans[0].IsPaid)

	_, err = Apply(s, PayLoan{PlayerID: "p1", LoanID: "bank-1"}, c.tick())
	assert.ErrorIs(t, err, ErrUnknownLender, "the house is not a seated player")

	gift := models.Loan{ID: "bank-2", From: models.BankLender, Amount: 50, InterestType: models.InterestGift, InterestAmount: 9}
	s = mustApply(t, s, TakeLoan{PlayerID: "p2", Loan: gift}, c.tick())
	g := s.Player("p2").Loans[0]
	assert.True(t, g.IsPaid)
	assert.Zero(t, g.TotalOwed)
	assert.Zero(t, g.InterestAmount)
}

func TestPlayerLoanLifecycle(t *testing.T) {
	c := &clock{now: t0}
	s := seatedGame(t, c, 500, "lender", "borrower")
	req := models.Loan{ID: "req-1", From: "lender", Amount: 200, InterestType: models.InterestOverall, InterestAmount: 25}

	s = mustApply(t, s, TakeLoan{PlayerID: "borrower", Loan: req}, c.tick())
	require.Len(t, s.LoanRequests, 1)
	lr := s.LoanRequests[0]
	assert.Equal(t, models.LoanPending, lr.Status)
	assert.Equal(t, "lender", lr.FromPlayerID)
	assert.Equal(t, "borrower", lr.ToPlayerID)
	assert.Equal(t, int64(225), lr.TotalOwed)
	assert.Equal(t, int64(500), s.Player("borrower").Money, "no money moves until approval")
	assert.Equal(t, LogLoanRequest, s.ActionLog[len(s.ActionLog)-1].Type)

	s = mustApply(t, s, ApproveLoan{LoanRequestID: "req-1"}, c.tick())
	assert.Equal(t, models.LoanApproved, s.LoanRequests[0].Status)
	assert.Equal(t, int64(300), s.Player("lender").Money)
	assert.Equal(t, int64(700), s.Player("borrower").Money)
	require.Len(t, s.Player("borrower").Loans, 1)

	_, err := Apply(s, ApproveLoan{LoanRequestID: "req-1"}, c.tick())
	assert.ErrorIs(t, err, ErrLoanRequestNotPending)

	s = mustApply(t, s, PayLoan{PlayerID: "borrower", LoanID: "req-1"}, c.tick())
	assert.Equal(t, int64(525), s.Player("lender").Money)
	assert.Equal(t, int64(475), s.Player("borrower").Money)
	paid := s.Player("borrower").Loans[0]
	assert.True(t, paid.IsPaid)
	assert.Zero(t, paid.TotalOwed)

	_, err = Apply(s, PayLoan{PlayerID: "borrower", LoanID: "req-1"}, c.tick())
	assert.ErrorIs(t, err, ErrLoanPaid)
}

func TestLoanRequestValidation(t *testing.T) {
	c := &clock{now: t0}
	s := seatedGame(t, c, 100, "lender", "borrower")

	cases := []struct {
		name string
		loan models.Loan
		want error
	}{
		{"self", models.Loan{ID: "x", From: "borrower", Amount: 10}, ErrSelfLoan},
		{"unknown lender", models.Loan{ID: "x", From: "ghost", Amount: 10}, ErrUnknownLender},
		{"zero amount", models.Loan{ID: "x", From: "lender"}, ErrInvalidAmount},
		{"negative interest", models.Loan{ID: "x", From: "lender", Amount: 10, InterestAmount: -1}, ErrInvalidAmount},
		{"bad interest type", models.Loan{ID: "x", From: "lender", Amount: 10, InterestType: "weekly"}, ErrInvalidLoan},
		{"missing id", models.Loan{From: "lender", Amount: 10}, ErrInvalidLoan},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			next, err := Apply(s, TakeLoan{PlayerID: "borrower", Loan: tc.loan}, c.tick())
			assert.ErrorIs(t, err, tc.want)
			assert.Equal(t, s, next)
		})
	}

	s = mustApply(t, s, TakeLoan{PlayerID: "borrower", Loan: models.Loan{ID: "big", From: "lender", Amount: 1000}}, c.tick())
	_, err := Apply(s, ApproveLoan{LoanRequestID: "big"}, c.tick())
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	s = mustApply(t, s, RejectLoan{LoanRequestID: "big"}, c.tick())
	assert.Equal(t, models.LoanRejected, s.LoanRequests[0].Status)
	_, err = Apply(s, RejectLoan{LoanRequestID: "big"}, c.tick())
	assert.ErrorIs(t, err, ErrLoanRequestNotPending)
}

func TestGiftLoanApproval(t *testing.T) {
	c := &clock{now: t0}
	s := seatedGame(t, c, 100, "lender", "borrower")
	s = mustApply(t, s, TakeLoan{PlayerID: "borrower", Loan: models.Loan{ID: "g", From: "lender", Amount: 40, InterestType: models.InterestGift}}, c.tick())
	s = mustApply(t, s, ApproveLoan{LoanRequestID: "g"}, c.tick())

	loan := s.Player("borrower").Loans[0]
	assert.True(t, loan.IsPaid)
	assert.Zero(t, loan.TotalOwed)
	assert.Equal(t, int64(140), s.Player("borrower").Money)
}

func TestJoinGameValidation(t *testing.T) {
	c := &clock{now: t0}
	s := seatedGame(t, c, 100, "Alice")
	assert.Equal(t, models.StatusActive, s.GameStatus)

	_, err := Apply(s, JoinGame{Player: models.Player{ID: "Alice", Name: "Other"}}, c.tick())
	assert.ErrorIs(t, err, ErrDuplicatePlayer)
	_, err = Apply(s, JoinGame{Player: models.Player{ID: "x", Name: "  alice "}}, c.tick())
	assert.ErrorIs(t, err, ErrNameTaken)
	_, err = Apply(s, JoinGame{Player: models.Player{ID: "x"}}, c.tick())
	assert.ErrorIs(t, err, ErrInvalidPlayer)

	s = mustApply(t, s, JoinGame{Player: models.Player{ID: "bob", Name: "Bob"}}, c.tick())
	assert.NotNil(t, s.Player("bob").Loans)
}

func TestKickPlayer(t *testing.T) {
	c := &clock{now: t0}
	s := seatedGame(t, c, 100, "p1", "p2")
	s = mustApply(t, s, KickPlayer{PlayerID: "p2"}, c.tick())

	assert.Nil(t, s.Player("p2"))
	last := s.ActionLog[len(s.ActionLog)-1]
	assert.Equal(t, string(ActionKickPlayer), last.Type)
	assert.Equal(t, "p2", last.PlayerID)

	_, err := Apply(s, KickPlayer{PlayerID: "p2"}, c.tick())
	assert.ErrorIs(t, err, ErrUnknownPlayer)
}

func TestSetInitialMoney(t *testing.T) {
	c := &clock{now: t0}
	s := seatedGame(t, c, 100, "p1", "p2")
	s = mustApply(t, s, SetInitialMoney{Amount: 250}, c.tick())
	assert.Equal(t, int64(250), s.InitialMoney)
	assert.Equal(t, int64(100), s.Player("p1").Money)

	s = mustApply(t, s, SetInitialMoney{Amount: 300, UpdateExisting: true}, c.tick())
	assert.Equal(t, int64(300), s.Player("p1").Money)
	assert.Equal(t, int64(300), s.Player("p2").Money)

	_, err := Apply(s, SetInitialMoney{Amount: -1}, c.tick())
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestPresenceAndSpectators(t *testing.T) {
	c := &clock{now: t0}
	s := seatedGame(t, c, 100, "p1")
	logLen := len(s.ActionLog)

	now := c.tick()
	s = mustApply(t, s, SetPlayerInactive{PlayerID: "p1"}, now)
	assert.False(t, s.Player("p1").IsActive)
	assert.Equal(t, now, s.Player("p1").LastActive)
	s = mustApply(t, s, SetPlayerActive{PlayerID: "p1"}, c.tick())
	assert.True(t, s.Player("p1").IsActive)

	s = mustApply(t, s, AddSpectator{SpectatorID: "watcher"}, c.tick())
	_, err := Apply(s, AddSpectator{SpectatorID: "watcher"}, c.tick())
	assert.ErrorIs(t, err, ErrDuplicateSpectator)
	s = mustApply(t, s, RemoveSpectator{SpectatorID: "watcher"}, c.tick())
	assert.Empty(t, s.Spectators)
	_, err = Apply(s, RemoveSpectator{SpectatorID: "watcher"}, c.tick())
	assert.ErrorIs(t, err, ErrUnknownSpectator)

	assert.Len(t, s.ActionLog, logLen, "presence changes are not logged")
}

func TestHostReconnecting(t *testing.T) {
	c := &clock{now: t0}
	s := seatedGame(t, c, 100, "host")

	s = mustApply(t, s, MarkHostReconnecting{}, c.tick())
	assert.Equal(t, models.StatusHostReconnecting, s.GameStatus)
	_, err := Apply(s, MarkHostReconnecting{}, c.tick())
	assert.ErrorIs(t, err, ErrInvalidStatus)

	now := c.tick()
	s = mustApply(t, s, HostHeartbeat{}, now)
	assert.Equal(t, models.StatusActive, s.GameStatus)
	assert.Equal(t, now, s.HostLastActive)
	assert.Equal(t, LogHostReconnected, s.ActionLog[len(s.ActionLog)-1].Type)
}

func TestCancelledGameIsTerminal(t *testing.T) {
	c := &clock{now: t0}
	s := seatedGame(t, c, 100, "p1", "p2")
	s = mustApply(t, s, AddSpectator{SpectatorID: "w"}, c.tick())
	s = mustApply(t, s, CancelGame{Reason: "host left"}, c.tick())
	assert.Equal(t, models.StatusCancelled, s.GameStatus)
	assert.Contains(t, s.ActionLog[len(s.ActionLog)-1].Description, "host left")

	for _, a := range []Action{PlaceBet{PlayerID: "p1", Amount: 1}, StartNewRound{}, HostHeartbeat{}, CancelGame{}} {
		next, err := Apply(s, a, c.tick())
		assert.ErrorIs(t, err, ErrGameCancelled, string(a.Type()))
		assert.Equal(t, s, next)
	}

	s = mustApply(t, s, SetPlayerInactive{PlayerID: "p1"}, c.tick())
	s = mustApply(t, s, RemoveSpectator{SpectatorID: "w"}, c.tick())

	revived := s.Clone()
	revived.GameStatus = models.StatusActive
	revived.LastStateUpdate = s.LastStateUpdate + 10
	_, err := Apply(s, SetInitialState{State: revived}, c.tick())
	assert.ErrorIs(t, err, ErrGameCancelled)
}

func TestRejectedActionLeavesStateUntouched(t *testing.T) {
	c := &clock{now: t0}
	s := seatedGame(t, c, 100, "p1", "p2")
	snapshot := s.Clone()

	rejected := []Action{
		PlaceBet{PlayerID: "ghost", Amount: 10},
		PlaceBet{PlayerID: "p1", Amount: 0},
		PlaceBet{PlayerID: "p1", Amount: -5},
		Fold{PlayerID: "ghost"},
		SelectWinner{PlayerID: "ghost"},
		ApproveLoan{LoanRequestID: "nope"},
		PayLoan{PlayerID: "p1", LoanID: "nope"},
		SetNeedsAction{PlayerID: "ghost"},
	}
	for _, a := range rejected {
		next, err := Apply(s, a, c.tick())
		assert.ErrorIs(t, err, ErrInvalidAction, string(a.Type()))
		assert.Equal(t, snapshot, next, string(a.Type()))
	}
	assert.Equal(t, snapshot, s, "input state must not be mutated")
}

func TestApplyDoesNotAliasInput(t *testing.T) {
	c := &clock{now: t0}
	s := seatedGame(t, c, 100, "p1", "p2")
	before := s.Clone()

	_ = mustApply(t, s, PlaceBet{PlayerID: "p1", Amount: 30}, c.tick())
	_ = mustApply(t, s, KickPlayer{PlayerID: "p1"}, c.tick())
	assert.Equal(t, before, s)
}

func TestUnknownActionIsNoop(t *testing.T) {
	c := &clock{now: t0}
	s := seatedGame(t, c, 100, "p1")
	next, err := Apply(s, Unknown{Name: "DEAL_CARDS"}, c.tick())
	require.NoError(t, err)
	assert.Equal(t, s, next)

	next, err = Apply(s, nil, c.tick())
	require.NoError(t, err)
	assert.Equal(t, s, next)
}

func TestVersionStrictlyIncreases(t *testing.T) {
	c := &clock{now: t0}
	s := seatedGame(t, c, 100, "p1", "p2")
	prev := s.LastStateUpdate

	// a clock that runs backwards still yields a newer version
	s = mustApply(t, s, PlaceBet{PlayerID: "p1", Amount: 1}, t0-5000)
	assert.Equal(t, prev+1, s.LastStateUpdate)
	s = mustApply(t, s, PlaceBet{PlayerID: "p2", Amount: 1}, s.LastStateUpdate)
	assert.Equal(t, prev+2, s.LastStateUpdate)
}

func TestSetInitialState(t *testing.T) {
	c := &clock{now: t0}
	s := seatedGame(t, c, 100, "p1", "p2")

	remote := mustApply(t, s, PlaceBet{PlayerID: "p2", Amount: 40}, c.tick())
	next := mustApply(t, s, SetInitialState{State: remote}, c.tick())
	assert.Equal(t, remote, next)
	assert.Equal(t, remote.LastStateUpdate, next.LastStateUpdate, "a pulled snapshot keeps its own version")

	// replaying the same snapshot is rejected as stale and changes nothing
	again, err := Apply(next, SetInitialState{State: remote}, c.tick())
	assert.ErrorIs(t, err, ErrStaleSnapshot)
	assert.Equal(t, next, again)

	older, err := Apply(next, SetInitialState{State: s}, c.tick())
	assert.ErrorIs(t, err, ErrStaleSnapshot)
	assert.Equal(t, next, older)

	other := remote.Clone()
	other.GameCode = "ZZZ999"
	other.LastStateUpdate += 100
	_, err = Apply(next, SetInitialState{State: other}, c.tick())
	assert.ErrorIs(t, err, ErrGameCodeMismatch)

	// an empty local state adopts any snapshot
	fresh, err := Apply(models.GameState{}, SetInitialState{State: remote}, c.tick())
	require.NoError(t, err)
	assert.Equal(t, remote, fresh)
}

func TestMoneyIsConserved(t *testing.T) {
	c := &clock{now: t0}
	s := seatedGame(t, c, 500, "p1", "p2", "p3")
	total := s.TotalMoney()

	steps := []Action{
		PlaceBet{PlayerID: "p1", Amount: 100},
		PlaceBet{PlayerID: "p2", Amount: 150},
		PlaceBet{PlayerID: "p3", Amount: 150},
		PlaceBet{PlayerID: "p1", Amount: 50},
		StartNewRound{},
		PlaceBet{PlayerID: "p2", Amount: 20},
		Fold{PlayerID: "p3"},
		TakeLoan{PlayerID: "p3", Loan: models.Loan{ID: "r1", From: "p1", Amount: 30}},
		ApproveLoan{LoanRequestID: "r1"},
		SelectWinner{PlayerID: "p1"},
		PayLoan{PlayerID: "p3", LoanID: "r1"},
	}
	for _, a := range steps {
		s = mustApply(t, s, a, c.tick())
		assert.Equal(t, total, s.TotalMoney(), "after %s", a.Type())
	}
}

func TestLogActionAndNeedsAction(t *testing.T) {
	c := &clock{now: t0}
	s := seatedGame(t, c, 100, "p1")
	now := c.tick()
	s = mustApply(t, s, LogAction{Entry: models.GameAction{Type: "NOTE", Description: "coffee break"}}, now)
	last := s.ActionLog[len(s.ActionLog)-1]
	assert.Equal(t, "NOTE", last.Type)
	assert.Equal(t, now, last.Timestamp)

	s = mustApply(t, s, SetNeedsAction{PlayerID: "p1", NeedsAction: false}, c.tick())
	assert.False(t, s.Player("p1").NeedsAction)
}
