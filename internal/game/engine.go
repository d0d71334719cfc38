// internal/game/engine.go
package game

import (
	"fmt"
	"strings"

	"github.com/jason-s-yu/pokerbank/internal/models"
)

// Apply is the transition function for shared game state. It is pure: the input value is never
// mutated, and the same (state, action, now) always yields the same result.
//
// now is the caller's wall clock in Unix milliseconds. Every applied transition stamps
// LastStateUpdate with max(now, previous+1), so versions strictly increase on a replica.
//
// A rejected action returns the input state unchanged together with an error wrapping
// ErrInvalidAction. Unrecognised actions return the input state and a nil error.
func Apply(s models.GameState, a Action, now int64) (models.GameState, error) {
	if a == nil {
		return s, nil
	}
	if snap, ok := a.(SetInitialState); ok {
		return applyInitialState(s, snap.State)
	}
	if s.GameStatus == models.StatusCancelled && !allowedWhenCancelled(a) {
		return s, ErrGameCancelled
	}

	t := &transition{s: s.Clone(), ts: nextVersion(s.LastStateUpdate, now)}
	var err error
	switch act := a.(type) {
	case JoinGame:
		err = t.join(act)
	case PlaceBet:
		err = t.placeBet(act)
	case Fold:
		err = t.fold(act)
	case StartNewRound:
		err = t.startNewRound()
	case StartNewEpoch:
		t.resetEpoch()
		t.log(string(ActionStartNewEpoch), "", 0, fmt.Sprintf("Epoch %d started", t.s.CurrentEpoch))
	case EndBetting:
		err = t.endBetting(act)
	case CancelEndBetting:
		err = t.cancelEndBetting(act)
	case SelectWinner:
		err = t.selectWinner(act)
	case TakeLoan:
		err = t.takeLoan(act)
	case ApproveLoan:
		err = t.approveLoan(act)
	case RejectLoan:
		err = t.rejectLoan(act)
	case PayLoan:
		err = t.payLoan(act)
	case KickPlayer:
		err = t.kick(act)
	case RecoverAccount:
		err = t.recoverAccount(act)
	case SetInitialMoney:
		err = t.setInitialMoney(act)
	case SetPlayerActive:
		err = t.setPlayerActive(act.PlayerID, true)
	case SetPlayerInactive:
		err = t.setPlayerActive(act.PlayerID, false)
	case AddSpectator:
		err = t.addSpectator(act)
	case RemoveSpectator:
		err = t.removeSpectator(act)
	case CancelGame:
		t.cancel(act)
	case ToggleBankLoans:
		t.s.BankLoans = !t.s.BankLoans
		t.log(string(ActionToggleBankLoans), "", 0, fmt.Sprintf("Bank loans enabled: %t", t.s.BankLoans))
	case LogAction:
		entry := act.Entry
		if entry.Timestamp == 0 {
			entry.Timestamp = t.ts
		}
		t.s.ActionLog = append(t.s.ActionLog, entry)
	case SetNeedsAction:
		err = t.setNeedsAction(act)
	case HostHeartbeat:
		t.hostHeartbeat()
	case MarkHostReconnecting:
		err = t.markHostReconnecting()
	default:
		return s, nil
	}
	if err != nil {
		return s, err
	}
	t.s.LastStateUpdate = t.ts
	return t.s, nil
}

func nextVersion(prev, now int64) int64 {
	if now > prev {
		return now
	}
	return prev + 1
}

func allowedWhenCancelled(a Action) bool {
	switch a.(type) {
	case SetPlayerInactive, RemoveSpectator:
		return true
	}
	return false
}

// applyInitialState replaces s wholesale with a strictly newer snapshot of the same game. The snapshot
// keeps its own version so a pulled state is not mistaken for a fresh local write.
func applyInitialState(s, snap models.GameState) (models.GameState, error) {
	if s.GameCode != "" && snap.GameCode != s.GameCode {
		return s, ErrGameCodeMismatch
	}
	if snap.LastStateUpdate <= s.LastStateUpdate {
		return s, ErrStaleSnapshot
	}
	if s.GameStatus == models.StatusCancelled && snap.GameStatus != models.StatusCancelled {
		return s, ErrGameCancelled
	}
	return snap.Clone(), nil
}

// transition holds the working copy for one Apply call.
type transition struct {
	s  models.GameState
	ts int64
}

func (t *transition) log(kind, playerID string, amount int64, description string) {
	entry := models.GameAction{
		Type:        kind,
		PlayerID:    playerID,
		Amount:      amount,
		Timestamp:   t.ts,
		Description: description,
	}
	if p := t.s.Player(playerID); p != nil {
		entry.PlayerName = p.Name
	}
	t.s.ActionLog = append(t.s.ActionLog, entry)
}

func (t *transition) player(id string) (*models.Player, error) {
	p := t.s.Player(id)
	if p == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPlayer, id)
	}
	return p, nil
}

func (t *transition) join(act JoinGame) error {
	p := act.Player
	p.Name = strings.TrimSpace(p.Name)
	if p.ID == "" || p.Name == "" {
		return ErrInvalidPlayer
	}
	if t.s.FindPlayer(p.ID) >= 0 {
		return ErrDuplicatePlayer
	}
	if NameTaken(t.s, p.Name) {
		return fmt.Errorf("%w: %q", ErrNameTaken, p.Name)
	}
	if p.Loans == nil {
		p.Loans = []models.Loan{}
	}
	if p.LastActive == 0 {
		p.LastActive = t.ts
	}
	t.s.Players = append(t.s.Players, p)
	if t.s.GameStatus == models.StatusWaiting || t.s.GameStatus == "" {
		t.s.GameStatus = models.StatusActive
	}
	t.log(string(ActionJoinGame), p.ID, 0, fmt.Sprintf("%s joined the game", p.Name))
	return nil
}

// NameTaken reports whether name collides case-insensitively with a seated player.
func NameTaken(s models.GameState, name string) bool {
	name = strings.TrimSpace(name)
	for _, p := range s.Players {
		if strings.EqualFold(p.Name, name) {
			return true
		}
	}
	return false
}

func (t *transition) placeBet(act PlaceBet) error {
	p, err := t.player(act.PlayerID)
	if err != nil {
		return err
	}
	if p.IsFolded {
		return ErrPlayerFolded
	}
	if act.Amount <= 0 {
		return ErrInvalidAmount
	}
	if act.Amount > p.Money {
		return fmt.Errorf("%w: bet %d exceeds %d", ErrInsufficientFunds, act.Amount, p.Money)
	}

	newBet := p.CurrentBet + act.Amount
	target := max(t.s.HighestBet, newBet)

	p.IsAllIn = act.Amount == p.Money
	p.Money -= act.Amount
	p.CurrentBet = newBet
	p.LastBetAmount = act.Amount
	p.NeedsAction = false

	for i := range t.s.Players {
		other := &t.s.Players[i]
		if other.ID == act.PlayerID {
			continue
		}
		other.NeedsAction = !other.IsFolded && other.CurrentBet < target
	}
	t.s.HighestBet = target
	t.s.MoneyPool += act.Amount

	desc := fmt.Sprintf("%s bet %d", p.Name, act.Amount)
	if p.IsAllIn {
		desc += " (all in)"
	}
	t.log(string(ActionPlaceBet), p.ID, act.Amount, desc)
	return nil
}

func (t *transition) fold(act Fold) error {
	p, err := t.player(act.PlayerID)
	if err != nil {
		return err
	}
	if p.IsFolded {
		return ErrPlayerFolded
	}
	p.IsFolded = true
	p.NeedsAction = false
	t.log(string(ActionFold), p.ID, 0, fmt.Sprintf("%s folded", p.Name))

	remaining := -1
	for i := range t.s.Players {
		if t.s.Players[i].IsFolded {
			continue
		}
		if remaining >= 0 {
			return nil
		}
		remaining = i
	}
	if remaining < 0 {
		return nil
	}

	winner := &t.s.Players[remaining]
	pot := t.s.MoneyPool
	winner.Money += pot
	t.log(LogFoldWin, winner.ID, pot, fmt.Sprintf("%s wins the pot of %d as the last player standing", winner.Name, pot))
	t.resetEpoch()
	return nil
}

// resetEpoch closes the current epoch: the pot is assumed distributed, counters roll over and
// per-epoch player flags clear.
func (t *transition) resetEpoch() {
	t.s.CurrentEpoch++
	t.s.CurrentRound = 0
	t.s.HighestBet = 0
	t.s.MoneyPool = 0
	t.s.ShowWinnerSelection = false
	for i := range t.s.Players {
		p := &t.s.Players[i]
		p.IsFolded = false
		p.CurrentBet = 0
		p.LastBetAmount = 0
		p.IsAllIn = false
		p.NeedsAction = true
		p.HasEndedBetting = false
	}
}

func (t *transition) startNewRound() error {
	if t.s.CurrentRound >= RoundsPerEpoch {
		return ErrRoundLimit
	}
	t.s.CurrentRound++
	t.s.HighestBet = 0
	for i := range t.s.Players {
		p := &t.s.Players[i]
		p.CurrentBet = 0
		p.LastBetAmount = 0
		p.NeedsAction = !p.IsFolded
		p.HasEndedBetting = false
	}
	t.log(string(ActionStartNewRound), "", 0, fmt.Sprintf("Round %d of %d started", t.s.CurrentRound, RoundsPerEpoch))
	return nil
}

func (t *transition) endBetting(act EndBetting) error {
	p, err := t.player(act.PlayerID)
	if err != nil {
		return err
	}
	if p.IsFolded {
		return ErrPlayerFolded
	}
	if !IsFinalRound(t.s) {
		return ErrNotFinalRound
	}
	if p.HasEndedBetting {
		return ErrAlreadyEndedBetting
	}
	p.HasEndedBetting = true
	t.log(string(ActionEndBetting), p.ID, 0, fmt.Sprintf("%s ended betting", p.Name))

	for _, other := range t.s.Players {
		if !other.IsFolded && !other.HasEndedBetting {
			return nil
		}
	}
	t.s.ShowWinnerSelection = true
	return nil
}

func (t *transition) cancelEndBetting(act CancelEndBetting) error {
	p, err := t.player(act.PlayerID)
	if err != nil {
		return err
	}
	if !p.HasEndedBetting {
		return ErrNotEndedBetting
	}
	if t.s.ShowWinnerSelection {
		return ErrWinnerSelectionOpen
	}
	p.HasEndedBetting = false
	t.log(string(ActionCancelEndBetting), p.ID, 0, fmt.Sprintf("%s resumed betting", p.Name))
	return nil
}

func (t *transition) selectWinner(act SelectWinner) error {
	p, err := t.player(act.PlayerID)
	if err != nil {
		return err
	}
	if p.IsFolded {
		return ErrPlayerFolded
	}
	pot := t.s.MoneyPool
	p.Money += pot
	t.log(string(ActionSelectWinner), p.ID, pot, fmt.Sprintf("%s wins the pot of %d", p.Name, pot))
	t.resetEpoch()
	return nil
}

func (t *transition) takeLoan(act TakeLoan) error {
	borrower, err := t.player(act.PlayerID)
	if err != nil {
		return err
	}
	loan := act.Loan
	if loan.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidLoan)
	}
	if loan.InterestType == "" {
		loan.InterestType = models.InterestOverall
	}
	if !loan.InterestType.Valid() {
		return fmt.Errorf("%w: interest type %q", ErrInvalidLoan, loan.InterestType)
	}
	if loan.Amount <= 0 || loan.InterestAmount < 0 {
		return ErrInvalidAmount
	}
	if loan.InterestType == models.InterestGift {
		loan.InterestAmount = 0
	}
	owed := models.InitialOwed(loan.InterestType, loan.Amount, loan.InterestAmount)

	if loan.IsBank() {
		if !t.s.BankLoans {
			return ErrBankLoansDisabled
		}
		if borrower.FindLoan(loan.ID) >= 0 {
			return ErrDuplicateLoan
		}
		loan.TotalOwed = owed
		loan.IsPaid = loan.InterestType == models.InterestGift
		borrower.Money += loan.Amount
		borrower.Loans = append(borrower.Loans, loan)
		t.log(string(ActionTakeLoan), borrower.ID, loan.Amount, fmt.Sprintf("%s took a bank loan of %d", borrower.Name, loan.Amount))
		return nil
	}

	if loan.From == act.PlayerID {
		return ErrSelfLoan
	}
	lender := t.s.Player(loan.From)
	if lender == nil {
		return fmt.Errorf("%w: %q", ErrUnknownLender, loan.From)
	}
	if t.s.FindLoanRequest(loan.ID) >= 0 {
		return ErrDuplicateLoan
	}
	t.s.LoanRequests = append(t.s.LoanRequests, models.LoanRequest{
		ID:             loan.ID,
		FromPlayerID:   lender.ID,
		ToPlayerID:     borrower.ID,
		Amount:         loan.Amount,
		InterestType:   loan.InterestType,
		InterestAmount: loan.InterestAmount,
		TotalOwed:      owed,
		Status:         models.LoanPending,
		Timestamp:      t.ts,
	})
	t.log(LogLoanRequest, borrower.ID, loan.Amount, fmt.Sprintf("%s asked %s for a loan of %d", borrower.Name, lender.Name, loan.Amount))
	return nil
}

func (t *transition) pendingRequest(id string) (*models.LoanRequest, error) {
	i := t.s.FindLoanRequest(id)
	if i < 0 {
		return nil, fmt.Errorf("%w: %q", ErrUnknownLoanRequest, id)
	}
	req := &t.s.LoanRequests[i]
	if req.Status != models.LoanPending {
		return nil, ErrLoanRequestNotPending
	}
	return req, nil
}

func (t *transition) approveLoan(act ApproveLoan) error {
	req, err := t.pendingRequest(act.LoanRequestID)
	if err != nil {
		return err
	}
	lender, err := t.player(req.FromPlayerID)
	if err != nil {
		return err
	}
	borrower, err := t.player(req.ToPlayerID)
	if err != nil {
		return err
	}
	if lender.Money < req.Amount {
		return fmt.Errorf("%w: lender has %d", ErrInsufficientFunds, lender.Money)
	}

	gift := req.InterestType == models.InterestGift
	loan := models.Loan{
		ID:             req.ID,
		From:           req.FromPlayerID,
		Amount:         req.Amount,
		InterestType:   req.InterestType,
		InterestAmount: req.InterestAmount,
		TotalOwed:      req.TotalOwed,
		IsPaid:         gift,
	}
	if gift {
		loan.TotalOwed = 0
	}
	lender.Money -= req.Amount
	borrower.Money += req.Amount
	borrower.Loans = append(borrower.Loans, loan)
	req.Status = models.LoanApproved
	t.log(string(ActionApproveLoan), lender.ID, req.Amount, fmt.Sprintf("%s lent %d to %s", lender.Name, req.Amount, borrower.Name))
	return nil
}

func (t *transition) rejectLoan(act RejectLoan) error {
	req, err := t.pendingRequest(act.LoanRequestID)
	if err != nil {
		return err
	}
	req.Status = models.LoanRejected
	t.log(string(ActionRejectLoan), req.FromPlayerID, req.Amount, "Loan request rejected")
	return nil
}

func (t *transition) payLoan(act PayLoan) error {
	bi := t.s.FindPlayer(act.PlayerID)
	if bi < 0 {
		return fmt.Errorf("%w: %q", ErrUnknownPlayer, act.PlayerID)
	}
	li := t.s.Players[bi].FindLoan(act.LoanID)
	if li < 0 {
		return fmt.Errorf("%w: %q", ErrUnknownLoan, act.LoanID)
	}
	loan := t.s.Players[bi].Loans[li]
	lj := t.s.FindPlayer(loan.From)
	if lj < 0 {
		return fmt.Errorf("%w: %q", ErrUnknownLender, loan.From)
	}
	if loan.IsPaid {
		return ErrLoanPaid
	}

	payback := loan.TotalOwed
	if loan.InterestType == models.InterestOverall {
		payback = loan.Amount + loan.InterestAmount
	}
	borrower := &t.s.Players[bi]
	lender := &t.s.Players[lj]
	if borrower.Money < payback {
		return fmt.Errorf("%w: payback %d exceeds %d", ErrInsufficientFunds, payback, borrower.Money)
	}
	borrower.Money -= payback
	lender.Money += payback
	borrower.Loans[li].IsPaid = true
	borrower.Loans[li].TotalOwed = 0
	t.log(string(ActionPayLoan), borrower.ID, payback, fmt.Sprintf("%s paid back %d to %s", borrower.Name, payback, lender.Name))
	return nil
}

func (t *transition) kick(act KickPlayer) error {
	i := t.s.FindPlayer(act.PlayerID)
	if i < 0 {
		return fmt.Errorf("%w: %q", ErrUnknownPlayer, act.PlayerID)
	}
	name := t.s.Players[i].Name
	t.s.Players = append(t.s.Players[:i], t.s.Players[i+1:]...)
	t.s.ActionLog = append(t.s.ActionLog, models.GameAction{
		Type:        string(ActionKickPlayer),
		PlayerID:    act.PlayerID,
		PlayerName:  name,
		Timestamp:   t.ts,
		Description: fmt.Sprintf("%s was removed from the game", name),
	})
	return nil
}

// recoverAccount transplants the source player's balance and loans onto the target, then resets the source.
func (t *transition) recoverAccount(act RecoverAccount) error {
	if act.SourcePlayerID == act.TargetPlayerID {
		return ErrSelfRecovery
	}
	src, err := t.player(act.SourcePlayerID)
	if err != nil {
		return err
	}
	dst, err := t.player(act.TargetPlayerID)
	if err != nil {
		return err
	}
	dst.Money = src.Money
	dst.Loans = append(dst.Loans, src.Loans...)
	src.Money = t.s.InitialMoney
	src.Loans = []models.Loan{}
	t.log(string(ActionRecoverAccount), dst.ID, dst.Money, fmt.Sprintf("%s recovered the account of %s", dst.Name, src.Name))
	return nil
}

func (t *transition) setInitialMoney(act SetInitialMoney) error {
	if act.Amount < 0 {
		return ErrInvalidAmount
	}
	t.s.InitialMoney = act.Amount
	if act.UpdateExisting {
		for i := range t.s.Players {
			t.s.Players[i].Money = act.Amount
		}
	}
	desc := fmt.Sprintf("Starting money set to %d", act.Amount)
	if act.UpdateExisting {
		desc += " for every player"
	}
	t.log(string(ActionSetInitialMoney), "", act.Amount, desc)
	return nil
}

func (t *transition) setPlayerActive(id string, active bool) error {
	p, err := t.player(id)
	if err != nil {
		return err
	}
	p.IsActive = active
	p.LastActive = t.ts
	return nil
}

func (t *transition) setNeedsAction(act SetNeedsAction) error {
	p, err := t.player(act.PlayerID)
	if err != nil {
		return err
	}
	p.NeedsAction = act.NeedsAction
	return nil
}

func (t *transition) addSpectator(act AddSpectator) error {
	if act.SpectatorID == "" {
		return ErrInvalidSpectator
	}
	if t.s.HasSpectator(act.SpectatorID) {
		return ErrDuplicateSpectator
	}
	t.s.Spectators = append(t.s.Spectators, act.SpectatorID)
	return nil
}

func (t *transition) removeSpectator(act RemoveSpectator) error {
	for i, id := range t.s.Spectators {
		if id == act.SpectatorID {
			t.s.Spectators = append(t.s.Spectators[:i], t.s.Spectators[i+1:]...)
			return nil
		}
	}
	return ErrUnknownSpectator
}

func (t *transition) cancel(act CancelGame) {
	t.s.GameStatus = models.StatusCancelled
	desc := "Game cancelled"
	if act.Reason != "" {
		desc += ": " + act.Reason
	}
	t.log(string(ActionCancelGame), "", 0, desc)
}

func (t *transition) hostHeartbeat() {
	t.s.HostLastActive = t.ts
	if t.s.GameStatus == models.StatusHostReconnecting {
		t.s.GameStatus = models.StatusActive
		t.log(LogHostReconnected, "", 0, fmt.Sprintf("%s reconnected", t.s.Host))
	}
}

func (t *transition) markHostReconnecting() error {
	if t.s.GameStatus != models.StatusActive {
		return ErrInvalidStatus
	}
	t.s.GameStatus = models.StatusHostReconnecting
	t.log(string(ActionMarkHostReconnecting), "", 0, fmt.Sprintf("Waiting for %s to reconnect", t.s.Host))
	return nil
}
