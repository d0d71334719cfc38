// Package dispatch is the single entry point clients use to submit actions. It checks who is asking,
// applies the table policies, hands the action to the sync agent, and archives what was applied.
package dispatch

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/pokerbank/internal/game"
	"github.com/jason-s-yu/pokerbank/internal/models"
	"github.com/jason-s-yu/pokerbank/internal/presence"
)

// Applier applies an action to local state and persists it. *syncagent.Agent implements it.
type Applier interface {
	Dispatch(act game.Action) (models.GameState, error)
	State() models.GameState
}

// Recorder archives applied actions.
type Recorder interface {
	Record(ctx context.Context, rec models.ActionRecord) error
}

type Dispatcher struct {
	agent    Applier
	self     models.Identity
	recorder Recorder
	logger   *logrus.Logger
	newID    func() string
}

type Option func(*Dispatcher)

func WithRecorder(r Recorder) Option { return func(d *Dispatcher) { d.recorder = r } }

func WithLogger(l *logrus.Logger) Option { return func(d *Dispatcher) { d.logger = l } }

// WithIDGenerator overrides how loan ids are minted.
func WithIDGenerator(fn func() string) Option { return func(d *Dispatcher) { d.newID = fn } }

func New(agent Applier, self models.Identity, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		agent:  agent,
		self:   self,
		logger: logrus.StandardLogger(),
		newID:  func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Dispatcher) Identity() models.Identity { return d.self }

func (d *Dispatcher) State() models.GameState { return d.agent.State() }

// Submit runs act through permission and policy checks and applies it. Rejections are returned to
// the caller only.
func (d *Dispatcher) Submit(ctx context.Context, act game.Action) (models.GameState, error) {
	act = d.prepare(act)
	s := d.agent.State()
	if err := Authorize(d.self, s, act); err != nil {
		return s, err
	}
	if err := CheckPolicy(s, act); err != nil {
		return s, err
	}
	next, err := d.agent.Dispatch(act)
	if err != nil {
		return next, err
	}
	d.record(ctx, act, next)
	return next, nil
}

// prepare fills in ids the caller is not expected to choose.
func (d *Dispatcher) prepare(act game.Action) game.Action {
	if tl, ok := act.(game.TakeLoan); ok && tl.Loan.ID == "" {
		tl.Loan.ID = d.newID()
		return tl
	}
	return act
}

func (d *Dispatcher) record(ctx context.Context, act game.Action, s models.GameState) {
	if d.recorder == nil {
		return
	}
	env, err := game.EncodeAction(act)
	if err != nil {
		d.logger.WithError(err).Warn("failed to encode action record")
		return
	}
	rec := models.ActionRecord{
		GameCode:    s.GameCode,
		ActionIndex: len(s.ActionLog),
		ActorID:     d.self.ID,
		ActorRole:   d.self.Role,
		ActionType:  string(env.Type),
		Payload:     env.Payload,
		Version:     s.LastStateUpdate,
		Timestamp:   s.LastStateUpdate,
	}
	if err := d.recorder.Record(ctx, rec); err != nil {
		d.logger.WithFields(logrus.Fields{"game": s.GameCode, "action": rec.ActionType}).Warnf("failed to record action: %v", err)
	}
}

// Join seats this identity under name. The identity's id becomes the player id.
func (d *Dispatcher) Join(ctx context.Context, name string) (models.GameState, error) {
	s := d.agent.State()
	p := game.NewPlayer(s, d.self.ID, name, 0)
	return d.Submit(ctx, game.JoinGame{Player: p})
}

// Spectate registers this identity as a spectator.
func (d *Dispatcher) Spectate(ctx context.Context) (models.GameState, error) {
	return d.Submit(ctx, game.AddSpectator{SpectatorID: d.self.ID})
}

func (d *Dispatcher) Bet(ctx context.Context, amount int64) (models.GameState, error) {
	return d.Submit(ctx, game.PlaceBet{PlayerID: d.self.ID, Amount: amount})
}

func (d *Dispatcher) Fold(ctx context.Context) (models.GameState, error) {
	return d.Submit(ctx, game.Fold{PlayerID: d.self.ID})
}

func (d *Dispatcher) EndBetting(ctx context.Context) (models.GameState, error) {
	return d.Submit(ctx, game.EndBetting{PlayerID: d.self.ID})
}

func (d *Dispatcher) CancelEndBetting(ctx context.Context) (models.GameState, error) {
	return d.Submit(ctx, game.CancelEndBetting{PlayerID: d.self.ID})
}

// AdvanceRound starts the next round, or the next epoch once the final round is done.
func (d *Dispatcher) AdvanceRound(ctx context.Context) (models.GameState, error) {
	return d.Submit(ctx, game.NextRoundAction(d.agent.State()))
}

// SelectWinner awards the pot to the player called name (case-insensitive) or with that id.
func (d *Dispatcher) SelectWinner(ctx context.Context, who string) (models.GameState, error) {
	id, err := d.resolvePlayer(who)
	if err != nil {
		return d.agent.State(), err
	}
	return d.Submit(ctx, game.SelectWinner{PlayerID: id})
}

// BankLoan borrows amount from the house.
func (d *Dispatcher) BankLoan(ctx context.Context, amount int64, kind models.InterestType, interest int64) (models.GameState, error) {
	return d.Submit(ctx, game.TakeLoan{PlayerID: d.self.ID, Loan: models.Loan{
		From:           models.BankLender,
		Amount:         amount,
		InterestType:   kind,
		InterestAmount: interest,
	}})
}

// RequestLoan asks the player lender for amount. Nothing moves until the lender approves.
func (d *Dispatcher) RequestLoan(ctx context.Context, lender string, amount int64, kind models.InterestType, interest int64) (models.GameState, error) {
	id, err := d.resolvePlayer(lender)
	if err != nil {
		return d.agent.State(), err
	}
	return d.Submit(ctx, game.TakeLoan{PlayerID: d.self.ID, Loan: models.Loan{
		From:           id,
		Amount:         amount,
		InterestType:   kind,
		InterestAmount: interest,
	}})
}

// PendingRequests lists loan requests waiting on this identity's approval, oldest first.
func (d *Dispatcher) PendingRequests() []models.LoanRequest {
	var out []models.LoanRequest
	for _, r := range d.agent.State().LoanRequests {
		if r.Status == models.LoanPending && r.FromPlayerID == d.self.ID {
			out = append(out, r)
		}
	}
	return out
}

func (d *Dispatcher) ApproveLoan(ctx context.Context, requestID string) (models.GameState, error) {
	return d.Submit(ctx, game.ApproveLoan{LoanRequestID: requestID})
}

func (d *Dispatcher) RejectLoan(ctx context.Context, requestID string) (models.GameState, error) {
	return d.Submit(ctx, game.RejectLoan{LoanRequestID: requestID})
}

func (d *Dispatcher) PayLoan(ctx context.Context, loanID string) (models.GameState, error) {
	return d.Submit(ctx, game.PayLoan{PlayerID: d.self.ID, LoanID: loanID})
}

func (d *Dispatcher) Kick(ctx context.Context, who string) (models.GameState, error) {
	id, err := d.resolvePlayer(who)
	if err != nil {
		return d.agent.State(), err
	}
	return d.Submit(ctx, game.KickPlayer{PlayerID: id})
}

// RecoverAccount moves the seat of from onto to, for a player who rejoined under a new id.
func (d *Dispatcher) RecoverAccount(ctx context.Context, from, to string) (models.GameState, error) {
	src, err := d.resolvePlayer(from)
	if err != nil {
		return d.agent.State(), err
	}
	dst, err := d.resolvePlayer(to)
	if err != nil {
		return d.agent.State(), err
	}
	return d.Submit(ctx, game.RecoverAccount{SourcePlayerID: src, TargetPlayerID: dst})
}

func (d *Dispatcher) SetInitialMoney(ctx context.Context, amount int64, updateExisting bool) (models.GameState, error) {
	return d.Submit(ctx, game.SetInitialMoney{Amount: amount, UpdateExisting: updateExisting})
}

func (d *Dispatcher) ToggleBankLoans(ctx context.Context) (models.GameState, error) {
	return d.Submit(ctx, game.ToggleBankLoans{})
}

func (d *Dispatcher) Cancel(ctx context.Context, reason string) (models.GameState, error) {
	return d.Submit(ctx, game.CancelGame{Reason: reason})
}

// SetVisible forwards a client visibility change as a presence action.
func (d *Dispatcher) SetVisible(ctx context.Context, visible bool) (models.GameState, error) {
	return d.Submit(ctx, presence.Visibility(d.self.ID, visible))
}

// resolvePlayer maps a player id or a case-insensitive name to a player id.
func (d *Dispatcher) resolvePlayer(who string) (string, error) {
	s := d.agent.State()
	if p := s.Player(who); p != nil {
		return p.ID, nil
	}
	for _, p := range s.Players {
		if strings.EqualFold(p.Name, strings.TrimSpace(who)) {
			return p.ID, nil
		}
	}
	return "", game.ErrUnknownPlayer
}
