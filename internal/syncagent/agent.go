// Package syncagent keeps one client's copy of a game convergent with the shared state store.
package syncagent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/pokerbank/internal/game"
	"github.com/jason-s-yu/pokerbank/internal/models"
	"github.com/jason-s-yu/pokerbank/internal/presence"
	"github.com/jason-s-yu/pokerbank/internal/store"
)

const (
	DefaultInterval = time.Second

	maxPushRetries = 3
	// shutdownTimeout bounds the final mark-inactive write made when Run exits.
	shutdownTimeout = 2 * time.Second
	// maxWatchBackoff caps the wait between attempts to reopen a dropped change stream.
	maxWatchBackoff = 30 * time.Second
)

var (
	// ErrKicked is returned by Run when this client's player was removed by the host.
	ErrKicked = errors.New("removed from game by host")
	// ErrGameEnded is returned by Run once the game is cancelled or deleted.
	ErrGameEnded = errors.New("game has ended")
)

// Agent owns a client's local GameState. Local actions are applied immediately and remembered as
// pending until a push lands; remote snapshots either replace local state outright or, when
// local actions are still pending, become the base those actions are replayed onto.
type Agent struct {
	store    store.StateStore
	code     string
	self     models.Identity
	tracker  presence.Tracker
	logger   *logrus.Logger
	interval time.Duration
	clock    func() time.Time

	onChange    func(models.GameState)
	onKicked    func()
	onCancelled func()

	// syncMu serializes store I/O; mu guards the fields below and is never held across I/O.
	syncMu sync.Mutex
	mu     sync.Mutex

	state   models.GameState
	base    int64 // store version the local state derives from
	acked   int64 // last version known to be in the store
	pending []game.Action
	loaded  bool
	deleted bool
	kicked  bool
	ended   bool

	wake chan struct{}
}

type Option func(*Agent)

func WithLogger(l *logrus.Logger) Option { return func(a *Agent) { a.logger = l } }

func WithInterval(d time.Duration) Option { return func(a *Agent) { a.interval = d } }

func WithTracker(t presence.Tracker) Option { return func(a *Agent) { a.tracker = t } }

// WithClock overrides the wall clock used to stamp transitions.
func WithClock(now func() time.Time) Option { return func(a *Agent) { a.clock = now } }

func OnChange(fn func(models.GameState)) Option { return func(a *Agent) { a.onChange = fn } }

func OnKicked(fn func()) Option { return func(a *Agent) { a.onKicked = fn } }

func OnCancelled(fn func()) Option { return func(a *Agent) { a.onCancelled = fn } }

func New(st store.StateStore, code string, self models.Identity, opts ...Option) *Agent {
	a := &Agent{
		store:    st,
		code:     code,
		self:     self,
		tracker:  presence.NewTracker(),
		logger:   logrus.StandardLogger(),
		interval: DefaultInterval,
		clock:    time.Now,
		wake:     make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Agent) Code() string              { return a.code }
func (a *Agent) Identity() models.Identity { return a.self }

func (a *Agent) now() int64 { return models.Millis(a.clock()) }

func (a *Agent) log() *logrus.Entry {
	return a.logger.WithFields(logrus.Fields{"game": a.code, "role": a.self.Role, "id": a.self.ID})
}

// State returns a copy of the current local state.
func (a *Agent) State() models.GameState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state.Clone()
}

// Pending reports how many local actions have not yet been acknowledged by the store.
func (a *Agent) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.pending)
}

// Create publishes a brand new game. It fails with store.ErrConflict if the code is already taken.
func (a *Agent) Create(ctx context.Context, initial models.GameState) error {
	a.syncMu.Lock()
	defer a.syncMu.Unlock()

	a.mu.Lock()
	a.state = initial.Clone()
	a.base, a.acked = 0, 0
	a.pending = nil
	a.loaded = true
	a.mu.Unlock()

	if err := a.push(ctx); err != nil {
		return fmt.Errorf("create game %s: %w", a.code, err)
	}
	a.changed()
	return nil
}

// Load fetches the current snapshot. It must succeed before actions can be dispatched on a joined game.
func (a *Agent) Load(ctx context.Context) error {
	a.syncMu.Lock()
	defer a.syncMu.Unlock()
	if err := a.pull(ctx); err != nil {
		return fmt.Errorf("load game %s: %w", a.code, err)
	}
	a.changed()
	return nil
}

// Dispatch applies act to the local state and queues it for the next push. A rejected action leaves
// local state untouched and is not queued.
func (a *Agent) Dispatch(act game.Action) (models.GameState, error) {
	a.mu.Lock()
	next, err := a.applyLocked(act)
	a.mu.Unlock()
	if err != nil {
		a.log().WithField("action", act.Type()).Debugf("rejected: %v", err)
		return next, err
	}
	a.changed()
	a.poke()
	return next, nil
}

func (a *Agent) applyLocked(act game.Action) (models.GameState, error) {
	if !a.loaded {
		return a.state.Clone(), fmt.Errorf("game %s is not loaded", a.code)
	}
	next, err := game.Apply(a.state, act, a.now())
	if err != nil {
		return a.state.Clone(), err
	}
	if next.LastStateUpdate != a.state.LastStateUpdate {
		a.pending = append(a.pending, act)
	}
	a.state = next
	return next.Clone(), nil
}

// poke asks the run loop to sync before the next tick.
func (a *Agent) poke() {
	select {
	case a.wake <- struct{}{}:
	default:
	}
}

// Sync performs one full cycle: pull, presence bookkeeping, push. A push that loses a
// compare-and-swap race is rebased onto the winning snapshot and retried.
func (a *Agent) Sync(ctx context.Context) error {
	a.syncMu.Lock()
	defer a.syncMu.Unlock()

	if err := a.pull(ctx); errors.Is(err, store.ErrNotFound) {
		a.changed()
		return err
	} else if errors.Is(err, store.ErrUnavailable) {
		a.log().Warnf("pull failed, keeping local state: %v", err)
	} else if err != nil {
		return err
	}
	a.heartbeat()

	var err error
	for attempt := 0; attempt <= maxPushRetries; attempt++ {
		err = a.push(ctx)
		if !errors.Is(err, store.ErrConflict) {
			break
		}
		a.log().WithField("attempt", attempt+1).Debug("push conflicted, rebasing")
		if perr := a.pull(ctx); perr != nil {
			return perr
		}
	}
	a.changed()
	if errors.Is(err, store.ErrUnavailable) {
		a.log().Warnf("push deferred: %v", err)
	}
	return err
}

// pull fetches the stored snapshot and folds it into local state.
func (a *Agent) pull(ctx context.Context) error {
	remote, err := a.store.Get(ctx, a.code)
	a.mu.Lock()
	defer a.mu.Unlock()
	if errors.Is(err, store.ErrNotFound) {
		if a.base == 0 && a.loaded {
			// created locally and not yet published
			return nil
		}
		if a.loaded {
			a.deleted = true
		}
		return err
	}
	if err != nil {
		return err
	}

	if !a.loaded {
		a.state = remote
		a.base, a.acked = remote.LastStateUpdate, remote.LastStateUpdate
		a.loaded = true
		return nil
	}
	if remote.LastStateUpdate <= a.base {
		return nil
	}

	if len(a.pending) == 0 {
		next, err := game.Apply(a.state, game.SetInitialState{State: remote}, a.now())
		if err != nil {
			a.log().Debugf("ignoring snapshot %d: %v", remote.LastStateUpdate, err)
			return nil
		}
		a.state = next
		a.base, a.acked = remote.LastStateUpdate, remote.LastStateUpdate
		return nil
	}

	a.rebaseLocked(remote)
	return nil
}

// rebaseLocked replays pending actions onto remote. Actions that are no longer valid are dropped.
func (a *Agent) rebaseLocked(remote models.GameState) {
	next := remote
	kept := a.pending[:0]
	for _, act := range a.pending {
		applied, err := game.Apply(next, act, a.now())
		if err != nil {
			a.log().WithField("action", act.Type()).Infof("dropping action invalidated by remote update: %v", err)
			continue
		}
		next = applied
		kept = append(kept, act)
	}
	a.state = next
	a.pending = kept
	a.base, a.acked = remote.LastStateUpdate, remote.LastStateUpdate
}

// push writes local state when it differs from the last acknowledged version.
func (a *Agent) push(ctx context.Context) error {
	a.mu.Lock()
	if !a.loaded || a.state.LastStateUpdate == a.acked {
		a.mu.Unlock()
		return nil
	}
	snap := a.state.Clone()
	expected := a.base
	n := len(a.pending)
	a.mu.Unlock()

	var err error
	if vs, ok := a.store.(store.VersionedStore); ok {
		err = vs.PutIfVersion(ctx, snap, expected)
	} else {
		err = a.store.Put(ctx, snap)
	}
	if err != nil {
		return err
	}

	a.mu.Lock()
	// actions dispatched during the write stay pending on top of the pushed snapshot
	a.pending = append([]game.Action(nil), a.pending[n:]...)
	a.base, a.acked = snap.LastStateUpdate, snap.LastStateUpdate
	a.mu.Unlock()
	a.log().WithField("version", snap.LastStateUpdate).Debug("pushed snapshot")
	return nil
}

// heartbeat dispatches this client's own liveness actions and, for non-hosts, escalates a silent host.
func (a *Agent) heartbeat() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.loaded {
		return
	}
	now := a.now()
	var acts []game.Action
	if a.self.IsHost() {
		if hb := a.tracker.HostHeartbeat(a.state, now); hb != nil {
			acts = append(acts, hb)
		}
	} else {
		acts = append(acts, a.tracker.HostActions(a.state, now)...)
	}
	if a.self.Seated() {
		if hb := a.tracker.PlayerHeartbeat(a.state, a.self.ID, now); hb != nil {
			acts = append(acts, hb)
		}
	}
	for _, act := range acts {
		if _, err := a.applyLocked(act); err != nil {
			a.log().WithField("action", act.Type()).Debugf("presence action rejected: %v", err)
		}
	}
}

// changed fires OnChange and detects the explicit kick and cancel events.
func (a *Agent) changed() {
	a.mu.Lock()
	snap := a.state.Clone()
	fireKick := !a.kicked && a.wasKickedLocked()
	if fireKick {
		a.kicked = true
	}
	fireEnd := !a.ended && a.loaded && (a.deleted || snap.GameStatus == models.StatusCancelled)
	if fireEnd {
		a.ended = true
	}
	a.mu.Unlock()

	if a.onChange != nil {
		a.onChange(snap)
	}
	if fireKick {
		a.log().Info("removed from game by host")
		if a.onKicked != nil {
			a.onKicked()
		}
	}
	if fireEnd {
		a.log().Info("game cancelled")
		if a.onCancelled != nil {
			a.onCancelled()
		}
	}
}

// wasKickedLocked looks for a KICK_PLAYER log entry naming this client's seat.
func (a *Agent) wasKickedLocked() bool {
	if a.self.IsSpectator() || a.self.ID == "" || a.state.Player(a.self.ID) != nil {
		return false
	}
	for i := len(a.state.ActionLog) - 1; i >= 0; i-- {
		e := a.state.ActionLog[i]
		if e.Type == string(game.ActionKickPlayer) && e.PlayerID == a.self.ID {
			return true
		}
	}
	return false
}

func (a *Agent) done() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.kicked {
		return ErrKicked
	}
	if a.deleted || (a.ended && a.state.LastStateUpdate == a.acked) {
		return ErrGameEnded
	}
	return nil
}

// Run drives the sync loop until ctx is cancelled, the player is kicked, or the game ends. When a
// Watcher is supplied, change notifications trigger a sync between ticks. On the way out a seated
// player or spectator records its departure with one last push.
func (a *Agent) Run(ctx context.Context, w store.Watcher) error {
	var (
		changes   <-chan int64
		backoff   time.Duration
		rewatchAt time.Time
	)
	retryLater := func() {
		backoff = min(max(2*backoff, a.interval), maxWatchBackoff)
		rewatchAt = time.Now().Add(backoff)
	}
	watch := func() {
		ch, err := w.Watch(ctx, a.code)
		if err != nil {
			retryLater()
			a.log().Warnf("change notifications unavailable, polling for %s: %v", backoff, err)
			return
		}
		if backoff > 0 {
			a.log().Info("change notifications restored")
		}
		changes = ch
	}
	if w != nil {
		watch()
	}

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()
	a.log().WithField("interval", a.interval).Info("sync loop started")

	for {
		if err := a.done(); err != nil {
			a.log().Infof("sync loop stopped: %v", err)
			return err
		}
		select {
		case <-ctx.Done():
			a.leave()
			a.log().Info("sync loop stopped")
			return nil
		case <-ticker.C:
			if w != nil && changes == nil && ctx.Err() == nil && !time.Now().Before(rewatchAt) {
				watch()
			}
		case <-a.wake:
		case v, ok := <-changes:
			if !ok {
				changes = nil
				if ctx.Err() == nil {
					retryLater()
					a.log().Warnf("change stream closed, polling for %s before reconnecting", backoff)
				}
				continue
			}
			backoff = 0
			a.log().WithField("version", v).Debug("change notification")
		}
		if err := a.Sync(ctx); err != nil && !errors.Is(err, store.ErrUnavailable) && ctx.Err() == nil {
			a.log().Warnf("sync failed: %v", err)
		}
	}
}

// leave pushes a final SET_PLAYER_INACTIVE or REMOVE_SPECTATOR for this client.
func (a *Agent) leave() {
	var act game.Action
	switch {
	case a.self.IsSpectator():
		act = game.RemoveSpectator{SpectatorID: a.self.ID}
	case a.self.Seated():
		act = game.SetPlayerInactive{PlayerID: a.self.ID}
	default:
		return
	}
	if _, err := a.Dispatch(act); err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	a.syncMu.Lock()
	defer a.syncMu.Unlock()
	for attempt := 0; attempt <= maxPushRetries; attempt++ {
		err := a.push(ctx)
		if err == nil {
			return
		}
		if !errors.Is(err, store.ErrConflict) || a.pull(ctx) != nil {
			a.log().Warnf("failed to record departure: %v", err)
			return
		}
	}
}
