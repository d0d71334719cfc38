package syncagent

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jason-s-yu/pokerbank/internal/game"
	"github.com/jason-s-yu/pokerbank/internal/models"
	"github.com/jason-s-yu/pokerbank/internal/store"
)

const code = "SYNC01"

var epoch = time.UnixMilli(1_700_000_000_000)

func fixedClock() time.Time { return epoch }

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func newAgent(st store.StateStore, self models.Identity, opts ...Option) *Agent {
	base := []Option{WithLogger(quietLogger()), WithClock(fixedClock)}
	return New(st, code, self, append(base, opts...)...)
}

var (
	hostID   = models.Identity{Role: models.RoleHost, ID: "h", Name: "Hana"}
	playerID = models.Identity{Role: models.RolePlayer, ID: "p", Name: "Pico"}
)

// startGame creates a game seated by the host and has a second player join through its own agent.
func startGame(t *testing.T, st store.StateStore, popts ...Option) (*Agent, *Agent) {
	t.Helper()
	ctx := context.Background()
	now := models.Millis(epoch)

	initial := game.NewGame(code, hostID.Name, 500, now)
	initial, err := game.Apply(initial, game.JoinGame{Player: game.NewPlayer(initial, hostID.ID, hostID.Name, now)}, now)
	require.NoError(t, err)

	host := newAgent(st, hostID)
	require.NoError(t, host.Create(ctx, initial))

	player := newAgent(st, playerID, popts...)
	require.NoError(t, player.Load(ctx))
	_, err = player.Dispatch(game.JoinGame{Player: game.NewPlayer(player.State(), playerID.ID, playerID.Name, now)})
	require.NoError(t, err)
	require.NoError(t, player.Sync(ctx))
	require.NoError(t, host.Sync(ctx))
	require.NotNil(t, hostPlayer(host, playerID.ID))
	return host, player
}

func hostPlayer(a *Agent, id string) *models.Player {
	s := a.State()
	return s.Player(id)
}

func TestCreateRejectsTakenCode(t *testing.T) {
	mem := store.NewMemory()
	startGame(t, mem)

	again := newAgent(mem, hostID)
	err := again.Create(context.Background(), game.NewGame(code, "someone", 1, models.Millis(epoch)+99))
	assert.ErrorIs(t, err, store.ErrConflict)
}

func TestLoadMissingGame(t *testing.T) {
	a := newAgent(store.NewMemory(), playerID)
	assert.ErrorIs(t, a.Load(context.Background()), store.ErrNotFound)

	_, err := a.Dispatch(game.Fold{PlayerID: "p"})
	assert.Error(t, err)
}

func TestPullReplacesStateWithNewerSnapshot(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	host, player := startGame(t, mem)

	_, err := host.Dispatch(game.ToggleBankLoans{})
	require.NoError(t, err)
	require.NoError(t, host.Sync(ctx))
	assert.Zero(t, host.Pending())

	require.NoError(t, player.Sync(ctx))
	assert.True(t, player.State().BankLoans)
	assert.Equal(t, host.State(), player.State())
}

func TestStalePullIsNoop(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	_, player := startGame(t, mem)
	before := player.State()

	old := before.Clone()
	old.LastStateUpdate = 1
	old.Players = nil
	require.NoError(t, mem.Put(ctx, old))

	require.NoError(t, player.Sync(ctx))
	assert.Equal(t, before, player.State())
}

func TestConcurrentBetsAreBothKept(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	host, player := startGame(t, mem)

	_, err := host.Dispatch(game.PlaceBet{PlayerID: "h", Amount: 100})
	require.NoError(t, err)
	_, err = player.Dispatch(game.PlaceBet{PlayerID: "p", Amount: 150})
	require.NoError(t, err)

	require.NoError(t, host.Sync(ctx))
	require.NoError(t, player.Sync(ctx))
	require.NoError(t, host.Sync(ctx))

	for _, a := range []*Agent{host, player} {
		s := a.State()
		assert.Equal(t, int64(250), s.MoneyPool)
		assert.Equal(t, int64(150), s.HighestBet)
		assert.True(t, s.Player("h").NeedsAction)
		assert.False(t, s.Player("p").NeedsAction)
	}
}

// racingStore runs race once, just before the first compare-and-swap write reaches the store.
type racingStore struct {
	*store.Memory
	once sync.Once
	race func()
}

func (r *racingStore) PutIfVersion(ctx context.Context, s models.GameState, expected int64) error {
	r.once.Do(r.race)
	return r.Memory.PutIfVersion(ctx, s, expected)
}

func TestConflictingPushIsRebased(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	host, _ := startGame(t, mem)

	racing := &racingStore{Memory: mem}
	player := newAgent(racing, playerID)
	require.NoError(t, player.Load(ctx))

	racing.race = func() {
		_, err := host.Dispatch(game.PlaceBet{PlayerID: "h", Amount: 40})
		require.NoError(t, err)
		require.NoError(t, host.Sync(ctx))
	}

	_, err := player.Dispatch(game.PlaceBet{PlayerID: "p", Amount: 60})
	require.NoError(t, err)
	require.NoError(t, player.Sync(ctx))
	assert.Zero(t, player.Pending())

	stored, err := mem.Get(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, int64(100), stored.MoneyPool, "neither bet may be lost")
	assert.Equal(t, int64(460), stored.Player("h").Money)
	assert.Equal(t, int64(440), stored.Player("p").Money)
}

func TestInvalidatedActionIsDropped(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	host, player := startGame(t, mem)

	_, err := player.Dispatch(game.Fold{PlayerID: "p"})
	require.NoError(t, err)
	_, err = host.Dispatch(game.KickPlayer{PlayerID: "p"})
	require.NoError(t, err)
	require.NoError(t, host.Sync(ctx))

	require.NoError(t, player.Sync(ctx))
	assert.Zero(t, player.Pending())
	assert.Equal(t, host.State(), player.State())
}

func TestKickFiresOnce(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	var kicks atomic.Int32
	host, player := startGame(t, mem, OnKicked(func() { kicks.Add(1) }))

	_, err := host.Dispatch(game.KickPlayer{PlayerID: "p"})
	require.NoError(t, err)
	require.NoError(t, host.Sync(ctx))

	require.NoError(t, player.Sync(ctx))
	require.NoError(t, player.Sync(ctx))
	assert.Equal(t, int32(1), kicks.Load())
	assert.ErrorIs(t, player.done(), ErrKicked)
}

func TestCancelAndDeleteEndTheGame(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	var cancels atomic.Int32
	host, player := startGame(t, mem, OnCancelled(func() { cancels.Add(1) }))

	_, err := host.Dispatch(game.CancelGame{Reason: "done for tonight"})
	require.NoError(t, err)
	require.NoError(t, host.Sync(ctx))
	assert.ErrorIs(t, host.done(), ErrGameEnded)

	require.NoError(t, player.Sync(ctx))
	assert.Equal(t, int32(1), cancels.Load())
	assert.Equal(t, models.StatusCancelled, player.State().GameStatus)

	require.NoError(t, mem.Delete(ctx, code))
	assert.ErrorIs(t, player.Sync(ctx), store.ErrNotFound)
	assert.Equal(t, int32(1), cancels.Load())
	assert.ErrorIs(t, player.done(), ErrGameEnded)
}

// downStore fails every call with store.ErrUnavailable while down is set.
type downStore struct {
	*store.Memory
	down atomic.Bool
}

func (d *downStore) Get(ctx context.Context, c string) (models.GameState, error) {
	if d.down.Load() {
		return models.GameState{}, store.ErrUnavailable
	}
	return d.Memory.Get(ctx, c)
}

func (d *downStore) PutIfVersion(ctx context.Context, s models.GameState, expected int64) error {
	if d.down.Load() {
		return store.ErrUnavailable
	}
	return d.Memory.PutIfVersion(ctx, s, expected)
}

func TestUnavailableStoreKeepsLocalState(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	flaky := &downStore{Memory: mem}
	_, player := startGame(t, flaky)

	flaky.down.Store(true)
	_, err := player.Dispatch(game.PlaceBet{PlayerID: "p", Amount: 25})
	require.NoError(t, err)
	assert.ErrorIs(t, player.Sync(ctx), store.ErrUnavailable)
	assert.Equal(t, 1, player.Pending())
	assert.Equal(t, int64(25), player.State().MoneyPool)

	flaky.down.Store(false)
	require.NoError(t, player.Sync(ctx))
	assert.Zero(t, player.Pending())
	stored, err := mem.Get(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, int64(25), stored.MoneyPool)
}

func TestHostHeartbeatAndSilentHost(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	host, _ := startGame(t, mem)

	late := epoch.Add(45 * time.Second)
	watcher := New(mem, code, models.Identity{Role: models.RoleSpectator, ID: "s1"},
		WithLogger(quietLogger()), WithClock(func() time.Time { return late }))
	require.NoError(t, watcher.Load(ctx))
	require.NoError(t, watcher.Sync(ctx))
	assert.Equal(t, models.StatusHostReconnecting, watcher.State().GameStatus)

	host.clock = func() time.Time { return late }
	require.NoError(t, host.Sync(ctx))
	s := host.State()
	assert.Equal(t, models.StatusActive, s.GameStatus)
	assert.GreaterOrEqual(t, s.HostLastActive, models.Millis(late))
}

func TestRunStopsOnCancelAndMarksInactive(t *testing.T) {
	mem := store.NewMemory()
	_, player := startGame(t, mem)
	player.interval = 5 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- player.Run(ctx, mem) }()

	time.Sleep(30 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not stop")
	}

	stored, err := mem.Get(context.Background(), code)
	require.NoError(t, err)
	assert.False(t, stored.Player("p").IsActive)
}

func TestRunReturnsWhenKicked(t *testing.T) {
	mem := store.NewMemory()
	host, player := startGame(t, mem)
	player.interval = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- player.Run(ctx, mem) }()

	// give Run a moment to subscribe before the host writes
	time.Sleep(20 * time.Millisecond)
	_, err := host.Dispatch(game.KickPlayer{PlayerID: "p"})
	require.NoError(t, err)
	require.NoError(t, host.Sync(context.Background()))

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrKicked)
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not notice the kick")
	}
}

// flakyWatcher hands out change streams that close at once, like a websocket that keeps dropping.
type flakyWatcher struct {
	calls atomic.Int32
}

func (w *flakyWatcher) Watch(context.Context, string) (<-chan int64, error) {
	w.calls.Add(1)
	ch := make(chan int64)
	close(ch)
	return ch, nil
}

func TestRunReopensDroppedChangeStream(t *testing.T) {
	mem := store.NewMemory()
	_, player := startGame(t, mem)
	player.interval = 5 * time.Millisecond
	logger, hook := test.NewNullLogger()
	player.logger = logger

	w := &flakyWatcher{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- player.Run(ctx, w) }()

	require.Eventually(t, func() bool { return w.calls.Load() >= 3 }, 3*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	warned := false
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel {
			warned = true
		}
	}
	assert.True(t, warned, "a dropped stream is logged")
}
