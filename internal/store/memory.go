package store

import (
	"context"
	"sync"

	"github.com/jason-s-yu/pokerbank/internal/models"
)

// Memory is an in-process StateStore used by the server's memory backend and by tests.
type Memory struct {
	mu       sync.Mutex
	games    map[string]models.GameState
	watchers map[string]map[chan int64]struct{}
}

func NewMemory() *Memory {
	return &Memory{
		games:    make(map[string]models.GameState),
		watchers: make(map[string]map[chan int64]struct{}),
	}
}

func (m *Memory) Get(ctx context.Context, code string) (models.GameState, error) {
	if err := ctx.Err(); err != nil {
		return models.GameState{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.games[code]
	if !ok {
		return models.GameState{}, ErrNotFound
	}
	return g.Clone(), nil
}

func (m *Memory) Put(ctx context.Context, state models.GameState) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store(state)
	return nil
}

func (m *Memory) PutIfVersion(ctx context.Context, state models.GameState, expected int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.version(state.GameCode) != expected {
		return ErrConflict
	}
	m.store(state)
	return nil
}

func (m *Memory) Delete(ctx context.Context, code string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.games, code)
	return nil
}

// Version returns the stored version for code, or 0 when absent.
func (m *Memory) Version(code string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.version(code)
}

func (m *Memory) Watch(ctx context.Context, code string) (<-chan int64, error) {
	ch := make(chan int64, 8)
	m.mu.Lock()
	if m.watchers[code] == nil {
		m.watchers[code] = make(map[chan int64]struct{})
	}
	m.watchers[code][ch] = struct{}{}
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		delete(m.watchers[code], ch)
		if len(m.watchers[code]) == 0 {
			delete(m.watchers, code)
		}
		m.mu.Unlock()
		close(ch)
	}()
	return ch, nil
}

func (m *Memory) version(code string) int64 {
	if g, ok := m.games[code]; ok {
		return g.LastStateUpdate
	}
	return 0
}

// store must be called with mu held.
func (m *Memory) store(state models.GameState) {
	m.games[state.GameCode] = state.Clone()
	for ch := range m.watchers[state.GameCode] {
		select {
		case ch <- state.LastStateUpdate:
		default:
			// slow watcher; it will catch up on the next pull
		}
	}
}
