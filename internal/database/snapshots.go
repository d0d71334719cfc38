package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jason-s-yu/pokerbank/internal/models"
	"github.com/jason-s-yu/pokerbank/internal/store"
)

// Store persists snapshots in game_snapshots. It implements store.VersionedStore.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// classify maps driver errors onto the store taxonomy. A cancelled or expired ctx is returned as
// is; anything else that is not a server-side SQL error is treated as the database being unreachable.
func classify(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return err
	}
	return fmt.Errorf("%w: %w", store.ErrUnavailable, err)
}

func (s *Store) Get(ctx context.Context, code string) (models.GameState, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, `SELECT state FROM game_snapshots WHERE game_code = $1`, code).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.GameState{}, store.ErrNotFound
	}
	if err != nil {
		return models.GameState{}, classify(ctx, err)
	}
	var state models.GameState
	if err := json.Unmarshal(data, &state); err != nil {
		return models.GameState{}, fmt.Errorf("corrupt snapshot for %s: %w", code, err)
	}
	return state, nil
}

func (s *Store) Put(ctx context.Context, state models.GameState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	q := `
		INSERT INTO game_snapshots (game_code, version, state, status, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (game_code)
		DO UPDATE SET version = $2, state = $3, status = $4, updated_at = NOW()
	`
	if _, err := s.pool.Exec(ctx, q, state.GameCode, state.LastStateUpdate, data, string(state.GameStatus)); err != nil {
		return classify(ctx, err)
	}
	return nil
}

// PutIfVersion updates the row only while its version is still expected. Expected 0 inserts a
// new game and conflicts if the code is already taken.
func (s *Store) PutIfVersion(ctx context.Context, state models.GameState, expected int64) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	var tag pgconn.CommandTag
	if expected == 0 {
		tag, err = s.pool.Exec(ctx, `
			INSERT INTO game_snapshots (game_code, version, state, status)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (game_code) DO NOTHING
		`, state.GameCode, state.LastStateUpdate, data, string(state.GameStatus))
	} else {
		tag, err = s.pool.Exec(ctx, `
			UPDATE game_snapshots
			SET version = $2, state = $3, status = $4, updated_at = NOW()
			WHERE game_code = $1 AND version = $5
		`, state.GameCode, state.LastStateUpdate, data, string(state.GameStatus), expected)
	}
	if err != nil {
		return classify(ctx, err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrConflict
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, code string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM game_snapshots WHERE game_code = $1`, code); err != nil {
		return classify(ctx, err)
	}
	return nil
}
