// Package localcache keeps the last known snapshot of each game on the client's disk, so a client
// can keep showing state while the shared store is unreachable.
package localcache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/jason-s-yu/pokerbank/internal/models"
	"github.com/jason-s-yu/pokerbank/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS snapshots (
	game_code  TEXT PRIMARY KEY,
	version    INTEGER NOT NULL,
	state      TEXT NOT NULL,
	updated_at INTEGER NOT NULL DEFAULT (CAST(strftime('%s','now') AS INTEGER) * 1000)
)`

// Store is a SQLite-backed store.StateStore. A write never replaces a newer cached snapshot.
type Store struct {
	sqlDB *sql.DB
}

// Open opens (creating if needed) the cache database at path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("cache path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close releases the SQLite connection.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) Get(ctx context.Context, code string) (models.GameState, error) {
	var data string
	err := s.sqlDB.QueryRowContext(ctx, `SELECT state FROM snapshots WHERE game_code = ?`, code).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return models.GameState{}, store.ErrNotFound
	}
	if err != nil {
		return models.GameState{}, fmt.Errorf("read cached snapshot: %w", err)
	}
	var state models.GameState
	if err := json.Unmarshal([]byte(data), &state); err != nil {
		return models.GameState{}, fmt.Errorf("decode cached snapshot: %w", err)
	}
	return state, nil
}

func (s *Store) Put(ctx context.Context, state models.GameState) error {
	if state.GameCode == "" {
		return fmt.Errorf("game code is required")
	}
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	_, err = s.sqlDB.ExecContext(ctx, `
INSERT INTO snapshots (game_code, version, state) VALUES (?, ?, ?)
ON CONFLICT (game_code) DO UPDATE SET
	version = excluded.version,
	state = excluded.state,
	updated_at = excluded.updated_at
WHERE excluded.version >= snapshots.version
`, state.GameCode, state.LastStateUpdate, string(data))
	if err != nil {
		return fmt.Errorf("write cached snapshot: %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, code string) error {
	if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM snapshots WHERE game_code = ?`, code); err != nil {
		return fmt.Errorf("delete cached snapshot: %w", err)
	}
	return nil
}
