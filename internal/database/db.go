package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DB is the process-wide pool, set by ConnectDB.
var DB *pgxpool.Pool

// ConnectDB opens the pool for connStr, verifies it, and creates the schema if needed.
func ConnectDB(ctx context.Context, connStr string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to parse pgx config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create pgx pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}
	if err := EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	DB = pool
	return pool, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS game_snapshots (
	game_code  TEXT PRIMARY KEY,
	version    BIGINT NOT NULL,
	state      JSONB NOT NULL,
	status     TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS game_actions (
	id             BIGSERIAL PRIMARY KEY,
	game_code      TEXT NOT NULL,
	action_index   INTEGER NOT NULL,
	actor_id       TEXT NOT NULL,
	actor_role     TEXT NOT NULL,
	action_type    TEXT NOT NULL,
	action_payload JSONB,
	version        BIGINT NOT NULL,
	recorded_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (game_code, version, action_type, actor_id)
);

CREATE INDEX IF NOT EXISTS game_actions_game_code_idx ON game_actions (game_code, version);
`

// EnsureSchema creates the snapshot and action archive tables.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}
