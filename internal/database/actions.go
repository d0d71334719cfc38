package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jason-s-yu/pokerbank/internal/models"
)

// InsertActionRecords archives a batch of action records in one transaction. Records already
// archived are skipped, so a redelivered batch is harmless.
func InsertActionRecords(ctx context.Context, pool *pgxpool.Pool, records []models.ActionRecord) error {
	if len(records) == 0 {
		return nil
	}
	err := beginTxFunc(ctx, pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		q := `
			INSERT INTO game_actions (
				game_code, action_index, actor_id, actor_role, action_type, action_payload, version
			) VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (game_code, version, action_type, actor_id) DO NOTHING
		`
		batch := &pgx.Batch{}
		for _, rec := range records {
			var payload []byte
			if len(rec.Payload) > 0 {
				payload = rec.Payload
			}
			batch.Queue(q, rec.GameCode, rec.ActionIndex, rec.ActorID, string(rec.ActorRole), rec.ActionType, payload, rec.Version)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return fmt.Errorf("insert action records: %w", err)
	}
	return nil
}
