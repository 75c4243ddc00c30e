package repository

import (
	"context"
	"fmt"
)

// Portable DDL: runs unchanged on Postgres and SQLite.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS input_events (
		id          TEXT PRIMARY KEY,
		session_id  TEXT NOT NULL,
		tag         TEXT NOT NULL,
		name        TEXT,
		secs        BIGINT NOT NULL,
		nanos       BIGINT NOT NULL,
		payload     TEXT NOT NULL,
		received_at BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS input_events_tag_received_idx ON input_events (tag, received_at)`,
	`CREATE INDEX IF NOT EXISTS input_events_received_idx ON input_events (received_at)`,
}

// InitSchema creates the event log tables if they do not exist.
func InitSchema(ctx context.Context, db DBTX) error {
	return WithTx(ctx, db, func(tx DBTX) error {
		for _, stmt := range schema {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("failed to apply schema: %w", err)
			}
		}
		return nil
	})
}
