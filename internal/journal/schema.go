package journal

import (
	"context"
	"fmt"
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS position_updates (
	id           UUID PRIMARY KEY,
	received_at  BIGINT NOT NULL,
	endpoint     TEXT NOT NULL,
	client_id    TEXT NOT NULL,
	symbol       TEXT NOT NULL,
	net_position DOUBLE PRECISION NOT NULL
)`

const createIndexSQL = `
CREATE INDEX IF NOT EXISTS position_updates_client_symbol_idx
	ON position_updates (client_id, symbol, received_at DESC)`

const insertSQL = `
	INSERT INTO position_updates (id, received_at, endpoint, client_id, symbol, net_position)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (id) DO NOTHING`

// EnsureSchema creates the journal table and index if missing.
func EnsureSchema(ctx context.Context, db DB) error {
	if _, err := db.Exec(ctx, createTableSQL); err != nil {
		return fmt.Errorf("create position_updates: %w", err)
	}
	if _, err := db.Exec(ctx, createIndexSQL); err != nil {
		return fmt.Errorf("create position_updates index: %w", err)
	}
	return nil
}
