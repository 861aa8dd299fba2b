package postgres

import (
	"context"
	"fmt"
)

// Migrate creates the tables the store needs. Idempotent; intended for
// development and tests. Production deployments run the same DDL through
// their migration tooling.
func (s *Store) Migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS payment_ledger_entries (
			id                 TEXT PRIMARY KEY,
			owner_id           TEXT NOT NULL,
			kind               TEXT NOT NULL,
			expected_amount    DOUBLE PRECISION NOT NULL,
			status             TEXT NOT NULL DEFAULT 'pending',
			gateway_payment_id TEXT,
			paid_at            TIMESTAMPTZ,
			UNIQUE (kind, owner_id)
		)`,
		`CREATE TABLE IF NOT EXISTS owner_entities (
			id     TEXT NOT NULL,
			kind   TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			PRIMARY KEY (kind, id)
		)`,
		`CREATE TABLE IF NOT EXISTS audit_entries (
			id              BIGSERIAL PRIMARY KEY,
			owner_id        TEXT NOT NULL,
			previous_status TEXT NOT NULL,
			new_status      TEXT NOT NULL,
			reason          TEXT NOT NULL,
			actor           TEXT NOT NULL,
			at              TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS webhook_processed (
			payment_id         TEXT PRIMARY KEY,
			webhook_kind       TEXT NOT NULL,
			status             TEXT NOT NULL,
			external_reference TEXT NOT NULL,
			processed_at       TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_webhook_processed_processed_at
			ON webhook_processed (processed_at)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_entries_owner
			ON audit_entries (owner_id)`,
	}

	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}
