// Package postgres provides a PostgreSQL implementation of the
// payrecon.Store interface. The multi-entity status transition runs
// inside a single SQL transaction, and the uniqueness constraint on
// webhook_processed.payment_id is what makes duplicate-delivery races
// safe: a conflicting insert surfaces as payrecon.ErrDuplicateRecord.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aulatech/payrecon/pkg/payrecon"
)

// SQLSTATE for unique constraint violations.
const uniqueViolationCode = "23505"

// Store implements payrecon.Store using PostgreSQL.
type Store struct {
	pool   *pgxpool.Pool
	config Config
}

// Config holds PostgreSQL store configuration.
type Config struct {
	// ConnectionString is the PostgreSQL connection string.
	ConnectionString string

	// Pool configuration
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxConns:        10,
		MinConns:        2,
		MaxConnLifetime: time.Hour,
		MaxConnIdleTime: 30 * time.Minute,
	}
}

// New creates a new PostgreSQL store.
func New(ctx context.Context, config Config) (*Store, error) {
	if config.ConnectionString == "" {
		return nil, fmt.Errorf("connection string is required")
	}

	poolConfig, err := pgxpool.ParseConfig(config.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	if config.MaxConns > 0 {
		poolConfig.MaxConns = config.MaxConns
	}
	if config.MinConns > 0 {
		poolConfig.MinConns = config.MinConns
	}
	if config.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = config.MaxConnLifetime
	}
	if config.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = config.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{pool: pool, config: config}, nil
}

// Close closes the connection pool.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// GetLedgerEntry implements payrecon.Store.
func (s *Store) GetLedgerEntry(ctx context.Context, id string) (*payrecon.LedgerEntry, error) {
	return scanLedgerEntry(s.pool.QueryRow(ctx,
		`SELECT id, owner_id, kind, expected_amount, status, gateway_payment_id, paid_at
			FROM payment_ledger_entries WHERE id = $1`,
		id))
}

// FindLedgerEntry implements payrecon.Store.
func (s *Store) FindLedgerEntry(ctx context.Context, kind payrecon.ReferenceKind, ownerID string) (*payrecon.LedgerEntry, error) {
	entry, err := scanLedgerEntry(s.pool.QueryRow(ctx,
		`SELECT id, owner_id, kind, expected_amount, status, gateway_payment_id, paid_at
			FROM payment_ledger_entries WHERE kind = $1 AND owner_id = $2`,
		string(kind), ownerID))
	if errors.Is(err, payrecon.ErrLedgerEntryNotFound) {
		return nil, nil
	}
	return entry, err
}

func scanLedgerEntry(row pgx.Row) (*payrecon.LedgerEntry, error) {
	var entry payrecon.LedgerEntry
	var kind string
	var gatewayPaymentID *string
	var paidAt *time.Time

	err := row.Scan(&entry.ID, &entry.OwnerID, &kind, &entry.ExpectedAmount,
		&entry.Status, &gatewayPaymentID, &paidAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, payrecon.ErrLedgerEntryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger entry: %w", err)
	}

	entry.Kind = payrecon.ReferenceKind(kind)
	if gatewayPaymentID != nil {
		entry.GatewayPaymentID = *gatewayPaymentID
	}
	entry.PaidAt = paidAt
	return &entry, nil
}

// GetOwner implements payrecon.Store.
func (s *Store) GetOwner(ctx context.Context, kind payrecon.ReferenceKind, ownerID string) (*payrecon.OwnerEntity, error) {
	return getOwner(ctx, s.pool, kind, ownerID)
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func getOwner(ctx context.Context, q querier, kind payrecon.ReferenceKind, ownerID string) (*payrecon.OwnerEntity, error) {
	var owner payrecon.OwnerEntity
	var k string

	err := q.QueryRow(ctx,
		`SELECT id, kind, status FROM owner_entities WHERE kind = $1 AND id = $2`,
		string(kind), ownerID).Scan(&owner.ID, &k, &owner.Status)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, payrecon.ErrOwnerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read owner entity: %w", err)
	}

	owner.Kind = payrecon.ReferenceKind(k)
	return &owner, nil
}

// GetIdempotencyRecord implements payrecon.Store.
func (s *Store) GetIdempotencyRecord(ctx context.Context, paymentID string) (*payrecon.IdempotencyRecord, error) {
	var rec payrecon.IdempotencyRecord

	err := s.pool.QueryRow(ctx,
		`SELECT payment_id, webhook_kind, status, external_reference, processed_at
			FROM webhook_processed WHERE payment_id = $1`,
		paymentID).Scan(&rec.PaymentID, &rec.WebhookKind, &rec.Status,
		&rec.ExternalReference, &rec.ProcessedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read idempotency record: %w", err)
	}
	return &rec, nil
}

// CreateIdempotencyRecord implements payrecon.Store. A unique-violation
// on payment_id is reported as payrecon.ErrDuplicateRecord so the guard
// can treat it as the expected concurrent-duplicate outcome.
func (s *Store) CreateIdempotencyRecord(ctx context.Context, rec *payrecon.IdempotencyRecord) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO webhook_processed (payment_id, webhook_kind, status, external_reference, processed_at)
			VALUES ($1, $2, $3, $4, $5)`,
		rec.PaymentID, rec.WebhookKind, rec.Status, rec.ExternalReference, rec.ProcessedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return payrecon.ErrDuplicateRecord
		}
		return fmt.Errorf("failed to create idempotency record: %w", err)
	}
	return nil
}

// DeleteIdempotencyRecordsBefore implements payrecon.Store.
func (s *Store) DeleteIdempotencyRecordsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM webhook_processed WHERE processed_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete idempotency records: %w", err)
	}
	return tag.RowsAffected(), nil
}

// WithinTransaction implements payrecon.Store.
func (s *Store) WithinTransaction(ctx context.Context, fn func(ctx context.Context, tx payrecon.Transaction) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		//nolint:errcheck // Rollback error is safe to ignore if transaction was committed
		_ = tx.Rollback(ctx)
	}()

	if err := fn(ctx, &transaction{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

type transaction struct {
	tx pgx.Tx
}

func (t *transaction) UpdateLedgerEntry(ctx context.Context, entry *payrecon.LedgerEntry) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE payment_ledger_entries
			SET status = $2, gateway_payment_id = $3, paid_at = $4
			WHERE id = $1`,
		entry.ID, string(entry.Status), entry.GatewayPaymentID, entry.PaidAt)
	if err != nil {
		return fmt.Errorf("failed to update ledger entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return payrecon.ErrLedgerEntryNotFound
	}
	return nil
}

func (t *transaction) GetOwner(ctx context.Context, kind payrecon.ReferenceKind, ownerID string) (*payrecon.OwnerEntity, error) {
	// FOR UPDATE so two racing transitions for the same owner serialize
	// on the row and the "status differs" guard sees committed state.
	var owner payrecon.OwnerEntity
	var k string

	err := t.tx.QueryRow(ctx,
		`SELECT id, kind, status FROM owner_entities WHERE kind = $1 AND id = $2 FOR UPDATE`,
		string(kind), ownerID).Scan(&owner.ID, &k, &owner.Status)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, payrecon.ErrOwnerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read owner entity: %w", err)
	}

	owner.Kind = payrecon.ReferenceKind(k)
	return &owner, nil
}

func (t *transaction) UpdateOwnerStatus(ctx context.Context, kind payrecon.ReferenceKind, ownerID string, status payrecon.OwnerStatus) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE owner_entities SET status = $3 WHERE kind = $1 AND id = $2`,
		string(kind), ownerID, string(status))
	if err != nil {
		return fmt.Errorf("failed to update owner entity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return payrecon.ErrOwnerNotFound
	}
	return nil
}

func (t *transaction) AppendAudit(ctx context.Context, entry *payrecon.AuditEntry) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO audit_entries (owner_id, previous_status, new_status, reason, actor, at)
			VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.OwnerID, string(entry.PreviousStatus), string(entry.NewStatus),
		entry.Reason, entry.Actor, entry.At)
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}
