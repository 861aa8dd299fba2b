package payrecon

import (
	"context"
	"time"
)

// Store is the durable persistence collaborator. Implementations must
// enforce a uniqueness constraint on IdempotencyRecord.PaymentID and
// support a transactional grouped write through WithinTransaction.
type Store interface {
	// GetLedgerEntry loads a ledger entry by its own id.
	// Returns ErrLedgerEntryNotFound when it does not exist.
	GetLedgerEntry(ctx context.Context, id string) (*LedgerEntry, error)

	// FindLedgerEntry loads the ledger entry for one owner entity and kind.
	// Returns nil, nil when no entry exists; the processor turns that into
	// its "Payment not found in database" short-circuit.
	FindLedgerEntry(ctx context.Context, kind ReferenceKind, ownerID string) (*LedgerEntry, error)

	// GetOwner loads an owner entity. Returns ErrOwnerNotFound when absent.
	GetOwner(ctx context.Context, kind ReferenceKind, ownerID string) (*OwnerEntity, error)

	// GetIdempotencyRecord loads the idempotency record for a payment id.
	// Returns nil, nil when the payment has not been processed.
	GetIdempotencyRecord(ctx context.Context, paymentID string) (*IdempotencyRecord, error)

	// CreateIdempotencyRecord inserts a record, relying on the store's
	// uniqueness constraint. Returns ErrDuplicateRecord when a record for
	// the same payment id already exists.
	CreateIdempotencyRecord(ctx context.Context, rec *IdempotencyRecord) error

	// DeleteIdempotencyRecordsBefore deletes records processed before the
	// cutoff and returns how many were removed.
	DeleteIdempotencyRecordsBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// WithinTransaction runs fn inside one atomic transaction. Any error
	// from fn aborts the whole unit; nothing inside is visible until commit.
	WithinTransaction(ctx context.Context, fn func(ctx context.Context, tx Transaction) error) error
}

// Transaction is the unit-of-work handle passed to WithinTransaction
// callbacks. The ledger update, the conditional owner update and the
// audit insert of one status change all go through the same handle so
// they commit or abort together.
type Transaction interface {
	// UpdateLedgerEntry persists the entry's status, gateway payment id
	// and paid-at timestamp.
	UpdateLedgerEntry(ctx context.Context, entry *LedgerEntry) error

	// GetOwner re-reads the owner entity inside the transaction.
	// Returns ErrOwnerNotFound when absent.
	GetOwner(ctx context.Context, kind ReferenceKind, ownerID string) (*OwnerEntity, error)

	// UpdateOwnerStatus advances the owner entity to status.
	UpdateOwnerStatus(ctx context.Context, kind ReferenceKind, ownerID string, status OwnerStatus) error

	// AppendAudit appends one audit entry.
	AppendAudit(ctx context.Context, entry *AuditEntry) error
}
