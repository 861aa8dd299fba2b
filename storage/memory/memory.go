// Package memory provides an in-memory implementation of the payrecon.Store
// interface. This implementation is primarily intended for testing and
// development; it reproduces the uniqueness constraint on idempotency
// records and the all-or-nothing transaction semantics of the durable
// backends.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aulatech/payrecon/pkg/payrecon"
)

// Store implements payrecon.Store using in-memory maps.
type Store struct {
	mu sync.Mutex

	ledger        map[string]*payrecon.LedgerEntry  // ledger entry id -> entry
	ledgerByOwner map[string]string                 // kind:ownerID -> ledger entry id
	owners        map[string]*payrecon.OwnerEntity  // kind:ownerID -> owner
	audits        []*payrecon.AuditEntry
	processed     map[string]*payrecon.IdempotencyRecord // payment id -> record
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		ledger:        make(map[string]*payrecon.LedgerEntry),
		ledgerByOwner: make(map[string]string),
		owners:        make(map[string]*payrecon.OwnerEntity),
		processed:     make(map[string]*payrecon.IdempotencyRecord),
	}
}

func ownerKey(kind payrecon.ReferenceKind, ownerID string) string {
	return string(kind) + ":" + ownerID
}

// CreateLedgerEntry inserts a ledger entry (checkout-time setup).
func (s *Store) CreateLedgerEntry(entry *payrecon.LedgerEntry) error {
	if entry == nil || entry.ID == "" {
		return fmt.Errorf("invalid ledger entry")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entryCopy := *entry
	s.ledger[entry.ID] = &entryCopy
	s.ledgerByOwner[ownerKey(entry.Kind, entry.OwnerID)] = entry.ID
	return nil
}

// CreateOwner inserts an owner entity.
func (s *Store) CreateOwner(owner *payrecon.OwnerEntity) error {
	if owner == nil || owner.ID == "" {
		return fmt.Errorf("invalid owner entity")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ownerCopy := *owner
	s.owners[ownerKey(owner.Kind, owner.ID)] = &ownerCopy
	return nil
}

// AuditEntries returns the audit entries recorded for one owner entity.
func (s *Store) AuditEntries(ownerID string) []*payrecon.AuditEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*payrecon.AuditEntry
	for _, a := range s.audits {
		if a.OwnerID == ownerID {
			entryCopy := *a
			out = append(out, &entryCopy)
		}
	}
	return out
}

// GetLedgerEntry implements payrecon.Store.
func (s *Store) GetLedgerEntry(_ context.Context, id string) (*payrecon.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.ledger[id]
	if !ok {
		return nil, payrecon.ErrLedgerEntryNotFound
	}
	entryCopy := *entry
	return &entryCopy, nil
}

// FindLedgerEntry implements payrecon.Store.
func (s *Store) FindLedgerEntry(_ context.Context, kind payrecon.ReferenceKind, ownerID string) (*payrecon.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.ledgerByOwner[ownerKey(kind, ownerID)]
	if !ok {
		return nil, nil // no entry is not an error
	}
	entryCopy := *s.ledger[id]
	return &entryCopy, nil
}

// GetOwner implements payrecon.Store.
func (s *Store) GetOwner(_ context.Context, kind payrecon.ReferenceKind, ownerID string) (*payrecon.OwnerEntity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getOwnerLocked(kind, ownerID)
}

func (s *Store) getOwnerLocked(kind payrecon.ReferenceKind, ownerID string) (*payrecon.OwnerEntity, error) {
	owner, ok := s.owners[ownerKey(kind, ownerID)]
	if !ok {
		return nil, payrecon.ErrOwnerNotFound
	}
	ownerCopy := *owner
	return &ownerCopy, nil
}

// GetIdempotencyRecord implements payrecon.Store.
func (s *Store) GetIdempotencyRecord(_ context.Context, paymentID string) (*payrecon.IdempotencyRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.processed[paymentID]
	if !ok {
		return nil, nil
	}
	recCopy := *rec
	return &recCopy, nil
}

// CreateIdempotencyRecord implements payrecon.Store. The map key acts as
// the uniqueness constraint.
func (s *Store) CreateIdempotencyRecord(_ context.Context, rec *payrecon.IdempotencyRecord) error {
	if rec == nil || rec.PaymentID == "" {
		return fmt.Errorf("invalid idempotency record")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.processed[rec.PaymentID]; exists {
		return payrecon.ErrDuplicateRecord
	}
	recCopy := *rec
	s.processed[rec.PaymentID] = &recCopy
	return nil
}

// DeleteIdempotencyRecordsBefore implements payrecon.Store.
func (s *Store) DeleteIdempotencyRecordsBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	for id, rec := range s.processed {
		if rec.ProcessedAt.Before(cutoff) {
			delete(s.processed, id)
			count++
		}
	}
	return count, nil
}

// WithinTransaction implements payrecon.Store. Mutations are staged and
// applied only when fn returns nil, so a failure anywhere inside aborts
// the whole unit, matching the durable backends.
func (s *Store) WithinTransaction(ctx context.Context, fn func(ctx context.Context, tx payrecon.Transaction) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := &transaction{store: s}
	if err := fn(ctx, t); err != nil {
		return err
	}

	for _, apply := range t.staged {
		apply()
	}
	return nil
}

type transaction struct {
	store  *Store
	staged []func()

	// overlay of owner statuses written earlier in this transaction
	ownerStatus map[string]payrecon.OwnerStatus
}

func (t *transaction) UpdateLedgerEntry(_ context.Context, entry *payrecon.LedgerEntry) error {
	if _, ok := t.store.ledger[entry.ID]; !ok {
		return payrecon.ErrLedgerEntryNotFound
	}
	entryCopy := *entry
	t.staged = append(t.staged, func() {
		t.store.ledger[entryCopy.ID] = &entryCopy
		t.store.ledgerByOwner[ownerKey(entryCopy.Kind, entryCopy.OwnerID)] = entryCopy.ID
	})
	return nil
}

func (t *transaction) GetOwner(_ context.Context, kind payrecon.ReferenceKind, ownerID string) (*payrecon.OwnerEntity, error) {
	owner, err := t.store.getOwnerLocked(kind, ownerID)
	if err != nil {
		return nil, err
	}
	if status, ok := t.ownerStatus[ownerKey(kind, ownerID)]; ok {
		owner.Status = status
	}
	return owner, nil
}

func (t *transaction) UpdateOwnerStatus(_ context.Context, kind payrecon.ReferenceKind, ownerID string, status payrecon.OwnerStatus) error {
	key := ownerKey(kind, ownerID)
	if _, ok := t.store.owners[key]; !ok {
		return payrecon.ErrOwnerNotFound
	}
	if t.ownerStatus == nil {
		t.ownerStatus = make(map[string]payrecon.OwnerStatus)
	}
	t.ownerStatus[key] = status
	t.staged = append(t.staged, func() {
		t.store.owners[key].Status = status
	})
	return nil
}

func (t *transaction) AppendAudit(_ context.Context, entry *payrecon.AuditEntry) error {
	entryCopy := *entry
	t.staged = append(t.staged, func() {
		t.store.audits = append(t.store.audits, &entryCopy)
	})
	return nil
}
