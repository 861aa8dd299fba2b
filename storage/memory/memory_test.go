package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aulatech/payrecon/pkg/payrecon"
	"github.com/aulatech/payrecon/storage/memory"
)

func seededStore(t *testing.T) *memory.Store {
	t.Helper()
	store := memory.New()
	require.NoError(t, store.CreateOwner(&payrecon.OwnerEntity{
		ID:     "S1",
		Kind:   payrecon.KindSubscription,
		Status: payrecon.OwnerPending,
	}))
	require.NoError(t, store.CreateLedgerEntry(&payrecon.LedgerEntry{
		ID:             "le-1",
		OwnerID:        "S1",
		Kind:           payrecon.KindSubscription,
		ExpectedAmount: 300,
		Status:         payrecon.StatusPending,
	}))
	return store
}

func TestStore_Lookups(t *testing.T) {
	ctx := context.Background()
	store := seededStore(t)

	entry, err := store.GetLedgerEntry(ctx, "le-1")
	require.NoError(t, err)
	assert.Equal(t, "S1", entry.OwnerID)

	_, err = store.GetLedgerEntry(ctx, "nope")
	assert.ErrorIs(t, err, payrecon.ErrLedgerEntryNotFound)

	entry, err = store.FindLedgerEntry(ctx, payrecon.KindSubscription, "S1")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "le-1", entry.ID)

	// Same owner id under a different kind is a different key.
	entry, err = store.FindLedgerEntry(ctx, payrecon.KindMembership, "S1")
	require.NoError(t, err)
	assert.Nil(t, entry)

	owner, err := store.GetOwner(ctx, payrecon.KindSubscription, "S1")
	require.NoError(t, err)
	assert.Equal(t, payrecon.OwnerPending, owner.Status)

	_, err = store.GetOwner(ctx, payrecon.KindSubscription, "S2")
	assert.ErrorIs(t, err, payrecon.ErrOwnerNotFound)
}

func TestStore_IdempotencyUniqueness(t *testing.T) {
	ctx := context.Background()
	store := memory.New()

	rec := &payrecon.IdempotencyRecord{PaymentID: "pay-1", ProcessedAt: time.Now().UTC()}
	require.NoError(t, store.CreateIdempotencyRecord(ctx, rec))

	err := store.CreateIdempotencyRecord(ctx, rec)
	assert.ErrorIs(t, err, payrecon.ErrDuplicateRecord)
}

func TestStore_TransactionCommit(t *testing.T) {
	ctx := context.Background()
	store := seededStore(t)

	err := store.WithinTransaction(ctx, func(ctx context.Context, tx payrecon.Transaction) error {
		if err := tx.UpdateOwnerStatus(ctx, payrecon.KindSubscription, "S1", payrecon.OwnerActive); err != nil {
			return err
		}

		// Reads inside the transaction observe the staged write.
		owner, err := tx.GetOwner(ctx, payrecon.KindSubscription, "S1")
		if err != nil {
			return err
		}
		assert.Equal(t, payrecon.OwnerActive, owner.Status)

		return tx.AppendAudit(ctx, &payrecon.AuditEntry{
			OwnerID:        "S1",
			PreviousStatus: payrecon.OwnerPending,
			NewStatus:      payrecon.OwnerActive,
			Actor:          payrecon.AuditActor,
			At:             time.Now().UTC(),
		})
	})
	require.NoError(t, err)

	owner, err := store.GetOwner(ctx, payrecon.KindSubscription, "S1")
	require.NoError(t, err)
	assert.Equal(t, payrecon.OwnerActive, owner.Status)
	assert.Len(t, store.AuditEntries("S1"), 1)
}

func TestStore_TransactionAbort(t *testing.T) {
	ctx := context.Background()
	store := seededStore(t)
	boom := errors.New("boom")

	err := store.WithinTransaction(ctx, func(ctx context.Context, tx payrecon.Transaction) error {
		entry := &payrecon.LedgerEntry{
			ID:             "le-1",
			OwnerID:        "S1",
			Kind:           payrecon.KindSubscription,
			ExpectedAmount: 300,
			Status:         payrecon.StatusPaid,
		}
		if err := tx.UpdateLedgerEntry(ctx, entry); err != nil {
			return err
		}
		if err := tx.UpdateOwnerStatus(ctx, payrecon.KindSubscription, "S1", payrecon.OwnerActive); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	// Nothing staged before the failure may leak out.
	entry, err := store.GetLedgerEntry(ctx, "le-1")
	require.NoError(t, err)
	assert.Equal(t, payrecon.StatusPending, entry.Status)

	owner, err := store.GetOwner(ctx, payrecon.KindSubscription, "S1")
	require.NoError(t, err)
	assert.Equal(t, payrecon.OwnerPending, owner.Status)
	assert.Empty(t, store.AuditEntries("S1"))
}

func TestStore_TransactionUnknownTargets(t *testing.T) {
	ctx := context.Background()
	store := seededStore(t)

	err := store.WithinTransaction(ctx, func(ctx context.Context, tx payrecon.Transaction) error {
		return tx.UpdateLedgerEntry(ctx, &payrecon.LedgerEntry{ID: "nope"})
	})
	assert.ErrorIs(t, err, payrecon.ErrLedgerEntryNotFound)

	err = store.WithinTransaction(ctx, func(ctx context.Context, tx payrecon.Transaction) error {
		return tx.UpdateOwnerStatus(ctx, payrecon.KindSubscription, "nope", payrecon.OwnerActive)
	})
	assert.ErrorIs(t, err, payrecon.ErrOwnerNotFound)
}
