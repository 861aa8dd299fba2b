package payrecon

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"
)

const processedKeyPrefix = "webhook:processed:"

// IdempotencyGuard answers "was this payment id already processed?" with
// a cache-then-store lookup and records completion with race-safe insert
// semantics. The durable store's uniqueness constraint is the sole
// correctness mechanism; the cache only shaves off redundant store hits.
type IdempotencyGuard struct {
	store   Store
	cache   Cache
	logger  Logger
	metrics Metrics

	processedTTL    time.Duration
	retentionWindow time.Duration

	group singleflight.Group
}

// NewIdempotencyGuard creates a guard over the given store.
func NewIdempotencyGuard(store Store, config Config) (*IdempotencyGuard, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	config.applyDefaults()

	return &IdempotencyGuard{
		store:           store,
		cache:           config.Cache,
		logger:          config.Logger,
		metrics:         config.Metrics,
		processedTTL:    config.ProcessedTTL,
		retentionWindow: config.RetentionWindow,
	}, nil
}

// WasProcessed reports whether paymentID has already been processed.
// The cache is consulted first; on a miss (or any cache failure) the
// durable store is read and the cache repopulated with the result.
// Concurrent lookups for the same payment id share one store read.
func (g *IdempotencyGuard) WasProcessed(ctx context.Context, paymentID string) (bool, error) {
	key := processedKeyPrefix + paymentID

	if value, ok := g.cache.Get(ctx, key); ok {
		if value == "1" {
			g.metrics.RecordIdempotencyHit("cache")
			g.logger.Warn("duplicate webhook detected",
				Field{Key: "payment_id", Value: paymentID},
				Field{Key: "source", Value: "cache"})
			return true, nil
		}
		// A cached "0" is still only a hint. The durable write path
		// refreshes the cache after commit, so trusting it here cannot
		// outlive the ProcessedTTL window of a markAsProcessed that
		// crashed before its cache update.
		return false, nil
	}

	// The flight is shared across callers, so it must not inherit the
	// first caller's cancellation: a cancelled request would fail every
	// concurrent sharer's lookup with it.
	lookupCtx := context.WithoutCancel(ctx)
	result, err, _ := g.group.Do(paymentID, func() (interface{}, error) {
		rec, err := g.store.GetIdempotencyRecord(lookupCtx, paymentID)
		if err != nil {
			return false, err
		}
		return rec != nil, nil
	})
	if err != nil {
		return false, fmt.Errorf("idempotency lookup failed: %w", err)
	}

	processed := result.(bool)
	if processed {
		g.metrics.RecordIdempotencyHit("store")
		g.logger.Warn("duplicate webhook detected",
			Field{Key: "payment_id", Value: paymentID},
			Field{Key: "source", Value: "store"})
		g.cache.Set(ctx, key, "1", g.processedTTL)
	} else {
		g.cache.Set(ctx, key, "0", g.processedTTL)
	}

	return processed, nil
}

// MarkAsProcessed durably records that rec.PaymentID was processed.
// A uniqueness violation means another concurrent processor won the
// insert race; that is the expected concurrent-duplicate outcome and is
// logged and swallowed. Any other failure propagates. On success the
// cache entry is flipped to "processed" so a stale "not processed" read
// cannot linger.
func (g *IdempotencyGuard) MarkAsProcessed(ctx context.Context, rec *IdempotencyRecord) error {
	if rec.ProcessedAt.IsZero() {
		rec.ProcessedAt = time.Now().UTC()
	}

	err := g.store.CreateIdempotencyRecord(ctx, rec)
	if errors.Is(err, ErrDuplicateRecord) {
		g.metrics.RecordIdempotencyRace()
		g.logger.Warn("race condition detected: webhook already marked as processed",
			Field{Key: "payment_id", Value: rec.PaymentID},
			Field{Key: "webhook_kind", Value: rec.WebhookKind})
		g.cache.Set(ctx, processedKeyPrefix+rec.PaymentID, "1", g.processedTTL)
		return nil
	}
	if err != nil {
		return fmt.Errorf("mark as processed failed: %w", err)
	}

	g.logger.Info("webhook marked as processed",
		Field{Key: "payment_id", Value: rec.PaymentID},
		Field{Key: "webhook_kind", Value: rec.WebhookKind},
		Field{Key: "status", Value: rec.Status})
	g.cache.Set(ctx, processedKeyPrefix+rec.PaymentID, "1", g.processedTTL)
	return nil
}

// CleanOldRecords deletes idempotency records older than the retention
// window (30 days by default) and returns how many were removed. Meant
// to be driven by scheduled maintenance.
func (g *IdempotencyGuard) CleanOldRecords(ctx context.Context) (int64, error) {
	cutoff := time.Now().UTC().Add(-g.retentionWindow)

	count, err := g.store.DeleteIdempotencyRecordsBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("clean old records failed: %w", err)
	}

	g.logger.Info("old idempotency records cleaned",
		Field{Key: "count", Value: count},
		Field{Key: "cutoff", Value: cutoff})
	return count, nil
}
