package payrecon

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"
)

const expectedAmountKeyPrefix = "payment:expected:"

// AmountValidation is the structured verdict of one anti-fraud amount
// check. Reason is machine-readable and embeds expected/received so
// audit and alerting can work from the verdict alone.
type AmountValidation struct {
	IsValid        bool
	ExpectedAmount float64
	ReceivedAmount float64
	Difference     float64
	Reason         string
}

// AmountValidator compares a received transaction amount against the
// expected amount recorded on the ledger entry, within a relative
// tolerance that absorbs gateway rounding. This is the anti-fraud
// boundary: a short payment must block the state transition.
type AmountValidator struct {
	store   Store
	cache   Cache
	logger  Logger
	metrics Metrics

	tolerance   float64
	expectedTTL time.Duration
}

// NewAmountValidator creates a validator over the given store.
func NewAmountValidator(store Store, config Config) (*AmountValidator, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	config.applyDefaults()

	return &AmountValidator{
		store:       store,
		cache:       config.Cache,
		logger:      config.Logger,
		metrics:     config.Metrics,
		tolerance:   config.AmountTolerance,
		expectedTTL: config.ExpectedAmountTTL,
	}, nil
}

// ValidateLedgerEntry checks receivedAmount against the expected amount
// of the ledger entry with the given id. Returns ErrLedgerEntryNotFound
// when the entry does not exist.
func (v *AmountValidator) ValidateLedgerEntry(ctx context.Context, ledgerEntryID string, receivedAmount float64) (*AmountValidation, error) {
	expected, err := v.expectedAmount(ctx, ledgerEntryID)
	if err != nil {
		return nil, err
	}
	return v.compare(ledgerEntryID, expected, receivedAmount), nil
}

// ValidateByExternalReference re-parses ref and routes to the ledger
// entry it designates before validating the amount. An unparseable
// reference fails with ErrUnrecognizedReference.
func (v *AmountValidator) ValidateByExternalReference(ctx context.Context, ref string, receivedAmount float64) (*AmountValidation, error) {
	parsed := ParseReference(ref)
	if parsed == nil {
		return nil, ErrUnrecognizedReference
	}

	entry, err := FindLedgerEntryFor(ctx, v.store, parsed)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, ErrLedgerEntryNotFound
	}

	return v.compare(entry.ID, entry.ExpectedAmount, receivedAmount), nil
}

func (v *AmountValidator) compare(ledgerEntryID string, expected, received float64) *AmountValidation {
	difference := math.Abs(expected - received)
	validation := &AmountValidation{
		IsValid:        difference <= expected*v.tolerance,
		ExpectedAmount: expected,
		ReceivedAmount: received,
		Difference:     difference,
	}

	if !validation.IsValid {
		validation.Reason = fmt.Sprintf("Amount mismatch: expected $%.2f, received $%.2f", expected, received)
		v.logger.Error("fraud suspected: payment amount mismatch",
			Field{Key: "ledger_entry_id", Value: ledgerEntryID},
			Field{Key: "expected", Value: expected},
			Field{Key: "received", Value: received},
			Field{Key: "difference", Value: difference})
	}

	return validation
}

// expectedAmount resolves the expected amount for a ledger entry,
// consulting the cache first. The cache holds amounts for two minutes;
// checkout-time amounts never change after creation, so the window only
// bounds how long a deleted entry can produce a stale read.
func (v *AmountValidator) expectedAmount(ctx context.Context, ledgerEntryID string) (float64, error) {
	key := expectedAmountKeyPrefix + ledgerEntryID

	if value, ok := v.cache.Get(ctx, key); ok {
		if amount, err := strconv.ParseFloat(value, 64); err == nil {
			return amount, nil
		}
	}

	entry, err := v.store.GetLedgerEntry(ctx, ledgerEntryID)
	if err != nil {
		return 0, err
	}

	v.cache.Set(ctx, key, strconv.FormatFloat(entry.ExpectedAmount, 'f', -1, 64), v.expectedTTL)
	return entry.ExpectedAmount, nil
}

// FindLedgerEntryFor resolves a parsed reference to its ledger entry.
// Every kind looks up by owner id except colonia payments, whose
// reference carries the ledger entry id itself. Returns nil, nil when
// nothing matches.
func FindLedgerEntryFor(ctx context.Context, store Store, parsed *ParsedReference) (*LedgerEntry, error) {
	switch parsed.Kind {
	case KindEnrollment2026:
		return store.FindLedgerEntry(ctx, parsed.Kind, parsed.IDs["enrollmentID"])
	case KindSubscription:
		return store.FindLedgerEntry(ctx, parsed.Kind, parsed.IDs["subscriptionID"])
	case KindCourseEnrollment:
		return store.FindLedgerEntry(ctx, parsed.Kind, parsed.IDs["courseEnrollmentID"])
	case KindMembership:
		return store.FindLedgerEntry(ctx, parsed.Kind, parsed.IDs["membershipID"])
	case KindColoniaPayment:
		entry, err := store.GetLedgerEntry(ctx, parsed.IDs["paymentID"])
		if errors.Is(err, ErrLedgerEntryNotFound) {
			return nil, nil
		}
		return entry, err
	default:
		return nil, ErrUnrecognizedReference
	}
}
