package payrecon

import (
	"time"
)

// ReferenceKind identifies which entity family an external reference
// belongs to. The parser, the amount validator and the webhook processor
// all share this closed set so their notions of "kind" cannot drift apart.
type ReferenceKind string

const (
	// KindEnrollment2026 is a 2026-cycle enrollment payment reference.
	KindEnrollment2026 ReferenceKind = "enrollment2026"
	// KindSubscription is a recurring subscription payment reference.
	KindSubscription ReferenceKind = "subscription"
	// KindCourseEnrollment is a per-course enrollment payment reference.
	KindCourseEnrollment ReferenceKind = "course"
	// KindMembership is the legacy membership reference format.
	KindMembership ReferenceKind = "membresia"
	// KindColoniaPayment is the legacy summer-program payment reference,
	// which carries the ledger entry id directly.
	KindColoniaPayment ReferenceKind = "colonia"
)

// ParsedReference is the typed result of decoding an external reference
// string. IDs holds the id fields extracted for the matched kind.
type ParsedReference struct {
	Kind ReferenceKind
	IDs  map[string]string
}

// Notification is an inbound "payment changed" message from the gateway.
// It is transient and may be delivered many times per logical event.
type Notification struct {
	Kind      string
	Action    string
	PaymentID string
}

// PaymentRecord is the gateway's authoritative record for one payment,
// fetched read-only on demand.
type PaymentRecord struct {
	ID                string
	Status            string
	ExternalReference string
	Amount            float64
	CapturedAt        *time.Time
}

// PaymentStatus is the internal payment status vocabulary. The gateway's
// wider vocabulary is normalized into this set by MapPaymentStatus.
type PaymentStatus string

const (
	StatusPaid     PaymentStatus = "paid"
	StatusFailed   PaymentStatus = "failed"
	StatusPending  PaymentStatus = "pending"
	StatusRefunded PaymentStatus = "refunded"
)

// OwnerStatus is the status vocabulary of the owning entity
// (enrollment, subscription, course enrollment).
type OwnerStatus string

const (
	OwnerPending       OwnerStatus = "pending"
	OwnerActive        OwnerStatus = "active"
	OwnerPaymentFailed OwnerStatus = "payment_failed"
)

// LedgerEntry tracks money owed/received for one enrollment or
// subscription unit. It is created at checkout time (outside this
// engine) and mutated only inside a state-transition transaction.
type LedgerEntry struct {
	ID               string
	OwnerID          string
	Kind             ReferenceKind
	ExpectedAmount   float64
	Status           PaymentStatus
	GatewayPaymentID string
	PaidAt           *time.Time
}

// OwnerEntity is the enrollment/subscription/course-enrollment record
// whose status is driven by payment outcome.
type OwnerEntity struct {
	ID     string
	Kind   ReferenceKind
	Status OwnerStatus
}

// AuditActor is recorded on every audit entry written by this engine.
const AuditActor = "payment-webhook"

// AuditEntry is an append-only record of one owner-entity status change.
// Exactly one entry is written per actual transition, never per delivery.
type AuditEntry struct {
	OwnerID        string
	PreviousStatus OwnerStatus
	NewStatus      OwnerStatus
	Reason         string
	Actor          string
	At             time.Time
}

// IdempotencyRecord is the durable marker preventing a payment id from
// being processed twice. Uniqueness on PaymentID is enforced by the
// store, not by application logic.
type IdempotencyRecord struct {
	PaymentID         string
	WebhookKind       string
	Status            string
	ExternalReference string
	ProcessedAt       time.Time
}

// Result is the structured outcome returned to the webhook caller.
// The Message strings produced by the processor are contractual;
// callers branch on them.
type Result struct {
	Success       bool        `json:"success"`
	Message       string      `json:"message,omitempty"`
	PaymentID     string      `json:"paymentId,omitempty"`
	EntityID      string      `json:"entityId,omitempty"`
	LedgerEntryID string      `json:"ledgerEntryId,omitempty"`
	PaymentStatus string      `json:"paymentStatus,omitempty"`
	EntityStatus  OwnerStatus `json:"entityStatus,omitempty"`
}

// UpdateContext carries everything an update callback needs to apply a
// state transition for one notification.
type UpdateContext struct {
	PaymentID         string
	Payment           *PaymentRecord
	ExternalReference string
	ParsedReference   *ParsedReference
	PaymentStatus     PaymentStatus
}

// Config holds engine configuration shared by the guard, validator and
// use cases. Zero values get sensible defaults in the constructors.
type Config struct {
	// Logger is used for structured logging (default: NoopLogger).
	Logger Logger

	// Metrics is used for tracking webhook operations (default: NoopMetrics).
	Metrics Metrics

	// Cache is the best-effort cache used by the idempotency guard and the
	// amount validator (default: NoopCache). Correctness never depends on it.
	Cache Cache

	// ProcessedTTL is the cache TTL for "already processed" markers
	// (default: 5 minutes).
	ProcessedTTL time.Duration

	// ExpectedAmountTTL is the cache TTL for expected-amount lookups
	// (default: 2 minutes).
	ExpectedAmountTTL time.Duration

	// AmountTolerance is the allowed relative deviation between expected
	// and received amounts before a payment is treated as fraudulent
	// (default: 0.01, i.e. 1%).
	AmountTolerance float64

	// RetentionWindow is how long idempotency records are kept before
	// CleanOldRecords deletes them (default: 30 days).
	RetentionWindow time.Duration
}

func (c *Config) applyDefaults() {
	if c.Logger == nil {
		c.Logger = &NoopLogger{}
	}
	if c.Metrics == nil {
		c.Metrics = &NoopMetrics{}
	}
	if c.Cache == nil {
		c.Cache = NewNoopCache()
	}
	if c.ProcessedTTL == 0 {
		c.ProcessedTTL = 5 * time.Minute
	}
	if c.ExpectedAmountTTL == 0 {
		c.ExpectedAmountTTL = 2 * time.Minute
	}
	if c.AmountTolerance == 0 {
		c.AmountTolerance = 0.01
	}
	if c.RetentionWindow == 0 {
		c.RetentionWindow = 30 * 24 * time.Hour
	}
}
