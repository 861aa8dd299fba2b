package payrecon

import "time"

// Metrics defines the interface for tracking webhook reconciliation
// operations and performance.
type Metrics interface {
	// RecordWebhookResult records the outcome of one processed notification.
	// outcome: "success", "short_circuit", "idempotent", "error"
	RecordWebhookResult(kind, outcome string)

	// RecordWebhookDuration records how long one notification took end to end.
	RecordWebhookDuration(kind string, duration time.Duration)

	// RecordIdempotencyHit records a duplicate-delivery detection.
	// source: "cache" or "store"
	RecordIdempotencyHit(source string)

	// RecordIdempotencyRace records a unique-constraint race on markAsProcessed.
	RecordIdempotencyRace()

	// RecordAmountMismatch records a failed anti-fraud amount validation.
	RecordAmountMismatch(kind string)

	// RecordGatewayFetch records the duration and status of a gateway payment fetch.
	RecordGatewayFetch(duration time.Duration, err error)

	// RecordCircuitBreakerStateChange records a gateway circuit breaker state change.
	RecordCircuitBreakerStateChange(state string)
}

// NoopMetrics is a no-op implementation of the Metrics interface.
type NoopMetrics struct{}

func (n *NoopMetrics) RecordWebhookResult(kind, outcome string)                  {}
func (n *NoopMetrics) RecordWebhookDuration(kind string, duration time.Duration) {}
func (n *NoopMetrics) RecordIdempotencyHit(source string)                        {}
func (n *NoopMetrics) RecordIdempotencyRace()                                    {}
func (n *NoopMetrics) RecordAmountMismatch(kind string)                          {}
func (n *NoopMetrics) RecordGatewayFetch(duration time.Duration, err error)      {}
func (n *NoopMetrics) RecordCircuitBreakerStateChange(state string)              {}
