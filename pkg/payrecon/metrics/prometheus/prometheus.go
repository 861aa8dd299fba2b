package prommetrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics implements payrecon.Metrics using Prometheus.
type Metrics struct {
	webhookResultsTotal      *prometheus.CounterVec
	webhookDuration          *prometheus.HistogramVec
	idempotencyHitsTotal     *prometheus.CounterVec
	idempotencyRacesTotal    prometheus.Counter
	amountMismatchesTotal    *prometheus.CounterVec
	gatewayFetchDuration     *prometheus.HistogramVec
	circuitBreakerStateTotal *prometheus.CounterVec
}

// NewMetrics creates a new Prometheus metrics implementation for the
// webhook reconciliation engine.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		webhookResultsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "webhooks",
			Name:      "results_total",
			Help:      "Total number of processed webhook notifications by outcome.",
		}, []string{"kind", "outcome"}),

		webhookDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "webhooks",
			Name:      "processing_duration_seconds",
			Help:      "End-to-end duration of webhook processing in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),

		idempotencyHitsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "webhooks",
			Name:      "idempotency_hits_total",
			Help:      "Total number of duplicate deliveries detected, by detection source.",
		}, []string{"source"}),

		idempotencyRacesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "webhooks",
			Name:      "idempotency_races_total",
			Help:      "Total number of unique-constraint races on idempotency record inserts.",
		}),

		amountMismatchesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "webhooks",
			Name:      "amount_mismatches_total",
			Help:      "Total number of failed anti-fraud amount validations.",
		}, []string{"kind"}),

		gatewayFetchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "fetch_duration_seconds",
			Help:      "Duration of payment fetches from the gateway in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"status"}),

		circuitBreakerStateTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "circuit_breaker_transitions_total",
			Help:      "Total number of gateway circuit breaker state transitions.",
		}, []string{"state"}),
	}
}

func (m *Metrics) RecordWebhookResult(kind, outcome string) {
	m.webhookResultsTotal.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) RecordWebhookDuration(kind string, duration time.Duration) {
	m.webhookDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

func (m *Metrics) RecordIdempotencyHit(source string) {
	m.idempotencyHitsTotal.WithLabelValues(source).Inc()
}

func (m *Metrics) RecordIdempotencyRace() {
	m.idempotencyRacesTotal.Inc()
}

func (m *Metrics) RecordAmountMismatch(kind string) {
	m.amountMismatchesTotal.WithLabelValues(kind).Inc()
}

func (m *Metrics) RecordGatewayFetch(duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.gatewayFetchDuration.WithLabelValues(status).Observe(duration.Seconds())
}

func (m *Metrics) RecordCircuitBreakerStateChange(state string) {
	m.circuitBreakerStateTotal.WithLabelValues(state).Inc()
}

// DefaultMetrics creates metrics registered on the default registry.
func DefaultMetrics(namespace string) *Metrics {
	return NewMetrics(prometheus.DefaultRegisterer, namespace)
}
