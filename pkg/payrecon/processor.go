package payrecon

import (
	"context"
	"time"
)

// Contractual short-circuit messages. Callers branch on these strings,
// so they must never change.
const (
	MsgTypeNotHandled     = "Webhook type not handled"
	MsgNoExternalRef      = "Payment without external_reference"
	MsgInvalidExternalRef = "Invalid external_reference format"
	MsgPaymentNotFound    = "Payment not found in database"
	MsgAlreadyProcessed   = "Already processed (idempotent)"
)

// notificationKindPayment is the only notification kind the engine handles.
const notificationKindPayment = "payment"

// FindEntityFunc looks up the ledger entry a parsed reference points at.
// Returning nil, nil means "nothing found" and short-circuits the run.
type FindEntityFunc func(ctx context.Context, parsed *ParsedReference) (*LedgerEntry, error)

// UpdateEntityFunc applies the domain-specific state transition for one
// notification. Its result is returned verbatim as the processor's result.
type UpdateEntityFunc func(ctx context.Context, entry *LedgerEntry, uctx *UpdateContext) (*Result, error)

// Processor is the generic webhook orchestrator. It validates the
// notification type, fetches the authoritative payment record, parses
// the reference and delegates entity lookup/update to domain callbacks,
// staying free of entity-specific knowledge itself.
//
// Each stage that fails a precondition produces a structured
// {success:false, message} result and stops; those are expected outcomes
// of a noisy delivery channel, not errors. Failures in the gateway fetch
// or the callbacks surface as a single client-facing BadRequestError.
type Processor struct {
	gateway Gateway
	logger  Logger
	metrics Metrics
}

// NewProcessor creates a processor over the given gateway.
func NewProcessor(gateway Gateway, config Config) (*Processor, error) {
	if gateway == nil {
		return nil, ErrGatewayRequired
	}
	config.applyDefaults()

	return &Processor{
		gateway: gateway,
		logger:  config.Logger,
		metrics: config.Metrics,
	}, nil
}

// Process runs one notification through the orchestration pipeline for
// the given reference kind.
func (p *Processor) Process(ctx context.Context, n Notification, kind ReferenceKind,
	find FindEntityFunc, update UpdateEntityFunc) (*Result, error) {
	if n.Kind != notificationKindPayment {
		p.logger.Debug("notification kind ignored",
			Field{Key: "kind", Value: n.Kind},
			Field{Key: "action", Value: n.Action})
		return &Result{Success: false, Message: MsgTypeNotHandled}, nil
	}

	start := time.Now()
	payment, err := p.gateway.GetPayment(ctx, n.PaymentID)
	p.metrics.RecordGatewayFetch(time.Since(start), err)
	if err != nil {
		return nil, NewBadRequest("failed to fetch payment from gateway", err)
	}

	p.logger.Info("payment fetched",
		Field{Key: "payment_id", Value: payment.ID},
		Field{Key: "status", Value: payment.Status},
		Field{Key: "external_reference", Value: payment.ExternalReference})

	if payment.ExternalReference == "" {
		return &Result{Success: false, Message: MsgNoExternalRef}, nil
	}

	parsed := ParseReference(payment.ExternalReference)
	if parsed == nil || parsed.Kind != kind {
		p.logger.Warn("external reference rejected",
			Field{Key: "external_reference", Value: payment.ExternalReference},
			Field{Key: "expected_kind", Value: kind})
		return &Result{Success: false, Message: MsgInvalidExternalRef}, nil
	}

	entry, err := find(ctx, parsed)
	if err != nil {
		return nil, NewBadRequest("entity lookup failed", err)
	}
	if entry == nil {
		return &Result{Success: false, Message: MsgPaymentNotFound}, nil
	}

	result, err := update(ctx, entry, &UpdateContext{
		PaymentID:         n.PaymentID,
		Payment:           payment,
		ExternalReference: payment.ExternalReference,
		ParsedReference:   parsed,
		PaymentStatus:     MapPaymentStatus(payment.Status),
	})
	if err != nil {
		if IsBadRequest(err) {
			return nil, err
		}
		return nil, NewBadRequest("entity update failed", err)
	}

	return result, nil
}
