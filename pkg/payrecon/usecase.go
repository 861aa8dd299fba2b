package payrecon

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// UseCase is the state-transition orchestration for one entity family.
// It composes the idempotency guard, the amount validator and the
// webhook processor into the full exactly-once pipeline:
//
//	idempotency check -> processor -> atomic update + audit -> mark processed
//
// The idempotency record is deliberately written outside the financial
// transaction, after it commits: the bookkeeping may fail or race
// independently, and the next duplicate delivery self-heals it.
type UseCase struct {
	kind        ReferenceKind
	webhookKind string

	processor *Processor
	guard     *IdempotencyGuard
	validator *AmountValidator
	store     Store
	logger    Logger
	metrics   Metrics
}

func newUseCase(kind ReferenceKind, webhookKind string,
	store Store, gateway Gateway, config Config) (*UseCase, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	config.applyDefaults()

	processor, err := NewProcessor(gateway, config)
	if err != nil {
		return nil, err
	}
	guard, err := NewIdempotencyGuard(store, config)
	if err != nil {
		return nil, err
	}
	validator, err := NewAmountValidator(store, config)
	if err != nil {
		return nil, err
	}

	return &UseCase{
		kind:        kind,
		webhookKind: webhookKind,
		processor:   processor,
		guard:       guard,
		validator:   validator,
		store:       store,
		logger:      config.Logger,
		metrics:     config.Metrics,
	}, nil
}

// Execute processes one inbound notification end to end.
func (u *UseCase) Execute(ctx context.Context, n Notification) (*Result, error) {
	start := time.Now()
	defer func() {
		u.metrics.RecordWebhookDuration(string(u.kind), time.Since(start))
	}()

	if n.Kind == notificationKindPayment && n.PaymentID == "" {
		return nil, NewBadRequest("payment_id is required", nil)
	}

	// Primary defense against duplicate delivery: checked before any
	// gateway or database work.
	if n.Kind == notificationKindPayment {
		processed, err := u.guard.WasProcessed(ctx, n.PaymentID)
		if err != nil {
			return nil, NewBadRequest("idempotency check failed", err)
		}
		if processed {
			u.metrics.RecordWebhookResult(string(u.kind), "idempotent")
			return &Result{
				Success:   true,
				Message:   MsgAlreadyProcessed,
				PaymentID: n.PaymentID,
			}, nil
		}
	}

	var captured *UpdateContext
	result, err := u.processor.Process(ctx, n, u.kind, u.findEntity,
		func(ctx context.Context, entry *LedgerEntry, uctx *UpdateContext) (*Result, error) {
			captured = uctx
			return u.updateEntity(ctx, entry, uctx)
		})
	if err != nil {
		u.metrics.RecordWebhookResult(string(u.kind), "error")
		return nil, err
	}

	if !result.Success {
		u.metrics.RecordWebhookResult(string(u.kind), "short_circuit")
		return result, nil
	}

	// The financial transaction committed; only the idempotency
	// bookkeeping can fail from here, and that must not undo it.
	rec := &IdempotencyRecord{
		PaymentID:   n.PaymentID,
		WebhookKind: u.webhookKind,
	}
	if captured != nil {
		rec.Status = captured.Payment.Status
		rec.ExternalReference = captured.ExternalReference
	}
	if err := u.guard.MarkAsProcessed(ctx, rec); err != nil {
		u.logger.Error("failed to record idempotency marker after commit",
			Field{Key: "payment_id", Value: n.PaymentID},
			Field{Key: "error", Value: err.Error()})
	}

	u.metrics.RecordWebhookResult(string(u.kind), "success")
	return result, nil
}

// CleanOldRecords removes idempotency records past the retention window.
func (u *UseCase) CleanOldRecords(ctx context.Context) (int64, error) {
	return u.guard.CleanOldRecords(ctx)
}

func (u *UseCase) findEntity(ctx context.Context, parsed *ParsedReference) (*LedgerEntry, error) {
	return FindLedgerEntryFor(ctx, u.store, parsed)
}

// updateEntity applies the status transition for one ledger entry inside
// a single atomic transaction: ledger update, conditional owner update,
// one audit entry per actual change.
func (u *UseCase) updateEntity(ctx context.Context, entry *LedgerEntry, uctx *UpdateContext) (*Result, error) {
	status := uctx.PaymentStatus

	if status == StatusPaid {
		validation, err := u.validator.ValidateLedgerEntry(ctx, entry.ID, uctx.Payment.Amount)
		if err != nil {
			return nil, NewBadRequest("amount validation failed", err)
		}
		if !validation.IsValid {
			u.metrics.RecordAmountMismatch(string(u.kind))
			return nil, NewBadRequest("Payment amount validation failed: "+validation.Reason, nil)
		}
	}

	targetOwner, hasTarget := OwnerStatusFor(status)

	var finalOwnerStatus OwnerStatus
	err := u.store.WithinTransaction(ctx, func(ctx context.Context, tx Transaction) error {
		now := time.Now().UTC()

		entry.Status = status
		entry.GatewayPaymentID = uctx.PaymentID
		if status == StatusPaid && entry.PaidAt == nil {
			entry.PaidAt = &now
		}
		if err := tx.UpdateLedgerEntry(ctx, entry); err != nil {
			return err
		}

		owner, err := tx.GetOwner(ctx, u.kind, entry.OwnerID)
		if err != nil {
			return err
		}
		finalOwnerStatus = owner.Status

		// Re-applying an already-reached status is a no-op: this guard
		// is what keeps a true idempotency-check race from writing a
		// second audit entry or a second transition.
		if !hasTarget || owner.Status == targetOwner {
			return nil
		}

		if err := tx.UpdateOwnerStatus(ctx, u.kind, owner.ID, targetOwner); err != nil {
			return err
		}
		if err := tx.AppendAudit(ctx, &AuditEntry{
			OwnerID:        owner.ID,
			PreviousStatus: owner.Status,
			NewStatus:      targetOwner,
			Reason:         fmt.Sprintf("gateway payment %s reported %s", uctx.PaymentID, uctx.Payment.Status),
			Actor:          AuditActor,
			At:             now,
		}); err != nil {
			return err
		}

		finalOwnerStatus = targetOwner
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrOwnerNotFound) {
			return nil, NewBadRequest("owner entity missing during transaction", err)
		}
		return nil, err
	}

	u.logger.Info("payment reconciled",
		Field{Key: "kind", Value: u.kind},
		Field{Key: "ledger_entry_id", Value: entry.ID},
		Field{Key: "owner_id", Value: entry.OwnerID},
		Field{Key: "payment_status", Value: status},
		Field{Key: "owner_status", Value: finalOwnerStatus})

	return &Result{
		Success:       true,
		EntityID:      entry.OwnerID,
		LedgerEntryID: entry.ID,
		PaymentID:     uctx.PaymentID,
		PaymentStatus: string(status),
		EntityStatus:  finalOwnerStatus,
	}, nil
}
