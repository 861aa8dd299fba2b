package payrecon_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aulatech/payrecon/pkg/payrecon"
)

// fakeGateway serves canned payment records keyed by payment id and
// counts fetches, so tests can assert the gateway is never consulted on
// short-circuit paths.
type fakeGateway struct {
	payments map[string]*payrecon.PaymentRecord
	err      error
	calls    atomic.Int64
}

func (g *fakeGateway) GetPayment(_ context.Context, paymentID string) (*payrecon.PaymentRecord, error) {
	g.calls.Add(1)
	if g.err != nil {
		return nil, g.err
	}
	payment, ok := g.payments[paymentID]
	if !ok {
		return nil, errors.New("payment not found at gateway")
	}
	paymentCopy := *payment
	return &paymentCopy, nil
}

func paymentNotification(id string) payrecon.Notification {
	return payrecon.Notification{Kind: "payment", Action: "payment.updated", PaymentID: id}
}

func newProcessor(t *testing.T, gateway payrecon.Gateway) *payrecon.Processor {
	t.Helper()
	processor, err := payrecon.NewProcessor(gateway, payrecon.Config{})
	require.NoError(t, err)
	return processor
}

func noFind(_ context.Context, _ *payrecon.ParsedReference) (*payrecon.LedgerEntry, error) {
	return nil, nil
}

func noUpdate(_ context.Context, _ *payrecon.LedgerEntry, _ *payrecon.UpdateContext) (*payrecon.Result, error) {
	return &payrecon.Result{Success: true}, nil
}

func TestProcessor_RequiresGateway(t *testing.T) {
	_, err := payrecon.NewProcessor(nil, payrecon.Config{})
	assert.ErrorIs(t, err, payrecon.ErrGatewayRequired)
}

func TestProcessor_IgnoresNonPaymentKinds(t *testing.T) {
	gateway := &fakeGateway{}
	processor := newProcessor(t, gateway)

	for _, kind := range []string{"subscription_preapproval", "plan", "invoice", ""} {
		result, err := processor.Process(context.Background(),
			payrecon.Notification{Kind: kind, Action: "updated", PaymentID: "123"},
			payrecon.KindEnrollment2026, noFind, noUpdate)
		require.NoError(t, err)
		assert.False(t, result.Success)
		assert.Equal(t, payrecon.MsgTypeNotHandled, result.Message)
	}

	assert.Equal(t, int64(0), gateway.calls.Load(), "gateway must not be consulted for ignored kinds")
}

func TestProcessor_GatewayFailure(t *testing.T) {
	gateway := &fakeGateway{err: errors.New("gateway timeout")}
	processor := newProcessor(t, gateway)

	_, err := processor.Process(context.Background(), paymentNotification("123"),
		payrecon.KindEnrollment2026, noFind, noUpdate)
	require.Error(t, err)
	assert.True(t, payrecon.IsBadRequest(err))
}

func TestProcessor_MissingExternalReference(t *testing.T) {
	gateway := &fakeGateway{payments: map[string]*payrecon.PaymentRecord{
		"123": {ID: "123", Status: "approved", ExternalReference: "", Amount: 100},
	}}
	processor := newProcessor(t, gateway)

	result, err := processor.Process(context.Background(), paymentNotification("123"),
		payrecon.KindEnrollment2026, noFind, noUpdate)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, payrecon.MsgNoExternalRef, result.Message)
}

func TestProcessor_WrongReferenceKind(t *testing.T) {
	gateway := &fakeGateway{payments: map[string]*payrecon.PaymentRecord{
		"123": {ID: "123", Status: "approved", ExternalReference: "membresia-123-tutor-456", Amount: 100},
	}}
	processor := newProcessor(t, gateway)

	// A well-formed reference of another family is still invalid for
	// this processor.
	result, err := processor.Process(context.Background(), paymentNotification("123"),
		payrecon.KindEnrollment2026, noFind, noUpdate)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, payrecon.MsgInvalidExternalRef, result.Message)
}

func TestProcessor_MalformedReference(t *testing.T) {
	gateway := &fakeGateway{payments: map[string]*payrecon.PaymentRecord{
		"123": {ID: "123", Status: "approved", ExternalReference: "not-a-reference", Amount: 100},
	}}
	processor := newProcessor(t, gateway)

	result, err := processor.Process(context.Background(), paymentNotification("123"),
		payrecon.KindEnrollment2026, noFind, noUpdate)
	require.NoError(t, err)
	assert.Equal(t, payrecon.MsgInvalidExternalRef, result.Message)
}

func TestProcessor_EntityNotFound(t *testing.T) {
	gateway := &fakeGateway{payments: map[string]*payrecon.PaymentRecord{
		"123": {ID: "123", Status: "approved", ExternalReference: "enrollment2026-E1-tutor-T1-type-COLONIA", Amount: 100},
	}}
	processor := newProcessor(t, gateway)

	result, err := processor.Process(context.Background(), paymentNotification("123"),
		payrecon.KindEnrollment2026, noFind, noUpdate)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, payrecon.MsgPaymentNotFound, result.Message)
}

func TestProcessor_UpdateContext(t *testing.T) {
	gateway := &fakeGateway{payments: map[string]*payrecon.PaymentRecord{
		"123": {ID: "123", Status: "approved", ExternalReference: "enrollment2026-E1-tutor-T1-type-COLONIA", Amount: 25000},
	}}
	processor := newProcessor(t, gateway)

	entry := &payrecon.LedgerEntry{ID: "le-1", OwnerID: "E1", Kind: payrecon.KindEnrollment2026, ExpectedAmount: 25000}
	find := func(_ context.Context, parsed *payrecon.ParsedReference) (*payrecon.LedgerEntry, error) {
		assert.Equal(t, payrecon.KindEnrollment2026, parsed.Kind)
		assert.Equal(t, "E1", parsed.IDs["enrollmentID"])
		return entry, nil
	}

	var got *payrecon.UpdateContext
	update := func(_ context.Context, e *payrecon.LedgerEntry, uctx *payrecon.UpdateContext) (*payrecon.Result, error) {
		assert.Same(t, entry, e)
		got = uctx
		return &payrecon.Result{Success: true, PaymentID: uctx.PaymentID}, nil
	}

	result, err := processor.Process(context.Background(), paymentNotification("123"),
		payrecon.KindEnrollment2026, find, update)
	require.NoError(t, err)
	assert.True(t, result.Success)

	require.NotNil(t, got)
	assert.Equal(t, "123", got.PaymentID)
	assert.Equal(t, payrecon.StatusPaid, got.PaymentStatus)
	assert.Equal(t, "enrollment2026-E1-tutor-T1-type-COLONIA", got.ExternalReference)
}

func TestProcessor_CallbackErrors(t *testing.T) {
	gateway := &fakeGateway{payments: map[string]*payrecon.PaymentRecord{
		"123": {ID: "123", Status: "approved", ExternalReference: "enrollment2026-E1-tutor-T1-type-COLONIA", Amount: 100},
	}}
	processor := newProcessor(t, gateway)

	findErr := func(_ context.Context, _ *payrecon.ParsedReference) (*payrecon.LedgerEntry, error) {
		return nil, errors.New("db down")
	}
	_, err := processor.Process(context.Background(), paymentNotification("123"),
		payrecon.KindEnrollment2026, findErr, noUpdate)
	require.Error(t, err)
	assert.True(t, payrecon.IsBadRequest(err))

	entry := &payrecon.LedgerEntry{ID: "le-1", OwnerID: "E1", Kind: payrecon.KindEnrollment2026}
	found := func(_ context.Context, _ *payrecon.ParsedReference) (*payrecon.LedgerEntry, error) {
		return entry, nil
	}

	// A BadRequestError from the update callback passes through unwrapped.
	fraud := payrecon.NewBadRequest("Payment amount validation failed: Amount mismatch: expected $100.00, received $5.00", nil)
	updateFraud := func(_ context.Context, _ *payrecon.LedgerEntry, _ *payrecon.UpdateContext) (*payrecon.Result, error) {
		return nil, fraud
	}
	_, err = processor.Process(context.Background(), paymentNotification("123"),
		payrecon.KindEnrollment2026, found, updateFraud)
	assert.Same(t, fraud, err.(*payrecon.BadRequestError))

	updateErr := func(_ context.Context, _ *payrecon.LedgerEntry, _ *payrecon.UpdateContext) (*payrecon.Result, error) {
		return nil, errors.New("constraint violation")
	}
	_, err = processor.Process(context.Background(), paymentNotification("123"),
		payrecon.KindEnrollment2026, found, updateErr)
	require.Error(t, err)
	assert.True(t, payrecon.IsBadRequest(err))
}
