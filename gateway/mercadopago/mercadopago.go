// Package mercadopago adapts the official MercadoPago SDK to the
// payrecon.Gateway interface. Only the read side is implemented here;
// preference/checkout creation and credential handling are the hosting
// application's concern.
package mercadopago

import (
	"context"
	"fmt"
	"strconv"

	"github.com/mercadopago/sdk-go/pkg/config"
	"github.com/mercadopago/sdk-go/pkg/payment"

	"github.com/aulatech/payrecon/pkg/payrecon"
)

// Gateway implements payrecon.Gateway against the MercadoPago payments API.
type Gateway struct {
	payments payment.Client
}

// New creates a gateway adapter from a MercadoPago access token.
func New(accessToken string) (*Gateway, error) {
	if accessToken == "" {
		return nil, fmt.Errorf("access token is required")
	}

	cfg, err := config.New(accessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to configure mercadopago client: %w", err)
	}

	return &Gateway{payments: payment.NewClient(cfg)}, nil
}

// GetPayment implements payrecon.Gateway.
func (g *Gateway) GetPayment(ctx context.Context, paymentID string) (*payrecon.PaymentRecord, error) {
	id, err := strconv.Atoi(paymentID)
	if err != nil {
		return nil, fmt.Errorf("invalid payment id %q: %w", paymentID, err)
	}

	resp, err := g.payments.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("mercadopago get payment %s: %w", paymentID, err)
	}

	record := &payrecon.PaymentRecord{
		ID:                strconv.Itoa(resp.ID),
		Status:            resp.Status,
		ExternalReference: resp.ExternalReference,
		Amount:            resp.TransactionAmount,
	}
	if !resp.DateApproved.IsZero() {
		approved := resp.DateApproved
		record.CapturedAt = &approved
	}
	return record, nil
}
