package payrecon

import "context"

// Gateway is the payment gateway collaborator. The engine only ever
// fetches the authoritative payment record by id; preference/checkout
// creation and authentication live outside this package.
type Gateway interface {
	// GetPayment fetches the gateway's record for one payment id.
	// A fetch failure (timeout, 5xx) surfaces to the webhook caller as a
	// client-facing error so the gateway's retry mechanism re-delivers.
	GetPayment(ctx context.Context, paymentID string) (*PaymentRecord, error)
}
