package payrecon

// MapPaymentStatus normalizes the gateway's status vocabulary into the
// internal one. The mapping is total and never fails: an unrecognized
// gateway status defaults to pending so a real-but-unknown status does
// not strand a payment in limbo.
func MapPaymentStatus(gatewayStatus string) PaymentStatus {
	switch gatewayStatus {
	case "approved":
		return StatusPaid
	case "rejected", "cancelled":
		return StatusFailed
	case "pending", "in_process":
		return StatusPending
	case "refunded", "charged_back":
		return StatusRefunded
	default:
		return StatusPending
	}
}

// OwnerStatusFor returns the target owner-entity status for a normalized
// payment status. Refunds do not drive an owner transition here (refund
// handling is an explicit administrative path), so ok is false for them.
func OwnerStatusFor(status PaymentStatus) (OwnerStatus, bool) {
	switch status {
	case StatusPaid:
		return OwnerActive, true
	case StatusFailed:
		return OwnerPaymentFailed, true
	case StatusPending:
		return OwnerPending, true
	default:
		return "", false
	}
}
