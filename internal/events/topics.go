package events

// Topic constants for payment events emitted after reconciliation.
const (
	TopicInvoicePaid    = "invoice.paid"
	TopicPaymentPending = "payment.pending"
	TopicPaymentExpired = "payment.expired"
	TopicPaymentFailed  = "payment.failed"
	TopicPaymentUnknown = "payment.unknown"
)

// TopicForStatus maps a local transaction status onto its event topic.
func TopicForStatus(status string) string {
	switch status {
	case "complete":
		return TopicInvoicePaid
	case "pending":
		return TopicPaymentPending
	case "expired":
		return TopicPaymentExpired
	case "failed":
		return TopicPaymentFailed
	default:
		return TopicPaymentUnknown
	}
}
