package domain

import "time"

type WebhookEvent string

const (
	WebhookEventPaymentCreated    WebhookEvent = "payment.created"
	WebhookEventPaymentProcessing WebhookEvent = "payment.processing"
	WebhookEventPaymentCompleted  WebhookEvent = "payment.completed"
	WebhookEventPaymentFailed     WebhookEvent = "payment.failed"
	WebhookEventPaymentCancelled  WebhookEvent = "payment.cancelled"
	WebhookEventPaymentExpired    WebhookEvent = "payment.expired"
)

// WebhookEventForStatus maps a freshly applied status to the event announcing
// it. Only observable transitions have events; pending has none.
func WebhookEventForStatus(s PaymentStatus) (WebhookEvent, bool) {
	switch s {
	case PaymentStatusAwaitingPayment:
		return WebhookEventPaymentCreated, true
	case PaymentStatusProcessing:
		return WebhookEventPaymentProcessing, true
	case PaymentStatusCompleted:
		return WebhookEventPaymentCompleted, true
	case PaymentStatusFailed:
		return WebhookEventPaymentFailed, true
	case PaymentStatusCancelled:
		return WebhookEventPaymentCancelled, true
	case PaymentStatusExpired:
		return WebhookEventPaymentExpired, true
	}
	return "", false
}

// WebhookNotification announces a status change to integrators. It is built,
// signed, delivered, and forgotten; the engine persists no delivery state and
// gives no delivery guarantee.
type WebhookNotification struct {
	Event     WebhookEvent
	Data      *Payment
	Timestamp time.Time
}
