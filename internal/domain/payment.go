package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type PaymentStatus string

const (
	PaymentStatusPending         PaymentStatus = "pending"
	PaymentStatusAwaitingPayment PaymentStatus = "awaiting_payment"
	PaymentStatusProcessing      PaymentStatus = "processing"
	PaymentStatusCompleted       PaymentStatus = "completed"
	PaymentStatusFailed          PaymentStatus = "failed"
	PaymentStatusCancelled       PaymentStatus = "cancelled"
	PaymentStatusExpired         PaymentStatus = "expired"
)

// PaymentTTL is how long a payment stays payable after creation.
const PaymentTTL = time.Hour

// IsValid reports whether s is a known lifecycle status.
func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusAwaitingPayment, PaymentStatusProcessing,
		PaymentStatusCompleted, PaymentStatusFailed, PaymentStatusCancelled, PaymentStatusExpired:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is permitted from s.
func (s PaymentStatus) IsTerminal() bool {
	switch s {
	case PaymentStatusCompleted, PaymentStatusFailed, PaymentStatusCancelled, PaymentStatusExpired:
		return true
	}
	return false
}

// transitions is the lifecycle graph. pending exists only before a record is
// stored; creation writes awaiting_payment directly, so pending is never
// observed through the API.
var transitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusPending: {PaymentStatusAwaitingPayment},
	PaymentStatusAwaitingPayment: {
		PaymentStatusProcessing,
		PaymentStatusCompleted,
		PaymentStatusFailed,
		PaymentStatusCancelled,
		PaymentStatusExpired,
	},
	PaymentStatusProcessing: {
		PaymentStatusCompleted,
		PaymentStatusFailed,
		PaymentStatusCancelled,
		PaymentStatusExpired,
	},
}

// CanTransition reports whether the lifecycle permits moving from one status
// to another. Terminal statuses permit nothing.
func CanTransition(from, to PaymentStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type Payment struct {
	ID          uuid.UUID
	Status      PaymentStatus
	Amount      int64
	Currency    string
	Description string
	Metadata    json.RawMessage
	PaymentURL  string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	ExpiresAt   time.Time
}

// Expired reports whether the payment's TTL has passed at the given instant.
// A terminal payment never re-expires.
func (p *Payment) Expired(now time.Time) bool {
	return !p.Status.IsTerminal() && now.After(p.ExpiresAt)
}
