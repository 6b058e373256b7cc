package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from PaymentStatus
		to   PaymentStatus
		want bool
	}{
		{"pending to awaiting_payment", PaymentStatusPending, PaymentStatusAwaitingPayment, true},
		{"awaiting_payment to processing", PaymentStatusAwaitingPayment, PaymentStatusProcessing, true},
		{"awaiting_payment to completed", PaymentStatusAwaitingPayment, PaymentStatusCompleted, true},
		{"awaiting_payment to cancelled", PaymentStatusAwaitingPayment, PaymentStatusCancelled, true},
		{"awaiting_payment to expired", PaymentStatusAwaitingPayment, PaymentStatusExpired, true},
		{"processing to completed", PaymentStatusProcessing, PaymentStatusCompleted, true},
		{"processing to failed", PaymentStatusProcessing, PaymentStatusFailed, true},
		{"completed is terminal", PaymentStatusCompleted, PaymentStatusCancelled, false},
		{"failed is terminal", PaymentStatusFailed, PaymentStatusProcessing, false},
		{"cancelled is terminal", PaymentStatusCancelled, PaymentStatusAwaitingPayment, false},
		{"expired is terminal", PaymentStatusExpired, PaymentStatusCompleted, false},
		{"no backwards move", PaymentStatusProcessing, PaymentStatusAwaitingPayment, false},
		{"pending cannot complete directly", PaymentStatusPending, PaymentStatusCompleted, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, CanTransition(tc.from, tc.to))
		})
	}
}

func TestIsTerminal(t *testing.T) {
	terminal := []PaymentStatus{PaymentStatusCompleted, PaymentStatusFailed, PaymentStatusCancelled, PaymentStatusExpired}
	for _, s := range terminal {
		assert.True(t, s.IsTerminal(), string(s))
	}

	open := []PaymentStatus{PaymentStatusPending, PaymentStatusAwaitingPayment, PaymentStatusProcessing}
	for _, s := range open {
		assert.False(t, s.IsTerminal(), string(s))
	}
}

func TestPaymentExpired(t *testing.T) {
	now := time.Now().UTC()

	p := &Payment{Status: PaymentStatusAwaitingPayment, ExpiresAt: now.Add(-time.Minute)}
	assert.True(t, p.Expired(now))

	p.ExpiresAt = now.Add(time.Minute)
	assert.False(t, p.Expired(now))

	// A settled payment never flips to expired, however old.
	p = &Payment{Status: PaymentStatusCompleted, ExpiresAt: now.Add(-time.Hour)}
	assert.False(t, p.Expired(now))
}
