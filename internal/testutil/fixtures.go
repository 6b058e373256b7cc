package testutil

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/tollgate-dev/tollgate/internal/domain"
)

// NewPayment builds a payable record created at the given instant; the zero
// time means now.
func NewPayment(t *testing.T, status domain.PaymentStatus, createdAt time.Time) *domain.Payment {
	t.Helper()

	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	id := uuid.New()
	return &domain.Payment{
		ID:         id,
		Status:     status,
		Amount:     1000,
		Currency:   "USD",
		PaymentURL: "http://localhost:8081/pay/" + id.String(),
		CreatedAt:  createdAt,
		UpdatedAt:  createdAt,
		ExpiresAt:  createdAt.Add(domain.PaymentTTL),
	}
}
