package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tollgate-dev/tollgate/internal/domain"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// PaymentStore is the storage contract the lifecycle runs on. Implementations
// must serialize status transitions per payment id and reject transitions the
// lifecycle forbids with domain.ErrInvalidTransition.
type PaymentStore interface {
	Create(ctx context.Context, payment *domain.Payment) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, to domain.PaymentStatus) (*domain.Payment, error)
	List(ctx context.Context, status domain.PaymentStatus, limit, offset int) ([]*domain.Payment, error)
}

// Notifier receives a notification for every observable status change.
type Notifier interface {
	Notify(ctx context.Context, n domain.WebhookNotification)
}

// PaymentService owns the payment lifecycle: creation, expiry, cancellation,
// and the transitions driven by processor confirmations. All status changes
// go through the store's guarded UpdateStatus; the service never mutates a
// record it holds.
type PaymentService struct {
	store          PaymentStore
	notifier       Notifier
	paymentPageURL string
}

// NewPaymentService wires the lifecycle to a store and an optional notifier
// (nil disables outbound webhooks).
func NewPaymentService(store PaymentStore, notifier Notifier, paymentPageURL string) *PaymentService {
	return &PaymentService{
		store:          store,
		notifier:       notifier,
		paymentPageURL: strings.TrimSuffix(paymentPageURL, "/"),
	}
}

type CreatePaymentRequest struct {
	Amount      int64
	Currency    string
	Description string
	Metadata    json.RawMessage
}

func (s *PaymentService) Create(ctx context.Context, req CreatePaymentRequest) (*domain.Payment, error) {
	if req.Amount <= 0 {
		return nil, fmt.Errorf("Create: %w", domain.ErrInvalidAmount)
	}
	if req.Currency == "" {
		return nil, fmt.Errorf("Create: %w", domain.ErrCurrencyRequired)
	}

	now := time.Now().UTC()
	p := &domain.Payment{
		ID:          uuid.New(),
		Status:      domain.PaymentStatusAwaitingPayment,
		Amount:      req.Amount,
		Currency:    req.Currency,
		Description: req.Description,
		Metadata:    req.Metadata,
		CreatedAt:   now,
		UpdatedAt:   now,
		ExpiresAt:   now.Add(domain.PaymentTTL),
	}
	p.PaymentURL = fmt.Sprintf("%s/pay/%s", s.paymentPageURL, p.ID)

	if err := s.store.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("Create: %w", err)
	}

	s.notify(ctx, p)
	return p, nil
}

// Get returns the payment, materializing expiry first: a non-terminal record
// whose TTL has passed is transitioned to expired before being reported, so
// the observed status never lags the clock.
func (s *PaymentService) Get(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	p, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}

	if !p.Expired(time.Now().UTC()) {
		return p, nil
	}

	expired, err := s.store.UpdateStatus(ctx, id, domain.PaymentStatusExpired)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			// Lost a race with a concurrent transition; the record is
			// terminal now, report whatever won.
			return s.store.GetByID(ctx, id)
		}
		return nil, fmt.Errorf("Get: %w", err)
	}

	s.notify(ctx, expired)
	return expired, nil
}

// Cancel transitions the payment to cancelled. Cancelling a completed payment
// is an error; cancelling a payment that already reached any other terminal
// status is an idempotent no-op returning the record unchanged.
func (s *PaymentService) Cancel(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("Cancel: %w", err)
	}

	if p.Status == domain.PaymentStatusCompleted {
		return nil, fmt.Errorf("Cancel: %w", domain.ErrPaymentCompleted)
	}
	if p.Status.IsTerminal() {
		return p, nil
	}

	cancelled, err := s.store.UpdateStatus(ctx, id, domain.PaymentStatusCancelled)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			return s.settleCancelRace(ctx, id)
		}
		return nil, fmt.Errorf("Cancel: %w", err)
	}

	s.notify(ctx, cancelled)
	return cancelled, nil
}

// settleCancelRace re-reads after a cancel lost to a concurrent transition
// and applies the cancel policy to the status that won.
func (s *PaymentService) settleCancelRace(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	p, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("Cancel: %w", err)
	}
	if p.Status == domain.PaymentStatusCompleted {
		return nil, fmt.Errorf("Cancel: %w", domain.ErrPaymentCompleted)
	}
	return p, nil
}

func (s *PaymentService) List(ctx context.Context, status domain.PaymentStatus, limit, offset int) ([]*domain.Payment, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	payments, err := s.store.List(ctx, status, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}
	return payments, nil
}

// MarkProcessing records that the processor has picked the payment up.
func (s *PaymentService) MarkProcessing(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	return s.applyTransition(ctx, id, domain.PaymentStatusProcessing)
}

// MarkCompleted applies a processor confirmation.
func (s *PaymentService) MarkCompleted(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	return s.applyTransition(ctx, id, domain.PaymentStatusCompleted)
}

// MarkFailed applies a processor decline.
func (s *PaymentService) MarkFailed(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	return s.applyTransition(ctx, id, domain.PaymentStatusFailed)
}

func (s *PaymentService) applyTransition(ctx context.Context, id uuid.UUID, to domain.PaymentStatus) (*domain.Payment, error) {
	// Expiry wins over late confirmations: Get materializes it first.
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("applyTransition: %w", err)
	}

	// Redelivered notifications land here; same terminal status is a no-op.
	if p.Status == to {
		return p, nil
	}

	updated, err := s.store.UpdateStatus(ctx, id, to)
	if err != nil {
		return nil, fmt.Errorf("applyTransition: %w", err)
	}

	s.notify(ctx, updated)
	return updated, nil
}

func (s *PaymentService) notify(ctx context.Context, p *domain.Payment) {
	if s.notifier == nil {
		return
	}
	event, ok := domain.WebhookEventForStatus(p.Status)
	if !ok {
		return
	}
	s.notifier.Notify(ctx, domain.WebhookNotification{
		Event:     event,
		Data:      p,
		Timestamp: time.Now().UTC(),
	})
}
