package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tollgate-dev/tollgate/internal/domain"
)

// MemoryPaymentStore keeps payments in a map behind a mutex. It backs tests
// and single-instance deployments without a database; the mutex gives the
// same per-id transition serialization the Postgres store gets from its
// guarded UPDATE.
type MemoryPaymentStore struct {
	mu       sync.RWMutex
	payments map[uuid.UUID]*domain.Payment
}

func NewMemoryPaymentStore() *MemoryPaymentStore {
	return &MemoryPaymentStore{payments: make(map[uuid.UUID]*domain.Payment)}
}

func (s *MemoryPaymentStore) Create(_ context.Context, payment *domain.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.payments[payment.ID]; exists {
		return fmt.Errorf("Create: payment %s already exists", payment.ID)
	}
	s.payments[payment.ID] = clonePayment(payment)
	return nil
}

func (s *MemoryPaymentStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.payments[id]
	if !ok {
		return nil, fmt.Errorf("GetByID: %w", domain.ErrNotFound)
	}
	return clonePayment(p), nil
}

func (s *MemoryPaymentStore) UpdateStatus(_ context.Context, id uuid.UUID, to domain.PaymentStatus) (*domain.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.payments[id]
	if !ok {
		return nil, fmt.Errorf("UpdateStatus: %w", domain.ErrNotFound)
	}
	if !domain.CanTransition(p.Status, to) {
		return nil, fmt.Errorf("UpdateStatus: %s -> %s: %w", p.Status, to, domain.ErrInvalidTransition)
	}

	p.Status = to
	p.UpdatedAt = time.Now().UTC()
	return clonePayment(p), nil
}

func (s *MemoryPaymentStore) List(_ context.Context, status domain.PaymentStatus, limit, offset int) ([]*domain.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]*domain.Payment, 0, len(s.payments))
	for _, p := range s.payments {
		if status != "" && p.Status != status {
			continue
		}
		matched = append(matched, clonePayment(p))
	}

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID.String() > matched[j].ID.String()
	})

	if offset >= len(matched) {
		return []*domain.Payment{}, nil
	}
	matched = matched[offset:]
	if limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}
	return matched, nil
}

// clonePayment copies the record so callers never share memory with the map.
func clonePayment(p *domain.Payment) *domain.Payment {
	c := *p
	if p.Metadata != nil {
		c.Metadata = append([]byte(nil), p.Metadata...)
	}
	return &c
}
