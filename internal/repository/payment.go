package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/tollgate-dev/tollgate/internal/domain"
)

const paymentColumns = `id, status, amount, currency, description, metadata,
	payment_url, created_at, updated_at, expires_at`

type scanner interface {
	Scan(dest ...any) error
}

// PaymentRepository is the durable payment store. Transition legality is
// enforced inside the UPDATE itself, so concurrent writers on the same id
// serialize on the row and cannot produce an illegal status.
type PaymentRepository struct {
	db *sql.DB
}

func NewPaymentRepository(db *sql.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO payments (
			id, status, amount, currency, description, metadata,
			payment_url, created_at, updated_at, expires_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		payment.ID, payment.Status, payment.Amount, payment.Currency, payment.Description,
		nullableJSON(payment.Metadata), payment.PaymentURL,
		payment.CreatedAt, payment.UpdatedAt, payment.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *PaymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id,
	)
	p, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return p, nil
}

// UpdateStatus applies a guarded transition and returns the updated record.
// The WHERE clause admits only statuses the lifecycle allows as sources of
// the target status, so an illegal transition affects zero rows.
func (r *PaymentRepository) UpdateStatus(ctx context.Context, id uuid.UUID, to domain.PaymentStatus) (*domain.Payment, error) {
	sources := transitionSources(to)
	if len(sources) == 0 {
		return nil, fmt.Errorf("UpdateStatus: %w", domain.ErrInvalidTransition)
	}

	row := r.db.QueryRowContext(ctx,
		`UPDATE payments SET status = $2, updated_at = $3
		WHERE id = $1 AND status = ANY($4)
		RETURNING `+paymentColumns,
		id, to, time.Now().UTC(), pq.Array(sources),
	)
	p, err := scanPayment(row)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("UpdateStatus: %w", err)
	}

	// Zero rows: either the payment does not exist or its current status
	// forbids the transition.
	if _, err := r.GetByID(ctx, id); err != nil {
		return nil, fmt.Errorf("UpdateStatus: %w", domain.ErrNotFound)
	}
	return nil, fmt.Errorf("UpdateStatus: %w", domain.ErrInvalidTransition)
}

func (r *PaymentRepository) List(ctx context.Context, status domain.PaymentStatus, limit, offset int) ([]*domain.Payment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+paymentColumns+` FROM payments
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`,
		string(status), limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}
	defer rows.Close()

	payments := []*domain.Payment{}
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("List: %w", err)
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}
	return payments, nil
}

func transitionSources(to domain.PaymentStatus) []string {
	all := []domain.PaymentStatus{
		domain.PaymentStatusPending,
		domain.PaymentStatusAwaitingPayment,
		domain.PaymentStatusProcessing,
	}
	var sources []string
	for _, from := range all {
		if domain.CanTransition(from, to) {
			sources = append(sources, string(from))
		}
	}
	return sources
}

func scanPayment(s scanner) (*domain.Payment, error) {
	var p domain.Payment
	var metadata []byte

	err := s.Scan(
		&p.ID, &p.Status, &p.Amount, &p.Currency, &p.Description, &metadata,
		&p.PaymentURL, &p.CreatedAt, &p.UpdatedAt, &p.ExpiresAt,
	)
	if err != nil {
		return nil, err
	}
	p.Metadata = metadata
	return &p, nil
}

// nullableJSON passes raw JSON as text; lib/pq would otherwise encode a
// []byte parameter as bytea, which a JSONB column rejects.
func nullableJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
