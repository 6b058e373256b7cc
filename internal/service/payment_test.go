package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tollgate-dev/tollgate/internal/domain"
	"github.com/tollgate-dev/tollgate/internal/repository"
	"github.com/tollgate-dev/tollgate/internal/testutil"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []domain.WebhookEvent
}

func (n *recordingNotifier) Notify(_ context.Context, notification domain.WebhookNotification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, notification.Event)
}

func (n *recordingNotifier) Events() []domain.WebhookEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]domain.WebhookEvent(nil), n.events...)
}

func newTestService(t *testing.T) (*PaymentService, *repository.MemoryPaymentStore, *recordingNotifier) {
	t.Helper()
	store := repository.NewMemoryPaymentStore()
	notifier := &recordingNotifier{}
	return NewPaymentService(store, notifier, "http://localhost:8081"), store, notifier
}

func TestPaymentService_Create(t *testing.T) {
	ctx := context.Background()
	svc, _, notifier := newTestService(t)

	before := time.Now().UTC()
	p, err := svc.Create(ctx, CreatePaymentRequest{
		Amount:      2500,
		Currency:    "USD",
		Description: "premium report",
	})
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, p.ID)
	assert.Equal(t, domain.PaymentStatusAwaitingPayment, p.Status)
	assert.Equal(t, int64(2500), p.Amount)
	assert.Equal(t, "USD", p.Currency)
	assert.Equal(t, "http://localhost:8081/pay/"+p.ID.String(), p.PaymentURL)
	assert.Equal(t, p.CreatedAt.Add(domain.PaymentTTL), p.ExpiresAt)
	assert.False(t, p.CreatedAt.Before(before))

	assert.Equal(t, []domain.WebhookEvent{domain.WebhookEventPaymentCreated}, notifier.Events())
}

func TestPaymentService_Create_Validation(t *testing.T) {
	tests := []struct {
		name    string
		req     CreatePaymentRequest
		wantErr error
	}{
		{name: "zero amount", req: CreatePaymentRequest{Amount: 0, Currency: "USD"}, wantErr: domain.ErrInvalidAmount},
		{name: "negative amount", req: CreatePaymentRequest{Amount: -5, Currency: "USD"}, wantErr: domain.ErrInvalidAmount},
		{name: "missing currency", req: CreatePaymentRequest{Amount: 100}, wantErr: domain.ErrCurrencyRequired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, _ := newTestService(t)
			_, err := svc.Create(context.Background(), tt.req)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestPaymentService_Get_NotFound(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPaymentService_Get_MaterializesExpiry(t *testing.T) {
	ctx := context.Background()
	svc, store, notifier := newTestService(t)

	stale := testutil.NewPayment(t, domain.PaymentStatusAwaitingPayment, time.Now().UTC().Add(-2*domain.PaymentTTL))
	require.NoError(t, store.Create(ctx, stale))

	got, err := svc.Get(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusExpired, got.Status)

	// The stored record is expired too, not just the returned snapshot.
	persisted, err := store.GetByID(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusExpired, persisted.Status)

	assert.Equal(t, []domain.WebhookEvent{domain.WebhookEventPaymentExpired}, notifier.Events())
}

func TestPaymentService_Get_TerminalIsNotExpired(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestService(t)

	old := testutil.NewPayment(t, domain.PaymentStatusCompleted, time.Now().UTC().Add(-2*domain.PaymentTTL))
	require.NoError(t, store.Create(ctx, old))

	got, err := svc.Get(ctx, old.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusCompleted, got.Status)
}

func TestPaymentService_Cancel(t *testing.T) {
	ctx := context.Background()
	svc, _, notifier := newTestService(t)

	p, err := svc.Create(ctx, CreatePaymentRequest{Amount: 1000, Currency: "USD"})
	require.NoError(t, err)

	cancelled, err := svc.Cancel(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusCancelled, cancelled.Status)

	// Observed status sticks on re-read.
	got, err := svc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusCancelled, got.Status)

	assert.Equal(t, []domain.WebhookEvent{
		domain.WebhookEventPaymentCreated,
		domain.WebhookEventPaymentCancelled,
	}, notifier.Events())
}

func TestPaymentService_Cancel_Completed(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestService(t)

	p := testutil.NewPayment(t, domain.PaymentStatusCompleted, time.Time{})
	require.NoError(t, store.Create(ctx, p))

	_, err := svc.Cancel(ctx, p.ID)
	assert.ErrorIs(t, err, domain.ErrPaymentCompleted)
}

func TestPaymentService_Cancel_IdempotentOnTerminal(t *testing.T) {
	for _, status := range []domain.PaymentStatus{
		domain.PaymentStatusCancelled,
		domain.PaymentStatusFailed,
		domain.PaymentStatusExpired,
	} {
		t.Run(string(status), func(t *testing.T) {
			ctx := context.Background()
			svc, store, notifier := newTestService(t)

			p := testutil.NewPayment(t, status, time.Time{})
			require.NoError(t, store.Create(ctx, p))

			got, err := svc.Cancel(ctx, p.ID)
			require.NoError(t, err)
			assert.Equal(t, status, got.Status)
			assert.Empty(t, notifier.Events())
		})
	}
}

func TestPaymentService_MarkTransitions(t *testing.T) {
	ctx := context.Background()
	svc, _, notifier := newTestService(t)

	p, err := svc.Create(ctx, CreatePaymentRequest{Amount: 1000, Currency: "USD"})
	require.NoError(t, err)

	processing, err := svc.MarkProcessing(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusProcessing, processing.Status)

	completed, err := svc.MarkCompleted(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusCompleted, completed.Status)

	assert.Equal(t, []domain.WebhookEvent{
		domain.WebhookEventPaymentCreated,
		domain.WebhookEventPaymentProcessing,
		domain.WebhookEventPaymentCompleted,
	}, notifier.Events())
}

func TestPaymentService_MarkCompleted_SkipsProcessing(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	p, err := svc.Create(ctx, CreatePaymentRequest{Amount: 1000, Currency: "USD"})
	require.NoError(t, err)

	completed, err := svc.MarkCompleted(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusCompleted, completed.Status)
}

func TestPaymentService_MarkCompleted_Redelivery(t *testing.T) {
	ctx := context.Background()
	svc, _, notifier := newTestService(t)

	p, err := svc.Create(ctx, CreatePaymentRequest{Amount: 1000, Currency: "USD"})
	require.NoError(t, err)

	_, err = svc.MarkCompleted(ctx, p.ID)
	require.NoError(t, err)

	// A duplicate delivery of the same confirmation is absorbed.
	again, err := svc.MarkCompleted(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusCompleted, again.Status)

	assert.Equal(t, []domain.WebhookEvent{
		domain.WebhookEventPaymentCreated,
		domain.WebhookEventPaymentCompleted,
	}, notifier.Events())
}

func TestPaymentService_MarkCompleted_AfterExpiry(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestService(t)

	stale := testutil.NewPayment(t, domain.PaymentStatusAwaitingPayment, time.Now().UTC().Add(-2*domain.PaymentTTL))
	require.NoError(t, store.Create(ctx, stale))

	// Expiry wins over a confirmation that arrives too late.
	_, err := svc.MarkCompleted(ctx, stale.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	got, err := svc.Get(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusExpired, got.Status)
}

func TestPaymentService_MarkFailed_AfterCancel(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	p, err := svc.Create(ctx, CreatePaymentRequest{Amount: 1000, Currency: "USD"})
	require.NoError(t, err)

	_, err = svc.Cancel(ctx, p.ID)
	require.NoError(t, err)

	_, err = svc.MarkFailed(ctx, p.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestPaymentService_List(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	for i := 0; i < 5; i++ {
		_, err := svc.Create(ctx, CreatePaymentRequest{Amount: int64(100 * (i + 1)), Currency: "USD"})
		require.NoError(t, err)
	}

	all, err := svc.List(ctx, "", 0, 0)
	require.NoError(t, err)
	assert.Len(t, all, 5)

	limited, err := svc.List(ctx, "", 2, 0)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	none, err := svc.List(ctx, domain.PaymentStatusCompleted, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestPaymentService_NilNotifier(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryPaymentStore()
	svc := NewPaymentService(store, nil, "http://localhost:8081")

	p, err := svc.Create(ctx, CreatePaymentRequest{Amount: 1000, Currency: "USD"})
	require.NoError(t, err)

	_, err = svc.MarkCompleted(ctx, p.ID)
	require.NoError(t, err)
}
