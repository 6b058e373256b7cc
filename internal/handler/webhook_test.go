package handler

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tollgate-dev/tollgate/internal/domain"
	"github.com/tollgate-dev/tollgate/internal/repository"
	"github.com/tollgate-dev/tollgate/internal/service"
	"github.com/tollgate-dev/tollgate/internal/testutil"
	"github.com/tollgate-dev/tollgate/internal/webhook"
)

const testWebhookSecret = "webhook-secret-for-tests"

func newWebhookTestServer(t *testing.T) (*httptest.Server, *repository.MemoryPaymentStore, *webhook.Signer) {
	t.Helper()

	store := repository.NewMemoryPaymentStore()
	svc := service.NewPaymentService(store, nil, "http://localhost:8081")

	signer, err := webhook.NewSigner(testWebhookSecret)
	require.NoError(t, err)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/webhooks/payment", NewWebhookHandler(svc, signer).ReceivePaymentWebhook)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, store, signer
}

func postWebhook(t *testing.T, url string, body []byte, signature string) *http.Response {
	t.Helper()

	req, err := http.NewRequest(http.MethodPost, url+"/api/webhooks/payment", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set(webhook.SignatureHeader, signature)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func webhookBody(event string, paymentID uuid.UUID) []byte {
	return []byte(fmt.Sprintf(`{"event":%q,"payment_id":%q,"timestamp":%q}`,
		event, paymentID, time.Now().UTC().Format(time.RFC3339)))
}

func TestWebhookHandler_AppliesTransitions(t *testing.T) {
	tests := []struct {
		name       string
		event      string
		from       domain.PaymentStatus
		wantStatus domain.PaymentStatus
	}{
		{name: "processing", event: "payment.processing", from: domain.PaymentStatusAwaitingPayment, wantStatus: domain.PaymentStatusProcessing},
		{name: "completed", event: "payment.completed", from: domain.PaymentStatusProcessing, wantStatus: domain.PaymentStatusCompleted},
		{name: "completed without processing", event: "payment.completed", from: domain.PaymentStatusAwaitingPayment, wantStatus: domain.PaymentStatusCompleted},
		{name: "failed", event: "payment.failed", from: domain.PaymentStatusProcessing, wantStatus: domain.PaymentStatusFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, store, signer := newWebhookTestServer(t)

			p := testutil.NewPayment(t, tt.from, time.Time{})
			require.NoError(t, store.Create(context.Background(), p))

			body := webhookBody(tt.event, p.ID)
			resp := postWebhook(t, srv.URL, body, signer.Sign(body))
			defer resp.Body.Close()
			assert.Equal(t, http.StatusOK, resp.StatusCode)

			got, err := store.GetByID(context.Background(), p.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, got.Status)
		})
	}
}

func TestWebhookHandler_RejectsBadSignature(t *testing.T) {
	srv, store, _ := newWebhookTestServer(t)

	p := testutil.NewPayment(t, domain.PaymentStatusAwaitingPayment, time.Time{})
	require.NoError(t, store.Create(context.Background(), p))

	body := webhookBody("payment.completed", p.ID)

	otherSigner, err := webhook.NewSigner("some-other-secret")
	require.NoError(t, err)

	for name, signature := range map[string]string{
		"missing":      "",
		"garbage":      "deadbeef",
		"wrong secret": otherSigner.Sign(body),
	} {
		t.Run(name, func(t *testing.T) {
			resp := postWebhook(t, srv.URL, body, signature)
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

			env, _ := decodeResponse(t, resp)
			require.NotNil(t, env.Error)
			assert.Equal(t, "INVALID_SIGNATURE", env.Error.Code)
		})
	}

	// The unverified notification was never applied.
	got, err := store.GetByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusAwaitingPayment, got.Status)
}

func TestWebhookHandler_SignatureCoversExactBytes(t *testing.T) {
	srv, store, signer := newWebhookTestServer(t)

	p := testutil.NewPayment(t, domain.PaymentStatusAwaitingPayment, time.Time{})
	require.NoError(t, store.Create(context.Background(), p))

	body := webhookBody("payment.completed", p.ID)
	signature := signer.Sign(body)

	// Any tampering after signing invalidates the signature.
	tampered := bytes.Replace(body, []byte("payment.completed"), []byte("payment.failed"), 1)
	resp := postWebhook(t, srv.URL, tampered, signature)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestWebhookHandler_ValidatesPayload(t *testing.T) {
	srv, _, signer := newWebhookTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{name: "unknown event", body: fmt.Sprintf(`{"event":"payment.refunded","payment_id":%q}`, uuid.New())},
		{name: "missing event", body: fmt.Sprintf(`{"payment_id":%q}`, uuid.New())},
		{name: "missing payment id", body: `{"event":"payment.completed"}`},
		{name: "bad payment id", body: `{"event":"payment.completed","payment_id":"nope"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postWebhook(t, srv.URL, []byte(tt.body), signer.Sign([]byte(tt.body)))
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

			env, _ := decodeResponse(t, resp)
			require.NotNil(t, env.Error)
			assert.Equal(t, "VALIDATION_FAILED", env.Error.Code)
		})
	}
}

func TestWebhookHandler_UnknownPayment(t *testing.T) {
	srv, _, signer := newWebhookTestServer(t)

	body := webhookBody("payment.completed", uuid.New())
	resp := postWebhook(t, srv.URL, body, signer.Sign(body))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	env, _ := decodeResponse(t, resp)
	require.NotNil(t, env.Error)
	assert.Equal(t, "RESOURCE_NOT_FOUND", env.Error.Code)
}

func TestWebhookHandler_ConflictingTransition(t *testing.T) {
	srv, store, signer := newWebhookTestServer(t)

	p := testutil.NewPayment(t, domain.PaymentStatusCancelled, time.Time{})
	require.NoError(t, store.Create(context.Background(), p))

	body := webhookBody("payment.completed", p.ID)
	resp := postWebhook(t, srv.URL, body, signer.Sign(body))
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	env, _ := decodeResponse(t, resp)
	require.NotNil(t, env.Error)
	assert.Equal(t, "INVALID_TRANSITION", env.Error.Code)
}

func TestWebhookHandler_Redelivery(t *testing.T) {
	srv, store, signer := newWebhookTestServer(t)

	p := testutil.NewPayment(t, domain.PaymentStatusProcessing, time.Time{})
	require.NoError(t, store.Create(context.Background(), p))

	body := webhookBody("payment.completed", p.ID)
	for i := 0; i < 2; i++ {
		resp := postWebhook(t, srv.URL, body, signer.Sign(body))
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	}

	got, err := store.GetByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusCompleted, got.Status)
}
