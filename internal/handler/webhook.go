package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/tollgate-dev/tollgate/internal/domain"
	"github.com/tollgate-dev/tollgate/internal/logging"
	"github.com/tollgate-dev/tollgate/internal/webhook"
)

type webhookPaymentService interface {
	MarkProcessing(ctx context.Context, id uuid.UUID) (*domain.Payment, error)
	MarkCompleted(ctx context.Context, id uuid.UUID) (*domain.Payment, error)
	MarkFailed(ctx context.Context, id uuid.UUID) (*domain.Payment, error)
}

// WebhookHandler receives processor notifications and applies them to the
// lifecycle. Every payload must carry a valid signature; redelivered
// notifications are harmless because repeating a terminal status is a no-op
// in the service.
type WebhookHandler struct {
	payments webhookPaymentService
	signer   *webhook.Signer
}

func NewWebhookHandler(payments webhookPaymentService, signer *webhook.Signer) *WebhookHandler {
	return &WebhookHandler{payments: payments, signer: signer}
}

type webhookPayload struct {
	Event     string `json:"event"`
	PaymentID string `json:"payment_id"`
	Timestamp string `json:"timestamp,omitempty"`
}

func (p webhookPayload) validate() []FieldError {
	var errs []FieldError

	switch domain.WebhookEvent(p.Event) {
	case domain.WebhookEventPaymentProcessing, domain.WebhookEventPaymentCompleted, domain.WebhookEventPaymentFailed:
	case "":
		errs = append(errs, FieldError{Field: "event", Message: "required"})
	default:
		errs = append(errs, FieldError{Field: "event", Message: "must be payment.processing, payment.completed, or payment.failed"})
	}

	if p.PaymentID == "" {
		errs = append(errs, FieldError{Field: "payment_id", Message: "required"})
	} else if _, err := uuid.Parse(p.PaymentID); err != nil {
		errs = append(errs, FieldError{Field: "payment_id", Message: "must be a valid UUID"})
	}

	return errs
}

func (h *WebhookHandler) ReceivePaymentWebhook(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		log.Error("failed to read webhook body", "error", err)
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	if !h.signer.Verify(body, r.Header.Get(webhook.SignatureHeader)) {
		log.Warn("webhook signature verification failed")
		RespondAppError(w, ErrInvalidSignature, nil)
		return
	}

	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		log.Warn("failed to parse webhook payload", "error", err)
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	if fields := payload.validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	paymentID := uuid.MustParse(payload.PaymentID)

	var p *domain.Payment
	switch domain.WebhookEvent(payload.Event) {
	case domain.WebhookEventPaymentProcessing:
		p, err = h.payments.MarkProcessing(r.Context(), paymentID)
	case domain.WebhookEventPaymentCompleted:
		p, err = h.payments.MarkCompleted(r.Context(), paymentID)
	case domain.WebhookEventPaymentFailed:
		p, err = h.payments.MarkFailed(r.Context(), paymentID)
	}
	if err != nil {
		log.Warn("webhook transition failed", "error", err, "event", payload.Event, "payment_id", paymentID)
		RespondDomainError(w, err)
		return
	}

	log.Info("webhook applied", "event", payload.Event, "payment_id", paymentID, "status", p.Status)
	RespondSuccess(w, http.StatusOK, map[string]string{"status": "processed"})
}
