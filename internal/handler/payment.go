package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/tollgate-dev/tollgate/internal/domain"
	"github.com/tollgate-dev/tollgate/internal/logging"
	"github.com/tollgate-dev/tollgate/internal/proof"
	"github.com/tollgate-dev/tollgate/internal/service"
)

type paymentService interface {
	Create(ctx context.Context, req service.CreatePaymentRequest) (*domain.Payment, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Payment, error)
	Cancel(ctx context.Context, id uuid.UUID) (*domain.Payment, error)
	List(ctx context.Context, status domain.PaymentStatus, limit, offset int) ([]*domain.Payment, error)
}

// ProofConfig parameterizes the access-proof tokens attached to completed
// payments.
type ProofConfig struct {
	Secret string
	TTL    time.Duration
}

type PaymentHandler struct {
	payments paymentService
	proof    ProofConfig
}

func NewPaymentHandler(payments paymentService, proofCfg ProofConfig) *PaymentHandler {
	return &PaymentHandler{payments: payments, proof: proofCfg}
}

type createPaymentRequest struct {
	Amount      int64           `json:"amount"`
	Currency    string          `json:"currency"`
	Description string          `json:"description,omitempty"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
}

func (r createPaymentRequest) Validate() []FieldError {
	var errs []FieldError

	if r.Amount <= 0 {
		errs = append(errs, FieldError{Field: "amount", Message: "must be greater than 0"})
	}
	if r.Currency == "" {
		errs = append(errs, FieldError{Field: "currency", Message: "required"})
	}

	return errs
}

type paymentDTO struct {
	ID          uuid.UUID       `json:"id"`
	Status      string          `json:"status"`
	Amount      int64           `json:"amount"`
	Currency    string          `json:"currency"`
	Description string          `json:"description,omitempty"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
	PaymentURL  string          `json:"payment_url"`
	ProofToken  string          `json:"proof_token,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	ExpiresAt   time.Time       `json:"expires_at"`
}

func (h *PaymentHandler) toPaymentDTO(ctx context.Context, p *domain.Payment) paymentDTO {
	dto := paymentDTO{
		ID:          p.ID,
		Status:      string(p.Status),
		Amount:      p.Amount,
		Currency:    p.Currency,
		Description: p.Description,
		Metadata:    p.Metadata,
		PaymentURL:  p.PaymentURL,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
		ExpiresAt:   p.ExpiresAt,
	}

	// A completed payment carries its proof of access.
	if p.Status == domain.PaymentStatusCompleted && h.proof.Secret != "" {
		token, err := proof.Generate(p.ID, h.proof.Secret, h.proof.TTL)
		if err != nil {
			logging.FromContext(ctx).Error("proof token generation failed", "error", err, "payment_id", p.ID)
		} else {
			dto.ProofToken = token
		}
	}

	return dto
}

func (h *PaymentHandler) Create(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	var req createPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	p, err := h.payments.Create(r.Context(), service.CreatePaymentRequest{
		Amount:      req.Amount,
		Currency:    req.Currency,
		Description: req.Description,
		Metadata:    req.Metadata,
	})
	if err != nil {
		log.Warn("payment creation failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/api/payments/%s", p.ID))
	RespondSuccess(w, http.StatusCreated, h.toPaymentDTO(r.Context(), p))
}

func (h *PaymentHandler) Get(w http.ResponseWriter, r *http.Request) {
	paymentID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	p, err := h.payments.Get(r.Context(), paymentID)
	if err != nil {
		logging.FromContext(r.Context()).Warn("payment lookup failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, h.toPaymentDTO(r.Context(), p))
}

func (h *PaymentHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	paymentID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	p, err := h.payments.Cancel(r.Context(), paymentID)
	if err != nil {
		log.Warn("payment cancel failed", "error", err, "payment_id", paymentID)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, h.toPaymentDTO(r.Context(), p))
}

func (h *PaymentHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	status := domain.PaymentStatus(q.Get("status"))
	if status != "" && !status.IsValid() {
		RespondValidationError(w, []FieldError{{Field: "status", Message: "unknown status"}})
		return
	}

	limit, err := parseIntParam(q.Get("limit"))
	if err != nil {
		RespondValidationError(w, []FieldError{{Field: "limit", Message: "must be an integer"}})
		return
	}
	offset, err := parseIntParam(q.Get("offset"))
	if err != nil {
		RespondValidationError(w, []FieldError{{Field: "offset", Message: "must be an integer"}})
		return
	}

	payments, err := h.payments.List(r.Context(), status, limit, offset)
	if err != nil {
		logging.FromContext(r.Context()).Error("payment list failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	dtos := make([]paymentDTO, 0, len(payments))
	for _, p := range payments {
		dtos = append(dtos, h.toPaymentDTO(r.Context(), p))
	}
	RespondSuccess(w, http.StatusOK, dtos)
}

func parseIntParam(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}
