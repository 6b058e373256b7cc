package handler

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/tollgate-dev/tollgate/internal/domain"
	"github.com/tollgate-dev/tollgate/internal/logging"
	"github.com/tollgate-dev/tollgate/internal/proof"
	"github.com/tollgate-dev/tollgate/internal/service"
)

// ChallengeConfig describes the payment minted for unauthenticated access to
// a protected resource.
type ChallengeConfig struct {
	Realm           string
	Amount          int64
	Currency        string
	AcceptedMethods []string
}

// ProtectedHandler guards a resource behind HTTP 402: a request carrying a
// valid proof of a completed payment gets the payload; anything else gets a
// structured payment challenge. Every challenge mints a fresh payment; the
// route itself is deliberately not idempotent per caller (the payments API
// offers Idempotency-Key for that).
type ProtectedHandler struct {
	payments  paymentService
	proof     ProofConfig
	challenge ChallengeConfig
}

func NewProtectedHandler(payments paymentService, proofCfg ProofConfig, challenge ChallengeConfig) *ProtectedHandler {
	if len(challenge.AcceptedMethods) == 0 {
		challenge.AcceptedMethods = []string{"Bearer", "X-Payment-Token"}
	}
	return &ProtectedHandler{payments: payments, proof: proofCfg, challenge: challenge}
}

type paymentChallenge struct {
	PaymentID       uuid.UUID `json:"payment_id"`
	Amount          int64     `json:"amount"`
	Currency        string    `json:"currency"`
	PaymentURL      string    `json:"payment_url"`
	AcceptedMethods []string  `json:"accepted_methods"`
}

func (h *ProtectedHandler) Serve(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	if token := extractProofToken(r); token != "" {
		paymentID, err := proof.Validate(token, h.proof.Secret)
		if err == nil {
			p, gerr := h.payments.Get(r.Context(), paymentID)
			if gerr == nil && p.Status == domain.PaymentStatusCompleted {
				w.Header().Set("X-Payment-Verified", "true")
				RespondSuccess(w, http.StatusOK, map[string]string{
					"content":    "premium content unlocked",
					"payment_id": paymentID.String(),
				})
				return
			}
		}
		log.Warn("payment proof rejected", "error", err)
	}

	p, err := h.payments.Create(r.Context(), service.CreatePaymentRequest{
		Amount:      h.challenge.Amount,
		Currency:    h.challenge.Currency,
		Description: "Access to " + r.URL.Path,
	})
	if err != nil {
		log.Error("challenge payment creation failed", "error", err)
		RespondAppError(w, ErrInternalError, nil)
		return
	}

	w.Header().Set("WWW-Authenticate", fmt.Sprintf("Bearer realm=%q", h.challenge.Realm))
	RespondAppError(w, ErrPaymentRequired, paymentChallenge{
		PaymentID:       p.ID,
		Amount:          p.Amount,
		Currency:        p.Currency,
		PaymentURL:      p.PaymentURL,
		AcceptedMethods: h.challenge.AcceptedMethods,
	})
}

func extractProofToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return r.Header.Get("X-Payment-Token")
}
