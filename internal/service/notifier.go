package service

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/tollgate-dev/tollgate/internal/domain"
	"github.com/tollgate-dev/tollgate/internal/logging"
	"github.com/tollgate-dev/tollgate/internal/webhook"
)

// WebhookNotifier delivers signed status-change notifications to a single
// integrator endpoint. Delivery is best-effort: failures are logged and
// dropped, never propagated into the lifecycle operation that triggered them.
type WebhookNotifier struct {
	targetURL  string
	signer     *webhook.Signer
	httpClient *http.Client
}

func NewWebhookNotifier(targetURL string, signer *webhook.Signer) *WebhookNotifier {
	return &WebhookNotifier{
		targetURL: targetURL,
		signer:    signer,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

type notificationPayload struct {
	Event     string          `json:"event"`
	PaymentID string          `json:"payment_id"`
	Data      notificationDTO `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

type notificationDTO struct {
	ID          string          `json:"id"`
	Status      string          `json:"status"`
	Amount      int64           `json:"amount"`
	Currency    string          `json:"currency"`
	Description string          `json:"description,omitempty"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
	PaymentURL  string          `json:"payment_url"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	ExpiresAt   time.Time       `json:"expires_at"`
}

func (n *WebhookNotifier) Notify(ctx context.Context, notification domain.WebhookNotification) {
	log := logging.FromContext(ctx)
	p := notification.Data

	body, err := json.Marshal(notificationPayload{
		Event:     string(notification.Event),
		PaymentID: p.ID.String(),
		Data: notificationDTO{
			ID:          p.ID.String(),
			Status:      string(p.Status),
			Amount:      p.Amount,
			Currency:    p.Currency,
			Description: p.Description,
			Metadata:    p.Metadata,
			PaymentURL:  p.PaymentURL,
			CreatedAt:   p.CreatedAt,
			UpdatedAt:   p.UpdatedAt,
			ExpiresAt:   p.ExpiresAt,
		},
		Timestamp: notification.Timestamp,
	})
	if err != nil {
		log.Error("webhook payload marshal failed", "error", err, "payment_id", p.ID)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.targetURL, bytes.NewReader(body))
	if err != nil {
		log.Error("webhook request build failed", "error", err, "payment_id", p.ID)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(webhook.SignatureHeader, n.signer.Sign(body))

	resp, err := n.httpClient.Do(req)
	if err != nil {
		log.Warn("webhook delivery failed", "error", err, "event", notification.Event, "payment_id", p.ID)
		return
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 512))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Warn("webhook delivery rejected",
			"status", resp.StatusCode,
			"event", notification.Event,
			"payment_id", p.ID,
		)
		return
	}

	log.Info("webhook delivered", "event", notification.Event, "payment_id", p.ID)
}
