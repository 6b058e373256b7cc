// Package client is the buyer-side lifecycle controller: it creates payments
// against a tollgate server and follows them through the lifecycle until they
// settle, over a retrying HTTP executor.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/tollgate-dev/tollgate/internal/domain"
	"github.com/tollgate-dev/tollgate/internal/webhook"
)

const (
	defaultPollInterval    = 5 * time.Second
	defaultPollMaxAttempts = 60
)

// ErrPollTimeout means the attempt ceiling was reached without the payment
// settling either way.
var ErrPollTimeout = errors.New("payment did not settle within the polling window")

// TerminalStatusError means polling ended because the payment reached a
// terminal status other than completed.
type TerminalStatusError struct {
	Status domain.PaymentStatus
}

func (e *TerminalStatusError) Error() string {
	return fmt.Sprintf("payment terminated with status %s", e.Status)
}

// Config is fixed at construction and shared read-only by every operation on
// one Client.
type Config struct {
	BaseURL       string
	APIKey        string
	WebhookSecret string

	Timeout      time.Duration // per HTTP attempt
	MaxRetries   int           // additional attempts after the first
	RetryBackoff time.Duration // first retry delay; doubles per retry

	PollInterval    time.Duration
	PollMaxAttempts int
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	} else if c.MaxRetries == 0 {
		c.MaxRetries = defaultMaxRetries
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = defaultRetryBackoff
	}
	if c.PollInterval <= 0 {
		c.PollInterval = defaultPollInterval
	}
	if c.PollMaxAttempts <= 0 {
		c.PollMaxAttempts = defaultPollMaxAttempts
	}
	return c
}

type requestExecutor interface {
	Execute(ctx context.Context, method, path string, body any) ([]byte, error)
}

type Client struct {
	exec            requestExecutor
	webhookSecret   string
	pollInterval    time.Duration
	pollMaxAttempts int
}

func New(cfg Config) *Client {
	cfg = cfg.withDefaults()
	return &Client{
		exec:            NewExecutor(cfg),
		webhookSecret:   cfg.WebhookSecret,
		pollInterval:    cfg.PollInterval,
		pollMaxAttempts: cfg.PollMaxAttempts,
	}
}

// Payment is the wire shape served by the payment API. It is a transient,
// possibly-stale snapshot; the server owns the canonical record.
type Payment struct {
	ID          uuid.UUID            `json:"id"`
	Status      domain.PaymentStatus `json:"status"`
	Amount      int64                `json:"amount"`
	Currency    string               `json:"currency"`
	Description string               `json:"description,omitempty"`
	Metadata    json.RawMessage      `json:"metadata,omitempty"`
	PaymentURL  string               `json:"payment_url"`
	ProofToken  string               `json:"proof_token,omitempty"`
	CreatedAt   time.Time            `json:"created_at"`
	UpdatedAt   time.Time            `json:"updated_at"`
	ExpiresAt   time.Time            `json:"expires_at"`
}

type CreatePaymentRequest struct {
	Amount      int64           `json:"amount"`
	Currency    string          `json:"currency"`
	Description string          `json:"description,omitempty"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
}

type ListParams struct {
	Status domain.PaymentStatus
	Limit  int
	Offset int
}

func (c *Client) InitiatePayment(ctx context.Context, req CreatePaymentRequest) (*Payment, error) {
	data, err := c.exec.Execute(ctx, "POST", "/api/payments", req)
	if err != nil {
		return nil, fmt.Errorf("InitiatePayment: %w", err)
	}
	var p Payment
	if err := unwrap(data, &p); err != nil {
		return nil, fmt.Errorf("InitiatePayment: %w", err)
	}
	return &p, nil
}

func (c *Client) CheckPaymentStatus(ctx context.Context, id uuid.UUID) (*Payment, error) {
	data, err := c.exec.Execute(ctx, "GET", "/api/payments/"+id.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("CheckPaymentStatus: %w", err)
	}
	var p Payment
	if err := unwrap(data, &p); err != nil {
		return nil, fmt.Errorf("CheckPaymentStatus: %w", err)
	}
	return &p, nil
}

func (c *Client) CancelPayment(ctx context.Context, id uuid.UUID) (*Payment, error) {
	data, err := c.exec.Execute(ctx, "POST", "/api/payments/"+id.String()+"/cancel", nil)
	if err != nil {
		return nil, fmt.Errorf("CancelPayment: %w", err)
	}
	var p Payment
	if err := unwrap(data, &p); err != nil {
		return nil, fmt.Errorf("CancelPayment: %w", err)
	}
	return &p, nil
}

func (c *Client) ListPayments(ctx context.Context, params ListParams) ([]Payment, error) {
	q := url.Values{}
	if params.Status != "" {
		q.Set("status", string(params.Status))
	}
	if params.Limit > 0 {
		q.Set("limit", strconv.Itoa(params.Limit))
	}
	if params.Offset > 0 {
		q.Set("offset", strconv.Itoa(params.Offset))
	}
	path := "/api/payments"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	data, err := c.exec.Execute(ctx, "GET", path, nil)
	if err != nil {
		return nil, fmt.Errorf("ListPayments: %w", err)
	}
	var payments []Payment
	if err := unwrap(data, &payments); err != nil {
		return nil, fmt.Errorf("ListPayments: %w", err)
	}
	return payments, nil
}

// PollUntilSettled re-reads the payment at the configured interval until it
// completes (returned), reaches another terminal status
// (*TerminalStatusError), or the attempt ceiling passes (ErrPollTimeout).
// Cancelling ctx stops scheduling further polls; the remote payment is left
// untouched.
func (c *Client) PollUntilSettled(ctx context.Context, id uuid.UUID) (*Payment, error) {
	for attempt := 1; attempt <= c.pollMaxAttempts; attempt++ {
		p, err := c.CheckPaymentStatus(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("PollUntilSettled: %w", err)
		}

		if p.Status == domain.PaymentStatusCompleted {
			return p, nil
		}
		if p.Status.IsTerminal() {
			return nil, fmt.Errorf("PollUntilSettled: %w", &TerminalStatusError{Status: p.Status})
		}

		if attempt == c.pollMaxAttempts {
			break
		}
		if err := sleep(ctx, c.pollInterval); err != nil {
			return nil, fmt.Errorf("PollUntilSettled: %w", err)
		}
	}
	return nil, fmt.Errorf("PollUntilSettled: %w", ErrPollTimeout)
}

// VerifyWebhook checks an inbound notification's signature against the
// configured shared secret before the payload is trusted.
func (c *Client) VerifyWebhook(payload []byte, signature string) (bool, error) {
	signer, err := webhook.NewSigner(c.webhookSecret)
	if err != nil {
		return false, fmt.Errorf("VerifyWebhook: %w", err)
	}
	return signer.Verify(payload, signature), nil
}

type apiEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
}

func unwrap(data []byte, v any) error {
	var env apiEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}
