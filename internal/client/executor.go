package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tollgate-dev/tollgate/internal/logging"
)

const (
	defaultTimeout      = 30 * time.Second
	defaultMaxRetries   = 3
	defaultRetryBackoff = time.Second
)

// HTTPError is a definitive non-2xx answer from the payment service. It is
// distinct from transport failures so callers can tell a rejected request
// from one that never arrived.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// Executor performs one logical HTTP call against the payment service:
// a fixed per-attempt timeout, then up to MaxRetries additional attempts with
// deterministic exponential backoff (RetryBackoff doubling each retry, no
// jitter). The last observed error is surfaced with its classification
// intact: *HTTPError for status failures, the wrapped transport error
// otherwise.
type Executor struct {
	baseURL    string
	apiKey     string
	maxRetries int
	backoff    time.Duration
	httpClient *http.Client
}

func NewExecutor(cfg Config) *Executor {
	cfg = cfg.withDefaults()
	return &Executor{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		maxRetries: cfg.MaxRetries,
		backoff:    cfg.RetryBackoff,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

func (e *Executor) Execute(ctx context.Context, method, path string, body any) ([]byte, error) {
	log := logging.FromContext(ctx)

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("Execute: marshal: %w", err)
		}
	}

	var lastErr error
	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		if attempt > 0 {
			delay := e.backoff << (attempt - 1)
			log.Debug("retrying request",
				"method", method,
				"path", path,
				"attempt", attempt+1,
				"delay", delay,
				"error", lastErr,
			)
			if err := sleep(ctx, delay); err != nil {
				return nil, fmt.Errorf("Execute: %w", err)
			}
		}

		data, err := e.attempt(ctx, method, path, payload)
		if err == nil {
			return data, nil
		}
		lastErr = err

		// A cancelled caller gets the cancellation, not the attempt error.
		if ctx.Err() != nil {
			return nil, fmt.Errorf("Execute: %w", ctx.Err())
		}
	}

	return nil, fmt.Errorf("Execute: giving up after %d attempts: %w", e.maxRetries+1, lastErr)
}

func (e *Executor) attempt(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, e.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &HTTPError{StatusCode: resp.StatusCode, Body: string(data)}
	}
	return data, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
