// mock-processor stands in for a real payment processor during development:
// it serves the payment page URL embedded in every payment and turns a
// buyer's confirm/decline into signed webhooks against the API.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	env "github.com/caarlos0/env/v11"
	"github.com/google/uuid"

	"github.com/tollgate-dev/tollgate/internal/logging"
	"github.com/tollgate-dev/tollgate/internal/webhook"
)

type processorConfig struct {
	Port          int    `env:"PORT" envDefault:"8081"`
	APIURL        string `env:"API_URL" envDefault:"http://localhost:8080"`
	WebhookSecret string `env:"WEBHOOK_SECRET,required"`
	AppEnv        string `env:"APP_ENV" envDefault:"development"`
}

type processor struct {
	apiURL     string
	signer     *webhook.Signer
	httpClient *http.Client
}

func main() {
	cfg, err := env.ParseAs[processorConfig]()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logging.Init("mock-processor", "info", cfg.AppEnv)

	signer, err := webhook.NewSigner(cfg.WebhookSecret)
	if err != nil {
		slog.Error("failed to build webhook signer", "error", err)
		os.Exit(1)
	}

	p := &processor{
		apiURL: cfg.APIURL,
		signer: signer,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("GET /pay/{id}", p.paymentPage)
	mux.HandleFunc("POST /pay/{id}/confirm", p.confirm)
	mux.HandleFunc("POST /pay/{id}/decline", p.decline)

	addr := fmt.Sprintf(":%d", cfg.Port)
	slog.Info("mock processor started", "addr", addr, "api_url", cfg.APIURL)
	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func (p *processor) paymentPage(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown payment"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"payment_id":  id.String(),
		"confirm_url": fmt.Sprintf("/pay/%s/confirm", id),
		"decline_url": fmt.Sprintf("/pay/%s/decline", id),
	})
}

func (p *processor) confirm(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown payment"})
		return
	}

	// Real processors report pickup before settlement; replay both hops.
	if err := p.sendWebhook(r, id, "payment.processing"); err != nil {
		slog.Error("processing webhook failed", "error", err, "payment_id", id)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}
	if err := p.sendWebhook(r, id, "payment.completed"); err != nil {
		slog.Error("completed webhook failed", "error", err, "payment_id", id)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "confirmed"})
}

func (p *processor) decline(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown payment"})
		return
	}

	if err := p.sendWebhook(r, id, "payment.failed"); err != nil {
		slog.Error("failed webhook failed", "error", err, "payment_id", id)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "declined"})
}

func (p *processor) sendWebhook(r *http.Request, paymentID uuid.UUID, event string) error {
	body, err := json.Marshal(map[string]string{
		"event":      event,
		"payment_id": paymentID.String(),
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("sendWebhook: marshal: %w", err)
	}

	url := p.apiURL + "/api/webhooks/payment"
	req, err := http.NewRequestWithContext(r.Context(), http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("sendWebhook: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(webhook.SignatureHeader, p.signer.Sign(body))

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sendWebhook: send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("sendWebhook: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	slog.Info("webhook sent", "event", event, "payment_id", paymentID)
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}
