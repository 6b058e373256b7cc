package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tollgate-dev/tollgate/internal/config"
	"github.com/tollgate-dev/tollgate/internal/handler"
	"github.com/tollgate-dev/tollgate/internal/logging"
	"github.com/tollgate-dev/tollgate/internal/middleware"
	"github.com/tollgate-dev/tollgate/internal/repository"
	"github.com/tollgate-dev/tollgate/internal/service"
	"github.com/tollgate-dev/tollgate/internal/webhook"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logging.Init("tollgate-api", cfg.LogLevel, cfg.AppEnv)

	signer, err := webhook.NewSigner(cfg.WebhookSecret)
	if err != nil {
		slog.Error("failed to build webhook signer", "error", err)
		os.Exit(1)
	}

	var notifier service.Notifier
	if cfg.WebhookTargetURL != "" {
		notifier = service.NewWebhookNotifier(cfg.WebhookTargetURL, signer)
	}

	var db *sql.DB
	var store service.PaymentStore
	var idemMW func(http.Handler) http.Handler

	if cfg.DatabaseURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		db, err = repository.NewPostgresDB(ctx, cfg.DatabaseURL, repository.PoolConfig{
			MaxOpenConns:     cfg.DBMaxOpenConns,
			MaxIdleConns:     cfg.DBMaxIdleConns,
			ConnMaxLifetimeS: cfg.DBConnMaxLifetimeS,
			ConnMaxIdleTimeS: cfg.DBConnMaxIdleTimeS,
		})
		cancel()
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		store = repository.NewPaymentRepository(db)
		idemMW = middleware.Idempotency(repository.NewIdempotencyRepository(db))
		slog.Info("using postgres payment store")
	} else {
		store = repository.NewMemoryPaymentStore()
		idemMW = middleware.Idempotency(repository.NewMemoryIdempotencyCache())
		slog.Info("using in-memory payment store")
	}

	svc := service.NewPaymentService(store, notifier, cfg.PaymentPageURL)

	proofCfg := handler.ProofConfig{
		Secret: cfg.ProofTokenSecret,
		TTL:    cfg.ProofTokenTTL,
	}
	paymentHandler := handler.NewPaymentHandler(svc, proofCfg)
	protectedHandler := handler.NewProtectedHandler(svc, proofCfg, handler.ChallengeConfig{
		Realm:    cfg.ProtectedRealm,
		Amount:   cfg.ProtectedAmount,
		Currency: cfg.ProtectedCurrency,
	})
	webhookHandler := handler.NewWebhookHandler(svc, signer)
	healthHandler := handler.NewHealthHandler(db)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", healthHandler.Liveness)
	mux.HandleFunc("GET /health/ready", healthHandler.Readiness)
	mux.Handle("POST /api/payments", idemMW(http.HandlerFunc(paymentHandler.Create)))
	mux.HandleFunc("GET /api/payments", paymentHandler.List)
	mux.HandleFunc("GET /api/payments/{id}", paymentHandler.Get)
	mux.HandleFunc("POST /api/payments/{id}/cancel", paymentHandler.Cancel)
	mux.HandleFunc("GET /protected", protectedHandler.Serve)
	mux.HandleFunc("POST /api/webhooks/payment", webhookHandler.ReceivePaymentWebhook)

	root := middleware.Tracing(middleware.Logging(middleware.Recovery(mux)))

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           root,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("server started", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}
