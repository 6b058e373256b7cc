package config

import (
	"fmt"
	"time"

	env "github.com/caarlos0/env/v11"
)

type Config struct {
	Port     int    `env:"PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	AppEnv   string `env:"APP_ENV" envDefault:"production"`

	// Empty selects the in-memory store.
	DatabaseURL string `env:"DATABASE_URL"`

	WebhookSecret    string `env:"WEBHOOK_SECRET,required"`
	WebhookTargetURL string `env:"WEBHOOK_TARGET_URL"`

	ProofTokenSecret string        `env:"PROOF_TOKEN_SECRET,required"`
	ProofTokenTTL    time.Duration `env:"PROOF_TOKEN_TTL" envDefault:"15m"`

	PaymentPageURL string `env:"PAYMENT_PAGE_URL" envDefault:"http://localhost:8081"`

	ProtectedRealm    string `env:"PROTECTED_REALM" envDefault:"tollgate"`
	ProtectedAmount   int64  `env:"PROTECTED_AMOUNT" envDefault:"1000"`
	ProtectedCurrency string `env:"PROTECTED_CURRENCY" envDefault:"USD"`

	DBMaxOpenConns     int `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	DBMaxIdleConns     int `env:"DB_MAX_IDLE_CONNS" envDefault:"10"`
	DBConnMaxLifetimeS int `env:"DB_CONN_MAX_LIFETIME_S" envDefault:"300"`
	DBConnMaxIdleTimeS int `env:"DB_CONN_MAX_IDLE_TIME_S" envDefault:"60"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}
