package config

import (
	"fmt"
	"time"

	env "github.com/caarlos0/env/v11"
)

type Config struct {
	Port     string `env:"PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	AppEnv   string `env:"APP_ENV" envDefault:"production"`

	// StoreDriver selects the account/checkpoint store backend. "memory" runs
	// the service without external dependencies; "postgres" requires
	// DATABASE_URL.
	StoreDriver string `env:"STORE_DRIVER" envDefault:"memory"`
	DatabaseURL string `env:"DATABASE_URL"`

	// LedgerURL points the transfer coordinator at a remote ledger API. When
	// empty, transfers move money through the in-process registry; when set,
	// they go over HTTP, so the coordinator can run split from the accounts it
	// drives.
	LedgerURL string `env:"LEDGER_URL"`

	// Transfers above the threshold suspend until a manager approves them.
	ApprovalThreshold int64 `env:"APPROVAL_THRESHOLD" envDefault:"500"`

	RetryInitialInterval time.Duration `env:"RETRY_INITIAL_INTERVAL" envDefault:"1s"`
	RetryMultiplier      float64       `env:"RETRY_MULTIPLIER" envDefault:"2.0"`
	RetryMaxInterval     time.Duration `env:"RETRY_MAX_INTERVAL" envDefault:"60s"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	if cfg.StoreDriver == "postgres" && cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("config.Load: DATABASE_URL is required when STORE_DRIVER=postgres")
	}
	return &cfg, nil
}
