package config

import (
	"context"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/gavbot/pkg/log"
)

type AppConfig struct {
	RuntimePath string `env:"GAV_RUNTIME_PATH" envDefault:".gav"`

	// Transport flags
	EnableWebhook  bool `env:"ENABLE_WEBHOOK" envDefault:"true"`
	EnableTelegram bool `env:"ENABLE_TELEGRAM" envDefault:"false"`
	EnableCLI      bool `env:"ENABLE_CLI" envDefault:"false"`

	// Sessions idle longer than this are swept.
	SessionTTL    time.Duration `env:"SESSION_TTL" envDefault:"72h"`
	SweepInterval time.Duration `env:"SESSION_SWEEP_INTERVAL" envDefault:"1h"`
}

func NewAppConfig(ctx context.Context) *AppConfig {
	c := &AppConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse App config")
	}
	return c
}

func (c AppConfig) GetDatabasePath() string {
	return filepath.Join(c.RuntimePath, "gav.db")
}
