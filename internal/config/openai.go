package config

import (
	"context"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/gavbot/pkg/log"
)

type OpenAIConfig struct {
	// APIKey is optional. Without it the bot runs on the deterministic
	// fallback pipeline alone.
	APIKey  string `env:"OPENAI_API_KEY"`
	Model   string `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	BaseURL string `env:"OPENAI_BASE_URL"`

	// Hard deadline for one classification call. On expiry the turn
	// continues through the fallback synthesizer.
	Timeout time.Duration `env:"CLASSIFIER_TIMEOUT" envDefault:"8s"`

	// Token budget for the history window handed to the classifier.
	MaxHistoryTokens int `env:"CLASSIFIER_HISTORY_TOKENS" envDefault:"1200"`
}

func NewOpenAIConfig(ctx context.Context) *OpenAIConfig {
	c := &OpenAIConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse OpenAI config")
	}
	return c
}
