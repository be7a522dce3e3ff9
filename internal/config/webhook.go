package config

import (
	"context"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/gavbot/pkg/log"
)

type WebhookConfig struct {
	ListenAddr string `env:"WEBHOOK_LISTEN_ADDR" envDefault:":8080"`

	// Optional callback URL for providers that expect the reply on a
	// separate outbound call instead of the webhook response body.
	ReplyURL string `env:"WEBHOOK_REPLY_URL"`

	ReadTimeout  time.Duration `env:"WEBHOOK_READ_TIMEOUT" envDefault:"10s"`
	WriteTimeout time.Duration `env:"WEBHOOK_WRITE_TIMEOUT" envDefault:"30s"`
}

func NewWebhookConfig(ctx context.Context) *WebhookConfig {
	c := &WebhookConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse Webhook config")
	}
	return c
}
