package telegram

import (
	"context"
	"fmt"
	"time"

	tele "gopkg.in/telebot.v3"

	"github.com/sandevgo/gavbot/internal/config"
	"github.com/sandevgo/gavbot/internal/service/pipeline"
	"github.com/sandevgo/gavbot/pkg/log"
)

const baseContextKey = "base_context"

// Bot exposes the assistant over Telegram long polling, mostly useful for
// demos and manual testing against a real chat client.
type Bot struct {
	bot  *tele.Bot
	cfg  *config.TelegramConfig
	pipe *pipeline.Pipeline
}

func NewBot(ctx context.Context, cfg *config.TelegramConfig, pipe *pipeline.Pipeline) (*Bot, error) {
	pref := tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}

	b, err := tele.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	bot := &Bot{bot: b, cfg: cfg, pipe: pipe}

	// Use context from Signal with logger
	b.Use(func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			c.Set(baseContextKey, ctx)
			return next(c)
		}
	})

	b.Handle(tele.OnText, bot.handleMessage)

	return bot, nil
}

func (b *Bot) Start(ctx context.Context) error {
	log.FromCtx(ctx).Info().Msg("starting telegram bot")
	b.bot.Start()
	return nil
}

func (b *Bot) Shutdown(ctx context.Context) error {
	b.bot.Stop()
	return nil
}

func (b *Bot) handleMessage(c tele.Context) error {
	ctx := c.Get(baseContextKey).(context.Context)
	key := fmt.Sprintf("tg:%d", c.Chat().ID)

	_ = c.Notify(tele.Typing)
	reply := b.pipe.HandleTurn(ctx, key, c.Text())
	if err := c.Send(reply); err != nil {
		log.FromCtx(ctx).Error().Err(err).Msg("failed to send telegram message")
	}
	return nil
}
