package pipeline

import (
	"context"
	"time"

	"github.com/sandevgo/gavbot/internal/core"
	"github.com/sandevgo/gavbot/pkg/log"
)

// Sweeper periodically deletes sessions idle beyond the TTL.
type Sweeper struct {
	sessions core.SessionRepository
	ttl      time.Duration
	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
}

func NewSweeper(sessions core.SessionRepository, ttl, interval time.Duration) *Sweeper {
	return &Sweeper{
		sessions: sessions,
		ttl:      ttl,
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (s *Sweeper) Start(ctx context.Context) error {
	logger := log.FromCtx(ctx)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	defer close(s.done)

	logger.Info().Dur("ttl", s.ttl).Dur("interval", s.interval).Msg("session sweeper started")
	for {
		select {
		case <-ticker.C:
			n, err := s.sessions.DeleteExpired(ctx, time.Now().Add(-s.ttl))
			if err != nil {
				logger.Error().Err(err).Msg("sweeping expired sessions")
				continue
			}
			if n > 0 {
				logger.Info().Int64("deleted", n).Msg("expired sessions swept")
			}
		case <-s.stop:
			return nil
		case <-ctx.Done():
			return nil
		}
	}
}

func (s *Sweeper) Shutdown(ctx context.Context) error {
	close(s.stop)
	select {
	case <-s.done:
	case <-ctx.Done():
	}
	log.FromCtx(ctx).Info().Msg("session sweeper stopped")
	return nil
}
