package market

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/vexcore/exec-core/internal/reconnect"
)

// Session owns one market-feed adapter connection and its Subscription
// Manager. Reconnection follows the same backoff shape as
// internal/execution.Session (§4.5 applies symmetrically to market
// sessions per §4.9's "replays them on reconnect").
type Session struct {
	cfg     Config
	builder Builder
	subs    *Manager
	log     zerolog.Logger

	Events chan Event

	attempt int
}

// NewSession builds a Session for cfg, using subs as its Subscription
// Manager (shared so callers can Record new subscriptions before the
// session has connected).
func NewSession(cfg Config, builder Builder, subs *Manager, log zerolog.Logger) *Session {
	return &Session{
		cfg:     cfg,
		builder: builder,
		subs:    subs,
		log:     log.With().Str("exchange", cfg.Exchange.String()).Logger(),
		Events:  make(chan Event, 256),
	}
}

// Run drives connect/consume/reconnect until ctx is cancelled, matching
// execution.Session.Run's backoff shape (250ms-30s, +/-20% jitter).
func (s *Session) Run(ctx context.Context, sendSubscribe func(ctx context.Context, frame []byte) error) {
	for {
		if ctx.Err() != nil {
			return
		}
		if err := s.connectAndServe(ctx, sendSubscribe); err != nil {
			s.log.Warn().Err(err).Msg("market session disconnected, backing off")
		}
		if ctx.Err() != nil {
			return
		}
		delay := reconnect.Delay(s.attempt)
		s.attempt++
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return
		}
	}
}

func (s *Session) connectAndServe(ctx context.Context, sendSubscribe func(ctx context.Context, frame []byte) error) error {
	svc, err := s.builder.Build(ctx, s.cfg)
	if err != nil {
		return fmt.Errorf("market: build adapter: %w", err)
	}
	s.attempt = 0

	for _, frame := range s.subs.Replay() {
		if err := sendSubscribe(ctx, frame); err != nil {
			return fmt.Errorf("market: resubscribe: %w", err)
		}
	}

	for {
		event, ok, err := svc.Next(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("market: adapter terminated")
		}
		select {
		case s.Events <- event:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
