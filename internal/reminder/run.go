package reminder

import (
	"context"
	"errors"
	"time"

	"github.com/colonyops/taskrelay/internal/core/logging"
	"github.com/colonyops/taskrelay/internal/core/notify"
	"golang.org/x/sync/errgroup"
)

// Run drives the alert and digest ticks until ctx is cancelled. The alert
// tick also runs once at startup. Tick failures are logged and never stop
// the loop.
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.Info().
		Dur("alert_interval", s.opts.AlertInterval).
		Dur("digest_interval", s.opts.DigestInterval).
		Dur("warning_cooldown", s.opts.Cooldown).
		Msg("reminder scheduler started")

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		Every(ctx, s.opts.AlertInterval, true, func(ctx context.Context) {
			if _, err := s.AlertTick(ctx, time.Now()); err != nil && !errors.Is(err, notify.ErrDelivery) {
				s.log.Error().Ctx(ctx).Err(err).Msg("alert tick failed")
			}
		})
		return nil
	})

	g.Go(func() error {
		Every(ctx, s.opts.DigestInterval, false, func(ctx context.Context) {
			if _, err := s.DigestTick(ctx, time.Now()); err != nil && !errors.Is(err, notify.ErrDelivery) {
				s.log.Error().Ctx(ctx).Err(err).Msg("digest tick failed")
			}
		})
		return nil
	})

	err := g.Wait()
	s.log.Info().Msg("reminder scheduler stopped")
	return err
}

// Every calls fn once per interval until ctx is cancelled. Each call gets
// its own tick id and a context that is not cancelled by shutdown, so a
// tick in progress finishes its writes before Every returns.
func Every(ctx context.Context, interval time.Duration, immediate bool, fn func(ctx context.Context)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	tick := func() {
		fn(logging.WithTickID(context.WithoutCancel(ctx)))
	}

	if immediate {
		tick()
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tick()
		}
	}
}
