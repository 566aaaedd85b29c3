package round

import (
	"context"
	"time"

	"fairbet-service/pkg/logger"

	"go.uber.org/zap"
)

// Start launches the background watcher that keeps a round on the
// clock: it creates the next round when none is running, feeds
// multiplier ticks to the notifier and triggers settlement when the
// curve reaches the crash point. The watcher is an optimization for
// liveness; every request path performs the same crash discovery on
// its own.
func (s *Service) Start(ctx context.Context) error {
	s.startOnce.Do(func() {
		go s.run(ctx)
	})
	return nil
}

func (s *Service) run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Service) tick(ctx context.Context) {
	round, err := s.EnsureRound(ctx)
	if err != nil {
		logger.Log.Warn("round watcher tick failed", zap.Error(err))
		return
	}

	now := time.Now()
	multiplier := s.MultiplierAt(round.StartedAt, now)
	if multiplier >= round.CrashPoint {
		if _, err := s.Settle(ctx, round.ID); err != nil {
			logger.Log.Warn("round watcher settlement failed",
				zap.Int64("roundID", round.ID),
				zap.Error(err),
			)
		}
		return
	}

	if s.notifier != nil {
		state, err := s.buildState(ctx, round, now)
		if err == nil {
			s.notifier.RoundTick(*state)
		}
	}
}
