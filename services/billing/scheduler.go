package billing

import (
	"context"
	"time"

	"naano-tracking/pkg/config"
	"naano-tracking/pkg/task"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Scheduler enqueues the billing sweep once a day at the configured hour.
type Scheduler struct {
	enq  task.Enqueuer
	hour int
}

func NewScheduler(cfg *config.Config, enq task.Enqueuer) *Scheduler {
	hour := cfg.Billing.SweepHour
	if hour < 0 || hour > 23 {
		hour = 2
	}
	return &Scheduler{enq: enq, hour: hour}
}

func StartScheduler(lc fx.Lifecycle, s *Scheduler) {
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go s.run(ctx)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}

func (s *Scheduler) run(ctx context.Context) {
	zap.L().Info("[Scheduler] started billing sweep scheduler", zap.Int("hour", s.hour))

	for {
		now := time.Now().UTC()
		next := nextRunTime(now, s.hour, 0)

		zap.L().Info("[Scheduler] next run scheduled",
			zap.Time("next_run", next),
			zap.Duration("sleep_for", next.Sub(now)),
		)
		select {
		case <-time.After(next.Sub(now)):
			s.enqueueSweep(ctx)
		case <-ctx.Done():
			zap.L().Warn("[Scheduler] stopped")
			return
		}
	}
}

func (s *Scheduler) enqueueSweep(ctx context.Context) {
	if _, err := s.enq.Enqueue(ctx, NewSweepTask()); err != nil {
		zap.L().Error("[Scheduler] failed to enqueue billing sweep", zap.Error(err))
	}
}

// nextRunTime returns the next occurrence of hour:minute strictly after now.
func nextRunTime(now time.Time, hour, minute int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.Add(24 * time.Hour)
	}
	return next
}
