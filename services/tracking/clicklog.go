package tracking

import (
	"context"
	"encoding/json"
	"time"

	"naano-tracking/pkg/config"
	"naano-tracking/pkg/metrics"
	"naano-tracking/pkg/repository"
	"naano-tracking/pkg/task"
	"naano-tracking/pkg/taskname"
	"naano-tracking/services/enrichment"
	"naano-tracking/services/event"

	"github.com/hibiken/asynq"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const fallbackWriteTimeout = 5 * time.Second

// Enricher runs session enrichment for one click.
type Enricher interface {
	Enrich(ctx context.Context, linkEventID string) (*enrichment.Result, error)
}

// ClickLogger persists clicks off the request path. Clicks go through the
// queue; when the queue is unavailable they are written by a detached
// goroutine.
type ClickLogger struct {
	events      *event.Store
	enqueuer    task.Enqueuer
	enricher    Enricher
	enrichDelay time.Duration
}

type ClickLoggerParams struct {
	fx.In
	Events   *event.Store
	Enqueuer task.Enqueuer       `optional:"true"`
	Enricher *enrichment.Service `optional:"true"`
	Config   *config.Config      `optional:"true"`
}

func NewClickLogger(p ClickLoggerParams) *ClickLogger {
	l := &ClickLogger{
		events:   p.Events,
		enqueuer: p.Enqueuer,
	}
	if p.Enricher != nil {
		l.enricher = p.Enricher
	}
	if p.Config != nil {
		l.enrichDelay = p.Config.Tracking.EnrichDelay
	}
	return l
}

func NewClickLogTask(ev *event.LinkEvent) (*asynq.Task, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskname.ClickLog, payload,
		asynq.Queue(task.QueueTracking),
		asynq.MaxRetry(5),
		asynq.Timeout(10*time.Second),
	), nil
}

// Log submits the click and returns immediately.
func (l *ClickLogger) Log(ctx context.Context, ev *event.LinkEvent) {
	if l.enqueuer != nil {
		t, err := NewClickLogTask(ev)
		if err == nil {
			if _, err = l.enqueuer.Enqueue(ctx, t); err == nil {
				return
			}
		}
		zap.L().Warn("click log enqueue failed, writing inline", zap.String("link_event_id", ev.ID), zap.Error(err))
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fallbackWriteTimeout)
		defer cancel()

		if err := l.write(ctx, ev); err != nil {
			metrics.ClickLogFailures.Inc()
			zap.L().Error("failed to log click", zap.String("link_event_id", ev.ID), zap.Error(err))
			return
		}
		l.ScheduleEnrichment(context.WithoutCancel(ctx), ev.ID)
	}()
}

func (l *ClickLogger) write(ctx context.Context, ev *event.LinkEvent) error {
	err := l.events.LogEvent(ctx, ev)
	if repository.IsUniqueViolation(err) {
		return nil
	}
	return err
}

// ScheduleEnrichment queues enrichment for a click, or runs it in the
// background when no queue is configured.
func (l *ClickLogger) ScheduleEnrichment(ctx context.Context, linkEventID string) {
	if l.enqueuer != nil {
		enrichment.Schedule(ctx, l.enqueuer, linkEventID, l.enrichDelay)
		return
	}
	if l.enricher == nil {
		return
	}
	go func() {
		if _, err := l.enricher.Enrich(context.WithoutCancel(ctx), linkEventID); err != nil {
			zap.L().Warn("enrichment failed", zap.String("link_event_id", linkEventID), zap.Error(err))
		}
	}()
}

func (l *ClickLogger) HandleClickLogTask(ctx context.Context, t *asynq.Task) error {
	var ev event.LinkEvent
	if err := json.Unmarshal(t.Payload(), &ev); err != nil {
		zap.L().Error("invalid click payload", zap.Error(err))
		return nil
	}

	if err := l.write(ctx, &ev); err != nil {
		metrics.ClickLogFailures.Inc()
		return err
	}
	l.ScheduleEnrichment(ctx, ev.ID)
	return nil
}

func Register(mux *asynq.ServeMux, l *ClickLogger) {
	mux.HandleFunc(taskname.ClickLog, l.HandleClickLogTask)
}
