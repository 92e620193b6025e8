package enrichment

import (
	"context"
	"encoding/json"
	"time"

	"naano-tracking/pkg/task"
	"naano-tracking/pkg/taskname"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

type TaskPayload struct {
	LinkEventID string `json:"link_event_id"`
}

func NewEnrichTask(linkEventID string) (*asynq.Task, error) {
	payload, err := json.Marshal(TaskPayload{LinkEventID: linkEventID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskname.EnrichmentSession, payload,
		asynq.Queue(task.QueueEnrichment),
		asynq.MaxRetry(1),
		asynq.Timeout(30*time.Second),
	), nil
}

// Schedule submits enrichment for a click without waiting for it. Failures
// are logged.
func Schedule(ctx context.Context, enq task.Enqueuer, linkEventID string, delay time.Duration) {
	if enq == nil {
		return
	}
	t, err := NewEnrichTask(linkEventID)
	if err != nil {
		return
	}
	var opts []asynq.Option
	if delay > 0 {
		opts = append(opts, asynq.ProcessIn(delay))
	}
	if _, err := enq.Enqueue(ctx, t, opts...); err != nil {
		zap.L().Warn("failed to enqueue enrichment", zap.String("link_event_id", linkEventID), zap.Error(err))
	}
}

// HandleEnrichTask runs Enrich for a queued click. It never returns an error
// for enrichment failures so the queue does not retry best-effort work.
func (s *Service) HandleEnrichTask(ctx context.Context, t *asynq.Task) error {
	var p TaskPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		zap.L().Error("invalid enrichment payload", zap.Error(err))
		return nil
	}

	if _, err := s.Enrich(ctx, p.LinkEventID); err != nil {
		zap.L().Warn("enrichment failed", zap.String("link_event_id", p.LinkEventID), zap.Error(err))
	}
	return nil
}

// Register attaches the enrichment handler to the worker mux.
func Register(mux *asynq.ServeMux, s *Service) {
	mux.HandleFunc(taskname.EnrichmentSession, s.HandleEnrichTask)
}
