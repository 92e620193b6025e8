package billing

import (
	"context"
	"encoding/json"
	"time"

	"naano-tracking/pkg/task"
	"naano-tracking/pkg/taskname"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

type CheckPayload struct {
	SaasID string `json:"saas_id"`
}

func NewCheckTask(saasID string) (*asynq.Task, error) {
	payload, err := json.Marshal(CheckPayload{SaasID: saasID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskname.BillingCheck, payload,
		asynq.Queue(task.QueueCritical),
		asynq.MaxRetry(3),
		asynq.Unique(time.Minute),
		asynq.Timeout(time.Minute),
	), nil
}

func NewSweepTask() *asynq.Task {
	return asynq.NewTask(taskname.BillingSweep, nil,
		asynq.Queue(task.QueueDefault),
		asynq.MaxRetry(0),
		asynq.Unique(time.Hour),
		asynq.Timeout(30*time.Minute),
	)
}

// ScheduleCheck queues an asynchronous billing attempt for the brand.
func ScheduleCheck(ctx context.Context, enq task.Enqueuer, saasID string) {
	if enq == nil {
		return
	}
	t, err := NewCheckTask(saasID)
	if err != nil {
		return
	}
	if _, err := enq.Enqueue(ctx, t); err != nil {
		zap.L().Warn("[Billing] failed to enqueue billing check", zap.String("saas_id", saasID), zap.Error(err))
	}
}

func (s *Service) HandleCheckTask(ctx context.Context, t *asynq.Task) error {
	var p CheckPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		zap.L().Error("[Billing] invalid billing payload", zap.Error(err))
		return nil
	}

	res, err := s.BillBrand(ctx, p.SaasID)
	if err != nil {
		return err
	}
	zap.L().Info("[Billing] billing check done",
		zap.String("saas_id", res.SaasID),
		zap.String("outcome", string(res.Outcome)),
		zap.String("reason", res.Reason),
	)
	return nil
}

func (s *Service) HandleSweepTask(ctx context.Context, _ *asynq.Task) error {
	start := time.Now()
	res, err := s.Sweep(ctx)
	if err != nil {
		return err
	}
	zap.L().Info("[Billing] sweep finished",
		zap.Int("billed", res.BilledCount),
		zap.Int("failed", res.FailedCount),
		zap.Int("skipped", res.SkippedCount),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}

func Register(mux *asynq.ServeMux, s *Service) {
	mux.HandleFunc(taskname.BillingCheck, s.HandleCheckTask)
	mux.HandleFunc(taskname.BillingSweep, s.HandleSweepTask)
}
