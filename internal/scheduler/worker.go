package scheduler

import (
	"context"
	"fmt"

	"agency_portal_backend/platform/config"
	"agency_portal_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// ScoreUpdater is the scoring operation the worker invokes per task.
type ScoreUpdater interface {
	UpdateScore(ctx context.Context, clientID uuid.UUID) (int, error)
}

type Worker struct {
	server  *asynq.Server
	mux     *asynq.ServeMux
	updater ScoreUpdater
	log     *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, updater ScoreUpdater, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:  server,
		mux:     mux,
		updater: updater,
		log:     log,
	}

	mux.HandleFunc(TaskScoreRecompute, w.handleScoreRecompute)

	return w, nil
}

func (w *Worker) handleScoreRecompute(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseScoreRecomputePayload(task)
	if err != nil {
		return err
	}

	clientID, err := uuid.Parse(payload.ClientID)
	if err != nil {
		return err
	}

	if _, err := w.updater.UpdateScore(ctx, clientID); err != nil {
		w.log.JobEvent(TaskScoreRecompute, false, err.Error())
		return err
	}

	w.log.JobEvent(TaskScoreRecompute, true, "")
	return nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}
