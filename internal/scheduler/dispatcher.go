package scheduler

import (
	"context"
	"time"

	"agency_portal_backend/platform/config"
	"agency_portal_backend/platform/logger"

	"github.com/google/uuid"
)

// ClientLister provides the set of clients eligible for batch recomputation.
type ClientLister interface {
	ListActiveClientIDs(ctx context.Context) ([]uuid.UUID, error)
}

// RecomputeDispatcher periodically enqueues one recompute task per active
// client. Per-client computations are independent, so the worker pool drains
// the batch concurrently.
type RecomputeDispatcher struct {
	client   *Client
	lister   ClientLister
	interval time.Duration
	log      *logger.Logger
}

func NewRecomputeDispatcher(cfg config.SchedulerConfig, lister ClientLister, log *logger.Logger) (*RecomputeDispatcher, error) {
	client, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}

	interval := cfg.GetRecomputeInterval()
	if interval <= 0 {
		interval = 6 * time.Hour
	}

	return &RecomputeDispatcher{
		client:   client,
		lister:   lister,
		interval: interval,
		log:      log,
	}, nil
}

func (d *RecomputeDispatcher) Close() error {
	if d == nil {
		return nil
	}
	return d.client.Close()
}

// Run dispatches one batch immediately, then on every interval tick until
// the context is cancelled.
func (d *RecomputeDispatcher) Run(ctx context.Context) {
	if d == nil || d.client == nil || d.lister == nil {
		return
	}

	d.dispatch(ctx)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.dispatch(ctx)
		}
	}
}

func (d *RecomputeDispatcher) dispatch(ctx context.Context) {
	ids, err := d.lister.ListActiveClientIDs(ctx)
	if err != nil {
		d.log.Warn("recompute dispatch failed to list clients", "error", err)
		return
	}

	enqueued := 0
	for _, id := range ids {
		if err := d.client.EnqueueScoreRecompute(ctx, ScoreRecomputePayload{ClientID: id.String()}); err != nil {
			d.log.Warn("recompute enqueue failed", "client_id", id.String(), "error", err)
			continue
		}
		enqueued++
	}

	d.log.Info("recompute batch dispatched", "clients", len(ids), "enqueued", enqueued)
}
