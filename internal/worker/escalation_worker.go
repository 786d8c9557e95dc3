package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/dispute-service/internal/service"
)

// EscalationWorker periodically moves stale negotiations to admin review.
type EscalationWorker struct {
	disputes *service.DisputeService
	interval time.Duration
	logger   *zap.Logger
}

// NewEscalationWorker builds the worker.
func NewEscalationWorker(disputes *service.DisputeService, interval time.Duration, logger *zap.Logger) *EscalationWorker {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &EscalationWorker{disputes: disputes, interval: interval, logger: logger}
}

// Run sweeps on a ticker until the context is cancelled. One sweep runs
// immediately so restarts do not delay overdue escalations by a full interval.
func (w *EscalationWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *EscalationWorker) sweep(ctx context.Context) {
	escalated, err := w.disputes.EscalateStale(ctx)
	if err != nil {
		w.logger.Error("escalation sweep failed", zap.Error(err))
		return
	}
	if escalated > 0 {
		w.logger.Info("escalation sweep completed", zap.Int("escalated", escalated))
	}
}
