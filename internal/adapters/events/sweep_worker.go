package events

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/caregrid/dispatch-service/internal/application"
)

// SweepWorker periodically runs the timeout and expiry sweep over in-progress
// campaigns.
type SweepWorker struct {
	logger   *slog.Logger
	service  *application.Service
	interval time.Duration
}

func NewSweepWorker(logger *slog.Logger, service *application.Service, interval time.Duration) *SweepWorker {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &SweepWorker{logger: logger, service: service, interval: interval}
}

func (w *SweepWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		if err := w.processOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			w.logger.ErrorContext(ctx, "sweep iteration failed",
				"module", "events.sweep_worker",
				"layer", "adapter",
				"operation", "process_once",
				"outcome", "failure",
				"error", err,
			)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (w *SweepWorker) processOnce(ctx context.Context) error {
	swept, err := w.service.CheckTimeouts(ctx)
	if err != nil {
		return err
	}
	if swept > 0 {
		w.logger.InfoContext(ctx, "campaigns swept",
			"module", "events.sweep_worker",
			"layer", "adapter",
			"operation", "process_once",
			"outcome", "success",
			"swept", swept,
		)
	}
	return nil
}
