package worker

import (
	"context"
	"time"

	"github.com/medisuite/portal-api/pkg/logger"
)

// Sweeper completes expired leaves; implemented by the leave service.
type Sweeper interface {
	Sweep(ctx context.Context, limit int) (int, error)
}

// LeaveSweepWorker periodically closes out leaves whose end date has passed,
// clearing the doctor projections so their slot catalogs reopen.
type LeaveSweepWorker struct {
	sweeper   Sweeper
	interval  time.Duration
	batchSize int
	logger    *logger.Logger
}

func NewLeaveSweepWorker(sweeper Sweeper, interval time.Duration, batchSize int, logger *logger.Logger) *LeaveSweepWorker {
	return &LeaveSweepWorker{
		sweeper:   sweeper,
		interval:  interval,
		batchSize: batchSize,
		logger:    logger,
	}
}

func (w *LeaveSweepWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("Starting leave sweep worker")

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Shutting down leave sweep worker")
			return
		case <-ticker.C:
			swept, err := w.sweeper.Sweep(ctx, w.batchSize)
			if err != nil {
				w.logger.Error(err, "Leave sweep failed")
				continue
			}
			if swept > 0 {
				w.logger.Info("Completed expired leaves", "count", swept)
			}
		}
	}
}
