package calibration

import (
	"context"
	"log"
	"time"

	"github.com/linguaprep/assessment-engine/internal/itembank"
)

const defaultBatch = 100

// Applier drains the queue into the item bank. Run from main as a background
// goroutine; a failed exposure is logged, marked, and picked up again on
// later sweeps until the queue's delivery cap parks it.
type Applier struct {
	queue    Queue
	items    itembank.Store
	interval time.Duration
	logger   *log.Logger
}

func NewApplier(queue Queue, items itembank.Store, interval time.Duration, logger *log.Logger) *Applier {
	if logger == nil {
		logger = log.Default()
	}
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Applier{queue: queue, items: items, interval: interval, logger: logger}
}

// Run sweeps until ctx is done.
func (a *Applier) Run(ctx context.Context) {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := a.Sweep(ctx); err != nil {
				a.logger.Printf("calibration sweep: %v", err)
			} else if n > 0 {
				a.logger.Printf("calibration: applied %d exposures", n)
			}
		}
	}
}

// Sweep applies one batch of pending exposures and returns how many stuck.
func (a *Applier) Sweep(ctx context.Context) (int, error) {
	pending, err := a.queue.Next(ctx, defaultBatch)
	if err != nil {
		return 0, err
	}
	applied := 0
	for _, p := range pending {
		e := p.Exposure
		if err := a.items.RecordExposure(ctx, e.ItemID, e.Correct, e.TimeSpentSec, e.ObserverScore); err != nil {
			a.logger.Printf("calibration: item %s attempt %s: %v", e.ItemID, p.AttemptID, err)
			if mErr := a.queue.MarkFailed(ctx, p.Offset, err.Error()); mErr != nil {
				a.logger.Printf("calibration: mark failed: %v", mErr)
			}
			continue
		}
		if err := a.queue.MarkApplied(ctx, p.Offset); err != nil {
			return applied, err
		}
		applied++
	}
	return applied, nil
}
