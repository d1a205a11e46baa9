// Package calibration defers item-statistics updates from completed exam
// attempts. Exposures are appended to a durable log and folded into the item
// bank asynchronously, so a recomputation failure never blocks completion;
// failed entries stay pending and are retried until the attempt cap.
package calibration

import "context"

// maxDeliveryAttempts bounds retries per entry. An exposure that keeps
// failing is parked dead instead of clogging every sweep.
const maxDeliveryAttempts = 5

// Exposure is one item exposure awaiting calibration.
type Exposure struct {
	ItemID        string `json:"item_id"`
	Correct       bool   `json:"correct"`
	TimeSpentSec  int    `json:"time_spent_sec"`
	ObserverScore int    `json:"observer_score"`
}

// Pending is an enqueued exposure with its log bookkeeping.
type Pending struct {
	Offset    int64
	AttemptID string
	Exposure  Exposure
	Attempts  int
	LastError string
}

// Queue is the durable exposure log.
type Queue interface {
	Enqueue(ctx context.Context, attemptID string, exposures []Exposure) error
	// Next returns up to limit pending entries, oldest first.
	Next(ctx context.Context, limit int) ([]Pending, error)
	MarkApplied(ctx context.Context, offset int64) error
	// MarkFailed records the failure and leaves the entry pending for
	// retry, or parks it dead once it reaches maxDeliveryAttempts.
	MarkFailed(ctx context.Context, offset int64, reason string) error
}
