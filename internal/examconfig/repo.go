package examconfig

import "context"

// Store persists config templates. RecordUsage folds one completed attempt
// into the aggregates with storage-layer arithmetic so concurrent completions
// do not lose updates.
type Store interface {
	Put(ctx context.Context, c Config) error
	Get(ctx context.Context, id string) (Config, error)
	RecordUsage(ctx context.Context, id string, score int, durationSec int) error
}
