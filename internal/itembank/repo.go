package itembank

import "context"

// Store is the item bank persistence contract.
//
// RecordExposure must be safe under concurrent calls for the same item from
// unrelated attempts: implementations increment counters atomically at the
// storage layer and recompute the derived calibration fields afterwards,
// never read-modify-write the counters in application code.
type Store interface {
	PutItem(ctx context.Context, it Item) error
	GetItem(ctx context.Context, id string) (Item, error)
	// GetItems resolves many ids at once; missing ids are an error.
	GetItems(ctx context.Context, ids []string) ([]Item, error)
	// ListApproved returns approved items in a section whose authored level
	// is one of levels (all levels when empty).
	ListApproved(ctx context.Context, section Section, levels []Level) ([]Item, error)
	RecordExposure(ctx context.Context, itemID string, correct bool, timeSpentSec, observerScore int) error
}
