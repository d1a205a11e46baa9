package ability

import "context"

// Store persists ability profiles. Get returns a fresh zero profile for
// unknown users so callers never special-case first contact.
type Store interface {
	Get(ctx context.Context, userID string) (Profile, error)
	Put(ctx context.Context, p Profile) error
}
