package attempt

import (
	"context"
	"errors"
)

// ErrConflict reports a lost compare-and-set: the stored status changed
// between read and write. Callers re-read and re-validate.
var ErrConflict = errors.New("attempt: status changed concurrently")

// Store persists attempts. UpdateIf is the only mutation path after Create:
// it writes the full aggregate conditionally on the persisted status still
// being expect, which makes every state transition a compare-and-set and
// protects against duplicate or racing client requests.
type Store interface {
	Create(ctx context.Context, a Attempt) error
	Get(ctx context.Context, id string) (Attempt, error)
	UpdateIf(ctx context.Context, a Attempt, expect Status) error
}
