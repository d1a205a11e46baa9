package calibration

import (
	"context"
	"sync"
)

type memEntry struct {
	p       Pending
	applied bool
	dead    bool
}

type memoryQueue struct {
	mu      sync.Mutex
	entries []*memEntry
	seq     int64
}

func NewMemoryQueue() Queue {
	return &memoryQueue{}
}

func (m *memoryQueue) Enqueue(_ context.Context, attemptID string, exposures []Exposure) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range exposures {
		m.seq++
		m.entries = append(m.entries, &memEntry{p: Pending{Offset: m.seq, AttemptID: attemptID, Exposure: e}})
	}
	return nil
}

func (m *memoryQueue) Next(_ context.Context, limit int) ([]Pending, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Pending
	for _, e := range m.entries {
		if e.applied || e.dead {
			continue
		}
		out = append(out, e.p)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *memoryQueue) MarkApplied(_ context.Context, offset int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.p.Offset == offset {
			e.applied = true
		}
	}
	return nil
}

func (m *memoryQueue) MarkFailed(_ context.Context, offset int64, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.p.Offset == offset {
			e.p.Attempts++
			e.p.LastError = reason
			if e.p.Attempts >= maxDeliveryAttempts {
				e.dead = true
			}
		}
	}
	return nil
}
