package attempt

import (
	"context"
	"sync"

	"github.com/linguaprep/assessment-engine/internal/faults"
)

type memoryStore struct {
	mu       sync.RWMutex
	attempts map[string]Attempt
}

func NewMemoryStore() Store {
	return &memoryStore{attempts: map[string]Attempt{}}
}

func (m *memoryStore) Create(_ context.Context, a Attempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts[a.ID] = a
	return nil
}

func (m *memoryStore) Get(_ context.Context, id string) (Attempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.attempts[id]
	if !ok {
		return Attempt{}, &faults.NotFoundError{Resource: "attempt", ID: id}
	}
	// deep-enough copy: answers are values, snapshots are read-only
	a.Answers = append([]Answer(nil), a.Answers...)
	a.answerIdx = nil
	return a, nil
}

func (m *memoryStore) UpdateIf(_ context.Context, a Attempt, expect Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.attempts[a.ID]
	if !ok {
		return &faults.NotFoundError{Resource: "attempt", ID: a.ID}
	}
	if cur.Status != expect {
		return ErrConflict
	}
	a.answerIdx = nil
	m.attempts[a.ID] = a
	return nil
}
