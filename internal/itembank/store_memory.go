package itembank

import (
	"context"
	"sync"

	"github.com/linguaprep/assessment-engine/internal/faults"
)

// memoryStore keeps the bank in process memory. Used by tests and the
// offline/dev mode; the mutex stands in for storage-layer atomicity.
type memoryStore struct {
	mu    sync.RWMutex
	items map[string]Item
}

func NewMemoryStore() Store {
	return &memoryStore{items: map[string]Item{}}
}

func (m *memoryStore) PutItem(_ context.Context, it Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[it.ID] = it
	return nil
}

func (m *memoryStore) GetItem(_ context.Context, id string) (Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	it, ok := m.items[id]
	if !ok {
		return Item{}, &faults.NotFoundError{Resource: "item", ID: id}
	}
	return it, nil
}

func (m *memoryStore) GetItems(_ context.Context, ids []string) ([]Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Item, 0, len(ids))
	for _, id := range ids {
		it, ok := m.items[id]
		if !ok {
			return nil, &faults.NotFoundError{Resource: "item", ID: id}
		}
		out = append(out, it)
	}
	return out, nil
}

func (m *memoryStore) ListApproved(_ context.Context, section Section, levels []Level) ([]Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	want := map[Level]bool{}
	for _, l := range levels {
		want[l] = true
	}
	var out []Item
	for _, it := range m.items {
		if it.Status != StatusApproved || it.Section != section {
			continue
		}
		if len(want) > 0 && !want[it.Level] {
			continue
		}
		out = append(out, it)
	}
	return out, nil
}

func (m *memoryStore) RecordExposure(_ context.Context, itemID string, correct bool, timeSpentSec, observerScore int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[itemID]
	if !ok {
		return &faults.NotFoundError{Resource: "item", ID: itemID}
	}
	it.Stats.Apply(correct, timeSpentSec, observerScore, it.Level)
	m.items[itemID] = it
	return nil
}
