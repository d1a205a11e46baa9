package ability

import (
	"context"
	"sync"
)

type memoryStore struct {
	mu       sync.RWMutex
	profiles map[string]Profile
}

func NewMemoryStore() Store {
	return &memoryStore{profiles: map[string]Profile{}}
}

func (m *memoryStore) Get(_ context.Context, userID string) (Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[userID]
	if !ok {
		return NewProfile(userID), nil
	}
	return p, nil
}

func (m *memoryStore) Put(_ context.Context, p Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[p.UserID] = p
	return nil
}
