package examconfig

import (
	"context"
	"sync"

	"github.com/linguaprep/assessment-engine/internal/faults"
)

type memoryStore struct {
	mu      sync.RWMutex
	configs map[string]Config
}

func NewMemoryStore() Store {
	return &memoryStore{configs: map[string]Config{}}
}

func (m *memoryStore) Put(_ context.Context, c Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.configs[c.ID] = c
	return nil
}

func (m *memoryStore) Get(_ context.Context, id string) (Config, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.configs[id]
	if !ok {
		return Config{}, &faults.NotFoundError{Resource: "exam config", ID: id}
	}
	return c, nil
}

func (m *memoryStore) RecordUsage(_ context.Context, id string, score, durationSec int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.configs[id]
	if !ok {
		return &faults.NotFoundError{Resource: "exam config", ID: id}
	}
	c.UsageCount++
	n := float64(c.UsageCount)
	c.AvgScore += (float64(score) - c.AvgScore) / n
	c.AvgDurationSec += (float64(durationSec) - c.AvgDurationSec) / n
	m.configs[id] = c
	return nil
}
