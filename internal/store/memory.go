package store

import (
	"context"
	"sync"
)

// MemoryCache is an in-memory GeocodeCache for tests and ephemeral runs.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[CacheKey]Entry
}

// NewMemory returns an empty in-memory cache.
func NewMemory() *MemoryCache {
	return &MemoryCache{entries: make(map[CacheKey]Entry)}
}

func (m *MemoryCache) Get(_ context.Context, key CacheKey) (*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return nil, nil
	}
	cp := e
	if e.Street != nil {
		street := *e.Street
		cp.Street = &street
	}
	return &cp, nil
}

func (m *MemoryCache) Put(_ context.Context, entry Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry.RawResponse = entry.truncated()
	m.entries[entry.Key] = entry
	return nil
}

func (m *MemoryCache) Count(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.entries)), nil
}

func (m *MemoryCache) Clear(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := int64(len(m.entries))
	m.entries = make(map[CacheKey]Entry)
	return n, nil
}

func (m *MemoryCache) Migrate(context.Context) error { return nil }

func (m *MemoryCache) Close() error { return nil }
