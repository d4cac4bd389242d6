package store

import (
	"context"
	"sync"
	"time"
)

// MemoryCache is a process-local Cache for a single run.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewMemory creates an empty in-memory cache.
func NewMemory() *MemoryCache {
	return &MemoryCache{entries: make(map[string]Entry)}
}

// Get implements Cache.
func (m *MemoryCache) Get(_ context.Context, key string) (*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[key]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

// Put implements Cache.
func (m *MemoryCache) Put(_ context.Context, entry Entry) error {
	if entry.CachedAt.IsZero() {
		entry.CachedAt = time.Now().UTC()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[entry.Key] = entry
	return nil
}

// Len returns the number of cached entries.
func (m *MemoryCache) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Close implements Cache.
func (m *MemoryCache) Close() error { return nil }
