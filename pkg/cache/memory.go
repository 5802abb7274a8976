package cache

import (
	"context"

	gocache "github.com/patrickmn/go-cache"
)

// Memory is a process-local cache backed by patrickmn/go-cache.
type Memory struct {
	store *gocache.Cache
}

// NewMemory creates an empty in-memory cache with no expiry and no janitor.
func NewMemory() *Memory {
	return &Memory{
		store: gocache.New(gocache.NoExpiration, 0),
	}
}

// Get retrieves a value from the cache.
func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := m.store.Get(key)
	if !ok {
		return nil, false, nil
	}
	return v.([]byte), true, nil
}

// Set stores a value until the cache is cleared.
func (m *Memory) Set(_ context.Context, key string, value []byte) error {
	m.store.Set(key, value, gocache.NoExpiration)
	return nil
}

// Clear removes all items from the cache.
func (m *Memory) Clear(_ context.Context) error {
	m.store.Flush()
	return nil
}

// Len returns the number of items in the cache.
func (m *Memory) Len() int {
	return m.store.ItemCount()
}
