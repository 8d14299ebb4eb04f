package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// Cache is the id->entity association behind the cached repository. It is
// purely an optimization: losing an entry only costs an extra store read.
type Cache[T any] interface {
	Get(ctx context.Context, id string) (T, bool)
	Set(ctx context.Context, id string, value T)
	Evict(ctx context.Context, id string)
}

type memoryEntry struct {
	data     []byte
	storedAt time.Time
}

// MemoryCache is an in-process cache with TTL expiry and a capacity bound.
// When full, the oldest entry is dropped.
//
// Entries are JSON snapshots, the same representation RedisCache uses:
// a caller may keep mutating a value after Set, and a reader may mutate
// what Get returned, without either showing through the cache. The cache
// therefore only ever serves state that was current at Set time.
type MemoryCache[T any] struct {
	mu         sync.Mutex
	entries    map[string]memoryEntry
	ttl        time.Duration
	maxEntries int
}

func NewMemoryCache[T any](ttl time.Duration, maxEntries int) *MemoryCache[T] {
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	return &MemoryCache[T]{
		entries:    make(map[string]memoryEntry),
		ttl:        ttl,
		maxEntries: maxEntries,
	}
}

func (c *MemoryCache[T]) Get(_ context.Context, id string) (T, bool) {
	var zero T

	c.mu.Lock()
	e, ok := c.entries[id]
	if ok && c.ttl > 0 && time.Since(e.storedAt) > c.ttl {
		delete(c.entries, id)
		ok = false
	}
	c.mu.Unlock()
	if !ok {
		return zero, false
	}

	var value T
	if err := json.Unmarshal(e.data, &value); err != nil {
		c.mu.Lock()
		delete(c.entries, id)
		c.mu.Unlock()
		return zero, false
	}
	return value, true
}

func (c *MemoryCache[T]) Set(_ context.Context, id string, value T) {
	data, err := json.Marshal(value)
	if err != nil {
		// an unencodable value is simply not cached
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[id]; !exists && len(c.entries) >= c.maxEntries {
		c.evictOldestLocked()
	}
	c.entries[id] = memoryEntry{data: data, storedAt: time.Now()}
}

func (c *MemoryCache[T]) Evict(_ context.Context, id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, id)
}

// Len reports the current entry count.
func (c *MemoryCache[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *MemoryCache[T]) evictOldestLocked() {
	var oldestID string
	var oldestAt time.Time
	first := true
	for id, e := range c.entries {
		if first || e.storedAt.Before(oldestAt) {
			oldestID = id
			oldestAt = e.storedAt
			first = false
		}
	}
	if !first {
		delete(c.entries, oldestID)
	}
}
