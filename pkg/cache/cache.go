// Package cache provides a small thread-safe in-memory cache whose lifetime
// is chosen by its owner.
package cache

import (
	"sync"
	"time"
)

type cacheItem[T any] struct {
	value      T
	expiration time.Time // zero: never expires
	seq        uint64
}

// Cache is a thread-safe map with optional TTL and optional size bound.
// A zero TTL keeps entries for the lifetime of the cache; a zero maxEntries
// leaves it unbounded. When bounded, the oldest inserted entry is evicted.
type Cache[T any] struct {
	mu         sync.RWMutex
	data       map[string]cacheItem[T]
	ttl        time.Duration
	maxEntries int
	seq        uint64
	now        func() time.Time
}

// New creates a cache. ttl <= 0 disables expiry; maxEntries <= 0 disables eviction.
func New[T any](ttl time.Duration, maxEntries int) *Cache[T] {
	return &Cache[T]{
		data:       make(map[string]cacheItem[T]),
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

// Get returns a cached value if present and not expired.
func (c *Cache[T]) Get(key string) (T, bool) {
	c.mu.RLock()
	item, ok := c.data[key]
	c.mu.RUnlock()
	if !ok {
		var zero T
		return zero, false
	}
	if !item.expiration.IsZero() && c.now().After(item.expiration) {
		c.mu.Lock()
		delete(c.data, key)
		c.mu.Unlock()
		var zero T
		return zero, false
	}
	return item.value, true
}

// Put inserts or overwrites an entry.
func (c *Cache[T]) Put(key string, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var exp time.Time
	if c.ttl > 0 {
		exp = c.now().Add(c.ttl)
	}
	c.seq++
	if _, exists := c.data[key]; !exists && c.maxEntries > 0 && len(c.data) >= c.maxEntries {
		c.evictOldestLocked()
	}
	c.data[key] = cacheItem[T]{value: value, expiration: exp, seq: c.seq}
}

// Bust deletes a single entry.
func (c *Cache[T]) Bust(key string) {
	c.mu.Lock()
	delete(c.data, key)
	c.mu.Unlock()
}

// Len returns the number of entries, expired or not.
func (c *Cache[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}

// StartCleaner periodically removes expired entries until stop is closed.
func (c *Cache[T]) StartCleaner(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.cleanupExpired()
		case <-stop:
			return
		}
	}
}

func (c *Cache[T]) cleanupExpired() {
	now := c.now()
	c.mu.Lock()
	for k, v := range c.data {
		if !v.expiration.IsZero() && now.After(v.expiration) {
			delete(c.data, k)
		}
	}
	c.mu.Unlock()
}

func (c *Cache[T]) evictOldestLocked() {
	var oldestKey string
	var oldestSeq uint64
	first := true
	for k, v := range c.data {
		if first || v.seq < oldestSeq {
			oldestKey, oldestSeq, first = k, v.seq, false
		}
	}
	if !first {
		delete(c.data, oldestKey)
	}
}
