// Package cache is a process-lifetime key/value store with per-entry TTL.
// Eviction is purely lazy: an expired entry is removed on the read that
// finds it stale. There is no background sweep and no persistence.
package cache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	value    V
	storedAt time.Time
	ttl      time.Duration
}

// Cache stores values of one type under string keys. Writes replace the
// whole entry, so a racing reader sees either the old or the new value,
// never a torn one.
type Cache[V any] struct {
	// MaxItems caps the number of entries; <= 0 means unbounded. When the
	// cap is exceeded, expired entries go first, then arbitrary ones.
	MaxItems int

	mu    sync.Mutex
	items map[string]entry[V]
	now   func() time.Time // test hook
}

func New[V any](maxItems int) *Cache[V] {
	return &Cache[V]{MaxItems: maxItems, items: make(map[string]entry[V]), now: time.Now}
}

// Set stores value under key with the given TTL, overwriting any previous
// entry. A non-positive ttl stores an entry that is already expired.
func (c *Cache[V]) Set(key string, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = entry[V]{value: value, storedAt: c.now(), ttl: ttl}
	if c.MaxItems > 0 && len(c.items) > c.MaxItems {
		c.evictLocked()
	}
}

// Get returns the stored value and its age in whole seconds. A stale entry
// is deleted and reported as a miss.
func (c *Cache[V]) Get(key string) (value V, ageSeconds int, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, found := c.items[key]
	if !found {
		return value, 0, false
	}
	age := c.now().Sub(e.storedAt)
	if age > e.ttl {
		delete(c.items, key)
		return value, 0, false
	}
	return e.value, int(age.Seconds()), true
}

// Delete removes key if present.
func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

// Len reports the number of entries, expired ones included.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *Cache[V]) evictLocked() {
	now := c.now()
	for k, e := range c.items {
		if now.Sub(e.storedAt) > e.ttl {
			delete(c.items, k)
		}
		if len(c.items) <= c.MaxItems {
			return
		}
	}
	for k := range c.items {
		if len(c.items) <= c.MaxItems {
			return
		}
		delete(c.items, k)
	}
}
