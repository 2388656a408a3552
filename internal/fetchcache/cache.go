// Package fetchcache is a short-TTL response cache keyed by
// (capability, subject, params). A cache hit short-circuits the provider
// cascade without touching rate-limit or attribution state.
package fetchcache

import (
	"sync"
	"time"

	"github.com/finsight-labs/finsight/internal/capability"
	"github.com/finsight-labs/finsight/internal/provider"
)

// DefaultTTL is the capability-independent entry lifetime.
const DefaultTTL = 5 * time.Minute

// Key identifies one cached response.
type Key string

// NewKey builds the cache key for a fetch request.
func NewKey(c capability.Capability, subject string, params provider.Params) Key {
	return Key(string(c) + "|" + subject + "|" + params.Canonical())
}

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// Cache is a concurrency-safe TTL cache. Entries are invalidated by TTL
// expiry only; an expired entry is never served.
type Cache[V any] struct {
	mu      sync.Mutex
	entries map[Key]entry[V]
	ttl     time.Duration
	nowFunc func() time.Time
}

// New creates a cache with the given default TTL (DefaultTTL when ttl <= 0).
func New[V any](ttl time.Duration) *Cache[V] {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache[V]{
		entries: make(map[Key]entry[V]),
		ttl:     ttl,
		nowFunc: time.Now,
	}
}

// WithNow sets a fixed clock for testing.
func (c *Cache[V]) WithNow(now func() time.Time) *Cache[V] {
	c.nowFunc = now
	return c
}

// Get returns the cached value for key, if present and unexpired.
func (c *Cache[V]) Get(key Key) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var zero V
	e, ok := c.entries[key]
	if !ok {
		return zero, false
	}
	if !c.nowFunc().Before(e.expiresAt) {
		delete(c.entries, key)
		return zero, false
	}
	return e.value, true
}

// Put stores value under key with the cache's default TTL.
func (c *Cache[V]) Put(key Key, value V) {
	c.PutTTL(key, value, c.ttl)
}

// PutTTL stores value under key with an explicit TTL.
func (c *Cache[V]) PutTTL(key Key, value V, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.ttl
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry[V]{value: value, expiresAt: c.nowFunc().Add(ttl)}
}

// PruneExpired removes expired entries and returns how many were dropped.
func (c *Cache[V]) PruneExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.nowFunc()
	var n int
	for k, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, k)
			n++
		}
	}
	return n
}

// Len returns the number of entries currently stored, expired or not.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
