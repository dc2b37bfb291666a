package cache

import (
	"context"
	"sync"
	"time"
)

// DefaultMaxEntries bounds the in-process response cache.
const DefaultMaxEntries = 1024

type cached struct {
	body    []byte
	expires time.Time
}

func (c cached) live(now time.Time) bool { return c.expires.IsZero() || now.Before(c.expires) }

// TTLCache is an in-process BytesCache for a single service instance. When
// full it drops expired responses first and then refuses new keys until
// something expires, so a burst of distinct queries cannot grow it unbounded.
type TTLCache struct {
	mu    sync.Mutex
	items map[string]cached
	limit int
	now   func() time.Time
}

// NewTTLCache creates a cache holding at most limit keys; limit <= 0 means DefaultMaxEntries.
func NewTTLCache(limit int) *TTLCache {
	if limit <= 0 {
		limit = DefaultMaxEntries
	}
	return &TTLCache{items: make(map[string]cached), limit: limit, now: time.Now}
}

func (c *TTLCache) GetBytes(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	it, ok := c.items[key]
	if !ok {
		return nil, false, nil
	}
	if !it.live(c.now()) {
		delete(c.items, key)
		return nil, false, nil
	}
	return it.body, true, nil
}

func (c *TTLCache) SetBytes(_ context.Context, key string, value []byte, ttl time.Duration) error {
	now := c.now()
	it := cached{body: value}
	if ttl > 0 {
		it.expires = now.Add(ttl)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.items[key]; !exists && len(c.items) >= c.limit {
		c.sweep(now)
		if len(c.items) >= c.limit {
			return nil
		}
	}
	c.items[key] = it
	return nil
}

// Len reports stored keys, expired ones included until the next sweep.
func (c *TTLCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *TTLCache) sweep(now time.Time) {
	for k, it := range c.items {
		if !it.live(now) {
			delete(c.items, k)
		}
	}
}
