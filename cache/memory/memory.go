// Package memory is an in-process cache.Cache with lazy TTL expiry.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/NIMOLA/hermeos-backend-sub002/cache"
)

var _ cache.Cache = (*Cache)(nil)

type entry struct {
	value     string
	expiresAt time.Time
}

// Cache is a map guarded by a RWMutex. A zero TTL never expires.
type Cache struct {
	mu    sync.RWMutex
	items map[string]entry
	now   func() time.Time
}

// New creates an empty cache.
func New() *Cache {
	return &Cache{items: make(map[string]entry), now: time.Now}
}

func (c *Cache) Get(_ context.Context, key string) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.live(key)
	if !ok {
		return "", cache.ErrMiss
	}
	return e.value, nil
}

func (c *Cache) Set(_ context.Context, key, value string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.put(key, value, ttl)
	return nil
}

func (c *Cache) Add(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.live(key); ok {
		return false, nil
	}
	c.put(key, value, ttl)
	return true, nil
}

func (c *Cache) Swap(_ context.Context, key, old, value string, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.live(key); !ok || e.value != old {
		return false, nil
	}
	c.put(key, value, ttl)
	return true, nil
}

// live returns the unexpired entry for key. Callers hold mu.
func (c *Cache) live(key string) (entry, bool) {
	e, ok := c.items[key]
	if !ok || (!e.expiresAt.IsZero() && c.now().After(e.expiresAt)) {
		return entry{}, false
	}
	return e, true
}

func (c *Cache) put(key, value string, ttl time.Duration) {
	e := entry{value: value}
	if ttl > 0 {
		e.expiresAt = c.now().Add(ttl)
	}
	c.items[key] = e
}

func (c *Cache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, k := range keys {
		delete(c.items, k)
	}
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
