package ratelimiter

import (
	"sync"
	"time"
)

type cacheEntry struct {
	state     bucketState
	expiresAt time.Time
}

// Cache is an in-memory store of bucket states with lazy plus periodic
// expiry of stale entries.
type Cache struct {
	entries map[string]cacheEntry
	mu      sync.RWMutex
}

func NewCache() *Cache {
	c := &Cache{
		entries: make(map[string]cacheEntry),
	}

	go c.cleanupExpired()

	return c
}

func (c *Cache) Get(key string) (bucketState, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok {
		return bucketState{}, false
	}

	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		return bucketState{}, false
	}

	return entry.state, true
}

func (c *Cache) SetWithExpiration(key string, state bucketState, expiration time.Duration) {
	var expiresAt time.Time
	if expiration > 0 {
		expiresAt = time.Now().Add(expiration)
	}

	c.mu.Lock()
	c.entries[key] = cacheEntry{
		state:     state,
		expiresAt: expiresAt,
	}
	c.mu.Unlock()
}

func (c *Cache) cleanupExpired() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		now := time.Now()

		c.mu.Lock()
		for key, entry := range c.entries {
			if !entry.expiresAt.IsZero() && now.After(entry.expiresAt) {
				delete(c.entries, key)
			}
		}
		c.mu.Unlock()
	}
}
