package embedding

import (
	"sync"
	"time"
)

// vectorEntry represents one cached embedding.
type vectorEntry struct {
	storedAt time.Time
	expiry   time.Time
	vector   []float32
}

// vectorCache provides thread-safe, bounded caching for embeddings.
// When the bound is exceeded the oldest entry is evicted first.
type vectorCache struct {
	entries    map[string]vectorEntry
	stopCh     chan struct{}
	ttl        time.Duration
	maxEntries int
	mu         sync.RWMutex
}

// newVectorCache creates a cache with the specified bound and TTL.
func newVectorCache(maxEntries int, ttl time.Duration) *vectorCache {
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	if ttl == 0 {
		ttl = 5 * time.Minute
	}

	cache := &vectorCache{
		entries:    make(map[string]vectorEntry),
		maxEntries: maxEntries,
		ttl:        ttl,
		stopCh:     make(chan struct{}),
	}

	go cache.cleanup()

	return cache
}

// get retrieves an embedding from the cache if it exists and hasn't expired.
func (c *vectorCache) get(key string) ([]float32, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, exists := c.entries[key]
	if !exists {
		return nil, false
	}

	if time.Now().After(entry.expiry) {
		return nil, false
	}

	return entry.vector, true
}

// set stores an embedding, evicting the oldest entry when full.
func (c *vectorCache) set(key string, vector []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxEntries {
		c.evictOldestLocked()
	}

	now := time.Now()
	c.entries[key] = vectorEntry{
		vector:   vector,
		storedAt: now,
		expiry:   now.Add(c.ttl),
	}
}

// evictOldestLocked removes the entry with the earliest store time.
// Callers must hold the write lock.
func (c *vectorCache) evictOldestLocked() {
	var oldestKey string
	var oldestAt time.Time
	for key, entry := range c.entries {
		if oldestKey == "" || entry.storedAt.Before(oldestAt) {
			oldestKey = key
			oldestAt = entry.storedAt
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}

// cleanup periodically removes expired entries.
func (c *vectorCache) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.mu.Lock()
			now := time.Now()
			for key, entry := range c.entries {
				if now.After(entry.expiry) {
					delete(c.entries, key)
				}
			}
			c.mu.Unlock()
		}
	}
}

// size returns the number of entries in the cache.
func (c *vectorCache) size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Close stops the cleanup goroutine.
func (c *vectorCache) Close() {
	close(c.stopCh)
}
