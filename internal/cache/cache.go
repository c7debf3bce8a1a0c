// Package cache memoizes computation results by input fingerprint
package cache

import (
	"sync"

	"github.com/mrcode/promille/internal/models"
)

// DefaultLimit is the number of entries kept when no limit is configured
const DefaultLimit = 50

// Observer receives cache events, e.g. for metrics
type Observer interface {
	CacheHit()
	CacheMiss()
	CacheEvicted()
	CacheSize(n int)
}

// Stats describes the cache occupancy
type Stats struct {
	Size  int `json:"size"`
	Limit int `json:"limit"`
}

// Cache is a bounded result cache evicting in insertion order.
// A hit does not refresh an entry's position.
type Cache struct {
	mu       sync.Mutex
	limit    int
	entries  map[string]models.ResultMap
	order    []string // oldest first
	observer Observer
}

// New creates a cache holding at most limit entries
func New(limit int) *Cache {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Cache{
		limit:   limit,
		entries: make(map[string]models.ResultMap, limit),
	}
}

// SetObserver registers an observer for cache events
func (c *Cache) SetObserver(o Observer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observer = o
}

// Get returns the cached results for key
func (c *Cache) Get(key string) (models.ResultMap, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	res, ok := c.entries[key]
	if c.observer != nil {
		if ok {
			c.observer.CacheHit()
		} else {
			c.observer.CacheMiss()
		}
	}
	return res, ok
}

// Put stores results under key, evicting the oldest entries when full.
// Existing entries are never replaced.
func (c *Cache) Put(key string, results models.ResultMap) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; ok {
		return
	}

	for len(c.order) >= c.limit {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
		if c.observer != nil {
			c.observer.CacheEvicted()
		}
	}

	c.entries[key] = results
	c.order = append(c.order, key)

	if c.observer != nil {
		c.observer.CacheSize(len(c.order))
	}
}

// Clear removes all entries
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]models.ResultMap, c.limit)
	c.order = nil

	if c.observer != nil {
		c.observer.CacheSize(0)
	}
}

// Stats returns the current size and limit
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{Size: len(c.order), Limit: c.limit}
}

// keys returns the cached keys, oldest first
func (c *Cache) keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.order...)
}
