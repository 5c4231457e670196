// Package cache memoizes the output of the cleaning pipeline. Keys are
// digests of the raw dataset plus the reference table, so a stale entry is
// impossible: any input change produces a different key. The memoization is
// an optimization only; with no cache every chart render recomputes the
// pipeline and produces identical results.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/uakhmed/temperature-dashboard-service/internal/temps"
)

// Cache stores cleaned record tables by digest key. Get returns the table if
// present and not expired; Set stores it with a TTL.
type Cache interface {
	Get(ctx context.Context, key string) ([]temps.Record, bool, error)
	Set(ctx context.Context, key string, records []temps.Record, ttl time.Duration) error
}

// InMemoryCache implements Cache with a mutex-guarded map and TTL-based
// expiration. Expired entries are removed on access. Safe for concurrent
// chart requests.
type InMemoryCache struct {
	mu   sync.Mutex
	data map[string]cacheEntry
}

type cacheEntry struct {
	records   []temps.Record
	expiresAt time.Time
}

// NewInMemoryCache creates a new in-memory cache instance.
func NewInMemoryCache() *InMemoryCache {
	return &InMemoryCache{
		data: make(map[string]cacheEntry),
	}
}

// Get retrieves the cleaned table for the key if present and not expired.
// Returns (records, true, nil) on hit, (nil, false, nil) on miss or expiry.
func (c *InMemoryCache) Get(ctx context.Context, key string) ([]temps.Record, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.data[key]
	if !ok {
		return nil, false, nil
	}
	if time.Now().After(entry.expiresAt) {
		delete(c.data, key)
		return nil, false, nil
	}
	return entry.records, true, nil
}

// Set stores the cleaned table with the specified TTL.
func (c *InMemoryCache) Set(ctx context.Context, key string, records []temps.Record, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data[key] = cacheEntry{
		records:   records,
		expiresAt: time.Now().Add(ttl),
	}
	return nil
}
