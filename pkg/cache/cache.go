// Package cache provides the time-windowed, single-flight caches that sit
// between the scan orchestrator and the external data sources, plus the
// per-user result cache that backs the dashboard.
package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Producer fetches a fresh value for a key. Producers are expected to hit
// the network; errors are handled here, not by callers.
type Producer[K comparable, V any] func(ctx context.Context, key K) (V, error)

// Cache memoizes a producer per key for a refresh period. Refreshes of the
// same key are serialized behind a per-slot lock, so concurrent callers
// trigger exactly one underlying fetch; distinct keys never block each
// other. A failed refresh serves the previous value if one exists and the
// zero value otherwise, so a broken source degrades rather than propagating
// an error.
type Cache[K comparable, V any] struct {
	produce Producer[K, V]
	slots   map[K]*slot[V]
	name    string
	period  time.Duration
	mu      sync.Mutex
}

type slot[V any] struct {
	value   V
	fetched time.Time
	filled  bool
	mu      sync.Mutex
}

// New creates a cache that refreshes each key at most once per period.
func New[K comparable, V any](name string, period time.Duration, produce Producer[K, V]) *Cache[K, V] {
	return &Cache[K, V]{
		name:    name,
		period:  period,
		produce: produce,
		slots:   make(map[K]*slot[V]),
	}
}

// Get returns the cached value for key, refreshing it first when it is
// missing or older than the refresh period. Get never fails: refresh errors
// are logged and degraded to the last known (or empty) value.
func (c *Cache[K, V]) Get(ctx context.Context, key K) V {
	c.mu.Lock()
	s, ok := c.slots[key]
	if !ok {
		s = &slot[V]{}
		c.slots[key] = s
	}
	c.mu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.filled && time.Since(s.fetched) <= c.period {
		return s.value
	}

	value, err := c.produce(ctx, key)
	if err != nil {
		if s.filled {
			slog.Warn("Source refresh failed, serving stale value", "cache", c.name, "key", key, "age", time.Since(s.fetched), "error", err)
		} else {
			slog.Warn("Source fetch failed, serving empty value", "cache", c.name, "key", key, "error", err)
			var empty V
			s.value = empty
		}
		// Back off for a full period either way so a broken source is not
		// hammered on every read.
		s.filled = true
		s.fetched = time.Now()
		return s.value
	}

	s.value = value
	s.filled = true
	s.fetched = time.Now()
	return s.value
}

// Single is a cache with exactly one slot, for global feeds that take no
// parameters.
type Single[V any] struct {
	c *Cache[struct{}, V]
}

// NewSingle creates a single-slot cache around a no-argument producer.
func NewSingle[V any](name string, period time.Duration, produce func(ctx context.Context) (V, error)) *Single[V] {
	return &Single[V]{
		c: New(name, period, func(ctx context.Context, _ struct{}) (V, error) {
			return produce(ctx)
		}),
	}
}

// Get returns the cached value, refreshing it when expired.
func (s *Single[V]) Get(ctx context.Context) V {
	return s.c.Get(ctx, struct{}{})
}
