// Package cache provides the bounded, thread-safe response cache used by the
// HTTP gateway: FIFO eviction, per-entry TTL, entry size bounds, sanitized
// key derivation, and an optional LevelDB-backed persistent tier.
package cache

import (
	"time"

	"github.com/tastyGranola/bioquery/errors"
)

// Cache is the interface all cache implementations satisfy. The cache is
// parameterized by value type V for type safety.
type Cache[V any] interface {
	// Get retrieves a value by key. Returns the value and true if found and
	// unexpired, zero value and false otherwise.
	Get(key string) (V, bool)

	// Set stores a value with the cache's default TTL. Returns true if a new
	// entry was created, false if an existing one was replaced.
	Set(key string, value V) (bool, error)

	// SetWithTTL stores a value with an explicit TTL, overriding the
	// default. A non-positive ttl falls back to the default.
	SetWithTTL(key string, value V, ttl time.Duration) (bool, error)

	// Delete removes an entry by key. Returns true if the key existed.
	Delete(key string) (bool, error)

	// Clear removes all entries from the cache.
	Clear() error

	// Size returns the current number of entries in the cache.
	Size() int

	// Keys returns all unexpired keys currently in the cache.
	Keys() []string

	// Stats returns cache statistics.
	Stats() *Statistics

	// Close shuts down the cache and releases any resources.
	Close() error
}

// EvictCallback is called when an entry is evicted from the cache.
type EvictCallback[V any] func(key string, value V)

// validateKey validates a cache key for basic requirements.
func validateKey(key string) error {
	if key == "" {
		return errors.WrapPermanent(errors.ErrInvalidConfig, "cache", "validateKey",
			"key cannot be empty")
	}
	return nil
}

// Noop returns a cache that does nothing (always misses). Used when caching
// is disabled via configuration.
func Noop[V any]() Cache[V] {
	return &noopCache[V]{}
}

type noopCache[V any] struct{}

func (c *noopCache[V]) Get(_ string) (V, bool) {
	var zero V
	return zero, false
}

func (c *noopCache[V]) Set(_ string, _ V) (bool, error) { return false, nil }

func (c *noopCache[V]) SetWithTTL(_ string, _ V, _ time.Duration) (bool, error) {
	return false, nil
}

func (c *noopCache[V]) Delete(_ string) (bool, error) { return false, nil }
func (c *noopCache[V]) Clear() error                  { return nil }
func (c *noopCache[V]) Size() int                     { return 0 }
func (c *noopCache[V]) Keys() []string                { return nil }
func (c *noopCache[V]) Stats() *Statistics            { return nil }
func (c *noopCache[V]) Close() error                  { return nil }
