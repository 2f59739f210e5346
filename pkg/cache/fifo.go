package cache

import (
	"container/list"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tastyGranola/bioquery/errors"
)

// fifoEntry represents an entry in the FIFO cache.
type fifoEntry[V any] struct {
	key       string
	value     V
	expiresAt time.Time
}

func (e *fifoEntry[V]) expired(now time.Time) bool {
	return now.After(e.expiresAt)
}

// fifoCache is a thread-safe bounded cache with FIFO eviction and per-entry
// TTL. When at capacity the oldest-inserted entry is evicted regardless of
// access recency; O(1) eviction with no recency bookkeeping.
type fifoCache[V any] struct {
	mu         sync.RWMutex
	maxEntries int
	defaultTTL time.Duration
	items      map[string]*list.Element // key -> list element
	order      *list.List               // insertion order, oldest at back
	stats      *Statistics
	metrics    *cacheMetrics
	evictFn    EvictCallback[V]
	sizeFn     func(V) int // optional entry size bound
	maxBytes   int

	// Background cleanup coordination
	shutdown chan struct{}
	done     chan struct{}
}

// NewFIFO creates a bounded FIFO cache. Entries expire after defaultTTL
// unless SetWithTTL overrides it; expired entries are swept every
// cleanupInterval.
func NewFIFO[V any](
	ctx context.Context, maxEntries int, defaultTTL, cleanupInterval time.Duration,
	options ...Option[V],
) (Cache[V], error) {
	if maxEntries <= 0 {
		return nil, errors.WrapPermanent(errors.ErrInvalidConfig, "cache", "NewFIFO",
			fmt.Sprintf("maxEntries must be positive, got %d", maxEntries))
	}
	if defaultTTL <= 0 {
		return nil, errors.WrapPermanent(errors.ErrInvalidConfig, "cache", "NewFIFO",
			fmt.Sprintf("defaultTTL must be positive, got %v", defaultTTL))
	}
	if cleanupInterval <= 0 {
		cleanupInterval = time.Minute
	}

	opts := applyOptions(options...)

	var metrics *cacheMetrics
	if opts.metricsReg != nil && opts.metricsPrefix != "" {
		var err error
		metrics, err = newCacheMetrics(opts.metricsReg, opts.metricsPrefix)
		if err != nil {
			return nil, errors.WrapPermanent(err, "cache", "NewFIFO", "metrics registration")
		}
	}

	c := &fifoCache[V]{
		maxEntries: maxEntries,
		defaultTTL: defaultTTL,
		items:      make(map[string]*list.Element),
		order:      list.New(),
		stats:      NewStatistics(),
		metrics:    metrics,
		evictFn:    opts.evictCallback,
		sizeFn:     opts.sizeFn,
		maxBytes:   opts.maxEntryBytes,
		shutdown:   make(chan struct{}),
		done:       make(chan struct{}),
	}

	go c.cleanup(ctx, cleanupInterval)

	return c, nil
}

// Get retrieves a value by key, checking for expiration.
func (c *fifoCache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	element, exists := c.items[key]
	c.mu.RUnlock()

	if !exists {
		var zero V
		c.stats.Miss()
		if c.metrics != nil {
			c.metrics.recordMiss()
		}
		return zero, false
	}

	entry := element.Value.(*fifoEntry[V])
	if entry.expired(time.Now()) {
		var removed *fifoEntry[V]
		c.mu.Lock()
		// Re-check under the write lock
		if current, still := c.items[key]; still && current.Value.(*fifoEntry[V]).expired(time.Now()) {
			removed = current.Value.(*fifoEntry[V])
			c.removeLocked(current)
		}
		size := len(c.items)
		c.mu.Unlock()

		if removed != nil {
			if c.evictFn != nil {
				c.evictFn(removed.key, removed.value)
			}
			c.stats.Eviction()
			c.stats.UpdateSize(int64(size))
			if c.metrics != nil {
				c.metrics.recordEviction()
				c.metrics.updateSize(size)
			}
		}

		var zero V
		c.stats.Miss()
		if c.metrics != nil {
			c.metrics.recordMiss()
		}
		return zero, false
	}

	c.stats.Hit()
	if c.metrics != nil {
		c.metrics.recordHit()
	}
	return entry.value, true
}

// Set stores a value with the cache's default TTL.
func (c *fifoCache[V]) Set(key string, value V) (bool, error) {
	return c.SetWithTTL(key, value, c.defaultTTL)
}

// SetWithTTL stores a value with an explicit TTL. A value exceeding the
// entry size bound is refused so callers fall through to a fresh fetch.
func (c *fifoCache[V]) SetWithTTL(key string, value V, ttl time.Duration) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	if c.sizeFn != nil && c.maxBytes > 0 && c.sizeFn(value) > c.maxBytes {
		return false, errors.ErrEntryTooLarge
	}

	var evicted []*fifoEntry[V]

	c.mu.Lock()
	existing, exists := c.items[key]
	if exists {
		// Replace in place; insertion position is preserved.
		entry := existing.Value.(*fifoEntry[V])
		entry.value = value
		entry.expiresAt = time.Now().Add(ttl)
	} else {
		// Evict oldest-inserted entries until there is room.
		for len(c.items) >= c.maxEntries {
			oldest := c.order.Back()
			if oldest == nil {
				break
			}
			evicted = append(evicted, oldest.Value.(*fifoEntry[V]))
			c.removeLocked(oldest)
		}

		element := c.order.PushFront(&fifoEntry[V]{
			key:       key,
			value:     value,
			expiresAt: time.Now().Add(ttl),
		})
		c.items[key] = element
	}
	size := len(c.items)
	c.mu.Unlock()

	// Callbacks run outside the lock.
	if c.evictFn != nil {
		for _, entry := range evicted {
			c.evictFn(entry.key, entry.value)
		}
	}
	for range evicted {
		c.stats.Eviction()
		if c.metrics != nil {
			c.metrics.recordEviction()
		}
	}

	c.stats.Set()
	c.stats.UpdateSize(int64(size))
	if c.metrics != nil {
		c.metrics.recordSet()
		c.metrics.updateSize(size)
	}

	return !exists, nil
}

// removeLocked unlinks an element from the map and order list. Caller holds
// c.mu and is responsible for stats and eviction callbacks.
func (c *fifoCache[V]) removeLocked(element *list.Element) {
	entry := element.Value.(*fifoEntry[V])
	delete(c.items, entry.key)
	c.order.Remove(element)
}

// Delete removes an entry by key.
func (c *fifoCache[V]) Delete(key string) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}

	c.mu.Lock()
	element, exists := c.items[key]
	var value V
	if exists {
		value = element.Value.(*fifoEntry[V]).value
		delete(c.items, key)
		c.order.Remove(element)
	}
	size := len(c.items)
	c.mu.Unlock()

	if exists {
		if c.evictFn != nil {
			c.evictFn(key, value)
		}
		c.stats.Delete()
		c.stats.UpdateSize(int64(size))
		if c.metrics != nil {
			c.metrics.recordDelete()
			c.metrics.updateSize(size)
		}
	}

	return exists, nil
}

// Clear removes all entries from the cache.
func (c *fifoCache[V]) Clear() error {
	c.mu.Lock()
	var entries []*fifoEntry[V]
	if c.evictFn != nil {
		for _, element := range c.items {
			entries = append(entries, element.Value.(*fifoEntry[V]))
		}
	}
	c.items = make(map[string]*list.Element)
	c.order.Init()
	c.mu.Unlock()

	if c.evictFn != nil {
		for _, entry := range entries {
			c.evictFn(entry.key, entry.value)
		}
	}

	c.stats.UpdateSize(0)
	if c.metrics != nil {
		c.metrics.updateSize(0)
	}
	return nil
}

// Size returns the current number of entries in the cache.
func (c *fifoCache[V]) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Keys returns all unexpired keys, oldest-inserted first.
func (c *fifoCache[V]) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	keys := make([]string, 0, len(c.items))
	now := time.Now()
	for element := c.order.Back(); element != nil; element = element.Prev() {
		entry := element.Value.(*fifoEntry[V])
		if !entry.expired(now) {
			keys = append(keys, entry.key)
		}
	}
	return keys
}

// Stats returns cache statistics.
func (c *fifoCache[V]) Stats() *Statistics {
	return c.stats
}

// Close shuts down the cache and stops the background cleanup goroutine.
func (c *fifoCache[V]) Close() error {
	select {
	case <-c.shutdown:
	default:
		close(c.shutdown)
	}

	select {
	case <-c.done:
		return nil
	case <-time.After(5 * time.Second):
		return fmt.Errorf("timeout waiting for cleanup goroutine to finish")
	}
}

// cleanup runs in a background goroutine and periodically removes expired
// entries.
func (c *fifoCache[V]) cleanup(ctx context.Context, interval time.Duration) {
	defer close(c.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.shutdown:
			return
		case <-ticker.C:
			c.removeExpired()
		}
	}
}

// removeExpired removes all expired entries from the cache.
func (c *fifoCache[V]) removeExpired() {
	now := time.Now()
	var expired []*fifoEntry[V]

	c.mu.Lock()
	for key, element := range c.items {
		entry := element.Value.(*fifoEntry[V])
		if entry.expired(now) {
			expired = append(expired, entry)
			delete(c.items, key)
			c.order.Remove(element)
		}
	}
	size := len(c.items)
	c.mu.Unlock()

	if c.evictFn != nil {
		for _, entry := range expired {
			c.evictFn(entry.key, entry.value)
		}
	}

	if len(expired) > 0 {
		for range expired {
			c.stats.Eviction()
			if c.metrics != nil {
				c.metrics.recordEviction()
			}
		}
		c.stats.UpdateSize(int64(size))
		if c.metrics != nil {
			c.metrics.updateSize(size)
		}
	}
}
