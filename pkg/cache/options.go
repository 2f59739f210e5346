package cache

import (
	"github.com/tastyGranola/bioquery/metric"
)

// Option configures cache behavior using the functional options pattern.
type Option[V any] func(*cacheOptions[V])

// cacheOptions holds internal configuration for cache instances. Stats are
// always collected; Prometheus export is opt-in via WithMetrics.
type cacheOptions[V any] struct {
	metricsReg    *metric.MetricsRegistry
	metricsPrefix string
	evictCallback EvictCallback[V]

	// sizeFn + maxEntryBytes bound individual entry size; oversize values
	// are refused at Set time.
	sizeFn        func(V) int
	maxEntryBytes int
}

// WithMetrics enables Prometheus metrics export for cache statistics.
// Ignored when registry is nil or prefix is empty.
func WithMetrics[V any](registry *metric.MetricsRegistry, prefix string) Option[V] {
	return func(opts *cacheOptions[V]) {
		if registry != nil && prefix != "" {
			opts.metricsReg = registry
			opts.metricsPrefix = prefix
		}
	}
}

// WithEvictionCallback sets a callback invoked with the key and value of
// every evicted entry.
func WithEvictionCallback[V any](callback EvictCallback[V]) Option[V] {
	return func(opts *cacheOptions[V]) {
		opts.evictCallback = callback
	}
}

// WithMaxEntryBytes bounds the size of a single entry as measured by sizeFn.
// A value exceeding the bound is never cached; Set returns ErrEntryTooLarge
// and the caller fetches fresh every time.
func WithMaxEntryBytes[V any](maxBytes int, sizeFn func(V) int) Option[V] {
	return func(opts *cacheOptions[V]) {
		if maxBytes > 0 && sizeFn != nil {
			opts.maxEntryBytes = maxBytes
			opts.sizeFn = sizeFn
		}
	}
}

// applyOptions applies functional options to create final cache configuration.
func applyOptions[V any](options ...Option[V]) *cacheOptions[V] {
	opts := &cacheOptions[V]{}
	for _, opt := range options {
		if opt != nil {
			opt(opts)
		}
	}
	return opts
}
