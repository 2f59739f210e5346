// Package metric provides centralized Prometheus metrics management for
// bioquery. A single MetricsRegistry owns the Prometheus registry, the core
// gateway/breaker/router metrics, and a deduplicated namespace for
// component-specific collectors registered at construction time.
package metric
