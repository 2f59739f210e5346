// Package bioquery is a request-resilience and query-federation layer
// for rate-limited biomedical HTTP services.
//
// One logical query fans out across independent upstream domains
// (literature, clinical variants, trial registries), every call passing
// through a shared protective gateway. The result is a single
// partial-failure-tolerant envelope: a slow or failing domain degrades
// its own entry, never the whole request.
//
// # Architecture
//
//	query string
//	     ↓ query.Parser          unified syntax → constraint tree
//	     ↓ router.BuildPlan      tree → one sub-query per domain
//	     ↓ router.Execute        one goroutine per domain, shared deadline
//	     ↓ adapters.*            sub-query → endpoint request, payload → records
//	     ↓ gateway.Execute       breaker → cache → rate limit → retry → HTTP
//	     ↓ aggregation           per-domain results, never re-ranked
//
// # Packages
//
// Resilience primitives:
//   - pkg/ratelimit: per-endpoint token buckets, global in-flight gate,
//     optional Redis-backed limiter for multi-process deployments
//   - pkg/breaker: per-endpoint circuit breaker with single-probe recovery
//   - pkg/cache: FIFO+TTL response cache, sanitized keys, LevelDB disk tier
//   - pkg/retry: exponential backoff with jitter and error classification
//
// Core:
//   - gateway: composes the primitives around every upstream call
//   - query: lexer, recursive-descent parser, typed field registry
//   - router: routing plans, fan-out execution, aggregation, enrichment
//   - adapters: articles, variants, and trials domain adapters
//
// Infrastructure:
//   - errors: classified errors (transient, permanent, rate_limited,
//     circuit_open, timeout) driving retry and breaker decisions
//   - metric: Prometheus registry and the platform metric set
//   - config: YAML configuration with environment overrides
//
// # Ordering guarantees
//
// The gateway's composition order means a cache hit costs nothing
// against rate or breaker budgets, and an open breaker never consumes a
// rate-limit token. The router assembles its envelope only after every
// domain task has settled; results within a domain preserve upstream
// order, and no ordering exists between domains.
package bioquery
