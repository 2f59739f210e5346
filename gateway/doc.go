// Package gateway implements the HTTP resilience gateway: the single choke
// point through which every upstream call travels.
//
// # Composition order
//
// Execute runs each call through, in order:
//
//  1. Circuit breaker check. An open endpoint fails fast before anything
//     else is spent.
//  2. Cache lookup. A hit returns immediately and costs nothing against
//     rate or breaker budgets.
//  3. Rate limiter: the global in-flight gate, then the endpoint's token
//     bucket (blocking by default; backpressure mode surfaces rate_limited).
//  4. Retry-wrapped network call, classified per the errors package.
//  5. Outcome recording: breaker success or failure, cache store, metrics.
//
// # Ownership
//
// The Gateway owns every piece of per-endpoint mutable state: token
// buckets, breaker states, the shared response cache, and the retry budget
// table. Adapters hold only a *Gateway handle; no mutable state leaks.
//
// Endpoints are registered through Configure during startup and frozen
// before the first Execute. Breaker state changes are logged and exported
// as Prometheus metrics for external monitoring.
package gateway
