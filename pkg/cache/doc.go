// Package cache provides the response cache behind the HTTP gateway.
//
// # Overview
//
// The primary implementation is a bounded FIFO cache: at capacity the
// oldest-inserted entry is evicted first, regardless of access recency.
// FIFO keeps eviction O(1) with no recency bookkeeping, which is the right
// trade for this workload (hit-rate sensitivity is low; the cache exists to
// absorb repeated identical queries within a TTL window, not to model a
// working set).
//
// Entries carry individual TTLs so one cache can hold both volatile data
// (15 minute class) and near-static data (24 hour class). A per-entry size
// bound refuses oversize values at Set time; callers treat that as
// pass-through and fetch fresh every time.
//
// # Key derivation
//
// Key(endpoint, params) produces canonical, sanitized cache keys: parameter
// names matching the sensitive deny-list (api_key, apikey, token, secret,
// password, and any name containing them) are excluded before hashing, so
// the key is invariant to credential values and secrets never persist.
//
// # Persistence
//
// PersistentStore is an optional LevelDB-backed tier for the near-static
// class, surviving process restarts. LevelDB supplies atomic writes and an
// exclusive process-level file lock.
//
// Statistics are always collected; Prometheus export is opt-in through
// WithMetrics.
package cache
