// Package ratelimit provides per-endpoint token-bucket admission control and
// a global in-flight gate.
//
// # Overview
//
// Each upstream endpoint gets an independent token bucket: capacity C, refill
// rate R tokens/second. On every admission attempt the bucket refills from
// elapsed time (tokens = min(C, tokens + elapsed*R)) and either grants a
// token immediately or reports the wait until the next one. Buckets carry
// their own locks so unrelated endpoints never serialize.
//
// A Gate additionally caps in-flight calls across all endpoints to protect
// local resources, independent of the per-endpoint quotas.
//
// Two Limiter implementations exist:
//
//   - TokenBucket: in-process, the default.
//   - RedisLimiter: shares one quota between processes via an atomic Lua
//     script; fails open when Redis is unreachable.
//
// Admission itself never errors. Blocking mode (Acquire) waits; non-blocking
// mode (Reserve) returns the wait estimate so the caller can surface
// backpressure instead.
package ratelimit
