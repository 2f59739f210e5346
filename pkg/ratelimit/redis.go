package ratelimit

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// tokenScript implements refill-and-take atomically on the Redis side so
// multiple processes sharing an endpoint quota never double-spend a token.
// Returns {granted, wait_ms}.
const tokenScript = `
local key = KEYS[1]
local now = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local refill_per_sec = tonumber(ARGV[3])

local state = redis.call('HMGET', key, 'tokens', 'ts')
local tokens = tonumber(state[1]) or capacity
local ts = tonumber(state[2]) or now
local elapsed = math.max(0, now - ts)
tokens = math.min(capacity, tokens + elapsed * refill_per_sec / 1000.0)

if tokens >= 1.0 then
  tokens = tokens - 1.0
  redis.call('HMSET', key, 'tokens', tokens, 'ts', now)
  redis.call('PEXPIRE', key, 60000)
  return {1, 0}
end

local need = 1.0 - tokens
local wait_ms = math.ceil(1000.0 * need / refill_per_sec)
redis.call('HMSET', key, 'tokens', tokens, 'ts', now)
redis.call('PEXPIRE', key, 60000)
return {0, wait_ms}
`

// RedisLimiter is a Limiter backed by a shared Redis instance so several
// bioquery processes can spend against one upstream quota. On Redis failure
// it fails open: admission is never blocked by limiter infrastructure.
type RedisLimiter struct {
	rdb          *redis.Client
	quotas       map[string]Quota
	defaultQuota Quota
	prefix       string
	logger       *slog.Logger
}

// NewRedisLimiter creates a Redis-backed limiter. Quotas are fixed at
// construction via SetQuota calls before first use.
func NewRedisLimiter(rdb *redis.Client, defaultQuota Quota, logger *slog.Logger) *RedisLimiter {
	if logger == nil {
		logger = slog.Default()
	}
	if !defaultQuota.Valid() {
		defaultQuota = PerMinute(40)
	}
	return &RedisLimiter{
		rdb:          rdb,
		quotas:       make(map[string]Quota),
		defaultQuota: defaultQuota,
		prefix:       "bioquery:rl:",
		logger:       logger,
	}
}

// SetQuota registers the quota for an endpoint key. Startup-only; not safe
// for concurrent use with Acquire.
func (l *RedisLimiter) SetQuota(key string, quota Quota) {
	if quota.Valid() {
		l.quotas[key] = quota
	}
}

func (l *RedisLimiter) quotaFor(key string) Quota {
	if q, ok := l.quotas[key]; ok {
		return q
	}
	return l.defaultQuota
}

// Reserve attempts to take a token without blocking.
func (l *RedisLimiter) Reserve(ctx context.Context, key string) (time.Duration, bool) {
	quota := l.quotaFor(key)
	now := time.Now().UnixMilli()

	res, err := l.rdb.Eval(ctx, tokenScript, []string{l.prefix + key},
		now, quota.Capacity, quota.RefillPerSec).Result()
	if err != nil {
		// Fail open: a broken limiter backend must not become an outage.
		l.logger.Warn("redis limiter unavailable, admitting call",
			"endpoint", key, "error", err)
		return 0, true
	}

	arr, ok := res.([]interface{})
	if !ok || len(arr) != 2 {
		l.logger.Warn("redis limiter returned unexpected shape, admitting call",
			"endpoint", key)
		return 0, true
	}

	granted, _ := arr[0].(int64)
	waitMs, _ := arr[1].(int64)
	if granted == 1 {
		return 0, true
	}
	return time.Duration(waitMs) * time.Millisecond, false
}

// Acquire blocks until a token is granted or ctx is done.
func (l *RedisLimiter) Acquire(ctx context.Context, key string) (time.Duration, error) {
	start := time.Now()
	for {
		wait, ok := l.Reserve(ctx, key)
		if ok {
			return time.Since(start), nil
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return time.Since(start), ctx.Err()
		case <-timer.C:
		}
	}
}
