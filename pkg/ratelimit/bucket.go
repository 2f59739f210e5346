package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Quota defines a token bucket shape for one endpoint.
type Quota struct {
	// Capacity is the maximum number of tokens the bucket can hold.
	Capacity float64 `json:"capacity" yaml:"capacity"`

	// RefillPerSec is the steady-state refill rate in tokens per second.
	RefillPerSec float64 `json:"refill_per_sec" yaml:"refill_per_sec"`
}

// PerMinute builds a quota from a requests-per-minute figure with burst
// capacity equal to one second of traffic, minimum 1.
func PerMinute(requests float64) Quota {
	perSec := requests / 60.0
	capacity := perSec
	if capacity < 1 {
		capacity = 1
	}
	return Quota{Capacity: capacity, RefillPerSec: perSec}
}

// Valid reports whether the quota admits any traffic.
func (q Quota) Valid() bool {
	return q.Capacity >= 1 && q.RefillPerSec > 0
}

// Limiter admits or delays calls per endpoint key. Implementations never
// return an error from admission itself; at worst they delay or reject.
type Limiter interface {
	// Acquire blocks until a token is available for key or ctx is done.
	// It returns the total time spent waiting.
	Acquire(ctx context.Context, key string) (time.Duration, error)

	// Reserve attempts to take a token without blocking. On success it
	// returns (0, true). Otherwise it returns the estimated wait until the
	// next token and false.
	Reserve(ctx context.Context, key string) (time.Duration, bool)
}

// QuotaSetter is implemented by limiters that carry per-endpoint quotas.
type QuotaSetter interface {
	SetQuota(key string, quota Quota)
}

// bucket is the per-endpoint token state. Each bucket carries its own mutex
// so unrelated endpoints never serialize against each other.
type bucket struct {
	mu         sync.Mutex
	quota      Quota
	tokens     float64
	lastRefill time.Time
}

// refillLocked tops up tokens from elapsed time. Caller holds b.mu.
func (b *bucket) refillLocked(now time.Time) {
	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	b.tokens += elapsed * b.quota.RefillPerSec
	if b.tokens > b.quota.Capacity {
		b.tokens = b.quota.Capacity
	}
	b.lastRefill = now
}

// take consumes one token if available, otherwise reports the wait until the
// next token.
func (b *bucket) take(now time.Time) (time.Duration, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refillLocked(now)
	if b.tokens >= 1 {
		b.tokens--
		return 0, true
	}

	need := 1 - b.tokens
	wait := time.Duration(need / b.quota.RefillPerSec * float64(time.Second))
	return wait, false
}

// TokenBucket is the in-process Limiter implementation: one independent
// token bucket per endpoint key, created on first use.
type TokenBucket struct {
	mu           sync.RWMutex
	buckets      map[string]*bucket
	quotas       map[string]Quota
	defaultQuota Quota

	// now is injectable for deterministic tests.
	now func() time.Time
}

// NewTokenBucket creates a limiter whose unregistered endpoints fall back to
// defaultQuota.
func NewTokenBucket(defaultQuota Quota) *TokenBucket {
	if !defaultQuota.Valid() {
		defaultQuota = PerMinute(40)
	}
	return &TokenBucket{
		buckets:      make(map[string]*bucket),
		quotas:       make(map[string]Quota),
		defaultQuota: defaultQuota,
		now:          time.Now,
	}
}

// SetQuota registers the quota for an endpoint key. Intended for startup
// configuration; changing a quota after the bucket exists resets its tokens
// to the new capacity.
func (l *TokenBucket) SetQuota(key string, quota Quota) {
	if !quota.Valid() {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	l.quotas[key] = quota
	if b, ok := l.buckets[key]; ok {
		b.mu.Lock()
		b.quota = quota
		b.tokens = quota.Capacity
		b.lastRefill = l.now()
		b.mu.Unlock()
	}
}

// bucketFor returns the bucket for key, creating it full on first use.
func (l *TokenBucket) bucketFor(key string) *bucket {
	l.mu.RLock()
	b, ok := l.buckets[key]
	l.mu.RUnlock()
	if ok {
		return b
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if b, ok = l.buckets[key]; ok {
		return b
	}

	quota, ok := l.quotas[key]
	if !ok {
		quota = l.defaultQuota
	}
	b = &bucket{
		quota:      quota,
		tokens:     quota.Capacity,
		lastRefill: l.now(),
	}
	l.buckets[key] = b
	return b
}

// Reserve attempts to take a token without blocking.
func (l *TokenBucket) Reserve(_ context.Context, key string) (time.Duration, bool) {
	return l.bucketFor(key).take(l.now())
}

// Acquire blocks until a token is granted or ctx is done. The returned
// duration is the total time spent waiting.
func (l *TokenBucket) Acquire(ctx context.Context, key string) (time.Duration, error) {
	b := l.bucketFor(key)
	start := l.now()

	for {
		wait, ok := b.take(l.now())
		if ok {
			return l.now().Sub(start), nil
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return l.now().Sub(start), ctx.Err()
		case <-timer.C:
		}
	}
}

// Tokens reports the current token count for key after refill, for
// observability and tests.
func (l *TokenBucket) Tokens(key string) float64 {
	b := l.bucketFor(key)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refillLocked(l.now())
	return b.tokens
}
