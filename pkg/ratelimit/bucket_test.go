package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock drives the limiter deterministically.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1700000000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestLimiter(quota Quota) (*TokenBucket, *fakeClock) {
	clock := newFakeClock()
	l := NewTokenBucket(quota)
	l.now = clock.Now
	return l, clock
}

func TestReserve_GrantsUpToCapacity(t *testing.T) {
	l, _ := newTestLimiter(Quota{Capacity: 3, RefillPerSec: 1})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		wait, ok := l.Reserve(ctx, "ep")
		require.True(t, ok, "token %d", i)
		assert.Zero(t, wait)
	}

	wait, ok := l.Reserve(ctx, "ep")
	assert.False(t, ok)
	assert.Equal(t, time.Second, wait)
}

func TestReserve_RefillsOverTime(t *testing.T) {
	l, clock := newTestLimiter(Quota{Capacity: 2, RefillPerSec: 2})
	ctx := context.Background()

	_, ok := l.Reserve(ctx, "ep")
	require.True(t, ok)
	_, ok = l.Reserve(ctx, "ep")
	require.True(t, ok)
	_, ok = l.Reserve(ctx, "ep")
	require.False(t, ok)

	// 500ms at 2 tokens/sec puts one token back
	clock.Advance(500 * time.Millisecond)
	_, ok = l.Reserve(ctx, "ep")
	assert.True(t, ok)
	_, ok = l.Reserve(ctx, "ep")
	assert.False(t, ok)
}

func TestTokens_NeverExceedCapacity(t *testing.T) {
	l, clock := newTestLimiter(Quota{Capacity: 5, RefillPerSec: 10})

	// Long idle period must not accumulate beyond capacity.
	clock.Advance(time.Hour)
	assert.InDelta(t, 5.0, l.Tokens("ep"), 1e-9)
}

func TestTokens_InvariantUnderConcurrency(t *testing.T) {
	// Real clock here: concurrent Reserve calls must keep 0 <= tokens <= C.
	l := NewTokenBucket(Quota{Capacity: 10, RefillPerSec: 1000})
	ctx := context.Background()

	var granted int64
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := l.Reserve(ctx, "ep"); ok {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	tokens := l.Tokens("ep")
	assert.GreaterOrEqual(t, tokens, 0.0)
	assert.LessOrEqual(t, tokens, 10.0)
	// Grants cannot exceed capacity plus refill during the test window;
	// allow a generous refill allowance for slow CI machines.
	assert.LessOrEqual(t, granted, int64(50))
	assert.GreaterOrEqual(t, granted, int64(10))
}

func TestEndpointsAreIndependent(t *testing.T) {
	l, _ := newTestLimiter(Quota{Capacity: 1, RefillPerSec: 1})
	ctx := context.Background()

	_, ok := l.Reserve(ctx, "a")
	require.True(t, ok)
	_, ok = l.Reserve(ctx, "a")
	require.False(t, ok)

	// Draining endpoint a leaves endpoint b untouched.
	_, ok = l.Reserve(ctx, "b")
	assert.True(t, ok)
}

func TestSetQuota_OverridesDefault(t *testing.T) {
	l, _ := newTestLimiter(Quota{Capacity: 1, RefillPerSec: 1})
	l.SetQuota("authed", Quota{Capacity: 4, RefillPerSec: 4})
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, ok := l.Reserve(ctx, "authed")
		require.True(t, ok, "token %d", i)
	}
	_, ok := l.Reserve(ctx, "authed")
	assert.False(t, ok)
}

func TestAcquire_BlocksUntilToken(t *testing.T) {
	l := NewTokenBucket(Quota{Capacity: 1, RefillPerSec: 20}) // 50ms per token
	ctx := context.Background()

	_, err := l.Acquire(ctx, "ep")
	require.NoError(t, err)

	start := time.Now()
	waited, err := l.Acquire(ctx, "ep")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
	assert.Greater(t, waited, time.Duration(0))
}

func TestAcquire_CancelledWhileWaiting(t *testing.T) {
	l := NewTokenBucket(Quota{Capacity: 1, RefillPerSec: 0.001})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := l.Acquire(ctx, "ep")
	require.NoError(t, err)

	_, err = l.Acquire(ctx, "ep")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPerMinute(t *testing.T) {
	q := PerMinute(240)
	assert.InDelta(t, 4.0, q.RefillPerSec, 1e-9)
	assert.InDelta(t, 4.0, q.Capacity, 1e-9)

	// Low-rate quotas still admit a full request
	q = PerMinute(40)
	assert.GreaterOrEqual(t, q.Capacity, 1.0)
}
