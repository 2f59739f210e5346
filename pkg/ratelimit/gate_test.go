package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tastyGranola/bioquery/errors"
)

func TestGate_CapsInFlight(t *testing.T) {
	g := NewGate(2)

	assert.True(t, g.TryAcquire())
	assert.True(t, g.TryAcquire())
	assert.False(t, g.TryAcquire())
	assert.Equal(t, 2, g.InFlight())

	g.Release()
	assert.True(t, g.TryAcquire())
}

func TestGate_AcquireBlocksUntilRelease(t *testing.T) {
	g := NewGate(1)
	require.NoError(t, g.Acquire(context.Background()))

	released := make(chan struct{})
	go func() {
		time.Sleep(20 * time.Millisecond)
		g.Release()
		close(released)
	}()

	start := time.Now()
	require.NoError(t, g.Acquire(context.Background()))
	<-released
	assert.GreaterOrEqual(t, time.Since(start), 15*time.Millisecond)
}

func TestGate_AcquireRespectsContext(t *testing.T) {
	g := NewGate(1)
	require.NoError(t, g.Acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := g.Acquire(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGate_TryAcquireErr(t *testing.T) {
	g := NewGate(1)
	require.NoError(t, g.TryAcquireErr())
	assert.ErrorIs(t, g.TryAcquireErr(), errors.ErrConcurrencyLimit)
}

func TestGate_ReleaseWithoutAcquire(t *testing.T) {
	g := NewGate(1)
	// Must not panic or corrupt the counter.
	g.Release()
	assert.Equal(t, 0, g.InFlight())
	assert.True(t, g.TryAcquire())
}

func TestGate_DefaultCapacity(t *testing.T) {
	g := NewGate(0)
	assert.Equal(t, 10, g.Capacity())
}
