package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tastyGranola/bioquery/errors"
)

func newTestFIFO(t *testing.T, maxEntries int, ttl time.Duration, options ...Option[string]) Cache[string] {
	t.Helper()
	c, err := NewFIFO[string](context.Background(), maxEntries, ttl, time.Minute, options...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestFIFO_SetGet(t *testing.T) {
	c := newTestFIFO(t, 10, time.Minute)

	created, err := c.Set("a", "alpha")
	require.NoError(t, err)
	assert.True(t, created)

	value, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, "alpha", value)

	// Replace reports created=false
	created, err = c.Set("a", "alpha2")
	require.NoError(t, err)
	assert.False(t, created)

	value, _ = c.Get("a")
	assert.Equal(t, "alpha2", value)
}

func TestFIFO_EvictsOldestInserted(t *testing.T) {
	c := newTestFIFO(t, 3, time.Minute)

	for i := 0; i < 3; i++ {
		_, err := c.Set(fmt.Sprintf("k%d", i), "v")
		require.NoError(t, err)
	}

	// Access k0 repeatedly; FIFO ignores recency.
	for i := 0; i < 5; i++ {
		_, ok := c.Get("k0")
		require.True(t, ok)
	}

	// Inserting a 4th entry evicts k0, the oldest-inserted.
	_, err := c.Set("k3", "v")
	require.NoError(t, err)

	assert.Equal(t, 3, c.Size())
	_, ok := c.Get("k0")
	assert.False(t, ok)
	for _, key := range []string{"k1", "k2", "k3"} {
		_, ok := c.Get(key)
		assert.True(t, ok, key)
	}
}

func TestFIFO_CapacityPlusOneLeavesCapacity(t *testing.T) {
	const capacity = 5
	c := newTestFIFO(t, capacity, time.Minute)

	for i := 0; i <= capacity; i++ {
		_, err := c.Set(fmt.Sprintf("k%d", i), "v")
		require.NoError(t, err)
	}

	assert.Equal(t, capacity, c.Size())
	_, ok := c.Get("k0")
	assert.False(t, ok, "single oldest entry must be absent")
	assert.Equal(t, int64(1), c.Stats().Evictions())
}

func TestFIFO_ReplaceDoesNotEvict(t *testing.T) {
	c := newTestFIFO(t, 2, time.Minute)

	_, _ = c.Set("a", "1")
	_, _ = c.Set("b", "2")
	_, err := c.Set("a", "1b")
	require.NoError(t, err)

	assert.Equal(t, 2, c.Size())
	_, ok := c.Get("b")
	assert.True(t, ok)
}

func TestFIFO_TTLExpiry(t *testing.T) {
	c := newTestFIFO(t, 10, 30*time.Millisecond)

	_, err := c.Set("a", "alpha")
	require.NoError(t, err)

	_, ok := c.Get("a")
	require.True(t, ok)

	time.Sleep(50 * time.Millisecond)
	_, ok = c.Get("a")
	assert.False(t, ok)
}

func TestFIFO_SetWithTTLOverride(t *testing.T) {
	c := newTestFIFO(t, 10, time.Minute)

	_, err := c.SetWithTTL("short", "v", 30*time.Millisecond)
	require.NoError(t, err)
	_, err = c.Set("long", "v")
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	_, ok := c.Get("short")
	assert.False(t, ok)
	_, ok = c.Get("long")
	assert.True(t, ok)
}

func TestFIFO_MaxEntryBytes(t *testing.T) {
	c := newTestFIFO(t, 10, time.Minute,
		WithMaxEntryBytes[string](5, func(v string) int { return len(v) }))

	_, err := c.Set("small", "abc")
	require.NoError(t, err)

	_, err = c.Set("big", "abcdefgh")
	assert.ErrorIs(t, err, errors.ErrEntryTooLarge)

	_, ok := c.Get("big")
	assert.False(t, ok)
	assert.Equal(t, 1, c.Size())
}

func TestFIFO_EvictionCallback(t *testing.T) {
	var evicted []string
	c := newTestFIFO(t, 2, time.Minute,
		WithEvictionCallback[string](func(key string, _ string) {
			evicted = append(evicted, key)
		}))

	_, _ = c.Set("a", "1")
	_, _ = c.Set("b", "2")
	_, _ = c.Set("c", "3")

	assert.Equal(t, []string{"a"}, evicted)
}

func TestFIFO_DeleteAndClear(t *testing.T) {
	c := newTestFIFO(t, 10, time.Minute)

	_, _ = c.Set("a", "1")
	_, _ = c.Set("b", "2")

	existed, err := c.Delete("a")
	require.NoError(t, err)
	assert.True(t, existed)

	existed, err = c.Delete("a")
	require.NoError(t, err)
	assert.False(t, existed)

	require.NoError(t, c.Clear())
	assert.Zero(t, c.Size())
}

func TestFIFO_KeysInInsertionOrder(t *testing.T) {
	c := newTestFIFO(t, 10, time.Minute)

	for _, key := range []string{"first", "second", "third"} {
		_, err := c.Set(key, "v")
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"first", "second", "third"}, c.Keys())
}

func TestFIFO_EmptyKeyRejected(t *testing.T) {
	c := newTestFIFO(t, 10, time.Minute)
	_, err := c.Set("", "v")
	assert.Error(t, err)
}

func TestFIFO_InvalidConfig(t *testing.T) {
	_, err := NewFIFO[string](context.Background(), 0, time.Minute, time.Minute)
	assert.Error(t, err)
	_, err = NewFIFO[string](context.Background(), 10, 0, time.Minute)
	assert.Error(t, err)
}

func TestFIFO_Stats(t *testing.T) {
	c := newTestFIFO(t, 10, time.Minute)

	_, _ = c.Set("a", "1")
	_, _ = c.Get("a")
	_, _ = c.Get("missing")

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Hits())
	assert.Equal(t, int64(1), stats.Misses())
	assert.Equal(t, int64(1), stats.Sets())
	assert.InDelta(t, 0.5, stats.HitRate(), 1e-9)
}

func TestNoop(t *testing.T) {
	c := Noop[string]()
	created, err := c.Set("a", "1")
	require.NoError(t, err)
	assert.False(t, created)
	_, ok := c.Get("a")
	assert.False(t, ok)
	assert.Nil(t, c.Stats())
}
