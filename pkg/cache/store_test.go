package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *PersistentStore {
	t.Helper()
	store, err := OpenPersistentStore(t.TempDir(), 24*time.Hour)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestPersistentStore_PutGet(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Put("ontology:HP:0001250", []byte(`{"name":"Seizure"}`), 0))

	payload, ok := store.Get("ontology:HP:0001250")
	require.True(t, ok)
	assert.JSONEq(t, `{"name":"Seizure"}`, string(payload))
}

func TestPersistentStore_MissingKey(t *testing.T) {
	store := newTestStore(t)
	_, ok := store.Get("absent")
	assert.False(t, ok)
}

func TestPersistentStore_ExpiredRecordIsMiss(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Put("short", []byte("v"), 10*time.Millisecond))
	time.Sleep(30 * time.Millisecond)

	_, ok := store.Get("short")
	assert.False(t, ok)
}

func TestPersistentStore_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	store, err := OpenPersistentStore(dir, 24*time.Hour)
	require.NoError(t, err)
	require.NoError(t, store.Put("stable", []byte("payload"), time.Hour))
	require.NoError(t, store.Close())

	reopened, err := OpenPersistentStore(dir, 24*time.Hour)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	payload, ok := reopened.Get("stable")
	require.True(t, ok)
	assert.Equal(t, "payload", string(payload))
}

func TestPersistentStore_Sweep(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Put("keep", []byte("v"), time.Hour))
	require.NoError(t, store.Put("drop1", []byte("v"), 5*time.Millisecond))
	require.NoError(t, store.Put("drop2", []byte("v"), 5*time.Millisecond))
	time.Sleep(20 * time.Millisecond)

	removed, err := store.Sweep()
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	_, ok := store.Get("keep")
	assert.True(t, ok)
}

func TestPersistentStore_Delete(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Put("k", []byte("v"), time.Hour))
	require.NoError(t, store.Delete("k"))
	_, ok := store.Get("k")
	assert.False(t, ok)
}

func TestPersistentStore_SecondOpenIsRejected(t *testing.T) {
	dir := t.TempDir()

	store, err := OpenPersistentStore(dir, 24*time.Hour)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	// The file lock prevents a concurrent writer from the same or another
	// process corrupting the store.
	_, err = OpenPersistentStore(dir, 24*time.Hour)
	assert.Error(t, err)
}
