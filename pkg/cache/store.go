package cache

import (
	"encoding/binary"
	"time"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/tastyGranola/bioquery/errors"
)

// PersistentStore is a disk-backed cache tier for near-static response
// classes (ontology lookups and similar 24h-TTL data) that are worth keeping
// across process restarts. LevelDB provides atomic writes and holds an
// exclusive file lock for the process lifetime, so concurrent writers from
// another process are rejected at open rather than corrupting the store.
type PersistentStore struct {
	db         *leveldb.DB
	defaultTTL time.Duration
}

// expiryLen is the size of the expiry stamp prefixed to every record.
const expiryLen = 8

// OpenPersistentStore opens (or creates) the store at path.
func OpenPersistentStore(path string, defaultTTL time.Duration) (*PersistentStore, error) {
	if defaultTTL <= 0 {
		defaultTTL = 24 * time.Hour
	}
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, errors.WrapTransient(err, "PersistentStore", "OpenPersistentStore", "leveldb open")
	}
	return &PersistentStore{db: db, defaultTTL: defaultTTL}, nil
}

// encode prefixes the payload with its expiry time in unix nanoseconds.
func encode(payload []byte, expiresAt time.Time) []byte {
	record := make([]byte, expiryLen+len(payload))
	binary.BigEndian.PutUint64(record[:expiryLen], uint64(expiresAt.UnixNano()))
	copy(record[expiryLen:], payload)
	return record
}

// decode splits a record into expiry and payload.
func decode(record []byte) (time.Time, []byte, bool) {
	if len(record) < expiryLen {
		return time.Time{}, nil, false
	}
	expiresAt := time.Unix(0, int64(binary.BigEndian.Uint64(record[:expiryLen])))
	return expiresAt, record[expiryLen:], true
}

// Get retrieves a payload by key. Expired or malformed records are deleted
// on read and reported as misses.
func (s *PersistentStore) Get(key string) ([]byte, bool) {
	record, err := s.db.Get([]byte(key), nil)
	if err != nil {
		return nil, false
	}

	expiresAt, payload, ok := decode(record)
	if !ok || time.Now().After(expiresAt) {
		_ = s.db.Delete([]byte(key), nil)
		return nil, false
	}

	// Copy out: leveldb may reuse the backing slice.
	out := make([]byte, len(payload))
	copy(out, payload)
	return out, true
}

// Put stores a payload with the given TTL (default TTL when non-positive).
func (s *PersistentStore) Put(key string, payload []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	record := encode(payload, time.Now().Add(ttl))
	if err := s.db.Put([]byte(key), record, nil); err != nil {
		return errors.WrapTransient(err, "PersistentStore", "Put", "leveldb write")
	}
	return nil
}

// Delete removes a record by key.
func (s *PersistentStore) Delete(key string) error {
	if err := s.db.Delete([]byte(key), nil); err != nil {
		return errors.WrapTransient(err, "PersistentStore", "Delete", "leveldb delete")
	}
	return nil
}

// Sweep removes all expired records and returns how many were deleted.
// Intended to be run periodically or at startup.
func (s *PersistentStore) Sweep() (int, error) {
	now := time.Now()
	removed := 0

	iter := s.db.NewIterator(&util.Range{}, nil)
	defer iter.Release()

	for iter.Next() {
		expiresAt, _, ok := decode(iter.Value())
		if ok && now.Before(expiresAt) {
			continue
		}
		key := make([]byte, len(iter.Key()))
		copy(key, iter.Key())
		if err := s.db.Delete(key, nil); err != nil {
			return removed, errors.WrapTransient(err, "PersistentStore", "Sweep", "leveldb delete")
		}
		removed++
	}
	if err := iter.Error(); err != nil {
		return removed, errors.WrapTransient(err, "PersistentStore", "Sweep", "leveldb iteration")
	}
	return removed, nil
}

// Close releases the store and its file lock.
func (s *PersistentStore) Close() error {
	if err := s.db.Close(); err != nil {
		return errors.WrapTransient(err, "PersistentStore", "Close", "leveldb close")
	}
	return nil
}
