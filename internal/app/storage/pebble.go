package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cockroachdb/pebble"
)

// pebbleStore implements KVStore on an embedded pebble database.
type pebbleStore struct {
	db *pebble.DB
}

// newPebbleStore opens (creating if needed) the database at <dir>/session.
func newPebbleStore(dir string) (*pebbleStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := pebble.Open(filepath.Join(dir, "session"), &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}

	return &pebbleStore{db: db}, nil
}

// Get returns a copy of the stored value; pebble's buffer is only valid until the closer runs.
func (s *pebbleStore) Get(key string) ([]byte, error) {
	v, closer, err := s.db.Get([]byte(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (s *pebbleStore) Put(key string, value []byte) error {
	return s.db.Set([]byte(key), value, pebble.Sync)
}

func (s *pebbleStore) Delete(key string) error {
	return s.db.Delete([]byte(key), pebble.Sync)
}

func (s *pebbleStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
