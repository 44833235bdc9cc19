/*
Package storage provides the small key-value store the client keeps its local state in.

The store holds the session credential and nothing else; message history is always
fetched from the backend.
*/
package storage

import (
	"errors"
)

// ErrNotFound is returned by Get when the key is absent.
var ErrNotFound = errors.New("storage: key not found")

// ServiceConfig holds the configuration required to open the store.
type ServiceConfig struct {
	// Dir is the directory the embedded database lives in. Empty selects the in-memory store.
	Dir string
}

// KVStore defines the public interface for the local key-value store.
type KVStore interface {
	// Get returns a copy of the value stored under key, or ErrNotFound.
	Get(key string) ([]byte, error)

	// Put stores value under key, durably.
	Put(key string, value []byte) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(key string) error

	// Close releases the underlying resources.
	Close() error
}

// NewKVStore is the factory function for KVStore.
// It opens a pebble database under cfg.Dir, or an in-memory store when Dir is empty.
func NewKVStore(cfg ServiceConfig) (KVStore, error) {
	if cfg.Dir == "" {
		return NewMemoryStore(), nil
	}
	return newPebbleStore(cfg.Dir)
}
