// Package store provides the keyed byte storage backing the intent
// ledger's records ("boxes"). Backends are interchangeable: an in-memory
// map for tests and ephemeral runs, and a SQLite file for durable state.
package store

import "errors"

// ErrNotFound is returned by Get for unknown keys.
var ErrNotFound = errors.New("store: key not found")

// Store is a flat keyed byte store. Implementations must be safe for
// concurrent readers; writers are already serialized by the chain runtime.
type Store interface {
	// Get returns the value for key, or ErrNotFound.
	Get(key []byte) ([]byte, error)
	// Put stores value under key, replacing any previous value.
	Put(key, value []byte) error
	// Delete removes key. Deleting an absent key is not an error.
	Delete(key []byte) error
	// Keys returns all stored keys in unspecified order.
	Keys() ([][]byte, error)
	// Close releases backend resources.
	Close() error
}
