// Package storage provides the scoped, synchronous key-value store the
// journal persists into.
package storage

import "errors"

// ErrEmptyKey is returned for operations on an empty key.
var ErrEmptyKey = errors.New("storage: empty key")

// KV is a scoped key-value store. All calls are synchronous.
type KV interface {
	// Get returns the value stored under key. ok is false when the key is absent.
	Get(key string) (value string, ok bool, err error)
	// Set stores value under key, replacing any previous value.
	Set(key, value string) error
	// Remove deletes key. Removing an absent key is not an error.
	Remove(key string) error
}
