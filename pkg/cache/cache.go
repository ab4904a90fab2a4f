package cache

import (
	"github.com/DensusHere/mywallet-sub001/errors"
)

// Cache is a thread-safe string-keyed cache of values of type V.
type Cache[V any] interface {
	// Get retrieves a value by key. Returns the value and true if found, zero value and false otherwise.
	Get(key string) (V, bool)

	// Set stores a value with the given key. Returns true if a new entry was created, false if updated.
	Set(key string, value V) (bool, error)

	// Delete removes an entry by key. Returns true if the key existed and was deleted.
	Delete(key string) (bool, error)

	// Clear removes all entries.
	Clear()

	// Size returns the current number of entries.
	Size() int

	// Keys returns all keys, most recently used first.
	Keys() []string

	// Stats returns the cache statistics.
	Stats() *Statistics
}

// EvictCallback is called with the key and value of every entry removed by
// eviction, Delete or Clear. It runs without the cache lock held.
type EvictCallback[V any] func(key string, value V)

// GetOrCompute returns the cached value for key, computing and storing it on a miss.
// Concurrent misses may compute more than once; the last stored value wins.
func GetOrCompute[V any](c Cache[V], key string, compute func() V) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	v := compute()
	if _, err := c.Set(key, v); err != nil {
		return v, err
	}
	return v, nil
}

func validateKey(key string) error {
	if key == "" {
		return errors.WrapInvalid(errors.ErrInvalidData, "cache", "validateKey", "key cannot be empty")
	}
	return nil
}
