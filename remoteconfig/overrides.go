package remoteconfig

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/DensusHere/mywallet-sub001/errors"
)

// OverrideStore persists local overrides across restarts. Transaction runs fn
// on the stored map and saves the result atomically.
type OverrideStore interface {
	Load(ctx context.Context) (map[string]any, error)
	Transaction(ctx context.Context, fn func(current map[string]any) error) error
}

// MemoryOverrideStore keeps overrides for the life of the process.
type MemoryOverrideStore struct {
	mu     sync.Mutex
	values map[string]any
}

// NewMemoryOverrideStore returns an empty store.
func NewMemoryOverrideStore() *MemoryOverrideStore {
	return &MemoryOverrideStore{values: map[string]any{}}
}

func (m *MemoryOverrideStore) Load(_ context.Context) (map[string]any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyValues(m.values), nil
}

// Transaction applies fn to a copy; the copy replaces the stored map only when
// fn succeeds.
func (m *MemoryOverrideStore) Transaction(_ context.Context, fn func(map[string]any) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	next := copyValues(m.values)
	if next == nil {
		next = map[string]any{}
	}
	if err := fn(next); err != nil {
		return err
	}
	m.values = next
	return nil
}

// DefaultOverridesKey is the KV key of the override document.
const DefaultOverridesKey = "overrides"

// KVOverrideStore keeps overrides as a JSON document in a JetStream KV bucket.
// Transactions are compare-and-swap updates retried on conflict.
type KVOverrideStore struct {
	store DocumentStore
	key   string
}

// NewKVOverrideStore stores overrides under key; an empty key selects
// DefaultOverridesKey. Use a per-device key to keep devices apart.
func NewKVOverrideStore(store DocumentStore, key string) *KVOverrideStore {
	if key == "" {
		key = DefaultOverridesKey
	}
	return &KVOverrideStore{store: store, key: key}
}

func (k *KVOverrideStore) Load(ctx context.Context) (map[string]any, error) {
	entry, err := k.store.Get(ctx, k.key)
	if err != nil {
		if errors.Is(err, errors.ErrKeyNotFound) {
			return map[string]any{}, nil
		}
		return nil, errors.WrapTransient(err, "KVOverrideStore", "Load", "get "+k.key)
	}
	values := map[string]any{}
	if len(entry.Value) > 0 {
		if err := json.Unmarshal(entry.Value, &values); err != nil {
			return nil, errors.WrapInvalid(err, "KVOverrideStore", "Load", "decode "+k.key)
		}
	}
	return values, nil
}

func (k *KVOverrideStore) Transaction(ctx context.Context, fn func(map[string]any) error) error {
	if err := k.store.UpdateJSON(ctx, k.key, fn); err != nil {
		return errors.Wrap(err, "KVOverrideStore", "Transaction", "update "+k.key)
	}
	return nil
}
