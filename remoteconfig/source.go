package remoteconfig

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/DensusHere/mywallet-sub001/errors"
	"github.com/DensusHere/mywallet-sub001/natsclient"
)

// Source is a remote key/value service with fetch-then-activate semantics:
// Fetch downloads a configuration without applying it, Activate makes the
// last fetched configuration current and returns it.
type Source interface {
	Fetch(ctx context.Context) error
	Activate(ctx context.Context) (map[string]any, error)
}

// DocumentStore is the slice of natsclient.KVStore the KV-backed source and
// override store need.
type DocumentStore interface {
	Get(ctx context.Context, key string) (*natsclient.KVEntry, error)
	Put(ctx context.Context, key string, value []byte) (uint64, error)
	UpdateJSON(ctx context.Context, key string, fn func(current map[string]any) error) error
}

// Notifier is implemented by sources that can report that a newer
// configuration has been published. The overlay refreshes on every value
// received; a nil channel means the source cannot notify.
type Notifier interface {
	Changes(ctx context.Context) (<-chan uint64, error)
}

// RevisionWatcher is the optional watch side of a DocumentStore;
// natsclient.KVStore implements it.
type RevisionWatcher interface {
	WatchRevisions(ctx context.Context, key string) (<-chan uint64, error)
}

// StaticSource serves an in-process configuration.
type StaticSource struct {
	mu      sync.Mutex
	values  map[string]any
	fetched map[string]any
}

// NewStaticSource returns a source serving values; nil serves an empty
// configuration.
func NewStaticSource(values map[string]any) *StaticSource {
	return &StaticSource{values: copyValues(values)}
}

// Set replaces the configuration returned by the next fetch.
func (s *StaticSource) Set(values map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = copyValues(values)
}

func (s *StaticSource) Fetch(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetched = copyValues(s.values)
	if s.fetched == nil {
		s.fetched = map[string]any{}
	}
	return nil
}

func (s *StaticSource) Activate(ctx context.Context) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fetched == nil {
		return nil, errors.WrapInvalid(errors.ErrNotSynchronized, "StaticSource", "Activate", "activate before fetch")
	}
	return copyValues(s.fetched), nil
}

// DefaultDocumentKey is the KV key holding the published configuration.
const DefaultDocumentKey = "remote_config"

// KVSource reads the configuration as one JSON document from a JetStream KV
// bucket. A missing document is an empty configuration.
type KVSource struct {
	store DocumentStore
	key   string

	mu       sync.Mutex
	fetched  map[string]any
	revision uint64
}

// NewKVSource reads the document stored under key; an empty key selects
// DefaultDocumentKey.
func NewKVSource(store DocumentStore, key string) *KVSource {
	if key == "" {
		key = DefaultDocumentKey
	}
	return &KVSource{store: store, key: key}
}

func (s *KVSource) Fetch(ctx context.Context) error {
	entry, err := s.store.Get(ctx, s.key)
	values := map[string]any{}
	var revision uint64
	switch {
	case err == nil:
		if err := json.Unmarshal(entry.Value, &values); err != nil {
			return errors.WrapInvalid(err, "KVSource", "Fetch", "decode "+s.key)
		}
		if values == nil {
			values = map[string]any{}
		}
		revision = entry.Revision
	case errors.Is(err, errors.ErrKeyNotFound):
	default:
		return errors.WrapTransient(err, "KVSource", "Fetch", "get "+s.key)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetched = values
	s.revision = revision
	return nil
}

func (s *KVSource) Activate(_ context.Context) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fetched == nil {
		return nil, errors.WrapInvalid(errors.ErrNotSynchronized, "KVSource", "Activate", "activate before fetch")
	}
	return copyValues(s.fetched), nil
}

// Revision returns the KV revision of the last fetched document, 0 when absent.
func (s *KVSource) Revision() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revision
}

// Changes reports revisions of the document newer than the last fetch. It
// returns a nil channel when the store cannot be watched.
func (s *KVSource) Changes(ctx context.Context) (<-chan uint64, error) {
	w, ok := s.store.(RevisionWatcher)
	if !ok {
		return nil, nil
	}
	revisions, err := w.WatchRevisions(ctx, s.key)
	if err != nil {
		return nil, errors.WrapTransient(err, "KVSource", "Changes", "watch "+s.key)
	}

	out := make(chan uint64, 1)
	go func() {
		defer close(out)
		for {
			var rev uint64
			select {
			case <-ctx.Done():
				return
			case r, ok := <-revisions:
				if !ok {
					return
				}
				rev = r
			}
			if rev <= s.Revision() {
				continue
			}
			select {
			case out <- rev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Publish writes values as the configuration document; nil publishes an
// empty configuration.
func (s *KVSource) Publish(ctx context.Context, values map[string]any) error {
	if values == nil {
		values = map[string]any{}
	}
	data, err := json.Marshal(values)
	if err != nil {
		return errors.WrapInvalid(err, "KVSource", "Publish", "encode document")
	}
	if _, err := s.store.Put(ctx, s.key, data); err != nil {
		return errors.WrapTransient(err, "KVSource", "Publish", "put "+s.key)
	}
	return nil
}

func copyValues(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
