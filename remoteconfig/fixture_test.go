package remoteconfig

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/DensusHere/mywallet-sub001/errors"
	"github.com/DensusHere/mywallet-sub001/natsclient"
	"github.com/DensusHere/mywallet-sub001/pkg/retry"
	"github.com/DensusHere/mywallet-sub001/tag"
	"github.com/DensusHere/mywallet-sub001/tag/schema"
)

func newLanguage(t *testing.T) *tag.Language {
	t.Helper()
	lang, err := schema.BlockchainLanguage()
	require.NoError(t, err)
	_, err = lang.Add("blockchain.app.configuration", tag.Definition{Name: "foo"})
	require.NoError(t, err)
	_, err = lang.Add("blockchain.app.configuration.foo", tag.Definition{Name: "bar"})
	require.NoError(t, err)
	return lang
}

var fastRetry = retry.Config{
	MaxAttempts:  retry.Unlimited,
	InitialDelay: time.Millisecond,
	MaxDelay:     5 * time.Millisecond,
	Multiplier:   2,
	Jitter:       retry.JitterFull,
}

func startOverlay(t *testing.T, source Source, opts ...Option) *Overlay {
	t.Helper()
	o, err := New(source, append([]Option{WithRetry(fastRetry)}, opts...)...)
	require.NoError(t, err)
	require.NoError(t, o.Start(context.Background()))
	t.Cleanup(func() { _ = o.Stop(time.Second) })
	return o
}

func waitSynchronized(t *testing.T, o *Overlay) {
	t.Helper()
	select {
	case <-o.Synchronized():
	case <-time.After(2 * time.Second):
		t.Fatal("overlay did not synchronize")
	}
}

// flakySource fails the first n fetches, then serves values.
type flakySource struct {
	*StaticSource
	mu       sync.Mutex
	failures int
	fetches  int
	gate     chan struct{}
}

func (f *flakySource) Fetch(ctx context.Context) error {
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f.mu.Lock()
	f.fetches++
	fail := f.failures > 0
	if fail {
		f.failures--
	}
	f.mu.Unlock()
	if fail {
		return errors.WrapTransient(errors.ErrConnectionLost, "flakySource", "Fetch", "fetch")
	}
	return f.StaticSource.Fetch(ctx)
}

func (f *flakySource) Fetches() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}

// memoryDocuments is an in-memory DocumentStore.
type memoryDocuments struct {
	mu       sync.Mutex
	docs     map[string][]byte
	revision uint64
	getErr   error
}

func newMemoryDocuments() *memoryDocuments {
	return &memoryDocuments{docs: map[string][]byte{}}
}

func (m *memoryDocuments) Get(_ context.Context, key string) (*natsclient.KVEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	v, ok := m.docs[key]
	if !ok {
		return nil, natsclient.ErrKVKeyNotFound
	}
	return &natsclient.KVEntry{Key: key, Value: v, Revision: m.revision}, nil
}

func (m *memoryDocuments) Put(_ context.Context, key string, value []byte) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revision++
	m.docs[key] = value
	return m.revision, nil
}

func (m *memoryDocuments) UpdateJSON(ctx context.Context, key string, fn func(map[string]any) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current := map[string]any{}
	if raw, ok := m.docs[key]; ok {
		if err := json.Unmarshal(raw, &current); err != nil {
			return err
		}
	}
	if err := fn(current); err != nil {
		return err
	}
	data, err := json.Marshal(current)
	if err != nil {
		return err
	}
	m.revision++
	m.docs[key] = data
	return nil
}

// watchedDocuments is a memoryDocuments that reports Put revisions to the
// latest watcher.
type watchedDocuments struct {
	*memoryDocuments
	wmu   sync.Mutex
	watch chan uint64
}

func (w *watchedDocuments) WatchRevisions(_ context.Context, _ string) (<-chan uint64, error) {
	w.wmu.Lock()
	defer w.wmu.Unlock()
	w.watch = make(chan uint64, 8)
	return w.watch, nil
}

func (w *watchedDocuments) Put(ctx context.Context, key string, value []byte) (uint64, error) {
	rev, err := w.memoryDocuments.Put(ctx, key, value)
	if err != nil {
		return 0, err
	}
	w.wmu.Lock()
	defer w.wmu.Unlock()
	if w.watch != nil {
		w.watch <- rev
	}
	return rev, nil
}

// laggingOverrides delays the return of every other Transaction, after the
// write has committed.
type laggingOverrides struct {
	*MemoryOverrideStore
	calls atomic.Int64
}

func (l *laggingOverrides) Transaction(ctx context.Context, fn func(map[string]any) error) error {
	err := l.MemoryOverrideStore.Transaction(ctx, fn)
	if l.calls.Add(1)%2 == 1 {
		time.Sleep(2 * time.Millisecond)
	}
	return err
}

type groups map[string]int

func (g groups) Group(id string) (int, bool) {
	v, ok := g[id]
	return v, ok
}
