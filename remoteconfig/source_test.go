package remoteconfig

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DensusHere/mywallet-sub001/errors"
)

func TestStaticSource_FetchThenActivate(t *testing.T) {
	ctx := context.Background()
	s := NewStaticSource(map[string]any{"a": 1})

	_, err := s.Activate(ctx)
	assert.True(t, errors.IsInvalid(err), "activate before fetch")

	require.NoError(t, s.Fetch(ctx))
	s.Set(map[string]any{"a": 2})

	values, err := s.Activate(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": 1}, values, "activate applies the fetched snapshot")
}

func TestKVSource(t *testing.T) {
	ctx := context.Background()
	docs := newMemoryDocuments()
	s := NewKVSource(docs, "")

	require.NoError(t, s.Fetch(ctx))
	values, err := s.Activate(ctx)
	require.NoError(t, err)
	assert.Empty(t, values, "missing document is an empty configuration")
	assert.Equal(t, uint64(0), s.Revision())

	require.NoError(t, s.Publish(ctx, map[string]any{"ios_ff_foo_bar": 5}))
	require.NoError(t, s.Fetch(ctx))
	values, err = s.Activate(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"ios_ff_foo_bar": float64(5)}, values)
	assert.Equal(t, uint64(1), s.Revision())
}

func TestKVSource_EmptyDocuments(t *testing.T) {
	ctx := context.Background()
	docs := newMemoryDocuments()
	s := NewKVSource(docs, "")

	require.NoError(t, s.Publish(ctx, nil))
	assert.JSONEq(t, `{}`, string(docs.docs[DefaultDocumentKey]))

	docs.docs[DefaultDocumentKey] = []byte("null")
	require.NoError(t, s.Fetch(ctx))
	values, err := s.Activate(ctx)
	require.NoError(t, err)
	assert.Empty(t, values)

	o := startOverlay(t, s)
	waitSynchronized(t, o)
}

func TestKVSource_RefreshesOnPublish(t *testing.T) {
	ctx := context.Background()
	lang := newLanguage(t)
	ref := lang.MustTag("blockchain.app.configuration.foo.bar")
	docs := &watchedDocuments{memoryDocuments: newMemoryDocuments()}
	s := NewKVSource(docs, "")
	require.NoError(t, s.Publish(ctx, map[string]any{"ios_ff_foo_bar": 1}))

	o := startOverlay(t, s)
	waitSynchronized(t, o)
	v, err := o.Get(ref)
	require.NoError(t, err)
	assert.Equal(t, float64(1), v)

	require.NoError(t, s.Publish(ctx, map[string]any{"ios_ff_foo_bar": 2}))
	require.Eventually(t, func() bool {
		v, err := o.Get(ref)
		return err == nil && v == float64(2)
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, uint64(2), s.Revision())
}

func TestKVSource_ChangesWithoutWatcher(t *testing.T) {
	s := NewKVSource(newMemoryDocuments(), "")
	changes, err := s.Changes(context.Background())
	require.NoError(t, err)
	assert.Nil(t, changes)
}

func TestKVSource_Errors(t *testing.T) {
	ctx := context.Background()
	docs := newMemoryDocuments()
	docs.docs[DefaultDocumentKey] = []byte("{not json")
	s := NewKVSource(docs, "")
	assert.True(t, errors.IsInvalid(s.Fetch(ctx)))

	docs.getErr = errors.ErrStorageUnavailable
	assert.True(t, errors.IsTransient(s.Fetch(ctx)))
}

func TestKVOverrideStore(t *testing.T) {
	ctx := context.Background()
	docs := newMemoryDocuments()
	store := NewKVOverrideStore(docs, "")

	values, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, values)

	require.NoError(t, store.Transaction(ctx, func(m map[string]any) error {
		m["!k"] = "v"
		return nil
	}))
	values, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"!k": "v"}, values)

	docs.getErr = errors.ErrStorageUnavailable
	_, err = store.Load(ctx)
	assert.True(t, errors.IsTransient(err))
}

func TestMemoryOverrideStore_FailedTransactionLeavesState(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryOverrideStore()
	require.NoError(t, store.Transaction(ctx, func(m map[string]any) error {
		m["!a"] = 1
		return nil
	}))

	err := store.Transaction(ctx, func(m map[string]any) error {
		m["!b"] = 2
		return errors.ErrInvalidData
	})
	assert.ErrorIs(t, err, errors.ErrInvalidData)

	values, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"!a": 1}, values)
}
