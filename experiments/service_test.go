package experiments

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DensusHere/mywallet-sub001/errors"
	"github.com/DensusHere/mywallet-sub001/pkg/retry"
)

// fakeFetcher answers per token. Tokens listed in block wait until the
// request context ends.
type fakeFetcher struct {
	mu      sync.Mutex
	answers map[string]map[string]int
	block   map[string]bool
	fail    atomic.Int32
	calls   atomic.Int32
	started chan string
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		answers: map[string]map[string]int{},
		block:   map[string]bool{},
		started: make(chan string, 16),
	}
}

func (f *fakeFetcher) Fetch(ctx context.Context, token string) (map[string]int, error) {
	f.calls.Add(1)
	f.started <- token

	f.mu.Lock()
	answer, block := f.answers[token], f.block[token]
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, errors.WrapTransient(ctx.Err(), "fake", "Fetch", "blocked")
	}
	if f.fail.Load() > 0 {
		f.fail.Add(-1)
		return nil, errors.WrapTransient(errors.ErrConnectionLost, "fake", "Fetch", "flaky")
	}
	return answer, nil
}

var fastRetry = retry.Config{
	MaxAttempts:  5,
	InitialDelay: time.Millisecond,
	MaxDelay:     5 * time.Millisecond,
	Multiplier:   2,
	Jitter:       retry.JitterFull,
}

func nextUpdate(t *testing.T, s *Service) map[string]int {
	t.Helper()
	select {
	case u := <-s.Updates():
		return u
	case <-time.After(2 * time.Second):
		t.Fatal("no update")
		return nil
	}
}

func TestService_FetchOnStart(t *testing.T) {
	f := newFakeFetcher()
	f.answers["alice"] = map[string]int{"swap": 1}

	s := NewService(f, WithInitialToken("alice"), WithRetry(fastRetry))
	s.Start()
	defer s.Stop()

	assert.Equal(t, map[string]int{"swap": 1}, nextUpdate(t, s))
	g, ok := s.Group("swap")
	assert.True(t, ok)
	assert.Equal(t, 1, g)
	_, ok = s.Group("missing")
	assert.False(t, ok)
}

func TestService_RetriesTransientFailures(t *testing.T) {
	f := newFakeFetcher()
	f.answers["alice"] = map[string]int{"swap": 2}
	f.fail.Store(2)

	s := NewService(f, WithInitialToken("alice"), WithRetry(fastRetry))
	s.Start()
	defer s.Stop()

	assert.Equal(t, map[string]int{"swap": 2}, nextUpdate(t, s))
	assert.Equal(t, int32(3), f.calls.Load())
}

func TestService_StartDerivesFromParent(t *testing.T) {
	f := newFakeFetcher()
	f.block["alice"] = true

	ctx, cancel := context.WithCancel(context.Background())
	s := NewService(f, WithInitialToken("alice"), WithRetry(retry.Config{MaxAttempts: 1}))
	s.SetParent(ctx)
	s.Start()
	defer s.Stop()
	require.Equal(t, "alice", <-f.started)

	cancel()
	s.mu.RLock()
	done := s.done
	s.mu.RUnlock()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("fetch outlived its parent context")
	}
	assert.Equal(t, int32(1), f.calls.Load())
}

func TestService_SetTokenCancelsInFlight(t *testing.T) {
	f := newFakeFetcher()
	f.block["alice"] = true
	f.answers["bob"] = map[string]int{"onboarding": 3}

	s := NewService(f, WithInitialToken("alice"), WithRetry(fastRetry))
	s.Start()
	defer s.Stop()
	require.Equal(t, "alice", <-f.started)

	s.SetToken(context.Background(), "bob")
	update := nextUpdate(t, s)
	if len(update) == 0 {
		// The cleared state may still be pending ahead of bob's result.
		update = nextUpdate(t, s)
	}
	assert.Equal(t, map[string]int{"onboarding": 3}, update)
	assert.Equal(t, map[string]int{"onboarding": 3}, s.Assignments())
}

func TestService_StaleResultDiscarded(t *testing.T) {
	f := newFakeFetcher()
	f.answers["alice"] = map[string]int{"swap": 1}

	s := NewService(f, WithRetry(fastRetry))
	s.SetToken(context.Background(), "alice")
	<-s.Updates()

	s.mu.Lock()
	s.generation++
	gen := s.generation
	s.mu.Unlock()

	// A result for an older generation is ignored.
	s.run(context.Background(), gen-1, "alice")
	assert.Empty(t, s.Assignments())

	s.run(context.Background(), gen, "alice")
	assert.Equal(t, map[string]int{"swap": 1}, s.Assignments())
}

func TestService_SameTokenIsNoop(t *testing.T) {
	f := newFakeFetcher()
	s := NewService(f, WithInitialToken("alice"), WithRetry(fastRetry))
	s.SetToken(context.Background(), "alice")

	select {
	case <-s.Updates():
		t.Fatal("unexpected update")
	default:
	}
	assert.Equal(t, int32(0), f.calls.Load())
}

func TestService_StopWaitsAndRefreshRequiresStart(t *testing.T) {
	f := newFakeFetcher()
	f.block["alice"] = true

	s := NewService(f, WithInitialToken("alice"), WithRetry(fastRetry))
	assert.ErrorIs(t, s.Refresh(context.Background()), errors.ErrNotStarted)

	s.Start()
	s.Start()
	<-f.started
	s.Stop()
	s.Stop()
	assert.Equal(t, int32(1), f.calls.Load())
}

func TestService_InvalidErrorsAreNotRetried(t *testing.T) {
	var calls atomic.Int32
	fetcher := fetchFunc(func(context.Context, string) (map[string]int, error) {
		calls.Add(1)
		return nil, errors.WrapInvalid(errors.ErrParsingFailed, "fake", "Fetch", "decode")
	})

	s := NewService(fetcher, WithRetry(fastRetry))
	s.Start()
	s.Stop()
	assert.Equal(t, int32(1), calls.Load())
}

type fetchFunc func(ctx context.Context, token string) (map[string]int, error)

func (f fetchFunc) Fetch(ctx context.Context, token string) (map[string]int, error) {
	return f(ctx, token)
}
