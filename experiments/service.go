package experiments

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/DensusHere/mywallet-sub001/errors"
	"github.com/DensusHere/mywallet-sub001/pkg/retry"
)

// Service keeps the current user's experiment assignments. Each token change
// cancels the in-flight fetch and starts a new one; results of a superseded
// fetch are discarded.
type Service struct {
	fetcher Fetcher
	logger  *slog.Logger
	retry   retry.Config

	mu          sync.RWMutex
	parent      context.Context
	token       string
	assignments map[string]int
	generation  uint64
	started     bool
	cancel      context.CancelFunc
	done        chan struct{}

	updates chan map[string]int
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithServiceLogger sets the service logger.
func WithServiceLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRetry sets the retry policy of a single fetch.
func WithRetry(cfg retry.Config) ServiceOption {
	return func(s *Service) {
		s.retry = cfg
	}
}

// WithInitialToken sets the token used by the first fetch.
func WithInitialToken(token string) ServiceOption {
	return func(s *Service) {
		s.token = token
	}
}

// NewService creates a stopped Service.
func NewService(fetcher Fetcher, opts ...ServiceOption) *Service {
	s := &Service{
		fetcher:     fetcher,
		logger:      slog.Default(),
		parent:      context.Background(),
		assignments: map[string]int{},
		updates:     make(chan map[string]int, 1),
		retry: retry.Config{
			MaxAttempts:  5,
			InitialDelay: 500 * time.Millisecond,
			MaxDelay:     30 * time.Second,
			Multiplier:   2.0,
			Jitter:       retry.JitterFull,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "experiments")
	return s
}

// SetParent sets the context that fetches launched by Start derive from;
// cancelling it ends them. Without one Start uses context.Background.
func (s *Service) SetParent(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.parent = ctx
}

// Start begins fetching with the current token under the parent context. It
// is a no-op when running.
func (s *Service) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	s.restartLocked(s.parent)
}

// Stop cancels the in-flight fetch and waits for it to exit.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	s.generation++
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// SetToken switches to a new identity. Assignments of the previous identity
// are dropped at once. When the service runs, the in-flight fetch is cancelled
// and replaced by one for token, derived from ctx.
func (s *Service) SetToken(ctx context.Context, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if token == s.token {
		return
	}
	s.token = token
	s.assignments = map[string]int{}
	s.publishLocked()
	if s.started {
		s.restartLocked(ctx)
	}
}

// Refresh re-fetches with the current token, cancelling any in-flight fetch.
func (s *Service) Refresh(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return errors.WrapInvalid(errors.ErrNotStarted, "Service", "Refresh", "check running")
	}
	s.restartLocked(ctx)
	return nil
}

// Group returns the group assigned for experiment id.
func (s *Service) Group(id string) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.assignments[id]
	return g, ok
}

// Assignments returns a copy of the current assignments.
func (s *Service) Assignments() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyAssignments(s.assignments)
}

// Updates delivers the latest assignments after every change. Only the most
// recent value is buffered.
func (s *Service) Updates() <-chan map[string]int {
	return s.updates
}

func (s *Service) restartLocked(parent context.Context) {
	if s.cancel != nil {
		s.cancel()
	}
	s.generation++
	gen := s.generation
	token := s.token

	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})
	s.cancel, s.done = cancel, done

	go func() {
		defer close(done)
		s.run(ctx, gen, token)
	}()
}

func (s *Service) run(ctx context.Context, gen uint64, token string) {
	cfg := s.retry
	cfg.Notify = func(attempt int, err error, sleep time.Duration) {
		s.logger.Warn("experiments fetch failed, retrying",
			"attempt", attempt, "error", err, "sleep", sleep)
	}

	assignments, err := retry.DoWithResult(ctx, cfg, func() (map[string]int, error) {
		a, err := s.fetcher.Fetch(ctx, token)
		if err != nil && errors.IsInvalid(err) {
			return nil, retry.NonRetryable(err)
		}
		return a, err
	})
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Error("experiments fetch abandoned", "error", err)
		}
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		return
	}
	s.assignments = copyAssignments(assignments)
	s.publishLocked()
	s.logger.Info("experiment assignments updated", "count", len(assignments))
}

func (s *Service) publishLocked() {
	snapshot := copyAssignments(s.assignments)
	select {
	case <-s.updates:
	default:
	}
	select {
	case s.updates <- snapshot:
	default:
	}
}

func copyAssignments(in map[string]int) map[string]int {
	out := make(map[string]int, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
