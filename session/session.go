// Package session bundles a Language, a remote-configuration Overlay, the
// experiments Service and an observer Registry into one application session.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/DensusHere/mywallet-sub001/errors"
	"github.com/DensusHere/mywallet-sub001/experiments"
	"github.com/DensusHere/mywallet-sub001/observer"
	"github.com/DensusHere/mywallet-sub001/remoteconfig"
	"github.com/DensusHere/mywallet-sub001/tag"
)

// Session owns the lifecycle of its collaborators. Observers are started on
// registration and stopped, in reverse order, when the session stops.
type Session struct {
	lang        *tag.Language
	config      *remoteconfig.Overlay
	experiments *experiments.Service
	observers   *observer.Registry
	logger      *slog.Logger

	mu      sync.Mutex
	ctx     context.Context
	started bool
}

// Option configures a Session.
type Option func(*Session)

// WithExperiments attaches the experiments service. The same service should
// be passed to the overlay with remoteconfig.WithExperiments.
func WithExperiments(svc *experiments.Service) Option {
	return func(s *Session) { s.experiments = svc }
}

// WithLogger sets the session logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a stopped session.
func New(lang *tag.Language, overlay *remoteconfig.Overlay, opts ...Option) (*Session, error) {
	if lang == nil || overlay == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Session", "New", "validate collaborators")
	}
	s := &Session{
		lang:   lang,
		config: overlay,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "session")
	s.observers = observer.NewRegistry(observer.WithLogger(s.logger))
	return s, nil
}

func (s *Session) Language() *tag.Language { return s.lang }

func (s *Session) Overlay() *remoteconfig.Overlay { return s.config }

func (s *Session) Experiments() *experiments.Service { return s.experiments }

// Observe registers o and starts it. It reports false for duplicates and
// non-comparable values.
func (s *Session) Observe(o observer.Observer) bool {
	return s.observers.Insert(o)
}

// Unobserve stops and removes o.
func (s *Session) Unobserve(o observer.Observer) bool {
	return s.observers.Remove(o)
}

// Start starts the overlay, then registers the experiments service as an
// observer. Background work of both ends when ctx does.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "Session", "Start", "check state")
	}

	if err := s.config.Start(ctx); err != nil {
		return errors.Wrap(err, "Session", "Start", "start remote configuration")
	}
	s.ctx = ctx
	s.started = true

	if s.experiments != nil {
		s.experiments.SetParent(ctx)
		s.observers.Insert(s.experiments)
	}

	s.logger.Info("session started", "observers", s.observers.Len())
	return nil
}

// Stop stops every observer in reverse registration order, then the overlay.
// The session can be started again.
func (s *Session) Stop(timeout time.Duration) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	s.mu.Unlock()

	start := time.Now()
	stopped := s.observers.RemoveAll()
	if err := s.config.Stop(timeout); err != nil {
		s.logger.Error("remote configuration stop failed", "error", err)
		return errors.Wrap(err, "Session", "Stop", "stop remote configuration")
	}
	s.logger.Info("session stopped",
		"observers", stopped,
		"duration_ms", time.Since(start).Milliseconds())
	return nil
}

// Ref resolves id in the session language and binds ctx.
func (s *Session) Ref(id string, ctx ...tag.Context) (tag.Reference, error) {
	t, err := s.lang.Tag(id)
	if err != nil {
		return tag.Reference{}, err
	}
	return t.Key(ctx...), nil
}

// Config is the overlay lookup for key as a Result.
func (s *Session) Config(key tag.Taggable) remoteconfig.Result {
	return s.config.Result(key)
}

// Get is the overlay lookup for key.
func (s *Session) Get(key tag.Taggable) (any, error) {
	return s.config.Get(key)
}

// SignIn switches experiments to token and refreshes the remote configuration.
func (s *Session) SignIn(ctx context.Context, token string) error {
	return s.authenticate(ctx, token)
}

// SignOut drops the current identity and refreshes the remote configuration.
func (s *Session) SignOut(ctx context.Context) error {
	return s.authenticate(ctx, "")
}

func (s *Session) authenticate(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return errors.WrapInvalid(errors.ErrNotStarted, "Session", "authenticate", "check state")
	}
	// Fetch tasks run under the session context, not the caller's.
	if s.experiments != nil {
		s.experiments.SetToken(s.ctx, token)
	}
	if err := ctx.Err(); err != nil {
		return errors.WrapTransient(err, "Session", "authenticate", "refresh remote configuration")
	}
	if err := s.config.Refresh(s.ctx); err != nil {
		return errors.Wrap(err, "Session", "authenticate", "refresh remote configuration")
	}
	s.logger.Info("identity changed", "signed_in", token != "")
	return nil
}
