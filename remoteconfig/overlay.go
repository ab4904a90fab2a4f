package remoteconfig

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/DensusHere/mywallet-sub001/errors"
	"github.com/DensusHere/mywallet-sub001/metric"
	"github.com/DensusHere/mywallet-sub001/pkg/cache"
	"github.com/DensusHere/mywallet-sub001/pkg/retry"
	"github.com/DensusHere/mywallet-sub001/tag"
)

// Origin names the layer an Update came from.
type Origin string

// Update origins.
const (
	OriginRemote   Origin = "remote"
	OriginOverride Origin = "override"
)

// Update announces a change of the visible configuration.
type Update struct {
	Origin   Origin
	Revision uint64
}

// Overlay maps tag references to values of a remote configuration, with a
// local override layer on top. Reads fail with ErrNotSynchronized until the
// first fetch-and-activate cycle completes.
type Overlay struct {
	source      Source
	store       OverrideStore
	experiments ExperimentGroups
	logger      *slog.Logger
	retry       retry.Config
	metrics     *metric.Metrics
	keys        cache.Cache[[]Candidate]

	// writeMu orders override writes so the store and the in-memory layer
	// apply them in the same order.
	writeMu sync.Mutex

	mu        sync.RWMutex
	remote    map[string]any
	overrides map[string]any
	synced    bool
	revision  uint64

	syncedCh chan struct{}
	syncOnce sync.Once
	changes  chan Update

	generation atomic.Uint64

	taskMu  sync.Mutex
	parent  context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	unwatch context.CancelFunc
	started bool
}

// Option configures an Overlay.
type Option func(*options)

type options struct {
	store        OverrideStore
	experiments  ExperimentGroups
	logger       *slog.Logger
	retry        retry.Config
	registry     *metric.MetricsRegistry
	keyCacheSize int
}

// WithOverrideStore persists overrides; the default keeps them in memory.
func WithOverrideStore(s OverrideStore) Option {
	return func(o *options) { o.store = s }
}

// WithExperiments enables experiment substitution.
func WithExperiments(g ExperimentGroups) Option {
	return func(o *options) { o.experiments = g }
}

// WithLogger sets the overlay logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithRetry replaces the fetch retry policy.
func WithRetry(cfg retry.Config) Option {
	return func(o *options) { o.retry = cfg }
}

// WithMetrics records fetches, lookups and key cache statistics.
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(o *options) { o.registry = registry }
}

// WithKeyCacheSize bounds the number of memoized candidate key lists.
func WithKeyCacheSize(n int) Option {
	return func(o *options) { o.keyCacheSize = n }
}

// DefaultRetry retries forever, sleeping a uniform duration in
// [0, base·2^(attempt−1)] capped at five minutes.
func DefaultRetry() retry.Config {
	return retry.Forever(time.Second, 5*time.Minute)
}

// New creates a stopped overlay over source.
func New(source Source, opts ...Option) (*Overlay, error) {
	if source == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Overlay", "New", "validate source")
	}
	o := options{
		logger:       slog.Default(),
		retry:        DefaultRetry(),
		keyCacheSize: 1024,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.store == nil {
		o.store = NewMemoryOverrideStore()
	}

	var cacheOpts []cache.Option[[]Candidate]
	if o.registry != nil {
		cacheOpts = append(cacheOpts, cache.WithMetrics[[]Candidate](o.registry, "remote_config_keys"))
	}
	keys, err := cache.NewLRU[[]Candidate](o.keyCacheSize, cacheOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "Overlay", "New", "create key cache")
	}

	ov := &Overlay{
		source:      source,
		store:       o.store,
		experiments: o.experiments,
		logger:      o.logger.With("component", "remote_config"),
		retry:       o.retry,
		keys:        keys,
		remote:      map[string]any{},
		overrides:   map[string]any{},
		syncedCh:    make(chan struct{}),
		changes:     make(chan Update, 1),
	}
	if o.registry != nil {
		ov.metrics = o.registry.CoreMetrics()
	}
	return ov, nil
}

// Start loads persisted overrides and launches the background
// fetch-and-activate task. The task lives until Stop or until ctx ends.
func (o *Overlay) Start(ctx context.Context) error {
	o.taskMu.Lock()
	defer o.taskMu.Unlock()
	if o.started {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "Overlay", "Start", "check state")
	}

	stored, err := o.store.Load(ctx)
	if err != nil {
		if !errors.IsTransient(err) {
			return errors.Wrap(err, "Overlay", "Start", "load overrides")
		}
		o.logger.Warn("overrides unavailable, starting without them", "error", err)
		stored = nil
	}
	o.mu.Lock()
	for k, v := range stored {
		if strings.HasPrefix(k, OverrideMarker) {
			o.overrides[k] = v
		}
	}
	o.setOverrideGaugeLocked()
	o.mu.Unlock()

	o.started = true
	o.parent = ctx
	o.launchLocked()
	o.watchLocked(ctx)
	o.logger.Info("remote configuration started", "overrides", len(stored))
	return nil
}

// Stop cancels the background task and waits up to timeout for it to exit.
func (o *Overlay) Stop(timeout time.Duration) error {
	o.taskMu.Lock()
	if !o.started {
		o.taskMu.Unlock()
		return nil
	}
	o.started = false
	cancel, done := o.cancel, o.done
	o.cancel, o.done = nil, nil
	if o.unwatch != nil {
		o.unwatch()
		o.unwatch = nil
	}
	o.taskMu.Unlock()

	cancel()
	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return errors.WrapTransient(errors.ErrConnectionTimeout, "Overlay", "Stop", "wait for fetch task")
	}
}

// Refresh cancels the in-flight fetch and starts a new one.
func (o *Overlay) Refresh(ctx context.Context) error {
	return o.relaunch(ctx)
}

// relaunch restarts the fetch task; a nil parent keeps the current one.
func (o *Overlay) relaunch(parent context.Context) error {
	o.taskMu.Lock()
	defer o.taskMu.Unlock()
	if !o.started {
		return errors.WrapInvalid(errors.ErrNotStarted, "Overlay", "Refresh", "check state")
	}
	if parent != nil {
		o.parent = parent
	}
	o.launchLocked()
	return nil
}

func (o *Overlay) launchLocked() {
	if o.cancel != nil {
		o.cancel()
	}
	gen := o.generation.Add(1)
	ctx, cancel := context.WithCancel(o.parent)
	done := make(chan struct{})
	o.cancel, o.done = cancel, done

	go func() {
		defer close(done)
		o.fetchAndActivate(ctx, gen)
	}()
}

// watchLocked refreshes the overlay whenever a Notifier source reports a new
// configuration. A source that cannot be watched is fetched only on Start and
// Refresh.
func (o *Overlay) watchLocked(ctx context.Context) {
	n, ok := o.source.(Notifier)
	if !ok {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	changes, err := n.Changes(ctx)
	if err != nil || changes == nil {
		cancel()
		if err != nil {
			o.logger.Warn("remote configuration watch unavailable", "error", err)
		}
		return
	}
	o.unwatch = cancel

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case rev, ok := <-changes:
				if !ok {
					return
				}
				o.logger.Debug("remote configuration published", "revision", rev)
				if err := o.relaunch(nil); err != nil {
					return
				}
			}
		}
	}()
}

func (o *Overlay) fetchAndActivate(ctx context.Context, gen uint64) {
	cfg := o.retry
	cfg.Notify = func(attempt int, err error, sleep time.Duration) {
		o.countFetch("failure")
		o.logger.Warn("remote configuration fetch failed, retrying",
			"attempt", attempt, "error", err, "sleep", sleep)
	}

	values, err := retry.DoWithResult(ctx, cfg, func() (map[string]any, error) {
		if err := o.source.Fetch(ctx); err != nil {
			return nil, err
		}
		return o.source.Activate(ctx)
	})
	if err != nil {
		if ctx.Err() == nil {
			o.countFetch("failure")
			o.logger.Error("remote configuration fetch abandoned", "error", err)
		}
		return
	}
	if ctx.Err() != nil {
		return
	}

	o.countFetch("success")
	o.activate(gen, values)
}

// activate makes values current unless a newer task has been launched.
func (o *Overlay) activate(gen uint64, values map[string]any) {
	o.mu.Lock()
	if gen != o.generation.Load() {
		o.mu.Unlock()
		return
	}
	o.remote = copyValues(values)
	if o.remote == nil {
		o.remote = map[string]any{}
	}
	o.synced = true
	o.publishLocked(OriginRemote)
	o.mu.Unlock()

	o.syncOnce.Do(func() {
		close(o.syncedCh)
		if o.metrics != nil {
			o.metrics.ConfigSynchronized.Set(1)
		}
	})
	o.logger.Info("remote configuration activated", "keys", len(values))
}

// IsSynchronized reports whether a fetch-and-activate cycle has completed.
func (o *Overlay) IsSynchronized() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.synced
}

// Synchronized is closed after the first completed cycle.
func (o *Overlay) Synchronized() <-chan struct{} {
	return o.syncedCh
}

// OnChange delivers the latest Update; intermediate updates may be dropped.
func (o *Overlay) OnChange() <-chan Update {
	return o.changes
}

// Keys returns the candidate keys for key in lookup order.
func (o *Overlay) Keys(key tag.Taggable) []string {
	return candidateKeys(o.candidates(key.Key()))
}

func (o *Overlay) candidates(ref tag.Reference) []Candidate {
	if ref.Tag().IsNone() {
		return nil
	}
	cs, err := cache.GetOrCompute[[]Candidate](o.keys, ref.ID(), func() []Candidate {
		return Candidates(ref)
	})
	if err != nil {
		o.logger.Debug("key cache store failed", "reference", ref.ID(), "error", err)
	}
	return cs
}

// Get returns the value of the first candidate key present, overrides first.
func (o *Overlay) Get(key tag.Taggable) (any, error) {
	ref := key.Key()
	o.mu.RLock()
	defer o.mu.RUnlock()
	if !o.synced {
		return nil, errors.WrapTransient(errors.ErrNotSynchronized, "Overlay", "Get", "check synchronization")
	}
	cs := o.candidates(ref)
	if v, kind, ok := o.lookupLocked(cs); ok {
		o.countLookup(string(kind))
		return substitute(v, o.experiments), nil
	}
	o.countLookup("miss")
	return nil, &KeyDoesNotExistError{Reference: ref.String(), Keys: candidateKeys(cs)}
}

// Result is Get as a value.
func (o *Overlay) Result(key tag.Taggable) Result {
	ref := key.Key()
	v, err := o.Get(ref)
	return resultOf(ref.String(), v, err)
}

// Contains reports whether any candidate key for key has a value.
func (o *Overlay) Contains(key tag.Taggable) (bool, error) {
	ref := key.Key()
	o.mu.RLock()
	defer o.mu.RUnlock()
	if !o.synced {
		return false, errors.WrapTransient(errors.ErrNotSynchronized, "Overlay", "Contains", "check synchronization")
	}
	_, _, ok := o.lookupLocked(o.candidates(ref))
	return ok, nil
}

func (o *Overlay) lookupLocked(cs []Candidate) (any, KeyKind, bool) {
	for _, c := range cs {
		if c.Kind == KindOverride {
			if v, ok := o.overrides[c.Key]; ok {
				return v, c.Kind, true
			}
			continue
		}
		if v, ok := o.remote[c.Key]; ok {
			return v, c.Kind, true
		}
	}
	return nil, "", false
}

// Decode reads key and converts its value to T through JSON.
func Decode[T any](o *Overlay, key tag.Taggable) (T, error) {
	var out T
	v, err := o.Get(key)
	if err != nil {
		return out, err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return out, errors.WrapInvalid(err, "Overlay", "Decode", "encode value")
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, errors.WrapInvalid(err, "Overlay", "Decode", "decode value")
	}
	return out, nil
}

// Override sets a local value for key that wins over remote values. It is
// persisted first, then applied; concurrent override writes are serialized.
func (o *Overlay) Override(ctx context.Context, key tag.Taggable, value any) error {
	k := OverrideKey(key.Key())
	if k == "" {
		return errors.WrapInvalid(errors.ErrInvalidData, "Overlay", "Override", "override the none tag")
	}
	o.writeMu.Lock()
	defer o.writeMu.Unlock()
	err := o.store.Transaction(ctx, func(m map[string]any) error {
		m[k] = value
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "Overlay", "Override", "persist "+k)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.overrides[k] = value
	o.setOverrideGaugeLocked()
	o.publishLocked(OriginOverride)
	return nil
}

// ClearOverride removes the local value for key.
func (o *Overlay) ClearOverride(ctx context.Context, key tag.Taggable) error {
	k := OverrideKey(key.Key())
	o.writeMu.Lock()
	defer o.writeMu.Unlock()
	err := o.store.Transaction(ctx, func(m map[string]any) error {
		delete(m, k)
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "Overlay", "ClearOverride", "persist "+k)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.overrides[k]; !ok {
		return nil
	}
	delete(o.overrides, k)
	o.setOverrideGaugeLocked()
	o.publishLocked(OriginOverride)
	return nil
}

// ClearOverrides removes every local value.
func (o *Overlay) ClearOverrides(ctx context.Context) error {
	o.writeMu.Lock()
	defer o.writeMu.Unlock()
	err := o.store.Transaction(ctx, func(m map[string]any) error {
		for k := range m {
			if strings.HasPrefix(k, OverrideMarker) {
				delete(m, k)
			}
		}
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "Overlay", "ClearOverrides", "persist")
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.overrides = map[string]any{}
	o.setOverrideGaugeLocked()
	o.publishLocked(OriginOverride)
	return nil
}

// Overrides returns a copy of the override layer keyed by override key.
func (o *Overlay) Overrides() map[string]any {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return copyValues(o.overrides)
}

func (o *Overlay) publishLocked(origin Origin) {
	o.revision++
	u := Update{Origin: origin, Revision: o.revision}
	select {
	case <-o.changes:
	default:
	}
	select {
	case o.changes <- u:
	default:
	}
}

func (o *Overlay) setOverrideGaugeLocked() {
	if o.metrics != nil {
		o.metrics.ConfigOverrides.Set(float64(len(o.overrides)))
	}
}

func (o *Overlay) countFetch(outcome string) {
	if o.metrics != nil {
		o.metrics.ConfigFetchAttempts.WithLabelValues(outcome).Inc()
	}
}

func (o *Overlay) countLookup(kind string) {
	if o.metrics != nil {
		o.metrics.ConfigLookups.WithLabelValues(kind).Inc()
	}
}
