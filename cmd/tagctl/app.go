package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/DensusHere/mywallet-sub001/config"
	"github.com/DensusHere/mywallet-sub001/errors"
	"github.com/DensusHere/mywallet-sub001/experiments"
	"github.com/DensusHere/mywallet-sub001/metric"
	"github.com/DensusHere/mywallet-sub001/natsclient"
	"github.com/DensusHere/mywallet-sub001/pkg/retry"
	"github.com/DensusHere/mywallet-sub001/remoteconfig"
	"github.com/DensusHere/mywallet-sub001/session"
	"github.com/DensusHere/mywallet-sub001/tag"
	"github.com/DensusHere/mywallet-sub001/tag/schema"
)

const shutdownTimeout = 10 * time.Second

// app holds the process-wide collaborators of one command run.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *metric.MetricsRegistry
	lang    *tag.Language
	nats    *natsclient.Client
	session *session.Session
}

// loadConfig merges the configuration layers, then applies the log and schema
// flags when set.
func loadConfig(opts *rootOptions) (*config.Config, error) {
	loader := config.NewLoader()
	for _, path := range opts.configs {
		loader.AddLayer(path)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, err
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}
	if opts.logFormat != "" {
		cfg.Log.Format = opts.logFormat
	}
	if opts.schema != "" {
		cfg.Language.Schema = opts.schema
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newApp loads the configuration and the language. Nothing touches the
// network until openSession.
func newApp(opts *rootOptions, logs io.Writer) (*app, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	logger := setupLogger(logs, cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)

	a := &app{cfg: cfg, logger: logger, metrics: metric.NewMetricsRegistry()}
	langOpts := []tag.Option{
		tag.WithLogger(logger),
		tag.WithMissHook(func(string) {
			a.metrics.CoreMetrics().TagResolutionFailures.Inc()
		}),
	}
	if cfg.Language.Schema != "" {
		a.lang, err = schema.LoadLanguage(cfg.Language.Schema, langOpts...)
	} else {
		a.lang, err = schema.BlockchainLanguage(langOpts...)
	}
	if err != nil {
		return nil, errors.Wrap(err, "tagctl", "newApp", "load language")
	}
	return a, nil
}

// openSession builds the remote configuration stack and the session. The
// session is not started.
func (a *app) openSession(ctx context.Context) error {
	source, store, err := a.remoteSource(ctx)
	if err != nil {
		return err
	}

	rc := a.cfg.RemoteConfig
	overlayOpts := []remoteconfig.Option{
		remoteconfig.WithOverrideStore(store),
		remoteconfig.WithLogger(a.logger),
		remoteconfig.WithMetrics(a.metrics),
		remoteconfig.WithKeyCacheSize(rc.KeyCacheSize),
		remoteconfig.WithRetry(retry.Forever(rc.RetryBase.Std(), rc.RetryMax.Std())),
	}
	var sessionOpts []session.Option
	if svc, err := a.experimentsService(); err != nil {
		return err
	} else if svc != nil {
		overlayOpts = append(overlayOpts, remoteconfig.WithExperiments(svc))
		sessionOpts = append(sessionOpts, session.WithExperiments(svc))
	}

	overlay, err := remoteconfig.New(source, overlayOpts...)
	if err != nil {
		return err
	}
	a.session, err = session.New(a.lang, overlay, append(sessionOpts, session.WithLogger(a.logger))...)
	return err
}

func (a *app) remoteSource(ctx context.Context) (remoteconfig.Source, remoteconfig.OverrideStore, error) {
	rc := a.cfg.RemoteConfig
	switch rc.Source {
	case config.SourceFile:
		data, err := config.ReadFile(rc.File)
		if err != nil {
			return nil, nil, err
		}
		var values map[string]any
		if err := json.Unmarshal(data, &values); err != nil {
			return nil, nil, errors.WrapInvalid(err, "tagctl", "remoteSource", "decode "+rc.File)
		}
		return remoteconfig.NewStaticSource(values), remoteconfig.NewMemoryOverrideStore(), nil

	case config.SourceKV:
		store, err := a.kvStore(ctx)
		if err != nil {
			return nil, nil, err
		}
		return remoteconfig.NewKVSource(store, rc.DocumentKey), remoteconfig.NewKVOverrideStore(store, rc.OverridesKey), nil
	}
	return nil, nil, errors.WrapInvalid(errors.ErrInvalidConfig, "tagctl", "remoteSource", "source "+rc.Source)
}

func (a *app) kvStore(ctx context.Context) (*natsclient.KVStore, error) {
	nc := a.cfg.NATS
	opts := []natsclient.ClientOption{
		natsclient.WithLogger(a.logger),
		natsclient.WithName(appName),
		natsclient.WithMaxReconnects(nc.MaxReconnects),
		natsclient.WithDrainTimeout(shutdownTimeout / 2),
		natsclient.WithHealthChangeCallback(func(healthy bool) {
			if healthy {
				a.logger.Info("NATS connection healthy")
				return
			}
			a.logger.Warn("NATS connection unhealthy, overrides and fetches will retry")
		}),
	}
	if nc.ReconnectWait > 0 {
		opts = append(opts, natsclient.WithReconnectWait(nc.ReconnectWait.Std()))
	}
	if nc.Username != "" {
		opts = append(opts, natsclient.WithCredentials(nc.Username, nc.Password))
	}
	if nc.Token != "" {
		opts = append(opts, natsclient.WithToken(nc.Token))
	}

	client, err := natsclient.NewClient(strings.Join(nc.URLs, ","), opts...)
	if err != nil {
		return nil, err
	}
	if err := client.Connect(ctx); err != nil {
		return nil, err
	}
	a.nats = client

	history := nc.Bucket.History
	if history < 1 {
		history = 1
	}
	bucket, err := client.CreateKeyValueBucket(ctx, jetstream.KeyValueConfig{
		Bucket:      nc.Bucket.Name,
		Description: "remote configuration and local overrides",
		History:     uint8(history),
		TTL:         nc.Bucket.TTL.Std(),
		Replicas:    nc.Bucket.Replicas,
	})
	if err != nil {
		return nil, err
	}
	return client.NewKVStore(bucket), nil
}

func (a *app) experimentsService() (*experiments.Service, error) {
	ec := a.cfg.Experiments
	if ec.URL == "" {
		return nil, nil
	}
	client, err := experiments.NewClient(ec.URL,
		experiments.WithTimeout(ec.Timeout.Std()),
		experiments.WithRateLimit(ec.RateLimit, ec.Burst),
		experiments.WithLogger(a.logger),
		experiments.WithMetrics(a.metrics),
	)
	if err != nil {
		return nil, err
	}
	return experiments.NewService(client, experiments.WithServiceLogger(a.logger)), nil
}

// waitSynchronized blocks until the first remote configuration is active.
func (a *app) waitSynchronized(ctx context.Context, timeout time.Duration) error {
	select {
	case <-a.session.Overlay().Synchronized():
		return nil
	case <-time.After(timeout):
		return errors.WrapTransient(errors.ErrNotSynchronized, "tagctl", "waitSynchronized",
			fmt.Sprintf("wait %s", timeout))
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *app) close() {
	if a.session != nil {
		if err := a.session.Stop(shutdownTimeout); err != nil {
			a.logger.Error("session stop failed", "error", err)
		}
	}
	if a.nats != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.nats.Close(ctx); err != nil {
			a.logger.Error("NATS close failed", "error", err)
		}
	}
}

// reference resolves id and binds every "tag.id=value" argument.
func reference(lang *tag.Language, id string, bindings []string) (tag.Reference, error) {
	t, err := lang.Tag(id)
	if err != nil {
		return tag.Reference{}, err
	}
	ctx, err := parseBindings(lang, bindings)
	if err != nil {
		return tag.Reference{}, err
	}
	return t.Key(ctx), nil
}

func parseBindings(lang *tag.Language, args []string) (tag.Context, error) {
	bindings := make([]tag.Binding, 0, len(args))
	for _, arg := range args {
		id, value, ok := strings.Cut(arg, "=")
		if !ok || id == "" {
			return tag.Context{}, errors.WrapInvalid(errors.ErrInvalidData, "tagctl", "parseBindings",
				fmt.Sprintf("binding %q is not id=value", arg))
		}
		key, err := lang.Tag(id)
		if err != nil {
			return tag.Context{}, err
		}
		bindings = append(bindings, tag.Bind(key, value))
	}
	return tag.NewContext(bindings...), nil
}
