package cache

import (
	"github.com/DensusHere/mywallet-sub001/metric"
)

// Option configures cache behavior using the functional options pattern.
type Option[V any] func(*cacheOptions[V])

// Stats are always collected; metrics are optional.
type cacheOptions[V any] struct {
	metricsReg    *metric.MetricsRegistry
	metricsPrefix string
	evictCallback EvictCallback[V]
}

// WithMetrics exports the cache statistics as Prometheus metrics labelled with
// component. It is ignored when registry is nil or component is empty.
func WithMetrics[V any](registry *metric.MetricsRegistry, component string) Option[V] {
	return func(opts *cacheOptions[V]) {
		if registry != nil && component != "" {
			opts.metricsReg = registry
			opts.metricsPrefix = component
		}
	}
}

// WithEvictionCallback sets a callback invoked for every removed entry.
func WithEvictionCallback[V any](callback EvictCallback[V]) Option[V] {
	return func(opts *cacheOptions[V]) {
		opts.evictCallback = callback
	}
}

func applyOptions[V any](options ...Option[V]) *cacheOptions[V] {
	opts := &cacheOptions[V]{}
	for _, opt := range options {
		if opt != nil {
			opt(opts)
		}
	}
	return opts
}
