package metric

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Namespace prefixes every metric exported by this module.
const Namespace = "mywallet"

// Metrics contains the metrics shared by the tag language and its consumers
type Metrics struct {
	// Remote configuration
	ConfigFetchAttempts *prometheus.CounterVec
	ConfigSynchronized  prometheus.Gauge
	ConfigLookups       *prometheus.CounterVec
	ConfigOverrides     prometheus.Gauge

	// Experiments
	ExperimentRequests *prometheus.CounterVec

	// Tag language
	TagResolutionFailures prometheus.Counter
}

// NewMetrics creates a new Metrics instance
func NewMetrics() *Metrics {
	return &Metrics{
		ConfigFetchAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "remote_config",
				Name:      "fetch_attempts_total",
				Help:      "Fetch-and-activate attempts by outcome",
			},
			[]string{"outcome"},
		),

		ConfigSynchronized: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Subsystem: "remote_config",
				Name:      "synchronized",
				Help:      "1 once the overlay completed a fetch-and-activate cycle",
			},
		),

		ConfigLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "remote_config",
				Name:      "lookups_total",
				Help:      "Configuration lookups by the key kind that matched",
			},
			[]string{"kind"},
		),

		ConfigOverrides: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Subsystem: "remote_config",
				Name:      "overrides",
				Help:      "Number of active local overrides",
			},
		),

		ExperimentRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "experiments",
				Name:      "requests_total",
				Help:      "Experiment assignment requests by status",
			},
			[]string{"status"},
		),

		TagResolutionFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "tag",
				Name:      "resolution_failures_total",
				Help:      "Tag ids that could not be resolved in the language",
			},
		),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.ConfigFetchAttempts,
		m.ConfigSynchronized,
		m.ConfigLookups,
		m.ConfigOverrides,
		m.ExperimentRequests,
		m.TagResolutionFailures,
	}
}
