package metric

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/prometheus/common/expfmt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DensusHere/mywallet-sub001/errors"
)

func gatheredNames(t *testing.T, registry *MetricsRegistry) map[string]bool {
	t.Helper()
	families, err := registry.PrometheusRegistry().Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, mf := range families {
		names[mf.GetName()] = true
	}
	return names
}

func TestNewMetricsRegistry(t *testing.T) {
	registry := NewMetricsRegistry()

	require.NotNil(t, registry)
	require.NotNil(t, registry.CoreMetrics())

	registry.CoreMetrics().ConfigSynchronized.Set(1)
	registry.CoreMetrics().ConfigFetchAttempts.WithLabelValues("success").Inc()

	names := gatheredNames(t, registry)
	assert.True(t, names["mywallet_remote_config_synchronized"])
	assert.True(t, names["mywallet_remote_config_fetch_attempts_total"])
	assert.True(t, names["go_goroutines"])
}

func TestMetricsRegistry_RegisterCounter(t *testing.T) {
	registry := NewMetricsRegistry()

	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "test_counter",
		Help: "A test counter",
	})

	require.NoError(t, registry.RegisterCounter("test-component", "test_counter", counter))
	counter.Inc()

	assert.True(t, gatheredNames(t, registry)["test_counter"])
	assert.Equal(t, 1.0, testutil.ToFloat64(counter))
}

func TestMetricsRegistry_DuplicateRegistration(t *testing.T) {
	registry := NewMetricsRegistry()

	gauge := prometheus.NewGauge(prometheus.GaugeOpts{Name: "dup_gauge", Help: "dup"})
	require.NoError(t, registry.RegisterGauge("c", "dup_gauge", gauge))

	err := registry.RegisterGauge("c", "dup_gauge", gauge)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))

	// same collector under another key conflicts inside prometheus
	err = registry.RegisterGauge("other", "dup_gauge", gauge)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestMetricsRegistry_GaugeFunc(t *testing.T) {
	registry := NewMetricsRegistry()

	value := 3.0
	gf := prometheus.NewGaugeFunc(prometheus.GaugeOpts{Name: "sampled", Help: "sampled"}, func() float64 {
		return value
	})
	require.NoError(t, registry.RegisterGaugeFunc("language", "nodes", gf))

	assert.Equal(t, 3.0, testutil.ToFloat64(gf))
	value = 7
	assert.Equal(t, 7.0, testutil.ToFloat64(gf))
}

func TestMetricsRegistry_Unregister(t *testing.T) {
	registry := NewMetricsRegistry()

	vec := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "vec_total", Help: "v"}, []string{"kind"})
	require.NoError(t, registry.RegisterCounterVec("c", "vec", vec))

	assert.True(t, registry.Unregister("c", "vec"))
	assert.False(t, registry.Unregister("c", "vec"))

	// can be registered again after removal
	require.NoError(t, registry.RegisterCounterVec("c", "vec", vec))
}

func TestMetricsRegistry_ConcurrentRegistration(t *testing.T) {
	registry := NewMetricsRegistry()

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g := prometheus.NewGauge(prometheus.GaugeOpts{Name: "race_gauge", Help: "race"})
			errs <- registry.RegisterGauge("race", "race_gauge", g)
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
		}
	}
	assert.Equal(t, 1, succeeded)
}

func TestServer_Handler(t *testing.T) {
	registry := NewMetricsRegistry()
	registry.CoreMetrics().ConfigLookups.WithLabelValues("canonical").Inc()

	srv := httptest.NewServer(NewServer("", "", registry).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `mywallet_remote_config_lookups_total{kind="canonical"} 1`)

	resp, err = http.Get(srv.URL + "/health")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServer_StopWithoutStart(t *testing.T) {
	s := NewServer("127.0.0.1:0", "/metrics", NewMetricsRegistry())
	assert.NoError(t, s.Stop())
	assert.Equal(t, "http://127.0.0.1:0/metrics", s.Address())
}

func TestServer_ExpositionParses(t *testing.T) {
	registry := NewMetricsRegistry()
	core := registry.CoreMetrics()
	core.ConfigFetchAttempts.WithLabelValues("failure").Add(2)
	core.ConfigSynchronized.Set(1)

	srv := httptest.NewServer(NewServer("", "/metrics", registry).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	var parser expfmt.TextParser
	families, err := parser.TextToMetricFamilies(resp.Body)
	require.NoError(t, err)

	attempts := families["mywallet_remote_config_fetch_attempts_total"]
	require.NotNil(t, attempts)
	require.Len(t, attempts.GetMetric(), 1)
	assert.Equal(t, 2.0, attempts.GetMetric()[0].GetCounter().GetValue())

	synced := families["mywallet_remote_config_synchronized"]
	require.NotNil(t, synced)
	assert.Equal(t, 1.0, synced.GetMetric()[0].GetGauge().GetValue())
}
