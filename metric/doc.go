// Package metric provides Prometheus-based metrics collection and an HTTP
// server exposing them.
//
// # Architecture
//
//  1. Core metrics: remote configuration and experiment counters registered
//     automatically (Metrics type)
//  2. Component registry: duplicate-safe registration of component metrics
//     (MetricsRegistrar interface)
//  3. HTTP server: /metrics endpoint with a /health check (Server type)
//
// # Basic Usage
//
//	registry := metric.NewMetricsRegistry()
//	server := metric.NewServer(":9090", "/metrics", registry)
//	go func() {
//	    if err := server.Start(); err != nil {
//	        logger.Error("metrics server stopped", "error", err)
//	    }
//	}()
//	defer server.Stop()
//
// Components receive the registry and register their own collectors keyed by
// component and metric name:
//
//	nodes := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
//	    Namespace: metric.Namespace,
//	    Subsystem: "tag",
//	    Name:      "nodes",
//	    Help:      "Tags currently cached by the language",
//	}, func() float64 { return float64(lang.Len()) })
//	err := registry.RegisterGaugeFunc("language", "nodes", nodes)
//
// Registering the same component/name pair twice returns an invalid-class error.
package metric
