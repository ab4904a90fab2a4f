// Package config loads the process configuration.
//
// Loader merges JSON layers over Default, in order, with nested objects
// merged and null values ignored. Each layer is checked against an embedded
// JSON schema before merging. MYWALLET_* environment variables are applied
// last, then the result is validated:
//
//	loader := config.NewLoader()
//	loader.AddLayer("configs/base.json")
//	loader.AddLayer("configs/local.json")
//	cfg, err := loader.Load()
//
// A layer looks like
//
//	{
//	  "log": {"level": "debug", "format": "text"},
//	  "nats": {"urls": ["nats://localhost:4222"], "bucket": {"name": "remote-config"}},
//	  "remote_config": {"source": "kv", "retry_base": "1s", "retry_max": "5m"},
//	  "experiments": {"url": "https://example.org/experiments", "timeout": "10s"},
//	  "metrics": {"addr": ":9090"}
//	}
//
// Durations are Go duration strings ("1s", "5m"); numbers are nanoseconds.
//
// Environment overrides:
//
//	MYWALLET_LOG_LEVEL, MYWALLET_LOG_FORMAT, MYWALLET_LANGUAGE_SCHEMA,
//	MYWALLET_NATS_URLS (comma separated), MYWALLET_NATS_USERNAME,
//	MYWALLET_NATS_PASSWORD, MYWALLET_NATS_TOKEN, MYWALLET_NATS_BUCKET,
//	MYWALLET_REMOTE_CONFIG_SOURCE, MYWALLET_REMOTE_CONFIG_FILE,
//	MYWALLET_REMOTE_CONFIG_OVERRIDES_KEY, MYWALLET_REMOTE_CONFIG_KEY_CACHE_SIZE,
//	MYWALLET_EXPERIMENTS_URL, MYWALLET_EXPERIMENTS_TIMEOUT, MYWALLET_METRICS_ADDR
//
// SafeConfig guards a Config for concurrent readers; Get returns a copy and
// Update validates before swapping.
package config
