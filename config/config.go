package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"github.com/DensusHere/mywallet-sub001/errors"
)

// Remote configuration sources.
const (
	SourceKV   = "kv"   // JSON document in a JetStream KV bucket
	SourceFile = "file" // JSON document on disk, served statically
)

// DefaultEnvPrefix prefixes every environment override.
const DefaultEnvPrefix = "MYWALLET"

//go:embed config.schema.json
var documentSchema []byte

var schemaLoader = gojsonschema.NewBytesLoader(documentSchema)

// Config is the complete process configuration.
type Config struct {
	Log          LogConfig          `json:"log"`
	Language     LanguageConfig     `json:"language"`
	NATS         NATSConfig         `json:"nats"`
	RemoteConfig RemoteConfigConfig `json:"remote_config"`
	Experiments  ExperimentsConfig  `json:"experiments"`
	Metrics      MetricsConfig      `json:"metrics"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
}

// LanguageConfig locates the tag graph. An empty Schema selects the bundled
// wallet namespace.
type LanguageConfig struct {
	Schema string `json:"schema,omitempty"`
}

// NATSConfig defines NATS connection settings and the KV bucket holding the
// remote configuration and overrides.
type NATSConfig struct {
	URLs          []string     `json:"urls,omitempty"`
	MaxReconnects int          `json:"max_reconnects,omitempty"`
	ReconnectWait Duration     `json:"reconnect_wait,omitempty"`
	Username      string       `json:"username,omitempty"`
	Password      string       `json:"password,omitempty"`
	Token         string       `json:"token,omitempty"`
	Bucket        BucketConfig `json:"bucket"`
}

// BucketConfig defines a KV bucket.
type BucketConfig struct {
	Name     string   `json:"name"`
	TTL      Duration `json:"ttl,omitempty"` // 0 = no expiration
	History  int      `json:"history"`
	Replicas int      `json:"replicas,omitempty"`
}

// RemoteConfigConfig tunes the overlay.
type RemoteConfigConfig struct {
	Source       string   `json:"source"`
	File         string   `json:"file,omitempty"`
	DocumentKey  string   `json:"document_key,omitempty"`
	OverridesKey string   `json:"overrides_key,omitempty"`
	RetryBase    Duration `json:"retry_base"`
	RetryMax     Duration `json:"retry_max"`
	KeyCacheSize int      `json:"key_cache_size"`
}

// ExperimentsConfig configures the assignments client. An empty URL disables
// experiments.
type ExperimentsConfig struct {
	URL       string   `json:"url,omitempty"`
	Timeout   Duration `json:"timeout"`
	RateLimit float64  `json:"rate_limit"`
	Burst     int      `json:"burst"`
}

// MetricsConfig configures the Prometheus endpoint. An empty Addr disables it.
type MetricsConfig struct {
	Addr string `json:"addr,omitempty"`
	Path string `json:"path"`
}

// Duration is a time.Duration encoded as a Go duration string. Numbers are
// read as nanoseconds.
type Duration time.Duration

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch v := v.(type) {
	case string:
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		*d = Duration(parsed)
	case float64:
		*d = Duration(v)
	case nil:
	default:
		return fmt.Errorf("invalid duration %v", v)
	}
	return nil
}

// Default returns the configuration used when no layer sets a field.
func Default() *Config {
	return &Config{
		Log: LogConfig{Level: "info", Format: "json"},
		NATS: NATSConfig{
			URLs:          []string{"nats://localhost:4222"},
			MaxReconnects: -1,
			ReconnectWait: Duration(2 * time.Second),
			Bucket:        BucketConfig{Name: "remote-config", History: 5},
		},
		RemoteConfig: RemoteConfigConfig{
			Source:       SourceKV,
			RetryBase:    Duration(time.Second),
			RetryMax:     Duration(5 * time.Minute),
			KeyCacheSize: 1024,
		},
		Experiments: ExperimentsConfig{
			Timeout:   Duration(10 * time.Second),
			RateLimit: 1,
			Burst:     3,
		},
		Metrics: MetricsConfig{Path: "/metrics"},
	}
}

// Validate checks field values and cross-field requirements.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return invalid("log.level %q must be debug, info, warn or error", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		return invalid("log.format %q must be json or text", c.Log.Format)
	}

	rc := c.RemoteConfig
	switch rc.Source {
	case SourceKV:
		if len(c.NATS.URLs) == 0 {
			return invalid("nats.urls is required when remote_config.source is %q", SourceKV)
		}
		if c.NATS.Bucket.Name == "" {
			return invalid("nats.bucket.name is required when remote_config.source is %q", SourceKV)
		}
	case SourceFile:
		if rc.File == "" {
			return invalid("remote_config.file is required when remote_config.source is %q", SourceFile)
		}
	default:
		return invalid("remote_config.source %q must be %q or %q", rc.Source, SourceKV, SourceFile)
	}
	if rc.RetryBase <= 0 {
		return invalid("remote_config.retry_base must be positive")
	}
	if rc.RetryMax < rc.RetryBase {
		return invalid("remote_config.retry_max %s is below retry_base %s", rc.RetryMax.Std(), rc.RetryBase.Std())
	}
	if rc.KeyCacheSize <= 0 {
		return invalid("remote_config.key_cache_size must be positive")
	}

	if c.Experiments.URL != "" {
		if c.Experiments.Timeout <= 0 {
			return invalid("experiments.timeout must be positive")
		}
		if c.Experiments.RateLimit > 0 && c.Experiments.Burst < 1 {
			return invalid("experiments.burst must be at least 1 when rate_limit is set")
		}
	}

	if c.Metrics.Addr != "" && !strings.HasPrefix(c.Metrics.Path, "/") {
		return invalid("metrics.path %q must start with /", c.Metrics.Path)
	}
	return nil
}

func invalid(format string, args ...any) error {
	return errors.WrapInvalid(
		fmt.Errorf("%w: %s", errors.ErrInvalidConfig, fmt.Sprintf(format, args...)),
		"Config", "Validate", "validate configuration")
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	if c == nil {
		return &Config{}
	}
	clone := *c
	clone.NATS.URLs = append([]string(nil), c.NATS.URLs...)
	return &clone
}

// String renders the configuration as indented JSON with secrets masked.
func (c *Config) String() string {
	masked := c.Clone()
	for _, s := range []*string{&masked.NATS.Password, &masked.NATS.Token} {
		if *s != "" {
			*s = "***"
		}
	}
	data, _ := json.MarshalIndent(masked, "", "  ")
	return string(data)
}

// SafeConfig provides thread-safe access to configuration.
type SafeConfig struct {
	mu     sync.RWMutex
	config *Config
}

// NewSafeConfig wraps cfg; nil wraps the defaults.
func NewSafeConfig(cfg *Config) *SafeConfig {
	if cfg == nil {
		cfg = Default()
	}
	return &SafeConfig{config: cfg}
}

// Get returns a deep copy of the current configuration.
func (sc *SafeConfig) Get() *Config {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.config.Clone()
}

// Update validates cfg and makes it current.
func (sc *SafeConfig) Update(cfg *Config) error {
	if cfg == nil {
		return errors.WrapInvalid(errors.ErrMissingConfig, "SafeConfig", "Update", "check config")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.config = cfg.Clone()
	return nil
}

// Loader handles configuration loading with layers and overrides.
type Loader struct {
	layers     []string
	validation bool
	envPrefix  string
}

// NewLoader creates a loader with validation enabled and the MYWALLET prefix.
func NewLoader() *Loader {
	return &Loader{
		validation: true,
		envPrefix:  DefaultEnvPrefix,
	}
}

// AddLayer adds a configuration file layer. Later layers win.
func (l *Loader) AddLayer(path string) {
	l.layers = append(l.layers, path)
}

// EnableValidation enables or disables configuration validation.
func (l *Loader) EnableValidation(enable bool) {
	l.validation = enable
}

// SetEnvPrefix changes the environment override prefix.
func (l *Loader) SetEnvPrefix(prefix string) {
	l.envPrefix = prefix
}

// LoadFile loads configuration from a single file over the defaults.
func (l *Loader) LoadFile(path string) (*Config, error) {
	l.layers = []string{path}
	return l.Load()
}

// Load merges every layer over the defaults, applies environment overrides
// and validates the result.
func (l *Loader) Load() (*Config, error) {
	merged, err := toMap(Default())
	if err != nil {
		return nil, errors.Wrap(err, "Loader", "Load", "encode defaults")
	}

	for _, path := range l.layers {
		layer, err := loadRawJSON(path)
		if err != nil {
			return nil, errors.Wrap(err, "Loader", "Load", "load "+path)
		}
		merged = deepMergeMaps(merged, layer)
	}

	data, err := json.Marshal(merged)
	if err != nil {
		return nil, errors.Wrap(err, "Loader", "Load", "encode merged layers")
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, errors.WrapInvalid(err, "Loader", "Load", "decode merged layers")
	}

	if err := l.applyEnvOverrides(&cfg); err != nil {
		return nil, err
	}

	if l.validation {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return &cfg, nil
}

// loadRawJSON reads a layer and checks it against the configuration schema.
func loadRawJSON(path string) (map[string]any, error) {
	data, err := ReadFile(path)
	if err != nil {
		return nil, err
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.WrapInvalid(err, "Loader", "loadRawJSON", "parse JSON")
	}

	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewGoLoader(raw))
	if err != nil {
		return nil, errors.WrapInvalid(err, "Loader", "loadRawJSON", "run schema validation")
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: %s", errors.ErrInvalidConfig, strings.Join(msgs, "; ")),
			"Loader", "loadRawJSON", "validate against schema")
	}
	return raw, nil
}

func toMap(cfg *Config) (map[string]any, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// deepMergeMaps recursively merges two maps, with override taking precedence.
// Null values in override are ignored.
func deepMergeMaps(base, override map[string]any) map[string]any {
	result := make(map[string]any, len(base))
	for k, v := range base {
		result[k] = v
	}
	for k, v := range override {
		if v == nil {
			continue
		}
		if baseMap, ok := base[k].(map[string]any); ok {
			if overrideMap, ok := v.(map[string]any); ok {
				result[k] = deepMergeMaps(baseMap, overrideMap)
				continue
			}
		}
		result[k] = v
	}
	return result
}

// applyEnvOverrides applies <PREFIX>_* environment variables.
func (l *Loader) applyEnvOverrides(cfg *Config) error {
	strs := map[string]*string{
		"LOG_LEVEL":                   &cfg.Log.Level,
		"LOG_FORMAT":                  &cfg.Log.Format,
		"LANGUAGE_SCHEMA":             &cfg.Language.Schema,
		"NATS_USERNAME":               &cfg.NATS.Username,
		"NATS_PASSWORD":               &cfg.NATS.Password,
		"NATS_TOKEN":                  &cfg.NATS.Token,
		"NATS_BUCKET":                 &cfg.NATS.Bucket.Name,
		"REMOTE_CONFIG_SOURCE":        &cfg.RemoteConfig.Source,
		"REMOTE_CONFIG_FILE":          &cfg.RemoteConfig.File,
		"REMOTE_CONFIG_OVERRIDES_KEY": &cfg.RemoteConfig.OverridesKey,
		"EXPERIMENTS_URL":             &cfg.Experiments.URL,
		"METRICS_ADDR":                &cfg.Metrics.Addr,
	}
	for suffix, field := range strs {
		if val, ok := l.env(suffix); ok {
			*field = val
		}
	}

	if val, ok := l.env("NATS_URLS"); ok {
		cfg.NATS.URLs = strings.Split(val, ",")
	}
	if val, ok := l.env("REMOTE_CONFIG_KEY_CACHE_SIZE"); ok {
		n, err := strconv.Atoi(val)
		if err != nil {
			return errors.WrapInvalid(err, "Loader", "applyEnvOverrides", l.envPrefix+"_REMOTE_CONFIG_KEY_CACHE_SIZE")
		}
		cfg.RemoteConfig.KeyCacheSize = n
	}
	if val, ok := l.env("EXPERIMENTS_TIMEOUT"); ok {
		d, err := time.ParseDuration(val)
		if err != nil {
			return errors.WrapInvalid(err, "Loader", "applyEnvOverrides", l.envPrefix+"_EXPERIMENTS_TIMEOUT")
		}
		cfg.Experiments.Timeout = Duration(d)
	}
	return nil
}

// env returns a non-empty, well-formed override for suffix.
func (l *Loader) env(suffix string) (string, bool) {
	key := l.envPrefix + "_" + suffix
	val, ok := os.LookupEnv(key)
	if !ok || val == "" {
		return "", false
	}
	if err := validateEnvVar(key, val); err != nil {
		return "", false
	}
	return val, true
}

// SaveToFile writes the configuration as indented JSON, owner-readable only.
func (c *Config) SaveToFile(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.Wrap(err, "Config", "SaveToFile", "encode")
	}
	return safeWriteFile(path, data)
}
