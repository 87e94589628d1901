// Package config loads dynform settings from defaults, an optional YAML file
// and DYNFORM_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "DYNFORM_"

// Config is the complete server and CLI configuration.
type Config struct {
	HTTP    HTTPConfig    `yaml:"http"`
	Storage StorageConfig `yaml:"storage"`
	Log     LogConfig     `yaml:"log"`
	NATS    NATSConfig    `yaml:"nats"`
	Watch   WatchConfig   `yaml:"watch"`
	Client  ClientConfig  `yaml:"client"`
}

// HTTPConfig configures the API server.
type HTTPConfig struct {
	// Addr is the listen address.
	Addr string `yaml:"addr"`
	// MaxUploadBytes caps schema uploads.
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`
	// MaxBodyBytes caps every other request body.
	MaxBodyBytes int64 `yaml:"max_body_bytes"`
	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	RateLimit       RateLimit     `yaml:"rate_limit"`
}

// RateLimit applies per client IP to mutating endpoints. Requests == 0
// disables limiting.
type RateLimit struct {
	Requests int           `yaml:"requests"`
	Window   time.Duration `yaml:"window"`
	Burst    int           `yaml:"burst"`
}

// StorageConfig configures the JSONL data directory.
type StorageConfig struct {
	DataDir     string `yaml:"data_dir"`
	SeedDefault bool   `yaml:"seed_default"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `yaml:"level"`
	// Format is "text" (colourised when attached to a terminal) or "json".
	Format string `yaml:"format"`
}

// NATSConfig configures event publishing. An empty URL disables it.
type NATSConfig struct {
	URL string `yaml:"url"`
}

// WatchConfig names a schema file republished whenever it changes.
type WatchConfig struct {
	File     string        `yaml:"file"`
	Debounce time.Duration `yaml:"debounce"`
}

// ClientConfig configures the CLI commands that talk to a running server.
type ClientConfig struct {
	ServerURL string `yaml:"server_url"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Addr:            ":5000",
			MaxUploadBytes:  1 << 20,
			MaxBodyBytes:    1 << 20,
			ShutdownTimeout: 10 * time.Second,
			RateLimit:       RateLimit{Requests: 60, Window: time.Minute, Burst: 10},
		},
		Storage: StorageConfig{DataDir: "data", SeedDefault: true},
		Log:     LogConfig{Level: "info", Format: "text"},
		Watch:   WatchConfig{Debounce: 250 * time.Millisecond},
		Client:  ClientConfig{ServerURL: "http://localhost:5000"},
	}
}

// Load builds a Config from defaults, the YAML file at path (skipped when
// path is empty) and the process environment.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from DYNFORM_* variables resolved by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	num := func(key string, dst *int64) {
		if v, ok := lookup(EnvPrefix + key); ok {
			n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("config: %s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = n
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v, ok := lookup(EnvPrefix + key); ok {
			d, err := time.ParseDuration(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("config: %s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = d
		}
	}
	flag := func(key string, dst *bool) {
		if v, ok := lookup(EnvPrefix + key); ok {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("config: %s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = b
		}
	}

	str("HTTP_ADDR", &c.HTTP.Addr)
	num("MAX_UPLOAD_BYTES", &c.HTTP.MaxUploadBytes)
	num("MAX_BODY_BYTES", &c.HTTP.MaxBodyBytes)
	var requests, burst int64 = int64(c.HTTP.RateLimit.Requests), int64(c.HTTP.RateLimit.Burst)
	num("RATE_LIMIT_REQUESTS", &requests)
	num("RATE_LIMIT_BURST", &burst)
	c.HTTP.RateLimit.Requests, c.HTTP.RateLimit.Burst = int(requests), int(burst)
	dur("RATE_LIMIT_WINDOW", &c.HTTP.RateLimit.Window)
	str("DATA_DIR", &c.Storage.DataDir)
	flag("SEED_DEFAULT", &c.Storage.SeedDefault)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	str("NATS_URL", &c.NATS.URL)
	str("WATCH_FILE", &c.Watch.File)
	str("SERVER_URL", &c.Client.ServerURL)
	return errors.Join(errs...)
}

// Validate reports settings that cannot work.
func (c *Config) Validate() error {
	var errs []error
	if c.HTTP.Addr == "" {
		errs = append(errs, errors.New("config: http.addr is required"))
	}
	if c.Storage.DataDir == "" {
		errs = append(errs, errors.New("config: storage.data_dir is required"))
	}
	if c.HTTP.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("config: http.max_upload_bytes must be positive"))
	}
	if c.HTTP.RateLimit.Requests < 0 || (c.HTTP.RateLimit.Requests > 0 && c.HTTP.RateLimit.Window <= 0) {
		errs = append(errs, errors.New("config: http.rate_limit needs a positive window"))
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("config: log.format %q must be text or json", c.Log.Format))
	}
	return errors.Join(errs...)
}

// SlogLevel parses Level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("config: log.level: %w", err)
	}
	return level, nil
}
