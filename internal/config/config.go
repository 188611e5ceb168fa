// Package config loads the bedshift daemon configuration.
package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/bedshift/internal/foundation/errors"
)

// CurrentVersion is the only configuration version accepted.
const CurrentVersion = "1.0"

// Config is the daemon configuration file.
type Config struct {
	Version  string         `yaml:"version"`
	Storage  StorageConfig  `yaml:"storage"`
	HTTP     HTTPConfig     `yaml:"http"`
	Triggers TriggersConfig `yaml:"triggers"`
	Daemon   DaemonConfig   `yaml:"daemon"`
	Retry    RetryConfig    `yaml:"retry"`
	NATS     NATSConfig     `yaml:"nats"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	// Locale is a BCP 47 tag selecting the notice language.
	Locale string `yaml:"locale"`

	warnings []string
}

// StorageConfig locates the SQLite databases.
type StorageConfig struct {
	StateDB   string `yaml:"state_db"`   // schedule state (key/value)
	JournalDB string `yaml:"journal_db"` // adherence event history
}

// HTTPConfig configures the loopback API.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// TriggersConfig configures the wall-clock trigger facility.
type TriggersConfig struct {
	// ExactAllowed grants the exact-delivery capability at startup. Defaults to true.
	ExactAllowed *bool `yaml:"exact_allowed,omitempty"`
	// Location is the IANA zone bedtimes are interpreted in. Empty means local time.
	Location string `yaml:"location,omitempty"`
}

// DaemonConfig configures the daemon's own timers.
type DaemonConfig struct {
	ResumeInterval  string `yaml:"resume_interval"`  // cadence of the pending-registration retry check
	ShutdownTimeout string `yaml:"shutdown_timeout"` // bound on graceful stop
}

// RetryConfig shapes the backoff between failed registration retries.
type RetryConfig struct {
	Backoff      RetryBackoffMode `yaml:"backoff"`
	InitialDelay string           `yaml:"initial_delay"`
	MaxDelay     string           `yaml:"max_delay"`
	MaxRetries   int              `yaml:"max_retries"`
}

// NATSConfig configures publishing of adherence events.
type NATSConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
	Stream        string `yaml:"stream"`
	KVBucket      string `yaml:"kv_bucket"`
}

// LoggingConfig configures slog output.
type LoggingConfig struct {
	Level  LogLevel  `yaml:"level"`
	Format LogFormat `yaml:"format"`
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

var (
	// ErrNotFound indicates the configuration file does not exist.
	ErrNotFound = errors.ConfigError("configuration file not found").Build()
	// ErrExists indicates Init would overwrite an existing file.
	ErrExists = errors.ConfigError("configuration file already exists (use --force to overwrite)").Build()
	// ErrInvalid indicates the configuration failed parsing or validation.
	ErrInvalid = errors.ConfigError("invalid configuration").Build()
)

// Load reads, expands, normalizes, defaults and validates a configuration file.
// A .env file in the working directory is loaded first.
func Load(path string) (*Config, error) {
	// Not having a .env file is the normal case.
	_ = loadEnvFile()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, ErrNotFound.WithContext("path", path)
	}
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryConfig, "failed to read config file").
			WithContext("path", path).Build()
	}
	cfg, err := Parse(data)
	if err != nil {
		if ce, ok := errors.AsClassified(err); ok {
			return nil, ce.WithContext("path", path)
		}
		return nil, err
	}
	return cfg, nil
}

// Parse is Load without the file system: it expands ${VAR} references and
// then normalizes, defaults and validates.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, ErrInvalid.WithContext("stage", "parse").Wrap(err)
	}
	if cfg.Version != CurrentVersion {
		return nil, ErrInvalid.WithContext("version", cfg.Version).WithContext("expected", CurrentVersion)
	}

	cfg.warnings = Normalize(&cfg)
	ApplyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Warnings returns the notes produced while normalizing the file.
func (c *Config) Warnings() []string {
	return append([]string(nil), c.warnings...)
}

// Default returns a fully defaulted configuration.
func Default() *Config {
	cfg := &Config{Version: CurrentVersion}
	ApplyDefaults(cfg)
	return cfg
}

// ExactAllowed reports the startup exact capability.
func (c *Config) ExactAllowed() bool {
	return c.Triggers.ExactAllowed == nil || *c.Triggers.ExactAllowed
}

// LoadLocation resolves the configured time zone.
func (c *Config) LoadLocation() (*time.Location, error) {
	if c.Triggers.Location == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Triggers.Location)
	if err != nil {
		return nil, ErrInvalid.WithContext("triggers.location", c.Triggers.Location).Wrap(err)
	}
	return loc, nil
}

// ResumeInterval is the parsed daemon.resume_interval.
func (c *Config) ResumeInterval() time.Duration {
	return mustDuration(c.Daemon.ResumeInterval, DefaultResumeInterval)
}

// ShutdownTimeout is the parsed daemon.shutdown_timeout.
func (c *Config) ShutdownTimeout() time.Duration {
	return mustDuration(c.Daemon.ShutdownTimeout, DefaultShutdownTimeout)
}

func mustDuration(raw string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
