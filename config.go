package driftwatch

import (
	"fmt"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config defines engine configuration.
type Config struct {
	// WindowSize is the number of recent samples the fixed sliding window
	// covers. Ignored when HalfLife is set. Default: 100.
	WindowSize int `yaml:"window_size"`

	// HalfLife, when positive, selects the decay-weighted tracker instead
	// of the fixed window: the number of samples after which an
	// observation's weight has halved. Default: 0 (fixed window).
	HalfLife int `yaml:"half_life"`

	// Sensitivity is the initial anomaly threshold: the multiple of
	// standard deviation beyond which a sample is flagged. Default: 3.0.
	Sensitivity float64 `yaml:"sensitivity"`

	// WarmupCount is the minimum number of samples the tracker must see
	// before anomalies can fire. Default: 20.
	WarmupCount int `yaml:"warmup_count"`

	// ChannelCapacity bounds each event-channel subscription buffer. When
	// full the oldest unconsumed item is evicted. Default: 1000.
	ChannelCapacity int `yaml:"channel_capacity"`

	// FanOut allows multiple consumers, each receiving every classified
	// sample. When false the hub accepts a single subscription.
	// Default: false.
	FanOut bool `yaml:"fan_out"`

	// Journal configures the optional SQLite anomaly journal.
	// If nil or Enabled is false, no journal is kept.
	Journal *JournalConfig `yaml:"journal,omitempty"`

	// Archive configures optional export of journal batches to S3.
	// If nil or Enabled is false, nothing is exported.
	Archive *ArchiveConfig `yaml:"archive,omitempty"`

	// Redis configures the optional Redis publisher sink.
	// If nil or Enabled is false, nothing is published.
	Redis *RedisSinkConfig `yaml:"redis,omitempty"`

	// HTTP configures the control and streaming API server.
	HTTP HTTPConfig `yaml:"http"`
}

// Duration is a time.Duration that round-trips through YAML in the usual
// "5s" / "2m30s" form.
type Duration time.Duration

// Duration returns the wrapped time.Duration.
func (d Duration) Duration() time.Duration { return time.Duration(d) }

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// HTTPConfig groups HTTP server settings.
type HTTPConfig struct {
	// Enabled enables the HTTP API server. Default: false.
	Enabled bool `yaml:"enabled"`

	// Port is the port for the HTTP API server. Default: 8099.
	Port int `yaml:"port"`

	// APIKeys, when non-empty, are required on control endpoints via the
	// Authorization header.
	APIKeys []string `yaml:"api_keys,omitempty"`

	// RemoteWriteEnabled enables the Prometheus remote-write ingestion
	// endpoint. Default: false.
	RemoteWriteEnabled bool `yaml:"remote_write_enabled"`

	// WriteTimeout for WebSocket writes. Default: 10s.
	WriteTimeout Duration `yaml:"write_timeout"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		WindowSize:      100,
		HalfLife:        0,
		Sensitivity:     3.0,
		WarmupCount:     20,
		ChannelCapacity: 1000,
		FanOut:          false,
		HTTP: HTTPConfig{
			Enabled:      false,
			Port:         8099,
			WriteTimeout: Duration(10 * time.Second),
		},
	}
}

// Validate checks the configuration domain. Invalid values are rejected with
// a ParameterError; nothing is silently clamped.
func (c Config) Validate() error {
	if c.WindowSize < 0 {
		return newParameterError("window_size", c.WindowSize, "must be non-negative")
	}
	if c.HalfLife < 0 {
		return newParameterError("half_life", c.HalfLife, "must be non-negative")
	}
	if c.HalfLife == 0 && c.WindowSize == 0 {
		return newParameterError("window_size", c.WindowSize, "window_size or half_life required")
	}
	if err := validateSensitivity(c.Sensitivity); err != nil {
		return err
	}
	if c.WarmupCount < 0 {
		return newParameterError("warmup_count", c.WarmupCount, "must be non-negative")
	}
	if c.ChannelCapacity <= 0 {
		return newParameterError("channel_capacity", c.ChannelCapacity, "must be positive")
	}
	if c.HTTP.Enabled && (c.HTTP.Port <= 0 || c.HTTP.Port > 65535) {
		return newParameterError("http.port", c.HTTP.Port, "must be in 1..65535")
	}
	return nil
}

// validateSensitivity checks a sensitivity value: finite and non-negative.
func validateSensitivity(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return newParameterError("sensitivity", v, "must be finite and non-negative")
	}
	return nil
}

// LoadConfig reads a YAML configuration file, applying defaults for omitted
// fields.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
