package config

import (
	"errors"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of environment variable overrides.
const EnvPrefix = "SKETCHSTORM_"

// Config is the resolved sketchstorm configuration.
type Config struct {
	History HistoryConfig `mapstructure:"history" yaml:"history"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// HistoryConfig configures the undo/redo history.
type HistoryConfig struct {
	// MaxEntries bounds the undo stack.
	MaxEntries int `mapstructure:"max_entries" yaml:"max_entries"`

	// SettleDelay is the pause between a restore and the tool reset callback.
	SettleDelay time.Duration `mapstructure:"settle_delay" yaml:"settle_delay"`

	// Ephemeral identifies preview objects that are never recorded.
	Ephemeral EphemeralConfig `mapstructure:"ephemeral" yaml:"ephemeral"`
}

// EphemeralConfig is the type and fill pair of an ephemeral indicator.
type EphemeralConfig struct {
	Type string `mapstructure:"type" yaml:"type"`
	Fill string `mapstructure:"fill" yaml:"fill"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// MetricsConfig configures Prometheus collectors.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled" yaml:"enabled"`
	Namespace string `mapstructure:"namespace" yaml:"namespace"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		History: HistoryConfig{
			MaxEntries:  30,
			SettleDelay: 100 * time.Millisecond,
			Ephemeral: EphemeralConfig{
				Type: "circle",
				Fill: "rgba(255,0,0,0.3)",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Namespace: "sketchstorm",
		},
	}
}

var metricName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Validate checks every setting and returns all failures joined.
func (c Config) Validate() error {
	var errs []error
	fail := func(path, msg string, value any) {
		errs = append(errs, &ValidationError{Path: path, Message: msg, Value: value})
	}

	if c.History.MaxEntries <= 0 {
		fail("history.max_entries", "must be positive", c.History.MaxEntries)
	}
	if c.History.SettleDelay < 0 {
		fail("history.settle_delay", "must not be negative", c.History.SettleDelay)
	}
	if c.History.Ephemeral.Type == "" {
		fail("history.ephemeral.type", "must not be empty", c.History.Ephemeral.Type)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		fail("logging.level", "must be one of debug, info, warn, error", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		fail("logging.format", "must be text or json", c.Logging.Format)
	}

	if c.Metrics.Enabled && !metricName.MatchString(c.Metrics.Namespace) {
		fail("metrics.namespace", "must be a valid metric name prefix", c.Metrics.Namespace)
	}

	return errors.Join(errs...)
}

// YAML renders the configuration as a YAML document.
func (c Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}
