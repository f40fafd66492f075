// Package config loads statetree settings from the environment.
package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/caarlos0/env/v11"
)

// Config holds the settings the CLI reads from the environment. Command-line
// flags override them.
type Config struct {
	// DB is the default journal path for run and trace.
	DB string `env:"STATETREE_DB"`

	// Format is the default output format, "text" or "json".
	Format string `env:"STATETREE_FORMAT" envDefault:"text"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `env:"STATETREE_LOG_LEVEL" envDefault:"info"`

	// ServiceName is reported as the OpenTelemetry service.name.
	ServiceName string `env:"STATETREE_SERVICE_NAME" envDefault:"statetree"`

	// OTELEndpoint is the OTLP/HTTP endpoint URL. Empty disables tracing.
	OTELEndpoint string `env:"STATETREE_OTEL_ENDPOINT"`

	// OTELEnabled turns tracing off even when an endpoint is set.
	OTELEnabled bool `env:"STATETREE_OTEL_ENABLED" envDefault:"true"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load parses Config from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if _, err := cfg.Level(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Level returns LogLevel as a slog.Level.
func (c Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(c.LogLevel))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	return level, nil
}

// TracingEnabled reports whether an OTLP exporter should be installed.
func (c Config) TracingEnabled() bool {
	return c.OTELEnabled && c.OTELEndpoint != ""
}
