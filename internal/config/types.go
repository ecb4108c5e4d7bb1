package config

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration to support string based YAML decoding.
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses duration values expressed as Go-style strings or numbers interpreted as seconds.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		raw := strings.TrimSpace(value.Value)
		if raw == "" {
			d.Duration = 0
			return nil
		}
		parsed, err := time.ParseDuration(raw)
		if err == nil {
			d.Duration = parsed
			return nil
		}
		secs, convErr := time.ParseDuration(fmt.Sprintf("%ss", raw))
		if convErr == nil {
			d.Duration = secs
			return nil
		}
		return fmt.Errorf("invalid duration value %q: %w", raw, err)
	default:
		return fmt.Errorf("unsupported duration node kind: %v", value.Kind)
	}
}

// MarshalYAML renders the duration as a string to keep config edits human-friendly.
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.Duration.String(), nil
}

// Config holds application level configuration aggregated from file and environment variables.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
	Headers   HeadersConfig   `yaml:"headers"`
	Reports   ReportsConfig   `yaml:"reports"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Address            string   `yaml:"address"`
	ReadTimeout        Duration `yaml:"read_timeout"`
	WriteTimeout       Duration `yaml:"write_timeout"`
	IdleTimeout        Duration `yaml:"idle_timeout"`
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
	AdminAPIKey        string   `yaml:"admin_api_key"`
}

// LoggingConfig controls structured logging output.
type LoggingConfig struct {
	Level       string `yaml:"level"`
	Format      string `yaml:"format"`
	Environment string `yaml:"environment"`
}

// ReportsConfig controls CSP violation report ingestion.
type ReportsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Backend string `yaml:"backend"` // memory, postgres, or mongodb

	PostgresURL   string `yaml:"postgres_url"`
	PostgresTable string `yaml:"postgres_table"`

	MongoDBURL        string `yaml:"mongodb_url"`
	MongoDBDatabase   string `yaml:"mongodb_database"`
	MongoDBCollection string `yaml:"mongodb_collection"`

	// MaxBodyBytes caps the accepted report payload size.
	MaxBodyBytes int64 `yaml:"max_body_bytes"`
	// MaxStored caps the in-memory backend's retention.
	MaxStored int `yaml:"max_stored"`

	Forward ForwardConfig `yaml:"forward"`
}

// ForwardConfig controls webhook forwarding of ingested reports.
type ForwardConfig struct {
	URL     string            `yaml:"url"`
	Headers map[string]string `yaml:"headers"`
	Timeout Duration          `yaml:"timeout"`
	Retry   RetryConfig       `yaml:"retry"`
	Breaker BreakerConfig     `yaml:"breaker"`
}

// RetryConfig controls exponential backoff for report forwarding.
type RetryConfig struct {
	MaxAttempts     int      `yaml:"max_attempts"`
	InitialInterval Duration `yaml:"initial_interval"`
	MaxInterval     Duration `yaml:"max_interval"`
	Multiplier      float64  `yaml:"multiplier"`
}

// BreakerConfig configures the forwarding circuit breaker.
type BreakerConfig struct {
	Enabled             bool     `yaml:"enabled"`
	MaxRequests         uint32   `yaml:"max_requests"`
	Interval            Duration `yaml:"interval"`
	Timeout             Duration `yaml:"timeout"`
	ConsecutiveFailures uint32   `yaml:"consecutive_failures"`
}

// RateLimitConfig controls per-IP rate limiting on report ingestion.
type RateLimitConfig struct {
	Enabled bool     `yaml:"enabled"`
	Limit   int      `yaml:"limit"`
	Window  Duration `yaml:"window"`
}
