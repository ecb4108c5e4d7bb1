package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Load reads configuration from a YAML file and applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		if err := cfg.parseFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.finalize(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Address:      ":8080",
			ReadTimeout:  Duration{Duration: 15 * time.Second},
			WriteTimeout: Duration{Duration: 15 * time.Second},
			IdleTimeout:  Duration{Duration: 60 * time.Second},
		},
		Reports: ReportsConfig{
			Enabled:      true,
			Backend:      "memory",
			MaxBodyBytes: 64 * 1024,
			MaxStored:    1000,
			Forward: ForwardConfig{
				Timeout: Duration{Duration: 5 * time.Second},
				Retry: RetryConfig{
					MaxAttempts:     5,
					InitialInterval: Duration{Duration: 1 * time.Second},
					MaxInterval:     Duration{Duration: 2 * time.Minute},
					Multiplier:      2.0,
				},
				Breaker: BreakerConfig{
					Enabled:             true,
					MaxRequests:         1,
					Interval:            Duration{Duration: 60 * time.Second},
					Timeout:             Duration{Duration: 30 * time.Second},
					ConsecutiveFailures: 5,
				},
			},
		},
		RateLimit: RateLimitConfig{
			Enabled: true,
			Limit:   120,
			Window:  Duration{Duration: 1 * time.Minute},
		},
	}
}

func (c *Config) parseFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// finalize applies defaults and validates the configuration. The header
// policy is compiled here so a bad value aborts startup instead of
// surfacing during request handling.
func (c *Config) finalize() error {
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Logging.Environment == "" {
		c.Logging.Environment = "production"
	}
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}

	switch c.Reports.Backend {
	case "", "memory":
		c.Reports.Backend = "memory"
	case "postgres":
		if c.Reports.PostgresURL == "" {
			return fmt.Errorf("reports.backend is postgres but reports.postgres_url is empty")
		}
		if c.Reports.PostgresTable == "" {
			c.Reports.PostgresTable = "csp_reports"
		}
	case "mongodb":
		if c.Reports.MongoDBURL == "" {
			return fmt.Errorf("reports.backend is mongodb but reports.mongodb_url is empty")
		}
		if c.Reports.MongoDBDatabase == "" {
			c.Reports.MongoDBDatabase = "shieldstack"
		}
		if c.Reports.MongoDBCollection == "" {
			c.Reports.MongoDBCollection = "csp_reports"
		}
	default:
		return fmt.Errorf("unknown reports backend %q (memory, postgres, mongodb)", c.Reports.Backend)
	}

	if c.Reports.MaxBodyBytes <= 0 {
		c.Reports.MaxBodyBytes = 64 * 1024
	}
	if c.Reports.MaxStored <= 0 {
		c.Reports.MaxStored = 1000
	}
	if c.RateLimit.Enabled && c.RateLimit.Limit <= 0 {
		return fmt.Errorf("rate_limit.limit must be positive when rate limiting is enabled")
	}

	if _, err := c.Headers.BuildPolicy(); err != nil {
		return fmt.Errorf("invalid header policy: %w", err)
	}

	return nil
}
