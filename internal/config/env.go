package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// applyEnvOverrides applies environment variable overrides to the config.
// Environment variables take precedence over YAML configuration.
// All env vars use the SHIELDSTACK_ prefix for namespace isolation.
func (c *Config) applyEnvOverrides() {
	// Server config
	setIfEnv(&c.Server.Address, "SHIELDSTACK_SERVER_ADDRESS")
	setIfEnv(&c.Server.AdminAPIKey, "SHIELDSTACK_ADMIN_API_KEY")
	if origins := os.Getenv("SHIELDSTACK_CORS_ALLOWED_ORIGINS"); origins != "" {
		c.Server.CORSAllowedOrigins = splitAndTrim(origins)
	}

	// Logging config
	setIfEnv(&c.Logging.Level, "SHIELDSTACK_LOG_LEVEL")
	setIfEnv(&c.Logging.Format, "SHIELDSTACK_LOG_FORMAT")
	setIfEnv(&c.Logging.Environment, "SHIELDSTACK_ENVIRONMENT")

	// Report ingestion config
	setBoolIfEnv(&c.Reports.Enabled, "SHIELDSTACK_REPORTS_ENABLED")
	setIfEnv(&c.Reports.Backend, "SHIELDSTACK_REPORTS_BACKEND")
	setIfEnv(&c.Reports.PostgresURL, "SHIELDSTACK_REPORTS_POSTGRES_URL")
	setIfEnv(&c.Reports.PostgresTable, "SHIELDSTACK_REPORTS_POSTGRES_TABLE")
	setIfEnv(&c.Reports.MongoDBURL, "SHIELDSTACK_REPORTS_MONGODB_URL")
	setIfEnv(&c.Reports.MongoDBDatabase, "SHIELDSTACK_REPORTS_MONGODB_DATABASE")
	setIfEnv(&c.Reports.MongoDBCollection, "SHIELDSTACK_REPORTS_MONGODB_COLLECTION")
	setIfEnv(&c.Reports.Forward.URL, "SHIELDSTACK_REPORTS_FORWARD_URL")
	setDurationIfEnv(&c.Reports.Forward.Timeout, "SHIELDSTACK_REPORTS_FORWARD_TIMEOUT")

	// Rate limit config
	setBoolIfEnv(&c.RateLimit.Enabled, "SHIELDSTACK_RATE_LIMIT_ENABLED")
	setIntIfEnv(&c.RateLimit.Limit, "SHIELDSTACK_RATE_LIMIT")
	setDurationIfEnv(&c.RateLimit.Window, "SHIELDSTACK_RATE_LIMIT_WINDOW")
}

func setIfEnv(target *string, key string) {
	if value := os.Getenv(key); value != "" {
		*target = value
	}
}

func setBoolIfEnv(target *bool, key string) {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func setIntIfEnv(target *int, key string) {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func setDurationIfEnv(target *Duration, key string) {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			target.Duration = parsed
		}
	}
}

func splitAndTrim(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
