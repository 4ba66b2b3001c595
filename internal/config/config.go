package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Data backends.
const (
	BackendSupabase = "supabase"
	BackendSQLite   = "sqlite"
	BackendMemory   = "memory"
)

// Config holds all server configuration.
// Values are loaded from environment variables with sensible defaults.
// Store credentials live in the env file instead, see LoadCredentials.
type Config struct {
	// Server
	Port     int
	LogLevel string

	// Storage
	DataBackend  string // supabase, sqlite or memory
	SQLiteDBPath string
	EnvFile      string // where SUPABASE_URL / SUPABASE_KEY are kept

	// HTTP client
	HTTPTimeout time.Duration

	// Resilience
	MaxRetries     int
	InitialBackoff time.Duration
	MaxConcurrency int

	// Cache
	ReadinessTTL time.Duration

	// Observability
	OTLPEndpoint string
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	v := viper.New()

	v.SetDefault("port", 8080)
	v.SetDefault("log_level", "info")
	v.SetDefault("data_backend", BackendSupabase)
	v.SetDefault("sqlite_db_path", "./data/controle.db")
	v.SetDefault("env_file", ".env")
	v.SetDefault("http_timeout", 10*time.Second)
	v.SetDefault("max_retries", 3)
	v.SetDefault("initial_backoff", 100*time.Millisecond)
	v.SetDefault("max_concurrency", 20)
	v.SetDefault("readiness_ttl", 30*time.Second)
	v.SetDefault("otel_exporter_otlp_endpoint", "")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return &Config{
		Port:     v.GetInt("port"),
		LogLevel: v.GetString("log_level"),

		DataBackend:  strings.ToLower(v.GetString("data_backend")),
		SQLiteDBPath: v.GetString("sqlite_db_path"),
		EnvFile:      v.GetString("env_file"),

		HTTPTimeout: v.GetDuration("http_timeout"),

		MaxRetries:     v.GetInt("max_retries"),
		InitialBackoff: v.GetDuration("initial_backoff"),
		MaxConcurrency: v.GetInt("max_concurrency"),

		ReadinessTTL: v.GetDuration("readiness_ttl"),

		OTLPEndpoint: v.GetString("otel_exporter_otlp_endpoint"),
	}
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	var errs []string

	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Sprintf("invalid port %d: must be between 1 and 65535", c.Port))
	}

	switch c.DataBackend {
	case BackendSupabase, BackendMemory:
	case BackendSQLite:
		if c.SQLiteDBPath == "" {
			errs = append(errs, "SQLite database path cannot be empty when using sqlite backend")
		}
	default:
		errs = append(errs, fmt.Sprintf("invalid data backend '%s': must be one of [%s %s %s]",
			c.DataBackend, BackendSupabase, BackendSQLite, BackendMemory))
	}

	if c.DataBackend == BackendSupabase && c.EnvFile == "" {
		errs = append(errs, "env file path cannot be empty when using supabase backend")
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("invalid log level '%s': must be debug, info, warn or error", c.LogLevel))
	}

	if c.HTTPTimeout <= 0 {
		errs = append(errs, "HTTP timeout must be positive")
	}
	if c.MaxRetries < 0 {
		errs = append(errs, "max retries cannot be negative")
	}
	if c.InitialBackoff <= 0 {
		errs = append(errs, "initial backoff must be positive")
	}
	if c.MaxConcurrency < 1 {
		errs = append(errs, "max concurrency must be at least 1")
	}
	if c.ReadinessTTL < 0 {
		errs = append(errs, "readiness TTL cannot be negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
