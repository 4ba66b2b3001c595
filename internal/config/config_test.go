package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/boddenberg/controle-financeiro-go/internal/config"
)

func validConfig() *config.Config {
	return &config.Config{
		Port:           8080,
		LogLevel:       "info",
		DataBackend:    config.BackendSupabase,
		SQLiteDBPath:   "./data/controle.db",
		EnvFile:        ".env",
		HTTPTimeout:    10 * time.Second,
		MaxRetries:     3,
		InitialBackoff: 100 * time.Millisecond,
		MaxConcurrency: 20,
		ReadinessTTL:   30 * time.Second,
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg := config.Load()

	if cfg.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Port)
	}
	if cfg.DataBackend != config.BackendSupabase {
		t.Errorf("expected supabase backend, got %s", cfg.DataBackend)
	}
	if cfg.ReadinessTTL != 30*time.Second {
		t.Errorf("expected readiness TTL 30s, got %s", cfg.ReadinessTTL)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DATA_BACKEND", "SQLite")
	t.Setenv("HTTP_TIMEOUT", "3s")
	t.Setenv("MAX_RETRIES", "0")

	cfg := config.Load()

	if cfg.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Port)
	}
	if cfg.DataBackend != config.BackendSQLite {
		t.Errorf("expected sqlite backend, got %s", cfg.DataBackend)
	}
	if cfg.HTTPTimeout != 3*time.Second {
		t.Errorf("expected 3s timeout, got %s", cfg.HTTPTimeout)
	}
	if cfg.MaxRetries != 0 {
		t.Errorf("expected 0 retries, got %d", cfg.MaxRetries)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*config.Config) {}},
		{name: "port out of range", mutate: func(c *config.Config) { c.Port = 70000 }, wantErr: "invalid port"},
		{name: "unknown backend", mutate: func(c *config.Config) { c.DataBackend = "sheets" }, wantErr: "invalid data backend"},
		{name: "sqlite without path", mutate: func(c *config.Config) {
			c.DataBackend = config.BackendSQLite
			c.SQLiteDBPath = ""
		}, wantErr: "SQLite database path"},
		{name: "bad log level", mutate: func(c *config.Config) { c.LogLevel = "verbose" }, wantErr: "invalid log level"},
		{name: "zero concurrency", mutate: func(c *config.Config) { c.MaxConcurrency = 0 }, wantErr: "max concurrency"},
		{name: "memory needs no env file", mutate: func(c *config.Config) {
			c.DataBackend = config.BackendMemory
			c.EnvFile = ""
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestCredentials_MissingFile(t *testing.T) {
	t.Setenv(config.KeySupabaseURL, "")
	t.Setenv(config.KeySupabaseKey, "")

	creds, err := config.LoadCredentials(filepath.Join(t.TempDir(), ".env"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if creds.FileFound || creds.Configured() {
		t.Errorf("expected unconfigured credentials, got %+v", creds)
	}
}

func TestCredentials_SaveThenLoad(t *testing.T) {
	t.Setenv(config.KeySupabaseURL, "")
	t.Setenv(config.KeySupabaseKey, "")
	path := filepath.Join(t.TempDir(), "conf", ".env")

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("OTHER=keep\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	if err := config.SaveCredentials(path, "https://abc.supabase.co", "secret"); err != nil {
		t.Fatalf("save: %v", err)
	}

	creds, err := config.LoadCredentials(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !creds.Configured() || creds.URL != "https://abc.supabase.co" || creds.Key != "secret" {
		t.Errorf("unexpected credentials %+v", creds)
	}

	raw, _ := os.ReadFile(path)
	if !strings.Contains(string(raw), "OTHER=") {
		t.Errorf("expected unrelated keys to be kept, got %q", raw)
	}
}

func TestCredentials_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := config.SaveCredentials(path, "https://file.supabase.co", "file-key"); err != nil {
		t.Fatalf("save: %v", err)
	}
	t.Setenv(config.KeySupabaseURL, "https://env.supabase.co")
	t.Setenv(config.KeySupabaseKey, "")

	creds, err := config.LoadCredentials(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if creds.URL != "https://env.supabase.co" || creds.Key != "file-key" {
		t.Errorf("unexpected credentials %+v", creds)
	}
}

func TestCredentials_EmptyValuesAreNotConfigured(t *testing.T) {
	t.Setenv(config.KeySupabaseURL, "")
	t.Setenv(config.KeySupabaseKey, "")
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("SUPABASE_URL=https://x.supabase.co\nSUPABASE_KEY=\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	creds, err := config.LoadCredentials(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if creds.Configured() {
		t.Errorf("expected empty key to leave the store unconfigured, got %+v", creds)
	}
}
