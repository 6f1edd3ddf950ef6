package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	if err == nil {
		t.Fatal("expected error for explicit missing config file")
	}

	// Without an explicit path a missing file falls back to defaults.
	cwd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(cwd)

	cfg, err = Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.App.Name != "tldwatch" {
		t.Errorf("app.name = %q", cfg.App.Name)
	}
	if cfg.API.CacheTTL != time.Hour {
		t.Errorf("api.cache_ttl = %s", cfg.API.CacheTTL)
	}
	if cfg.API.RetryDelay != 5*time.Second {
		t.Errorf("api.retry_delay = %s", cfg.API.RetryDelay)
	}
	if cfg.Server.Addr != ":8080" {
		t.Errorf("server.addr = %q", cfg.Server.Addr)
	}
	if cfg.Scheduler.Interval != time.Hour {
		t.Errorf("scheduler.interval = %s", cfg.Scheduler.Interval)
	}
	if cfg.Monitoring.SnapshotInterval != 60*time.Second {
		t.Errorf("monitoring.snapshot_interval = %s", cfg.Monitoring.SnapshotInterval)
	}
	if cfg.Monitoring.MaxErrorEvents != 1000 {
		t.Errorf("monitoring.max_error_events = %d", cfg.Monitoring.MaxErrorEvents)
	}
	if cfg.Database.DSN != "" {
		t.Errorf("database.dsn should default empty, got %q", cfg.Database.DSN)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
app:
  environment: production
api:
  cache_ttl: 15m
  retry_delay: 2s
server:
  addr: ":9090"
  allowed_origins:
    - https://dashboard.example.com
scheduler:
  interval: 30m
`)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.App.Environment != "production" {
		t.Errorf("app.environment = %q", cfg.App.Environment)
	}
	if cfg.API.CacheTTL != 15*time.Minute {
		t.Errorf("api.cache_ttl = %s", cfg.API.CacheTTL)
	}
	if cfg.API.RetryDelay != 2*time.Second {
		t.Errorf("api.retry_delay = %s", cfg.API.RetryDelay)
	}
	if cfg.Server.Addr != ":9090" {
		t.Errorf("server.addr = %q", cfg.Server.Addr)
	}
	if len(cfg.Server.AllowedOrigins) != 1 || cfg.Server.AllowedOrigins[0] != "https://dashboard.example.com" {
		t.Errorf("server.allowed_origins = %v", cfg.Server.AllowedOrigins)
	}
	if cfg.Scheduler.Interval != 30*time.Minute {
		t.Errorf("scheduler.interval = %s", cfg.Scheduler.Interval)
	}
	// Untouched sections keep their defaults.
	if cfg.API.BaseURL == "" {
		t.Error("api.base_url default lost")
	}
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("api:\n  cache_ttl: 0s\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error for zero cache ttl")
	}
}
