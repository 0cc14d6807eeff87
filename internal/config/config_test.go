package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
db_path: /var/lib/fleetd/fleetd.db
tick_interval: 30s
connect_timeout: 5s
keepalive_interval: 2s
concurrency: 4
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DBPath != "/var/lib/fleetd/fleetd.db" {
		t.Errorf("db path = %s", cfg.DBPath)
	}
	if cfg.TickInterval.Duration != 30*time.Second {
		t.Errorf("tick interval = %v", cfg.TickInterval.Duration)
	}
	if cfg.ConnectTimeout.Duration != 5*time.Second {
		t.Errorf("connect timeout = %v", cfg.ConnectTimeout.Duration)
	}
	if cfg.Concurrency != 4 {
		t.Errorf("concurrency = %d", cfg.Concurrency)
	}
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := writeConfig(t, "tick_interval: 10s\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.TickInterval.Duration != 10*time.Second {
		t.Errorf("tick interval = %v", cfg.TickInterval.Duration)
	}
	// Unset fields fall back to defaults.
	if cfg.ConnectTimeout.Duration != 30*time.Second {
		t.Errorf("connect timeout = %v, want default 30s", cfg.ConnectTimeout.Duration)
	}
	if cfg.Concurrency != 20 {
		t.Errorf("concurrency = %d, want default 20", cfg.Concurrency)
	}
}

func TestLoad_Invalid(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"bad duration", "tick_interval: soon\n"},
		{"bad yaml", "tick_interval: [\n"},
		{"negative concurrency", "concurrency: -1\n"},
		{"zero tick", "tick_interval: 0s\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tc.content)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoadOrDefault_MissingFile(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("LoadOrDefault: %v", err)
	}
	if cfg.TickInterval.Duration != 60*time.Second {
		t.Errorf("tick interval = %v, want default 60s", cfg.TickInterval.Duration)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults must validate: %v", err)
	}
}
