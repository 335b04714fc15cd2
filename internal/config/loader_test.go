package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFrom_Defaults(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Server.Port)
	}
	if cfg.Postgres.MaxConns != 15 || cfg.Postgres.MinConns != 2 {
		t.Errorf("pool = %d/%d, want 15/2", cfg.Postgres.MaxConns, cfg.Postgres.MinConns)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Service != "gatekeep" {
		t.Errorf("logging = %+v", cfg.Logging)
	}
	if cfg.Profiles.Dir != "profiles" {
		t.Errorf("profiles dir = %q", cfg.Profiles.Dir)
	}
	if cfg.Otel.Endpoint != "" {
		t.Errorf("otel endpoint = %q, want empty (disabled)", cfg.Otel.Endpoint)
	}
}

func TestLoadFrom_YAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gatekeep.yaml")
	yaml := `
server:
  port: "9090"
postgres:
  max_conns: 30
  max_conn_lifetime: 30m
nats:
  url: ""
logging:
  level: debug
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write yaml: %v", err)
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("Port = %q, want 9090", cfg.Server.Port)
	}
	if cfg.Postgres.MaxConns != 30 {
		t.Errorf("MaxConns = %d, want 30", cfg.Postgres.MaxConns)
	}
	if cfg.Postgres.MaxConnLifetime != 30*time.Minute {
		t.Errorf("MaxConnLifetime = %v, want 30m", cfg.Postgres.MaxConnLifetime)
	}
	if cfg.NATS.URL != "" {
		t.Errorf("NATS.URL = %q, want empty (disabled)", cfg.NATS.URL)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Level = %q, want debug", cfg.Logging.Level)
	}
	// Untouched keys keep their defaults.
	if cfg.Postgres.MinConns != 2 {
		t.Errorf("MinConns = %d, want default 2", cfg.Postgres.MinConns)
	}
}

func TestLoadFrom_EnvOverridesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gatekeep.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: \"9090\"\n"), 0o600); err != nil {
		t.Fatalf("write yaml: %v", err)
	}

	t.Setenv("GATEKEEP_PORT", "7070")
	t.Setenv("DATABASE_URL", "postgres://env:env@db:5432/gatekeep")
	t.Setenv("GATEKEEP_PG_MAX_CONNS", "50")
	t.Setenv("GATEKEEP_PG_MAX_CONN_IDLE_TIME", "5m")
	t.Setenv("GATEKEEP_PROFILES_DIR", "/etc/gatekeep/profiles")

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}

	if cfg.Server.Port != "7070" {
		t.Errorf("Port = %q, want env override 7070", cfg.Server.Port)
	}
	if cfg.Postgres.DSN != "postgres://env:env@db:5432/gatekeep" {
		t.Errorf("DSN = %q", cfg.Postgres.DSN)
	}
	if cfg.Postgres.MaxConns != 50 {
		t.Errorf("MaxConns = %d, want 50", cfg.Postgres.MaxConns)
	}
	if cfg.Postgres.MaxConnIdleTime != 5*time.Minute {
		t.Errorf("MaxConnIdleTime = %v, want 5m", cfg.Postgres.MaxConnIdleTime)
	}
	if cfg.Profiles.Dir != "/etc/gatekeep/profiles" {
		t.Errorf("Profiles.Dir = %q", cfg.Profiles.Dir)
	}
}

func TestLoadFrom_Validation(t *testing.T) {
	dir := t.TempDir()
	cases := []struct {
		name string
		yaml string
	}{
		{"non numeric port", "server:\n  port: \"http\"\n"},
		{"zero max conns", "postgres:\n  max_conns: 0\n"},
		{"min exceeds max", "postgres:\n  max_conns: 2\n  min_conns: 5\n"},
		{"empty profiles dir", "profiles:\n  dir: \"\"\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(dir, tc.name+".yaml")
			if err := os.WriteFile(path, []byte(tc.yaml), 0o600); err != nil {
				t.Fatalf("write yaml: %v", err)
			}
			if _, err := LoadFrom(path); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLoadFrom_MalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("server: [not a map"), 0o600); err != nil {
		t.Fatalf("write yaml: %v", err)
	}
	if _, err := LoadFrom(path); err == nil {
		t.Error("expected parse error")
	}
}
