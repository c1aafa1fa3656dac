package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "database:\n  dsn: \":memory:\"\n")

	cfg, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Archive.MaxConcurrent != 4 {
		t.Fatalf("max_concurrent = %d", cfg.Archive.MaxConcurrent)
	}
	if cfg.Analysis.TargetRate != 8 {
		t.Fatalf("target_rate = %v", cfg.Analysis.TargetRate)
	}
	if cfg.Archive.Timeout != 20*time.Second {
		t.Fatalf("timeout = %s", cfg.Archive.Timeout)
	}
	if cfg.Schedule.Cron != "0 2 1 * *" {
		t.Fatalf("cron = %q", cfg.Schedule.Cron)
	}
}

func TestLoadReadsEnvOverrides(t *testing.T) {
	path := writeConfig(t, "database:\n  dsn: \":memory:\"\narchive:\n  timeout: 15s\n")
	t.Setenv("RR_ARCHIVE_MAX_CONCURRENT", "6")
	t.Setenv("RR_ANALYSIS_TARGET_RATE", "5.5")

	cfg, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Archive.MaxConcurrent != 6 || cfg.Analysis.TargetRate != 5.5 {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}
	if cfg.Archive.Timeout != 15*time.Second {
		t.Fatalf("timeout = %s", cfg.Archive.Timeout)
	}
}

func TestValidateRejectsOutOfRangeConcurrency(t *testing.T) {
	path := writeConfig(t, "database:\n  dsn: \":memory:\"\narchive:\n  max_concurrent: 9\n")
	if _, err := Load(context.Background(), path); err == nil {
		t.Fatalf("Load() expected error for max_concurrent=9")
	}
}

func TestValidateRequiresRedisAddr(t *testing.T) {
	path := writeConfig(t, "database:\n  dsn: \":memory:\"\ncache:\n  driver: redis\n")
	if _, err := Load(context.Background(), path); err == nil {
		t.Fatalf("Load() expected error without cache.redis_addr")
	}
}
