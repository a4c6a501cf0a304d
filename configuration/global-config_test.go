package configuration

import (
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DISCORD_TOKEN", "test-token")
	t.Setenv("DEVELOPER_ID", "123")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	if err := Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	cfg := Get()
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("default driver = %q, want sqlite", cfg.Database.Driver)
	}
	if cfg.Sign.Hour != 8 || cfg.Sign.Minute != 30 {
		t.Errorf("default sign time = %02d:%02d, want 08:30", cfg.Sign.Hour, cfg.Sign.Minute)
	}
	if cfg.Sign.MaxConcurrent != 1 {
		t.Errorf("default concurrency = %d, want 1", cfg.Sign.MaxConcurrent)
	}
	if cfg.Sign.GroupTimeout != 300*time.Second {
		t.Errorf("default group timeout = %v, want 300s", cfg.Sign.GroupTimeout)
	}
	if cfg.Web.Port != "8175" {
		t.Errorf("default web port = %q, want 8175", cfg.Web.Port)
	}
}

func TestLoadClampsConcurrency(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SIGN_MAX_CONCURRENT", "50")

	if err := Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := Get().Sign.MaxConcurrent; got != MaxConcurrentCap {
		t.Errorf("concurrency = %d, want clamped to %d", got, MaxConcurrentCap)
	}
}

func TestLoadMissingToken(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "")
	t.Setenv("DEVELOPER_ID", "123")

	if err := Load(); err == nil {
		t.Error("Load must fail without a Discord token")
	}
}

func TestLoadRejectsBadDriver(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("DB_DRIVER", "postgres")

	if err := Load(); err == nil {
		t.Error("Load must reject an unsupported database driver")
	}
}

func TestLoadRejectsBadSignTime(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SIGN_HOUR", "24")

	if err := Load(); err == nil {
		t.Error("Load must reject an out-of-range sign hour")
	}
}
