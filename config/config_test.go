package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"VAULT_MOUNT", "CACHE_TTL_SEC", "PORT", "OTEL_SAMPLING_RATE"} {
		t.Setenv(key, "")
	}

	cfg := Load()

	if cfg.VaultMount != "transit" {
		t.Errorf("want default mount transit, got %q", cfg.VaultMount)
	}
	if cfg.CacheTTL != DefaultCacheTTL {
		t.Errorf("want default ttl %v, got %v", DefaultCacheTTL, cfg.CacheTTL)
	}
	if cfg.Port != "8200" {
		t.Errorf("want default port 8200, got %q", cfg.Port)
	}
	if cfg.OtelSamplingRate != 1.0 {
		t.Errorf("want default sampling rate 1.0, got %v", cfg.OtelSamplingRate)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("VAULT_ADDR", "http://127.0.0.1:8200")
	t.Setenv("VAULT_MOUNT", "pii")
	t.Setenv("CACHE_TTL_SEC", "60")
	t.Setenv("OTEL_ENABLED", "true")

	cfg := Load()
	if cfg.VaultAddr != "http://127.0.0.1:8200" {
		t.Errorf("unexpected addr: %q", cfg.VaultAddr)
	}
	if cfg.VaultMount != "pii" {
		t.Errorf("unexpected mount: %q", cfg.VaultMount)
	}
	if cfg.CacheTTL != 60*time.Second {
		t.Errorf("unexpected ttl: %v", cfg.CacheTTL)
	}
	if !cfg.OtelEnabled {
		t.Error("want otel enabled")
	}
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("CACHE_TTL_SEC", "not-a-number")
	t.Setenv("OTEL_SAMPLING_RATE", "2.5")

	cfg := Load()
	if cfg.CacheTTL != DefaultCacheTTL {
		t.Errorf("invalid ttl must fall back to default, got %v", cfg.CacheTTL)
	}
	if cfg.OtelSamplingRate != 1.0 {
		t.Errorf("out-of-range sampling rate must fall back to default, got %v", cfg.OtelSamplingRate)
	}
}
