package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Port)
	}
	if cfg.DefaultQueuePrefix != "A" {
		t.Errorf("expected default queue prefix A, got %s", cfg.DefaultQueuePrefix)
	}
	if cfg.DefaultMaxQueuePerDay != 150 {
		t.Errorf("expected default max queue 150, got %d", cfg.DefaultMaxQueuePerDay)
	}
	if cfg.DefaultCallIntervalMinutes != 10 {
		t.Errorf("expected default call interval 10, got %d", cfg.DefaultCallIntervalMinutes)
	}
	if cfg.OutboxPollInterval != 2*time.Second {
		t.Errorf("expected default outbox interval 2s, got %s", cfg.OutboxPollInterval)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("MAX_QUEUE_PER_DAY", "3")
	t.Setenv("QUEUE_CALL_INTERVAL_MINUTES", "15")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("INTAKE_RATE_LIMIT", "2.5")
	t.Setenv("HOSPITAL_CONFIG_CACHE_TTL", "1m")

	cfg := Load()

	if cfg.Port != "9090" {
		t.Errorf("expected port 9090, got %s", cfg.Port)
	}
	if cfg.DefaultMaxQueuePerDay != 3 {
		t.Errorf("expected max queue 3, got %d", cfg.DefaultMaxQueuePerDay)
	}
	if cfg.DefaultCallIntervalMinutes != 15 {
		t.Errorf("expected call interval 15, got %d", cfg.DefaultCallIntervalMinutes)
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://b.example" {
		t.Errorf("unexpected origins: %v", cfg.CORSAllowedOrigins)
	}
	if cfg.IntakeRateLimit != 2.5 {
		t.Errorf("expected rate 2.5, got %f", cfg.IntakeRateLimit)
	}
	if cfg.HospitalConfigCacheTTL != time.Minute {
		t.Errorf("expected cache ttl 1m, got %s", cfg.HospitalConfigCacheTTL)
	}
}

func TestMalformedValuesFallBack(t *testing.T) {
	t.Setenv("MAX_QUEUE_PER_DAY", "not-a-number")
	t.Setenv("REDIS_TLS", "maybe")

	cfg := Load()

	if cfg.DefaultMaxQueuePerDay != 150 {
		t.Errorf("expected fallback 150, got %d", cfg.DefaultMaxQueuePerDay)
	}
	if cfg.RedisTLS {
		t.Error("expected RedisTLS fallback false")
	}
}
