package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "local")
	t.Setenv("CORS_ORIGINS", "http://localhost:3000, https://krafink.art")
	t.Setenv("JWT_TTL", "48h")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "https://krafink.art" {
		t.Errorf("unexpected origins: %v", cfg.CORSOrigins)
	}
	if cfg.JWTTTL != 48*time.Hour {
		t.Errorf("expected 48h ttl, got %s", cfg.JWTTTL)
	}
	if !cfg.IsLocal() {
		t.Errorf("expected local env")
	}
}

func TestLoadRequiresSecretInProd(t *testing.T) {
	t.Setenv("APP_ENV", "prod")
	t.Setenv("JWT_SECRET", defaultJWTSecret)
	if _, err := Load(); err == nil {
		t.Fatal("expected error without JWT_SECRET in prod")
	}
}

func TestLoadRejectsWildcardOriginsInProd(t *testing.T) {
	t.Setenv("APP_ENV", "prod")
	t.Setenv("JWT_SECRET", "a-real-secret")
	t.Setenv("CORS_ORIGINS", "*")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for wildcard CORS origins in prod")
	}

	t.Setenv("CORS_ORIGINS", "https://krafink.art")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !cfg.ExplicitOrigins() {
		t.Error("explicit origins should allow credentials")
	}
}

func TestWildcardOriginsDisableCredentials(t *testing.T) {
	t.Setenv("APP_ENV", "local")
	t.Setenv("CORS_ORIGINS", "http://localhost:3000,*")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.ExplicitOrigins() {
		t.Error("wildcard origin must not allow credentials")
	}
	if cfg.PresenceTTL != 30*time.Second {
		t.Errorf("expected default presence ttl, got %s", cfg.PresenceTTL)
	}
}
