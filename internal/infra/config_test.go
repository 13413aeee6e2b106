package infra

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("DATABASE_URL", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}
	if cfg.AppEnv != "development" {
		t.Fatalf("expected development, got %q", cfg.AppEnv)
	}
	if cfg.Port != "8080" {
		t.Fatalf("expected port 8080, got %q", cfg.Port)
	}
	if cfg.GeminiModel != "gemini-2.5-flash-image" {
		t.Fatalf("unexpected model %q", cfg.GeminiModel)
	}
	if cfg.StagingPrompt == "" {
		t.Fatal("expected a default staging prompt")
	}
	if cfg.DefaultLocale != "fr" {
		t.Fatalf("expected fr default locale, got %q", cfg.DefaultLocale)
	}
	if cfg.HTTPReadTimeout != 30*time.Second {
		t.Fatalf("unexpected read timeout %v", cfg.HTTPReadTimeout)
	}
	if cfg.MaxUploadBytes != 15<<20 {
		t.Fatalf("unexpected upload cap %d", cfg.MaxUploadBytes)
	}
}

func TestLoadConfigRequiresJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error when JWT_SECRET is missing")
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("APP_ENV", "production")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "5")
	t.Setenv("ALLOWED_ORIGINS", "https://app.example.com, https://staging.example.com")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}
	if cfg.AppEnv != "production" {
		t.Fatalf("expected production, got %q", cfg.AppEnv)
	}
	if cfg.RateLimitPerMin != 5 {
		t.Fatalf("expected rate limit 5, got %d", cfg.RateLimitPerMin)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://staging.example.com" {
		t.Fatalf("unexpected origins %v", cfg.AllowedOrigins)
	}
}
