package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Default staging instruction sent alongside each uploaded photo. The product
// is French-first; operators override it with STAGING_PROMPT.
const defaultStagingPrompt = "Retouche cette photo pour un 'home staging' virtuel hyper-réaliste. " +
	"L'objectif est de moderniser et de désencombrer l'espace pour le rendre plus attractif pour la vente, " +
	"tout en conservant impérativement la structure, les dimensions, et l'agencement d'origine de la pièce " +
	"(murs, fenêtres, portes, sols). Le résultat doit être photoréaliste, lumineux, et donner l'impression " +
	"que c'est la même pièce, mais redécorée professionnellement."

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string // optional; the ledger falls back to SQLite when empty
	SQLitePath  string
	SpoolPath   string
	JWTSecret   string

	GeminiAPIKey  string
	GeminiModel   string
	GeminiBaseURL string
	StagingPrompt string

	IdentityAPIKey   string
	IdentityBaseURL  string
	IdentityIssuer   string
	IdentityAudience string
	IdentityJWKSURL  string

	DefaultLocale    string
	AllowedOrigins   []string
	MaxUploadBytes   int64
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		SQLitePath:  getEnv("SQLITE_PATH", "./data/ledger.db"),
		SpoolPath:   getEnv("SPOOL_PATH", "./data/spool"),
		JWTSecret:   os.Getenv("JWT_SECRET"),

		GeminiAPIKey:  os.Getenv("GEMINI_API_KEY"),
		GeminiModel:   getEnv("GEMINI_MODEL", "gemini-2.5-flash-image"),
		GeminiBaseURL: getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		StagingPrompt: getEnv("STAGING_PROMPT", defaultStagingPrompt),

		IdentityAPIKey:   os.Getenv("IDENTITY_API_KEY"),
		IdentityBaseURL:  getEnv("IDENTITY_BASE_URL", "https://identitytoolkit.googleapis.com/v1"),
		IdentityIssuer:   os.Getenv("IDENTITY_ISSUER"),
		IdentityAudience: os.Getenv("IDENTITY_AUDIENCE"),
		IdentityJWKSURL:  getEnv("IDENTITY_JWKS_URL", "https://www.googleapis.com/service_accounts/v1/jwk/securetoken@system.gserviceaccount.com"),

		DefaultLocale:    getEnv("DEFAULT_LOCALE", "fr"),
		AllowedOrigins:   splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:5173")),
		MaxUploadBytes:   int64(getEnvInt("MAX_UPLOAD_MB", 15)) * 1 << 20,
		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 30)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 120)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
