package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Store drivers.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv                    string
	Port                      string
	StoreDriver               string
	DatabaseURL               string
	RedisURL                  string
	CORSAllowedOrigins        []string
	Timezone                  string
	Location                  *time.Location
	AddOnCategories           []string
	PromotionCacheTTL         time.Duration
	IdempotencyTTL            time.Duration
	PreviewRateLimit          string
	BodyLimitBytes            int64
	AnalyticsRetention        time.Duration
	AnalyticsDefaultRangeDays int
	EventQueue                string
	EventMaxRetry             int
	WorkerConcurrency         int
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:                    valueOrDefault(k.String("APP_ENV"), "development"),
		Port:                      valueOrDefault(k.String("PORT"), "8080"),
		StoreDriver:               strings.ToLower(valueOrDefault(k.String("STORE_DRIVER"), StorePostgres)),
		DatabaseURL:               k.String("DATABASE_URL"),
		RedisURL:                  k.String("REDIS_URL"),
		CORSAllowedOrigins:        splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		Timezone:                  valueOrDefault(k.String("TIMEZONE"), "Asia/Ho_Chi_Minh"),
		AddOnCategories:           splitAndTrim(valueOrDefault(k.String("ADDON_CATEGORIES"), "Topping")),
		PromotionCacheTTL:         parseDuration(k.String("PROMOTION_CACHE_TTL"), "1m"),
		IdempotencyTTL:            parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),
		PreviewRateLimit:          valueOrDefault(k.String("PREVIEW_RATE_LIMIT"), "30-S"),
		BodyLimitBytes:            int64(parseInt(k.String("BODY_LIMIT_BYTES"), 1<<20)),
		AnalyticsRetention:        parseDuration(k.String("ANALYTICS_RETENTION"), "9600h"),
		AnalyticsDefaultRangeDays: parseInt(k.String("ANALYTICS_DEFAULT_RANGE_DAYS"), 30),
		EventQueue:                valueOrDefault(k.String("EVENT_QUEUE"), "events"),
		EventMaxRetry:             parseInt(k.String("EVENT_MAX_RETRY"), 10),
		WorkerConcurrency:         parseInt(k.String("WORKER_CONCURRENCY"), 10),
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("TIMEZONE: %w", err)
	}
	cfg.Location = loc

	switch cfg.StoreDriver {
	case StorePostgres:
		if cfg.DatabaseURL == "" {
			return nil, errors.New("DATABASE_URL is required")
		}
	case StoreMemory:
	default:
		return nil, fmt.Errorf("STORE_DRIVER must be %q or %q", StorePostgres, StoreMemory)
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseInt(value string, fallback int) int {
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
