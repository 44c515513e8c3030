package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadForTests(map[string]string{
		"PORT":               "",
		"STORE_DRIVER":       "",
		"DATABASE_URL":       "postgres://localhost/cafe",
		"REDIS_URL":          "redis://localhost:6379/0",
		"TIMEZONE":           "",
		"ADDON_CATEGORIES":   "",
		"PREVIEW_RATE_LIMIT": "",
		"EVENT_MAX_RETRY":    "",
	})
	require.NoError(t, err)
	require.Equal(t, StorePostgres, cfg.StoreDriver)
	require.Equal(t, "Asia/Ho_Chi_Minh", cfg.Location.String())
	require.Equal(t, []string{"Topping"}, cfg.AddOnCategories)
	require.Equal(t, "30-S", cfg.PreviewRateLimit)
	require.Equal(t, time.Minute, cfg.PromotionCacheTTL)
	require.Equal(t, 10, cfg.EventMaxRetry)
	require.Equal(t, ":8080", cfg.HTTPAddr())
}

func TestLoadMemoryDriverDoesNotNeedDatabase(t *testing.T) {
	cfg, err := LoadForTests(map[string]string{
		"STORE_DRIVER":     "Memory",
		"DATABASE_URL":     "",
		"REDIS_URL":        "redis://localhost:6379/0",
		"ADDON_CATEGORIES": "Topping, Extra shot ,",
		"TIMEZONE":         "UTC",
		"BODY_LIMIT_BYTES": "not-a-number",
	})
	require.NoError(t, err)
	require.Equal(t, StoreMemory, cfg.StoreDriver)
	require.Equal(t, []string{"Topping", "Extra shot"}, cfg.AddOnCategories)
	require.Equal(t, int64(1<<20), cfg.BodyLimitBytes)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing database", map[string]string{"STORE_DRIVER": "postgres", "DATABASE_URL": "", "REDIS_URL": "redis://x"}},
		{"missing redis", map[string]string{"STORE_DRIVER": "memory", "REDIS_URL": ""}},
		{"bad driver", map[string]string{"STORE_DRIVER": "sqlite", "REDIS_URL": "redis://x"}},
		{"bad timezone", map[string]string{"STORE_DRIVER": "memory", "REDIS_URL": "redis://x", "TIMEZONE": "Mars/Olympus"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadForTests(tc.env)
			require.Error(t, err)
		})
	}
}
