package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadForTests(map[string]string{
		"DATABASE_URL":        "postgres://localhost/apotek",
		"REDIS_URL":           "redis://localhost:6379",
		"JWT_SECRET":          "secret",
		"PORT":                "",
		"ACCESS_TOKEN_TTL":    "",
		"LOW_STOCK_THRESHOLD": "",
	})
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.HTTPAddr())
	require.Equal(t, 8*time.Hour, cfg.AccessTokenTTL)
	require.Equal(t, 24*time.Hour, cfg.IdempotencyTTL)
	require.Equal(t, 10, cfg.LowStockThreshold)
	require.Equal(t, "10-M", cfg.LoginRateLimit)
	require.True(t, cfg.MetricsEnabled)
	require.Equal(t, "apotek", cfg.MetricsNamespace)
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := LoadForTests(map[string]string{
		"DATABASE_URL":         "postgres://localhost/apotek",
		"REDIS_URL":            "redis://localhost:6379",
		"JWT_SECRET":           "secret",
		"PORT":                 "9090",
		"CORS_ALLOWED_ORIGINS": "http://a.example, http://b.example",
		"LOW_STOCK_THRESHOLD":  "25",
		"TRACING_SAMPLE_RATIO": "0.25",
		"METRICS_ENABLED":      "false",
	})
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.HTTPAddr())
	require.Equal(t, []string{"http://a.example", "http://b.example"}, cfg.CORSAllowedOrigins)
	require.Equal(t, 25, cfg.LowStockThreshold)
	require.Equal(t, 0.25, cfg.TracingSampleRatio)
	require.False(t, cfg.MetricsEnabled)
}

func TestLoadMissingRequired(t *testing.T) {
	_, err := LoadForTests(map[string]string{
		"DATABASE_URL": "",
		"REDIS_URL":    "redis://localhost:6379",
		"JWT_SECRET":   "secret",
	})
	require.Error(t, err)
}
