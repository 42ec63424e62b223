package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-quote/internal/pricing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadForTests(map[string]string{
		"APP_ENV":           "",
		"PORT":              "",
		"REDIS_URL":         "",
		"BUNDLE_DISCOUNTS":  "",
		"SESSION_TTL":       "",
		"SESSION_MAX":       "",
		"RATE_LIMIT_MAX":    "",
		"CURRENCY_CODE":     "",
		"CATALOG_CACHE_TTL": "",
	})
	require.NoError(t, err)
	require.Equal(t, "development", cfg.AppEnv)
	require.Equal(t, ":8080", cfg.HTTPAddr())
	require.Empty(t, cfg.RedisURL)
	require.Equal(t, pricing.DefaultBundleSchedule, cfg.BundleDiscounts)
	require.Equal(t, 2*time.Hour, cfg.SessionTTL)
	require.Equal(t, 10000, cfg.SessionMax)
	require.Equal(t, 120, cfg.RateLimitMax)
	require.Equal(t, 5*time.Minute, cfg.CatalogCacheTTL)
	require.Equal(t, "USD", cfg.CurrencyCode)
	require.True(t, cfg.SecurityHeadersEnabled)
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := LoadForTests(map[string]string{
		"PORT":                     ":9000",
		"REDIS_URL":                "redis://localhost:6379/0",
		"CORS_ALLOWED_ORIGINS":     "https://a.example, https://b.example,",
		"BUNDLE_DISCOUNTS":         "2:5,4:12",
		"SESSION_TTL":              "30m",
		"SESSION_MAX":              "50",
		"SECURITY_HEADERS_ENABLED": "off",
		"CURRENCY_CODE":            "eur",
	})
	require.NoError(t, err)
	require.Equal(t, ":9000", cfg.HTTPAddr())
	require.Equal(t, "redis://localhost:6379/0", cfg.RedisURL)
	require.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
	require.Equal(t, pricing.BundleSchedule{{MinItems: 2, Percent: 5}, {MinItems: 4, Percent: 12}}, cfg.BundleDiscounts)
	require.Equal(t, 30*time.Minute, cfg.SessionTTL)
	require.Equal(t, 50, cfg.SessionMax)
	require.False(t, cfg.SecurityHeadersEnabled)
	require.Equal(t, "EUR", cfg.CurrencyCode)
}

func TestLoadObservability(t *testing.T) {
	cfg, err := LoadForTests(map[string]string{
		"OBS_LOG_FORMAT":             "console",
		"OBS_ENABLE_TRACING":         "false",
		"OBS_TRACING_SAMPLING_RATIO": "0.25",
		"OBS_ENABLE_PPROF":           "yes",
		"SHUTDOWN_DRAIN_MS":          "1500",
	})
	require.NoError(t, err)
	require.Equal(t, "console", cfg.Obs.LogFormat)
	require.Equal(t, "info", cfg.Obs.LogLevel)
	require.True(t, cfg.Obs.MetricsEnabled)
	require.False(t, cfg.Obs.TracingEnabled)
	require.InDelta(t, 0.25, cfg.Obs.SamplingRatio, 1e-9)
	require.True(t, cfg.Obs.PprofEnabled)
	require.Equal(t, 1500*time.Millisecond, cfg.ShutdownDrain)
	require.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	_, err := LoadForTests(map[string]string{"BUNDLE_DISCOUNTS": "3-10"})
	require.ErrorContains(t, err, "BUNDLE_DISCOUNTS")

	_, err = LoadForTests(map[string]string{"SESSION_MAX": "-1"})
	require.ErrorContains(t, err, "SESSION_MAX")

	_, err = LoadForTests(map[string]string{"CURRENCY_CODE": "DOLLARS"})
	require.ErrorContains(t, err, "CURRENCY_CODE")
}
