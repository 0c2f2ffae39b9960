package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv unsets keys for the duration of the test and restores them after,
// since godotenv writes straight into the process environment.
func clearEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		prev, had := os.LookupEnv(k)
		require.NoError(t, os.Unsetenv(k))
		t.Cleanup(func() {
			if had {
				_ = os.Setenv(k, prev) //nolint:errcheck // test cleanup
				return
			}
			_ = os.Unsetenv(k) //nolint:errcheck // test cleanup
		})
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t, "PORT", "TZCONV_PORT", "GEO_ENDPOINT", "TZCONV_GEO_ENDPOINT", "GEO_TIMEOUT", "TZCONV_GEO_TIMEOUT",
		"GEO_CACHE_TTL", "TZCONV_GEO_CACHE_TTL", "RATE_LIMIT", "TZCONV_RATE_LIMIT", "RATE_BURST", "TZCONV_RATE_BURST",
		"VERBOSE", "TZCONV_VERBOSE", "TRUST_PROXY", "TZCONV_TRUST_PROXY")
	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "https://ipapi.co", cfg.GeoEndpoint)
	assert.Equal(t, 5*time.Second, cfg.GeoTimeout)
	assert.Equal(t, time.Hour, cfg.GeoCacheTTL)
	assert.InDelta(t, 10.0, cfg.RateLimit, 0.0001)
	assert.Equal(t, 20, cfg.RateBurst)
	assert.False(t, cfg.TrustProxy)
	assert.False(t, cfg.Verbose)
}

func TestLoadPrefixedAndBareNames(t *testing.T) {
	t.Setenv("TZCONV_PORT", "9090")
	t.Setenv("GEMINI_MODEL", "gemini-2.5-pro")
	t.Setenv("TZCONV_GEO_TIMEOUT", "750ms")
	t.Setenv("TZCONV_VERBOSE", "true")
	t.Setenv("TZCONV_TRUST_PROXY", "true")

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "gemini-2.5-pro", cfg.GeminiModel)
	assert.Equal(t, 750*time.Millisecond, cfg.GeoTimeout)
	assert.True(t, cfg.Verbose)
	assert.True(t, cfg.TrustProxy)
}

func TestLoadEnvFile(t *testing.T) {
	clearEnv(t, "TZCONV_REDIS_URL", "TZCONV_CATALOG_FILE")
	t.Setenv("TZCONV_CATALOG_FILE", "/from/env.yaml")

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(
		"TZCONV_REDIS_URL=redis://localhost:6379/2\nTZCONV_CATALOG_FILE=/from/file.yaml\n"), 0o600))

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "redis://localhost:6379/2", cfg.RedisURL)
	assert.Equal(t, "/from/env.yaml", cfg.CatalogFile, "the environment wins over the file")
}

func TestLoadMissingEnvFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.env"), nil)
	assert.NoError(t, err)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("TZCONV_GEO_TIMEOUT", "soon")
	_, err := Load("", nil)
	require.Error(t, err)

	t.Setenv("TZCONV_GEO_TIMEOUT", "0s")
	t.Setenv("TZCONV_RATE_LIMIT", "-1")
	_, err = Load("", nil)
	require.Error(t, err)
	assert.ErrorContains(t, err, "GEO_TIMEOUT")
	assert.ErrorContains(t, err, "RATE_LIMIT")
}

func TestPaths(t *testing.T) {
	cfg := &Config{CacheDir: "/c", PairsDir: "/p"}
	assert.Equal(t, "/c", cfg.CachePath())
	assert.Equal(t, "/p", cfg.PairsPath())

	empty := &Config{}
	assert.Equal(t, "tzconv", filepath.Base(empty.CachePath()))
	assert.Equal(t, "pairs", filepath.Base(empty.PairsPath()))
}
