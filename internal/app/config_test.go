package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLoad(t *testing.T, files ...string) (*Config, error) {
	t.Helper()
	if files == nil {
		files = []string{}
	}
	return loadConfig(aconfig.Config{
		SkipFlags: true,
		Files:     files,
	})
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"DATABASE_URL", "REDIS_URL", "PORT"} {
		t.Setenv(k, "")
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := testLoad(t)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Addr)
	assert.Empty(t, cfg.DatabaseURL)
	assert.Empty(t, cfg.RedisURL)
	assert.Equal(t, 5*time.Minute, cfg.CacheTTL)
	assert.Equal(t, 100, cfg.RateLimit.Max)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
	assert.Equal(t, 3*time.Second, cfg.Graceful.ReadinessDelay)
	assert.Equal(t, 15*time.Second, cfg.Graceful.ShutdownTimeout)
}

func TestLoadConfig_Env(t *testing.T) {
	clearEnv(t)
	t.Setenv("PRICING_DATABASE_URL", "postgres://kart:kart@db:5432/kart")
	t.Setenv("PRICING_CACHE_TTL", "30s")
	t.Setenv("PRICING_RATE_LIMIT_MAX", "0")

	cfg, err := testLoad(t)
	require.NoError(t, err)

	assert.Equal(t, "postgres://kart:kart@db:5432/kart", cfg.DatabaseURL)
	assert.Equal(t, 30*time.Second, cfg.CacheTTL)
	assert.Equal(t, 0, cfg.RateLimit.Max)
}

func TestLoadConfig_PlatformDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://platform/db")
	t.Setenv("REDIS_URL", "redis://cache:6379/0")
	t.Setenv("PORT", "9090")

	cfg, err := testLoad(t)
	require.NoError(t, err)

	assert.Equal(t, "postgres://platform/db", cfg.DatabaseURL)
	assert.Equal(t, "redis://cache:6379/0", cfg.RedisURL)
	assert.Equal(t, "0.0.0.0:9090", cfg.Addr)
}

func TestLoadConfig_File(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("addr: 127.0.0.1:7000\nseed_file: rules.yaml\n"), 0o600))

	cfg, err := testLoad(t, path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:7000", cfg.Addr)
	assert.Equal(t, "rules.yaml", cfg.SeedFile)
}

func TestLoadConfig_Invalid(t *testing.T) {
	clearEnv(t)
	t.Setenv("PRICING_CACHE_TTL", "0s")

	_, err := testLoad(t)
	require.ErrorContains(t, err, "cache TTL")
}
