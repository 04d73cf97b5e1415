package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv("STORE_BACKEND", "")
	t.Setenv("ACCESS_TTL", "")

	cfg := Load()
	assert.Equal(t, "sqlite", cfg.StoreBackend)
	assert.Equal(t, 12*time.Hour, cfg.AccessTTL)
	assert.Equal(t, 10, cfg.LoginAttemptsPerMin)
	assert.NotEmpty(t, cfg.SQLitePath)
}

func TestLoad_DotenvAndOverrides(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(envFile, []byte("HTTP_PORT=9999\nSCHOOLATTEND_TEST_ONLY=1\nRATE_LIMIT_PER_MIN=7\n"), 0o600))
	t.Setenv("ENV_FILE", envFile)
	t.Setenv("RATE_LIMIT_PER_MIN", "30")
	t.Setenv("ACCESS_TTL", "not-a-duration")
	t.Setenv("BCRYPT_COST", "abc")
	// unset, with the previous values restored on cleanup
	for _, k := range []string{"HTTP_PORT", "SCHOOLATTEND_TEST_ONLY"} {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}

	cfg := Load()
	assert.Equal(t, "9999", cfg.HTTPPort)
	assert.Equal(t, "1", os.Getenv("SCHOOLATTEND_TEST_ONLY"))
	assert.Equal(t, 30, cfg.RateLimitPerMin, "process env wins over the file")
	assert.Equal(t, 12*time.Hour, cfg.AccessTTL)
	assert.Equal(t, 10, cfg.BcryptCost)
}

func TestStoreOptions(t *testing.T) {
	cfg := App{StoreBackend: "redis", RedisAddr: "r:6379", RedisPrefix: "p:", SQLitePath: "x.db", DatabaseURL: "pg"}
	opts := cfg.StoreOptions()
	assert.Equal(t, "redis", opts.Backend)
	assert.Equal(t, "r:6379", opts.RedisAddr)
	assert.Equal(t, "p:", opts.RedisPrefix)
	assert.True(t, App{Env: "prod"}.Production())
	assert.False(t, App{Env: "dev"}.Production())
}
