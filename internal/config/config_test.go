package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 0, cfg.Server.Port)
	assert.Equal(t, int64(4*1024*1024), cfg.Server.MaxBodyBytes)
	assert.False(t, cfg.Storage.VectorEnabled)
	assert.True(t, cfg.Storage.CompressRawText)
	assert.Equal(t, 20000, cfg.Storage.MaxContentChars)
	assert.True(t, cfg.Policy.AutoTag)
	assert.False(t, cfg.Policy.RequireTags)
	assert.Equal(t, "latest_", cfg.Policy.LatestIDPrefix)
	assert.Equal(t, 5*time.Minute, cfg.Sweep.Interval)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("RECOLLECT_PORT", "8085")
	t.Setenv("RECOLLECT_DATABASE_URL", "postgres://db/custom")
	t.Setenv("RECOLLECT_VECTOR_ENABLED", "true")
	t.Setenv("RECOLLECT_REQUIRE_TAGS", "yes")
	t.Setenv("RECOLLECT_ALLOW_RAW_TEXT", "false")
	t.Setenv("RECOLLECT_SWEEP_INTERVAL", "90s")
	t.Setenv("RECOLLECT_RATE_PER_SEC", "2.5")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 8085, cfg.Server.Port)
	assert.Equal(t, "postgres://db/custom", cfg.Storage.DSN)
	assert.True(t, cfg.Storage.VectorEnabled)
	assert.True(t, cfg.Policy.RequireTags)
	assert.False(t, cfg.Policy.AllowRawText)
	assert.Equal(t, 90*time.Second, cfg.Sweep.Interval)
	assert.Equal(t, 2.5, cfg.Server.RatePerSec)
}

func TestLoadConfigFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "recollect.yaml")
	data := []byte(`
server:
  port: 9100
  api_token: file-token
storage:
  dsn: postgres://db/fromfile
policy:
  latest_id_prefix: "current_"
`)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	t.Setenv("RECOLLECT_CONFIG_FILE", path)
	t.Setenv("RECOLLECT_PORT", "9200")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	// Env beats file; file beats defaults.
	assert.Equal(t, 9200, cfg.Server.Port)
	assert.Equal(t, "file-token", cfg.Server.APIToken)
	assert.Equal(t, "postgres://db/fromfile", cfg.Storage.DSN)
	assert.Equal(t, "current_", cfg.Policy.LatestIDPrefix)
}

func TestLoadConfigBadFile(t *testing.T) {
	t.Setenv("RECOLLECT_CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestLoadConfigInvalidBounds(t *testing.T) {
	t.Setenv("RECOLLECT_MAX_CONTENT_CHARS", "-5")
	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestGetEnvBoolUnparseable(t *testing.T) {
	t.Setenv("RECOLLECT_TEST_BOOL", "maybe")
	assert.True(t, getEnvBool("RECOLLECT_TEST_BOOL", true))
	assert.False(t, getEnvBool("RECOLLECT_TEST_BOOL", false))
}
