package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_DefaultsWithoutFile(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.HTTPAddress)
	assert.Equal(t, 30*time.Second, cfg.Game.ReconnectGrace)
	assert.Equal(t, 3*time.Second, cfg.Game.ResultDelay)
	assert.Equal(t, 2*time.Hour, cfg.Game.IdleTimeout)
	assert.Equal(t, "memory", cfg.WordStore.Driver)
	assert.True(t, cfg.WordStore.Seed)
}

func TestLoadConfig_FileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	yaml := []byte(`
server:
  http_address: ":9090"
game:
  reconnect_grace: 5s
word_store:
  driver: redis
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), yaml, 0o644))
	t.Setenv("SPY_GAME_RESULT_DELAY", "20s")

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.HTTPAddress)
	assert.Equal(t, 5*time.Second, cfg.Game.ReconnectGrace)
	assert.Equal(t, 20*time.Second, cfg.Game.ResultDelay)
	assert.Equal(t, "redis", cfg.WordStore.Driver)
}

func TestLoadDotEnv_MissingFileIsNotAnError(t *testing.T) {
	assert.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), ".env")))
}
