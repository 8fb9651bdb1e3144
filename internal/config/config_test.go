package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "127.0.0.1", cfg.ListenInterface)
	assert.Equal(t, "./public", cfg.PublicDir)
	assert.False(t, cfg.DevLogging)
	assert.Equal(t, "127.0.0.1:8080", cfg.ListenAddr())
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("LISTEN_INTERFACE", "0.0.0.0")
	t.Setenv("DEV_LOGGING", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9000", cfg.ListenAddr())
	assert.True(t, cfg.DevLogging)
}

func TestLoadRejectsUnparseablePort(t *testing.T) {
	t.Setenv("PORT", "not-a-port")

	_, err := Load()
	assert.Error(t, err)
}
