package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoadConfig(t *testing.T) {
	t.Run("valid config", func(t *testing.T) {
		path := writeConfig(t, `
logger:
  verbosity: debug
backend:
  devices: [0, 1]
  seed: 1234
  flags:
    quantized: true
    tensorCoreGemm: true
metrics:
  listenAddress: ":9100"
`)
		config, err := LoadConfig(path)
		require.NoError(t, err)
		require.NotNil(t, config)

		assert.Equal(t, "debug", config.Logger.Verbosity)
		assert.Equal(t, []int{0, 1}, config.Backend.Devices)
		assert.Equal(t, uint64(1234), config.Backend.Seed)
		assert.True(t, config.Backend.Flags.Quantized)
		assert.True(t, config.Backend.Flags.TensorCoreGemm)
		assert.False(t, config.Backend.Flags.Fused)
		assert.Equal(t, ":9100", config.Metrics.ListenAddress)
	})

	t.Run("omitted fields fall back to defaults", func(t *testing.T) {
		path := writeConfig(t, `
logger:
  verbosity: warn
`)
		config, err := LoadConfig(path)
		require.NoError(t, err)

		assert.Equal(t, "warn", config.Logger.Verbosity)
		assert.Equal(t, []int{0}, config.Backend.Devices)
		assert.Equal(t, uint64(42), config.Backend.Seed)
		assert.Equal(t, ":9090", config.Metrics.ListenAddress)
	})

	t.Run("non-existent file", func(t *testing.T) {
		_, err := LoadConfig("non-existent-file.yaml")
		assert.Error(t, err)
	})

	t.Run("invalid yaml", func(t *testing.T) {
		path := writeConfig(t, "backend: [not: a map\n")
		_, err := LoadConfig(path)
		assert.Error(t, err)
	})
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "info", cfg.Logger.Verbosity)
	assert.Equal(t, []int{0}, cfg.Backend.Devices)
	assert.False(t, cfg.Backend.Flags.TensorCoreGemm)
}
