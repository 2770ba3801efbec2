package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "atr.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
reader:
  height_m: 15
  tag_height_m: 3
store:
  max_series: 2
stream:
  url: ws://reader.local/ws
`), 0o644))

	t.Setenv("ATR_RADAR_STORE__MAX_ALL_POINTS_PER_SERIES", "50000")
	t.Setenv("ATR_RADAR_LOG__LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 15.0, cfg.Reader.HeightM)
	assert.Equal(t, 3.0, cfg.Reader.TagHeightM)
	assert.Equal(t, 2, cfg.Store.MaxSeries)
	assert.Equal(t, 100, cfg.Store.MaxPointsPerSeries)
	assert.Equal(t, 50000, cfg.Store.MaxAllPointsPerSeries)
	assert.Equal(t, "ws://reader.local/ws", cfg.Stream.URL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "atr.positions", cfg.NATS.Subject)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero series", func(c *Config) { c.Store.MaxSeries = 0 }},
		{"zero window", func(c *Config) { c.Store.MaxPointsPerSeries = 0 }},
		{"log above ceiling", func(c *Config) { c.Store.MaxAllPointsPerSeries = MaxAllPointsCeiling + 1 }},
		{"zero grid", func(c *Config) { c.Heatmap.GridSize = 0 }},
		{"negative cell", func(c *Config) { c.Heatmap.MeterPerCell = -1 }},
		{"no workers", func(c *Config) { c.Stream.Workers = 0 }},
		{"no queue", func(c *Config) { c.Stream.QueueSize = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	assert.NoError(t, Default().Validate())
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "store.max_series", envKey("ATR_RADAR_STORE__MAX_SERIES"))
	assert.Equal(t, "", envKey(EnvFile))
}
