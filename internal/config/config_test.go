package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bdougie/clipfeed/internal/models"
)

func TestPresets(t *testing.T) {
	for _, name := range PresetNames() {
		cfg, err := Preset(name)
		require.NoError(t, err, name)
		require.NoError(t, Validate(&cfg), name)
		assert.Equal(t, 3, cfg.Channels, name)
		assert.Equal(t, models.Size{H: 240, W: 320}, cfg.Reshape, name)
	}

	cfg := TrainRGB()
	assert.Equal(t, 24*16, cfg.BatchFrames())
	assert.Equal(t, 3*16, func() int { c := TestRGB(); return c.BatchFrames() }())

	flow := TrainFlow()
	assert.True(t, flow.Flow)
	assert.Equal(t, 128, flow.BatchFrames())
	assert.Equal(t, ModeTest, TestFlow().Mode)
}

func TestPresetUnknown(t *testing.T) {
	_, err := Preset("train-depth")
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestLoadOverlaysPreset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feed.yaml")
	raw := []byte(`
buffer_size: 2
clip_length: 4
video_list: list.txt
images_root: frames/
ledger:
  kind: json
`)
	require.NoError(t, os.WriteFile(path, raw, 0644))

	cfg, err := Load(path, TrainRGB())
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.BufferSize)
	assert.Equal(t, 4, cfg.ClipLength)
	assert.Equal(t, "frames/", cfg.ImagesRoot)
	assert.Equal(t, 227, cfg.Height)
	assert.Equal(t, LayoutCompact, cfg.ManifestLayout)
	assert.Equal(t, "ledger", cfg.Ledger.Dir)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad mode", func(c *Config) { c.Mode = "eval" }},
		{"zero buffer", func(c *Config) { c.BufferSize = 0 }},
		{"zero clip", func(c *Config) { c.ClipLength = 0 }},
		{"gray", func(c *Config) { c.Channels = 1 }},
		{"no list", func(c *Config) { c.VideoList = "" }},
		{"crop too big", func(c *Config) { c.Height, c.Crop.H = 300, 300 }},
		{"crop mismatch", func(c *Config) { c.Crop = models.Size{H: 200, W: 200} }},
		{"layout", func(c *Config) { c.ManifestLayout = "csv" }},
		{"ledger", func(c *Config) { c.Ledger.Kind = "redis" }},
		{"postgres db", func(c *Config) { c.Ledger.Kind = LedgerPostgres }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := TrainRGB()
			tt.mutate(&cfg)
			assert.ErrorIs(t, Validate(&cfg), ErrInvalid)
		})
	}
}

func TestValidateDefaults(t *testing.T) {
	cfg := Config{BufferSize: 1, ClipLength: 1, Channels: 3, Height: 8, Width: 8, VideoList: "x"}
	require.NoError(t, Validate(&cfg))
	assert.Equal(t, ModeTrain, cfg.Mode)
	assert.Equal(t, DefaultPoolSize, cfg.PoolSize)
	assert.Equal(t, DefaultReshape, cfg.Reshape)
	assert.Equal(t, models.Size{H: 8, W: 8}, cfg.Crop)
	assert.Equal(t, LedgerNone, cfg.Ledger.Kind)
}
