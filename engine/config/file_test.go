package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Carmen-Shannon/chromascope/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestParseEmptyFileUsesPerKeyDefaults(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, common.NewRect(100, 100, 640, 480), cfg.WindowRect)
	assert.Equal(t, float32(0.5), cfg.HistogramScale)
	assert.Equal(t, float32(1), cfg.BgOpacity)
	assert.False(t, cfg.EnableFilter)
}

func TestParseValues(t *testing.T) {
	doc := `
enable-filter = 1
filter-mode = 3
enable-histogram = true
histogram-mode = "2"
histogram-scale = 0.25
enable-color-cloud = "1"
color-cloud-mode = 1
show-grid = 0
bg-opacity = 0.5
window-x = -20
window-y = 40
window-width = 800
window-height = 600
`
	cfg, err := Parse([]byte(doc))
	require.NoError(t, err)
	assert.True(t, cfg.EnableFilter)
	assert.Equal(t, FilterModeLuma, cfg.FilterMode)
	assert.True(t, cfg.EnableHistogram)
	assert.Equal(t, HistogramModeLuma, cfg.HistogramMode)
	assert.Equal(t, float32(0.25), cfg.HistogramScale)
	assert.True(t, cfg.EnableColorCloud)
	assert.Equal(t, ColorCloudModeHSL, cfg.ColorCloudMode)
	assert.False(t, cfg.ShowGrid)
	assert.Equal(t, float32(0.5), cfg.BgOpacity)
	assert.Equal(t, common.NewRect(0, 40, 800, 600), cfg.WindowRect)
}

func TestParseUnparsableValuesFallBack(t *testing.T) {
	doc := `
enable-filter = "yes"
filter-mode = "lots"
histogram-scale = "wide"
bg-opacity = [1, 2]
window-width = 1.5
color-cloud-mode = 7
`
	cfg, err := Parse([]byte(doc))
	require.NoError(t, err)
	assert.False(t, cfg.EnableFilter)
	assert.Equal(t, FilterModeRGB, cfg.FilterMode)
	assert.Equal(t, float32(0.5), cfg.HistogramScale)
	assert.Equal(t, float32(1), cfg.BgOpacity)
	assert.Equal(t, int32(640), cfg.WindowRect.Width)
	assert.Equal(t, ColorCloudModeRGB, cfg.ColorCloudMode)
}

func TestLoadInvalidDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("enable-filter = = ="), 0o644))

	cfg, err := Load(path)
	assert.Error(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestSaveThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chromascope.toml")

	cfg := Default()
	cfg.EnableHistogram = true
	cfg.HistogramMode = HistogramModeHue
	cfg.HistogramScale = 0.75
	cfg.EnableColorCloud = true
	cfg.ShowGrid = true
	cfg.BgOpacity = 0.25
	cfg.WindowRect = common.NewRect(5, 6, 700, 500)
	cfg.FilterChannels[2] = false
	cfg.Rotate(0.5, 0.5)
	require.NoError(t, Save(path, cfg))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "show-grid = 1")
	assert.Contains(t, string(data), "enable-filter = 0")

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.True(t, loaded.EnableHistogram)
	assert.Equal(t, HistogramModeHue, loaded.HistogramMode)
	assert.Equal(t, float32(0.75), loaded.HistogramScale)
	assert.True(t, loaded.EnableColorCloud)
	assert.True(t, loaded.ShowGrid)
	assert.Equal(t, float32(0.25), loaded.BgOpacity)
	assert.Equal(t, cfg.WindowRect, loaded.WindowRect)

	// session state is not persisted
	assert.Equal(t, [4]bool{true, true, true, true}, loaded.FilterChannels)
	assert.Equal(t, common.IdentityMatrix(), loaded.Rotation)
}
