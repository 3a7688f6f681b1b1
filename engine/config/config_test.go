package config

import (
	"testing"

	"github.com/Carmen-Shannon/chromascope/common"
	"github.com/stretchr/testify/assert"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.False(t, cfg.EnableFilter)
	assert.False(t, cfg.EnableHistogram)
	assert.False(t, cfg.EnableColorCloud)
	assert.False(t, cfg.ShowGrid)
	assert.Equal(t, [4]bool{true, true, true, true}, cfg.FilterChannels)
	assert.Equal(t, float32(0.5), cfg.HistogramScale)
	assert.Equal(t, float32(1), cfg.BgOpacity)
	assert.Equal(t, common.NewRect(100, 100, 1280, 720), cfg.WindowRect)
	assert.Equal(t, common.IdentityMatrix(), cfg.Rotation)
}

func TestCloneIsIndependent(t *testing.T) {
	cfg := Default()
	clone := cfg.Clone()
	clone.FilterChannels[0] = false
	clone.Rotate(0.25, 0)
	assert.True(t, cfg.FilterChannels[0])
	assert.Equal(t, common.IdentityMatrix(), cfg.Rotation)
}

func TestProjectionMatrixIsDeterministic(t *testing.T) {
	cfg := Default()
	cfg.Rotate(0.1, -0.3)
	assert.Equal(t, cfg.ProjectionMatrix(), cfg.ProjectionMatrix())
}

func TestProjectionMatrixFitsShorterSide(t *testing.T) {
	cfg := Default()
	p := cfg.ProjectionMatrix().Transform(common.Vec4{1, 1, 1, 1})
	scale := float32(0.9 * 720.0 / 1280.0)
	assert.InDelta(t, scale, p[0], 1e-6)
	assert.InDelta(t, scale, p[1], 1e-6)
	assert.InDelta(t, 0.75, p[2], 1e-6)

	cfg.WindowRect = common.NewRect(0, 0, 500, 500)
	p = cfg.ProjectionMatrix().Transform(common.Vec4{1, 0, 0, 1})
	assert.InDelta(t, 0.9, p[0], 1e-6)
}

func TestRotateHalfTurn(t *testing.T) {
	cfg := Default()
	cfg.Rotate(1, 0)
	p := cfg.Rotation.Transform(common.Vec4{1, 0, 0, 1})
	assert.InDelta(t, -1, p[0], 1e-5)
	assert.InDelta(t, 0, p[2], 1e-5)
}

func TestAdjustClamps(t *testing.T) {
	cfg := Default()
	cfg.AdjustHistogramScale(0.75)
	assert.Equal(t, float32(1), cfg.HistogramScale)
	cfg.AdjustHistogramScale(-3)
	assert.Equal(t, float32(0), cfg.HistogramScale)

	cfg.AdjustBgOpacity(-0.25)
	assert.InDelta(t, 0.75, cfg.BgOpacity, 1e-6)
	assert.InDelta(t, 0.25, cfg.ClearColor()[3], 1e-6)
}

func TestFilterMask(t *testing.T) {
	cfg := Default()
	cfg.FilterChannels[1] = false
	assert.Equal(t, [3]float32{1, 0, 1}, cfg.FilterMask())

	cfg.FilterChannels[3] = false
	assert.Equal(t, [3]float32{1, 0, 1}, cfg.FilterMask())
}

func TestHistogramModes(t *testing.T) {
	assert.Equal(t, uint32(3), HistogramModeRGB.Channels())
	assert.Equal(t, uint32(4), HistogramModeRGBL.Channels())
	assert.Equal(t, uint32(1), HistogramModeLuma.Channels())
	assert.Equal(t, uint32(1), HistogramModeHue.Channels())
	assert.Equal(t, HistogramModeRGB, HistogramModeHue.Next())
	assert.Equal(t, "rgbl", HistogramModeRGB.Next().String())
	assert.False(t, HistogramMode(9).Valid())
	assert.Equal(t, "FilterMode(7)", FilterMode(7).String())
}
