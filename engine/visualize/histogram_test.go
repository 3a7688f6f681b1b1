package visualize

import (
	"image/color"
	"testing"

	"github.com/Carmen-Shannon/chromascope/common"
	"github.com/Carmen-Shannon/chromascope/engine/config"
	"github.com/Carmen-Shannon/chromascope/engine/gpu"
	"github.com/Carmen-Shannon/chromascope/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/chromascope/engine/visualize/params"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func binWords(t *testing.T, h *Histogram) [HistogramBuffers][]uint32 {
	t.Helper()
	var out [HistogramBuffers][]uint32
	for i, b := range h.Buffers() {
		host := gpu.HostBufferOf(b.Buffer)
		require.NotNil(t, host)
		out[i] = host.Words
	}
	return out
}

func TestHistogramSolidRed(t *testing.T) {
	rig := newRig(t, solidImage(8, 4, color.RGBA{R: 255, A: 255}))
	h, err := NewHistogram(rig.ctx.Initializer())
	require.NoError(t, err)

	cfg := baseConfig(8, 4)
	cfg.EnableHistogram = true
	rig.frame(t, rig.capture(t), cfg, h)

	bins := binWords(t, h)
	assert.Equal(t, uint32(32), bins[1][255], "red")
	assert.Equal(t, uint32(32), bins[0][0], "green")
	assert.Equal(t, uint32(32), bins[2][0], "blue")
	for i := 0; i < 3; i++ {
		assert.Equal(t, uint64(32), sum(bins[i]))
	}
	assert.Zero(t, sum(bins[3]), "luma is only counted in rgbl mode")
	for _, b := range h.Buffers() {
		assert.Equal(t, gpu.StateShaderResource, b.State())
	}
}

func TestHistogramModes(t *testing.T) {
	img := solidImage(6, 6, color.RGBA{G: 255, A: 255})
	img.SetRGBA(0, 0, color.RGBA{R: 128, G: 128, B: 128, A: 255})

	cases := []struct {
		mode  config.HistogramMode
		check func(t *testing.T, bins [HistogramBuffers][]uint32)
	}{
		{config.HistogramModeRGBL, func(t *testing.T, bins [HistogramBuffers][]uint32) {
			for i := range bins {
				assert.Equal(t, uint64(36), sum(bins[i]))
			}
			assert.Equal(t, uint32(35), bins[0][255])
			assert.Equal(t, uint32(1), bins[3][128])
			assert.Equal(t, uint32(35), bins[3][toBin(common.LumaG)])
		}},
		{config.HistogramModeLuma, func(t *testing.T, bins [HistogramBuffers][]uint32) {
			assert.Equal(t, uint64(36), sum(bins[0]))
			assert.Zero(t, sum(bins[1]))
		}},
		{config.HistogramModeHue, func(t *testing.T, bins [HistogramBuffers][]uint32) {
			// the gray pixel has no hue
			assert.Equal(t, uint64(35), sum(bins[0]))
			assert.Equal(t, uint32(35), bins[0][85])
		}},
	}
	for _, tc := range cases {
		t.Run(tc.mode.String(), func(t *testing.T) {
			rig := newRig(t, img)
			h, err := NewHistogram(rig.ctx.Initializer())
			require.NoError(t, err)

			cfg := baseConfig(6, 6)
			cfg.EnableHistogram = true
			cfg.HistogramMode = tc.mode
			rig.frame(t, rig.capture(t), cfg, h)
			tc.check(t, binWords(t, h))
		})
	}
}

func TestHistogramClearsEveryFrame(t *testing.T) {
	rig := newRig(t, solidImage(4, 4, color.RGBA{B: 255, A: 255}))
	h, err := NewHistogram(rig.ctx.Initializer())
	require.NoError(t, err)

	cfg := baseConfig(4, 4)
	cfg.EnableHistogram = true
	view := rig.capture(t)
	rig.frame(t, view, cfg, h)
	require.Equal(t, uint64(16), sum(binWords(t, h)[2]))

	// a window beside the captured screen counts nothing
	cfg.WindowRect = common.NewRect(100, 0, 4, 4)
	rig.frame(t, view, cfg, h)
	for _, words := range binWords(t, h) {
		assert.Zero(t, sum(words))
	}
}

func TestHistogramCountsOnlyTheWindow(t *testing.T) {
	rig := newRig(t, solidImage(16, 16, color.RGBA{R: 255, G: 255, B: 255, A: 255}))
	h, err := NewHistogram(rig.ctx.Initializer())
	require.NoError(t, err)

	cfg := baseConfig(5, 3)
	cfg.WindowRect.X = 14
	cfg.EnableHistogram = true
	rig.frame(t, rig.capture(t), cfg, h)

	// only two of the five columns lie on the screen
	assert.Equal(t, uint64(6), sum(binWords(t, h)[0]))
	assert.LessOrEqual(t, sum(binWords(t, h)[1]), uint64(15))
}

func TestHistogramDisabledRecordsNothing(t *testing.T) {
	rig := newRig(t, solidImage(2, 2, color.RGBA{A: 255}))
	h, err := NewHistogram(rig.ctx.Initializer())
	require.NoError(t, err)

	rig.frame(t, rig.capture(t), baseConfig(2, 2), h)
	for _, b := range h.Buffers() {
		assert.Equal(t, gpu.StateShaderResource, b.State())
	}
}

func TestHistogramScale(t *testing.T) {
	cfg := baseConfig(100, 50)
	cfg.HistogramScale = 0.5
	assert.InDelta(t, 0.5*10/5000.0, HistogramScale(cfg), 1e-9)

	cfg.HistogramMode = config.HistogramModeHue
	assert.InDelta(t, 0.5*0.2/5000.0, HistogramScale(cfg), 1e-9)

	cfg.WindowRect.Width = 0
	assert.Zero(t, HistogramScale(cfg))
}

func hostTarget(w, h int, fill [4]float32) *gpu.Texture {
	img := gpu.NewHostImage(w, h)
	img.Fill(fill)
	return gpu.NewTexture(gpu.TextureDescriptor{Label: "target", Width: uint32(w), Height: uint32(h), Format: gpu.FormatRGBA32Float}, img)
}

func hostBins(counts func(i int) uint32) gpu.Descriptor {
	host := gpu.NewHostBuffer(params.HistogramBins * 4)
	for i := range host.Words {
		host.Words[i] = counts(i)
	}
	buf := gpu.NewBuffer(gpu.BufferDescriptor{Label: "bins", Size: params.HistogramBins * 4}, host)
	return gpu.BufferView(gpu.ViewSRV, buf)
}

func TestHistogramDrawMultipliesBars(t *testing.T) {
	target := hostTarget(256, 2, [4]float32{1, 1, 1, 1})
	p := params.GPUHistogramDrawParams{Colors: HistogramColors, Scale: 1}
	inv := &pipeline.Invocation{
		Kind:          gpu.CmdDraw,
		VertexCount:   2 * params.HistogramBins,
		InstanceCount: 2,
		Constants:     p.Marshal(),
		SRVs: []gpu.Descriptor{
			hostBins(func(int) uint32 { return 1 }),
			hostBins(func(int) uint32 { return 0 }),
		},
		Viewport: gpu.Viewport{Width: 256, Height: 2, MaxDepth: 1},
		Target:   target,
	}
	require.NoError(t, histogramDrawKernel(inv))

	img := gpu.HostImageOf(target)
	for _, at := range [][2]int{{0, 0}, {128, 1}, {255, 1}} {
		c := img.At(at[0], at[1])
		assert.InDelta(t, 0.2, c[0], 1e-5)
		assert.InDelta(t, 1, c[1], 1e-5)
		assert.InDelta(t, 0.2, c[2], 1e-5)
		assert.InDelta(t, 1, c[3], 1e-5)
	}
}

func TestBarTopInterpolates(t *testing.T) {
	heights := []float32{1, 0, 0.5}
	top, ok := barTop(heights, 0.25)
	require.True(t, ok)
	assert.InDelta(t, 0.75, top, 1e-6)

	top, ok = barTop(heights, 2)
	require.True(t, ok)
	assert.InDelta(t, 0.5, top, 1e-6)

	_, ok = barTop(heights, 2.5)
	assert.False(t, ok)
}
