package engine

import (
	"errors"
	"image"
	"image/color"
	"path/filepath"
	"testing"
	"time"

	"github.com/Carmen-Shannon/chromascope/common"
	"github.com/Carmen-Shannon/chromascope/engine/capture"
	"github.com/Carmen-Shannon/chromascope/engine/config"
	"github.com/Carmen-Shannon/chromascope/engine/gpu"
	"github.com/Carmen-Shannon/chromascope/engine/renderer"
	"github.com/Carmen-Shannon/chromascope/engine/visualize"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingPass struct{ err error }

func (p failingPass) Name() string { return "failing" }

func (p failingPass) Process(*renderer.Renderer, config.Config) error { return p.err }

func blueImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{B: 255, A: 255})
		}
	}
	return img
}

// headless creates a software engine on a settings file sized to an 8x8 screen.
func headless(t *testing.T, presents chan *gpu.HostImage, extra ...EngineBuilderOption) (Engine, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chromascope.toml")
	cfg := config.Default()
	cfg.WindowRect = common.NewRect(0, 0, 8, 8)
	cfg.EnableFilter = true
	require.NoError(t, config.Save(path, cfg))

	hook := func(img *gpu.HostImage) {
		select {
		case presents <- img:
		default:
		}
	}
	opts := append([]EngineBuilderOption{
		WithConfigPath(path),
		WithBackend(renderer.BackendTypeSoftware),
		WithGrabber(capture.NewImageGrabber(blueImage(8, 8))),
		WithRendererOptions(renderer.WithWorkers(1), renderer.WithPresentHook(hook)),
		WithVisualizerOptions(visualize.WithCaptureWait(5*time.Millisecond), visualize.WithIdleBackoff(time.Millisecond)),
	}, extra...)
	e, err := NewEngine(opts...)
	require.NoError(t, err)
	return e, path
}

func TestHeadlessEngineRunsAndSavesSettings(t *testing.T) {
	presents := make(chan *gpu.HostImage, 1)
	e, path := headless(t, presents)
	assert.Nil(t, e.Window())

	done := make(chan error, 1)
	go func() { done <- e.Run() }()

	select {
	case img := <-presents:
		assert.Equal(t, 8, img.Width)
		assert.InDelta(t, 1, img.At(4, 4)[2], 1e-5)
	case <-time.After(5 * time.Second):
		t.Fatal("no frame presented")
	}

	e.Store().Update(func(c *config.Config) { c.HistogramMode = config.HistogramModeHue })
	e.Quit()
	e.Quit()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return")
	}
	assert.ErrorIs(t, e.Visualizer().Err(), visualize.ErrTerminated)

	saved, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, config.HistogramModeHue, saved.HistogramMode)
	assert.True(t, saved.EnableFilter)
}

func TestHeadlessEngineReportsPipelineErrors(t *testing.T) {
	boom := errors.New("device lost")
	presents := make(chan *gpu.HostImage, 1)
	e, _ := headless(t, presents, WithVisualizerOptions(visualize.WithPasses(failingPass{err: boom})))

	done := make(chan error, 1)
	go func() { done <- e.Run() }()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, boom)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return")
	}
}

func TestNewEngineRejectsUnknownSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chromascope.toml")
	_, err := NewEngine(
		WithConfigPath(path),
		WithBackend(renderer.BackendTypeSoftware),
		WithCaptureSource("vnc", 0),
	)
	assert.Error(t, err)
}
