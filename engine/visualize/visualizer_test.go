package visualize

import (
	"errors"
	"image"
	"image/color"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Carmen-Shannon/chromascope/common"
	"github.com/Carmen-Shannon/chromascope/engine/capture"
	"github.com/Carmen-Shannon/chromascope/engine/config"
	"github.com/Carmen-Shannon/chromascope/engine/gpu"
	"github.com/Carmen-Shannon/chromascope/engine/renderer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedPass fails or panics on its first call.
type scriptedPass struct {
	err   error
	panic bool
}

func (p *scriptedPass) Name() string { return "scripted" }

func (p *scriptedPass) Process(*renderer.Renderer, config.Config) error {
	if p.panic {
		panic("boom")
	}
	return p.err
}

// stalledGrabber never sees a desktop update: every acquire waits the full timeout.
type stalledGrabber struct {
	acquires atomic.Int32
}

func (g *stalledGrabber) AcquireNextFrame(timeout time.Duration) (*capture.Frame, error) {
	g.acquires.Add(1)
	time.Sleep(timeout)
	return nil, capture.ErrWaitTimeout
}

func (g *stalledGrabber) ReleaseFrame() error { return capture.ErrInvalidCall }
func (g *stalledGrabber) Format() gpu.Format  { return gpu.FormatBGRA8Unorm }
func (g *stalledGrabber) Bounds() common.Rect { return common.NewRect(0, 0, 2, 2) }
func (g *stalledGrabber) Close() error        { return nil }

func waitPresent(t *testing.T, rig *testRig) *gpu.HostImage {
	t.Helper()
	select {
	case img := <-rig.presents.ch:
		return img
	case <-time.After(5 * time.Second):
		t.Fatal("no frame presented")
	}
	return nil
}

func TestVisualizerLumaFilter(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 3))
	colors := []color.RGBA{
		{R: 255, A: 255},
		{G: 255, A: 255},
		{B: 255, A: 255},
		{R: 64, G: 128, B: 192, A: 255},
	}
	for y := 0; y < 3; y++ {
		for x := 0; x < 4; x++ {
			img.SetRGBA(x, y, colors[x])
		}
	}
	rig := newRig(t, img)

	cfg := baseConfig(4, 3)
	cfg.EnableFilter = true
	cfg.FilterMode = config.FilterModeLuma
	store := config.NewStore(cfg)

	v, err := New(rig.ctx, rig.dup, store, WithCaptureWait(10*time.Millisecond), WithIdleBackoff(time.Millisecond))
	require.NoError(t, err)
	t.Cleanup(v.Terminate)

	out := waitPresent(t, rig)
	require.Equal(t, 4, out.Width)
	require.Equal(t, 3, out.Height)
	for x, c := range colors {
		r, g, b := float32(c.R)/255, float32(c.G)/255, float32(c.B)/255
		want := common.SRGBToLinear(common.Luma(r, g, b))
		got := out.At(x, 2)
		assert.InDelta(t, want, got[0], 1e-4, "pixel %d", x)
		assert.InDelta(t, got[0], got[1], 1e-6)
		assert.InDelta(t, got[0], got[2], 1e-6)
		assert.Equal(t, float32(1), got[3])
	}
	assert.Eventually(t, func() bool { return v.Frames() >= 1 }, time.Second, time.Millisecond)
	assert.NoError(t, v.Err())
}

func TestVisualizerTerminate(t *testing.T) {
	rig := newRig(t, solidImage(2, 2, color.RGBA{A: 255}))
	const wait = 50 * time.Millisecond
	v, err := New(rig.ctx, rig.dup, config.NewStore(baseConfig(2, 2)), WithCaptureWait(wait), WithIdleBackoff(time.Millisecond))
	require.NoError(t, err)
	waitPresent(t, rig)

	start := time.Now()
	v.Terminate()
	assert.Less(t, time.Since(start), wait+500*time.Millisecond)

	select {
	case <-v.Done():
	default:
		t.Fatal("done channel still open")
	}
	assert.ErrorIs(t, v.Err(), ErrTerminated)
	v.Terminate()
}

func TestVisualizerTerminateDuringCaptureWait(t *testing.T) {
	rig := newRig(t, solidImage(2, 2, color.RGBA{A: 255}))
	g := &stalledGrabber{}
	dup, err := capture.NewDuplication(rig.ctx.Initializer(), g)
	require.NoError(t, err)

	const wait = 200 * time.Millisecond
	v, err := New(rig.ctx, dup, config.NewStore(baseConfig(2, 2)), WithCaptureWait(wait), WithIdleBackoff(time.Millisecond))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return g.acquires.Load() >= 1 }, time.Second, time.Millisecond)
	time.Sleep(50 * time.Millisecond)

	start := time.Now()
	v.Terminate()
	assert.Less(t, time.Since(start), wait+150*time.Millisecond)

	select {
	case <-v.Done():
	default:
		t.Fatal("done channel still open")
	}
	assert.ErrorIs(t, v.Err(), ErrTerminated)
	assert.Zero(t, v.Frames())
}

func TestVisualizerStopsOnPassError(t *testing.T) {
	boom := errors.New("device lost")
	rig := newRig(t, solidImage(2, 2, color.RGBA{A: 255}))
	v, err := New(rig.ctx, rig.dup, config.NewStore(baseConfig(2, 2)), WithPasses(&scriptedPass{err: boom}))
	require.NoError(t, err)
	t.Cleanup(v.Terminate)

	select {
	case <-v.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("pipeline did not stop")
	}
	assert.ErrorIs(t, v.Err(), boom)
	assert.Zero(t, v.Frames())
}

func TestVisualizerRecoversPanics(t *testing.T) {
	rig := newRig(t, solidImage(2, 2, color.RGBA{A: 255}))
	v, err := New(rig.ctx, rig.dup, config.NewStore(baseConfig(2, 2)), WithPasses(&scriptedPass{panic: true}))
	require.NoError(t, err)
	t.Cleanup(v.Terminate)

	<-v.Done()
	require.Error(t, v.Err())
	assert.Contains(t, v.Err().Error(), "pipeline panic")
}

func TestVisualizerSkipsEmptyWindow(t *testing.T) {
	rig := newRig(t, solidImage(2, 2, color.RGBA{A: 255}))
	cfg := baseConfig(0, 0)
	v, err := New(rig.ctx, rig.dup, config.NewStore(cfg), WithCaptureWait(time.Millisecond), WithIdleBackoff(time.Millisecond))
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)
	v.Terminate()
	assert.Zero(t, v.Frames())
	assert.ErrorIs(t, v.Err(), ErrTerminated)
}

func TestNewPassesOrder(t *testing.T) {
	rig := newRig(t, solidImage(1, 1, color.RGBA{A: 255}))
	passes, err := NewPasses(rig.ctx.Initializer())
	require.NoError(t, err)

	names := make([]string, len(passes))
	for i, p := range passes {
		names[i] = p.Name()
	}
	assert.Equal(t, []string{"filter", "color cloud", "grid", "histogram"}, names)
}
