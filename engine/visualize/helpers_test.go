package visualize

import (
	"image"
	"image/color"
	"sync"
	"testing"

	"github.com/Carmen-Shannon/chromascope/common"
	"github.com/Carmen-Shannon/chromascope/engine/capture"
	"github.com/Carmen-Shannon/chromascope/engine/config"
	"github.com/Carmen-Shannon/chromascope/engine/gpu"
	"github.com/Carmen-Shannon/chromascope/engine/renderer"
	"github.com/stretchr/testify/require"
)

func solidImage(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

// presentLog keeps the last image presented by a software backend.
type presentLog struct {
	mu   sync.Mutex
	last *gpu.HostImage
	ch   chan *gpu.HostImage
}

func (l *presentLog) hook(img *gpu.HostImage) {
	l.mu.Lock()
	l.last = img
	l.mu.Unlock()
	select {
	case l.ch <- img:
	default:
	}
}

func (l *presentLog) Last() *gpu.HostImage {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.last
}

// testRig is a software context with a duplication of an image grabber.
type testRig struct {
	ctx      *renderer.Context
	grabber  *capture.ImageGrabber
	dup      *capture.Duplication
	presents *presentLog
}

func newRig(t *testing.T, img image.Image) *testRig {
	t.Helper()
	presents := &presentLog{ch: make(chan *gpu.HostImage, 1)}
	b, err := renderer.NewBackend(renderer.BackendTypeSoftware, nil, renderer.WithWorkers(2), renderer.WithPresentHook(presents.hook))
	require.NoError(t, err)
	ctx, err := renderer.NewContext(b)
	require.NoError(t, err)
	t.Cleanup(ctx.Release)

	g := capture.NewImageGrabber(img)
	dup, err := capture.NewDuplication(ctx.Initializer(), g)
	require.NoError(t, err)
	return &testRig{ctx: ctx, grabber: g, dup: dup, presents: presents}
}

// capture returns the view of the current grabber image.
func (r *testRig) capture(t *testing.T) gpu.Descriptor {
	t.Helper()
	view, ok, err := r.dup.Duplicate()
	require.NoError(t, err)
	require.True(t, ok)
	return view
}

// frame records and executes one frame running passes over view.
func (r *testRig) frame(t *testing.T, view gpu.Descriptor, cfg config.Config, passes ...Pass) *gpu.HostImage {
	t.Helper()
	w, h := windowSize(cfg)
	rend, err := r.ctx.CreateRenderer(w, h, cfg.ClearColor())
	require.NoError(t, err)
	rend.SetSharedSRV(view)
	for _, p := range passes {
		require.NoError(t, p.Process(rend, cfg))
	}
	require.NoError(t, r.ctx.Execute(rend))
	img := r.presents.Last()
	require.NotNil(t, img)
	return img
}

// baseConfig disables every pass and sizes the window to w*h at the screen origin.
func baseConfig(w, h int32) config.Config {
	cfg := config.Default()
	cfg.WindowRect = common.NewRect(0, 0, w, h)
	return cfg
}

func sum(words []uint32) uint64 {
	var total uint64
	for _, w := range words {
		total += uint64(w)
	}
	return total
}
