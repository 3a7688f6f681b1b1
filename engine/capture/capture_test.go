package capture

import (
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Carmen-Shannon/chromascope/common"
	"github.com/Carmen-Shannon/chromascope/engine/gpu"
	"github.com/Carmen-Shannon/chromascope/engine/renderer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func newContext(t *testing.T) *renderer.Context {
	t.Helper()
	b, err := renderer.NewBackend(renderer.BackendTypeSoftware, nil, renderer.WithWorkers(1))
	require.NoError(t, err)
	ctx, err := renderer.NewContext(b)
	require.NoError(t, err)
	t.Cleanup(ctx.Release)
	return ctx
}

// scriptedGrabber replays a fixed list of AcquireNextFrame results.
type scriptedGrabber struct {
	results  []error
	releases []error
	format   gpu.Format
}

func (g *scriptedGrabber) AcquireNextFrame(time.Duration) (*Frame, error) {
	err := g.results[0]
	g.results = g.results[1:]
	if err != nil {
		return nil, err
	}
	return &Frame{}, nil
}

func (g *scriptedGrabber) ReleaseFrame() error {
	if len(g.releases) == 0 {
		return nil
	}
	err := g.releases[0]
	g.releases = g.releases[1:]
	return err
}

func (g *scriptedGrabber) Format() gpu.Format  { return g.format }
func (g *scriptedGrabber) Bounds() common.Rect { return common.Rect{} }
func (g *scriptedGrabber) Close() error        { return nil }

func TestImageGrabberReportsFrameOnce(t *testing.T) {
	g := NewImageGrabber(solid(3, 2, color.RGBA{R: 255, A: 255}))

	assert.ErrorIs(t, g.ReleaseFrame(), ErrInvalidCall)

	f, err := g.AcquireNextFrame(time.Second)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), f.AccumulatedFrames)
	assert.Equal(t, uint32(3), f.Data.Width)
	assert.Equal(t, uint32(12), f.Data.BytesPerRow)

	_, err = g.AcquireNextFrame(time.Second)
	assert.ErrorIs(t, err, ErrInvalidCall)
	require.NoError(t, g.ReleaseFrame())

	f, err = g.AcquireNextFrame(time.Second)
	require.NoError(t, err)
	assert.Zero(t, f.AccumulatedFrames)
	require.NoError(t, g.ReleaseFrame())

	g.SetImage(solid(1, 1, color.RGBA{B: 255, A: 255}))
	f, err = g.AcquireNextFrame(time.Second)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), f.AccumulatedFrames)
	assert.Equal(t, []byte{0, 0, 255, 255}, f.Data.Pixels)
}

func TestImageGrabberNormalizesSubImages(t *testing.T) {
	src := solid(4, 4, color.RGBA{G: 255, A: 255})
	g := NewImageGrabber(src.SubImage(image.Rect(1, 1, 3, 4)))
	assert.Equal(t, common.NewRect(1, 1, 2, 3), g.Bounds())

	f, err := g.AcquireNextFrame(0)
	require.NoError(t, err)
	assert.Len(t, f.Data.Pixels, 2*3*4)
}

func TestLoadImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frame.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, solid(5, 4, color.RGBA{R: 10, G: 20, B: 30, A: 255})))
	require.NoError(t, f.Close())

	g, err := LoadImage(path)
	require.NoError(t, err)
	assert.Equal(t, common.NewRect(0, 0, 5, 4), g.Bounds())

	_, err = LoadImage(filepath.Join(t.TempDir(), "missing.png"))
	assert.Error(t, err)
}

func TestOpenRejectsUnknownSource(t *testing.T) {
	_, err := Open("vnc", 0)
	assert.Error(t, err)
}

func TestDuplicateUploadsFrame(t *testing.T) {
	ctx := newContext(t)
	g := NewImageGrabber(solid(4, 2, color.RGBA{R: 255, G: 128, A: 255}))
	d, err := NewDuplication(ctx.Initializer(), g)
	require.NoError(t, err)
	assert.Equal(t, gpu.FormatRGBA8UnormSRGB, d.Format())

	view, ok, err := d.Duplicate()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, gpu.ViewSRV, view.Kind)
	assert.Equal(t, gpu.FormatRGBA8UnormSRGB, view.Format)
	assert.GreaterOrEqual(t, view.Slot, 0)

	img := gpu.HostImageOf(view.Texture)
	require.NotNil(t, img)
	c := img.At(3, 1)
	assert.InDelta(t, 1, c[0], 1e-6)
	assert.InDelta(t, common.SRGBToLinear(128.0/255), c[1], 1e-6)

	_, ok, err = d.Duplicate()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDuplicateRecreatesTextureOnResize(t *testing.T) {
	ctx := newContext(t)
	g := NewImageGrabber(solid(4, 2, color.RGBA{A: 255}))
	d, err := NewDuplication(ctx.Initializer(), g)
	require.NoError(t, err)

	first, ok, err := d.Duplicate()
	require.NoError(t, err)
	require.True(t, ok)

	g.SetImage(solid(8, 8, color.RGBA{A: 255}))
	second, ok, err := d.Duplicate()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, first.Slot, second.Slot)
	assert.NotSame(t, first.Texture, second.Texture)
	assert.Equal(t, uint32(8), second.Texture.Width)
}

func TestDuplicateReleasesTextureOnResize(t *testing.T) {
	ctx := newContext(t)
	live, ok := ctx.Initializer().Backend().(interface{ LiveTextures() int })
	require.True(t, ok)
	before := live.LiveTextures()

	g := NewImageGrabber(solid(4, 2, color.RGBA{A: 255}))
	d, err := NewDuplication(ctx.Initializer(), g)
	require.NoError(t, err)

	first, ok, err := d.Duplicate()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, before+1, live.LiveTextures())

	for _, size := range []int{8, 16} {
		g.SetImage(solid(size, size, color.RGBA{A: 255}))
		_, ok, err = d.Duplicate()
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, before+1, live.LiveTextures(), "size %d", size)
	}
	assert.Nil(t, gpu.HostImageOf(first.Texture))

	require.NoError(t, d.Close())
	assert.Equal(t, before, live.LiveTextures())
}

func TestDuplicateTimeoutAndErrors(t *testing.T) {
	ctx := newContext(t)
	boom := errors.New("device removed")
	g := &scriptedGrabber{
		format:   gpu.FormatBGRA8Unorm,
		results:  []error{ErrWaitTimeout, nil, boom},
		releases: []error{ErrInvalidCall},
	}
	d, err := NewDuplication(ctx.Initializer(), g)
	require.NoError(t, err)
	assert.Equal(t, gpu.FormatBGRA8UnormSRGB, d.Format())

	_, ok, err := d.Duplicate()
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = d.Duplicate()
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = d.Duplicate()
	assert.ErrorIs(t, err, boom)
}

func TestDuplicateFailsOnReleaseError(t *testing.T) {
	ctx := newContext(t)
	boom := errors.New("access lost")
	g := &scriptedGrabber{format: gpu.FormatRGBA16Float, releases: []error{boom}}
	d, err := NewDuplication(ctx.Initializer(), g)
	require.NoError(t, err)
	assert.Equal(t, gpu.FormatRGBA16Float, d.Format())

	_, _, err = d.Duplicate()
	assert.ErrorIs(t, err, boom)
}

func TestNewDuplicationRejectsFormat(t *testing.T) {
	ctx := newContext(t)
	_, err := NewDuplication(ctx.Initializer(), &scriptedGrabber{format: gpu.FormatDepth16Unorm})
	assert.Error(t, err)
}
