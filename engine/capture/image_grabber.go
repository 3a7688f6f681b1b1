package capture

import (
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"sync"
	"time"

	"github.com/Carmen-Shannon/chromascope/common"
	"github.com/Carmen-Shannon/chromascope/engine/gpu"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ImageGrabber serves a still image as if it were the desktop: the first acquired frame carries
// the image, later ones report no new frame until SetImage replaces it.
type ImageGrabber struct {
	mu      sync.Mutex
	img     *image.RGBA
	origin  image.Point
	changed bool
	held    bool
}

var _ Grabber = &ImageGrabber{}

// NewImageGrabber creates a grabber serving img.
func NewImageGrabber(img image.Image) *ImageGrabber {
	g := &ImageGrabber{}
	g.SetImage(img)
	return g
}

// LoadImage decodes a PNG, JPEG, BMP, TIFF or WebP file into an ImageGrabber.
//
// Parameters:
//   - path: the image file
//
// Returns:
//   - *ImageGrabber: the grabber
//   - error: an error if the file cannot be read or decoded
func LoadImage(path string) (*ImageGrabber, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	img, format, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode image %s: %w", path, err)
	}
	b := img.Bounds()
	logf("loaded %s image %s (%dx%d)", format, path, b.Dx(), b.Dy())
	return NewImageGrabber(img), nil
}

// SetImage replaces the served image. The next acquired frame carries it.
func (g *ImageGrabber) SetImage(img image.Image) {
	b := img.Bounds()
	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Stride != 4*b.Dx() {
		rgba = image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.img = rgba
	g.origin = b.Min
	g.changed = true
}

func (g *ImageGrabber) AcquireNextFrame(time.Duration) (*Frame, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.held {
		return nil, ErrInvalidCall
	}
	g.held = true
	if !g.changed {
		return &Frame{}, nil
	}
	g.changed = false

	b := g.img.Bounds()
	return &Frame{
		Data: common.TextureStagingData{
			Pixels:      g.img.Pix,
			Width:       uint32(b.Dx()),
			Height:      uint32(b.Dy()),
			BytesPerRow: uint32(g.img.Stride),
		},
		AccumulatedFrames: 1,
	}, nil
}

func (g *ImageGrabber) ReleaseFrame() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.held {
		return ErrInvalidCall
	}
	g.held = false
	return nil
}

func (g *ImageGrabber) Format() gpu.Format {
	return gpu.FormatRGBA8Unorm
}

func (g *ImageGrabber) Bounds() common.Rect {
	g.mu.Lock()
	defer g.mu.Unlock()
	b := g.img.Bounds()
	return common.NewRect(int32(g.origin.X), int32(g.origin.Y), int32(b.Dx()), int32(b.Dy()))
}

func (g *ImageGrabber) Close() error {
	return nil
}
