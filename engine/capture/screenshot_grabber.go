package capture

import (
	"bytes"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/Carmen-Shannon/chromascope/common"
	"github.com/Carmen-Shannon/chromascope/engine/gpu"
	"github.com/kbinani/screenshot"
)

// ScreenshotGrabber captures a display with one screenshot per frame. Two identical consecutive
// screenshots report zero accumulated frames.
type ScreenshotGrabber struct {
	mu      sync.Mutex
	display int
	bounds  image.Rectangle
	last    []byte
	held    bool
}

var _ Grabber = &ScreenshotGrabber{}

// NewScreenshotGrabber creates a grabber for an active display.
//
// Parameters:
//   - display: the display index, 0 being the primary display
//
// Returns:
//   - *ScreenshotGrabber: the grabber
//   - error: an error if the display does not exist
func NewScreenshotGrabber(display int) (*ScreenshotGrabber, error) {
	n := screenshot.NumActiveDisplays()
	if display < 0 || display >= n {
		return nil, fmt.Errorf("display %d out of range, %d active", display, n)
	}
	bounds := screenshot.GetDisplayBounds(display)
	logf("screenshot grabber on display %d %v", display, bounds)
	return &ScreenshotGrabber{display: display, bounds: bounds}, nil
}

// AcquireNextFrame takes a screenshot. The capture is synchronous so timeout is not used.
func (g *ScreenshotGrabber) AcquireNextFrame(time.Duration) (*Frame, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.held {
		return nil, ErrInvalidCall
	}

	img, err := screenshot.CaptureRect(g.bounds)
	if err != nil {
		return nil, fmt.Errorf("capture display %d: %w", g.display, err)
	}
	g.held = true
	if bytes.Equal(img.Pix, g.last) {
		return &Frame{}, nil
	}
	g.last = img.Pix

	b := img.Bounds()
	return &Frame{
		Data: common.TextureStagingData{
			Pixels:      img.Pix,
			Width:       uint32(b.Dx()),
			Height:      uint32(b.Dy()),
			BytesPerRow: uint32(img.Stride),
		},
		AccumulatedFrames: 1,
	}, nil
}

func (g *ScreenshotGrabber) ReleaseFrame() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.held {
		return ErrInvalidCall
	}
	g.held = false
	return nil
}

func (g *ScreenshotGrabber) Format() gpu.Format {
	return gpu.FormatRGBA8Unorm
}

func (g *ScreenshotGrabber) Bounds() common.Rect {
	return common.NewRect(int32(g.bounds.Min.X), int32(g.bounds.Min.Y), int32(g.bounds.Dx()), int32(g.bounds.Dy()))
}

func (g *ScreenshotGrabber) Close() error {
	return nil
}
