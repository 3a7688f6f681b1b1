// Package capture produces the desktop frames chromascope analyzes. A Grabber hands out frames in
// host memory and a Duplication uploads them into the capture texture sampled by the passes.
package capture

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Carmen-Shannon/chromascope/common"
	"github.com/Carmen-Shannon/chromascope/engine/gpu"
)

var (
	// ErrWaitTimeout is returned by AcquireNextFrame when no frame arrived within the timeout.
	ErrWaitTimeout = errors.New("capture: wait timed out")

	// ErrInvalidCall is returned when a frame is acquired while another one is held, or released
	// while none is held.
	ErrInvalidCall = errors.New("capture: invalid call")
)

// Frame is a captured image. Data stays valid until the next AcquireNextFrame call.
type Frame struct {
	// Data holds the pixels in the grabber's format.
	Data common.TextureStagingData
	// AccumulatedFrames counts the desktop updates since the previous frame. Zero means the desktop
	// did not change and Data is empty.
	AccumulatedFrames uint32
}

// Grabber is a source of desktop frames. A successfully acquired frame is held until ReleaseFrame.
type Grabber interface {
	// AcquireNextFrame waits up to timeout for the next frame.
	//
	// Parameters:
	//   - timeout: the longest time to wait
	//
	// Returns:
	//   - *Frame: the frame, held until ReleaseFrame
	//   - error: ErrWaitTimeout when nothing arrived, ErrInvalidCall when a frame is still held
	AcquireNextFrame(timeout time.Duration) (*Frame, error)

	// ReleaseFrame releases the held frame. Without a held frame it returns ErrInvalidCall.
	ReleaseFrame() error

	// Format returns the pixel format of every frame.
	Format() gpu.Format

	// Bounds returns the captured area in desktop coordinates.
	Bounds() common.Rect

	// Close releases the grabber.
	Close() error
}

// Source names a live grabber implementation.
type Source string

const (
	// SourceDXGI uses DXGI desktop duplication, Windows only.
	SourceDXGI Source = "dxgi"
	// SourceScreenshot polls the display with screenshots, on every platform.
	SourceScreenshot Source = "screenshot"
)

// Open creates a live grabber of the given source for display.
//
// Parameters:
//   - source: "dxgi" or "screenshot", case insensitive
//   - display: the index of the display to capture
//
// Returns:
//   - Grabber: the grabber
//   - error: an error if the source is unknown or unavailable
func Open(source string, display int) (Grabber, error) {
	switch Source(strings.ToLower(source)) {
	case SourceDXGI, "":
		g, err := NewDXGIGrabber(display)
		if err != nil {
			return nil, err
		}
		return g, nil
	case SourceScreenshot:
		g, err := NewScreenshotGrabber(display)
		if err != nil {
			return nil, err
		}
		return g, nil
	}
	return nil, fmt.Errorf("unknown capture source %q", source)
}
