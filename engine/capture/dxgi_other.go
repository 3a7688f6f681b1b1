//go:build !windows

package capture

import (
	"errors"
	"time"

	"github.com/Carmen-Shannon/chromascope/common"
	"github.com/Carmen-Shannon/chromascope/engine/gpu"
)

// ErrDXGIUnsupported is returned by NewDXGIGrabber outside Windows.
var ErrDXGIUnsupported = errors.New("capture: desktop duplication requires windows")

// DXGIGrabber is only available on Windows.
type DXGIGrabber struct{}

var _ Grabber = &DXGIGrabber{}

// NewDXGIGrabber always fails outside Windows, use the screenshot source instead.
func NewDXGIGrabber(int) (*DXGIGrabber, error) {
	return nil, ErrDXGIUnsupported
}

func (*DXGIGrabber) AcquireNextFrame(time.Duration) (*Frame, error) { return nil, ErrDXGIUnsupported }
func (*DXGIGrabber) ReleaseFrame() error                            { return ErrInvalidCall }
func (*DXGIGrabber) Format() gpu.Format                             { return gpu.FormatUndefined }
func (*DXGIGrabber) Bounds() common.Rect                            { return common.Rect{} }
func (*DXGIGrabber) Close() error                                   { return nil }
