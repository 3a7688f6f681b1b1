package capture

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/Carmen-Shannon/chromascope/engine/gpu"
	"github.com/Carmen-Shannon/chromascope/engine/renderer"
)

// DefaultWait is the longest Duplicate waits for a desktop update.
const DefaultWait = 1000 * time.Millisecond

func logf(format string, args ...any) {
	log.Printf("[Capture] "+format, args...)
}

// Duplication turns the frames of a Grabber into a shader resource. It owns the capture texture
// and one fixed slot of the persistent descriptor heap, rewritten with every new frame.
type Duplication struct {
	grabber Grabber
	backend renderer.Backend
	heap    *gpu.DescriptorHeap
	slot    int
	wait    time.Duration

	format  gpu.Format
	texture *gpu.Texture
}

// NewDuplication negotiates the capture format and reserves the capture descriptor slot.
// 8-bit grabbers are sampled through their sRGB view, RGBA16F frames as they are.
//
// Parameters:
//   - init: the initializer of the rendering context
//   - grabber: the frame source, owned by the duplication from now on
//
// Returns:
//   - *Duplication: the duplication
//   - error: an error if the grabber format is unsupported or the heap is full
func NewDuplication(init *renderer.Initializer, grabber Grabber) (*Duplication, error) {
	var format gpu.Format
	switch f := grabber.Format(); f {
	case gpu.FormatBGRA8Unorm, gpu.FormatRGBA8Unorm:
		format = f.SRGBView()
	case gpu.FormatRGBA16Float:
		format = f
	default:
		return nil, fmt.Errorf("unsupported capture format %s", f)
	}

	slot, err := init.Heap().Next()
	if err != nil {
		return nil, err
	}
	return &Duplication{
		grabber: grabber,
		backend: init.Backend(),
		heap:    init.Heap(),
		slot:    slot,
		wait:    DefaultWait,
		format:  format,
	}, nil
}

// SetWait changes how long Duplicate waits for a desktop update.
func (d *Duplication) SetWait(wait time.Duration) {
	d.wait = wait
}

// Format returns the view format the captured frame is sampled with.
func (d *Duplication) Format() gpu.Format {
	return d.format
}

// Grabber returns the frame source.
func (d *Duplication) Grabber() Grabber {
	return d.grabber
}

// Duplicate releases the previous frame and waits for the next one. The descriptor returned by a
// previous call is invalidated.
//
// Returns:
//   - gpu.Descriptor: the shader resource view of the captured frame
//   - bool: false when the desktop did not change or the wait timed out
//   - error: any other capture or upload failure
func (d *Duplication) Duplicate() (gpu.Descriptor, bool, error) {
	if err := d.grabber.ReleaseFrame(); err != nil && !errors.Is(err, ErrInvalidCall) {
		return gpu.Descriptor{}, false, fmt.Errorf("release frame: %w", err)
	}

	frame, err := d.grabber.AcquireNextFrame(d.wait)
	switch {
	case errors.Is(err, ErrWaitTimeout):
		return gpu.Descriptor{}, false, nil
	case err != nil:
		return gpu.Descriptor{}, false, err
	case frame.AccumulatedFrames == 0:
		return gpu.Descriptor{}, false, nil
	}

	if err := d.ensureTexture(frame.Data.Width, frame.Data.Height); err != nil {
		return gpu.Descriptor{}, false, err
	}
	if err := d.backend.WriteTexture(d.texture, frame.Data); err != nil {
		return gpu.Descriptor{}, false, fmt.Errorf("upload frame: %w", err)
	}
	if err := d.heap.Write(d.slot, gpu.TextureView(d.texture, d.format)); err != nil {
		return gpu.Descriptor{}, false, err
	}
	return d.heap.Get(d.slot), true, nil
}

// ensureTexture (re)creates the capture texture when the frame size changes.
func (d *Duplication) ensureTexture(width, height uint32) error {
	if d.texture != nil && d.texture.Width == width && d.texture.Height == height {
		return nil
	}
	tex, err := d.backend.CreateTexture(gpu.TextureDescriptor{
		Label:        "capture",
		Width:        width,
		Height:       height,
		Format:       d.format,
		InitialState: gpu.StateShaderResource,
	})
	if err != nil {
		return err
	}
	if d.texture != nil {
		logf("capture resized to %dx%d", width, height)
		d.backend.ReleaseTexture(d.texture)
	}
	d.texture = tex
	return nil
}

// Close releases the capture texture and the grabber.
func (d *Duplication) Close() error {
	if d.texture != nil {
		d.backend.ReleaseTexture(d.texture)
		d.texture = nil
	}
	return d.grabber.Close()
}
