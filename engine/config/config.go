// Package config holds the shared visualization settings. The UI thread mutates them through a
// Store while the pipeline goroutine copies a snapshot at the start of every iteration.
package config

import (
	"fmt"

	"github.com/Carmen-Shannon/chromascope/common"
	"github.com/chewxy/math32"
)

// FilterMode selects how the filter pass recolors the captured screen.
type FilterMode uint32

const (
	// FilterModeRGB multiplies the color by the enabled channel mask.
	FilterModeRGB FilterMode = iota
	// FilterModeHue replaces each pixel with the fully saturated color of its hue.
	FilterModeHue
	// FilterModeSaturation replaces each pixel with a gray level equal to its HSL saturation.
	FilterModeSaturation
	// FilterModeLuma replaces each pixel with a gray level equal to its Rec. 709 luma.
	FilterModeLuma

	filterModeCount
)

// HistogramMode selects which channels the histogram pass aggregates.
type HistogramMode uint32

const (
	// HistogramModeRGB draws red, green and blue channel histograms.
	HistogramModeRGB HistogramMode = iota
	// HistogramModeRGBL draws the three color channels plus luma.
	HistogramModeRGBL
	// HistogramModeLuma draws a single luma histogram.
	HistogramModeLuma
	// HistogramModeHue draws a single hue histogram of chromatic pixels.
	HistogramModeHue

	histogramModeCount
)

// ColorCloudMode selects the color space of the 3D color cloud.
type ColorCloudMode uint32

const (
	// ColorCloudModeRGB lays voxels out in the RGB cube.
	ColorCloudModeRGB ColorCloudMode = iota
	// ColorCloudModeHSL lays voxels out in the HSL double cone.
	ColorCloudModeHSL

	colorCloudModeCount
)

var (
	filterModeNames     = [...]string{"rgb", "hue", "saturation", "luma"}
	histogramModeNames  = [...]string{"rgb", "rgbl", "luma", "hue"}
	colorCloudModeNames = [...]string{"rgb", "hsl"}
)

func (m FilterMode) String() string {
	if m < filterModeCount {
		return filterModeNames[m]
	}
	return fmt.Sprintf("FilterMode(%d)", uint32(m))
}

func (m HistogramMode) String() string {
	if m < histogramModeCount {
		return histogramModeNames[m]
	}
	return fmt.Sprintf("HistogramMode(%d)", uint32(m))
}

func (m ColorCloudMode) String() string {
	if m < colorCloudModeCount {
		return colorCloudModeNames[m]
	}
	return fmt.Sprintf("ColorCloudMode(%d)", uint32(m))
}

// Valid reports whether the mode is one of the defined filter modes.
func (m FilterMode) Valid() bool { return m < filterModeCount }

// Valid reports whether the mode is one of the defined histogram modes.
func (m HistogramMode) Valid() bool { return m < histogramModeCount }

// Valid reports whether the mode is one of the defined color cloud modes.
func (m ColorCloudMode) Valid() bool { return m < colorCloudModeCount }

// Next returns the following histogram mode, wrapping around after HistogramModeHue.
func (m HistogramMode) Next() HistogramMode {
	return (m + 1) % histogramModeCount
}

// Channels returns the number of histogram buffers the mode fills.
func (m HistogramMode) Channels() uint32 {
	switch m {
	case HistogramModeRGB:
		return 3
	case HistogramModeRGBL:
		return 4
	default:
		return 1
	}
}

// Config is a snapshot of every setting the visualization pipeline reads. It is a plain value:
// assigning it copies every field, including the rotation matrix and channel flags.
type Config struct {
	EnableFilter   bool
	FilterMode     FilterMode
	// FilterChannels flags R, G, B and alpha. The filter masks the color channels only.
	FilterChannels [4]bool

	EnableHistogram bool
	HistogramMode   HistogramMode
	HistogramScale  float32

	EnableColorCloud bool
	ColorCloudMode   ColorCloudMode
	ShowGrid         bool
	Rotation         common.Matrix

	BgOpacity  float32
	WindowRect common.Rect
}

// Default returns the configuration used when no settings file exists.
//
// Returns:
//   - Config: the default configuration
func Default() Config {
	return Config{
		FilterMode:     FilterModeRGB,
		FilterChannels: [4]bool{true, true, true, true},
		HistogramMode:  HistogramModeRGB,
		HistogramScale: 0.5,
		ColorCloudMode: ColorCloudModeRGB,
		Rotation:       common.IdentityMatrix(),
		BgOpacity:      1.0,
		WindowRect:     common.NewRect(100, 100, 1280, 720),
	}
}

// Clone returns an independent copy of the configuration.
func (c Config) Clone() Config {
	return c
}

// ProjectionMatrix builds the color cloud projection: the user rotation, then a uniform scale
// that fits the unit cloud into the shorter window side, then a depth offset into [0,1].
//
// Returns:
//   - common.Matrix: the projection matrix
func (c Config) ProjectionMatrix() common.Matrix {
	w := float32(c.WindowRect.Width)
	h := float32(c.WindowRect.Height)
	scale := float32(0.9)
	if w > 0 && h > 0 {
		scale = 0.9 * math32.Min(w, h) / math32.Max(w, h)
	}
	return c.Rotation.
		Mul(common.Scale(scale, scale, 0.25)).
		Mul(common.Translate(0, 0, 0.5))
}

// FilterMask returns the enabled filter channels as a multiplier per channel.
func (c Config) FilterMask() [3]float32 {
	var mask [3]float32
	for i := range mask {
		if c.FilterChannels[i] {
			mask[i] = 1
		}
	}
	return mask
}

// ClearColor returns the render target clear color: black with 1 - BgOpacity alpha, so an
// opaque background hides the desktop behind the window.
func (c Config) ClearColor() [4]float32 {
	return [4]float32{0, 0, 0, 1 - c.BgOpacity}
}

// Rotate applies a drag to the cloud rotation. dx and dy are the cursor deltas normalized by the
// shorter window side, one unit of drag being half a turn.
//
// Parameters:
//   - dx: horizontal drag, normalized
//   - dy: vertical drag, normalized
func (c *Config) Rotate(dx, dy float32) {
	c.Rotation = c.Rotation.Mul(common.RotY(math32.Pi * -dx).Mul(common.RotX(math32.Pi * -dy)))
}

// AdjustHistogramScale adds delta to the histogram scale, clamped to [0,1].
func (c *Config) AdjustHistogramScale(delta float32) {
	c.HistogramScale = common.Clamp01(c.HistogramScale + delta)
}

// AdjustBgOpacity adds delta to the background opacity, clamped to [0,1].
func (c *Config) AdjustBgOpacity(delta float32) {
	c.BgOpacity = common.Clamp01(c.BgOpacity + delta)
}
