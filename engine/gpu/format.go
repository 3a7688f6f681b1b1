package gpu

import "fmt"

// Format is a texel format understood by every backend.
type Format uint8

const (
	FormatUndefined Format = iota
	FormatBGRA8Unorm
	FormatBGRA8UnormSRGB
	FormatRGBA8Unorm
	FormatRGBA8UnormSRGB
	FormatRGBA16Float
	FormatRGBA32Float
	FormatDepth16Unorm
)

var formatNames = [...]string{
	FormatUndefined:      "Undefined",
	FormatBGRA8Unorm:     "BGRA8Unorm",
	FormatBGRA8UnormSRGB: "BGRA8UnormSRGB",
	FormatRGBA8Unorm:     "RGBA8Unorm",
	FormatRGBA8UnormSRGB: "RGBA8UnormSRGB",
	FormatRGBA16Float:    "RGBA16Float",
	FormatRGBA32Float:    "RGBA32Float",
	FormatDepth16Unorm:   "Depth16Unorm",
}

func (f Format) String() string {
	if int(f) < len(formatNames) {
		return formatNames[f]
	}
	return fmt.Sprintf("Format(%d)", uint8(f))
}

// BytesPerPixel returns the size of one texel.
func (f Format) BytesPerPixel() uint32 {
	switch f {
	case FormatBGRA8Unorm, FormatBGRA8UnormSRGB, FormatRGBA8Unorm, FormatRGBA8UnormSRGB:
		return 4
	case FormatRGBA16Float:
		return 8
	case FormatRGBA32Float:
		return 16
	case FormatDepth16Unorm:
		return 2
	}
	return 0
}

// IsSRGB reports whether sampling the format decodes the sRGB transfer function.
func (f Format) IsSRGB() bool {
	return f == FormatBGRA8UnormSRGB || f == FormatRGBA8UnormSRGB
}

// SRGBView returns the format a shader view of f should use: 8-bit formats get their sRGB
// counterpart, everything else is viewed as is.
func (f Format) SRGBView() Format {
	switch f {
	case FormatBGRA8Unorm:
		return FormatBGRA8UnormSRGB
	case FormatRGBA8Unorm:
		return FormatRGBA8UnormSRGB
	}
	return f
}
