package gpu

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/Carmen-Shannon/chromascope/common"
)

// HostBuffer is the host memory behind a buffer of the software backend.
type HostBuffer struct {
	Words []uint32
}

// NewHostBuffer allocates host memory for size bytes, rounded up to whole words.
func NewHostBuffer(size uint64) *HostBuffer {
	return &HostBuffer{Words: make([]uint32, (size+3)/4)}
}

// Bytes returns a byte view of the buffer memory.
func (b *HostBuffer) Bytes() []byte {
	return common.SliceToBytes(b.Words)
}

// Float returns word i interpreted as a float32.
func (b *HostBuffer) Float(i int) float32 {
	return math.Float32frombits(b.Words[i])
}

// HostImage is the host memory behind a texture of the software backend. Texels are stored as
// linear RGBA floats regardless of the texture format; depth textures use the first channel only.
type HostImage struct {
	Width  int
	Height int
	Pix    []float32
}

// NewHostImage allocates a zeroed image.
func NewHostImage(width, height int) *HostImage {
	return &HostImage{Width: width, Height: height, Pix: make([]float32, width*height*4)}
}

// At returns the texel at (x, y). Reads outside the image return zero, like a shader load.
func (m *HostImage) At(x, y int) [4]float32 {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return [4]float32{}
	}
	i := (y*m.Width + x) * 4
	return [4]float32{m.Pix[i], m.Pix[i+1], m.Pix[i+2], m.Pix[i+3]}
}

// Set stores the texel at (x, y). Writes outside the image are ignored.
func (m *HostImage) Set(x, y int, c [4]float32) {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return
	}
	i := (y*m.Width + x) * 4
	copy(m.Pix[i:i+4], c[:])
}

// Fill sets every texel to c.
func (m *HostImage) Fill(c [4]float32) {
	for i := 0; i < len(m.Pix); i += 4 {
		copy(m.Pix[i:i+4], c[:])
	}
}

// HostBufferOf returns the host memory of a software buffer, or nil.
func HostBufferOf(b *Buffer) *HostBuffer {
	if b == nil {
		return nil
	}
	h, _ := b.Native.(*HostBuffer)
	return h
}

// HostImageOf returns the host memory of a software texture, or nil.
func HostImageOf(t *Texture) *HostImage {
	if t == nil {
		return nil
	}
	h, _ := t.Native.(*HostImage)
	return h
}

// Upload decodes a staged image of the given format into m, which must have the same size.
// sRGB formats are decoded to linear values, the way a shader view of them samples.
//
// Parameters:
//   - format: the texel format of data
//   - data: the staged pixels
//
// Returns:
//   - error: an error for unsupported formats or short data
func (m *HostImage) Upload(format Format, data common.TextureStagingData) error {
	bpp := format.BytesPerPixel()
	if bpp == 0 || format == FormatDepth16Unorm {
		return fmt.Errorf("upload of %s is not supported", format)
	}
	if int(data.Width) != m.Width || int(data.Height) != m.Height {
		return fmt.Errorf("image of %dx%d does not match texture of %dx%d", data.Width, data.Height, m.Width, m.Height)
	}
	pitch := data.BytesPerRow
	if pitch == 0 {
		pitch = data.Width * bpp
	}
	if need := uint64(pitch)*uint64(data.Height-1) + uint64(data.Width*bpp); data.Height > 0 && uint64(len(data.Pixels)) < need {
		return fmt.Errorf("%d bytes of pixels, need %d", len(data.Pixels), need)
	}

	for y := 0; y < m.Height; y++ {
		row := data.Pixels[uint32(y)*pitch:]
		for x := 0; x < m.Width; x++ {
			m.Set(x, y, decodeTexel(format, row[uint32(x)*bpp:]))
		}
	}
	return nil
}

func decodeTexel(format Format, p []byte) [4]float32 {
	switch format {
	case FormatRGBA16Float:
		return [4]float32{
			halfToFloat32(binary.LittleEndian.Uint16(p[0:])),
			halfToFloat32(binary.LittleEndian.Uint16(p[2:])),
			halfToFloat32(binary.LittleEndian.Uint16(p[4:])),
			halfToFloat32(binary.LittleEndian.Uint16(p[6:])),
		}
	case FormatRGBA32Float:
		return [4]float32{
			math.Float32frombits(binary.LittleEndian.Uint32(p[0:])),
			math.Float32frombits(binary.LittleEndian.Uint32(p[4:])),
			math.Float32frombits(binary.LittleEndian.Uint32(p[8:])),
			math.Float32frombits(binary.LittleEndian.Uint32(p[12:])),
		}
	}

	r, g, b, a := p[0], p[1], p[2], p[3]
	if format == FormatBGRA8Unorm || format == FormatBGRA8UnormSRGB {
		r, b = b, r
	}
	c := [4]float32{float32(r) / 255, float32(g) / 255, float32(b) / 255, float32(a) / 255}
	if format.IsSRGB() {
		for i := 0; i < 3; i++ {
			c[i] = common.SRGBToLinear(c[i])
		}
	}
	return c
}

// halfToFloat32 widens an IEEE 754 binary16 value.
func halfToFloat32(h uint16) float32 {
	sign := uint32(h>>15) << 31
	exp := uint32(h>>10) & 0x1f
	mant := uint32(h) & 0x3ff

	switch {
	case exp == 0 && mant == 0:
		return math.Float32frombits(sign)
	case exp == 0:
		// subnormal: normalize the mantissa
		e := uint32(127 - 15 + 1)
		for mant&0x400 == 0 {
			mant <<= 1
			e--
		}
		mant &= 0x3ff
		return math.Float32frombits(sign | e<<23 | mant<<13)
	case exp == 0x1f:
		return math.Float32frombits(sign | 0xff<<23 | mant<<13)
	}
	return math.Float32frombits(sign | (exp+127-15)<<23 | mant<<13)
}
