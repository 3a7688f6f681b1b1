package gpu

import (
	"testing"

	"github.com/Carmen-Shannon/chromascope/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHalfToFloat32(t *testing.T) {
	cases := map[uint16]float32{
		0x0000: 0,
		0x3c00: 1,
		0xc000: -2,
		0x3800: 0.5,
		0x7bff: 65504,
		0x0001: 5.9604645e-08,
	}
	for h, want := range cases {
		assert.Equal(t, want, halfToFloat32(h), "%#04x", h)
	}
}

func TestHostImageUploadBGRA(t *testing.T) {
	img := NewHostImage(2, 1)
	err := img.Upload(FormatBGRA8Unorm, common.TextureStagingData{
		Pixels: []byte{255, 0, 0, 255, 0, 0, 255, 128},
		Width:  2,
		Height: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, [4]float32{0, 0, 1, 1}, img.At(0, 0))
	assert.Equal(t, float32(1), img.At(1, 0)[0])
	assert.InDelta(t, 128.0/255, img.At(1, 0)[3], 1e-6)
}

func TestHostImageUploadSRGBDecodes(t *testing.T) {
	img := NewHostImage(1, 1)
	require.NoError(t, img.Upload(FormatRGBA8UnormSRGB, common.TextureStagingData{
		Pixels: []byte{188, 0, 255, 255},
		Width:  1,
		Height: 1,
	}))
	c := img.At(0, 0)
	assert.InDelta(t, common.SRGBToLinear(188.0/255), c[0], 1e-6)
	assert.Equal(t, float32(1), c[2])
}

func TestHostImageUploadHonorsPitch(t *testing.T) {
	img := NewHostImage(1, 2)
	require.NoError(t, img.Upload(FormatRGBA8Unorm, common.TextureStagingData{
		Pixels:      []byte{255, 0, 0, 255, 9, 9, 9, 9, 0, 255, 0, 255},
		Width:       1,
		Height:      2,
		BytesPerRow: 8,
	}))
	assert.Equal(t, [4]float32{1, 0, 0, 1}, img.At(0, 0))
	assert.Equal(t, [4]float32{0, 1, 0, 1}, img.At(0, 1))
}

func TestHostImageUploadErrors(t *testing.T) {
	img := NewHostImage(2, 2)
	assert.Error(t, img.Upload(FormatDepth16Unorm, common.TextureStagingData{Width: 2, Height: 2}))
	assert.Error(t, img.Upload(FormatRGBA8Unorm, common.TextureStagingData{Width: 3, Height: 2}))
	assert.Error(t, img.Upload(FormatRGBA8Unorm, common.TextureStagingData{Pixels: make([]byte, 4), Width: 2, Height: 2}))
}

func TestHostImageBounds(t *testing.T) {
	img := NewHostImage(1, 1)
	img.Set(5, 5, [4]float32{1, 1, 1, 1})
	assert.Equal(t, [4]float32{}, img.At(-1, 0))
	img.Fill([4]float32{0, 0, 0, 1})
	assert.Equal(t, [4]float32{0, 0, 0, 1}, img.At(0, 0))
}
