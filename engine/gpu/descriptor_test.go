package gpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescriptorHeap(t *testing.T) {
	heap := NewDescriptorHeap(2)
	tex := NewTexture(TextureDescriptor{Label: "capture", Width: 4, Height: 4, Format: FormatBGRA8Unorm}, nil)

	slot, err := heap.Next()
	require.NoError(t, err)
	require.NoError(t, heap.Write(slot, TextureView(tex, tex.Format.SRGBView())))
	assert.Equal(t, FormatBGRA8UnormSRGB, heap.Get(slot).Format)
	assert.Equal(t, slot, heap.Get(slot).Slot)

	assert.Error(t, heap.Write(1, Descriptor{}))

	_, err = heap.Next()
	require.NoError(t, err)
	_, err = heap.Next()
	assert.Error(t, err)
	assert.Equal(t, 2, heap.Len())
}

func TestDescriptorArena(t *testing.T) {
	arena := NewDescriptorArena(4)
	buf := NewBuffer(BufferDescriptor{Label: "b"}, nil)
	d := BufferView(ViewSRV, buf)

	first := arena.Copy(d, d)
	second := arena.Copy(d)
	assert.Equal(t, 0, first.Base)
	assert.Equal(t, 2, first.Len())
	assert.Equal(t, 2, second.Base)
	assert.Equal(t, 3, arena.Len())

	assert.PanicsWithValue(t, "too many descriptors", func() { arena.Copy(d, d) })

	arena.Reset()
	assert.Equal(t, 0, arena.Len())
	assert.Equal(t, 0, arena.Copy(d, d, d, d).Base)
}
