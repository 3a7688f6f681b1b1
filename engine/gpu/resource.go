package gpu

import "fmt"

// BufferUsage is a bit set describing how a buffer may be used.
type BufferUsage uint32

const (
	BufferUsageStorage BufferUsage = 1 << iota
	BufferUsageVertex
	BufferUsageUniform
	BufferUsageIndirect
	BufferUsageCopySrc
	BufferUsageCopyDst
)

// BufferDescriptor describes a buffer to create.
type BufferDescriptor struct {
	Label        string
	Size         uint64
	Usage        BufferUsage
	InitialState ResourceState
	// Contents, when set, initializes the buffer. Its length must not exceed Size.
	Contents []byte
}

// Buffer is a linear GPU allocation with a tracked state.
type Buffer struct {
	resource
	Size  uint64
	Usage BufferUsage
	// Native holds the backend object behind the buffer.
	Native any
}

// NewBuffer wraps a backend allocation described by desc.
//
// Parameters:
//   - desc: the descriptor the allocation was created from
//   - native: the backend object
//
// Returns:
//   - *Buffer: the tracked buffer
func NewBuffer(desc BufferDescriptor, native any) *Buffer {
	return &Buffer{
		resource: resource{name: desc.Label, state: desc.InitialState},
		Size:     desc.Size,
		Usage:    desc.Usage,
		Native:   native,
	}
}

// TextureDescriptor describes a 2D texture to create.
type TextureDescriptor struct {
	Label        string
	Width        uint32
	Height       uint32
	Format       Format
	InitialState ResourceState
	// RenderTarget marks textures that are drawn into.
	RenderTarget bool
}

// Texture is a 2D GPU image with a tracked state.
type Texture struct {
	resource
	Width  uint32
	Height uint32
	Format Format
	// Native holds the backend object behind the texture.
	Native any
}

// NewTexture wraps a backend texture described by desc.
func NewTexture(desc TextureDescriptor, native any) *Texture {
	return &Texture{
		resource: resource{name: desc.Label, state: desc.InitialState},
		Width:    desc.Width,
		Height:   desc.Height,
		Format:   desc.Format,
		Native:   native,
	}
}

// ViewKind is the kind of a descriptor.
type ViewKind uint8

const (
	ViewNone ViewKind = iota
	// ViewSRV is a read-only shader view.
	ViewSRV
	// ViewUAV is a typed read-write view.
	ViewUAV
	// ViewRawUAV is a raw (byte addressed) read-write view used to clear buffers.
	ViewRawUAV
)

func (k ViewKind) String() string {
	switch k {
	case ViewSRV:
		return "SRV"
	case ViewUAV:
		return "UAV"
	case ViewRawUAV:
		return "RawUAV"
	}
	return "None"
}

// Descriptor is a view of a buffer or texture as seen by a shader.
type Descriptor struct {
	Kind    ViewKind
	Buffer  *Buffer
	Texture *Texture
	// Format is the view format of a texture descriptor.
	Format Format
	// Slot is the persistent heap slot holding the descriptor, -1 when it lives outside a heap.
	Slot int
}

// Valid reports whether the descriptor points at a resource.
func (d Descriptor) Valid() bool {
	return d.Kind != ViewNone && (d.Buffer != nil || d.Texture != nil)
}

// Resource returns the viewed resource.
func (d Descriptor) Resource() Stateful {
	if d.Buffer != nil {
		return d.Buffer
	}
	if d.Texture != nil {
		return d.Texture
	}
	return nil
}

// BufferView builds a descriptor for buf.
func BufferView(kind ViewKind, buf *Buffer) Descriptor {
	return Descriptor{Kind: kind, Buffer: buf, Slot: -1}
}

// TextureView builds a shader resource descriptor for tex using the given view format.
func TextureView(tex *Texture, format Format) Descriptor {
	return Descriptor{Kind: ViewSRV, Texture: tex, Format: format, Slot: -1}
}

// RwBuffer is a buffer of Count 32-bit unsigned integers written by compute shaders and read by
// graphics shaders. It carries the three views the passes need.
type RwBuffer struct {
	*Buffer
	Count  uint32
	SRV    Descriptor
	UAV    Descriptor
	RawUAV Descriptor
}

// NewRwBuffer wraps buf and places its three views into the persistent heap.
//
// Parameters:
//   - buf: a storage buffer of at least count*4 bytes
//   - count: the number of u32 elements
//   - heap: the persistent descriptor heap
//
// Returns:
//   - *RwBuffer: the buffer with its views
//   - error: a ResourceError if the heap is full or the buffer is too small
func NewRwBuffer(buf *Buffer, count uint32, heap *DescriptorHeap) (*RwBuffer, error) {
	if buf.Size < uint64(count)*4 {
		return nil, NewResourceError("create rw buffer", fmt.Errorf("%s holds %d bytes, need %d", buf.Name(), buf.Size, uint64(count)*4))
	}
	rw := &RwBuffer{Buffer: buf, Count: count}
	for _, v := range []struct {
		kind ViewKind
		dst  *Descriptor
	}{
		{ViewSRV, &rw.SRV},
		{ViewUAV, &rw.UAV},
		{ViewRawUAV, &rw.RawUAV},
	} {
		slot, err := heap.Next()
		if err != nil {
			return nil, err
		}
		d := BufferView(v.kind, buf)
		d.Slot = slot
		if err := heap.Write(slot, d); err != nil {
			return nil, err
		}
		*v.dst = d
	}
	return rw, nil
}

// VertexBuffer is an immutable buffer of vertices.
type VertexBuffer struct {
	*Buffer
	Count  uint32
	Stride uint32
}

// Texture2D pairs a texture with its shader resource view.
type Texture2D struct {
	*Texture
	SRV Descriptor
}
