package gpu

import "fmt"

// SwapChainBufferCount is the number of color buffers of a swap chain.
const SwapChainBufferCount = 2

// SwapChainAllocator creates the color and depth targets of a swap chain. Backends implement it.
type SwapChainAllocator interface {
	// AllocateSwapChain (re)creates count color targets in the Present state and one depth target.
	AllocateSwapChain(width, height uint32, format Format, count int) ([]*Texture, *Texture, error)

	// ReleaseTexture frees tex and every backend object derived from it. Releasing a texture
	// twice is a no-op.
	ReleaseTexture(tex *Texture)
}

// SwapChain owns the presentable color targets and the depth target of the window.
type SwapChain struct {
	allocator  SwapChainAllocator
	format     Format
	width      uint32
	height     uint32
	colors     []*Texture
	depth      *Texture
	index      int
	generation uint64
}

// NewSwapChain creates an empty swap chain. Targets are allocated by the first Resize.
func NewSwapChain(allocator SwapChainAllocator, format Format) *SwapChain {
	return &SwapChain{allocator: allocator, format: format}
}

// Resize makes sure the targets match the given size. When the size is unchanged nothing happens,
// otherwise the previous targets are released, new ones allocated and the generation is incremented.
//
// Parameters:
//   - width: the new width in pixels
//   - height: the new height in pixels
//
// Returns:
//   - error: a ResourceError if the targets could not be allocated
func (s *SwapChain) Resize(width, height uint32) error {
	if width == 0 || height == 0 {
		return NewResourceError("resize swap chain", fmt.Errorf("invalid size %dx%d", width, height))
	}
	if s.colors != nil && width == s.width && height == s.height {
		return nil
	}
	colors, depth, err := s.allocator.AllocateSwapChain(width, height, s.format, SwapChainBufferCount)
	if err != nil {
		return NewResourceError("resize swap chain", err)
	}
	s.release()
	s.colors = colors
	s.depth = depth
	s.width = width
	s.height = height
	s.index = 0
	s.generation++
	return nil
}

// Release frees the targets. The swap chain allocates new ones on the next Resize.
func (s *SwapChain) Release() {
	s.release()
	s.colors, s.depth = nil, nil
	s.width, s.height = 0, 0
}

func (s *SwapChain) release() {
	for _, c := range s.colors {
		s.allocator.ReleaseTexture(c)
	}
	if s.depth != nil {
		s.allocator.ReleaseTexture(s.depth)
	}
}

// Current returns the color target of the frame being recorded.
func (s *SwapChain) Current() *Texture {
	return s.colors[s.index]
}

// Depth returns the depth target.
func (s *SwapChain) Depth() *Texture {
	return s.depth
}

// Advance moves to the next color target after a present.
func (s *SwapChain) Advance() {
	if len(s.colors) > 0 {
		s.index = (s.index + 1) % len(s.colors)
	}
}

// Size returns the current size of the targets.
func (s *SwapChain) Size() (uint32, uint32) {
	return s.width, s.height
}

// Format returns the color format of the targets.
func (s *SwapChain) Format() Format {
	return s.format
}

// Generation counts reallocations of the targets.
func (s *SwapChain) Generation() uint64 {
	return s.generation
}
