package renderer

import (
	"fmt"
	"strings"

	"github.com/Carmen-Shannon/chromascope/common"
	"github.com/Carmen-Shannon/chromascope/engine/gpu"
	"github.com/Carmen-Shannon/chromascope/engine/renderer/pipeline"
)

// BackendType identifies the GPU backend implementation used by a Context.
type BackendType int

const (
	// BackendTypeWGPU selects the WebGPU-based backend.
	BackendTypeWGPU BackendType = iota

	// BackendTypeSoftware selects the CPU backend that runs pipeline kernels on the host.
	BackendTypeSoftware
)

func (t BackendType) String() string {
	switch t {
	case BackendTypeWGPU:
		return "wgpu"
	case BackendTypeSoftware:
		return "software"
	}
	return fmt.Sprintf("BackendType(%d)", int(t))
}

// ParseBackendType parses a backend name as accepted on the command line.
//
// Parameters:
//   - name: "wgpu" or "software", case insensitive
//
// Returns:
//   - BackendType: the parsed backend type
//   - error: an error for unknown names
func ParseBackendType(name string) (BackendType, error) {
	switch strings.ToLower(name) {
	case "wgpu", "":
		return BackendTypeWGPU, nil
	case "software":
		return BackendTypeSoftware, nil
	}
	return 0, fmt.Errorf("unknown backend %q", name)
}

// PresentMode controls how rendered frames are presented to the display surface.
type PresentMode int

const (
	// PresentModeVSync waits for the next vertical blank before presenting, capping frame rate
	// to the monitor's refresh rate. Eliminates tearing.
	PresentModeVSync PresentMode = iota

	// PresentModeUncapped presents frames immediately without waiting for vertical blank.
	// May cause screen tearing but provides the lowest latency.
	PresentModeUncapped
)

// Backend is the device level interface a Context drives. Every resource creation failure is
// returned as a *gpu.ResourceError.
type Backend interface {
	gpu.SwapChainAllocator

	// Type returns the backend type.
	Type() BackendType

	// CreateBuffer allocates a buffer in desc.InitialState, initialized from desc.Contents when set.
	//
	// Parameters:
	//   - desc: the buffer descriptor
	//
	// Returns:
	//   - *gpu.Buffer: the new buffer
	//   - error: a ResourceError if the allocation fails
	CreateBuffer(desc gpu.BufferDescriptor) (*gpu.Buffer, error)

	// CreateTexture allocates a 2D texture in desc.InitialState.
	//
	// Parameters:
	//   - desc: the texture descriptor
	//
	// Returns:
	//   - *gpu.Texture: the new texture
	//   - error: a ResourceError if the allocation fails
	CreateTexture(desc gpu.TextureDescriptor) (*gpu.Texture, error)

	// WriteBuffer uploads data at offset. The write is ordered before the next submission.
	WriteBuffer(buf *gpu.Buffer, offset uint64, data []byte) error

	// WriteTexture uploads a whole image in the texture's format. The write is ordered before the next submission.
	WriteTexture(tex *gpu.Texture, data common.TextureStagingData) error

	// ReadBuffer copies the content of buf back to host memory, waiting for the GPU.
	ReadBuffer(buf *gpu.Buffer) ([]byte, error)

	// RegisterPipeline creates the backend objects of p. Every pipeline drawn or dispatched by a
	// command list must be registered first.
	RegisterPipeline(p pipeline.Pipeline) error

	// SwapChainFormat returns the color format of swap chain buffers.
	SwapChainFormat() gpu.Format

	// CreateTimestampPool creates a pool of capacity timestamp queries with host readback.
	CreateTimestampPool(capacity int) (*gpu.TimestampPool, error)

	// TimestampFrequency returns the number of timestamp ticks per second, 0 when timestamps are unsupported.
	TimestampFrequency() uint64

	// Submit executes list and signals fence with value once the GPU is done with it.
	//
	// Parameters:
	//   - list: the closed command list
	//   - fence: the fence to signal
	//   - value: the value to signal
	//
	// Returns:
	//   - error: an error if the list could not be executed
	Submit(list *gpu.ClosedCommandList, fence *gpu.Fence, value uint64) error

	// Present shows target, the current swap chain buffer.
	Present(target *gpu.Texture) error

	// ReadTimestamps returns the first count resolved ticks of pool.
	ReadTimestamps(pool *gpu.TimestampPool, count int) ([]uint64, error)

	// Release frees every backend object.
	Release()
}
