package pipeline

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/chromascope/engine/gpu"
)

// Kernel is the host implementation of a pipeline. The software backend calls it once per draw or
// dispatch with everything bound at that point of the command list.
type Kernel func(inv *Invocation) error

// Invocation is a single draw or dispatch as seen by a Kernel.
type Invocation struct {
	// Kind is gpu.CmdDraw, gpu.CmdDispatch or gpu.CmdDispatchMesh.
	Kind gpu.CommandKind

	// Groups is the dispatch size in workgroups.
	Groups [3]uint32
	// VertexCount and InstanceCount are the draw counts.
	VertexCount   uint32
	InstanceCount uint32

	// Constants holds the bytes bound with SetComputeConstants or SetGraphicsConstants.
	Constants []byte

	// SRVs and UAVs hold the descriptor tables of the invocation's stage, in binding order.
	SRVs []gpu.Descriptor
	UAVs []gpu.Descriptor
	// Screen is the shared shader resource, the captured frame.
	Screen gpu.Descriptor

	Vertices *gpu.VertexBuffer
	Viewport gpu.Viewport
	Target   *gpu.Texture
	Depth    *gpu.Texture

	// LineAntialiasing mirrors the pipeline setting.
	LineAntialiasing bool

	// Parallel runs fn for every index in [0, n) and returns once all calls are done.
	Parallel func(n int, fn func(i int))
}

// SRVWords returns the host memory of SRV binding i.
//
// Parameters:
//   - i: the binding index
//
// Returns:
//   - []uint32: the words of the buffer
//   - error: an error if the binding is missing or not a host buffer
func (inv *Invocation) SRVWords(i int) ([]uint32, error) {
	return tableWords(inv.SRVs, "srv", i)
}

// UAVWords returns the host memory of UAV binding i.
//
// Parameters:
//   - i: the binding index
//
// Returns:
//   - []uint32: the words of the buffer
//   - error: an error if the binding is missing or not a host buffer
func (inv *Invocation) UAVWords(i int) ([]uint32, error) {
	return tableWords(inv.UAVs, "uav", i)
}

// ScreenImage returns the host image of the shared shader resource.
func (inv *Invocation) ScreenImage() (*gpu.HostImage, error) {
	img := gpu.HostImageOf(inv.Screen.Texture)
	if img == nil {
		return nil, errors.New("no screen texture bound")
	}
	return img, nil
}

// TargetImage returns the host image of the render target.
func (inv *Invocation) TargetImage() (*gpu.HostImage, error) {
	img := gpu.HostImageOf(inv.Target)
	if img == nil {
		return nil, errors.New("no render target bound")
	}
	return img, nil
}

// DepthImage returns the host image of the depth target, nil when none is bound.
func (inv *Invocation) DepthImage() *gpu.HostImage {
	return gpu.HostImageOf(inv.Depth)
}

// ForEach runs fn for every index in [0, n), in parallel when the invocation carries a Parallel function.
func (inv *Invocation) ForEach(n int, fn func(i int)) {
	if inv.Parallel == nil {
		for i := range n {
			fn(i)
		}
		return
	}
	inv.Parallel(n, fn)
}

func tableWords(table []gpu.Descriptor, name string, i int) ([]uint32, error) {
	if i < 0 || i >= len(table) {
		return nil, fmt.Errorf("%s binding %d not bound, table holds %d", name, i, len(table))
	}
	hb := gpu.HostBufferOf(table[i].Buffer)
	if hb == nil {
		return nil, fmt.Errorf("%s binding %d is not a host buffer", name, i)
	}
	return hb.Words, nil
}
