package renderer

import (
	"fmt"
	"log"

	"github.com/Carmen-Shannon/chromascope/common"
	"github.com/Carmen-Shannon/chromascope/engine/gpu"
	"github.com/Carmen-Shannon/chromascope/engine/renderer/pipeline"
)

const (
	// PersistentDescriptors is the capacity of the persistent descriptor heap.
	PersistentDescriptors = 16
	// FrameDescriptors is the capacity of the per-frame descriptor arena.
	FrameDescriptors = 16
)

// TimingSink receives the GPU timings of every executed frame.
type TimingSink func(timings []gpu.Timing)

// Context owns the device level state shared by every frame: the backend, the descriptor heap and
// arena, the fence, the swap chain and the timestamp pool. It is used from a single goroutine.
type Context struct {
	backend    Backend
	heap       *gpu.DescriptorHeap
	arena      *gpu.DescriptorArena
	fence      *gpu.Fence
	swapChain  *gpu.SwapChain
	timestamps *gpu.TimestampPool
	cursor     *gpu.TimestampCursor
	sink       TimingSink

	active bool
}

// NewContext creates the frame independent state on top of backend.
//
// Parameters:
//   - backend: the device backend, owned by the context from now on
//
// Returns:
//   - *Context: the context
//   - error: a ResourceError if the timestamp pool could not be created
func NewContext(backend Backend) (*Context, error) {
	pool, err := backend.CreateTimestampPool(gpu.MaxTimestamps)
	if err != nil {
		return nil, err
	}
	c := &Context{
		backend:    backend,
		heap:       gpu.NewDescriptorHeap(PersistentDescriptors),
		arena:      gpu.NewDescriptorArena(FrameDescriptors),
		fence:      gpu.NewFence(),
		swapChain:  gpu.NewSwapChain(backend, backend.SwapChainFormat()),
		timestamps: pool,
		cursor:     gpu.NewTimestampCursor(pool.Capacity),
	}
	log.Printf("[GPU] context created on the %s backend", backend.Type())
	return c, nil
}

// Backend returns the backend of the context.
func (c *Context) Backend() Backend {
	return c.backend
}

// SwapChain returns the swap chain the renderers draw into.
func (c *Context) SwapChain() *gpu.SwapChain {
	return c.swapChain
}

// Fence returns the fence signaled by every executed frame.
func (c *Context) Fence() *gpu.Fence {
	return c.fence
}

// SetTimingSink installs the receiver of per-frame GPU timings. nil disables reporting.
func (c *Context) SetTimingSink(sink TimingSink) {
	c.sink = sink
}

// Initializer returns the helper used to create the persistent resources of the passes.
func (c *Context) Initializer() *Initializer {
	return &Initializer{ctx: c}
}

// CreateRenderer starts recording a frame of the given size. The swap chain is resized first,
// which is a no-op when the size is unchanged, and the descriptor arena is rewound.
//
// Parameters:
//   - width: the frame width in pixels
//   - height: the frame height in pixels
//   - clear: the clear color of the target
//
// Returns:
//   - *Renderer: the renderer recording the frame
//   - error: an error if the swap chain could not be resized or a frame is already being recorded
func (c *Context) CreateRenderer(width, height uint32, clear [4]float32) (*Renderer, error) {
	if c.active {
		return nil, fmt.Errorf("a frame is already being recorded")
	}
	if err := c.swapChain.Resize(width, height); err != nil {
		return nil, err
	}
	c.arena.Reset()
	c.cursor.Reset()

	r, err := newRenderer(c, c.swapChain.Current(), c.swapChain.Depth(), clear)
	if err != nil {
		return nil, err
	}
	c.active = true
	return r, nil
}

// Execute finishes the frame recorded by r: resolves its timestamps, closes it, submits it,
// presents the target and waits for the fence. Timings are then handed to the timing sink.
//
// Parameters:
//   - r: a renderer created by CreateRenderer
//
// Returns:
//   - error: an error if submission or presentation failed
func (c *Context) Execute(r *Renderer) error {
	if r.ctx != c {
		return fmt.Errorf("renderer belongs to another context")
	}
	c.active = false

	labels := append([]string(nil), c.cursor.Labels()...)
	if len(labels) > 0 {
		r.resolveTimestamps(len(labels))
	}
	target := r.target
	list, err := r.Close()
	if err != nil {
		return err
	}

	value := c.fence.Next()
	if err := c.backend.Submit(list, c.fence, value); err != nil {
		return fmt.Errorf("submit frame: %w", err)
	}
	if err := c.backend.Present(target); err != nil {
		return fmt.Errorf("present frame: %w", err)
	}
	c.fence.Wait(value)
	c.swapChain.Advance()

	if c.sink != nil && len(labels) > 0 {
		ticks, err := c.backend.ReadTimestamps(c.timestamps, len(labels))
		if err != nil {
			return fmt.Errorf("read timestamps: %w", err)
		}
		if ticks != nil {
			c.sink(gpu.MatchTimings(labels, ticks, c.backend.TimestampFrequency()))
		}
	}
	return nil
}

// Release waits for the last frame and releases the backend.
func (c *Context) Release() {
	c.swapChain.Release()
	c.backend.Release()
}

// Initializer creates the persistent resources of the passes: descriptors in the persistent heap,
// aggregation buffers, vertex buffers and registered pipelines.
type Initializer struct {
	ctx *Context
}

// Backend returns the backend resources are created on.
func (i *Initializer) Backend() Backend {
	return i.ctx.backend
}

// Heap returns the persistent descriptor heap.
func (i *Initializer) Heap() *gpu.DescriptorHeap {
	return i.ctx.heap
}

// RegisterPipeline creates the backend objects of p.
func (i *Initializer) RegisterPipeline(p pipeline.Pipeline) error {
	if err := i.ctx.backend.RegisterPipeline(p); err != nil {
		return fmt.Errorf("register pipeline %s: %w", p.PipelineKey(), err)
	}
	return nil
}

// CreateRwBuffer creates an aggregation buffer of count u32 values in the ShaderResource state
// with its SRV, UAV and raw UAV views in the persistent heap.
//
// Parameters:
//   - label: the debug name
//   - count: the number of u32 values
//
// Returns:
//   - *gpu.RwBuffer: the buffer
//   - error: a ResourceError if the buffer exceeds MaxStorageBindingSize or it or its descriptors
//     could not be created
func (i *Initializer) CreateRwBuffer(label string, count uint32) (*gpu.RwBuffer, error) {
	if uint64(count)*4 > MaxStorageBindingSize {
		return nil, gpu.NewResourceError("create buffer "+label, fmt.Errorf("%d cells exceed the storage binding limit", count))
	}
	buf, err := i.ctx.backend.CreateBuffer(gpu.BufferDescriptor{
		Label:        label,
		Size:         uint64(count) * 4,
		Usage:        gpu.BufferUsageStorage,
		InitialState: gpu.StateShaderResource,
	})
	if err != nil {
		return nil, err
	}
	return gpu.NewRwBuffer(buf, count, i.ctx.heap)
}

// CreateVertexBuffer uploads vertices into an immutable vertex buffer.
//
// Parameters:
//   - label: the debug name
//   - vertices: the vertex structs
//
// Returns:
//   - *gpu.VertexBuffer: the buffer
//   - error: a ResourceError if the buffer could not be created
func CreateVertexBuffer[T any](i *Initializer, label string, vertices []T) (*gpu.VertexBuffer, error) {
	data := common.SliceToBytes(vertices)
	if len(data) == 0 {
		return nil, gpu.NewResourceError("create vertex buffer "+label, fmt.Errorf("no vertices"))
	}
	buf, err := i.ctx.backend.CreateBuffer(gpu.BufferDescriptor{
		Label:        label,
		Size:         uint64(len(data)),
		Usage:        gpu.BufferUsageVertex,
		InitialState: gpu.StateShaderResource,
		Contents:     data,
	})
	if err != nil {
		return nil, err
	}
	return &gpu.VertexBuffer{
		Buffer: buf,
		Count:  uint32(len(vertices)),
		Stride: uint32(len(data) / len(vertices)),
	}, nil
}
