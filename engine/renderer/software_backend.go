package renderer

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/chromascope/common"
	"github.com/Carmen-Shannon/chromascope/engine/gpu"
	"github.com/Carmen-Shannon/chromascope/engine/renderer/pipeline"
)

// softwareQueries is the host storage behind a timestamp pool of the software backend.
type softwareQueries struct {
	ticks []uint64
}

// softwareBackend executes command lists on the host. Buffers are gpu.HostBuffer, textures are
// gpu.HostImage and every draw or dispatch calls the kernel of its pipeline.
type softwareBackend struct {
	mu        sync.Mutex
	pipelines map[string]pipeline.Pipeline

	pool    worker.DynamicWorkerPool
	workers int
	taskID  int

	epoch     time.Time
	onPresent func(*gpu.HostImage)
	presented *gpu.HostImage

	// textures counts created textures that were not released yet.
	textures atomic.Int64
}

// softwareState is the binding state while a command list is replayed.
type softwareState struct {
	pipeline  pipeline.Pipeline
	target    *gpu.Texture
	depth     *gpu.Texture
	viewport  gpu.Viewport
	constants [2][]byte
	srvs      [2][]gpu.Descriptor
	uavs      []gpu.Descriptor
	screen    gpu.Descriptor
	vertices  *gpu.VertexBuffer
}

var _ Backend = &softwareBackend{}

func newSoftwareBackend(cfg backendConfig) *softwareBackend {
	b := &softwareBackend{
		pipelines: make(map[string]pipeline.Pipeline),
		workers:   cfg.workers,
		epoch:     time.Now(),
		onPresent: cfg.presentHook,
	}
	if b.workers > 1 {
		b.pool = worker.NewDynamicWorkerPool(b.workers, 256, 1*time.Second)
	}
	return b
}

func (b *softwareBackend) Type() BackendType {
	return BackendTypeSoftware
}

func (b *softwareBackend) CreateBuffer(desc gpu.BufferDescriptor) (*gpu.Buffer, error) {
	if desc.Size == 0 {
		return nil, gpu.NewResourceError("create buffer "+desc.Label, fmt.Errorf("zero size"))
	}
	if uint64(len(desc.Contents)) > desc.Size {
		return nil, gpu.NewResourceError("create buffer "+desc.Label, fmt.Errorf("%d bytes of contents exceed size %d", len(desc.Contents), desc.Size))
	}
	host := gpu.NewHostBuffer(desc.Size)
	copy(host.Bytes(), desc.Contents)
	return gpu.NewBuffer(desc, host), nil
}

func (b *softwareBackend) CreateTexture(desc gpu.TextureDescriptor) (*gpu.Texture, error) {
	if desc.Width == 0 || desc.Height == 0 {
		return nil, gpu.NewResourceError("create texture "+desc.Label, fmt.Errorf("invalid size %dx%d", desc.Width, desc.Height))
	}
	b.textures.Add(1)
	return gpu.NewTexture(desc, gpu.NewHostImage(int(desc.Width), int(desc.Height))), nil
}

// ReleaseTexture detaches the host image, later uploads and draws into tex fail.
func (b *softwareBackend) ReleaseTexture(tex *gpu.Texture) {
	if gpu.HostImageOf(tex) == nil {
		return
	}
	tex.Native = nil
	b.textures.Add(-1)
}

// LiveTextures returns the number of textures created and not released.
func (b *softwareBackend) LiveTextures() int {
	return int(b.textures.Load())
}

func (b *softwareBackend) WriteBuffer(buf *gpu.Buffer, offset uint64, data []byte) error {
	host := gpu.HostBufferOf(buf)
	if host == nil {
		return fmt.Errorf("write buffer: %s is not a host buffer", buf.Name())
	}
	dst := host.Bytes()
	if offset+uint64(len(data)) > uint64(len(dst)) {
		return fmt.Errorf("write buffer: %d bytes at %d overflow %s", len(data), offset, buf.Name())
	}
	copy(dst[offset:], data)
	return nil
}

func (b *softwareBackend) WriteTexture(tex *gpu.Texture, data common.TextureStagingData) error {
	img := gpu.HostImageOf(tex)
	if img == nil {
		return fmt.Errorf("write texture: %s is not a host image", tex.Name())
	}
	if err := img.Upload(tex.Format, data); err != nil {
		return fmt.Errorf("write texture %s: %w", tex.Name(), err)
	}
	return nil
}

func (b *softwareBackend) ReadBuffer(buf *gpu.Buffer) ([]byte, error) {
	host := gpu.HostBufferOf(buf)
	if host == nil {
		return nil, fmt.Errorf("read buffer: %s is not a host buffer", buf.Name())
	}
	out := make([]byte, buf.Size)
	copy(out, host.Bytes())
	return out, nil
}

func (b *softwareBackend) RegisterPipeline(p pipeline.Pipeline) error {
	if p.Kernel() == nil {
		return fmt.Errorf("pipeline %s has no kernel", p.PipelineKey())
	}
	if err := p.Validate(false); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pipelines[p.PipelineKey()] = p
	return nil
}

func (b *softwareBackend) AllocateSwapChain(width, height uint32, format gpu.Format, count int) ([]*gpu.Texture, *gpu.Texture, error) {
	colors := make([]*gpu.Texture, count)
	for i := range colors {
		tex, err := b.CreateTexture(gpu.TextureDescriptor{
			Label:        fmt.Sprintf("swap chain %d", i),
			Width:        width,
			Height:       height,
			Format:       format,
			InitialState: gpu.StatePresent,
			RenderTarget: true,
		})
		if err != nil {
			return nil, nil, err
		}
		colors[i] = tex
	}
	depth, err := b.CreateTexture(gpu.TextureDescriptor{
		Label:        "swap chain depth",
		Width:        width,
		Height:       height,
		Format:       gpu.FormatDepth16Unorm,
		InitialState: gpu.StateDepthWrite,
		RenderTarget: true,
	})
	if err != nil {
		return nil, nil, err
	}
	return colors, depth, nil
}

func (b *softwareBackend) SwapChainFormat() gpu.Format {
	return gpu.FormatRGBA32Float
}

func (b *softwareBackend) CreateTimestampPool(capacity int) (*gpu.TimestampPool, error) {
	return &gpu.TimestampPool{Capacity: capacity, Native: &softwareQueries{ticks: make([]uint64, capacity)}}, nil
}

// TimestampFrequency reports nanosecond ticks.
func (b *softwareBackend) TimestampFrequency() uint64 {
	return uint64(time.Second)
}

func (b *softwareBackend) ReadTimestamps(pool *gpu.TimestampPool, count int) ([]uint64, error) {
	q, ok := pool.Native.(*softwareQueries)
	if !ok {
		return nil, fmt.Errorf("timestamp pool was not created by the software backend")
	}
	count = min(count, len(q.ticks))
	return append([]uint64(nil), q.ticks[:count]...), nil
}

func (b *softwareBackend) Submit(list *gpu.ClosedCommandList, fence *gpu.Fence, value uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var st softwareState
	for i, cmd := range list.Commands() {
		if err := b.execute(&st, cmd); err != nil {
			return fmt.Errorf("command %d (%s): %w", i, cmd.Kind, err)
		}
	}
	fence.Signal(value)
	return nil
}

func (b *softwareBackend) execute(st *softwareState, cmd gpu.Command) error {
	switch cmd.Kind {
	case gpu.CmdBarrier, gpu.CmdSetScissor, gpu.CmdResolveTimestamps:
		// host memory is coherent and the scissor always matches the viewport
	case gpu.CmdSetPipeline:
		p, ok := b.pipelines[cmd.Pipeline]
		if !ok {
			return fmt.Errorf("pipeline %s not registered", cmd.Pipeline)
		}
		st.pipeline = p
	case gpu.CmdSetRenderTarget:
		st.target, st.depth = cmd.Target, cmd.Depth
	case gpu.CmdSetViewport:
		st.viewport = cmd.Viewport
	case gpu.CmdSetConstants:
		st.constants[cmd.Stage] = cmd.Constants
	case gpu.CmdSetSRVTable:
		st.srvs[cmd.Stage] = cmd.Table.Descriptors
	case gpu.CmdSetUAVTable:
		st.uavs = cmd.Table.Descriptors
	case gpu.CmdSetSharedSRV:
		st.screen = cmd.Descriptor
	case gpu.CmdSetVertexBuffer:
		st.vertices = cmd.Vertices
	case gpu.CmdClearRenderTarget:
		img := gpu.HostImageOf(cmd.Target)
		if img == nil {
			return fmt.Errorf("clear target %s: not a host image", cmd.Target.Name())
		}
		img.Fill(cmd.Color)
	case gpu.CmdClearDepth:
		img := gpu.HostImageOf(cmd.Depth)
		if img == nil {
			return fmt.Errorf("clear depth %s: not a host image", cmd.Depth.Name())
		}
		img.Fill([4]float32{cmd.DepthValue, 0, 0, 0})
	case gpu.CmdClearUAV:
		host := gpu.HostBufferOf(cmd.Descriptor.Buffer)
		if host == nil {
			return fmt.Errorf("clear uav: not a host buffer")
		}
		clear(host.Words)
	case gpu.CmdTimestamp:
		var queries *softwareQueries
		ok := false
		if cmd.Timestamps != nil {
			queries, ok = cmd.Timestamps.Native.(*softwareQueries)
		}
		if !ok || cmd.Query < 0 || cmd.Query >= len(queries.ticks) {
			return fmt.Errorf("timestamp %d out of range", cmd.Query)
		}
		queries.ticks[cmd.Query] = uint64(time.Since(b.epoch).Nanoseconds())
	case gpu.CmdDraw, gpu.CmdDispatch, gpu.CmdDispatchMesh:
		return b.invoke(st, cmd)
	default:
		return fmt.Errorf("unsupported command")
	}
	return nil
}

func (b *softwareBackend) invoke(st *softwareState, cmd gpu.Command) error {
	if st.pipeline == nil {
		return fmt.Errorf("no pipeline set")
	}
	stage := gpu.StageGraphics
	if cmd.Kind == gpu.CmdDispatch {
		stage = gpu.StageCompute
	}
	inv := &pipeline.Invocation{
		Kind:             cmd.Kind,
		Constants:        st.constants[stage],
		SRVs:             st.srvs[stage],
		Screen:           st.screen,
		Vertices:         st.vertices,
		Viewport:         st.viewport,
		Target:           st.target,
		Depth:            st.depth,
		LineAntialiasing: st.pipeline.LineAntialiasing(),
		Parallel:         b.parallel,
	}
	switch cmd.Kind {
	case gpu.CmdDraw:
		inv.VertexCount, inv.InstanceCount = cmd.Counts[0], cmd.Counts[1]
	case gpu.CmdDispatch:
		inv.Groups = cmd.Counts
		inv.UAVs = st.uavs
	case gpu.CmdDispatchMesh:
		inv.Groups = cmd.Counts
	}
	if err := st.pipeline.Kernel()(inv); err != nil {
		return fmt.Errorf("pipeline %s: %w", st.pipeline.PipelineKey(), err)
	}
	return nil
}

// parallel splits [0, n) into chunks run on the worker pool and waits for all of them.
func (b *softwareBackend) parallel(n int, fn func(i int)) {
	if b.pool == nil || n < 2 {
		for i := range n {
			fn(i)
		}
		return
	}

	chunks := min(n, b.workers*4)
	per := int(common.DivRoundUp(uint32(n), uint32(chunks)))
	var wg sync.WaitGroup
	for lo := 0; lo < n; lo += per {
		hi := min(lo+per, n)
		wg.Add(1)
		b.taskID++
		b.pool.SubmitTask(worker.Task{
			ID: b.taskID,
			Do: func() (any, error) {
				defer wg.Done()
				for i := lo; i < hi; i++ {
					fn(i)
				}
				return nil, nil
			},
		})
	}
	wg.Wait()
}

func (b *softwareBackend) Present(target *gpu.Texture) error {
	img := gpu.HostImageOf(target)
	if img == nil {
		return fmt.Errorf("present: %s is not a host image", target.Name())
	}
	b.mu.Lock()
	b.presented = &gpu.HostImage{Width: img.Width, Height: img.Height, Pix: append([]float32(nil), img.Pix...)}
	presented, hook := b.presented, b.onPresent
	b.mu.Unlock()

	if hook != nil {
		hook(presented)
	}
	return nil
}

// Presented returns a copy of the last presented image, nil before the first Present.
func (b *softwareBackend) Presented() *gpu.HostImage {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.presented
}

func (b *softwareBackend) Release() {
	if b.pool != nil {
		b.pool.Stop()
	}
	log.Printf("[GPU] software backend released")
}
