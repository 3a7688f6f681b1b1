package renderer

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log"
	"runtime"
	"slices"
	"sync"

	"github.com/Carmen-Shannon/chromascope/common"
	"github.com/Carmen-Shannon/chromascope/engine/gpu"
	"github.com/Carmen-Shannon/chromascope/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/chromascope/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

const (
	// uniformRingSlots is the number of constants slots one submission may use.
	uniformRingSlots = 256
	// dummyBufferSize is the size of the buffers bound to unused table entries.
	dummyBufferSize = 256
	// MaxVoxelInstances bounds the instances a mesh dispatch may emit.
	MaxVoxelInstances = 1 << 20
	// voxelInstanceSize is the size of one emitted instance: a vec4 position and a vec4 color.
	voxelInstanceSize = 32
	// drawArgsSize is the size of the indirect draw arguments.
	drawArgsSize = 16
	// cubeVertexCount is the vertex count of one emitted instance, a cube of 12 triangles.
	cubeVertexCount = 36
	// MaxStorageBindingSize is the largest storage buffer a pass may bind whole, the 256³ u32
	// cells of the color cloud counter.
	MaxStorageBindingSize = 256 * 256 * 256 * 4
)

// storageBindingLimit returns the storage binding size to request from a device whose adapter
// supports up to supported bytes. It covers every whole-bound storage buffer and the voxel
// instance buffer.
func storageBindingLimit(supported uint64) (uint64, error) {
	need := uint64(max(MaxStorageBindingSize, MaxVoxelInstances*voxelInstanceSize))
	if supported != wgpu.LimitU64Undefined && supported < need {
		return 0, fmt.Errorf("adapter binds at most %d bytes of storage, need %d", supported, need)
	}
	return need, nil
}

// wgpuTexture is the native object behind a texture of the wgpu backend. Swap chain colors are
// placeholders resolved to the current surface texture when a submission draws into them.
type wgpuTexture struct {
	texture *wgpu.Texture
	view    *wgpu.TextureView
	surface bool
}

// wgpuQueries is the native object behind a timestamp pool.
type wgpuQueries struct {
	set      *wgpu.QuerySet
	resolve  *wgpu.Buffer
	readback *wgpu.Buffer
}

// tableKey identifies a cached bind group of a storage table.
type tableKey struct {
	group int
	bufs  [shader.RootTableSize]*gpu.Buffer
}

// wgpuBackend records command lists into wgpu command encoders. Every pipeline shares the root
// layout so tables bind independently of the pipeline consuming them.
type wgpuBackend struct {
	mu     sync.Mutex
	device *wgpu.Device
	queue  *wgpu.Queue

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	surface  *wgpu.Surface

	surfaceFormat wgpu.TextureFormat
	alphaMode     wgpu.CompositeAlphaMode
	presentMode   wgpu.PresentMode
	timestamps    bool

	rootLayouts    [shader.RootGroupCount]*wgpu.BindGroupLayout
	pipelineLayout *wgpu.PipelineLayout
	pipelines      map[string]pipeline.Pipeline

	// uniformRing holds uniformRingSlots constants slots, bound through group 0 with a dynamic offset.
	uniformRing      *wgpu.Buffer
	uniformBindGroup *wgpu.BindGroup
	uniformStaging   []byte

	dummySRVs    [shader.RootTableSize]*gpu.Buffer
	dummyUAVs    [shader.RootTableSize]*gpu.Buffer
	dummyTexture *gpu.Texture

	tableGroups  map[tableKey]*wgpu.BindGroup
	screenGroups map[*gpu.Texture]*wgpu.BindGroup

	// mesh emulation: the task stage writes instances and indirect args, the draw consumes them
	instances *gpu.Buffer
	drawArgs  *gpu.Buffer
	argsInit  *gpu.Buffer

	// frameSurface is the surface texture acquired by the last submission, presented by Present.
	frameSurface *wgpu.Texture
	frameView    *wgpu.TextureView
}

var _ Backend = &wgpuBackend{}

func newWGPUBackend(surfaceDescriptor *wgpu.SurfaceDescriptor, cfg backendConfig) (*wgpuBackend, error) {
	if surfaceDescriptor == nil {
		return nil, errors.New("wgpu backend requires a surface")
	}
	runtime.LockOSThread()
	b := &wgpuBackend{
		instance:     wgpu.CreateInstance(nil),
		presentMode:  wgpu.PresentModeImmediate,
		pipelines:    make(map[string]pipeline.Pipeline),
		tableGroups:  make(map[tableKey]*wgpu.BindGroup),
		screenGroups: make(map[*gpu.Texture]*wgpu.BindGroup),
	}
	if cfg.presentMode == PresentModeVSync {
		b.presentMode = wgpu.PresentModeFifo
	}
	b.surface = b.instance.CreateSurface(surfaceDescriptor)

	a, err := b.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: cfg.forceFallbackAdapter,
		CompatibleSurface:    b.surface,
	})
	if err != nil {
		return nil, fmt.Errorf("request adapter: %w", err)
	}
	b.adapter = a

	// Group 2 is visible to fragment shaders next to group 1, eight storage buffers per stage.
	limits := wgpu.DefaultLimits()
	limits.MaxBindGroups = shader.RootGroupCount
	limits.MaxStorageBuffersPerShaderStage = 2 * shader.RootTableSize
	if limits.MaxStorageBufferBindingSize, err = storageBindingLimit(a.GetLimits().Limits.MaxStorageBufferBindingSize); err != nil {
		return nil, err
	}

	var features []wgpu.FeatureName
	if a.HasFeature(wgpu.FeatureNameTimestampQuery) {
		features = append(features, wgpu.FeatureNameTimestampQuery)
		b.timestamps = true
	}

	d, err := a.RequestDevice(&wgpu.DeviceDescriptor{
		Label:            "chromascope device",
		RequiredFeatures: features,
		RequiredLimits: &wgpu.RequiredLimits{
			Limits: limits,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("request device: %w", err)
	}
	b.device = d
	b.queue = d.GetQueue()

	capabilities := b.surface.GetCapabilities(b.adapter)
	if len(capabilities.Formats) == 0 {
		return nil, errors.New("surface reports no formats")
	}
	b.surfaceFormat = capabilities.Formats[0]
	for _, f := range capabilities.Formats {
		if f == wgpu.TextureFormatBGRA8UnormSrgb || f == wgpu.TextureFormatRGBA8UnormSrgb {
			b.surfaceFormat = f
			break
		}
	}
	b.alphaMode = pickAlphaMode(capabilities.AlphaModes)

	if err := b.createRootLayout(); err != nil {
		b.Release()
		return nil, err
	}
	log.Printf("[GPU] wgpu backend ready, surface format %v, timestamps %t", b.surfaceFormat, b.timestamps)
	return b, nil
}

// pickAlphaMode prefers a compositing alpha mode so the clear alpha shows the desktop through the
// overlay, and falls back to the first supported mode.
func pickAlphaMode(modes []wgpu.CompositeAlphaMode) wgpu.CompositeAlphaMode {
	for _, want := range []wgpu.CompositeAlphaMode{wgpu.CompositeAlphaModePremultiplied, wgpu.CompositeAlphaModeUnpremultiplied} {
		if slices.Contains(modes, want) {
			return want
		}
	}
	if len(modes) == 0 {
		return wgpu.CompositeAlphaModeAuto
	}
	return modes[0]
}

// createRootLayout creates the shared pipeline layout, the uniform ring and the resources bound in
// place of unused bindings.
func (b *wgpuBackend) createRootLayout() error {
	descriptors := shader.RootLayoutDescriptors()
	for g := range descriptors {
		layout, err := b.device.CreateBindGroupLayout(&descriptors[g])
		if err != nil {
			return fmt.Errorf("failed to create bind group layout for group %d: %w", g, err)
		}
		b.rootLayouts[g] = layout
	}
	layout, err := b.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            "root layout",
		BindGroupLayouts: b.rootLayouts[:],
	})
	if err != nil {
		return err
	}
	b.pipelineLayout = layout

	b.uniformRing, err = b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "constants ring",
		Size:  uniformRingSlots * shader.RootConstantsSize,
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return err
	}
	b.uniformBindGroup, err = b.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "constants",
		Layout: b.rootLayouts[shader.RootGroupConstants],
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: b.uniformRing, Offset: 0, Size: shader.RootConstantsSize},
		},
	})
	if err != nil {
		return err
	}

	for i := range shader.RootTableSize {
		if b.dummySRVs[i], err = b.CreateBuffer(gpu.BufferDescriptor{Label: fmt.Sprintf("dummy srv %d", i), Size: dummyBufferSize, Usage: gpu.BufferUsageStorage}); err != nil {
			return err
		}
		if b.dummyUAVs[i], err = b.CreateBuffer(gpu.BufferDescriptor{Label: fmt.Sprintf("dummy uav %d", i), Size: dummyBufferSize, Usage: gpu.BufferUsageStorage}); err != nil {
			return err
		}
	}
	if b.dummyTexture, err = b.CreateTexture(gpu.TextureDescriptor{Label: "dummy screen", Width: 1, Height: 1, Format: gpu.FormatRGBA8Unorm}); err != nil {
		return err
	}

	if b.instances, err = b.CreateBuffer(gpu.BufferDescriptor{
		Label: "voxel instances",
		Size:  MaxVoxelInstances * voxelInstanceSize,
		Usage: gpu.BufferUsageStorage,
	}); err != nil {
		return err
	}
	if b.drawArgs, err = b.CreateBuffer(gpu.BufferDescriptor{
		Label: "voxel draw args",
		Size:  drawArgsSize,
		Usage: gpu.BufferUsageStorage | gpu.BufferUsageIndirect,
	}); err != nil {
		return err
	}
	b.argsInit, err = b.CreateBuffer(gpu.BufferDescriptor{
		Label:    "voxel draw args init",
		Size:     drawArgsSize,
		Usage:    gpu.BufferUsageCopySrc,
		Contents: common.SliceToBytes([]uint32{cubeVertexCount, 0, 0, 0}),
	})
	return err
}

func (b *wgpuBackend) Type() BackendType {
	return BackendTypeWGPU
}

func bufferUsage(u gpu.BufferUsage) wgpu.BufferUsage {
	out := wgpu.BufferUsageCopyDst | wgpu.BufferUsageCopySrc
	if u&gpu.BufferUsageStorage != 0 {
		out |= wgpu.BufferUsageStorage
	}
	if u&gpu.BufferUsageVertex != 0 {
		out |= wgpu.BufferUsageVertex
	}
	if u&gpu.BufferUsageUniform != 0 {
		out |= wgpu.BufferUsageUniform
	}
	if u&gpu.BufferUsageIndirect != 0 {
		out |= wgpu.BufferUsageIndirect
	}
	return out
}

func textureFormat(f gpu.Format) wgpu.TextureFormat {
	switch f {
	case gpu.FormatBGRA8Unorm:
		return wgpu.TextureFormatBGRA8Unorm
	case gpu.FormatBGRA8UnormSRGB:
		return wgpu.TextureFormatBGRA8UnormSrgb
	case gpu.FormatRGBA8Unorm:
		return wgpu.TextureFormatRGBA8Unorm
	case gpu.FormatRGBA8UnormSRGB:
		return wgpu.TextureFormatRGBA8UnormSrgb
	case gpu.FormatRGBA16Float:
		return wgpu.TextureFormatRGBA16Float
	case gpu.FormatRGBA32Float:
		return wgpu.TextureFormatRGBA32Float
	case gpu.FormatDepth16Unorm:
		return wgpu.TextureFormatDepth16Unorm
	}
	return wgpu.TextureFormatUndefined
}

func formatFromWGPU(f wgpu.TextureFormat) gpu.Format {
	switch f {
	case wgpu.TextureFormatBGRA8Unorm:
		return gpu.FormatBGRA8Unorm
	case wgpu.TextureFormatBGRA8UnormSrgb:
		return gpu.FormatBGRA8UnormSRGB
	case wgpu.TextureFormatRGBA8Unorm:
		return gpu.FormatRGBA8Unorm
	case wgpu.TextureFormatRGBA8UnormSrgb:
		return gpu.FormatRGBA8UnormSRGB
	case wgpu.TextureFormatRGBA16Float:
		return gpu.FormatRGBA16Float
	}
	return gpu.FormatUndefined
}

func (b *wgpuBackend) CreateBuffer(desc gpu.BufferDescriptor) (*gpu.Buffer, error) {
	if desc.Size == 0 || uint64(len(desc.Contents)) > desc.Size {
		return nil, gpu.NewResourceError("create buffer "+desc.Label, fmt.Errorf("invalid size %d for %d bytes of contents", desc.Size, len(desc.Contents)))
	}
	native, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: desc.Label,
		Size:  (desc.Size + 3) &^ 3,
		Usage: bufferUsage(desc.Usage),
	})
	if err != nil {
		return nil, gpu.NewResourceError("create buffer "+desc.Label, err)
	}
	buf := gpu.NewBuffer(desc, native)
	if len(desc.Contents) > 0 {
		if err := b.WriteBuffer(buf, 0, desc.Contents); err != nil {
			native.Release()
			return nil, err
		}
	}
	return buf, nil
}

func (b *wgpuBackend) CreateTexture(desc gpu.TextureDescriptor) (*gpu.Texture, error) {
	format := textureFormat(desc.Format)
	if format == wgpu.TextureFormatUndefined || desc.Width == 0 || desc.Height == 0 {
		return nil, gpu.NewResourceError("create texture "+desc.Label, fmt.Errorf("invalid %s texture %dx%d", desc.Format, desc.Width, desc.Height))
	}
	usage := wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst
	if desc.RenderTarget {
		usage |= wgpu.TextureUsageRenderAttachment
	}
	if desc.Format == gpu.FormatDepth16Unorm {
		usage = wgpu.TextureUsageRenderAttachment
	}
	tex, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
		Label: desc.Label,
		Size: wgpu.Extent3D{
			Width:              desc.Width,
			Height:             desc.Height,
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        format,
		Usage:         usage,
	})
	if err != nil {
		return nil, gpu.NewResourceError("create texture "+desc.Label, err)
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return nil, gpu.NewResourceError("create texture view "+desc.Label, err)
	}
	return gpu.NewTexture(desc, &wgpuTexture{texture: tex, view: view}), nil
}

// ReleaseTexture frees tex together with its cached screen bind group. Surface textures belong to
// the surface and are only detached.
func (b *wgpuBackend) ReleaseTexture(tex *gpu.Texture) {
	if tex == nil || tex == b.dummyTexture {
		return
	}
	native, ok := tex.Native.(*wgpuTexture)
	if !ok {
		return
	}

	b.mu.Lock()
	if bg, ok := b.screenGroups[tex]; ok {
		bg.Release()
		delete(b.screenGroups, tex)
	}
	b.mu.Unlock()

	if !native.surface {
		native.view.Release()
		native.texture.Release()
	}
	tex.Native = nil
}

func nativeBuffer(buf *gpu.Buffer) (*wgpu.Buffer, error) {
	if buf == nil {
		return nil, errors.New("nil buffer")
	}
	native, ok := buf.Native.(*wgpu.Buffer)
	if !ok {
		return nil, fmt.Errorf("%s was not created by the wgpu backend", buf.Name())
	}
	return native, nil
}

func nativeTexture(tex *gpu.Texture) (*wgpuTexture, error) {
	if tex == nil {
		return nil, errors.New("nil texture")
	}
	native, ok := tex.Native.(*wgpuTexture)
	if !ok {
		return nil, fmt.Errorf("%s was not created by the wgpu backend", tex.Name())
	}
	return native, nil
}

func (b *wgpuBackend) WriteBuffer(buf *gpu.Buffer, offset uint64, data []byte) error {
	native, err := nativeBuffer(buf)
	if err != nil {
		return err
	}
	if offset+uint64(len(data)) > buf.Size {
		return fmt.Errorf("write buffer: %d bytes at %d overflow %s", len(data), offset, buf.Name())
	}
	// queue writes must be a multiple of four bytes
	if len(data)%4 != 0 {
		padded := make([]byte, (len(data)+3)&^3)
		copy(padded, data)
		data = padded
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.queue.WriteBuffer(native, offset, data)
}

func (b *wgpuBackend) WriteTexture(tex *gpu.Texture, data common.TextureStagingData) error {
	native, err := nativeTexture(tex)
	if err != nil {
		return err
	}
	if native.texture == nil {
		return fmt.Errorf("write texture: %s is a swap chain target", tex.Name())
	}
	if data.Width != tex.Width || data.Height != tex.Height {
		return fmt.Errorf("write texture %s: %dx%d data for a %dx%d texture", tex.Name(), data.Width, data.Height, tex.Width, tex.Height)
	}
	pitch := data.BytesPerRow
	if pitch == 0 {
		pitch = data.Width * tex.Format.BytesPerPixel()
	}
	if uint64(len(data.Pixels)) < uint64(pitch)*uint64(data.Height-1)+uint64(data.Width*tex.Format.BytesPerPixel()) {
		return fmt.Errorf("write texture %s: %d bytes are too short", tex.Name(), len(data.Pixels))
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.queue.WriteTexture(
		&wgpu.ImageCopyTexture{
			Texture:  native.texture,
			MipLevel: 0,
			Origin:   wgpu.Origin3D{},
			Aspect:   wgpu.TextureAspectAll,
		},
		data.Pixels,
		&wgpu.TextureDataLayout{
			Offset:       0,
			BytesPerRow:  pitch,
			RowsPerImage: data.Height,
		},
		&wgpu.Extent3D{
			Width:              data.Width,
			Height:             data.Height,
			DepthOrArrayLayers: 1,
		},
	)
	return nil
}

// ReadBuffer copies buf into a mappable staging buffer and waits for the copy.
func (b *wgpuBackend) ReadBuffer(buf *gpu.Buffer) ([]byte, error) {
	native, err := nativeBuffer(buf)
	if err != nil {
		return nil, err
	}
	size := (buf.Size + 3) &^ 3

	b.mu.Lock()
	defer b.mu.Unlock()
	staging, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: buf.Name() + " readback",
		Size:  size,
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, err
	}
	defer staging.Release()

	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		return nil, err
	}
	defer encoder.Release()
	encoder.CopyBufferToBuffer(native, 0, staging, 0, size)
	cmd, err := encoder.Finish(nil)
	if err != nil {
		return nil, err
	}
	defer cmd.Release()
	b.queue.Submit(cmd)
	return b.mapRead(staging, size)
}

// mapRead maps a MapRead buffer, copies its contents out and unmaps it.
func (b *wgpuBackend) mapRead(staging *wgpu.Buffer, size uint64) ([]byte, error) {
	b.device.Poll(true, nil)
	var status wgpu.BufferMapAsyncStatus
	if err := staging.MapAsync(wgpu.MapModeRead, 0, size, func(s wgpu.BufferMapAsyncStatus) {
		status = s
	}); err != nil {
		return nil, err
	}
	b.device.Poll(true, nil)
	if status != wgpu.BufferMapAsyncStatusSuccess {
		return nil, fmt.Errorf("map buffer: status %v", status)
	}
	out := make([]byte, size)
	copy(out, staging.GetMappedRange(0, uint(size)))
	staging.Unmap()
	return out, nil
}

func (b *wgpuBackend) createShaderModule(s shader.Shader) (*wgpu.ShaderModule, error) {
	return b.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: s.Key(),
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: s.Source(),
		},
	})
}

// RegisterPipeline compiles the stages of p against the root layout and stores the pipeline
// objects on p. Mesh pipelines get a compute pipeline for the task stage and a render pipeline
// for the draw.
func (b *wgpuBackend) RegisterPipeline(p pipeline.Pipeline) error {
	if err := p.Validate(true); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if p.Type() == pipeline.PipelineTypeCompute || p.Type() == pipeline.PipelineTypeMesh {
		computeShader := p.Shader(shader.ShaderTypeCompute)
		module, err := b.createShaderModule(computeShader)
		if err != nil {
			return err
		}
		created, err := b.device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
			Label:  p.PipelineKey() + " Compute Pipeline",
			Layout: b.pipelineLayout,
			Compute: wgpu.ProgrammableStageDescriptor{
				Module:     module,
				EntryPoint: computeShader.EntryPoint(),
			},
		})
		if err != nil {
			return fmt.Errorf("pipeline %s: %w", p.PipelineKey(), err)
		}
		p.SetComputePipeline(created)
	}
	if p.Type() == pipeline.PipelineTypeCompute {
		b.pipelines[p.PipelineKey()] = p
		return nil
	}

	vertexShader := p.Shader(shader.ShaderTypeVertex)
	fragmentShader := p.Shader(shader.ShaderTypeFragment)
	vs, err := b.createShaderModule(vertexShader)
	if err != nil {
		return err
	}
	fs, err := b.createShaderModule(fragmentShader)
	if err != nil {
		return err
	}

	layouts := vertexShader.VertexLayouts()
	vertexLayouts := make([]wgpu.VertexBufferLayout, 0, len(layouts))
	for i := range len(layouts) {
		vertexLayouts = append(vertexLayouts, layouts[i]...)
	}

	depthCompare := wgpu.CompareFunctionLess
	if !p.DepthTestEnabled() {
		depthCompare = wgpu.CompareFunctionAlways
	}
	created, err := b.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  p.PipelineKey() + " Render Pipeline",
		Layout: b.pipelineLayout,
		Vertex: wgpu.VertexState{
			Module:     vs,
			EntryPoint: vertexShader.EntryPoint(),
			Buffers:    vertexLayouts,
		},
		Fragment: &wgpu.FragmentState{
			Module:     fs,
			EntryPoint: fragmentShader.EntryPoint(),
			Targets: []wgpu.ColorTargetState{{
				Format:    b.surfaceFormat,
				Blend:     p.BlendState(),
				WriteMask: wgpu.ColorWriteMaskAll,
			}},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  p.Topology(),
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  wgpu.CullModeNone,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
		DepthStencil: &wgpu.DepthStencilState{
			Format:            wgpu.TextureFormatDepth16Unorm,
			DepthWriteEnabled: p.DepthWriteEnabled(),
			DepthCompare:      depthCompare,
			StencilFront: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
			StencilBack: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("pipeline %s: %w", p.PipelineKey(), err)
	}
	p.SetRenderPipeline(created)
	b.pipelines[p.PipelineKey()] = p
	return nil
}

// AllocateSwapChain configures the surface. The returned colors stand for the surface texture
// acquired at submission, the depth target is a real texture.
func (b *wgpuBackend) AllocateSwapChain(width, height uint32, format gpu.Format, count int) ([]*gpu.Texture, *gpu.Texture, error) {
	b.mu.Lock()
	b.surface.Configure(b.adapter, b.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      b.surfaceFormat,
		Width:       width,
		Height:      height,
		PresentMode: b.presentMode,
		AlphaMode:   b.alphaMode,
	})
	b.mu.Unlock()

	colors := make([]*gpu.Texture, count)
	for i := range colors {
		colors[i] = gpu.NewTexture(gpu.TextureDescriptor{
			Label:        fmt.Sprintf("swap chain %d", i),
			Width:        width,
			Height:       height,
			Format:       format,
			InitialState: gpu.StatePresent,
			RenderTarget: true,
		}, &wgpuTexture{surface: true})
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

func (b *wgpuBackend) SwapChainFormat() gpu.Format {
	return formatFromWGPU(b.surfaceFormat)
}

// CreateTimestampPool returns a pool without queries when the adapter lacks timestamp support.
// Timestamps written to such a pool are dropped.
func (b *wgpuBackend) CreateTimestampPool(capacity int) (*gpu.TimestampPool, error) {
	pool := &gpu.TimestampPool{Capacity: capacity}
	if !b.timestamps {
		log.Printf("[GPU] timestamp queries unsupported, timings disabled")
		return pool, nil
	}
	set, err := b.device.CreateQuerySet(&wgpu.QuerySetDescriptor{
		Label: "timestamps",
		Type:  wgpu.QueryTypeTimestamp,
		Count: uint32(capacity),
	})
	if err != nil {
		return nil, gpu.NewResourceError("create timestamp pool", err)
	}
	size := uint64(capacity) * 8
	resolve, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "timestamp resolve",
		Size:  size,
		Usage: wgpu.BufferUsageQueryResolve | wgpu.BufferUsageCopySrc,
	})
	if err != nil {
		return nil, gpu.NewResourceError("create timestamp pool", err)
	}
	readback, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "timestamp readback",
		Size:  size,
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, gpu.NewResourceError("create timestamp pool", err)
	}
	pool.Native = &wgpuQueries{set: set, resolve: resolve, readback: readback}
	return pool, nil
}

// TimestampFrequency reports nanosecond ticks, the unit wgpu resolves timestamps to.
func (b *wgpuBackend) TimestampFrequency() uint64 {
	return 1_000_000_000
}

func (b *wgpuBackend) ReadTimestamps(pool *gpu.TimestampPool, count int) ([]uint64, error) {
	q, ok := pool.Native.(*wgpuQueries)
	if !ok || count == 0 {
		return nil, nil
	}
	count = min(count, pool.Capacity)
	b.mu.Lock()
	defer b.mu.Unlock()
	raw, err := b.mapRead(q.readback, uint64(pool.Capacity)*8)
	if err != nil {
		return nil, err
	}
	ticks := make([]uint64, count)
	for i := range ticks {
		ticks[i] = binary.LittleEndian.Uint64(raw[i*8:])
	}
	return ticks, nil
}

// wgpuReplay is the binding state while a command list is recorded into an encoder.
type wgpuReplay struct {
	encoder *wgpu.CommandEncoder
	pass    *wgpu.RenderPassEncoder

	pipeline  pipeline.Pipeline
	target    *gpu.Texture
	depth     *gpu.Texture
	viewport  gpu.Viewport
	constants [2]uint32
	srvs      [2][shader.RootTableSize]*gpu.Buffer
	uavs      [shader.RootTableSize]*gpu.Buffer
	screen    *gpu.Texture
	vertices  *gpu.VertexBuffer

	clearColors map[*gpu.Texture][4]float32
	clearDepths map[*gpu.Texture]float32
}

// Submit records the command list into one encoder and submits it. Render passes open lazily on
// the first draw into a target and close before any encoder-level command.
func (b *wgpuBackend) Submit(list *gpu.ClosedCommandList, fence *gpu.Fence, value uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		return err
	}
	defer encoder.Release()

	r := &wgpuReplay{
		encoder:     encoder,
		clearColors: make(map[*gpu.Texture][4]float32),
		clearDepths: make(map[*gpu.Texture]float32),
	}
	b.uniformStaging = b.uniformStaging[:0]
	for i, cmd := range list.Commands() {
		if err := b.record(r, cmd); err != nil {
			b.endPass(r)
			return fmt.Errorf("command %d (%s): %w", i, cmd.Kind, err)
		}
	}
	b.endPass(r)
	if err := b.flushClears(r); err != nil {
		return err
	}

	if len(b.uniformStaging) > 0 {
		if err := b.queue.WriteBuffer(b.uniformRing, 0, b.uniformStaging); err != nil {
			return err
		}
	}
	cmd, err := encoder.Finish(nil)
	if err != nil {
		return err
	}
	defer cmd.Release()
	b.queue.Submit(cmd)
	b.device.Poll(true, nil)
	fence.Signal(value)
	return nil
}

func (b *wgpuBackend) record(r *wgpuReplay, cmd gpu.Command) error {
	switch cmd.Kind {
	case gpu.CmdBarrier, gpu.CmdSetScissor:
		// wgpu tracks resource usage itself and the scissor follows the viewport
	case gpu.CmdSetPipeline:
		p, err := b.lookupPipeline(cmd.Pipeline)
		if err != nil {
			return err
		}
		r.pipeline = p
	case gpu.CmdSetRenderTarget:
		if cmd.Target != r.target || cmd.Depth != r.depth {
			b.endPass(r)
		}
		r.target, r.depth = cmd.Target, cmd.Depth
	case gpu.CmdSetViewport:
		r.viewport = cmd.Viewport
	case gpu.CmdSetConstants:
		offset, err := b.stageConstants(cmd.Constants)
		if err != nil {
			return err
		}
		r.constants[cmd.Stage] = offset
	case gpu.CmdSetSRVTable:
		r.srvs[cmd.Stage] = tableBuffers(cmd.Table)
	case gpu.CmdSetUAVTable:
		r.uavs = tableBuffers(cmd.Table)
	case gpu.CmdSetSharedSRV:
		r.screen = cmd.Descriptor.Texture
	case gpu.CmdSetVertexBuffer:
		r.vertices = cmd.Vertices
	case gpu.CmdClearRenderTarget:
		b.endPass(r)
		r.clearColors[cmd.Target] = cmd.Color
	case gpu.CmdClearDepth:
		b.endPass(r)
		r.clearDepths[cmd.Depth] = cmd.DepthValue
	case gpu.CmdClearUAV:
		native, err := nativeBuffer(cmd.Descriptor.Buffer)
		if err != nil {
			return err
		}
		b.endPass(r)
		r.encoder.ClearBuffer(native, 0, (cmd.Descriptor.Buffer.Size+3)&^3)
	case gpu.CmdDraw:
		return b.draw(r, cmd)
	case gpu.CmdDispatch:
		return b.dispatch(r, cmd)
	case gpu.CmdDispatchMesh:
		return b.dispatchMesh(r, cmd)
	case gpu.CmdTimestamp:
		q, ok := timestampQueries(cmd)
		if !ok {
			return nil
		}
		b.endPass(r)
		r.encoder.WriteTimestamp(q.set, uint32(cmd.Query))
	case gpu.CmdResolveTimestamps:
		q, ok := timestampQueries(cmd)
		if !ok || cmd.Query == 0 {
			return nil
		}
		b.endPass(r)
		r.encoder.ResolveQuerySet(q.set, 0, uint32(cmd.Query), q.resolve, 0)
		r.encoder.CopyBufferToBuffer(q.resolve, 0, q.readback, 0, uint64(cmd.Query)*8)
	default:
		return errors.New("unsupported command")
	}
	return nil
}

func timestampQueries(cmd gpu.Command) (*wgpuQueries, bool) {
	if cmd.Timestamps == nil {
		return nil, false
	}
	q, ok := cmd.Timestamps.Native.(*wgpuQueries)
	return q, ok
}

func (b *wgpuBackend) lookupPipeline(key string) (pipeline.Pipeline, error) {
	p, ok := b.pipelines[key]
	if !ok {
		return nil, fmt.Errorf("pipeline %s not registered", key)
	}
	return p, nil
}

// stageConstants copies data into the next free slot of the uniform ring.
func (b *wgpuBackend) stageConstants(data []byte) (uint32, error) {
	if len(data) > shader.RootConstantsSize {
		return 0, fmt.Errorf("%d bytes of constants exceed %d", len(data), shader.RootConstantsSize)
	}
	offset := len(b.uniformStaging)
	if offset/shader.RootConstantsSize >= uniformRingSlots {
		return 0, errors.New("constants ring exhausted")
	}
	slot := make([]byte, shader.RootConstantsSize)
	copy(slot, data)
	b.uniformStaging = append(b.uniformStaging, slot...)
	return uint32(offset), nil
}

func tableBuffers(t gpu.DescriptorTable) [shader.RootTableSize]*gpu.Buffer {
	var out [shader.RootTableSize]*gpu.Buffer
	for i, d := range t.Descriptors {
		if i >= len(out) {
			break
		}
		out[i] = d.Buffer
	}
	return out
}

// tableGroup returns the bind group of a storage table, filling empty entries with dummies.
func (b *wgpuBackend) tableGroup(group int, bufs [shader.RootTableSize]*gpu.Buffer) (*wgpu.BindGroup, error) {
	dummies := b.dummySRVs
	if group == shader.RootGroupUAV {
		dummies = b.dummyUAVs
	}
	for i := range bufs {
		if bufs[i] == nil {
			bufs[i] = dummies[i]
		}
	}
	key := tableKey{group: group, bufs: bufs}
	if bg, ok := b.tableGroups[key]; ok {
		return bg, nil
	}

	entries := make([]wgpu.BindGroupEntry, len(bufs))
	for i, buf := range bufs {
		native, err := nativeBuffer(buf)
		if err != nil {
			return nil, err
		}
		entries[i] = wgpu.BindGroupEntry{Binding: uint32(i), Buffer: native, Offset: 0, Size: wgpu.WholeSize}
	}
	bg, err := b.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   fmt.Sprintf("table %d", group),
		Layout:  b.rootLayouts[group],
		Entries: entries,
	})
	if err != nil {
		return nil, err
	}
	b.tableGroups[key] = bg
	return bg, nil
}

func (b *wgpuBackend) screenGroup(tex *gpu.Texture) (*wgpu.BindGroup, error) {
	if tex == nil {
		tex = b.dummyTexture
	}
	if bg, ok := b.screenGroups[tex]; ok {
		return bg, nil
	}
	native, err := nativeTexture(tex)
	if err != nil {
		return nil, err
	}
	if native.view == nil {
		return nil, fmt.Errorf("%s cannot be sampled", tex.Name())
	}
	bg, err := b.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   "screen " + tex.Name(),
		Layout:  b.rootLayouts[shader.RootGroupScreen],
		Entries: []wgpu.BindGroupEntry{{Binding: 0, TextureView: native.view}},
	})
	if err != nil {
		return nil, err
	}
	b.screenGroups[tex] = bg
	return bg, nil
}

// bindGroups resolves the four root groups of one draw or dispatch.
func (b *wgpuBackend) bindGroups(r *wgpuReplay, srvs, uavs [shader.RootTableSize]*gpu.Buffer) ([shader.RootGroupCount]*wgpu.BindGroup, error) {
	var out [shader.RootGroupCount]*wgpu.BindGroup
	var err error
	out[shader.RootGroupConstants] = b.uniformBindGroup
	if out[shader.RootGroupSRV], err = b.tableGroup(shader.RootGroupSRV, srvs); err != nil {
		return out, err
	}
	if out[shader.RootGroupUAV], err = b.tableGroup(shader.RootGroupUAV, uavs); err != nil {
		return out, err
	}
	if out[shader.RootGroupScreen], err = b.screenGroup(r.screen); err != nil {
		return out, err
	}
	return out, nil
}

// attachmentView returns the view of a render target, acquiring the surface texture for swap
// chain colors.
func (b *wgpuBackend) attachmentView(tex *gpu.Texture) (*wgpu.TextureView, error) {
	native, err := nativeTexture(tex)
	if err != nil {
		return nil, err
	}
	if !native.surface {
		return native.view, nil
	}
	if b.frameView != nil {
		return b.frameView, nil
	}
	surfaceTexture, err := b.surface.GetCurrentTexture()
	if err != nil {
		return nil, err
	}
	view, err := surfaceTexture.CreateView(nil)
	if err != nil {
		surfaceTexture.Release()
		return nil, err
	}
	b.frameSurface, b.frameView = surfaceTexture, view
	return view, nil
}

// beginPass opens a render pass on the current targets, consuming pending clears.
func (b *wgpuBackend) beginPass(r *wgpuReplay) error {
	if r.pass != nil {
		return nil
	}
	if r.target == nil {
		return errors.New("no render target set")
	}
	view, err := b.attachmentView(r.target)
	if err != nil {
		return err
	}
	color := wgpu.RenderPassColorAttachment{
		View:    view,
		LoadOp:  wgpu.LoadOpLoad,
		StoreOp: wgpu.StoreOpStore,
	}
	if c, ok := r.clearColors[r.target]; ok {
		color.LoadOp = wgpu.LoadOpClear
		color.ClearValue = wgpu.Color{R: float64(c[0]), G: float64(c[1]), B: float64(c[2]), A: float64(c[3])}
		delete(r.clearColors, r.target)
	}
	desc := &wgpu.RenderPassDescriptor{ColorAttachments: []wgpu.RenderPassColorAttachment{color}}
	if r.depth != nil {
		depthView, err := b.attachmentView(r.depth)
		if err != nil {
			return err
		}
		attachment := &wgpu.RenderPassDepthStencilAttachment{
			View:         depthView,
			DepthLoadOp:  wgpu.LoadOpLoad,
			DepthStoreOp: wgpu.StoreOpStore,
		}
		if d, ok := r.clearDepths[r.depth]; ok {
			attachment.DepthLoadOp = wgpu.LoadOpClear
			attachment.DepthClearValue = d
			delete(r.clearDepths, r.depth)
		}
		desc.DepthStencilAttachment = attachment
	}
	r.pass = r.encoder.BeginRenderPass(desc)
	return nil
}

func (b *wgpuBackend) endPass(r *wgpuReplay) {
	if r.pass == nil {
		return
	}
	r.pass.End()
	r.pass.Release()
	r.pass = nil
}

// flushClears runs clears no draw consumed as empty render passes.
func (b *wgpuBackend) flushClears(r *wgpuReplay) error {
	for tex := range r.clearColors {
		r.target, r.depth = tex, nil
		if err := b.beginPass(r); err != nil {
			return err
		}
		b.endPass(r)
	}
	for tex, d := range r.clearDepths {
		view, err := b.attachmentView(tex)
		if err != nil {
			return err
		}
		pass := r.encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
			DepthStencilAttachment: &wgpu.RenderPassDepthStencilAttachment{
				View:            view,
				DepthLoadOp:     wgpu.LoadOpClear,
				DepthStoreOp:    wgpu.StoreOpStore,
				DepthClearValue: d,
			},
		})
		pass.End()
		pass.Release()
	}
	return nil
}

// prepareDraw opens the pass and binds the render state shared by draws.
func (b *wgpuBackend) prepareDraw(r *wgpuReplay, srvs [shader.RootTableSize]*gpu.Buffer) error {
	rp, ok := r.pipeline.Pipeline().(*wgpu.RenderPipeline)
	if !ok || rp == nil {
		return fmt.Errorf("pipeline %s has no render stage", r.pipeline.PipelineKey())
	}
	groups, err := b.bindGroups(r, srvs, [shader.RootTableSize]*gpu.Buffer{})
	if err != nil {
		return err
	}
	if err := b.beginPass(r); err != nil {
		return err
	}
	vp := r.viewport
	r.pass.SetPipeline(rp)
	r.pass.SetViewport(vp.X, vp.Y, vp.Width, vp.Height, vp.MinDepth, vp.MaxDepth)
	r.pass.SetScissorRect(uint32(vp.X), uint32(vp.Y), uint32(vp.Width), uint32(vp.Height))
	r.pass.SetBindGroup(shader.RootGroupConstants, groups[shader.RootGroupConstants], []uint32{r.constants[gpu.StageGraphics]})
	for g := shader.RootGroupSRV; g < shader.RootGroupCount; g++ {
		r.pass.SetBindGroup(uint32(g), groups[g], nil)
	}
	return nil
}

func (b *wgpuBackend) draw(r *wgpuReplay, cmd gpu.Command) error {
	if r.pipeline == nil {
		return errors.New("no pipeline set")
	}
	if err := b.prepareDraw(r, r.srvs[gpu.StageGraphics]); err != nil {
		return err
	}
	if len(r.pipeline.Shader(shader.ShaderTypeVertex).VertexLayouts()) > 0 {
		if r.vertices == nil {
			return errors.New("no vertex buffer set")
		}
		native, err := nativeBuffer(r.vertices.Buffer)
		if err != nil {
			return err
		}
		r.pass.SetVertexBuffer(0, native, 0, wgpu.WholeSize)
	}
	r.pass.Draw(cmd.Counts[0], cmd.Counts[1], 0, 0)
	return nil
}

// computePass runs one dispatch of cp in its own compute pass.
func (b *wgpuBackend) computePass(r *wgpuReplay, cp *wgpu.ComputePipeline, constants uint32, srvs, uavs [shader.RootTableSize]*gpu.Buffer, groupsCount [3]uint32) error {
	groups, err := b.bindGroups(r, srvs, uavs)
	if err != nil {
		return err
	}
	b.endPass(r)
	pass := r.encoder.BeginComputePass(nil)
	pass.SetPipeline(cp)
	pass.SetBindGroup(shader.RootGroupConstants, groups[shader.RootGroupConstants], []uint32{constants})
	for g := shader.RootGroupSRV; g < shader.RootGroupCount; g++ {
		pass.SetBindGroup(uint32(g), groups[g], nil)
	}
	pass.DispatchWorkgroups(groupsCount[0], groupsCount[1], groupsCount[2])
	pass.End()
	pass.Release()
	return nil
}

func (b *wgpuBackend) dispatch(r *wgpuReplay, cmd gpu.Command) error {
	if r.pipeline == nil {
		return errors.New("no pipeline set")
	}
	cp, ok := r.pipeline.Pipeline().(*wgpu.ComputePipeline)
	if !ok || cp == nil {
		return fmt.Errorf("pipeline %s is not a compute pipeline", r.pipeline.PipelineKey())
	}
	return b.computePass(r, cp, r.constants[gpu.StageCompute], r.srvs[gpu.StageCompute], r.uavs, cmd.Counts)
}

// dispatchMesh emulates a task and mesh dispatch: the task stage appends instances and bumps the
// instance count of the indirect args, then the draw stage expands every instance into a cube.
func (b *wgpuBackend) dispatchMesh(r *wgpuReplay, cmd gpu.Command) error {
	if r.pipeline == nil {
		return errors.New("no pipeline set")
	}
	task := r.pipeline.TaskPipeline()
	if task == nil {
		return fmt.Errorf("pipeline %s is not a mesh pipeline", r.pipeline.PipelineKey())
	}
	argsInit, err := nativeBuffer(b.argsInit)
	if err != nil {
		return err
	}
	args, err := nativeBuffer(b.drawArgs)
	if err != nil {
		return err
	}

	b.endPass(r)
	r.encoder.CopyBufferToBuffer(argsInit, 0, args, 0, drawArgsSize)

	srvs := r.srvs[gpu.StageGraphics]
	taskUAVs := [shader.RootTableSize]*gpu.Buffer{b.instances, b.drawArgs}
	if err := b.computePass(r, task, r.constants[gpu.StageGraphics], srvs, taskUAVs, cmd.Counts); err != nil {
		return err
	}

	drawSRVs := srvs
	drawSRVs[1] = b.instances
	if err := b.prepareDraw(r, drawSRVs); err != nil {
		return err
	}
	r.pass.DrawIndirect(args, 0)
	return nil
}

func (b *wgpuBackend) Present(target *gpu.Texture) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frameSurface == nil {
		return nil
	}
	b.surface.Present()
	b.frameView.Release()
	b.frameSurface.Release()
	b.frameView, b.frameSurface = nil, nil
	return nil
}

func (b *wgpuBackend) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, bg := range b.tableGroups {
		bg.Release()
	}
	for _, bg := range b.screenGroups {
		bg.Release()
	}
	if b.uniformBindGroup != nil {
		b.uniformBindGroup.Release()
	}
	if b.uniformRing != nil {
		b.uniformRing.Release()
	}
	if b.pipelineLayout != nil {
		b.pipelineLayout.Release()
	}
	for _, l := range b.rootLayouts {
		if l != nil {
			l.Release()
		}
	}
	if b.device != nil {
		b.device.Release()
	}
	if b.adapter != nil {
		b.adapter.Release()
	}
	if b.surface != nil {
		b.surface.Release()
	}
	if b.instance != nil {
		b.instance.Release()
	}
	log.Printf("[GPU] wgpu backend released")
}
