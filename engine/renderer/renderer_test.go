package renderer

import (
	"sync/atomic"
	"testing"

	"github.com/Carmen-Shannon/chromascope/engine/gpu"
	"github.com/Carmen-Shannon/chromascope/engine/renderer/pipeline"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSoftwareContext(t *testing.T, opts ...RendererBuilderOption) (*Context, *softwareBackend) {
	t.Helper()
	b, err := NewBackend(BackendTypeSoftware, nil, append([]RendererBuilderOption{WithWorkers(2)}, opts...)...)
	require.NoError(t, err)
	ctx, err := NewContext(b)
	require.NoError(t, err)
	t.Cleanup(ctx.Release)
	return ctx, b.(*softwareBackend)
}

func TestParseBackendType(t *testing.T) {
	for name, want := range map[string]BackendType{"": BackendTypeWGPU, "wgpu": BackendTypeWGPU, "Software": BackendTypeSoftware} {
		got, err := ParseBackendType(name)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseBackendType("vulkan")
	assert.Error(t, err)
}

func TestNewBackendRequiresSurfaceForWGPU(t *testing.T) {
	b, err := NewBackend(BackendTypeWGPU, nil)
	assert.Error(t, err)
	assert.Nil(t, b)
}

func TestStorageBindingLimit(t *testing.T) {
	limit, err := storageBindingLimit(wgpu.LimitU64Undefined)
	require.NoError(t, err)
	assert.Equal(t, uint64(MaxStorageBindingSize), limit)
	assert.GreaterOrEqual(t, limit, uint64(MaxVoxelInstances*voxelInstanceSize))

	limit, err = storageBindingLimit(128 << 20)
	require.NoError(t, err)
	assert.Equal(t, uint64(64<<20), limit)

	_, err = storageBindingLimit(32 << 20)
	assert.Error(t, err)
}

func TestCreateRwBufferRespectsStorageBindingLimit(t *testing.T) {
	ctx, _ := newSoftwareContext(t)

	buf, err := ctx.Initializer().CreateRwBuffer("largest", MaxStorageBindingSize/4)
	require.NoError(t, err)
	assert.Equal(t, uint32(MaxStorageBindingSize/4), buf.Count)

	var resErr *gpu.ResourceError
	_, err = ctx.Initializer().CreateRwBuffer("too large", MaxStorageBindingSize/4+1)
	assert.ErrorAs(t, err, &resErr)
}

func TestPickAlphaModePrefersCompositing(t *testing.T) {
	assert.Equal(t, wgpu.CompositeAlphaModePremultiplied, pickAlphaMode([]wgpu.CompositeAlphaMode{
		wgpu.CompositeAlphaModeOpaque, wgpu.CompositeAlphaModeUnpremultiplied, wgpu.CompositeAlphaModePremultiplied,
	}))
	assert.Equal(t, wgpu.CompositeAlphaModeUnpremultiplied, pickAlphaMode([]wgpu.CompositeAlphaMode{
		wgpu.CompositeAlphaModeOpaque, wgpu.CompositeAlphaModeUnpremultiplied,
	}))
	assert.Equal(t, wgpu.CompositeAlphaModeOpaque, pickAlphaMode([]wgpu.CompositeAlphaMode{wgpu.CompositeAlphaModeOpaque}))
	assert.Equal(t, wgpu.CompositeAlphaModeAuto, pickAlphaMode(nil))
}

func TestComputeViewports(t *testing.T) {
	vps := computeViewports(1280, 720)
	assert.Equal(t, gpu.Viewport{Width: 1280, Height: 720, MaxDepth: 1}, vps[ViewportFull])
	assert.Equal(t, gpu.Viewport{X: 280, Y: 0, Width: 720, Height: 720, MaxDepth: 1}, vps[ViewportAdjust])

	vps = computeViewports(300, 500)
	assert.Equal(t, gpu.Viewport{X: 0, Y: 100, Width: 300, Height: 300, MaxDepth: 1}, vps[ViewportAdjust])
}

func TestExecuteClearsAndPresents(t *testing.T) {
	var presented atomic.Pointer[gpu.HostImage]
	ctx, _ := newSoftwareContext(t, WithPresentHook(func(img *gpu.HostImage) { presented.Store(img) }))

	r, err := ctx.CreateRenderer(4, 2, [4]float32{0, 0, 0, 0.25})
	require.NoError(t, err)
	assert.Equal(t, gpu.StateRenderTarget, ctx.SwapChain().Current().State())
	first := ctx.SwapChain().Current()

	require.NoError(t, ctx.Execute(r))
	img := presented.Load()
	require.NotNil(t, img)
	assert.Equal(t, 4, img.Width)
	assert.Equal(t, [4]float32{0, 0, 0, 0.25}, img.At(3, 1))
	assert.Equal(t, gpu.StatePresent, first.State())
	assert.NotSame(t, first, ctx.SwapChain().Current())
	assert.Equal(t, uint64(1), ctx.Fence().Completed())
}

func TestCreateRendererRejectsSecondFrame(t *testing.T) {
	ctx, _ := newSoftwareContext(t)
	r, err := ctx.CreateRenderer(2, 2, [4]float32{})
	require.NoError(t, err)
	_, err = ctx.CreateRenderer(2, 2, [4]float32{})
	assert.Error(t, err)
	require.NoError(t, ctx.Execute(r))
}

func TestRendererPanicsAfterClose(t *testing.T) {
	ctx, _ := newSoftwareContext(t)
	r, err := ctx.CreateRenderer(2, 2, [4]float32{})
	require.NoError(t, err)
	_, err = r.Close()
	require.NoError(t, err)

	assert.PanicsWithValue(t, "renderer closed", func() { r.Draw(3, 1) })
	assert.PanicsWithValue(t, "renderer closed", func() { _, _ = r.Close() })
}

func TestSetUAVsPanicsWhenArenaExhausted(t *testing.T) {
	ctx, _ := newSoftwareContext(t)
	r, err := ctx.CreateRenderer(2, 2, [4]float32{})
	require.NoError(t, err)
	ds := make([]gpu.Descriptor, FrameDescriptors+1)
	assert.PanicsWithValue(t, "too many descriptors", func() { r.SetUAVs(ds...) })
}

func TestResourceBarrierRejectsWrongState(t *testing.T) {
	ctx, _ := newSoftwareContext(t)
	rw, err := ctx.Initializer().CreateRwBuffer("bins", 16)
	require.NoError(t, err)

	r, err := ctx.CreateRenderer(2, 2, [4]float32{})
	require.NoError(t, err)
	err = r.ResourceBarrier(gpu.Transition(rw, gpu.StateUnorderedAccess, gpu.StateShaderResource))
	assert.ErrorIs(t, err, gpu.ErrInvalidTransition)
	assert.Equal(t, gpu.StateShaderResource, rw.State())
}

func TestExecuteRunsKernelsAndReportsTimings(t *testing.T) {
	ctx, backend := newSoftwareContext(t)
	init := ctx.Initializer()
	rw, err := init.CreateRwBuffer("counts", 64)
	require.NoError(t, err)

	fill := pipeline.NewPipeline("fill", pipeline.PipelineTypeCompute, pipeline.WithKernel(func(inv *pipeline.Invocation) error {
		words, err := inv.UAVWords(0)
		if err != nil {
			return err
		}
		n := int(inv.Groups[0])
		inv.ForEach(n, func(i int) {
			words[i] = uint32(i) + uint32(inv.Constants[0])
		})
		return nil
	}))
	require.NoError(t, init.RegisterPipeline(fill))

	var timings []gpu.Timing
	ctx.SetTimingSink(func(ts []gpu.Timing) { timings = ts })

	r, err := ctx.CreateRenderer(2, 2, [4]float32{})
	require.NoError(t, err)
	r.Timestamp("fill")
	require.NoError(t, r.ResourceBarrier(gpu.Transition(rw, gpu.StateShaderResource, gpu.StateUnorderedAccess)))
	r.SetPipeline(fill)
	r.SetComputeConstants([]byte{10})
	r.SetUAVs(rw.UAV)
	r.Dispatch(64, 1, 1)
	require.NoError(t, r.ResourceBarrier(gpu.Transition(rw, gpu.StateUnorderedAccess, gpu.StateShaderResource)))
	r.Timestamp("fill")
	require.NoError(t, ctx.Execute(r))

	data, err := backend.ReadBuffer(rw.Buffer)
	require.NoError(t, err)
	assert.Equal(t, byte(10), data[0])
	assert.Equal(t, byte(73), data[63*4])

	require.Len(t, timings, 1)
	assert.Equal(t, "fill", timings[0].Label)
}

func TestClearUAVZeroesBuffer(t *testing.T) {
	ctx, backend := newSoftwareContext(t)
	rw, err := ctx.Initializer().CreateRwBuffer("bins", 8)
	require.NoError(t, err)
	require.NoError(t, backend.WriteBuffer(rw.Buffer, 0, []byte{1, 2, 3, 4, 5, 6, 7, 8}))

	r, err := ctx.CreateRenderer(2, 2, [4]float32{})
	require.NoError(t, err)
	require.NoError(t, r.ResourceBarrier(gpu.Transition(rw, gpu.StateShaderResource, gpu.StateUnorderedAccess)))
	r.ClearUAV(rw)
	require.NoError(t, r.ResourceBarrier(gpu.Transition(rw, gpu.StateUnorderedAccess, gpu.StateShaderResource)))
	require.NoError(t, ctx.Execute(r))

	data, err := backend.ReadBuffer(rw.Buffer)
	require.NoError(t, err)
	assert.Equal(t, make([]byte, 32), data)
}

func TestExecuteFailsOnUnregisteredPipeline(t *testing.T) {
	ctx, _ := newSoftwareContext(t)
	p := pipeline.NewPipeline("missing", pipeline.PipelineTypeCompute)

	r, err := ctx.CreateRenderer(2, 2, [4]float32{})
	require.NoError(t, err)
	r.SetPipeline(p)
	r.Dispatch(1, 1, 1)
	err = ctx.Execute(r)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not registered")
}

func TestRegisterPipelineRequiresKernel(t *testing.T) {
	ctx, _ := newSoftwareContext(t)
	err := ctx.Initializer().RegisterPipeline(pipeline.NewPipeline("bare", pipeline.PipelineTypeRender))
	assert.Error(t, err)
}

func TestCreateVertexBuffer(t *testing.T) {
	ctx, _ := newSoftwareContext(t)
	type vertex struct{ pos, color [3]float32 }
	vb, err := CreateVertexBuffer(ctx.Initializer(), "grid", []vertex{{}, {}, {}})
	require.NoError(t, err)
	assert.Equal(t, uint32(3), vb.Count)
	assert.Equal(t, uint32(24), vb.Stride)

	_, err = CreateVertexBuffer[vertex](ctx.Initializer(), "empty", nil)
	assert.Error(t, err)
}
