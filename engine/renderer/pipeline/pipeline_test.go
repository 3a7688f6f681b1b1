package pipeline

import (
	"sync/atomic"
	"testing"

	"github.com/Carmen-Shannon/chromascope/engine/gpu"
	"github.com/Carmen-Shannon/chromascope/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPipelineDefaults(t *testing.T) {
	p := NewPipeline("filter", PipelineTypeRender)

	assert.Equal(t, "filter", p.PipelineKey())
	assert.Equal(t, PipelineTypeRender, p.Type())
	assert.True(t, p.DepthTestEnabled())
	assert.False(t, p.BlendEnabled())
	assert.Nil(t, p.BlendState())
	assert.Equal(t, wgpu.PrimitiveTopologyTriangleList, p.Topology())
	assert.Nil(t, p.Kernel())
	assert.Nil(t, p.TaskPipeline())
}

func TestBuilderOptions(t *testing.T) {
	p := NewPipeline("histogram draw", PipelineTypeRender,
		WithBlendState(MultiplyBlend),
		WithDepthTestEnabled(false),
		WithDepthWriteEnabled(false),
		WithTopology(wgpu.PrimitiveTopologyTriangleStrip),
		WithLineAntialiasing(true),
		WithKernel(func(*Invocation) error { return nil }),
	)

	assert.True(t, p.BlendEnabled())
	assert.Same(t, MultiplyBlend, p.BlendState())
	assert.False(t, p.DepthTestEnabled())
	assert.False(t, p.DepthWriteEnabled())
	assert.Equal(t, wgpu.PrimitiveTopologyTriangleStrip, p.Topology())
	assert.True(t, p.LineAntialiasing())
	assert.NotNil(t, p.Kernel())
}

func TestValidateRequiresStages(t *testing.T) {
	vs := shader.NewShader("grid vs", shader.ShaderTypeVertex, shader.Assets, "assets/grid.wgsl")
	fs := shader.NewShader("grid fs", shader.ShaderTypeFragment, shader.Assets, "assets/grid.wgsl")

	partial := NewPipeline("grid", PipelineTypeRender, WithVertexShader(vs))
	assert.NoError(t, partial.Validate(false))
	assert.Error(t, partial.Validate(true))

	full := NewPipeline("grid", PipelineTypeRender, WithVertexShader(vs), WithFragmentShader(fs))
	assert.NoError(t, full.Validate(true))

	mesh := NewPipeline("cloud", PipelineTypeMesh, WithVertexShader(vs), WithFragmentShader(fs))
	assert.Error(t, mesh.Validate(true))
}

func TestValidateRejectsWrongStage(t *testing.T) {
	fs := shader.NewShader("grid fs", shader.ShaderTypeFragment, shader.Assets, "assets/grid.wgsl")
	p := NewPipeline("grid", PipelineTypeRender, WithVertexShader(fs))
	assert.Error(t, p.Validate(false))
}

func TestInvocationTables(t *testing.T) {
	buf := gpu.NewBuffer(gpu.BufferDescriptor{Label: "bins", Size: 16}, gpu.NewHostBuffer(16))
	inv := &Invocation{UAVs: []gpu.Descriptor{gpu.BufferView(gpu.ViewUAV, buf)}}

	words, err := inv.UAVWords(0)
	require.NoError(t, err)
	assert.Len(t, words, 4)

	_, err = inv.UAVWords(1)
	assert.Error(t, err)
	_, err = inv.SRVWords(0)
	assert.Error(t, err)
	_, err = inv.ScreenImage()
	assert.Error(t, err)
	assert.Nil(t, inv.DepthImage())
}

func TestInvocationForEach(t *testing.T) {
	var sum atomic.Int64
	inv := &Invocation{}
	inv.ForEach(10, func(i int) { sum.Add(int64(i)) })
	assert.Equal(t, int64(45), sum.Load())

	calls := 0
	inv.Parallel = func(n int, fn func(int)) {
		calls++
		for i := range n {
			fn(i)
		}
	}
	inv.ForEach(3, func(i int) { sum.Add(int64(i)) })
	assert.Equal(t, 1, calls)
	assert.Equal(t, int64(48), sum.Load())
}
