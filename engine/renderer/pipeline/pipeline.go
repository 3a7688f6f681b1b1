package pipeline

import (
	"fmt"

	"github.com/Carmen-Shannon/chromascope/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// PipelineType identifies whether a pipeline is a compute, render or mesh pipeline.
type PipelineType int

const (
	// PipelineTypeCompute indicates a compute pipeline with a single compute shader entry point.
	PipelineTypeCompute PipelineType = iota

	// PipelineTypeRender indicates a render pipeline with vertex and fragment shader entry points.
	PipelineTypeRender

	// PipelineTypeMesh indicates a mesh pipeline: a task compute stage that emits instances, then a
	// vertex and fragment stage drawing them indirectly.
	PipelineTypeMesh
)

func (t PipelineType) String() string {
	switch t {
	case PipelineTypeCompute:
		return "compute"
	case PipelineTypeRender:
		return "render"
	case PipelineTypeMesh:
		return "mesh"
	}
	return fmt.Sprintf("PipelineType(%d)", int(t))
}

// pipeline is the implementation of the Pipeline interface.
// It holds the underlying WebGPU pipeline objects and related data for every pipeline type.
type pipeline struct {
	// pipelineType indicates the type of pipeline this is; compute, render or mesh
	pipelineType PipelineType
	// pipelineKey is the unique identifier for this pipeline, used for caching and lookups
	pipelineKey string

	// computeShader doubles as the task stage of mesh pipelines.
	vertexShader, fragmentShader, computeShader shader.Shader

	// kernel is the host implementation run by the software backend.
	kernel Kernel

	// renderPipeline is set for render and mesh pipelines
	renderPipeline *wgpu.RenderPipeline
	// computePipeline is set for compute pipelines and holds the task stage of mesh pipelines
	computePipeline *wgpu.ComputePipeline

	// The following properties configure the rasterizer stages and can be toggled with the builder options.
	// Compute pipelines still set defaults but do not use them.

	depthTestEnabled  bool
	depthWriteEnabled bool
	lineAntialiasing  bool
	topology          wgpu.PrimitiveTopology
	// blendState is nil when blending is off
	blendState *wgpu.BlendState
}

// Pipeline describes a GPU pipeline state object: its shaders, its host kernel and the fixed
// function state used when it is created on a backend.
type Pipeline interface {
	// Type returns the type of the pipeline
	//
	// Returns:
	//   - PipelineType: the type of the pipeline (compute, render or mesh)
	Type() PipelineType

	// PipelineKey returns the unique key associated with this pipeline, used for caching and lookups.
	//
	// Returns:
	//   - string: the unique key for this pipeline
	PipelineKey() string

	// Shader retrieves the shader associated with the specified type if it exists, nil otherwise.
	// The compute shader of a mesh pipeline is its task stage.
	//
	// Parameters:
	//   - shaderType: the type of shader to retrieve (vertex, fragment, or compute)
	//
	// Returns:
	//   - shader.Shader: the shader associated with the specified type, or nil if not set
	Shader(shaderType shader.ShaderType) shader.Shader

	// Kernel returns the host implementation of the pipeline, or nil.
	Kernel() Kernel

	// Pipeline returns the underlying pipeline object, *wgpu.RenderPipeline for render and mesh
	// pipelines and *wgpu.ComputePipeline for compute pipelines.
	// Note: The caller is responsible for type asserting the returned value.
	//
	// Returns:
	//   - any: the underlying pipeline object.
	Pipeline() any

	// TaskPipeline returns the compute pipeline of the task stage of a mesh pipeline, nil otherwise.
	TaskPipeline() *wgpu.ComputePipeline

	// DepthTestEnabled returns whether depth testing is enabled for this pipeline.
	DepthTestEnabled() bool

	// DepthWriteEnabled returns whether depth writing is enabled for this pipeline.
	DepthWriteEnabled() bool

	// BlendEnabled returns whether blending is enabled for this pipeline.
	//
	// Returns:
	//   - bool: true if blending is enabled, false otherwise
	BlendEnabled() bool

	// LineAntialiasing reports whether line primitives should be drawn antialiased.
	LineAntialiasing() bool

	// Topology returns the primitive topology configured for this pipeline.
	//
	// Returns:
	//   - wgpu.PrimitiveTopology: the primitive topology for this pipeline (e.g., wgpu.PrimitiveTopologyTriangleList)
	Topology() wgpu.PrimitiveTopology

	// BlendState returns the blend state configured for this pipeline.
	//
	// Returns:
	//   - *wgpu.BlendState: the blend state for this pipeline, or nil if blending is not enabled
	BlendState() *wgpu.BlendState

	// Validate checks that the shaders present match the pipeline type and fit the root layout.
	//
	// Parameters:
	//   - requireShaders: whether every stage of the pipeline type must have a shader
	//
	// Returns:
	//   - error: a descriptive error for the first problem found
	Validate(requireShaders bool) error

	// SetRenderPipeline sets the render pipeline
	//
	// Parameters:
	//   - p: the WebGPU render pipeline to set
	SetRenderPipeline(p *wgpu.RenderPipeline)

	// SetComputePipeline sets the compute pipeline, the task stage for mesh pipelines
	//
	// Parameters:
	//   - p: the WebGPU compute pipeline to set
	SetComputePipeline(p *wgpu.ComputePipeline)
}

var _ Pipeline = &pipeline{}

// NewPipeline is the entry point to create a new Pipeline interface. A PipelineType must be specified and provided upon creation.
//
// Parameters:
//   - pipelineKey: the unique key for this pipeline
//   - pipelineType: the type of pipeline to create (compute, render or mesh)
//   - opts: a variadic list of PipelineBuilderOption functions to configure the pipeline
//
// Returns:
//   - Pipeline: a new Pipeline instance with the specified type and configuration
func NewPipeline(pipelineKey string, pipelineType PipelineType, opts ...PipelineBuilderOption) Pipeline {
	p := &pipeline{
		pipelineKey:       pipelineKey,
		pipelineType:      pipelineType,
		depthTestEnabled:  true,
		depthWriteEnabled: true,
		topology:          wgpu.PrimitiveTopologyTriangleList,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *pipeline) Type() PipelineType {
	return p.pipelineType
}

func (p *pipeline) PipelineKey() string {
	return p.pipelineKey
}

func (p *pipeline) Kernel() Kernel {
	return p.kernel
}

func (p *pipeline) Pipeline() any {
	switch p.pipelineType {
	case PipelineTypeRender, PipelineTypeMesh:
		return p.renderPipeline
	case PipelineTypeCompute:
		return p.computePipeline
	default:
		return nil
	}
}

func (p *pipeline) TaskPipeline() *wgpu.ComputePipeline {
	if p.pipelineType != PipelineTypeMesh {
		return nil
	}
	return p.computePipeline
}

func (p *pipeline) DepthTestEnabled() bool {
	return p.depthTestEnabled
}

func (p *pipeline) DepthWriteEnabled() bool {
	return p.depthWriteEnabled
}

func (p *pipeline) BlendEnabled() bool {
	return p.blendState != nil
}

func (p *pipeline) LineAntialiasing() bool {
	return p.lineAntialiasing
}

func (p *pipeline) Topology() wgpu.PrimitiveTopology {
	return p.topology
}

func (p *pipeline) BlendState() *wgpu.BlendState {
	return p.blendState
}

func (p *pipeline) Shader(shaderType shader.ShaderType) shader.Shader {
	switch shaderType {
	case shader.ShaderTypeVertex:
		return p.vertexShader
	case shader.ShaderTypeFragment:
		return p.fragmentShader
	case shader.ShaderTypeCompute:
		return p.computeShader
	default:
		return nil
	}
}

func (p *pipeline) Validate(requireShaders bool) error {
	var stages []shader.ShaderType
	switch p.pipelineType {
	case PipelineTypeCompute:
		stages = []shader.ShaderType{shader.ShaderTypeCompute}
	case PipelineTypeRender:
		stages = []shader.ShaderType{shader.ShaderTypeVertex, shader.ShaderTypeFragment}
	case PipelineTypeMesh:
		stages = []shader.ShaderType{shader.ShaderTypeCompute, shader.ShaderTypeVertex, shader.ShaderTypeFragment}
	default:
		return fmt.Errorf("pipeline %s: unknown type %s", p.pipelineKey, p.pipelineType)
	}

	for _, stage := range stages {
		s := p.Shader(stage)
		if s == nil {
			if requireShaders {
				return fmt.Errorf("pipeline %s: missing %s shader", p.pipelineKey, stage)
			}
			continue
		}
		if s.ShaderType() != stage {
			return fmt.Errorf("pipeline %s: shader %s is a %s shader, expected %s", p.pipelineKey, s.Key(), s.ShaderType(), stage)
		}
		if err := shader.ValidateRootLayout(s); err != nil {
			return fmt.Errorf("pipeline %s: %w", p.pipelineKey, err)
		}
	}
	return nil
}

func (p *pipeline) SetRenderPipeline(rp *wgpu.RenderPipeline) {
	p.renderPipeline = rp
}

func (p *pipeline) SetComputePipeline(cp *wgpu.ComputePipeline) {
	p.computePipeline = cp
}
