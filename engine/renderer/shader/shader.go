package shader

import (
	"fmt"
	"io/fs"

	"github.com/cogentcore/webgpu/wgpu"
)

// ShaderType identifies the stage a shader source is compiled for.
type ShaderType int

const (
	// ShaderTypeCompute is a shader with a @compute entry point. Mesh task stages are compute shaders too.
	ShaderTypeCompute ShaderType = iota

	// ShaderTypeVertex is a shader with a @vertex entry point.
	ShaderTypeVertex

	// ShaderTypeFragment is a shader with a @fragment entry point.
	ShaderTypeFragment
)

func (t ShaderType) String() string {
	switch t {
	case ShaderTypeCompute:
		return "compute"
	case ShaderTypeVertex:
		return "vertex"
	case ShaderTypeFragment:
		return "fragment"
	}
	return fmt.Sprintf("ShaderType(%d)", int(t))
}

// shader is the implementation of the Shader interface.
type shader struct {
	key                        string
	source                     string
	shaderType                 ShaderType
	bindGroupLayoutDescriptors map[int]wgpu.BindGroupLayoutDescriptor
	bindingVarNames            map[int]map[int]string
	vertexLayouts              map[int][]wgpu.VertexBufferLayout
	workGroupSize              [3]uint32
	entryPoint                 string
	module                     *wgpu.ShaderModuleDescriptor

	pp PreProcessor
}

// Shader is a pre-processed and reflected WGSL shader.
type Shader interface {
	// Key returns the unique identifier of the shader.
	Key() string

	// Source returns the pre-processed WGSL source.
	Source() string

	// BindGroupLayoutDescriptors returns the reflected bind group layouts keyed by group.
	//
	// Returns:
	//   - map[int]wgpu.BindGroupLayoutDescriptor: descriptors keyed by group index
	BindGroupLayoutDescriptors() map[int]wgpu.BindGroupLayoutDescriptor

	// BindGroupVarName returns the variable bound at group and binding, or "".
	//
	// Parameters:
	//   - group: the bind group index
	//   - binding: the binding index within the group
	//
	// Returns:
	//   - string: the variable name
	BindGroupVarName(group, binding int) string

	// VertexLayouts returns the reflected vertex buffer layouts keyed by buffer slot.
	VertexLayouts() map[int][]wgpu.VertexBufferLayout

	// EntryPoint returns the entry point name.
	EntryPoint() string

	// WorkgroupSize returns the workgroup size of compute shaders, [0, 0, 0] for other stages.
	WorkgroupSize() [3]uint32

	// Module returns the shader module descriptor built from the source.
	Module() *wgpu.ShaderModuleDescriptor

	// ShaderType returns the stage of the shader.
	ShaderType() ShaderType

	// Declarations returns the group and provider annotations found in the source.
	Declarations() []Annotation
}

var _ Shader = &shader{}

// NewShader reads, pre-processes and reflects a WGSL source of fsys.
// A missing or malformed source is a programming error and panics.
//
// Parameters:
//   - key: a unique identifier for the shader
//   - shaderType: the stage the source is compiled for
//   - fsys: the file system holding the source, usually Assets
//   - path: the path of the source inside fsys
//
// Returns:
//   - Shader: the parsed shader
func NewShader(key string, shaderType ShaderType, fsys fs.FS, path string) Shader {
	if path == "" {
		panic(fmt.Sprintf("shader: %s has no source path", key))
	}
	s := &shader{
		key:           key,
		shaderType:    shaderType,
		vertexLayouts: make(map[int][]wgpu.VertexBufferLayout),
		pp:            NewPreProcessor(),
	}
	data, err := fs.ReadFile(fsys, path)
	if err != nil {
		panic(fmt.Sprintf("shader: failed to read source %q: %v", path, err))
	}
	if err := s.parseSource(string(data)); err != nil {
		panic(fmt.Sprintf("shader: %q: %v", path, err))
	}
	return s
}

func (s *shader) Key() string {
	return s.key
}

func (s *shader) Source() string {
	return s.source
}

func (s *shader) VertexLayouts() map[int][]wgpu.VertexBufferLayout {
	return s.vertexLayouts
}

func (s *shader) EntryPoint() string {
	return s.entryPoint
}

func (s *shader) WorkgroupSize() [3]uint32 {
	return s.workGroupSize
}

func (s *shader) BindGroupLayoutDescriptors() map[int]wgpu.BindGroupLayoutDescriptor {
	return s.bindGroupLayoutDescriptors
}

func (s *shader) BindGroupVarName(group, binding int) string {
	return s.bindingVarNames[group][binding]
}

func (s *shader) Module() *wgpu.ShaderModuleDescriptor {
	return s.module
}

func (s *shader) ShaderType() ShaderType {
	return s.shaderType
}

func (s *shader) Declarations() []Annotation {
	return s.pp.Declarations()
}

// parseSource pre-processes raw, then reflects entry point, layouts and workgroup size for the stage.
func (s *shader) parseSource(raw string) error {
	var err error
	s.source, err = s.pp.Process(raw)
	if err != nil {
		return err
	}
	s.module = &wgpu.ShaderModuleDescriptor{
		Label:          s.key,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: s.source},
	}
	s.entryPoint = parseEntryPoint(s.source, s.shaderType)
	if s.entryPoint == "" {
		return fmt.Errorf("no %s entry point", s.shaderType)
	}

	var visibility wgpu.ShaderStage
	switch s.shaderType {
	case ShaderTypeVertex:
		visibility = wgpu.ShaderStageVertex
		s.vertexLayouts = parseVertexLayouts(s.source)
	case ShaderTypeFragment:
		visibility = wgpu.ShaderStageFragment
	case ShaderTypeCompute:
		visibility = wgpu.ShaderStageCompute
		s.workGroupSize = parseWorkgroupSize(s.source)
	}
	s.bindGroupLayoutDescriptors, s.bindingVarNames = parseBindGroupLayouts(s.source, visibility)
	return nil
}
