package shader

import (
	"io/fs"
	"testing"
	"testing/fstest"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// programs lists every embedded program with the stages it provides.
var programs = map[string][]ShaderType{
	"assets/filter.wgsl":            {ShaderTypeVertex, ShaderTypeFragment},
	"assets/histogram_compute.wgsl": {ShaderTypeCompute},
	"assets/histogram_draw.wgsl":    {ShaderTypeVertex, ShaderTypeFragment},
	"assets/cloud_compute.wgsl":     {ShaderTypeCompute},
	"assets/cloud_task.wgsl":        {ShaderTypeCompute},
	"assets/cloud_draw.wgsl":        {ShaderTypeVertex, ShaderTypeFragment},
	"assets/grid.wgsl":              {ShaderTypeVertex, ShaderTypeFragment},
}

func TestAssetsAreListed(t *testing.T) {
	paths, err := fs.Glob(Assets, "assets/*.wgsl")
	require.NoError(t, err)
	assert.Len(t, paths, len(programs))
	for _, p := range paths {
		assert.Contains(t, programs, p)
	}
}

func TestAssetsFitRootLayout(t *testing.T) {
	for path, stages := range programs {
		for _, stage := range stages {
			t.Run(path+"/"+stage.String(), func(t *testing.T) {
				s := NewShader(path, stage, Assets, path)
				assert.NotEmpty(t, s.EntryPoint())
				assert.NotContains(t, s.Source(), annotationPrefix+"include")
				require.NoError(t, ValidateRootLayout(s))
			})
		}
	}
}

func TestHistogramComputeReflection(t *testing.T) {
	s := NewShader("histogram", ShaderTypeCompute, Assets, "assets/histogram_compute.wgsl")

	assert.Equal(t, "cs_main", s.EntryPoint())
	assert.Equal(t, [3]uint32{8, 8, 1}, s.WorkgroupSize())

	layouts := s.BindGroupLayoutDescriptors()
	require.Contains(t, layouts, RootGroupConstants)
	constants := layouts[RootGroupConstants].Entries
	require.Len(t, constants, 1)
	assert.Equal(t, wgpu.BufferBindingTypeUniform, constants[0].Buffer.Type)
	assert.Equal(t, uint64(32), constants[0].Buffer.MinBindingSize)

	uav := layouts[RootGroupUAV].Entries
	require.Len(t, uav, 4)
	for i, e := range uav {
		assert.Equal(t, uint32(i), e.Binding)
		assert.Equal(t, wgpu.BufferBindingTypeStorage, e.Buffer.Type)
	}
	assert.Equal(t, "bins3", s.BindGroupVarName(RootGroupUAV, 3))

	screen := layouts[RootGroupScreen].Entries
	require.Len(t, screen, 1)
	assert.Equal(t, wgpu.TextureSampleTypeFloat, screen[0].Texture.SampleType)
}

func TestCloudTaskReflection(t *testing.T) {
	s := NewShader("cloud task", ShaderTypeCompute, Assets, "assets/cloud_task.wgsl")
	assert.Equal(t, [3]uint32{4, 4, 4}, s.WorkgroupSize())

	layouts := s.BindGroupLayoutDescriptors()
	assert.Equal(t, uint64(64), layouts[RootGroupConstants].Entries[0].Buffer.MinBindingSize)
	uav := layouts[RootGroupUAV].Entries
	require.Len(t, uav, 2)
	assert.Equal(t, uint64(32), uav[0].Buffer.MinBindingSize)
	assert.Equal(t, uint64(16), uav[1].Buffer.MinBindingSize)
}

func TestGridVertexLayout(t *testing.T) {
	s := NewShader("grid", ShaderTypeVertex, Assets, "assets/grid.wgsl")
	assert.Equal(t, "vs_main", s.EntryPoint())
	assert.Equal(t, [3]uint32{}, s.WorkgroupSize())

	layouts := s.VertexLayouts()
	require.Len(t, layouts, 1)
	layout := layouts[0][0]
	assert.Equal(t, uint64(24), layout.ArrayStride)
	require.Len(t, layout.Attributes, 2)
	assert.Equal(t, wgpu.VertexFormatFloat32x3, layout.Attributes[0].Format)
	assert.Equal(t, uint64(12), layout.Attributes[1].Offset)
	assert.Equal(t, uint32(1), layout.Attributes[1].ShaderLocation)
}

func TestFragmentEntryPoint(t *testing.T) {
	s := NewShader("filter", ShaderTypeFragment, Assets, "assets/filter.wgsl")
	assert.Equal(t, "fs_main", s.EntryPoint())
	assert.Empty(t, s.VertexLayouts())
	require.NotNil(t, s.Module())
	assert.Equal(t, s.Source(), s.Module().WGSLDescriptor.Code)
}

func TestNewShaderPanics(t *testing.T) {
	fsys := fstest.MapFS{
		"frag_only.wgsl": {Data: []byte("@fragment fn fs_main() -> @location(0) vec4<f32> { return vec4<f32>(1.0); }")},
		"bad.wgsl":       {Data: []byte("// @scope:include nowhere")},
	}
	assert.Panics(t, func() { NewShader("missing", ShaderTypeCompute, fsys, "missing.wgsl") })
	assert.Panics(t, func() { NewShader("no entry", ShaderTypeCompute, fsys, "frag_only.wgsl") })
	assert.Panics(t, func() { NewShader("bad", ShaderTypeFragment, fsys, "bad.wgsl") })
	assert.Panics(t, func() { NewShader("no path", ShaderTypeFragment, fsys, "") })
}

func TestValidateRootLayoutRejectsMisplacedBindings(t *testing.T) {
	fsys := fstest.MapFS{
		"wrong_table.wgsl": {Data: []byte(`
// @scope:provider 1 0 uav_table
@group(1) @binding(0) var<storage, read> data: array<u32>;
@compute @workgroup_size(1) fn cs_main() {}
`)},
		"writable_srv.wgsl": {Data: []byte(`
@group(1) @binding(0) var<storage, read_write> data: array<u32>;
@compute @workgroup_size(1) fn cs_main() {}
`)},
		"out_of_range.wgsl": {Data: []byte(`
@group(2) @binding(4) var<storage, read_write> data: array<u32>;
@compute @workgroup_size(1) fn cs_main() {}
`)},
		"extra_group.wgsl": {Data: []byte(`
@group(4) @binding(0) var<storage, read> data: array<u32>;
@compute @workgroup_size(1) fn cs_main() {}
`)},
	}
	for name := range fsys {
		t.Run(name, func(t *testing.T) {
			s := NewShader(name, ShaderTypeCompute, fsys, name)
			assert.Error(t, ValidateRootLayout(s))
		})
	}
}

func TestRootLayoutDescriptors(t *testing.T) {
	layouts := RootLayoutDescriptors()
	assert.True(t, layouts[RootGroupConstants].Entries[0].Buffer.HasDynamicOffset)
	assert.Len(t, layouts[RootGroupSRV].Entries, RootTableSize)
	for _, e := range layouts[RootGroupUAV].Entries {
		assert.Zero(t, e.Visibility&wgpu.ShaderStageVertex)
	}
	assert.Equal(t, RootGroupSRV, RootGroup(AnnotationArgSRVTable))
	assert.Equal(t, -1, RootGroup("nope"))
}

func TestResolveTypeLayout(t *testing.T) {
	known := map[string]wgslTypeLayout{"VoxelInstance": {32, 16}}
	cases := map[string]wgslTypeLayout{
		"u32":                  {4, 4},
		"vec3<f32>":            {12, 16},
		"array<vec4<f32>, 3>":  {48, 16},
		"array<u32>":           {4, 4},
		"array<VoxelInstance>": {32, 16},
	}
	for typeName, want := range cases {
		got, ok := resolveTypeLayout(typeName, known)
		require.True(t, ok, typeName)
		assert.Equal(t, want, got, typeName)
	}
	_, ok := resolveTypeLayout("Unknown", known)
	assert.False(t, ok)
}
