package shader

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAnnotationIgnoresPlainLines(t *testing.T) {
	a, err := parseAnnotation("    let x = 1.0; // a comment", 3)
	require.NoError(t, err)
	assert.Nil(t, a)
}

func TestParseAnnotationInclude(t *testing.T) {
	a, err := parseAnnotation("// @scope:include color", 1)
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Equal(t, annotationTypeInclude, a.Type)
	assert.Equal(t, []AnnotationArg{AnnotationArgColor}, a.Args)
}

func TestParseAnnotationGroup(t *testing.T) {
	a, err := parseAnnotation("// @scope:group 0 0 storage_uniform params cloud_draw_params", 7)
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Equal(t, AnnotationTypeBindingGroup, a.Type)
	assert.Equal(t, 0, *a.Group)
	assert.Equal(t, 0, *a.Binding)
	assert.Equal(t, AnnotationArg("params"), a.Args[1])
	assert.Equal(t, 7, a.Line)
}

func TestParseAnnotationProvider(t *testing.T) {
	a, err := parseAnnotation("// @scope:provider 2 1 uav_table", 1)
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Equal(t, AnnotationTypeProvider, a.Type)
	assert.Equal(t, 2, *a.Group)
	assert.Equal(t, 1, *a.Binding)
	assert.Equal(t, AnnotationArgUAVTable, a.Args[0])
}

func TestParseAnnotationErrors(t *testing.T) {
	cases := map[string]string{
		"empty":            "// @scope:",
		"unknown type":     "// @scope:define x",
		"unknown include":  "// @scope:include nope",
		"include arity":    "// @scope:include color grid_params",
		"group arity":      "// @scope:group 0 0 storage_uniform params",
		"bad group":        "// @scope:group a 0 storage_uniform params grid_params",
		"bad space":        "// @scope:group 0 0 private params grid_params",
		"function source":  "// @scope:group 0 0 storage_uniform params color",
		"unknown table":    "// @scope:provider 1 0 samplers",
		"provider binding": "// @scope:provider 1 x srv_table",
	}
	for name, line := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := parseAnnotation(line, 5)
			require.Error(t, err)
			assert.True(t, strings.HasPrefix(err.Error(), "line 5:"), err.Error())
		})
	}
}

func TestPreProcessorExpandsIncludesAndGroups(t *testing.T) {
	pp := NewPreProcessor()
	out, err := pp.Process(strings.Join([]string{
		"// @scope:include voxel_instance",
		"// @scope:group 1 1 storage_read instances array<voxel_instance>",
		"// @scope:provider 3 0 screen",
		"@group(3) @binding(0) var screen: texture_2d<f32>;",
	}, "\n"))
	require.NoError(t, err)

	assert.Contains(t, out, "struct VoxelInstance")
	assert.Contains(t, out, "@group(1) @binding(1) var<storage, read> instances: array<VoxelInstance>;")
	assert.Contains(t, out, "var screen: texture_2d<f32>;")

	decls := pp.Declarations()
	require.Len(t, decls, 2)
	assert.Equal(t, AnnotationTypeBindingGroup, decls[0].Type)
	assert.Equal(t, AnnotationTypeProvider, decls[1].Type)
}

func TestPreProcessorRejectsDuplicateInclude(t *testing.T) {
	_, err := NewPreProcessor().Process("// @scope:include color\n// @scope:include color")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestPreProcessorResetsDeclarations(t *testing.T) {
	pp := NewPreProcessor()
	_, err := pp.Process("// @scope:provider 1 0 srv_table")
	require.NoError(t, err)
	_, err = pp.Process("fn f() {}")
	require.NoError(t, err)
	assert.Empty(t, pp.Declarations())
}
