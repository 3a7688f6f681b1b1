// annotations.go defines the annotations understood by the WGSL pre-processor. An annotation is a
// line comment starting with @scope: that either injects a registered WGSL source, declares a
// bound struct, or names the root layout table a hand-written binding belongs to.
package shader

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// annotationPrefix marks an annotation inside a WGSL line comment.
const annotationPrefix = "@scope:"

// AnnotationType identifies the kind of a parsed annotation.
type AnnotationType string

const (
	// annotationTypeInclude injects a registered WGSL source at the annotation site.
	//
	// Syntax: // @scope:include <source>
	annotationTypeInclude AnnotationType = "include"

	// AnnotationTypeBindingGroup generates a @group/@binding declaration of a registered struct.
	//
	// Syntax: // @scope:group <group> <binding> <address_space> <var_name> <type>
	AnnotationTypeBindingGroup AnnotationType = "group"

	// AnnotationTypeProvider names the root layout table of the hand-written binding below it.
	//
	// Syntax: // @scope:provider <group> <binding> <table>
	AnnotationTypeProvider AnnotationType = "provider"
)

// Annotation is a single parsed annotation.
type Annotation struct {
	Type AnnotationType

	// Args holds the arguments:
	//   - include:  [0] = source key
	//   - group:    [0] = address space, [1] = var name, [2] = type key
	//   - provider: [0] = root table
	Args []AnnotationArg

	// Line is the 1-based source line, used in errors.
	Line int

	// Group and Binding are set for group and provider annotations.
	Group   *int
	Binding *int
}

// AnnotationArg is an annotation argument.
type AnnotationArg string

// Registered sources. Each maps to a WGSL asset of the params package.
const (
	AnnotationArgFilterParams        AnnotationArg = "filter_params"
	AnnotationArgHistogramParams     AnnotationArg = "histogram_params"
	AnnotationArgHistogramDrawParams AnnotationArg = "histogram_draw_params"
	AnnotationArgCloudParams         AnnotationArg = "cloud_params"
	AnnotationArgCloudDrawParams     AnnotationArg = "cloud_draw_params"
	AnnotationArgGridParams          AnnotationArg = "grid_params"
	AnnotationArgGridVertex          AnnotationArg = "grid_vertex"
	AnnotationArgVoxelInstance       AnnotationArg = "voxel_instance"
	AnnotationArgDrawArgs            AnnotationArg = "draw_args"
	// AnnotationArgColor holds helper functions rather than a struct and can only be included.
	AnnotationArgColor AnnotationArg = "color"
)

// Address spaces of group annotations.
const (
	annotationArgStorageTypeUniform   AnnotationArg = "storage_uniform"
	annotationArgStorageTypeRead      AnnotationArg = "storage_read"
	annotationArgStorageTypeReadWrite AnnotationArg = "storage_read_write"
)

// Root layout tables of provider annotations. Each is bound to a fixed group, see RootGroup.
const (
	AnnotationArgConstants AnnotationArg = "constants"
	AnnotationArgSRVTable  AnnotationArg = "srv_table"
	AnnotationArgUAVTable  AnnotationArg = "uav_table"
	AnnotationArgScreen    AnnotationArg = "screen"
)

var validSources = []AnnotationArg{
	AnnotationArgFilterParams,
	AnnotationArgHistogramParams,
	AnnotationArgHistogramDrawParams,
	AnnotationArgCloudParams,
	AnnotationArgCloudDrawParams,
	AnnotationArgGridParams,
	AnnotationArgGridVertex,
	AnnotationArgVoxelInstance,
	AnnotationArgDrawArgs,
	AnnotationArgColor,
}

var validAddressSpaces = []AnnotationArg{
	annotationArgStorageTypeUniform,
	annotationArgStorageTypeRead,
	annotationArgStorageTypeReadWrite,
}

var validTables = []AnnotationArg{
	AnnotationArgConstants,
	AnnotationArgSRVTable,
	AnnotationArgUAVTable,
	AnnotationArgScreen,
}

// parseAnnotation parses one source line. Lines without the prefix return nil and no error.
//
// Parameters:
//   - line: the raw WGSL source line
//   - lineNum: the 1-based line number for error reporting
//
// Returns:
//   - *Annotation: the parsed annotation, or nil if the line is not an annotation
//   - error: a descriptive error for malformed annotations
func parseAnnotation(line string, lineNum int) (*Annotation, error) {
	_, after, ok := strings.Cut(strings.TrimSpace(line), annotationPrefix)
	if !ok {
		return nil, nil
	}

	args := strings.Fields(after)
	if len(args) == 0 {
		return nil, fmt.Errorf("line %d: empty annotation", lineNum)
	}

	switch AnnotationType(args[0]) {
	case annotationTypeInclude:
		if len(args) != 2 {
			return nil, fmt.Errorf("line %d: include takes exactly one argument", lineNum)
		}
		if !slices.Contains(validSources, AnnotationArg(args[1])) {
			return nil, fmt.Errorf("line %d: unknown include %q", lineNum, args[1])
		}
		return &Annotation{Type: annotationTypeInclude, Args: []AnnotationArg{AnnotationArg(args[1])}, Line: lineNum}, nil

	case AnnotationTypeBindingGroup:
		if len(args) != 6 {
			return nil, fmt.Errorf("line %d: group takes five arguments (group, binding, address space, name, type)", lineNum)
		}
		group, binding, err := parseSlot(args[1], args[2], lineNum)
		if err != nil {
			return nil, err
		}
		if !slices.Contains(validAddressSpaces, AnnotationArg(args[3])) {
			return nil, fmt.Errorf("line %d: unknown address space %q", lineNum, args[3])
		}
		elem := args[5]
		if inner, ok := strings.CutPrefix(elem, "array<"); ok {
			elem = strings.TrimSuffix(inner, ">")
		}
		if elem == string(AnnotationArgColor) || !slices.Contains(validSources, AnnotationArg(elem)) {
			return nil, fmt.Errorf("line %d: unknown struct type %q", lineNum, elem)
		}
		return &Annotation{
			Type:    AnnotationTypeBindingGroup,
			Args:    []AnnotationArg{AnnotationArg(args[3]), AnnotationArg(args[4]), AnnotationArg(args[5])},
			Line:    lineNum,
			Group:   &group,
			Binding: &binding,
		}, nil

	case AnnotationTypeProvider:
		if len(args) != 4 {
			return nil, fmt.Errorf("line %d: provider takes three arguments (group, binding, table)", lineNum)
		}
		group, binding, err := parseSlot(args[1], args[2], lineNum)
		if err != nil {
			return nil, err
		}
		if !slices.Contains(validTables, AnnotationArg(args[3])) {
			return nil, fmt.Errorf("line %d: unknown table %q", lineNum, args[3])
		}
		return &Annotation{
			Type:    AnnotationTypeProvider,
			Args:    []AnnotationArg{AnnotationArg(args[3])},
			Line:    lineNum,
			Group:   &group,
			Binding: &binding,
		}, nil
	}
	return nil, fmt.Errorf("line %d: unknown annotation type %q", lineNum, args[0])
}

func parseSlot(groupArg, bindingArg string, lineNum int) (int, int, error) {
	group, err := strconv.Atoi(groupArg)
	if err != nil {
		return 0, 0, fmt.Errorf("line %d: invalid group %q: %w", lineNum, groupArg, err)
	}
	binding, err := strconv.Atoi(bindingArg)
	if err != nil {
		return 0, 0, fmt.Errorf("line %d: invalid binding %q: %w", lineNum, bindingArg, err)
	}
	return group, binding, nil
}
