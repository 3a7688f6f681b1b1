// pre_processor.go expands @scope: annotations into WGSL. Includes pull registered sources from
// the params package, group annotations become @group/@binding declarations, and every group or
// provider annotation is recorded so bindings can be checked against the root layout.
package shader

import (
	"fmt"
	"strings"

	"github.com/Carmen-Shannon/chromascope/engine/visualize/params"
)

// registryEntry pairs a WGSL source with the type name it declares. Function-only sources have no type.
type registryEntry struct {
	Source string
	Type   string
}

type preProcessor struct {
	registry             map[AnnotationArg]registryEntry
	addressSpaceRegistry map[AnnotationArg]string
	declarations         []Annotation
}

// PreProcessor expands annotations in WGSL source and records the declarations it saw.
type PreProcessor interface {
	// Process expands every annotation of source. The declarations list is reset first.
	//
	// Parameters:
	//   - source: the annotated WGSL source
	//
	// Returns:
	//   - string: plain WGSL
	//   - error: an error for malformed annotations or duplicate includes
	Process(source string) (string, error)

	// Declarations returns the group and provider annotations of the last Process call in source order.
	Declarations() []Annotation
}

var _ PreProcessor = &preProcessor{}

// NewPreProcessor creates a pre-processor with every params source registered.
func NewPreProcessor() PreProcessor {
	return &preProcessor{
		registry: map[AnnotationArg]registryEntry{
			AnnotationArgFilterParams:        {Source: params.GPUFilterParamsSource, Type: "FilterParams"},
			AnnotationArgHistogramParams:     {Source: params.GPUHistogramParamsSource, Type: "HistogramParams"},
			AnnotationArgHistogramDrawParams: {Source: params.GPUHistogramDrawParamsSource, Type: "HistogramDrawParams"},
			AnnotationArgCloudParams:         {Source: params.GPUCloudParamsSource, Type: "CloudParams"},
			AnnotationArgCloudDrawParams:     {Source: params.GPUCloudDrawParamsSource, Type: "CloudDrawParams"},
			AnnotationArgGridParams:          {Source: params.GPUGridParamsSource, Type: "GridParams"},
			AnnotationArgGridVertex:          {Source: params.GPUGridVertexSource, Type: "GridVertex"},
			AnnotationArgVoxelInstance:       {Source: params.GPUVoxelInstanceSource, Type: "VoxelInstance"},
			AnnotationArgDrawArgs:            {Source: params.GPUDrawArgsSource, Type: "DrawArgs"},
			AnnotationArgColor:               {Source: params.ColorFunctionsSource},
		},
		addressSpaceRegistry: map[AnnotationArg]string{
			annotationArgStorageTypeUniform:   "var<uniform>",
			annotationArgStorageTypeRead:      "var<storage, read>",
			annotationArgStorageTypeReadWrite: "var<storage, read_write>",
		},
	}
}

func (p *preProcessor) Process(source string) (string, error) {
	p.declarations = p.declarations[:0]
	included := make(map[AnnotationArg]bool)

	lines := strings.Split(source, "\n")
	out := make([]string, 0, len(lines))
	for i, line := range lines {
		a, err := parseAnnotation(line, i+1)
		if err != nil {
			return "", err
		}
		if a == nil {
			out = append(out, line)
			continue
		}

		switch a.Type {
		case annotationTypeInclude:
			if included[a.Args[0]] {
				return "", fmt.Errorf("line %d: %q included twice", i+1, a.Args[0])
			}
			included[a.Args[0]] = true
			out = append(out, p.registry[a.Args[0]].Source)
		case AnnotationTypeBindingGroup:
			wgslType := p.typeName(a.Args[2])
			out = append(out, fmt.Sprintf("@group(%d) @binding(%d) %s %s: %s;", *a.Group, *a.Binding, p.addressSpaceRegistry[a.Args[0]], a.Args[1], wgslType))
			p.declarations = append(p.declarations, *a)
		case AnnotationTypeProvider:
			p.declarations = append(p.declarations, *a)
		}
	}
	return strings.Join(out, "\n"), nil
}

func (p *preProcessor) typeName(arg AnnotationArg) string {
	if inner, ok := strings.CutPrefix(string(arg), "array<"); ok {
		inner = strings.TrimSuffix(inner, ">")
		return fmt.Sprintf("array<%s>", p.registry[AnnotationArg(inner)].Type)
	}
	return p.registry[arg].Type
}

func (p *preProcessor) Declarations() []Annotation {
	return p.declarations
}
