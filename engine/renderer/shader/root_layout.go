package shader

import (
	"errors"
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
)

// Root layout groups. Every pipeline shares this layout so descriptor tables can be bound
// independently of the pipeline that consumes them.
const (
	// RootGroupConstants holds the per-draw constants, a uniform bound with a dynamic offset.
	RootGroupConstants = 0
	// RootGroupSRV holds the read-only storage table.
	RootGroupSRV = 1
	// RootGroupUAV holds the read-write storage table.
	RootGroupUAV = 2
	// RootGroupScreen holds the shared captured frame.
	RootGroupScreen = 3

	// RootGroupCount is the number of groups of the root layout.
	RootGroupCount = 4
	// RootTableSize is the number of bindings of the SRV and UAV tables.
	RootTableSize = 4
	// RootConstantsSize is the size reserved per constants slot, the minimum uniform offset alignment.
	RootConstantsSize = 256
)

// RootGroup returns the group a provider table is bound to.
//
// Parameters:
//   - table: a provider table argument
//
// Returns:
//   - int: the group index, -1 for unknown tables
func RootGroup(table AnnotationArg) int {
	switch table {
	case AnnotationArgConstants:
		return RootGroupConstants
	case AnnotationArgSRVTable:
		return RootGroupSRV
	case AnnotationArgUAVTable:
		return RootGroupUAV
	case AnnotationArgScreen:
		return RootGroupScreen
	}
	return -1
}

// RootLayoutDescriptors returns the bind group layout descriptors of the root layout.
// Read-write storage is not visible to the vertex stage, which WebGPU forbids.
//
// Returns:
//   - [RootGroupCount]wgpu.BindGroupLayoutDescriptor: descriptors indexed by group
func RootLayoutDescriptors() [RootGroupCount]wgpu.BindGroupLayoutDescriptor {
	all := wgpu.ShaderStageVertex | wgpu.ShaderStageFragment | wgpu.ShaderStageCompute
	noVertex := wgpu.ShaderStageFragment | wgpu.ShaderStageCompute

	var out [RootGroupCount]wgpu.BindGroupLayoutDescriptor
	out[RootGroupConstants] = wgpu.BindGroupLayoutDescriptor{
		Label: "root constants",
		Entries: []wgpu.BindGroupLayoutEntry{{
			Binding:    0,
			Visibility: all,
			Buffer: wgpu.BufferBindingLayout{
				Type:             wgpu.BufferBindingTypeUniform,
				HasDynamicOffset: true,
				MinBindingSize:   RootConstantsSize,
			},
		}},
	}
	srv := make([]wgpu.BindGroupLayoutEntry, RootTableSize)
	uav := make([]wgpu.BindGroupLayoutEntry, RootTableSize)
	for i := range RootTableSize {
		srv[i] = wgpu.BindGroupLayoutEntry{
			Binding:    uint32(i),
			Visibility: all,
			Buffer:     wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeReadOnlyStorage},
		}
		uav[i] = wgpu.BindGroupLayoutEntry{
			Binding:    uint32(i),
			Visibility: noVertex,
			Buffer:     wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeStorage},
		}
	}
	out[RootGroupSRV] = wgpu.BindGroupLayoutDescriptor{Label: "root srv table", Entries: srv}
	out[RootGroupUAV] = wgpu.BindGroupLayoutDescriptor{Label: "root uav table", Entries: uav}
	out[RootGroupScreen] = wgpu.BindGroupLayoutDescriptor{
		Label: "root screen",
		Entries: []wgpu.BindGroupLayoutEntry{{
			Binding:    0,
			Visibility: noVertex,
			Texture: wgpu.TextureBindingLayout{
				SampleType:    wgpu.TextureSampleTypeFloat,
				ViewDimension: wgpu.TextureViewDimension2D,
			},
		}},
	}
	return out
}

// ValidateRootLayout checks that every binding of s fits the root layout: the group exists, the
// binding index is inside the group, the resource kind matches the group and every provider
// annotation names the table of its group.
//
// Parameters:
//   - s: the shader to validate
//
// Returns:
//   - error: a descriptive error for the first mismatch
func ValidateRootLayout(s Shader) error {
	for group, desc := range s.BindGroupLayoutDescriptors() {
		if group < 0 || group >= RootGroupCount {
			return fmt.Errorf("shader %s: group %d outside the root layout", s.Key(), group)
		}
		for _, e := range desc.Entries {
			if err := validateEntry(group, e); err != nil {
				return fmt.Errorf("shader %s: %s (group %d binding %d): %w", s.Key(), s.BindGroupVarName(group, int(e.Binding)), group, e.Binding, err)
			}
		}
	}
	for _, a := range s.Declarations() {
		if a.Type != AnnotationTypeProvider {
			continue
		}
		if want := RootGroup(a.Args[0]); want != *a.Group {
			return fmt.Errorf("shader %s: line %d: table %s belongs to group %d, not %d", s.Key(), a.Line, a.Args[0], want, *a.Group)
		}
	}
	return nil
}

func validateEntry(group int, e wgpu.BindGroupLayoutEntry) error {
	limit := uint32(1)
	var want wgpu.BufferBindingType
	switch group {
	case RootGroupConstants:
		want = wgpu.BufferBindingTypeUniform
	case RootGroupSRV:
		want, limit = wgpu.BufferBindingTypeReadOnlyStorage, RootTableSize
	case RootGroupUAV:
		want, limit = wgpu.BufferBindingTypeStorage, RootTableSize
	case RootGroupScreen:
		if e.Texture.SampleType != wgpu.TextureSampleTypeFloat {
			return errors.New("expected a texture_2d<f32>")
		}
	}
	if e.Binding >= limit {
		return fmt.Errorf("binding out of range, group holds %d", limit)
	}
	if group != RootGroupScreen && e.Buffer.Type != want {
		return errors.New("resource kind does not match the group")
	}
	if group == RootGroupConstants && e.Buffer.MinBindingSize > RootConstantsSize {
		return fmt.Errorf("constants of %d bytes exceed the %d byte slot", e.Buffer.MinBindingSize, RootConstantsSize)
	}
	return nil
}
