// Package params holds the GPU-aligned parameter and vertex types shared by the visualization
// shaders and their host kernels. Every type mirrors the WGSL struct embedded next to it.
package params

import (
	_ "embed"
	"encoding/binary"
	"math"
	"unsafe"
)

// GPUFilterParamsSource is the WGSL definition of FilterParams (32 bytes).
//
//go:embed assets/filter_params.wgsl
var GPUFilterParamsSource string

// GPUHistogramParamsSource is the WGSL definition of HistogramParams (32 bytes).
//
//go:embed assets/histogram_params.wgsl
var GPUHistogramParamsSource string

// GPUHistogramDrawParamsSource is the WGSL definition of HistogramDrawParams (80 bytes).
//
//go:embed assets/histogram_draw_params.wgsl
var GPUHistogramDrawParamsSource string

// GPUCloudParamsSource is the WGSL definition of CloudParams (16 bytes).
//
//go:embed assets/cloud_params.wgsl
var GPUCloudParamsSource string

// GPUCloudDrawParamsSource is the WGSL definition of CloudDrawParams (64 bytes).
//
//go:embed assets/cloud_draw_params.wgsl
var GPUCloudDrawParamsSource string

// GPUGridParamsSource is the WGSL definition of GridParams (48 bytes).
//
//go:embed assets/grid_params.wgsl
var GPUGridParamsSource string

// GPUGridVertexSource is the WGSL vertex input struct of the grid (24 bytes per vertex).
//
//go:embed assets/grid_vertex.wgsl
var GPUGridVertexSource string

// GPUVoxelInstanceSource is the WGSL definition of VoxelInstance (32 bytes).
//
//go:embed assets/voxel_instance.wgsl
var GPUVoxelInstanceSource string

// GPUDrawArgsSource is the WGSL definition of DrawArgs, the layout of a non-indexed indirect draw.
//
//go:embed assets/draw_args.wgsl
var GPUDrawArgsSource string

// ColorFunctionsSource holds the WGSL color helpers (sRGB transfer, HSL, binning).
//
//go:embed assets/color.wgsl
var ColorFunctionsSource string

// Kernel group sizes. Compute dispatches are sized from these.
const (
	// HistogramGroupSize is the pixel tile covered by one histogram workgroup (8x8 threads, 2x2 pixels each).
	HistogramGroupSize = 16
	// CloudGroupSize is the pixel tile covered by one color cloud workgroup.
	CloudGroupSize = 8
	// CloudGrid is the voxel block edge handled by one mesh task group.
	CloudGrid = 8
	// CloudResolution is the number of cells per color axis.
	CloudResolution = 256
	// HistogramBins is the number of bins per histogram channel.
	HistogramBins = 256
	// VoxelVertexCount is the number of vertices drawn per voxel (a cube as 12 triangles).
	VoxelVertexCount = 36
	// MaxVoxelInstances bounds the number of voxels a single frame can draw.
	MaxVoxelInstances = 1 << 20
)

func putI32(buf []byte, off int, v int32) {
	binary.LittleEndian.PutUint32(buf[off:], uint32(v))
}

func putU32(buf []byte, off int, v uint32) {
	binary.LittleEndian.PutUint32(buf[off:], v)
}

func putF32(buf []byte, off int, v float32) {
	binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(v))
}

func getI32(buf []byte, off int) int32 {
	return int32(binary.LittleEndian.Uint32(buf[off:]))
}

func getU32(buf []byte, off int) uint32 {
	return binary.LittleEndian.Uint32(buf[off:])
}

func getF32(buf []byte, off int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(buf[off:]))
}

func putRect(buf []byte, rect [4]int32) {
	for i := range 4 {
		putI32(buf, i*4, rect[i])
	}
}

func getRect(buf []byte) [4]int32 {
	var r [4]int32
	for i := range 4 {
		r[i] = getI32(buf, i*4)
	}
	return r
}

// GPUFilterParams are the constants of the filter draw.
type GPUFilterParams struct {
	Rect [4]int32   // offset  0: window rect {left, top, right, bottom}
	Mode uint32     // offset 16: filter mode
	Mask [3]float32 // offset 20: channel mask
}

// Size returns the size of the struct in bytes (32).
func (g *GPUFilterParams) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the params for upload.
func (g *GPUFilterParams) Marshal() []byte {
	buf := make([]byte, g.Size())
	putRect(buf, g.Rect)
	putU32(buf, 16, g.Mode)
	for i := range 3 {
		putF32(buf, 20+i*4, g.Mask[i])
	}
	return buf
}

// Unmarshal decodes params previously produced by Marshal.
func (g *GPUFilterParams) Unmarshal(buf []byte) {
	g.Rect = getRect(buf)
	g.Mode = getU32(buf, 16)
	for i := range 3 {
		g.Mask[i] = getF32(buf, 20+i*4)
	}
}

// GPUHistogramParams are the constants of the histogram compute pass.
type GPUHistogramParams struct {
	Rect     [4]int32 // offset  0
	Mode     uint32   // offset 16
	Channels uint32   // offset 20
	_pad     [2]uint32
}

// Size returns the size of the struct in bytes (32).
func (g *GPUHistogramParams) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the params for upload.
func (g *GPUHistogramParams) Marshal() []byte {
	buf := make([]byte, g.Size())
	putRect(buf, g.Rect)
	putU32(buf, 16, g.Mode)
	putU32(buf, 20, g.Channels)
	return buf
}

// Unmarshal decodes params previously produced by Marshal.
func (g *GPUHistogramParams) Unmarshal(buf []byte) {
	g.Rect = getRect(buf)
	g.Mode = getU32(buf, 16)
	g.Channels = getU32(buf, 20)
}

// GPUHistogramDrawParams are the constants of the histogram draw.
type GPUHistogramDrawParams struct {
	Colors [4][4]float32 // offset  0: color per buffer
	Mode   uint32        // offset 64
	Scale  float32       // offset 68: bar height per count
	_pad   [2]uint32
}

// Size returns the size of the struct in bytes (80).
func (g *GPUHistogramDrawParams) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the params for upload.
func (g *GPUHistogramDrawParams) Marshal() []byte {
	buf := make([]byte, g.Size())
	for i := range 4 {
		for j := range 4 {
			putF32(buf, (i*4+j)*4, g.Colors[i][j])
		}
	}
	putU32(buf, 64, g.Mode)
	putF32(buf, 68, g.Scale)
	return buf
}

// Unmarshal decodes params previously produced by Marshal.
func (g *GPUHistogramDrawParams) Unmarshal(buf []byte) {
	for i := range 4 {
		for j := range 4 {
			g.Colors[i][j] = getF32(buf, (i*4+j)*4)
		}
	}
	g.Mode = getU32(buf, 64)
	g.Scale = getF32(buf, 68)
}

// GPUCloudParams are the constants of the color cloud compute pass.
type GPUCloudParams struct {
	Rect [4]int32
}

// Size returns the size of the struct in bytes (16).
func (g *GPUCloudParams) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the params for upload.
func (g *GPUCloudParams) Marshal() []byte {
	buf := make([]byte, g.Size())
	putRect(buf, g.Rect)
	return buf
}

// Unmarshal decodes params previously produced by Marshal.
func (g *GPUCloudParams) Unmarshal(buf []byte) {
	g.Rect = getRect(buf)
}

// GPUCloudDrawParams are the constants of the color cloud mesh draw.
type GPUCloudDrawParams struct {
	Projection  [12]float32 // offset  0: affine projection, three columns
	MinCount    uint32      // offset 48: cells with a count at or below are skipped
	InvMaxCount float32     // offset 52
	ColorSpace  uint32      // offset 56
	_pad        uint32
}

// Size returns the size of the struct in bytes (64).
func (g *GPUCloudDrawParams) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the params for upload.
func (g *GPUCloudDrawParams) Marshal() []byte {
	buf := make([]byte, g.Size())
	for i := range 12 {
		putF32(buf, i*4, g.Projection[i])
	}
	putU32(buf, 48, g.MinCount)
	putF32(buf, 52, g.InvMaxCount)
	putU32(buf, 56, g.ColorSpace)
	return buf
}

// Unmarshal decodes params previously produced by Marshal.
func (g *GPUCloudDrawParams) Unmarshal(buf []byte) {
	for i := range 12 {
		g.Projection[i] = getF32(buf, i*4)
	}
	g.MinCount = getU32(buf, 48)
	g.InvMaxCount = getF32(buf, 52)
	g.ColorSpace = getU32(buf, 56)
}

// GPUGridParams are the constants of the grid draw.
type GPUGridParams struct {
	Projection [12]float32
}

// Size returns the size of the struct in bytes (48).
func (g *GPUGridParams) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the params for upload.
func (g *GPUGridParams) Marshal() []byte {
	buf := make([]byte, g.Size())
	for i := range 12 {
		putF32(buf, i*4, g.Projection[i])
	}
	return buf
}

// Unmarshal decodes params previously produced by Marshal.
func (g *GPUGridParams) Unmarshal(buf []byte) {
	for i := range 12 {
		g.Projection[i] = getF32(buf, i*4)
	}
}

// GPUGridVertex is one vertex of a grid line list.
type GPUGridVertex struct {
	Position [3]float32
	Color    [3]float32
}

// GridVertexStride is the size of one GPUGridVertex in bytes.
const GridVertexStride = 24

// MarshalGridVertices packs vertices for upload.
func MarshalGridVertices(vertices []GPUGridVertex) []byte {
	buf := make([]byte, len(vertices)*GridVertexStride)
	for i, v := range vertices {
		off := i * GridVertexStride
		for j := range 3 {
			putF32(buf, off+j*4, v.Position[j])
			putF32(buf, off+12+j*4, v.Color[j])
		}
	}
	return buf
}

// UnmarshalGridVertex decodes vertex i of a packed vertex buffer.
func UnmarshalGridVertex(buf []byte, i int) GPUGridVertex {
	var v GPUGridVertex
	off := i * GridVertexStride
	for j := range 3 {
		v.Position[j] = getF32(buf, off+j*4)
		v.Color[j] = getF32(buf, off+12+j*4)
	}
	return v
}

// VoxelInstanceStride is the size of one VoxelInstance in bytes.
const VoxelInstanceStride = 32

// DrawArgsSize is the size of DrawArgs in bytes.
const DrawArgsSize = 16
