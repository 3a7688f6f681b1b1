package visualize

import (
	"fmt"
	"sync/atomic"

	"github.com/Carmen-Shannon/chromascope/common"
	"github.com/Carmen-Shannon/chromascope/engine/config"
	"github.com/Carmen-Shannon/chromascope/engine/gpu"
	"github.com/Carmen-Shannon/chromascope/engine/renderer"
	"github.com/Carmen-Shannon/chromascope/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/chromascope/engine/renderer/shader"
	"github.com/Carmen-Shannon/chromascope/engine/visualize/params"
	"github.com/chewxy/math32"
)

// CloudCells is the number of cells of the color cloud counter, one per 8-bit RGB color.
const CloudCells = params.CloudResolution * params.CloudResolution * params.CloudResolution

// cubeCorners lists the corners of the 12 cube triangles, matching cloud_draw.wgsl.
var cubeCorners = [params.VoxelVertexCount]uint8{
	0, 2, 1, 1, 2, 3,
	4, 5, 6, 5, 7, 6,
	0, 1, 4, 1, 5, 4,
	2, 6, 3, 3, 6, 7,
	0, 4, 2, 2, 4, 6,
	1, 3, 5, 3, 7, 5,
}

// ColorCloud counts the window pixels per 8-bit color and draws every present color as a cube
// placed in RGB or HSL space.
type ColorCloud struct {
	compute pipeline.Pipeline
	draw    pipeline.Pipeline
	counter *gpu.RwBuffer
}

var _ Pass = &ColorCloud{}

// NewColorCloud creates the counter buffer, the counting pipeline and the voxel mesh pipeline.
//
// Parameters:
//   - init: the initializer of the rendering context
//
// Returns:
//   - *ColorCloud: the pass
//   - error: an error if the buffer or a pipeline could not be created
func NewColorCloud(init *renderer.Initializer) (*ColorCloud, error) {
	counter, err := init.CreateRwBuffer("color cloud counter", CloudCells)
	if err != nil {
		return nil, err
	}

	compute := pipeline.NewPipeline("color cloud compute", pipeline.PipelineTypeCompute,
		pipeline.WithComputeShader(shader.NewShader("cloud cs", shader.ShaderTypeCompute, shader.Assets, "assets/cloud_compute.wgsl")),
		pipeline.WithKernel(cloudComputeKernel),
	)
	draw := pipeline.NewPipeline("color cloud draw", pipeline.PipelineTypeMesh,
		pipeline.WithComputeShader(shader.NewShader("cloud task", shader.ShaderTypeCompute, shader.Assets, "assets/cloud_task.wgsl")),
		pipeline.WithVertexShader(shader.NewShader("cloud vs", shader.ShaderTypeVertex, shader.Assets, "assets/cloud_draw.wgsl")),
		pipeline.WithFragmentShader(shader.NewShader("cloud fs", shader.ShaderTypeFragment, shader.Assets, "assets/cloud_draw.wgsl")),
		pipeline.WithKernel(cloudMeshKernel),
	)
	if err := register(init, compute, draw); err != nil {
		return nil, err
	}
	return &ColorCloud{compute: compute, draw: draw, counter: counter}, nil
}

func (c *ColorCloud) Name() string {
	return "color cloud"
}

// Counter returns the per color counter.
func (c *ColorCloud) Counter() *gpu.RwBuffer {
	return c.counter
}

func (c *ColorCloud) Process(r *renderer.Renderer, cfg config.Config) error {
	if !cfg.EnableColorCloud {
		return nil
	}
	if !cfg.ColorCloudMode.Valid() {
		panic(fmt.Sprintf("color cloud: invalid mode %d", cfg.ColorCloudMode))
	}
	r.Timestamp(c.Name())

	if err := r.ResourceBarrier(gpu.Transition(c.counter.Buffer, gpu.StateShaderResource, gpu.StateUnorderedAccess)); err != nil {
		return err
	}
	r.ClearUAV(c.counter)

	w, h := windowSize(cfg)
	r.SetPipeline(c.compute)
	cp := params.GPUCloudParams{Rect: cfg.WindowRect.Edges()}
	r.SetComputeConstants(cp.Marshal())
	r.SetUAVs(c.counter.UAV)
	x, y := dispatchSize(w, h, params.CloudGroupSize)
	r.Dispatch(x, y, 1)

	r.SetPipeline(c.draw)
	r.SetViewport(renderer.ViewportAdjust)
	if err := r.ResourceBarrier(gpu.Transition(c.counter.Buffer, gpu.StateUnorderedAccess, gpu.StateShaderResource)); err != nil {
		return err
	}
	dp := CloudDrawParams(cfg)
	r.SetGraphicsConstants(dp.Marshal())
	r.SetGraphicsSRVs(c.counter.SRV)
	groups := uint32(params.CloudResolution / params.CloudGrid)
	r.DispatchMesh(groups, groups, groups)

	r.Timestamp(c.Name())
	return nil
}

// CloudDrawParams builds the constants of the voxel draw. A voxel reaches its full size at a
// count of one ninth of the window area.
//
// Parameters:
//   - cfg: the configuration snapshot
//
// Returns:
//   - params.GPUCloudDrawParams: the draw constants
func CloudDrawParams(cfg config.Config) params.GPUCloudDrawParams {
	w, h := windowSize(cfg)
	maxCount := max(w*h/9, 1)
	return params.GPUCloudDrawParams{
		Projection:  cfg.ProjectionMatrix().As4x3(),
		MinCount:    0,
		InvMaxCount: 1 / float32(maxCount),
		ColorSpace:  uint32(cfg.ColorCloudMode),
	}
}

// CellIndex returns the counter index of an 8-bit color.
func CellIndex(r, g, b uint32) uint32 {
	return r<<16 | g<<8 | b
}

// cloudComputeKernel counts one screen pixel per window pixel, 8x8 pixels per workgroup.
func cloudComputeKernel(inv *pipeline.Invocation) error {
	var p params.GPUCloudParams
	if err := readConstants(inv, &p); err != nil {
		return err
	}
	screen, err := inv.ScreenImage()
	if err != nil {
		return err
	}
	counter, err := inv.UAVWords(0)
	if err != nil {
		return err
	}
	if len(counter) < CloudCells {
		return fmt.Errorf("counter holds %d cells, need %d", len(counter), CloudCells)
	}

	width := min(int(p.Rect[2]-p.Rect[0]), int(inv.Groups[0])*params.CloudGroupSize)
	height := min(int(p.Rect[3]-p.Rect[1]), int(inv.Groups[1])*params.CloudGroupSize)
	if width <= 0 || height <= 0 {
		return nil
	}
	inv.ForEach(height, func(y int) {
		sy := int(p.Rect[1]) + y
		if sy < 0 || sy >= screen.Height {
			return
		}
		for x := range width {
			sx := int(p.Rect[0]) + x
			if sx < 0 || sx >= screen.Width {
				continue
			}
			c := srgbEncode(screen.At(sx, sy))
			atomic.AddUint32(&counter[CellIndex(toBin(c[0]), toBin(c[1]), toBin(c[2]))], 1)
		}
	})
	return nil
}

// Voxel is a cube of the color cloud.
type Voxel struct {
	Position [3]float32
	HalfSize float32
	Color    [4]float32
}

// VoxelFor places the cell of an 8-bit color in the cloud. The cube grows with the square root of
// its count, up to four times the cell size.
//
// Parameters:
//   - cell: the 8-bit color
//   - count: the number of pixels of that color
//   - p: the draw constants
//
// Returns:
//   - Voxel: the cube, colored with the linear color of the cell
func VoxelFor(cell [3]uint32, count uint32, p params.GPUCloudDrawParams) Voxel {
	const cellSize = 1.25 / params.CloudResolution
	var c [3]float32
	for i := range c {
		c[i] = (float32(cell[i]) + 0.5) / params.CloudResolution
	}
	position := common.RGBToPosition(c[0], c[1], c[2])
	if config.ColorCloudMode(p.ColorSpace) == config.ColorCloudModeHSL {
		h, s, l := common.HueChromaLightness(c[0], c[1], c[2])
		position = common.HSLToPosition(h, s, l)
	}
	t := common.Clamp01(float32(count) * p.InvMaxCount)
	lin := srgbDecode(c)
	return Voxel{
		Position: position,
		HalfSize: 0.5 * cellSize * (1 + 3*math32.Sqrt(t)),
		Color:    [4]float32{lin[0], lin[1], lin[2], 1},
	}
}

// cloudMeshKernel runs the task stage over every cell, then rasterizes one cube per emitted voxel
// with depth test and write.
func cloudMeshKernel(inv *pipeline.Invocation) error {
	var p params.GPUCloudDrawParams
	if err := readConstants(inv, &p); err != nil {
		return err
	}
	counter, err := inv.SRVWords(0)
	if err != nil {
		return err
	}
	if len(counter) < CloudCells {
		return fmt.Errorf("counter holds %d cells, need %d", len(counter), CloudCells)
	}
	target, err := inv.TargetImage()
	if err != nil {
		return err
	}

	// every task group covers CloudGrid cells per axis
	extent := [3]int{}
	for i := range extent {
		extent[i] = min(int(inv.Groups[i])*params.CloudGrid, params.CloudResolution)
	}
	slices := make([][]Voxel, extent[0])
	inv.ForEach(extent[0], func(r int) {
		for g := range extent[1] {
			for b := range extent[2] {
				count := counter[CellIndex(uint32(r), uint32(g), uint32(b))]
				if count <= p.MinCount {
					continue
				}
				slices[r] = append(slices[r], VoxelFor([3]uint32{uint32(r), uint32(g), uint32(b)}, count, p))
			}
		}
	})

	clip := viewportClip(inv.Viewport, target)
	depth := inv.DepthImage()
	ds := depthState{test: true, write: true}
	emitted := 0
	for _, slice := range slices {
		for _, v := range slice {
			if emitted == params.MaxVoxelInstances {
				return nil
			}
			emitted++
			drawVoxel(target, depth, clip, inv.Viewport, p.Projection, v, ds)
		}
	}
	return nil
}

func drawVoxel(target, depth *gpu.HostImage, clip clipRect, vp gpu.Viewport, proj [12]float32, v Voxel, ds depthState) {
	var corners [8]screenPoint
	for c := range corners {
		p := v.Position
		for axis := range 3 {
			p[axis] += (float32(c>>axis&1)*2 - 1) * v.HalfSize
		}
		corners[c] = toScreen(vp, project(proj, p))
	}
	for i := 0; i < len(cubeCorners); i += 3 {
		tri := [3]screenPoint{corners[cubeCorners[i]], corners[cubeCorners[i+1]], corners[cubeCorners[i+2]]}
		fillTriangle(target, depth, clip, tri, v.Color, ds)
	}
}
