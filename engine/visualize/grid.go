package visualize

import (
	"fmt"

	"github.com/Carmen-Shannon/chromascope/common"
	"github.com/Carmen-Shannon/chromascope/engine/config"
	"github.com/Carmen-Shannon/chromascope/engine/gpu"
	"github.com/Carmen-Shannon/chromascope/engine/renderer"
	"github.com/Carmen-Shannon/chromascope/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/chromascope/engine/renderer/shader"
	"github.com/Carmen-Shannon/chromascope/engine/visualize/params"
	"github.com/chewxy/math32"
	"github.com/cogentcore/webgpu/wgpu"
)

// HSL grid resolution: meridians and segments per meridian.
const (
	HSLGridHues      = 6
	HSLGridDivisions = 48
)

// Grid draws the wireframe of the color space the color cloud is laid out in.
type Grid struct {
	pipeline pipeline.Pipeline
	grids    [2]*gpu.VertexBuffer
}

var _ Pass = &Grid{}

// NewGrid uploads the RGB cube and HSL grid line lists and creates the grid pipeline.
//
// Parameters:
//   - init: the initializer of the rendering context
//
// Returns:
//   - *Grid: the pass
//   - error: an error if a vertex buffer or the pipeline could not be created
func NewGrid(init *renderer.Initializer) (*Grid, error) {
	g := &Grid{}
	var err error
	if g.grids[config.ColorCloudModeRGB], err = renderer.CreateVertexBuffer(init, "rgb grid", RGBGridVertices()); err != nil {
		return nil, err
	}
	if g.grids[config.ColorCloudModeHSL], err = renderer.CreateVertexBuffer(init, "hsl grid", HSLGridVertices(HSLGridHues, HSLGridDivisions)); err != nil {
		return nil, err
	}

	g.pipeline = pipeline.NewPipeline("grid", pipeline.PipelineTypeRender,
		pipeline.WithVertexShader(shader.NewShader("grid vs", shader.ShaderTypeVertex, shader.Assets, "assets/grid.wgsl")),
		pipeline.WithFragmentShader(shader.NewShader("grid fs", shader.ShaderTypeFragment, shader.Assets, "assets/grid.wgsl")),
		pipeline.WithTopology(wgpu.PrimitiveTopologyLineList),
		pipeline.WithLineAntialiasing(true),
		pipeline.WithKernel(gridKernel),
	)
	if err := register(init, g.pipeline); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *Grid) Name() string {
	return "grid"
}

func (g *Grid) Process(r *renderer.Renderer, cfg config.Config) error {
	if !cfg.EnableColorCloud || !cfg.ShowGrid {
		return nil
	}
	if !cfg.ColorCloudMode.Valid() {
		panic(fmt.Sprintf("grid: invalid color cloud mode %d", cfg.ColorCloudMode))
	}
	r.Timestamp(g.Name())
	r.SetPipeline(g.pipeline)
	r.SetViewport(renderer.ViewportAdjust)

	vb := g.grids[cfg.ColorCloudMode]
	r.SetVertexBuffer(vb)
	p := params.GPUGridParams{Projection: cfg.ProjectionMatrix().As4x3()}
	r.SetGraphicsConstants(p.Marshal())
	r.Draw(vb.Count, 1)
	r.Timestamp(g.Name())
	return nil
}

// RGBGridVertices returns the 12 edges of the RGB cube as a line list, every corner colored with
// its own color.
func RGBGridVertices() []params.GPUGridVertex {
	corner := func(r, g, b float32) params.GPUGridVertex {
		return params.GPUGridVertex{Position: common.RGBToPosition(r, g, b), Color: [3]float32{r, g, b}}
	}
	v0 := corner(0, 0, 0)
	r := corner(1, 0, 0)
	g := corner(0, 1, 0)
	b := corner(0, 0, 1)
	rg := corner(1, 1, 0)
	rb := corner(1, 0, 1)
	gb := corner(0, 1, 1)
	v1 := corner(1, 1, 1)
	return []params.GPUGridVertex{
		v0, r, v0, g, v0, b,
		r, rg, r, rb,
		g, rg, g, gb,
		b, rb, b, gb,
		rg, v1, rb, v1, gb, v1,
	}
}

func hslVertex(h, s, l float32) params.GPUGridVertex {
	return params.GPUGridVertex{Position: common.HSLToPosition(h, s, l), Color: common.HSLToRGB(h, s, l)}
}

// HSLGridVertices returns the HSL double cone as a line list: the gray axis, nHue meridians from
// black to white through the fully saturated hue, and the equator of fully saturated colors.
//
// Parameters:
//   - nHue: the number of meridians
//   - nDiv: the number of segments per meridian, the equator using twice as many
//
// Returns:
//   - []params.GPUGridVertex: 2 + 2*nHue*nDiv + 4*nDiv vertices
func HSLGridVertices(nHue, nDiv int) []params.GPUGridVertex {
	vertices := make([]params.GPUGridVertex, 0, 2+2*nHue*nDiv+4*nDiv)
	vertices = append(vertices, hslVertex(0, 0, 0), hslVertex(0, 0, 1))

	for hue := range nHue {
		h := float32(hue) / float32(nHue)
		for i := 1; i <= nDiv; i++ {
			if i == 1 {
				vertices = append(vertices, hslVertex(0, 0, 0))
			} else {
				vertices = append(vertices, vertices[len(vertices)-1])
			}
			l := float32(i) / float32(nDiv)
			s := 1 - 2*math32.Abs(l-0.5)
			vertices = append(vertices, hslVertex(h, s, l))
		}
	}

	for i := 1; i <= 2*nDiv; i++ {
		if i == 1 {
			vertices = append(vertices, hslVertex(0, 1, 0.5))
		} else {
			vertices = append(vertices, vertices[len(vertices)-1])
		}
		vertices = append(vertices, hslVertex(float32(i)/float32(2*nDiv), 1, 0.5))
	}
	return vertices
}

// gridKernel draws the bound line list with depth test and write.
func gridKernel(inv *pipeline.Invocation) error {
	var p params.GPUGridParams
	if err := readConstants(inv, &p); err != nil {
		return err
	}
	target, err := inv.TargetImage()
	if err != nil {
		return err
	}
	if inv.Vertices == nil {
		return fmt.Errorf("no vertex buffer bound")
	}
	host := gpu.HostBufferOf(inv.Vertices.Buffer)
	if host == nil {
		return fmt.Errorf("vertex buffer is not a host buffer")
	}
	data := host.Bytes()
	count := min(int(inv.VertexCount), len(data)/params.GridVertexStride)

	clip := viewportClip(inv.Viewport, target)
	depth := inv.DepthImage()
	ds := depthState{test: true, write: true}
	for i := 0; i+1 < count; i += 2 {
		a := params.UnmarshalGridVertex(data, i)
		b := params.UnmarshalGridVertex(data, i+1)
		drawLine(target, depth, clip,
			toScreen(inv.Viewport, project(p.Projection, a.Position)),
			toScreen(inv.Viewport, project(p.Projection, b.Position)),
			a.Color, b.Color, inv.LineAntialiasing, ds)
	}
	return nil
}
