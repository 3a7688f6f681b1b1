package visualize

import (
	"github.com/Carmen-Shannon/chromascope/common"
	"github.com/Carmen-Shannon/chromascope/engine/gpu"
	"github.com/chewxy/math32"
)

// The helpers below let the host kernels reproduce the shaders on gpu.HostImage targets: color
// conversions matching color.wgsl and a small rasterizer following the viewport transform.

// toBin quantizes a [0,1] value into one of 256 bins.
func toBin(v float32) uint32 {
	return min(uint32(common.Clamp01(v)*255+0.5), 255)
}

func srgbEncode(c [4]float32) [3]float32 {
	return [3]float32{common.LinearToSRGB(c[0]), common.LinearToSRGB(c[1]), common.LinearToSRGB(c[2])}
}

func srgbDecode(c [3]float32) [3]float32 {
	return [3]float32{common.SRGBToLinear(c[0]), common.SRGBToLinear(c[1]), common.SRGBToLinear(c[2])}
}

// screenPoint is a vertex after the viewport transform: pixel coordinates and depth.
type screenPoint struct {
	x, y, z float32
}

// project applies a packed 4x3 affine projection to p. Each output coordinate is dot(column, (p, 1)).
func project(proj [12]float32, p [3]float32) [3]float32 {
	var out [3]float32
	for i := range 3 {
		c := proj[i*4 : i*4+4]
		out[i] = c[0]*p[0] + c[1]*p[1] + c[2]*p[2] + c[3]
	}
	return out
}

// toScreen maps normalized device coordinates into vp, Y pointing down.
func toScreen(vp gpu.Viewport, ndc [3]float32) screenPoint {
	return screenPoint{
		x: vp.X + (ndc[0]+1)/2*vp.Width,
		y: vp.Y + (1-ndc[1])/2*vp.Height,
		z: vp.MinDepth + ndc[2]*(vp.MaxDepth-vp.MinDepth),
	}
}

// clipRect is the pixel rectangle [x0,x1) x [y0,y1) shared by the viewport and the image.
type clipRect struct {
	x0, y0, x1, y1 int
}

func viewportClip(vp gpu.Viewport, img *gpu.HostImage) clipRect {
	return clipRect{
		x0: max(0, int(math32.Floor(vp.X))),
		y0: max(0, int(math32.Floor(vp.Y))),
		x1: min(img.Width, int(math32.Ceil(vp.X+vp.Width))),
		y1: min(img.Height, int(math32.Ceil(vp.Y+vp.Height))),
	}
}

func (c clipRect) contains(x, y int) bool {
	return x >= c.x0 && y >= c.y0 && x < c.x1 && y < c.y1
}

// depthState mirrors the depth settings of a pipeline, tests use the Less comparison.
type depthState struct {
	test, write bool
}

// depthPass runs the depth test of a fragment and returns whether it survives. Depth is clipped to [0,1].
func (d depthState) depthPass(depth *gpu.HostImage, x, y int, z float32) bool {
	if z < 0 || z > 1 {
		return false
	}
	if depth == nil {
		return true
	}
	if d.test && !(z < depth.At(x, y)[0]) {
		return false
	}
	return true
}

func (d depthState) store(depth *gpu.HostImage, x, y int, z float32) {
	if d.write && depth != nil {
		depth.Set(x, y, [4]float32{z, 0, 0, 0})
	}
}

func edge(a, b screenPoint, px, py float32) float32 {
	return (b.x-a.x)*(py-a.y) - (b.y-a.y)*(px-a.x)
}

// fillTriangle writes color into every pixel of clip whose center lies inside the triangle.
// Both windings are drawn.
func fillTriangle(target, depth *gpu.HostImage, clip clipRect, v [3]screenPoint, color [4]float32, ds depthState) {
	area := edge(v[0], v[1], v[2].x, v[2].y)
	if area == 0 {
		return
	}
	sign := float32(1)
	if area < 0 {
		sign, area = -1, -area
	}

	minX := math32.Min(v[0].x, math32.Min(v[1].x, v[2].x))
	maxX := math32.Max(v[0].x, math32.Max(v[1].x, v[2].x))
	minY := math32.Min(v[0].y, math32.Min(v[1].y, v[2].y))
	maxY := math32.Max(v[0].y, math32.Max(v[1].y, v[2].y))
	x0 := max(clip.x0, int(math32.Floor(minX)))
	x1 := min(clip.x1, int(math32.Ceil(maxX)))
	y0 := max(clip.y0, int(math32.Floor(minY)))
	y1 := min(clip.y1, int(math32.Ceil(maxY)))

	for y := y0; y < y1; y++ {
		py := float32(y) + 0.5
		for x := x0; x < x1; x++ {
			px := float32(x) + 0.5
			w0 := sign * edge(v[1], v[2], px, py)
			w1 := sign * edge(v[2], v[0], px, py)
			w2 := sign * edge(v[0], v[1], px, py)
			if w0 < 0 || w1 < 0 || w2 < 0 {
				continue
			}
			z := (w0*v[0].z + w1*v[1].z + w2*v[2].z) / area
			if !ds.depthPass(depth, x, y, z) {
				continue
			}
			target.Set(x, y, color)
			ds.store(depth, x, y, z)
		}
	}
}

// drawLine draws a one pixel wide segment whose color runs from ca to cb. With antialiasing the
// color is blended over the target by the pixel coverage, estimated from the distance between the
// pixel center and the segment. Depth is only written where the coverage reaches one half.
func drawLine(target, depth *gpu.HostImage, clip clipRect, a, b screenPoint, ca, cb [3]float32, aa bool, ds depthState) {
	dx, dy := b.x-a.x, b.y-a.y
	length2 := dx*dx + dy*dy
	if length2 == 0 {
		return
	}

	steep := math32.Abs(dy) > math32.Abs(dx)
	lo, hi := math32.Min(a.x, b.x), math32.Max(a.x, b.x)
	if steep {
		lo, hi = math32.Min(a.y, b.y), math32.Max(a.y, b.y)
	}

	plot := func(x, y int) {
		if !clip.contains(x, y) {
			return
		}
		px, py := float32(x)+0.5, float32(y)+0.5
		t := common.Clamp01(((px-a.x)*dx + (py-a.y)*dy) / length2)
		ex, ey := a.x+t*dx-px, a.y+t*dy-py
		dist := math32.Sqrt(ex*ex + ey*ey)

		coverage := float32(0)
		switch {
		case aa:
			coverage = common.Clamp01(1 - dist)
		case dist <= 0.5:
			coverage = 1
		}
		if coverage <= 0 {
			return
		}
		z := a.z + t*(b.z-a.z)
		if !ds.depthPass(depth, x, y, z) {
			return
		}
		var color [3]float32
		for i := range color {
			color[i] = ca[i] + t*(cb[i]-ca[i])
		}
		dst := target.At(x, y)
		target.Set(x, y, [4]float32{
			color[0]*coverage + dst[0]*(1-coverage),
			color[1]*coverage + dst[1]*(1-coverage),
			color[2]*coverage + dst[2]*(1-coverage),
			coverage + dst[3]*(1-coverage),
		})
		if coverage >= 0.5 {
			ds.store(depth, x, y, z)
		}
	}

	for major := int(math32.Floor(lo)); major <= int(math32.Floor(hi)); major++ {
		c := float32(major) + 0.5
		if steep {
			x := a.x + common.Clamp01((c-a.y)/dy)*dx
			for minor := int(math32.Floor(x)) - 1; minor <= int(math32.Floor(x))+1; minor++ {
				plot(minor, major)
			}
			continue
		}
		y := a.y + common.Clamp01((c-a.x)/dx)*dy
		for minor := int(math32.Floor(y)) - 1; minor <= int(math32.Floor(y))+1; minor++ {
			plot(major, minor)
		}
	}
}
