package visualize

import (
	"github.com/Carmen-Shannon/chromascope/common"
	"github.com/Carmen-Shannon/chromascope/engine/config"
	"github.com/Carmen-Shannon/chromascope/engine/renderer"
	"github.com/Carmen-Shannon/chromascope/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/chromascope/engine/renderer/shader"
	"github.com/Carmen-Shannon/chromascope/engine/visualize/params"
)

// Filter redraws the desktop under the window with one of the filter modes applied, as a single
// full-screen triangle.
type Filter struct {
	pipeline pipeline.Pipeline
}

var _ Pass = &Filter{}

// NewFilter creates the filter pipeline.
//
// Parameters:
//   - init: the initializer of the rendering context
//
// Returns:
//   - *Filter: the pass
//   - error: an error if the pipeline could not be registered
func NewFilter(init *renderer.Initializer) (*Filter, error) {
	p := pipeline.NewPipeline("filter", pipeline.PipelineTypeRender,
		pipeline.WithVertexShader(shader.NewShader("filter vs", shader.ShaderTypeVertex, shader.Assets, "assets/filter.wgsl")),
		pipeline.WithFragmentShader(shader.NewShader("filter fs", shader.ShaderTypeFragment, shader.Assets, "assets/filter.wgsl")),
		pipeline.WithDepthTestEnabled(false),
		pipeline.WithDepthWriteEnabled(false),
		pipeline.WithKernel(filterKernel),
	)
	if err := register(init, p); err != nil {
		return nil, err
	}
	return &Filter{pipeline: p}, nil
}

func (f *Filter) Name() string {
	return "filter"
}

func (f *Filter) Process(r *renderer.Renderer, cfg config.Config) error {
	if !cfg.EnableFilter {
		return nil
	}
	r.Timestamp(f.Name())
	r.SetPipeline(f.pipeline)
	r.SetViewport(renderer.ViewportFull)

	p := params.GPUFilterParams{
		Rect: cfg.WindowRect.Edges(),
		Mode: uint32(cfg.FilterMode),
		Mask: cfg.FilterMask(),
	}
	r.SetGraphicsConstants(p.Marshal())
	r.Draw(3, 1)
	r.Timestamp(f.Name())
	return nil
}

// FilterColor applies a filter mode to an sRGB encoded color.
//
// Parameters:
//   - mode: the filter mode
//   - c: the color, sRGB encoded
//   - mask: the channel multipliers of FilterModeRGB
//
// Returns:
//   - [3]float32: the filtered color, sRGB encoded and clamped to [0,1]
func FilterColor(mode config.FilterMode, c [3]float32, mask [3]float32) [3]float32 {
	var out [3]float32
	switch mode {
	case config.FilterModeHue:
		h, _, _ := common.HueChromaLightness(c[0], c[1], c[2])
		out = common.HSLToRGB(h, 1, 0.5)
	case config.FilterModeSaturation:
		_, s, _ := common.RGBToHSL(c[0], c[1], c[2])
		out = [3]float32{s, s, s}
	case config.FilterModeLuma:
		l := common.Luma(c[0], c[1], c[2])
		out = [3]float32{l, l, l}
	default:
		out = [3]float32{c[0] * mask[0], c[1] * mask[1], c[2] * mask[2]}
	}
	for i := range out {
		out[i] = common.Clamp01(out[i])
	}
	return out
}

// filterKernel shades every pixel of the viewport from the screen pixel at the same window
// position. Pixels outside the captured screen turn opaque black.
func filterKernel(inv *pipeline.Invocation) error {
	var p params.GPUFilterParams
	if err := readConstants(inv, &p); err != nil {
		return err
	}
	screen, err := inv.ScreenImage()
	if err != nil {
		return err
	}
	target, err := inv.TargetImage()
	if err != nil {
		return err
	}

	clip := viewportClip(inv.Viewport, target)
	inv.ForEach(clip.y1-clip.y0, func(i int) {
		y := clip.y0 + i
		sy := int(p.Rect[1]) + y
		for x := clip.x0; x < clip.x1; x++ {
			sx := int(p.Rect[0]) + x
			if sx < 0 || sy < 0 || sx >= screen.Width || sy >= screen.Height {
				target.Set(x, y, [4]float32{0, 0, 0, 1})
				continue
			}
			c := FilterColor(config.FilterMode(p.Mode), srgbEncode(screen.At(sx, sy)), p.Mask)
			out := srgbDecode(c)
			target.Set(x, y, [4]float32{out[0], out[1], out[2], 1})
		}
	})
	return nil
}
