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
	"github.com/cogentcore/webgpu/wgpu"
)

// HistogramBuffers is the number of 256 bin buffers of the histogram.
const HistogramBuffers = 4

// HistogramColors are the bar colors of each buffer. In the RGB modes buffer 0 counts green,
// 1 red, 2 blue and 3 luma; the single channel modes only fill buffer 0.
var HistogramColors = [HistogramBuffers][4]float32{
	{0, 1, 0, 0.8},
	{1, 0, 0, 0.8},
	{0, 0, 1, 0.8},
	{1, 1, 1, 0.8},
}

// Histogram counts the window pixels per bin on the GPU and draws the bins as bars multiplied
// over the frame.
type Histogram struct {
	compute pipeline.Pipeline
	draw    pipeline.Pipeline
	buffers [HistogramBuffers]*gpu.RwBuffer
}

var _ Pass = &Histogram{}

// NewHistogram creates the bin buffers and both pipelines.
//
// Parameters:
//   - init: the initializer of the rendering context
//
// Returns:
//   - *Histogram: the pass
//   - error: an error if a buffer or pipeline could not be created
func NewHistogram(init *renderer.Initializer) (*Histogram, error) {
	h := &Histogram{}
	for i := range h.buffers {
		buf, err := init.CreateRwBuffer(fmt.Sprintf("histogram %d", i), params.HistogramBins)
		if err != nil {
			return nil, err
		}
		h.buffers[i] = buf
	}

	h.compute = pipeline.NewPipeline("histogram compute", pipeline.PipelineTypeCompute,
		pipeline.WithComputeShader(shader.NewShader("histogram cs", shader.ShaderTypeCompute, shader.Assets, "assets/histogram_compute.wgsl")),
		pipeline.WithKernel(histogramComputeKernel),
	)
	h.draw = pipeline.NewPipeline("histogram draw", pipeline.PipelineTypeRender,
		pipeline.WithVertexShader(shader.NewShader("histogram vs", shader.ShaderTypeVertex, shader.Assets, "assets/histogram_draw.wgsl")),
		pipeline.WithFragmentShader(shader.NewShader("histogram fs", shader.ShaderTypeFragment, shader.Assets, "assets/histogram_draw.wgsl")),
		pipeline.WithTopology(wgpu.PrimitiveTopologyTriangleStrip),
		pipeline.WithBlendState(pipeline.MultiplyBlend),
		pipeline.WithDepthTestEnabled(false),
		pipeline.WithDepthWriteEnabled(false),
		pipeline.WithKernel(histogramDrawKernel),
	)
	if err := register(init, h.compute, h.draw); err != nil {
		return nil, err
	}
	return h, nil
}

func (h *Histogram) Name() string {
	return "histogram"
}

// Buffers returns the bin buffers.
func (h *Histogram) Buffers() [HistogramBuffers]*gpu.RwBuffer {
	return h.buffers
}

func (h *Histogram) Process(r *renderer.Renderer, cfg config.Config) error {
	if !cfg.EnableHistogram {
		return nil
	}
	if !cfg.HistogramMode.Valid() {
		panic(fmt.Sprintf("histogram: invalid mode %d", cfg.HistogramMode))
	}
	r.Timestamp(h.Name())
	if err := h.clear(r); err != nil {
		return err
	}
	h.aggregate(r, cfg)
	if err := h.drawBars(r, cfg); err != nil {
		return err
	}
	r.Timestamp(h.Name())
	return nil
}

func (h *Histogram) transition(r *renderer.Renderer, before, after gpu.ResourceState) error {
	barriers := make([]gpu.Barrier, 0, len(h.buffers))
	for _, b := range h.buffers {
		barriers = append(barriers, gpu.Transition(b.Buffer, before, after))
	}
	return r.ResourceBarrier(barriers...)
}

func (h *Histogram) clear(r *renderer.Renderer) error {
	if err := h.transition(r, gpu.StateShaderResource, gpu.StateUnorderedAccess); err != nil {
		return err
	}
	for _, b := range h.buffers {
		r.ClearUAV(b)
	}
	return nil
}

func (h *Histogram) aggregate(r *renderer.Renderer, cfg config.Config) {
	w, ht := windowSize(cfg)
	r.SetPipeline(h.compute)
	p := params.GPUHistogramParams{
		Rect:     cfg.WindowRect.Edges(),
		Mode:     uint32(cfg.HistogramMode),
		Channels: cfg.HistogramMode.Channels(),
	}
	r.SetComputeConstants(p.Marshal())
	r.SetUAVs(h.buffers[0].UAV, h.buffers[1].UAV, h.buffers[2].UAV, h.buffers[3].UAV)
	x, y := dispatchSize(w, ht, params.HistogramGroupSize)
	r.Dispatch(x, y, 1)
}

func (h *Histogram) drawBars(r *renderer.Renderer, cfg config.Config) error {
	r.SetPipeline(h.draw)
	r.SetViewport(renderer.ViewportFull)
	if err := h.transition(r, gpu.StateUnorderedAccess, gpu.StateShaderResource); err != nil {
		return err
	}

	p := params.GPUHistogramDrawParams{
		Colors: HistogramColors,
		Mode:   uint32(cfg.HistogramMode),
		Scale:  HistogramScale(cfg),
	}
	r.SetGraphicsConstants(p.Marshal())
	r.SetGraphicsSRVs(h.buffers[0].SRV, h.buffers[1].SRV, h.buffers[2].SRV, h.buffers[3].SRV)
	r.Draw(2*params.HistogramBins, cfg.HistogramMode.Channels())
	return nil
}

// HistogramScale returns the bar height of a single count: the configured scale over the window
// area, boosted for the RGB and luma modes whose counts spread over fewer bins per pixel.
//
// Parameters:
//   - cfg: the configuration snapshot
//
// Returns:
//   - float32: the height per count, 0 for an empty window
func HistogramScale(cfg config.Config) float32 {
	w, h := windowSize(cfg)
	area := float32(w) * float32(h)
	if area == 0 {
		return 0
	}
	k := float32(10)
	if cfg.HistogramMode == config.HistogramModeHue {
		k = 0.2
	}
	return cfg.HistogramScale * k / area
}

// histogramComputeKernel counts every window pixel of the screen into the bin buffers, the
// dispatch covering 16x16 pixels per workgroup.
func histogramComputeKernel(inv *pipeline.Invocation) error {
	var p params.GPUHistogramParams
	if err := readConstants(inv, &p); err != nil {
		return err
	}
	screen, err := inv.ScreenImage()
	if err != nil {
		return err
	}
	var bins [HistogramBuffers][]uint32
	for i := range bins {
		if bins[i], err = inv.UAVWords(i); err != nil {
			return err
		}
	}

	width := min(int(p.Rect[2]-p.Rect[0]), int(inv.Groups[0])*params.HistogramGroupSize)
	height := min(int(p.Rect[3]-p.Rect[1]), int(inv.Groups[1])*params.HistogramGroupSize)
	if width <= 0 || height <= 0 {
		return nil
	}
	mode := config.HistogramMode(p.Mode)
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
			accumulate(mode, bins, srgbEncode(screen.At(sx, sy)))
		}
	})
	return nil
}

// accumulate adds the sRGB encoded color c to the bins of mode.
func accumulate(mode config.HistogramMode, bins [HistogramBuffers][]uint32, c [3]float32) {
	switch mode {
	case config.HistogramModeRGB, config.HistogramModeRGBL:
		atomic.AddUint32(&bins[0][toBin(c[1])], 1)
		atomic.AddUint32(&bins[1][toBin(c[0])], 1)
		atomic.AddUint32(&bins[2][toBin(c[2])], 1)
		if mode == config.HistogramModeRGBL {
			atomic.AddUint32(&bins[3][toBin(common.Luma(c[0], c[1], c[2]))], 1)
		}
	case config.HistogramModeLuma:
		atomic.AddUint32(&bins[0][toBin(common.Luma(c[0], c[1], c[2]))], 1)
	default:
		h, chroma, _ := common.HueChromaLightness(c[0], c[1], c[2])
		if chroma > 0 {
			atomic.AddUint32(&bins[0][min(uint32(h*256), 255)], 1)
		}
	}
}

// histogramDrawKernel draws every instance as a strip of bars: bin i sits at x = i/255 across the
// viewport and the bar top is interpolated linearly between neighboring bins. The bar color
// multiplies the target.
func histogramDrawKernel(inv *pipeline.Invocation) error {
	var p params.GPUHistogramDrawParams
	if err := readConstants(inv, &p); err != nil {
		return err
	}
	target, err := inv.TargetImage()
	if err != nil {
		return err
	}
	bars := int(inv.VertexCount / 2)
	if bars < 2 || inv.InstanceCount == 0 {
		return nil
	}

	channels := min(int(inv.InstanceCount), HistogramBuffers)
	heights := make([][]float32, channels)
	colors := make([][4]float32, channels)
	for ch := range channels {
		words, err := inv.SRVWords(ch)
		if err != nil {
			return err
		}
		n := min(bars, len(words))
		heights[ch] = make([]float32, n)
		for i := range n {
			heights[ch][i] = math32.Min(float32(words[i])*p.Scale, 1)
		}
		c := p.Colors[ch]
		colors[ch] = [4]float32{1 + (c[0]-1)*c[3], 1 + (c[1]-1)*c[3], 1 + (c[2]-1)*c[3], c[3]}
	}

	vp := inv.Viewport
	clip := viewportClip(vp, target)
	inv.ForEach(clip.y1-clip.y0, func(i int) {
		y := clip.y0 + i
		ndcY := 1 - (float32(y)+0.5-vp.Y)/vp.Height*2
		for x := clip.x0; x < clip.x1; x++ {
			pos := (float32(x) + 0.5 - vp.X) / vp.Width * 255
			if pos < 0 || pos > 255 {
				continue
			}
			dst := target.At(x, y)
			touched := false
			for ch := range channels {
				top, ok := barTop(heights[ch], pos)
				if !ok || ndcY >= top*2-1 {
					continue
				}
				src := colors[ch]
				dst = [4]float32{src[0] * dst[0], src[1] * dst[1], src[2] * dst[2], src[3] + dst[3]*(1-src[3])}
				touched = true
			}
			if touched {
				target.Set(x, y, dst)
			}
		}
	})
	return nil
}

// barTop interpolates the bar height at pos, a fractional bin index.
func barTop(heights []float32, pos float32) (float32, bool) {
	i := int(pos)
	if i >= len(heights)-1 {
		i = len(heights) - 2
	}
	if i < 0 {
		return 0, false
	}
	t := pos - float32(i)
	if t > 1 {
		return 0, false
	}
	return heights[i] + (heights[i+1]-heights[i])*t, true
}
