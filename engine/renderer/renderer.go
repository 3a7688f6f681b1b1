package renderer

import (
	"github.com/Carmen-Shannon/chromascope/engine/gpu"
	"github.com/Carmen-Shannon/chromascope/engine/renderer/pipeline"
)

// ViewportKind selects one of the two viewports computed for every frame.
type ViewportKind int

const (
	// ViewportFull spans the whole target.
	ViewportFull ViewportKind = iota
	// ViewportAdjust is the largest square centered in the target, used by square-aspect 3D content.
	ViewportAdjust
)

// Renderer records the commands of one frame into an open command list. It is created by
// Context.CreateRenderer and finished by Context.Execute; any call after Close panics.
type Renderer struct {
	ctx    *Context
	list   *gpu.CommandList
	target *gpu.Texture
	depth  *gpu.Texture

	width, height uint32
	viewports     [2]gpu.Viewport
	closed        bool
}

// newRenderer transitions target into the RenderTarget state, binds it with depth and clears both.
func newRenderer(ctx *Context, target, depth *gpu.Texture, clear [4]float32) (*Renderer, error) {
	list := gpu.NewCommandList()
	if err := list.ResourceBarrier(gpu.Transition(target, gpu.StatePresent, gpu.StateRenderTarget)); err != nil {
		return nil, err
	}
	r := &Renderer{
		ctx:    ctx,
		list:   list,
		target: target,
		depth:  depth,
		width:  target.Width,
		height: target.Height,
	}
	r.viewports = computeViewports(target.Width, target.Height)

	list.Record(gpu.Command{Kind: gpu.CmdSetRenderTarget, Target: target, Depth: depth})
	list.Record(gpu.Command{Kind: gpu.CmdClearRenderTarget, Target: target, Color: clear})
	list.Record(gpu.Command{Kind: gpu.CmdClearDepth, Depth: depth, DepthValue: 1})
	r.SetViewport(ViewportFull)
	return r, nil
}

// computeViewports returns the full viewport and the centered square of side min(width, height).
func computeViewports(width, height uint32) [2]gpu.Viewport {
	w, h := float32(width), float32(height)
	side := min(w, h)
	return [2]gpu.Viewport{
		ViewportFull:   {X: 0, Y: 0, Width: w, Height: h, MinDepth: 0, MaxDepth: 1},
		ViewportAdjust: {X: (w - side) / 2, Y: (h - side) / 2, Width: side, Height: side, MinDepth: 0, MaxDepth: 1},
	}
}

func (r *Renderer) checkOpen() {
	if r.closed {
		panic("renderer closed")
	}
}

// Size returns the size of the target in pixels.
func (r *Renderer) Size() (uint32, uint32) {
	return r.width, r.height
}

// Viewport returns the viewport of the given kind.
func (r *Renderer) Viewport(kind ViewportKind) gpu.Viewport {
	return r.viewports[kind]
}

// SetViewport makes the viewport of the given kind active, along with a matching scissor.
func (r *Renderer) SetViewport(kind ViewportKind) {
	r.checkOpen()
	vp := r.viewports[kind]
	r.list.Record(gpu.Command{Kind: gpu.CmdSetViewport, Viewport: vp})
	r.list.Record(gpu.Command{Kind: gpu.CmdSetScissor, Viewport: vp})
}

// SetPipeline binds a registered pipeline.
func (r *Renderer) SetPipeline(p pipeline.Pipeline) {
	r.checkOpen()
	r.list.Record(gpu.Command{Kind: gpu.CmdSetPipeline, Pipeline: p.PipelineKey()})
}

func (r *Renderer) setConstants(stage gpu.Stage, data []byte) {
	r.checkOpen()
	r.list.Record(gpu.Command{Kind: gpu.CmdSetConstants, Stage: stage, Constants: append([]byte(nil), data...)})
}

// SetComputeConstants uploads the constants block of the following dispatches.
func (r *Renderer) SetComputeConstants(data []byte) {
	r.setConstants(gpu.StageCompute, data)
}

// SetGraphicsConstants uploads the constants block of the following draws and mesh dispatches.
func (r *Renderer) SetGraphicsConstants(data []byte) {
	r.setConstants(gpu.StageGraphics, data)
}

// SetComputeSRVs copies ds into the frame arena and binds them as the read-only table of compute work.
// Exhausting the arena panics.
func (r *Renderer) SetComputeSRVs(ds ...gpu.Descriptor) {
	r.checkOpen()
	r.list.Record(gpu.Command{Kind: gpu.CmdSetSRVTable, Stage: gpu.StageCompute, Table: r.ctx.arena.Copy(ds...)})
}

// SetGraphicsSRVs copies ds into the frame arena and binds them as the read-only table of draws.
// Exhausting the arena panics.
func (r *Renderer) SetGraphicsSRVs(ds ...gpu.Descriptor) {
	r.checkOpen()
	r.list.Record(gpu.Command{Kind: gpu.CmdSetSRVTable, Stage: gpu.StageGraphics, Table: r.ctx.arena.Copy(ds...)})
}

// SetUAVs copies ds into the frame arena and binds them as the read-write table of compute work.
// Exhausting the arena panics.
func (r *Renderer) SetUAVs(ds ...gpu.Descriptor) {
	r.checkOpen()
	r.list.Record(gpu.Command{Kind: gpu.CmdSetUAVTable, Stage: gpu.StageCompute, Table: r.ctx.arena.Copy(ds...)})
}

// SetSharedSRV binds the captured frame view shared by every pass.
func (r *Renderer) SetSharedSRV(d gpu.Descriptor) {
	r.checkOpen()
	r.list.Record(gpu.Command{Kind: gpu.CmdSetSharedSRV, Descriptor: d})
}

// SetVertexBuffer binds the vertex buffer of the following draws.
func (r *Renderer) SetVertexBuffer(vb *gpu.VertexBuffer) {
	r.checkOpen()
	r.list.Record(gpu.Command{Kind: gpu.CmdSetVertexBuffer, Vertices: vb})
}

// ClearUAV zeroes every value of rw through its raw view.
func (r *Renderer) ClearUAV(rw *gpu.RwBuffer) {
	r.checkOpen()
	r.list.Record(gpu.Command{Kind: gpu.CmdClearUAV, Descriptor: rw.RawUAV})
}

// Draw draws vertexCount vertices instanceCount times.
func (r *Renderer) Draw(vertexCount, instanceCount uint32) {
	r.checkOpen()
	r.list.Record(gpu.Command{Kind: gpu.CmdDraw, Counts: [3]uint32{vertexCount, instanceCount, 0}})
}

// Dispatch runs the bound compute pipeline over x*y*z workgroups.
func (r *Renderer) Dispatch(x, y, z uint32) {
	r.checkOpen()
	r.list.Record(gpu.Command{Kind: gpu.CmdDispatch, Counts: [3]uint32{x, y, z}})
}

// DispatchMesh runs the bound mesh pipeline over x*y*z task groups.
func (r *Renderer) DispatchMesh(x, y, z uint32) {
	r.checkOpen()
	r.list.Record(gpu.Command{Kind: gpu.CmdDispatchMesh, Counts: [3]uint32{x, y, z}})
}

// ResourceBarrier records state transitions. A transition whose Before state does not match the
// tracked state fails with gpu.ErrInvalidTransition and records nothing.
func (r *Renderer) ResourceBarrier(barriers ...gpu.Barrier) error {
	r.checkOpen()
	return r.list.ResourceBarrier(barriers...)
}

// Timestamp records a GPU timestamp under label. The first and second timestamps of a label
// bracket one timing. Timestamps beyond the pool capacity are dropped.
func (r *Renderer) Timestamp(label string) {
	r.checkOpen()
	query, ok := r.ctx.cursor.Write(label)
	if !ok {
		return
	}
	r.list.Record(gpu.Command{Kind: gpu.CmdTimestamp, Query: query, Timestamps: r.ctx.timestamps})
}

func (r *Renderer) resolveTimestamps(count int) {
	r.checkOpen()
	r.list.Record(gpu.Command{Kind: gpu.CmdResolveTimestamps, Query: count, Timestamps: r.ctx.timestamps})
}

// Close transitions the target back to Present and ends recording. The renderer cannot be used
// afterwards.
//
// Returns:
//   - *gpu.ClosedCommandList: the submittable command list
//   - error: an error if the target is no longer in the RenderTarget state
func (r *Renderer) Close() (*gpu.ClosedCommandList, error) {
	r.checkOpen()
	if err := r.list.ResourceBarrier(gpu.Transition(r.target, gpu.StateRenderTarget, gpu.StatePresent)); err != nil {
		return nil, err
	}
	r.closed = true
	return r.list.Close(), nil
}
