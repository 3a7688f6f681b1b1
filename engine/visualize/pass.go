// Package visualize holds the analysis passes drawn over the captured desktop and the Visualizer
// that runs them every frame on a dedicated goroutine.
package visualize

import (
	"fmt"
	"log"

	"github.com/Carmen-Shannon/chromascope/common"
	"github.com/Carmen-Shannon/chromascope/engine/config"
	"github.com/Carmen-Shannon/chromascope/engine/renderer"
	"github.com/Carmen-Shannon/chromascope/engine/renderer/pipeline"
)

// Pass records the commands of one visualization into a frame. A disabled pass records nothing.
type Pass interface {
	// Name returns the label of the pass, also used for its GPU timing.
	Name() string

	// Process records the pass into r for the configuration snapshot cfg.
	//
	// Parameters:
	//   - r: the renderer recording the current frame
	//   - cfg: the configuration snapshot of the frame
	//
	// Returns:
	//   - error: an error if a resource is in an unexpected state
	Process(r *renderer.Renderer, cfg config.Config) error
}

// NewPasses creates every pass in drawing order: Filter, ColorCloud, Grid, Histogram.
//
// Parameters:
//   - init: the initializer of the rendering context
//
// Returns:
//   - []Pass: the passes in the order they run
//   - error: an error if a resource or pipeline could not be created
func NewPasses(init *renderer.Initializer) ([]Pass, error) {
	filter, err := NewFilter(init)
	if err != nil {
		return nil, err
	}
	cloud, err := NewColorCloud(init)
	if err != nil {
		return nil, err
	}
	grid, err := NewGrid(init)
	if err != nil {
		return nil, err
	}
	histogram, err := NewHistogram(init)
	if err != nil {
		return nil, err
	}
	return []Pass{filter, cloud, grid, histogram}, nil
}

func logf(format string, args ...any) {
	log.Printf("[Visualizer] "+format, args...)
}

// windowSize returns the configured window size, negative sizes counting as zero.
func windowSize(cfg config.Config) (uint32, uint32) {
	return uint32(max(cfg.WindowRect.Width, 0)), uint32(max(cfg.WindowRect.Height, 0))
}

// register registers every pipeline of a pass.
func register(init *renderer.Initializer, ps ...pipeline.Pipeline) error {
	for _, p := range ps {
		if err := init.RegisterPipeline(p); err != nil {
			return err
		}
	}
	return nil
}

// constants is a parameter block the kernels decode from the bound constant bytes.
type constants interface {
	Size() int
	Unmarshal(buf []byte)
}

func readConstants(inv *pipeline.Invocation, c constants) error {
	if len(inv.Constants) < c.Size() {
		return fmt.Errorf("constants hold %d bytes, need %d", len(inv.Constants), c.Size())
	}
	c.Unmarshal(inv.Constants)
	return nil
}

// dispatchSize returns the workgroup count covering a w*h pixel area with tiles of the given edge.
func dispatchSize(w, h, tile uint32) (uint32, uint32) {
	return common.DivRoundUp(w, tile), common.DivRoundUp(h, tile)
}
