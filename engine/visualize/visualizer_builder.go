package visualize

import (
	"time"

	"github.com/Carmen-Shannon/chromascope/engine/renderer"
)

// DefaultIdleBackoff is how long the pipeline sleeps when the desktop did not change.
const DefaultIdleBackoff = 10 * time.Millisecond

type visualizerConfig struct {
	captureWait time.Duration
	idleBackoff time.Duration
	timingSink  renderer.TimingSink
	passes      []Pass
}

// VisualizerOption is a functional option applied by New.
type VisualizerOption func(*visualizerConfig)

// WithCaptureWait sets the longest time one iteration waits for a desktop update.
//
// Parameters:
//   - wait: the capture wait, capture.DefaultWait when unset
//
// Returns:
//   - VisualizerOption: a function that applies the capture wait
func WithCaptureWait(wait time.Duration) VisualizerOption {
	return func(c *visualizerConfig) {
		c.captureWait = wait
	}
}

// WithIdleBackoff sets the sleep between iterations that captured nothing.
//
// Parameters:
//   - backoff: the sleep, DefaultIdleBackoff when unset
//
// Returns:
//   - VisualizerOption: a function that applies the backoff
func WithIdleBackoff(backoff time.Duration) VisualizerOption {
	return func(c *visualizerConfig) {
		c.idleBackoff = backoff
	}
}

// WithTimingSink installs the receiver of the per pass GPU timings of every frame.
func WithTimingSink(sink renderer.TimingSink) VisualizerOption {
	return func(c *visualizerConfig) {
		c.timingSink = sink
	}
}

// WithPasses replaces the default passes. The passes run in the given order.
func WithPasses(passes ...Pass) VisualizerOption {
	return func(c *visualizerConfig) {
		c.passes = passes
	}
}
