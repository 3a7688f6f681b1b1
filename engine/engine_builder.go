package engine

import (
	"github.com/Carmen-Shannon/chromascope/engine/capture"
	"github.com/Carmen-Shannon/chromascope/engine/renderer"
	"github.com/Carmen-Shannon/chromascope/engine/visualize"
	"github.com/Carmen-Shannon/chromascope/engine/window"
)

// DefaultConfigPath is the settings file used when WithConfigPath is not given.
const DefaultConfigPath = "chromascope.toml"

// EngineBuilderOption is a functional option for configuring an Engine.
// Use the With* functions to create options that are applied directly to the engine instance.
type EngineBuilderOption func(*engine)

// WithProfiling enables or disables performance profiling output.
//
// Parameters:
//   - enabled: if true, logs frame rate, memory and per-pass GPU timings every second
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithProfiling(enabled bool) EngineBuilderOption {
	return func(e *engine) {
		e.profilingEnabled = enabled
	}
}

// WithConfigPath sets the settings file that is loaded, watched and saved on quit.
//
// Parameters:
//   - path: the TOML settings file
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithConfigPath(path string) EngineBuilderOption {
	return func(e *engine) {
		e.configPath = path
	}
}

// WithBackend selects the GPU backend. The software backend runs headless without a window.
//
// Parameters:
//   - backendType: the backend implementation
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithBackend(backendType renderer.BackendType) EngineBuilderOption {
	return func(e *engine) {
		e.backendType = backendType
	}
}

// WithVSync presents frames on vertical blank instead of immediately.
func WithVSync(vsync bool) EngineBuilderOption {
	return func(e *engine) {
		if vsync {
			e.presentMode = renderer.PresentModeVSync
		} else {
			e.presentMode = renderer.PresentModeUncapped
		}
	}
}

// WithCaptureSource selects the live capture source and display.
//
// Parameters:
//   - source: "dxgi" or "screenshot"
//   - display: the index of the display to capture
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithCaptureSource(source string, display int) EngineBuilderOption {
	return func(e *engine) {
		e.source = source
		e.display = display
	}
}

// WithImage analyzes a still image file instead of the live desktop.
//
// Parameters:
//   - path: a png, jpeg, bmp, tiff or webp file
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithImage(path string) EngineBuilderOption {
	return func(e *engine) {
		e.imagePath = path
	}
}

// WithGrabber supplies an already opened frame source. It takes precedence over WithImage and
// WithCaptureSource and is owned by the engine from now on.
//
// Parameters:
//   - g: the frame source
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithGrabber(g capture.Grabber) EngineBuilderOption {
	return func(e *engine) {
		e.grabber = g
	}
}

// WithWindow sets a custom configured window for the engine to use rather than allowing the engine
// to create and manage one internally.
//
// Parameters:
//   - w: a pre-configured Window instance
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithWindow(w window.Window) EngineBuilderOption {
	return func(e *engine) {
		e.window = w
	}
}

// WithRendererOptions forwards options to the backend, after the present mode chosen by WithVSync.
func WithRendererOptions(opts ...renderer.RendererBuilderOption) EngineBuilderOption {
	return func(e *engine) {
		e.rendererOptions = append(e.rendererOptions, opts...)
	}
}

// WithVisualizerOptions forwards options to the visualizer.
func WithVisualizerOptions(opts ...visualize.VisualizerOption) EngineBuilderOption {
	return func(e *engine) {
		e.visualizerOptions = append(e.visualizerOptions, opts...)
	}
}
