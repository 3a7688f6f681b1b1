package renderer

import (
	"fmt"
	"runtime"

	"github.com/Carmen-Shannon/chromascope/engine/gpu"
	"github.com/cogentcore/webgpu/wgpu"
)

// backendConfig collects the builder options applied by NewBackend.
type backendConfig struct {
	presentMode          PresentMode
	forceFallbackAdapter bool
	workers              int
	presentHook          func(*gpu.HostImage)
}

// RendererBuilderOption is a functional option applied to a backend during construction via NewBackend.
type RendererBuilderOption func(*backendConfig)

// WithPresentMode sets the surface present mode which controls how frames are delivered to the display.
//
// Parameters:
//   - mode: the PresentMode to use (VSync or Uncapped)
//
// Returns:
//   - RendererBuilderOption: a function that applies the present mode option
func WithPresentMode(mode PresentMode) RendererBuilderOption {
	return func(c *backendConfig) {
		c.presentMode = mode
	}
}

// WithForceFallbackAdapter forces WGPU to use a CPU/software fallback adapter instead of
// hardware GPU acceleration. This requires a software Vulkan ICD to be installed on the system
// (e.g. SwiftShader or lavapipe).
//
// Parameters:
//   - force: true to force the fallback adapter, false to use hardware (default)
//
// Returns:
//   - RendererBuilderOption: a function that applies the option
func WithForceFallbackAdapter(force bool) RendererBuilderOption {
	return func(c *backendConfig) {
		c.forceFallbackAdapter = force
	}
}

// WithWorkers sets the number of workers the software backend runs kernels on.
// One or fewer runs kernels on the submitting goroutine. Defaults to runtime.NumCPU().
func WithWorkers(n int) RendererBuilderOption {
	return func(c *backendConfig) {
		c.workers = n
	}
}

// WithPresentHook registers a function the software backend calls with every presented image.
// The image is a copy owned by the callee.
func WithPresentHook(hook func(*gpu.HostImage)) RendererBuilderOption {
	return func(c *backendConfig) {
		c.presentHook = hook
	}
}

// NewBackend creates a backend of the given type.
//
// Parameters:
//   - backendType: the backend implementation
//   - surfaceDescriptor: the window surface, required by the wgpu backend and ignored by the software backend
//   - opts: builder options
//
// Returns:
//   - Backend: the created backend
//   - error: an error if the device could not be created
func NewBackend(backendType BackendType, surfaceDescriptor *wgpu.SurfaceDescriptor, opts ...RendererBuilderOption) (Backend, error) {
	cfg := backendConfig{
		presentMode: PresentModeUncapped,
		workers:     runtime.NumCPU(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	switch backendType {
	case BackendTypeWGPU:
		b, err := newWGPUBackend(surfaceDescriptor, cfg)
		if err != nil {
			return nil, err
		}
		return b, nil
	case BackendTypeSoftware:
		return newSoftwareBackend(cfg), nil
	}
	return nil, fmt.Errorf("unsupported backend type %s", backendType)
}
