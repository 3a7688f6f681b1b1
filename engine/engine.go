package engine

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/Carmen-Shannon/chromascope/common"
	"github.com/Carmen-Shannon/chromascope/engine/capture"
	"github.com/Carmen-Shannon/chromascope/engine/config"
	"github.com/Carmen-Shannon/chromascope/engine/profiler"
	"github.com/Carmen-Shannon/chromascope/engine/renderer"
	"github.com/Carmen-Shannon/chromascope/engine/visualize"
	"github.com/Carmen-Shannon/chromascope/engine/window"
	"github.com/cogentcore/webgpu/wgpu"
)

// engine implements the Engine interface.
// Coordinates the UI thread (window, input, settings) with the visualizer's pipeline goroutine.
type engine struct {
	configPath  string
	backendType renderer.BackendType
	presentMode renderer.PresentMode
	source      string
	display     int
	imagePath   string

	rendererOptions   []renderer.RendererBuilderOption
	visualizerOptions []visualize.VisualizerOption

	store   *config.Store
	watcher config.Watcher

	window  window.Window
	grabber capture.Grabber
	context *renderer.Context
	dup     *capture.Duplication
	vis     *visualize.Visualizer

	profiler         *profiler.Profiler
	profilingEnabled bool

	dragging     bool
	lastX, lastY int32

	quitChannel chan struct{}
	quitOnce    sync.Once
	stopOnce    sync.Once
}

// Engine is the main entry point of chromascope.
// It owns the overlay window, the shared settings and the visualizer.
type Engine interface {
	// Window returns the overlay window, nil when running headless.
	//
	// Returns:
	//   - window.Window: the window instance
	Window() window.Window

	// Store returns the settings shared with the pipeline goroutine.
	//
	// Returns:
	//   - *config.Store: the settings store
	Store() *config.Store

	// Visualizer returns the running visualizer.
	//
	// Returns:
	//   - *visualize.Visualizer: the visualizer
	Visualizer() *visualize.Visualizer

	// Run pumps window messages on the calling thread, which must be the main thread, until the
	// window closes, Quit is called or the pipeline stops on an error. Headless engines just wait.
	// Shutdown then terminates the visualizer, saves the settings and closes the window.
	//
	// Returns:
	//   - error: the error that stopped the pipeline, nil after a regular quit
	Run() error

	// Quit asks Run to return.
	// Safe to call multiple times and from any goroutine; subsequent calls are no-ops.
	Quit()
}

// NewEngine loads the settings, opens the window and capture source, creates the rendering
// context and starts the visualizer. Options are applied directly to the engine struct via the
// option-builder pattern. Must be called from the main thread when a window is used.
//
// Parameters:
//   - options: functional options for engine configuration (backend, capture source, profiling, etc.)
//
// Returns:
//   - Engine: the newly created engine
//   - error: an error if any part could not be created, everything created so far is released
func NewEngine(options ...EngineBuilderOption) (Engine, error) {
	e := &engine{
		configPath:  DefaultConfigPath,
		backendType: renderer.BackendTypeWGPU,
		presentMode: renderer.PresentModeUncapped,
		source:      string(capture.SourceDXGI),
		quitChannel: make(chan struct{}),
	}
	for _, opt := range options {
		opt(e)
	}

	if err := e.init(); err != nil {
		e.shutdown()
		return nil, err
	}
	return e, nil
}

func (e *engine) init() error {
	cfg, err := config.Load(e.configPath)
	if err != nil {
		log.Printf("[Config] using defaults: %v", err)
	}
	e.store = config.NewStore(cfg)

	e.watcher, err = config.NewWatcher(e.configPath, e.store)
	if err != nil {
		log.Printf("[Config] settings are not watched: %v", err)
	}

	if e.backendType == renderer.BackendTypeWGPU && e.window == nil {
		r := cfg.WindowRect
		e.window, err = window.NewWindow(
			window.WithTitle("chromascope"),
			window.WithPosition(int(r.X), int(r.Y)),
			window.WithWidth(int(r.Width)),
			window.WithHeight(int(r.Height)),
			window.WithTransparent(!cfg.EnableColorCloud),
		)
		if err != nil {
			return err
		}
	}
	if e.window != nil {
		e.bindWindow()
	}

	if e.grabber == nil {
		if e.grabber, err = e.openGrabber(); err != nil {
			return err
		}
	}

	opts := append([]renderer.RendererBuilderOption{renderer.WithPresentMode(e.presentMode)}, e.rendererOptions...)
	backend, err := renderer.NewBackend(e.backendType, e.surface(), opts...)
	if err != nil {
		return fmt.Errorf("failed to create %s backend: %w", e.backendType, err)
	}
	if e.context, err = renderer.NewContext(backend); err != nil {
		backend.Release()
		return err
	}
	if e.dup, err = capture.NewDuplication(e.context.Initializer(), e.grabber); err != nil {
		return err
	}

	visOpts := e.visualizerOptions
	if e.profilingEnabled {
		e.profiler = profiler.NewProfiler()
		visOpts = append([]visualize.VisualizerOption{visualize.WithTimingSink(e.profiler.Sink())}, visOpts...)
	}
	e.vis, err = visualize.New(e.context, e.dup, e.store, visOpts...)
	return err
}

func (e *engine) openGrabber() (capture.Grabber, error) {
	if e.imagePath != "" {
		g, err := capture.LoadImage(e.imagePath)
		if err != nil {
			return nil, err
		}
		return g, nil
	}
	return capture.Open(e.source, e.display)
}

func (e *engine) surface() *wgpu.SurfaceDescriptor {
	if e.window == nil {
		return nil
	}
	return e.window.SurfaceDescriptor()
}

// bindWindow routes window input into the settings store.
func (e *engine) bindWindow() {
	w := e.window
	x, y := w.Position()
	e.store.Update(func(c *config.Config) {
		c.WindowRect = common.NewRect(int32(x), int32(y), int32(w.Width()), int32(w.Height()))
	})

	w.SetKeyDownCallback(func(key uint32) {
		e.store.Update(func(c *config.Config) { ApplyKey(c, key) })
	})
	w.SetScrollCallback(func(delta float32) {
		e.store.Update(func(c *config.Config) { ApplyScroll(c, delta) })
	})
	w.SetLeftMouseDownCallback(func(x, y int32) {
		e.dragging = true
		e.lastX, e.lastY = x, y
	})
	w.SetLeftMouseUpCallback(func(x, y int32) {
		e.dragging = false
	})
	w.SetMouseMoveCallback(func(x, y int32) {
		if !e.dragging {
			return
		}
		dx, dy := x-e.lastX, y-e.lastY
		e.lastX, e.lastY = x, y
		e.store.Update(func(c *config.Config) { ApplyDrag(c, dx, dy) })
	})
	w.SetMoveCallback(func(x, y int) {
		e.store.Update(func(c *config.Config) {
			c.WindowRect.X = int32(x)
			c.WindowRect.Y = int32(y)
		})
	})
	w.SetResizeCallback(func(width, height int) {
		e.store.Update(func(c *config.Config) {
			c.WindowRect.Width = int32(width)
			c.WindowRect.Height = int32(height)
		})
	})
}

func (e *engine) Window() window.Window {
	return e.window
}

func (e *engine) Store() *config.Store {
	return e.store
}

func (e *engine) Visualizer() *visualize.Visualizer {
	return e.vis
}

func (e *engine) Run() error {
	if e.window == nil {
		select {
		case <-e.quitChannel:
		case <-e.vis.Done():
		}
		return e.shutdown()
	}

	// The color cloud decides the window frame, whether toggled by key or by a reloaded file.
	updates, cancel := e.store.Subscribe()
	defer cancel()
	e.window.SetUpdateCallback(func() {
		select {
		case cfg := <-updates:
			e.window.SetTransparent(!cfg.EnableColorCloud)
		default:
		}
		select {
		case <-e.quitChannel:
			e.window.RequestClose()
		case <-e.vis.Done():
			e.window.RequestClose()
		default:
		}
	})
	e.window.ProcessMessages()
	return e.shutdown()
}

// Quit signals Run to return.
// Safe to call multiple times; subsequent calls are no-ops due to sync.Once.
func (e *engine) Quit() {
	e.quitOnce.Do(func() {
		close(e.quitChannel)
	})
}

// shutdown releases everything in reverse creation order. The visualizer is terminated before
// the context and capture source it borrows.
func (e *engine) shutdown() error {
	var runErr error
	e.stopOnce.Do(func() {
		if e.vis != nil {
			e.vis.Terminate()
			if err := e.vis.Err(); err != nil && !errors.Is(err, visualize.ErrTerminated) {
				runErr = err
			}
		}
		if e.watcher != nil {
			if err := e.watcher.Close(); err != nil {
				log.Printf("[Config] %v", err)
			}
		}
		if e.store != nil {
			if err := config.Save(e.configPath, e.store.Snapshot()); err != nil {
				log.Printf("[Config] %v", err)
			}
		}
		if e.dup != nil {
			e.dup.Close()
		} else if e.grabber != nil {
			e.grabber.Close()
		}
		if e.context != nil {
			e.context.Release()
		}
		if e.window != nil {
			e.window.Close()
		}
	})
	return runErr
}
