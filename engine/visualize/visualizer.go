package visualize

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/chromascope/engine/capture"
	"github.com/Carmen-Shannon/chromascope/engine/config"
	"github.com/Carmen-Shannon/chromascope/engine/renderer"
)

// ErrTerminated is reported by Err when the pipeline was stopped by Terminate.
var ErrTerminated = errors.New("visualizer terminated")

// Visualizer runs the capture and draw loop on its own goroutine, locked to an OS thread, until
// Terminate is called or an iteration fails.
type Visualizer struct {
	ctx    *renderer.Context
	source *capture.Duplication
	store  *config.Store
	passes []Pass
	idle   time.Duration

	stop   atomic.Bool
	frames atomic.Uint64
	once   sync.Once
	wg     sync.WaitGroup
	done   chan struct{}

	mu  sync.Mutex
	err error
}

// New creates the passes on ctx and starts the pipeline goroutine. From then on ctx and source
// belong to that goroutine until Terminate returns.
//
// Parameters:
//   - ctx: the rendering context
//   - source: the capture source
//   - store: the shared configuration, snapshotted once per iteration
//   - opts: visualizer options
//
// Returns:
//   - *Visualizer: the running visualizer
//   - error: an error if a pass could not be created
func New(ctx *renderer.Context, source *capture.Duplication, store *config.Store, opts ...VisualizerOption) (*Visualizer, error) {
	cfg := visualizerConfig{
		captureWait: capture.DefaultWait,
		idleBackoff: DefaultIdleBackoff,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	passes := cfg.passes
	if passes == nil {
		var err error
		if passes, err = NewPasses(ctx.Initializer()); err != nil {
			return nil, err
		}
	}
	source.SetWait(cfg.captureWait)
	ctx.SetTimingSink(cfg.timingSink)

	v := &Visualizer{
		ctx:    ctx,
		source: source,
		store:  store,
		passes: passes,
		idle:   cfg.idleBackoff,
		done:   make(chan struct{}),
	}
	v.wg.Add(1)
	go v.run()
	logf("pipeline started with %d passes", len(passes))
	return v, nil
}

func (v *Visualizer) run() {
	defer v.wg.Done()
	defer close(v.done)
	defer func() {
		if p := recover(); p != nil {
			v.fail(fmt.Errorf("pipeline panic: %v", p))
		}
	}()
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	for !v.stop.Load() {
		if err := v.process(); err != nil {
			v.fail(err)
			return
		}
	}
	v.fail(ErrTerminated)
}

// process runs one iteration: snapshot, capture, then record and execute a frame when the
// desktop changed.
func (v *Visualizer) process() error {
	cfg := v.store.Snapshot()

	view, ok, err := v.source.Duplicate()
	if err != nil {
		return fmt.Errorf("duplicate: %w", err)
	}
	w, h := windowSize(cfg)
	if !ok || w == 0 || h == 0 {
		time.Sleep(v.idle)
		return nil
	}

	r, err := v.ctx.CreateRenderer(w, h, cfg.ClearColor())
	if err != nil {
		return fmt.Errorf("create renderer: %w", err)
	}
	r.SetSharedSRV(view)
	for _, p := range v.passes {
		if err := p.Process(r, cfg); err != nil {
			return fmt.Errorf("%s: %w", p.Name(), err)
		}
	}
	if err := v.ctx.Execute(r); err != nil {
		return err
	}
	v.frames.Add(1)
	return nil
}

// fail records the first terminal error. Anything but ErrTerminated is logged.
func (v *Visualizer) fail(err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.err != nil {
		return
	}
	v.err = err
	if !errors.Is(err, ErrTerminated) {
		logf("pipeline stopped: %v", err)
	}
}

// Terminate stops the pipeline and waits for the current iteration, at most one capture wait
// plus one frame. It is safe to call more than once.
func (v *Visualizer) Terminate() {
	v.once.Do(func() {
		v.stop.Store(true)
		v.wg.Wait()
		logf("pipeline terminated after %d frames", v.frames.Load())
	})
}

// Done returns a channel closed once the pipeline goroutine exited.
func (v *Visualizer) Done() <-chan struct{} {
	return v.done
}

// Err returns the error that stopped the pipeline, ErrTerminated after Terminate, or nil while it runs.
func (v *Visualizer) Err() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.err
}

// Frames returns the number of frames presented so far.
func (v *Visualizer) Frames() uint64 {
	return v.frames.Load()
}
