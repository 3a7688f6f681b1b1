package profiler

import (
	"fmt"
	"log"
	"runtime"
	"sync"
	"time"

	"github.com/Carmen-Shannon/chromascope/engine/gpu"
)

// Profiler tracks frame rate, memory statistics and GPU pass timings.
// Outputs stats to the log at a configurable interval.
type Profiler struct {
	mu sync.Mutex

	frameCount     int
	lastTime       time.Time
	updateInterval time.Duration
	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64

	// passes accumulates GPU time per label over the current interval, in first-seen order.
	passes []passTotal

	logf func(format string, args ...any)
}

type passTotal struct {
	label  string
	micros uint64
	count  uint64
}

// NewProfiler creates a new Profiler.
// Update interval defaults to 1 second and output goes to the standard logger.
//
// Parameters:
//   - options: functional options for the profiler
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler(options ...ProfilerBuilderOption) *Profiler {
	p := &Profiler{
		lastTime:       time.Now(),
		updateInterval: time.Second,
		logf:           log.Printf,
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

// Record adds the GPU timings of one frame to the running averages.
//
// Parameters:
//   - timings: the per-pass timings of a frame
func (p *Profiler) Record(timings []gpu.Timing) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, t := range timings {
		i := p.indexOf(t.Label)
		if i < 0 {
			p.passes = append(p.passes, passTotal{label: t.Label})
			i = len(p.passes) - 1
		}
		p.passes[i].micros += t.Micros
		p.passes[i].count++
	}
}

func (p *Profiler) indexOf(label string) int {
	for i := range p.passes {
		if p.passes[i].label == label {
			return i
		}
	}
	return -1
}

// Sink returns a timing receiver for renderer.Context.SetTimingSink that records the timings and
// ticks the frame counter.
//
// Returns:
//   - func([]gpu.Timing): the sink
func (p *Profiler) Sink() func([]gpu.Timing) {
	return func(timings []gpu.Timing) {
		p.Record(timings)
		p.Tick()
	}
}

// Tick should be called once per frame to track frame timing.
// Logs performance statistics when the update interval has elapsed.
// Statistics include: FPS, heap usage, allocation rate, GC count/pause times, total memory,
// followed by the average GPU time of every pass.
//
// Returns:
//   - bool: true if stats were logged this tick, false otherwise
func (p *Profiler) Tick() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.frameCount++
	currentTime := time.Now()
	elapsed := currentTime.Sub(p.lastTime)
	if elapsed < p.updateInterval {
		return false
	}
	seconds := elapsed.Seconds()
	if seconds <= 0 {
		seconds = 1e-9
	}
	fps := float64(p.frameCount) / seconds

	runtime.ReadMemStats(&p.memStats)
	// Alloc: Bytes of allocated heap objects (live memory)
	// TotalAlloc: Cumulative bytes allocated for heap objects (increases forever, tracks churn)
	// Sys: Total bytes of memory obtained from the OS (actual process footprint)
	allocMB := float64(p.memStats.Alloc) / 1024 / 1024
	sysMB := float64(p.memStats.Sys) / 1024 / 1024
	allocDelta := p.memStats.TotalAlloc - p.lastTotalAlloc
	allocRateMB := float64(allocDelta) / 1024 / 1024 / seconds

	gcCount := p.memStats.NumGC
	var lastPauseUs, maxPauseUs uint64
	if gcCount > 0 {
		// PauseNs is a circular buffer of last 256 GC pauses
		lastPauseUs = p.memStats.PauseNs[(gcCount-1)%256] / 1000

		startIdx := p.lastGCCount
		if gcCount-startIdx > 256 {
			startIdx = gcCount - 256
		}
		for i := startIdx; i < gcCount; i++ {
			pause := p.memStats.PauseNs[i%256] / 1000
			if pause > maxPauseUs {
				maxPauseUs = pause
			}
		}
	}

	p.logf("[Profiler] FPS: %.2f | Heap: %.2f MB | Alloc Rate: %.2f MB/s | GC: %d (last: %d µs, max: %d µs) | Sys: %.2f MB",
		fps, allocMB, allocRateMB, gcCount, lastPauseUs, maxPauseUs, sysMB)
	for _, line := range p.averages() {
		p.logf("[Profiler] %s", line)
	}

	p.frameCount = 0
	p.lastTime = currentTime
	p.lastGCCount = gcCount
	p.lastTotalAlloc = p.memStats.TotalAlloc
	p.passes = p.passes[:0]
	return true
}

func (p *Profiler) averages() []string {
	avg := make([]gpu.Timing, 0, len(p.passes))
	for _, t := range p.passes {
		avg = append(avg, gpu.Timing{Label: t.label, Micros: t.micros / t.count})
	}
	return FormatTimings(avg)
}

// FormatTimings renders one line per timing as the label, a tab and the microseconds
// right-aligned to four digits.
//
// Parameters:
//   - timings: the timings to format
//
// Returns:
//   - []string: the formatted lines
func FormatTimings(timings []gpu.Timing) []string {
	lines := make([]string, len(timings))
	for i, t := range timings {
		lines[i] = fmt.Sprintf("%s\t%4dus", t.Label, t.Micros)
	}
	return lines
}
