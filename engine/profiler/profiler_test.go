package profiler

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/Carmen-Shannon/chromascope/engine/gpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedLog struct {
	lines []string
}

func (c *capturedLog) logf(format string, args ...any) {
	c.lines = append(c.lines, fmt.Sprintf(format, args...))
}

func TestFormatTimings(t *testing.T) {
	lines := FormatTimings([]gpu.Timing{{Label: "filter", Micros: 42}, {Label: "histogram", Micros: 12345}})
	assert.Equal(t, []string{"filter\t  42us", "histogram\t12345us"}, lines)
}

func TestTickWaitsForInterval(t *testing.T) {
	out := &capturedLog{}
	p := NewProfiler(WithUpdateInterval(time.Hour), WithLogf(out.logf))
	assert.False(t, p.Tick())
	assert.Empty(t, out.lines)
}

func TestSinkReportsAveragePassTimes(t *testing.T) {
	out := &capturedLog{}
	p := NewProfiler(WithUpdateInterval(time.Hour), WithLogf(out.logf))
	sink := p.Sink()

	sink([]gpu.Timing{{Label: "filter", Micros: 10}, {Label: "grid", Micros: 4}})
	sink([]gpu.Timing{{Label: "filter", Micros: 30}})
	require.Empty(t, out.lines)

	p.updateInterval = 0
	require.True(t, p.Tick())
	require.Len(t, out.lines, 3)
	assert.True(t, strings.HasPrefix(out.lines[0], "[Profiler] FPS: "))
	assert.Equal(t, "[Profiler] filter\t  20us", out.lines[1])
	assert.Equal(t, "[Profiler] grid\t   4us", out.lines[2])

	// the averages restart with every interval
	out.lines = nil
	require.True(t, p.Tick())
	assert.Len(t, out.lines, 1)
}
