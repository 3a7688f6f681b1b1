package gpu

// MaxTimestamps is the number of query slots of a timestamp pool.
const MaxTimestamps = 64

// TimestampPool is a set of GPU timestamp queries with a readback buffer.
type TimestampPool struct {
	Capacity int
	// Native holds the backend query set.
	Native any
}

// TimestampCursor records the labels of the queries written during one frame.
// Writes beyond the pool capacity are dropped.
type TimestampCursor struct {
	capacity int
	labels   []string
}

// NewTimestampCursor creates a cursor over a pool with the given capacity.
func NewTimestampCursor(capacity int) *TimestampCursor {
	return &TimestampCursor{capacity: capacity, labels: make([]string, 0, capacity)}
}

// Write reserves the next query slot for label.
//
// Returns:
//   - int: the query index
//   - bool: false when the pool is exhausted and the timestamp is dropped
func (c *TimestampCursor) Write(label string) (int, bool) {
	if len(c.labels) >= c.capacity {
		return -1, false
	}
	c.labels = append(c.labels, label)
	return len(c.labels) - 1, true
}

// Labels returns the labels written so far, in query order.
func (c *TimestampCursor) Labels() []string {
	return c.labels
}

// Len returns the number of queries written.
func (c *TimestampCursor) Len() int {
	return len(c.labels)
}

// Reset forgets every written label.
func (c *TimestampCursor) Reset() {
	c.labels = c.labels[:0]
}

// Timing is the GPU time elapsed between two timestamps sharing a label.
type Timing struct {
	Label  string
	Micros uint64
}

// MatchTimings pairs timestamps by label. The first occurrence of a label starts the interval, the
// second stops it, later occurrences are ignored. Labels seen only once produce no timing.
//
// Parameters:
//   - labels: the query labels in write order
//   - ticks: the resolved query values, one per label
//   - frequency: ticks per second
//
// Returns:
//   - []Timing: the intervals in the order their labels first appeared
func MatchTimings(labels []string, ticks []uint64, frequency uint64) []Timing {
	if frequency == 0 {
		return nil
	}
	n := min(len(labels), len(ticks))
	type span struct {
		start, stop uint64
		closed      bool
	}
	spans := make(map[string]*span, n)
	order := make([]string, 0, n)
	for i := 0; i < n; i++ {
		s, ok := spans[labels[i]]
		if !ok {
			spans[labels[i]] = &span{start: ticks[i]}
			order = append(order, labels[i])
			continue
		}
		if !s.closed {
			s.stop = ticks[i]
			s.closed = true
		}
	}

	out := make([]Timing, 0, len(order))
	for _, label := range order {
		s := spans[label]
		if !s.closed {
			continue
		}
		var dt uint64
		if s.stop > s.start {
			dt = s.stop - s.start
		}
		out = append(out, Timing{Label: label, Micros: dt * 1_000_000 / frequency})
	}
	return out
}
