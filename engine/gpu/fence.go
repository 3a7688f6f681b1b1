package gpu

import "sync"

// Fence is a monotonically increasing counter the GPU signals when submitted work completes.
type Fence struct {
	mu        sync.Mutex
	cond      *sync.Cond
	next      uint64
	completed uint64
}

// NewFence creates a fence whose first signal value is 1.
func NewFence() *Fence {
	f := &Fence{next: 1}
	f.cond = sync.NewCond(&f.mu)
	return f
}

// Next returns the value the next submission signals and increments the counter.
func (f *Fence) Next() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	v := f.next
	f.next++
	return v
}

// Signal marks every value up to v as completed.
func (f *Fence) Signal(v uint64) {
	f.mu.Lock()
	if v > f.completed {
		f.completed = v
	}
	f.mu.Unlock()
	f.cond.Broadcast()
}

// Completed returns the highest signaled value.
func (f *Fence) Completed() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.completed
}

// Wait blocks until v has been signaled. Returns immediately when it already was.
func (f *Fence) Wait(v uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for f.completed < v {
		f.cond.Wait()
	}
}
