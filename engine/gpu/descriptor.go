package gpu

import (
	"fmt"
	"sync"
)

// DescriptorHeap is a fixed size table of persistent descriptors. Slots are handed out once with
// Next and may be rewritten with Write, e.g. when the capture texture is recreated.
type DescriptorHeap struct {
	mu    sync.Mutex
	slots []Descriptor
	next  int
}

// NewDescriptorHeap creates a heap with the given number of slots.
func NewDescriptorHeap(capacity int) *DescriptorHeap {
	return &DescriptorHeap{slots: make([]Descriptor, capacity)}
}

// Capacity returns the number of slots of the heap.
func (h *DescriptorHeap) Capacity() int {
	return len(h.slots)
}

// Len returns the number of allocated slots.
func (h *DescriptorHeap) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.next
}

// Next allocates the next free slot.
//
// Returns:
//   - int: the slot index
//   - error: a ResourceError when the heap is full
func (h *DescriptorHeap) Next() (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.next >= len(h.slots) {
		return -1, NewResourceError("allocate descriptor", fmt.Errorf("heap of %d slots is full", len(h.slots)))
	}
	slot := h.next
	h.next++
	return slot, nil
}

// Write stores d in an allocated slot.
func (h *DescriptorHeap) Write(slot int, d Descriptor) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if slot < 0 || slot >= h.next {
		return NewResourceError("write descriptor", fmt.Errorf("slot %d not allocated", slot))
	}
	d.Slot = slot
	h.slots[slot] = d
	return nil
}

// Get returns the descriptor stored in slot.
func (h *DescriptorHeap) Get(slot int) Descriptor {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.slots[slot]
}

// DescriptorTable is a contiguous run of descriptors copied into the per-frame arena.
type DescriptorTable struct {
	Base        int
	Descriptors []Descriptor
}

// Len returns the number of descriptors in the table.
func (t DescriptorTable) Len() int {
	return len(t.Descriptors)
}

// DescriptorArena is the shader visible bump allocator descriptors are copied into each frame.
// Reset rewinds it at the start of a frame. Running out of space is a programming error and panics.
type DescriptorArena struct {
	slots []Descriptor
	next  int
}

// NewDescriptorArena creates an arena with the given number of slots.
func NewDescriptorArena(capacity int) *DescriptorArena {
	return &DescriptorArena{slots: make([]Descriptor, capacity)}
}

// Reset rewinds the arena. Tables handed out earlier must no longer be used.
func (a *DescriptorArena) Reset() {
	clear(a.slots[:a.next])
	a.next = 0
}

// Len returns the number of slots used this frame.
func (a *DescriptorArena) Len() int {
	return a.next
}

// Copy copies descriptors into consecutive arena slots.
//
// Parameters:
//   - ds: the descriptors to copy
//
// Returns:
//   - DescriptorTable: the table referencing the copied descriptors
func (a *DescriptorArena) Copy(ds ...Descriptor) DescriptorTable {
	if a.next+len(ds) > len(a.slots) {
		panic("too many descriptors")
	}
	base := a.next
	copy(a.slots[base:], ds)
	a.next += len(ds)
	return DescriptorTable{Base: base, Descriptors: a.slots[base:a.next:a.next]}
}
