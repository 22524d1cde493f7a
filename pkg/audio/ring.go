package audio

import "sync"

// Ring is a fixed-capacity circular store for decoded frames.
//
// Writes never block and never fail: at capacity the oldest frame is
// evicted and the overflow counter incremented. Reads on an empty ring
// return false and increment the underrun counter. Overflow and underrun
// are normal operating conditions of a real-time buffer, not errors.
//
// Ring is safe for concurrent use.
type Ring struct {
	mu        sync.Mutex
	frames    []Frame
	head      int // index of the oldest frame
	size      int // number of stored frames
	overflows uint64
	underruns uint64
}

// NewRing creates a ring with the given capacity. Capacities below 1 are
// clamped to 1.
func NewRing(capacity int) *Ring {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring{frames: make([]Frame, capacity)}
}

// Write stores f, evicting the oldest frame when full. It always succeeds.
func (r *Ring) Write(f Frame) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.size == len(r.frames) {
		// Evict the oldest entry by advancing head.
		r.frames[r.head] = f
		r.head = (r.head + 1) % len(r.frames)
		r.overflows++
		return
	}
	r.frames[(r.head+r.size)%len(r.frames)] = f
	r.size++
}

// Read removes and returns the oldest frame. The second return value is
// false when the ring is empty.
func (r *Ring) Read() (Frame, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.size == 0 {
		r.underruns++
		return Frame{}, false
	}
	f := r.frames[r.head]
	r.frames[r.head] = Frame{}
	r.head = (r.head + 1) % len(r.frames)
	r.size--
	return f, true
}

// Peek returns the oldest frame without removing it.
func (r *Ring) Peek() (Frame, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.size == 0 {
		return Frame{}, false
	}
	return r.frames[r.head], true
}

// Len returns the number of stored frames.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.size
}

// Cap returns the fixed capacity.
func (r *Ring) Cap() int {
	return len(r.frames)
}

// Empty reports whether the ring holds no frames.
func (r *Ring) Empty() bool {
	return r.Len() == 0
}

// Full reports whether the ring is at capacity.
func (r *Ring) Full() bool {
	return r.Len() == len(r.frames)
}

// Reset clears the cursors and counters without reallocating storage.
func (r *Ring) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.frames)
	r.head = 0
	r.size = 0
	r.overflows = 0
	r.underruns = 0
}

// Overflows returns the number of frames evicted by writes at capacity.
func (r *Ring) Overflows() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.overflows
}

// Underruns returns the number of reads attempted on an empty ring.
func (r *Ring) Underruns() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.underruns
}
