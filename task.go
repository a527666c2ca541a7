package readback

import (
	"sync"

	"github.com/gogpu/readback/device"
)

// task is one logical resource and its FIFO queue of readbacks.
type task struct {
	kind Kind

	// Image source.
	image device.ImageID
	level int

	// Buffer source.
	buffer device.BufferID
	size   uint64
	offset uint64

	mu       sync.Mutex
	queue    []*subTask
	disposed bool
}

// front returns the oldest queued readback, or nil.
// Caller must hold t.mu.
func (t *task) front() *subTask {
	if len(t.queue) == 0 {
		return nil
	}
	return t.queue[0]
}

// popFront removes and returns the oldest queued readback, or nil.
// Caller must hold t.mu.
func (t *task) popFront() *subTask {
	if len(t.queue) == 0 {
		return nil
	}
	st := t.queue[0]
	t.queue[0] = nil
	t.queue = t.queue[1:]
	if len(t.queue) == 0 {
		t.queue = nil
	}
	return st
}

// frontState returns the state of the front readback.
func (t *task) frontState() (State, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	st := t.front()
	if st == nil {
		return StateUninitialized, false
	}
	return st.state, true
}
