package readback

import "github.com/gogpu/readback/internal/registry"

// GetData returns the bytes of h's front readback and marks it read. The
// entry stays queued: the slice is valid until Pop, Dispose or a Poll that
// drains read entries returns the buffer to the pool. Calling GetData again
// on a read entry returns the same slice.
//
// ok is false when the front is not done, failed, the queue is empty or the
// handle is unknown.
func (e *Engine) GetData(h Handle) (data []byte, ok bool) {
	t, found := e.lookup(h)
	if !found {
		return nil, false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	st := t.front()
	if st == nil || st.block == nil {
		return nil, false
	}
	switch st.state {
	case StateDone:
		st.setState(StateRead)
		return st.block.Bytes(), true
	case StateRead:
		return st.block.Bytes(), true
	default:
		return nil, false
	}
}

// Pop removes the front readback of h, whatever its state, and returns its
// host buffer to the pool. A readback the GPU has not finished is abandoned;
// its device objects are released later by the execution context. Pop
// reports whether anything was removed.
func (e *Engine) Pop(h Handle) bool {
	t, ok := e.lookup(h)
	if !ok {
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	st := t.popFront()
	if st == nil {
		return false
	}
	e.discard(st)
	return true
}

// Cancel abandons every queued readback of h and returns how many were
// removed. The handle stays valid and can be executed again. Abandoned
// readbacks never expose data.
func (e *Engine) Cancel(h Handle) int {
	t, ok := e.lookup(h)
	if !ok {
		return 0
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	return e.drain(t)
}

// Dispose drains h's queue, freeing every host buffer, and forgets the
// handle. Afterwards every call with h behaves as for an unknown handle.
// Dispose reports whether h was known.
func (e *Engine) Dispose(h Handle) bool {
	t, ok := e.lookup(h)
	if !ok {
		return false
	}

	t.mu.Lock()
	t.disposed = true
	n := e.drain(t)
	t.mu.Unlock()

	if !e.registryFor(t.kind).Delete(h) {
		return false
	}
	e.logger().Debug("readback: disposed", "handle", h, "dropped", n)
	return true
}

// DisposeAll disposes every live handle of both kinds and returns how many
// were disposed.
func (e *Engine) DisposeAll() int {
	n := 0
	for _, reg := range []*registry.Map[Handle, *task]{e.images, e.buffers} {
		reg.Range(func(h Handle, _ *task) bool {
			if e.Dispose(h) {
				n++
			}
			return true
		})
	}
	return n
}

// drain discards the whole queue of t.
// Caller must hold t.mu.
func (e *Engine) drain(t *task) int {
	n := len(t.queue)
	for st := t.popFront(); st != nil; st = t.popFront() {
		e.discard(st)
	}
	return n
}
