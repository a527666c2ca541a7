package readback

import "slices"

// IsDone reports whether the front readback of h has finished, successfully
// or not. Unknown handles and empty queues report false.
func (e *Engine) IsDone(h Handle) bool {
	s, ok := e.Status(h)
	return ok && s.Done()
}

// IsError reports whether the front readback of h failed. Check it whenever
// IsDone is true, before trusting any data.
func (e *Engine) IsError(h Handle) bool {
	s, ok := e.Status(h)
	return ok && s == StateErrored
}

// IsRead reports whether the front readback's data was handed out by
// GetData.
func (e *Engine) IsRead(h Handle) bool {
	s, ok := e.Status(h)
	return ok && s == StateRead
}

// Status returns the state of the front readback of h. ok is false for
// unknown handles and empty queues.
func (e *Engine) Status(h Handle) (s State, ok bool) {
	t, found := e.lookup(h)
	if !found {
		return StateUninitialized, false
	}
	return t.frontState()
}

// Err returns the failure cause of the front readback of h, or nil if it
// has not failed. Unknown handles return ErrNotFound.
func (e *Engine) Err(h Handle) error {
	t, ok := e.lookup(h)
	if !ok {
		return ErrNotFound
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if st := t.front(); st != nil && st.state == StateErrored {
		return st.err
	}
	return nil
}

// Len returns the number of queued readbacks for h, or 0 for unknown
// handles.
func (e *Engine) Len(h Handle) int {
	t, ok := e.lookup(h)
	if !ok {
		return 0
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.queue)
}

// Kind returns the resource kind of h.
func (e *Engine) Kind(h Handle) (Kind, bool) {
	t, ok := e.lookup(h)
	if !ok {
		return 0, false
	}
	return t.kind, true
}

// Count returns the number of live handles of both kinds.
func (e *Engine) Count() int {
	return e.images.Len() + e.buffers.Len()
}

// Handles returns the live handles in ascending order.
func (e *Engine) Handles() []Handle {
	hs := append(e.images.Keys(), e.buffers.Keys()...)
	slices.Sort(hs)
	return hs
}
