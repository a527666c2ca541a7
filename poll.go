package readback

import (
	"fmt"

	"github.com/gogpu/readback/device"
)

// Poll advances the front of h's queue without waiting for the GPU.
//
// Read entries at the front are freed and removed. A pending entry whose
// fence has signaled is copied to host memory and becomes done; an entry
// whose fence can no longer be queried becomes errored with
// ErrFenceInvalid. Entries behind the front are never touched, and a done
// entry that has not been read blocks the queue until it is popped.
//
// Poll is idempotent: polling a handle with nothing to advance does
// nothing. It returns ErrNotFound for unknown handles.
//
// Execution context only.
func (e *Engine) Poll(h Handle) error {
	e.Collect()
	t, ok := e.lookup(h)
	if !ok {
		return ErrNotFound
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	for {
		st := t.front()
		if st == nil {
			return nil
		}
		if st.state == StateRead {
			t.popFront()
			e.freeBlock(st)
			st.setState(StateFreed)
			continue
		}
		if st.state != StatePending || st.inflight {
			return nil
		}

		fence := st.fence
		t.mu.Unlock()
		status, err := e.dev.FenceStatus(fence)
		t.mu.Lock()

		// The entry may have been popped, canceled or disposed meanwhile.
		if st.state != StatePending {
			return nil
		}
		if err != nil {
			st.fail(fmt.Errorf("%w: fence %d: %w", ErrFenceInvalid, fence, err))
			e.logger().Warn("readback: fence invalid", "handle", h, "err", err)
			e.releaseDeviceObjects(t, st)
			return nil
		}
		if status != device.FenceSignaled {
			return nil
		}

		st.setState(StateSignaled)
		e.complete(h, t, st)
		return nil
	}
}

// complete copies a signaled transfer into st's host buffer. The task lock
// is released around the device calls; st.inflight keeps Pop, Cancel and
// Dispose from freeing the buffer underneath the copy.
// Caller must hold t.mu; it is held again on return.
func (e *Engine) complete(h Handle, t *task, st *subTask) {
	st.inflight = true
	var dst []byte
	if st.block != nil {
		dst = st.block.Bytes()
	}
	transfer, fence := st.transfer, st.fence
	t.mu.Unlock()

	readErr := e.dev.ReadTransfer(transfer, dst)
	e.dev.ReleaseTransfer(transfer)
	e.dev.ReleaseFence(fence)

	t.mu.Lock()
	st.inflight = false
	st.transfer, st.fence = device.InvalidID, device.InvalidID

	switch {
	case st.state == StateAbandoned:
		e.freeBlock(st)
		st.setState(StateFreed)
		e.logger().Debug("readback: abandoned copy dropped", "handle", h)
	case readErr != nil:
		e.freeBlock(st)
		st.fail(fmt.Errorf("%w: read transfer: %w", ErrDevice, readErr))
		e.logger().Warn("readback: read failed", "handle", h, "err", readErr)
	default:
		st.setState(StateDone)
		e.logger().Debug("readback: done", "handle", h, "size", st.size)
	}
}

// releaseDeviceObjects detaches st's transfer and fence and destroys them
// with t.mu released.
// Caller must hold t.mu; it is held again on return.
func (e *Engine) releaseDeviceObjects(t *task, st *subTask) {
	transfer, fence := st.transfer, st.fence
	st.transfer, st.fence = device.InvalidID, device.InvalidID

	t.mu.Unlock()
	defer t.mu.Lock()
	if transfer != device.InvalidID {
		e.dev.ReleaseTransfer(transfer)
	}
	if fence != device.InvalidID {
		e.dev.ReleaseFence(fence)
	}
}
