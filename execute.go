package readback

import (
	"fmt"

	"github.com/gogpu/readback/device"
	"github.com/gogpu/readback/internal/hostmem"
)

// Execute issues one readback of h's resource: it records the copy, inserts
// a fence and appends a new entry to h's queue. It returns as soon as the
// commands are issued.
//
// Setup failures (unsupported format, zero or oversized regions, device
// errors) still append an entry, already errored, so IsDone and IsError
// report them in queue order. The same error is returned. An unknown handle returns
// ErrNotFound and appends nothing.
//
// Execution context only.
func (e *Engine) Execute(h Handle) error {
	e.Collect()
	t, ok := e.lookup(h)
	if !ok {
		return ErrNotFound
	}
	return e.execute(h, t)
}

// ExecuteImage is Execute restricted to image handles. A buffer handle
// returns ErrWrongKind.
func (e *Engine) ExecuteImage(h Handle) error {
	return e.executeKind(h, KindImage)
}

// ExecuteBuffer is Execute restricted to buffer handles. An image handle
// returns ErrWrongKind.
func (e *Engine) ExecuteBuffer(h Handle) error {
	return e.executeKind(h, KindBuffer)
}

func (e *Engine) executeKind(h Handle, k Kind) error {
	e.Collect()
	t, ok := e.registryFor(k).Load(h)
	if !ok {
		if _, other := e.lookup(h); other {
			return ErrWrongKind
		}
		return ErrNotFound
	}
	return e.execute(h, t)
}

func (e *Engine) execute(h Handle, t *task) error {
	var st *subTask
	if t.kind == KindImage {
		st = e.setupImage(t)
	} else {
		st = e.setupBuffer(t)
	}

	if st.state == StateErrored {
		e.logger().Warn("readback: execute failed", "handle", h, "kind", t.kind, "err", st.err)
	} else {
		e.logger().Debug("readback: execute", "handle", h, "kind", t.kind,
			"size", st.size, "fence", st.fence)
	}
	return e.enqueue(t, st)
}

// setupImage describes the image level and issues its copy.
func (e *Engine) setupImage(t *task) *subTask {
	st := &subTask{}

	info, err := e.dev.ImageInfo(t.image, t.level)
	if err != nil {
		st.fail(fmt.Errorf("%w: image %d level %d: %w", ErrDevice, t.image, t.level, err))
		return st
	}
	st.info = info

	if !device.Transferable(info.Format) {
		st.fail(fmt.Errorf("%w: %v", ErrUnsupportedFormat, info.Format))
		return st
	}
	st.size = info.ByteSize()
	if st.size == 0 {
		st.fail(fmt.Errorf("%w: image %d level %d is %dx%dx%d",
			ErrZeroSize, t.image, t.level, info.Width, info.Height, info.Depth))
		return st
	}

	e.issue(st, func() (device.TransferID, error) {
		return e.dev.CopyImage(t.image, t.level, info)
	})
	return st
}

// setupBuffer issues the copy of the task's buffer region.
func (e *Engine) setupBuffer(t *task) *subTask {
	st := &subTask{size: t.size}
	if st.size == 0 {
		st.fail(fmt.Errorf("%w: buffer %d", ErrZeroSize, t.buffer))
		return st
	}

	e.issue(st, func() (device.TransferID, error) {
		return e.dev.CopyBuffer(t.buffer, t.offset, t.size)
	})
	return st
}

// issue records the copy, allocates the host buffer and fences it. On
// failure everything created so far is released and st is errored.
func (e *Engine) issue(st *subTask, copyFn func() (device.TransferID, error)) {
	if st.size > hostmem.MaxSize {
		st.fail(fmt.Errorf("%w: %d bytes", ErrTooLarge, st.size))
		return
	}

	tr, err := copyFn()
	if err != nil {
		st.fail(fmt.Errorf("%w: copy: %w", ErrDevice, err))
		return
	}

	block, err := e.alloc.Alloc(int(st.size))
	if err != nil {
		e.dev.ReleaseTransfer(tr)
		st.fail(fmt.Errorf("%w: %w", ErrTooLarge, err))
		return
	}
	st.block = block

	fence, err := e.dev.InsertFence()
	if err != nil {
		e.dev.ReleaseTransfer(tr)
		e.freeBlock(st)
		st.fail(fmt.Errorf("%w: fence: %w", ErrDevice, err))
		return
	}

	st.transfer = tr
	st.fence = fence
	st.setState(StatePending)
}

// enqueue appends st to t's queue. If t was disposed while the commands
// were being issued, st is discarded instead and ErrNotFound is returned.
func (e *Engine) enqueue(t *task, st *subTask) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.disposed {
		e.discard(st)
		return ErrNotFound
	}
	t.queue = append(t.queue, st)
	return st.err
}
