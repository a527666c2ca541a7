package readback

import (
	"log/slog"
	"sync"

	"github.com/gogpu/readback/device"
	"github.com/gogpu/readback/internal/hostmem"
	"github.com/gogpu/readback/internal/registry"
)

// Engine tracks readback requests for one device.
//
// Submission methods and queries may be called from any goroutine. Execute,
// Poll and Collect must be called from the goroutine that owns the device
// (the execution context); the engine never calls the device from anywhere
// else.
type Engine struct {
	dev   device.Device
	alloc hostmem.Allocator
	log   *slog.Logger

	images  *registry.Map[Handle, *task]
	buffers *registry.Map[Handle, *task]

	orphanMu sync.Mutex
	orphans  []orphan
}

// orphan holds the device objects of an abandoned readback until its fence
// allows releasing them.
type orphan struct {
	transfer device.TransferID
	fence    device.FenceID
}

// New creates an engine for dev.
func New(dev device.Device, opts ...Option) *Engine {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.alloc == nil {
		o.alloc = hostmem.NewPool(o.poolLimit)
	}

	e := &Engine{
		dev:     dev,
		alloc:   o.alloc,
		log:     o.logger,
		images:  registry.New[Handle, *task](),
		buffers: registry.New[Handle, *task](),
	}
	if o.logger != nil {
		propagateLogger(dev, o.logger)
	}

	caps := dev.Capabilities()
	e.logger().Info("readback: engine created",
		"device", caps.Name,
		"image", caps.ImageReadback,
		"buffer", caps.BufferReadback)
	return e
}

// logger returns the engine logger, falling back to the package logger.
func (e *Engine) logger() *slog.Logger {
	if e.log != nil {
		return e.log
	}
	return Logger()
}

// SupportsImageReadback reports whether the device can read back images.
func (e *Engine) SupportsImageReadback() bool {
	return e.dev.Capabilities().ImageReadback
}

// SupportsBufferReadback reports whether the device can read back
// structured buffers.
func (e *Engine) SupportsBufferReadback() bool {
	return e.dev.Capabilities().BufferReadback
}

// lookup finds the task for h in either registry.
func (e *Engine) lookup(h Handle) (*task, bool) {
	if t, ok := e.images.Load(h); ok {
		return t, true
	}
	return e.buffers.Load(h)
}

// registryFor returns the registry holding tasks of kind k.
func (e *Engine) registryFor(k Kind) *registry.Map[Handle, *task] {
	if k == KindImage {
		return e.images
	}
	return e.buffers
}

// freeBlock returns the subtask's host buffer to the allocator, if any.
func (e *Engine) freeBlock(st *subTask) {
	if st.block == nil {
		return
	}
	if err := e.alloc.Free(st.block); err != nil {
		e.logger().Warn("readback: host buffer release failed",
			"block", st.block.ID(), "err", err)
	}
	st.block = nil
}

// discard drops a subtask that was removed from its queue. Entries still
// owned by the GPU are abandoned: their device objects become orphans. An
// entry that Poll is copying into is left for Poll to free.
// Caller must hold the owning task's mu.
func (e *Engine) discard(st *subTask) {
	switch st.state {
	case StatePending, StateSignaled:
		st.setState(StateAbandoned)
	case StateFreed, StateAbandoned:
		return
	}
	if st.inflight {
		return
	}
	e.freeBlock(st)
	if st.hasDeviceObjects() {
		e.addOrphan(st.transfer, st.fence)
		st.transfer, st.fence = device.InvalidID, device.InvalidID
	}
	if st.state == StateUninitialized {
		// Never issued; treat as a failed setup.
		st.setState(StateErrored)
	}
	st.setState(StateFreed)
}

// addOrphan queues device objects for release by the execution context.
func (e *Engine) addOrphan(t device.TransferID, f device.FenceID) {
	e.orphanMu.Lock()
	e.orphans = append(e.orphans, orphan{transfer: t, fence: f})
	e.orphanMu.Unlock()
}

// Orphans returns the number of abandoned readbacks whose device objects
// are still waiting for release.
func (e *Engine) Orphans() int {
	e.orphanMu.Lock()
	defer e.orphanMu.Unlock()
	return len(e.orphans)
}

// Collect releases the device objects of abandoned readbacks whose fences
// have signaled or become invalid. It returns the number released.
//
// Execution context only. Execute and Poll call it implicitly.
func (e *Engine) Collect() int {
	e.orphanMu.Lock()
	pending := e.orphans
	e.orphans = nil
	e.orphanMu.Unlock()

	if len(pending) == 0 {
		return 0
	}

	var keep []orphan
	released := 0
	for _, o := range pending {
		if o.fence != device.InvalidID {
			status, err := e.dev.FenceStatus(o.fence)
			if err == nil && status != device.FenceSignaled {
				keep = append(keep, o)
				continue
			}
			e.dev.ReleaseFence(o.fence)
		}
		if o.transfer != device.InvalidID {
			e.dev.ReleaseTransfer(o.transfer)
		}
		released++
	}

	if len(keep) > 0 {
		e.orphanMu.Lock()
		e.orphans = append(keep, e.orphans...)
		e.orphanMu.Unlock()
	}
	if released > 0 {
		e.logger().Debug("readback: orphans released", "count", released, "remaining", len(keep))
	}
	return released
}
