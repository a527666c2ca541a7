// Package readback pulls GPU images and structured buffers back to host
// memory without stalling the goroutine that submits work or the goroutine
// that owns the graphics device.
//
// # Overview
//
// Every readback request is identified by a [Handle] and tracked by a small
// state machine. Work is split across two call contexts:
//
//   - Submission context (any goroutine): [Engine.SubmitImage],
//     [Engine.SubmitBuffer], [Engine.IsDone], [Engine.IsError],
//     [Engine.IsRead], [Engine.GetData], [Engine.Pop], [Engine.Dispose],
//     [Engine.Cancel].
//   - Execution context (the goroutine that owns the device):
//     [Engine.Execute], [Engine.Poll], [Engine.Collect].
//
// GPU fences are the only completion signal. Nothing in this package waits
// for the GPU: Execute only issues commands, and Poll only looks at a fence
// and returns.
//
// # Quick Start
//
//	dev, _ := wgpu.Open()              // or any device.Device
//	e := readback.New(dev)
//
//	h := e.SubmitBuffer(bufID, 1024, 0) // submission context
//	_ = e.Execute(h)                    // execution context, after the dispatch
//
//	// once per frame, execution context:
//	_ = e.Poll(h)
//
//	// submission context:
//	if e.IsDone(h) && !e.IsError(h) {
//	    data, _ := e.GetData(h)
//	    use(data)
//	    e.Pop(h)
//	}
//	e.Dispose(h)
//
// # Ownership
//
// Each queued readback owns one host buffer. [Engine.GetData] hands the
// bytes to the caller and marks the entry read, but leaves it queued; the
// caller may copy from the slice until it calls [Engine.Pop] or
// [Engine.Dispose], which return the buffer to the allocator. Calling
// GetData again on a read entry returns the same slice.
//
// # Queues
//
// A handle may be executed many times (for example once per frame). Each
// Execute appends to the handle's FIFO queue, and only the front of the
// queue is ever advanced, queried or retrieved.
//
// # Host integration
//
// [CommandStream] models the host's device command stream: submission code
// issues Execute and Poll events, and the device goroutine drains them with
// [CommandStream.Flush] or [CommandStream.Run]. [Tracker] layers callbacks
// and automatic cleanup on top, polling every live request once per
// [Tracker.Update].
package readback
