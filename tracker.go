package readback

import (
	"bytes"
	"sync"

	"github.com/gogpu/readback/device"
)

// Tracker manages one-shot readback requests with completion callbacks.
//
// Each request submits a handle and issues its Execute on a CommandStream.
// Update, called once per frame from the submission side, issues a Poll for
// every request still in flight and finishes the ones whose readback is
// done: the bytes are copied out, the callback runs, and the queue entry is
// popped.
//
// Thread safety: All methods are safe for concurrent use. Callbacks run on
// the goroutine calling Update.
type Tracker struct {
	engine *Engine
	stream *CommandStream

	autoDispose bool

	mu       sync.Mutex
	requests map[Handle]*Request
}

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker)

// WithAutoDispose disposes each request's handle right after its callback
// runs. Data stays available on the Request.
func WithAutoDispose(on bool) TrackerOption {
	return func(t *Tracker) {
		t.autoDispose = on
	}
}

// NewTracker creates a tracker submitting to e and dispatching through s.
func NewTracker(e *Engine, s *CommandStream, opts ...TrackerOption) *Tracker {
	t := &Tracker{
		engine:   e,
		stream:   s,
		requests: make(map[Handle]*Request),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// RequestImage reads back one mip level of img. cb, if not nil, runs from
// Update once the request finished.
func (t *Tracker) RequestImage(img device.ImageID, level int, cb func(*Request)) *Request {
	h := t.engine.SubmitImage(img, level)
	return t.start(h, KindImage, cb)
}

// RequestBuffer reads back size bytes at offset of buf. cb, if not nil,
// runs from Update once the request finished.
func (t *Tracker) RequestBuffer(buf device.BufferID, size, offset uint64, cb func(*Request)) *Request {
	h := t.engine.SubmitBuffer(buf, size, offset)
	return t.start(h, KindBuffer, cb)
}

func (t *Tracker) start(h Handle, k Kind, cb func(*Request)) *Request {
	r := &Request{tracker: t, handle: h, kind: k, callback: cb}

	t.mu.Lock()
	t.requests[h] = r
	t.mu.Unlock()

	t.stream.IssueExecute(h)
	return r
}

// Len returns the number of live requests.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.requests)
}

// Update finishes completed requests and issues a Poll for the rest. It
// returns the number of requests finished by this call.
func (t *Tracker) Update() int {
	t.mu.Lock()
	live := make([]*Request, 0, len(t.requests))
	for _, r := range t.requests {
		live = append(live, r)
	}
	t.mu.Unlock()

	finished := 0
	for _, r := range live {
		if r.Done() {
			continue
		}
		if !t.engine.IsDone(r.handle) {
			t.stream.IssuePoll(r.handle)
			continue
		}
		t.finish(r)
		finished++
	}
	return finished
}

// finish records the outcome of r's readback, runs its callback and pops
// the queue entry.
func (t *Tracker) finish(r *Request) {
	var (
		data []byte
		err  error
	)
	if t.engine.IsError(r.handle) {
		err = t.engine.Err(r.handle)
	} else if b, ok := t.engine.GetData(r.handle); ok {
		data = bytes.Clone(b)
	}
	t.engine.Pop(r.handle)

	r.mu.Lock()
	r.done = true
	r.err = err
	r.data = data
	cb := r.callback
	r.mu.Unlock()

	if cb != nil {
		cb(r)
	}
	if t.autoDispose {
		r.Dispose()
	}
}

// forget drops r from the tracker and disposes its handle.
func (t *Tracker) forget(r *Request) {
	t.mu.Lock()
	_, ok := t.requests[r.handle]
	delete(t.requests, r.handle)
	t.mu.Unlock()

	if ok {
		t.engine.Dispose(r.handle)
	}
}

// Request is a single tracked readback.
type Request struct {
	tracker  *Tracker
	handle   Handle
	kind     Kind
	callback func(*Request)

	mu   sync.Mutex
	done bool
	err  error
	data []byte
}

// Handle returns the engine handle of the request.
func (r *Request) Handle() Handle { return r.handle }

// Kind returns the resource kind of the request.
func (r *Request) Kind() Kind { return r.kind }

// Done reports whether the readback finished, successfully or not.
func (r *Request) Done() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.done
}

// HasError reports whether the readback failed.
func (r *Request) HasError() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err != nil
}

// Err returns the failure cause, or nil.
func (r *Request) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Data returns the read back bytes, or nil if the request is not done or
// failed. The slice belongs to the request and stays valid after Dispose.
func (r *Request) Data() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.data
}

// Dispose stops tracking the request and releases its handle. Disposing a
// request still in flight abandons its readback.
func (r *Request) Dispose() {
	r.tracker.forget(r)
}
