package readback

import (
	"context"
	"errors"
	"sync"
)

// EventKind is the kind of a command stream event.
type EventKind uint8

const (
	// EventExecute runs Engine.Execute for the event's handle.
	EventExecute EventKind = iota + 1

	// EventPoll runs Engine.Poll for the event's handle.
	EventPoll
)

// String returns the event kind name.
func (k EventKind) String() string {
	switch k {
	case EventExecute:
		return "execute"
	case EventPoll:
		return "poll"
	default:
		return "unknown"
	}
}

// Event is one deferred engine call.
type Event struct {
	Kind   EventKind
	Handle Handle
}

// CommandStream carries Execute and Poll requests from the submission
// context to the goroutine that owns the device.
//
// Issue methods never block and never drop events. The device goroutine
// calls Flush once per frame, or runs Run for a dedicated loop. Events are
// dispatched in issue order.
//
// Thread safety: Issue methods are safe for concurrent use. Flush and Run
// must only be called from the execution context.
type CommandStream struct {
	engine *Engine

	mu     sync.Mutex
	events []Event

	// notify wakes Run. Buffered with capacity 1; extra signals coalesce.
	notify chan struct{}
}

// StreamOption configures a CommandStream.
type StreamOption func(*streamOptions)

type streamOptions struct {
	capacity int
}

// WithStreamCapacity preallocates room for n events per flush.
func WithStreamCapacity(n int) StreamOption {
	return func(o *streamOptions) {
		if n > 0 {
			o.capacity = n
		}
	}
}

// NewCommandStream creates a stream dispatching to e.
func NewCommandStream(e *Engine, opts ...StreamOption) *CommandStream {
	o := streamOptions{capacity: 16}
	for _, opt := range opts {
		opt(&o)
	}
	return &CommandStream{
		engine: e,
		events: make([]Event, 0, o.capacity),
		notify: make(chan struct{}, 1),
	}
}

// IssueExecute queues an Execute of h.
func (s *CommandStream) IssueExecute(h Handle) {
	s.issue(Event{Kind: EventExecute, Handle: h})
}

// IssuePoll queues a Poll of h.
func (s *CommandStream) IssuePoll(h Handle) {
	s.issue(Event{Kind: EventPoll, Handle: h})
}

func (s *CommandStream) issue(ev Event) {
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// Pending returns the number of events waiting for the next Flush.
func (s *CommandStream) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

// Flush dispatches every queued event and returns how many ran. Events
// issued while Flush runs wait for the next call.
//
// Execution context only.
func (s *CommandStream) Flush() int {
	s.mu.Lock()
	batch := s.events
	s.events = make([]Event, 0, cap(batch))
	s.mu.Unlock()

	for _, ev := range batch {
		s.dispatch(ev)
	}
	return len(batch)
}

func (s *CommandStream) dispatch(ev Event) {
	var err error
	switch ev.Kind {
	case EventExecute:
		err = s.engine.Execute(ev.Handle)
	case EventPoll:
		err = s.engine.Poll(ev.Handle)
	default:
		s.engine.logger().Warn("readback: unknown stream event", "kind", ev.Kind, "handle", ev.Handle)
		return
	}
	// Disposed handles are expected here: the submission side may dispose
	// between issuing and flushing.
	if errors.Is(err, ErrNotFound) {
		s.engine.logger().Debug("readback: stream event for unknown handle",
			"kind", ev.Kind, "handle", ev.Handle)
	}
}

// Run flushes the stream every time events arrive until ctx is canceled,
// then returns ctx.Err(). Events still queued at that point stay queued.
//
// Run owns the execution context while it runs.
func (s *CommandStream) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.notify:
			s.Flush()
		}
	}
}
