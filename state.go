package readback

import (
	"fmt"
	"slices"
)

// State is the lifecycle state of one queued readback.
//
//	Uninitialized ─┬─> Pending ──> Signaled ──> Done ──> Read ──> Freed
//	               │      │            │          │
//	               └──────┴──> Errored ┘          │
//	                      │                       │
//	                      └──> Abandoned ─────────┴──────────────> Freed
//
// Errored and Done both count as "done" for IsDone. Abandoned entries
// (canceled, popped or disposed while the GPU still owns them) never
// expose data.
type State uint8

const (
	// StateUninitialized is a readback whose commands are being issued.
	StateUninitialized State = iota

	// StatePending is a readback waiting for its fence.
	StatePending

	// StateSignaled is a readback whose fence signaled and whose bytes
	// are being copied to host memory.
	StateSignaled

	// StateDone is a readback whose bytes are ready to retrieve.
	StateDone

	// StateErrored is a readback that failed. It is terminal.
	StateErrored

	// StateRead is a readback whose bytes were handed to the caller.
	StateRead

	// StateAbandoned is a readback dropped before its fence signaled.
	StateAbandoned

	// StateFreed is a readback whose host buffer has been released.
	StateFreed
)

var stateNames = [...]string{
	StateUninitialized: "uninitialized",
	StatePending:       "pending",
	StateSignaled:      "signaled",
	StateDone:          "done",
	StateErrored:       "errored",
	StateRead:          "read",
	StateAbandoned:     "abandoned",
	StateFreed:         "freed",
}

// String returns the state name.
func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

// transitions lists the legal successors of each state.
var transitions = [...][]State{
	StateUninitialized: {StatePending, StateErrored},
	StatePending:       {StateSignaled, StateErrored, StateAbandoned},
	StateSignaled:      {StateDone, StateErrored, StateAbandoned},
	StateDone:          {StateRead, StateFreed},
	StateErrored:       {StateFreed},
	StateRead:          {StateFreed},
	StateAbandoned:     {StateFreed},
	StateFreed:         nil,
}

// CanTransition reports whether s may move to next.
func (s State) CanTransition(next State) bool {
	if int(s) >= len(transitions) {
		return false
	}
	return slices.Contains(transitions[s], next)
}

// Done reports whether the readback finished, successfully or not.
func (s State) Done() bool {
	return s == StateDone || s == StateErrored || s == StateRead
}

// Initialized reports whether the readback's commands were issued.
func (s State) Initialized() bool {
	return s != StateUninitialized
}
