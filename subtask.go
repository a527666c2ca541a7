package readback

import (
	"fmt"

	"github.com/gogpu/readback/device"
	"github.com/gogpu/readback/internal/hostmem"
)

// subTask is one discrete readback: the objects of a single Execute call
// and its completion state. All fields are guarded by the owning task's mu.
type subTask struct {
	state State
	err   error

	block    *hostmem.Block
	size     uint64
	transfer device.TransferID
	fence    device.FenceID

	// info is the described image level (image readbacks only).
	info device.ImageInfo

	// inflight is set while Poll copies into block with the lock released.
	inflight bool
}

// setState moves the subtask to next. Illegal transitions are programming
// errors in this package and panic.
func (st *subTask) setState(next State) {
	if !st.state.CanTransition(next) {
		panic(fmt.Sprintf("readback: illegal state transition %v -> %v", st.state, next))
	}
	st.state = next
}

// fail records err and marks the subtask errored.
func (st *subTask) fail(err error) {
	st.err = err
	st.setState(StateErrored)
}

// hasDeviceObjects reports whether a transfer or fence is still owned.
func (st *subTask) hasDeviceObjects() bool {
	return st.transfer != device.InvalidID || st.fence != device.InvalidID
}
