package readback

import (
	"strconv"
	"sync/atomic"
)

// Handle identifies one outstanding readback request.
//
// Handles are unique for the lifetime of the process, shared by image and
// buffer requests, and never reused. The zero Handle is invalid.
type Handle uint64

// InvalidHandle is the zero Handle.
const InvalidHandle Handle = 0

// nextHandle is the last handle issued. Process-wide so that handles from
// different engines never collide in host-side event queues.
var nextHandle atomic.Uint64

// newHandle returns the next handle, starting at 1.
func newHandle() Handle {
	return Handle(nextHandle.Add(1))
}

// String returns the decimal handle value.
func (h Handle) String() string {
	return strconv.FormatUint(uint64(h), 10)
}

// Kind is the resource kind a handle reads back.
type Kind uint8

const (
	// KindImage reads back one mip level of an image.
	KindImage Kind = iota + 1

	// KindBuffer reads back a region of a structured buffer.
	KindBuffer
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindBuffer:
		return "buffer"
	default:
		return "unknown"
	}
}
