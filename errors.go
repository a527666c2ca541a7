package readback

import "errors"

// Readback errors.
//
// Failures of a single readback never abort the process: they put the
// front entry of the handle's queue into the errored state, observable via
// IsError and Err. Registry misses are reported as ErrNotFound or as
// false/empty results.
var (
	// ErrUnsupportedFormat is returned when an image's format has no host
	// representation (depth/stencil, compressed, undefined).
	ErrUnsupportedFormat = errors.New("readback: unsupported image format")

	// ErrZeroSize is returned when the computed byte size of an image
	// level is zero.
	ErrZeroSize = errors.New("readback: resource has zero size")

	// ErrTooLarge is returned when a readback does not fit in a single host
	// buffer.
	ErrTooLarge = errors.New("readback: resource too large for host memory")

	// ErrFenceInvalid is returned when a fence query fails, which signals a
	// lost device or context.
	ErrFenceInvalid = errors.New("readback: fence query failed")

	// ErrNotFound is returned for unknown, stale or disposed handles.
	ErrNotFound = errors.New("readback: handle not found")

	// ErrDevice wraps a device failure while issuing or completing a copy.
	ErrDevice = errors.New("readback: device error")

	// ErrWrongKind is returned when an image handle is executed as a
	// buffer or the other way round.
	ErrWrongKind = errors.New("readback: handle is of a different kind")
)
