package wgpu

import "errors"

var (
	// ErrNoAdapter is returned by Open when no GPU adapter is available.
	ErrNoAdapter = errors.New("wgpu: no GPU adapter found")

	// ErrNoHAL is returned by NewFromProvider when the provider does not
	// expose HAL device and queue.
	ErrNoHAL = errors.New("wgpu: provider does not expose HAL types")

	// ErrOutOfRange is returned when a buffer region exceeds the buffer.
	ErrOutOfRange = errors.New("wgpu: region out of range")

	// ErrMisaligned is returned for buffer offsets that are not a multiple
	// of 4 bytes.
	ErrMisaligned = errors.New("wgpu: misaligned buffer offset")
)
