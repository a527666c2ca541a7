// Package device defines the boundary between the readback engine and a
// graphics backend.
//
// The engine never talks to a GPU API directly. Everything it needs from
// the execution context is expressed by the [Device] interface: describing
// an image level, recording a copy of an image or buffer region into a
// transfer object, inserting and querying fences, and copying a finished
// transfer into host memory.
//
// # Resource IDs
//
// Images, buffers, transfers and fences are opaque uint64 IDs. Each backend
// keeps its own mapping from IDs to native objects, the same way gpucore
// adapters map IDs to HAL resources. The zero ID is always invalid.
//
// # Threading
//
// A Device is only ever called from the execution context, one goroutine at
// a time. Implementations may still guard their ID tables with a mutex so
// that hosts can register resources from other goroutines.
//
// # Formats
//
// [BytesPerPixel] and [Transferable] translate a gputypes.TextureFormat into
// the host representation used by readback. Formats without a fixed texel
// size (depth/stencil, compressed) are not transferable.
package device
