package device

import (
	"errors"

	"github.com/gogpu/gputypes"
)

// ImageID identifies a device image (texture).
type ImageID uint64

// BufferID identifies a device structured buffer.
type BufferID uint64

// TransferID identifies the transient objects a backend creates to stage
// one copy (for images: a framebuffer and pixel-transfer buffer, or a
// staging buffer).
type TransferID uint64

// FenceID identifies a completion fence.
type FenceID uint64

// InvalidID is the zero value, representing an invalid/null resource.
const InvalidID = 0

// Errors returned by Device implementations.
var (
	// ErrUnknownResource is returned for IDs the device does not know.
	ErrUnknownResource = errors.New("device: unknown resource")

	// ErrFenceLost is returned when a fence can no longer be queried.
	ErrFenceLost = errors.New("device: fence lost")
)

// ImageInfo describes one mip level of an image.
type ImageInfo struct {
	Width  uint32
	Height uint32
	// Depth is the depth of a 3D image or the layer count of an array.
	// Plain 2D images report 1.
	Depth  uint32
	Format gputypes.TextureFormat
}

// ByteSize returns Depth*Width*Height*BytesPerPixel(Format).
// It is zero when any dimension is zero or the format has no host layout.
func (i ImageInfo) ByteSize() uint64 {
	return uint64(i.Depth) * uint64(i.Width) * uint64(i.Height) * uint64(BytesPerPixel(i.Format))
}

// FenceStatus is the non-blocking state of a fence.
type FenceStatus uint8

const (
	// FenceUnsignaled means the fenced commands are still executing.
	FenceUnsignaled FenceStatus = iota

	// FenceSignaled means every command issued before the fence completed.
	FenceSignaled
)

// String returns the status name.
func (s FenceStatus) String() string {
	if s == FenceSignaled {
		return "signaled"
	}
	return "unsignaled"
}

// Capabilities reports which readback paths a device supports.
type Capabilities struct {
	// ImageReadback reports support for reading back images.
	ImageReadback bool

	// BufferReadback reports support for reading back structured buffers.
	BufferReadback bool

	// Name is a human readable backend/adapter name for logs.
	Name string
}

// Device is the execution-context side of a graphics backend.
//
// Every method must return without waiting for the GPU. Copy methods only
// record or issue commands; completion is observed through FenceStatus.
type Device interface {
	// Capabilities reports the supported readback paths.
	Capabilities() Capabilities

	// ImageInfo describes the given mip level of an image.
	ImageInfo(img ImageID, level int) (ImageInfo, error)

	// CopyImage issues a copy of one image level into a new transfer.
	CopyImage(img ImageID, level int, info ImageInfo) (TransferID, error)

	// CopyBuffer issues a copy of size bytes at offset of a buffer into a
	// new transfer. Backends that can map the source buffer directly may
	// return a transfer that simply records the region.
	CopyBuffer(buf BufferID, offset, size uint64) (TransferID, error)

	// InsertFence inserts a fence after every command issued so far.
	InsertFence() (FenceID, error)

	// FenceStatus queries a fence without blocking. An error means the
	// fence is no longer valid (lost device, deleted fence).
	FenceStatus(f FenceID) (FenceStatus, error)

	// ReadTransfer copies a completed transfer into dst, which is exactly
	// the transfer's byte size.
	ReadTransfer(t TransferID, dst []byte) error

	// ReleaseTransfer destroys the transient objects of a transfer.
	ReleaseTransfer(t TransferID)

	// ReleaseFence destroys a fence.
	ReleaseFence(f FenceID)
}
