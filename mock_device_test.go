package readback

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/readback/device"
)

var errMockDevice = errors.New("mock device failure")

// mockImage is one level of an image known to mockDevice.
type mockImage struct {
	info device.ImageInfo
	data []byte
}

// mockFence is a fence the test signals by hand.
type mockFence struct {
	signaled bool
	lost     bool
}

// mockDevice is a scripted device.Device. Copies snapshot the source bytes
// when issued; fences stay unsignaled until the test signals them.
type mockDevice struct {
	mu sync.Mutex

	caps    device.Capabilities
	images  map[device.ImageID]mockImage
	buffers map[device.BufferID][]byte

	nextID    uint64
	transfers map[device.TransferID][]byte
	fences    map[device.FenceID]*mockFence
	fenceLog  []device.FenceID

	// Failure injection.
	infoErr  error
	copyErr  error
	fenceErr error
	readErr  error

	// onCopy runs at the start of CopyImage and CopyBuffer.
	onCopy func()
	// onRead runs inside ReadTransfer before the copy.
	onRead func()

	transfersReleased int
	fencesReleased    int
	fenceQueries      int

	logger *slog.Logger
}

func newMockDevice() *mockDevice {
	return &mockDevice{
		caps: device.Capabilities{
			ImageReadback:  true,
			BufferReadback: true,
			Name:           "mock",
		},
		images:    make(map[device.ImageID]mockImage),
		buffers:   make(map[device.BufferID][]byte),
		transfers: make(map[device.TransferID][]byte),
		fences:    make(map[device.FenceID]*mockFence),
	}
}

// addImage registers a 2D image filled with a byte pattern.
func (d *mockDevice) addImage(id device.ImageID, w, h uint32, format gputypes.TextureFormat) []byte {
	info := device.ImageInfo{Width: w, Height: h, Depth: 1, Format: format}
	data := pattern(int(info.ByteSize()), byte(id))

	d.mu.Lock()
	d.images[id] = mockImage{info: info, data: data}
	d.mu.Unlock()
	return data
}

// addBuffer registers a buffer filled with a byte pattern.
func (d *mockDevice) addBuffer(id device.BufferID, size int) []byte {
	data := pattern(size, byte(id))

	d.mu.Lock()
	d.buffers[id] = data
	d.mu.Unlock()
	return data
}

func pattern(n int, seed byte) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = seed + byte(i%251)
	}
	return b
}

func (d *mockDevice) id() uint64 {
	d.nextID++
	return d.nextID
}

func (d *mockDevice) Capabilities() device.Capabilities {
	return d.caps
}

func (d *mockDevice) ImageInfo(img device.ImageID, level int) (device.ImageInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.infoErr != nil {
		return device.ImageInfo{}, d.infoErr
	}
	im, ok := d.images[img]
	if !ok {
		return device.ImageInfo{}, device.ErrUnknownResource
	}
	info := im.info
	info.Width >>= level
	info.Height >>= level
	return info, nil
}

func (d *mockDevice) CopyImage(img device.ImageID, level int, info device.ImageInfo) (device.TransferID, error) {
	if d.onCopy != nil {
		d.onCopy()
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.copyErr != nil {
		return device.InvalidID, d.copyErr
	}
	im, ok := d.images[img]
	if !ok {
		return device.InvalidID, device.ErrUnknownResource
	}
	t := device.TransferID(d.id())
	if level == 0 {
		d.transfers[t] = append([]byte(nil), im.data...)
	} else {
		d.transfers[t] = pattern(int(info.ByteSize()), byte(img)+byte(level))
	}
	return t, nil
}

func (d *mockDevice) CopyBuffer(buf device.BufferID, offset, size uint64) (device.TransferID, error) {
	if d.onCopy != nil {
		d.onCopy()
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.copyErr != nil {
		return device.InvalidID, d.copyErr
	}
	data, ok := d.buffers[buf]
	if !ok {
		return device.InvalidID, device.ErrUnknownResource
	}
	if offset+size > uint64(len(data)) {
		return device.InvalidID, fmt.Errorf("region %d+%d exceeds buffer of %d bytes", offset, size, len(data))
	}
	t := device.TransferID(d.id())
	d.transfers[t] = append([]byte(nil), data[offset:offset+size]...)
	return t, nil
}

func (d *mockDevice) InsertFence() (device.FenceID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.fenceErr != nil {
		return device.InvalidID, d.fenceErr
	}
	f := device.FenceID(d.id())
	d.fences[f] = &mockFence{}
	d.fenceLog = append(d.fenceLog, f)
	return f, nil
}

func (d *mockDevice) FenceStatus(f device.FenceID) (device.FenceStatus, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.fenceQueries++
	mf, ok := d.fences[f]
	if !ok {
		return device.FenceUnsignaled, device.ErrUnknownResource
	}
	if mf.lost {
		return device.FenceUnsignaled, device.ErrFenceLost
	}
	if mf.signaled {
		return device.FenceSignaled, nil
	}
	return device.FenceUnsignaled, nil
}

func (d *mockDevice) ReadTransfer(t device.TransferID, dst []byte) error {
	if d.onRead != nil {
		d.onRead()
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.readErr != nil {
		return d.readErr
	}
	src, ok := d.transfers[t]
	if !ok {
		return device.ErrUnknownResource
	}
	copy(dst, src)
	return nil
}

func (d *mockDevice) ReleaseTransfer(t device.TransferID) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.transfers[t]; ok {
		delete(d.transfers, t)
		d.transfersReleased++
	}
}

func (d *mockDevice) ReleaseFence(f device.FenceID) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.fences[f]; ok {
		delete(d.fences, f)
		d.fencesReleased++
	}
}

func (d *mockDevice) SetLogger(l *slog.Logger) {
	d.mu.Lock()
	d.logger = l
	d.mu.Unlock()
}

// signalAll signals every live fence.
func (d *mockDevice) signalAll() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, f := range d.fences {
		f.signaled = true
	}
}

// signal signals the n-th fence ever inserted (0-based).
func (d *mockDevice) signal(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if f, ok := d.fences[d.fenceLog[n]]; ok {
		f.signaled = true
	}
}

// loseAll makes every live fence fail its status query.
func (d *mockDevice) loseAll() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, f := range d.fences {
		f.lost = true
	}
}

// live returns the number of unreleased transfers and fences.
func (d *mockDevice) live() (transfers, fences int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.transfers), len(d.fences)
}

var _ device.Device = (*mockDevice)(nil)
