package wgpu

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/readback/device"
)

// TextureInfo describes a registered texture.
type TextureInfo struct {
	Width  uint32
	Height uint32
	// DepthOrArrayLayers is the depth of a 3D texture or the layer count of
	// an array. Zero means 1.
	DepthOrArrayLayers uint32
	// MipLevelCount is the number of mip levels. Zero means 1.
	MipLevelCount uint32
	Dimension     gputypes.TextureDimension
	Format        gputypes.TextureFormat
	// Usage is the usage state the texture rests in between frames, such as
	// RenderAttachment. Copies transition it to CopySrc and back. Zero
	// skips the transition.
	Usage gputypes.TextureUsage
}

type texture struct {
	tex  hal.Texture
	info TextureInfo
}

type buffer struct {
	buf  hal.Buffer
	size uint64
}

// Device is a device.Device backed by a HAL device and queue.
//
// Thread safety: All methods are safe for concurrent use. The readback
// engine calls the device.Device methods from its execution context only.
type Device struct {
	device   hal.Device
	queue    hal.Queue
	instance hal.Instance // set when Open created the device
	name     string

	mu        sync.Mutex
	nextID    uint64
	textures  map[device.ImageID]*texture
	buffers   map[device.BufferID]*buffer
	transfers map[device.TransferID]*transfer
	fences    map[device.FenceID]hal.Fence

	// pending holds command buffers recorded since the last fence. They
	// are owned by their transfers.
	pending []hal.CommandBuffer
}

// New wraps an existing HAL device and queue. The caller keeps ownership
// of both; Close releases only readback objects.
func New(dev hal.Device, queue hal.Queue, name string) *Device {
	return &Device{
		device:    dev,
		queue:     queue,
		name:      name,
		textures:  make(map[device.ImageID]*texture),
		buffers:   make(map[device.BufferID]*buffer),
		transfers: make(map[device.TransferID]*transfer),
		fences:    make(map[device.FenceID]hal.Fence),
	}
}

// Open creates a standalone device on the first discrete or integrated
// GPU, falling back to any adapter.
func Open() (*Device, error) {
	backend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return nil, fmt.Errorf("wgpu: vulkan backend not available")
	}
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create instance: %w", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, ErrNoAdapter
	}
	var selected *hal.ExposedAdapter
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	if selected == nil {
		selected = &adapters[0]
	}
	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("wgpu: open device: %w", err)
	}

	d := New(openDev.Device, openDev.Queue, selected.Info.Name)
	d.instance = instance
	slogger().Info("wgpu: device opened", "adapter", selected.Info.Name)
	return d, nil
}

// NewFromProvider uses the device of a host that owns one (for example a
// gogpu window). The provider must implement HalDevice() any and
// HalQueue() any returning hal.Device and hal.Queue.
func NewFromProvider(provider gpucontext.DeviceProvider) (*Device, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, ErrNoHAL
	}
	dev, ok := hp.HalDevice().(hal.Device)
	if !ok || dev == nil {
		return nil, fmt.Errorf("%w: HalDevice is not hal.Device", ErrNoHAL)
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("%w: HalQueue is not hal.Queue", ErrNoHAL)
	}
	return New(dev, queue, "provider"), nil
}

// HalDevice returns the underlying HAL device.
func (d *Device) HalDevice() hal.Device { return d.device }

// HalQueue returns the underlying HAL queue.
func (d *Device) HalQueue() hal.Queue { return d.queue }

// SetLogger sets the package logger. Called by readback.New when the engine
// has its own logger.
func (d *Device) SetLogger(l *slog.Logger) { setLogger(l) }

// Capabilities reports that both readback paths are supported.
func (d *Device) Capabilities() device.Capabilities {
	return device.Capabilities{
		ImageReadback:  true,
		BufferReadback: true,
		Name:           d.name,
	}
}

func (d *Device) id() uint64 {
	d.nextID++
	return d.nextID
}

// RegisterTexture makes tex available for image readbacks.
func (d *Device) RegisterTexture(tex hal.Texture, info TextureInfo) device.ImageID {
	if info.DepthOrArrayLayers == 0 {
		info.DepthOrArrayLayers = 1
	}
	if info.MipLevelCount == 0 {
		info.MipLevelCount = 1
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	id := device.ImageID(d.id())
	d.textures[id] = &texture{tex: tex, info: info}
	return id
}

// UnregisterTexture forgets a texture. Readbacks already issued are not
// affected.
func (d *Device) UnregisterTexture(id device.ImageID) {
	d.mu.Lock()
	delete(d.textures, id)
	d.mu.Unlock()
}

// RegisterBuffer makes buf, of size bytes, available for buffer readbacks.
// The buffer needs CopySrc usage.
func (d *Device) RegisterBuffer(buf hal.Buffer, size uint64) device.BufferID {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := device.BufferID(d.id())
	d.buffers[id] = &buffer{buf: buf, size: size}
	return id
}

// UnregisterBuffer forgets a buffer.
func (d *Device) UnregisterBuffer(id device.BufferID) {
	d.mu.Lock()
	delete(d.buffers, id)
	d.mu.Unlock()
}

// ImageInfo describes one mip level of a registered texture. Levels past
// the last mip report zero size.
func (d *Device) ImageInfo(img device.ImageID, level int) (device.ImageInfo, error) {
	d.mu.Lock()
	t, ok := d.textures[img]
	d.mu.Unlock()
	if !ok {
		return device.ImageInfo{}, fmt.Errorf("%w: image %d", device.ErrUnknownResource, img)
	}

	info := device.ImageInfo{Format: t.info.Format}
	if level < 0 || uint32(level) >= t.info.MipLevelCount {
		return info, nil
	}
	info.Width = mipExtent(t.info.Width, level)
	info.Height = mipExtent(t.info.Height, level)
	info.Depth = t.info.DepthOrArrayLayers
	if t.info.Dimension == gputypes.TextureDimension3D {
		info.Depth = mipExtent(info.Depth, level)
	}
	return info, nil
}

// mipExtent returns the size of a dimension at a mip level, at least 1.
func mipExtent(size uint32, level int) uint32 {
	if size == 0 {
		return 0
	}
	return max(1, size>>uint(level))
}

// Close releases every transfer and fence. A device created by Open is
// destroyed too.
func (d *Device) Close() {
	d.mu.Lock()
	transfers := d.transfers
	fences := d.fences
	d.transfers = make(map[device.TransferID]*transfer)
	d.fences = make(map[device.FenceID]hal.Fence)
	d.pending = nil
	d.mu.Unlock()

	for _, t := range transfers {
		t.release(d.device)
	}
	for _, f := range fences {
		d.device.DestroyFence(f)
	}

	if d.instance != nil {
		d.device.Destroy()
		d.instance.Destroy()
		d.instance = nil
	}
}

var _ device.Device = (*Device)(nil)
