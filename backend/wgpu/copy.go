package wgpu

import (
	"fmt"
	"slices"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/readback/device"
)

// copyPitchAlignment is the required BytesPerRow alignment of texture to
// buffer copies (WebGPU, DX12).
const copyPitchAlignment = 256

// transfer is a recorded copy into a staging buffer.
type transfer struct {
	staging hal.Buffer
	cmdBuf  hal.CommandBuffer
	size    uint64 // bytes handed to the reader

	// Image copies only: tight and padded row sizes, total rows.
	rowBytes uint32
	rowPitch uint32
	rows     uint32
}

func (t *transfer) release(dev hal.Device) {
	if t.cmdBuf != nil {
		dev.FreeCommandBuffer(t.cmdBuf)
	}
	if t.staging != nil {
		dev.DestroyBuffer(t.staging)
	}
}

// CopyImage records a copy of one texture level into a staging buffer.
func (d *Device) CopyImage(img device.ImageID, level int, info device.ImageInfo) (device.TransferID, error) {
	d.mu.Lock()
	t, ok := d.textures[img]
	d.mu.Unlock()
	if !ok {
		return device.InvalidID, fmt.Errorf("%w: image %d", device.ErrUnknownResource, img)
	}

	rowBytes := info.Width * device.BytesPerPixel(info.Format)
	rowPitch := (rowBytes + copyPitchAlignment - 1) &^ (copyPitchAlignment - 1)
	rows := info.Height * info.Depth

	staging, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "readback_image_staging",
		Size:  uint64(rowPitch) * uint64(rows),
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return device.InvalidID, fmt.Errorf("create staging buffer: %w", err)
	}

	cmdBuf, err := d.record("readback_image", func(enc hal.CommandEncoder) {
		d.transition(enc, t, t.info.Usage, gputypes.TextureUsageCopySrc)
		enc.CopyTextureToBuffer(t.tex, staging, []hal.BufferTextureCopy{{
			BufferLayout: hal.ImageDataLayout{Offset: 0, BytesPerRow: rowPitch, RowsPerImage: info.Height},
			TextureBase:  hal.ImageCopyTexture{Texture: t.tex, MipLevel: uint32(level)}, //nolint:gosec // level validated by ImageInfo
			Size:         hal.Extent3D{Width: info.Width, Height: info.Height, DepthOrArrayLayers: info.Depth},
		}})
		d.transition(enc, t, gputypes.TextureUsageCopySrc, t.info.Usage)
	})
	if err != nil {
		d.device.DestroyBuffer(staging)
		return device.InvalidID, err
	}

	return d.addTransfer(&transfer{
		staging:  staging,
		cmdBuf:   cmdBuf,
		size:     info.ByteSize(),
		rowBytes: rowBytes,
		rowPitch: rowPitch,
		rows:     rows,
	}), nil
}

// transition records a usage transition of t unless the texture has no
// resting usage or it already is in the target state.
func (d *Device) transition(enc hal.CommandEncoder, t *texture, from, to gputypes.TextureUsage) {
	if t.info.Usage == 0 || t.info.Usage == gputypes.TextureUsageCopySrc {
		return
	}
	enc.TransitionTextures([]hal.TextureBarrier{{
		Texture: t.tex,
		Usage: hal.TextureUsageTransition{
			OldUsage: from,
			NewUsage: to,
		},
	}})
}

// CopyBuffer records a copy of size bytes at offset of a registered buffer
// into a staging buffer. Offsets must be 4-byte aligned; the copied size is
// rounded up to 4 bytes when the buffer allows it.
func (d *Device) CopyBuffer(buf device.BufferID, offset, size uint64) (device.TransferID, error) {
	d.mu.Lock()
	b, ok := d.buffers[buf]
	d.mu.Unlock()
	if !ok {
		return device.InvalidID, fmt.Errorf("%w: buffer %d", device.ErrUnknownResource, buf)
	}
	if offset%4 != 0 {
		return device.InvalidID, fmt.Errorf("%w: %d", ErrMisaligned, offset)
	}
	if offset > b.size || size > b.size-offset {
		return device.InvalidID, fmt.Errorf("%w: %d+%d of %d bytes", ErrOutOfRange, offset, size, b.size)
	}
	copySize := (size + 3) &^ 3
	if copySize > b.size-offset {
		copySize = size
	}

	staging, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "readback_buffer_staging",
		Size:  copySize,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return device.InvalidID, fmt.Errorf("create staging buffer: %w", err)
	}

	cmdBuf, err := d.record("readback_buffer", func(enc hal.CommandEncoder) {
		enc.CopyBufferToBuffer(b.buf, staging, []hal.BufferCopy{
			{SrcOffset: offset, DstOffset: 0, Size: copySize},
		})
	})
	if err != nil {
		d.device.DestroyBuffer(staging)
		return device.InvalidID, err
	}

	return d.addTransfer(&transfer{staging: staging, cmdBuf: cmdBuf, size: size}), nil
}

// record encodes one command buffer and queues it for the next fence.
func (d *Device) record(label string, encode func(hal.CommandEncoder)) (hal.CommandBuffer, error) {
	enc, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: label})
	if err != nil {
		return nil, fmt.Errorf("create command encoder: %w", err)
	}
	if err := enc.BeginEncoding(label); err != nil {
		enc.DiscardEncoding()
		return nil, fmt.Errorf("begin encoding: %w", err)
	}
	encode(enc)
	cmdBuf, err := enc.EndEncoding()
	if err != nil {
		enc.DiscardEncoding()
		return nil, fmt.Errorf("end encoding: %w", err)
	}

	d.mu.Lock()
	d.pending = append(d.pending, cmdBuf)
	d.mu.Unlock()
	return cmdBuf, nil
}

func (d *Device) addTransfer(t *transfer) device.TransferID {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := device.TransferID(d.id())
	d.transfers[id] = t
	return id
}

// InsertFence submits every copy recorded since the previous fence,
// signaling a new fence on completion.
func (d *Device) InsertFence() (device.FenceID, error) {
	fence, err := d.device.CreateFence()
	if err != nil {
		return device.InvalidID, fmt.Errorf("create fence: %w", err)
	}

	d.mu.Lock()
	pending := d.pending
	d.pending = nil
	d.mu.Unlock()

	if err := d.queue.Submit(pending, fence, 1); err != nil {
		d.device.DestroyFence(fence)
		return device.InvalidID, fmt.Errorf("submit: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	id := device.FenceID(d.id())
	d.fences[id] = fence
	slogger().Debug("wgpu: fence inserted", "fence", id, "commands", len(pending))
	return id, nil
}

// FenceStatus checks a fence with a zero timeout.
func (d *Device) FenceStatus(f device.FenceID) (device.FenceStatus, error) {
	d.mu.Lock()
	fence, ok := d.fences[f]
	d.mu.Unlock()
	if !ok {
		return device.FenceUnsignaled, fmt.Errorf("%w: fence %d", device.ErrUnknownResource, f)
	}

	signaled, err := d.device.Wait(fence, 1, 0)
	if err != nil {
		return device.FenceUnsignaled, fmt.Errorf("%w: %w", device.ErrFenceLost, err)
	}
	if signaled {
		return device.FenceSignaled, nil
	}
	return device.FenceUnsignaled, nil
}

// ReadTransfer copies a completed transfer into dst, removing the row
// padding of image copies.
func (d *Device) ReadTransfer(id device.TransferID, dst []byte) error {
	d.mu.Lock()
	t, ok := d.transfers[id]
	d.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: transfer %d", device.ErrUnknownResource, id)
	}
	if uint64(len(dst)) != t.size {
		return fmt.Errorf("wgpu: read %d bytes into %d byte destination", t.size, len(dst))
	}

	if t.rowPitch == t.rowBytes {
		return d.queue.ReadBuffer(t.staging, 0, dst)
	}

	padded := make([]byte, uint64(t.rowPitch)*uint64(t.rows))
	if err := d.queue.ReadBuffer(t.staging, 0, padded); err != nil {
		return err
	}
	for row := range int(t.rows) {
		srcOff := row * int(t.rowPitch)
		dstOff := row * int(t.rowBytes)
		copy(dst[dstOff:dstOff+int(t.rowBytes)], padded[srcOff:srcOff+int(t.rowBytes)])
	}
	return nil
}

// ReleaseTransfer destroys a transfer's staging buffer and command buffer.
// A transfer released before any fence was inserted is never submitted.
func (d *Device) ReleaseTransfer(id device.TransferID) {
	d.mu.Lock()
	t, ok := d.transfers[id]
	delete(d.transfers, id)
	if ok {
		d.pending = slices.DeleteFunc(d.pending, func(cb hal.CommandBuffer) bool {
			return cb == t.cmdBuf
		})
	}
	d.mu.Unlock()

	if ok {
		t.release(d.device)
	}
}

// ReleaseFence destroys a fence.
func (d *Device) ReleaseFence(id device.FenceID) {
	d.mu.Lock()
	f, ok := d.fences[id]
	delete(d.fences, id)
	d.mu.Unlock()

	if ok {
		d.device.DestroyFence(f)
	}
}
