package readback

import "github.com/gogpu/readback/device"

// SubmitImage registers a readback of one mip level of img and returns its
// handle. It does not touch the device; call Execute from the execution
// context to issue the copy.
//
// Submission context. Safe for concurrent use.
func (e *Engine) SubmitImage(img device.ImageID, level int) Handle {
	h := newHandle()
	e.images.Store(h, &task{kind: KindImage, image: img, level: level})
	e.logger().Debug("readback: image submitted", "handle", h, "image", img, "level", level)
	return h
}

// SubmitBuffer registers a readback of size bytes at offset of buf and
// returns its handle. It does not touch the device.
//
// Submission context. Safe for concurrent use.
func (e *Engine) SubmitBuffer(buf device.BufferID, size, offset uint64) Handle {
	h := newHandle()
	e.buffers.Store(h, &task{kind: KindBuffer, buffer: buf, size: size, offset: offset})
	e.logger().Debug("readback: buffer submitted", "handle", h, "buffer", buf, "size", size, "offset", offset)
	return h
}
