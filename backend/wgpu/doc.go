// Package wgpu implements device.Device on top of the gogpu/wgpu HAL.
//
// Image readbacks record a texture-to-buffer copy into a staging buffer,
// transitioning the texture to CopySrc and back around the copy. Buffer
// readbacks copy the requested region into a staging buffer. Copies are
// recorded into their own command buffers and submitted together when the
// engine inserts a fence; the fence is later checked with a zero timeout,
// so nothing here waits for the GPU.
//
// Resources are owned by the host. Register textures and buffers to obtain
// the ids the readback engine works with:
//
//	dev, err := wgpu.Open()
//	img := dev.RegisterTexture(tex, wgpu.TextureInfo{
//	    Width: 256, Height: 256, Format: gputypes.TextureFormatRGBA8Unorm,
//	    Usage: gputypes.TextureUsageRenderAttachment,
//	})
//	e := readback.New(dev)
//	h := e.SubmitImage(img, 0)
//
// Hosts that already own a device pass it through NewFromProvider.
package wgpu
