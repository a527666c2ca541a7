package device

import "github.com/gogpu/gputypes"

// bytesPerPixel maps formats with a fixed texel size to that size.
var bytesPerPixel = map[gputypes.TextureFormat]uint32{
	gputypes.TextureFormatR8Unorm:        1,
	gputypes.TextureFormatRG8Unorm:       2,
	gputypes.TextureFormatR16Float:       2,
	gputypes.TextureFormatR32Float:       4,
	gputypes.TextureFormatR32Uint:        4,
	gputypes.TextureFormatRGBA8Unorm:     4,
	gputypes.TextureFormatRGBA8UnormSrgb: 4,
	gputypes.TextureFormatBGRA8Unorm:     4,
	gputypes.TextureFormatBGRA8UnormSrgb: 4,
	gputypes.TextureFormatRG32Float:      8,
	gputypes.TextureFormatRGBA16Float:    8,
	gputypes.TextureFormatRGBA32Float:    16,
	gputypes.TextureFormatRGBA32Uint:     16,
}

// BytesPerPixel returns the texel size of a transferable format, or 0.
func BytesPerPixel(format gputypes.TextureFormat) uint32 {
	return bytesPerPixel[format]
}

// Transferable reports whether images of this format can be read back.
// Depth/stencil, compressed and undefined formats cannot.
func Transferable(format gputypes.TextureFormat) bool {
	return bytesPerPixel[format] != 0
}
