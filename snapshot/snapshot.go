// Package snapshot turns image readback bytes into image.Image values and
// writes them to disk.
//
// Readback data is tightly packed: rows of Width texels, Height rows per
// layer, Depth layers. 8-bit RGBA, BGRA and single channel formats are
// supported.
package snapshot

import (
	"errors"
	"fmt"
	"image"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/readback/device"
)

// Snapshot errors.
var (
	// ErrUnsupportedFormat is returned for texel formats without an
	// image.Image mapping.
	ErrUnsupportedFormat = errors.New("snapshot: unsupported format")

	// ErrShortData is returned when the data is smaller than the image.
	ErrShortData = errors.New("snapshot: data shorter than image")

	// ErrLayer is returned for a layer outside the image depth.
	ErrLayer = errors.New("snapshot: layer out of range")
)

// FromReadback converts the first layer of a readback to an image.
func FromReadback(data []byte, info device.ImageInfo) (image.Image, error) {
	return FromReadbackLayer(data, info, 0)
}

// FromReadbackLayer converts one layer (or depth slice) of a readback to an
// image. The returned image does not alias data.
func FromReadbackLayer(data []byte, info device.ImageInfo, layer int) (image.Image, error) {
	depth := max(int(info.Depth), 1)
	if layer < 0 || layer >= depth {
		return nil, fmt.Errorf("%w: %d of %d", ErrLayer, layer, depth)
	}

	w, h := int(info.Width), int(info.Height)
	bpp := int(device.BytesPerPixel(info.Format))
	layerSize := w * h * bpp
	if len(data) < layerSize*depth {
		return nil, fmt.Errorf("%w: %d < %d", ErrShortData, len(data), layerSize*depth)
	}
	src := data[layer*layerSize : (layer+1)*layerSize]
	rect := image.Rect(0, 0, w, h)

	switch info.Format {
	case gputypes.TextureFormatRGBA8Unorm, gputypes.TextureFormatRGBA8UnormSrgb:
		img := image.NewNRGBA(rect)
		copy(img.Pix, src)
		return img, nil

	case gputypes.TextureFormatBGRA8Unorm, gputypes.TextureFormatBGRA8UnormSrgb:
		img := image.NewNRGBA(rect)
		for i := 0; i < len(src); i += 4 {
			img.Pix[i+0] = src[i+2]
			img.Pix[i+1] = src[i+1]
			img.Pix[i+2] = src[i+0]
			img.Pix[i+3] = src[i+3]
		}
		return img, nil

	case gputypes.TextureFormatR8Unorm:
		img := image.NewGray(rect)
		copy(img.Pix, src)
		return img, nil

	default:
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, info.Format)
	}
}
