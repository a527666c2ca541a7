package snapshot

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/gogpu/gputypes"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"github.com/gogpu/readback/device"
)

func TestFromReadbackRGBA(t *testing.T) {
	info := device.ImageInfo{Width: 2, Height: 1, Depth: 1, Format: gputypes.TextureFormatRGBA8Unorm}
	data := []byte{10, 20, 30, 255, 40, 50, 60, 128}

	img, err := FromReadback(data, info)
	if err != nil {
		t.Fatalf("FromReadback: %v", err)
	}
	got := img.At(1, 0).(color.NRGBA)
	if got != (color.NRGBA{R: 40, G: 50, B: 60, A: 128}) {
		t.Errorf("At(1,0) = %v", got)
	}

	// The image must not alias the readback buffer.
	data[0] = 0
	if img.At(0, 0).(color.NRGBA).R != 10 {
		t.Error("image aliases readback data")
	}
}

func TestFromReadbackBGRA(t *testing.T) {
	info := device.ImageInfo{Width: 1, Height: 1, Depth: 1, Format: gputypes.TextureFormatBGRA8Unorm}
	img, err := FromReadback([]byte{1, 2, 3, 4}, info)
	if err != nil {
		t.Fatalf("FromReadback: %v", err)
	}
	if got := img.At(0, 0).(color.NRGBA); got != (color.NRGBA{R: 3, G: 2, B: 1, A: 4}) {
		t.Errorf("At(0,0) = %v, want swizzled {3 2 1 4}", got)
	}
}

func TestFromReadbackGray(t *testing.T) {
	info := device.ImageInfo{Width: 2, Height: 2, Depth: 1, Format: gputypes.TextureFormatR8Unorm}
	img, err := FromReadback([]byte{0, 64, 128, 255}, info)
	if err != nil {
		t.Fatalf("FromReadback: %v", err)
	}
	if got := img.At(0, 1).(color.Gray).Y; got != 128 {
		t.Errorf("At(0,1) = %d, want 128", got)
	}
}

func TestFromReadbackLayer(t *testing.T) {
	info := device.ImageInfo{Width: 1, Height: 1, Depth: 3, Format: gputypes.TextureFormatR8Unorm}
	data := []byte{7, 8, 9}

	img, err := FromReadbackLayer(data, info, 2)
	if err != nil {
		t.Fatalf("FromReadbackLayer: %v", err)
	}
	if got := img.At(0, 0).(color.Gray).Y; got != 9 {
		t.Errorf("layer 2 = %d, want 9", got)
	}
	if _, err := FromReadbackLayer(data, info, 3); !errors.Is(err, ErrLayer) {
		t.Errorf("layer 3: %v, want ErrLayer", err)
	}
}

func TestFromReadbackErrors(t *testing.T) {
	tests := []struct {
		name string
		info device.ImageInfo
		data []byte
		want error
	}{
		{
			"short",
			device.ImageInfo{Width: 4, Height: 4, Depth: 1, Format: gputypes.TextureFormatRGBA8Unorm},
			make([]byte, 10),
			ErrShortData,
		},
		{
			"float format",
			device.ImageInfo{Width: 1, Height: 1, Depth: 1, Format: gputypes.TextureFormatRGBA32Float},
			make([]byte, 16),
			ErrUnsupportedFormat,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := FromReadback(tt.data, tt.info); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func testImage() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 8, 4))
	for y := range 4 {
		for x := range 8 {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 30), G: uint8(y * 60), B: 200, A: 255})
		}
	}
	return img
}

func TestEncodeDecodes(t *testing.T) {
	img := testImage()

	var buf bytes.Buffer
	if err := Encode(&buf, img, BMP); err != nil {
		t.Fatalf("Encode BMP: %v", err)
	}
	got, err := bmp.Decode(&buf)
	if err != nil {
		t.Fatalf("bmp.Decode: %v", err)
	}
	if got.Bounds() != img.Bounds() {
		t.Errorf("BMP bounds = %v, want %v", got.Bounds(), img.Bounds())
	}

	buf.Reset()
	if err := Encode(&buf, img, TIFF); err != nil {
		t.Fatalf("Encode TIFF: %v", err)
	}
	got, err = tiff.Decode(&buf)
	if err != nil {
		t.Fatalf("tiff.Decode: %v", err)
	}
	r, g, b, _ := got.At(3, 2).RGBA()
	if r>>8 != 90 || g>>8 != 120 || b>>8 != 200 {
		t.Errorf("TIFF At(3,2) = %d %d %d, want 90 120 200", r>>8, g>>8, b>>8)
	}

	if err := Encode(&buf, img, Format(99)); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("unknown format: %v, want ErrUnsupportedFormat", err)
	}
}

func TestFormatFromPath(t *testing.T) {
	tests := []struct {
		path string
		want Format
	}{
		{"a.png", PNG},
		{"b.JPG", JPEG},
		{"c.jpeg", JPEG},
		{"d.bmp", BMP},
		{"e.tif", TIFF},
		{"f.tiff", TIFF},
	}
	for _, tt := range tests {
		got, err := FormatFromPath(tt.path)
		if err != nil || got != tt.want {
			t.Errorf("FormatFromPath(%q) = %v, %v; want %v", tt.path, got, err, tt.want)
		}
	}
	if _, err := FormatFromPath("g.webp"); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("webp: %v, want ErrUnsupportedFormat", err)
	}
}

func TestSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frame.png")
	if err := Save(path, testImage()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Size() == 0 {
		t.Error("saved file is empty")
	}
}

func TestThumbnail(t *testing.T) {
	img := testImage()

	small := Thumbnail(img, 4, 4)
	if b := small.Bounds(); b.Dx() != 4 || b.Dy() != 2 {
		t.Errorf("Thumbnail bounds = %v, want 4x2", b)
	}
	if same := Thumbnail(img, 16, 16); same != image.Image(img) {
		t.Error("Thumbnail of a fitting image should return it unchanged")
	}
}
