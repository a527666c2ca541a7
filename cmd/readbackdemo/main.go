// Command readbackdemo reads a texture and a compute buffer back from the
// GPU without stalling, the way a game loop would.
//
// It uploads a gradient into a texture, fills a storage buffer with a
// compute shader, then requests both readbacks and keeps rendering frames
// until they arrive. The texture is written to -output, the buffer contents
// are verified.
package main

import (
	"flag"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/gogpu/readback"
	"github.com/gogpu/readback/backend/wgpu"
)

func main() {
	var (
		width   = flag.Int("width", 256, "texture width")
		height  = flag.Int("height", 256, "texture height")
		count   = flag.Int("count", 4096, "number of uint32 values computed on the GPU")
		frames  = flag.Int("frames", 600, "maximum frames to wait for the readbacks")
		output  = flag.String("output", "readback.png", "output file (.png, .jpg, .bmp, .tiff)")
		thumb   = flag.String("thumb", "", "optional thumbnail output file")
		verbose = flag.Bool("v", false, "log readback lifecycle")
	)
	flag.Parse()

	if *verbose {
		readback.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})))
	}

	dev, err := wgpu.Open()
	if err != nil {
		log.Fatalf("Failed to open GPU: %v", err)
	}
	defer dev.Close()

	demo, err := newScene(dev, uint32(*width), uint32(*height), uint32(*count)) //nolint:gosec // flag values
	if err != nil {
		log.Fatalf("Failed to build scene: %v", err)
	}
	defer demo.destroy()

	engine := readback.New(dev)
	if !engine.SupportsImageReadback() || !engine.SupportsBufferReadback() {
		log.Fatalf("Device %q cannot read back images and buffers", dev.Capabilities().Name)
	}
	stream := readback.NewCommandStream(engine)
	tracker := readback.NewTracker(engine, stream, readback.WithAutoDispose(true))

	tracker.RequestImage(demo.image, 0, func(r *readback.Request) {
		if r.HasError() {
			log.Printf("Image readback failed: %v", r.Err())
			return
		}
		if err := demo.saveImage(r.Data(), *output, *thumb); err != nil {
			log.Printf("Failed to save: %v", err)
			return
		}
		log.Printf("Image saved to %s (%dx%d)", *output, *width, *height)
	})

	tracker.RequestBuffer(demo.buffer, demo.bufferSize, 0, func(r *readback.Request) {
		if r.HasError() {
			log.Printf("Buffer readback failed: %v", r.Err())
			return
		}
		if bad := verifySquares(r.Data()); bad >= 0 {
			log.Printf("Buffer mismatch at index %d", bad)
			return
		}
		log.Printf("Buffer verified (%d values)", len(r.Data())/4)
	})

	start := time.Now()
	frame := 0
	for ; frame < *frames && tracker.Len() > 0; frame++ {
		if err := demo.render(); err != nil {
			log.Fatalf("Frame %d: %v", frame, err)
		}
		tracker.Update()
		stream.Flush()
		time.Sleep(time.Second / 60)
	}

	pending := tracker.Len()
	if n := engine.Count(); n > 0 {
		log.Printf("Disposing %d live handles", n)
		engine.DisposeAll()
	}
	if pending > 0 {
		log.Fatalf("Readbacks still pending after %d frames", frame)
	}
	log.Printf("Readbacks completed in %d frames (%v)", frame, time.Since(start).Round(time.Millisecond))
}
