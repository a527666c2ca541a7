package main

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/readback/backend/wgpu"
	"github.com/gogpu/readback/device"
	"github.com/gogpu/readback/snapshot"
)

// squaresShader writes data[i] = i*i.
const squaresShader = `
@group(0) @binding(0) var<storage, read_write> data: array<u32>;

@compute @workgroup_size(64)
fn main(@builtin(global_invocation_id) id: vec3<u32>) {
    let i = id.x;
    if (i < arrayLength(&data)) {
        data[i] = i * i;
    }
}
`

const textureFormat = gputypes.TextureFormatRGBA8Unorm

// scene owns the GPU resources the demo reads back.
type scene struct {
	device hal.Device
	queue  hal.Queue

	width, height uint32
	tex           hal.Texture
	image         device.ImageID

	count      uint32
	storage    hal.Buffer
	buffer     device.BufferID
	bufferSize uint64

	shader     hal.ShaderModule
	bindLayout hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	pipeline   hal.ComputePipeline
	bindGroup  hal.BindGroup

	frame   uint32
	cmdBufs []hal.CommandBuffer
}

func newScene(dev *wgpu.Device, width, height, count uint32) (*scene, error) {
	s := &scene{
		device:     dev.HalDevice(),
		queue:      dev.HalQueue(),
		width:      width,
		height:     height,
		count:      count,
		bufferSize: uint64(count) * 4,
	}

	tex, err := s.device.CreateTexture(&hal.TextureDescriptor{
		Label:         "demo_texture",
		Size:          hal.Extent3D{Width: width, Height: height, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        textureFormat,
		Usage:         gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst | gputypes.TextureUsageCopySrc,
	})
	if err != nil {
		return nil, fmt.Errorf("create texture: %w", err)
	}
	s.tex = tex
	s.image = dev.RegisterTexture(tex, wgpu.TextureInfo{
		Width:  width,
		Height: height,
		Format: textureFormat,
		Usage:  gputypes.TextureUsageCopyDst,
	})

	storage, err := s.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "demo_squares",
		Size:  s.bufferSize,
		Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopySrc,
	})
	if err != nil {
		s.destroy()
		return nil, fmt.Errorf("create storage buffer: %w", err)
	}
	s.storage = storage
	s.buffer = dev.RegisterBuffer(storage, s.bufferSize)

	if err := s.createPipeline(); err != nil {
		s.destroy()
		return nil, err
	}
	return s, nil
}

func (s *scene) createPipeline() error {
	spirvBytes, err := naga.Compile(squaresShader)
	if err != nil {
		return fmt.Errorf("compile shader: %w", err)
	}
	// SPIR-V is little-endian 32-bit words.
	spirv := make([]uint32, len(spirvBytes)/4)
	for i := range spirv {
		spirv[i] = binary.LittleEndian.Uint32(spirvBytes[i*4:])
	}

	s.shader, err = s.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "demo_squares",
		Source: hal.ShaderSource{SPIRV: spirv},
	})
	if err != nil {
		return fmt.Errorf("create shader module: %w", err)
	}

	s.bindLayout, err = s.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "demo_squares_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{Binding: 0, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage}},
		},
	})
	if err != nil {
		return fmt.Errorf("create bind group layout: %w", err)
	}

	s.pipeLayout, err = s.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label: "demo_squares_pipe_layout", BindGroupLayouts: []hal.BindGroupLayout{s.bindLayout},
	})
	if err != nil {
		return fmt.Errorf("create pipeline layout: %w", err)
	}

	s.pipeline, err = s.device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label: "demo_squares_pipeline", Layout: s.pipeLayout,
		Compute: hal.ComputeState{Module: s.shader, EntryPoint: "main"},
	})
	if err != nil {
		return fmt.Errorf("create compute pipeline: %w", err)
	}

	s.bindGroup, err = s.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label: "demo_squares_bind", Layout: s.bindLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{Buffer: s.storage.NativeHandle(), Offset: 0, Size: s.bufferSize}},
		},
	})
	if err != nil {
		return fmt.Errorf("create bind group: %w", err)
	}
	return nil
}

// render uploads this frame's gradient and dispatches the compute pass.
// Nothing waits for completion; readbacks are ordered after it on the
// queue.
func (s *scene) render() error {
	pixels := make([]byte, int(s.width)*int(s.height)*4)
	for y := range s.height {
		for x := range s.width {
			i := (y*s.width + x) * 4
			pixels[i+0] = byte(x * 255 / max(1, s.width-1))
			pixels[i+1] = byte(y * 255 / max(1, s.height-1))
			pixels[i+2] = byte(s.frame * 4)
			pixels[i+3] = 255
		}
	}
	s.queue.WriteTexture(
		&hal.ImageCopyTexture{Texture: s.tex, MipLevel: 0},
		pixels,
		&hal.ImageDataLayout{Offset: 0, BytesPerRow: s.width * 4, RowsPerImage: s.height},
		&hal.Extent3D{Width: s.width, Height: s.height, DepthOrArrayLayers: 1},
	)

	encoder, err := s.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "demo_frame"})
	if err != nil {
		return fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("demo_frame"); err != nil {
		return fmt.Errorf("begin encoding: %w", err)
	}
	pass := encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: "demo_squares"})
	pass.SetPipeline(s.pipeline)
	pass.SetBindGroup(0, s.bindGroup, nil)
	pass.Dispatch((s.count+63)/64, 1, 1)
	pass.End()
	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("end encoding: %w", err)
	}
	s.cmdBufs = append(s.cmdBufs, cmdBuf)
	if err := s.queue.Submit([]hal.CommandBuffer{cmdBuf}, nil, 0); err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	s.frame++
	return nil
}

// saveImage writes the texture readback to path and an optional thumbnail.
func (s *scene) saveImage(data []byte, path, thumbPath string) error {
	img, err := snapshot.FromReadback(data, device.ImageInfo{
		Width: s.width, Height: s.height, Depth: 1, Format: textureFormat,
	})
	if err != nil {
		return err
	}
	if err := snapshot.Save(path, img); err != nil {
		return err
	}
	if thumbPath != "" {
		return snapshot.Save(thumbPath, snapshot.Thumbnail(img, 64, 64))
	}
	return nil
}

// verifySquares returns the first index whose value is not its square, or
// -1.
func verifySquares(data []byte) int {
	for i := 0; i+4 <= len(data); i += 4 {
		idx := uint32(i / 4) //nolint:gosec // bounded by buffer size
		if binary.LittleEndian.Uint32(data[i:]) != idx*idx {
			return i / 4
		}
	}
	return -1
}

// destroy waits for the queue to drain and releases every resource.
func (s *scene) destroy() {
	if fence, err := s.device.CreateFence(); err == nil {
		if s.queue.Submit(nil, fence, 1) == nil {
			_, _ = s.device.Wait(fence, 1, 5*time.Second)
		}
		s.device.DestroyFence(fence)
	}
	for _, cb := range s.cmdBufs {
		s.device.FreeCommandBuffer(cb)
	}
	if s.bindGroup != nil {
		s.device.DestroyBindGroup(s.bindGroup)
	}
	if s.pipeline != nil {
		s.device.DestroyComputePipeline(s.pipeline)
	}
	if s.pipeLayout != nil {
		s.device.DestroyPipelineLayout(s.pipeLayout)
	}
	if s.bindLayout != nil {
		s.device.DestroyBindGroupLayout(s.bindLayout)
	}
	if s.shader != nil {
		s.device.DestroyShaderModule(s.shader)
	}
	if s.storage != nil {
		s.device.DestroyBuffer(s.storage)
	}
	if s.tex != nil {
		s.device.DestroyTexture(s.tex)
	}
}
