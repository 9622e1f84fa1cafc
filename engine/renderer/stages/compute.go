package stages

import (
	"github.com/tigrazone/gkNextRenderer/engine/renderer/gpu"
	"github.com/tigrazone/gkNextRenderer/engine/renderer/resource"
)

// Compute shader names.
const (
	AccumulateShader = "Accumulate.comp"
	DenoiseShader    = "Denoise.comp"
	ComposeShader    = "Compose.comp"
)

// Accumulate reprojects the previous frame's history with the motion vectors
// and blends in the samples traced this frame.
type Accumulate struct{ *computeStage }

// Denoise is one a-trous filter pass between the ping-pong images.
type Denoise struct{ *computeStage }

// Compose tonemaps the final ping-pong image into the output image.
type Compose struct{ *computeStage }

func NewAccumulate(device gpu.Device, arena *resource.Arena, shaders ShaderSource, uniforms []*resource.Buffer,
	f *resource.FrameResources, imageCount uint32) (*Accumulate, error) {
	stages := gpu.ShaderStageCompute
	bindings := append([]gpu.DescriptorBinding{uniformBinding(stages)}, storageImages(stages, 1, 7)...)
	c, err := newComputeStage(device, arena, shaders, "accumulate", AccumulateShader, bindings,
		func(i uint32) []gpu.DescriptorWrite {
			return []gpu.DescriptorWrite{
				uniforms[i].UniformWrite(0),
				f.Accumulation.StorageWrite(1),
				f.Motion.StorageWrite(2),
				f.Visibility[0].StorageWrite(3),
				f.Visibility[1].StorageWrite(4),
				f.PingPong[0].StorageWrite(5),
				f.PingPong[1].StorageWrite(6),
				f.GBuffer.StorageWrite(7),
			}
		}, imageCount)
	if err != nil {
		return nil, err
	}
	return &Accumulate{c}, nil
}

func NewDenoise(device gpu.Device, arena *resource.Arena, shaders ShaderSource, uniforms []*resource.Buffer,
	f *resource.FrameResources, imageCount uint32) (*Denoise, error) {
	stages := gpu.ShaderStageCompute
	bindings := append([]gpu.DescriptorBinding{uniformBinding(stages)}, storageImages(stages, 1, 5)...)
	c, err := newComputeStage(device, arena, shaders, "denoise", DenoiseShader, bindings,
		func(i uint32) []gpu.DescriptorWrite {
			return []gpu.DescriptorWrite{
				uniforms[i].UniformWrite(0),
				f.GBuffer.StorageWrite(1),
				f.Albedo.StorageWrite(2),
				f.Visibility[0].StorageWrite(3),
				f.PingPong[0].StorageWrite(4),
				f.PingPong[1].StorageWrite(5),
			}
		}, imageCount)
	if err != nil {
		return nil, err
	}
	return &Denoise{c}, nil
}

func NewCompose(device gpu.Device, arena *resource.Arena, shaders ShaderSource, uniforms []*resource.Buffer,
	f *resource.FrameResources, imageCount uint32) (*Compose, error) {
	stages := gpu.ShaderStageCompute
	bindings := append([]gpu.DescriptorBinding{uniformBinding(stages)}, storageImages(stages, 1, 4)...)
	c, err := newComputeStage(device, arena, shaders, "compose", ComposeShader, bindings,
		func(i uint32) []gpu.DescriptorWrite {
			return []gpu.DescriptorWrite{
				uniforms[i].UniformWrite(0),
				f.PingPong[0].StorageWrite(1),
				f.PingPong[1].StorageWrite(2),
				f.Albedo.StorageWrite(3),
				f.Output.StorageWrite(4),
			}
		}, imageCount)
	if err != nil {
		return nil, err
	}
	return &Compose{c}, nil
}
