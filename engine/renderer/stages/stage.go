// Package stages holds the GPU programs of the frame pipeline: trace,
// accumulate, denoise and compose. Each stage owns its pipeline and one
// descriptor set per swap-chain image.
package stages

import (
	"encoding/binary"
	"fmt"

	"github.com/tigrazone/gkNextRenderer/engine/core"
	"github.com/tigrazone/gkNextRenderer/engine/renderer/gpu"
	"github.com/tigrazone/gkNextRenderer/engine/renderer/resource"
)

// ShaderSource resolves a shader name to SPIR-V words.
type ShaderSource interface {
	SPIRV(name string) ([]uint32, error)
}

// Stage is the state common to every pass.
type Stage struct {
	Name      string
	BindPoint gpu.BindPoint
	Pipeline  gpu.PipelineID
	Layout    gpu.PipelineLayoutID
	SetLayout gpu.DescriptorSetLayoutID
	Pool      gpu.DescriptorPoolID

	sets   []gpu.DescriptorSetID
	device gpu.Device
	arena  *resource.Arena
}

func newStage(device gpu.Device, parent *resource.Arena, name string, bind gpu.BindPoint,
	bindings []gpu.DescriptorBinding, push []gpu.PushConstantRange, imageCount uint32) (*Stage, error) {
	s := &Stage{Name: name, BindPoint: bind, device: device, arena: parent.Child(name)}

	var err error
	if s.SetLayout, err = device.CreateDescriptorSetLayout(bindings); err != nil {
		return nil, s.fail(err, "descriptor set layout")
	}
	setLayout := s.SetLayout
	s.arena.Own("set-layout", func() { device.DestroyDescriptorSetLayout(setLayout) })

	if s.Pool, err = device.CreateDescriptorPool(bindings, imageCount); err != nil {
		return nil, s.fail(err, "descriptor pool")
	}
	pool := s.Pool
	s.arena.Own("pool", func() { device.DestroyDescriptorPool(pool) })

	if s.sets, err = device.AllocateDescriptorSets(s.Pool, s.SetLayout, imageCount); err != nil {
		return nil, s.fail(err, "descriptor sets")
	}

	if s.Layout, err = device.CreatePipelineLayout([]gpu.DescriptorSetLayoutID{s.SetLayout}, push); err != nil {
		return nil, s.fail(err, "pipeline layout")
	}
	layout := s.Layout
	s.arena.Own("pipeline-layout", func() { device.DestroyPipelineLayout(layout) })
	return s, nil
}

func (s *Stage) fail(err error, what string) error {
	s.arena.Release()
	err = fmt.Errorf("failed to create %s of %s stage: %w", what, s.Name, err)
	core.LogError("%s", err)
	return err
}

func (s *Stage) setPipeline(p gpu.PipelineID) {
	s.Pipeline = p
	s.arena.Own("pipeline", func() { s.device.DestroyPipeline(p) })
}

// loadModule creates a shader module that lives until the stage is built.
func loadModule(device gpu.Device, shaders ShaderSource, name string) (gpu.ShaderModuleID, error) {
	code, err := shaders.SPIRV(name)
	if err != nil {
		return 0, fmt.Errorf("failed to load shader %s: %w", name, err)
	}
	module, err := device.CreateShaderModule(code)
	if err != nil {
		return 0, fmt.Errorf("failed to create shader module %s: %w", name, err)
	}
	return module, nil
}

// DescriptorSet returns the set bound when rendering to swap image imageIndex.
func (s *Stage) DescriptorSet(imageIndex uint32) gpu.DescriptorSetID {
	return s.sets[imageIndex]
}

// SetCount is the number of descriptor sets, one per swap image.
func (s *Stage) SetCount() int {
	return len(s.sets)
}

// Bind records the pipeline and the descriptor set of imageIndex.
func (s *Stage) Bind(cb gpu.CommandBuffer, imageIndex uint32) {
	cb.BindPipeline(s.BindPoint, s.Pipeline)
	cb.BindDescriptorSet(s.BindPoint, s.Layout, s.sets[imageIndex])
}

// Destroy releases the pipeline, layouts and pool. Descriptor sets go with the pool.
func (s *Stage) Destroy() {
	s.arena.Release()
}

// PushConstants is the push block shared by the compute stages.
type PushConstants struct {
	PingPong uint32
	StepSize uint32
}

const pushConstantSize = 8

func (p PushConstants) Bytes() []byte {
	out := make([]byte, pushConstantSize)
	binary.LittleEndian.PutUint32(out[0:], p.PingPong)
	binary.LittleEndian.PutUint32(out[4:], p.StepSize)
	return out
}

func computePush() []gpu.PushConstantRange {
	return []gpu.PushConstantRange{{Stages: gpu.ShaderStageCompute, Offset: 0, Size: pushConstantSize}}
}

// computeStage builds a compute pass whose bindings are all read from per-image writes.
type computeStage struct {
	*Stage
}

func newComputeStage(device gpu.Device, arena *resource.Arena, shaders ShaderSource, name, shader string,
	bindings []gpu.DescriptorBinding, writes func(imageIndex uint32) []gpu.DescriptorWrite, imageCount uint32) (*computeStage, error) {
	s, err := newStage(device, arena, name, gpu.BindPointCompute, bindings, computePush(), imageCount)
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < imageCount; i++ {
		device.UpdateDescriptorSet(s.sets[i], writes(i))
	}

	module, err := loadModule(device, shaders, shader)
	if err != nil {
		return nil, s.fail(err, "shader")
	}
	defer device.DestroyShaderModule(module)

	pipeline, err := device.CreateComputePipeline(gpu.ComputePipelineDesc{
		Label:  name,
		Layout: s.Layout,
		Shader: gpu.ShaderStageDesc{Stage: gpu.ShaderStageCompute, Module: module, Entry: "main"},
	})
	if err != nil {
		return nil, s.fail(err, "pipeline")
	}
	s.setPipeline(pipeline)
	return &computeStage{Stage: s}, nil
}

// Dispatch binds the stage, pushes the constants and dispatches over extent.
func (c *computeStage) Dispatch(cb gpu.CommandBuffer, imageIndex uint32, extent gpu.Extent2D, push PushConstants) {
	c.Bind(cb, imageIndex)
	cb.PushConstants(c.Layout, gpu.ShaderStageCompute, 0, push.Bytes())
	x, y, z := WorkgroupCount(extent)
	cb.Dispatch(x, y, z)
}

func storageImages(stages gpu.ShaderStage, first uint32, n int) []gpu.DescriptorBinding {
	out := make([]gpu.DescriptorBinding, n)
	for i := range out {
		out[i] = gpu.DescriptorBinding{Binding: first + uint32(i), Type: gpu.DescriptorTypeStorageImage, Stages: stages, Count: 1}
	}
	return out
}

func uniformBinding(stages gpu.ShaderStage) gpu.DescriptorBinding {
	return gpu.DescriptorBinding{Binding: 0, Type: gpu.DescriptorTypeUniformBuffer, Stages: stages, Count: 1}
}
