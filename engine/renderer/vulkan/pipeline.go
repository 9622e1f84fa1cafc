package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/tigrazone/gkNextRenderer/engine/core"
	"github.com/tigrazone/gkNextRenderer/engine/renderer/gpu"
)

func (d *Device) CreateShaderModule(code []uint32) (gpu.ShaderModuleID, error) {
	if len(code) == 0 {
		return 0, fmt.Errorf("empty SPIR-V module")
	}
	info := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(code) * 4),
		PCode:    code,
	}
	var module vk.ShaderModule
	if err := resultError(vk.CreateShaderModule(d.handle, &info, nil, &module), "vkCreateShaderModule"); err != nil {
		return 0, err
	}
	return gpu.ShaderModuleID(d.modules.add(module)), nil
}

func (d *Device) DestroyShaderModule(id gpu.ShaderModuleID) {
	if m, ok := d.modules.remove(uint64(id)); ok {
		vk.DestroyShaderModule(d.handle, m, nil)
	}
}

func (d *Device) CreateDescriptorSetLayout(bindings []gpu.DescriptorBinding) (gpu.DescriptorSetLayoutID, error) {
	vkBindings := make([]vk.DescriptorSetLayoutBinding, len(bindings))
	for i, b := range bindings {
		count := b.Count
		if count == 0 {
			count = 1
		}
		vkBindings[i] = vk.DescriptorSetLayoutBinding{
			Binding:         b.Binding,
			DescriptorType:  toDescriptorType(b.Type),
			DescriptorCount: count,
			StageFlags:      vk.ShaderStageFlags(shaderStageFlags(b.Stages)),
		}
	}
	info := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(vkBindings)),
		PBindings:    vkBindings,
	}
	var layout vk.DescriptorSetLayout
	if err := resultError(vk.CreateDescriptorSetLayout(d.handle, &info, nil, &layout), "vkCreateDescriptorSetLayout"); err != nil {
		return 0, err
	}
	return gpu.DescriptorSetLayoutID(d.setLayouts.add(layout)), nil
}

func (d *Device) DestroyDescriptorSetLayout(id gpu.DescriptorSetLayoutID) {
	if l, ok := d.setLayouts.remove(uint64(id)); ok {
		vk.DestroyDescriptorSetLayout(d.handle, l, nil)
	}
}

// CreateDescriptorPool sizes a pool for maxSets sets of the given bindings.
func (d *Device) CreateDescriptorPool(bindings []gpu.DescriptorBinding, maxSets uint32) (gpu.DescriptorPoolID, error) {
	counts := make(map[vk.DescriptorType]uint32)
	var order []vk.DescriptorType
	for _, b := range bindings {
		t := toDescriptorType(b.Type)
		if _, ok := counts[t]; !ok {
			order = append(order, t)
		}
		n := b.Count
		if n == 0 {
			n = 1
		}
		counts[t] += n * maxSets
	}
	sizes := make([]vk.DescriptorPoolSize, len(order))
	for i, t := range order {
		sizes[i] = vk.DescriptorPoolSize{Type: t, DescriptorCount: counts[t]}
	}
	info := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       maxSets,
		PoolSizeCount: uint32(len(sizes)),
		PPoolSizes:    sizes,
	}
	var pool vk.DescriptorPool
	if err := resultError(vk.CreateDescriptorPool(d.handle, &info, nil, &pool), "vkCreateDescriptorPool"); err != nil {
		return 0, err
	}
	return gpu.DescriptorPoolID(d.descPools.add(pool)), nil
}

// DestroyDescriptorPool also frees every set allocated from the pool.
func (d *Device) DestroyDescriptorPool(id gpu.DescriptorPoolID) {
	if p, ok := d.descPools.remove(uint64(id)); ok {
		vk.DestroyDescriptorPool(d.handle, p, nil)
	}
}

func (d *Device) AllocateDescriptorSets(poolID gpu.DescriptorPoolID, layoutID gpu.DescriptorSetLayoutID, count uint32) ([]gpu.DescriptorSetID, error) {
	pool, ok := d.descPools.get(uint64(poolID))
	if !ok {
		return nil, fmt.Errorf("unknown descriptor pool %d", poolID)
	}
	layout, ok := d.setLayouts.get(uint64(layoutID))
	if !ok {
		return nil, fmt.Errorf("unknown descriptor set layout %d", layoutID)
	}
	layouts := make([]vk.DescriptorSetLayout, count)
	for i := range layouts {
		layouts[i] = layout
	}
	info := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     pool,
		DescriptorSetCount: count,
		PSetLayouts:        layouts,
	}
	sets := make([]vk.DescriptorSet, count)
	err := d.locks.safeCall(descriptorUpdates, func() error {
		return resultError(vk.AllocateDescriptorSets(d.handle, &info, &sets[0]), "vkAllocateDescriptorSets")
	})
	if err != nil {
		return nil, err
	}
	ids := make([]gpu.DescriptorSetID, count)
	for i, s := range sets {
		ids[i] = gpu.DescriptorSetID(d.sets.add(s))
	}
	return ids, nil
}

func (d *Device) UpdateDescriptorSet(id gpu.DescriptorSetID, writes []gpu.DescriptorWrite) {
	set, ok := d.sets.get(uint64(id))
	if !ok {
		core.LogError("update of unknown descriptor set %d", id)
		return
	}
	_ = d.locks.safeCall(descriptorUpdates, func() error {
		var vkWrites []vk.WriteDescriptorSet
		for _, w := range writes {
			out := vk.WriteDescriptorSet{
				SType:           vk.StructureTypeWriteDescriptorSet,
				DstSet:          set,
				DstBinding:      w.Binding,
				DescriptorCount: 1,
				DescriptorType:  toDescriptorType(w.Type),
			}
			switch w.Type {
			case gpu.DescriptorTypeAccelerationStructure:
				if accel, ok := d.accels.get(uint64(w.Accel)); ok {
					d.rt.writeAccel(d.handle, set, w.Binding, accel)
				}
				continue
			case gpu.DescriptorTypeStorageImage:
				view, _ := d.views.get(uint64(w.View))
				out.PImageInfo = []vk.DescriptorImageInfo{{ImageView: view, ImageLayout: vk.ImageLayoutGeneral}}
			default:
				b, ok := d.buffers.get(uint64(w.Buffer))
				if !ok {
					core.LogError("descriptor write of unknown buffer %d", w.Buffer)
					continue
				}
				rng := vk.DeviceSize(w.Range)
				if rng == 0 {
					rng = vk.DeviceSize(vk.WholeSize)
				}
				out.PBufferInfo = []vk.DescriptorBufferInfo{{Buffer: b.handle, Range: rng}}
			}
			vkWrites = append(vkWrites, out)
		}
		if len(vkWrites) > 0 {
			vk.UpdateDescriptorSets(d.handle, uint32(len(vkWrites)), vkWrites, 0, nil)
		}
		return nil
	})
}

func (d *Device) CreatePipelineLayout(setLayouts []gpu.DescriptorSetLayoutID, pushConstants []gpu.PushConstantRange) (gpu.PipelineLayoutID, error) {
	layouts := make([]vk.DescriptorSetLayout, len(setLayouts))
	for i, id := range setLayouts {
		l, ok := d.setLayouts.get(uint64(id))
		if !ok {
			return 0, fmt.Errorf("unknown descriptor set layout %d", id)
		}
		layouts[i] = l
	}
	ranges := make([]vk.PushConstantRange, len(pushConstants))
	for i, r := range pushConstants {
		ranges[i] = vk.PushConstantRange{
			StageFlags: vk.ShaderStageFlags(shaderStageFlags(r.Stages)),
			Offset:     r.Offset,
			Size:       r.Size,
		}
	}
	info := vk.PipelineLayoutCreateInfo{
		SType:                  vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount:         uint32(len(layouts)),
		PSetLayouts:            layouts,
		PushConstantRangeCount: uint32(len(ranges)),
		PPushConstantRanges:    ranges,
	}
	var layout vk.PipelineLayout
	if err := resultError(vk.CreatePipelineLayout(d.handle, &info, nil, &layout), "vkCreatePipelineLayout"); err != nil {
		return 0, err
	}
	return gpu.PipelineLayoutID(d.layouts.add(layout)), nil
}

func (d *Device) DestroyPipelineLayout(id gpu.PipelineLayoutID) {
	if l, ok := d.layouts.remove(uint64(id)); ok {
		vk.DestroyPipelineLayout(d.handle, l, nil)
	}
}

func entryPoint(s gpu.ShaderStageDesc) string {
	if s.Entry == "" {
		return "main"
	}
	return s.Entry
}

func (d *Device) CreateComputePipeline(desc gpu.ComputePipelineDesc) (gpu.PipelineID, error) {
	layout, ok := d.layouts.get(uint64(desc.Layout))
	if !ok {
		return 0, fmt.Errorf("%s: unknown pipeline layout %d", desc.Label, desc.Layout)
	}
	module, ok := d.modules.get(uint64(desc.Shader.Module))
	if !ok {
		return 0, fmt.Errorf("%s: unknown shader module %d", desc.Label, desc.Shader.Module)
	}
	info := vk.ComputePipelineCreateInfo{
		SType: vk.StructureTypeComputePipelineCreateInfo,
		Stage: vk.PipelineShaderStageCreateInfo{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageComputeBit,
			Module: module,
			PName:  safeString(entryPoint(desc.Shader)),
		},
		Layout: layout,
	}
	pipelines := make([]vk.Pipeline, 1)
	if err := resultError(vk.CreateComputePipelines(d.handle, nil, 1, []vk.ComputePipelineCreateInfo{info}, nil, pipelines), "vkCreateComputePipelines "+desc.Label); err != nil {
		return 0, err
	}
	return gpu.PipelineID(d.pipelines.add(pipelines[0])), nil
}

func (d *Device) CreateRayTracingPipeline(desc gpu.RayTracingPipelineDesc) (gpu.PipelineID, error) {
	if !d.rt.enabled {
		return 0, gpu.ErrUnsupported
	}
	layout, ok := d.layouts.get(uint64(desc.Layout))
	if !ok {
		return 0, fmt.Errorf("%s: unknown pipeline layout %d", desc.Label, desc.Layout)
	}
	modules := make([]vk.ShaderModule, len(desc.Stages))
	for i, s := range desc.Stages {
		m, ok := d.modules.get(uint64(s.Module))
		if !ok {
			return 0, fmt.Errorf("%s: unknown shader module %d", desc.Label, s.Module)
		}
		modules[i] = m
	}
	if len(modules) == 0 || len(desc.Groups) == 0 {
		return 0, fmt.Errorf("%s: ray tracing pipeline needs stages and groups", desc.Label)
	}
	pipeline, res := d.rt.createPipeline(d.handle, layout, desc.Stages, modules, desc.Groups, desc.MaxRecursionDepth)
	if err := resultError(res, "vkCreateRayTracingPipelinesKHR "+desc.Label); err != nil {
		return 0, err
	}
	return gpu.PipelineID(d.pipelines.add(pipeline)), nil
}

func (d *Device) DestroyPipeline(id gpu.PipelineID) {
	if p, ok := d.pipelines.remove(uint64(id)); ok {
		vk.DestroyPipeline(d.handle, p, nil)
	}
}

func (d *Device) ShaderGroupHandles(id gpu.PipelineID, first, count uint32) ([]byte, error) {
	if !d.rt.enabled {
		return nil, gpu.ErrUnsupported
	}
	p, ok := d.pipelines.get(uint64(id))
	if !ok {
		return nil, fmt.Errorf("unknown pipeline %d", id)
	}
	size := int(count * d.rtProps.ShaderGroupHandleSize)
	data, res := d.rt.groupHandles(d.handle, p, first, count, size)
	if err := resultError(res, "vkGetRayTracingShaderGroupHandlesKHR"); err != nil {
		return nil, err
	}
	return data, nil
}
