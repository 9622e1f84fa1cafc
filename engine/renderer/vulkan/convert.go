package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/tigrazone/gkNextRenderer/engine/renderer/gpu"
)

// Values from VK_KHR_acceleration_structure, VK_KHR_ray_tracing_pipeline and
// VK_KHR_buffer_device_address that the bindings do not name.
const (
	shaderStageRaygen       vk.ShaderStageFlagBits = 0x00000100
	shaderStageAnyHit       vk.ShaderStageFlagBits = 0x00000200
	shaderStageClosestHit   vk.ShaderStageFlagBits = 0x00000400
	shaderStageMiss         vk.ShaderStageFlagBits = 0x00000800
	shaderStageIntersection vk.ShaderStageFlagBits = 0x00001000

	pipelineStageRayTracing vk.PipelineStageFlagBits = 0x00200000
	pipelineStageAccelBuild vk.PipelineStageFlagBits = 0x02000000

	accessAccelRead  vk.AccessFlagBits = 0x00200000
	accessAccelWrite vk.AccessFlagBits = 0x00400000

	bufferUsageShaderBinding vk.BufferUsageFlagBits = 0x00000400
	bufferUsageDeviceAddress vk.BufferUsageFlagBits = 0x00020000
	bufferUsageAccelInput    vk.BufferUsageFlagBits = 0x00080000
	bufferUsageAccelStorage  vk.BufferUsageFlagBits = 0x00100000

	descriptorTypeAccel vk.DescriptorType    = 1000150000
	bindPointRayTracing vk.PipelineBindPoint = 1000165000
)

var formats = map[gpu.Format]vk.Format{
	gpu.FormatUndefined:    vk.FormatUndefined,
	gpu.FormatR32Uint:      vk.FormatR32Uint,
	gpu.FormatRG16Sfloat:   vk.FormatR16g16Sfloat,
	gpu.FormatRGBA16Sfloat: vk.FormatR16g16b16a16Sfloat,
	gpu.FormatRGBA32Sfloat: vk.FormatR32g32b32a32Sfloat,
	gpu.FormatRGBA8Unorm:   vk.FormatR8g8b8a8Unorm,
	gpu.FormatBGRA8Unorm:   vk.FormatB8g8r8a8Unorm,
	gpu.FormatBGRA8Srgb:    vk.FormatB8g8r8a8Srgb,
}

func toFormat(f gpu.Format) vk.Format {
	return formats[f]
}

func fromFormat(f vk.Format) gpu.Format {
	for k, v := range formats {
		if v == f {
			return k
		}
	}
	return gpu.FormatUndefined
}

func toLayout(l gpu.ImageLayout) vk.ImageLayout {
	switch l {
	case gpu.ImageLayoutGeneral:
		return vk.ImageLayoutGeneral
	case gpu.ImageLayoutTransferSrc:
		return vk.ImageLayoutTransferSrcOptimal
	case gpu.ImageLayoutTransferDst:
		return vk.ImageLayoutTransferDstOptimal
	case gpu.ImageLayoutPresentSrc:
		return vk.ImageLayoutPresentSrc
	}
	return vk.ImageLayoutUndefined
}

func toAccess(a gpu.Access) vk.AccessFlags {
	var out vk.AccessFlagBits
	bits := []struct {
		from gpu.Access
		to   vk.AccessFlagBits
	}{
		{gpu.AccessShaderRead, vk.AccessShaderReadBit},
		{gpu.AccessShaderWrite, vk.AccessShaderWriteBit},
		{gpu.AccessTransferRead, vk.AccessTransferReadBit},
		{gpu.AccessTransferWrite, vk.AccessTransferWriteBit},
		{gpu.AccessHostWrite, vk.AccessHostWriteBit},
		{gpu.AccessAccelRead, accessAccelRead},
		{gpu.AccessAccelWrite, accessAccelWrite},
		{gpu.AccessMemoryRead, vk.AccessMemoryReadBit},
	}
	for _, b := range bits {
		if a&b.from != 0 {
			out |= b.to
		}
	}
	return vk.AccessFlags(out)
}

func toStage(s gpu.PipelineStage) vk.PipelineStageFlags {
	var out vk.PipelineStageFlagBits
	bits := []struct {
		from gpu.PipelineStage
		to   vk.PipelineStageFlagBits
	}{
		{gpu.PipelineStageTopOfPipe, vk.PipelineStageTopOfPipeBit},
		{gpu.PipelineStageCompute, vk.PipelineStageComputeShaderBit},
		{gpu.PipelineStageRayTracing, pipelineStageRayTracing},
		{gpu.PipelineStageTransfer, vk.PipelineStageTransferBit},
		{gpu.PipelineStageHost, vk.PipelineStageHostBit},
		{gpu.PipelineStageAccelBuild, pipelineStageAccelBuild},
		{gpu.PipelineStageBottomOfPipe, vk.PipelineStageBottomOfPipeBit},
		{gpu.PipelineStageAllCommands, vk.PipelineStageAllCommandsBit},
	}
	for _, b := range bits {
		if s&b.from != 0 {
			out |= b.to
		}
	}
	return vk.PipelineStageFlags(out)
}

func toImageUsage(u gpu.ImageUsage) vk.ImageUsageFlags {
	var out vk.ImageUsageFlagBits
	if u&gpu.ImageUsageStorage != 0 {
		out |= vk.ImageUsageStorageBit
	}
	if u&gpu.ImageUsageTransferSrc != 0 {
		out |= vk.ImageUsageTransferSrcBit
	}
	if u&gpu.ImageUsageTransferDst != 0 {
		out |= vk.ImageUsageTransferDstBit
	}
	if u&gpu.ImageUsageSampled != 0 {
		out |= vk.ImageUsageSampledBit
	}
	if u&gpu.ImageUsageColorTarget != 0 {
		out |= vk.ImageUsageColorAttachmentBit
	}
	return vk.ImageUsageFlags(out)
}

func toBufferUsage(u gpu.BufferUsage) vk.BufferUsageFlags {
	var out vk.BufferUsageFlagBits
	bits := []struct {
		from gpu.BufferUsage
		to   vk.BufferUsageFlagBits
	}{
		{gpu.BufferUsageUniform, vk.BufferUsageUniformBufferBit},
		{gpu.BufferUsageStorage, vk.BufferUsageStorageBufferBit},
		{gpu.BufferUsageTransferSrc, vk.BufferUsageTransferSrcBit},
		{gpu.BufferUsageTransferDst, vk.BufferUsageTransferDstBit},
		{gpu.BufferUsageDeviceAddress, bufferUsageDeviceAddress},
		{gpu.BufferUsageAccelStorage, bufferUsageAccelStorage},
		{gpu.BufferUsageAccelInput, bufferUsageAccelInput},
		{gpu.BufferUsageShaderBinding, bufferUsageShaderBinding},
	}
	for _, b := range bits {
		if u&b.from != 0 {
			out |= b.to
		}
	}
	return vk.BufferUsageFlags(out)
}

func toMemoryProperty(m gpu.MemoryProperty) vk.MemoryPropertyFlagBits {
	var out vk.MemoryPropertyFlagBits
	if m&gpu.MemoryDeviceLocal != 0 {
		out |= vk.MemoryPropertyDeviceLocalBit
	}
	if m&gpu.MemoryHostVisible != 0 {
		out |= vk.MemoryPropertyHostVisibleBit
	}
	if m&gpu.MemoryHostCoherent != 0 {
		out |= vk.MemoryPropertyHostCoherentBit
	}
	return out
}

func shaderStageFlags(s gpu.ShaderStage) vk.ShaderStageFlagBits {
	var out vk.ShaderStageFlagBits
	bits := []struct {
		from gpu.ShaderStage
		to   vk.ShaderStageFlagBits
	}{
		{gpu.ShaderStageRayGen, shaderStageRaygen},
		{gpu.ShaderStageMiss, shaderStageMiss},
		{gpu.ShaderStageClosestHit, shaderStageClosestHit},
		{gpu.ShaderStageAnyHit, shaderStageAnyHit},
		{gpu.ShaderStageIntersection, shaderStageIntersection},
		{gpu.ShaderStageCompute, vk.ShaderStageComputeBit},
	}
	for _, b := range bits {
		if s&b.from != 0 {
			out |= b.to
		}
	}
	return out
}

func toDescriptorType(t gpu.DescriptorType) vk.DescriptorType {
	switch t {
	case gpu.DescriptorTypeUniformBuffer:
		return vk.DescriptorTypeUniformBuffer
	case gpu.DescriptorTypeStorageBuffer:
		return vk.DescriptorTypeStorageBuffer
	case gpu.DescriptorTypeStorageImage:
		return vk.DescriptorTypeStorageImage
	}
	return descriptorTypeAccel
}

func toBindPoint(b gpu.BindPoint) vk.PipelineBindPoint {
	if b == gpu.BindPointRayTracing {
		return bindPointRayTracing
	}
	return vk.PipelineBindPointCompute
}

func toPresentMode(p gpu.PresentMode) vk.PresentMode {
	switch p {
	case gpu.PresentModeImmediate:
		return vk.PresentModeImmediate
	case gpu.PresentModeMailbox:
		return vk.PresentModeMailbox
	case gpu.PresentModeFifoRelaxed:
		return vk.PresentModeFifoRelaxed
	}
	return vk.PresentModeFifo
}

func fromDeviceType(t vk.PhysicalDeviceType) gpu.PhysicalDeviceType {
	switch t {
	case vk.PhysicalDeviceTypeIntegratedGpu:
		return gpu.PhysicalDeviceIntegrated
	case vk.PhysicalDeviceTypeDiscreteGpu:
		return gpu.PhysicalDeviceDiscrete
	case vk.PhysicalDeviceTypeVirtualGpu:
		return gpu.PhysicalDeviceVirtual
	case vk.PhysicalDeviceTypeCpu:
		return gpu.PhysicalDeviceCPU
	}
	return gpu.PhysicalDeviceOther
}

var colorSubresource = vk.ImageSubresourceRange{
	AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
	LevelCount: 1,
	LayerCount: 1,
}

var colorLayers = vk.ImageSubresourceLayers{
	AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
	LayerCount: 1,
}
