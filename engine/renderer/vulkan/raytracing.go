package vulkan

/*
#cgo CFLAGS: -DVK_NO_PROTOTYPES
#include <stdlib.h>
#include <string.h>
#include <vulkan/vulkan.h>

typedef struct rtFunctions {
	PFN_vkAllocateMemory                          allocateMemory;
	PFN_vkUpdateDescriptorSets                    updateDescriptorSets;
	PFN_vkGetBufferDeviceAddressKHR               bufferAddress;
	PFN_vkCreateAccelerationStructureKHR          createAccel;
	PFN_vkDestroyAccelerationStructureKHR         destroyAccel;
	PFN_vkGetAccelerationStructureBuildSizesKHR   buildSizes;
	PFN_vkGetAccelerationStructureDeviceAddressKHR accelAddress;
	PFN_vkCmdBuildAccelerationStructuresKHR       cmdBuild;
	PFN_vkCreateRayTracingPipelinesKHR            createPipelines;
	PFN_vkGetRayTracingShaderGroupHandlesKHR      groupHandles;
	PFN_vkCmdTraceRaysKHR                         cmdTraceRays;
} rtFunctions;

typedef struct rtGeometry {
	int             kind;
	VkDeviceAddress vertexAddress;
	VkDeviceSize    vertexStride;
	uint32_t        maxVertex;
	VkDeviceAddress indexAddress;
	VkDeviceAddress aabbAddress;
	VkDeviceSize    aabbStride;
	VkDeviceAddress instanceAddress;
	uint32_t        primitiveCount;
	uint32_t        firstVertex;
	int             opaque;
} rtGeometry;

typedef struct rtGroup {
	int      kind;
	uint32_t general;
	uint32_t closestHit;
	uint32_t anyHit;
	uint32_t intersection;
} rtGroup;

typedef struct rtFeatures {
	VkPhysicalDeviceBufferDeviceAddressFeatures      address;
	VkPhysicalDeviceAccelerationStructureFeaturesKHR accel;
	VkPhysicalDeviceRayTracingPipelineFeaturesKHR    pipeline;
} rtFeatures;

static PFN_vkGetDeviceProcAddr rtDeviceProcAddr(void* gipa, VkInstance instance) {
	return (PFN_vkGetDeviceProcAddr)((PFN_vkGetInstanceProcAddr)gipa)(instance, "vkGetDeviceProcAddr");
}

// rtLoad resolves the device entry points. It returns 1 when every ray
// tracing entry point is present.
static int rtLoad(void* gipa, VkInstance instance, VkDevice device, rtFunctions* f) {
	memset(f, 0, sizeof(*f));
	PFN_vkGetDeviceProcAddr gdpa = rtDeviceProcAddr(gipa, instance);
	if (!gdpa) {
		return 0;
	}
	f->allocateMemory = (PFN_vkAllocateMemory)gdpa(device, "vkAllocateMemory");
	f->updateDescriptorSets = (PFN_vkUpdateDescriptorSets)gdpa(device, "vkUpdateDescriptorSets");
	f->bufferAddress = (PFN_vkGetBufferDeviceAddressKHR)gdpa(device, "vkGetBufferDeviceAddressKHR");
	f->createAccel = (PFN_vkCreateAccelerationStructureKHR)gdpa(device, "vkCreateAccelerationStructureKHR");
	f->destroyAccel = (PFN_vkDestroyAccelerationStructureKHR)gdpa(device, "vkDestroyAccelerationStructureKHR");
	f->buildSizes = (PFN_vkGetAccelerationStructureBuildSizesKHR)gdpa(device, "vkGetAccelerationStructureBuildSizesKHR");
	f->accelAddress = (PFN_vkGetAccelerationStructureDeviceAddressKHR)gdpa(device, "vkGetAccelerationStructureDeviceAddressKHR");
	f->cmdBuild = (PFN_vkCmdBuildAccelerationStructuresKHR)gdpa(device, "vkCmdBuildAccelerationStructuresKHR");
	f->createPipelines = (PFN_vkCreateRayTracingPipelinesKHR)gdpa(device, "vkCreateRayTracingPipelinesKHR");
	f->groupHandles = (PFN_vkGetRayTracingShaderGroupHandlesKHR)gdpa(device, "vkGetRayTracingShaderGroupHandlesKHR");
	f->cmdTraceRays = (PFN_vkCmdTraceRaysKHR)gdpa(device, "vkCmdTraceRaysKHR");
	return f->bufferAddress && f->createAccel && f->destroyAccel && f->buildSizes && f->accelAddress &&
		f->cmdBuild && f->createPipelines && f->groupHandles && f->cmdTraceRays;
}

static void rtProperties(void* gipa, VkInstance instance, VkPhysicalDevice physical, uint32_t* out) {
	PFN_vkGetPhysicalDeviceProperties2 props2 = (PFN_vkGetPhysicalDeviceProperties2)
		((PFN_vkGetInstanceProcAddr)gipa)(instance, "vkGetPhysicalDeviceProperties2");
	VkPhysicalDeviceRayTracingPipelinePropertiesKHR rt;
	memset(&rt, 0, sizeof(rt));
	rt.sType = VK_STRUCTURE_TYPE_PHYSICAL_DEVICE_RAY_TRACING_PIPELINE_PROPERTIES_KHR;
	VkPhysicalDeviceProperties2 p;
	memset(&p, 0, sizeof(p));
	p.sType = VK_STRUCTURE_TYPE_PHYSICAL_DEVICE_PROPERTIES_2;
	p.pNext = &rt;
	if (props2) {
		props2(physical, &p);
	}
	out[0] = rt.shaderGroupHandleSize;
	out[1] = rt.shaderGroupHandleAlignment;
	out[2] = rt.shaderGroupBaseAlignment;
	out[3] = rt.maxRayRecursionDepth;
}

static void* rtFeatureChain(int rayTracing) {
	rtFeatures* f = (rtFeatures*)calloc(1, sizeof(rtFeatures));
	f->address.sType = VK_STRUCTURE_TYPE_PHYSICAL_DEVICE_BUFFER_DEVICE_ADDRESS_FEATURES;
	f->address.bufferDeviceAddress = VK_TRUE;
	if (rayTracing) {
		f->address.pNext = &f->accel;
		f->accel.sType = VK_STRUCTURE_TYPE_PHYSICAL_DEVICE_ACCELERATION_STRUCTURE_FEATURES_KHR;
		f->accel.accelerationStructure = VK_TRUE;
		f->accel.pNext = &f->pipeline;
		f->pipeline.sType = VK_STRUCTURE_TYPE_PHYSICAL_DEVICE_RAY_TRACING_PIPELINE_FEATURES_KHR;
		f->pipeline.rayTracingPipeline = VK_TRUE;
	}
	return f;
}

static VkResult rtAllocate(rtFunctions* f, VkDevice device, VkDeviceSize size, uint32_t typeIndex,
		int deviceAddress, VkDeviceMemory* out) {
	VkMemoryAllocateFlagsInfo flags;
	memset(&flags, 0, sizeof(flags));
	flags.sType = VK_STRUCTURE_TYPE_MEMORY_ALLOCATE_FLAGS_INFO;
	flags.flags = VK_MEMORY_ALLOCATE_DEVICE_ADDRESS_BIT;
	VkMemoryAllocateInfo info;
	memset(&info, 0, sizeof(info));
	info.sType = VK_STRUCTURE_TYPE_MEMORY_ALLOCATE_INFO;
	info.pNext = deviceAddress ? &flags : NULL;
	info.allocationSize = size;
	info.memoryTypeIndex = typeIndex;
	return f->allocateMemory(device, &info, NULL, out);
}

static VkDeviceAddress rtBufferAddress(rtFunctions* f, VkDevice device, VkBuffer buffer) {
	VkBufferDeviceAddressInfo info;
	memset(&info, 0, sizeof(info));
	info.sType = VK_STRUCTURE_TYPE_BUFFER_DEVICE_ADDRESS_INFO;
	info.buffer = buffer;
	return f->bufferAddress(device, &info);
}

static void rtFillGeometry(const rtGeometry* in, VkAccelerationStructureGeometryKHR* out) {
	memset(out, 0, sizeof(*out));
	out->sType = VK_STRUCTURE_TYPE_ACCELERATION_STRUCTURE_GEOMETRY_KHR;
	out->flags = in->opaque ? VK_GEOMETRY_OPAQUE_BIT_KHR : 0;
	switch (in->kind) {
	case 0:
		out->geometryType = VK_GEOMETRY_TYPE_TRIANGLES_KHR;
		out->geometry.triangles.sType = VK_STRUCTURE_TYPE_ACCELERATION_STRUCTURE_GEOMETRY_TRIANGLES_DATA_KHR;
		out->geometry.triangles.vertexFormat = VK_FORMAT_R32G32B32_SFLOAT;
		out->geometry.triangles.vertexData.deviceAddress = in->vertexAddress;
		out->geometry.triangles.vertexStride = in->vertexStride;
		out->geometry.triangles.maxVertex = in->maxVertex;
		out->geometry.triangles.indexType = VK_INDEX_TYPE_UINT32;
		out->geometry.triangles.indexData.deviceAddress = in->indexAddress;
		break;
	case 1:
		out->geometryType = VK_GEOMETRY_TYPE_AABBS_KHR;
		out->geometry.aabbs.sType = VK_STRUCTURE_TYPE_ACCELERATION_STRUCTURE_GEOMETRY_AABBS_DATA_KHR;
		out->geometry.aabbs.data.deviceAddress = in->aabbAddress;
		out->geometry.aabbs.stride = in->aabbStride;
		break;
	default:
		out->geometryType = VK_GEOMETRY_TYPE_INSTANCES_KHR;
		out->geometry.instances.sType = VK_STRUCTURE_TYPE_ACCELERATION_STRUCTURE_GEOMETRY_INSTANCES_DATA_KHR;
		out->geometry.instances.arrayOfPointers = VK_FALSE;
		out->geometry.instances.data.deviceAddress = in->instanceAddress;
		break;
	}
}

static VkAccelerationStructureBuildGeometryInfoKHR* rtBuildInfo(int top, const rtGeometry* g, uint32_t count) {
	VkAccelerationStructureGeometryKHR* geometries = calloc(count, sizeof(VkAccelerationStructureGeometryKHR));
	for (uint32_t i = 0; i < count; i++) {
		rtFillGeometry(&g[i], &geometries[i]);
	}
	VkAccelerationStructureBuildGeometryInfoKHR* info = calloc(1, sizeof(VkAccelerationStructureBuildGeometryInfoKHR));
	info->sType = VK_STRUCTURE_TYPE_ACCELERATION_STRUCTURE_BUILD_GEOMETRY_INFO_KHR;
	info->type = top ? VK_ACCELERATION_STRUCTURE_TYPE_TOP_LEVEL_KHR : VK_ACCELERATION_STRUCTURE_TYPE_BOTTOM_LEVEL_KHR;
	info->flags = VK_BUILD_ACCELERATION_STRUCTURE_PREFER_FAST_TRACE_BIT_KHR;
	info->mode = VK_BUILD_ACCELERATION_STRUCTURE_MODE_BUILD_KHR;
	info->geometryCount = count;
	info->pGeometries = geometries;
	return info;
}

static void rtFreeBuildInfo(VkAccelerationStructureBuildGeometryInfoKHR* info) {
	free((void*)info->pGeometries);
	free(info);
}

static void rtBuildSizes(rtFunctions* f, VkDevice device, int top, const rtGeometry* g, uint32_t count, VkDeviceSize* out) {
	VkAccelerationStructureBuildGeometryInfoKHR* info = rtBuildInfo(top, g, count);
	uint32_t* primitives = calloc(count, sizeof(uint32_t));
	for (uint32_t i = 0; i < count; i++) {
		primitives[i] = g[i].primitiveCount;
	}
	VkAccelerationStructureBuildSizesInfoKHR sizes;
	memset(&sizes, 0, sizeof(sizes));
	sizes.sType = VK_STRUCTURE_TYPE_ACCELERATION_STRUCTURE_BUILD_SIZES_INFO_KHR;
	f->buildSizes(device, VK_ACCELERATION_STRUCTURE_BUILD_TYPE_DEVICE_KHR, info, primitives, &sizes);
	out[0] = sizes.accelerationStructureSize;
	out[1] = sizes.buildScratchSize;
	out[2] = sizes.updateScratchSize;
	free(primitives);
	rtFreeBuildInfo(info);
}

static VkResult rtCreateAccel(rtFunctions* f, VkDevice device, int top, VkBuffer buffer, VkDeviceSize offset,
		VkDeviceSize size, VkAccelerationStructureKHR* out) {
	VkAccelerationStructureCreateInfoKHR info;
	memset(&info, 0, sizeof(info));
	info.sType = VK_STRUCTURE_TYPE_ACCELERATION_STRUCTURE_CREATE_INFO_KHR;
	info.buffer = buffer;
	info.offset = offset;
	info.size = size;
	info.type = top ? VK_ACCELERATION_STRUCTURE_TYPE_TOP_LEVEL_KHR : VK_ACCELERATION_STRUCTURE_TYPE_BOTTOM_LEVEL_KHR;
	return f->createAccel(device, &info, NULL, out);
}

static VkDeviceAddress rtAccelAddress(rtFunctions* f, VkDevice device, VkAccelerationStructureKHR accel) {
	VkAccelerationStructureDeviceAddressInfoKHR info;
	memset(&info, 0, sizeof(info));
	info.sType = VK_STRUCTURE_TYPE_ACCELERATION_STRUCTURE_DEVICE_ADDRESS_INFO_KHR;
	info.accelerationStructure = accel;
	return f->accelAddress(device, &info);
}

static void rtDestroyAccel(rtFunctions* f, VkDevice device, VkAccelerationStructureKHR accel) {
	f->destroyAccel(device, accel, NULL);
}

static void rtCmdBuild(rtFunctions* f, VkCommandBuffer cb, int top, VkAccelerationStructureKHR dst,
		VkDeviceAddress scratch, const rtGeometry* g, uint32_t count) {
	VkAccelerationStructureBuildGeometryInfoKHR* info = rtBuildInfo(top, g, count);
	info->dstAccelerationStructure = dst;
	info->scratchData.deviceAddress = scratch;
	VkAccelerationStructureBuildRangeInfoKHR* ranges = calloc(count, sizeof(VkAccelerationStructureBuildRangeInfoKHR));
	for (uint32_t i = 0; i < count; i++) {
		ranges[i].primitiveCount = g[i].primitiveCount;
		ranges[i].firstVertex = g[i].firstVertex;
	}
	const VkAccelerationStructureBuildRangeInfoKHR* rangePtr = ranges;
	f->cmdBuild(cb, 1, info, &rangePtr);
	free(ranges);
	rtFreeBuildInfo(info);
}

static VkResult rtCreatePipeline(rtFunctions* f, VkDevice device, VkPipelineLayout layout,
		const uint32_t* stageFlags, const VkShaderModule* modules, uint32_t stageCount,
		const rtGroup* groups, uint32_t groupCount, uint32_t recursion, VkPipeline* out) {
	VkPipelineShaderStageCreateInfo* stages = calloc(stageCount, sizeof(VkPipelineShaderStageCreateInfo));
	for (uint32_t i = 0; i < stageCount; i++) {
		stages[i].sType = VK_STRUCTURE_TYPE_PIPELINE_SHADER_STAGE_CREATE_INFO;
		stages[i].stage = (VkShaderStageFlagBits)stageFlags[i];
		stages[i].module = modules[i];
		stages[i].pName = "main";
	}
	VkRayTracingShaderGroupCreateInfoKHR* infos = calloc(groupCount, sizeof(VkRayTracingShaderGroupCreateInfoKHR));
	for (uint32_t i = 0; i < groupCount; i++) {
		infos[i].sType = VK_STRUCTURE_TYPE_RAY_TRACING_SHADER_GROUP_CREATE_INFO_KHR;
		switch (groups[i].kind) {
		case 0:
			infos[i].type = VK_RAY_TRACING_SHADER_GROUP_TYPE_GENERAL_KHR;
			break;
		case 1:
			infos[i].type = VK_RAY_TRACING_SHADER_GROUP_TYPE_TRIANGLES_HIT_GROUP_KHR;
			break;
		default:
			infos[i].type = VK_RAY_TRACING_SHADER_GROUP_TYPE_PROCEDURAL_HIT_GROUP_KHR;
			break;
		}
		infos[i].generalShader = groups[i].general;
		infos[i].closestHitShader = groups[i].closestHit;
		infos[i].anyHitShader = groups[i].anyHit;
		infos[i].intersectionShader = groups[i].intersection;
	}
	VkRayTracingPipelineCreateInfoKHR info;
	memset(&info, 0, sizeof(info));
	info.sType = VK_STRUCTURE_TYPE_RAY_TRACING_PIPELINE_CREATE_INFO_KHR;
	info.stageCount = stageCount;
	info.pStages = stages;
	info.groupCount = groupCount;
	info.pGroups = infos;
	info.maxPipelineRayRecursionDepth = recursion;
	info.layout = layout;
	VkResult res = f->createPipelines(device, VK_NULL_HANDLE, VK_NULL_HANDLE, 1, &info, NULL, out);
	free(infos);
	free(stages);
	return res;
}

static VkResult rtGroupHandles(rtFunctions* f, VkDevice device, VkPipeline pipeline, uint32_t first,
		uint32_t count, size_t size, void* data) {
	return f->groupHandles(device, pipeline, first, count, size, data);
}

static void rtCmdTraceRays(rtFunctions* f, VkCommandBuffer cb, const VkDeviceAddress* r,
		uint32_t width, uint32_t height, uint32_t depth) {
	VkStridedDeviceAddressRegionKHR regions[4];
	for (int i = 0; i < 4; i++) {
		regions[i].deviceAddress = r[i*3+0];
		regions[i].stride = r[i*3+1];
		regions[i].size = r[i*3+2];
	}
	f->cmdTraceRays(cb, &regions[0], &regions[1], &regions[2], &regions[3], width, height, depth);
}

static void rtWriteAccel(rtFunctions* f, VkDevice device, VkDescriptorSet set, uint32_t binding,
		VkAccelerationStructureKHR accel) {
	VkWriteDescriptorSetAccelerationStructureKHR as;
	memset(&as, 0, sizeof(as));
	as.sType = VK_STRUCTURE_TYPE_WRITE_DESCRIPTOR_SET_ACCELERATION_STRUCTURE_KHR;
	as.accelerationStructureCount = 1;
	as.pAccelerationStructures = &accel;
	VkWriteDescriptorSet write;
	memset(&write, 0, sizeof(write));
	write.sType = VK_STRUCTURE_TYPE_WRITE_DESCRIPTOR_SET;
	write.pNext = &as;
	write.dstSet = set;
	write.dstBinding = binding;
	write.descriptorCount = 1;
	write.descriptorType = VK_DESCRIPTOR_TYPE_ACCELERATION_STRUCTURE_KHR;
	f->updateDescriptorSets(device, 1, &write, 0, NULL);
}
*/
import "C"

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/tigrazone/gkNextRenderer/engine/renderer/gpu"
)

// Ray tracing extensions a device must expose to be reported as ray tracing capable.
var rayTracingExtensions = []string{
	"VK_KHR_acceleration_structure",
	"VK_KHR_ray_tracing_pipeline",
	"VK_KHR_deferred_host_operations",
	"VK_KHR_buffer_device_address",
}

// accelHandle wraps a native acceleration structure so the rest of the package
// can hold it without cgo types.
type accelHandle struct {
	h C.VkAccelerationStructureKHR
}

// rayTracing holds the entry points goki/vulkan does not bind. They are
// resolved through the loader handed over by glfw.
type rayTracing struct {
	fns     *C.rtFunctions
	enabled bool
}

func cDevice(d vk.Device) C.VkDevice                   { return C.VkDevice(unsafe.Pointer(d)) }
func cInstance(i vk.Instance) C.VkInstance             { return C.VkInstance(unsafe.Pointer(i)) }
func cPhysical(p vk.PhysicalDevice) C.VkPhysicalDevice { return C.VkPhysicalDevice(unsafe.Pointer(p)) }
func cBuffer(b vk.Buffer) C.VkBuffer                   { return C.VkBuffer(unsafe.Pointer(b)) }
func cCommandBuffer(cb vk.CommandBuffer) C.VkCommandBuffer {
	return C.VkCommandBuffer(unsafe.Pointer(cb))
}
func cPipelineLayout(l vk.PipelineLayout) C.VkPipelineLayout {
	return C.VkPipelineLayout(unsafe.Pointer(l))
}
func cShaderModule(m vk.ShaderModule) C.VkShaderModule { return C.VkShaderModule(unsafe.Pointer(m)) }
func cPipeline(p vk.Pipeline) C.VkPipeline             { return C.VkPipeline(unsafe.Pointer(p)) }
func cDescriptorSet(s vk.DescriptorSet) C.VkDescriptorSet {
	return C.VkDescriptorSet(unsafe.Pointer(s))
}

func loadRayTracing(procAddr unsafe.Pointer, instance vk.Instance, device vk.Device, requested bool) (*rayTracing, error) {
	fns := (*C.rtFunctions)(C.calloc(1, C.size_t(unsafe.Sizeof(C.rtFunctions{}))))
	complete := C.rtLoad(procAddr, cInstance(instance), cDevice(device), fns) == 1
	if fns.allocateMemory == nil || fns.updateDescriptorSets == nil {
		C.free(unsafe.Pointer(fns))
		return nil, fmt.Errorf("failed to resolve core device entry points")
	}
	if requested && !complete {
		C.free(unsafe.Pointer(fns))
		return nil, fmt.Errorf("%w: ray tracing entry points are missing", gpu.ErrUnsupported)
	}
	return &rayTracing{fns: fns, enabled: requested && complete}, nil
}

func (rt *rayTracing) release() {
	if rt.fns != nil {
		C.free(unsafe.Pointer(rt.fns))
		rt.fns = nil
	}
}

func queryRayTracingProperties(procAddr unsafe.Pointer, instance vk.Instance, physical vk.PhysicalDevice) gpu.RayTracingProperties {
	var out [4]C.uint32_t
	C.rtProperties(procAddr, cInstance(instance), cPhysical(physical), &out[0])
	return gpu.RayTracingProperties{
		ShaderGroupHandleSize:      uint32(out[0]),
		ShaderGroupHandleAlignment: uint32(out[1]),
		ShaderGroupBaseAlignment:   uint32(out[2]),
		MaxRayRecursionDepth:       uint32(out[3]),
	}
}

// featureChain returns a C allocated pNext chain enabling buffer device
// addresses and, when rayTracing is set, the ray tracing features.
func featureChain(rayTracing bool) (unsafe.Pointer, func()) {
	chain := C.rtFeatureChain(cBool(rayTracing))
	return chain, func() { C.free(chain) }
}

func cBool(b bool) C.int {
	if b {
		return 1
	}
	return 0
}

func (rt *rayTracing) allocate(device vk.Device, size uint64, typeIndex uint32, deviceAddress bool) (vk.DeviceMemory, vk.Result) {
	var mem C.VkDeviceMemory
	res := C.rtAllocate(rt.fns, cDevice(device), C.VkDeviceSize(size), C.uint32_t(typeIndex), cBool(deviceAddress), &mem)
	return vk.DeviceMemory(unsafe.Pointer(mem)), vk.Result(res)
}

func (rt *rayTracing) bufferAddress(device vk.Device, buffer vk.Buffer) uint64 {
	if rt.fns.bufferAddress == nil {
		return 0
	}
	return uint64(C.rtBufferAddress(rt.fns, cDevice(device), cBuffer(buffer)))
}

func toRTGeometries(geometries []gpu.AccelGeometry) []C.rtGeometry {
	out := make([]C.rtGeometry, len(geometries))
	for i, g := range geometries {
		c := &out[i]
		switch {
		case g.InstanceCount > 0:
			c.kind = 2
			c.instanceAddress = C.VkDeviceAddress(g.InstanceAddress)
		case g.Procedural:
			c.kind = 1
			c.aabbAddress = C.VkDeviceAddress(g.AABBAddress)
			c.aabbStride = C.VkDeviceSize(g.AABBStride)
		default:
			c.kind = 0
			c.vertexAddress = C.VkDeviceAddress(g.VertexAddress)
			c.vertexStride = C.VkDeviceSize(g.VertexStride)
			c.maxVertex = C.uint32_t(g.VertexCount)
			c.indexAddress = C.VkDeviceAddress(g.IndexAddress)
			c.firstVertex = C.uint32_t(g.FirstVertex)
		}
		c.primitiveCount = C.uint32_t(g.PrimitiveCount())
		c.opaque = cBool(g.Opaque)
	}
	return out
}

func (rt *rayTracing) buildSizes(device vk.Device, kind gpu.AccelKind, geometries []gpu.AccelGeometry) gpu.AccelBuildSizes {
	if len(geometries) == 0 {
		return gpu.AccelBuildSizes{}
	}
	g := toRTGeometries(geometries)
	var out [3]C.VkDeviceSize
	C.rtBuildSizes(rt.fns, cDevice(device), cBool(kind == gpu.AccelTopLevel), &g[0], C.uint32_t(len(g)), &out[0])
	return gpu.AccelBuildSizes{
		AccelerationStructureSize: uint64(out[0]),
		BuildScratchSize:          uint64(out[1]),
		UpdateScratchSize:         uint64(out[2]),
	}
}

func (rt *rayTracing) createAccel(device vk.Device, kind gpu.AccelKind, buffer vk.Buffer, offset, size uint64) (accelHandle, vk.Result) {
	var accel C.VkAccelerationStructureKHR
	res := C.rtCreateAccel(rt.fns, cDevice(device), cBool(kind == gpu.AccelTopLevel), cBuffer(buffer),
		C.VkDeviceSize(offset), C.VkDeviceSize(size), &accel)
	return accelHandle{h: accel}, vk.Result(res)
}

func (rt *rayTracing) accelAddress(device vk.Device, accel accelHandle) uint64 {
	return uint64(C.rtAccelAddress(rt.fns, cDevice(device), accel.h))
}

func (rt *rayTracing) destroyAccel(device vk.Device, accel accelHandle) {
	C.rtDestroyAccel(rt.fns, cDevice(device), accel.h)
}

func (rt *rayTracing) cmdBuild(cb vk.CommandBuffer, build gpu.AccelBuild, dst accelHandle) {
	if len(build.Geometries) == 0 {
		return
	}
	g := toRTGeometries(build.Geometries)
	C.rtCmdBuild(rt.fns, cCommandBuffer(cb), cBool(build.Kind == gpu.AccelTopLevel), dst.h,
		C.VkDeviceAddress(build.ScratchAddress), &g[0], C.uint32_t(len(g)))
}

func (rt *rayTracing) createPipeline(device vk.Device, layout vk.PipelineLayout, stages []gpu.ShaderStageDesc,
	modules []vk.ShaderModule, groups []gpu.ShaderGroup, recursion uint32) (vk.Pipeline, vk.Result) {
	flags := make([]C.uint32_t, len(stages))
	cModules := make([]C.VkShaderModule, len(stages))
	for i, s := range stages {
		flags[i] = C.uint32_t(shaderStageFlags(s.Stage))
		cModules[i] = cShaderModule(modules[i])
	}
	cGroups := make([]C.rtGroup, len(groups))
	for i, g := range groups {
		cGroups[i] = C.rtGroup{
			kind:         C.int(g.Type),
			general:      C.uint32_t(g.General),
			closestHit:   C.uint32_t(g.ClosestHit),
			anyHit:       C.uint32_t(g.AnyHit),
			intersection: C.uint32_t(g.Intersection),
		}
	}
	var pipeline C.VkPipeline
	res := C.rtCreatePipeline(rt.fns, cDevice(device), cPipelineLayout(layout), &flags[0], &cModules[0],
		C.uint32_t(len(stages)), &cGroups[0], C.uint32_t(len(cGroups)), C.uint32_t(recursion), &pipeline)
	return vk.Pipeline(unsafe.Pointer(pipeline)), vk.Result(res)
}

func (rt *rayTracing) groupHandles(device vk.Device, pipeline vk.Pipeline, first, count uint32, size int) ([]byte, vk.Result) {
	data := make([]byte, size)
	if size == 0 {
		return data, vk.Success
	}
	res := C.rtGroupHandles(rt.fns, cDevice(device), cPipeline(pipeline), C.uint32_t(first), C.uint32_t(count),
		C.size_t(size), unsafe.Pointer(&data[0]))
	return data, vk.Result(res)
}

func (rt *rayTracing) cmdTraceRays(cb vk.CommandBuffer, regions [4]gpu.StridedRegion, width, height, depth uint32) {
	var r [12]C.VkDeviceAddress
	for i, region := range regions {
		r[i*3+0] = C.VkDeviceAddress(region.Address)
		r[i*3+1] = C.VkDeviceAddress(region.Stride)
		r[i*3+2] = C.VkDeviceAddress(region.Size)
	}
	C.rtCmdTraceRays(rt.fns, cCommandBuffer(cb), &r[0], C.uint32_t(width), C.uint32_t(height), C.uint32_t(depth))
}

func (rt *rayTracing) writeAccel(device vk.Device, set vk.DescriptorSet, binding uint32, accel accelHandle) {
	C.rtWriteAccel(rt.fns, cDevice(device), cDescriptorSet(set), C.uint32_t(binding), accel.h)
}
