package gpu

import (
	"errors"
	"time"
)

var (
	// ErrOutOfDate means the swap-chain no longer matches the surface and must be recreated.
	ErrOutOfDate = errors.New("swapchain out of date")
	// ErrSuboptimal means the operation succeeded but the swap-chain should be recreated.
	ErrSuboptimal  = errors.New("swapchain suboptimal")
	ErrDeviceLost  = errors.New("device lost")
	ErrOutOfMemory = errors.New("out of device memory")
	ErrTimeout     = errors.New("wait timed out")
	ErrUnsupported = errors.New("operation not supported by device")
)

// OpenOptions selects the optional features requested when opening a device.
type OpenOptions struct {
	RayTracing bool
	Validation bool
}

// Instance enumerates the physical devices able to present to the current surface.
type Instance interface {
	PhysicalDevices() ([]PhysicalDeviceInfo, error)
	Open(index int, opts OpenOptions) (Device, error)
	Destroy()
}

// Device is the logical device plus its graphics/present queue.
type Device interface {
	Info() PhysicalDeviceInfo
	RayTracingEnabled() bool
	RayTracingProperties() RayTracingProperties

	// SurfaceExtent reports the current framebuffer size of the presentation surface.
	SurfaceExtent() Extent2D
	CreateSwapchain(desc SwapchainDesc) (*Swapchain, error)
	DestroySwapchain(sc *Swapchain)
	// AcquireNextImage returns ErrOutOfDate without an index, or ErrSuboptimal with a valid one.
	AcquireNextImage(sc *Swapchain, signal SemaphoreID, timeout time.Duration) (uint32, error)
	Present(sc *Swapchain, imageIndex uint32, wait SemaphoreID) error

	CreateImage(desc ImageDesc) (ImageID, MemoryID, error)
	DestroyImage(image ImageID)
	CreateImageView(image ImageID, format Format) (ViewID, error)
	DestroyImageView(view ViewID)
	FreeMemory(memory MemoryID)

	CreateBuffer(desc BufferDesc) (BufferID, MemoryID, error)
	DestroyBuffer(buffer BufferID)
	WriteBuffer(buffer BufferID, offset uint64, data []byte) error
	ReadBuffer(buffer BufferID, offset uint64, size uint64) ([]byte, error)
	BufferAddress(buffer BufferID) uint64

	CreateShaderModule(code []uint32) (ShaderModuleID, error)
	DestroyShaderModule(module ShaderModuleID)

	CreateDescriptorSetLayout(bindings []DescriptorBinding) (DescriptorSetLayoutID, error)
	DestroyDescriptorSetLayout(layout DescriptorSetLayoutID)
	CreateDescriptorPool(bindings []DescriptorBinding, maxSets uint32) (DescriptorPoolID, error)
	DestroyDescriptorPool(pool DescriptorPoolID)
	AllocateDescriptorSets(pool DescriptorPoolID, layout DescriptorSetLayoutID, count uint32) ([]DescriptorSetID, error)
	UpdateDescriptorSet(set DescriptorSetID, writes []DescriptorWrite)

	CreatePipelineLayout(setLayouts []DescriptorSetLayoutID, pushConstants []PushConstantRange) (PipelineLayoutID, error)
	DestroyPipelineLayout(layout PipelineLayoutID)
	CreateComputePipeline(desc ComputePipelineDesc) (PipelineID, error)
	CreateRayTracingPipeline(desc RayTracingPipelineDesc) (PipelineID, error)
	DestroyPipeline(pipeline PipelineID)
	// ShaderGroupHandles returns count opaque handles, each ShaderGroupHandleSize bytes.
	ShaderGroupHandles(pipeline PipelineID, first, count uint32) ([]byte, error)

	AccelBuildSizes(kind AccelKind, geometries []AccelGeometry) (AccelBuildSizes, error)
	CreateAccel(kind AccelKind, buffer BufferID, offset, size uint64) (AccelID, error)
	AccelAddress(accel AccelID) uint64
	DestroyAccel(accel AccelID)

	CreateSemaphore() (SemaphoreID, error)
	DestroySemaphore(semaphore SemaphoreID)
	CreateFence(signaled bool) (FenceID, error)
	DestroyFence(fence FenceID)
	WaitFence(fence FenceID, timeout time.Duration) error
	ResetFence(fence FenceID) error

	AllocateCommandBuffers(count uint32) ([]CommandBuffer, error)
	FreeCommandBuffers(buffers []CommandBuffer)
	// BeginSingleUse returns a recording command buffer that EndSingleUse submits and waits on.
	BeginSingleUse() (CommandBuffer, error)
	EndSingleUse(cb CommandBuffer) error
	Submit(cb CommandBuffer, wait SemaphoreID, waitStage PipelineStage, signal SemaphoreID, fence FenceID) error

	WaitIdle() error
	Destroy()
}

// CommandBuffer records GPU work. Recording never blocks the host.
type CommandBuffer interface {
	Begin() error
	End() error
	Reset() error

	PipelineBarrier(src, dst PipelineStage, images []ImageBarrier, buffers []BufferBarrier)
	BindPipeline(bind BindPoint, pipeline PipelineID)
	BindDescriptorSet(bind BindPoint, layout PipelineLayoutID, set DescriptorSetID)
	PushConstants(layout PipelineLayoutID, stages ShaderStage, offset uint32, data []byte)
	Dispatch(x, y, z uint32)
	TraceRays(rayGen, miss, hit, callable StridedRegion, width, height, depth uint32)
	CopyImage(src ImageID, srcLayout ImageLayout, dst ImageID, dstLayout ImageLayout, extent Extent2D)
	CopyImageToBuffer(src ImageID, srcLayout ImageLayout, dst BufferID, extent Extent2D)
	CopyBufferToImage(src BufferID, dst ImageID, dstLayout ImageLayout, extent Extent2D)
	ClearColorImage(image ImageID, layout ImageLayout, color [4]float32)
	BuildAccel(builds []AccelBuild)
}
