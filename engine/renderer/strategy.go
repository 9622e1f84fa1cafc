package renderer

import (
	"fmt"

	"github.com/tigrazone/gkNextRenderer/engine/config"
	"github.com/tigrazone/gkNextRenderer/engine/core"
	"github.com/tigrazone/gkNextRenderer/engine/renderer/gpu"
	"github.com/tigrazone/gkNextRenderer/engine/renderer/resource"
)

// RendererType selects the frame pipeline at startup.
type RendererType uint32

const (
	RayTracedRenderer RendererType = RendererType(config.RendererRayTraced)
	ModernDeferred    RendererType = RendererType(config.RendererModernDeferred)
	LegacyDeferred    RendererType = RendererType(config.RendererLegacyDeferred)
	RayQuery          RendererType = RendererType(config.RendererRayQuery)
	HybridDeferred    RendererType = RendererType(config.RendererHybridDeferred)
)

func (t RendererType) String() string {
	switch t {
	case RayTracedRenderer:
		return "RayTraced"
	case ModernDeferred:
		return "ModernDeferred"
	case LegacyDeferred:
		return "LegacyDeferred"
	case RayQuery:
		return "RayQuery"
	case HybridDeferred:
		return "HybridDeferred"
	}
	return fmt.Sprintf("RendererType(%d)", uint32(t))
}

// Valid reports whether t names a known renderer.
func (t RendererType) Valid() bool {
	return t <= HybridDeferred
}

// Frame is what a strategy needs to record one frame.
type Frame struct {
	// Number is the frame counter; it selects the ping-pong parity.
	Number     uint64
	ImageIndex uint32
	Extent     gpu.Extent2D
	SwapImage  gpu.ImageID
	Settings   config.UserSettings
	Uniforms   UniformBufferObject
}

// Strategy is one frame pipeline. The base renderer drives it through the
// swap-chain lifecycle: SetPhysicalDeviceImpl before the device is opened,
// OnDeviceSet once after, then CreateSwapChain and DeleteSwapChain around
// every swap-chain epoch with Render called once per frame in between.
type Strategy interface {
	Name() string
	// SetPhysicalDeviceImpl requests the device features the strategy needs.
	SetPhysicalDeviceImpl(info gpu.PhysicalDeviceInfo, opts *gpu.OpenOptions)
	// OnDeviceSet creates the resources that live as long as the device in arena.
	OnDeviceSet(device gpu.Device, arena *resource.Arena) error
	// CreateSwapChain creates the resources of one epoch in arena. The renderer
	// releases the arena after DeleteSwapChain.
	CreateSwapChain(sc *gpu.Swapchain, arena *resource.Arena) error
	DeleteSwapChain()
	// Render records the frame into cb, leaving the swap image in PresentSrc.
	Render(cb gpu.CommandBuffer, f *Frame) error
}

// NewStrategy picks the frame pipeline for t on a device described by info.
// Only the ray traced pipeline is implemented; every other type, and the ray
// traced type on a device without ray tracing, falls back to Rasterized.
func NewStrategy(t RendererType, info gpu.PhysicalDeviceInfo, rt RayTracedConfig) (Strategy, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: %d", core.ErrInvalidRenderer, uint32(t))
	}
	if t != RayTracedRenderer {
		core.LogWarn("%s renderer is not available; falling back to rasterized", t)
		return NewRasterized(), nil
	}
	if !info.RayTracing {
		core.LogWarn("device %s does not support ray tracing; falling back to rasterized", info.Name)
		return NewRasterized(), nil
	}
	return NewRayTraced(rt), nil
}
