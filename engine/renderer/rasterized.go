package renderer

import (
	"github.com/tigrazone/gkNextRenderer/engine/renderer/gpu"
	"github.com/tigrazone/gkNextRenderer/engine/renderer/resource"
)

// ClearColor is the colour the rasterized fallback presents.
var ClearColor = [4]float32{0.1, 0.1, 0.12, 1}

// Rasterized clears and presents the swap image. It keeps the window alive
// on devices that cannot trace rays.
type Rasterized struct {
	extent gpu.Extent2D
}

func NewRasterized() *Rasterized {
	return &Rasterized{}
}

func (r *Rasterized) Name() string { return "Rasterized" }

func (r *Rasterized) SetPhysicalDeviceImpl(info gpu.PhysicalDeviceInfo, opts *gpu.OpenOptions) {
	opts.RayTracing = false
}

func (r *Rasterized) OnDeviceSet(device gpu.Device, arena *resource.Arena) error {
	return nil
}

func (r *Rasterized) CreateSwapChain(sc *gpu.Swapchain, arena *resource.Arena) error {
	r.extent = sc.Extent
	return nil
}

func (r *Rasterized) DeleteSwapChain() {
	r.extent = gpu.Extent2D{}
}

func (r *Rasterized) Render(cb gpu.CommandBuffer, f *Frame) error {
	cb.PipelineBarrier(gpu.PipelineStageTopOfPipe, gpu.PipelineStageTransfer, []gpu.ImageBarrier{
		gpu.ColorImageBarrier(f.SwapImage, gpu.AccessNone, gpu.AccessTransferWrite,
			gpu.ImageLayoutUndefined, gpu.ImageLayoutTransferDst),
	}, nil)
	cb.ClearColorImage(f.SwapImage, gpu.ImageLayoutTransferDst, ClearColor)
	cb.PipelineBarrier(gpu.PipelineStageTransfer, gpu.PipelineStageBottomOfPipe, []gpu.ImageBarrier{
		gpu.ColorImageBarrier(f.SwapImage, gpu.AccessTransferWrite, gpu.AccessNone,
			gpu.ImageLayoutTransferDst, gpu.ImageLayoutPresentSrc),
	}, nil)
	return nil
}
