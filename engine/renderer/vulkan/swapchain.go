package vulkan

import (
	"fmt"
	"math"
	"time"

	vk "github.com/goki/vulkan"

	"github.com/tigrazone/gkNextRenderer/engine/core"
	"github.com/tigrazone/gkNextRenderer/engine/renderer/gpu"
)

type swapchainSupport struct {
	capabilities vk.SurfaceCapabilities
	formats      []vk.SurfaceFormat
	presentModes []vk.PresentMode
}

func (d *Device) querySwapchainSupport() (*swapchainSupport, error) {
	pd, surface := d.physical.handle, d.instance.surface
	s := &swapchainSupport{}
	if err := resultError(vk.GetPhysicalDeviceSurfaceCapabilities(pd, surface, &s.capabilities), "vkGetPhysicalDeviceSurfaceCapabilitiesKHR"); err != nil {
		return nil, err
	}
	s.capabilities.Deref()
	s.capabilities.CurrentExtent.Deref()
	s.capabilities.MinImageExtent.Deref()
	s.capabilities.MaxImageExtent.Deref()

	var count uint32
	if err := resultError(vk.GetPhysicalDeviceSurfaceFormats(pd, surface, &count, nil), "vkGetPhysicalDeviceSurfaceFormatsKHR"); err != nil {
		return nil, err
	}
	s.formats = make([]vk.SurfaceFormat, count)
	if err := resultError(vk.GetPhysicalDeviceSurfaceFormats(pd, surface, &count, s.formats), "vkGetPhysicalDeviceSurfaceFormatsKHR"); err != nil {
		return nil, err
	}
	for i := range s.formats {
		s.formats[i].Deref()
	}

	if err := resultError(vk.GetPhysicalDeviceSurfacePresentModes(pd, surface, &count, nil), "vkGetPhysicalDeviceSurfacePresentModesKHR"); err != nil {
		return nil, err
	}
	s.presentModes = make([]vk.PresentMode, count)
	if err := resultError(vk.GetPhysicalDeviceSurfacePresentModes(pd, surface, &count, s.presentModes), "vkGetPhysicalDeviceSurfacePresentModesKHR"); err != nil {
		return nil, err
	}
	if len(s.formats) == 0 || len(s.presentModes) == 0 {
		return nil, fmt.Errorf("surface has no formats or present modes")
	}
	return s, nil
}

// chooseFormat prefers an 8-bit UNORM BGRA surface in the sRGB color space.
func (s *swapchainSupport) chooseFormat() vk.SurfaceFormat {
	for _, f := range s.formats {
		if f.Format == vk.FormatB8g8r8a8Unorm && f.ColorSpace == vk.ColorSpaceSrgbNonlinear {
			return f
		}
	}
	return s.formats[0]
}

// choosePresentMode falls back to FIFO, which every device supports.
func (s *swapchainSupport) choosePresentMode(want gpu.PresentMode) vk.PresentMode {
	mode := toPresentMode(want)
	for _, m := range s.presentModes {
		if m == mode {
			return m
		}
	}
	core.LogWarn("present mode %s unsupported, using FIFO", want)
	return vk.PresentModeFifo
}

func (s *swapchainSupport) chooseExtent(want gpu.Extent2D) vk.Extent2D {
	c := s.capabilities
	if c.CurrentExtent.Width != math.MaxUint32 {
		return c.CurrentExtent
	}
	return vk.Extent2D{
		Width:  clamp(want.Width, c.MinImageExtent.Width, c.MaxImageExtent.Width),
		Height: clamp(want.Height, c.MinImageExtent.Height, c.MaxImageExtent.Height),
	}
}

func (d *Device) CreateSwapchain(desc gpu.SwapchainDesc) (*gpu.Swapchain, error) {
	support, err := d.querySwapchainSupport()
	if err != nil {
		return nil, err
	}
	format := support.chooseFormat()
	presentMode := support.choosePresentMode(desc.PresentMode)
	extent := support.chooseExtent(desc.Extent)

	imageCount := support.capabilities.MinImageCount + 1
	if max := support.capabilities.MaxImageCount; max > 0 && imageCount > max {
		imageCount = max
	}

	info := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          d.instance.surface,
		MinImageCount:    imageCount,
		ImageFormat:      format.Format,
		ImageColorSpace:  format.ColorSpace,
		ImageExtent:      extent,
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit | vk.ImageUsageTransferDstBit),
		ImageSharingMode: vk.SharingModeExclusive,
		PreTransform:     support.capabilities.CurrentTransform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      presentMode,
		Clipped:          vk.True,
	}

	sc := &swapchain{}
	if err := resultError(vk.CreateSwapchain(d.handle, &info, nil, &sc.handle), "vkCreateSwapchainKHR"); err != nil {
		return nil, err
	}

	var count uint32
	if err := resultError(vk.GetSwapchainImages(d.handle, sc.handle, &count, nil), "vkGetSwapchainImagesKHR"); err != nil {
		vk.DestroySwapchain(d.handle, sc.handle, nil)
		return nil, err
	}
	images := make([]vk.Image, count)
	if err := resultError(vk.GetSwapchainImages(d.handle, sc.handle, &count, images), "vkGetSwapchainImagesKHR"); err != nil {
		vk.DestroySwapchain(d.handle, sc.handle, nil)
		return nil, err
	}

	out := &gpu.Swapchain{
		Extent:      gpu.Extent2D{Width: extent.Width, Height: extent.Height},
		Format:      fromFormat(format.Format),
		PresentMode: desc.PresentMode,
	}
	for _, img := range images {
		view, err := d.createView(img, format.Format)
		if err != nil {
			d.destroySwapchain(sc)
			return nil, err
		}
		// Swap images are owned by the swap-chain and only tracked here.
		imgID := d.images.add(image{handle: img, format: format.Format})
		viewID := d.views.add(view)
		sc.images = append(sc.images, imgID)
		sc.views = append(sc.views, viewID)
		out.Images = append(out.Images, gpu.ImageID(imgID))
		out.Views = append(out.Views, gpu.ViewID(viewID))
	}
	out.Handle = d.swapchains.add(sc)

	core.LogInfo("Swapchain created: %dx%d, %d images, %s", extent.Width, extent.Height, count, out.Format)
	return out, nil
}

func (d *Device) destroySwapchain(sc *swapchain) {
	for _, id := range sc.views {
		d.DestroyImageView(gpu.ViewID(id))
	}
	for _, id := range sc.images {
		d.images.remove(id)
	}
	vk.DestroySwapchain(d.handle, sc.handle, nil)
}

func (d *Device) DestroySwapchain(out *gpu.Swapchain) {
	if sc, ok := d.swapchains.remove(out.Handle); ok {
		d.destroySwapchain(sc)
	}
}

func (d *Device) AcquireNextImage(out *gpu.Swapchain, signal gpu.SemaphoreID, timeout time.Duration) (uint32, error) {
	sc, ok := d.swapchains.get(out.Handle)
	if !ok {
		return 0, fmt.Errorf("unknown swapchain %d", out.Handle)
	}
	sem, _ := d.semaphores.get(uint64(signal))
	var index uint32
	res := vk.AcquireNextImage(d.handle, sc.handle, uint64(timeout.Nanoseconds()), sem, nil, &index)
	if res == vk.Suboptimal {
		return index, resultError(res, "vkAcquireNextImageKHR")
	}
	if err := resultError(res, "vkAcquireNextImageKHR"); err != nil {
		return 0, err
	}
	return index, nil
}

func (d *Device) Present(out *gpu.Swapchain, imageIndex uint32, wait gpu.SemaphoreID) error {
	sc, ok := d.swapchains.get(out.Handle)
	if !ok {
		return fmt.Errorf("unknown swapchain %d", out.Handle)
	}
	info := vk.PresentInfo{
		SType:          vk.StructureTypePresentInfo,
		SwapchainCount: 1,
		PSwapchains:    []vk.Swapchain{sc.handle},
		PImageIndices:  []uint32{imageIndex},
	}
	if sem, ok := d.semaphores.get(uint64(wait)); ok {
		info.WaitSemaphoreCount = 1
		info.PWaitSemaphores = []vk.Semaphore{sem}
	}
	return d.locks.safeQueueCall(d.family, func() error {
		return resultError(vk.QueuePresent(d.queue, &info), "vkQueuePresentKHR")
	})
}
