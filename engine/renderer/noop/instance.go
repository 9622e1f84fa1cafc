// Package noop implements the gpu interfaces without a GPU. Every call is
// recorded so the frame pipeline can run headless and be inspected in tests.
package noop

import (
	"fmt"

	"github.com/tigrazone/gkNextRenderer/engine/renderer/gpu"
)

// Instance exposes a fixed list of fake physical devices.
type Instance struct {
	Devices []gpu.PhysicalDeviceInfo
	// Surface is the initial framebuffer size handed to opened devices.
	Surface gpu.Extent2D
	// SwapchainImages is the number of images per swap-chain (3 when zero).
	SwapchainImages uint32
}

// NewInstance returns an instance with one ray-tracing capable device.
func NewInstance(surface gpu.Extent2D) *Instance {
	return &Instance{
		Devices: []gpu.PhysicalDeviceInfo{
			{
				Index:      0,
				ID:         0x10de,
				Name:       "Noop Ray Tracing Device",
				Type:       gpu.PhysicalDeviceDiscrete,
				Graphics:   true,
				Present:    true,
				Compute:    true,
				RayTracing: true,
			},
		},
		Surface:         surface,
		SwapchainImages: 3,
	}
}

func (i *Instance) PhysicalDevices() ([]gpu.PhysicalDeviceInfo, error) {
	out := make([]gpu.PhysicalDeviceInfo, len(i.Devices))
	copy(out, i.Devices)
	return out, nil
}

func (i *Instance) Open(index int, opts gpu.OpenOptions) (gpu.Device, error) {
	return i.OpenDevice(index, opts)
}

// OpenDevice is Open with the concrete type, for tests that drive fault injection.
func (i *Instance) OpenDevice(index int, opts gpu.OpenOptions) (*Device, error) {
	if index < 0 || index >= len(i.Devices) {
		return nil, fmt.Errorf("noop: physical device %d does not exist", index)
	}
	info := i.Devices[index]
	if opts.RayTracing && !info.RayTracing {
		return nil, gpu.ErrUnsupported
	}
	images := i.SwapchainImages
	if images == 0 {
		images = 3
	}
	return newDevice(info, opts.RayTracing, i.Surface, images), nil
}

func (i *Instance) Destroy() {}
