package resource

import (
	"fmt"

	"github.com/tigrazone/gkNextRenderer/engine/core"
	"github.com/tigrazone/gkNextRenderer/engine/renderer/gpu"
)

// Image is a device image with its backing memory and a view over all of it.
type Image struct {
	Label  string
	Handle gpu.ImageID
	Memory gpu.MemoryID
	View   gpu.ViewID
	Extent gpu.Extent2D
	Format gpu.Format
}

// NewImage allocates an image and its view. Destruction is registered with the
// arena: memory first, then the image, then the view.
func NewImage(device gpu.Device, arena *Arena, desc gpu.ImageDesc) (*Image, error) {
	handle, memory, err := device.CreateImage(desc)
	if err != nil {
		err = fmt.Errorf("failed to create image %s: %w", desc.Label, err)
		core.LogError("%s", err)
		return nil, err
	}
	arena.Own(desc.Label+"/memory", func() { device.FreeMemory(memory) })
	arena.Own(desc.Label+"/image", func() { device.DestroyImage(handle) })

	view, err := device.CreateImageView(handle, desc.Format)
	if err != nil {
		err = fmt.Errorf("failed to create view for image %s: %w", desc.Label, err)
		core.LogError("%s", err)
		return nil, err
	}
	arena.Own(desc.Label+"/view", func() { device.DestroyImageView(view) })

	return &Image{
		Label:  desc.Label,
		Handle: handle,
		Memory: memory,
		View:   view,
		Extent: desc.Extent,
		Format: desc.Format,
	}, nil
}

// InsertBarrier records a layout/access transition. The caller owns the
// image state; an incorrect layoutBefore is not detected here.
func (i *Image) InsertBarrier(cb gpu.CommandBuffer, accessBefore, accessAfter gpu.Access, layoutBefore, layoutAfter gpu.ImageLayout) {
	cb.PipelineBarrier(gpu.PipelineStageAllCommands, gpu.PipelineStageAllCommands,
		[]gpu.ImageBarrier{gpu.ColorImageBarrier(i.Handle, accessBefore, accessAfter, layoutBefore, layoutAfter)}, nil)
}

// StorageWrite is the descriptor write binding the image as a storage image.
func (i *Image) StorageWrite(binding uint32) gpu.DescriptorWrite {
	return gpu.DescriptorWrite{Binding: binding, Type: gpu.DescriptorTypeStorageImage, View: i.View}
}
