package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/tigrazone/gkNextRenderer/engine/core"
	"github.com/tigrazone/gkNextRenderer/engine/renderer/gpu"
)

type commandBufferState int

const (
	stateReady commandBufferState = iota
	stateRecording
	stateRecordingEnded
	stateSubmitted
	stateNotAllocated
)

func (s commandBufferState) String() string {
	switch s {
	case stateReady:
		return "ready"
	case stateRecording:
		return "recording"
	case stateRecordingEnded:
		return "recording-ended"
	case stateSubmitted:
		return "submitted"
	}
	return "not-allocated"
}

// CommandBuffer is a primary command buffer from the device's graphics pool.
type CommandBuffer struct {
	device    *Device
	handle    vk.CommandBuffer
	state     commandBufferState
	singleUse bool
}

var _ gpu.CommandBuffer = (*CommandBuffer)(nil)

func (d *Device) AllocateCommandBuffers(count uint32) ([]gpu.CommandBuffer, error) {
	info := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        d.pool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: count,
	}
	handles := make([]vk.CommandBuffer, count)
	err := d.locks.safeCall(commandManagement, func() error {
		return resultError(vk.AllocateCommandBuffers(d.handle, &info, handles), "vkAllocateCommandBuffers")
	})
	if err != nil {
		return nil, err
	}
	out := make([]gpu.CommandBuffer, count)
	for i, h := range handles {
		out[i] = &CommandBuffer{device: d, handle: h, state: stateReady}
	}
	return out, nil
}

func (d *Device) FreeCommandBuffers(buffers []gpu.CommandBuffer) {
	var handles []vk.CommandBuffer
	for _, b := range buffers {
		if c, ok := b.(*CommandBuffer); ok && c.state != stateNotAllocated {
			handles = append(handles, c.handle)
			c.handle = nil
			c.state = stateNotAllocated
		}
	}
	if len(handles) == 0 {
		return
	}
	_ = d.locks.safeCall(commandManagement, func() error {
		vk.FreeCommandBuffers(d.handle, d.pool, uint32(len(handles)), handles)
		return nil
	})
}

// BeginSingleUse allocates a command buffer and starts a one-time-submit recording.
func (d *Device) BeginSingleUse() (gpu.CommandBuffer, error) {
	cbs, err := d.AllocateCommandBuffers(1)
	if err != nil {
		return nil, err
	}
	cb := cbs[0].(*CommandBuffer)
	cb.singleUse = true
	if err := cb.Begin(); err != nil {
		d.FreeCommandBuffers(cbs)
		return nil, err
	}
	return cb, nil
}

// EndSingleUse ends recording, submits, waits for the queue to drain and frees cb.
func (d *Device) EndSingleUse(cb gpu.CommandBuffer) error {
	c, ok := cb.(*CommandBuffer)
	if !ok {
		return fmt.Errorf("foreign command buffer %T", cb)
	}
	defer d.FreeCommandBuffers([]gpu.CommandBuffer{c})
	if err := c.End(); err != nil {
		return err
	}
	info := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{c.handle},
	}
	return d.locks.safeQueueCall(d.family, func() error {
		if err := resultError(vk.QueueSubmit(d.queue, 1, []vk.SubmitInfo{info}, nil), "vkQueueSubmit"); err != nil {
			return err
		}
		return resultError(vk.QueueWaitIdle(d.queue), "vkQueueWaitIdle")
	})
}

func (c *CommandBuffer) Begin() error {
	info := vk.CommandBufferBeginInfo{SType: vk.StructureTypeCommandBufferBeginInfo}
	if c.singleUse {
		info.Flags = vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit)
	}
	if err := resultError(vk.BeginCommandBuffer(c.handle, &info), "vkBeginCommandBuffer"); err != nil {
		return err
	}
	c.state = stateRecording
	return nil
}

func (c *CommandBuffer) End() error {
	if c.state != stateRecording {
		return fmt.Errorf("command buffer ended in state %s", c.state)
	}
	if err := resultError(vk.EndCommandBuffer(c.handle), "vkEndCommandBuffer"); err != nil {
		return err
	}
	c.state = stateRecordingEnded
	return nil
}

func (c *CommandBuffer) Reset() error {
	if err := resultError(vk.ResetCommandBuffer(c.handle, 0), "vkResetCommandBuffer"); err != nil {
		return err
	}
	c.state = stateReady
	return nil
}

func (c *CommandBuffer) image(id gpu.ImageID) vk.Image {
	img, ok := c.device.images.get(uint64(id))
	if !ok {
		core.LogError("command references unknown image %d", id)
	}
	return img.handle
}

func (c *CommandBuffer) buffer(id gpu.BufferID) vk.Buffer {
	b, ok := c.device.buffers.get(uint64(id))
	if !ok {
		core.LogError("command references unknown buffer %d", id)
		return nil
	}
	return b.handle
}

func (c *CommandBuffer) PipelineBarrier(src, dst gpu.PipelineStage, images []gpu.ImageBarrier, buffers []gpu.BufferBarrier) {
	imgBarriers := make([]vk.ImageMemoryBarrier, len(images))
	for i, b := range images {
		imgBarriers[i] = vk.ImageMemoryBarrier{
			SType:               vk.StructureTypeImageMemoryBarrier,
			SrcAccessMask:       toAccess(b.SrcAccess),
			DstAccessMask:       toAccess(b.DstAccess),
			OldLayout:           toLayout(b.OldLayout),
			NewLayout:           toLayout(b.NewLayout),
			SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
			DstQueueFamilyIndex: vk.QueueFamilyIgnored,
			Image:               c.image(b.Image),
			SubresourceRange:    colorSubresource,
		}
	}
	bufBarriers := make([]vk.BufferMemoryBarrier, len(buffers))
	for i, b := range buffers {
		size := vk.DeviceSize(b.Size)
		if size == 0 {
			size = vk.DeviceSize(vk.WholeSize)
		}
		bufBarriers[i] = vk.BufferMemoryBarrier{
			SType:               vk.StructureTypeBufferMemoryBarrier,
			SrcAccessMask:       toAccess(b.SrcAccess),
			DstAccessMask:       toAccess(b.DstAccess),
			SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
			DstQueueFamilyIndex: vk.QueueFamilyIgnored,
			Buffer:              c.buffer(b.Buffer),
			Offset:              vk.DeviceSize(b.Offset),
			Size:                size,
		}
	}
	vk.CmdPipelineBarrier(c.handle, toStage(src), toStage(dst), 0,
		0, nil,
		uint32(len(bufBarriers)), bufBarriers,
		uint32(len(imgBarriers)), imgBarriers)
}

func (c *CommandBuffer) BindPipeline(bind gpu.BindPoint, id gpu.PipelineID) {
	p, _ := c.device.pipelines.get(uint64(id))
	vk.CmdBindPipeline(c.handle, toBindPoint(bind), p)
}

func (c *CommandBuffer) BindDescriptorSet(bind gpu.BindPoint, layoutID gpu.PipelineLayoutID, setID gpu.DescriptorSetID) {
	layout, _ := c.device.layouts.get(uint64(layoutID))
	set, _ := c.device.sets.get(uint64(setID))
	vk.CmdBindDescriptorSets(c.handle, toBindPoint(bind), layout, 0, 1, []vk.DescriptorSet{set}, 0, nil)
}

func (c *CommandBuffer) PushConstants(layoutID gpu.PipelineLayoutID, stages gpu.ShaderStage, offset uint32, data []byte) {
	if len(data) == 0 {
		return
	}
	layout, _ := c.device.layouts.get(uint64(layoutID))
	vk.CmdPushConstants(c.handle, layout, vk.ShaderStageFlags(shaderStageFlags(stages)), offset, uint32(len(data)), unsafe.Pointer(&data[0]))
}

func (c *CommandBuffer) Dispatch(x, y, z uint32) {
	vk.CmdDispatch(c.handle, x, y, z)
}

func (c *CommandBuffer) TraceRays(rayGen, miss, hit, callable gpu.StridedRegion, width, height, depth uint32) {
	c.device.rt.cmdTraceRays(c.handle, [4]gpu.StridedRegion{rayGen, miss, hit, callable}, width, height, depth)
}

func imageExtent(e gpu.Extent2D) vk.Extent3D {
	return vk.Extent3D{Width: e.Width, Height: e.Height, Depth: 1}
}

func (c *CommandBuffer) CopyImage(src gpu.ImageID, srcLayout gpu.ImageLayout, dst gpu.ImageID, dstLayout gpu.ImageLayout, extent gpu.Extent2D) {
	region := vk.ImageCopy{
		SrcSubresource: colorLayers,
		DstSubresource: colorLayers,
		Extent:         imageExtent(extent),
	}
	vk.CmdCopyImage(c.handle, c.image(src), toLayout(srcLayout), c.image(dst), toLayout(dstLayout), 1, []vk.ImageCopy{region})
}

func (c *CommandBuffer) CopyImageToBuffer(src gpu.ImageID, srcLayout gpu.ImageLayout, dst gpu.BufferID, extent gpu.Extent2D) {
	region := vk.BufferImageCopy{
		ImageSubresource: colorLayers,
		ImageExtent:      imageExtent(extent),
	}
	vk.CmdCopyImageToBuffer(c.handle, c.image(src), toLayout(srcLayout), c.buffer(dst), 1, []vk.BufferImageCopy{region})
}

func (c *CommandBuffer) CopyBufferToImage(src gpu.BufferID, dst gpu.ImageID, dstLayout gpu.ImageLayout, extent gpu.Extent2D) {
	region := vk.BufferImageCopy{
		ImageSubresource: colorLayers,
		ImageExtent:      imageExtent(extent),
	}
	vk.CmdCopyBufferToImage(c.handle, c.buffer(src), c.image(dst), toLayout(dstLayout), 1, []vk.BufferImageCopy{region})
}

func (c *CommandBuffer) ClearColorImage(id gpu.ImageID, layout gpu.ImageLayout, color [4]float32) {
	var value vk.ClearColorValue
	*(*[4]float32)(unsafe.Pointer(&value)) = color
	vk.CmdClearColorImage(c.handle, c.image(id), toLayout(layout), &value, 1, []vk.ImageSubresourceRange{colorSubresource})
}

func (c *CommandBuffer) BuildAccel(builds []gpu.AccelBuild) {
	for _, b := range builds {
		dst, ok := c.device.accels.get(uint64(b.Destination))
		if !ok {
			core.LogError("build of unknown acceleration structure %d", b.Destination)
			continue
		}
		c.device.rt.cmdBuild(c.handle, b, dst)
	}
}
