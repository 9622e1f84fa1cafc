package vulkan

import (
	"fmt"
	"time"

	vk "github.com/goki/vulkan"

	"github.com/tigrazone/gkNextRenderer/engine/core"
	"github.com/tigrazone/gkNextRenderer/engine/renderer/gpu"
)

func (d *Device) CreateSemaphore() (gpu.SemaphoreID, error) {
	info := vk.SemaphoreCreateInfo{SType: vk.StructureTypeSemaphoreCreateInfo}
	var sem vk.Semaphore
	if err := resultError(vk.CreateSemaphore(d.handle, &info, nil, &sem), "vkCreateSemaphore"); err != nil {
		return 0, err
	}
	return gpu.SemaphoreID(d.semaphores.add(sem)), nil
}

func (d *Device) DestroySemaphore(id gpu.SemaphoreID) {
	if sem, ok := d.semaphores.remove(uint64(id)); ok {
		vk.DestroySemaphore(d.handle, sem, nil)
	}
}

// CreateFence creates a fence, signaled when the first wait must not block.
func (d *Device) CreateFence(signaled bool) (gpu.FenceID, error) {
	info := vk.FenceCreateInfo{SType: vk.StructureTypeFenceCreateInfo}
	if signaled {
		info.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}
	var fence vk.Fence
	if err := resultError(vk.CreateFence(d.handle, &info, nil, &fence), "vkCreateFence"); err != nil {
		return 0, err
	}
	return gpu.FenceID(d.fences.add(fence)), nil
}

func (d *Device) DestroyFence(id gpu.FenceID) {
	if fence, ok := d.fences.remove(uint64(id)); ok {
		vk.DestroyFence(d.handle, fence, nil)
	}
}

func (d *Device) WaitFence(id gpu.FenceID, timeout time.Duration) error {
	fence, ok := d.fences.get(uint64(id))
	if !ok {
		return fmt.Errorf("unknown fence %d", id)
	}
	res := vk.WaitForFences(d.handle, 1, []vk.Fence{fence}, vk.True, uint64(timeout.Nanoseconds()))
	switch res {
	case vk.Success:
		return nil
	case vk.Timeout:
		core.LogWarn("fence %d wait timed out after %s", id, timeout)
	}
	return resultError(res, "vkWaitForFences")
}

func (d *Device) ResetFence(id gpu.FenceID) error {
	fence, ok := d.fences.get(uint64(id))
	if !ok {
		return fmt.Errorf("unknown fence %d", id)
	}
	return resultError(vk.ResetFences(d.handle, 1, []vk.Fence{fence}), "vkResetFences")
}

// Submit queues cb. Zero ids leave the corresponding wait, signal or fence out.
func (d *Device) Submit(cb gpu.CommandBuffer, wait gpu.SemaphoreID, waitStage gpu.PipelineStage, signal gpu.SemaphoreID, fence gpu.FenceID) error {
	c, ok := cb.(*CommandBuffer)
	if !ok {
		return fmt.Errorf("foreign command buffer %T", cb)
	}
	if c.state != stateRecordingEnded {
		return fmt.Errorf("command buffer submitted in state %s", c.state)
	}
	info := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{c.handle},
	}
	if sem, ok := d.semaphores.get(uint64(wait)); ok {
		info.WaitSemaphoreCount = 1
		info.PWaitSemaphores = []vk.Semaphore{sem}
		info.PWaitDstStageMask = []vk.PipelineStageFlags{toStage(waitStage)}
	}
	if sem, ok := d.semaphores.get(uint64(signal)); ok {
		info.SignalSemaphoreCount = 1
		info.PSignalSemaphores = []vk.Semaphore{sem}
	}
	f, _ := d.fences.get(uint64(fence))
	err := d.locks.safeQueueCall(d.family, func() error {
		return resultError(vk.QueueSubmit(d.queue, 1, []vk.SubmitInfo{info}, f), "vkQueueSubmit")
	})
	if err != nil {
		return err
	}
	c.state = stateSubmitted
	return nil
}
