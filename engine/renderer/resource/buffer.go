package resource

import (
	"fmt"

	"github.com/tigrazone/gkNextRenderer/engine/core"
	"github.com/tigrazone/gkNextRenderer/engine/renderer/gpu"
)

// Buffer is a device buffer with its backing memory.
type Buffer struct {
	Label  string
	Handle gpu.BufferID
	Memory gpu.MemoryID
	Size   uint64
	Usage  gpu.BufferUsage

	device gpu.Device
}

// NewBuffer allocates a buffer and registers memory then buffer with the arena.
func NewBuffer(device gpu.Device, arena *Arena, desc gpu.BufferDesc) (*Buffer, error) {
	handle, memory, err := device.CreateBuffer(desc)
	if err != nil {
		err = fmt.Errorf("failed to create buffer %s: %w", desc.Label, err)
		core.LogError("%s", err)
		return nil, err
	}
	arena.Own(desc.Label+"/memory", func() { device.FreeMemory(memory) })
	arena.Own(desc.Label+"/buffer", func() { device.DestroyBuffer(handle) })
	return &Buffer{
		Label:  desc.Label,
		Handle: handle,
		Memory: memory,
		Size:   desc.Size,
		Usage:  desc.Usage,
		device: device,
	}, nil
}

// NewBufferWithData creates a host-visible buffer and fills it.
func NewBufferWithData(device gpu.Device, arena *Arena, label string, usage gpu.BufferUsage, data []byte) (*Buffer, error) {
	size := uint64(len(data))
	if size == 0 {
		// zero-sized buffers are invalid; keep a placeholder so the binding stays valid
		size = 4
	}
	b, err := NewBuffer(device, arena, gpu.BufferDesc{
		Label:  label,
		Size:   size,
		Usage:  usage,
		Memory: gpu.MemoryHostVisible | gpu.MemoryHostCoherent,
	})
	if err != nil {
		return nil, err
	}
	if len(data) > 0 {
		if err := b.Write(0, data); err != nil {
			return nil, err
		}
	}
	return b, nil
}

func (b *Buffer) Write(offset uint64, data []byte) error {
	if err := b.device.WriteBuffer(b.Handle, offset, data); err != nil {
		return fmt.Errorf("failed to write buffer %s: %w", b.Label, err)
	}
	return nil
}

func (b *Buffer) Read(offset, size uint64) ([]byte, error) {
	data, err := b.device.ReadBuffer(b.Handle, offset, size)
	if err != nil {
		return nil, fmt.Errorf("failed to read buffer %s: %w", b.Label, err)
	}
	return data, nil
}

// Address is the device address, zero unless created with BufferUsageDeviceAddress.
func (b *Buffer) Address() uint64 {
	return b.device.BufferAddress(b.Handle)
}

// InsertBarrier records a whole-buffer memory barrier.
func (b *Buffer) InsertBarrier(cb gpu.CommandBuffer, src, dst gpu.PipelineStage, accessBefore, accessAfter gpu.Access) {
	cb.PipelineBarrier(src, dst, nil, []gpu.BufferBarrier{{
		Buffer:    b.Handle,
		SrcAccess: accessBefore,
		DstAccess: accessAfter,
		Size:      b.Size,
	}})
}

// StorageWrite binds the whole buffer as a storage buffer.
func (b *Buffer) StorageWrite(binding uint32) gpu.DescriptorWrite {
	return gpu.DescriptorWrite{Binding: binding, Type: gpu.DescriptorTypeStorageBuffer, Buffer: b.Handle, Range: b.Size}
}

// UniformWrite binds the whole buffer as a uniform buffer.
func (b *Buffer) UniformWrite(binding uint32) gpu.DescriptorWrite {
	return gpu.DescriptorWrite{Binding: binding, Type: gpu.DescriptorTypeUniformBuffer, Buffer: b.Handle, Range: b.Size}
}
