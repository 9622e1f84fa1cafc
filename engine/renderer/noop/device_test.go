package noop

import (
	"errors"
	"testing"
	"time"

	"github.com/tigrazone/gkNextRenderer/engine/renderer/gpu"
)

func openDevice(t *testing.T) *Device {
	t.Helper()
	dev, err := NewInstance(gpu.Extent2D{Width: 64, Height: 32}).OpenDevice(0, gpu.OpenOptions{RayTracing: true})
	if err != nil {
		t.Fatalf("open device: %v", err)
	}
	return dev
}

func TestOpenUnknownDevice(t *testing.T) {
	if _, err := NewInstance(gpu.Extent2D{Width: 1, Height: 1}).Open(3, gpu.OpenOptions{}); err == nil {
		t.Fatalf("expected an error opening a missing device")
	}
}

func TestBufferRoundTrip(t *testing.T) {
	dev := openDevice(t)
	buf, _, err := dev.CreateBuffer(gpu.BufferDesc{
		Label:  "staging",
		Size:   16,
		Usage:  gpu.BufferUsageStorage | gpu.BufferUsageDeviceAddress,
		Memory: gpu.MemoryHostVisible | gpu.MemoryHostCoherent,
	})
	if err != nil {
		t.Fatalf("create buffer: %v", err)
	}
	if err := dev.WriteBuffer(buf, 4, []byte{1, 2, 3}); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := dev.ReadBuffer(buf, 4, 3)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got) != string([]byte{1, 2, 3}) {
		t.Fatalf("expected [1 2 3]; got %v", got)
	}
	if addr := dev.BufferAddress(buf); addr == 0 || addr%addressAlignment != 0 {
		t.Fatalf("expected an aligned device address; got %#x", addr)
	}
	if err := dev.WriteBuffer(buf, 15, []byte{1, 2}); err == nil {
		t.Fatalf("expected overflowing write to fail")
	}
}

func TestAcquireTracksSurface(t *testing.T) {
	dev := openDevice(t)
	sc, err := dev.CreateSwapchain(gpu.SwapchainDesc{Extent: dev.SurfaceExtent()})
	if err != nil {
		t.Fatalf("create swapchain: %v", err)
	}
	sem, _ := dev.CreateSemaphore()
	for i := uint32(0); i < 4; i++ {
		idx, err := dev.AcquireNextImage(sc, sem, time.Second)
		if err != nil {
			t.Fatalf("acquire %d: %v", i, err)
		}
		if idx != i%sc.ImageCount() {
			t.Fatalf("expected image %d; got %d", i%sc.ImageCount(), idx)
		}
	}
	dev.Resize(gpu.Extent2D{Width: 128, Height: 64})
	if _, err := dev.AcquireNextImage(sc, sem, time.Second); !errors.Is(err, gpu.ErrOutOfDate) {
		t.Fatalf("expected out of date after resize; got %v", err)
	}
}

func TestSubmitSignalsFenceAndTracksLayouts(t *testing.T) {
	dev := openDevice(t)
	img, _, err := dev.CreateImage(gpu.ImageDesc{Label: "target", Extent: gpu.Extent2D{Width: 4, Height: 4}, Format: gpu.FormatRGBA16Sfloat})
	if err != nil {
		t.Fatalf("create image: %v", err)
	}
	fence, _ := dev.CreateFence(false)
	if err := dev.WaitFence(fence, time.Millisecond); !errors.Is(err, gpu.ErrTimeout) {
		t.Fatalf("expected timeout on unsignaled fence; got %v", err)
	}

	cbs, _ := dev.AllocateCommandBuffers(1)
	cb := cbs[0]
	if err := cb.Begin(); err != nil {
		t.Fatalf("begin: %v", err)
	}
	cb.PipelineBarrier(gpu.PipelineStageAllCommands, gpu.PipelineStageAllCommands,
		[]gpu.ImageBarrier{gpu.ColorImageBarrier(img, 0, gpu.AccessShaderWrite, gpu.ImageLayoutUndefined, gpu.ImageLayoutGeneral)}, nil)
	cb.PipelineBarrier(gpu.PipelineStageAllCommands, gpu.PipelineStageAllCommands,
		[]gpu.ImageBarrier{gpu.ColorImageBarrier(img, 0, 0, gpu.ImageLayoutTransferSrc, gpu.ImageLayoutGeneral)}, nil)
	cb.Dispatch(1, 2, 1)
	if err := cb.End(); err != nil {
		t.Fatalf("end: %v", err)
	}
	if err := dev.Submit(cb, 0, 0, 0, fence); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := dev.WaitFence(fence, time.Millisecond); err != nil {
		t.Fatalf("expected signaled fence; got %v", err)
	}
	if dev.ImageLayout(img) != gpu.ImageLayoutGeneral {
		t.Fatalf("expected general layout; got %d", dev.ImageLayout(img))
	}
	if dev.Stats.LayoutMismatches != 1 {
		t.Fatalf("expected 1 layout mismatch; got %d", dev.Stats.LayoutMismatches)
	}
	if dev.Stats.Ops[OpDispatch] != 1 || len(dev.LastSubmitted) != 3 {
		t.Fatalf("expected one dispatch in three commands; got %d / %d", dev.Stats.Ops[OpDispatch], len(dev.LastSubmitted))
	}
}

func TestShaderGroupHandles(t *testing.T) {
	dev := openDevice(t)
	module, _ := dev.CreateShaderModule([]uint32{0x07230203})
	pipe, err := dev.CreateRayTracingPipeline(gpu.RayTracingPipelineDesc{
		Label:  "rt",
		Stages: []gpu.ShaderStageDesc{{Stage: gpu.ShaderStageRayGen, Module: module, Entry: "main"}},
		Groups: make([]gpu.ShaderGroup, 4),
	})
	if err != nil {
		t.Fatalf("pipeline: %v", err)
	}
	handles, err := dev.ShaderGroupHandles(pipe, 0, 4)
	if err != nil {
		t.Fatalf("handles: %v", err)
	}
	size := int(DefaultRayTracingProperties.ShaderGroupHandleSize)
	if len(handles) != 4*size {
		t.Fatalf("expected %d bytes; got %d", 4*size, len(handles))
	}
	for i := 0; i < 4; i++ {
		if handles[i*size] != byte(i+1) {
			t.Fatalf("expected handle %d to start with %d; got %d", i, i+1, handles[i*size])
		}
	}
	if _, err := dev.ShaderGroupHandles(pipe, 2, 3); err == nil {
		t.Fatalf("expected out of range handles to fail")
	}
}
