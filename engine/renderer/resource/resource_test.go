package resource

import (
	"fmt"
	"strings"
	"testing"

	"github.com/tigrazone/gkNextRenderer/engine/renderer/gpu"
	"github.com/tigrazone/gkNextRenderer/engine/renderer/noop"
)

func newDevice(t *testing.T) *noop.Device {
	t.Helper()
	dev, err := noop.NewInstance(gpu.Extent2D{Width: 32, Height: 16}).OpenDevice(0, gpu.OpenOptions{RayTracing: true})
	if err != nil {
		t.Fatalf("open device: %v", err)
	}
	return dev
}

func TestArenaReleasesInReverseOrder(t *testing.T) {
	var order []string
	arena := NewArena("root")
	arena.Own("a", func() { order = append(order, "a") })
	child := arena.Child("child")
	arena.Own("b", func() { order = append(order, "b") })
	child.Own("c1", func() { order = append(order, "c1") })
	child.Own("c2", func() { order = append(order, "c2") })

	arena.Release()
	arena.Release()

	if got := strings.Join(order, ","); got != "b,c2,c1,a" {
		t.Fatalf("expected b,c2,c1,a; got %s", got)
	}
	if arena.Len() != 0 {
		t.Fatalf("expected empty arena after release; got %d entries", arena.Len())
	}
}

func TestImageTeardownOrder(t *testing.T) {
	dev := newDevice(t)
	arena := NewArena("test")
	img, err := NewImage(dev, arena, gpu.ImageDesc{Label: "img", Extent: gpu.Extent2D{Width: 4, Height: 4}, Format: gpu.FormatRGBA16Sfloat})
	if err != nil {
		t.Fatalf("new image: %v", err)
	}
	arena.Release()

	exp := []string{
		fmt.Sprintf("view:%d", img.View),
		fmt.Sprintf("image:%d", img.Handle),
		fmt.Sprintf("memory:%d", img.Memory),
	}
	if len(dev.Destroyed) != len(exp) {
		t.Fatalf("expected %v; got %v", exp, dev.Destroyed)
	}
	for i := range exp {
		if dev.Destroyed[i] != exp[i] {
			t.Fatalf("[%d] expected %s; got %s", i, exp[i], dev.Destroyed[i])
		}
	}
}

func TestImageInsertBarrierDoesNotCacheState(t *testing.T) {
	dev := newDevice(t)
	arena := NewArena("test")
	defer arena.Release()
	img, err := NewImage(dev, arena, gpu.ImageDesc{Label: "img", Extent: gpu.Extent2D{Width: 4, Height: 4}, Format: gpu.FormatRGBA16Sfloat})
	if err != nil {
		t.Fatalf("new image: %v", err)
	}
	cb, _ := dev.BeginSingleUse()
	img.InsertBarrier(cb, gpu.AccessNone, gpu.AccessShaderWrite, gpu.ImageLayoutUndefined, gpu.ImageLayoutGeneral)
	img.InsertBarrier(cb, gpu.AccessShaderWrite, gpu.AccessShaderRead, gpu.ImageLayoutGeneral, gpu.ImageLayoutGeneral)
	commands := cb.(*noop.CommandBuffer).Commands()
	if len(commands) != 2 {
		t.Fatalf("expected 2 barriers; got %d", len(commands))
	}
	b := commands[1].Images[0]
	if b.OldLayout != gpu.ImageLayoutGeneral || b.SrcAccess != gpu.AccessShaderWrite || b.DstAccess != gpu.AccessShaderRead {
		t.Fatalf("expected the barrier as given; got %+v", b)
	}
	if err := dev.EndSingleUse(cb); err != nil {
		t.Fatalf("end single use: %v", err)
	}
	if dev.Stats.LayoutMismatches != 0 {
		t.Fatalf("expected no layout mismatch; got %d", dev.Stats.LayoutMismatches)
	}
}

func TestBufferWriteRead(t *testing.T) {
	dev := newDevice(t)
	arena := NewArena("test")
	defer arena.Release()
	buf, err := NewBufferWithData(dev, arena, "data", gpu.BufferUsageStorage|gpu.BufferUsageDeviceAddress, []byte{9, 8, 7, 6})
	if err != nil {
		t.Fatalf("new buffer: %v", err)
	}
	got, err := buf.Read(1, 2)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got[0] != 8 || got[1] != 7 {
		t.Fatalf("expected [8 7]; got %v", got)
	}
	if buf.Address() == 0 {
		t.Fatalf("expected a device address")
	}

	empty, err := NewBufferWithData(dev, arena, "empty", gpu.BufferUsageStorage, nil)
	if err != nil {
		t.Fatalf("empty buffer: %v", err)
	}
	if empty.Size == 0 {
		t.Fatalf("expected a placeholder size for an empty buffer")
	}
}

func TestFrameResources(t *testing.T) {
	dev := newDevice(t)
	arena := NewArena("epoch")
	extent := gpu.Extent2D{Width: 40, Height: 24}
	fr, err := NewFrameResources(dev, arena, extent, gpu.FormatBGRA8Unorm)
	if err != nil {
		t.Fatalf("frame resources: %v", err)
	}

	type spec struct {
		image  *Image
		format gpu.Format
	}
	specs := []spec{
		{fr.Accumulation, gpu.FormatRGBA32Sfloat},
		{fr.Output, gpu.FormatBGRA8Unorm},
		{fr.PingPong[0], gpu.FormatRGBA16Sfloat},
		{fr.PingPong[1], gpu.FormatRGBA16Sfloat},
		{fr.GBuffer, gpu.FormatRGBA32Sfloat},
		{fr.Albedo, gpu.FormatRGBA16Sfloat},
		{fr.Motion, gpu.FormatRG16Sfloat},
		{fr.Visibility[0], gpu.FormatR32Uint},
		{fr.Visibility[1], gpu.FormatR32Uint},
	}
	for index, s := range specs {
		desc, ok := dev.ImageDesc(s.image.Handle)
		if !ok {
			t.Fatalf("[spec %d] image %s does not exist", index, s.image.Label)
		}
		if desc.Format != s.format {
			t.Fatalf("[spec %d] expected %s to be %s; got %s", index, s.image.Label, s.format, desc.Format)
		}
		if desc.Extent != extent {
			t.Fatalf("[spec %d] expected %s to be %v; got %v", index, s.image.Label, extent, desc.Extent)
		}
	}
	if len(fr.All()) != len(specs) || dev.LiveImages() != len(specs) {
		t.Fatalf("expected %d images; got %d listed, %d live", len(specs), len(fr.All()), dev.LiveImages())
	}

	fr.Destroy()
	if dev.LiveImages() != 0 {
		t.Fatalf("expected all images destroyed; %d live", dev.LiveImages())
	}
	arena.Release()
}

func TestFrameHistoryTransitions(t *testing.T) {
	dev := newDevice(t)
	arena := NewArena("epoch")
	defer arena.Release()
	fr, err := NewFrameResources(dev, arena, gpu.Extent2D{Width: 16, Height: 8}, gpu.FormatBGRA8Unorm)
	if err != nil {
		t.Fatalf("frame resources: %v", err)
	}

	cb, _ := dev.BeginSingleUse()
	fr.TransitionToGeneral(cb)
	fr.ClearHistory(cb)
	fr.Output.InsertBarrier(cb, gpu.AccessShaderWrite, gpu.AccessTransferRead, gpu.ImageLayoutGeneral, gpu.ImageLayoutTransferSrc)
	fr.Reacquire(cb)
	commands := cb.(*noop.CommandBuffer).Commands()
	if err := dev.EndSingleUse(cb); err != nil {
		t.Fatalf("submit: %v", err)
	}

	cleared := map[gpu.ImageID]bool{}
	for _, c := range commands {
		if c.Op == noop.OpClear {
			cleared[c.DstImage] = true
		}
	}
	if len(cleared) != 2 || !cleared[fr.PingPong[0].Handle] || !cleared[fr.PingPong[1].Handle] {
		t.Fatalf("expected both ping-pong images cleared; got %v", cleared)
	}

	last := commands[len(commands)-1]
	if last.Op != noop.OpBarrier || len(last.Images) != len(fr.All()) {
		t.Fatalf("expected one barrier over every frame image")
	}
	for index, b := range last.Images {
		exp := gpu.ImageLayoutGeneral
		if b.Image == fr.Output.Handle {
			exp = gpu.ImageLayoutUndefined
		}
		if b.OldLayout != exp || b.NewLayout != gpu.ImageLayoutGeneral {
			t.Fatalf("[image %d] expected layout %d -> general; got %d -> %d", index, exp, b.OldLayout, b.NewLayout)
		}
	}
	if dev.Stats.LayoutMismatches != 0 {
		t.Fatalf("expected no layout mismatches; got %d", dev.Stats.LayoutMismatches)
	}
}
