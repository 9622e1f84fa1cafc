package resource

import (
	"github.com/tigrazone/gkNextRenderer/engine/renderer/gpu"
)

// FrameResources is the set of images sized to one swap-chain extent.
type FrameResources struct {
	Extent gpu.Extent2D

	Accumulation *Image
	Output       *Image
	PingPong     [2]*Image
	GBuffer      *Image
	Albedo       *Image
	Motion       *Image
	Visibility   [2]*Image

	arena *Arena
}

// NewFrameResources allocates every frame image at the given extent. Output
// uses the swap-chain format so it can be copied into the presentable image.
func NewFrameResources(device gpu.Device, parent *Arena, extent gpu.Extent2D, swapFormat gpu.Format) (*FrameResources, error) {
	arena := parent.Child("frame-resources")
	fr := &FrameResources{Extent: extent, arena: arena}

	storage := gpu.ImageUsageStorage
	specs := []struct {
		target **Image
		desc   gpu.ImageDesc
	}{
		{&fr.Accumulation, gpu.ImageDesc{Label: "accumulation", Format: gpu.FormatRGBA32Sfloat, Usage: storage}},
		{&fr.Output, gpu.ImageDesc{Label: "output", Format: swapFormat, Usage: storage | gpu.ImageUsageTransferSrc}},
		{&fr.PingPong[0], gpu.ImageDesc{Label: "pingpong0", Format: gpu.FormatRGBA16Sfloat, Usage: storage | gpu.ImageUsageTransferSrc | gpu.ImageUsageTransferDst}},
		{&fr.PingPong[1], gpu.ImageDesc{Label: "pingpong1", Format: gpu.FormatRGBA16Sfloat, Usage: storage | gpu.ImageUsageTransferSrc | gpu.ImageUsageTransferDst}},
		{&fr.GBuffer, gpu.ImageDesc{Label: "gbuffer", Format: gpu.FormatRGBA32Sfloat, Usage: storage}},
		{&fr.Albedo, gpu.ImageDesc{Label: "albedo", Format: gpu.FormatRGBA16Sfloat, Usage: storage}},
		{&fr.Motion, gpu.ImageDesc{Label: "motion", Format: gpu.FormatRG16Sfloat, Usage: storage}},
		{&fr.Visibility[0], gpu.ImageDesc{Label: "visibility0", Format: gpu.FormatR32Uint, Usage: storage}},
		{&fr.Visibility[1], gpu.ImageDesc{Label: "visibility1", Format: gpu.FormatR32Uint, Usage: storage}},
	}
	for _, s := range specs {
		s.desc.Extent = extent
		img, err := NewImage(device, arena, s.desc)
		if err != nil {
			arena.Release()
			return nil, err
		}
		*s.target = img
	}
	return fr, nil
}

// All lists the images in creation order.
func (fr *FrameResources) All() []*Image {
	return []*Image{
		fr.Accumulation, fr.Output, fr.PingPong[0], fr.PingPong[1],
		fr.GBuffer, fr.Albedo, fr.Motion, fr.Visibility[0], fr.Visibility[1],
	}
}

// TransitionToGeneral records the undefined -> general transition of every image.
func (fr *FrameResources) TransitionToGeneral(cb gpu.CommandBuffer) {
	barriers := make([]gpu.ImageBarrier, 0, 9)
	for _, img := range fr.All() {
		barriers = append(barriers, gpu.ColorImageBarrier(img.Handle, gpu.AccessNone,
			gpu.AccessShaderRead|gpu.AccessShaderWrite, gpu.ImageLayoutUndefined, gpu.ImageLayoutGeneral))
	}
	cb.PipelineBarrier(gpu.PipelineStageAllCommands, gpu.PipelineStageAllCommands, barriers, nil)
}

// Reacquire records the barrier that carries the images of the previous frame
// into the next one. Every image but Output keeps its contents in the general
// layout. Output left the previous frame as a copy source and is rewritten in
// full, so its contents are discarded.
func (fr *FrameResources) Reacquire(cb gpu.CommandBuffer) {
	const rw = gpu.AccessShaderRead | gpu.AccessShaderWrite
	barriers := make([]gpu.ImageBarrier, 0, 9)
	for _, img := range fr.All() {
		if img == fr.Output {
			barriers = append(barriers, gpu.ColorImageBarrier(img.Handle, gpu.AccessTransferRead, rw,
				gpu.ImageLayoutUndefined, gpu.ImageLayoutGeneral))
			continue
		}
		barriers = append(barriers, gpu.ColorImageBarrier(img.Handle, rw, rw,
			gpu.ImageLayoutGeneral, gpu.ImageLayoutGeneral))
	}
	cb.PipelineBarrier(gpu.PipelineStageAllCommands, gpu.PipelineStageAllCommands, barriers, nil)
}

// ClearHistory zeroes both ping-pong images. A zero alpha marks a pixel as
// having no accumulated history.
func (fr *FrameResources) ClearHistory(cb gpu.CommandBuffer) {
	barriers := make([]gpu.ImageBarrier, 0, len(fr.PingPong))
	for _, img := range fr.PingPong {
		cb.ClearColorImage(img.Handle, gpu.ImageLayoutGeneral, [4]float32{})
		barriers = append(barriers, gpu.ColorImageBarrier(img.Handle, gpu.AccessTransferWrite,
			gpu.AccessShaderRead|gpu.AccessShaderWrite, gpu.ImageLayoutGeneral, gpu.ImageLayoutGeneral))
	}
	cb.PipelineBarrier(gpu.PipelineStageTransfer, gpu.PipelineStageAllCommands, barriers, nil)
}

// Destroy releases the images newest first.
func (fr *FrameResources) Destroy() {
	fr.arena.Release()
}
