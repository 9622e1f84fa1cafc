package renderer

import (
	"fmt"

	"github.com/tigrazone/gkNextRenderer/engine/core"
	"github.com/tigrazone/gkNextRenderer/engine/renderer/accel"
	"github.com/tigrazone/gkNextRenderer/engine/renderer/gpu"
	"github.com/tigrazone/gkNextRenderer/engine/renderer/resource"
	"github.com/tigrazone/gkNextRenderer/engine/renderer/stages"
	"github.com/tigrazone/gkNextRenderer/engine/scene"
)

const aabbStride = 24

// RayTracedConfig is what the ray traced pipeline renders and how.
type RayTracedConfig struct {
	Scene   *scene.Scene
	Shaders stages.ShaderSource
	// Denoiser is optional.
	Denoiser Denoiser
	Scratch  accel.ScratchPolicy
}

// RayTraced is the path traced pipeline: trace, accumulate, a-trous denoise
// and compose, followed by a copy into the swap image.
type RayTraced struct {
	cfg RayTracedConfig

	device  gpu.Device
	buffers *scene.Buffers
	builder *accel.Builder
	// nodesMoved keeps the node history refreshed one frame after the last move.
	nodesMoved bool

	frame *resource.FrameResources
	// imagesReady is set once the frame images left the undefined layout.
	imagesReady bool
	uniforms    []*resource.Buffer
	trace       *stages.Trace
	accumulate  *stages.Accumulate
	denoise     *stages.Denoise
	compose     *stages.Compose
	staging     *resource.Buffer
}

func NewRayTraced(cfg RayTracedConfig) *RayTraced {
	return &RayTraced{cfg: cfg}
}

func (rt *RayTraced) Name() string { return "RayTraced" }

func (rt *RayTraced) SetPhysicalDeviceImpl(info gpu.PhysicalDeviceInfo, opts *gpu.OpenOptions) {
	opts.RayTracing = true
}

// accelGeometry describes every model of s as a range of the uploaded buffers.
func accelGeometry(s *scene.Scene, b *scene.Buffers) (accel.Geometry, []accel.Node) {
	geom := accel.Geometry{
		VertexAddress: b.Vertices.Address(),
		VertexStride:  scene.VertexStride,
		IndexAddress:  b.Indices.Address(),
		AABBAddress:   b.AABBs.Address(),
		AABBStride:    aabbStride,
	}
	for i := range s.Models {
		m := &s.Models[i]
		geom.Models = append(geom.Models, accel.Model{
			VertexOffset: s.Offsets[i].Vertex,
			VertexCount:  uint32(len(m.Vertices)),
			IndexOffset:  s.Offsets[i].Index,
			IndexCount:   uint32(len(m.Indices)),
			Procedural:   m.Procedural(),
			AABBIndex:    uint32(i),
		})
	}
	nodes := make([]accel.Node, len(s.Nodes))
	for i, n := range s.Nodes {
		nodes[i] = accel.Node{Transform: n.Transform.Data, Model: uint32(n.Model)}
	}
	return geom, nodes
}

// OnDeviceSet uploads the scene and builds the acceleration structures.
func (rt *RayTraced) OnDeviceSet(device gpu.Device, arena *resource.Arena) error {
	if rt.cfg.Scene == nil {
		return fmt.Errorf("ray traced renderer has no scene")
	}
	rt.device = device
	buffers, err := rt.cfg.Scene.Upload(device, arena)
	if err != nil {
		return err
	}
	rt.buffers = buffers

	geom, nodes := accelGeometry(rt.cfg.Scene, buffers)
	builder, err := accel.NewBuilder(device, arena, geom, nodes, rt.cfg.Scratch)
	if err != nil {
		return err
	}
	if err := builder.Build(); err != nil {
		return err
	}
	rt.builder = builder
	return nil
}

// CreateSwapChain creates the frame images, one uniform buffer per swap
// image, the four stages and the denoiser staging buffer, in that order.
func (rt *RayTraced) CreateSwapChain(sc *gpu.Swapchain, arena *resource.Arena) error {
	var err error
	rt.imagesReady = false
	if rt.frame, err = resource.NewFrameResources(rt.device, arena, sc.Extent, sc.Format); err != nil {
		return err
	}
	count := sc.ImageCount()
	rt.uniforms = make([]*resource.Buffer, count)
	for i := range rt.uniforms {
		rt.uniforms[i], err = resource.NewBuffer(rt.device, arena, gpu.BufferDesc{
			Label:  fmt.Sprintf("uniforms-%d", i),
			Size:   UniformBufferSize,
			Usage:  gpu.BufferUsageUniform,
			Memory: gpu.MemoryHostVisible | gpu.MemoryHostCoherent,
		})
		if err != nil {
			return err
		}
	}

	b := rt.buffers
	rt.trace, err = stages.NewTrace(rt.device, arena, rt.cfg.Shaders, stages.TraceInputs{
		TopLevel: rt.builder.TopLevel(),
		Uniforms: rt.uniforms,
		Scene: stages.SceneBuffers{
			Vertices:    b.Vertices,
			Indices:     b.Indices,
			Materials:   b.Materials,
			Offsets:     b.Offsets,
			Lights:      b.Lights,
			Procedurals: b.Procedurals,
		},
		Frame: rt.frame,
	}, count)
	if err != nil {
		return err
	}
	if rt.accumulate, err = stages.NewAccumulate(rt.device, arena, rt.cfg.Shaders, rt.uniforms, rt.frame, count); err != nil {
		return err
	}
	if rt.denoise, err = stages.NewDenoise(rt.device, arena, rt.cfg.Shaders, rt.uniforms, rt.frame, count); err != nil {
		return err
	}
	if rt.compose, err = stages.NewCompose(rt.device, arena, rt.cfg.Shaders, rt.uniforms, rt.frame, count); err != nil {
		return err
	}

	if d := rt.cfg.Denoiser; d != nil {
		rt.staging, err = resource.NewBuffer(rt.device, arena, gpu.BufferDesc{
			Label:  "denoiser-staging",
			Size:   stagingSize(sc.Extent),
			Usage:  gpu.BufferUsageStorage | gpu.BufferUsageTransferSrc | gpu.BufferUsageTransferDst,
			Memory: gpu.MemoryHostVisible | gpu.MemoryHostCoherent,
		})
		if err != nil {
			return err
		}
		if err := d.Setup(rt.device, arena.Child(d.Name()), sc.Extent); err != nil {
			return fmt.Errorf("failed to set up denoiser %s: %w", d.Name(), err)
		}
		core.LogInfo("denoiser %s enabled", d.Name())
	}
	return nil
}

func (rt *RayTraced) DeleteSwapChain() {
	rt.staging = nil
	rt.compose, rt.denoise, rt.accumulate, rt.trace = nil, nil, nil, nil
	rt.uniforms = nil
	rt.frame = nil
	rt.imagesReady = false
}

// updateInstances records a top-level rebuild when a node moved.
func (rt *RayTraced) updateInstances(cb gpu.CommandBuffer, frame uint64) error {
	s := rt.cfg.Scene
	transforms := make([][16]float32, len(s.Nodes))
	for i, n := range s.Nodes {
		transforms[i] = n.Transform.Data
	}
	rebuilt, err := rt.builder.UpdateInstances(cb, frame, transforms)
	if err != nil {
		return err
	}
	if rebuilt || rt.nodesMoved {
		if err := rt.buffers.WriteNodes(s); err != nil {
			return err
		}
	}
	rt.nodesMoved = rebuilt
	return nil
}

func (rt *RayTraced) Render(cb gpu.CommandBuffer, f *Frame) error {
	if err := rt.uniforms[f.ImageIndex].Write(0, f.Uniforms.Bytes()); err != nil {
		return err
	}
	if err := rt.updateInstances(cb, f.Number); err != nil {
		return err
	}
	fr := rt.frame
	extent := fr.Extent
	const rw = gpu.AccessShaderRead | gpu.AccessShaderWrite

	// The first frame after the images were created starts from empty
	// history. Later frames keep it.
	if !rt.imagesReady {
		fr.TransitionToGeneral(cb)
		fr.ClearHistory(cb)
		rt.imagesReady = true
	} else {
		fr.Reacquire(cb)
	}

	rt.trace.Dispatch(cb, f.ImageIndex, extent, f.Settings.UseCheckerBoardRendering)

	// Trace outputs become readable by the compute passes.
	for _, img := range []*resource.Image{fr.Accumulation, fr.Motion, fr.Visibility[0], fr.Visibility[1], fr.GBuffer, fr.Albedo} {
		img.InsertBarrier(cb, gpu.AccessShaderWrite, rw, gpu.ImageLayoutGeneral, gpu.ImageLayoutGeneral)
	}

	acc := stages.AccumulatePass(f.Number)
	rt.accumulate.Dispatch(cb, f.ImageIndex, extent, stages.PushConstants{PingPong: acc.Source})
	fr.PingPong[acc.Destination].InsertBarrier(cb, gpu.AccessShaderWrite, rw, gpu.ImageLayoutGeneral, gpu.ImageLayoutGeneral)

	passes := stages.DenoisePasses(f.Settings.DenoiseIteration)
	for i := uint32(0); i < passes; i++ {
		p := stages.DenoisePass(f.Number, i)
		rt.denoise.Dispatch(cb, f.ImageIndex, extent, stages.PushConstants{PingPong: p.Source, StepSize: i})
		fr.PingPong[p.Destination].InsertBarrier(cb, gpu.AccessShaderWrite, rw, gpu.ImageLayoutGeneral, gpu.ImageLayoutGeneral)
	}

	rt.compose.Dispatch(cb, f.ImageIndex, extent, stages.PushConstants{PingPong: stages.FinalPingPong(f.Number, passes)})

	// Acquire the output and swap images for copying.
	fr.Output.InsertBarrier(cb, gpu.AccessShaderWrite, gpu.AccessTransferRead, gpu.ImageLayoutGeneral, gpu.ImageLayoutTransferSrc)
	if rt.cfg.Denoiser != nil {
		if err := recordDenoiser(cb, rt.cfg.Denoiser, fr.Output, rt.staging, extent); err != nil {
			return fmt.Errorf("denoiser %s: %w", rt.cfg.Denoiser.Name(), err)
		}
	}
	cb.PipelineBarrier(gpu.PipelineStageTopOfPipe, gpu.PipelineStageTransfer, []gpu.ImageBarrier{
		gpu.ColorImageBarrier(f.SwapImage, gpu.AccessNone, gpu.AccessTransferWrite,
			gpu.ImageLayoutUndefined, gpu.ImageLayoutTransferDst),
	}, nil)
	cb.CopyImage(fr.Output.Handle, gpu.ImageLayoutTransferSrc, f.SwapImage, gpu.ImageLayoutTransferDst, extent)
	cb.PipelineBarrier(gpu.PipelineStageTransfer, gpu.PipelineStageBottomOfPipe, []gpu.ImageBarrier{
		gpu.ColorImageBarrier(f.SwapImage, gpu.AccessTransferWrite, gpu.AccessNone,
			gpu.ImageLayoutTransferDst, gpu.ImageLayoutPresentSrc),
	}, nil)
	return nil
}
