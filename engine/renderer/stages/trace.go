package stages

import (
	"fmt"

	"github.com/tigrazone/gkNextRenderer/engine/renderer/gpu"
	"github.com/tigrazone/gkNextRenderer/engine/renderer/resource"
	"github.com/tigrazone/gkNextRenderer/engine/renderer/sbt"
)

// Shader group indices of the trace pipeline.
const (
	RayGenShaderIndex       uint32 = 0
	MissShaderIndex         uint32 = 1
	TriangleHitGroupIndex   uint32 = 2
	ProceduralHitGroupIndex uint32 = 3

	traceGroupCount = 4
)

// Trace shader names, as compiled by the shader build.
const (
	RayGenShader               = "RayTracing.rgen"
	MissShader                 = "RayTracing.rmiss"
	ClosestHitShader           = "RayTracing.rchit"
	ProceduralClosestHitShader = "RayTracing.Procedural.rchit"
	ProceduralIntersectShader  = "RayTracing.Procedural.rint"
)

// Trace bindings.
const (
	TraceBindingAccel uint32 = iota
	TraceBindingUniform
	TraceBindingVertices
	TraceBindingIndices
	TraceBindingMaterials
	TraceBindingOffsets
	TraceBindingLights
	TraceBindingProcedurals
	TraceBindingAccumulation
	TraceBindingGBuffer
	TraceBindingAlbedo
	TraceBindingMotion
	TraceBindingVisibility0
	TraceBindingVisibility1
)

// SceneBuffers are the device buffers the trace shaders index into.
type SceneBuffers struct {
	Vertices    *resource.Buffer
	Indices     *resource.Buffer
	Materials   *resource.Buffer
	Offsets     *resource.Buffer
	Lights      *resource.Buffer
	Procedurals *resource.Buffer
}

// TraceInputs is everything bound by the trace stage.
type TraceInputs struct {
	TopLevel gpu.AccelID
	Uniforms []*resource.Buffer
	Scene    SceneBuffers
	Frame    *resource.FrameResources
}

// Trace is the ray tracing pass together with its shader binding table.
type Trace struct {
	*Stage
	Table *sbt.Table
}

func traceBindings() []gpu.DescriptorBinding {
	rt := gpu.ShaderStageAllRayTracing
	b := []gpu.DescriptorBinding{
		{Binding: TraceBindingAccel, Type: gpu.DescriptorTypeAccelerationStructure, Stages: gpu.ShaderStageRayGen | gpu.ShaderStageClosestHit, Count: 1},
		{Binding: TraceBindingUniform, Type: gpu.DescriptorTypeUniformBuffer, Stages: rt, Count: 1},
	}
	for i := TraceBindingVertices; i <= TraceBindingProcedurals; i++ {
		b = append(b, gpu.DescriptorBinding{Binding: i, Type: gpu.DescriptorTypeStorageBuffer, Stages: rt, Count: 1})
	}
	return append(b, storageImages(gpu.ShaderStageRayGen, TraceBindingAccumulation, 6)...)
}

func traceWrites(in TraceInputs, imageIndex uint32) []gpu.DescriptorWrite {
	f := in.Frame
	return []gpu.DescriptorWrite{
		{Binding: TraceBindingAccel, Type: gpu.DescriptorTypeAccelerationStructure, Accel: in.TopLevel},
		in.Uniforms[imageIndex].UniformWrite(TraceBindingUniform),
		in.Scene.Vertices.StorageWrite(TraceBindingVertices),
		in.Scene.Indices.StorageWrite(TraceBindingIndices),
		in.Scene.Materials.StorageWrite(TraceBindingMaterials),
		in.Scene.Offsets.StorageWrite(TraceBindingOffsets),
		in.Scene.Lights.StorageWrite(TraceBindingLights),
		in.Scene.Procedurals.StorageWrite(TraceBindingProcedurals),
		f.Accumulation.StorageWrite(TraceBindingAccumulation),
		f.GBuffer.StorageWrite(TraceBindingGBuffer),
		f.Albedo.StorageWrite(TraceBindingAlbedo),
		f.Motion.StorageWrite(TraceBindingMotion),
		f.Visibility[0].StorageWrite(TraceBindingVisibility0),
		f.Visibility[1].StorageWrite(TraceBindingVisibility1),
	}
}

// NewTrace builds the ray tracing pipeline, writes one descriptor set per swap
// image and lays out the shader binding table.
func NewTrace(device gpu.Device, arena *resource.Arena, shaders ShaderSource, in TraceInputs, imageCount uint32) (*Trace, error) {
	if uint32(len(in.Uniforms)) < imageCount {
		return nil, fmt.Errorf("trace stage needs %d uniform buffers, got %d", imageCount, len(in.Uniforms))
	}
	s, err := newStage(device, arena, "trace", gpu.BindPointRayTracing, traceBindings(), nil, imageCount)
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < imageCount; i++ {
		device.UpdateDescriptorSet(s.sets[i], traceWrites(in, i))
	}

	names := []struct {
		stage gpu.ShaderStage
		name  string
	}{
		{gpu.ShaderStageRayGen, RayGenShader},
		{gpu.ShaderStageMiss, MissShader},
		{gpu.ShaderStageClosestHit, ClosestHitShader},
		{gpu.ShaderStageClosestHit, ProceduralClosestHitShader},
		{gpu.ShaderStageIntersection, ProceduralIntersectShader},
	}
	var shaderStages []gpu.ShaderStageDesc
	for _, n := range names {
		module, err := loadModule(device, shaders, n.name)
		if err != nil {
			for _, st := range shaderStages {
				device.DestroyShaderModule(st.Module)
			}
			return nil, s.fail(err, "shader")
		}
		shaderStages = append(shaderStages, gpu.ShaderStageDesc{Stage: n.stage, Module: module, Entry: "main"})
	}
	defer func() {
		for _, st := range shaderStages {
			device.DestroyShaderModule(st.Module)
		}
	}()

	groups := []gpu.ShaderGroup{
		{Type: gpu.ShaderGroupGeneral, General: 0, ClosestHit: gpu.ShaderUnused, AnyHit: gpu.ShaderUnused, Intersection: gpu.ShaderUnused},
		{Type: gpu.ShaderGroupGeneral, General: 1, ClosestHit: gpu.ShaderUnused, AnyHit: gpu.ShaderUnused, Intersection: gpu.ShaderUnused},
		{Type: gpu.ShaderGroupTrianglesHit, General: gpu.ShaderUnused, ClosestHit: 2, AnyHit: gpu.ShaderUnused, Intersection: gpu.ShaderUnused},
		{Type: gpu.ShaderGroupProceduralHit, General: gpu.ShaderUnused, ClosestHit: 3, AnyHit: gpu.ShaderUnused, Intersection: 4},
	}
	pipeline, err := device.CreateRayTracingPipeline(gpu.RayTracingPipelineDesc{
		Label:             "trace",
		Layout:            s.Layout,
		Stages:            shaderStages,
		Groups:            groups,
		MaxRecursionDepth: 1,
	})
	if err != nil {
		return nil, s.fail(err, "pipeline")
	}
	s.setPipeline(pipeline)

	table, err := sbt.New(device, s.arena, pipeline, traceGroupCount,
		[]sbt.Entry{{GroupIndex: RayGenShaderIndex}},
		[]sbt.Entry{{GroupIndex: MissShaderIndex}},
		[]sbt.Entry{{GroupIndex: TriangleHitGroupIndex}, {GroupIndex: ProceduralHitGroupIndex}},
	)
	if err != nil {
		s.Destroy()
		return nil, err
	}
	return &Trace{Stage: s, Table: table}, nil
}

// Dispatch traces one ray per pixel, or per other column with checkerboard.
func (t *Trace) Dispatch(cb gpu.CommandBuffer, imageIndex uint32, extent gpu.Extent2D, checkerboard bool) {
	t.Bind(cb, imageIndex)
	cb.TraceRays(t.Table.RayGen(), t.Table.Miss(), t.Table.Hit(), t.Table.Callable(),
		TraceWidth(extent, checkerboard), extent.Height, 1)
}
