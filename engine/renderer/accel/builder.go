// Package accel builds the two-level acceleration structure traced by the renderer.
package accel

import (
	"bytes"
	"fmt"

	"github.com/tigrazone/gkNextRenderer/engine/core"
	"github.com/tigrazone/gkNextRenderer/engine/renderer/gpu"
	"github.com/tigrazone/gkNextRenderer/engine/renderer/resource"
)

// ScratchPolicy decides how the shared scratch buffer is sized.
type ScratchPolicy int

const (
	// ScratchSum gives each build a disjoint scratch range so all bottom-level
	// builds can be recorded in a single command.
	ScratchSum ScratchPolicy = iota
	// ScratchMax sizes the buffer for the largest build and serialises the
	// builds with barriers in between.
	ScratchMax
)

func (p ScratchPolicy) String() string {
	if p == ScratchMax {
		return "max"
	}
	return "sum"
}

const (
	storageAlignment = 256
	scratchAlignment = 256
	instanceMask     = 0xFF
)

// Model is the geometry range of one bottom-level structure inside the
// flattened scene buffers.
type Model struct {
	VertexOffset uint32
	VertexCount  uint32
	IndexOffset  uint32
	IndexCount   uint32
	Procedural   bool
	AABBIndex    uint32
}

// Geometry points at the device buffers every model reads from.
type Geometry struct {
	VertexAddress uint64
	VertexStride  uint64
	IndexAddress  uint64
	AABBAddress   uint64
	AABBStride    uint64
	Models        []Model
}

// Node places one model in the world; Transform is column-major.
type Node struct {
	Transform [16]float32
	Model     uint32
}

type structure struct {
	handle        gpu.AccelID
	geometries    []gpu.AccelGeometry
	sizes         gpu.AccelBuildSizes
	storageOffset uint64
	scratchOffset uint64
}

// Builder owns every bottom-level structure, the top-level structure, their
// shared storage and scratch buffers and the instance buffer.
type Builder struct {
	device gpu.Device
	policy ScratchPolicy

	bottom    []structure
	top       structure
	nodes     []Node
	models    []Model
	instances []byte

	storage   *resource.Buffer
	scratch   *resource.Buffer
	instanceB *resource.Buffer

	scratchSize      uint64
	lastRebuildFrame uint64
	rebuilt          bool
}

func wrap(err error, msg string, args ...interface{}) error {
	err = fmt.Errorf("%w: %s: %w", core.ErrAccelBuild, fmt.Sprintf(msg, args...), err)
	core.LogError("%s", err)
	return err
}

func modelGeometry(geom Geometry, m Model) gpu.AccelGeometry {
	if m.Procedural {
		return gpu.AccelGeometry{
			Procedural:  true,
			AABBAddress: geom.AABBAddress + uint64(m.AABBIndex)*geom.AABBStride,
			AABBStride:  geom.AABBStride,
			AABBCount:   1,
			Opaque:      true,
		}
	}
	return gpu.AccelGeometry{
		VertexAddress: geom.VertexAddress,
		VertexStride:  geom.VertexStride,
		VertexCount:   m.VertexOffset + m.VertexCount,
		IndexAddress:  geom.IndexAddress + uint64(m.IndexOffset)*4,
		IndexCount:    m.IndexCount,
		FirstVertex:   m.VertexOffset,
		Opaque:        true,
	}
}

// NewBuilder queries sizes for one bottom-level structure per model and the
// top-level structure over nodes, then allocates storage, scratch and instance
// buffers and creates the structures. Nothing is built until Build is called.
func NewBuilder(device gpu.Device, arena *resource.Arena, geom Geometry, nodes []Node, policy ScratchPolicy) (*Builder, error) {
	if len(geom.Models) == 0 {
		return nil, wrap(fmt.Errorf("scene has no models"), "bottom level")
	}
	b := &Builder{
		device: device,
		policy: policy,
		nodes:  append([]Node(nil), nodes...),
		models: append([]Model(nil), geom.Models...),
	}
	for i, n := range nodes {
		if int(n.Model) >= len(geom.Models) {
			return nil, wrap(fmt.Errorf("node %d references model %d of %d", i, n.Model, len(geom.Models)), "instances")
		}
	}

	storageSize := uint64(0)
	var scratchNeeds []uint64
	for i, m := range geom.Models {
		geometries := []gpu.AccelGeometry{modelGeometry(geom, m)}
		sizes, err := device.AccelBuildSizes(gpu.AccelBottomLevel, geometries)
		if err != nil {
			return nil, wrap(err, "size query for model %d", i)
		}
		b.bottom = append(b.bottom, structure{geometries: geometries, sizes: sizes, storageOffset: storageSize})
		storageSize = gpu.AlignUp(storageSize+sizes.AccelerationStructureSize, storageAlignment)
		scratchNeeds = append(scratchNeeds, sizes.BuildScratchSize)
	}

	instanceCount := uint32(len(nodes))
	instanceBytes := uint64(instanceCount) * InstanceSize
	if instanceBytes == 0 {
		instanceBytes = InstanceSize
	}
	var err error
	b.instanceB, err = resource.NewBuffer(device, arena, gpu.BufferDesc{
		Label:  "tlas-instances",
		Size:   instanceBytes,
		Usage:  gpu.BufferUsageAccelInput | gpu.BufferUsageDeviceAddress,
		Memory: gpu.MemoryHostVisible | gpu.MemoryHostCoherent,
	})
	if err != nil {
		return nil, wrap(err, "instance buffer")
	}
	topGeometry := []gpu.AccelGeometry{{InstanceAddress: b.instanceB.Address(), InstanceCount: instanceCount}}
	topSizes, err := device.AccelBuildSizes(gpu.AccelTopLevel, topGeometry)
	if err != nil {
		return nil, wrap(err, "size query for top level")
	}
	b.top = structure{geometries: topGeometry, sizes: topSizes, storageOffset: storageSize}
	storageSize = gpu.AlignUp(storageSize+topSizes.AccelerationStructureSize, storageAlignment)
	scratchNeeds = append(scratchNeeds, topSizes.BuildScratchSize)

	offsets, total := scratchLayout(policy, scratchNeeds)
	for i := range b.bottom {
		b.bottom[i].scratchOffset = offsets[i]
	}
	b.top.scratchOffset = offsets[len(offsets)-1]
	b.scratchSize = total

	b.storage, err = resource.NewBuffer(device, arena, gpu.BufferDesc{
		Label:  "accel-storage",
		Size:   storageSize,
		Usage:  gpu.BufferUsageAccelStorage | gpu.BufferUsageDeviceAddress,
		Memory: gpu.MemoryDeviceLocal,
	})
	if err != nil {
		return nil, wrap(err, "storage buffer")
	}
	b.scratch, err = resource.NewBuffer(device, arena, gpu.BufferDesc{
		Label:  "accel-scratch",
		Size:   total,
		Usage:  gpu.BufferUsageStorage | gpu.BufferUsageDeviceAddress,
		Memory: gpu.MemoryDeviceLocal,
	})
	if err != nil {
		return nil, wrap(err, "scratch buffer")
	}

	for i := range b.bottom {
		s := &b.bottom[i]
		s.handle, err = device.CreateAccel(gpu.AccelBottomLevel, b.storage.Handle, s.storageOffset, s.sizes.AccelerationStructureSize)
		if err != nil {
			return nil, wrap(err, "bottom level %d", i)
		}
		handle := s.handle
		arena.Own(fmt.Sprintf("blas-%d", i), func() { device.DestroyAccel(handle) })
	}
	b.top.handle, err = device.CreateAccel(gpu.AccelTopLevel, b.storage.Handle, b.top.storageOffset, topSizes.AccelerationStructureSize)
	if err != nil {
		return nil, wrap(err, "top level")
	}
	top := b.top.handle
	arena.Own("tlas", func() { device.DestroyAccel(top) })

	transforms := make([][16]float32, len(nodes))
	for i, n := range nodes {
		transforms[i] = n.Transform
	}
	b.instances = EncodeInstances(b.makeInstances(transforms))
	if err := b.instanceB.Write(0, b.instances); err != nil {
		return nil, wrap(err, "instance upload")
	}

	core.LogInfo("acceleration structures: %d bottom level, %d instances, scratch %d bytes (%s)",
		len(b.bottom), len(nodes), total, policy)
	return b, nil
}

// scratchLayout returns per-build scratch offsets and the total buffer size.
func scratchLayout(policy ScratchPolicy, needs []uint64) ([]uint64, uint64) {
	offsets := make([]uint64, len(needs))
	total := uint64(0)
	for i, n := range needs {
		if policy == ScratchMax {
			if n > total {
				total = n
			}
			continue
		}
		offsets[i] = total
		total = gpu.AlignUp(total+n, scratchAlignment)
	}
	if total == 0 {
		total = scratchAlignment
	}
	return offsets, total
}

func (b *Builder) makeInstances(transforms [][16]float32) []Instance {
	out := make([]Instance, len(b.nodes))
	for i, n := range b.nodes {
		sbtOffset := TriangleHitOffset
		if b.models[n.Model].Procedural {
			sbtOffset = ProceduralHitOffset
		}
		out[i] = Instance{
			Transform:   TransformFromMat4(transforms[i]),
			CustomIndex: n.Model,
			Mask:        instanceMask,
			SBTOffset:   sbtOffset,
			Flags:       InstanceFlagTriangleCullDisable,
			Reference:   b.device.AccelAddress(b.bottom[n.Model].handle),
		}
	}
	return out
}

func (b *Builder) buildInfo(s structure, kind gpu.AccelKind) gpu.AccelBuild {
	return gpu.AccelBuild{
		Kind:           kind,
		Destination:    s.handle,
		Geometries:     s.geometries,
		ScratchAddress: b.scratch.Address() + s.scratchOffset,
	}
}

func (b *Builder) scratchBarrier(cb gpu.CommandBuffer) {
	b.scratch.InsertBarrier(cb, gpu.PipelineStageAccelBuild, gpu.PipelineStageAccelBuild,
		gpu.AccessAccelWrite, gpu.AccessAccelRead|gpu.AccessAccelWrite)
}

// Build records every bottom-level build followed by the top-level build into
// a single-use command buffer and waits for it.
func (b *Builder) Build() error {
	cb, err := b.device.BeginSingleUse()
	if err != nil {
		return wrap(err, "begin build")
	}
	b.RecordBottomLevel(cb)
	b.scratchBarrier(cb)
	b.recordTopLevel(cb)
	if err := b.device.EndSingleUse(cb); err != nil {
		return wrap(err, "submit build")
	}
	return nil
}

// RecordBottomLevel records the bottom-level builds according to the scratch policy.
func (b *Builder) RecordBottomLevel(cb gpu.CommandBuffer) {
	if b.policy == ScratchSum {
		builds := make([]gpu.AccelBuild, len(b.bottom))
		for i, s := range b.bottom {
			builds[i] = b.buildInfo(s, gpu.AccelBottomLevel)
		}
		cb.BuildAccel(builds)
		return
	}
	for i, s := range b.bottom {
		if i > 0 {
			b.scratchBarrier(cb)
		}
		cb.BuildAccel([]gpu.AccelBuild{b.buildInfo(s, gpu.AccelBottomLevel)})
	}
}

func (b *Builder) recordTopLevel(cb gpu.CommandBuffer) {
	b.instanceB.InsertBarrier(cb, gpu.PipelineStageHost, gpu.PipelineStageAccelBuild, gpu.AccessHostWrite, gpu.AccessAccelRead)
	cb.BuildAccel([]gpu.AccelBuild{b.buildInfo(b.top, gpu.AccelTopLevel)})
	b.storage.InsertBarrier(cb, gpu.PipelineStageAccelBuild, gpu.PipelineStageRayTracing, gpu.AccessAccelWrite, gpu.AccessAccelRead)
}

// rebuildBarrier orders the traces of frames still in flight and the previous
// top-level build before a rebuild overwrites the structure and its scratch.
func (b *Builder) rebuildBarrier(cb gpu.CommandBuffer) {
	b.storage.InsertBarrier(cb, gpu.PipelineStageRayTracing, gpu.PipelineStageAccelBuild,
		gpu.AccessAccelRead, gpu.AccessAccelWrite)
	b.scratchBarrier(cb)
}

// UpdateInstances rewrites the whole instance buffer from transforms and records
// a full top-level rebuild into cb. Unchanged transforms record nothing. Only one
// rebuild is recorded per frame.
func (b *Builder) UpdateInstances(cb gpu.CommandBuffer, frame uint64, transforms [][16]float32) (bool, error) {
	if len(transforms) != len(b.nodes) {
		return false, wrap(fmt.Errorf("got %d transforms for %d instances", len(transforms), len(b.nodes)), "update")
	}
	if b.rebuilt && b.lastRebuildFrame == frame {
		return false, nil
	}
	encoded := EncodeInstances(b.makeInstances(transforms))
	if bytes.Equal(encoded, b.instances) {
		return false, nil
	}
	if err := b.instanceB.Write(0, encoded); err != nil {
		return false, wrap(err, "instance upload")
	}
	b.instances = encoded
	b.rebuildBarrier(cb)
	b.recordTopLevel(cb)
	b.rebuilt, b.lastRebuildFrame = true, frame
	return true, nil
}

// Instances decodes the live instance buffer.
func (b *Builder) Instances() ([]Instance, error) {
	data, err := b.instanceB.Read(0, uint64(len(b.nodes))*InstanceSize)
	if err != nil {
		return nil, err
	}
	return DecodeInstances(data)
}

func (b *Builder) TopLevel() gpu.AccelID { return b.top.handle }

// BottomLevel returns the structure of model i.
func (b *Builder) BottomLevel(i int) gpu.AccelID { return b.bottom[i].handle }

func (b *Builder) BottomLevelCount() int { return len(b.bottom) }

// ScratchSize is the size of the shared scratch buffer.
func (b *Builder) ScratchSize() uint64 { return b.scratchSize }

func (b *Builder) Policy() ScratchPolicy { return b.policy }
