package accel

import (
	"errors"
	"testing"

	"github.com/tigrazone/gkNextRenderer/engine/core"
	"github.com/tigrazone/gkNextRenderer/engine/renderer/gpu"
	"github.com/tigrazone/gkNextRenderer/engine/renderer/noop"
	"github.com/tigrazone/gkNextRenderer/engine/renderer/resource"
)

func identity() [16]float32 {
	return [16]float32{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1}
}

func translation(x, y, z float32) [16]float32 {
	m := identity()
	m[12], m[13], m[14] = x, y, z
	return m
}

func newDevice(t *testing.T) *noop.Device {
	t.Helper()
	dev, err := noop.NewInstance(gpu.Extent2D{Width: 8, Height: 8}).OpenDevice(0, gpu.OpenOptions{RayTracing: true})
	if err != nil {
		t.Fatalf("open device: %v", err)
	}
	return dev
}

func geometry(models int) Geometry {
	g := Geometry{VertexAddress: 0x1000, VertexStride: 48, IndexAddress: 0x8000, AABBAddress: 0x9000, AABBStride: 24}
	for i := 0; i < models; i++ {
		g.Models = append(g.Models, Model{VertexOffset: uint32(i * 24), VertexCount: 24, IndexOffset: uint32(i * 36), IndexCount: 36})
	}
	return g
}

// scratch needs: model i needs (i+1)*1000 bytes, the top level 300 bytes
func syntheticSizes(kind gpu.AccelKind, geometries []gpu.AccelGeometry) gpu.AccelBuildSizes {
	if kind == gpu.AccelTopLevel {
		return gpu.AccelBuildSizes{AccelerationStructureSize: 512, BuildScratchSize: 300}
	}
	i := uint64(geometries[0].FirstVertex / 24)
	return gpu.AccelBuildSizes{AccelerationStructureSize: 2048, BuildScratchSize: (i + 1) * 1000}
}

func TestScratchPolicies(t *testing.T) {
	type spec struct {
		policy ScratchPolicy
		models int
		exp    uint64
	}
	specs := []spec{
		// 1000 and 2000 rounded up to 256, plus 300
		{ScratchSum, 2, 1024 + 2048 + 512},
		{ScratchSum, 4, 1024 + 2048 + 3072 + 4096 + 512},
		{ScratchMax, 2, 2000},
		{ScratchMax, 4, 4000},
		{ScratchMax, 1, 1000},
	}

	for index, s := range specs {
		dev := newDevice(t)
		dev.AccelSizes = syntheticSizes
		arena := resource.NewArena("accel")
		nodes := make([]Node, s.models)
		for i := range nodes {
			nodes[i] = Node{Transform: identity(), Model: uint32(i)}
		}
		b, err := NewBuilder(dev, arena, geometry(s.models), nodes, s.policy)
		if err != nil {
			t.Fatalf("[spec %d] new builder: %v", index, err)
		}
		if b.ScratchSize() != s.exp {
			t.Fatalf("[spec %d] expected scratch of %d bytes with policy %s; got %d", index, s.exp, s.policy, b.ScratchSize())
		}
		if err := b.Build(); err != nil {
			t.Fatalf("[spec %d] build: %v", index, err)
		}
		for i := 0; i < s.models; i++ {
			if dev.AccelBuildCount(b.BottomLevel(i)) != 1 {
				t.Fatalf("[spec %d] expected model %d built once", index, i)
			}
		}
		if dev.AccelBuildCount(b.TopLevel()) != 1 {
			t.Fatalf("[spec %d] expected the top level built once", index)
		}
		arena.Release()
	}
}

func TestSumPolicyUsesDisjointScratch(t *testing.T) {
	dev := newDevice(t)
	dev.AccelSizes = syntheticSizes
	arena := resource.NewArena("accel")
	defer arena.Release()
	b, err := NewBuilder(dev, arena, geometry(3), nil, ScratchSum)
	if err != nil {
		t.Fatalf("new builder: %v", err)
	}
	cb, _ := dev.BeginSingleUse()
	b.RecordBottomLevel(cb)
	commands := cb.(*noop.CommandBuffer).Commands()
	if len(commands) != 1 || len(commands[0].Builds) != 3 {
		t.Fatalf("expected all bottom-level builds in one command; got %d commands", len(commands))
	}
	builds := commands[0].Builds
	for i := 1; i < len(builds); i++ {
		prevEnd := builds[i-1].ScratchAddress + uint64(i)*1000
		if builds[i].ScratchAddress < prevEnd {
			t.Fatalf("scratch range %d overlaps the previous build", i)
		}
	}
}

func TestMaxPolicySerialisesBuilds(t *testing.T) {
	dev := newDevice(t)
	dev.AccelSizes = syntheticSizes
	arena := resource.NewArena("accel")
	defer arena.Release()
	b, err := NewBuilder(dev, arena, geometry(3), nil, ScratchMax)
	if err != nil {
		t.Fatalf("new builder: %v", err)
	}
	cb, _ := dev.BeginSingleUse()
	b.RecordBottomLevel(cb)
	var ops []noop.Op
	for _, c := range cb.(*noop.CommandBuffer).Commands() {
		ops = append(ops, c.Op)
	}
	exp := []noop.Op{noop.OpBuildAccel, noop.OpBarrier, noop.OpBuildAccel, noop.OpBarrier, noop.OpBuildAccel}
	if len(ops) != len(exp) {
		t.Fatalf("expected %v; got %v", exp, ops)
	}
	for i := range exp {
		if ops[i] != exp[i] {
			t.Fatalf("expected %v; got %v", exp, ops)
		}
	}
}

func TestInstancesRoundTrip(t *testing.T) {
	dev := newDevice(t)
	arena := resource.NewArena("accel")
	defer arena.Release()
	geom := geometry(2)
	geom.Models = append(geom.Models, Model{Procedural: true, AABBIndex: 2})
	nodes := []Node{
		{Transform: translation(1, 2, 3), Model: 0},
		{Transform: translation(-4, 0.5, 9), Model: 1},
		{Transform: translation(0, 0, -1), Model: 2},
	}
	b, err := NewBuilder(dev, arena, geom, nodes, ScratchSum)
	if err != nil {
		t.Fatalf("new builder: %v", err)
	}
	if err := b.Build(); err != nil {
		t.Fatalf("build: %v", err)
	}
	got, err := b.Instances()
	if err != nil {
		t.Fatalf("instances: %v", err)
	}
	for i, n := range nodes {
		exp := TransformFromMat4(n.Transform)
		if got[i].Transform != exp {
			t.Fatalf("[%d] expected transform %v; got %v", i, exp, got[i].Transform)
		}
		if got[i].CustomIndex != n.Model || got[i].Mask != 0xFF {
			t.Fatalf("[%d] unexpected index/mask %d/%#x", i, got[i].CustomIndex, got[i].Mask)
		}
		if got[i].Reference != dev.AccelAddress(b.BottomLevel(int(n.Model))) {
			t.Fatalf("[%d] expected reference to bottom level %d", i, n.Model)
		}
	}
	if got[0].Transform[3] != 1 || got[0].Transform[7] != 2 || got[0].Transform[11] != 3 {
		t.Fatalf("expected translation in the last column; got %v", got[0].Transform)
	}
	if got[0].SBTOffset != TriangleHitOffset || got[2].SBTOffset != ProceduralHitOffset {
		t.Fatalf("expected procedural instances to use the second hit group")
	}
}

func TestUpdateInstancesRebuildsOncePerFrame(t *testing.T) {
	dev := newDevice(t)
	arena := resource.NewArena("accel")
	defer arena.Release()
	nodes := []Node{{Transform: identity(), Model: 0}}
	b, err := NewBuilder(dev, arena, geometry(1), nodes, ScratchSum)
	if err != nil {
		t.Fatalf("new builder: %v", err)
	}
	if err := b.Build(); err != nil {
		t.Fatalf("build: %v", err)
	}

	cb, _ := dev.BeginSingleUse()
	rebuilt, err := b.UpdateInstances(cb, 1, [][16]float32{identity()})
	if err != nil || rebuilt {
		t.Fatalf("expected unchanged transforms to skip the rebuild; got %v, %v", rebuilt, err)
	}
	moved := translation(0, 5, 0)
	if rebuilt, err = b.UpdateInstances(cb, 1, [][16]float32{moved}); err != nil || !rebuilt {
		t.Fatalf("expected a rebuild; got %v, %v", rebuilt, err)
	}
	if rebuilt, _ = b.UpdateInstances(cb, 1, [][16]float32{translation(0, 6, 0)}); rebuilt {
		t.Fatalf("expected at most one rebuild per frame")
	}
	if err := dev.EndSingleUse(cb); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if dev.AccelBuildCount(b.TopLevel()) != 2 {
		t.Fatalf("expected two top-level builds; got %d", dev.AccelBuildCount(b.TopLevel()))
	}
	got, _ := b.Instances()
	if got[0].Transform != TransformFromMat4(moved) {
		t.Fatalf("expected the moved transform; got %v", got[0].Transform)
	}

	if _, err := b.UpdateInstances(cb, 2, nil); !errors.Is(err, core.ErrAccelBuild) {
		t.Fatalf("expected a count mismatch error; got %v", err)
	}
}

func TestBuilderErrors(t *testing.T) {
	dev := newDevice(t)
	arena := resource.NewArena("accel")
	defer arena.Release()
	if _, err := NewBuilder(dev, arena, Geometry{}, nil, ScratchSum); !errors.Is(err, core.ErrAccelBuild) {
		t.Fatalf("expected an error without models; got %v", err)
	}
	if _, err := NewBuilder(dev, arena, geometry(1), []Node{{Model: 4}}, ScratchSum); !errors.Is(err, core.ErrAccelBuild) {
		t.Fatalf("expected an error for a missing model; got %v", err)
	}

	plain, err := noop.NewInstance(gpu.Extent2D{Width: 8, Height: 8}).Open(0, gpu.OpenOptions{})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := NewBuilder(plain, arena, geometry(1), nil, ScratchSum); !errors.Is(err, gpu.ErrUnsupported) {
		t.Fatalf("expected unsupported size query; got %v", err)
	}
}

func TestInstanceEncoding(t *testing.T) {
	inst := Instance{
		Transform:   [12]float32{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12},
		CustomIndex: 0xABCDEF,
		Mask:        0x7F,
		SBTOffset:   1,
		Flags:       InstanceFlagForceOpaque,
		Reference:   0xDEADBEEF00,
	}
	data := EncodeInstances([]Instance{inst, inst})
	if len(data) != 2*InstanceSize {
		t.Fatalf("expected %d bytes; got %d", 2*InstanceSize, len(data))
	}
	got, err := DecodeInstances(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got[1] != inst {
		t.Fatalf("expected %+v; got %+v", inst, got[1])
	}
	if _, err := DecodeInstances(data[:70]); err == nil {
		t.Fatalf("expected an error for a partial instance")
	}
}

func TestRebuildWaitsForTraces(t *testing.T) {
	dev := newDevice(t)
	arena := resource.NewArena("accel")
	defer arena.Release()
	b, err := NewBuilder(dev, arena, geometry(1), []Node{{Transform: identity(), Model: 0}}, ScratchSum)
	if err != nil {
		t.Fatalf("new builder: %v", err)
	}
	if err := b.Build(); err != nil {
		t.Fatalf("build: %v", err)
	}
	cb, _ := dev.BeginSingleUse()
	if rebuilt, err := b.UpdateInstances(cb, 1, [][16]float32{translation(1, 0, 0)}); err != nil || !rebuilt {
		t.Fatalf("expected a rebuild; got %v, %v", rebuilt, err)
	}

	waited := false
	for _, c := range cb.(*noop.CommandBuffer).Commands() {
		if c.Op == noop.OpBuildAccel {
			break
		}
		if c.Op != noop.OpBarrier || c.SrcStage&gpu.PipelineStageRayTracing == 0 || c.DstStage&gpu.PipelineStageAccelBuild == 0 {
			continue
		}
		for _, bb := range c.Buffers {
			if bb.Buffer == b.storage.Handle && bb.DstAccess&gpu.AccessAccelWrite != 0 {
				waited = true
			}
		}
	}
	if !waited {
		t.Fatalf("expected the structure storage to wait for ray tracing reads before the rebuild")
	}
}
