package scene

import (
	"encoding/binary"
	"errors"
	stdmath "math"
	"testing"

	"github.com/tigrazone/gkNextRenderer/engine/core"
	"github.com/tigrazone/gkNextRenderer/engine/math"
	"github.com/tigrazone/gkNextRenderer/engine/renderer/gpu"
	"github.com/tigrazone/gkNextRenderer/engine/renderer/noop"
	"github.com/tigrazone/gkNextRenderer/engine/renderer/resource"
)

func TestFlattenOffsets(t *testing.T) {
	box := NewBox(math.NewVec3Zero(), math.NewVec3One(), NewLambertian(math.NewVec3One()))
	sphere := NewSphere(math.NewVec3(1, 2, 3), 0.5, NewMetallic(math.NewVec3One(), 0.1), true)
	cornell := NewCornellBox(10)
	models := []Model{box, sphere, cornell}
	nodes := []Node{NewNode(math.NewMat4Identity(), 2), NewNode(math.NewMat4Identity(), 0), NewNode(math.NewMat4Identity(), 2)}

	s, err := Flatten(models, nodes, CameraState{})
	if err != nil {
		t.Fatalf("flatten: %v", err)
	}
	type spec struct {
		index, vertex uint32
	}
	specs := []spec{
		{0, 0},
		{uint32(len(box.Indices)), uint32(len(box.Vertices))},
		{uint32(len(box.Indices) + len(sphere.Indices)), uint32(len(box.Vertices) + len(sphere.Vertices))},
	}
	for index, exp := range specs {
		got := s.Offsets[index]
		if got.Index != exp.index || got.Vertex != exp.vertex {
			t.Fatalf("[spec %d] expected offsets (%d, %d); got %+v", index, exp.index, exp.vertex, got)
		}
	}
	if len(s.Indices) != len(box.Indices)+len(sphere.Indices)+len(cornell.Indices) {
		t.Fatalf("unexpected index count %d", len(s.Indices))
	}
	if s.Indices[len(box.Indices)] != sphere.Indices[0] {
		t.Fatalf("indices must stay local to their model")
	}
}

func TestFlattenProceduralSlots(t *testing.T) {
	models := []Model{
		NewBox(math.NewVec3Zero(), math.NewVec3One(), NewLambertian(math.NewVec3One())),
		NewSphere(math.NewVec3(1, 2, 3), 0.5, NewLambertian(math.NewVec3One()), true),
		NewSphere(math.NewVec3(0, 0, 0), 1, NewLambertian(math.NewVec3One()), false),
	}
	s, err := Flatten(models, nil, CameraState{})
	if err != nil {
		t.Fatalf("flatten: %v", err)
	}
	if len(s.AABBs) != 3 || len(s.Procedurals) != 3 {
		t.Fatalf("expected one slot per model; got %d aabbs and %d procedurals", len(s.AABBs), len(s.Procedurals))
	}
	if s.AABBs[0] != (AABB{}) || s.Procedurals[0] != (math.Vec4{}) || s.AABBs[2] != (AABB{}) {
		t.Fatalf("expected zero slots for triangle models")
	}
	if s.AABBs[1].Min != math.NewVec3(0.5, 1.5, 2.5) || s.AABBs[1].Max != math.NewVec3(1.5, 2.5, 3.5) {
		t.Fatalf("unexpected bounding box %+v", s.AABBs[1])
	}
	if s.Procedurals[1] != math.NewVec4(1, 2, 3, 0.5) {
		t.Fatalf("expected center and radius; got %+v", s.Procedurals[1])
	}
	if !s.HasProcedurals() {
		t.Fatalf("expected the scene to report procedurals")
	}
}

func TestFlattenSortsNodes(t *testing.T) {
	models := []Model{
		NewBox(math.NewVec3Zero(), math.NewVec3One(), NewLambertian(math.NewVec3One())),
		NewBox(math.NewVec3Zero(), math.NewVec3One(), NewLambertian(math.NewVec3One())),
	}
	marker := func(x float32) math.Mat4 { return math.NewMat4Translation(math.NewVec3(x, 0, 0)) }
	nodes := []Node{NewNode(marker(1), 1), NewNode(marker(2), 0), NewNode(marker(3), 1), NewNode(marker(4), 0)}
	s, err := Flatten(models, nodes, CameraState{})
	if err != nil {
		t.Fatalf("flatten: %v", err)
	}
	want := []float32{2, 4, 1, 3}
	for i, n := range s.Nodes {
		if n.Transform.Data[12] != want[i] {
			t.Fatalf("node %d: expected marker %v; got %v", i, want[i], n.Transform.Data[12])
		}
	}
	if s.InstanceCounts[0] != 2 || s.InstanceCounts[1] != 2 {
		t.Fatalf("unexpected instance counts %v", s.InstanceCounts)
	}
	if nodes[0].Model != 1 {
		t.Fatalf("flatten must not reorder the caller's nodes")
	}

	if _, err := Flatten(models, []Node{NewNode(marker(0), 2)}, CameraState{}); !errors.Is(err, ErrModelIndexRange) {
		t.Fatalf("expected ErrModelIndexRange; got %v", err)
	}
}

func TestFlattenRebasesMaterials(t *testing.T) {
	cornell := NewCornellBox(10)
	box := NewBox(math.NewVec3Zero(), math.NewVec3One(), NewLambertian(math.NewVec3One()))
	s, err := Flatten([]Model{cornell, box}, nil, CameraState{})
	if err != nil {
		t.Fatalf("flatten: %v", err)
	}
	if len(s.Materials) != 5 {
		t.Fatalf("expected 5 materials; got %d", len(s.Materials))
	}
	last := s.Vertices[len(s.Vertices)-1]
	if last.MaterialIndex != 4 {
		t.Fatalf("expected the box to use material 4; got %d", last.MaterialIndex)
	}
	if len(s.Lights) != 1 || s.Lights[0].NormalArea.Y != -1 {
		t.Fatalf("expected the ceiling light facing down; got %+v", s.Lights)
	}
}

func TestBuiltInScenes(t *testing.T) {
	type spec struct {
		name  string
		nodes int
		sky   bool
	}
	specs := []spec{
		{"Cube And Spheres", 4, true},
		{"Ray Tracing In One Weekend", -1, true},
		{"Cornell Box", 3, false},
	}
	for index, exp := range specs {
		s, err := Load(index)
		if err != nil {
			t.Fatalf("[spec %d] load: %v", index, err)
		}
		if All[index].Name != exp.name {
			t.Fatalf("[spec %d] expected %q; got %q", index, exp.name, All[index].Name)
		}
		if exp.nodes >= 0 && len(s.Nodes) != exp.nodes {
			t.Fatalf("[spec %d] expected %d nodes; got %d", index, exp.nodes, len(s.Nodes))
		}
		if s.Camera.HasSky != exp.sky {
			t.Fatalf("[spec %d] unexpected sky flag", index)
		}
	}
	if _, err := Load(len(All)); !errors.Is(err, core.ErrSceneIndexRange) {
		t.Fatalf("expected ErrSceneIndexRange; got %v", err)
	}
}

func TestOneWeekendIsDeterministic(t *testing.T) {
	a, _, _ := RayTracingInOneWeekend()
	b, _, _ := RayTracingInOneWeekend()
	if len(a) != len(b) || len(a) < 4 {
		t.Fatalf("unexpected model counts %d and %d", len(a), len(b))
	}
	for i := range a {
		if a[i].Materials[0] != b[i].Materials[0] {
			t.Fatalf("model %d differs between builds", i)
		}
		if i > 0 && !a[i].Procedural() {
			t.Fatalf("model %d: expected a procedural sphere", i)
		}
	}
	if a[0].Procedural() {
		t.Fatalf("expected the ground to be a triangle box")
	}
}

func TestCamera(t *testing.T) {
	c := NewCamera(CameraState{Eye: math.NewVec3(0, 0, 5), Target: math.NewVec3Zero(), FieldOfView: 90})
	if !c.Forward().Compare(math.NewVec3(0, 0, -1), 1e-5) {
		t.Fatalf("expected to look down -Z; got %v", c.Forward())
	}
	if p := math.NewVec3Zero().Transform(c.View()); !p.Compare(math.NewVec3(0, 0, -5), 1e-4) {
		t.Fatalf("expected the target 5 units ahead; got %v", p)
	}
	if !c.Moved() || c.Moved() {
		t.Fatalf("expected a single moved report after reset")
	}
	c.MoveForward(1)
	if !c.Moved() || !c.Position.Compare(math.NewVec3(0, 0, 4), 1e-5) {
		t.Fatalf("expected to move forward; got %v", c.Position)
	}
	c.Rotate(0, 10)
	if c.Pitch > pitchLimit {
		t.Fatalf("pitch was not clamped: %v", c.Pitch)
	}
	proj := c.Projection(1)
	if proj.Data[5] >= 0 {
		t.Fatalf("expected a flipped Y axis")
	}
}

func TestUpload(t *testing.T) {
	dev, err := noop.NewInstance(gpu.Extent2D{Width: 8, Height: 8}).OpenDevice(0, gpu.OpenOptions{RayTracing: true})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	arena := resource.NewArena("scene")
	defer arena.Release()

	models, nodes, camera := CornellBox()
	s, err := Flatten(models, nodes, camera)
	if err != nil {
		t.Fatalf("flatten: %v", err)
	}
	b, err := s.Upload(dev, arena)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if b.Vertices.Size != uint64(len(s.Vertices)*VertexStride) {
		t.Fatalf("expected %d vertex bytes; got %d", len(s.Vertices)*VertexStride, b.Vertices.Size)
	}
	if b.Vertices.Address() == 0 || b.AABBs.Address() == 0 {
		t.Fatalf("expected geometry inputs to have device addresses")
	}
	raw, err := b.Offsets.Read(8, 8)
	if err != nil {
		t.Fatalf("read offsets: %v", err)
	}
	if binary.LittleEndian.Uint32(raw) != s.Offsets[1].Index || binary.LittleEndian.Uint32(raw[4:]) != s.Offsets[1].Vertex {
		t.Fatalf("offsets are not (index, vertex) pairs: %v", raw)
	}
	if b.Nodes.Size != uint64(len(s.Nodes)*144) {
		t.Fatalf("unexpected node buffer size %d", b.Nodes.Size)
	}

	before := s.Nodes[1].Transform.Data[12]
	s.Nodes[1].Transform = math.NewMat4Translation(math.NewVec3(1, 0, 0))
	if err := b.WriteNodes(s); err != nil {
		t.Fatalf("write nodes: %v", err)
	}
	raw, _ = b.Nodes.Read(144, 144)
	world := stdmath.Float32frombits(binary.LittleEndian.Uint32(raw[12*4:]))
	previous := stdmath.Float32frombits(binary.LittleEndian.Uint32(raw[64+12*4:]))
	if world != 1 || previous != before {
		t.Fatalf("expected world x 1 and previous x %v; got %v and %v", before, world, previous)
	}
}
