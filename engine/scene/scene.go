package scene

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"sort"

	"github.com/tigrazone/gkNextRenderer/engine/math"
)

var ErrModelIndexRange = errors.New("node references a model that does not exist")

// AABB is the device layout of one procedural bounding box, 24 bytes.
type AABB struct {
	Min math.Vec3
	Max math.Vec3
}

// Offsets locate a model inside the flattened index and vertex arrays.
type Offsets struct {
	Index  uint32
	Vertex uint32
}

// NodeProxy is the device layout of a node: world matrix, the matrix of the
// previous frame for motion vectors, and the model it instances.
type NodeProxy struct {
	World    math.Mat4
	Previous math.Mat4
	Model    uint32
	Instance uint32
	_        [2]uint32
}

// Scene is the flattened content of one scene, ready to upload.
//
// Vertices and indices of every model are concatenated; indices stay local to
// their model and are rebased in the shaders through Offsets. Every model owns
// one AABB and one procedural slot, zero for triangle models, so both arrays
// can be indexed by model. Nodes are sorted by model.
type Scene struct {
	Models      []Model
	Nodes       []Node
	Vertices    []Vertex
	Indices     []uint32
	Materials   []Material
	Lights      []Light
	Offsets     []Offsets
	AABBs       []AABB
	Procedurals []math.Vec4
	// InstanceCounts holds the number of nodes per model.
	InstanceCounts []uint32
	Camera         CameraState
}

// Flatten concatenates the models and sorts the nodes. Vertex material indices
// are rebased onto the global material array.
func Flatten(models []Model, nodes []Node, camera CameraState) (*Scene, error) {
	s := &Scene{
		Models:         models,
		Nodes:          append([]Node(nil), nodes...),
		Offsets:        make([]Offsets, len(models)),
		AABBs:          make([]AABB, len(models)),
		Procedurals:    make([]math.Vec4, len(models)),
		InstanceCounts: make([]uint32, len(models)),
		Camera:         camera,
	}
	for i := range models {
		m := &models[i]
		s.Offsets[i] = Offsets{Index: uint32(len(s.Indices)), Vertex: uint32(len(s.Vertices))}

		materialOffset := int32(len(s.Materials))
		for _, v := range m.Vertices {
			v.MaterialIndex += materialOffset
			s.Vertices = append(s.Vertices, v)
		}
		s.Indices = append(s.Indices, m.Indices...)
		s.Materials = append(s.Materials, m.Materials...)
		s.Lights = append(s.Lights, m.Lights...)

		if m.Sphere != nil {
			lo, hi := m.Sphere.BoundingBox()
			s.AABBs[i] = AABB{Min: lo, Max: hi}
			s.Procedurals[i] = m.Sphere.Center.ToVec4(m.Sphere.Radius)
		}
	}

	sort.SliceStable(s.Nodes, func(a, b int) bool { return s.Nodes[a].Model < s.Nodes[b].Model })
	for _, n := range s.Nodes {
		if n.Model < 0 || n.Model >= len(models) {
			return nil, fmt.Errorf("node model %d of %d: %w", n.Model, len(models), ErrModelIndexRange)
		}
		s.InstanceCounts[n.Model]++
	}
	return s, nil
}

// NodeProxies returns the device node records. previous holds last frame's
// world matrices and may be nil on the first frame.
func (s *Scene) NodeProxies(previous []math.Mat4) []NodeProxy {
	out := make([]NodeProxy, len(s.Nodes))
	for i, n := range s.Nodes {
		prev := n.Transform
		if i < len(previous) {
			prev = previous[i]
		}
		out[i] = NodeProxy{World: n.Transform, Previous: prev, Model: uint32(n.Model), Instance: uint32(i)}
	}
	return out
}

// HasProcedurals reports whether any model is traced as a sphere.
func (s *Scene) HasProcedurals() bool {
	for i := range s.Models {
		if s.Models[i].Procedural() {
			return true
		}
	}
	return false
}

// encode writes a slice of fixed-size records little-endian.
func encode(data interface{}) []byte {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, data); err != nil {
		panic(fmt.Sprintf("scene: encoding %T: %v", data, err))
	}
	return buf.Bytes()
}
