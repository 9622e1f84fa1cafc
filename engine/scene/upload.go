package scene

import (
	"fmt"

	"github.com/tigrazone/gkNextRenderer/engine/math"
	"github.com/tigrazone/gkNextRenderer/engine/renderer/gpu"
	"github.com/tigrazone/gkNextRenderer/engine/renderer/resource"
)

// Buffers are the device copies of a flattened scene.
type Buffers struct {
	Vertices    *resource.Buffer
	Indices     *resource.Buffer
	Materials   *resource.Buffer
	Offsets     *resource.Buffer
	AABBs       *resource.Buffer
	Procedurals *resource.Buffer
	Lights      *resource.Buffer
	Nodes       *resource.Buffer

	previous []math.Mat4
}

// Upload creates the eight scene buffers in arena. Geometry inputs of the
// acceleration structures also get device addresses.
func (s *Scene) Upload(device gpu.Device, arena *resource.Arena) (*Buffers, error) {
	const (
		storage = gpu.BufferUsageStorage | gpu.BufferUsageTransferDst
		rtInput = gpu.BufferUsageAccelInput | gpu.BufferUsageDeviceAddress
	)
	out := &Buffers{}
	uploads := []struct {
		dst   **resource.Buffer
		label string
		usage gpu.BufferUsage
		data  interface{}
	}{
		{&out.Vertices, "vertices", storage | rtInput, s.Vertices},
		{&out.Indices, "indices", storage | rtInput, s.Indices},
		{&out.Materials, "materials", storage, s.Materials},
		{&out.Offsets, "offsets", storage, s.Offsets},
		{&out.AABBs, "aabbs", storage | rtInput, s.AABBs},
		{&out.Procedurals, "procedurals", storage, s.Procedurals},
		{&out.Lights, "lights", storage, s.Lights},
		{&out.Nodes, "nodes", storage, s.NodeProxies(nil)},
	}
	for _, u := range uploads {
		b, err := resource.NewBufferWithData(device, arena, u.label, u.usage, encode(u.data))
		if err != nil {
			return nil, fmt.Errorf("failed to upload scene %s: %w", u.label, err)
		}
		*u.dst = b
	}
	out.previous = s.worldTransforms()
	return out, nil
}

func (s *Scene) worldTransforms() []math.Mat4 {
	out := make([]math.Mat4, len(s.Nodes))
	for i, n := range s.Nodes {
		out[i] = n.Transform
	}
	return out
}

// WriteNodes refreshes the node records after the node transforms changed.
// The transforms written on the previous call become the motion history.
func (b *Buffers) WriteNodes(s *Scene) error {
	if err := b.Nodes.Write(0, encode(s.NodeProxies(b.previous))); err != nil {
		return err
	}
	b.previous = s.worldTransforms()
	return nil
}
