// Package scene holds the geometry the renderer traces: models, the nodes
// instancing them, and the flattened arrays uploaded to the device.
package scene

import (
	"github.com/tigrazone/gkNextRenderer/engine/math"
)

// MaterialModel selects the scattering function of a material.
type MaterialModel uint32

const (
	Lambertian MaterialModel = iota
	Metallic
	Dielectric
	Isotropic
	DiffuseLight
)

// Vertex is the device vertex layout, 36 bytes tightly packed.
type Vertex struct {
	Position      math.Vec3
	Normal        math.Vec3
	TexCoord      math.Vec2
	MaterialIndex int32
}

// VertexStride is the size of one encoded vertex.
const VertexStride = 36

// Material is the device material layout, 32 bytes.
type Material struct {
	Diffuse          math.Vec4
	DiffuseTextureID int32
	Fuzziness        float32
	RefractionIndex  float32
	Model            MaterialModel
}

func NewLambertian(diffuse math.Vec3) Material {
	return Material{Diffuse: diffuse.ToVec4(1), DiffuseTextureID: -1, Model: Lambertian}
}

func NewMetallic(diffuse math.Vec3, fuzziness float32) Material {
	return Material{Diffuse: diffuse.ToVec4(1), DiffuseTextureID: -1, Fuzziness: fuzziness, Model: Metallic}
}

func NewDielectric(refractionIndex, fuzziness float32) Material {
	return Material{Diffuse: math.NewVec4(0.7, 0.7, 1, 1), DiffuseTextureID: -1, Fuzziness: fuzziness,
		RefractionIndex: refractionIndex, Model: Dielectric}
}

func NewDiffuseLight(color math.Vec3) Material {
	return Material{Diffuse: color.ToVec4(1), DiffuseTextureID: -1, Model: DiffuseLight}
}

// Light is an area light spanned by three corners of a parallelogram.
// NormalArea carries the surface normal in xyz and the area in w.
type Light struct {
	P0, P1, P3 math.Vec4
	NormalArea math.Vec4
}

// Sphere is the only procedural primitive.
type Sphere struct {
	Center math.Vec3
	Radius float32
}

// BoundingBox returns the corners of the axis-aligned box around s.
func (s Sphere) BoundingBox() (math.Vec3, math.Vec3) {
	r := math.NewVec3(s.Radius, s.Radius, s.Radius)
	return s.Center.Sub(r), s.Center.Add(r)
}

// Model is one mesh with its materials. Vertex material indices are local to
// the model until the scene is flattened.
type Model struct {
	Vertices  []Vertex
	Indices   []uint32
	Materials []Material
	Lights    []Light
	Sphere    *Sphere
}

// Procedural reports whether the model is intersected as a sphere.
func (m *Model) Procedural() bool {
	return m.Sphere != nil
}

// SetMaterial replaces every material of the model with a single one.
func (m *Model) SetMaterial(material Material) {
	m.Materials = []Material{material}
	for i := range m.Vertices {
		m.Vertices[i].MaterialIndex = 0
	}
}

// Node places a model in the world.
type Node struct {
	Transform math.Mat4
	Model     int
}

func NewNode(transform math.Mat4, model int) Node {
	return Node{Transform: transform, Model: model}
}

// NewBox builds an axis-aligned box between p0 and p1 with flat normals.
func NewBox(p0, p1 math.Vec3, material Material) Model {
	faces := []struct {
		normal  math.Vec3
		corners [4]math.Vec3
	}{
		{math.NewVec3(-1, 0, 0), [4]math.Vec3{{p0.X, p0.Y, p0.Z}, {p0.X, p0.Y, p1.Z}, {p0.X, p1.Y, p1.Z}, {p0.X, p1.Y, p0.Z}}},
		{math.NewVec3(1, 0, 0), [4]math.Vec3{{p1.X, p0.Y, p1.Z}, {p1.X, p0.Y, p0.Z}, {p1.X, p1.Y, p0.Z}, {p1.X, p1.Y, p1.Z}}},
		{math.NewVec3(0, 0, -1), [4]math.Vec3{{p1.X, p0.Y, p0.Z}, {p0.X, p0.Y, p0.Z}, {p0.X, p1.Y, p0.Z}, {p1.X, p1.Y, p0.Z}}},
		{math.NewVec3(0, 0, 1), [4]math.Vec3{{p0.X, p0.Y, p1.Z}, {p1.X, p0.Y, p1.Z}, {p1.X, p1.Y, p1.Z}, {p0.X, p1.Y, p1.Z}}},
		{math.NewVec3(0, -1, 0), [4]math.Vec3{{p0.X, p0.Y, p0.Z}, {p1.X, p0.Y, p0.Z}, {p1.X, p0.Y, p1.Z}, {p0.X, p0.Y, p1.Z}}},
		{math.NewVec3(0, 1, 0), [4]math.Vec3{{p1.X, p1.Y, p0.Z}, {p0.X, p1.Y, p0.Z}, {p0.X, p1.Y, p1.Z}, {p1.X, p1.Y, p1.Z}}},
	}
	m := Model{Materials: []Material{material}}
	for _, f := range faces {
		m.addQuad(f.corners, f.normal, 0)
	}
	return m
}

// addQuad appends two triangles wound c0 c1 c2, c0 c2 c3.
func (m *Model) addQuad(c [4]math.Vec3, normal math.Vec3, material int32) {
	base := uint32(len(m.Vertices))
	uvs := [4]math.Vec2{{X: 0, Y: 1}, {X: 1, Y: 1}, {X: 1, Y: 0}, {X: 0, Y: 0}}
	for i := range c {
		m.Vertices = append(m.Vertices, Vertex{Position: c[i], Normal: normal, TexCoord: uvs[i], MaterialIndex: material})
	}
	m.Indices = append(m.Indices, base, base+1, base+2, base, base+2, base+3)
}

// NewQuad builds a single quad facing dir. Emissive materials also register
// an area light.
func NewQuad(p0, p1, p2, p3, dir math.Vec3, material Material) Model {
	m := Model{Materials: []Material{material}}
	m.addQuad([4]math.Vec3{p0, p1, p2, p3}, dir.Normalize(), 0)
	if material.Model == DiffuseLight {
		m.Lights = append(m.Lights, quadLight(p0, p1, p3, dir))
	}
	return m
}

func quadLight(p0, p1, p3, dir math.Vec3) Light {
	area := p1.Sub(p0).Cross(p3.Sub(p0)).Length()
	return Light{P0: p0.ToVec4(1), P1: p1.ToVec4(1), P3: p3.ToVec4(1), NormalArea: dir.Normalize().ToVec4(area)}
}

const (
	sphereSlices = 32
	sphereStacks = 16
)

// NewSphere tessellates a UV sphere. A procedural sphere keeps the mesh for
// rasterized paths but is traced through its bounding box.
func NewSphere(center math.Vec3, radius float32, material Material, procedural bool) Model {
	m := Model{Materials: []Material{material}}
	for j := 0; j <= sphereStacks; j++ {
		v := float32(j) / sphereStacks
		phi := v * math.K_PI
		for i := 0; i <= sphereSlices; i++ {
			u := float32(i) / sphereSlices
			theta := u * 2 * math.K_PI
			n := math.NewVec3(
				math.Sin(theta)*math.Sin(phi),
				math.Cos(phi),
				math.Cos(theta)*math.Sin(phi),
			)
			m.Vertices = append(m.Vertices, Vertex{
				Position: center.Add(n.MulScalar(radius)),
				Normal:   n,
				TexCoord: math.NewVec2(u, v),
			})
		}
	}
	for j := uint32(0); j < sphereStacks; j++ {
		for i := uint32(0); i < sphereSlices; i++ {
			a := j*(sphereSlices+1) + i
			b := a + sphereSlices + 1
			m.Indices = append(m.Indices, a, b, a+1, b, b+1, a+1)
		}
	}
	if procedural {
		m.Sphere = &Sphere{Center: center, Radius: radius}
	}
	return m
}

// NewCornellBox builds the five walls of a box of side scale, open towards +Z,
// with a square light in the ceiling.
func NewCornellBox(scale float32) Model {
	const (
		white int32 = iota
		red
		green
		light
	)
	s := scale
	x0, x1 := -s/2, s/2
	y0, y1 := float32(0), s
	z0, z1 := -s/2, s/2

	m := Model{Materials: []Material{
		NewLambertian(math.NewVec3(0.73, 0.73, 0.73)),
		NewLambertian(math.NewVec3(0.65, 0.05, 0.05)),
		NewLambertian(math.NewVec3(0.12, 0.45, 0.15)),
		NewDiffuseLight(math.NewVec3(15, 15, 15)),
	}}
	// left, right
	m.addQuad([4]math.Vec3{{x0, y0, z1}, {x0, y0, z0}, {x0, y1, z0}, {x0, y1, z1}}, math.NewVec3(1, 0, 0), red)
	m.addQuad([4]math.Vec3{{x1, y0, z0}, {x1, y0, z1}, {x1, y1, z1}, {x1, y1, z0}}, math.NewVec3(-1, 0, 0), green)
	// back, floor, ceiling
	m.addQuad([4]math.Vec3{{x0, y0, z0}, {x1, y0, z0}, {x1, y1, z0}, {x0, y1, z0}}, math.NewVec3(0, 0, 1), white)
	m.addQuad([4]math.Vec3{{x0, y0, z1}, {x1, y0, z1}, {x1, y0, z0}, {x0, y0, z0}}, math.NewVec3(0, 1, 0), white)
	m.addQuad([4]math.Vec3{{x0, y1, z0}, {x1, y1, z0}, {x1, y1, z1}, {x0, y1, z1}}, math.NewVec3(0, -1, 0), white)

	lx, lz := s*0.117, s*0.095
	ly := y1 - 1
	p0, p1 := math.NewVec3(-lx, ly, -lz), math.NewVec3(lx, ly, -lz)
	p2, p3 := math.NewVec3(lx, ly, lz), math.NewVec3(-lx, ly, lz)
	down := math.NewVec3(0, -1, 0)
	m.addQuad([4]math.Vec3{p0, p1, p2, p3}, down, light)
	m.Lights = append(m.Lights, quadLight(p0, p1, p3, down))
	return m
}
