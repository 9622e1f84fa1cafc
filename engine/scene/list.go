package scene

import (
	"golang.org/x/exp/rand"

	"github.com/tigrazone/gkNextRenderer/engine/core"
	"github.com/tigrazone/gkNextRenderer/engine/math"
)

// Builder produces the models and nodes of a built-in scene.
type Builder func() ([]Model, []Node, CameraState)

// Entry is one selectable scene.
type Entry struct {
	Name  string
	Build Builder
}

// All lists the built-in scenes in selection order.
var All = []Entry{
	{"Cube And Spheres", CubeAndSpheres},
	{"Ray Tracing In One Weekend", RayTracingInOneWeekend},
	{"Cornell Box", CornellBox},
}

// Names returns the names of the built-in scenes.
func Names() []string {
	out := make([]string, len(All))
	for i, e := range All {
		out[i] = e.Name
	}
	return out
}

// Load builds and flattens built-in scene index.
func Load(index int) (*Scene, error) {
	if index < 0 || index >= len(All) {
		return nil, core.ErrSceneIndexRange
	}
	e := All[index]
	models, nodes, camera := e.Build()
	s, err := Flatten(models, nodes, camera)
	if err != nil {
		return nil, err
	}
	core.LogInfo("scene %q: %d models, %d nodes, %d vertices, %d lights",
		e.Name, len(s.Models), len(s.Nodes), len(s.Vertices), len(s.Lights))
	return s, nil
}

func identity() math.Mat4 { return math.NewMat4Identity() }

func CubeAndSpheres() ([]Model, []Node, CameraState) {
	camera := CameraState{
		Eye: math.NewVec3(13, 2, 3), Target: math.NewVec3Zero(),
		FieldOfView: 20, FocusDistance: 1000, ControlSpeed: 5, GammaCorrection: true, HasSky: true,
	}
	models := []Model{
		NewBox(math.NewVec3(-50, -0.5, -50), math.NewVec3(50, 0, 50), NewLambertian(math.NewVec3(0.5, 0.5, 0.5))),
		NewBox(math.NewVec3(-1, 0, -1), math.NewVec3(1, 2, 1), NewLambertian(math.NewVec3(0.8, 0.3, 0.2))),
		NewSphere(math.NewVec3(0, 1, 3), 1, NewMetallic(math.NewVec3(0.9, 0.9, 0.9), 0.05), true),
		NewSphere(math.NewVec3(0, 1, -3), 1, NewDielectric(1.5, 0), true),
	}
	nodes := make([]Node, len(models))
	for i := range models {
		nodes[i] = NewNode(identity(), i)
	}
	return models, nodes, camera
}

func RayTracingInOneWeekend() ([]Model, []Node, CameraState) {
	camera := CameraState{
		Eye: math.NewVec3(13, 2, 3), Target: math.NewVec3Zero(),
		FieldOfView: 20, Aperture: 0.1, FocusDistance: 1000, ControlSpeed: 5, GammaCorrection: true, HasSky: true,
	}
	rng := rand.New(rand.NewSource(42))
	random := rng.Float32

	var models []Model
	var nodes []Node
	add := func(m Model) {
		models = append(models, m)
		nodes = append(nodes, NewNode(identity(), len(models)-1))
	}

	add(NewBox(math.NewVec3(-1000, -0.5, -1000), math.NewVec3(1000, 0, 1000), NewLambertian(math.NewVec3(0.4, 0.4, 0.4))))
	focus := math.NewVec3(4, 0.2, 0)
	for i := -11; i < 11; i++ {
		for j := -11; j < 11; j++ {
			chooseMat := random()
			cz := float32(j) + 0.9*random()
			cx := float32(i) + 0.9*random()
			center := math.NewVec3(cx, 0.2, cz)
			if center.Sub(focus).Length() <= 0.9 {
				continue
			}
			switch {
			case chooseMat < 0.8:
				b := random() * random()
				g := random() * random()
				r := random() * random()
				add(NewSphere(center, 0.2, NewLambertian(math.NewVec3(r, g, b)), true))
			case chooseMat < 0.95:
				fuzziness := 0.5 * random()
				b := 0.5 * (1 + random())
				g := 0.5 * (1 + random())
				r := 0.5 * (1 + random())
				add(NewSphere(center, 0.2, NewMetallic(math.NewVec3(r, g, b), fuzziness), true))
			default:
				add(NewSphere(center, 0.2, NewDielectric(1.45, 0.5*random()), true))
			}
		}
	}
	add(NewSphere(math.NewVec3(0, 1, 0), 1, NewDielectric(1.5, 0.5), true))
	add(NewSphere(math.NewVec3(-4, 1, 0), 1, NewLambertian(math.NewVec3(0.4, 0.2, 0.1)), true))
	add(NewSphere(math.NewVec3(4, 1, 0), 1, NewMetallic(math.NewVec3(0.7, 0.6, 0.5), 0.3), true))
	return models, nodes, camera
}

func CornellBox() ([]Model, []Node, CameraState) {
	camera := CameraState{
		Eye: math.NewVec3(0, 278, 1078), Target: math.NewVec3(0, 278, 0),
		FieldOfView: 40, FocusDistance: 778, ControlSpeed: 200, GammaCorrection: true,
	}
	white := NewLambertian(math.NewVec3(0.73, 0.73, 0.73))
	models := []Model{
		NewCornellBox(555),
		NewBox(math.NewVec3(0, 0, -165), math.NewVec3(165, 165, 0), white),
	}
	// Rotate about the box's own origin, then place it.
	short := math.NewMat4EulerY(math.DegToRad(-18)).Mul(math.NewMat4Translation(math.NewVec3(278-130-165, 0, 213)))
	tall := math.NewMat4Scale(math.NewVec3(1, 2, 1)).
		Mul(math.NewMat4EulerY(math.DegToRad(15))).
		Mul(math.NewMat4Translation(math.NewVec3(278-265-165, 0, 17)))
	nodes := []Node{
		NewNode(identity(), 0),
		NewNode(short, 1),
		NewNode(tall, 1),
	}
	return models, nodes, camera
}
