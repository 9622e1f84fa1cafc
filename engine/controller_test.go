package engine

import (
	"testing"

	"github.com/tigrazone/gkNextRenderer/engine/core"
	"github.com/tigrazone/gkNextRenderer/engine/math"
	"github.com/tigrazone/gkNextRenderer/engine/scene"
)

func near(a, b float32) bool {
	d := a - b
	return d < 1e-4 && d > -1e-4
}

func newTestController() (*CameraController, *core.Input) {
	camera := scene.NewCamera(scene.CameraState{
		Eye:          math.NewVec3(0, 0, 0),
		Target:       math.NewVec3(0, 0, -1),
		FieldOfView:  40,
		ControlSpeed: 5,
	})
	camera.Moved()
	return NewCameraController(camera), core.NewInput()
}

func TestCameraControllerMove(t *testing.T) {
	type spec struct {
		keys []core.KeyCode
		exp  math.Vec3
	}
	specs := []spec{
		{[]core.KeyCode{core.KEY_W}, math.NewVec3(0, 0, -5)},
		{[]core.KeyCode{core.KEY_S}, math.NewVec3(0, 0, 5)},
		{[]core.KeyCode{core.KEY_D}, math.NewVec3(5, 0, 0)},
		{[]core.KeyCode{core.KEY_A, core.KEY_LSHIFT}, math.NewVec3(-5, 5, 0)},
		{[]core.KeyCode{core.KEY_W, core.KEY_S}, math.NewVec3(0, 0, 0)},
	}
	for index, s := range specs {
		c, in := newTestController()
		for _, k := range s.keys {
			in.ProcessKey(k, true)
		}
		c.Update(in, 1)
		p := c.Camera.Position
		if !near(p.X, s.exp.X) || !near(p.Y, s.exp.Y) || !near(p.Z, s.exp.Z) {
			t.Fatalf("[spec %d] expected position %v; got %v", index, s.exp, p)
		}
	}
}

func TestCameraControllerIdle(t *testing.T) {
	c, in := newTestController()
	c.Update(in, 0.016)
	if c.Camera.Moved() {
		t.Fatalf("expected no camera change without input")
	}
}

func TestCameraControllerDrag(t *testing.T) {
	c, in := newTestController()
	in.ProcessMouseMove(100, 100)
	in.ProcessButton(core.BUTTON_RIGHT, true)
	c.Update(in, 0.016)
	if c.Camera.Moved() {
		t.Fatalf("expected the first drag frame to leave the camera alone")
	}
	in.Update()

	in.ProcessMouseMove(110, 95)
	c.Update(in, 0.016)
	if !c.Camera.Moved() {
		t.Fatalf("expected the drag to rotate the camera")
	}
	if !near(c.Camera.Yaw, -10*defaultSensitivity) || !near(c.Camera.Pitch, 5*defaultSensitivity) {
		t.Fatalf("expected yaw %v pitch %v; got %v %v", -10*defaultSensitivity, 5*defaultSensitivity, c.Camera.Yaw, c.Camera.Pitch)
	}
}
