package engine

import (
	"github.com/tigrazone/gkNextRenderer/engine/core"
	"github.com/tigrazone/gkNextRenderer/engine/scene"
)

// defaultSensitivity is the camera rotation per cursor pixel, in radians.
const defaultSensitivity float32 = 0.004

// CameraController flies a camera from keyboard and mouse state. W/S and A/D
// move along the view and right axes, shift and control move up and down,
// dragging with the right button looks around and the wheel dollies.
type CameraController struct {
	Camera      *scene.Camera
	Sensitivity float32
}

func NewCameraController(camera *scene.Camera) *CameraController {
	return &CameraController{Camera: camera, Sensitivity: defaultSensitivity}
}

func axis(in *core.Input, positive, negative core.KeyCode) float32 {
	var v float32
	if in.IsKeyDown(positive) {
		v++
	}
	if in.IsKeyDown(negative) {
		v--
	}
	return v
}

// Update applies one frame of input. delta is the frame time in seconds.
func (c *CameraController) Update(in *core.Input, delta float64) {
	step := c.Camera.ControlSpeed * float32(delta)

	if f := axis(in, core.KEY_W, core.KEY_S); f != 0 {
		c.Camera.MoveForward(f * step)
	}
	if r := axis(in, core.KEY_D, core.KEY_A); r != 0 {
		c.Camera.MoveRight(r * step)
	}
	if u := axis(in, core.KEY_LSHIFT, core.KEY_LCONTROL); u != 0 {
		c.Camera.MoveUp(u * step)
	}
	if in.Wheel != 0 {
		c.Camera.MoveForward(float32(in.Wheel) * c.Camera.ControlSpeed * 0.1)
	}

	// The first frame of a drag only records the anchor position.
	if in.IsButtonDown(core.BUTTON_RIGHT) && in.WasButtonDown(core.BUTTON_RIGHT) {
		dx, dy := in.MouseDelta()
		if dx != 0 || dy != 0 {
			c.Camera.Rotate(-float32(dx)*c.Sensitivity, -float32(dy)*c.Sensitivity)
		}
	}
}
