package scene

import (
	"github.com/tigrazone/gkNextRenderer/engine/math"
)

// CameraState is the initial camera of a scene.
type CameraState struct {
	Eye             math.Vec3
	Target          math.Vec3
	FieldOfView     float32
	Aperture        float32
	FocusDistance   float32
	ControlSpeed    float32
	GammaCorrection bool
	HasSky          bool
}

const (
	nearPlane = 0.1
	farPlane  = 10000.0
	// pitchLimit is 89 degrees.
	pitchLimit float32 = 1.55334306
)

// Camera is a fly camera. Position and rotation changes mark it dirty so the
// view matrix is rebuilt on the next read and the renderer can restart
// accumulation.
type Camera struct {
	Position math.Vec3
	// Yaw and pitch in radians. Yaw 0 looks down -Z.
	Yaw, Pitch    float32
	FieldOfView   float32
	Aperture      float32
	FocusDistance float32
	ControlSpeed  float32
	HasSky        bool

	IsDirty    bool
	moved      bool
	viewMatrix math.Mat4
}

func NewCamera(state CameraState) *Camera {
	c := &Camera{}
	c.Reset(state)
	return c
}

// Reset places the camera at the scene's initial state.
func (c *Camera) Reset(state CameraState) {
	dir := state.Target.Sub(state.Eye).Normalize()
	c.Position = state.Eye
	c.Yaw = math.Atan2(-dir.X, -dir.Z)
	c.Pitch = math.Asin(dir.Y)
	c.FieldOfView = state.FieldOfView
	c.Aperture = state.Aperture
	c.FocusDistance = state.FocusDistance
	c.ControlSpeed = state.ControlSpeed
	c.HasSky = state.HasSky
	c.IsDirty = true
	c.moved = true
}

// Forward is the unit view direction.
func (c *Camera) Forward() math.Vec3 {
	cp := math.Cos(c.Pitch)
	return math.NewVec3(-math.Sin(c.Yaw)*cp, math.Sin(c.Pitch), -math.Cos(c.Yaw)*cp)
}

func (c *Camera) Right() math.Vec3 {
	return c.Forward().Cross(math.NewVec3Up()).Normalize()
}

// View returns the world-to-camera matrix.
func (c *Camera) View() math.Mat4 {
	if c.IsDirty {
		c.viewMatrix = math.NewMat4LookAt(c.Position, c.Position.Add(c.Forward()), math.NewVec3Up())
		c.IsDirty = false
	}
	return c.viewMatrix
}

// Projection returns the Vulkan projection for the given aspect ratio.
func (c *Camera) Projection(aspect float32) math.Mat4 {
	return math.NewMat4Perspective(math.DegToRad(c.FieldOfView), aspect, nearPlane, farPlane)
}

func (c *Camera) move(direction math.Vec3, amount float32) {
	c.Position = c.Position.Add(direction.MulScalar(amount))
	c.IsDirty = true
	c.moved = true
}

func (c *Camera) MoveForward(amount float32) { c.move(c.Forward(), amount) }
func (c *Camera) MoveRight(amount float32)   { c.move(c.Right(), amount) }
func (c *Camera) MoveUp(amount float32)      { c.move(math.NewVec3Up(), amount) }

func (c *Camera) Rotate(yaw, pitch float32) {
	c.Yaw += yaw
	// Clamp to avoid gimbal lock.
	c.Pitch = math.Clamp(c.Pitch+pitch, -pitchLimit, pitchLimit)
	c.IsDirty = true
	c.moved = true
}

// Moved reports whether the camera changed since the last call.
func (c *Camera) Moved() bool {
	m := c.moved
	c.moved = false
	return m
}
