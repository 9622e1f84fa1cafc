package renderer

import (
	"bytes"
	"encoding/binary"
	stdmath "math"

	"golang.org/x/image/math/f32"

	"github.com/tigrazone/gkNextRenderer/engine/config"
	"github.com/tigrazone/gkNextRenderer/engine/math"
	"github.com/tigrazone/gkNextRenderer/engine/renderer/gpu"
	"github.com/tigrazone/gkNextRenderer/engine/scene"
)

// UniformBufferSize is the encoded size of UniformBufferObject.
const UniformBufferSize = 512

/**
 * @brief The per-frame uniform block read by every stage. Field order and
 * sizes match the Uniforms struct of the shaders; matrices are column-major.
 */
type UniformBufferObject struct {
	ModelView          math.Mat4
	Projection         math.Mat4
	ModelViewInverse   math.Mat4
	ProjectionInverse  math.Mat4
	ViewProjection     math.Mat4
	PrevViewProjection math.Mat4

	ViewportRect f32.Vec4
	SunDirection f32.Vec4
	SunColor     f32.Vec4

	Aperture      float32
	FocusDistance float32
	SkyRotation   float32
	HeatmapScale  float32
	ColorPhi      float32
	DepthPhi      float32
	NormalPhi     float32
	PaperWhiteNit float32
	SkyIntensity  float32

	SkyIdx             uint32
	TotalFrames        uint32
	MaxNumberOfBounces uint32
	NumberOfSamples    uint32
	NumberOfBounces    uint32
	FrameNumber        uint32
	LightCount         uint32
	HasSky             uint32
	ShowHeatmap        uint32
	UseCheckerBoard    uint32
	TemporalFrames     uint32
}

// Bytes encodes the block little-endian.
func (u *UniformBufferObject) Bytes() []byte {
	var buf bytes.Buffer
	buf.Grow(UniformBufferSize)
	// every field is fixed size, so Write cannot fail
	_ = binary.Write(&buf, binary.LittleEndian, u)
	return buf.Bytes()
}

func flag(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

// sunDirection turns the sun rotation setting (half turns) into a direction above the horizon.
func sunDirection(rotation float32) f32.Vec4 {
	angle := float64(rotation) * stdmath.Pi
	d := math.NewVec3(float32(stdmath.Sin(angle)), 0.75, float32(stdmath.Cos(angle))).Normalize()
	return f32.Vec4{d.X, d.Y, d.Z, 0}
}

// accumulation tracks how many frames have been blended since the image last changed.
type accumulation struct {
	totalFrames uint32
	previous    config.UserSettings
	started     bool
}

// advance restarts the count when the camera moved or a setting that changes
// the image was edited, and returns the frame count and sample count to trace.
func (a *accumulation) advance(s config.UserSettings, moved bool) (uint32, uint32) {
	if moved || !a.started || !s.AccumulateRays || s.ResetsAccumulation(a.previous) {
		a.totalFrames = 0
	}
	a.previous, a.started = s, true

	samples := s.NumberOfSamples
	if s.AccumulateRays {
		done := uint64(a.totalFrames) * uint64(s.NumberOfSamples)
		switch {
		case done >= uint64(s.MaxNumberOfSamples):
			samples = 0
		case done+uint64(samples) > uint64(s.MaxNumberOfSamples):
			samples = uint32(uint64(s.MaxNumberOfSamples) - done)
		}
	}
	total := a.totalFrames
	if samples > 0 {
		a.totalFrames++
	}
	return total, samples
}

// buildUniforms fills the block for one frame. prevViewProjection is the
// view-projection of the previous frame, used for motion vectors.
func buildUniforms(camera *scene.Camera, s config.UserSettings, extent gpu.Extent2D, frame uint64,
	totalFrames, samples, lightCount uint32, prevViewProjection *math.Mat4) UniformBufferObject {
	camera.FieldOfView = s.FieldOfView
	camera.Aperture = s.Aperture
	camera.FocusDistance = s.FocusDistance

	view := camera.View()
	projection := camera.Projection(float32(extent.Width) / float32(extent.Height))
	viewProjection := view.Mul(projection)
	if prevViewProjection == nil {
		prevViewProjection = &viewProjection
	}
	sun := s.SunLuminance
	return UniformBufferObject{
		ModelView:          view,
		Projection:         projection,
		ModelViewInverse:   view.Inverse(),
		ProjectionInverse:  projection.Inverse(),
		ViewProjection:     viewProjection,
		PrevViewProjection: *prevViewProjection,

		ViewportRect: f32.Vec4{0, 0, float32(extent.Width), float32(extent.Height)},
		SunDirection: sunDirection(s.SunRotation),
		SunColor:     f32.Vec4{sun, sun, sun, 0},

		Aperture:      s.Aperture,
		FocusDistance: s.FocusDistance,
		HeatmapScale:  s.HeatmapScale,
		ColorPhi:      s.ColorPhi,
		DepthPhi:      s.DepthPhi,
		NormalPhi:     s.NormalPhi,
		PaperWhiteNit: s.PaperWhiteNit,
		SkyIntensity:  s.SkyIntensity,

		TotalFrames:        totalFrames,
		MaxNumberOfBounces: s.NumberOfBounces,
		NumberOfSamples:    samples,
		NumberOfBounces:    s.NumberOfBounces,
		FrameNumber:        uint32(frame),
		LightCount:         lightCount,
		HasSky:             flag(camera.HasSky),
		ShowHeatmap:        flag(s.ShowHeatmap),
		UseCheckerBoard:    flag(s.UseCheckerBoardRendering),
		TemporalFrames:     s.TemporalFrames,
	}
}
