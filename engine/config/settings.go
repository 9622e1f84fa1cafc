package config

// UserSettings are read at the start of every frame. None of them change
// resource dimensions, so a change never recreates the swap-chain.
type UserSettings struct {
	IsRayTraced        bool
	AccumulateRays     bool
	NumberOfSamples    uint32
	NumberOfBounces    uint32
	MaxNumberOfSamples uint32
	TemporalFrames     uint32

	ShowHeatmap  bool
	HeatmapScale float32

	UseCheckerBoardRendering bool

	DenoiseIteration uint32
	DepthPhi         float32
	NormalPhi        float32
	ColorPhi         float32

	PaperWhiteNit float32
	SunRotation   float32
	SunLuminance  float32
	SkyIntensity  float32

	FieldOfView   float32
	Aperture      float32
	FocusDistance float32
}

// NewUserSettings derives the initial settings from the startup options.
// Benchmarks always trace one sample with four bounces over 256 temporal frames.
func NewUserSettings(o Options) UserSettings {
	s := UserSettings{
		IsRayTraced:        true,
		AccumulateRays:     false,
		NumberOfSamples:    o.Samples,
		NumberOfBounces:    o.Bounces,
		MaxNumberOfSamples: o.MaxSamples,
		TemporalFrames:     o.Temporal,
		HeatmapScale:       1.5,
		DepthPhi:           0.5,
		NormalPhi:          90,
		ColorPhi:           5,
		PaperWhiteNit:      600,
		SunRotation:        0.5,
		SunLuminance:       500,
		SkyIntensity:       50,
		FieldOfView:        40,
		Aperture:           0,
		FocusDistance:      10,
	}
	if o.Benchmark {
		s.NumberOfSamples = 1
		s.NumberOfBounces = 4
		s.TemporalFrames = 256
	}
	return s
}

// ResetsAccumulation reports whether switching from prev to s invalidates the
// accumulated samples. Display-only settings keep the history.
func (s UserSettings) ResetsAccumulation(prev UserSettings) bool {
	a, b := s, prev
	a.ShowHeatmap, b.ShowHeatmap = false, false
	a.HeatmapScale, b.HeatmapScale = 0, 0
	a.PaperWhiteNit, b.PaperWhiteNit = 0, 0
	return a != b
}
