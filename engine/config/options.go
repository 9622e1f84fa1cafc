// Package config holds the startup options and the per-frame user settings.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/tigrazone/gkNextRenderer/engine/core"
)

// Renderer types selectable at startup.
const (
	RendererRayTraced uint32 = iota
	RendererModernDeferred
	RendererLegacyDeferred
	RendererRayQuery
	RendererHybridDeferred
)

const maxPresentMode = 3

// Options are fixed for the lifetime of the process.
type Options struct {
	RendererType   uint32   `toml:"renderer"`
	Samples        uint32   `toml:"samples"`
	Bounces        uint32   `toml:"bounces"`
	MaxSamples     uint32   `toml:"max_samples"`
	Temporal       uint32   `toml:"temporal"`
	SceneIndex     uint32   `toml:"scene"`
	VisibleDevices []uint32 `toml:"visible_devices"`
	Width          uint32   `toml:"width"`
	Height         uint32   `toml:"height"`
	PresentMode    uint32   `toml:"present_mode"`
	Fullscreen     bool     `toml:"fullscreen"`
	Benchmark      bool     `toml:"benchmark"`
	LogLevel       string   `toml:"log_level"`
	ShaderDir      string   `toml:"shader_dir"`
	Validation     bool     `toml:"validation"`
}

func Default() Options {
	return Options{
		RendererType: RendererRayTraced,
		Samples:      1,
		Bounces:      4,
		MaxSamples:   64 * 1024,
		Temporal:     256,
		SceneIndex:   0,
		Width:        1280,
		Height:       720,
		PresentMode:  3,
		LogLevel:     "info",
		ShaderDir:    "assets/shaders",
	}
}

// Load reads a TOML file over the defaults. Unknown keys are rejected.
func Load(path string) (Options, error) {
	opts := Default()
	f, err := os.Open(path)
	if err != nil {
		return opts, fmt.Errorf("failed to open config %s: %w", path, err)
	}
	defer f.Close()

	if err := toml.NewDecoder(f).DisallowUnknownFields().Decode(&opts); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return opts, fmt.Errorf("config %s has unknown keys:\n%s", path, strict.String())
		}
		return opts, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return opts, nil
}

// Save writes the options as TOML.
func (o Options) Save(path string) error {
	data, err := toml.Marshal(o)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate rejects options that would fail before any GPU resource exists.
func (o Options) Validate(sceneCount int) error {
	if int(o.SceneIndex) >= sceneCount {
		return fmt.Errorf("%w: %d of %d", core.ErrSceneIndexRange, o.SceneIndex, sceneCount)
	}
	if o.PresentMode > maxPresentMode {
		return fmt.Errorf("%w: %d", core.ErrInvalidPresentMode, o.PresentMode)
	}
	if o.RendererType > RendererHybridDeferred {
		return fmt.Errorf("%w: %d", core.ErrInvalidRenderer, o.RendererType)
	}
	if o.Width == 0 || o.Height == 0 {
		return fmt.Errorf("%w: %dx%d", core.ErrInvalidDimensions, o.Width, o.Height)
	}
	if o.Samples == 0 || o.MaxSamples == 0 {
		return fmt.Errorf("sample counts must be positive")
	}
	return nil
}

// EffectivePresentMode is the configured mode, or Immediate when benchmarking.
func (o Options) EffectivePresentMode() uint32 {
	if o.Benchmark {
		return 0
	}
	return o.PresentMode
}

// DeviceVisible reports whether the device id passes the visible-device filter.
func (o Options) DeviceVisible(id uint32) bool {
	if len(o.VisibleDevices) == 0 {
		return true
	}
	for _, v := range o.VisibleDevices {
		if v == id {
			return true
		}
	}
	return false
}
