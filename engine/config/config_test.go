package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/tigrazone/gkNextRenderer/engine/core"
)

func TestValidate(t *testing.T) {
	type spec struct {
		mutate func(*Options)
		exp    error
	}
	specs := []spec{
		{func(o *Options) {}, nil},
		{func(o *Options) { o.SceneIndex = 3 }, core.ErrSceneIndexRange},
		{func(o *Options) { o.PresentMode = 4 }, core.ErrInvalidPresentMode},
		{func(o *Options) { o.RendererType = 9 }, core.ErrInvalidRenderer},
		{func(o *Options) { o.Width = 0 }, core.ErrInvalidDimensions},
	}
	for index, s := range specs {
		o := Default()
		s.mutate(&o)
		err := o.Validate(3)
		if s.exp == nil && err != nil {
			t.Fatalf("[spec %d] unexpected error: %v", index, err)
		}
		if s.exp != nil && !errors.Is(err, s.exp) {
			t.Fatalf("[spec %d] expected %v; got %v", index, s.exp, err)
		}
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "renderer.toml")
	content := "samples = 8\nscene = 2\nvisible_devices = [4318]\nbenchmark = true\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	o, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if o.Samples != 8 || o.SceneIndex != 2 || o.Bounces != 4 || o.Width != 1280 {
		t.Fatalf("expected file values over defaults; got %+v", o)
	}
	if !o.DeviceVisible(4318) || o.DeviceVisible(1) {
		t.Fatalf("expected only device 4318 to be visible")
	}
	if o.EffectivePresentMode() != 0 {
		t.Fatalf("expected benchmark to force immediate present mode")
	}

	bad := filepath.Join(dir, "bad.toml")
	if err := os.WriteFile(bad, []byte("sampels = 3\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(bad); err == nil {
		t.Fatalf("expected unknown keys to be rejected")
	}
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.toml")
	o := Default()
	o.PresentMode = 1
	if err := o.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.PresentMode != 1 || got.ShaderDir != o.ShaderDir {
		t.Fatalf("expected saved options back; got %+v", got)
	}
}

func TestUserSettings(t *testing.T) {
	o := Default()
	o.Samples = 16
	s := NewUserSettings(o)
	if s.NumberOfSamples != 16 || s.DenoiseIteration != 0 || s.UseCheckerBoardRendering {
		t.Fatalf("unexpected defaults %+v", s)
	}
	o.Benchmark = true
	if b := NewUserSettings(o); b.NumberOfSamples != 1 || b.TemporalFrames != 256 {
		t.Fatalf("expected benchmark overrides; got %+v", b)
	}

	type spec struct {
		mutate func(*UserSettings)
		exp    bool
	}
	specs := []spec{
		{func(u *UserSettings) {}, false},
		{func(u *UserSettings) { u.ShowHeatmap = true }, false},
		{func(u *UserSettings) { u.PaperWhiteNit = 100 }, false},
		{func(u *UserSettings) { u.UseCheckerBoardRendering = true }, true},
		{func(u *UserSettings) { u.DenoiseIteration = 2 }, true},
		{func(u *UserSettings) { u.SunRotation = 0.1 }, true},
	}
	for index, sp := range specs {
		next := s
		sp.mutate(&next)
		if got := next.ResetsAccumulation(s); got != sp.exp {
			t.Fatalf("[spec %d] expected %v; got %v", index, sp.exp, got)
		}
	}
}
