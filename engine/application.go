package engine

import (
	"github.com/tigrazone/gkNextRenderer/engine/config"
	"github.com/tigrazone/gkNextRenderer/engine/core"
	"github.com/tigrazone/gkNextRenderer/engine/renderer/accel"
)

type ApplicationConfig struct {
	// The application name used in windowing.
	Name    string
	Options config.Options
	// WatchShaders reloads the shader directory when it changes on disk.
	WatchShaders bool
	Scratch      accel.ScratchPolicy
}

// onKey handles the global bindings. Camera movement keys are read from the
// input state by the controller instead.
func (e *Engine) onKey(key core.KeyCode) {
	r := e.renderer
	switch key {
	case core.KEY_ESCAPE:
		core.LogInfo("escape pressed, shutting down")
		e.isRunning = false
	case core.KEY_R:
		r.Camera().Reset(r.Scene().Camera)
		core.LogInfo("camera reset")
	case core.KEY_H:
		r.Settings.ShowHeatmap = !r.Settings.ShowHeatmap
		core.LogInfo("heatmap %t", r.Settings.ShowHeatmap)
	case core.KEY_F1:
		r.Settings.AccumulateRays = !r.Settings.AccumulateRays
		core.LogInfo("accumulate rays %t", r.Settings.AccumulateRays)
	case core.KEY_F2:
		r.Settings.IsRayTraced = !r.Settings.IsRayTraced
		core.LogInfo("ray traced %t", r.Settings.IsRayTraced)
	}
}
