// Package engine ties the window, the Vulkan instance, the shader library and
// the renderer into the interactive application loop.
package engine

import (
	"fmt"
	"runtime"
	"sync/atomic"

	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/tigrazone/gkNextRenderer/engine/assets"
	"github.com/tigrazone/gkNextRenderer/engine/core"
	"github.com/tigrazone/gkNextRenderer/engine/platform"
	"github.com/tigrazone/gkNextRenderer/engine/renderer"
	"github.com/tigrazone/gkNextRenderer/engine/renderer/vulkan"
	"github.com/tigrazone/gkNextRenderer/engine/scene"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
)

type Engine struct {
	config       *ApplicationConfig
	currentStage Stage
	isRunning    bool
	isSuspended  bool
	stopRequest  atomic.Bool

	platform   *platform.Platform
	instance   *vulkan.Instance
	shaders    *assets.ShaderLibrary
	renderer   *renderer.Renderer
	input      *core.Input
	controller *CameraController

	width    uint32
	height   uint32
	clock    *core.Clock
	lastTime float64
}

var _ platform.Handler = (*Engine)(nil)

func New(config *ApplicationConfig) (*Engine, error) {
	if err := config.Options.Validate(len(scene.All)); err != nil {
		return nil, err
	}
	return &Engine{
		config:       config,
		currentStage: EngineStageUninitialized,
		platform:     platform.New(),
		input:        core.NewInput(),
		clock:        core.NewClock(),
		width:        config.Options.Width,
		height:       config.Options.Height,
	}, nil
}

// Initialize opens the window, the Vulkan instance and the shader library,
// loads the scene and starts the renderer.
func (e *Engine) Initialize() error {
	e.currentStage = EngineStageInitializing
	opts := e.config.Options

	if err := e.platform.Startup(platform.WindowConfig{
		Title:      e.config.Name,
		Width:      opts.Width,
		Height:     opts.Height,
		Fullscreen: opts.Fullscreen,
	}, e); err != nil {
		return err
	}

	instance, err := vulkan.NewInstance(e.platform.Window, vulkan.InstanceOptions{
		ApplicationName: e.config.Name,
		Validation:      opts.Validation,
	})
	if err != nil {
		return fmt.Errorf("failed to create the Vulkan instance: %w", err)
	}
	e.instance = instance

	if e.shaders, err = assets.NewShaderLibrary(opts.ShaderDir); err != nil {
		return fmt.Errorf("failed to index shaders in %s: %w", opts.ShaderDir, err)
	}
	if e.config.WatchShaders && opts.ShaderDir != "" {
		if err := e.shaders.Watch(); err != nil {
			core.LogWarn("shader hot reload disabled: %s", err)
		}
	}
	if err := e.shaders.Preload(runtime.NumCPU()); err != nil {
		core.LogWarn("some shaders failed to load: %s", err)
	}

	s, err := scene.Load(int(opts.SceneIndex))
	if err != nil {
		return err
	}
	e.renderer = renderer.New(e.instance, opts, s, e.shaders)
	e.renderer.SetScratchPolicy(e.config.Scratch)
	if err := e.renderer.Start(); err != nil {
		return err
	}
	e.controller = NewCameraController(e.renderer.Camera())

	e.width, e.height = e.platform.FramebufferSize()
	e.currentStage = EngineStageInitialized
	return nil
}

func (e *Engine) Run() error {
	e.currentStage = EngineStageRunning
	e.isRunning = true
	e.clock.Start()
	e.clock.Update()
	e.lastTime = e.clock.Elapsed()

	for e.isRunning {
		if !e.platform.PumpMessages() || e.stopRequest.Load() {
			break
		}
		if e.isSuspended {
			e.platform.WaitMessages()
			continue
		}

		e.clock.Update()
		currentTime := e.clock.Elapsed()
		delta := currentTime - e.lastTime

		e.controller.Update(e.input, delta)

		done, err := e.renderer.Tick()
		if err != nil {
			core.LogError("frame failed: %s", err)
			return err
		}
		if done {
			break
		}

		// Input is the last thing to be updated before this frame ends.
		e.input.Update()
		e.lastTime = currentTime
	}
	return nil
}

// Stop asks the loop to exit. It is safe to call from any goroutine.
func (e *Engine) Stop() {
	e.stopRequest.Store(true)
	glfw.PostEmptyEvent()
}

// Shutdown releases everything in reverse creation order.
func (e *Engine) Shutdown() error {
	e.currentStage = EngineStageShuttingDown
	if e.renderer != nil {
		e.renderer.End()
	}
	if e.shaders != nil {
		if err := e.shaders.Close(); err != nil {
			core.LogWarn("closing shader library: %s", err)
		}
	}
	if e.instance != nil {
		e.instance.Destroy()
	}
	return e.platform.Shutdown()
}

// GetFramebufferSize returns the width and height (in this order) of the
// window framebuffer.
func (e *Engine) GetFramebufferSize() (uint32, uint32) {
	return e.width, e.height
}

func (e *Engine) OnResize(width, height uint32) {
	if width == e.width && height == e.height {
		return
	}
	e.width, e.height = width, height
	core.LogDebug("Window resize: %d, %d", width, height)

	// Handle minimization
	if width == 0 || height == 0 {
		core.LogInfo("Window minimized, suspending application.")
		e.isSuspended = true
		return
	}
	if e.isSuspended {
		core.LogInfo("Window restored, resuming application.")
		e.isSuspended = false
	}
	if e.renderer != nil {
		e.renderer.Resized()
	}
}

func (e *Engine) OnKey(key core.KeyCode, pressed bool) {
	if e.input.ProcessKey(key, pressed) && pressed && e.renderer != nil {
		e.onKey(key)
	}
}

func (e *Engine) OnMouseButton(button core.Button, pressed bool) {
	e.input.ProcessButton(button, pressed)
}

func (e *Engine) OnCursor(x, y float64) {
	e.input.ProcessMouseMove(x, y)
}

func (e *Engine) OnScroll(offset float64) {
	e.input.ProcessMouseWheel(offset)
}

func (e *Engine) OnClose() {
	core.LogInfo("window closed, shutting down")
	e.isRunning = false
}
