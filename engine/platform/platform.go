package platform

import (
	"fmt"
	"runtime"

	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/tigrazone/gkNextRenderer/engine/core"
)

func init() {
	// GLFW event handling must run on the main OS thread
	runtime.LockOSThread()
}

// Handler receives the window events. All calls happen on the main thread
// from inside PumpMessages.
type Handler interface {
	OnResize(width, height uint32)
	OnKey(key core.KeyCode, pressed bool)
	OnMouseButton(button core.Button, pressed bool)
	OnCursor(x, y float64)
	OnScroll(offset float64)
	OnClose()
}

type WindowConfig struct {
	Title      string
	Width      uint32
	Height     uint32
	Fullscreen bool
	// Hidden windows still own a surface; list-devices uses one.
	Hidden bool
}

type Platform struct {
	Window  *glfw.Window
	handler Handler
}

func New() *Platform {
	return &Platform{}
}

func (p *Platform) Startup(config WindowConfig, handler Handler) error {
	if err := glfw.Init(); err != nil {
		core.LogError("failed to initialize glfw: %s", err)
		return err
	}
	if !glfw.VulkanSupported() {
		glfw.Terminate()
		return fmt.Errorf("glfw reports no Vulkan support")
	}

	glfw.WindowHint(glfw.Visible, glfw.False)
	glfw.WindowHint(glfw.Resizable, glfw.True)
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI) // Required for Vulkan.

	var monitor *glfw.Monitor
	if config.Fullscreen {
		monitor = glfw.GetPrimaryMonitor()
	}
	window, err := glfw.CreateWindow(int(config.Width), int(config.Height), config.Title, monitor, nil)
	if err != nil {
		glfw.Terminate()
		core.LogError("failed to create window: %s", err)
		return err
	}
	p.Window = window
	p.handler = handler

	if handler != nil {
		window.SetKeyCallback(p.keyCallback)
		window.SetMouseButtonCallback(p.mouseButtonCallback)
		window.SetCursorPosCallback(p.cursorPosCallback)
		window.SetScrollCallback(p.scrollCallback)
		window.SetFramebufferSizeCallback(p.framebufferSizeCallback)
		window.SetCloseCallback(p.closeCallback)
	}
	if !config.Hidden {
		window.Show()
	}
	return nil
}

func (p *Platform) Shutdown() error {
	if p.Window != nil {
		p.Window.Destroy()
		p.Window = nil
	}
	glfw.Terminate()
	return nil
}

// PumpMessages dispatches pending window events and reports false once the
// window was asked to close.
func (p *Platform) PumpMessages() bool {
	glfw.PollEvents()
	return !p.Window.ShouldClose()
}

// WaitMessages blocks until at least one event arrives.
func (p *Platform) WaitMessages() {
	glfw.WaitEvents()
}

func (p *Platform) FramebufferSize() (uint32, uint32) {
	w, h := p.Window.GetFramebufferSize()
	return uint32(w), uint32(h)
}

// GetAbsoluteTime is the time since glfw was initialised, in seconds.
func GetAbsoluteTime() float64 {
	return glfw.GetTime()
}

func (p *Platform) keyCallback(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
	if action == glfw.Repeat {
		return
	}
	code, ok := TranslateKey(key)
	if !ok {
		return
	}
	p.handler.OnKey(code, action == glfw.Press)
}

func (p *Platform) mouseButtonCallback(w *glfw.Window, button glfw.MouseButton, action glfw.Action, mods glfw.ModifierKey) {
	var b core.Button
	switch button {
	case glfw.MouseButtonLeft:
		b = core.BUTTON_LEFT
	case glfw.MouseButtonRight:
		b = core.BUTTON_RIGHT
	case glfw.MouseButtonMiddle:
		b = core.BUTTON_MIDDLE
	default:
		return
	}
	p.handler.OnMouseButton(b, action == glfw.Press)
}

func (p *Platform) cursorPosCallback(w *glfw.Window, xpos, ypos float64) {
	p.handler.OnCursor(xpos, ypos)
}

func (p *Platform) scrollCallback(w *glfw.Window, xoff, yoff float64) {
	p.handler.OnScroll(yoff)
}

func (p *Platform) framebufferSizeCallback(w *glfw.Window, width, height int) {
	p.handler.OnResize(uint32(width), uint32(height))
}

func (p *Platform) closeCallback(w *glfw.Window) {
	p.handler.OnClose()
}
