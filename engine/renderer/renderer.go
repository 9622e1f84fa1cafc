// Package renderer drives the frame loop: device selection, swap-chain
// epochs, per-frame synchronisation and the frame pipeline strategy.
package renderer

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tigrazone/gkNextRenderer/engine/config"
	"github.com/tigrazone/gkNextRenderer/engine/core"
	"github.com/tigrazone/gkNextRenderer/engine/math"
	"github.com/tigrazone/gkNextRenderer/engine/renderer/accel"
	"github.com/tigrazone/gkNextRenderer/engine/renderer/gpu"
	"github.com/tigrazone/gkNextRenderer/engine/renderer/resource"
	"github.com/tigrazone/gkNextRenderer/engine/renderer/stages"
	"github.com/tigrazone/gkNextRenderer/engine/scene"
)

// MaxFramesInFlight is the number of frames the host may record ahead of the GPU.
const MaxFramesInFlight = 2

const (
	fenceTimeout   = 10 * time.Second
	acquireTimeout = time.Second
)

// SwapChainState is the lifecycle state of the renderer.
type SwapChainState int

const (
	NoSwapChain SwapChainState = iota
	Ready
)

func (s SwapChainState) String() string {
	if s == Ready {
		return "Ready"
	}
	return "NoSwapChain"
}

// ShaderSource resolves shaders and reports when they changed on disk.
type ShaderSource interface {
	stages.ShaderSource
	Changed() bool
}

// epoch is one swap-chain configuration and everything sized to it.
type epoch struct {
	id        uuid.UUID
	swapchain *gpu.Swapchain
	arena     *resource.Arena
}

// Renderer owns the device, the swap-chain epochs and the per-frame
// synchronisation objects. It is driven from a single goroutine through
// Start, Tick and End.
type Renderer struct {
	// Settings are read at the start of every frame.
	Settings config.UserSettings

	options  config.Options
	instance gpu.Instance
	scene    *scene.Scene
	camera   *scene.Camera
	shaders  ShaderSource
	denoiser Denoiser
	scratch  accel.ScratchPolicy

	device      gpu.Device
	deviceArena *resource.Arena
	strategy    Strategy
	state       SwapChainState
	current     *epoch

	imageAvailable [MaxFramesInFlight]gpu.SemaphoreID
	renderFinished [MaxFramesInFlight]gpu.SemaphoreID
	inFlight       [MaxFramesInFlight]gpu.FenceID
	imagesInFlight []gpu.FenceID
	commandBuffers []gpu.CommandBuffer
	currentFrame   int

	frameCount uint64
	recreate   bool
	terminate  bool
	fatal      error

	accumulation       accumulation
	prevViewProjection *math.Mat4

	frameClock *core.Clock
	metrics    *core.FrameMetrics
}

// New prepares a renderer for s. Nothing touches the GPU before Start.
func New(instance gpu.Instance, options config.Options, s *scene.Scene, shaders ShaderSource) *Renderer {
	r := &Renderer{
		Settings:   config.NewUserSettings(options),
		options:    options,
		instance:   instance,
		scene:      s,
		camera:     scene.NewCamera(s.Camera),
		shaders:    shaders,
		frameClock: core.NewClock(),
		metrics:    core.NewFrameMetrics(),
	}
	r.Settings.FieldOfView = s.Camera.FieldOfView
	r.Settings.Aperture = s.Camera.Aperture
	r.Settings.FocusDistance = s.Camera.FocusDistance
	return r
}

// SetDenoiser installs an optional denoiser. It must be called before Start.
func (r *Renderer) SetDenoiser(d Denoiser) {
	r.denoiser = d
}

// SetScratchPolicy selects how acceleration structure scratch memory is sized.
func (r *Renderer) SetScratchPolicy(p accel.ScratchPolicy) {
	r.scratch = p
}

func (r *Renderer) Camera() *scene.Camera { return r.camera }

func (r *Renderer) Scene() *scene.Scene { return r.scene }

func (r *Renderer) Strategy() Strategy { return r.strategy }

func (r *Renderer) State() SwapChainState { return r.state }

// FrameCount is the number of completed frames.
func (r *Renderer) FrameCount() uint64 { return r.frameCount }

// Device is nil before Start.
func (r *Renderer) Device() gpu.Device { return r.device }

// RequestTerminate makes the next Tick report termination.
func (r *Renderer) RequestTerminate() {
	r.terminate = true
}

// Resized schedules a swap-chain recreation before the next frame.
func (r *Renderer) Resized() {
	r.recreate = true
}

func (r *Renderer) fail(err error, what string) error {
	err = fmt.Errorf("%w: %s: %w", core.ErrFatal, what, err)
	core.LogError("%s", err)
	r.fatal = err
	return err
}

// SelectDevice returns the first device that passes the visible-device filter,
// can present and has a graphics queue. Ray tracing capable devices are
// preferred over the others.
func SelectDevice(devices []gpu.PhysicalDeviceInfo, options config.Options) (gpu.PhysicalDeviceInfo, error) {
	var fallback *gpu.PhysicalDeviceInfo
	for i := range devices {
		d := &devices[i]
		if !options.DeviceVisible(d.ID) || !d.Present || !d.Graphics {
			continue
		}
		if d.RayTracing {
			return *d, nil
		}
		if fallback == nil {
			fallback = d
		}
	}
	if fallback == nil {
		return gpu.PhysicalDeviceInfo{}, core.ErrNoSuitableDevice
	}
	return *fallback, nil
}

// Start selects and opens the device, picks the frame pipeline, creates the
// synchronisation objects and the first swap-chain epoch.
func (r *Renderer) Start() error {
	t := RendererType(r.options.RendererType)
	if !t.Valid() {
		return fmt.Errorf("%w: %d", core.ErrInvalidRenderer, r.options.RendererType)
	}
	devices, err := r.instance.PhysicalDevices()
	if err != nil {
		return fmt.Errorf("failed to enumerate physical devices: %w", err)
	}
	info, err := SelectDevice(devices, r.options)
	if err != nil {
		core.LogError("%s", err)
		return err
	}
	core.LogInfo("using device %s (%s, id %#x, ray tracing %t)", info.Name, info.Type, info.ID, info.RayTracing)

	r.strategy, err = NewStrategy(t, info, RayTracedConfig{
		Scene:    r.scene,
		Shaders:  r.shaders,
		Denoiser: r.denoiser,
		Scratch:  r.scratch,
	})
	if err != nil {
		return err
	}
	opts := gpu.OpenOptions{Validation: r.options.Validation}
	r.strategy.SetPhysicalDeviceImpl(info, &opts)
	if r.device, err = r.instance.Open(info.Index, opts); err != nil {
		return fmt.Errorf("failed to open device %s: %w", info.Name, err)
	}
	r.deviceArena = resource.NewArena("device")

	if err := r.createSyncObjects(); err != nil {
		return err
	}
	if err := r.strategy.OnDeviceSet(r.device, r.deviceArena); err != nil {
		return fmt.Errorf("failed to set up %s renderer: %w", r.strategy.Name(), err)
	}
	if err := r.createSwapChain(); err != nil {
		return err
	}
	core.LogInfo("%s renderer started", r.strategy.Name())
	r.frameClock.Start()
	return nil
}

func (r *Renderer) createSyncObjects() error {
	device, arena := r.device, r.deviceArena
	for i := 0; i < MaxFramesInFlight; i++ {
		available, err := device.CreateSemaphore()
		if err != nil {
			return fmt.Errorf("failed to create image available semaphore: %w", err)
		}
		arena.Own("image-available", func() { device.DestroySemaphore(available) })
		finished, err := device.CreateSemaphore()
		if err != nil {
			return fmt.Errorf("failed to create render finished semaphore: %w", err)
		}
		arena.Own("render-finished", func() { device.DestroySemaphore(finished) })
		// Signaled so the first wait of each slot returns immediately.
		fence, err := device.CreateFence(true)
		if err != nil {
			return fmt.Errorf("failed to create in-flight fence: %w", err)
		}
		arena.Own("in-flight", func() { device.DestroyFence(fence) })
		r.imageAvailable[i], r.renderFinished[i], r.inFlight[i] = available, finished, fence
	}

	cbs, err := device.AllocateCommandBuffers(MaxFramesInFlight)
	if err != nil {
		return fmt.Errorf("failed to allocate command buffers: %w", err)
	}
	arena.Own("command-buffers", func() { device.FreeCommandBuffers(cbs) })
	r.commandBuffers = cbs
	core.LogDebug("%d frames in flight", MaxFramesInFlight)
	return nil
}

// createSwapChain starts a new epoch. A zero surface extent (minimised
// window) leaves the renderer in NoSwapChain.
func (r *Renderer) createSwapChain() error {
	extent := r.device.SurfaceExtent()
	if extent.IsZero() {
		core.LogDebug("surface is %dx%d; waiting before creating the swap-chain", extent.Width, extent.Height)
		return nil
	}
	sc, err := r.device.CreateSwapchain(gpu.SwapchainDesc{
		Extent:      extent,
		PresentMode: gpu.PresentMode(r.options.EffectivePresentMode()),
	})
	if err != nil {
		return r.fail(err, "create swap-chain")
	}
	e := &epoch{id: uuid.New(), swapchain: sc}
	e.arena = resource.NewArena("epoch-" + e.id.String()[:8])
	device := r.device
	e.arena.Own("swapchain", func() { device.DestroySwapchain(sc) })
	r.current = e

	if err := r.strategy.CreateSwapChain(sc, e.arena); err != nil {
		r.deleteSwapChain()
		return r.fail(err, "create swap-chain resources")
	}
	r.imagesInFlight = make([]gpu.FenceID, sc.ImageCount())
	r.state = Ready
	r.recreate = false
	core.LogInfo("swap-chain epoch %s: %dx%d, %d images, %s, %s",
		e.id, sc.Extent.Width, sc.Extent.Height, sc.ImageCount(), sc.Format, sc.PresentMode)
	return nil
}

// deleteSwapChain tears the epoch down newest first: strategy resources,
// then the swap-chain itself.
func (r *Renderer) deleteSwapChain() {
	if r.current == nil {
		return
	}
	r.strategy.DeleteSwapChain()
	r.current.arena.Release()
	core.LogDebug("swap-chain epoch %s deleted", r.current.id)
	r.current = nil
	r.imagesInFlight = nil
	r.state = NoSwapChain
}

func (r *Renderer) recreateSwapChain() error {
	if err := r.device.WaitIdle(); err != nil {
		return r.fail(err, "wait idle before swap-chain recreation")
	}
	r.deleteSwapChain()
	return r.createSwapChain()
}

// Tick renders at most one frame. It reports true when the application should
// stop, either on request or after a fatal error.
func (r *Renderer) Tick() (bool, error) {
	if r.fatal != nil {
		return true, r.fatal
	}
	if r.terminate {
		return true, nil
	}
	if r.shaders != nil && r.shaders.Changed() {
		core.LogInfo("shaders changed; recreating the swap-chain")
		r.recreate = true
	}
	if r.recreate || r.state == NoSwapChain {
		if err := r.recreateSwapChain(); err != nil {
			return true, err
		}
		if r.state == NoSwapChain {
			return false, nil
		}
	}
	if err := r.drawFrame(); err != nil {
		return true, err
	}

	r.frameClock.Update()
	elapsed := r.frameClock.Elapsed()
	r.frameClock.Start()
	if r.metrics.Update(elapsed) {
		core.LogDebug("%.0f fps, %.2f ms, frame %d", r.metrics.FPS(), r.metrics.FrameTime(), r.frameCount)
	}
	return false, nil
}

// drawFrame waits for the frame slot, acquires a swap image, records and
// submits the frame and presents it.
func (r *Renderer) drawFrame() error {
	slot := r.currentFrame
	fence := r.inFlight[slot]
	if err := r.device.WaitFence(fence, fenceTimeout); err != nil {
		return r.fail(err, "wait for in-flight fence")
	}

	sc := r.current.swapchain
	imageIndex, err := r.device.AcquireNextImage(sc, r.imageAvailable[slot], acquireTimeout)
	suboptimal := false
	switch {
	case errors.Is(err, gpu.ErrOutOfDate):
		// Skip the frame; nothing was submitted and the fence stays signaled.
		core.LogDebug("swap-chain out of date on acquire")
		return r.recreateSwapChain()
	case errors.Is(err, gpu.ErrSuboptimal):
		suboptimal = true
	case err != nil:
		return r.fail(err, "acquire next image")
	}

	// Make sure the previous frame is not using this image.
	if f := r.imagesInFlight[imageIndex]; f != 0 && f != fence {
		if err := r.device.WaitFence(f, fenceTimeout); err != nil {
			return r.fail(err, "wait for image fence")
		}
	}
	r.imagesInFlight[imageIndex] = fence

	frame := r.newFrame(sc, imageIndex)
	cb := r.commandBuffers[slot]
	if err := cb.Reset(); err != nil {
		return r.fail(err, "reset command buffer")
	}
	if err := cb.Begin(); err != nil {
		return r.fail(err, "begin command buffer")
	}
	if err := r.strategy.Render(cb, frame); err != nil {
		return r.fail(err, "record frame")
	}
	if err := cb.End(); err != nil {
		return r.fail(err, "end command buffer")
	}

	if err := r.device.ResetFence(fence); err != nil {
		return r.fail(err, "reset in-flight fence")
	}
	if err := r.device.Submit(cb, r.imageAvailable[slot], gpu.PipelineStageAllCommands, r.renderFinished[slot], fence); err != nil {
		return r.fail(err, "submit frame")
	}

	err = r.device.Present(sc, imageIndex, r.renderFinished[slot])
	r.frameCount++
	r.currentFrame = (slot + 1) % MaxFramesInFlight
	switch {
	case errors.Is(err, gpu.ErrOutOfDate), errors.Is(err, gpu.ErrSuboptimal):
		core.LogDebug("swap-chain out of date on present")
		return r.recreateSwapChain()
	case err != nil:
		return r.fail(err, "present")
	case suboptimal:
		core.LogDebug("swap-chain suboptimal on acquire")
		return r.recreateSwapChain()
	}
	return nil
}

func (r *Renderer) newFrame(sc *gpu.Swapchain, imageIndex uint32) *Frame {
	s := r.Settings
	totalFrames, samples := r.accumulation.advance(s, r.camera.Moved())
	ubo := buildUniforms(r.camera, s, sc.Extent, r.frameCount, totalFrames, samples,
		uint32(len(r.scene.Lights)), r.prevViewProjection)
	vp := ubo.ViewProjection
	r.prevViewProjection = &vp
	return &Frame{
		Number:     r.frameCount,
		ImageIndex: imageIndex,
		Extent:     sc.Extent,
		SwapImage:  sc.Images[imageIndex],
		Settings:   s,
		Uniforms:   ubo,
	}
}

// End waits for the device and destroys everything in reverse creation order.
func (r *Renderer) End() {
	if r.device == nil {
		return
	}
	if err := r.device.WaitIdle(); err != nil {
		core.LogError("wait idle on shutdown: %s", err)
	}
	r.deleteSwapChain()
	r.deviceArena.Release()
	r.device.Destroy()
	r.device = nil
	core.LogInfo("renderer stopped after %d frames", r.frameCount)
}
