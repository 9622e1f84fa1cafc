package renderer

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/tigrazone/gkNextRenderer/engine/config"
	"github.com/tigrazone/gkNextRenderer/engine/core"
	"github.com/tigrazone/gkNextRenderer/engine/math"
	"github.com/tigrazone/gkNextRenderer/engine/renderer/gpu"
	"github.com/tigrazone/gkNextRenderer/engine/renderer/noop"
	"github.com/tigrazone/gkNextRenderer/engine/renderer/resource"
	"github.com/tigrazone/gkNextRenderer/engine/scene"
)

type fakeShaders struct {
	changed bool
}

func (f *fakeShaders) SPIRV(name string) ([]uint32, error) {
	return []uint32{0x07230203, uint32(len(name))}, nil
}

func (f *fakeShaders) Changed() bool {
	c := f.changed
	f.changed = false
	return c
}

type fakeDenoiser struct {
	setups  int
	records int
}

func (d *fakeDenoiser) Name() string { return "fake" }

func (d *fakeDenoiser) Setup(device gpu.Device, arena *resource.Arena, extent gpu.Extent2D) error {
	d.setups++
	return nil
}

func (d *fakeDenoiser) Record(cb gpu.CommandBuffer, staging *resource.Buffer, extent gpu.Extent2D) error {
	if staging.Size != stagingSize(extent) {
		return errors.New("staging buffer does not match the extent")
	}
	d.records++
	return nil
}

var testExtent = gpu.Extent2D{Width: 800, Height: 600}

func testScene(t *testing.T) *scene.Scene {
	t.Helper()
	box := scene.NewBox(math.NewVec3(-1, -1, -1), math.NewVec3One(), scene.NewLambertian(math.NewVec3(0.7, 0.7, 0.7)))
	s, err := scene.Flatten([]scene.Model{box}, []scene.Node{scene.NewNode(math.NewMat4Identity(), 0)}, scene.CameraState{
		Eye:           math.NewVec3(0, 0, 5),
		Target:        math.NewVec3Zero(),
		FieldOfView:   40,
		FocusDistance: 5,
		HasSky:        true,
	})
	if err != nil {
		t.Fatalf("flatten: %v", err)
	}
	return s
}

type fixture struct {
	instance *noop.Instance
	options  config.Options
	shaders  *fakeShaders
	renderer *Renderer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		instance: noop.NewInstance(testExtent),
		options:  config.Default(),
		shaders:  &fakeShaders{},
	}
	f.renderer = New(f.instance, f.options, testScene(t), f.shaders)
	return f
}

// start rebuilds the renderer from the fixture's current options.
func (f *fixture) start(t *testing.T) *noop.Device {
	t.Helper()
	r := New(f.instance, f.options, f.renderer.scene, f.shaders)
	r.denoiser = f.renderer.denoiser
	f.renderer = r
	if err := r.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	return r.Device().(*noop.Device)
}

func (f *fixture) tick(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		stop, err := f.renderer.Tick()
		if err != nil || stop {
			t.Fatalf("tick %d: stop %t, err %v", i, stop, err)
		}
	}
}

func TestRendersFrames(t *testing.T) {
	f := newFixture(t)
	d := f.start(t)
	f.tick(t, 10)

	if got := f.renderer.FrameCount(); got != 10 {
		t.Fatalf("expected 10 frames; got %d", got)
	}
	if d.Stats.Presents != 10 || d.Stats.Submits != 10 {
		t.Fatalf("expected 10 presents and submits; got %d and %d", d.Stats.Presents, d.Stats.Submits)
	}
	if d.Stats.LayoutMismatches != 0 {
		t.Fatalf("expected no layout mismatches; got %d", d.Stats.LayoutMismatches)
	}
	if d.Stats.Ops[noop.OpTraceRays] != 10 {
		t.Fatalf("expected one trace per frame; got %d", d.Stats.Ops[noop.OpTraceRays])
	}
	if f.renderer.Strategy().Name() != "RayTraced" {
		t.Fatalf("expected the ray traced pipeline; got %s", f.renderer.Strategy().Name())
	}
}

func TestSwapChainRecovery(t *testing.T) {
	type spec struct {
		name      string
		acquire   map[int]error
		present   map[int]error
		ticks     int
		frames    uint64
		created   int
		destroyed int
	}
	specs := []spec{
		{"acquire out of date", map[int]error{4: gpu.ErrOutOfDate}, nil, 10, 9, 2, 1},
		{"acquire suboptimal", map[int]error{1: gpu.ErrSuboptimal}, nil, 4, 4, 2, 1},
		{"present out of date", nil, map[int]error{0: gpu.ErrOutOfDate}, 3, 3, 2, 1},
		{"present suboptimal", nil, map[int]error{2: gpu.ErrSuboptimal}, 3, 3, 2, 1},
		{"no faults", nil, nil, 5, 5, 1, 0},
	}
	for index, s := range specs {
		f := newFixture(t)
		d := f.start(t)
		d.AcquireFaults, d.PresentFaults = s.acquire, s.present

		last := f.renderer.FrameCount()
		for i := 0; i < s.ticks; i++ {
			f.tick(t, 1)
			if got := f.renderer.FrameCount(); got < last {
				t.Fatalf("[spec %d] %s: frame counter went from %d to %d", index, s.name, last, got)
			}
			last = f.renderer.FrameCount()
		}
		if last != s.frames {
			t.Fatalf("[spec %d] %s: expected %d frames; got %d", index, s.name, s.frames, last)
		}
		if d.Stats.SwapchainsCreated != s.created || d.Stats.SwapchainsDestroyed != s.destroyed {
			t.Fatalf("[spec %d] %s: expected %d created and %d destroyed; got %d and %d", index, s.name,
				s.created, s.destroyed, d.Stats.SwapchainsCreated, d.Stats.SwapchainsDestroyed)
		}
		if d.Stats.LayoutMismatches != 0 {
			t.Fatalf("[spec %d] %s: %d layout mismatches", index, s.name, d.Stats.LayoutMismatches)
		}
	}
}

func TestResizeRecreatesFrameImages(t *testing.T) {
	f := newFixture(t)
	d := f.start(t)
	f.tick(t, 2)

	rt := f.renderer.Strategy().(*RayTraced)
	var old []gpu.ImageID
	for _, img := range rt.frame.All() {
		old = append(old, img.Handle)
	}

	resized := gpu.Extent2D{Width: 640, Height: 360}
	d.Resize(resized)
	f.tick(t, 1)
	if got := f.renderer.FrameCount(); got != 2 {
		t.Fatalf("the out of date frame must be skipped; got %d frames", got)
	}
	f.tick(t, 1)
	if got := f.renderer.FrameCount(); got != 3 {
		t.Fatalf("expected 3 frames; got %d", got)
	}

	for _, img := range rt.frame.All() {
		desc, ok := d.ImageDesc(img.Handle)
		if !ok || desc.Extent != resized {
			t.Fatalf("image %s: expected extent %v; got %v (live %t)", img.Label, resized, desc.Extent, ok)
		}
	}
	for _, id := range old {
		if _, ok := d.ImageDesc(id); ok {
			t.Fatalf("image %d of the previous epoch is still alive", id)
		}
	}
	if d.LiveImages() != len(old) {
		t.Fatalf("expected %d live images; got %d", len(old), d.LiveImages())
	}
}

func TestMinimizedWindowSkipsFrames(t *testing.T) {
	f := newFixture(t)
	d := f.start(t)
	f.tick(t, 1)

	d.Resize(gpu.Extent2D{})
	f.tick(t, 3)
	if f.renderer.State() != NoSwapChain {
		t.Fatalf("expected NoSwapChain while minimised; got %s", f.renderer.State())
	}
	if got := f.renderer.FrameCount(); got != 1 {
		t.Fatalf("no frame may complete while minimised; got %d", got)
	}

	d.Resize(testExtent)
	f.tick(t, 1)
	if f.renderer.State() != Ready || f.renderer.FrameCount() != 2 {
		t.Fatalf("expected a frame after restore; state %s, frames %d", f.renderer.State(), f.renderer.FrameCount())
	}
	if d.Stats.SwapchainsCreated != 2 {
		t.Fatalf("expected 2 swap-chains; got %d", d.Stats.SwapchainsCreated)
	}
}

func TestFatalErrorsStopTheRenderer(t *testing.T) {
	f := newFixture(t)
	d := f.start(t)
	d.SubmitFaults = map[int]error{2: gpu.ErrDeviceLost}
	f.tick(t, 2)

	stop, err := f.renderer.Tick()
	if !stop || !errors.Is(err, core.ErrFatal) || !errors.Is(err, gpu.ErrDeviceLost) {
		t.Fatalf("expected a fatal device lost error; got stop %t, err %v", stop, err)
	}
	again, err2 := f.renderer.Tick()
	if !again || err2 != err {
		t.Fatalf("later ticks must report the same error; got %v", err2)
	}
	if f.renderer.FrameCount() != 2 {
		t.Fatalf("expected 2 frames; got %d", f.renderer.FrameCount())
	}

	f2 := newFixture(t)
	d2 := f2.start(t)
	d2.AcquireFaults = map[int]error{0: gpu.ErrDeviceLost}
	if _, err := f2.renderer.Tick(); !errors.Is(err, core.ErrFatal) {
		t.Fatalf("expected a fatal acquire error; got %v", err)
	}
}

func TestStrategySelection(t *testing.T) {
	type spec struct {
		rendererType uint32
		rayTracing   bool
		exp          string
	}
	specs := []spec{
		{config.RendererRayTraced, true, "RayTraced"},
		{config.RendererRayTraced, false, "Rasterized"},
		{config.RendererModernDeferred, true, "Rasterized"},
		{config.RendererHybridDeferred, true, "Rasterized"},
	}
	for index, s := range specs {
		f := newFixture(t)
		f.instance.Devices[0].RayTracing = s.rayTracing
		f.options.RendererType = s.rendererType
		d := f.start(t)
		f.tick(t, 3)

		if got := f.renderer.Strategy().Name(); got != s.exp {
			t.Fatalf("[spec %d] expected %s; got %s", index, s.exp, got)
		}
		if d.RayTracingEnabled() != (s.exp == "RayTraced") {
			t.Fatalf("[spec %d] ray tracing enabled %t for %s", index, d.RayTracingEnabled(), s.exp)
		}
		if s.exp == "Rasterized" && d.Stats.Ops[noop.OpClear] != 3 {
			t.Fatalf("[spec %d] expected one clear per frame; got %d", index, d.Stats.Ops[noop.OpClear])
		}
		if d.Stats.LayoutMismatches != 0 || d.Stats.Presents != 3 {
			t.Fatalf("[spec %d] presents %d, layout mismatches %d", index, d.Stats.Presents, d.Stats.LayoutMismatches)
		}
	}
}

func TestStartErrors(t *testing.T) {
	type spec struct {
		name   string
		mutate func(f *fixture)
		exp    error
	}
	specs := []spec{
		{"invalid renderer", func(f *fixture) { f.options.RendererType = 9 }, core.ErrInvalidRenderer},
		{"device filtered out", func(f *fixture) { f.options.VisibleDevices = []uint32{0x1234} }, core.ErrNoSuitableDevice},
		{"device cannot present", func(f *fixture) { f.instance.Devices[0].Present = false }, core.ErrNoSuitableDevice},
		{"no devices", func(f *fixture) { f.instance.Devices = nil }, core.ErrNoSuitableDevice},
	}
	for index, s := range specs {
		f := newFixture(t)
		s.mutate(f)
		r := New(f.instance, f.options, f.renderer.scene, f.shaders)
		if err := r.Start(); !errors.Is(err, s.exp) {
			t.Fatalf("[spec %d] %s: expected %v; got %v", index, s.name, s.exp, err)
		}
	}
}

func TestSelectDevice(t *testing.T) {
	integrated := gpu.PhysicalDeviceInfo{Index: 0, ID: 0x8086, Name: "integrated", Graphics: true, Present: true}
	discrete := gpu.PhysicalDeviceInfo{Index: 1, ID: 0x10de, Name: "discrete", Graphics: true, Present: true, RayTracing: true}
	headless := gpu.PhysicalDeviceInfo{Index: 2, ID: 0x1002, Name: "headless", Graphics: true, RayTracing: true}

	type spec struct {
		devices []gpu.PhysicalDeviceInfo
		visible []uint32
		exp     string
	}
	specs := []spec{
		{[]gpu.PhysicalDeviceInfo{integrated, discrete}, nil, "discrete"},
		{[]gpu.PhysicalDeviceInfo{integrated, headless}, nil, "integrated"},
		{[]gpu.PhysicalDeviceInfo{integrated, discrete}, []uint32{0x8086}, "integrated"},
		{[]gpu.PhysicalDeviceInfo{headless}, nil, ""},
	}
	for index, s := range specs {
		options := config.Default()
		options.VisibleDevices = s.visible
		got, err := SelectDevice(s.devices, options)
		if s.exp == "" {
			if !errors.Is(err, core.ErrNoSuitableDevice) {
				t.Fatalf("[spec %d] expected no suitable device; got %v", index, err)
			}
			continue
		}
		if err != nil || got.Name != s.exp {
			t.Fatalf("[spec %d] expected %s; got %s (%v)", index, s.exp, got.Name, err)
		}
	}
}

func TestPushConstantSequence(t *testing.T) {
	f := newFixture(t)
	d := f.start(t)
	f.renderer.Settings.DenoiseIteration = 1

	type push struct{ pingPong, step uint32 }
	specs := [][]push{
		{{1, 0}, {0, 0}, {1, 1}, {0, 0}},
		{{0, 0}, {1, 0}, {0, 1}, {1, 0}},
		{{1, 0}, {0, 0}, {1, 1}, {0, 0}},
	}
	for index, exp := range specs {
		f.tick(t, 1)
		var got []push
		for _, cmd := range d.LastSubmitted {
			if cmd.Op == noop.OpPushConstants {
				got = append(got, push{binary.LittleEndian.Uint32(cmd.Push[0:]), binary.LittleEndian.Uint32(cmd.Push[4:])})
			}
		}
		if len(got) != len(exp) {
			t.Fatalf("[spec %d] expected %d push constants; got %d", index, len(exp), len(got))
		}
		for i := range exp {
			if got[i] != exp[i] {
				t.Fatalf("[spec %d] push %d: expected %+v; got %+v", index, i, exp[i], got[i])
			}
		}
	}
}

func TestFrameCommandOrder(t *testing.T) {
	f := newFixture(t)
	d := f.start(t)
	f.tick(t, 1)

	var ops []noop.Op
	for _, cmd := range d.LastSubmitted {
		if cmd.Op == noop.OpTraceRays || cmd.Op == noop.OpDispatch || cmd.Op == noop.OpCopyImage {
			ops = append(ops, cmd.Op)
		}
	}
	exp := []noop.Op{noop.OpTraceRays, noop.OpDispatch, noop.OpDispatch, noop.OpCopyImage}
	if len(ops) != len(exp) {
		t.Fatalf("expected %v; got %v", exp, ops)
	}
	for i := range exp {
		if ops[i] != exp[i] {
			t.Fatalf("op %d: expected %s; got %s", i, exp[i], ops[i])
		}
	}
	last := d.LastSubmitted[len(d.LastSubmitted)-1]
	if last.Op != noop.OpBarrier || last.Images[0].NewLayout != gpu.ImageLayoutPresentSrc {
		t.Fatalf("the frame must end by moving the swap image to PresentSrc")
	}
}

func TestHistorySurvivesFrames(t *testing.T) {
	f := newFixture(t)
	d := f.start(t)
	rt := f.renderer.Strategy().(*RayTraced)

	type spec struct {
		resize  bool
		cleared bool
	}
	specs := []spec{
		{false, true},
		{false, false},
		{false, false},
		{true, true},
		{false, false},
	}
	for index, s := range specs {
		if s.resize {
			d.Resize(gpu.Extent2D{Width: 320, Height: 200})
			f.tick(t, 1)
		}
		f.tick(t, 1)

		history := map[gpu.ImageID]bool{}
		for _, img := range rt.frame.All() {
			if img != rt.frame.Output {
				history[img.Handle] = true
			}
		}
		clears, discarded := 0, 0
		for _, cmd := range d.LastSubmitted {
			switch cmd.Op {
			case noop.OpClear:
				if cmd.DstImage == rt.frame.PingPong[0].Handle || cmd.DstImage == rt.frame.PingPong[1].Handle {
					clears++
				}
			case noop.OpBarrier:
				for _, b := range cmd.Images {
					if history[b.Image] && b.OldLayout == gpu.ImageLayoutUndefined {
						discarded++
					}
				}
			}
		}
		if s.cleared {
			if clears != 2 || discarded != len(history) {
				t.Fatalf("[spec %d] expected both ping-pong images cleared and %d images initialised; got %d and %d",
					index, len(history), clears, discarded)
			}
			continue
		}
		if clears != 0 || discarded != 0 {
			t.Fatalf("[spec %d] expected history kept; got %d clears and %d discarded images", index, clears, discarded)
		}
	}
	if d.Stats.LayoutMismatches != 0 {
		t.Fatalf("expected no layout mismatches; got %d", d.Stats.LayoutMismatches)
	}
}

func TestDenoiserRunsPerFrame(t *testing.T) {
	f := newFixture(t)
	dn := &fakeDenoiser{}
	f.renderer.SetDenoiser(dn)
	d := f.start(t)
	f.tick(t, 3)

	if dn.setups != 1 || dn.records != 3 {
		t.Fatalf("expected 1 setup and 3 records; got %d and %d", dn.setups, dn.records)
	}
	if d.Stats.Ops[noop.OpCopyImageToBuffer] != 3 || d.Stats.Ops[noop.OpCopyBufferToImage] != 3 {
		t.Fatalf("expected a staging round trip per frame; got %d and %d",
			d.Stats.Ops[noop.OpCopyImageToBuffer], d.Stats.Ops[noop.OpCopyBufferToImage])
	}

	d.Resize(gpu.Extent2D{Width: 320, Height: 200})
	f.tick(t, 2)
	if dn.setups != 2 {
		t.Fatalf("expected the denoiser to be set up for the new epoch; got %d setups", dn.setups)
	}
	if d.Stats.LayoutMismatches != 0 {
		t.Fatalf("%d layout mismatches", d.Stats.LayoutMismatches)
	}
}

func TestShaderReloadRecreatesEpoch(t *testing.T) {
	f := newFixture(t)
	d := f.start(t)
	f.tick(t, 2)

	f.shaders.changed = true
	f.tick(t, 1)
	if d.Stats.SwapchainsCreated != 2 || d.Stats.SwapchainsDestroyed != 1 {
		t.Fatalf("expected a new epoch after a reload; got %d created, %d destroyed",
			d.Stats.SwapchainsCreated, d.Stats.SwapchainsDestroyed)
	}
	if f.renderer.FrameCount() != 3 {
		t.Fatalf("the reload frame must still render; got %d frames", f.renderer.FrameCount())
	}
}

func TestMovingANodeRebuildsTopLevel(t *testing.T) {
	f := newFixture(t)
	d := f.start(t)
	f.tick(t, 2)
	builds := d.Stats.AccelBuilds

	f.renderer.Scene().Nodes[0].Transform = math.NewMat4Translation(math.NewVec3(0, 1, 0))
	f.tick(t, 1)
	if got := d.Stats.AccelBuilds - builds; got != 1 {
		t.Fatalf("expected one top-level rebuild; got %d", got)
	}
	f.tick(t, 2)
	if got := d.Stats.AccelBuilds - builds; got != 1 {
		t.Fatalf("a still node must not rebuild; got %d builds", got)
	}
}

func TestTerminateAndEnd(t *testing.T) {
	f := newFixture(t)
	d := f.start(t)
	f.tick(t, 2)

	f.renderer.RequestTerminate()
	if stop, err := f.renderer.Tick(); !stop || err != nil {
		t.Fatalf("expected a clean stop; got %t, %v", stop, err)
	}
	f.renderer.End()
	if d.LiveImages() != 0 || d.LiveBuffers() != 0 {
		t.Fatalf("expected every resource released; %d images and %d buffers live", d.LiveImages(), d.LiveBuffers())
	}
	if d.Destroyed[len(d.Destroyed)-1] != "device:0" {
		t.Fatalf("the device must be destroyed last; got %s", d.Destroyed[len(d.Destroyed)-1])
	}
	if f.renderer.FrameCount() != 2 {
		t.Fatalf("expected 2 frames; got %d", f.renderer.FrameCount())
	}
}

func TestUniformLayout(t *testing.T) {
	var ubo UniformBufferObject
	if got := len(ubo.Bytes()); got != UniformBufferSize {
		t.Fatalf("expected %d bytes; got %d", UniformBufferSize, got)
	}
}

func TestAccumulationAdvance(t *testing.T) {
	s := config.NewUserSettings(config.Default())
	s.AccumulateRays = true
	s.NumberOfSamples = 4
	s.MaxNumberOfSamples = 10

	type spec struct {
		settings       config.UserSettings
		moved          bool
		total, samples uint32
	}
	heatmap := s
	heatmap.ShowHeatmap = true
	bounces := s
	bounces.NumberOfBounces = 9
	off := s
	off.AccumulateRays = false

	specs := []spec{
		{s, false, 0, 4},
		{s, false, 1, 4},
		{s, false, 2, 2},
		{s, false, 3, 0},
		{heatmap, false, 3, 0},
		{s, true, 0, 4},
		{bounces, false, 0, 4},
		{bounces, false, 1, 4},
		{off, false, 0, 4},
		{off, false, 0, 4},
	}
	var acc accumulation
	for index, exp := range specs {
		total, samples := acc.advance(exp.settings, exp.moved)
		if total != exp.total || samples != exp.samples {
			t.Fatalf("[spec %d] expected (%d, %d); got (%d, %d)", index, exp.total, exp.samples, total, samples)
		}
	}
}
