package noop

import (
	"fmt"
	"sync"
	"time"

	"github.com/tigrazone/gkNextRenderer/engine/renderer/gpu"
)

const (
	baseAddress      = 0x10000
	addressAlignment = 256
)

// DefaultRayTracingProperties mirror the limits reported by common desktop drivers.
var DefaultRayTracingProperties = gpu.RayTracingProperties{
	ShaderGroupHandleSize:      32,
	ShaderGroupHandleAlignment: 32,
	ShaderGroupBaseAlignment:   64,
	MaxRayRecursionDepth:       1,
}

type image struct {
	desc   gpu.ImageDesc
	layout gpu.ImageLayout
	swap   bool
}

type buffer struct {
	desc    gpu.BufferDesc
	data    []byte
	address uint64
}

type accel struct {
	kind    gpu.AccelKind
	buffer  gpu.BufferID
	offset  uint64
	size    uint64
	address uint64
	built   int
}

type pipeline struct {
	label  string
	groups uint32
}

// Device records every call. It is safe for concurrent use.
type Device struct {
	mu sync.Mutex

	info       gpu.PhysicalDeviceInfo
	rayTracing bool
	props      gpu.RayTracingProperties
	surface    gpu.Extent2D
	swapImages uint32

	nextID      uint64
	nextAddress uint64

	images      map[gpu.ImageID]*image
	views       map[gpu.ViewID]gpu.ImageID
	memories    map[gpu.MemoryID]bool
	buffers     map[gpu.BufferID]*buffer
	accels      map[gpu.AccelID]*accel
	pipelines   map[gpu.PipelineID]pipeline
	sets        map[gpu.DescriptorSetID][]gpu.DescriptorWrite
	semaphores  map[gpu.SemaphoreID]bool
	fences      map[gpu.FenceID]bool
	swapchains  map[uint64]*gpu.Swapchain
	nextSwapIdx map[uint64]uint32
	handles     uint64

	// AccelSizes overrides the size query. The default grows linearly with the primitive count.
	AccelSizes func(kind gpu.AccelKind, geometries []gpu.AccelGeometry) gpu.AccelBuildSizes

	// Fault injection, keyed by zero-based call index.
	AcquireFaults map[int]error
	PresentFaults map[int]error
	SubmitFaults  map[int]error

	Stats     Stats
	Destroyed []string
	// LastSubmitted holds the commands of the most recent submission.
	LastSubmitted []Command
}

// Stats counts the calls tests usually assert on.
type Stats struct {
	SwapchainsCreated   int
	SwapchainsDestroyed int
	Acquires            int
	Presents            int
	Submits             int
	SingleUse           int
	AccelBuilds         int
	LayoutMismatches    int
	Ops                 map[Op]int
}

func newDevice(info gpu.PhysicalDeviceInfo, rayTracing bool, surface gpu.Extent2D, swapImages uint32) *Device {
	return &Device{
		info:        info,
		rayTracing:  rayTracing,
		props:       DefaultRayTracingProperties,
		surface:     surface,
		swapImages:  swapImages,
		nextAddress: baseAddress,
		images:      make(map[gpu.ImageID]*image),
		views:       make(map[gpu.ViewID]gpu.ImageID),
		memories:    make(map[gpu.MemoryID]bool),
		buffers:     make(map[gpu.BufferID]*buffer),
		accels:      make(map[gpu.AccelID]*accel),
		pipelines:   make(map[gpu.PipelineID]pipeline),
		sets:        make(map[gpu.DescriptorSetID][]gpu.DescriptorWrite),
		semaphores:  make(map[gpu.SemaphoreID]bool),
		fences:      make(map[gpu.FenceID]bool),
		swapchains:  make(map[uint64]*gpu.Swapchain),
		nextSwapIdx: make(map[uint64]uint32),
		Stats:       Stats{Ops: make(map[Op]int)},
	}
}

func (d *Device) id() uint64 {
	d.nextID++
	return d.nextID
}

func (d *Device) address(size uint64) uint64 {
	addr := d.nextAddress
	d.nextAddress = gpu.AlignUp(addr+size, addressAlignment)
	if d.nextAddress == addr {
		d.nextAddress += addressAlignment
	}
	return addr
}

func (d *Device) destroyed(kind string, id uint64) {
	d.Destroyed = append(d.Destroyed, fmt.Sprintf("%s:%d", kind, id))
}

// Resize changes the surface extent reported to the renderer, as a window resize would.
func (d *Device) Resize(extent gpu.Extent2D) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.surface = extent
}

// SetRayTracingProperties replaces the reported limits.
func (d *Device) SetRayTracingProperties(props gpu.RayTracingProperties) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.props = props
}

// LiveImages counts images that are not part of a swap-chain.
func (d *Device) LiveImages() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, img := range d.images {
		if !img.swap {
			n++
		}
	}
	return n
}

// LiveBuffers counts buffers not yet destroyed.
func (d *Device) LiveBuffers() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.buffers)
}

// ImageLayout is the layout an image reached after the last submitted transition.
func (d *Device) ImageLayout(id gpu.ImageID) gpu.ImageLayout {
	d.mu.Lock()
	defer d.mu.Unlock()
	if img, ok := d.images[id]; ok {
		return img.layout
	}
	return gpu.ImageLayoutUndefined
}

// ImageDesc returns the description an image was created with.
func (d *Device) ImageDesc(id gpu.ImageID) (gpu.ImageDesc, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if img, ok := d.images[id]; ok {
		return img.desc, true
	}
	return gpu.ImageDesc{}, false
}

// DescriptorWrites returns the writes last applied to a descriptor set.
func (d *Device) DescriptorWrites(set gpu.DescriptorSetID) []gpu.DescriptorWrite {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]gpu.DescriptorWrite(nil), d.sets[set]...)
}

// AccelBuildCount reports how many times a structure has been built.
func (d *Device) AccelBuildCount(id gpu.AccelID) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if a, ok := d.accels[id]; ok {
		return a.built
	}
	return 0
}

func (d *Device) Info() gpu.PhysicalDeviceInfo { return d.info }

func (d *Device) RayTracingEnabled() bool { return d.rayTracing }

func (d *Device) RayTracingProperties() gpu.RayTracingProperties {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.props
}

func (d *Device) SurfaceExtent() gpu.Extent2D {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.surface
}

func (d *Device) CreateSwapchain(desc gpu.SwapchainDesc) (*gpu.Swapchain, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if desc.Extent.IsZero() {
		return nil, fmt.Errorf("noop: swapchain extent %dx%d", desc.Extent.Width, desc.Extent.Height)
	}
	sc := &gpu.Swapchain{
		Handle:      d.id(),
		Extent:      desc.Extent,
		Format:      gpu.FormatBGRA8Unorm,
		PresentMode: desc.PresentMode,
	}
	for i := uint32(0); i < d.swapImages; i++ {
		img := gpu.ImageID(d.id())
		d.images[img] = &image{
			desc: gpu.ImageDesc{Label: fmt.Sprintf("swapchain-%d", i), Extent: desc.Extent, Format: sc.Format},
			swap: true,
		}
		view := gpu.ViewID(d.id())
		d.views[view] = img
		sc.Images = append(sc.Images, img)
		sc.Views = append(sc.Views, view)
	}
	d.swapchains[sc.Handle] = sc
	d.Stats.SwapchainsCreated++
	return sc, nil
}

func (d *Device) DestroySwapchain(sc *gpu.Swapchain) {
	if sc == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.swapchains[sc.Handle]; !ok {
		return
	}
	for i := range sc.Images {
		delete(d.views, sc.Views[i])
		delete(d.images, sc.Images[i])
	}
	delete(d.swapchains, sc.Handle)
	delete(d.nextSwapIdx, sc.Handle)
	d.Stats.SwapchainsDestroyed++
	d.destroyed("swapchain", sc.Handle)
}

func (d *Device) AcquireNextImage(sc *gpu.Swapchain, signal gpu.SemaphoreID, timeout time.Duration) (uint32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	call := d.Stats.Acquires
	d.Stats.Acquires++
	if _, ok := d.swapchains[sc.Handle]; !ok {
		return 0, fmt.Errorf("noop: acquire on destroyed swapchain %d", sc.Handle)
	}
	if sc.Extent != d.surface {
		return 0, gpu.ErrOutOfDate
	}
	fault := d.AcquireFaults[call]
	if fault == gpu.ErrOutOfDate || (fault != nil && fault != gpu.ErrSuboptimal) {
		return 0, fault
	}
	idx := d.nextSwapIdx[sc.Handle]
	d.nextSwapIdx[sc.Handle] = (idx + 1) % sc.ImageCount()
	d.semaphores[signal] = true
	return idx, fault
}

func (d *Device) Present(sc *gpu.Swapchain, imageIndex uint32, wait gpu.SemaphoreID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	call := d.Stats.Presents
	d.Stats.Presents++
	if imageIndex >= sc.ImageCount() {
		return fmt.Errorf("noop: present image %d of %d", imageIndex, sc.ImageCount())
	}
	d.semaphores[wait] = false
	if fault := d.PresentFaults[call]; fault != nil {
		return fault
	}
	if img := d.images[sc.Images[imageIndex]]; img != nil && img.layout != gpu.ImageLayoutPresentSrc {
		d.Stats.LayoutMismatches++
	}
	return nil
}

func (d *Device) CreateImage(desc gpu.ImageDesc) (gpu.ImageID, gpu.MemoryID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if desc.Extent.IsZero() {
		return 0, 0, fmt.Errorf("noop: image %q has zero extent", desc.Label)
	}
	mem := gpu.MemoryID(d.id())
	d.memories[mem] = true
	img := gpu.ImageID(d.id())
	d.images[img] = &image{desc: desc}
	return img, mem, nil
}

func (d *Device) DestroyImage(id gpu.ImageID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.images, id)
	d.destroyed("image", uint64(id))
}

func (d *Device) CreateImageView(id gpu.ImageID, format gpu.Format) (gpu.ViewID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.images[id]; !ok {
		return 0, fmt.Errorf("noop: view of unknown image %d", id)
	}
	view := gpu.ViewID(d.id())
	d.views[view] = id
	return view, nil
}

func (d *Device) DestroyImageView(view gpu.ViewID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.views, view)
	d.destroyed("view", uint64(view))
}

func (d *Device) FreeMemory(mem gpu.MemoryID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.memories, mem)
	d.destroyed("memory", uint64(mem))
}

func (d *Device) CreateBuffer(desc gpu.BufferDesc) (gpu.BufferID, gpu.MemoryID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if desc.Size == 0 {
		return 0, 0, fmt.Errorf("noop: buffer %q has zero size", desc.Label)
	}
	mem := gpu.MemoryID(d.id())
	d.memories[mem] = true
	buf := gpu.BufferID(d.id())
	b := &buffer{desc: desc, data: make([]byte, desc.Size)}
	if desc.Usage&gpu.BufferUsageDeviceAddress != 0 {
		b.address = d.address(desc.Size)
	}
	d.buffers[buf] = b
	return buf, mem, nil
}

func (d *Device) DestroyBuffer(id gpu.BufferID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.buffers, id)
	d.destroyed("buffer", uint64(id))
}

func (d *Device) WriteBuffer(id gpu.BufferID, offset uint64, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.buffers[id]
	if !ok {
		return fmt.Errorf("noop: write to unknown buffer %d", id)
	}
	if b.desc.Memory&gpu.MemoryHostVisible == 0 {
		return fmt.Errorf("noop: buffer %q is not host visible", b.desc.Label)
	}
	if offset+uint64(len(data)) > uint64(len(b.data)) {
		return fmt.Errorf("noop: write of %d bytes at %d overflows buffer %q (%d bytes)", len(data), offset, b.desc.Label, len(b.data))
	}
	copy(b.data[offset:], data)
	return nil
}

func (d *Device) ReadBuffer(id gpu.BufferID, offset, size uint64) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.buffers[id]
	if !ok {
		return nil, fmt.Errorf("noop: read from unknown buffer %d", id)
	}
	if offset+size > uint64(len(b.data)) {
		return nil, fmt.Errorf("noop: read of %d bytes at %d overflows buffer %q", size, offset, b.desc.Label)
	}
	out := make([]byte, size)
	copy(out, b.data[offset:offset+size])
	return out, nil
}

func (d *Device) BufferAddress(id gpu.BufferID) uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if b, ok := d.buffers[id]; ok {
		return b.address
	}
	return 0
}

func (d *Device) CreateShaderModule(code []uint32) (gpu.ShaderModuleID, error) {
	if len(code) == 0 {
		return 0, fmt.Errorf("noop: empty shader module")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return gpu.ShaderModuleID(d.id()), nil
}

func (d *Device) DestroyShaderModule(module gpu.ShaderModuleID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.destroyed("shader", uint64(module))
}

func (d *Device) CreateDescriptorSetLayout(bindings []gpu.DescriptorBinding) (gpu.DescriptorSetLayoutID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return gpu.DescriptorSetLayoutID(d.id()), nil
}

func (d *Device) DestroyDescriptorSetLayout(layout gpu.DescriptorSetLayoutID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.destroyed("set-layout", uint64(layout))
}

func (d *Device) CreateDescriptorPool(bindings []gpu.DescriptorBinding, maxSets uint32) (gpu.DescriptorPoolID, error) {
	if maxSets == 0 {
		return 0, fmt.Errorf("noop: descriptor pool without sets")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return gpu.DescriptorPoolID(d.id()), nil
}

func (d *Device) DestroyDescriptorPool(pool gpu.DescriptorPoolID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.destroyed("pool", uint64(pool))
}

func (d *Device) AllocateDescriptorSets(pool gpu.DescriptorPoolID, layout gpu.DescriptorSetLayoutID, count uint32) ([]gpu.DescriptorSetID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	sets := make([]gpu.DescriptorSetID, count)
	for i := range sets {
		sets[i] = gpu.DescriptorSetID(d.id())
		d.sets[sets[i]] = nil
	}
	return sets, nil
}

func (d *Device) UpdateDescriptorSet(set gpu.DescriptorSetID, writes []gpu.DescriptorWrite) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sets[set] = append(d.sets[set], writes...)
}

func (d *Device) CreatePipelineLayout(setLayouts []gpu.DescriptorSetLayoutID, pushConstants []gpu.PushConstantRange) (gpu.PipelineLayoutID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return gpu.PipelineLayoutID(d.id()), nil
}

func (d *Device) DestroyPipelineLayout(layout gpu.PipelineLayoutID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.destroyed("pipeline-layout", uint64(layout))
}

func (d *Device) CreateComputePipeline(desc gpu.ComputePipelineDesc) (gpu.PipelineID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := gpu.PipelineID(d.id())
	d.pipelines[id] = pipeline{label: desc.Label}
	return id, nil
}

func (d *Device) CreateRayTracingPipeline(desc gpu.RayTracingPipelineDesc) (gpu.PipelineID, error) {
	if !d.rayTracing {
		return 0, gpu.ErrUnsupported
	}
	if len(desc.Groups) == 0 {
		return 0, fmt.Errorf("noop: ray tracing pipeline %q without groups", desc.Label)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	id := gpu.PipelineID(d.id())
	d.pipelines[id] = pipeline{label: desc.Label, groups: uint32(len(desc.Groups))}
	return id, nil
}

func (d *Device) DestroyPipeline(id gpu.PipelineID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.pipelines, id)
	d.destroyed("pipeline", uint64(id))
}

// ShaderGroupHandles fills handle i with the byte value first+i+1.
func (d *Device) ShaderGroupHandles(id gpu.PipelineID, first, count uint32) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.pipelines[id]
	if !ok {
		return nil, fmt.Errorf("noop: unknown pipeline %d", id)
	}
	if first+count > p.groups {
		return nil, fmt.Errorf("noop: handles %d..%d of pipeline %q with %d groups", first, first+count, p.label, p.groups)
	}
	size := d.props.ShaderGroupHandleSize
	out := make([]byte, count*size)
	for i := uint32(0); i < count; i++ {
		for j := uint32(0); j < size; j++ {
			out[i*size+j] = byte(first + i + 1)
		}
	}
	d.handles += uint64(count)
	return out, nil
}

func (d *Device) AccelBuildSizes(kind gpu.AccelKind, geometries []gpu.AccelGeometry) (gpu.AccelBuildSizes, error) {
	if !d.rayTracing {
		return gpu.AccelBuildSizes{}, gpu.ErrUnsupported
	}
	if d.AccelSizes != nil {
		return d.AccelSizes(kind, geometries), nil
	}
	prims := uint64(0)
	for _, g := range geometries {
		prims += uint64(g.PrimitiveCount())
	}
	return gpu.AccelBuildSizes{
		AccelerationStructureSize: 1024 + 128*prims,
		BuildScratchSize:          512 + 64*prims,
		UpdateScratchSize:         256 + 32*prims,
	}, nil
}

func (d *Device) CreateAccel(kind gpu.AccelKind, buf gpu.BufferID, offset, size uint64) (gpu.AccelID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.buffers[buf]
	if !ok {
		return 0, fmt.Errorf("noop: acceleration structure on unknown buffer %d", buf)
	}
	if offset+size > b.desc.Size {
		return 0, fmt.Errorf("noop: acceleration structure [%d,%d) outside buffer %q", offset, offset+size, b.desc.Label)
	}
	id := gpu.AccelID(d.id())
	d.accels[id] = &accel{kind: kind, buffer: buf, offset: offset, size: size, address: b.address + offset}
	return id, nil
}

func (d *Device) AccelAddress(id gpu.AccelID) uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if a, ok := d.accels[id]; ok {
		return a.address
	}
	return 0
}

func (d *Device) DestroyAccel(id gpu.AccelID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.accels, id)
	d.destroyed("accel", uint64(id))
}

func (d *Device) CreateSemaphore() (gpu.SemaphoreID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := gpu.SemaphoreID(d.id())
	d.semaphores[id] = false
	return id, nil
}

func (d *Device) DestroySemaphore(id gpu.SemaphoreID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.semaphores, id)
	d.destroyed("semaphore", uint64(id))
}

func (d *Device) CreateFence(signaled bool) (gpu.FenceID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := gpu.FenceID(d.id())
	d.fences[id] = signaled
	return id, nil
}

func (d *Device) DestroyFence(id gpu.FenceID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.fences, id)
	d.destroyed("fence", uint64(id))
}

// WaitFence never blocks: work completes at submission, so an unsignaled fence
// can only mean nothing was submitted.
func (d *Device) WaitFence(id gpu.FenceID, timeout time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	signaled, ok := d.fences[id]
	if !ok {
		return fmt.Errorf("noop: wait on unknown fence %d", id)
	}
	if !signaled {
		return gpu.ErrTimeout
	}
	return nil
}

func (d *Device) ResetFence(id gpu.FenceID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.fences[id]; !ok {
		return fmt.Errorf("noop: reset of unknown fence %d", id)
	}
	d.fences[id] = false
	return nil
}

func (d *Device) AllocateCommandBuffers(count uint32) ([]gpu.CommandBuffer, error) {
	out := make([]gpu.CommandBuffer, count)
	for i := range out {
		out[i] = &CommandBuffer{}
	}
	return out, nil
}

func (d *Device) FreeCommandBuffers(buffers []gpu.CommandBuffer) {
	for _, cb := range buffers {
		if c, ok := cb.(*CommandBuffer); ok {
			c.state = commandBufferNotAllocated
		}
	}
}

func (d *Device) BeginSingleUse() (gpu.CommandBuffer, error) {
	cb := &CommandBuffer{}
	if err := cb.Begin(); err != nil {
		return nil, err
	}
	return cb, nil
}

func (d *Device) EndSingleUse(cb gpu.CommandBuffer) error {
	c, ok := cb.(*CommandBuffer)
	if !ok {
		return fmt.Errorf("noop: foreign command buffer %T", cb)
	}
	if err := c.End(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Stats.SingleUse++
	d.execute(c)
	return nil
}

func (d *Device) Submit(cb gpu.CommandBuffer, wait gpu.SemaphoreID, waitStage gpu.PipelineStage, signal gpu.SemaphoreID, fence gpu.FenceID) error {
	c, ok := cb.(*CommandBuffer)
	if !ok {
		return fmt.Errorf("noop: foreign command buffer %T", cb)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	call := d.Stats.Submits
	d.Stats.Submits++
	if fault := d.SubmitFaults[call]; fault != nil {
		return fault
	}
	if c.state != commandBufferRecordingEnded {
		return fmt.Errorf("noop: submit of command buffer in state %d", c.state)
	}
	if wait != 0 {
		if !d.semaphores[wait] {
			return fmt.Errorf("noop: submit waits on unsignaled semaphore %d", wait)
		}
		d.semaphores[wait] = false
	}
	d.execute(c)
	if signal != 0 {
		d.semaphores[signal] = true
	}
	if fence != 0 {
		d.fences[fence] = true
	}
	c.state = commandBufferSubmitted
	return nil
}

// execute applies the recorded commands to the tracked device state. Caller holds mu.
func (d *Device) execute(c *CommandBuffer) {
	for _, cmd := range c.commands {
		d.Stats.Ops[cmd.Op]++
		switch cmd.Op {
		case OpBarrier:
			for _, b := range cmd.Images {
				img, ok := d.images[b.Image]
				if !ok {
					continue
				}
				if b.OldLayout != gpu.ImageLayoutUndefined && b.OldLayout != img.layout {
					d.Stats.LayoutMismatches++
				}
				img.layout = b.NewLayout
			}
		case OpBuildAccel:
			for _, build := range cmd.Builds {
				if a, ok := d.accels[build.Destination]; ok {
					a.built++
					d.Stats.AccelBuilds++
				}
			}
		case OpCopyImageToBuffer, OpCopyBufferToImage, OpCopyImage, OpClear:
			// contents are not simulated
		}
	}
	d.LastSubmitted = append(d.LastSubmitted[:0], c.commands...)
}

func (d *Device) WaitIdle() error { return nil }

func (d *Device) Destroy() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.destroyed("device", 0)
}
