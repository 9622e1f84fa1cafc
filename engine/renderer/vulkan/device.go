package vulkan

import (
	"fmt"
	"sync"
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/tigrazone/gkNextRenderer/engine/core"
	"github.com/tigrazone/gkNextRenderer/engine/renderer/gpu"
)

// table maps backend ids onto native handles. Id 0 is never issued.
type table[T any] struct {
	mu    sync.Mutex
	next  uint64
	items map[uint64]T
}

func newTable[T any]() *table[T] {
	return &table[T]{items: make(map[uint64]T)}
}

func (t *table[T]) add(v T) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.next++
	t.items[t.next] = v
	return t.next
}

func (t *table[T]) get(id uint64) (T, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.items[id]
	return v, ok
}

func (t *table[T]) remove(id uint64) (T, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.items[id]
	delete(t.items, id)
	return v, ok
}

type image struct {
	handle vk.Image
	format vk.Format
}

type buffer struct {
	handle  vk.Buffer
	memory  vk.DeviceMemory
	size    uint64
	mapped  unsafe.Pointer
	address uint64
}

type swapchain struct {
	handle vk.Swapchain
	images []uint64
	views  []uint64
}

// Device is a logical device with a single graphics, compute and present queue.
type Device struct {
	instance *Instance
	physical *physicalDevice
	handle   vk.Device
	queue    vk.Queue
	family   uint32
	pool     vk.CommandPool
	locks    *lockPool
	rt       *rayTracing
	rtProps  gpu.RayTracingProperties

	images     *table[image]
	memories   *table[vk.DeviceMemory]
	views      *table[vk.ImageView]
	buffers    *table[*buffer]
	modules    *table[vk.ShaderModule]
	setLayouts *table[vk.DescriptorSetLayout]
	descPools  *table[vk.DescriptorPool]
	sets       *table[vk.DescriptorSet]
	layouts    *table[vk.PipelineLayout]
	pipelines  *table[vk.Pipeline]
	accels     *table[accelHandle]
	semaphores *table[vk.Semaphore]
	fences     *table[vk.Fence]
	swapchains *table[*swapchain]
}

var _ gpu.Device = (*Device)(nil)

func openDevice(inst *Instance, pd *physicalDevice, opts gpu.OpenOptions) (*Device, error) {
	core.LogInfo("Creating logical device on %s...", pd.info.Name)

	extensions := []string{vk.KhrSwapchainExtensionName}
	if pd.extensions["VK_KHR_portability_subset"] {
		core.LogInfo("Adding required extension 'VK_KHR_portability_subset'.")
		extensions = append(extensions, "VK_KHR_portability_subset")
	}
	if opts.RayTracing {
		extensions = append(extensions, rayTracingExtensions...)
	}

	chain, free := featureChain(opts.RayTracing)
	defer free()

	queueInfo := []vk.DeviceQueueCreateInfo{{
		SType:            vk.StructureTypeDeviceQueueCreateInfo,
		QueueFamilyIndex: pd.queue,
		QueueCount:       1,
		PQueuePriorities: []float32{1.0},
	}}
	createInfo := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		PNext:                   chain,
		QueueCreateInfoCount:    uint32(len(queueInfo)),
		PQueueCreateInfos:       queueInfo,
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: safeStrings(extensions),
	}

	d := &Device{
		instance:   inst,
		physical:   pd,
		family:     pd.queue,
		locks:      newLockPool(),
		images:     newTable[image](),
		memories:   newTable[vk.DeviceMemory](),
		views:      newTable[vk.ImageView](),
		buffers:    newTable[*buffer](),
		modules:    newTable[vk.ShaderModule](),
		setLayouts: newTable[vk.DescriptorSetLayout](),
		descPools:  newTable[vk.DescriptorPool](),
		sets:       newTable[vk.DescriptorSet](),
		layouts:    newTable[vk.PipelineLayout](),
		pipelines:  newTable[vk.Pipeline](),
		accels:     newTable[accelHandle](),
		semaphores: newTable[vk.Semaphore](),
		fences:     newTable[vk.Fence](),
		swapchains: newTable[*swapchain](),
	}
	if err := resultError(vk.CreateDevice(pd.handle, &createInfo, nil, &d.handle), "vkCreateDevice"); err != nil {
		return nil, err
	}
	core.LogInfo("Logical device created.")

	vk.GetDeviceQueue(d.handle, d.family, 0, &d.queue)

	poolInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: d.family,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}
	if err := resultError(vk.CreateCommandPool(d.handle, &poolInfo, nil, &d.pool), "vkCreateCommandPool"); err != nil {
		vk.DestroyDevice(d.handle, nil)
		return nil, err
	}

	rt, err := loadRayTracing(inst.procAddr, inst.handle, d.handle, opts.RayTracing)
	if err != nil {
		vk.DestroyCommandPool(d.handle, d.pool, nil)
		vk.DestroyDevice(d.handle, nil)
		return nil, err
	}
	d.rt = rt
	if rt.enabled {
		d.rtProps = queryRayTracingProperties(inst.procAddr, inst.handle, pd.handle)
		core.LogInfo("ray tracing enabled: handle size %d, base alignment %d, max recursion %d",
			d.rtProps.ShaderGroupHandleSize, d.rtProps.ShaderGroupBaseAlignment, d.rtProps.MaxRayRecursionDepth)
	}
	return d, nil
}

func (d *Device) Info() gpu.PhysicalDeviceInfo { return d.physical.info }

func (d *Device) RayTracingEnabled() bool { return d.rt.enabled }

func (d *Device) RayTracingProperties() gpu.RayTracingProperties { return d.rtProps }

func (d *Device) SurfaceExtent() gpu.Extent2D { return d.instance.framebufferSize() }

// memoryIndex returns the first memory type allowed by typeFilter with all of properties.
func (d *Device) memoryIndex(typeFilter uint32, properties vk.MemoryPropertyFlagBits) (uint32, error) {
	mem := d.physical.memory
	for i := uint32(0); i < mem.MemoryTypeCount; i++ {
		mem.MemoryTypes[i].Deref()
		flags := vk.MemoryPropertyFlagBits(mem.MemoryTypes[i].PropertyFlags)
		if typeFilter&(1<<i) != 0 && flags&properties == properties {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: no memory type with properties %#x", gpu.ErrOutOfMemory, uint32(properties))
}

func (d *Device) allocate(req vk.MemoryRequirements, properties vk.MemoryPropertyFlagBits, deviceAddress bool) (vk.DeviceMemory, error) {
	req.Deref()
	index, err := d.memoryIndex(req.MemoryTypeBits, properties)
	if err != nil {
		return nil, err
	}
	mem, res := d.rt.allocate(d.handle, uint64(req.Size), index, deviceAddress)
	if err := resultError(res, "vkAllocateMemory"); err != nil {
		return nil, err
	}
	return mem, nil
}

func (d *Device) CreateImage(desc gpu.ImageDesc) (gpu.ImageID, gpu.MemoryID, error) {
	info := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Format:    toFormat(desc.Format),
		Extent: vk.Extent3D{
			Width:  desc.Extent.Width,
			Height: desc.Extent.Height,
			Depth:  1,
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Samples:       vk.SampleCount1Bit,
		Tiling:        vk.ImageTilingOptimal,
		Usage:         toImageUsage(desc.Usage),
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}
	var handle vk.Image
	if err := resultError(vk.CreateImage(d.handle, &info, nil, &handle), "vkCreateImage "+desc.Label); err != nil {
		return 0, 0, err
	}
	var req vk.MemoryRequirements
	vk.GetImageMemoryRequirements(d.handle, handle, &req)
	mem, err := d.allocate(req, vk.MemoryPropertyDeviceLocalBit, false)
	if err != nil {
		vk.DestroyImage(d.handle, handle, nil)
		return 0, 0, err
	}
	if err := resultError(vk.BindImageMemory(d.handle, handle, mem, 0), "vkBindImageMemory"); err != nil {
		vk.FreeMemory(d.handle, mem, nil)
		vk.DestroyImage(d.handle, handle, nil)
		return 0, 0, err
	}
	return gpu.ImageID(d.images.add(image{handle: handle, format: info.Format})), gpu.MemoryID(d.memories.add(mem)), nil
}

func (d *Device) DestroyImage(id gpu.ImageID) {
	if img, ok := d.images.remove(uint64(id)); ok {
		vk.DestroyImage(d.handle, img.handle, nil)
	}
}

func (d *Device) FreeMemory(id gpu.MemoryID) {
	if mem, ok := d.memories.remove(uint64(id)); ok {
		vk.FreeMemory(d.handle, mem, nil)
	}
}

func (d *Device) createView(handle vk.Image, format vk.Format) (vk.ImageView, error) {
	info := vk.ImageViewCreateInfo{
		SType:            vk.StructureTypeImageViewCreateInfo,
		Image:            handle,
		ViewType:         vk.ImageViewType2d,
		Format:           format,
		SubresourceRange: colorSubresource,
	}
	var view vk.ImageView
	if err := resultError(vk.CreateImageView(d.handle, &info, nil, &view), "vkCreateImageView"); err != nil {
		return nil, err
	}
	return view, nil
}

func (d *Device) CreateImageView(id gpu.ImageID, format gpu.Format) (gpu.ViewID, error) {
	img, ok := d.images.get(uint64(id))
	if !ok {
		return 0, fmt.Errorf("unknown image %d", id)
	}
	view, err := d.createView(img.handle, toFormat(format))
	if err != nil {
		return 0, err
	}
	return gpu.ViewID(d.views.add(view)), nil
}

func (d *Device) DestroyImageView(id gpu.ViewID) {
	if view, ok := d.views.remove(uint64(id)); ok {
		vk.DestroyImageView(d.handle, view, nil)
	}
}

func (d *Device) CreateBuffer(desc gpu.BufferDesc) (gpu.BufferID, gpu.MemoryID, error) {
	usage := desc.Usage
	deviceAddress := usage&(gpu.BufferUsageDeviceAddress|gpu.BufferUsageAccelStorage|gpu.BufferUsageAccelInput|gpu.BufferUsageShaderBinding) != 0
	if deviceAddress {
		usage |= gpu.BufferUsageDeviceAddress
	}
	info := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(desc.Size),
		Usage:       toBufferUsage(usage),
		SharingMode: vk.SharingModeExclusive,
	}
	b := &buffer{size: desc.Size}
	if err := resultError(vk.CreateBuffer(d.handle, &info, nil, &b.handle), "vkCreateBuffer "+desc.Label); err != nil {
		return 0, 0, err
	}
	var req vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(d.handle, b.handle, &req)
	mem, err := d.allocate(req, toMemoryProperty(desc.Memory), deviceAddress)
	if err != nil {
		vk.DestroyBuffer(d.handle, b.handle, nil)
		return 0, 0, err
	}
	b.memory = mem
	if err := resultError(vk.BindBufferMemory(d.handle, b.handle, mem, 0), "vkBindBufferMemory"); err != nil {
		vk.FreeMemory(d.handle, mem, nil)
		vk.DestroyBuffer(d.handle, b.handle, nil)
		return 0, 0, err
	}
	if desc.Memory&gpu.MemoryHostVisible != 0 {
		if err := resultError(vk.MapMemory(d.handle, mem, 0, vk.DeviceSize(desc.Size), 0, &b.mapped), "vkMapMemory"); err != nil {
			vk.FreeMemory(d.handle, mem, nil)
			vk.DestroyBuffer(d.handle, b.handle, nil)
			return 0, 0, err
		}
	}
	if deviceAddress {
		b.address = d.rt.bufferAddress(d.handle, b.handle)
	}
	return gpu.BufferID(d.buffers.add(b)), gpu.MemoryID(d.memories.add(mem)), nil
}

func (d *Device) DestroyBuffer(id gpu.BufferID) {
	b, ok := d.buffers.remove(uint64(id))
	if !ok {
		return
	}
	if b.mapped != nil {
		vk.UnmapMemory(d.handle, b.memory)
		b.mapped = nil
	}
	vk.DestroyBuffer(d.handle, b.handle, nil)
}

func (d *Device) mappedBuffer(id gpu.BufferID, offset, size uint64) (*buffer, error) {
	b, ok := d.buffers.get(uint64(id))
	if !ok {
		return nil, fmt.Errorf("unknown buffer %d", id)
	}
	if b.mapped == nil {
		return nil, fmt.Errorf("buffer %d is not host visible", id)
	}
	if offset+size > b.size {
		return nil, fmt.Errorf("range [%d, %d) exceeds buffer %d of size %d", offset, offset+size, id, b.size)
	}
	return b, nil
}

func (d *Device) WriteBuffer(id gpu.BufferID, offset uint64, data []byte) error {
	b, err := d.mappedBuffer(id, offset, uint64(len(data)))
	if err != nil {
		return err
	}
	dst := unsafe.Slice((*byte)(unsafe.Add(b.mapped, offset)), len(data))
	copy(dst, data)
	return nil
}

func (d *Device) ReadBuffer(id gpu.BufferID, offset, size uint64) ([]byte, error) {
	b, err := d.mappedBuffer(id, offset, size)
	if err != nil {
		return nil, err
	}
	out := make([]byte, size)
	copy(out, unsafe.Slice((*byte)(unsafe.Add(b.mapped, offset)), size))
	return out, nil
}

func (d *Device) BufferAddress(id gpu.BufferID) uint64 {
	if b, ok := d.buffers.get(uint64(id)); ok {
		return b.address
	}
	return 0
}

func (d *Device) AccelBuildSizes(kind gpu.AccelKind, geometries []gpu.AccelGeometry) (gpu.AccelBuildSizes, error) {
	if !d.rt.enabled {
		return gpu.AccelBuildSizes{}, gpu.ErrUnsupported
	}
	return d.rt.buildSizes(d.handle, kind, geometries), nil
}

func (d *Device) CreateAccel(kind gpu.AccelKind, id gpu.BufferID, offset, size uint64) (gpu.AccelID, error) {
	if !d.rt.enabled {
		return 0, gpu.ErrUnsupported
	}
	b, ok := d.buffers.get(uint64(id))
	if !ok {
		return 0, fmt.Errorf("unknown buffer %d", id)
	}
	accel, res := d.rt.createAccel(d.handle, kind, b.handle, offset, size)
	if err := resultError(res, "vkCreateAccelerationStructureKHR"); err != nil {
		return 0, err
	}
	return gpu.AccelID(d.accels.add(accel)), nil
}

func (d *Device) AccelAddress(id gpu.AccelID) uint64 {
	accel, ok := d.accels.get(uint64(id))
	if !ok {
		return 0
	}
	return d.rt.accelAddress(d.handle, accel)
}

func (d *Device) DestroyAccel(id gpu.AccelID) {
	if accel, ok := d.accels.remove(uint64(id)); ok {
		d.rt.destroyAccel(d.handle, accel)
	}
}

func (d *Device) WaitIdle() error {
	return resultError(vk.DeviceWaitIdle(d.handle), "vkDeviceWaitIdle")
}

// Destroy releases the command pool and the logical device. Every other
// object must have been destroyed by its owner before.
func (d *Device) Destroy() {
	if d.handle == nil {
		return
	}
	vk.DeviceWaitIdle(d.handle)
	core.LogInfo("Destroying command pools...")
	vk.DestroyCommandPool(d.handle, d.pool, nil)
	d.rt.release()
	core.LogInfo("Destroying logical device...")
	vk.DestroyDevice(d.handle, nil)
	d.handle = nil
}
