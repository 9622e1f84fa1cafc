// Package vulkan implements the gpu interfaces on top of Vulkan 1.2 with the
// KHR ray tracing extensions.
package vulkan

import (
	"fmt"
	"runtime"
	"unsafe"

	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"

	"github.com/tigrazone/gkNextRenderer/engine/core"
	"github.com/tigrazone/gkNextRenderer/engine/renderer/gpu"
)

const validationLayer = "VK_LAYER_KHRONOS_validation"

// Window is the presentation surface provider. *glfw.Window satisfies it.
type Window interface {
	GetRequiredInstanceExtensions() []string
	CreateWindowSurface(instance interface{}, allocator unsafe.Pointer) (uintptr, error)
	GetFramebufferSize() (int, int)
}

type InstanceOptions struct {
	ApplicationName string
	Validation      bool
}

type physicalDevice struct {
	handle     vk.PhysicalDevice
	info       gpu.PhysicalDeviceInfo
	properties vk.PhysicalDeviceProperties
	memory     vk.PhysicalDeviceMemoryProperties
	queue      uint32
	extensions map[string]bool
}

// Instance owns the Vulkan instance and the window surface.
type Instance struct {
	window     Window
	procAddr   unsafe.Pointer
	handle     vk.Instance
	surface    vk.Surface
	debug      vk.DebugReportCallback
	validation bool
	devices    []*physicalDevice
}

// NewInstance loads Vulkan through glfw, creates the instance and the surface of window.
func NewInstance(window Window, opts InstanceOptions) (*Instance, error) {
	procAddr := glfw.GetVulkanGetInstanceProcAddress()
	if procAddr == nil {
		return nil, fmt.Errorf("GetInstanceProcAddress is nil")
	}
	vk.SetGetInstanceProcAddr(procAddr)
	if err := vk.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize vk: %w", err)
	}

	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(vk.MakeVersion(1, 2, 0)),
		ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
		PApplicationName:   safeString(opts.ApplicationName),
		PEngineName:        safeString("gkNextRenderer"),
	}
	createInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: appInfo,
	}

	extensions := window.GetRequiredInstanceExtensions()
	if runtime.GOOS == "darwin" {
		extensions = append(extensions, "VK_KHR_portability_enumeration", "VK_KHR_get_physical_device_properties2")
		createInfo.Flags |= 1
	}

	var layers []string
	if opts.Validation {
		ok, err := layerAvailable(validationLayer)
		if err != nil {
			return nil, err
		}
		if ok {
			layers = append(layers, validationLayer)
			extensions = append(extensions, vk.ExtDebugReportExtensionName)
		} else {
			core.LogWarn("validation layer %s is missing, continuing without it", validationLayer)
		}
	}
	for _, e := range extensions {
		core.LogDebug("instance extension %s", e)
	}

	createInfo.EnabledExtensionCount = uint32(len(extensions))
	createInfo.PpEnabledExtensionNames = safeStrings(extensions)
	createInfo.EnabledLayerCount = uint32(len(layers))
	createInfo.PpEnabledLayerNames = safeStrings(layers)

	inst := &Instance{window: window, procAddr: procAddr, validation: len(layers) > 0}
	if err := resultError(vk.CreateInstance(&createInfo, nil, &inst.handle), "vkCreateInstance"); err != nil {
		return nil, err
	}
	if err := vk.InitInstance(inst.handle); err != nil {
		vk.DestroyInstance(inst.handle, nil)
		return nil, err
	}
	core.LogInfo("Vulkan instance created")

	if inst.validation {
		debugInfo := vk.DebugReportCallbackCreateInfo{
			SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
			Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit | vk.DebugReportPerformanceWarningBit),
			PfnCallback: debugCallback,
		}
		if err := resultError(vk.CreateDebugReportCallback(inst.handle, &debugInfo, nil, &inst.debug), "vkCreateDebugReportCallback"); err != nil {
			core.LogWarn("%s", err)
		}
	}

	surface, err := window.CreateWindowSurface(inst.handle, nil)
	if err != nil {
		inst.Destroy()
		return nil, fmt.Errorf("vulkan surface creation failed: %w", err)
	}
	inst.surface = vk.SurfaceFromPointer(surface)
	return inst, nil
}

func layerAvailable(name string) (bool, error) {
	var count uint32
	if err := resultError(vk.EnumerateInstanceLayerProperties(&count, nil), "vkEnumerateInstanceLayerProperties"); err != nil {
		return false, err
	}
	layers := make([]vk.LayerProperties, count)
	if err := resultError(vk.EnumerateInstanceLayerProperties(&count, layers), "vkEnumerateInstanceLayerProperties"); err != nil {
		return false, err
	}
	for i := range layers {
		layers[i].Deref()
		if cString(layers[i].LayerName[:]) == name {
			return true, nil
		}
	}
	return false, nil
}

func debugCallback(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType, object uint64, location uint64,
	messageCode int32, pLayerPrefix string, pMessage string, pUserData unsafe.Pointer) vk.Bool32 {
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		core.LogError("[%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit|vk.DebugReportPerformanceWarningBit) != 0:
		core.LogWarn("[%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	default:
		core.LogDebug("[%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	}
	return vk.Bool32(vk.False)
}

// PhysicalDevices enumerates every device with its queue and extension support.
func (inst *Instance) PhysicalDevices() ([]gpu.PhysicalDeviceInfo, error) {
	var count uint32
	if err := resultError(vk.EnumeratePhysicalDevices(inst.handle, &count, nil), "vkEnumeratePhysicalDevices"); err != nil {
		return nil, err
	}
	handles := make([]vk.PhysicalDevice, count)
	if err := resultError(vk.EnumeratePhysicalDevices(inst.handle, &count, handles), "vkEnumeratePhysicalDevices"); err != nil {
		return nil, err
	}

	inst.devices = inst.devices[:0]
	infos := make([]gpu.PhysicalDeviceInfo, 0, count)
	for i, h := range handles {
		pd, err := inst.describe(i, h)
		if err != nil {
			return nil, err
		}
		inst.devices = append(inst.devices, pd)
		infos = append(infos, pd.info)
	}
	return infos, nil
}

func (inst *Instance) describe(index int, h vk.PhysicalDevice) (*physicalDevice, error) {
	pd := &physicalDevice{handle: h, extensions: make(map[string]bool)}
	vk.GetPhysicalDeviceProperties(h, &pd.properties)
	pd.properties.Deref()
	vk.GetPhysicalDeviceMemoryProperties(h, &pd.memory)
	pd.memory.Deref()

	pd.info = gpu.PhysicalDeviceInfo{
		Index: index,
		ID:    pd.properties.DeviceID,
		Name:  cString(pd.properties.DeviceName[:]),
		Type:  fromDeviceType(pd.properties.DeviceType),
	}

	var familyCount uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(h, &familyCount, nil)
	families := make([]vk.QueueFamilyProperties, familyCount)
	vk.GetPhysicalDeviceQueueFamilyProperties(h, &familyCount, families)

	// One queue family must do graphics, compute and present.
	for i := range families {
		families[i].Deref()
		flags := vk.QueueFlagBits(families[i].QueueFlags)
		graphics := flags&vk.QueueGraphicsBit != 0
		compute := flags&vk.QueueComputeBit != 0
		var present vk.Bool32
		if err := resultError(vk.GetPhysicalDeviceSurfaceSupport(h, uint32(i), inst.surface, &present), "vkGetPhysicalDeviceSurfaceSupport"); err != nil {
			return nil, err
		}
		if graphics && compute && present == vk.True {
			pd.queue = uint32(i)
			pd.info.Graphics, pd.info.Compute, pd.info.Present = true, true, true
			break
		}
		pd.info.Graphics = pd.info.Graphics || graphics
		pd.info.Compute = pd.info.Compute || compute
	}

	var extCount uint32
	if err := resultError(vk.EnumerateDeviceExtensionProperties(h, "", &extCount, nil), "vkEnumerateDeviceExtensionProperties"); err != nil {
		return nil, err
	}
	exts := make([]vk.ExtensionProperties, extCount)
	if err := resultError(vk.EnumerateDeviceExtensionProperties(h, "", &extCount, exts), "vkEnumerateDeviceExtensionProperties"); err != nil {
		return nil, err
	}
	for i := range exts {
		exts[i].Deref()
		pd.extensions[cString(exts[i].ExtensionName[:])] = true
	}
	if !pd.extensions[vk.KhrSwapchainExtensionName] {
		pd.info.Present = false
	}
	pd.info.RayTracing = true
	for _, e := range rayTracingExtensions {
		if !pd.extensions[e] {
			pd.info.RayTracing = false
			break
		}
	}

	core.LogDebug("device %d %q type=%s graphics=%t present=%t compute=%t raytracing=%t",
		index, pd.info.Name, pd.info.Type, pd.info.Graphics, pd.info.Present, pd.info.Compute, pd.info.RayTracing)
	return pd, nil
}

// Open creates the logical device on the physical device at index.
func (inst *Instance) Open(index int, opts gpu.OpenOptions) (gpu.Device, error) {
	if index < 0 || index >= len(inst.devices) {
		return nil, fmt.Errorf("physical device index %d out of range", index)
	}
	pd := inst.devices[index]
	if opts.RayTracing && !pd.info.RayTracing {
		return nil, fmt.Errorf("%w: %s has no ray tracing support", gpu.ErrUnsupported, pd.info.Name)
	}
	return openDevice(inst, pd, opts)
}

func (inst *Instance) framebufferSize() gpu.Extent2D {
	w, h := inst.window.GetFramebufferSize()
	if w < 0 || h < 0 {
		return gpu.Extent2D{}
	}
	return gpu.Extent2D{Width: uint32(w), Height: uint32(h)}
}

func (inst *Instance) Destroy() {
	if inst.surface != nil {
		vk.DestroySurface(inst.handle, inst.surface, nil)
		inst.surface = nil
	}
	if inst.debug != nil {
		vk.DestroyDebugReportCallback(inst.handle, inst.debug, nil)
		inst.debug = nil
	}
	if inst.handle != nil {
		vk.DestroyInstance(inst.handle, nil)
		inst.handle = nil
	}
	core.LogInfo("Vulkan instance destroyed")
}
