package gpu

// Resource handles
//
// Backends keep their own mapping between these ids and native objects.
// The zero value is the null handle.

type ImageID uint64
type MemoryID uint64
type ViewID uint64
type BufferID uint64
type ShaderModuleID uint64
type DescriptorSetLayoutID uint64
type DescriptorPoolID uint64
type DescriptorSetID uint64
type PipelineLayoutID uint64
type PipelineID uint64
type AccelID uint64
type SemaphoreID uint64
type FenceID uint64

// Extent2D is a width/height pair in pixels.
type Extent2D struct {
	Width  uint32
	Height uint32
}

func (e Extent2D) IsZero() bool {
	return e.Width == 0 || e.Height == 0
}

type Format uint32

const (
	FormatUndefined Format = iota
	FormatR32Uint
	FormatRG16Sfloat
	FormatRGBA16Sfloat
	FormatRGBA32Sfloat
	FormatRGBA8Unorm
	FormatBGRA8Unorm
	FormatBGRA8Srgb
)

var formatNames = map[Format]string{
	FormatUndefined:    "UNDEFINED",
	FormatR32Uint:      "R32_UINT",
	FormatRG16Sfloat:   "R16G16_SFLOAT",
	FormatRGBA16Sfloat: "R16G16B16A16_SFLOAT",
	FormatRGBA32Sfloat: "R32G32B32A32_SFLOAT",
	FormatRGBA8Unorm:   "R8G8B8A8_UNORM",
	FormatBGRA8Unorm:   "B8G8R8A8_UNORM",
	FormatBGRA8Srgb:    "B8G8R8A8_SRGB",
}

func (f Format) String() string {
	if n, ok := formatNames[f]; ok {
		return n
	}
	return "UNKNOWN"
}

type ImageLayout uint32

const (
	ImageLayoutUndefined ImageLayout = iota
	ImageLayoutGeneral
	ImageLayoutTransferSrc
	ImageLayoutTransferDst
	ImageLayoutPresentSrc
)

type Access uint32

const (
	AccessNone          Access = 0
	AccessShaderRead    Access = 1 << 0
	AccessShaderWrite   Access = 1 << 1
	AccessTransferRead  Access = 1 << 2
	AccessTransferWrite Access = 1 << 3
	AccessHostWrite     Access = 1 << 4
	AccessAccelRead     Access = 1 << 5
	AccessAccelWrite    Access = 1 << 6
	AccessMemoryRead    Access = 1 << 7
)

type PipelineStage uint32

const (
	PipelineStageTopOfPipe    PipelineStage = 1 << 0
	PipelineStageCompute      PipelineStage = 1 << 1
	PipelineStageRayTracing   PipelineStage = 1 << 2
	PipelineStageTransfer     PipelineStage = 1 << 3
	PipelineStageHost         PipelineStage = 1 << 4
	PipelineStageAccelBuild   PipelineStage = 1 << 5
	PipelineStageBottomOfPipe PipelineStage = 1 << 6
	PipelineStageAllCommands  PipelineStage = 1 << 7
)

type ImageUsage uint32

const (
	ImageUsageStorage     ImageUsage = 1 << 0
	ImageUsageTransferSrc ImageUsage = 1 << 1
	ImageUsageTransferDst ImageUsage = 1 << 2
	ImageUsageSampled     ImageUsage = 1 << 3
	ImageUsageColorTarget ImageUsage = 1 << 4
)

type BufferUsage uint32

const (
	BufferUsageUniform       BufferUsage = 1 << 0
	BufferUsageStorage       BufferUsage = 1 << 1
	BufferUsageTransferSrc   BufferUsage = 1 << 2
	BufferUsageTransferDst   BufferUsage = 1 << 3
	BufferUsageDeviceAddress BufferUsage = 1 << 4
	BufferUsageAccelStorage  BufferUsage = 1 << 5
	BufferUsageAccelInput    BufferUsage = 1 << 6
	BufferUsageShaderBinding BufferUsage = 1 << 7
)

type MemoryProperty uint32

const (
	MemoryDeviceLocal  MemoryProperty = 1 << 0
	MemoryHostVisible  MemoryProperty = 1 << 1
	MemoryHostCoherent MemoryProperty = 1 << 2
)

type ShaderStage uint32

const (
	ShaderStageRayGen       ShaderStage = 1 << 0
	ShaderStageMiss         ShaderStage = 1 << 1
	ShaderStageClosestHit   ShaderStage = 1 << 2
	ShaderStageAnyHit       ShaderStage = 1 << 3
	ShaderStageIntersection ShaderStage = 1 << 4
	ShaderStageCompute      ShaderStage = 1 << 5

	ShaderStageAllRayTracing = ShaderStageRayGen | ShaderStageMiss | ShaderStageClosestHit |
		ShaderStageAnyHit | ShaderStageIntersection
)

type DescriptorType uint32

const (
	DescriptorTypeUniformBuffer DescriptorType = iota
	DescriptorTypeStorageBuffer
	DescriptorTypeStorageImage
	DescriptorTypeAccelerationStructure
)

type BindPoint uint32

const (
	BindPointCompute BindPoint = iota
	BindPointRayTracing
)

// PresentMode values match the renderer's command-line enum.
type PresentMode uint32

const (
	PresentModeImmediate PresentMode = iota
	PresentModeMailbox
	PresentModeFifo
	PresentModeFifoRelaxed
)

func (p PresentMode) String() string {
	switch p {
	case PresentModeImmediate:
		return "Immediate"
	case PresentModeMailbox:
		return "Mailbox"
	case PresentModeFifo:
		return "FIFO"
	case PresentModeFifoRelaxed:
		return "FIFORelaxed"
	}
	return "Unknown"
}

type AccelKind uint32

const (
	AccelBottomLevel AccelKind = iota
	AccelTopLevel
)

type ShaderGroupType uint32

const (
	ShaderGroupGeneral ShaderGroupType = iota
	ShaderGroupTrianglesHit
	ShaderGroupProceduralHit
)

// ShaderUnused marks an empty slot of a shader group.
const ShaderUnused = ^uint32(0)

type PhysicalDeviceType uint32

const (
	PhysicalDeviceOther PhysicalDeviceType = iota
	PhysicalDeviceIntegrated
	PhysicalDeviceDiscrete
	PhysicalDeviceVirtual
	PhysicalDeviceCPU
)

func (t PhysicalDeviceType) String() string {
	switch t {
	case PhysicalDeviceIntegrated:
		return "Integrated"
	case PhysicalDeviceDiscrete:
		return "Discrete"
	case PhysicalDeviceVirtual:
		return "Virtual"
	case PhysicalDeviceCPU:
		return "CPU"
	}
	return "Other"
}

// PhysicalDeviceInfo describes a device candidate before it is opened.
type PhysicalDeviceInfo struct {
	Index      int
	ID         uint32
	Name       string
	Type       PhysicalDeviceType
	Graphics   bool
	Present    bool
	Compute    bool
	RayTracing bool
}

// RayTracingProperties are the device limits the shader binding table depends on.
type RayTracingProperties struct {
	ShaderGroupHandleSize      uint32
	ShaderGroupHandleAlignment uint32
	ShaderGroupBaseAlignment   uint32
	MaxRayRecursionDepth       uint32
}

type ImageDesc struct {
	Label  string
	Extent Extent2D
	Format Format
	Usage  ImageUsage
}

type BufferDesc struct {
	Label  string
	Size   uint64
	Usage  BufferUsage
	Memory MemoryProperty
}

type ImageBarrier struct {
	Image     ImageID
	SrcAccess Access
	DstAccess Access
	OldLayout ImageLayout
	NewLayout ImageLayout
}

type BufferBarrier struct {
	Buffer    BufferID
	SrcAccess Access
	DstAccess Access
	Offset    uint64
	Size      uint64
}

// StridedRegion addresses one shader binding table region.
type StridedRegion struct {
	Address uint64
	Stride  uint64
	Size    uint64
}

type DescriptorBinding struct {
	Binding uint32
	Type    DescriptorType
	Stages  ShaderStage
	Count   uint32
}

// DescriptorWrite binds one resource; exactly one of View, Buffer or Accel is set.
type DescriptorWrite struct {
	Binding uint32
	Type    DescriptorType
	View    ViewID
	Buffer  BufferID
	Range   uint64
	Accel   AccelID
}

type PushConstantRange struct {
	Stages ShaderStage
	Offset uint32
	Size   uint32
}

type ShaderStageDesc struct {
	Stage  ShaderStage
	Module ShaderModuleID
	Entry  string
}

type ComputePipelineDesc struct {
	Label  string
	Layout PipelineLayoutID
	Shader ShaderStageDesc
}

type ShaderGroup struct {
	Type         ShaderGroupType
	General      uint32
	ClosestHit   uint32
	AnyHit       uint32
	Intersection uint32
}

type RayTracingPipelineDesc struct {
	Label             string
	Layout            PipelineLayoutID
	Stages            []ShaderStageDesc
	Groups            []ShaderGroup
	MaxRecursionDepth uint32
}

// AccelGeometry is either a triangle range or an AABB range of device buffers.
type AccelGeometry struct {
	Procedural bool

	VertexAddress uint64
	VertexStride  uint64
	VertexCount   uint32
	IndexAddress  uint64
	IndexCount    uint32
	FirstVertex   uint32

	AABBAddress uint64
	AABBStride  uint64
	AABBCount   uint32

	// Top-level only.
	InstanceAddress uint64
	InstanceCount   uint32

	Opaque bool
}

// PrimitiveCount returns the number of primitives the geometry contributes to a build.
func (g AccelGeometry) PrimitiveCount() uint32 {
	switch {
	case g.InstanceCount > 0:
		return g.InstanceCount
	case g.Procedural:
		return g.AABBCount
	default:
		return g.IndexCount / 3
	}
}

type AccelBuildSizes struct {
	AccelerationStructureSize uint64
	BuildScratchSize          uint64
	UpdateScratchSize         uint64
}

type AccelBuild struct {
	Kind           AccelKind
	Destination    AccelID
	Geometries     []AccelGeometry
	ScratchAddress uint64
}

type SwapchainDesc struct {
	Extent      Extent2D
	PresentMode PresentMode
}

// Swapchain is the set of presentable images of one swap-chain epoch.
type Swapchain struct {
	Handle      uint64
	Extent      Extent2D
	Format      Format
	PresentMode PresentMode
	Images      []ImageID
	Views       []ViewID
}

func (s *Swapchain) ImageCount() uint32 {
	return uint32(len(s.Images))
}
