// Package sbt lays out the shader binding table consumed by ray dispatches.
package sbt

import (
	"errors"
	"fmt"

	"github.com/tigrazone/gkNextRenderer/engine/core"
	"github.com/tigrazone/gkNextRenderer/engine/renderer/gpu"
	"github.com/tigrazone/gkNextRenderer/engine/renderer/resource"
)

// MaxInlineDataSize bounds the per-entry payload stored after the group handle.
const MaxInlineDataSize = 32

var (
	ErrRayGenCount     = errors.New("shader binding table needs exactly one ray generation entry")
	ErrInlineDataSize  = fmt.Errorf("inline data exceeds %d bytes", MaxInlineDataSize)
	ErrGroupIndexRange = errors.New("shader group index out of range")
)

// Entry selects a shader group and the data stored after its handle.
type Entry struct {
	GroupIndex uint32
	InlineData []byte
}

// Region is one contiguous group of entries inside the table.
type Region struct {
	Offset    uint64
	Count     uint64
	EntrySize uint64
	Stride    uint64
	Size      uint64
}

// Layout is the byte layout of a table, independent of any device buffer.
type Layout struct {
	RayGen Region
	Miss   Region
	Hit    Region
	Size   uint64
}

func entrySize(handleSize uint32, entries []Entry) uint64 {
	max := 0
	for _, e := range entries {
		if len(e.InlineData) > max {
			max = len(e.InlineData)
		}
	}
	return uint64(handleSize) + uint64(max)
}

// ComputeLayout validates the entries and places the ray-gen, miss and hit
// regions back to back, each entry padded to the group base alignment.
func ComputeLayout(props gpu.RayTracingProperties, groupCount uint32, rayGen, miss, hit []Entry) (Layout, error) {
	if len(rayGen) != 1 {
		return Layout{}, fmt.Errorf("%w: got %d", ErrRayGenCount, len(rayGen))
	}
	for _, group := range [][]Entry{rayGen, miss, hit} {
		for _, e := range group {
			if len(e.InlineData) > MaxInlineDataSize {
				return Layout{}, fmt.Errorf("%w: group %d has %d bytes", ErrInlineDataSize, e.GroupIndex, len(e.InlineData))
			}
			if e.GroupIndex >= groupCount {
				return Layout{}, fmt.Errorf("%w: %d of %d", ErrGroupIndexRange, e.GroupIndex, groupCount)
			}
		}
	}

	align := uint64(props.ShaderGroupBaseAlignment)
	var layout Layout
	offset := uint64(0)
	for _, r := range []struct {
		region  *Region
		entries []Entry
	}{
		{&layout.RayGen, rayGen},
		{&layout.Miss, miss},
		{&layout.Hit, hit},
	} {
		size := entrySize(props.ShaderGroupHandleSize, r.entries)
		stride := gpu.AlignUp(size, align)
		*r.region = Region{
			Offset:    offset,
			Count:     uint64(len(r.entries)),
			EntrySize: size,
			Stride:    stride,
			Size:      uint64(len(r.entries)) * stride,
		}
		offset += r.region.Size
	}
	layout.Size = offset
	return layout, nil
}

// Table is a host-visible, device-addressable shader binding table.
type Table struct {
	Layout Layout
	Buffer *resource.Buffer

	address uint64
}

// New fetches the group handles of pipeline and writes every entry into a new buffer.
func New(device gpu.Device, arena *resource.Arena, pipeline gpu.PipelineID, groupCount uint32, rayGen, miss, hit []Entry) (*Table, error) {
	props := device.RayTracingProperties()
	layout, err := ComputeLayout(props, groupCount, rayGen, miss, hit)
	if err != nil {
		err = fmt.Errorf("%w: %w", core.ErrShaderBindingTable, err)
		core.LogError("%s", err)
		return nil, err
	}

	handles, err := device.ShaderGroupHandles(pipeline, 0, groupCount)
	if err != nil {
		err = fmt.Errorf("%w: failed to get shader group handles: %w", core.ErrShaderBindingTable, err)
		core.LogError("%s", err)
		return nil, err
	}

	handleSize := uint64(props.ShaderGroupHandleSize)
	data := make([]byte, layout.Size)
	write := func(region Region, entries []Entry) {
		for i, e := range entries {
			at := region.Offset + uint64(i)*region.Stride
			src := uint64(e.GroupIndex) * handleSize
			copy(data[at:at+handleSize], handles[src:src+handleSize])
			copy(data[at+handleSize:], e.InlineData)
		}
	}
	write(layout.RayGen, rayGen)
	write(layout.Miss, miss)
	write(layout.Hit, hit)

	buffer, err := resource.NewBufferWithData(device, arena, "shader-binding-table",
		gpu.BufferUsageShaderBinding|gpu.BufferUsageDeviceAddress|gpu.BufferUsageTransferSrc, data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrShaderBindingTable, err)
	}
	return &Table{Layout: layout, Buffer: buffer, address: buffer.Address()}, nil
}

func (t *Table) region(r Region) gpu.StridedRegion {
	if r.Count == 0 {
		return gpu.StridedRegion{}
	}
	return gpu.StridedRegion{Address: t.address + r.Offset, Stride: r.Stride, Size: r.Size}
}

func (t *Table) RayGen() gpu.StridedRegion { return t.region(t.Layout.RayGen) }
func (t *Table) Miss() gpu.StridedRegion   { return t.region(t.Layout.Miss) }
func (t *Table) Hit() gpu.StridedRegion    { return t.region(t.Layout.Hit) }

// Callable is always empty; no callable shaders are used.
func (t *Table) Callable() gpu.StridedRegion { return gpu.StridedRegion{} }
