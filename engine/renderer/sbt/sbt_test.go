package sbt

import (
	"errors"
	"testing"

	"github.com/tigrazone/gkNextRenderer/engine/core"
	"github.com/tigrazone/gkNextRenderer/engine/renderer/gpu"
	"github.com/tigrazone/gkNextRenderer/engine/renderer/noop"
	"github.com/tigrazone/gkNextRenderer/engine/renderer/resource"
)

func entries(groups ...uint32) []Entry {
	out := make([]Entry, len(groups))
	for i, g := range groups {
		out[i] = Entry{GroupIndex: g}
	}
	return out
}

func TestLayoutRegionSizes(t *testing.T) {
	type spec struct {
		props  gpu.RayTracingProperties
		miss   []Entry
		hit    []Entry
		inline int
	}
	specs := []spec{
		{noop.DefaultRayTracingProperties, entries(1), entries(2, 3), 0},
		{noop.DefaultRayTracingProperties, entries(1, 1, 1), entries(2), 16},
		{gpu.RayTracingProperties{ShaderGroupHandleSize: 32, ShaderGroupBaseAlignment: 32}, entries(1), entries(2, 3, 2, 3), 32},
		{gpu.RayTracingProperties{ShaderGroupHandleSize: 16, ShaderGroupBaseAlignment: 128}, nil, entries(2), 7},
	}

	for index, s := range specs {
		if s.inline > 0 {
			s.hit[0].InlineData = make([]byte, s.inline)
		}
		layout, err := ComputeLayout(s.props, 4, entries(0), s.miss, s.hit)
		if err != nil {
			t.Fatalf("[spec %d] unexpected error: %v", index, err)
		}
		if layout.RayGen.Count != 1 {
			t.Fatalf("[spec %d] expected one ray generation entry; got %d", index, layout.RayGen.Count)
		}
		align := uint64(s.props.ShaderGroupBaseAlignment)
		offset := uint64(0)
		for _, r := range []Region{layout.RayGen, layout.Miss, layout.Hit} {
			if r.Size != r.Count*gpu.AlignUp(r.EntrySize, align) {
				t.Fatalf("[spec %d] expected region size %d; got %d", index, r.Count*gpu.AlignUp(r.EntrySize, align), r.Size)
			}
			if r.Stride < r.EntrySize || r.Stride%align != 0 {
				t.Fatalf("[spec %d] stride %d does not cover entry %d at alignment %d", index, r.Stride, r.EntrySize, align)
			}
			if r.Offset != offset {
				t.Fatalf("[spec %d] expected region at %d; got %d", index, offset, r.Offset)
			}
			offset += r.Size
		}
		if layout.Hit.EntrySize != uint64(s.props.ShaderGroupHandleSize)+uint64(s.inline) {
			t.Fatalf("[spec %d] expected hit entry size to include inline data; got %d", index, layout.Hit.EntrySize)
		}
		if layout.Size != offset {
			t.Fatalf("[spec %d] expected total size %d; got %d", index, offset, layout.Size)
		}
	}
}

func TestLayoutErrors(t *testing.T) {
	props := noop.DefaultRayTracingProperties
	type spec struct {
		rayGen []Entry
		hit    []Entry
		exp    error
	}
	specs := []spec{
		{nil, entries(2), ErrRayGenCount},
		{entries(0, 0), entries(2), ErrRayGenCount},
		{entries(0), []Entry{{GroupIndex: 2, InlineData: make([]byte, MaxInlineDataSize+1)}}, ErrInlineDataSize},
		{entries(0), entries(9), ErrGroupIndexRange},
	}
	for index, s := range specs {
		if _, err := ComputeLayout(props, 4, s.rayGen, entries(1), s.hit); !errors.Is(err, s.exp) {
			t.Fatalf("[spec %d] expected %v; got %v", index, s.exp, err)
		}
	}
}

func TestTableContents(t *testing.T) {
	dev, err := noop.NewInstance(gpu.Extent2D{Width: 8, Height: 8}).OpenDevice(0, gpu.OpenOptions{RayTracing: true})
	if err != nil {
		t.Fatalf("open device: %v", err)
	}
	module, _ := dev.CreateShaderModule([]uint32{1})
	pipeline, err := dev.CreateRayTracingPipeline(gpu.RayTracingPipelineDesc{
		Label:  "trace",
		Stages: []gpu.ShaderStageDesc{{Stage: gpu.ShaderStageRayGen, Module: module, Entry: "main"}},
		Groups: make([]gpu.ShaderGroup, 4),
	})
	if err != nil {
		t.Fatalf("pipeline: %v", err)
	}
	arena := resource.NewArena("sbt")
	defer arena.Release()

	table, err := New(dev, arena, pipeline, 4, entries(0), entries(1), entries(2, 3))
	if err != nil {
		t.Fatalf("new table: %v", err)
	}
	hit := table.Hit()
	if hit.Size != 2*hit.Stride || hit.Address != table.Buffer.Address()+table.Layout.Hit.Offset {
		t.Fatalf("unexpected hit region %+v", hit)
	}
	if table.Callable() != (gpu.StridedRegion{}) {
		t.Fatalf("expected an empty callable region")
	}

	data, err := table.Buffer.Read(0, table.Layout.Size)
	if err != nil {
		t.Fatalf("read table: %v", err)
	}
	// triangle and procedural hit groups occupy distinct entries
	tri := data[table.Layout.Hit.Offset]
	proc := data[table.Layout.Hit.Offset+table.Layout.Hit.Stride]
	if tri != 3 || proc != 4 || tri == proc {
		t.Fatalf("expected hit handles 3 and 4; got %d and %d", tri, proc)
	}
	if data[0] != 1 || data[table.Layout.Miss.Offset] != 2 {
		t.Fatalf("expected ray generation handle 1 and miss handle 2")
	}

	_, err = New(dev, arena, pipeline, 4, nil, entries(1), entries(2))
	if !errors.Is(err, core.ErrShaderBindingTable) || !errors.Is(err, ErrRayGenCount) {
		t.Fatalf("expected a wrapped ray generation count error; got %v", err)
	}
}
