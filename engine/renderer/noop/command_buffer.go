package noop

import (
	"fmt"

	"github.com/tigrazone/gkNextRenderer/engine/renderer/gpu"
)

type commandBufferState int

const (
	commandBufferReady commandBufferState = iota
	commandBufferRecording
	commandBufferRecordingEnded
	commandBufferSubmitted
	commandBufferNotAllocated
)

// Op identifies a recorded command.
type Op int

const (
	OpBarrier Op = iota
	OpBindPipeline
	OpBindDescriptorSet
	OpPushConstants
	OpDispatch
	OpTraceRays
	OpCopyImage
	OpCopyImageToBuffer
	OpCopyBufferToImage
	OpClear
	OpBuildAccel
)

var opNames = [...]string{
	"barrier", "bind-pipeline", "bind-descriptor-set", "push-constants", "dispatch",
	"trace-rays", "copy-image", "copy-image-to-buffer", "copy-buffer-to-image", "clear", "build-accel",
}

func (o Op) String() string {
	if int(o) < len(opNames) {
		return opNames[o]
	}
	return fmt.Sprintf("op(%d)", int(o))
}

// Command is one recorded call. Only the fields relevant to Op are set.
type Command struct {
	Op Op

	SrcStage gpu.PipelineStage
	DstStage gpu.PipelineStage
	Images   []gpu.ImageBarrier
	Buffers  []gpu.BufferBarrier

	BindPoint gpu.BindPoint
	Pipeline  gpu.PipelineID
	Layout    gpu.PipelineLayoutID
	Set       gpu.DescriptorSetID
	Push      []byte

	Groups  [3]uint32
	Regions [4]gpu.StridedRegion

	SrcImage  gpu.ImageID
	DstImage  gpu.ImageID
	SrcBuffer gpu.BufferID
	DstBuffer gpu.BufferID
	Extent    gpu.Extent2D
	Color     [4]float32

	Builds []gpu.AccelBuild
}

// CommandBuffer keeps the recorded commands until the next Begin or Reset.
type CommandBuffer struct {
	state    commandBufferState
	commands []Command
}

// Commands returns the commands recorded since the last Begin.
func (c *CommandBuffer) Commands() []Command {
	return c.commands
}

func (c *CommandBuffer) Begin() error {
	switch c.state {
	case commandBufferRecording:
		return fmt.Errorf("noop: command buffer is already recording")
	case commandBufferNotAllocated:
		return fmt.Errorf("noop: command buffer is not allocated")
	}
	c.commands = c.commands[:0]
	c.state = commandBufferRecording
	return nil
}

func (c *CommandBuffer) End() error {
	if c.state != commandBufferRecording {
		return fmt.Errorf("noop: end of command buffer that is not recording")
	}
	c.state = commandBufferRecordingEnded
	return nil
}

func (c *CommandBuffer) Reset() error {
	if c.state == commandBufferNotAllocated {
		return fmt.Errorf("noop: reset of freed command buffer")
	}
	c.commands = c.commands[:0]
	c.state = commandBufferReady
	return nil
}

func (c *CommandBuffer) record(cmd Command) {
	if c.state != commandBufferRecording {
		panic(fmt.Sprintf("noop: %s recorded outside Begin/End", cmd.Op))
	}
	c.commands = append(c.commands, cmd)
}

func (c *CommandBuffer) PipelineBarrier(src, dst gpu.PipelineStage, images []gpu.ImageBarrier, buffers []gpu.BufferBarrier) {
	c.record(Command{
		Op:       OpBarrier,
		SrcStage: src,
		DstStage: dst,
		Images:   append([]gpu.ImageBarrier(nil), images...),
		Buffers:  append([]gpu.BufferBarrier(nil), buffers...),
	})
}

func (c *CommandBuffer) BindPipeline(bind gpu.BindPoint, pipeline gpu.PipelineID) {
	c.record(Command{Op: OpBindPipeline, BindPoint: bind, Pipeline: pipeline})
}

func (c *CommandBuffer) BindDescriptorSet(bind gpu.BindPoint, layout gpu.PipelineLayoutID, set gpu.DescriptorSetID) {
	c.record(Command{Op: OpBindDescriptorSet, BindPoint: bind, Layout: layout, Set: set})
}

func (c *CommandBuffer) PushConstants(layout gpu.PipelineLayoutID, stages gpu.ShaderStage, offset uint32, data []byte) {
	c.record(Command{Op: OpPushConstants, Layout: layout, Push: append([]byte(nil), data...)})
}

func (c *CommandBuffer) Dispatch(x, y, z uint32) {
	c.record(Command{Op: OpDispatch, Groups: [3]uint32{x, y, z}})
}

func (c *CommandBuffer) TraceRays(rayGen, miss, hit, callable gpu.StridedRegion, width, height, depth uint32) {
	c.record(Command{
		Op:      OpTraceRays,
		Groups:  [3]uint32{width, height, depth},
		Regions: [4]gpu.StridedRegion{rayGen, miss, hit, callable},
	})
}

func (c *CommandBuffer) CopyImage(src gpu.ImageID, srcLayout gpu.ImageLayout, dst gpu.ImageID, dstLayout gpu.ImageLayout, extent gpu.Extent2D) {
	c.record(Command{Op: OpCopyImage, SrcImage: src, DstImage: dst, Extent: extent})
}

func (c *CommandBuffer) CopyImageToBuffer(src gpu.ImageID, srcLayout gpu.ImageLayout, dst gpu.BufferID, extent gpu.Extent2D) {
	c.record(Command{Op: OpCopyImageToBuffer, SrcImage: src, DstBuffer: dst, Extent: extent})
}

func (c *CommandBuffer) CopyBufferToImage(src gpu.BufferID, dst gpu.ImageID, dstLayout gpu.ImageLayout, extent gpu.Extent2D) {
	c.record(Command{Op: OpCopyBufferToImage, SrcBuffer: src, DstImage: dst, Extent: extent})
}

func (c *CommandBuffer) ClearColorImage(image gpu.ImageID, layout gpu.ImageLayout, color [4]float32) {
	c.record(Command{Op: OpClear, DstImage: image, Color: color})
}

func (c *CommandBuffer) BuildAccel(builds []gpu.AccelBuild) {
	c.record(Command{Op: OpBuildAccel, Builds: append([]gpu.AccelBuild(nil), builds...)})
}
