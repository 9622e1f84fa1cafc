package stages

import "github.com/tigrazone/gkNextRenderer/engine/renderer/gpu"

// Compute workgroup size of every compute shader.
const (
	WorkgroupWidth  = 8
	WorkgroupHeight = 4
)

// WorkgroupCount covers extent with 8x4 workgroups, rounding up.
func WorkgroupCount(extent gpu.Extent2D) (uint32, uint32, uint32) {
	return (extent.Width + WorkgroupWidth - 1) / WorkgroupWidth,
		(extent.Height + WorkgroupHeight - 1) / WorkgroupHeight,
		1
}

// TraceWidth is the ray dispatch width: every column, or half of them
// (rounded down) when checkerboard rendering traces alternating columns.
func TraceWidth(extent gpu.Extent2D, checkerboard bool) uint32 {
	if checkerboard {
		return extent.Width / 2
	}
	return extent.Width
}

// PingPong names the ping-pong image read and the one written by a pass.
type PingPong struct {
	Source      uint32
	Destination uint32
}

// AccumulatePass reads the history left by the previous frame and writes the
// buffer the current frame's denoise chain starts from.
func AccumulatePass(frame uint64) PingPong {
	return PingPong{Source: uint32((frame + 1) % 2), Destination: uint32(frame % 2)}
}

// DenoisePass is pass i of the a-trous chain at frame.
func DenoisePass(frame uint64, i uint32) PingPong {
	src := uint32((frame + uint64(i)) % 2)
	return PingPong{Source: src, Destination: 1 - src}
}

// DenoisePasses is the number of filter passes for the configured iterations.
func DenoisePasses(iterations uint32) uint32 {
	return 2 * iterations
}

// FinalPingPong is the buffer holding the finished image after passes denoise passes.
func FinalPingPong(frame uint64, passes uint32) uint32 {
	return uint32((frame + uint64(passes)) % 2)
}

// CheckerboardColumn is the column traced by launch column launchX on row at
// frame. Each launch owns the pair starting at 2*launchX and alternates
// between its two columns every row and every frame.
func CheckerboardColumn(launchX, row uint32, frame uint64) uint32 {
	return 2*launchX + uint32((uint64(row)+frame)&1)
}

// CheckerboardOwned lists the columns a launch writes on row: the traced
// column, its companion and, for the last launch of an odd width, the
// trailing column.
func CheckerboardOwned(launchX, row uint32, frame uint64, width uint32) []uint32 {
	traced := CheckerboardColumn(launchX, row, frame)
	owned := []uint32{traced, 4*launchX + 1 - traced}
	if 2*launchX+3 == width {
		owned = append(owned, width-1)
	}
	return owned
}

// CheckerboardTraced reports whether column x of row y got a fresh sample at
// frame. Without checkerboarding every pixel does.
func CheckerboardTraced(x, y uint32, frame uint64, width uint32, checkerboard bool) bool {
	if !checkerboard {
		return true
	}
	return x < width/2*2 && (uint64(x)+uint64(y)+frame)&1 == 0
}
