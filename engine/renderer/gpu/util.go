package gpu

// AlignUp rounds value up to the next multiple of alignment. A zero alignment
// leaves the value unchanged.
func AlignUp(value, alignment uint64) uint64 {
	if alignment == 0 {
		return value
	}
	return (value + alignment - 1) / alignment * alignment
}

// ColorImageBarrier is a convenience constructor for the common layout transition.
func ColorImageBarrier(image ImageID, srcAccess, dstAccess Access, oldLayout, newLayout ImageLayout) ImageBarrier {
	return ImageBarrier{
		Image:     image,
		SrcAccess: srcAccess,
		DstAccess: dstAccess,
		OldLayout: oldLayout,
		NewLayout: newLayout,
	}
}
