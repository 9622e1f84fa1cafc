package gpu

import "testing"

func TestAlignUp(t *testing.T) {
	type spec struct {
		value     uint64
		alignment uint64
		exp       uint64
	}
	specs := []spec{
		{0, 64, 0},
		{1, 64, 64},
		{64, 64, 64},
		{65, 64, 128},
		{48, 32, 64},
		{7, 0, 7},
	}

	for index, s := range specs {
		if got := AlignUp(s.value, s.alignment); got != s.exp {
			t.Fatalf("[spec %d] expected AlignUp(%d, %d) to be %d; got %d", index, s.value, s.alignment, s.exp, got)
		}
	}
}

func TestPrimitiveCount(t *testing.T) {
	type spec struct {
		geometry AccelGeometry
		exp      uint32
	}
	specs := []spec{
		{AccelGeometry{IndexCount: 36}, 12},
		{AccelGeometry{Procedural: true, AABBCount: 1}, 1},
		{AccelGeometry{InstanceCount: 5}, 5},
	}

	for index, s := range specs {
		if got := s.geometry.PrimitiveCount(); got != s.exp {
			t.Fatalf("[spec %d] expected %d primitives; got %d", index, s.exp, got)
		}
	}
}
