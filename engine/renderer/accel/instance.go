package accel

import (
	"encoding/binary"
	"fmt"
	"math"
)

// InstanceSize is the byte size of one encoded top-level instance.
const InstanceSize = 64

const (
	InstanceFlagTriangleCullDisable uint8 = 0x1
	InstanceFlagForceOpaque         uint8 = 0x4

	// SBT record offsets of the two hit groups.
	TriangleHitOffset   uint32 = 0
	ProceduralHitOffset uint32 = 1
)

// Instance is one top-level instance in the device layout: a row-major 3x4
// transform, 24-bit custom index, 8-bit mask, 24-bit SBT record offset,
// 8-bit flags and the bottom-level device address.
type Instance struct {
	Transform   [12]float32
	CustomIndex uint32
	Mask        uint8
	SBTOffset   uint32
	Flags       uint8
	Reference   uint64
}

// TransformFromMat4 converts a column-major 4x4 matrix into the row-major 3x4 form.
func TransformFromMat4(m [16]float32) [12]float32 {
	var t [12]float32
	for r := 0; r < 3; r++ {
		for c := 0; c < 4; c++ {
			t[r*4+c] = m[c*4+r]
		}
	}
	return t
}

// Encode writes the instance into dst, which must hold InstanceSize bytes.
func (i Instance) Encode(dst []byte) {
	for k, v := range i.Transform {
		binary.LittleEndian.PutUint32(dst[k*4:], math.Float32bits(v))
	}
	binary.LittleEndian.PutUint32(dst[48:], i.CustomIndex&0xFFFFFF|uint32(i.Mask)<<24)
	binary.LittleEndian.PutUint32(dst[52:], i.SBTOffset&0xFFFFFF|uint32(i.Flags)<<24)
	binary.LittleEndian.PutUint64(dst[56:], i.Reference)
}

func DecodeInstance(src []byte) (Instance, error) {
	if len(src) < InstanceSize {
		return Instance{}, fmt.Errorf("instance needs %d bytes, got %d", InstanceSize, len(src))
	}
	var i Instance
	for k := range i.Transform {
		i.Transform[k] = math.Float32frombits(binary.LittleEndian.Uint32(src[k*4:]))
	}
	w := binary.LittleEndian.Uint32(src[48:])
	i.CustomIndex, i.Mask = w&0xFFFFFF, uint8(w>>24)
	w = binary.LittleEndian.Uint32(src[52:])
	i.SBTOffset, i.Flags = w&0xFFFFFF, uint8(w>>24)
	i.Reference = binary.LittleEndian.Uint64(src[56:])
	return i, nil
}

// EncodeInstances packs instances back to back.
func EncodeInstances(instances []Instance) []byte {
	out := make([]byte, len(instances)*InstanceSize)
	for k, inst := range instances {
		inst.Encode(out[k*InstanceSize:])
	}
	return out
}

func DecodeInstances(src []byte) ([]Instance, error) {
	if len(src)%InstanceSize != 0 {
		return nil, fmt.Errorf("instance data of %d bytes is not a multiple of %d", len(src), InstanceSize)
	}
	out := make([]Instance, len(src)/InstanceSize)
	for k := range out {
		inst, err := DecodeInstance(src[k*InstanceSize:])
		if err != nil {
			return nil, err
		}
		out[k] = inst
	}
	return out, nil
}
