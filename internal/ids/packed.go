// Package ids implements the packed-id addressing scheme shared by every
// storage layer: packed_id = (block_index << 32) | slot_in_block, per
// spec.md's glossary entry for "Packed id".
package ids

import "github.com/TheBitDrifter/fragstore/internal/limits"

// Packed addresses one slot inside one block.
type Packed uint64

// Pack builds a Packed id from a block index and a slot within that block.
func Pack(blockIdx, slot int) Packed {
	return Packed(uint64(blockIdx)<<32 | uint64(uint32(slot)))
}

// Block returns the block index encoded in p.
func (p Packed) Block() int {
	return int(uint64(p) >> 32)
}

// Slot returns the slot-in-block encoded in p.
func (p Packed) Slot() int {
	return int(uint32(p))
}

// BlockOf returns the block index that would hold sparse id, using the
// BlockSize-alignment invariant (spec §3: "Sparse IDs are aligned so each
// ID maps to exactly one block and bit position").
func BlockOf(id int) int {
	return id >> limits.BlockShift
}

// SlotOf returns the slot within BlockOf(id) that id maps to.
func SlotOf(id int) int {
	return id & (limits.BlockSize - 1)
}

// Handle is the stable index + generation pair spec §9's Design Note
// substitutes for the original's raw entity-record pointer: dereference via
// world.entities[WIdx] only after checking world.generations[WIdx] == Gen.
// Both DenseHandle and SparseHandle are built on this shape.
type Handle struct {
	WIdx uint32
	Gen  uint32
}

// IsNil reports whether h is the zero handle (spec "Null pointer in a dense
// handle ⇒ error").
func (h Handle) IsNil() bool { return h == Handle{} }

