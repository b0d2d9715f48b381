// Package fragment implements the Fragment Block and Fragment Vector of
// spec §4.1 (C1): the block-structured column store backing one component
// type across every archetype, dense and sparse alike.
package fragment

import (
	"github.com/TheBitDrifter/fragstore/internal/bitset"
	"github.com/TheBitDrifter/fragstore/internal/limits"
)

// Block is a contiguous run of limits.BlockSize slots for one component
// type, plus its occupancy and (optional) change bitmaps.
type Block[T any] struct {
	data      []T
	Occupancy *bitset.Dense
	Change    *bitset.Dense // nil unless the owning Vector is change-tracked
}

func newBlock[T any](tracked bool) *Block[T] {
	b := &Block[T]{
		data:      make([]T, limits.BlockSize),
		Occupancy: bitset.NewDense(limits.BlockSize),
	}
	if tracked {
		b.Change = bitset.NewDense(limits.BlockSize)
	}
	return b
}

// Get returns a pointer to the component value at slot.
func (b *Block[T]) Get(slot int) *T {
	return &b.data[slot]
}
