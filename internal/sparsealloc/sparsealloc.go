// Package sparsealloc implements the Sparse Allocator of spec §4.6 (C6):
// free-list-based id issuance over a word-granular bitmap, for entities that
// never migrate into a dense archetype partition. Grounded on the teacher's
// id-recycling pattern in entity.go, generalized from a single free stack to
// one sized in WordBits-wide batches, per spec's "extend max_index by one
// word worth of IDs" growth rule.
package sparsealloc

import (
	"github.com/TheBitDrifter/fragstore/internal/limits"
	"github.com/TheBitDrifter/fragstore/internal/registry"
)

// Allocator issues and recycles sparse entity ids densely over
// [0, maxIndex), growing by whole WordBits-sized batches so every id maps to
// exactly one block and bit position in every component's sparse occupancy
// (spec's "Sparse IDs are aligned" invariant).
type Allocator struct {
	maxIndex   int
	freeList   []int
	generation []uint32
}

// New creates an empty Allocator.
func New() *Allocator {
	return &Allocator{}
}

func (a *Allocator) growWord() {
	base := a.maxIndex
	for i := 0; i < limits.WordBits; i++ {
		a.generation = append(a.generation, 0)
	}
	a.maxIndex += limits.WordBits
	for i := limits.WordBits - 1; i >= 1; i-- {
		a.freeList = append(a.freeList, base+i)
	}
}

// Allocate issues one id, activating it in every given column, growing the
// id space by one word if the free list is empty (spec §4.6 step 1-2).
func (a *Allocator) Allocate(cols []registry.Thunks) int {
	var id int
	if n := len(a.freeList); n > 0 {
		id = a.freeList[n-1]
		a.freeList = a.freeList[:n-1]
	} else {
		base := a.maxIndex
		a.growWord()
		id = base
	}
	for _, c := range cols {
		c.ActivateSparseBit(id)
	}
	return id
}

// AllocateBatch issues n ids, preferring the free list before emitting fresh
// words, and pushes any unused tail ids from the last fresh word onto the
// free list (spec §4.6 step 3).
func (a *Allocator) AllocateBatch(cols []registry.Thunks, n int) []int {
	out := make([]int, 0, n)

	for len(out) < n && len(a.freeList) > 0 {
		last := len(a.freeList) - 1
		out = append(out, a.freeList[last])
		a.freeList = a.freeList[:last]
	}

	for len(out) < n {
		base := a.maxIndex
		for i := 0; i < limits.WordBits; i++ {
			a.generation = append(a.generation, 0)
		}
		a.maxIndex += limits.WordBits
		take := limits.WordBits
		if remaining := n - len(out); remaining < take {
			take = remaining
		}
		for i := 0; i < take; i++ {
			out = append(out, base+i)
		}
		for i := take; i < limits.WordBits; i++ {
			a.freeList = append(a.freeList, base+i)
		}
	}

	for _, c := range cols {
		c.ActivateSparseBits(out)
	}
	return out
}

// Delete pushes id onto the free list, clears its occupancy bit in every
// given column, and bumps its generation so stale sparse handles are
// rejected (spec §4.6 "Deletion").
func (a *Allocator) Delete(cols []registry.Thunks, id int) {
	for _, c := range cols {
		c.DeactivateSparseBit(id)
	}
	a.freeList = append(a.freeList, id)
	if id < len(a.generation) {
		a.generation[id]++
	}
}

// DeleteBatch recycles every id in ids, mirroring Delete.
func (a *Allocator) DeleteBatch(cols []registry.Thunks, ids []int) {
	for _, c := range cols {
		c.DeactivateSparseBits(ids)
	}
	for _, id := range ids {
		a.freeList = append(a.freeList, id)
		if id < len(a.generation) {
			a.generation[id]++
		}
	}
}

// Generation returns the current generation of id, for sparse handle
// staleness checks.
func (a *Allocator) Generation(id int) uint32 {
	if id < 0 || id >= len(a.generation) {
		return 0
	}
	return a.generation[id]
}

// MaxIndex returns the current id-space ceiling (exclusive).
func (a *Allocator) MaxIndex() int { return a.maxIndex }

// FreeCount returns the number of ids currently recycled and awaiting reuse.
func (a *Allocator) FreeCount() int { return len(a.freeList) }
