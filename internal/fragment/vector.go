package fragment

import (
	"github.com/TheBitDrifter/fragstore/internal/bitset"
	"github.com/TheBitDrifter/fragstore/internal/ids"
	"github.com/TheBitDrifter/fragstore/internal/limits"
)

// ReadFn transforms a stored slot value on the way out; WriteFn transforms
// an incoming value on the way in. Registration may supply either, in which
// case all value access for the component goes through them (spec §4.1,
// "user-defined setter/getter indirection").
type ReadFn[T any] func(slot *T) T
type WriteFn[T any] func(slot *T, v T)

// Vector is the Fragment Vector of spec §4.1 (C1): all storage for one
// component type, across every archetype and both the dense and sparse
// views, which address the same underlying blocks differently (dense via
// partition zones, sparse via id/BlockSize).
type Vector[T any] struct {
	blocks   []*Block[T]
	nonEmpty *bitset.Dense // one bit per block index; Vector-level hi/lo summary
	tracked  bool
	read     ReadFn[T]
	write    WriteFn[T]
}

// New allocates an empty Vector. tracked enables per-slot change masks.
func New[T any](tracked bool, read ReadFn[T], write WriteFn[T]) *Vector[T] {
	return &Vector[T]{
		nonEmpty: bitset.NewDense(1),
		tracked:  tracked,
		read:     read,
		write:    write,
	}
}

// Resize ensures the vector can address block indices up to nBlocks-1
// without yet materializing any new Block (spec: "one resize per column"
// ahead of a batch of NewBlockAt calls).
func (v *Vector[T]) Resize(nBlocks int) {
	if nBlocks <= len(v.blocks) {
		return
	}
	nb := make([]*Block[T], nBlocks)
	copy(nb, v.blocks)
	v.blocks = nb
	v.nonEmpty.Grow(nBlocks)
}

// NewBlockAt materializes a fresh, empty Block at blockIdx, growing the
// vector if necessary. A no-op if the block already exists.
func (v *Vector[T]) NewBlockAt(blockIdx int) {
	if blockIdx >= len(v.blocks) {
		v.Resize(blockIdx + 1)
	}
	if v.blocks[blockIdx] == nil {
		v.blocks[blockIdx] = newBlock[T](v.tracked)
	}
}

// NewSparseBlock materializes the block holding sparse id idBase (rounding
// down to the owning block boundary) if it doesn't exist yet, and marks
// initialSlots (block-local offsets) as occupied.
func (v *Vector[T]) NewSparseBlock(idBase int, initialSlots ...int) {
	blockIdx := ids.BlockOf(idBase)
	v.NewBlockAt(blockIdx)
	for _, slot := range initialSlots {
		v.activateLocal(blockIdx, slot)
	}
}

// NewSparseBlocks batches NewSparseBlock over multiple id bases.
func (v *Vector[T]) NewSparseBlocks(idBases []int, initialSlots [][]int) {
	for i, base := range idBases {
		var slots []int
		if i < len(initialSlots) {
			slots = initialSlots[i]
		}
		v.NewSparseBlock(base, slots...)
	}
}

func (v *Vector[T]) block(blockIdx int) *Block[T] {
	if blockIdx >= len(v.blocks) || v.blocks[blockIdx] == nil {
		v.NewBlockAt(blockIdx)
	}
	return v.blocks[blockIdx]
}

// Get returns the value at packed, applying the read hook if configured.
func (v *Vector[T]) Get(p ids.Packed) T {
	slot := v.block(p.Block()).Get(p.Slot())
	if v.read != nil {
		return v.read(slot)
	}
	return *slot
}

// Slot returns a direct pointer into storage at packed, for callers that
// need mutable in-place access (e.g. cursor-driven iteration) bypassing the
// read/write hooks.
func (v *Vector[T]) Slot(p ids.Packed) *T {
	return v.block(p.Block()).Get(p.Slot())
}

// Set stores value at packed, applying the write hook if configured and
// stamping the change mask when change-tracking is enabled.
func (v *Vector[T]) Set(p ids.Packed, value T) {
	b := v.block(p.Block())
	slot := b.Get(p.Slot())
	if v.write != nil {
		v.write(slot, value)
	} else {
		*slot = value
	}
	if v.tracked {
		b.Change.Set(p.Slot())
	}
}

// Override copies the component value at src to dst, field-wise (a direct
// struct assignment preserves every field, which is the Go-generic analog
// of the spec's per-field SoA copy — see DESIGN.md). Used by swap-remove
// and single-entity migration.
func (v *Vector[T]) Override(dst, src ids.Packed) {
	*v.block(dst.Block()).Get(dst.Slot()) = *v.block(src.Block()).Get(src.Slot())
}

// OverrideBatch copies every (dst[i], src[i]) pair, the column-local half of
// spec's combined batch migration operation; the handle-table repair half is
// done once by the caller across all columns (see DESIGN.md).
func (v *Vector[T]) OverrideBatch(dst, src []ids.Packed) {
	for i := range dst {
		v.Override(dst[i], src[i])
	}
}

func (v *Vector[T]) activateLocal(blockIdx, slot int) {
	b := v.block(blockIdx)
	b.Occupancy.Set(slot)
	v.nonEmpty.Set(blockIdx)
}

// ActivateBit marks packed's slot occupied, updating the block-level and
// vector-level summaries.
func (v *Vector[T]) ActivateBit(p ids.Packed) {
	v.activateLocal(p.Block(), p.Slot())
}

// ActivateSparseBit marks sparse id occupied.
func (v *Vector[T]) ActivateSparseBit(id int) {
	v.NewSparseBlock(id)
	v.activateLocal(ids.BlockOf(id), ids.SlotOf(id))
}

// ActivateSparseBits batches ActivateSparseBit over ids.
func (v *Vector[T]) ActivateSparseBits(idList []int) {
	for _, id := range idList {
		v.ActivateSparseBit(id)
	}
}

// ActivateRange marks slots [start, end) of blockIdx occupied in one call,
// used by the batch partition allocator to avoid a closure call per slot.
func (v *Vector[T]) ActivateRange(blockIdx, start, end int) {
	v.NewBlockAt(blockIdx)
	b := v.blocks[blockIdx]
	for s := start; s < end; s++ {
		b.Occupancy.Set(s)
	}
	if end > start {
		v.nonEmpty.Set(blockIdx)
	}
}

// DeactivateRange clears slots [start, end) of blockIdx.
func (v *Vector[T]) DeactivateRange(blockIdx, start, end int) {
	if blockIdx >= len(v.blocks) || v.blocks[blockIdx] == nil {
		return
	}
	b := v.blocks[blockIdx]
	for s := start; s < end; s++ {
		b.Occupancy.Unset(s)
	}
	if b.Occupancy.IsEmpty() {
		v.nonEmpty.Unset(blockIdx)
	}
}

// DeactivateBit clears packed's occupancy bit, folding the block out of the
// vector-level summary once it becomes wholly empty.
func (v *Vector[T]) DeactivateBit(p ids.Packed) {
	blockIdx := p.Block()
	if blockIdx >= len(v.blocks) || v.blocks[blockIdx] == nil {
		return
	}
	b := v.blocks[blockIdx]
	b.Occupancy.Unset(p.Slot())
	if b.Occupancy.IsEmpty() {
		v.nonEmpty.Unset(blockIdx)
	}
}

// DeactivateSparseBit clears sparse id's occupancy bit.
func (v *Vector[T]) DeactivateSparseBit(id int) {
	v.DeactivateBit(ids.Pack(ids.BlockOf(id), ids.SlotOf(id)))
}

// DeactivateSparseBits batches DeactivateSparseBit over ids.
func (v *Vector[T]) DeactivateSparseBits(idList []int) {
	for _, id := range idList {
		v.DeactivateSparseBit(id)
	}
}

// GetBlockMask returns the occupancy bitmap of blockIdx, or nil if the
// block doesn't exist in this vector.
func (v *Vector[T]) GetBlockMask(blockIdx int) *bitset.Dense {
	if blockIdx >= len(v.blocks) || v.blocks[blockIdx] == nil {
		return nil
	}
	return v.blocks[blockIdx].Occupancy
}

// GetChangeMask returns the change bitmap of blockIdx, or nil if the block
// doesn't exist or the vector isn't change-tracked.
func (v *Vector[T]) GetChangeMask(blockIdx int) *bitset.Dense {
	if blockIdx >= len(v.blocks) || v.blocks[blockIdx] == nil {
		return nil
	}
	return v.blocks[blockIdx].Change
}

// NonEmptyBlocks returns the vector-level hi/lo summary of which block
// indices currently hold at least one live slot.
func (v *Vector[T]) NonEmptyBlocks() *bitset.Dense {
	return v.nonEmpty
}

// GetSparseMask returns the vector's full occupancy, addressed by absolute
// sparse id rather than by (block, slot), for the Query Engine's sparse
// iteration (spec §4.7).
func (v *Vector[T]) GetSparseMask() *bitset.Sparse {
	out := bitset.NewSparse(len(v.blocks))
	v.nonEmpty.Items(func(blockIdx int) bool {
		b := v.blocks[blockIdx]
		if b == nil {
			return true
		}
		b.Occupancy.BlockIter(func(localWord int, word uint64) bool {
			absWord := blockIdx*(limits.BlockSize/limits.WordBits) + localWord
			out.SetWord(absWord, word)
			return true
		})
		return true
	})
	return out
}

// ClearChanges zeroes every block's change mask.
func (v *Vector[T]) ClearChanges() {
	if !v.tracked {
		return
	}
	for _, b := range v.blocks {
		if b != nil && b.Change != nil {
			b.Change.Clear()
		}
	}
}

// Tracked reports whether this vector records per-slot changes.
func (v *Vector[T]) Tracked() bool { return v.tracked }
