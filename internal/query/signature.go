// Package query implements the Query Engine of spec §4.7 (C7): signature
// construction and matching, dense/sparse iteration, a DSL compiling to
// signatures, counting, and cached resolution. Archetype matching follows
// the teacher's query.go (mask.ContainsAll/ContainsAny/ContainsNone over an
// archetype's mask), generalized from the teacher's And/Or/Not tree over
// individual components to a single Signature with include/exclude masks
// plus modified/not-modified component lists and user Filters.
package query

import (
	"github.com/TheBitDrifter/fragstore/internal/archetype"
	"github.com/TheBitDrifter/fragstore/internal/archmask"
	"github.com/TheBitDrifter/fragstore/internal/bitset"
	"github.com/TheBitDrifter/fragstore/internal/limits"
	"github.com/TheBitDrifter/fragstore/internal/registry"
)

// Filter is a user Query Filter: a pair of HiBitsets, one dense-keyed by
// block*BlockSize+slot (global slot index), one sparse-keyed by entity id,
// composable by the bitwise ops on bitset.Dense/bitset.Sparse (spec §4.7).
type Filter struct {
	Dense  *bitset.Dense
	Sparse *bitset.Sparse
}

// Signature is a resolved Query Signature: include/exclude archetype masks,
// the modified/not-modified component id lists driving change-mask
// refinement, and any user Filters further restricting the result.
type Signature struct {
	Include     archmask.Mask
	Exclude     archmask.Mask
	Modified    []registry.ID
	NotModified []registry.ID
	Filters     []Filter
}

// Matches reports whether archetype mask m satisfies the signature's
// include/exclude constraint (spec §4.7 "Archetype match"):
// (sig.include & arch) == sig.include AND (arch & sig.exclude) == 0.
func (s Signature) Matches(m archmask.Mask) bool {
	return m.ContainsAll(s.Include) && m.ContainsNone(s.Exclude)
}

// hasRefinement reports whether this signature needs per-block refinement
// masks at all, i.e. whether it constrains on anything beyond archetype
// membership.
func (s Signature) hasRefinement() bool {
	return len(s.Modified) > 0 || len(s.NotModified) > 0 || len(s.Filters) > 0
}

// wordsPerBlock is the number of WordBits-wide words in one Fragment Block.
const wordsPerBlock = limits.BlockSize / limits.WordBits

// localDenseFromGlobal extracts the BlockSize-wide slice of a global
// slot-indexed Dense bitset belonging to blockIdx, as a freshly sized local
// (0-based) Dense bitset.
func localDenseFromGlobal(g *bitset.Dense, blockIdx int) *bitset.Dense {
	out := bitset.NewDense(limits.BlockSize)
	if g == nil {
		return out
	}
	base := blockIdx * wordsPerBlock
	for i := 0; i < wordsPerBlock; i++ {
		if w := g.WordAt(base + i); w != 0 {
			out.SetWord(i, w)
		}
	}
	return out
}

// localDenseFromSparse extracts the same BlockSize-wide slice from a
// sparse id-keyed bitset, for Filters whose Sparse half is reused to
// restrict a dense block (entity ids and packed dense ids share the same
// block*BlockSize+slot addressing per spec's sparse-alignment invariant).
func localDenseFromSparse(s *bitset.Sparse, blockIdx int) *bitset.Dense {
	out := bitset.NewDense(limits.BlockSize)
	if s == nil {
		return out
	}
	base := blockIdx * wordsPerBlock
	for i := 0; i < wordsPerBlock; i++ {
		if w := s.WordAt(base + i); w != 0 {
			out.SetWord(i, w)
		}
	}
	return out
}

// Range is one yielded dense iteration step: the Zone's block/range, plus
// an optional refinement mask (local, slot-indexed within the block) when
// the signature constrains on change-tracking or user filters. A nil
// RefinementMask means every slot in [Start, End) matches.
type Range struct {
	Node           *archetype.Node
	BlockIndex     int
	Start, End     int
	RefinementMask *bitset.Dense
}

// columnsByID resolves the Thunks for each id in ids, skipping unknowns.
func columnsByID(reg *registry.Registry, idList []registry.ID) []registry.Thunks {
	out := make([]registry.Thunks, 0, len(idList))
	for _, id := range idList {
		if t, err := reg.Thunks(id); err == nil {
			out = append(out, t)
		}
	}
	return out
}

// refinementForBlock computes the per-block refinement mask of spec §4.7:
// (AND of modified change-masks) AND NOT (OR of not-modified change-masks),
// AND every filter's dense layer restricted to this block.
func refinementForBlock(sig Signature, reg *registry.Registry, blockIdx int) *bitset.Dense {
	var mask *bitset.Dense

	for _, t := range columnsByID(reg, sig.Modified) {
		cm := t.GetChangeMask(blockIdx)
		local := localDenseFromGlobalBlockMask(cm)
		if mask == nil {
			mask = local
		} else {
			mask = bitset.And(mask, local)
		}
	}

	if len(sig.NotModified) > 0 {
		var excluded *bitset.Dense
		for _, t := range columnsByID(reg, sig.NotModified) {
			cm := t.GetChangeMask(blockIdx)
			local := localDenseFromGlobalBlockMask(cm)
			if excluded == nil {
				excluded = local
			} else {
				excluded = bitset.Or(excluded, local)
			}
		}
		if excluded != nil {
			notExcluded := excluded.Not()
			if mask == nil {
				mask = notExcluded
			} else {
				mask = bitset.And(mask, notExcluded)
			}
		}
	}

	for _, f := range sig.Filters {
		var local *bitset.Dense
		if f.Dense != nil {
			local = localDenseFromGlobal(f.Dense, blockIdx)
		} else if f.Sparse != nil {
			local = localDenseFromSparse(f.Sparse, blockIdx)
		} else {
			continue
		}
		if mask == nil {
			mask = local
		} else {
			mask = bitset.And(mask, local)
		}
	}

	return mask
}

// localDenseFromGlobalBlockMask treats a Block's own change/occupancy mask
// (already block-local, slot-indexed from 0) as the local mask directly —
// Fragment Vector blocks are already stored local to their block, unlike
// Filters which are addressed in the global slot space.
func localDenseFromGlobalBlockMask(d *bitset.Dense) *bitset.Dense {
	if d == nil {
		return bitset.NewDense(limits.BlockSize)
	}
	return d
}

// DenseIterate walks every Archetype Node matching sig that has a non-nil
// Partition, yielding one Range per Zone (spec §4.7 "Dense iteration"). If
// the signature has no change/filter constraints, RefinementMask is left
// nil and the consumer treats the whole [Start, End) as matching.
func DenseIterate(g *archetype.Graph, reg *registry.Registry, sig Signature, yield func(Range) bool) {
	needsRefinement := sig.hasRefinement()
	for _, node := range g.Nodes() {
		if node.Partition == nil || !sig.Matches(node.Mask) {
			continue
		}
		for _, z := range node.Partition.Zones {
			if z.End <= z.Start {
				continue
			}
			r := Range{Node: node, BlockIndex: z.BlockIndex, Start: z.Start, End: z.End}
			if needsRefinement {
				r.RefinementMask = refinementForBlock(sig, reg, z.BlockIndex)
			}
			if !yield(r) {
				return
			}
		}
	}
}

// SparseRange is one yielded sparse iteration step: a non-zero word and its
// absolute word index in the shared sparse id space (spec §4.7 "Sparse
// iteration" block_iter yield).
type SparseRange struct {
	WordIndex int
	Word      uint64
}

// SparseIterate intersects the sparse occupancy of every included
// component, subtracts the union of excluded components' occupancy, and
// further narrows by every Filter's sparse layer, then walks the result word
// by word (spec §4.7 "Sparse iteration"). The Modified/NotModified lists are
// not applied on the sparse side: they narrow dense iteration only.
func SparseIterate(reg *registry.Registry, sig Signature, yield func(SparseRange) bool) {
	result := sparseResultSet(reg, sig)
	if result == nil {
		return
	}
	result.BlockIter(func(wordIdx int, word uint64) bool {
		return yield(SparseRange{WordIndex: wordIdx, Word: word})
	})
}

func sparseResultSet(reg *registry.Registry, sig Signature) *bitset.Sparse {
	var result *bitset.Sparse

	for _, bit := range sig.Include.Components() {
		id := registry.ID(bit)
		t, err := reg.Thunks(id)
		if err != nil {
			return nil
		}
		occ := t.GetSparseMask()
		if result == nil {
			result = occ
		} else {
			result = bitset.And(result, occ)
		}
	}
	if result == nil {
		result = bitset.NewSparse(0)
	}

	if !sig.Exclude.IsEmpty() {
		var excluded *bitset.Sparse
		for _, bit := range sig.Exclude.Components() {
			id := registry.ID(bit)
			t, err := reg.Thunks(id)
			if err != nil {
				continue
			}
			occ := t.GetSparseMask()
			if excluded == nil {
				excluded = occ
			} else {
				excluded = bitset.Or(excluded, occ)
			}
		}
		if excluded != nil {
			result = sparseAndNot(result, excluded)
		}
	}

	for _, f := range sig.Filters {
		if f.Sparse != nil {
			result = bitset.And(result, f.Sparse)
		}
	}

	return result
}

// sparseAndNot computes a AND NOT b: every word of a with b's bits cleared.
func sparseAndNot(a, b *bitset.Sparse) *bitset.Sparse {
	out := bitset.NewSparse(0)
	a.BlockIter(func(wordIdx int, word uint64) bool {
		if r := word &^ b.WordAt(wordIdx); r != 0 {
			out.SetWord(wordIdx, r)
		}
		return true
	})
	return out
}

// Count iterates sig over both dense and sparse storage and sums the
// popcount of every yielded mask (spec §4.7 "Counting"): a Range with a nil
// RefinementMask contributes End-Start; one with a mask contributes its
// popcount.
func Count(g *archetype.Graph, reg *registry.Registry, sig Signature) int {
	total := 0
	DenseIterate(g, reg, sig, func(r Range) bool {
		if r.RefinementMask == nil {
			total += r.End - r.Start
		} else {
			total += r.RefinementMask.Card()
		}
		return true
	})
	SparseIterate(reg, sig, func(r SparseRange) bool {
		total += popcount64(r.Word)
		return true
	})
	return total
}

func popcount64(w uint64) int {
	n := 0
	for w != 0 {
		w &= w - 1
		n++
	}
	return n
}
