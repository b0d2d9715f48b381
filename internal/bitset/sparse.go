package bitset

import "math/bits"

// Sparse is a hierarchical bitmap with the same semantics as Dense but
// storage proportional to the number of non-zero words rather than to the
// addressed range: non-zero layer0 words live in a packed dense array with
// a sparse-set index (word index -> position in dense) so an all-zero range
// costs nothing. A zeroed word is reclaimed via swap-and-pop.
//
// Used for sparse-entity occupancy, where the id domain can be large and
// thinly populated relative to any one component.
type Sparse struct {
	dense    []uint64 // packed non-zero words
	wordIdx  []int    // dense[i] belongs to layer0 word wordIdx[i]
	sparse   []int    // word index -> position in dense, -1 if absent
	layer1   *Dense   // layer1[w] set iff word w is present in the sparse set
	capWords int
}

// NewSparse allocates a Sparse bitset whose word-index domain can reach at
// least capWords without reallocating the sparse index.
func NewSparse(capWords int) *Sparse {
	sp := make([]int, capWords)
	for i := range sp {
		sp[i] = -1
	}
	return &Sparse{
		sparse:   sp,
		layer1:   NewDense(capWords),
		capWords: capWords,
	}
}

func (s *Sparse) ensureWord(word int) {
	if word < len(s.sparse) {
		return
	}
	n := make([]int, word+1)
	copy(n, s.sparse)
	for i := len(s.sparse); i <= word; i++ {
		n[i] = -1
	}
	s.sparse = n
	s.capWords = len(n)
}

// Get reports whether bit idx is set.
func (s *Sparse) Get(idx int) bool {
	word := idx / WordBits
	if word >= len(s.sparse) {
		return false
	}
	pos := s.sparse[word]
	if pos < 0 {
		return false
	}
	return s.dense[pos]&(1<<uint(idx%WordBits)) != 0
}

// Set marks bit idx, materializing its word in the dense array on first use.
func (s *Sparse) Set(idx int) {
	word := idx / WordBits
	s.ensureWord(word)
	pos := s.sparse[word]
	if pos < 0 {
		pos = len(s.dense)
		s.dense = append(s.dense, 0)
		s.wordIdx = append(s.wordIdx, word)
		s.sparse[word] = pos
		s.layer1.Set(word)
	}
	s.dense[pos] |= 1 << uint(idx%WordBits)
}

// Unset clears bit idx, reclaiming its word via swap-and-pop if it becomes
// all-zero.
func (s *Sparse) Unset(idx int) {
	word := idx / WordBits
	if word >= len(s.sparse) {
		return
	}
	pos := s.sparse[word]
	if pos < 0 {
		return
	}
	s.dense[pos] &^= 1 << uint(idx%WordBits)
	if s.dense[pos] == 0 {
		last := len(s.dense) - 1
		if pos != last {
			s.dense[pos] = s.dense[last]
			s.wordIdx[pos] = s.wordIdx[last]
			s.sparse[s.wordIdx[pos]] = pos
		}
		s.dense = s.dense[:last]
		s.wordIdx = s.wordIdx[:last]
		s.sparse[word] = -1
		s.layer1.Unset(word)
	}
}

// IsEmpty reports whether no bit is set.
func (s *Sparse) IsEmpty() bool { return len(s.dense) == 0 }

// Card returns the number of set bits.
func (s *Sparse) Card() int {
	n := 0
	for _, w := range s.dense {
		n += bits.OnesCount64(w)
	}
	return n
}

// Clear removes every bit.
func (s *Sparse) Clear() {
	for _, w := range s.wordIdx {
		s.sparse[w] = -1
	}
	s.dense = s.dense[:0]
	s.wordIdx = s.wordIdx[:0]
	s.layer1.Clear()
}

// Items calls yield with every set bit index; order is unspecified (it
// follows dense-array packing order, not ascending index order).
func (s *Sparse) Items(yield func(idx int) bool) {
	for i, w := range s.dense {
		word := s.wordIdx[i]
		lw := w
		for lw != 0 {
			b := bits.TrailingZeros64(lw)
			lw &= lw - 1
			if !yield(word*WordBits + b) {
				return
			}
		}
	}
}

// BlockIter calls yield with every non-zero word index and its bits, in
// dense-packing order.
func (s *Sparse) BlockIter(yield func(wordIdx int, word uint64) bool) {
	for i, w := range s.dense {
		if !yield(s.wordIdx[i], w) {
			return
		}
	}
}

// WordAt returns the raw word at wordIdx, or 0 if absent.
func (s *Sparse) WordAt(wordIdx int) uint64 {
	if wordIdx < 0 || wordIdx >= len(s.sparse) {
		return 0
	}
	pos := s.sparse[wordIdx]
	if pos < 0 {
		return 0
	}
	return s.dense[pos]
}

// SetWord ORs word into the raw word at wordIdx, materializing it in the
// dense array on first use.
func (s *Sparse) SetWord(wordIdx int, word uint64) {
	if word == 0 {
		return
	}
	s.ensureWord(wordIdx)
	pos := s.sparse[wordIdx]
	if pos < 0 {
		pos = len(s.dense)
		s.dense = append(s.dense, 0)
		s.wordIdx = append(s.wordIdx, wordIdx)
		s.sparse[wordIdx] = pos
		s.layer1.Set(wordIdx)
	}
	s.dense[pos] |= word
}

// And intersects two Sparse bitsets, iterating the smaller for efficiency.
func And(a, b *Sparse) *Sparse {
	if len(a.dense) > len(b.dense) {
		a, b = b, a
	}
	out := NewSparse(max(a.capWords, b.capWords))
	for i, w := range a.dense {
		word := a.wordIdx[i]
		bw := b.WordAt(word)
		if r := w & bw; r != 0 {
			out.ensureWord(word)
			out.dense = append(out.dense, r)
			out.wordIdx = append(out.wordIdx, word)
			out.sparse[word] = len(out.dense) - 1
			out.layer1.Set(word)
		}
	}
	return out
}

// Or unions two Sparse bitsets.
func Or(a, b *Sparse) *Sparse {
	out := NewSparse(max(a.capWords, b.capWords))
	merge := func(src *Sparse) {
		for i, w := range src.dense {
			word := src.wordIdx[i]
			out.ensureWord(word)
			pos := out.sparse[word]
			if pos < 0 {
				out.dense = append(out.dense, w)
				out.wordIdx = append(out.wordIdx, word)
				out.sparse[word] = len(out.dense) - 1
				out.layer1.Set(word)
			} else {
				out.dense[pos] |= w
			}
		}
	}
	merge(a)
	merge(b)
	return out
}
