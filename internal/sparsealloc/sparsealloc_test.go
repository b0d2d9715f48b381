package sparsealloc

import (
	"testing"

	"github.com/TheBitDrifter/fragstore/internal/limits"
	"github.com/TheBitDrifter/fragstore/internal/registry"
)

type velocity struct{ DX, DY float64 }

func newCol(t *testing.T, r *registry.Registry) registry.Thunks {
	t.Helper()
	id, _, err := registry.Register[velocity](r, "vel", false, nil, nil)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	c, err := r.Thunks(id)
	if err != nil {
		t.Fatalf("thunks: %v", err)
	}
	return c
}

func TestAllocateGrowsByWholeWords(t *testing.T) {
	r := registry.New()
	col := newCol(t, r)
	a := New()

	id := a.Allocate([]registry.Thunks{col})
	if id != 0 {
		t.Fatalf("expected first id 0, got %d", id)
	}
	if a.MaxIndex() != limits.WordBits {
		t.Fatalf("expected id space grown by one word (%d), got %d", limits.WordBits, a.MaxIndex())
	}
	if a.FreeCount() != limits.WordBits-1 {
		t.Fatalf("expected %d ids pushed to free list, got %d", limits.WordBits-1, a.FreeCount())
	}
}

func TestAllocateReusesFreeListBeforeGrowing(t *testing.T) {
	r := registry.New()
	col := newCol(t, r)
	a := New()

	a.Allocate([]registry.Thunks{col})
	before := a.MaxIndex()

	for i := 0; i < limits.WordBits-1; i++ {
		a.Allocate([]registry.Thunks{col})
	}
	if a.MaxIndex() != before {
		t.Fatalf("expected no growth while free list had ids, maxIndex changed from %d to %d", before, a.MaxIndex())
	}
	if a.FreeCount() != 0 {
		t.Fatalf("expected free list exhausted, got %d remaining", a.FreeCount())
	}
}

func TestDeleteRecyclesAndBumpsGeneration(t *testing.T) {
	r := registry.New()
	col := newCol(t, r)
	a := New()

	id := a.Allocate([]registry.Thunks{col})
	if a.Generation(id) != 0 {
		t.Fatalf("expected initial generation 0")
	}
	a.Delete([]registry.Thunks{col}, id)
	if a.Generation(id) != 1 {
		t.Fatalf("expected generation bumped to 1 after delete, got %d", a.Generation(id))
	}

	reissued := a.Allocate([]registry.Thunks{col})
	if reissued != id {
		t.Fatalf("expected the freed id to be reissued first (LIFO), got %d want %d", reissued, id)
	}
}

func TestAllocateBatchPrefersFreeListThenFreshWords(t *testing.T) {
	r := registry.New()
	col := newCol(t, r)
	a := New()

	first := a.Allocate([]registry.Thunks{col})
	a.Delete([]registry.Thunks{col}, first)

	batch := a.AllocateBatch([]registry.Thunks{col}, 5)
	if len(batch) != 5 {
		t.Fatalf("expected 5 ids, got %d", len(batch))
	}
	found := false
	for _, id := range batch {
		if id == first {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected freed id %d reused in batch %v", first, batch)
	}
}

func TestAllocateBatchLargerThanOneWordTailGoesToFreeList(t *testing.T) {
	r := registry.New()
	col := newCol(t, r)
	a := New()

	n := limits.WordBits + 3
	batch := a.AllocateBatch([]registry.Thunks{col}, n)
	if len(batch) != n {
		t.Fatalf("expected %d ids, got %d", n, len(batch))
	}
	// Requesting WordBits+3 consumes two fresh words (2*WordBits ids total),
	// leaving WordBits-3 on the free list.
	if a.FreeCount() != limits.WordBits-3 {
		t.Fatalf("expected %d ids on the free list, got %d", limits.WordBits-3, a.FreeCount())
	}
}
