package partition

import (
	"testing"

	"github.com/TheBitDrifter/fragstore/internal/archetype"
	"github.com/TheBitDrifter/fragstore/internal/fragment"
	"github.com/TheBitDrifter/fragstore/internal/ids"
	"github.com/TheBitDrifter/fragstore/internal/limits"
	"github.com/TheBitDrifter/fragstore/internal/registry"
)

type position struct{ X, Y float64 }

func newIntCol(t *testing.T, r *registry.Registry, name string) (registry.ID, *fragment.Vector[position]) {
	t.Helper()
	id, vec, err := registry.Register[position](r, name, false, nil, nil)
	if err != nil {
		t.Fatalf("register %s: %v", name, err)
	}
	return id, vec
}

func TestAllocateOneFillsZoneThenOpensNewBlock(t *testing.T) {
	r := registry.New()
	_, vec := newIntCol(t, r, "pos")
	cols, _ := r.Thunks(registry.ID(0))

	g := archetype.NewGraph()
	node := g.AddComponent(g.Root(), 0)
	var counter BlockCounter

	vec.Set(AllocateOne(node, []registry.Thunks{cols}, &counter), position{1, 1})

	if node.Partition == nil || len(node.Partition.Zones) != 1 {
		t.Fatalf("expected one zone after first allocation")
	}
	if node.Partition.Zones[0].End != 1 {
		t.Fatalf("expected zone end 1, got %d", node.Partition.Zones[0].End)
	}

	for i := 1; i < limits.BlockSize; i++ {
		AllocateOne(node, []registry.Thunks{cols}, &counter)
	}
	if !node.Partition.Zones[0].Full() {
		t.Fatalf("expected first zone full after BlockSize allocations")
	}
	if node.Partition.FillIndex != 1 {
		t.Fatalf("expected fill index to advance past the full zone, got %d", node.Partition.FillIndex)
	}

	AllocateOne(node, []registry.Thunks{cols}, &counter)
	if len(node.Partition.Zones) != 2 {
		t.Fatalf("expected a second zone opened, got %d zones", len(node.Partition.Zones))
	}
	if counter.Count() != 2 {
		t.Fatalf("expected 2 blocks reserved, got %d", counter.Count())
	}
}

func TestAllocateNMatchesRepeatedAllocateOne(t *testing.T) {
	r := registry.New()
	_, _ = newIntCol(t, r, "pos")
	cols, _ := r.Thunks(registry.ID(0))

	g := archetype.NewGraph()
	node := g.AddComponent(g.Root(), 0)
	var counter BlockCounter

	n := limits.BlockSize + 10
	ranges := AllocateN(node, []registry.Thunks{cols}, &counter, n)

	total := 0
	for _, rg := range ranges {
		total += rg.End - rg.Start
	}
	if total != n {
		t.Fatalf("expected %d total allocated slots across ranges, got %d", n, total)
	}
	if node.Partition.Len() != n {
		t.Fatalf("expected partition to report %d live slots, got %d", n, node.Partition.Len())
	}
}

func TestDeleteSwapRemovesLastIntoHole(t *testing.T) {
	r := registry.New()
	_, vec := newIntCol(t, r, "pos")
	cols, _ := r.Thunks(registry.ID(0))

	g := archetype.NewGraph()
	node := g.AddComponent(g.Root(), 0)
	var counter BlockCounter

	var slots []ids.Packed
	for i := 0; i < 5; i++ {
		p := AllocateOne(node, []registry.Thunks{cols}, &counter)
		vec.Set(p, position{float64(i), float64(i)})
		slots = append(slots, p)
	}

	target := slots[1]
	lastValueBefore := vec.Get(slots[len(slots)-1])

	moved := Delete(node, []registry.Thunks{cols}, target)
	if moved != slots[len(slots)-1] {
		t.Fatalf("expected Delete to report the last slot as moved")
	}

	if got := vec.Get(target); got != lastValueBefore {
		t.Fatalf("expected slot 1 to now hold the former last value %v, got %v", lastValueBefore, got)
	}
	if node.Partition.Len() != 4 {
		t.Fatalf("expected 4 live slots after delete, got %d", node.Partition.Len())
	}
}

func TestDeleteLastSlotIsNoopCopy(t *testing.T) {
	r := registry.New()
	_, vec := newIntCol(t, r, "pos")
	cols, _ := r.Thunks(registry.ID(0))

	g := archetype.NewGraph()
	node := g.AddComponent(g.Root(), 0)
	var counter BlockCounter

	p := AllocateOne(node, []registry.Thunks{cols}, &counter)
	vec.Set(p, position{9, 9})

	moved := Delete(node, []registry.Thunks{cols}, p)
	if moved != p {
		t.Fatalf("deleting the sole/last slot should report itself as moved")
	}
	if node.Partition.Len() != 0 {
		t.Fatalf("expected 0 live slots after deleting the only entity")
	}
}

func TestMigrateMovesAndCopiesSharedColumns(t *testing.T) {
	r := registry.New()
	_, vec := newIntCol(t, r, "pos")
	colsShared, _ := r.Thunks(registry.ID(0))

	g := archetype.NewGraph()
	a := g.AddComponent(g.Root(), 0)
	b := g.AddComponent(a, 1)
	var counter BlockCounter

	p := AllocateOne(a, []registry.Thunks{colsShared}, &counter)
	vec.Set(p, position{3, 4})

	result := Migrate(a, b, []registry.Thunks{colsShared}, []registry.Thunks{colsShared}, []registry.Thunks{colsShared}, &counter, p)

	if a.Partition.Len() != 0 {
		t.Fatalf("expected source archetype empty after migrating its only entity")
	}
	if b.Partition.Len() != 1 {
		t.Fatalf("expected destination archetype to hold the migrated entity")
	}
	if got := vec.Get(result.NewSlot); got != (position{3, 4}) {
		t.Fatalf("expected migrated value preserved, got %v", got)
	}
}

func TestBatchMigrateMovesAllEntities(t *testing.T) {
	r := registry.New()
	_, vec := newIntCol(t, r, "pos")
	colsShared, _ := r.Thunks(registry.ID(0))

	g := archetype.NewGraph()
	a := g.AddComponent(g.Root(), 0)
	b := g.AddComponent(a, 1)
	var counter BlockCounter

	var srcs []ids.Packed
	for i := 0; i < 6; i++ {
		p := AllocateOne(a, []registry.Thunks{colsShared}, &counter)
		vec.Set(p, position{float64(i), float64(i)})
		srcs = append(srcs, p)
	}

	result := BatchMigrate(a, b, []registry.Thunks{colsShared}, []registry.Thunks{colsShared}, []registry.Thunks{colsShared}, &counter, srcs)

	if a.Partition.Len() != 0 {
		t.Fatalf("expected source archetype drained, got %d live slots", a.Partition.Len())
	}
	if b.Partition.Len() != 6 {
		t.Fatalf("expected destination archetype to hold all 6 entities, got %d", b.Partition.Len())
	}
	for i, dst := range result.Dest {
		if got := vec.Get(dst); got != (position{float64(i), float64(i)}) {
			t.Fatalf("entity %d: expected value preserved through batch migration, got %v", i, got)
		}
	}
}

func TestMigrateFromNonLastSlotPreservesCorrectEntity(t *testing.T) {
	r := registry.New()
	_, vec := newIntCol(t, r, "pos")
	colsShared, _ := r.Thunks(registry.ID(0))

	g := archetype.NewGraph()
	a := g.AddComponent(g.Root(), 0)
	b := g.AddComponent(a, 1)
	var counter BlockCounter

	var srcs []ids.Packed
	for i := 0; i < 4; i++ {
		p := AllocateOne(a, []registry.Thunks{colsShared}, &counter)
		vec.Set(p, position{float64(i), float64(i)})
		srcs = append(srcs, p)
	}

	// Migrate slot 1, not the zone's last live slot: A's swap-remove will
	// move slot 3's data into slot 1 after the migrating entity's own data
	// has already been read out, so the destination must see entity 1's
	// value, not entity 3's.
	result := Migrate(a, b, []registry.Thunks{colsShared}, []registry.Thunks{colsShared}, []registry.Thunks{colsShared}, &counter, srcs[1])

	if got := vec.Get(result.NewSlot); got != (position{1, 1}) {
		t.Fatalf("expected migrated entity 1's own data, got %v", got)
	}
	if got := vec.Get(srcs[1]); got != (position{3, 3}) {
		t.Fatalf("expected entity 3's data swapped into the vacated slot, got %v", got)
	}
	if a.Partition.Len() != 3 {
		t.Fatalf("expected 3 entities left in source, got %d", a.Partition.Len())
	}
}

func TestBatchMigratePartialOutOfOrderPreservesEachEntity(t *testing.T) {
	r := registry.New()
	_, vec := newIntCol(t, r, "pos")
	colsShared, _ := r.Thunks(registry.ID(0))

	g := archetype.NewGraph()
	a := g.AddComponent(g.Root(), 0)
	b := g.AddComponent(a, 1)
	var counter BlockCounter

	var srcs []ids.Packed
	for i := 0; i < 8; i++ {
		p := AllocateOne(a, []registry.Thunks{colsShared}, &counter)
		vec.Set(p, position{float64(i), float64(i)})
		srcs = append(srcs, p)
	}

	// Migrate a partial, front-loaded, non-contiguous subset so several of
	// the swap-removes pull later surviving entities (5, 6, 7) into earlier
	// vacated slots before those slots' own data has been copied out.
	batch := []ids.Packed{srcs[0], srcs[2], srcs[4]}
	result := BatchMigrate(a, b, []registry.Thunks{colsShared}, []registry.Thunks{colsShared}, []registry.Thunks{colsShared}, &counter, batch)

	want := []position{{0, 0}, {2, 2}, {4, 4}}
	for i, dst := range result.Dest {
		if got := vec.Get(dst); got != want[i] {
			t.Fatalf("entity %d: expected %v preserved through partial batch migration, got %v", i, want[i], got)
		}
	}
	if a.Partition.Len() != 5 {
		t.Fatalf("expected 5 entities left in source, got %d", a.Partition.Len())
	}
}

func TestDeleteSpilloverSlotThenAllocateDoesNotOverflowBlock(t *testing.T) {
	r := registry.New()
	_, vec := newIntCol(t, r, "pos")
	cols, _ := r.Thunks(registry.ID(0))

	g := archetype.NewGraph()
	node := g.AddComponent(g.Root(), 0)
	var counter BlockCounter

	var slots []ids.Packed
	for i := 0; i < limits.BlockSize; i++ {
		p := AllocateOne(node, []registry.Thunks{cols}, &counter)
		vec.Set(p, position{float64(i), float64(i)})
		slots = append(slots, p)
	}
	// First block is now full; spill a second zone with exactly one entity.
	spill := AllocateOne(node, []registry.Thunks{cols}, &counter)
	vec.Set(spill, position{9, 9})

	// Delete the spillover zone's sole entity. Its zone is truncated away,
	// and FillIndex must skip past the now-trailing full first zone rather
	// than pointing at it.
	Delete(node, []registry.Thunks{cols}, spill)

	// Allocating again must open a fresh block rather than writing past
	// the first (full) block's BlockSize capacity.
	blocksBefore := counter.Count()
	next := AllocateOne(node, []registry.Thunks{cols}, &counter)
	vec.Set(next, position{42, 42})
	if counter.Count() != blocksBefore+1 {
		t.Fatalf("expected a new block to be opened, block count stayed at %d", blocksBefore)
	}
	if got := vec.Get(next); got != (position{42, 42}) {
		t.Fatalf("expected freshly allocated slot to hold its own data, got %v", got)
	}
	for i, s := range slots {
		if got := vec.Get(s); got != (position{float64(i), float64(i)}) {
			t.Fatalf("entity %d in the original full block corrupted, got %v", i, got)
		}
	}
}

func TestAllocateDeleteConservesCount(t *testing.T) {
	r := registry.New()
	_, _ = newIntCol(t, r, "pos")
	cols, _ := r.Thunks(registry.ID(0))

	g := archetype.NewGraph()
	node := g.AddComponent(g.Root(), 0)
	var counter BlockCounter

	var slots []ids.Packed
	for i := 0; i < 20; i++ {
		slots = append(slots, AllocateOne(node, []registry.Thunks{cols}, &counter))
	}
	for i := 0; i < 7; i++ {
		Delete(node, []registry.Thunks{cols}, slots[i])
	}
	if node.Partition.Len() != 13 {
		t.Fatalf("expected count conservation: 20 allocated - 7 deleted = 13, got %d", node.Partition.Len())
	}
}
