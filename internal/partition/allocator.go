// Package partition implements the Dense Partition Allocator of spec §4.5
// (C5): allocate / swap-remove / migrate over an Archetype Node's Partition,
// the hardest subsystem in the store. Block growth, zone bookkeeping and
// cross-archetype column copies are all driven from here; the caller (the
// World façade) is responsible for repairing its own entity-handle table
// afterward, using the slot information each operation returns (spec:
// "Return lid so the World can fix its handle table").
package partition

import (
	"github.com/TheBitDrifter/fragstore/internal/archetype"
	"github.com/TheBitDrifter/fragstore/internal/ids"
	"github.com/TheBitDrifter/fragstore/internal/limits"
	"github.com/TheBitDrifter/fragstore/internal/registry"
)

// BlockCounter is the World-owned, process-wide block index counter
// (spec's world.block_count), shared by every archetype's partition so
// block indices never collide across archetypes.
type BlockCounter struct{ n int }

// Next reserves and returns the next global block index.
func (c *BlockCounter) Next() int {
	id := c.n
	c.n++
	return id
}

// Count returns the number of block indices reserved so far.
func (c *BlockCounter) Count() int { return c.n }

func ensurePartition(node *archetype.Node) *archetype.Partition {
	if node.Partition == nil {
		node.Partition = &archetype.Partition{}
	}
	return node.Partition
}

// openNewZone appends a new zone bound to a freshly allocated block, and
// notifies every given column so its Fragment Vector materializes that
// block (spec: "notify all A-columns new_block_at(bc)").
func openNewZone(p *archetype.Partition, cols []registry.Thunks, counter *BlockCounter) *archetype.Zone {
	bc := counter.Next()
	for _, c := range cols {
		c.NewBlockAt(bc)
	}
	p.Zones = append(p.Zones, archetype.Zone{BlockIndex: bc})
	p.FillIndex = len(p.Zones) - 1
	return &p.Zones[p.FillIndex]
}

// AllocateOne reserves one slot in node's partition (spec §4.5 "Allocate
// one entity into archetype A"), creating the partition/zone/block as
// needed, and returns the reserved slot's packed id.
func AllocateOne(node *archetype.Node, cols []registry.Thunks, counter *BlockCounter) ids.Packed {
	p := ensurePartition(node)
	fz := p.FillZone()
	if fz == nil {
		fz = openNewZone(p, cols, counter)
	}
	slot := fz.End
	fz.End++
	packed := ids.Pack(fz.BlockIndex, slot)
	for _, c := range cols {
		c.ActivateBit(packed)
	}
	if fz.Full() {
		p.FillIndex++
	}
	return packed
}

// Range is a contiguous (block_index, [start, end)) sub-range of newly
// allocated slots, as emitted by AllocateN.
type Range struct {
	BlockIndex   int
	Start, End   int
}

// AllocateN reserves n entities in node's partition in one growth step:
// fill the current zone as much as it will take, then allocate whole new
// blocks for the remainder, activating each range's bits in one call per
// column per range rather than per slot (spec §4.5 "Allocate N entities").
func AllocateN(node *archetype.Node, cols []registry.Thunks, counter *BlockCounter, n int) []Range {
	p := ensurePartition(node)
	var ranges []Range
	remaining := n

	if fz := p.FillZone(); fz != nil && !fz.Full() {
		room := limits.BlockSize - fz.End
		take := remaining
		if take > room {
			take = room
		}
		start := fz.End
		fz.End += take
		for _, c := range cols {
			c.ActivateRange(fz.BlockIndex, start, fz.End)
		}
		ranges = append(ranges, Range{fz.BlockIndex, start, fz.End})
		remaining -= take
		if fz.Full() {
			p.FillIndex++
		}
	}

	for remaining > 0 {
		fz := openNewZone(p, cols, counter)
		take := remaining
		if take > limits.BlockSize {
			take = limits.BlockSize
		}
		fz.End = take
		for _, c := range cols {
			c.ActivateRange(fz.BlockIndex, 0, take)
		}
		ranges = append(ranges, Range{fz.BlockIndex, 0, take})
		remaining -= take
		if fz.Full() {
			p.FillIndex++
		}
	}

	return ranges
}

// lastNonEmptyZoneIndex returns the index of the zone currently receiving
// deletions: the fill zone if it holds anything, otherwise the last zone.
func lastNonEmptyZoneIndex(p *archetype.Partition) int {
	if fz := p.FillZone(); fz != nil && fz.End > fz.Start {
		return p.FillIndex
	}
	return len(p.Zones) - 1
}

// shrinkZone removes one slot from the back of zones[idx], dropping the
// zone entirely if it was the trailing zone and became empty (spec §5:
// "blocks are never freed", so only the bookkeeping entry goes, not the
// block). Truncating can leave FillIndex pointing at a zone that is already
// Full() — it will be, since every zone before the deleted entity's zone is
// full by invariant — so it advances FillIndex past it, the same
// post-mutation check AllocateOne/AllocateN already apply after filling a
// zone to capacity. Returns the packed id of the slot that was removed.
func shrinkZone(p *archetype.Partition, idx int) ids.Packed {
	z := &p.Zones[idx]
	z.End--
	last := ids.Pack(z.BlockIndex, z.End)
	if z.End == 0 && idx == len(p.Zones)-1 && len(p.Zones) > 1 {
		p.Zones = p.Zones[:len(p.Zones)-1]
		p.FillIndex = len(p.Zones) - 1
		if p.Zones[p.FillIndex].Full() {
			p.FillIndex++
		}
	} else if idx < p.FillIndex {
		p.FillIndex = idx
	}
	return last
}

// Delete swap-removes the entity at packed id `i` within node's partition:
// the last live slot of the fill zone takes its place, and the zone shrinks
// by one (spec §4.5 "Delete (swap-remove) entity"). It returns the packed
// id of the slot that used to hold the last entity — the World uses it to
// repair handles[i] and handles[lastSlot].
func Delete(node *archetype.Node, cols []registry.Thunks, i ids.Packed) ids.Packed {
	p := node.Partition
	idx := lastNonEmptyZoneIndex(p)
	z := p.Zones[idx]
	last := ids.Pack(z.BlockIndex, z.End-1)

	if i != last {
		for _, c := range cols {
			c.Override(i, last)
		}
	}
	shrinkZone(p, idx)
	for _, c := range cols {
		c.DeactivateBit(last)
	}
	return last
}

// MigrateResult reports the two packed ids the World repairs handles with
// after "Migrate one entity" (spec §4.5); B's block index is NewSlot.Block().
type MigrateResult struct {
	// LastSlot is the slot in A that took the deleted slot's place (or the
	// deleted slot itself, if it was already last).
	LastSlot ids.Packed
	// NewSlot is the slot reserved for the entity in B.
	NewSlot ids.Packed
}

// Migrate moves one entity from node A to node B, swap-removing it out of A
// and reserving a slot in B, then copying every column A and B share
// (spec §4.5 "Migrate one entity from A to B"). common must list exactly
// the columns present in both A and B's masks; it is iterated for the
// field copy, while colsA/colsB (the full per-archetype column sets) drive
// the swap-remove and reservation bookkeeping.
func Migrate(a, b *archetype.Node, colsA, colsB, common []registry.Thunks, counter *BlockCounter, srcSlot ids.Packed) MigrateResult {
	// Reserve the destination slot and copy the shared columns out of
	// srcSlot before touching A at all: A's swap-remove below overwrites
	// srcSlot's storage with the zone's last live entity, so the field copy
	// has to read srcSlot while it still holds the migrating entity's data.
	newSlot := AllocateOne(b, colsB, counter)
	for _, c := range common {
		c.Override(newSlot, srcSlot)
	}

	pa := a.Partition
	idx := lastNonEmptyZoneIndex(pa)
	z := pa.Zones[idx]
	last := ids.Pack(z.BlockIndex, z.End-1)

	if srcSlot != last {
		for _, c := range colsA {
			c.Override(srcSlot, last)
		}
	}
	shrinkZone(pa, idx)
	for _, c := range colsA {
		c.DeactivateBit(last)
	}

	return MigrateResult{LastSlot: last, NewSlot: newSlot}
}

// BatchResult is the source/destination pairing for one batch migration,
// in caller order, for the World to repair handles with.
type BatchResult struct {
	// Sources are the original packed ids of the migrated entities, before
	// any swap-remove took place (the order the caller requested).
	Sources []ids.Packed
	// Survivors[i] is the packed id that now occupies Sources[i]'s old slot
	// in A, after the swap-remove that vacated it (equal to Sources[i] if
	// nothing needed to move).
	Survivors []ids.Packed
	// Dest[i] is the slot reserved for Sources[i] in B.
	Dest []ids.Packed
}

// BatchMigrate moves n entities (named by srcSlots, in caller/handle order)
// from A to B in one sweep: collect N source slots from A's fill zone tail
// (last-to-first, to preserve End monotonicity), collect N destination
// slots from B's fill zone head (allocating new B blocks as needed), then
// let every shared column batch-copy fields in one call (spec §4.5 "Batch
// migrate N entities A→B").
func BatchMigrate(a, b *archetype.Node, colsA, colsB, common []registry.Thunks, counter *BlockCounter, srcSlots []ids.Packed) BatchResult {
	n := len(srcSlots)

	// Reserve every destination slot and copy the shared columns out of
	// srcSlots before touching A: the swap-remove sweep below overwrites
	// each vacated srcSlot with another zone member's data, so every field
	// copy has to happen while srcSlots still hold the migrating entities.
	dest := make([]ids.Packed, n)
	for i := 0; i < n; i++ {
		dest[i] = AllocateOne(b, colsB, counter)
	}
	for _, c := range common {
		c.OverrideBatch(dest, srcSlots)
	}

	survivors := make([]ids.Packed, n)

	// Each swap-remove must observe the zone state left by the previous
	// one, so these run sequentially rather than as one closed-form range
	// computation — still O(n) with no per-entity growth/resize cost.
	for i, src := range srcSlots {
		pa := a.Partition
		idx := lastNonEmptyZoneIndex(pa)
		z := pa.Zones[idx]
		last := ids.Pack(z.BlockIndex, z.End-1)
		if src != last {
			for _, c := range colsA {
				c.Override(src, last)
			}
		}
		shrinkZone(pa, idx)
		for _, c := range colsA {
			c.DeactivateBit(last)
		}
		survivors[i] = last
	}

	return BatchResult{Sources: srcSlots, Survivors: survivors, Dest: dest}
}
