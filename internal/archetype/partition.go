package archetype

import "github.com/TheBitDrifter/fragstore/internal/limits"

// Zone is a contiguous (block_index, [start, end)) sub-range of an
// archetype's dense entity slots (spec §3).
type Zone struct {
	BlockIndex int
	Start, End int
}

// Full reports whether the zone has reached BlockSize capacity.
func (z Zone) Full() bool { return z.End-z.Start >= limits.BlockSize }

// Partition holds the Zones of one Archetype Node that has seen at least
// one dense entity, plus the fill index pointing at the zone currently
// being appended to. Every zone before FillIndex is full; the invariant
// enforced by internal/partition's allocator is that at most one zone (the
// one at FillIndex) is partially filled.
type Partition struct {
	Zones     []Zone
	FillIndex int
}

// FillZone returns a pointer to the zone currently being appended to, or
// nil if every zone is full (FillIndex == len(Zones)).
func (p *Partition) FillZone() *Zone {
	if p.FillIndex >= len(p.Zones) {
		return nil
	}
	return &p.Zones[p.FillIndex]
}

// Len returns the total number of live slots across every zone.
func (p *Partition) Len() int {
	n := 0
	for _, z := range p.Zones {
		n += z.End - z.Start
	}
	return n
}
