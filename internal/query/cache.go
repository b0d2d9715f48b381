package query

import (
	"github.com/TheBitDrifter/fragstore/internal/archetype"
	"github.com/TheBitDrifter/fragstore/internal/registry"
)

// Cached is a pre-resolved query (spec §4.7 "Caching"): the matching
// Archetype Nodes (dense side), refreshed only when the graph has grown
// since last resolution. The sparse side is not cached: Count recomputes
// the sparse intersection on every call. Grounded on the teacher's SimpleCache keyed-registration
// pattern (cache.go), generalized from a name-keyed item cache to a
// generation-stamped resolved-query cache.
type Cached struct {
	sig        Signature
	graph      *archetype.Graph
	reg        *registry.Registry
	matchedGen int // len(graph.Nodes()) as of last resolve
	matchedSet []*archetype.Node
}

// NewCached creates a Cached query over graph/reg for sig. Call Resolve (or
// Matched/Count) to populate or refresh it.
func NewCached(graph *archetype.Graph, reg *registry.Registry, sig Signature) *Cached {
	return &Cached{sig: sig, graph: graph, reg: reg, matchedGen: -1}
}

// Resolve rebuilds the matched-node list if the graph has grown new nodes
// since the last resolution, skipping the scan entirely otherwise.
func (c *Cached) Resolve() {
	n := len(c.graph.Nodes())
	if n == c.matchedGen {
		return
	}
	c.matchedSet = c.matchedSet[:0]
	for _, node := range c.graph.Nodes() {
		if c.sig.Matches(node.Mask) {
			c.matchedSet = append(c.matchedSet, node)
		}
	}
	c.matchedGen = n
}

// Matched returns the Archetype Nodes currently matching the cached
// signature, refreshing first if the graph has grown.
func (c *Cached) Matched() []*archetype.Node {
	c.Resolve()
	return c.matchedSet
}

// DenseIterate walks the cached match set (instead of rescanning the whole
// graph) the way DenseIterate walks a freshly evaluated signature.
func (c *Cached) DenseIterate(yield func(Range) bool) {
	c.Resolve()
	needsRefinement := c.sig.hasRefinement()
	for _, node := range c.matchedSet {
		if node.Partition == nil {
			continue
		}
		for _, z := range node.Partition.Zones {
			if z.End <= z.Start {
				continue
			}
			r := Range{Node: node, BlockIndex: z.BlockIndex, Start: z.Start, End: z.End}
			if needsRefinement {
				r.RefinementMask = refinementForBlock(c.sig, c.reg, z.BlockIndex)
			}
			if !yield(r) {
				return
			}
		}
	}
}

// Count sums the cached query's matched entities across dense and sparse
// storage.
func (c *Cached) Count() int {
	c.Resolve()
	total := 0
	c.DenseIterate(func(r Range) bool {
		if r.RefinementMask == nil {
			total += r.End - r.Start
		} else {
			total += r.RefinementMask.Card()
		}
		return true
	})
	SparseIterate(c.reg, c.sig, func(r SparseRange) bool {
		total += popcount64(r.Word)
		return true
	})
	return total
}

// Signature returns the signature this cache was built for.
func (c *Cached) Signature() Signature { return c.sig }
