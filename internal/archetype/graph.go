// Package archetype implements the Archetype Mask & Graph of spec §4.3 (C3):
// a cached lattice of component-set nodes with add/remove transition edges,
// grounded on delaneyj-arche's archetypeNode toAdd/toRemove adjacency
// arrays (ecs/archetype.go) and the teacher's idsGroupedByMask map-keyed
// lookup (storage.go).
package archetype

import (
	"github.com/TheBitDrifter/fragstore/internal/archmask"
	"github.com/TheBitDrifter/fragstore/internal/bitset"
	"github.com/TheBitDrifter/fragstore/internal/limits"
)

// Node is one Archetype Node: a unique mask value, its sequential id, its
// lazily-created Partition (nil until the first dense allocation into it),
// and two adjacency arrays of transition edges.
type Node struct {
	Mask      archmask.Mask
	ID        uint32
	Partition *Partition

	toAdd         []*Node
	toRemove      []*Node
	addPresent    *bitset.Dense // edge_present summary: O(1) has-edge without reading toAdd
	removePresent *bitset.Dense
}

func newNode(mask archmask.Mask, id uint32) *Node {
	return &Node{Mask: mask, ID: id}
}

func (n *Node) ensureEdges() {
	if n.toAdd != nil {
		return
	}
	n.toAdd = make([]*Node, limits.MaxComponents)
	n.toRemove = make([]*Node, limits.MaxComponents)
	n.addPresent = bitset.NewDense(limits.MaxComponents)
	n.removePresent = bitset.NewDense(limits.MaxComponents)
}

// TransitionAdd returns the node reached by adding comp, if that edge has
// already been recorded.
func (n *Node) TransitionAdd(comp uint32) (*Node, bool) {
	if n.addPresent == nil || !n.addPresent.Get(int(comp)) {
		return nil, false
	}
	return n.toAdd[comp], true
}

// TransitionRemove returns the node reached by removing comp, if that edge
// has already been recorded.
func (n *Node) TransitionRemove(comp uint32) (*Node, bool) {
	if n.removePresent == nil || !n.removePresent.Get(int(comp)) {
		return nil, false
	}
	return n.toRemove[comp], true
}

func (n *Node) setTransitionAdd(comp uint32, to *Node) {
	n.ensureEdges()
	n.toAdd[comp] = to
	n.addPresent.Set(int(comp))
}

func (n *Node) setTransitionRemove(comp uint32, to *Node) {
	n.ensureEdges()
	n.toRemove[comp] = to
	n.removePresent.Set(int(comp))
}

// Graph is the Archetype Graph: one canonical Node per mask value, with
// add/remove transition edges cached as they're discovered.
type Graph struct {
	nodes  []*Node
	byMask map[archmask.Mask]*Node
	nextID uint32

	lastMask  archmask.Mask
	lastNode  *Node
	lastValid bool
}

// NewGraph creates a Graph containing just the empty-mask root node (the
// archetype of an entity with no components).
func NewGraph() *Graph {
	g := &Graph{byMask: make(map[archmask.Mask]*Node)}
	g.getOrCreate(archmask.Mask{})
	return g
}

// Root returns the empty-mask node.
func (g *Graph) Root() *Node {
	n, _ := g.Find(archmask.Mask{})
	return n
}

func (g *Graph) getOrCreate(mask archmask.Mask) (*Node, bool) {
	if n, ok := g.byMask[mask]; ok {
		return n, false
	}
	n := newNode(mask, g.nextID)
	g.nextID++
	g.byMask[mask] = n
	g.nodes = append(g.nodes, n)
	return n, true
}

// Find looks up the node for mask by hash (Go map lookup), O(1).
func (g *Graph) Find(mask archmask.Mask) (*Node, bool) {
	n, ok := g.byMask[mask]
	return n, ok
}

// FindFast checks the one-slot (last_mask, last_node) cache before falling
// back to Find, accelerating repeated lookups with the same signature.
func (g *Graph) FindFast(mask archmask.Mask) (*Node, bool) {
	if g.lastValid && g.lastMask == mask {
		return g.lastNode, true
	}
	n, ok := g.Find(mask)
	if ok {
		g.remember(mask, n)
	}
	return n, ok
}

func (g *Graph) remember(mask archmask.Mask, n *Node) {
	g.lastMask, g.lastNode, g.lastValid = mask, n, true
}

// AddComponent returns the node reached from n by adding comp, creating it
// (and the mutual remove edge back to n) on first use. Idempotent: adding a
// component already present returns n unchanged (spec §7 "logical no-op").
func (g *Graph) AddComponent(n *Node, comp uint32) *Node {
	if n.Mask.Has(comp) {
		return n
	}
	if to, ok := n.TransitionAdd(comp); ok {
		g.remember(to.Mask, to)
		return to
	}
	newMask := n.Mask
	newMask.SetBit(comp)
	to, _ := g.getOrCreate(newMask)
	n.setTransitionAdd(comp, to)
	to.setTransitionRemove(comp, n)
	g.remember(newMask, to)
	return to
}

// RemoveComponent returns the node reached from n by removing comp,
// creating it (and the mutual add edge back to n) on first use. Idempotent:
// removing an absent component returns n unchanged.
func (g *Graph) RemoveComponent(n *Node, comp uint32) *Node {
	if !n.Mask.Has(comp) {
		return n
	}
	if to, ok := n.TransitionRemove(comp); ok {
		g.remember(to.Mask, to)
		return to
	}
	newMask := n.Mask
	newMask.UnsetBit(comp)
	to, _ := g.getOrCreate(newMask)
	n.setTransitionRemove(comp, to)
	to.setTransitionAdd(comp, n)
	g.remember(newMask, to)
	return to
}

// WarmupTransitions prepays the add-edges from base for every component in
// comps, per spec's "warmup_transitions(base, comps) for prepaying hot
// edges".
func (g *Graph) WarmupTransitions(base *Node, comps []uint32) {
	for _, c := range comps {
		g.AddComponent(base, c)
	}
}

// Nodes returns every node created so far, in creation order.
func (g *Graph) Nodes() []*Node { return g.nodes }

// NodeByID returns the node with the given sequential id.
func (g *Graph) NodeByID(id uint32) (*Node, bool) {
	if int(id) >= len(g.nodes) {
		return nil, false
	}
	return g.nodes[id], true
}
