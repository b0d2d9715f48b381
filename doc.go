/*
Package fragstore is an Entity-Component-Store kernel: an in-process data
store that groups typed component records under entity handles and supports
high-throughput iteration over sub-populations matching a structural query.

It is built on an archetype graph over block-structured columnar storage
(Fragment Vectors): entities sharing the same component set live packed
together in the same archetype's partition for cache-friendly iteration, and
structural changes (add/remove component, delete) move an entity between
archetypes via swap-remove and migration rather than leaving holes.

Core Concepts:

  - Entity: a handle (DenseHandle or SparseHandle) naming a live record.
  - Component: a user-registered value type, added via RegisterComponent.
  - Archetype: the set of component types an entity currently carries.
  - Query: a signature matching entities by archetype membership, change
    tracking, and user filters.

Basic Usage:

	w := fragstore.NewWorld(fragstore.DefaultConfig())

	type Position struct{ X, Y float64 }
	type Velocity struct{ DX, DY float64 }

	pos, _ := fragstore.RegisterComponent[Position](w, "position", true)
	vel, _ := fragstore.RegisterComponent[Velocity](w, "velocity", false)

	h, _ := w.CreateEntity(pos.ID(), vel.ID())
	pos.Set(h, Position{X: 1, Y: 2})

	sig := w.Query().With(pos.ID(), vel.ID()).Build()
	w.DenseIterate(sig, func(r fragstore.DenseRange) bool {
		// process r.BlockIndex, r.Start, r.End
		return true
	})

fragstore favors explicit World-scoped state over globals: every resource
(registry, archetype graph, generation tables, command buffers) lives on the
World value the caller constructs, so multiple independent stores can
coexist in one process.
*/
package fragstore
