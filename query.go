package fragstore

import "github.com/TheBitDrifter/fragstore/internal/query"

// Public aliases over internal/query's types, so callers compose queries
// without importing an internal package (spec §4.7).
type (
	Signature   = query.Signature
	DenseRange  = query.Range
	SparseRange = query.SparseRange
	Filter      = query.Filter
	Builder     = query.Builder
	CachedQuery = query.Cached
)

// Query starts a new Builder for assembling a Signature programmatically.
func (w *World) Query() *Builder {
	return query.NewBuilder()
}

// Compile parses a Query DSL expression into a Signature, resolving
// component names through this World's registry (spec §4.7 "Query DSL").
func (w *World) Compile(expr string) (Signature, error) {
	return query.Compile(w.registry, expr)
}

// DenseIterate walks every archetype matching sig, yielding one DenseRange
// per contiguous zone of matching slots.
func (w *World) DenseIterate(sig Signature, yield func(DenseRange) bool) {
	query.DenseIterate(w.graph, w.registry, sig, yield)
}

// SparseIterate walks the sparse storage matching sig, yielding one
// SparseRange per non-zero occupancy word.
func (w *World) SparseIterate(sig Signature, yield func(SparseRange) bool) {
	query.SparseIterate(w.registry, sig, yield)
}

// Count returns the total number of entities (dense and sparse) matching
// sig.
func (w *World) Count(sig Signature) int {
	return query.Count(w.graph, w.registry, sig)
}

// NewCachedQuery returns a Cached query over sig, re-resolving its matched
// archetype set only as the graph grows new nodes (spec §4.7 "Caching").
func (w *World) NewCachedQuery(sig Signature) *CachedQuery {
	return query.NewCached(w.graph, w.registry, sig)
}
