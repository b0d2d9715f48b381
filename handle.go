package fragstore

import (
	"github.com/TheBitDrifter/fragstore/internal/archmask"
	"github.com/TheBitDrifter/fragstore/internal/ids"
)

// DenseHandle names a live entity in dense (archetype-partitioned) storage.
// It carries a stable World-table index plus a generation, per spec §9's
// Design Note substituting handle+generation for the original's raw
// entity-record pointer: WIdx indexes into the World's dense record table,
// Gen must match the record's current generation or the handle is stale.
type DenseHandle struct {
	ids.Handle
}

// IsNil reports whether h is the zero handle.
func (h DenseHandle) IsNil() bool { return h.Handle.IsNil() }

// SparseHandle names a live entity in sparse (non-migrating) storage (spec
// §3: "{ id, generation, mask }"). ID is the raw sparse allocator id; Mask
// is the entity's current component set, tracked here because sparse
// entities have no archetype node to read it from.
type SparseHandle struct {
	ID   int
	Gen  uint32
	Mask archmask.Mask
}

// IsNil reports whether h is the zero handle.
func (h SparseHandle) IsNil() bool { return h == SparseHandle{} }
