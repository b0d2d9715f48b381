// Package registry implements the Component Registry of spec §4.4 (C4): a
// type-erased handle to each registered component type, storing a table of
// monomorphized operation thunks over its Fragment Vector so the rest of
// the store never needs to know a component's Go type.
package registry

import (
	"github.com/TheBitDrifter/fragstore/internal/bitset"
	"github.com/TheBitDrifter/fragstore/internal/errs"
	"github.com/TheBitDrifter/fragstore/internal/fragment"
	"github.com/TheBitDrifter/fragstore/internal/ids"
	"github.com/TheBitDrifter/fragstore/internal/limits"
)

// ID is a dense component identifier in [0, MaxComponents), assigned by
// registration order.
type ID uint32

// Thunks is the monomorphized operation table generated at registration
// time for one component's Fragment Vector. The registry only ever calls
// through these closures — it never inspects field layout itself.
type Thunks struct {
	Name                 string
	Resize               func(nBlocks int)
	NewBlockAt           func(blockIdx int)
	NewSparseBlock       func(idBase int, initialSlots ...int)
	NewSparseBlocks      func(idBases []int, initialSlots [][]int)
	Override             func(dst, src ids.Packed)
	OverrideBatch        func(dst, src []ids.Packed)
	ActivateBit          func(p ids.Packed)
	ActivateRange        func(blockIdx, start, end int)
	DeactivateBit        func(p ids.Packed)
	DeactivateRange      func(blockIdx, start, end int)
	ActivateSparseBit    func(id int)
	DeactivateSparseBit  func(id int)
	ActivateSparseBits   func(idList []int)
	DeactivateSparseBits func(idList []int)
	GetBlockMask         func(blockIdx int) *bitset.Dense
	GetChangeMask        func(blockIdx int) *bitset.Dense
	GetSparseMask        func() *bitset.Sparse
	ClearChanges         func()
	Tracked              bool
}

// Registry assigns component ids and stores each one's operation thunks.
type Registry struct {
	byName map[string]ID
	thunks []Thunks
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{byName: make(map[string]ID)}
}

// Register creates a Fragment Vector for T and assigns it the next free
// component id. Registering the same name twice is a contract violation
// (spec §7).
func Register[T any](r *Registry, name string, tracked bool, read fragment.ReadFn[T], write fragment.WriteFn[T]) (ID, *fragment.Vector[T], error) {
	if _, exists := r.byName[name]; exists {
		return 0, nil, errs.DuplicateRegistrationError{Name: name}
	}
	if len(r.thunks) >= limits.MaxComponents {
		return 0, nil, errs.MaxComponentsExceededError{Max: limits.MaxComponents}
	}
	vec := fragment.New[T](tracked, read, write)
	id := ID(len(r.thunks))
	r.byName[name] = id

	r.thunks = append(r.thunks, Thunks{
		Name:                 name,
		Resize:               vec.Resize,
		NewBlockAt:           vec.NewBlockAt,
		NewSparseBlock:       vec.NewSparseBlock,
		NewSparseBlocks:      vec.NewSparseBlocks,
		Override:             vec.Override,
		OverrideBatch:        vec.OverrideBatch,
		ActivateBit:          vec.ActivateBit,
		ActivateRange:        vec.ActivateRange,
		DeactivateBit:        vec.DeactivateBit,
		DeactivateRange:      vec.DeactivateRange,
		ActivateSparseBit:    vec.ActivateSparseBit,
		DeactivateSparseBit:  vec.DeactivateSparseBit,
		ActivateSparseBits:   vec.ActivateSparseBits,
		DeactivateSparseBits: vec.DeactivateSparseBits,
		GetBlockMask:         vec.GetBlockMask,
		GetChangeMask:        vec.GetChangeMask,
		GetSparseMask:        vec.GetSparseMask,
		ClearChanges:         vec.ClearChanges,
		Tracked:              tracked,
	})
	return id, vec, nil
}

// Lookup resolves a registered component's id by name.
func (r *Registry) Lookup(name string) (ID, bool) {
	id, ok := r.byName[name]
	return id, ok
}

// Thunks returns the operation table for id, or an error if id was never
// issued by this registry.
func (r *Registry) Thunks(id ID) (Thunks, error) {
	if int(id) >= len(r.thunks) {
		return Thunks{}, errs.UnknownComponentError{ID: uint32(id)}
	}
	return r.thunks[id], nil
}

// Len returns the number of registered components.
func (r *Registry) Len() int { return len(r.thunks) }

// All returns every registered component's thunk table, indexed by ID.
func (r *Registry) All() []Thunks { return r.thunks }
