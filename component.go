package fragstore

import (
	"github.com/TheBitDrifter/fragstore/internal/fragment"
	"github.com/TheBitDrifter/fragstore/internal/ids"
	"github.com/TheBitDrifter/fragstore/internal/registry"
)

// ComponentHandle is the typed accessor returned by RegisterComponent,
// grounded on the teacher's AccessibleComponent[T]/table.Accessor[T]
// (component_accessor.go): one handle per registered type that reads and
// writes through the Fragment Vector backing it, without the rest of the
// World ever needing to know T.
type ComponentHandle[T any] struct {
	world *World
	id    registry.ID
	vec   *fragment.Vector[T]
}

// ID returns the Component Registry id this handle was assigned.
func (c ComponentHandle[T]) ID() registry.ID { return c.id }

// Get reads the component value for a dense entity.
func (c ComponentHandle[T]) Get(h DenseHandle) (T, error) {
	p, err := c.world.packedFor(h)
	if err != nil {
		var zero T
		return zero, err
	}
	return c.vec.Get(p), nil
}

// Set writes the component value for a dense entity, stamping its change
// mask if the component is change-tracked.
func (c ComponentHandle[T]) Set(h DenseHandle, v T) error {
	p, err := c.world.packedFor(h)
	if err != nil {
		return err
	}
	c.vec.Set(p, v)
	return nil
}

// Slot returns a direct pointer into storage for a dense entity, bypassing
// any configured read/write hooks (for cursor-style in-place mutation).
func (c ComponentHandle[T]) Slot(h DenseHandle) (*T, error) {
	p, err := c.world.packedFor(h)
	if err != nil {
		return nil, err
	}
	return c.vec.Slot(p), nil
}

// GetSparse reads the component value for a sparse entity.
func (c ComponentHandle[T]) GetSparse(h SparseHandle) (T, error) {
	if err := c.world.validateSparse(h); err != nil {
		var zero T
		return zero, err
	}
	return c.vec.Get(sparsePacked(h.ID)), nil
}

// SetSparse writes the component value for a sparse entity.
func (c ComponentHandle[T]) SetSparse(h SparseHandle, v T) error {
	if err := c.world.validateSparse(h); err != nil {
		return err
	}
	c.vec.Set(sparsePacked(h.ID), v)
	return nil
}

func sparsePacked(id int) ids.Packed {
	return ids.Pack(ids.BlockOf(id), ids.SlotOf(id))
}

// RegisterComponent registers component type T under name, with optional
// change tracking, and returns the typed handle used to Get/Set its values
// (spec §4.4, and the teacher's FactoryNewComponent[T]). Equivalent to
// RegisterComponentRW with nil read/write hooks.
func RegisterComponent[T any](w *World, name string, tracked bool) (ComponentHandle[T], error) {
	return RegisterComponentRW[T](w, name, tracked, nil, nil)
}

// RegisterComponentRW registers component type T with explicit read/write
// indirection hooks (spec §4.1: "user-defined setter/getter indirection"),
// applied on every Get/Set through the returned handle.
func RegisterComponentRW[T any](w *World, name string, tracked bool, read fragment.ReadFn[T], write fragment.WriteFn[T]) (ComponentHandle[T], error) {
	id, vec, err := registry.Register[T](w.registry, name, tracked, read, write)
	if err != nil {
		return ComponentHandle[T]{}, err
	}
	return ComponentHandle[T]{world: w, id: id, vec: vec}, nil
}
