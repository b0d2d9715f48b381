// Package errs defines the store's error taxonomy (spec §7), shared between
// internal packages and the root package so there's one definition per
// failure mode, in the teacher's errors.go style: one exported struct per
// case with an Error() string method.
package errs

import "fmt"

// DuplicateRegistrationError is returned when a component name is
// registered twice.
type DuplicateRegistrationError struct{ Name string }

func (e DuplicateRegistrationError) Error() string {
	return fmt.Sprintf("component %q is already registered", e.Name)
}

// MaxComponentsExceededError is returned when registration would exceed
// MaxComponents.
type MaxComponentsExceededError struct{ Max int }

func (e MaxComponentsExceededError) Error() string {
	return fmt.Sprintf("component count exceeds maximum (%d)", e.Max)
}

// UnknownComponentError is returned for operations referencing a component
// id the registry never issued.
type UnknownComponentError struct{ ID uint32 }

func (e UnknownComponentError) Error() string {
	return fmt.Sprintf("unknown component id %d", e.ID)
}

// UnknownComponentNameError is returned when a DSL expression or lookup
// names a component that was never registered.
type UnknownComponentNameError struct{ Name string }

func (e UnknownComponentNameError) Error() string {
	return fmt.Sprintf("unknown component name %q", e.Name)
}

// UnknownCommandBufferError is returned when Flush names a buffer id that
// was never created with NewCommandBuffer.
type UnknownCommandBufferError struct{ ID uint32 }

func (e UnknownCommandBufferError) Error() string {
	return fmt.Sprintf("unknown command buffer id %d", e.ID)
}

// StaleHandleError is returned when a handle's generation no longer matches
// the live entity record at its index.
type StaleHandleError struct{ Index, Generation, Current uint32 }

func (e StaleHandleError) Error() string {
	return fmt.Sprintf("stale handle: index %d generation %d, current generation %d", e.Index, e.Generation, e.Current)
}

// NilEntityError is returned when a dense handle has no backing record.
type NilEntityError struct{}

func (e NilEntityError) Error() string { return "nil entity handle" }

// ArchetypeOutOfRangeError is returned when an archetype id doesn't name a
// live node in the graph. World.AddComponentBatch also returns it, with the
// first handle's archetype id, when the handles don't all share that
// archetype.
type ArchetypeOutOfRangeError struct{ ID uint32 }

func (e ArchetypeOutOfRangeError) Error() string {
	return fmt.Sprintf("archetype id %d is out of range", e.ID)
}

// LockedStorageError describes a structural mutation attempted while the
// World (or the column it targets) is locked. World's own methods do not
// check locks and never return it.
type LockedStorageError struct{}

func (e LockedStorageError) Error() string { return "storage is currently locked" }

// ComponentExistsError is returned by strict add-component callers that
// want an error instead of the spec's default silent no-op.
type ComponentExistsError struct{ ID uint32 }

func (e ComponentExistsError) Error() string {
	return fmt.Sprintf("component %d already exists on entity", e.ID)
}

// ComponentNotFoundError is returned by strict remove-component callers
// that want an error instead of the spec's default silent no-op.
type ComponentNotFoundError struct{ ID uint32 }

func (e ComponentNotFoundError) Error() string {
	return fmt.Sprintf("component %d does not exist on entity", e.ID)
}
