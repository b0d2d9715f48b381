package fragstore

import "github.com/TheBitDrifter/fragstore/internal/errs"

// Public error types, re-exported from internal/errs so callers can type-
// switch on them without importing an internal package (the teacher's
// errors.go convention: one exported struct per failure mode).
type (
	DuplicateRegistrationError = errs.DuplicateRegistrationError
	MaxComponentsExceededError = errs.MaxComponentsExceededError
	UnknownComponentError      = errs.UnknownComponentError
	UnknownComponentNameError  = errs.UnknownComponentNameError
	StaleHandleError           = errs.StaleHandleError
	UnknownCommandBufferError  = errs.UnknownCommandBufferError
	NilEntityError             = errs.NilEntityError
	ArchetypeOutOfRangeError   = errs.ArchetypeOutOfRangeError
	LockedStorageError         = errs.LockedStorageError
	ComponentExistsError       = errs.ComponentExistsError
	ComponentNotFoundError     = errs.ComponentNotFoundError
)
