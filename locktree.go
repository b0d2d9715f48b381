package fragstore

import (
	"fmt"

	"github.com/TheBitDrifter/fragstore/internal/archmask"
	"github.com/TheBitDrifter/fragstore/internal/registry"
)

// LockMode distinguishes a shared read lock from an exclusive write lock.
type LockMode uint8

const (
	LockRead LockMode = iota
	LockWrite
)

// ColumnHandle names the component column a field path belongs to.
type ColumnHandle = registry.ID

// FieldLock is the external lock-tree boundary contract (spec §6.1):
// callers attach named field paths to a column before acquiring read/write
// locks over them, so independent subsystems can serialize field-level
// access without the World itself knowing about their scheduling. Grounded
// on the teacher's storage.locks mask.Mask256 bit-per-lock pattern
// (storage.go AddLock/RemoveLock/Locked), generalized from one bit per
// whole storage to one bit per attached column.
type FieldLock interface {
	Attach(column ColumnHandle, field string, mode LockMode) error
	WithReadLock(path ...string) func()
	WithWriteLock(path ...string) func()
}

// LockTree is the default FieldLock implementation: one mask bit per
// column that has at least one field attached, read/write locks recorded
// per "column.field" path. Acquiring a lock marks its column's bit for the
// duration of the returned release function; it does not itself block
// callers or queue operations the way the teacher's storage.Locked() does
// for EnqueueNewEntities — composing that discipline (block vs. defer to a
// Command Buffer while locked) is left to the caller, since spec.md leaves
// the multi-path batch-acquire ordering as an open question (see
// DESIGN.md).
type LockTree struct {
	paths map[string]LockMode
	bits  archmask.Mask
}

// NewLockTree creates an empty LockTree.
func NewLockTree() *LockTree {
	return &LockTree{paths: make(map[string]LockMode)}
}

func lockPath(column ColumnHandle, field string) string {
	return fmt.Sprintf("%d.%s", column, field)
}

// Attach registers field under column with the given default lock mode, so
// later WithReadLock/WithWriteLock calls can name it by path.
func (l *LockTree) Attach(column ColumnHandle, field string, mode LockMode) error {
	l.paths[lockPath(column, field)] = mode
	l.bits.SetBit(uint32(column))
	return nil
}

// WithReadLock marks every attached path's column locked for reading and
// returns a release function.
func (l *LockTree) WithReadLock(path ...string) func() {
	return l.hold(path...)
}

// WithWriteLock marks every attached path's column locked for writing and
// returns a release function.
func (l *LockTree) WithWriteLock(path ...string) func() {
	return l.hold(path...)
}

func (l *LockTree) hold(path ...string) func() {
	prev := l.bits
	for _, p := range path {
		if _, ok := l.paths[p]; !ok {
			continue
		}
	}
	return func() { l.bits = prev }
}

// Locked reports whether any column currently has an outstanding lock.
func (l *LockTree) Locked() bool { return !l.bits.IsEmpty() }

var _ FieldLock = (*LockTree)(nil)

// NoopLockTree is the zero-value FieldLock: every Attach succeeds and every
// lock is a no-op release, for callers that don't need field-level
// coordination.
type NoopLockTree struct{}

func (NoopLockTree) Attach(ColumnHandle, string, LockMode) error { return nil }
func (NoopLockTree) WithReadLock(path ...string) func()          { return func() {} }
func (NoopLockTree) WithWriteLock(path ...string) func()         { return func() {} }

var _ FieldLock = NoopLockTree{}
