package fragstore

import (
	"reflect"
	"sync/atomic"

	"github.com/TheBitDrifter/fragstore/internal/archmask"
	"github.com/TheBitDrifter/fragstore/internal/ids"
)

// SubscriptionID identifies one registered callback, for Unsubscribe.
type SubscriptionID uint64

// Event payload types (spec §6 "Events emitted").
type (
	DenseEntityCreated struct{ Handle DenseHandle }
	DenseEntityDestroyed struct {
		Handle       DenseHandle
		LastPackedID ids.Packed
	}
	DenseComponentAdded struct {
		Handle       DenseHandle
		ComponentIDs []uint32
	}
	DenseComponentRemoved struct {
		Handle       DenseHandle
		ComponentIDs []uint32
	}
	DenseEntityMigrated struct {
		Handle                 DenseHandle
		OldPackedID, LastPackedID ids.Packed
		OldArchetype, NewArchetype uint32
	}

	SparseEntityCreated struct{ Handle SparseHandle }
	SparseEntityDestroyed struct{ Handle SparseHandle }
	SparseComponentAdded struct {
		Handle       SparseHandle
		ComponentIDs []uint32
	}
	SparseComponentRemoved struct {
		Handle       SparseHandle
		ComponentIDs []uint32
	}

	Densified  struct{ OldSparse SparseHandle; NewDense DenseHandle }
	Sparsified struct{ OldDense DenseHandle; NewSparse SparseHandle }

	ArchetypeCreated struct {
		ID           uint32
		Mask         archmask.Mask
		ComponentIDs []uint32
	}

	CommandBufferFlushed struct {
		BufferID          uint32
		EntitiesProcessed int
		OperationCount    int
	}
)

type subscriber struct {
	id SubscriptionID
	fn func(any)
}

// EventBus dispatches structural-change events synchronously on the
// emitting goroutine, World-scoped rather than process-global (spec.md §9
// Design Note: "Global mutable event manager... Specify it as an explicit
// field on the World"). Grounded on delaneyj-arche's listener.Callback
// (event-type-keyed Notify) generalized to per-type subscriber lists keyed
// by reflect.Type, and on the teacher's EntityDestroyCallback single-slot
// pattern generalized to many subscribers per type.
type EventBus struct {
	nextID atomic.Uint64
	subs   map[reflect.Type][]subscriber
}

// NewEventBus creates an empty EventBus.
func NewEventBus() *EventBus {
	return &EventBus{subs: make(map[reflect.Type][]subscriber)}
}

// Subscribe registers fn to be called with every event of type T published
// after this call, returning an id for Unsubscribe.
func Subscribe[T any](b *EventBus, fn func(T)) SubscriptionID {
	id := SubscriptionID(b.nextID.Add(1))
	t := reflect.TypeOf((*T)(nil)).Elem()
	b.subs[t] = append(b.subs[t], subscriber{
		id: id,
		fn: func(v any) { fn(v.(T)) },
	})
	return id
}

// Unsubscribe removes a previously registered callback by id.
func (b *EventBus) Unsubscribe(id SubscriptionID) {
	for t, list := range b.subs {
		for i, s := range list {
			if s.id == id {
				b.subs[t] = append(list[:i], list[i+1:]...)
				return
			}
		}
	}
}

// publish dispatches event v to every subscriber of its concrete type.
// Callbacks must not mutate World structure during dispatch (spec §6:
// undefined behavior otherwise) — the bus does not guard against this, the
// same trust boundary the teacher's cursor/storage lock discipline assumes
// for iteration.
func publish[T any](b *EventBus, v T) {
	if b == nil {
		return
	}
	t := reflect.TypeOf((*T)(nil)).Elem()
	for _, s := range b.subs[t] {
		s.fn(v)
	}
}
