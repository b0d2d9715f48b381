package fragstore

import (
	"fmt"

	"github.com/TheBitDrifter/bark"
	"github.com/TheBitDrifter/fragstore/internal/archetype"
	"github.com/TheBitDrifter/fragstore/internal/archmask"
	"github.com/TheBitDrifter/fragstore/internal/cmdbuffer"
	"github.com/TheBitDrifter/fragstore/internal/errs"
	"github.com/TheBitDrifter/fragstore/internal/ids"
	"github.com/TheBitDrifter/fragstore/internal/partition"
	"github.com/TheBitDrifter/fragstore/internal/registry"
	"github.com/TheBitDrifter/fragstore/internal/sparsealloc"
)

// denseRecord is one World-table slot: the live entity's current packed
// slot and archetype node, plus the generation the issued handle must
// match (spec §9's handle+generation substitute for a raw pointer).
type denseRecord struct {
	packed ids.Packed
	node   *archetype.Node
	gen    uint32
	alive  bool
}

// slotKey identifies one physical dense slot, for repairing the World's
// handle table after a partition swap-remove or migration moves whichever
// entity used to live there.
type slotKey struct {
	nodeID uint32
	packed ids.Packed
}

// World is the World Façade of spec §4.9 (C9): the boundary every caller
// goes through to create, query and destroy entities. It owns every other
// component's state (registry, archetype graph, allocators, event bus,
// command buffers) as explicit fields rather than process globals (spec.md
// §9 Design Note).
type World struct {
	cfg      Config
	registry *registry.Registry
	graph    *archetype.Graph
	counter  partition.BlockCounter
	sparse   *sparsealloc.Allocator

	dense     []denseRecord
	denseFree []uint32
	slotOwner map[slotKey]uint32

	sparseMasks []archmask.Mask

	buffers map[uint32]*cmdbuffer.Buffer
	events  *EventBus
}

// NewWorld creates an empty World with cfg's tunables.
func NewWorld(cfg Config) *World {
	return &World{
		cfg:       cfg,
		registry:  registry.New(),
		graph:     archetype.NewGraph(),
		sparse:    sparsealloc.New(),
		slotOwner: make(map[slotKey]uint32),
		buffers:   make(map[uint32]*cmdbuffer.Buffer),
		events:    NewEventBus(),
	}
}

// Events returns the World's event bus, for Subscribe/Unsubscribe.
func (w *World) Events() *EventBus { return w.events }

// Lookup resolves a registered component's id by the name it was
// registered under.
func (w *World) Lookup(name string) (registry.ID, bool) {
	return w.registry.Lookup(name)
}

func (w *World) columnsForMask(m archmask.Mask) []registry.Thunks {
	bits := m.Components()
	out := make([]registry.Thunks, 0, len(bits))
	for _, b := range bits {
		if t, err := w.registry.Thunks(registry.ID(b)); err == nil {
			out = append(out, t)
		}
	}
	return out
}

func (w *World) maskFor(cids []registry.ID) archmask.Mask {
	var m archmask.Mask
	for _, c := range cids {
		m.SetBit(uint32(c))
	}
	return m
}

func (w *World) nodeFor(m archmask.Mask) *archetype.Node {
	if n, ok := w.graph.Find(m); ok {
		return n
	}
	n := w.graph.Root()
	for _, c := range m.Components() {
		n = w.graph.AddComponent(n, c)
	}
	return n
}

// validateDense checks h against the World's generation table, returning
// the record it names or a StaleHandleError/NilEntityError.
func (w *World) validateDense(h DenseHandle) (*denseRecord, error) {
	if h.IsNil() {
		return nil, errs.NilEntityError{}
	}
	if int(h.WIdx) >= len(w.dense) {
		return nil, errs.StaleHandleError{Index: h.WIdx, Generation: h.Gen}
	}
	rec := &w.dense[h.WIdx]
	if !rec.alive || rec.gen != h.Gen {
		return nil, errs.StaleHandleError{Index: h.WIdx, Generation: h.Gen, Current: rec.gen}
	}
	return rec, nil
}

func (w *World) packedFor(h DenseHandle) (ids.Packed, error) {
	rec, err := w.validateDense(h)
	if err != nil {
		return 0, err
	}
	return rec.packed, nil
}

// validateSparse checks h's generation against the sparse allocator's
// current generation for h.ID.
func (w *World) validateSparse(h SparseHandle) error {
	if w.sparse.Generation(h.ID) != h.Gen {
		return errs.StaleHandleError{Index: uint32(h.ID), Generation: h.Gen, Current: w.sparse.Generation(h.ID)}
	}
	return nil
}

func (w *World) allocWidx() uint32 {
	if n := len(w.denseFree); n > 0 {
		widx := w.denseFree[n-1]
		w.denseFree = w.denseFree[:n-1]
		return widx
	}
	widx := uint32(len(w.dense))
	w.dense = append(w.dense, denseRecord{})
	return widx
}

func (w *World) ownerKey(node *archetype.Node, p ids.Packed) slotKey {
	return slotKey{nodeID: node.ID, packed: p}
}

func (w *World) setOwner(node *archetype.Node, p ids.Packed, widx uint32) {
	w.slotOwner[w.ownerKey(node, p)] = widx
	w.dense[widx].packed = p
	w.dense[widx].node = node
}

func (w *World) ownerOf(node *archetype.Node, p ids.Packed) (uint32, bool) {
	widx, ok := w.slotOwner[w.ownerKey(node, p)]
	return widx, ok
}

func (w *World) clearOwner(node *archetype.Node, p ids.Packed) {
	delete(w.slotOwner, w.ownerKey(node, p))
}

// repairSwapRemove fixes the handle table after a partition swap-remove
// moved whichever entity lived at `last` into `removed`'s old slot (spec:
// "Return lid so the World can fix its handle table").
func (w *World) repairSwapRemove(node *archetype.Node, removed, last ids.Packed) {
	if last == removed {
		w.clearOwner(node, removed)
		return
	}
	widx, ok := w.ownerOf(node, last)
	if !ok {
		// The partition allocator reported a survivor slot the World never
		// recorded an owner for — a bookkeeping invariant violation, not a
		// reachable caller error (mirrors the teacher's bark.AddTrace panic
		// on internal contract breaks in entity.go/query.go).
		err := fmt.Errorf("fragstore: no owner recorded for archetype %d slot %v", node.ID, last)
		panic(bark.AddTrace(err))
	}
	w.setOwner(node, removed, widx)
	w.clearOwner(node, last)
}

func (w *World) retire(widx uint32) {
	w.dense[widx].alive = false
	w.dense[widx].gen++
	w.denseFree = append(w.denseFree, widx)
}

func (w *World) ensureSparseMaskCap() {
	for len(w.sparseMasks) < w.sparse.MaxIndex() {
		w.sparseMasks = append(w.sparseMasks, archmask.Mask{})
	}
}

// CreateEntity allocates one dense entity carrying exactly the given
// components (spec §4.5 "Allocate one entity into archetype A").
func (w *World) CreateEntity(cids ...registry.ID) (DenseHandle, error) {
	hs, err := w.CreateEntities(1, cids...)
	if err != nil {
		return DenseHandle{}, err
	}
	return hs[0], nil
}

// CreateEntities allocates n dense entities carrying the given components
// in one growth step (spec §4.5 "Allocate N entities").
func (w *World) CreateEntities(n int, cids ...registry.ID) ([]DenseHandle, error) {
	node := w.nodeFor(w.maskFor(cids))
	cols := w.columnsForMask(node.Mask)
	ranges := partition.AllocateN(node, cols, &w.counter, n)

	handles := make([]DenseHandle, 0, n)
	for _, r := range ranges {
		for slot := r.Start; slot < r.End; slot++ {
			packed := ids.Pack(r.BlockIndex, slot)
			widx := w.allocWidx()
			w.dense[widx].alive = true
			w.setOwner(node, packed, widx)
			h := DenseHandle{ids.Handle{WIdx: widx, Gen: w.dense[widx].gen}}
			handles = append(handles, h)
			publish(w.events, DenseEntityCreated{Handle: h})
		}
	}
	return handles, nil
}

// CreateSparseEntity allocates one sparse entity carrying the given
// components, never migrating into a dense partition (spec §4.6).
func (w *World) CreateSparseEntity(cids ...registry.ID) (SparseHandle, error) {
	m := w.maskFor(cids)
	cols := w.columnsForMask(m)
	id := w.sparse.Allocate(cols)
	w.ensureSparseMaskCap()
	w.sparseMasks[id] = m
	h := SparseHandle{ID: id, Gen: w.sparse.Generation(id), Mask: m}
	publish(w.events, SparseEntityCreated{Handle: h})
	return h, nil
}

// DeleteEntity swap-removes a dense entity, repairing the handle table for
// whichever surviving entity takes its slot (spec §4.5 "Delete (swap-remove)
// entity").
func (w *World) DeleteEntity(h DenseHandle) error {
	rec, err := w.validateDense(h)
	if err != nil {
		return err
	}
	node, packed := rec.node, rec.packed
	cols := w.columnsForMask(node.Mask)
	last := partition.Delete(node, cols, packed)
	w.repairSwapRemove(node, packed, last)
	w.retire(h.WIdx)
	publish(w.events, DenseEntityDestroyed{Handle: h, LastPackedID: last})
	return nil
}

// DeleteSparseEntity recycles a sparse entity's id.
func (w *World) DeleteSparseEntity(h SparseHandle) error {
	if err := w.validateSparse(h); err != nil {
		return err
	}
	cols := w.columnsForMask(h.Mask)
	w.sparse.Delete(cols, h.ID)
	publish(w.events, SparseEntityDestroyed{Handle: h})
	return nil
}

// AddComponent migrates a dense entity to the archetype reached by adding
// every given component, a logical no-op for components already present
// (spec §4.5/§7).
func (w *World) AddComponent(h DenseHandle, cids ...registry.ID) error {
	rec, err := w.validateDense(h)
	if err != nil {
		return err
	}
	target := rec.node
	for _, c := range cids {
		target = w.graph.AddComponent(target, uint32(c))
	}
	if target == rec.node {
		return nil
	}
	w.migrate(h, rec, target)
	ids32 := make([]uint32, len(cids))
	for i, c := range cids {
		ids32[i] = uint32(c)
	}
	publish(w.events, DenseComponentAdded{Handle: h, ComponentIDs: ids32})
	return nil
}

// RemoveComponent migrates a dense entity to the archetype reached by
// removing every given component, a logical no-op for components already
// absent.
func (w *World) RemoveComponent(h DenseHandle, cids ...registry.ID) error {
	rec, err := w.validateDense(h)
	if err != nil {
		return err
	}
	target := rec.node
	for _, c := range cids {
		target = w.graph.RemoveComponent(target, uint32(c))
	}
	if target == rec.node {
		return nil
	}
	w.migrate(h, rec, target)
	ids32 := make([]uint32, len(cids))
	for i, c := range cids {
		ids32[i] = uint32(c)
	}
	publish(w.events, DenseComponentRemoved{Handle: h, ComponentIDs: ids32})
	return nil
}

// migrate moves the entity owning rec from its current node to target,
// repairing the handle table on both the vacated and the newly occupied
// slot (spec §4.5 "Migrate one entity from A to B").
func (w *World) migrate(h DenseHandle, rec *denseRecord, target *archetype.Node) {
	oldNode, oldPacked := rec.node, rec.packed
	colsA := w.columnsForMask(oldNode.Mask)
	colsB := w.columnsForMask(target.Mask)
	common := w.columnsForMask(oldNode.Mask.And(target.Mask))

	res := partition.Migrate(oldNode, target, colsA, colsB, common, &w.counter, oldPacked)
	w.repairSwapRemove(oldNode, oldPacked, res.LastSlot)
	w.setOwner(target, res.NewSlot, h.WIdx)

	publish(w.events, DenseEntityMigrated{
		Handle:       h,
		OldPackedID:  oldPacked,
		LastPackedID: res.LastSlot,
		OldArchetype: oldNode.ID,
		NewArchetype: target.ID,
	})
}

// AddComponentBatch migrates every given entity (which must currently share
// one archetype) to the node reached by adding the given components in one
// sweep, using the partition allocator's batch migration path instead of
// one single-entity migration per handle (spec §4.5 "Batch migrate N
// entities A→B"). It errors if the handles don't all share a source
// archetype.
func (w *World) AddComponentBatch(handles []DenseHandle, cids ...registry.ID) error {
	if len(handles) == 0 {
		return nil
	}
	first, err := w.validateDense(handles[0])
	if err != nil {
		return err
	}
	oldNode := first.node
	srcSlots := make([]ids.Packed, len(handles))
	for i, h := range handles {
		rec, err := w.validateDense(h)
		if err != nil {
			return err
		}
		if rec.node != oldNode {
			return errs.ArchetypeOutOfRangeError{ID: oldNode.ID}
		}
		srcSlots[i] = rec.packed
	}

	target := oldNode
	for _, c := range cids {
		target = w.graph.AddComponent(target, uint32(c))
	}
	if target == oldNode {
		return nil
	}

	colsA := w.columnsForMask(oldNode.Mask)
	colsB := w.columnsForMask(target.Mask)
	common := w.columnsForMask(oldNode.Mask.And(target.Mask))
	res := partition.BatchMigrate(oldNode, target, colsA, colsB, common, &w.counter, srcSlots)

	for i := range handles {
		w.repairSwapRemove(oldNode, res.Sources[i], res.Survivors[i])
	}
	for i, h := range handles {
		w.setOwner(target, res.Dest[i], h.WIdx)
		publish(w.events, DenseEntityMigrated{
			Handle:       h,
			OldPackedID:  res.Sources[i],
			LastPackedID: res.Survivors[i],
			OldArchetype: oldNode.ID,
			NewArchetype: target.ID,
		})
	}
	return nil
}

// MakeDense moves a sparse entity into dense (archetype-partitioned)
// storage, copying its current component values column by column.
func (w *World) MakeDense(h SparseHandle) (DenseHandle, error) {
	if err := w.validateSparse(h); err != nil {
		return DenseHandle{}, err
	}
	node := w.nodeFor(h.Mask)
	cols := w.columnsForMask(h.Mask)
	srcPacked := sparsePacked(h.ID)
	dstPacked := partition.AllocateOne(node, cols, &w.counter)
	for _, c := range cols {
		c.Override(dstPacked, srcPacked)
	}
	w.sparse.Delete(cols, h.ID)

	widx := w.allocWidx()
	w.dense[widx].alive = true
	w.setOwner(node, dstPacked, widx)
	dh := DenseHandle{ids.Handle{WIdx: widx, Gen: w.dense[widx].gen}}
	publish(w.events, Densified{OldSparse: h, NewDense: dh})
	return dh, nil
}

// MakeSparse moves a dense entity into sparse (non-migrating) storage,
// copying its current component values column by column.
func (w *World) MakeSparse(h DenseHandle) (SparseHandle, error) {
	rec, err := w.validateDense(h)
	if err != nil {
		return SparseHandle{}, err
	}
	node, srcPacked := rec.node, rec.packed
	cols := w.columnsForMask(node.Mask)

	newID := w.sparse.Allocate(cols)
	dstPacked := sparsePacked(newID)
	for _, c := range cols {
		c.Override(dstPacked, srcPacked)
	}

	last := partition.Delete(node, cols, srcPacked)
	w.repairSwapRemove(node, srcPacked, last)
	w.retire(h.WIdx)

	w.ensureSparseMaskCap()
	w.sparseMasks[newID] = node.Mask
	sh := SparseHandle{ID: newID, Gen: w.sparse.Generation(newID), Mask: node.Mask}
	publish(w.events, Sparsified{OldDense: h, NewSparse: sh})
	return sh, nil
}

// NewCommandBuffer creates and registers a Command Buffer under id (spec
// §4.8), for deferred mutations that Flush(id) later applies.
func (w *World) NewCommandBuffer(id uint32) *cmdbuffer.Buffer {
	buf := cmdbuffer.New(id)
	w.buffers[id] = buf
	return buf
}

// DeleteEntityDefer records a deferred deletion of h in command buffer
// bufferID, applied on the next Flush(bufferID) (spec §4.8).
func (w *World) DeleteEntityDefer(h DenseHandle, bufferID uint32) error {
	rec, err := w.validateDense(h)
	if err != nil {
		return err
	}
	buf, ok := w.buffers[bufferID]
	if !ok {
		buf = w.NewCommandBuffer(bufferID)
	}
	sig := cmdbuffer.MakeSignature(cmdbuffer.OpDelete, rec.node.ID, 0)
	buf.Record(sig, cmdbuffer.Command{Packed: rec.packed, Handle: h.Handle})
	return nil
}

// AddComponentDefer records a deferred AddComponent of h in command buffer
// bufferID, applied on the next Flush(bufferID).
func (w *World) AddComponentDefer(h DenseHandle, bufferID uint32, cids ...registry.ID) error {
	rec, err := w.validateDense(h)
	if err != nil {
		return err
	}
	target := rec.node
	for _, c := range cids {
		target = w.graph.AddComponent(target, uint32(c))
	}
	if target == rec.node {
		return nil
	}
	buf, ok := w.buffers[bufferID]
	if !ok {
		buf = w.NewCommandBuffer(bufferID)
	}
	sig := cmdbuffer.MakeSignature(cmdbuffer.OpMigrate, target.ID, 0)
	buf.Record(sig, cmdbuffer.Command{Packed: rec.packed, Handle: h.Handle})
	return nil
}

// RemoveComponentDefer records a deferred RemoveComponent of h in command
// buffer bufferID, applied on the next Flush(bufferID).
func (w *World) RemoveComponentDefer(h DenseHandle, bufferID uint32, cids ...registry.ID) error {
	rec, err := w.validateDense(h)
	if err != nil {
		return err
	}
	target := rec.node
	for _, c := range cids {
		target = w.graph.RemoveComponent(target, uint32(c))
	}
	if target == rec.node {
		return nil
	}
	buf, ok := w.buffers[bufferID]
	if !ok {
		buf = w.NewCommandBuffer(bufferID)
	}
	sig := cmdbuffer.MakeSignature(cmdbuffer.OpMigrate, target.ID, 0)
	buf.Record(sig, cmdbuffer.Command{Packed: rec.packed, Handle: h.Handle})
	return nil
}

// Flush applies every command recorded in command buffer bufferID and
// resets it, emitting one CommandBufferFlushed event (spec §4.8 "flush()").
func (w *World) Flush(bufferID uint32) error {
	buf, ok := w.buffers[bufferID]
	if !ok {
		return errs.UnknownCommandBufferError{ID: bufferID}
	}
	entities, ops := buf.Flush(func(bk cmdbuffer.Bucket) {
		for _, cmd := range bk.Commands {
			dh := DenseHandle{cmd.Handle}
			switch bk.Signature.Op() {
			case cmdbuffer.OpDelete:
				_ = w.DeleteEntity(dh)
			case cmdbuffer.OpMigrate:
				w.applyDeferredMigrate(dh, bk.Signature.Archetype())
			}
		}
	})
	publish(w.events, CommandBufferFlushed{BufferID: bufferID, EntitiesProcessed: entities, OperationCount: ops})
	return nil
}

func (w *World) applyDeferredMigrate(h DenseHandle, targetID uint32) {
	rec, err := w.validateDense(h)
	if err != nil {
		return
	}
	target, ok := w.graph.NodeByID(targetID)
	if !ok || target == rec.node {
		return
	}
	w.migrate(h, rec, target)
}
