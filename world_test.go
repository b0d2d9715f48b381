package fragstore

import "testing"

type position struct{ X, Y float64 }
type velocity struct{ DX, DY float64 }
type marker struct{}

func newTestWorld(t *testing.T) *World {
	t.Helper()
	return NewWorld(DefaultConfig())
}

func TestCreateEntityAssignsComponentsAndSurvivesQuery(t *testing.T) {
	w := newTestWorld(t)
	pos, err := RegisterComponent[position](w, "position", true)
	if err != nil {
		t.Fatalf("register position: %v", err)
	}
	vel, err := RegisterComponent[velocity](w, "velocity", false)
	if err != nil {
		t.Fatalf("register velocity: %v", err)
	}

	h, err := w.CreateEntity(pos.ID(), vel.ID())
	if err != nil {
		t.Fatalf("create entity: %v", err)
	}
	if err := pos.Set(h, position{X: 1, Y: 2}); err != nil {
		t.Fatalf("set position: %v", err)
	}

	got, err := pos.Get(h)
	if err != nil {
		t.Fatalf("get position: %v", err)
	}
	if got != (position{X: 1, Y: 2}) {
		t.Fatalf("expected {1 2}, got %+v", got)
	}

	sig := w.Query().With(pos.ID(), vel.ID()).Build()
	if c := w.Count(sig); c != 1 {
		t.Fatalf("expected count 1, got %d", c)
	}
}

func TestCreateEntitiesConservesCount(t *testing.T) {
	w := newTestWorld(t)
	pos, _ := RegisterComponent[position](w, "position", false)

	handles, err := w.CreateEntities(9000, pos.ID())
	if err != nil {
		t.Fatalf("create entities: %v", err)
	}
	if len(handles) != 9000 {
		t.Fatalf("expected 9000 handles, got %d", len(handles))
	}

	sig := w.Query().With(pos.ID()).Build()
	if c := w.Count(sig); c != 9000 {
		t.Fatalf("expected count 9000, got %d", c)
	}
}

func TestDeleteEntitySwapRemovesAndStalesHandle(t *testing.T) {
	w := newTestWorld(t)
	pos, _ := RegisterComponent[position](w, "position", false)

	a, _ := w.CreateEntity(pos.ID())
	b, _ := w.CreateEntity(pos.ID())
	pos.Set(a, position{X: 1})
	pos.Set(b, position{X: 2})

	if err := w.DeleteEntity(a); err != nil {
		t.Fatalf("delete a: %v", err)
	}

	if _, err := pos.Get(a); err == nil {
		t.Fatalf("expected stale handle error reading a after delete")
	}
	got, err := pos.Get(b)
	if err != nil {
		t.Fatalf("get b after delete: %v", err)
	}
	if got.X != 2 {
		t.Fatalf("expected b's data to survive the swap-remove, got %+v", got)
	}

	sig := w.Query().With(pos.ID()).Build()
	if c := w.Count(sig); c != 1 {
		t.Fatalf("expected count 1 after delete, got %d", c)
	}
}

func TestAddComponentMigratesAndPreservesSharedData(t *testing.T) {
	w := newTestWorld(t)
	pos, _ := RegisterComponent[position](w, "position", false)
	vel, _ := RegisterComponent[velocity](w, "velocity", false)

	h, _ := w.CreateEntity(pos.ID())
	if err := pos.Set(h, position{X: 5, Y: 6}); err != nil {
		t.Fatalf("set position: %v", err)
	}

	if err := w.AddComponent(h, vel.ID()); err != nil {
		t.Fatalf("add component: %v", err)
	}

	got, err := pos.Get(h)
	if err != nil {
		t.Fatalf("get position after migrate: %v", err)
	}
	if got != (position{X: 5, Y: 6}) {
		t.Fatalf("expected position to survive migration, got %+v", got)
	}

	sig := w.Query().With(pos.ID(), vel.ID()).Build()
	if c := w.Count(sig); c != 1 {
		t.Fatalf("expected count 1 in pos+vel archetype, got %d", c)
	}
}

func TestAddComponentAlreadyPresentIsNoop(t *testing.T) {
	w := newTestWorld(t)
	pos, _ := RegisterComponent[position](w, "position", false)

	h, _ := w.CreateEntity(pos.ID())
	if err := w.AddComponent(h, pos.ID()); err != nil {
		t.Fatalf("expected no-op add to succeed, got %v", err)
	}
}

func TestRemoveComponentMigratesOut(t *testing.T) {
	w := newTestWorld(t)
	pos, _ := RegisterComponent[position](w, "position", false)
	vel, _ := RegisterComponent[velocity](w, "velocity", false)

	h, _ := w.CreateEntity(pos.ID(), vel.ID())
	if err := w.RemoveComponent(h, vel.ID()); err != nil {
		t.Fatalf("remove component: %v", err)
	}

	sig := w.Query().With(pos.ID()).Without(vel.ID()).Build()
	if c := w.Count(sig); c != 1 {
		t.Fatalf("expected count 1 in pos-only archetype, got %d", c)
	}
}

func TestSparseEntityRoundTripsToDense(t *testing.T) {
	w := newTestWorld(t)
	pos, _ := RegisterComponent[position](w, "position", false)

	sh, err := w.CreateSparseEntity(pos.ID())
	if err != nil {
		t.Fatalf("create sparse entity: %v", err)
	}
	if err := pos.SetSparse(sh, position{X: 3, Y: 4}); err != nil {
		t.Fatalf("set sparse position: %v", err)
	}

	dh, err := w.MakeDense(sh)
	if err != nil {
		t.Fatalf("make dense: %v", err)
	}
	got, err := pos.Get(dh)
	if err != nil {
		t.Fatalf("get dense position: %v", err)
	}
	if got != (position{X: 3, Y: 4}) {
		t.Fatalf("expected densified value to survive, got %+v", got)
	}

	sh2, err := w.MakeSparse(dh)
	if err != nil {
		t.Fatalf("make sparse: %v", err)
	}
	got2, err := pos.GetSparse(sh2)
	if err != nil {
		t.Fatalf("get re-sparsified position: %v", err)
	}
	if got2 != (position{X: 3, Y: 4}) {
		t.Fatalf("expected sparsified value to survive, got %+v", got2)
	}
}

func TestDeleteEntityDeferAppliesOnFlush(t *testing.T) {
	w := newTestWorld(t)
	pos, _ := RegisterComponent[position](w, "position", false)

	h, _ := w.CreateEntity(pos.ID())
	w.NewCommandBuffer(0)

	if err := w.DeleteEntityDefer(h, 0); err != nil {
		t.Fatalf("defer delete: %v", err)
	}

	sig := w.Query().With(pos.ID()).Build()
	if c := w.Count(sig); c != 1 {
		t.Fatalf("expected entity still present before flush, got count %d", c)
	}

	if err := w.Flush(0); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if c := w.Count(sig); c != 0 {
		t.Fatalf("expected entity gone after flush, got count %d", c)
	}
	if _, err := pos.Get(h); err == nil {
		t.Fatalf("expected stale handle after deferred delete flushed")
	}
}

func TestAddComponentDeferAppliesOnFlush(t *testing.T) {
	w := newTestWorld(t)
	pos, _ := RegisterComponent[position](w, "position", false)
	vel, _ := RegisterComponent[velocity](w, "velocity", false)

	h, _ := w.CreateEntity(pos.ID())
	w.NewCommandBuffer(1)
	if err := w.AddComponentDefer(h, 1, vel.ID()); err != nil {
		t.Fatalf("defer add component: %v", err)
	}

	withVel := w.Query().With(pos.ID(), vel.ID()).Build()
	if c := w.Count(withVel); c != 0 {
		t.Fatalf("expected migration not yet applied, got count %d", c)
	}

	if err := w.Flush(1); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if c := w.Count(withVel); c != 1 {
		t.Fatalf("expected migration applied after flush, got count %d", c)
	}
}

func TestEventBusPublishesEntityLifecycle(t *testing.T) {
	w := newTestWorld(t)
	pos, _ := RegisterComponent[position](w, "position", false)

	var created, destroyed int
	Subscribe(w.Events(), func(DenseEntityCreated) { created++ })
	Subscribe(w.Events(), func(DenseEntityDestroyed) { destroyed++ })

	h, _ := w.CreateEntity(pos.ID())
	if created != 1 {
		t.Fatalf("expected 1 created event, got %d", created)
	}

	if err := w.DeleteEntity(h); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if destroyed != 1 {
		t.Fatalf("expected 1 destroyed event, got %d", destroyed)
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	w := newTestWorld(t)
	pos, _ := RegisterComponent[position](w, "position", false)

	count := 0
	id := Subscribe(w.Events(), func(DenseEntityCreated) { count++ })
	w.CreateEntity(pos.ID())
	w.Events().Unsubscribe(id)
	w.CreateEntity(pos.ID())

	if count != 1 {
		t.Fatalf("expected exactly 1 delivery before unsubscribe, got %d", count)
	}
}

func TestDuplicateComponentRegistrationErrors(t *testing.T) {
	w := newTestWorld(t)
	if _, err := RegisterComponent[position](w, "position", false); err != nil {
		t.Fatalf("first registration: %v", err)
	}
	if _, err := RegisterComponent[position](w, "position", false); err == nil {
		t.Fatalf("expected duplicate registration error")
	}
}

func TestAddComponentBatchMigratesSharedArchetype(t *testing.T) {
	w := newTestWorld(t)
	pos, _ := RegisterComponent[position](w, "position", false)
	vel, _ := RegisterComponent[velocity](w, "velocity", false)

	handles, err := w.CreateEntities(50, pos.ID())
	if err != nil {
		t.Fatalf("create entities: %v", err)
	}
	for i, h := range handles {
		if err := pos.Set(h, position{X: float64(i)}); err != nil {
			t.Fatalf("set position %d: %v", i, err)
		}
	}

	if err := w.AddComponentBatch(handles, vel.ID()); err != nil {
		t.Fatalf("add component batch: %v", err)
	}

	sig := w.Query().With(pos.ID(), vel.ID()).Build()
	if c := w.Count(sig); c != 50 {
		t.Fatalf("expected count 50 in pos+vel archetype, got %d", c)
	}

	for i, h := range handles {
		got, err := pos.Get(h)
		if err != nil {
			t.Fatalf("get position %d after batch migrate: %v", i, err)
		}
		if got.X != float64(i) {
			t.Fatalf("expected entity %d to keep X=%d, got %+v", i, i, got)
		}
	}
}

func TestMarkerComponentWithNoFields(t *testing.T) {
	w := newTestWorld(t)
	tag, err := RegisterComponent[marker](w, "marker", false)
	if err != nil {
		t.Fatalf("register marker: %v", err)
	}
	h, err := w.CreateEntity(tag.ID())
	if err != nil {
		t.Fatalf("create entity: %v", err)
	}
	sig := w.Query().With(tag.ID()).Build()
	if c := w.Count(sig); c != 1 {
		t.Fatalf("expected count 1, got %d", c)
	}
	_ = h
}
