package graph

import (
	"context"
	"sync"
	"testing"

	"github.com/sharedcode/graphcore"
	"github.com/sharedcode/graphcore/inmemory"
)

func newTestRegistry(t *testing.T) (*RelationshipTypeHolder, *inmemory.Store) {
	t.Helper()
	store := inmemory.NewStore()
	return newRelationshipTypeHolder(store, inmemory.NewIdGenerator()), store
}

func TestNameRegistry_LazyCreationAndReuse(t *testing.T) {
	h, store := newTestRegistry(t)
	ctx := context.Background()

	id1, err := h.getOrCreate(ctx, "KNOWS")
	if err != nil {
		t.Fatalf("getOrCreate failed: %v", err)
	}
	id2, err := h.getOrCreate(ctx, "KNOWS")
	if err != nil {
		t.Fatalf("second getOrCreate failed: %v", err)
	}
	if id1 != id2 {
		t.Errorf("ids differ: %d vs %d", id1, id2)
	}
	records, err := store.LoadRelationshipTypes(ctx)
	if err != nil {
		t.Fatalf("LoadRelationshipTypes failed: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("loader recorded %d creations, expected 1", len(records))
	}
	if name, ok := h.nameByID(id1); !ok || name != "KNOWS" {
		t.Errorf("nameByID returned (%q, %v)", name, ok)
	}
	if _, err := h.getOrCreate(ctx, ""); !graphcore.IsCode(err, graphcore.InvalidArgument) {
		t.Errorf("expected InvalidArgument for empty name, got %v", err)
	}
}

func TestNameRegistry_ConcurrentCreatorsCollapse(t *testing.T) {
	h, store := newTestRegistry(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	ids := make([]int32, 8)
	for i := range ids {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			id, err := h.getOrCreate(ctx, "LIKES")
			if err != nil {
				t.Errorf("getOrCreate failed: %v", err)
				return
			}
			ids[slot] = id
		}(i)
	}
	wg.Wait()
	for i := 1; i < len(ids); i++ {
		if ids[i] != ids[0] {
			t.Fatalf("concurrent creators produced different ids: %v", ids)
		}
	}
	records, _ := store.LoadRelationshipTypes(ctx)
	if len(records) != 1 {
		t.Errorf("loader recorded %d creations, expected 1", len(records))
	}
}

func TestNameRegistry_Remove(t *testing.T) {
	h, _ := newTestRegistry(t)
	ctx := context.Background()
	id, err := h.getOrCreate(ctx, "TEMP")
	if err != nil {
		t.Fatalf("getOrCreate failed: %v", err)
	}
	h.remove(id)
	if _, ok := h.idByName("TEMP"); ok {
		t.Errorf("name survived removal")
	}
	if _, ok := h.nameByID(id); ok {
		t.Errorf("id survived removal")
	}
}

func TestNameRegistry_LoadsCommittedRecords(t *testing.T) {
	store := inmemory.NewStore()
	ctx := context.Background()
	if err := store.CreateRelationshipType(ctx, 5, "OLD"); err != nil {
		t.Fatalf("seeding failed: %v", err)
	}
	h := newRelationshipTypeHolder(store, inmemory.NewIdGenerator())
	if err := h.load(ctx, store); err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if id, ok := h.idByName("OLD"); !ok || id != 5 {
		t.Errorf("idByName returned (%d, %v), expected (5, true)", id, ok)
	}
}
