package graph

import (
	"context"
	"sync"
	"testing"

	"github.com/sharedcode/graphcore"
)

func TestCreateNodeRoundTrip(t *testing.T) {
	h := newTestHarness(t, defaultTestOptions())
	ctx, tx := h.begin(t)

	p, err := h.m.CreateNode(ctx)
	if err != nil {
		t.Fatalf("CreateNode failed: %v", err)
	}
	got, err := h.m.GetNodeByID(ctx, p.ID())
	if err != nil {
		t.Fatalf("GetNodeByID in same transaction failed: %v", err)
	}
	if got.ID() != p.ID() {
		t.Errorf("GetNodeByID returned id %d, expected %d", got.ID(), p.ID())
	}
	mustCommit(t, tx)

	// Across transactions after commit.
	ctx2, tx2 := h.begin(t)
	got2, err := h.m.GetNodeByID(ctx2, p.ID())
	if err != nil {
		t.Fatalf("GetNodeByID across transactions failed: %v", err)
	}
	if got2.ID() != p.ID() {
		t.Errorf("GetNodeByID returned id %d, expected %d", got2.ID(), p.ID())
	}
	mustCommit(t, tx2)
}

func TestGetNodeByID_NotFound(t *testing.T) {
	h := newTestHarness(t, defaultTestOptions())
	_, err := h.m.GetNodeByID(context.Background(), 12345)
	if !graphcore.IsCode(err, graphcore.NotFound) {
		t.Errorf("expected NotFound, got %v", err)
	}
}

// Two concurrent readers of the same uncached id must trigger exactly one
// loader call between them.
func TestStripedLoader_SingleLoadPerID(t *testing.T) {
	h := newTestHarness(t, defaultTestOptions())
	const id = 42
	if err := h.loader.CreateNode(context.Background(), id); err != nil {
		t.Fatalf("seeding node failed: %v", err)
	}

	var wg sync.WaitGroup
	results := make([]NodeProxy, 2)
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			results[slot], errs[slot] = h.m.GetNodeByID(context.Background(), id)
		}(i)
	}
	wg.Wait()

	for i := 0; i < 2; i++ {
		if errs[i] != nil {
			t.Fatalf("reader %d failed: %v", i, errs[i])
		}
		if results[i].ID() != id {
			t.Errorf("reader %d got id %d, expected %d", i, results[i].ID(), id)
		}
	}
	if loads := h.loader.loadsFor(id); loads != 1 {
		t.Errorf("loader called %d times for id %d, expected exactly 1", loads, id)
	}
}

// Evicting then re-reading behaves like reading alone, modulo one extra
// loader call.
func TestEvictThenGet_Idempotent(t *testing.T) {
	h := newTestHarness(t, defaultTestOptions())
	p := h.createNode(t)

	first, err := h.m.GetNodeByID(context.Background(), p.ID())
	if err != nil {
		t.Fatalf("GetNodeByID failed: %v", err)
	}
	before := h.loader.loadsFor(p.ID())

	h.m.RemoveNodeFromCache(p.ID())
	second, err := h.m.GetNodeByID(context.Background(), p.ID())
	if err != nil {
		t.Fatalf("GetNodeByID after evict failed: %v", err)
	}
	if first.ID() != second.ID() {
		t.Errorf("proxies differ: %d vs %d", first.ID(), second.ID())
	}
	if after := h.loader.loadsFor(p.ID()); after != before+1 {
		t.Errorf("expected exactly one extra load, got %d -> %d", before, after)
	}
}

// A self-loop yields exactly one relationship, tagged Both.
func TestSelfLoop_CountedOnce(t *testing.T) {
	h := newTestHarness(t, defaultTestOptions())
	ctx, tx := h.begin(t)
	n, err := h.m.CreateNode(ctx)
	if err != nil {
		t.Fatalf("CreateNode failed: %v", err)
	}
	r, err := h.m.CreateRelationship(ctx, n, n, "SELF")
	if err != nil {
		t.Fatalf("CreateRelationship failed: %v", err)
	}
	views, err := h.m.Relationships(ctx, n)
	if err != nil {
		t.Fatalf("Relationships failed: %v", err)
	}
	if len(views) != 1 {
		t.Fatalf("expected 1 relationship, got %d", len(views))
	}
	if views[0].Direction != graphcore.Both {
		t.Errorf("direction is %v, expected Both", views[0].Direction)
	}
	if views[0].Relationship.ID() != r.ID() {
		t.Errorf("relationship id is %d, expected %d", views[0].Relationship.ID(), r.ID())
	}
	mustCommit(t, tx)

	// The committed view, paged back in from the store, agrees.
	h.m.ClearCache()
	views, err = h.m.Relationships(context.Background(), n)
	if err != nil {
		t.Fatalf("Relationships after clear failed: %v", err)
	}
	if len(views) != 1 || views[0].Direction != graphcore.Both {
		t.Errorf("committed self-loop view is %v, expected one Both entry", views)
	}
}

// At commit, the start node's outgoing set and the end node's incoming set
// both contain the relationship.
func TestCreateRelationship_CommitVisibility(t *testing.T) {
	h := newTestHarness(t, defaultTestOptions())
	n1 := h.createNode(t)
	n2 := h.createNode(t)

	ctx, tx := h.begin(t)
	r, err := h.m.CreateRelationship(ctx, n1, n2, "KNOWS")
	if err != nil {
		t.Fatalf("CreateRelationship failed: %v", err)
	}

	// The creating transaction sees its own pending write.
	views, err := h.m.Relationships(ctx, n1)
	if err != nil {
		t.Fatalf("Relationships failed: %v", err)
	}
	if len(views) != 1 || views[0].Direction != graphcore.Outgoing {
		t.Fatalf("pending view on start node is %+v, expected one Outgoing entry", views)
	}
	mustCommit(t, tx)

	assertDir := func(n NodeProxy, want graphcore.Direction) {
		t.Helper()
		views, err := h.m.Relationships(context.Background(), n)
		if err != nil {
			t.Fatalf("Relationships failed: %v", err)
		}
		if len(views) != 1 {
			t.Fatalf("expected 1 relationship on node %d, got %d", n.ID(), len(views))
		}
		if views[0].Relationship.ID() != r.ID() || views[0].Direction != want {
			t.Errorf("node %d sees %+v, expected rel %d direction %v", n.ID(), views[0], r.ID(), want)
		}
	}
	assertDir(n1, graphcore.Outgoing)
	assertDir(n2, graphcore.Incoming)
}

// A rolled back create leaves no residue in the caches visible to other
// transactions.
func TestRollback_NoCacheResidue(t *testing.T) {
	h := newTestHarness(t, defaultTestOptions())
	n1 := h.createNode(t)
	n2 := h.createNode(t)

	ctx, tx := h.begin(t)
	r, err := h.m.CreateRelationship(ctx, n1, n2, "KNOWS")
	if err != nil {
		t.Fatalf("CreateRelationship failed: %v", err)
	}
	tx.SetRollbackOnly()
	// The transaction manager's rollback replays inverse effects on the
	// persistent layer; the in-memory store is auto-commit, so the test
	// stands in for that undo here.
	tx.RegisterSynchronization(func(committed bool) {
		if !committed {
			h.loader.DeleteRelationship(context.Background(), r.ID())
		}
	})
	if err := tx.Commit(); err == nil {
		t.Fatalf("Commit of a rollback-only transaction should fail")
	}

	if _, ok := h.m.cache.rels.Get(r.ID()); ok {
		t.Errorf("rolled back relationship %d still resident in cache", r.ID())
	}
	views, err := h.m.Relationships(context.Background(), n1)
	if err != nil {
		t.Fatalf("Relationships failed: %v", err)
	}
	if len(views) != 0 {
		t.Errorf("other transactions see residue: %+v", views)
	}
	if _, err := h.m.GetRelationshipByID(context.Background(), r.ID()); !graphcore.IsCode(err, graphcore.NotFound) {
		t.Errorf("rolled back relationship still readable: %v", err)
	}
}

func TestCreateRelationship_MissingEndpoint(t *testing.T) {
	h := newTestHarness(t, defaultTestOptions())
	n1 := h.createNode(t)
	n2 := h.createNode(t)

	ctx, tx := h.begin(t)
	if _, err := h.m.DeleteNode(ctx, n2); err != nil {
		t.Fatalf("DeleteNode failed: %v", err)
	}
	mustCommit(t, tx)

	ctx2, tx2 := h.begin(t)
	_, err := h.m.CreateRelationship(ctx2, n1, n2, "KNOWS")
	if !graphcore.IsCode(err, graphcore.NotFound) {
		t.Fatalf("expected NotFound for deleted endpoint, got %v", err)
	}
	if !tx2.RollbackOnly() {
		t.Errorf("transaction should be rollback-only after a failed create")
	}
	tx2.Rollback()
}

func TestCreateRelationship_NullArguments(t *testing.T) {
	h := newTestHarness(t, defaultTestOptions())
	n1 := h.createNode(t)
	ctx, tx := h.begin(t)
	defer tx.Rollback()
	if _, err := h.m.CreateRelationship(ctx, n1, NodeProxy{}, "KNOWS"); !graphcore.IsCode(err, graphcore.InvalidArgument) {
		t.Errorf("expected InvalidArgument for zero end proxy, got %v", err)
	}
	if _, err := h.m.CreateRelationship(ctx, n1, n1, ""); !graphcore.IsCode(err, graphcore.InvalidArgument) {
		t.Errorf("expected InvalidArgument for empty type, got %v", err)
	}
}

func TestWriteWithoutTransactionFails(t *testing.T) {
	h := newTestHarness(t, defaultTestOptions())
	if _, err := h.m.CreateNode(context.Background()); !graphcore.IsCode(err, graphcore.InvalidArgument) {
		t.Errorf("expected InvalidArgument without a transaction, got %v", err)
	}
}

func TestDeleteNode_TombstonedForReads(t *testing.T) {
	h := newTestHarness(t, defaultTestOptions())
	p := h.createNode(t)

	ctx, tx := h.begin(t)
	if _, err := h.m.DeleteNode(ctx, p); err != nil {
		t.Fatalf("DeleteNode failed: %v", err)
	}
	// The deleting transaction stops seeing it immediately.
	if _, err := h.m.GetNodeByID(ctx, p.ID()); !graphcore.IsCode(err, graphcore.NotFound) {
		t.Errorf("expected NotFound inside deleting transaction, got %v", err)
	}
	mustCommit(t, tx)

	// After commit the tombstone holds for everyone and the cache entry is
	// gone.
	if _, err := h.m.GetNodeByID(context.Background(), p.ID()); !graphcore.IsCode(err, graphcore.NotFound) {
		t.Errorf("expected NotFound after commit, got %v", err)
	}
	if _, ok := h.m.cache.nodes.Get(p.ID()); ok {
		t.Errorf("deleted node still resident in cache")
	}
}

func TestDeleteRelationship_ExcludedFromNeighborReads(t *testing.T) {
	h := newTestHarness(t, defaultTestOptions())
	n1 := h.createNode(t)
	n2 := h.createNode(t)

	ctx, tx := h.begin(t)
	r, err := h.m.CreateRelationship(ctx, n1, n2, "KNOWS")
	if err != nil {
		t.Fatalf("CreateRelationship failed: %v", err)
	}
	mustCommit(t, tx)

	ctx2, tx2 := h.begin(t)
	if _, err := h.m.DeleteRelationship(ctx2, r); err != nil {
		t.Fatalf("DeleteRelationship failed: %v", err)
	}
	views, err := h.m.Relationships(ctx2, n1)
	if err != nil {
		t.Fatalf("Relationships failed: %v", err)
	}
	if len(views) != 0 {
		t.Errorf("deleting transaction still sees the relationship: %+v", views)
	}
	mustCommit(t, tx2)

	views, err = h.m.Relationships(context.Background(), n1)
	if err != nil {
		t.Fatalf("Relationships after commit failed: %v", err)
	}
	if len(views) != 0 {
		t.Errorf("deleted relationship visible after commit: %+v", views)
	}
}

func TestAllNodes_SkipsAbsentIDs(t *testing.T) {
	h := newTestHarness(t, defaultTestOptions())
	var created []int64
	for i := 0; i < 5; i++ {
		created = append(created, h.createNode(t).ID())
	}
	// Tombstone one in the middle.
	ctx, tx := h.begin(t)
	if _, err := h.m.DeleteNode(ctx, NodeProxy{id: created[2], m: h.m}); err != nil {
		t.Fatalf("DeleteNode failed: %v", err)
	}
	mustCommit(t, tx)

	var seen []int64
	for p, err := range h.m.AllNodes(context.Background()) {
		if err != nil {
			t.Fatalf("AllNodes yielded error: %v", err)
		}
		seen = append(seen, p.ID())
	}
	if len(seen) != 4 {
		t.Fatalf("expected 4 nodes, got %v", seen)
	}
	for _, id := range seen {
		if id == created[2] {
			t.Errorf("tombstoned id %d appeared in AllNodes", id)
		}
	}
}

func TestCacheAdmin(t *testing.T) {
	h := newTestHarness(t, defaultTestOptions())
	if h.m.CacheType() != graphcore.Lru {
		t.Errorf("CacheType returned %v", h.m.CacheType())
	}
	caches := h.m.Caches()
	if len(caches) != 2 {
		t.Fatalf("expected 2 caches, got %d", len(caches))
	}
	if caches[0].Name() != "NodeCache" || caches[1].Name() != "RelationshipCache" {
		t.Errorf("cache names are %s, %s", caches[0].Name(), caches[1].Name())
	}
	p := h.createNode(t)
	if _, ok := h.m.cache.nodes.Get(p.ID()); !ok {
		t.Fatalf("created node not resident")
	}
	h.m.ClearCache()
	if _, ok := h.m.cache.nodes.Get(p.ID()); ok {
		t.Errorf("ClearCache left the node resident")
	}
}
