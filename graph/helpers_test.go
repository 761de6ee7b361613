package graph

import (
	"context"
	"sync"
	"testing"

	"github.com/sharedcode/graphcore"
	"github.com/sharedcode/graphcore/inmemory"
)

// countingLoader wraps the in-memory store, counting the calls the entity
// layer makes so tests can assert load-coordination invariants.
type countingLoader struct {
	*inmemory.Store
	mu         sync.Mutex
	nodeLoads  map[int64]int
	relLoads   map[int64]int
	pageCalls  int
	refCreates int
}

func newCountingLoader() *countingLoader {
	return &countingLoader{
		Store:     inmemory.NewStore(),
		nodeLoads: make(map[int64]int),
		relLoads:  make(map[int64]int),
	}
}

func (l *countingLoader) LoadLightNode(ctx context.Context, id int64) (*graphcore.NodeRecord, error) {
	l.mu.Lock()
	l.nodeLoads[id]++
	l.mu.Unlock()
	return l.Store.LoadLightNode(ctx, id)
}

func (l *countingLoader) LoadLightRelationship(ctx context.Context, id int64) (*graphcore.RelationshipRecord, error) {
	l.mu.Lock()
	l.relLoads[id]++
	l.mu.Unlock()
	return l.Store.LoadLightRelationship(ctx, id)
}

func (l *countingLoader) MoreRelationships(ctx context.Context, nodeID int64, position int64) (graphcore.RelationshipBatch, error) {
	l.mu.Lock()
	l.pageCalls++
	l.mu.Unlock()
	return l.Store.MoreRelationships(ctx, nodeID, position)
}

func (l *countingLoader) CreateReferenceNode(ctx context.Context, id int32, name string, nodeID int64) error {
	l.mu.Lock()
	l.refCreates++
	l.mu.Unlock()
	return l.Store.CreateReferenceNode(ctx, id, name, nodeID)
}

func (l *countingLoader) loadsFor(id int64) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.nodeLoads[id]
}

func (l *countingLoader) relLoadsFor(id int64) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.relLoads[id]
}

func (l *countingLoader) pages() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pageCalls
}

type testHarness struct {
	m      *EntityManager
	loader *countingLoader
	txm    *inmemory.TransactionManager
}

func newTestHarness(t *testing.T, options graphcore.Options) *testHarness {
	t.Helper()
	loader := newCountingLoader()
	txm := inmemory.NewTransactionManager()
	m, err := NewEntityManager(options, loader, inmemory.NewLockManager(), txm, inmemory.NewIdGenerator())
	if err != nil {
		t.Fatalf("NewEntityManager failed: %v", err)
	}
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(m.Stop)
	return &testHarness{m: m, loader: loader, txm: txm}
}

func defaultTestOptions() graphcore.Options {
	o := graphcore.DefaultOptions()
	// Strict bounded policies keep the assertions deterministic.
	o.CacheType = graphcore.Lru
	o.MaxNodeCacheSize = 1024
	o.MaxRelationshipCacheSize = 4096
	return o
}

// begin opens a transaction bound to a fresh context.
func (h *testHarness) begin(t *testing.T) (context.Context, *inmemory.Transaction) {
	t.Helper()
	return h.txm.Begin(context.Background())
}

// mustCommit completes the transaction, failing the test on error.
func mustCommit(t *testing.T, tx *inmemory.Transaction) {
	t.Helper()
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
}

// createNode creates and returns a node in its own committed transaction.
func (h *testHarness) createNode(t *testing.T) NodeProxy {
	t.Helper()
	ctx, tx := h.begin(t)
	p, err := h.m.CreateNode(ctx)
	if err != nil {
		t.Fatalf("CreateNode failed: %v", err)
	}
	mustCommit(t, tx)
	return p
}
