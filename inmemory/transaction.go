package inmemory

import (
	"context"
	"fmt"
	"sync"

	"github.com/sharedcode/graphcore"
)

type txContextKey struct{}

// TransactionManager is the in-process TransactionContext: it binds
// transactions to contexts and drives their completion hooks.
type TransactionManager struct{}

// NewTransactionManager creates the manager.
func NewTransactionManager() *TransactionManager {
	return &TransactionManager{}
}

// Begin starts a transaction and returns the context carrying it.
func (m *TransactionManager) Begin(ctx context.Context) (context.Context, *Transaction) {
	tx := &Transaction{id: graphcore.NewUUID()}
	return context.WithValue(ctx, txContextKey{}, tx), tx
}

// Current returns the context's transaction.
func (m *TransactionManager) Current(ctx context.Context) (graphcore.Transaction, error) {
	tx, ok := ctx.Value(txContextKey{}).(*Transaction)
	if !ok {
		return nil, graphcore.Error{Code: graphcore.InvalidArgument, Err: fmt.Errorf("no transaction bound to context")}
	}
	return tx, nil
}

// Transaction is the in-process transaction handle.
type Transaction struct {
	id graphcore.UUID

	mu           sync.Mutex
	rollbackOnly bool
	completed    bool
	hooks        []func(committed bool)
}

func (t *Transaction) ID() graphcore.UUID {
	return t.id
}

func (t *Transaction) SetRollbackOnly() {
	t.mu.Lock()
	t.rollbackOnly = true
	t.mu.Unlock()
}

func (t *Transaction) RollbackOnly() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rollbackOnly
}

func (t *Transaction) RegisterSynchronization(hook func(committed bool)) {
	t.mu.Lock()
	t.hooks = append(t.hooks, hook)
	t.mu.Unlock()
}

// Commit completes the transaction. A rollback-only transaction rolls back
// instead and the error reports it.
func (t *Transaction) Commit() error {
	t.mu.Lock()
	if t.completed {
		t.mu.Unlock()
		return graphcore.Error{Code: graphcore.InvalidArgument, Err: fmt.Errorf("transaction already completed"), UserData: t.id.String()}
	}
	rollback := t.rollbackOnly
	t.completed = true
	hooks := t.hooks
	t.hooks = nil
	t.mu.Unlock()

	for _, hook := range hooks {
		hook(!rollback)
	}
	if rollback {
		return graphcore.Error{Code: graphcore.Unknown, Err: fmt.Errorf("transaction marked rollback-only, rolled back"), UserData: t.id.String()}
	}
	return nil
}

// Rollback completes the transaction, discarding its effects.
func (t *Transaction) Rollback() error {
	t.mu.Lock()
	if t.completed {
		t.mu.Unlock()
		return graphcore.Error{Code: graphcore.InvalidArgument, Err: fmt.Errorf("transaction already completed"), UserData: t.id.String()}
	}
	t.completed = true
	hooks := t.hooks
	t.hooks = nil
	t.mu.Unlock()

	for _, hook := range hooks {
		hook(false)
	}
	return nil
}
