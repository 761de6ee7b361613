// Package redis provides the Redis-backed LockManager used in clustered
// mode, where multiple embedding processes coordinate writes on one store.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sharedcode/graphcore"
)

// LockManager implements graphcore.LockManager over Redis keys so multiple
// embedding processes serialize writes on the same entities. Locks are
// exclusive regardless of mode (a shared read lock from another process
// cannot be represented cheaply, so reads lock conservatively), reentrant
// per owner, and carry a TTL so a crashed process cannot strand an entity.
//
// Each manager owns its client connection; Close releases it.
type LockManager struct {
	client *redis.Client
	// ttl applied to every lock key.
	ttl time.Duration
	// retryInterval paces acquisition attempts while another owner holds
	// the key.
	retryInterval time.Duration
}

// NewLockManager connects a lock manager to the configured Redis server.
// An empty address means localhost:6379.
func NewLockManager(cfg graphcore.RedisConfig, ttl time.Duration) (*LockManager, error) {
	address := cfg.Address
	if address == "" {
		address = "localhost:6379"
	}
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &LockManager{
		client: redis.NewClient(&redis.Options{
			Addr:     address,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
		ttl:           ttl,
		retryInterval: 50 * time.Millisecond,
	}, nil
}

// Close releases the manager's client connection.
func (m *LockManager) Close() error {
	return m.client.Close()
}

// Ping verifies the connection.
func (m *LockManager) Ping(ctx context.Context) error {
	return m.client.Ping(ctx).Err()
}

func lockKey(resource graphcore.Resource) string {
	return fmt.Sprintf("graphcore:lock:%d:%d", resource.Kind, resource.ID)
}

func (m *LockManager) Acquire(ctx context.Context, owner graphcore.UUID, resource graphcore.Resource, mode graphcore.LockMode) error {
	key := lockKey(resource)
	for {
		ok, err := m.client.SetNX(ctx, key, owner.String(), m.ttl).Result()
		if err != nil {
			return graphcore.Error{Code: graphcore.LockFailure, Err: err, UserData: resource}
		}
		if ok {
			return nil
		}
		// Use a 2nd "get" to check for reentrancy: the key may already be
		// ours from an earlier acquire in the same transaction.
		current, err := m.client.Get(ctx, key).Result()
		if err != nil && err != redis.Nil {
			return graphcore.Error{Code: graphcore.LockFailure, Err: err, UserData: resource}
		}
		if err == nil && current == owner.String() {
			// Extend the TTL while we keep holding it.
			m.client.Expire(ctx, key, m.ttl)
			return nil
		}
		select {
		case <-ctx.Done():
			return graphcore.Error{Code: graphcore.LockFailure, Err: ctx.Err(), UserData: resource}
		case <-time.After(m.retryInterval):
		}
	}
}

func (m *LockManager) Release(ctx context.Context, owner graphcore.UUID, resource graphcore.Resource, mode graphcore.LockMode) error {
	key := lockKey(resource)
	current, err := m.client.Get(ctx, key).Result()
	if err == redis.Nil {
		// Expired under us; the TTL already released it.
		return nil
	}
	if err != nil {
		return graphcore.Error{Code: graphcore.LockFailure, Err: err, UserData: resource}
	}
	if current != owner.String() {
		return graphcore.Error{Code: graphcore.LockFailure, Err: fmt.Errorf("lock owned by %s", current), UserData: resource}
	}
	if err := m.client.Del(ctx, key).Err(); err != nil {
		return graphcore.Error{Code: graphcore.LockFailure, Err: err, UserData: resource}
	}
	return nil
}
