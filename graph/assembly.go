package graph

import (
	"time"

	"github.com/sharedcode/graphcore"
	"github.com/sharedcode/graphcore/inmemory"
	"github.com/sharedcode/graphcore/redis"
)

// OpenLockManager selects the lock coordination backend for the configured
// database type: the in-process table for Standalone, Redis for Clustered.
func OpenLockManager(options graphcore.Options) (graphcore.LockManager, error) {
	if options.Type == graphcore.Clustered {
		cfg := graphcore.RedisConfig{}
		if options.RedisConfig != nil {
			cfg = *options.RedisConfig
		}
		return redis.NewLockManager(cfg, 2*time.Minute)
	}
	return inmemory.NewLockManager(), nil
}
