package graphcore

// CacheType selects the eviction policy of the node and relationship caches.
type CacheType int

const (
	// Soft keeps entries until memory is tight; eviction is governed by a
	// memory-cost budget and size reporting is best-effort.
	Soft CacheType = iota
	// Weak keeps entries only while recently used; capacity follows the
	// adaptive manager's pressure signal.
	Weak
	// Strong never evicts.
	Strong
	// NoCache disables caching entirely; every access is a miss.
	NoCache
	// Lru evicts the least-recently-used entry on overflow and is resizable.
	Lru
	// Clock runs second-chance eviction over a circular page queue.
	Clock
)

// String returns the configuration name of the cache type.
func (t CacheType) String() string {
	switch t {
	case Soft:
		return "soft"
	case Weak:
		return "weak"
	case Strong:
		return "strong"
	case NoCache:
		return "none"
	case Lru:
		return "lru"
	case Clock:
		return "clock"
	}
	return "unknown"
}

// ParseCacheType maps a configuration value to a CacheType. Unknown values
// fall back to Soft, the default.
func ParseCacheType(s string) CacheType {
	switch s {
	case "weak":
		return Weak
	case "strong":
		return Strong
	case "none":
		return NoCache
	case "lru":
		return Lru
	case "clock":
		return Clock
	default:
		return Soft
	}
}

// DatabaseType selects the coordination mode of the embedding.
type DatabaseType int

const (
	// Standalone mode uses in-process locking. It is appropriate for
	// standalone or embedded applications running in a single process.
	Standalone DatabaseType = iota
	// Clustered mode uses Redis for lock coordination, allowing multiple
	// application instances across a network to share one store.
	Clustered
)

// RedisConfig holds configuration for connecting to a Redis server, used by
// the clustered lock manager.
type RedisConfig struct {
	// Address is the host:port of the Redis server.
	Address string `json:"address"`
	// Password is the password used to authenticate.
	Password string `json:"password"`
	// DB is the database index to select.
	DB int `json:"db"`
}

// Options holds the configuration of the entity layer.
type Options struct {
	// CacheType specifies the eviction policy of both entity caches.
	CacheType CacheType `json:"cache_type"`
	// UseAdaptiveCache enables heap-pressure driven cache resizing.
	UseAdaptiveCache bool `json:"use_adaptive_cache"`
	// AdaptiveCacheHeapRatio is the live-heap ratio the adaptive manager
	// steers toward. Clamped to [0.1, 0.95].
	AdaptiveCacheHeapRatio float64 `json:"adaptive_cache_heap_ratio"`
	// MinNodeCacheSize and MinRelationshipCacheSize floor adaptive resizing.
	MinNodeCacheSize         int `json:"min_node_cache_size"`
	MinRelationshipCacheSize int `json:"min_relationship_cache_size"`
	// MaxNodeCacheSize and MaxRelationshipCacheSize cap the caches.
	MaxNodeCacheSize         int `json:"max_node_cache_size"`
	MaxRelationshipCacheSize int `json:"max_relationship_cache_size"`

	// Type specifies the coordination mode (Standalone or Clustered).
	Type DatabaseType `json:"type"`
	// RedisConfig specifies the Redis connection when Type is Clustered.
	RedisConfig *RedisConfig `json:"redis_config,omitempty"`
}

// DefaultOptions returns the defaults: soft caches of 1500 nodes and 3500
// relationships, adaptive resizing off, standalone coordination.
func DefaultOptions() Options {
	return Options{
		CacheType:                Soft,
		AdaptiveCacheHeapRatio:   0.77,
		MaxNodeCacheSize:         1500,
		MaxRelationshipCacheSize: 3500,
	}
}

// Normalize clamps out-of-range values in place and fills zero-valued caps
// with the defaults.
func (o *Options) Normalize() {
	if o.AdaptiveCacheHeapRatio == 0 {
		o.AdaptiveCacheHeapRatio = 0.77
	}
	if o.AdaptiveCacheHeapRatio < 0.1 {
		o.AdaptiveCacheHeapRatio = 0.1
	}
	if o.AdaptiveCacheHeapRatio > 0.95 {
		o.AdaptiveCacheHeapRatio = 0.95
	}
	if o.MinNodeCacheSize < 0 {
		o.MinNodeCacheSize = 0
	}
	if o.MinRelationshipCacheSize < 0 {
		o.MinRelationshipCacheSize = 0
	}
	if o.MaxNodeCacheSize <= 0 {
		o.MaxNodeCacheSize = 1500
	}
	if o.MaxRelationshipCacheSize <= 0 {
		o.MaxRelationshipCacheSize = 3500
	}
	if o.MinNodeCacheSize > o.MaxNodeCacheSize {
		o.MinNodeCacheSize = o.MaxNodeCacheSize
	}
	if o.MinRelationshipCacheSize > o.MaxRelationshipCacheSize {
		o.MinRelationshipCacheSize = o.MaxRelationshipCacheSize
	}
}
