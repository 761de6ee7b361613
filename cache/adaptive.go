package cache

import (
	log "log/slog"
	"runtime"
	"sync"
	"time"
)

// Resizable is the slice of the Cache contract the adaptive manager needs.
type Resizable interface {
	Name() string
	Resize(newCapacity int)
	Count() int
}

type registration struct {
	cache     Resizable
	heapRatio float64
	minSize   int
	maxSize   int
	// last capacity the manager set; resizes under 10% drift are skipped.
	lastTarget int
}

// AdaptiveManager periodically samples live-heap pressure and resizes the
// caches registered with it, within each registration's [minSize, maxSize]
// bounds, steering heap usage toward the configured ratio.
type AdaptiveManager struct {
	mu       sync.Mutex
	regs     []*registration
	interval time.Duration
	stop     chan struct{}
	running  bool

	// readMemStats is swapped by tests to inject pressure readings.
	readMemStats func(*runtime.MemStats)
}

// NewAdaptiveManager creates a manager sampling at the given interval.
func NewAdaptiveManager(interval time.Duration) *AdaptiveManager {
	if interval <= 0 {
		interval = 3 * time.Second
	}
	return &AdaptiveManager{
		interval:     interval,
		readMemStats: runtime.ReadMemStats,
	}
}

// Register adds a cache. heapRatio is the live-heap ratio the manager steers
// toward; minSize and maxSize bound the capacities it may set.
func (m *AdaptiveManager) Register(c Resizable, heapRatio float64, minSize, maxSize int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if minSize < 1 {
		minSize = 1
	}
	if maxSize < minSize {
		maxSize = minSize
	}
	m.regs = append(m.regs, &registration{
		cache:      c,
		heapRatio:  heapRatio,
		minSize:    minSize,
		maxSize:    maxSize,
		lastTarget: maxSize,
	})
}

// Unregister removes a cache; the cache keeps its last capacity.
func (m *AdaptiveManager) Unregister(c Resizable) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.regs {
		if m.regs[i].cache == c {
			m.regs = append(m.regs[:i], m.regs[i+1:]...)
			return
		}
	}
}

// Start launches the sampling loop. It is a no-op when already running.
func (m *AdaptiveManager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return
	}
	m.running = true
	m.stop = make(chan struct{})
	go m.run(m.stop)
}

// Stop halts the sampling loop.
func (m *AdaptiveManager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return
	}
	m.running = false
	close(m.stop)
}

func (m *AdaptiveManager) run(stop chan struct{}) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			m.AdjustNow()
		}
	}
}

// AdjustNow samples heap pressure once and resizes registered caches.
// The loop calls it on every tick; tests call it directly.
func (m *AdaptiveManager) AdjustNow() {
	var ms runtime.MemStats
	m.readMemStats(&ms)
	if ms.HeapSys == 0 {
		return
	}
	pressure := float64(ms.HeapAlloc) / float64(ms.HeapSys)

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, reg := range m.regs {
		target := reg.maxSize
		if pressure > reg.heapRatio {
			// Scale the cap down in proportion to how far past the ratio the
			// heap has grown.
			target = int(float64(reg.maxSize) * reg.heapRatio / pressure)
		}
		if target < reg.minSize {
			target = reg.minSize
		}
		if target > reg.maxSize {
			target = reg.maxSize
		}
		drift := target - reg.lastTarget
		if drift < 0 {
			drift = -drift
		}
		if drift*10 < reg.lastTarget {
			continue
		}
		log.Debug("adaptive cache resize",
			"cache", reg.cache.Name(), "pressure", pressure, "from", reg.lastTarget, "to", target)
		reg.lastTarget = target
		reg.cache.Resize(target)
	}
}
