package inmemory

import (
	"context"
	"sync/atomic"

	"github.com/sharedcode/graphcore"
)

// IdGenerator hands out monotonically increasing ids per entity kind.
type IdGenerator struct {
	counters [5]atomic.Int64
}

// NewIdGenerator creates a generator starting each kind at 0.
func NewIdGenerator() *IdGenerator {
	g := &IdGenerator{}
	for i := range g.counters {
		g.counters[i].Store(-1)
	}
	return g
}

func (g *IdGenerator) NextID(ctx context.Context, kind graphcore.EntityKind) (int64, error) {
	return g.counters[int(kind)].Add(1), nil
}
