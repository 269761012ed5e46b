package loadbalancing

import (
	"sync/atomic"
	"time"
)

// roundRobinStrategy is the default strategy: every selection advances a
// single shared cursor, so concurrent requests interleave onto a
// linearised sequence of indices rather than each starting from zero.
type roundRobinStrategy struct{}

func (roundRobinStrategy) Name() StrategyName { return StrategyRoundRobin }

func (roundRobinStrategy) Build(backends []Backend) (Selector, error) {
	return buildWeightedSelector(backends, &roundRobinSource{})
}

func (roundRobinStrategy) MetricsFactory() func() Metrics { return nil }

func (roundRobinStrategy) RebuildFrequency() (d time.Duration, ok bool) { return 0, false }

// roundRobinSource ignores the request key entirely: both the initial
// pick and every fallback step draw from the same atomic cursor, which
// is exactly the "shared atomic cursor on the selector" the invariants
// require. A fresh cursor is allocated per Build call, so it does not
// survive a rebuild — only concurrent reads against one selector
// instance are linearised.
type roundRobinSource struct {
	cursor atomic.Uint64
}

func (s *roundRobinSource) first(_ []byte) uint64 { return s.cursor.Add(1) - 1 }
func (s *roundRobinSource) next(_ uint64) uint64  { return s.cursor.Add(1) - 1 }
