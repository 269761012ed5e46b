package loadbalancing

import (
	"sort"
	"time"
)

// fewestConnectionsStrategy presorts backends ascending by their current
// in-flight connection count and walks that order, so the least-loaded
// backend is always the first choice. Build requires a connection-counting
// Metrics handle on every backend, which BackendRegistry.BackendsFor
// attaches; without one it returns ErrBackendMetricMissing.
type fewestConnectionsStrategy struct{}

func (fewestConnectionsStrategy) Name() StrategyName { return StrategyFewestConnections }

func (fewestConnectionsStrategy) Build(backends []Backend) (Selector, error) {
	sorted := make([]Backend, len(backends))
	copy(sorted, backends)

	counts := make([]int64, len(sorted))
	for i, b := range sorted {
		if b.Metrics == nil {
			return nil, ErrBackendMetricMissing
		}
		count, ok := b.Metrics.ActiveConnections()
		if !ok {
			return nil, ErrBackendMetricMissing
		}
		counts[i] = count
	}

	idx := make([]int, len(sorted))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool { return counts[idx[i]] < counts[idx[j]] })

	ordered := make([]Backend, len(sorted))
	for i, j := range idx {
		ordered[i] = sorted[j]
	}

	return &orderedSelector{backends: ordered}, nil
}

func (fewestConnectionsStrategy) MetricsFactory() func() Metrics { return NewConnectionMetrics }

func (fewestConnectionsStrategy) RebuildFrequency() (d time.Duration, ok bool) {
	return dynamicRebuildFrequency, true
}
