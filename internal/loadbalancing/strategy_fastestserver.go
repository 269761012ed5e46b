package loadbalancing

import (
	"sort"
	"time"
)

// fastestServerStrategy presorts backends ascending by their EWMA
// response latency and walks that order. A backend with no recorded
// sample yet reports an average of 0 (a Metrics handle without a
// latency signal, AverageLatencyMs reporting !ok, is also treated as 0)
// and is sorted first, matching the bias toward quickly trying
// freshly-added or freshly-recovered backends.
type fastestServerStrategy struct{}

func (fastestServerStrategy) Name() StrategyName { return StrategyFastestServer }

func (fastestServerStrategy) Build(backends []Backend) (Selector, error) {
	sorted := make([]Backend, len(backends))
	copy(sorted, backends)

	latencies := make([]float32, len(sorted))
	for i, b := range sorted {
		if b.Metrics == nil {
			return nil, ErrBackendMetricMissing
		}
		avg, ok := b.Metrics.AverageLatencyMs()
		if !ok {
			avg = 0
		}
		latencies[i] = avg
	}

	idx := make([]int, len(sorted))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool { return latencies[idx[i]] < latencies[idx[j]] })

	ordered := make([]Backend, len(sorted))
	for i, j := range idx {
		ordered[i] = sorted[j]
	}

	return &orderedSelector{backends: ordered}, nil
}

func (fastestServerStrategy) MetricsFactory() func() Metrics { return NewLatencyMetrics }

func (fastestServerStrategy) RebuildFrequency() (d time.Duration, ok bool) {
	return dynamicRebuildFrequency, true
}
