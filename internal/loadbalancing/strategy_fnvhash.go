package loadbalancing

import (
	"hash/fnv"
	"time"
)

// fnvHashStrategy routes by FNV-1a hash of the request key, so the same
// key always lands on the same first-choice backend as long as the
// weighted array is unchanged. The fallback re-hashes the previous
// index's bytes rather than the original key, so retries for the same
// key still walk a deterministic, key-independent sequence.
type fnvHashStrategy struct{}

func (fnvHashStrategy) Name() StrategyName { return StrategyFNVHash }

func (fnvHashStrategy) Build(backends []Backend) (Selector, error) {
	return buildWeightedSelector(backends, &fnvHashSource{})
}

func (fnvHashStrategy) MetricsFactory() func() Metrics { return nil }

func (fnvHashStrategy) RebuildFrequency() (d time.Duration, ok bool) { return 0, false }

type fnvHashSource struct{}

func (fnvHashSource) first(key []byte) uint64 { return fnv64a(key) }
func (fnvHashSource) next(prev uint64) uint64 { return fnv64a(leBytes(prev)) }

func fnv64a(b []byte) uint64 {
	h := fnv.New64a()
	h.Write(b)
	return h.Sum64()
}
