package loadbalancing

import (
	"math/rand/v2"
	"time"
)

// randomStrategy picks a uniformly random weighted slot per request; the
// fallback walk moves forward deterministically through the unique
// backend array rather than redrawing, so the retry sequence a single
// request sees is reproducible once the first index is known.
type randomStrategy struct{}

func (randomStrategy) Name() StrategyName { return StrategyRandom }

func (randomStrategy) Build(backends []Backend) (Selector, error) {
	return buildWeightedSelector(backends, &randomSource{})
}

func (randomStrategy) MetricsFactory() func() Metrics { return nil }

func (randomStrategy) RebuildFrequency() (d time.Duration, ok bool) { return 0, false }

type randomSource struct{}

func (randomSource) first(_ []byte) uint64   { return rand.Uint64() }
func (randomSource) next(prev uint64) uint64 { return prev + 1 }
