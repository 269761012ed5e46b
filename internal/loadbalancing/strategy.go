package loadbalancing

import (
	"fmt"
	"time"
)

// StrategyName names one of the six selection policies the adaptive
// engine chooses between.
type StrategyName string

const (
	StrategyRoundRobin        StrategyName = "round_robin"
	StrategyRandom            StrategyName = "random"
	StrategyFNVHash           StrategyName = "fnv_hash"
	StrategyConsistent        StrategyName = "consistent"
	StrategyFewestConnections StrategyName = "fewest_connections"
	StrategyFastestServer     StrategyName = "fastest_server"
)

// Valid reports whether name is one of the six recognized strategies.
func (n StrategyName) Valid() bool {
	switch n {
	case StrategyRoundRobin, StrategyRandom, StrategyFNVHash, StrategyConsistent,
		StrategyFewestConnections, StrategyFastestServer:
		return true
	default:
		return false
	}
}

// Strategy is a small, cheap-to-pass descriptor naming one policy. It is
// kept separate from Selector (the heavy precomputed structure) so the
// decision engine can traffic in descriptors and only pay the build cost
// on an actual rebuild.
type Strategy interface {
	Name() StrategyName

	// Build constructs an immutable Selector from a backend snapshot.
	// backends must already carry whatever Metrics this strategy needs
	// (see MetricsFactory); it is a programming error otherwise.
	Build(backends []Backend) (Selector, error)

	// MetricsFactory returns a constructor for the per-backend Metrics
	// handle this strategy requires, or nil if it needs none.
	MetricsFactory() func() Metrics

	// RebuildFrequency reports how often the selector should be rebuilt
	// in the background even absent a backend-set change. ok is false
	// when the strategy never needs a periodic rebuild.
	RebuildFrequency() (d time.Duration, ok bool)
}

// dynamicRebuildFrequency is how often FewestConnections and
// FastestServer selectors are rebuilt so their presorted order reflects
// fresh metrics; accuracy between rebuilds is bounded by this cadence.
const dynamicRebuildFrequency = 200 * time.Millisecond

// NewStrategy constructs the Strategy descriptor for name.
func NewStrategy(name StrategyName) (Strategy, error) {
	switch name {
	case StrategyRoundRobin:
		return &roundRobinStrategy{}, nil
	case StrategyRandom:
		return &randomStrategy{}, nil
	case StrategyFNVHash:
		return &fnvHashStrategy{}, nil
	case StrategyConsistent:
		return &consistentStrategy{pointsPerWeight: defaultPointsPerWeight}, nil
	case StrategyFewestConnections:
		return &fewestConnectionsStrategy{}, nil
	case StrategyFastestServer:
		return &fastestServerStrategy{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}
}
