package loadbalancing

import "sync/atomic"

// LoadBalancer is the request-path entry point: a registry of known
// backends, the currently active Strategy, and the Selector last built
// from it. Reads never block a concurrent rebuild; Select takes a
// single atomic load of the current selector and walks it.
type LoadBalancer struct {
	registry *BackendRegistry
	strategy atomic.Pointer[Strategy]
	selector atomic.Pointer[Selector]

	maxIterations int
}

// NewLoadBalancer constructs a LoadBalancer starting on initial, built
// immediately from whatever backends registry currently holds.
func NewLoadBalancer(registry *BackendRegistry, initial Strategy, maxIterations int) (*LoadBalancer, error) {
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}
	lb := &LoadBalancer{registry: registry, maxIterations: maxIterations}
	lb.strategy.Store(&initial)
	if err := lb.RebuildSelector(); err != nil {
		return nil, err
	}
	return lb, nil
}

// CurrentStrategy returns the strategy presently in effect.
func (lb *LoadBalancer) CurrentStrategy() Strategy {
	return *lb.strategy.Load()
}

// UpdateStrategy swaps in a new strategy and rebuilds its selector from
// the current backend snapshot, reporting whether a change occurred.
// It reports false without touching anything if s is already the
// active strategy, and false (leaving the previous strategy/selector in
// place) if the build fails, e.g. because the weighted expansion would
// exceed 2^16 entries.
func (lb *LoadBalancer) UpdateStrategy(s Strategy) bool {
	if s.Name() == lb.CurrentStrategy().Name() {
		return false
	}
	backends := lb.registry.BackendsFor(s.Name())
	sel, err := s.Build(backends)
	if err != nil {
		return false
	}
	lb.strategy.Store(&s)
	lb.selector.Store(&sel)
	return true
}

// RebuildSelector rebuilds the current strategy's selector from the
// latest backend snapshot, without changing which strategy is active.
// The supervisor calls this on a fixed cadence for strategies whose
// RebuildFrequency requires it (FewestConnections, FastestServer) and
// after every successful rediscovery.
func (lb *LoadBalancer) RebuildSelector() error {
	s := *lb.strategy.Load()
	backends := lb.registry.BackendsFor(s.Name())
	sel, err := s.Build(backends)
	if err != nil {
		return err
	}
	lb.selector.Store(&sel)
	return nil
}

// Select walks the current selector's candidates for key, skipping
// duplicates via a UniqueIterator, and returns the first backend for
// which accept reports true. accept is handed the backend and its
// current readiness so callers can, for example, only accept ready
// backends but fall back to an unready one if every candidate is
// exhausted. ErrNoHealthyBackend is returned once the iteration budget
// is spent with no accepted candidate.
func (lb *LoadBalancer) Select(key []byte, accept func(b Backend, ready bool) bool) (Backend, error) {
	sel := *lb.selector.Load()
	if sel == nil {
		return Backend{}, ErrNoHealthyBackend
	}

	it := NewUniqueIterator(sel.Iter(key), lb.maxIterations)
	for {
		b, ok := it.GetNext()
		if !ok {
			return Backend{}, ErrNoHealthyBackend
		}
		if accept(b, lb.registry.Ready(b)) {
			return b, nil
		}
	}
}

// Backends returns the backend slice the current selector was built
// from (not the raw registry snapshot, which may have moved on since
// the last rebuild).
func (lb *LoadBalancer) Backends() []Backend {
	sel := lb.selector.Load()
	if sel == nil {
		return nil
	}
	return (*sel).Backends()
}

// Registry returns the backing registry, for callers (the supervisor,
// the control plane) that need to drive discovery or health probing
// directly.
func (lb *LoadBalancer) Registry() *BackendRegistry { return lb.registry }
