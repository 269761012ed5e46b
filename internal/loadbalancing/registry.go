package loadbalancing

import (
	"sync"
	"sync/atomic"
)

// registrySnapshot is the immutable value swapped atomically on every
// Update or RunHealthProbe call. Readers take one pointer load and never
// block a concurrent writer.
type registrySnapshot struct {
	backends  []Backend
	ready     map[uint64]bool
	connMet   map[uint64]Metrics
	latencyMet map[uint64]Metrics
}

// BackendRegistry owns the authoritative backend set: it merges fresh
// Discovery results with the previous snapshot so Metrics handles and
// readiness survive across rediscovery, then serves lock-free reads to
// the load balancer and health prober. Both strategy-specific Metrics
// kinds (connection counts and latency EWMA) are provisioned for every
// backend up front, so a strategy switch never has to wait on a fresh
// warm-up period for the metric it newly depends on.
type BackendRegistry struct {
	snapshot atomic.Pointer[registrySnapshot]
	mu       sync.Mutex // serializes Update/RunHealthProbe writers only
}

// NewBackendRegistry returns an empty registry. Call Update at least
// once before load-balancing traffic against it.
func NewBackendRegistry() *BackendRegistry {
	r := &BackendRegistry{}
	r.snapshot.Store(&registrySnapshot{
		ready:      map[uint64]bool{},
		connMet:    map[uint64]Metrics{},
		latencyMet: map[uint64]Metrics{},
	})
	return r
}

// Update discovers the current backend set and merges it with the
// existing one: a backend present before and after keeps its Metrics
// handles and readiness; a newly discovered backend gets fresh Metrics
// handles and starts ready, since the health prober will correct that on
// its next pass. A Discover error leaves the existing snapshot untouched
// rather than clearing it, so a transient discovery outage never empties
// the backend set.
func (r *BackendRegistry) Update(d Discovery) error {
	fresh, err := d.Discover()
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.snapshot.Load()

	merged := make([]Backend, len(fresh))
	ready := make(map[uint64]bool, len(fresh))
	connMet := make(map[uint64]Metrics, len(fresh))
	latencyMet := make(map[uint64]Metrics, len(fresh))

	for i, b := range fresh {
		key := b.HashKey
		if cm, ok := prev.connMet[key]; ok {
			connMet[key] = cm
		} else {
			connMet[key] = NewConnectionMetrics()
		}
		if lm, ok := prev.latencyMet[key]; ok {
			latencyMet[key] = lm
		} else {
			latencyMet[key] = NewLatencyMetrics()
		}
		if wasReady, ok := prev.ready[key]; ok {
			ready[key] = wasReady
		} else {
			ready[key] = true
		}
		merged[i] = b
	}
	SortBackends(merged)

	r.snapshot.Store(&registrySnapshot{
		backends:   merged,
		ready:      ready,
		connMet:    connMet,
		latencyMet: latencyMet,
	})
	return nil
}

// RunHealthProbe probes every current backend and stores the resulting
// readiness snapshot. When parallel is true, backends are probed
// concurrently (bounded by a WaitGroup fan-out, matching the gateway's
// existing health checker); otherwise probes run sequentially.
func (r *BackendRegistry) RunHealthProbe(probe HealthProbe, parallel bool) {
	cur := r.snapshot.Load()
	backends := cur.backends
	results := make([]bool, len(backends))

	if parallel {
		var wg sync.WaitGroup
		for i, b := range backends {
			wg.Add(1)
			go func(i int, b Backend) {
				defer wg.Done()
				results[i] = probe.Probe(b)
			}(i, b)
		}
		wg.Wait()
	} else {
		for i, b := range backends {
			results[i] = probe.Probe(b)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cur = r.snapshot.Load()
	ready := make(map[uint64]bool, len(backends))
	for i, b := range backends {
		ready[b.HashKey] = results[i]
	}
	r.snapshot.Store(&registrySnapshot{
		backends:   backends,
		ready:      ready,
		connMet:    cur.connMet,
		latencyMet: cur.latencyMet,
	})
}

// Ready reports whether b was healthy as of the last probe pass.
func (r *BackendRegistry) Ready(b Backend) bool {
	return r.snapshot.Load().ready[b.HashKey]
}

// GetSnapshot returns the current backend slice and readiness map. The
// returned slice must not be mutated by the caller.
func (r *BackendRegistry) GetSnapshot() ([]Backend, map[uint64]bool) {
	s := r.snapshot.Load()
	return s.backends, s.ready
}

// BackendsFor returns the current backend slice with each Backend's
// Metrics field set to whichever handle the named strategy consumes:
// connection counts for FewestConnections, latency EWMA for
// FastestServer, and nil for every strategy that ignores metrics.
func (r *BackendRegistry) BackendsFor(name StrategyName) []Backend {
	s := r.snapshot.Load()
	out := make([]Backend, len(s.backends))
	for i, b := range s.backends {
		switch name {
		case StrategyFewestConnections:
			b.Metrics = s.connMet[b.HashKey]
		case StrategyFastestServer:
			b.Metrics = s.latencyMet[b.HashKey]
		default:
			b.Metrics = nil
		}
		out[i] = b
	}
	return out
}

// ConnectionMetrics returns the connection-count Metrics handle for b,
// used by the proxy layer to record connect/disconnect regardless of
// which strategy is currently active.
func (r *BackendRegistry) ConnectionMetrics(b Backend) Metrics {
	return r.snapshot.Load().connMet[b.HashKey]
}

// LatencyMetrics returns the latency-EWMA Metrics handle for b, used by
// the proxy layer to record response latency regardless of which
// strategy is currently active.
func (r *BackendRegistry) LatencyMetrics(b Backend) Metrics {
	return r.snapshot.Load().latencyMet[b.HashKey]
}

// Len returns the number of currently known backends.
func (r *BackendRegistry) Len() int {
	return len(r.snapshot.Load().backends)
}
