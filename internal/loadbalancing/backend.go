// Package loadbalancing implements the adaptive load-balancing core: backend
// discovery and health bookkeeping, six interchangeable selection
// strategies, and the background decision engine that swaps between them.
package loadbalancing

import (
	"fmt"
	"net"
	"sort"

	"github.com/cespare/xxhash/v2"
)

// Backend identifies a single upstream endpoint. It is cheap to copy: the
// only owned state is a small fixed struct plus a reference-counted
// Metrics handle, so Backend is passed by value throughout this package.
type Backend struct {
	// Addr is the canonical "host:port" endpoint, already DNS-resolved to
	// a literal IP when constructed via NewBackends.
	Addr string

	// Weight is the relative share of traffic this backend should get
	// from weighted strategies. Always >= 1.
	Weight int

	// HashKey is a stable 64-bit hash of Addr, used by hash-based
	// strategies and by UniqueIterator for deduplication.
	HashKey uint64

	// Metrics is the per-backend counters handle, shared by reference
	// between the registry and every selector built from it. Nil unless
	// the strategy the slice was built for consumes a signal (see
	// BackendRegistry.BackendsFor).
	Metrics Metrics
}

// NewBackends parses "host:port", resolving host via DNS if it is not
// already a literal IP, and returns one Backend per resolved address.
// Weight must be >= 1; a weight of 0 defaults to 1.
func NewBackends(addrText string, weight int) ([]Backend, error) {
	host, port, err := net.SplitHostPort(addrText)
	if err != nil {
		return nil, fmt.Errorf("invalid backend address %q: %w", addrText, err)
	}
	if weight <= 0 {
		weight = 1
	}

	if ip := net.ParseIP(host); ip != nil {
		addr := net.JoinHostPort(ip.String(), port)
		return []Backend{newBackend(addr, weight)}, nil
	}

	ips, err := net.LookupHost(host)
	if err != nil {
		return nil, fmt.Errorf("resolve backend host %q: %w", host, err)
	}
	if len(ips) == 0 {
		return nil, fmt.Errorf("no addresses found for backend host %q", host)
	}

	backends := make([]Backend, 0, len(ips))
	for _, ip := range ips {
		addr := net.JoinHostPort(ip, port)
		backends = append(backends, newBackend(addr, weight))
	}
	return backends, nil
}

func newBackend(addr string, weight int) Backend {
	return Backend{
		Addr:    addr,
		Weight:  weight,
		HashKey: xxhash.Sum64String(addr),
	}
}

// Equal reports whether two backends share the same endpoint. Weight and
// Metrics are not part of backend identity.
func (b Backend) Equal(other Backend) bool {
	return b.Addr == other.Addr
}

// SortBackends orders a slice of backends deterministically by endpoint,
// giving stable iteration order and a consistent tie-break key for
// strategies that need one.
func SortBackends(backends []Backend) {
	sort.Slice(backends, func(i, j int) bool { return backends[i].Addr < backends[j].Addr })
}
