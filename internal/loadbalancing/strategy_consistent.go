package loadbalancing

import (
	"sort"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
)

// defaultPointsPerWeight is the number of virtual nodes placed on the
// ring per unit of backend weight. Higher values smooth the distribution
// at the cost of a larger ring to search.
const defaultPointsPerWeight = 160

// consistentStrategy places each backend on a hash ring with
// weight*pointsPerWeight virtual nodes (Ketama-style), so adding or
// removing a backend only remaps the keys that land on its own arcs.
type consistentStrategy struct {
	pointsPerWeight int
}

func (consistentStrategy) Name() StrategyName { return StrategyConsistent }

func (s *consistentStrategy) Build(backends []Backend) (Selector, error) {
	sorted := make([]Backend, len(backends))
	copy(sorted, backends)
	SortBackends(sorted)

	ppw := s.pointsPerWeight
	if ppw <= 0 {
		ppw = defaultPointsPerWeight
	}

	var ring []ringPoint
	for _, b := range sorted {
		points := b.Weight * ppw
		for i := 0; i < points; i++ {
			h := xxhash.Sum64String(b.Addr + "#" + strconv.Itoa(i))
			ring = append(ring, ringPoint{hash: h, backend: b})
		}
	}
	sort.Slice(ring, func(i, j int) bool {
		if ring[i].hash != ring[j].hash {
			return ring[i].hash < ring[j].hash
		}
		return ring[i].backend.HashKey < ring[j].backend.HashKey
	})

	return &consistentSelector{backends: sorted, ring: ring}, nil
}

func (consistentStrategy) MetricsFactory() func() Metrics { return nil }

func (consistentStrategy) RebuildFrequency() (d time.Duration, ok bool) { return 0, false }

type ringPoint struct {
	hash    uint64
	backend Backend
}

type consistentSelector struct {
	backends []Backend
	ring     []ringPoint
}

func (c *consistentSelector) Backends() []Backend { return c.backends }

func (c *consistentSelector) Iter(key []byte) BackendIter {
	if len(c.ring) == 0 {
		return &consistentIter{sel: c}
	}
	h := xxhash.Sum64(key)
	start := sort.Search(len(c.ring), func(i int) bool { return c.ring[i].hash >= h })
	if start == len(c.ring) {
		start = 0
	}
	return &consistentIter{sel: c, start: start, pos: start}
}

// consistentIter walks the ring clockwise from the point found for the
// request key, wrapping once back to start. Repeated backends across
// multiple ring points are left for UniqueIterator to filter.
type consistentIter struct {
	sel     *consistentSelector
	start   int
	pos     int
	visited int
}

func (it *consistentIter) Next() (Backend, bool) {
	if len(it.sel.ring) == 0 || it.visited >= len(it.sel.ring) {
		return Backend{}, false
	}
	p := it.sel.ring[it.pos]
	it.pos = (it.pos + 1) % len(it.sel.ring)
	it.visited++
	return p.backend, true
}
