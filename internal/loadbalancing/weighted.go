package loadbalancing

import "encoding/binary"

// maxWeightedEntries is the 2^16 cap on the expanded index array shared
// by all weighted strategies (round-robin, random, FNV hash).
const maxWeightedEntries = 1 << 16

// indexSource supplies the sequence of indices a weightedSelector walks:
// a starting index derived from the request key, then a deterministic
// fallback evolution over the unique backend array. Each strategy's
// identity is entirely captured by its indexSource — the iteration
// mechanics are shared.
type indexSource interface {
	first(key []byte) uint64
	next(prev uint64) uint64
}

// weightedSelector is the backing structure for RoundRobin, Random, and
// FNVHash: an expanded index array of length sum(weight_i), one entry per
// weight unit, plus the backing backend array. The first pick is drawn
// from the expanded array (so weight only influences the first choice);
// fallbacks rotate over the unique backend array.
type weightedSelector struct {
	backends []Backend
	weighted []uint16
	source   indexSource
}

func buildWeightedSelector(backends []Backend, source indexSource) (*weightedSelector, error) {
	sorted := make([]Backend, len(backends))
	copy(sorted, backends)
	SortBackends(sorted)

	if len(sorted) > maxWeightedEntries {
		return nil, ErrTooManyBackends
	}

	weighted := make([]uint16, 0, len(sorted))
	for i, b := range sorted {
		for w := 0; w < b.Weight; w++ {
			if len(weighted) >= maxWeightedEntries {
				return nil, ErrTooManyWeightedEntries
			}
			weighted = append(weighted, uint16(i))
		}
	}

	return &weightedSelector{backends: sorted, weighted: weighted, source: source}, nil
}

func (s *weightedSelector) Backends() []Backend { return s.backends }

func (s *weightedSelector) Iter(key []byte) BackendIter {
	return &weightedIter{sel: s, index: s.source.first(key), first: true}
}

type weightedIter struct {
	sel   *weightedSelector
	index uint64
	first bool
}

func (it *weightedIter) Next() (Backend, bool) {
	if len(it.sel.backends) == 0 {
		return Backend{}, false
	}

	if it.first {
		it.first = false
		idx := it.sel.weighted[it.index%uint64(len(it.sel.weighted))]
		return it.sel.backends[idx], true
	}

	it.index = it.sel.source.next(it.index)
	idx := it.index % uint64(len(it.sel.backends))
	return it.sel.backends[idx], true
}

func leBytes(v uint64) []byte {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	return buf[:]
}
