package loadbalancing

// Selector is an immutable, strategy-specific structure built from a
// backend snapshot and shared by reference among all concurrent requests.
// Building one is the only place strategies pay construction cost; the
// request path only ever calls Iter.
type Selector interface {
	// Iter returns a fresh per-request iterator over candidate backends
	// for key. The first item is the first-choice backend.
	Iter(key []byte) BackendIter

	// Backends returns the selector's backend slice: a deterministic
	// permutation of the snapshot it was built from.
	Backends() []Backend
}

// BackendIter walks candidate backends for one request, similar to
// Iterator but allowed to hold a reference into its own Selector.
type BackendIter interface {
	// Next returns the next candidate, or false once the strategy has no
	// more backends left to offer.
	Next() (Backend, bool)
}

// UniqueIterator wraps a BackendIter to deduplicate candidates by
// HashKey and bound the number of inner steps taken. Ring-walking
// strategies can otherwise revisit the same backend many times; an
// unbounded search in a degenerate topology could stall a request.
type UniqueIterator struct {
	inner         BackendIter
	seen          map[uint64]struct{}
	maxIterations int
	steps         int
}

// DefaultMaxIterations is the per-request unique-iterator budget unless
// configuration overrides it.
const DefaultMaxIterations = 256

// NewUniqueIterator wraps inner, allowing at most maxIterations calls
// into it before giving up.
func NewUniqueIterator(inner BackendIter, maxIterations int) *UniqueIterator {
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}
	return &UniqueIterator{
		inner:         inner,
		seen:          make(map[uint64]struct{}),
		maxIterations: maxIterations,
	}
}

// GetNext advances the inner iterator, skipping already-seen backends,
// until either a fresh backend is returned, the inner iterator ends, or
// maxIterations steps have been taken.
func (u *UniqueIterator) GetNext() (Backend, bool) {
	for {
		if u.steps >= u.maxIterations {
			return Backend{}, false
		}
		b, ok := u.inner.Next()
		if !ok {
			return Backend{}, false
		}
		u.steps++

		if _, dup := u.seen[b.HashKey]; dup {
			continue
		}
		u.seen[b.HashKey] = struct{}{}
		return b, true
	}
}
