package loadbalancing

import "testing"

func TestRoundRobinStrategyName(t *testing.T) {
	s := roundRobinStrategy{}
	if s.Name() != StrategyRoundRobin {
		t.Errorf("Name() = %q", s.Name())
	}
	if _, ok := s.RebuildFrequency(); ok {
		t.Error("round robin should never report a periodic rebuild frequency")
	}
}

func TestRoundRobinAdvancesSharedCursor(t *testing.T) {
	backends := []Backend{{Addr: "a", Weight: 1}, {Addr: "b", Weight: 1}, {Addr: "c", Weight: 1}}
	strategy := roundRobinStrategy{}
	sel, err := strategy.Build(backends)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	// Two independent iterators from the same selector must not restart
	// from the same index: the cursor is shared, not per-iterator.
	it1 := sel.Iter([]byte("req-1"))
	b1, _ := it1.Next()
	it2 := sel.Iter([]byte("req-2"))
	b2, _ := it2.Next()

	if b1.Addr == b2.Addr {
		t.Errorf("expected successive selections to advance past each other, both got %q", b1.Addr)
	}
}

func TestRoundRobinEventuallyCoversAllBackends(t *testing.T) {
	backends := []Backend{{Addr: "a", Weight: 1}, {Addr: "b", Weight: 1}, {Addr: "c", Weight: 1}}
	strategy := roundRobinStrategy{}
	sel, err := strategy.Build(backends)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	seen := map[string]bool{}
	for i := 0; i < len(backends)*3; i++ {
		it := sel.Iter(nil)
		b, ok := it.Next()
		if !ok {
			t.Fatal("expected a candidate")
		}
		seen[b.Addr] = true
	}
	for _, b := range backends {
		if !seen[b.Addr] {
			t.Errorf("backend %q never selected after %d rounds", b.Addr, len(backends)*3)
		}
	}
}

func TestRoundRobinEmptyBackends(t *testing.T) {
	strategy := roundRobinStrategy{}
	sel, err := strategy.Build(nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	it := sel.Iter(nil)
	if _, ok := it.Next(); ok {
		t.Error("expected no candidates from an empty backend set")
	}
}
