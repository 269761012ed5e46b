package loadbalancing

import "testing"

func TestRandomStrategyEventuallyCoversAllBackends(t *testing.T) {
	backends := []Backend{{Addr: "a", Weight: 1}, {Addr: "b", Weight: 1}, {Addr: "c", Weight: 1}}
	strategy := randomStrategy{}
	sel, err := strategy.Build(backends)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		it := sel.Iter(nil)
		b, ok := it.Next()
		if !ok {
			t.Fatal("expected a candidate")
		}
		seen[b.Addr] = true
		if len(seen) == len(backends) {
			break
		}
	}
	if len(seen) != len(backends) {
		t.Errorf("random strategy did not surface all backends in 200 draws: saw %v", seen)
	}
}

func TestRandomSourceFallbackIsDeterministicNotRedrawn(t *testing.T) {
	var s randomSource
	got := s.next(5)
	if got != 6 {
		t.Errorf("next(5) = %d, want 6 (deterministic increment, not a fresh draw)", got)
	}
}
