package loadbalancing

import "testing"

func TestStrategyNameValid(t *testing.T) {
	cases := []struct {
		name StrategyName
		want bool
	}{
		{StrategyRoundRobin, true},
		{StrategyRandom, true},
		{StrategyFNVHash, true},
		{StrategyConsistent, true},
		{StrategyFewestConnections, true},
		{StrategyFastestServer, true},
		{StrategyName("bogus"), false},
		{StrategyName(""), false},
	}
	for _, c := range cases {
		if got := c.name.Valid(); got != c.want {
			t.Errorf("StrategyName(%q).Valid() = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestNewStrategyReturnsEachKnownKind(t *testing.T) {
	names := []StrategyName{
		StrategyRoundRobin, StrategyRandom, StrategyFNVHash,
		StrategyConsistent, StrategyFewestConnections, StrategyFastestServer,
	}
	for _, name := range names {
		s, err := NewStrategy(name)
		if err != nil {
			t.Fatalf("NewStrategy(%q): unexpected error %v", name, err)
		}
		if s.Name() != name {
			t.Errorf("NewStrategy(%q).Name() = %q, want %q", name, s.Name(), name)
		}
	}
}

func TestNewStrategyRejectsUnknownName(t *testing.T) {
	_, err := NewStrategy(StrategyName("does_not_exist"))
	if err == nil {
		t.Fatal("expected error for unknown strategy name")
	}
}

func TestNewStrategyMetricsFactoryPresence(t *testing.T) {
	cases := []struct {
		name       StrategyName
		wantMetric bool
	}{
		{StrategyRoundRobin, false},
		{StrategyRandom, false},
		{StrategyFNVHash, false},
		{StrategyConsistent, false},
		{StrategyFewestConnections, true},
		{StrategyFastestServer, true},
	}
	for _, c := range cases {
		s, err := NewStrategy(c.name)
		if err != nil {
			t.Fatalf("NewStrategy(%q): %v", c.name, err)
		}
		got := s.MetricsFactory() != nil
		if got != c.wantMetric {
			t.Errorf("NewStrategy(%q).MetricsFactory() != nil = %v, want %v", c.name, got, c.wantMetric)
		}
	}
}

func TestNewStrategyRebuildFrequency(t *testing.T) {
	cases := []struct {
		name    StrategyName
		wantOK  bool
	}{
		{StrategyRoundRobin, false},
		{StrategyRandom, false},
		{StrategyFNVHash, false},
		{StrategyConsistent, false},
		{StrategyFewestConnections, true},
		{StrategyFastestServer, true},
	}
	for _, c := range cases {
		s, err := NewStrategy(c.name)
		if err != nil {
			t.Fatalf("NewStrategy(%q): %v", c.name, err)
		}
		_, ok := s.RebuildFrequency()
		if ok != c.wantOK {
			t.Errorf("NewStrategy(%q).RebuildFrequency() ok = %v, want %v", c.name, ok, c.wantOK)
		}
	}
}
