package loadbalancing

import "testing"

func TestNewBackendsLiteralIP(t *testing.T) {
	backends, err := NewBackends("127.0.0.1:9000", 3)
	if err != nil {
		t.Fatalf("NewBackends: %v", err)
	}
	if len(backends) != 1 {
		t.Fatalf("want 1 backend, got %d", len(backends))
	}
	if backends[0].Addr != "127.0.0.1:9000" {
		t.Errorf("Addr = %q", backends[0].Addr)
	}
	if backends[0].Weight != 3 {
		t.Errorf("Weight = %d, want 3", backends[0].Weight)
	}
}

func TestNewBackendsDefaultWeight(t *testing.T) {
	backends, err := NewBackends("127.0.0.1:9000", 0)
	if err != nil {
		t.Fatalf("NewBackends: %v", err)
	}
	if backends[0].Weight != 1 {
		t.Errorf("Weight = %d, want 1 (default)", backends[0].Weight)
	}
}

func TestNewBackendsInvalidAddr(t *testing.T) {
	if _, err := NewBackends("not-an-addr", 1); err == nil {
		t.Fatal("expected error for address without a port")
	}
}

func TestBackendEqualIgnoresWeightAndMetrics(t *testing.T) {
	a := Backend{Addr: "10.0.0.1:80", Weight: 1}
	b := Backend{Addr: "10.0.0.1:80", Weight: 9, Metrics: NewConnectionMetrics()}
	if !a.Equal(b) {
		t.Error("backends with the same Addr should be Equal regardless of Weight/Metrics")
	}
}

func TestSortBackendsDeterministic(t *testing.T) {
	backends := []Backend{
		{Addr: "10.0.0.3:80"},
		{Addr: "10.0.0.1:80"},
		{Addr: "10.0.0.2:80"},
	}
	SortBackends(backends)
	want := []string{"10.0.0.1:80", "10.0.0.2:80", "10.0.0.3:80"}
	for i, w := range want {
		if backends[i].Addr != w {
			t.Errorf("backends[%d].Addr = %q, want %q", i, backends[i].Addr, w)
		}
	}
}
