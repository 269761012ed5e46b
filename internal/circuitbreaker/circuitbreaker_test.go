package circuitbreaker

import (
	"errors"
	"testing"

	"github.com/sneha4175/adaptive-gateway/internal/config"
)

func TestNilConfigProducesNoOpBreaker(t *testing.T) {
	b := New("test", nil)
	if b != nil {
		t.Fatal("New(nil) should return a nil *Breaker")
	}
	if b.IsOpen() {
		t.Error("a nil breaker should never report open")
	}
	called := false
	if err := b.Execute(func() error { called = true; return nil }); err != nil {
		t.Errorf("Execute on a nil breaker returned %v", err)
	}
	if !called {
		t.Error("Execute on a nil breaker should still call fn")
	}
}

func TestBreakerExecutePassesThroughResult(t *testing.T) {
	b := New("test", &config.CircuitBreakerConfig{MinRequests: 100})
	want := errors.New("boom")
	if err := b.Execute(func() error { return want }); !errors.Is(err, want) {
		t.Errorf("Execute() = %v, want %v", err, want)
	}
	if err := b.Execute(func() error { return nil }); err != nil {
		t.Errorf("Execute() = %v, want nil", err)
	}
}

func TestBreakerTripsOpenAfterFailureThreshold(t *testing.T) {
	b := New("test", &config.CircuitBreakerConfig{
		MinRequests:      2,
		FailureThreshold: 50,
		HalfOpenRequests: 1,
	})
	fail := errors.New("upstream down")
	for i := 0; i < 2; i++ {
		_ = b.Execute(func() error { return fail })
	}
	if !b.IsOpen() {
		t.Fatal("expected the breaker to trip open after the failure threshold is met")
	}

	err := b.Execute(func() error { return nil })
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Execute() on an open breaker = %v, want ErrCircuitOpen", err)
	}
}

func TestBreakerStateReflectsDisabled(t *testing.T) {
	var b *Breaker
	if b.State() != "disabled" {
		t.Errorf("State() = %q, want disabled for a nil breaker", b.State())
	}
}

func TestBreakerDefaultsZeroFields(t *testing.T) {
	cfg := &config.CircuitBreakerConfig{}
	b := New("test", cfg)
	if b == nil {
		t.Fatal("expected a non-nil breaker")
	}
	if cfg.MinRequests != 20 || cfg.FailureThreshold != 50 || cfg.OpenDurationSeconds != 30 || cfg.HalfOpenRequests != 5 {
		t.Errorf("cfg after New() = %+v, want defaults filled in", cfg)
	}
}
