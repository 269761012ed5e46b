package loadbalancing

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

type countingDiscovery struct {
	backends []Backend
	calls    atomic.Int64
}

func (d *countingDiscovery) Discover() ([]Backend, error) {
	d.calls.Add(1)
	out := make([]Backend, len(d.backends))
	copy(out, d.backends)
	return out, nil
}

type countingProbe struct {
	calls atomic.Int64
}

func (p *countingProbe) Probe(Backend) bool {
	p.calls.Add(1)
	return true
}

func testSupervisorLB(t *testing.T, addrs ...string) (*LoadBalancer, *BackendRegistry) {
	t.Helper()
	reg := NewBackendRegistry()
	disc := &countingDiscovery{backends: backendsWithAddrs(addrs...)}
	if err := reg.Update(disc); err != nil {
		t.Fatalf("seed registry: %v", err)
	}
	strategy, err := NewStrategy(StrategyRoundRobin)
	if err != nil {
		t.Fatalf("NewStrategy: %v", err)
	}
	lb, err := NewLoadBalancer(reg, strategy, 0)
	if err != nil {
		t.Fatalf("NewLoadBalancer: %v", err)
	}
	return lb, reg
}

func TestSupervisorRunDrivesDiscoveryOnInterval(t *testing.T) {
	lb, _ := testSupervisorLB(t, "10.0.0.1:80", "10.0.0.2:80")
	disc := &countingDiscovery{backends: backendsWithAddrs("10.0.0.1:80", "10.0.0.2:80")}

	cfg := SupervisorConfig{DiscoveryInterval: 5 * time.Millisecond}
	sup := NewSupervisor(lb, disc, nil, nil, cfg, zap.NewNop().Sugar())

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	sup.Run(ctx)

	if disc.calls.Load() < 2 {
		t.Errorf("expected discovery to run more than once in 60ms at a 5ms interval, got %d calls", disc.calls.Load())
	}
}

func TestSupervisorRunDrivesHealthProbeOnInterval(t *testing.T) {
	lb, _ := testSupervisorLB(t, "10.0.0.1:80")
	disc := &countingDiscovery{backends: backendsWithAddrs("10.0.0.1:80")}
	probe := &countingProbe{}

	cfg := SupervisorConfig{HealthCheckInterval: 5 * time.Millisecond}
	sup := NewSupervisor(lb, disc, probe, nil, cfg, zap.NewNop().Sugar())

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	sup.Run(ctx)

	if probe.calls.Load() < 2 {
		t.Errorf("expected health probe to run more than once in 60ms at a 5ms interval, got %d calls", probe.calls.Load())
	}
}

func TestSupervisorRunSkipsDisabledCadences(t *testing.T) {
	lb, _ := testSupervisorLB(t, "10.0.0.1:80")
	disc := &countingDiscovery{backends: backendsWithAddrs("10.0.0.1:80")}
	probe := &countingProbe{}

	// Zero intervals push both deadlines to "never"; only the immediate
	// nextRebuild tick should ever fire, and round robin has no rebuild
	// cadence so it becomes a no-op loop until ctx expires.
	cfg := SupervisorConfig{}
	sup := NewSupervisor(lb, disc, probe, nil, cfg, zap.NewNop().Sugar())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	sup.Run(ctx)

	if disc.calls.Load() != 0 {
		t.Errorf("expected discovery never to run with DiscoveryInterval=0, got %d calls", disc.calls.Load())
	}
	if probe.calls.Load() != 0 {
		t.Errorf("expected health probe never to run with HealthCheckInterval=0, got %d calls", probe.calls.Load())
	}
}

func TestSupervisorRunStopsOnContextCancel(t *testing.T) {
	lb, _ := testSupervisorLB(t, "10.0.0.1:80")
	disc := &countingDiscovery{backends: backendsWithAddrs("10.0.0.1:80")}

	cfg := SupervisorConfig{DiscoveryInterval: time.Millisecond}
	sup := NewSupervisor(lb, disc, nil, nil, cfg, zap.NewNop().Sugar())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sup.Run(ctx)
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Supervisor.Run did not return after context cancellation")
	}
}

func TestSupervisorRunEvaluatesAndSwitchesStrategy(t *testing.T) {
	lb, reg := testSupervisorLB(t, "10.0.0.1:80", "10.0.0.2:80")
	disc := &countingDiscovery{backends: backendsWithAddrs("10.0.0.1:80", "10.0.0.2:80")}

	// Drive connection counts far enough apart, and past the floor, that
	// the engine escalates to FewestConnections on its first tick.
	for _, b := range reg.BackendsFor(StrategyFewestConnections) {
		target := int64(10)
		if b.Addr == "10.0.0.2:80" {
			target = 2000
		}
		for i := int64(0); i < target; i++ {
			b.Metrics.OnConnect()
		}
	}

	engine := NewDecisionEngine(DecisionEngineConfig{
		EvaluateFrequency:          5 * time.Millisecond,
		ConnectionsDivergenceRatio: 1.2,
		MinNrOfConnections:         100,
	})
	cfg := SupervisorConfig{EvaluateInterval: 5 * time.Millisecond}
	sup := NewSupervisor(lb, disc, nil, engine, cfg, zap.NewNop().Sugar())

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	sup.Run(ctx)

	if got := lb.CurrentStrategy().Name(); got != StrategyFewestConnections {
		t.Errorf("CurrentStrategy() = %q, want %q after sustained connection divergence", got, StrategyFewestConnections)
	}
}
