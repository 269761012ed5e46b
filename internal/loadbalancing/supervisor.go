package loadbalancing

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// never is a sentinel "disabled" deadline, far enough in the future that
// it is effectively infinite but still representable as a time.Time
// without overflowing time.Duration arithmetic against time.Now().
const never = 1000 * 24 * time.Hour

// SupervisorConfig controls the four independent cadences the
// Supervisor's background loop drives. A zero interval disables that
// cadence entirely (its deadline is pushed to never).
type SupervisorConfig struct {
	DiscoveryInterval   time.Duration
	HealthCheckInterval time.Duration
	EvaluateInterval    time.Duration
	SmoothingFactor     float64
	ProbeInParallel     bool
}

// Supervisor owns the single background goroutine that keeps a
// LoadBalancer's registry and strategy up to date: periodic
// rediscovery, periodic health probing, periodic decision-engine
// evaluation, and periodic selector rebuilds for strategies whose
// RebuildFrequency demands it. All four run on independent deadlines so
// a slow discovery call never delays health probing or vice versa.
type Supervisor struct {
	lb        *LoadBalancer
	discovery Discovery
	probe     HealthProbe
	engine    *DecisionEngine
	cfg       SupervisorConfig
	log       *zap.SugaredLogger
}

// NewSupervisor constructs a Supervisor. probe may be nil to disable
// health probing (every backend is then always treated as ready by
// whatever readiness state the registry already holds).
func NewSupervisor(lb *LoadBalancer, discovery Discovery, probe HealthProbe, engine *DecisionEngine, cfg SupervisorConfig, log *zap.SugaredLogger) *Supervisor {
	return &Supervisor{lb: lb, discovery: discovery, probe: probe, engine: engine, cfg: cfg, log: log}
}

// Run blocks, driving the background loop until ctx is cancelled.
func (s *Supervisor) Run(ctx context.Context) {
	now := time.Now()

	nextDiscovery := s.deadline(now, s.cfg.DiscoveryInterval)
	nextHealthCheck := s.deadline(now, s.cfg.HealthCheckInterval)
	nextEvaluate := s.deadline(now, s.cfg.EvaluateInterval)
	nextRebuild := now // strategy may need an immediate rebuild cadence

	for {
		earliest := nextDiscovery
		if nextHealthCheck.Before(earliest) {
			earliest = nextHealthCheck
		}
		if nextEvaluate.Before(earliest) {
			earliest = nextEvaluate
		}
		if nextRebuild.Before(earliest) {
			earliest = nextRebuild
		}

		timer := time.NewTimer(time.Until(earliest))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case now = <-timer.C:
		}

		if !now.Before(nextDiscovery) {
			if err := s.lb.Registry().Update(s.discovery); err != nil {
				s.log.Warnw("backend discovery failed, keeping previous snapshot", "error", err)
			} else if err := s.lb.RebuildSelector(); err != nil {
				s.log.Warnw("selector rebuild after discovery failed", "error", err)
			}
			nextDiscovery = s.deadline(now, s.cfg.DiscoveryInterval)
		}

		if s.probe != nil && !now.Before(nextHealthCheck) {
			s.lb.Registry().RunHealthProbe(s.probe, s.cfg.ProbeInParallel)
			nextHealthCheck = s.deadline(now, s.cfg.HealthCheckInterval)
		}

		if s.engine != nil && !now.Before(nextEvaluate) {
			before := s.lb.CurrentStrategy().Name()
			s.evaluate()
			if s.lb.CurrentStrategy().Name() != before {
				if freq, ok := s.lb.CurrentStrategy().RebuildFrequency(); ok {
					nextRebuild = now.Add(freq)
				}
			}
			nextEvaluate = s.deadline(now, s.cfg.EvaluateInterval)
		}

		if !now.Before(nextRebuild) {
			if freq, ok := s.lb.CurrentStrategy().RebuildFrequency(); ok {
				if err := s.lb.RebuildSelector(); err != nil {
					s.log.Warnw("periodic selector rebuild failed", "error", err)
				}
				nextRebuild = now.Add(freq)
			} else {
				nextRebuild = now.Add(never)
			}
		}
	}
}

func (s *Supervisor) deadline(now time.Time, interval time.Duration) time.Time {
	if interval <= 0 {
		return now.Add(never)
	}
	return now.Add(interval)
}

func (s *Supervisor) evaluate() {
	current := s.lb.CurrentStrategy().Name()
	backends := s.lb.Registry().BackendsFor(StrategyFewestConnections)

	connCounts := make([]float64, 0, len(backends))
	latenciesMs := make([]float64, 0, len(backends))
	for _, b := range backends {
		if count, ok := b.Metrics.ActiveConnections(); ok {
			connCounts = append(connCounts, float64(count))
		}
		if lm := s.lb.Registry().LatencyMetrics(b); lm != nil {
			if avg, ok := lm.AverageLatencyMs(); ok {
				latenciesMs = append(latenciesMs, float64(avg))
			}
		}
	}

	next := s.engine.Evaluate(current, connCounts, latenciesMs)
	if next == current {
		return
	}

	strategy, err := NewStrategy(next)
	if err != nil {
		s.log.Errorw("decision engine chose an invalid strategy", "strategy", next, "error", err)
		return
	}
	if s.lb.UpdateStrategy(strategy) {
		s.log.Infow("switched load balancing strategy", "from", current, "to", next)
	}
}
