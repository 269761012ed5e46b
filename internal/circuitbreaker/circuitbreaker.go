// Package circuitbreaker wraps sony/gobreaker/v2 with the small API the
// proxy layer needs: one breaker per backend, guarding the upstream
// round trip.
package circuitbreaker

import (
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/sneha4175/adaptive-gateway/internal/config"
)

// ErrCircuitOpen is returned by Execute when the breaker is open and
// fast-failing, in place of gobreaker's own sentinel so callers don't
// need to import gobreaker themselves.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Breaker guards one upstream backend. A nil *Breaker is valid and
// always allows requests through, so routes configured without a
// circuit breaker can share the same call sites as routes with one.
type Breaker struct {
	cb *gobreaker.CircuitBreaker[struct{}]
}

// New creates a Breaker from cfg, keyed by name for gobreaker's own
// logging/metrics hooks. Returns nil (no-op) if cfg is nil.
func New(name string, cfg *config.CircuitBreakerConfig) *Breaker {
	if cfg == nil {
		return nil
	}
	if cfg.MinRequests == 0 {
		cfg.MinRequests = 20
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 50
	}
	if cfg.OpenDurationSeconds == 0 {
		cfg.OpenDurationSeconds = 30
	}
	if cfg.HalfOpenRequests == 0 {
		cfg.HalfOpenRequests = 5
	}

	failureRatio := float64(cfg.FailureThreshold) / 100

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: uint32(cfg.HalfOpenRequests),
		Interval:    10 * time.Second,
		Timeout:     time.Duration(cfg.OpenDurationSeconds) * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < uint32(cfg.MinRequests) {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= failureRatio
		},
	}

	return &Breaker{cb: gobreaker.NewCircuitBreaker[struct{}](settings)}
}

// Execute runs fn if the breaker is closed or probing (half-open),
// feeding fn's outcome back into the trip counters. It returns
// ErrCircuitOpen without calling fn if the breaker is open.
func (b *Breaker) Execute(fn func() error) error {
	if b == nil {
		return fn()
	}
	_, err := b.cb.Execute(func() (struct{}, error) {
		return struct{}{}, fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrCircuitOpen
	}
	return err
}

// State returns gobreaker's human-readable state string ("closed",
// "open", "half-open").
func (b *Breaker) State() string {
	if b == nil {
		return "disabled"
	}
	return b.cb.State().String()
}

// IsOpen reports whether the breaker is currently open, without
// mutating its counters the way Execute would. Callers use this to
// short-circuit before even attempting a request, then call Execute
// exactly once with the request's real outcome.
func (b *Breaker) IsOpen() bool {
	if b == nil {
		return false
	}
	return b.cb.State() == gobreaker.StateOpen
}
