package loadbalancing

import (
	"math"
	"sync/atomic"
	"time"
)

// Metrics is the per-backend signal bundle consumed by the selection
// strategies and the decision engine. Implementations must be lock-free
// and safe to call from many goroutines concurrently. A strategy that
// does not need a signal returns false from the corresponding query.
type Metrics interface {
	OnConnect()
	OnDisconnect()
	RecordLatency(d time.Duration, alpha float64)
	ActiveConnections() (count int64, ok bool)
	AverageLatencyMs() (avg float32, ok bool)
}

// connectionMetrics tracks only the in-flight connection count, as
// required by the FewestConnections strategy.
type connectionMetrics struct {
	active atomic.Int64
}

// NewConnectionMetrics returns a Metrics handle that tracks active
// connections and reports no latency signal.
func NewConnectionMetrics() Metrics { return &connectionMetrics{} }

func (m *connectionMetrics) OnConnect() { m.active.Add(1) }

func (m *connectionMetrics) OnDisconnect() {
	for {
		cur := m.active.Load()
		if cur <= 0 {
			return
		}
		if m.active.CompareAndSwap(cur, cur-1) {
			return
		}
	}
}

func (m *connectionMetrics) RecordLatency(time.Duration, float64) {}

func (m *connectionMetrics) ActiveConnections() (int64, bool) { return m.active.Load(), true }

func (m *connectionMetrics) AverageLatencyMs() (float32, bool) { return 0, false }

// latencyMetrics tracks the latency EWMA, as required by the
// FastestServer strategy. Latency is stored as float64 bits behind an
// atomic.Uint64 since the standard library has no atomic float type.
type latencyMetrics struct {
	bits atomic.Uint64
}

// NewLatencyMetrics returns a Metrics handle that tracks a latency EWMA
// and reports no connection-count signal.
func NewLatencyMetrics() Metrics { return &latencyMetrics{} }

func (m *latencyMetrics) OnConnect()    {}
func (m *latencyMetrics) OnDisconnect() {}

// RecordLatency updates the EWMA: avg := x on the first sample, then
// avg := alpha*x + (1-alpha)*avg. alpha must be in (0,1].
func (m *latencyMetrics) RecordLatency(d time.Duration, alpha float64) {
	x := float64(d) / float64(time.Millisecond)
	for {
		old := m.bits.Load()
		oldAvg := math.Float64frombits(old)
		var next float64
		if oldAvg == 0 {
			next = x
		} else {
			next = alpha*x + (1-alpha)*oldAvg
		}
		if m.bits.CompareAndSwap(old, math.Float64bits(next)) {
			return
		}
	}
}

func (m *latencyMetrics) ActiveConnections() (int64, bool) { return 0, false }

func (m *latencyMetrics) AverageLatencyMs() (float32, bool) {
	return float32(math.Float64frombits(m.bits.Load())), true
}

// DefaultSmoothingFactor is the load-balancer-wide EWMA weight applied to
// new latency samples unless configuration overrides it.
const DefaultSmoothingFactor = 0.5
