package loadbalancing

import "errors"

var (
	// ErrUnknownStrategy is returned by NewStrategy for a name outside
	// the six recognized strategies.
	ErrUnknownStrategy = errors.New("loadbalancing: unknown strategy")

	// ErrNoHealthyBackend is surfaced by LoadBalancer.Select when no
	// ready backend could be found within the unique-iterator budget.
	// The proxy layer should translate this into a 502/503 with retry.
	ErrNoHealthyBackend = errors.New("loadbalancing: no healthy backend available")

	// ErrEmptyBackendSet names the InvalidConfiguration error for a load
	// balancer configured with zero backends. Nothing in this package
	// returns it: NewLoadBalancer and every strategy's Build accept an
	// empty backend set, and Select then reports ErrNoHealthyBackend.
	ErrEmptyBackendSet = errors.New("loadbalancing: backend set is empty")

	// ErrTooManyWeightedEntries is an InvalidConfiguration error raised
	// when the sum of backend weights for a weighted strategy would
	// exceed 2^16 expanded entries.
	ErrTooManyWeightedEntries = errors.New("loadbalancing: weighted expansion exceeds 65536 entries")

	// ErrTooManyBackends is an InvalidConfiguration error raised when a
	// load balancer instance is configured with more than 2^16 backends.
	ErrTooManyBackends = errors.New("loadbalancing: more than 65536 backends configured")

	// ErrBackendMetricMissing indicates FewestConnections or
	// FastestServer was asked to build a selector over a backend whose
	// required Metrics handle is absent. This is a programming error:
	// BackendRegistry.BackendsFor attaches the handle each strategy
	// consumes to every backend, so it only arises for backends built
	// outside the registry.
	ErrBackendMetricMissing = errors.New("loadbalancing: backend missing required metric for strategy")
)
