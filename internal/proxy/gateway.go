// Package proxy wires the adaptive load-balancing core, routing, rate
// limiting, and circuit breaking together into a single http.Handler.
package proxy

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sneha4175/adaptive-gateway/internal/circuitbreaker"
	"github.com/sneha4175/adaptive-gateway/internal/config"
	"github.com/sneha4175/adaptive-gateway/internal/loadbalancing"
	"github.com/sneha4175/adaptive-gateway/internal/middleware"
	"github.com/sneha4175/adaptive-gateway/internal/ratelimiter"
	"github.com/sneha4175/adaptive-gateway/internal/router"
)

// Gateway is the main http.Handler: a compiled router over one
// *loadbalancing.LoadBalancer per configured route.
type Gateway struct {
	mu     sync.RWMutex
	rt     *router.Router
	routes map[string]*route // by pattern, for extra per-route state the router itself doesn't carry
	log    *zap.SugaredLogger
	cancel context.CancelFunc
}

type route struct {
	pattern   string
	strip     bool
	timeout   time.Duration
	lb        *loadbalancing.LoadBalancer
	telemetry *loadbalancing.Telemetry
	rl        ratelimiter.Limiter
	breakers  map[string]*circuitbreaker.Breaker // keyed by Backend.Addr
	schemes   map[string]string                  // Backend.Addr -> "http"/"https"
	handler   http.Handler
}

// NewGateway builds a Gateway from cfg, starting one supervisor
// goroutine per route.
func NewGateway(cfg *config.Config, log *zap.SugaredLogger) (*Gateway, error) {
	ctx, cancel := context.WithCancel(context.Background())
	gw := &Gateway{log: log, cancel: cancel}

	rt, routes, err := buildRoutes(ctx, cfg.Routes, log)
	if err != nil {
		cancel()
		return nil, err
	}
	gw.rt = rt
	gw.routes = routes
	return gw, nil
}

// Reload swaps in a new set of routes without downtime, stopping the
// previous generation's supervisors only after the new one is live.
func (gw *Gateway) Reload(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	rt, routes, err := buildRoutes(ctx, cfg.Routes, gw.log)
	if err != nil {
		cancel()
		return err
	}

	gw.mu.Lock()
	oldCancel := gw.cancel
	gw.rt = rt
	gw.routes = routes
	gw.cancel = cancel
	gw.mu.Unlock()

	oldCancel()
	return nil
}

// Close stops every route's supervisor goroutine.
func (gw *Gateway) Close() {
	gw.mu.RLock()
	defer gw.mu.RUnlock()
	gw.cancel()
}

// ServeHTTP dispatches to the most specific matching route.
func (gw *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	gw.mu.RLock()
	rt := gw.rt
	gw.mu.RUnlock()

	matched := rt.Match(r.URL.Path)
	if matched == nil {
		http.Error(w, "no route matched", http.StatusNotFound)
		return
	}

	gw.mu.RLock()
	rte := gw.routes[matched.Pattern()]
	gw.mu.RUnlock()

	rte.handler.ServeHTTP(w, r)
}

// RegisterAdminHandlers mounts /metrics, /healthz, /readyz, and
// /backends on the admin mux.
func (gw *Gateway) RegisterAdminHandlers(mux *http.ServeMux) {
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	mux.HandleFunc("/readyz", gw.readyzHandler)
	mux.HandleFunc("/backends", gw.backendsHandler)
}

// Router exposes the compiled router so the control plane can resolve
// a strategy-override request's path to a route's load balancer.
func (gw *Gateway) Router() *router.Router {
	gw.mu.RLock()
	defer gw.mu.RUnlock()
	return gw.rt
}

func (gw *Gateway) readyzHandler(w http.ResponseWriter, _ *http.Request) {
	gw.mu.RLock()
	routes := gw.routes
	gw.mu.RUnlock()

	for _, rte := range routes {
		backends, ready := rte.lb.Registry().GetSnapshot()
		for _, b := range backends {
			if ready[b.HashKey] {
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte(`{"status":"ready"}`))
				return
			}
		}
	}
	http.Error(w, `{"status":"not_ready","reason":"no healthy backends"}`, http.StatusServiceUnavailable)
}

func (gw *Gateway) backendsHandler(w http.ResponseWriter, _ *http.Request) {
	gw.mu.RLock()
	routes := gw.routes
	gw.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, "[")
	i := 0
	for pattern, rte := range routes {
		if i > 0 {
			fmt.Fprint(w, ",")
		}
		i++
		fmt.Fprintf(w, `{"route":%q,"strategy":%q,"backends":[`, pattern, rte.lb.CurrentStrategy().Name())
		backends, ready := rte.lb.Registry().GetSnapshot()
		for j, b := range backends {
			if j > 0 {
				fmt.Fprint(w, ",")
			}
			cbState := "disabled"
			if cb, ok := rte.breakers[b.Addr]; ok {
				cbState = cb.State()
			}
			conns, _ := rte.lb.Registry().ConnectionMetrics(b).ActiveConnections()
			latency, _ := rte.lb.Registry().LatencyMetrics(b).AverageLatencyMs()
			fmt.Fprintf(w, `{"addr":%q,"ready":%v,"connections":%d,"latency_ms":%.2f,"circuit_breaker":%q}`,
				b.Addr, ready[b.HashKey], conns, latency, cbState)
		}
		fmt.Fprint(w, "]}")
	}
	fmt.Fprint(w, "]")
}

// ---------------------------------------------------------------------------
// Route construction
// ---------------------------------------------------------------------------

func buildRoutes(ctx context.Context, cfgs []config.RouteConfig, log *zap.SugaredLogger) (*router.Router, map[string]*route, error) {
	rt := router.New()
	routes := make(map[string]*route, len(cfgs))

	for i, cfg := range cfgs {
		r, err := buildRoute(ctx, cfg, log)
		if err != nil {
			return nil, nil, fmt.Errorf("route[%d] %q: %w", i, cfg.PathPattern, err)
		}
		if err := rt.AddRoute(cfg.PathPattern, r.lb); err != nil {
			return nil, nil, fmt.Errorf("route[%d] %q: %w", i, cfg.PathPattern, err)
		}
		routes[cfg.PathPattern] = r
	}
	return rt, routes, nil
}

func buildRoute(ctx context.Context, cfg config.RouteConfig, log *zap.SugaredLogger) (*route, error) {
	entries := make(map[string]int, len(cfg.Backends))
	schemes := make(map[string]string, len(cfg.Backends))
	for _, b := range cfg.Backends {
		u, err := url.Parse(b.URL)
		if err != nil {
			return nil, fmt.Errorf("invalid backend url %q: %w", b.URL, err)
		}
		entries[u.Host] = b.Weight
		schemes[u.Host] = u.Scheme
	}

	discovery, err := loadbalancing.NewStaticDiscovery(entries)
	if err != nil {
		return nil, err
	}

	registry := loadbalancing.NewBackendRegistry()
	if err := registry.Update(discovery); err != nil {
		return nil, fmt.Errorf("initial backend discovery: %w", err)
	}

	// DNS resolution may fan a single configured host out into several
	// resolved addresses; propagate the originating scheme to each.
	resolvedSchemes := make(map[string]string)
	for _, b := range registry.BackendsFor(loadbalancing.StrategyRoundRobin) {
		host, _, _ := net.SplitHostPort(b.Addr)
		for origHost, scheme := range schemes {
			origHostOnly, _, _ := net.SplitHostPort(origHost)
			if origHostOnly == host || origHost == b.Addr {
				resolvedSchemes[b.Addr] = scheme
			}
		}
	}

	strategy, err := loadbalancing.NewStrategy(loadbalancing.StrategyName(cfg.AdaptiveLB.StartingStrategy))
	if err != nil {
		return nil, err
	}

	lb, err := loadbalancing.NewLoadBalancer(registry, strategy, cfg.AdaptiveLB.MaxIterations)
	if err != nil {
		return nil, err
	}

	telemetry := loadbalancing.NewTelemetry(lb, cfg.AdaptiveLB.LatencySmoothingFactor)

	engine := loadbalancing.NewDecisionEngine(loadbalancing.DecisionEngineConfig{
		EvaluateFrequency:          time.Duration(cfg.AdaptiveLB.EvaluateStrategyFrequencyMS) * time.Millisecond,
		ConnectionsDivergenceRatio: cfg.AdaptiveLB.ConnectionsDivergenceRatio,
		LatencyDivergenceRatio:     cfg.AdaptiveLB.LatencyDivergenceRatio,
		MinNrOfConnections:         cfg.AdaptiveLB.MinNrOfConnections,
	})

	var probe loadbalancing.HealthProbe
	if cfg.AdaptiveLB.HealthCheckIntervalMS > 0 {
		probe = loadbalancing.NewTCPProbe(time.Duration(cfg.TimeoutSeconds) * time.Second)
	}

	supervisor := loadbalancing.NewSupervisor(lb, discovery, probe, engine, loadbalancing.SupervisorConfig{
		DiscoveryInterval:   time.Duration(cfg.AdaptiveLB.DiscoveryIntervalMS) * time.Millisecond,
		HealthCheckInterval: time.Duration(cfg.AdaptiveLB.HealthCheckIntervalMS) * time.Millisecond,
		EvaluateInterval:    time.Duration(cfg.AdaptiveLB.EvaluateStrategyFrequencyMS) * time.Millisecond,
		SmoothingFactor:     cfg.AdaptiveLB.LatencySmoothingFactor,
		ProbeInParallel:     true,
	}, log)
	go supervisor.Run(ctx)

	rl, err := ratelimiter.New(cfg.RateLimit)
	if err != nil {
		return nil, err
	}

	breakers := make(map[string]*circuitbreaker.Breaker, len(lb.Backends()))
	for _, b := range lb.Backends() {
		breakers[b.Addr] = circuitbreaker.New(cfg.PathPattern+"#"+b.Addr, cfg.CircuitBreaker)
	}

	rte := &route{
		pattern:   cfg.PathPattern,
		strip:     cfg.StripPrefix,
		timeout:   time.Duration(cfg.TimeoutSeconds) * time.Second,
		lb:        lb,
		telemetry: telemetry,
		rl:        rl,
		breakers:  breakers,
		schemes:   resolvedSchemes,
	}

	core := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rte.serveProxy(w, r, log)
	})

	rte.handler = middleware.Chain(core,
		middleware.RequestID,
		middleware.Logger(log),
		middleware.Metrics(cfg.PathPattern),
	)

	return rte, nil
}

// serveProxy is the core proxy logic for one route.
func (rte *route) serveProxy(w http.ResponseWriter, r *http.Request, log *zap.SugaredLogger) {
	if err := rte.rl.Allow(r); err != nil {
		var rlErr *ratelimiter.ErrRateLimited
		if errors.As(err, &rlErr) {
			w.Header().Set("Retry-After", fmt.Sprintf("%.0f", rlErr.RetryAfter.Seconds()))
			w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", time.Now().Add(rlErr.RetryAfter).Unix()))
		}
		http.Error(w, "too many requests", http.StatusTooManyRequests)
		return
	}

	key := []byte(r.RemoteAddr)
	backend, err := rte.lb.Select(key, func(b loadbalancing.Backend, ready bool) bool { return ready })
	if err != nil {
		log.Errorw("no healthy backend", "route", rte.pattern, "error", err)
		http.Error(w, "service unavailable — no healthy backends", http.StatusServiceUnavailable)
		return
	}

	rte.telemetry.OnSelect(backend)
	cb := rte.breakers[backend.Addr]
	if cb.IsOpen() {
		http.Error(w, "service unavailable — circuit open", http.StatusServiceUnavailable)
		return
	}

	scheme := rte.schemes[backend.Addr]
	if scheme == "" {
		scheme = "http"
	}
	targetURL := &url.URL{Scheme: scheme, Host: backend.Addr}

	rte.telemetry.OnConnect(backend)
	defer rte.telemetry.OnDisconnect(backend)
	start := time.Now()

	var upstreamErr error

	proxy := &httputil.ReverseProxy{
		Director: func(req *http.Request) {
			req.URL.Scheme = targetURL.Scheme
			req.URL.Host = targetURL.Host
			if rte.strip {
				req.URL.Path = strings.TrimPrefix(req.URL.Path, rte.pattern)
				if req.URL.Path == "" {
					req.URL.Path = "/"
				}
			}
			if clientIP, _, err := net.SplitHostPort(req.RemoteAddr); err == nil {
				if prior := req.Header.Get("X-Forwarded-For"); prior != "" {
					clientIP = prior + ", " + clientIP
				}
				req.Header.Set("X-Forwarded-For", clientIP)
			}
			req.Header.Set("X-Forwarded-Host", req.Host)
			req.Header.Set("X-Forwarded-Proto", requestScheme(req))
		},
		ModifyResponse: func(resp *http.Response) error {
			rte.telemetry.OnResponse(backend, time.Since(start))
			if resp.StatusCode >= 500 {
				upstreamErr = errUpstream5xx
			}
			resp.Header.Set(middleware.BackendHeader, backend.Addr)
			return nil
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			rte.telemetry.OnResponse(backend, time.Since(start))
			log.Errorw("upstream error", "backend", backend.Addr, "err", err)
			upstreamErr = err
			http.Error(w, "bad gateway", http.StatusBadGateway)
		},
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   rte.timeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: rte.timeout,
			MaxIdleConns:          200,
			MaxIdleConnsPerHost:   20,
			IdleConnTimeout:       90 * time.Second,
		},
	}

	proxy.ServeHTTP(w, r)
	_ = cb.Execute(func() error { return upstreamErr })
}

var errUpstream5xx = errors.New("proxy: upstream returned 5xx")

func requestScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	return "http"
}
