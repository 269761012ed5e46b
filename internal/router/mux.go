package router

import (
	"strings"
	"sync"

	"github.com/sneha4175/adaptive-gateway/internal/loadbalancing"
)

// Router holds the compiled route set and resolves an incoming request
// path to the most specific matching Route, the way a reverse proxy's
// director picks the longest matching configured prefix.
type Router struct {
	mu     sync.RWMutex
	routes map[string]*Route // by raw pattern, for the control plane's lookup-by-path
	all    []*Route
}

// New returns an empty Router.
func New() *Router {
	return &Router{routes: make(map[string]*Route)}
}

// AddRoute compiles pattern and registers it. It returns
// ErrInvalidPattern if pattern fails validation, wrapped with the
// compile error's detail.
func (rt *Router) AddRoute(pattern string, lb *loadbalancing.LoadBalancer) error {
	route, err := Compile(pattern, lb)
	if err != nil {
		return err
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.routes[pattern] = route
	rt.all = append(rt.all, route)
	return nil
}

// Match returns the most specific Route whose pattern matches path, or
// nil if none does. Specificity is the count of literal segments
// matched; ties are broken by registration order (first registered
// wins).
func (rt *Router) Match(path string) *Route {
	segments := splitPath(path)

	rt.mu.RLock()
	defer rt.mu.RUnlock()

	var best *Route
	bestSpecificity := -1
	for _, route := range rt.all {
		specificity, ok := route.match(segments)
		if !ok {
			continue
		}
		if specificity > bestSpecificity {
			best = route
			bestSpecificity = specificity
		}
	}
	return best
}

// RouteForPath returns the exact route registered under pattern, used
// by the control plane to validate a strategy-override request's path
// without doing a traffic match.
func (rt *Router) RouteForPath(pattern string) (*Route, bool) {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	r, ok := rt.routes[pattern]
	return r, ok
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}
