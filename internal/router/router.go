// Package router compiles path patterns and matches incoming request
// paths against the bound load balancer for the longest matching route,
// generalizing simple longest-prefix route matching to patterns with
// named captures and a trailing catch-all segment.
package router

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/sneha4175/adaptive-gateway/internal/loadbalancing"
)

// patternSyntax is the validation regex a raw pattern must satisfy
// before it is compiled: a leading slash, no literal '*' except as the
// single optional trailing catch-all marker.
var patternSyntax = regexp.MustCompile(`^/[^*]*\*?$`)

// ErrInvalidPattern is returned by Compile and AddRoute for any pattern
// failing patternSyntax or containing a malformed capture segment.
var ErrInvalidPattern = errors.New("router: invalid path pattern")

type segmentKind int

const (
	segmentExact segmentKind = iota
	segmentCapture
	segmentCatchAll
)

type segment struct {
	kind segmentKind
	text string // literal text for segmentExact, capture name otherwise
}

// Route is one compiled path pattern bound to a load balancer.
type Route struct {
	pattern  string
	segments []segment
	lb       *loadbalancing.LoadBalancer
}

// LoadBalancer returns the load balancer this route is bound to.
func (r *Route) LoadBalancer() *loadbalancing.LoadBalancer { return r.lb }

// Pattern returns the raw pattern text the route was compiled from.
func (r *Route) Pattern() string { return r.pattern }

// Compile validates and parses pattern into a Route bound to lb.
// Patterns consist of '/'-separated segments: literal text, "{name}"
// named captures, or a single trailing "{*rest}" catch-all that must be
// the final segment.
func Compile(pattern string, lb *loadbalancing.LoadBalancer) (*Route, error) {
	if !patternSyntax.MatchString(stripCaptures(pattern)) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPattern, pattern)
	}
	if !strings.HasPrefix(pattern, "/") {
		return nil, fmt.Errorf("%w: %q: must start with /", ErrInvalidPattern, pattern)
	}

	raw := strings.Split(strings.Trim(pattern, "/"), "/")
	segments := make([]segment, 0, len(raw))
	for i, part := range raw {
		if part == "" {
			continue
		}
		switch {
		case strings.HasPrefix(part, "{*") && strings.HasSuffix(part, "}"):
			if i != len(raw)-1 {
				return nil, fmt.Errorf("%w: %q: catch-all must be the final segment", ErrInvalidPattern, pattern)
			}
			name := strings.TrimSuffix(strings.TrimPrefix(part, "{*"), "}")
			if name == "" {
				return nil, fmt.Errorf("%w: %q: empty catch-all name", ErrInvalidPattern, pattern)
			}
			segments = append(segments, segment{kind: segmentCatchAll, text: name})
		case strings.HasPrefix(part, "{") && strings.HasSuffix(part, "}"):
			name := strings.TrimSuffix(strings.TrimPrefix(part, "{"), "}")
			if name == "" {
				return nil, fmt.Errorf("%w: %q: empty capture name", ErrInvalidPattern, pattern)
			}
			segments = append(segments, segment{kind: segmentCapture, text: name})
		default:
			segments = append(segments, segment{kind: segmentExact, text: part})
		}
	}

	return &Route{pattern: pattern, segments: segments, lb: lb}, nil
}

// stripCaptures replaces every "{...}" or "{*...}" token with a single
// placeholder character so patternSyntax, which only understands plain
// segments and a trailing '*', can validate the surrounding structure.
func stripCaptures(pattern string) string {
	var b strings.Builder
	for i := 0; i < len(pattern); i++ {
		if pattern[i] == '{' {
			end := strings.IndexByte(pattern[i:], '}')
			if end < 0 {
				return pattern // malformed; let the caller's checks fail on it
			}
			inner := pattern[i+1 : i+end]
			if strings.HasPrefix(inner, "*") {
				b.WriteByte('*')
			} else {
				b.WriteByte('x')
			}
			i += end
			continue
		}
		b.WriteByte(pattern[i])
	}
	return b.String()
}

// match reports whether path satisfies the route's segments and, if so,
// how many literal (non-capture, non-catch-all) segments matched —
// used by Router to break ties in favor of the most specific route.
func (r *Route) match(pathSegments []string) (specificity int, ok bool) {
	for i, seg := range r.segments {
		if seg.kind == segmentCatchAll {
			return specificity, true
		}
		if i >= len(pathSegments) {
			return 0, false
		}
		switch seg.kind {
		case segmentExact:
			if pathSegments[i] != seg.text {
				return 0, false
			}
			specificity++
		case segmentCapture:
			// any non-empty segment satisfies a capture
			if pathSegments[i] == "" {
				return 0, false
			}
		}
	}
	if len(pathSegments) != len(r.segments) {
		return 0, false
	}
	return specificity, true
}
