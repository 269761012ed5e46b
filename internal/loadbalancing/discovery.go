package loadbalancing

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Discovery produces the current desired backend set. Implementations
// may resolve DNS, read a file, or call a service registry; Discover
// should return quickly and let the caller decide how often to poll.
type Discovery interface {
	Discover() ([]Backend, error)
}

// StaticDiscovery returns a fixed backend list, resolved once at
// construction time via NewBackends.
type StaticDiscovery struct {
	backends []Backend
}

// NewStaticDiscovery resolves each "host:port" entry (with its weight)
// into backends up front.
func NewStaticDiscovery(entries map[string]int) (*StaticDiscovery, error) {
	var backends []Backend
	for addr, weight := range entries {
		resolved, err := NewBackends(addr, weight)
		if err != nil {
			return nil, err
		}
		backends = append(backends, resolved...)
	}
	return &StaticDiscovery{backends: backends}, nil
}

func (s *StaticDiscovery) Discover() ([]Backend, error) {
	out := make([]Backend, len(s.backends))
	copy(out, s.backends)
	return out, nil
}

// fileDiscoveryDoc is the on-disk shape FileDiscovery expects: a flat
// map of endpoint to weight, the same shape a config hot-reload would
// hand the registry.
type fileDiscoveryDoc struct {
	Backends map[string]int `yaml:"backends"`
}

// FileDiscovery re-reads a YAML backend list from disk on every
// Discover call, so an operator (or a config-management system) can add
// or remove upstreams without restarting the process, the same way the
// gateway's own config already hot-reloads via fsnotify.
type FileDiscovery struct {
	path string
}

func NewFileDiscovery(path string) *FileDiscovery {
	return &FileDiscovery{path: path}
}

func (f *FileDiscovery) Discover() ([]Backend, error) {
	raw, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("read backend file %q: %w", f.path, err)
	}
	var doc fileDiscoveryDoc
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse backend file %q: %w", f.path, err)
	}

	var backends []Backend
	for addr, weight := range doc.Backends {
		resolved, err := NewBackends(addr, weight)
		if err != nil {
			return nil, err
		}
		backends = append(backends, resolved...)
	}
	return backends, nil
}
