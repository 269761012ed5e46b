package loadbalancing

import (
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestTCPProbeHealthyListener(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	probe := NewTCPProbe(200 * time.Millisecond)
	if !probe.Probe(Backend{Addr: ln.Addr().String()}) {
		t.Error("expected a live listener to probe healthy")
	}
}

func TestTCPProbeUnreachable(t *testing.T) {
	probe := NewTCPProbe(50 * time.Millisecond)
	if probe.Probe(Backend{Addr: "127.0.0.1:1"}) {
		t.Error("expected an unreachable address to probe unhealthy")
	}
}

func TestTCPProbeDefaultsTimeout(t *testing.T) {
	probe := NewTCPProbe(0)
	if probe.Timeout != time.Second {
		t.Errorf("Timeout = %v, want 1s default", probe.Timeout)
	}
}

func TestHTTPProbeHealthyOn2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	host := strings.TrimPrefix(srv.URL, "http://")
	probe := NewHTTPProbe("http", "/", time.Second)
	if !probe.Probe(Backend{Addr: host}) {
		t.Error("expected a 2xx response to probe healthy")
	}
}

func TestHTTPProbeUnhealthyOn5xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	host := strings.TrimPrefix(srv.URL, "http://")
	probe := NewHTTPProbe("http", "/", time.Second)
	if probe.Probe(Backend{Addr: host}) {
		t.Error("expected a 5xx response to probe unhealthy")
	}
}

func TestHTTPProbeDefaults(t *testing.T) {
	probe := NewHTTPProbe("", "", 0)
	if probe.Scheme != "http" {
		t.Errorf("Scheme = %q, want http", probe.Scheme)
	}
	if probe.Path != "/healthz" {
		t.Errorf("Path = %q, want /healthz", probe.Path)
	}
}
