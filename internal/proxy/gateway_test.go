package proxy

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/sneha4175/adaptive-gateway/internal/config"
)

func testLogger(t *testing.T) *zap.SugaredLogger {
	t.Helper()
	log, err := zap.NewDevelopment()
	if err != nil {
		t.Fatalf("zap.NewDevelopment: %v", err)
	}
	return log.Sugar()
}

func TestGatewayProxiesToBackend(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "hello from upstream")
	}))
	defer upstream.Close()

	cfg := &config.Config{
		Routes: []config.RouteConfig{{
			PathPattern:    "/api/{*rest}",
			TimeoutSeconds: 5,
			Backends:       []config.BackendConfig{{URL: upstream.URL, Weight: 1}},
			AdaptiveLB:     config.AdaptiveLBConfig{StartingStrategy: "round_robin", MaxIterations: 16},
		}},
	}

	gw, err := NewGateway(cfg, testLogger(t))
	if err != nil {
		t.Fatalf("NewGateway: %v", err)
	}
	defer gw.Close()

	req := httptest.NewRequest(http.MethodGet, "/api/resource", nil)
	rec := httptest.NewRecorder()
	gw.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "hello from upstream") {
		t.Errorf("body = %q, want it to contain the upstream response", rec.Body.String())
	}
}

func TestGatewayReturnsNotFoundForUnmatchedPath(t *testing.T) {
	cfg := &config.Config{
		Routes: []config.RouteConfig{{
			PathPattern:    "/api",
			TimeoutSeconds: 5,
			Backends:       []config.BackendConfig{{URL: "http://127.0.0.1:1", Weight: 1}},
			AdaptiveLB:     config.AdaptiveLBConfig{StartingStrategy: "round_robin", MaxIterations: 16},
		}},
	}
	gw, err := NewGateway(cfg, testLogger(t))
	if err != nil {
		t.Fatalf("NewGateway: %v", err)
	}
	defer gw.Close()

	req := httptest.NewRequest(http.MethodGet, "/other", nil)
	rec := httptest.NewRecorder()
	gw.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestGatewayBackendsHandlerReportsRoutes(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	cfg := &config.Config{
		Routes: []config.RouteConfig{{
			PathPattern:    "/api",
			TimeoutSeconds: 5,
			Backends:       []config.BackendConfig{{URL: upstream.URL, Weight: 1}},
			AdaptiveLB:     config.AdaptiveLBConfig{StartingStrategy: "round_robin", MaxIterations: 16},
		}},
	}
	gw, err := NewGateway(cfg, testLogger(t))
	if err != nil {
		t.Fatalf("NewGateway: %v", err)
	}
	defer gw.Close()

	mux := http.NewServeMux()
	gw.RegisterAdminHandlers(mux)

	req := httptest.NewRequest(http.MethodGet, "/backends", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"route":"/api"`) {
		t.Errorf("body = %q, want it to report the /api route", rec.Body.String())
	}
}
