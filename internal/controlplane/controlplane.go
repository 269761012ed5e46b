// Package controlplane implements the strategy-override HTTP endpoint:
// an operator (or an external autoscaler) can force a route onto a
// specific selection strategy, bypassing the decision engine until its
// next evaluation tick runs and potentially overrides the choice again.
//
// This bypass is intentional and temporary: strategy selection should
// eventually be fully automatic, and this endpoint exists for operators
// and tests in the meantime.
package controlplane

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/sneha4175/adaptive-gateway/internal/loadbalancing"
	"github.com/sneha4175/adaptive-gateway/internal/router"
)

// setStrategyRequest is the JSON body accepted by Handler: the route's
// registered pattern and the desired strategy's name.
type setStrategyRequest struct {
	Path     string `json:"path"`
	Strategy string `json:"strategy"`
}

// Handler serves POST /strategy, looking up the named route in rt and
// calling UpdateStrategy directly on its load balancer.
type Handler struct {
	rt  *router.Router
	log *zap.SugaredLogger
}

// NewHandler returns a Handler resolving routes against rt.
func NewHandler(rt *router.Router, log *zap.SugaredLogger) *Handler {
	return &Handler{rt: rt, log: log}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var body setStrategyRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	route, ok := h.rt.RouteForPath(body.Path)
	if !ok {
		http.Error(w, "unknown route path", http.StatusBadRequest)
		return
	}

	name := loadbalancing.StrategyName(body.Strategy)
	if !name.Valid() {
		http.Error(w, "unknown strategy", http.StatusBadRequest)
		return
	}

	lb := route.LoadBalancer()
	if lb.CurrentStrategy().Name() == name {
		h.log.Infow("strategy override is a no-op, already active", "path", body.Path, "strategy", name)
		w.WriteHeader(http.StatusOK)
		return
	}

	strategy, err := loadbalancing.NewStrategy(name)
	if err != nil {
		http.Error(w, "unknown strategy", http.StatusBadRequest)
		return
	}

	if !lb.UpdateStrategy(strategy) {
		http.Error(w, "failed to build selector for strategy", http.StatusInternalServerError)
		return
	}

	h.log.Infow("strategy override applied", "path", body.Path, "strategy", name)
	w.WriteHeader(http.StatusOK)
}
