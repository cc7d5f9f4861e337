package handler

import (
	"context"
	"net/http"
	"time"
)

const readinessTimeout = 5 * time.Second

// Check results reported by /readyz. Failure details stay out of the
// response because ping errors carry hostnames.
const (
	checkOK            = "ok"
	checkUnavailable   = "unavailable"
	checkNotConfigured = "not configured"
)

// HealthChecker is anything /readyz can ping.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	deps     []namedChecker
	draining func() bool
}

type namedChecker struct {
	name    string
	checker HealthChecker
}

// NewHealthHandler probes db as "postgres" and cache as "redis". Either
// may be nil, in which case it is reported as not configured.
func NewHealthHandler(db, cache HealthChecker) *HealthHandler {
	return &HealthHandler{deps: []namedChecker{{"postgres", db}, {"redis", cache}}}
}

// WithDrain makes /readyz fail while draining returns true, so load
// balancers stop routing before the listener closes.
func (h *HealthHandler) WithDrain(draining func() bool) *HealthHandler {
	h.draining = draining
	return h
}

type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Healthz is the liveness probe and never touches dependencies.
//
// GET /healthz
func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// Readyz is the readiness probe.
//
// GET /readyz
func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	if h.draining != nil && h.draining() {
		writeJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "draining"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	resp := HealthResponse{Status: "ok", Checks: make(map[string]string, len(h.deps))}
	status := http.StatusOK
	for _, d := range h.deps {
		result := ping(ctx, d.checker)
		resp.Checks[d.name] = result
		if result == checkUnavailable {
			resp.Status = "unhealthy"
			status = http.StatusServiceUnavailable
		}
	}
	writeJSON(w, status, resp)
}

func ping(ctx context.Context, c HealthChecker) string {
	switch {
	case c == nil:
		return checkNotConfigured
	case c.Ping(ctx) != nil:
		return checkUnavailable
	default:
		return checkOK
	}
}
