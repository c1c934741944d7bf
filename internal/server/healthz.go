package server

import (
	"net/http"
	"os"
	"time"

	"github.com/hpe-cray/bos/internal/store"
)

// maxLivenessAge is how stale the liveness file's mtime may be before
// /v2/healthz reports the operator fleet as unhealthy. Each
// operator.Runner iteration touches it at the start of every pass
// regardless of that pass's own frequency, so this only needs to
// exceed the slowest configured operator frequency plus margin.
const maxLivenessAge = 5 * time.Minute

// Healthz reports whether the store is reachable and, if a liveness
// path is configured, whether the operator fleet is still touching it.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	body := map[string]any{"status": "ok"}

	if _, _, err := h.store.Get(r.Context(), store.KindOptions, store.Key("", "global")); err != nil {
		status = http.StatusServiceUnavailable
		body["status"] = "degraded"
		body["store_error"] = err.Error()
	}

	if h.livenessPath != "" {
		info, err := os.Stat(h.livenessPath)
		switch {
		case err != nil:
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
			body["liveness_error"] = err.Error()
		case time.Since(info.ModTime()) > maxLivenessAge:
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
			body["liveness_stale_since"] = info.ModTime()
		}
	}

	writeJSON(w, status, body)
}

// Readyz is a liveness-only check (the process can accept connections),
// distinct from Healthz's dependency checks.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Version reports the running build version.
func (h *Handler) Version(w http.ResponseWriter, r *http.Request) {
	v := h.version
	if v == "" {
		v = "dev"
	}
	writeJSON(w, http.StatusOK, map[string]string{"version": v})
}

// Root handles GET /: a bare service identification response for
// load-balancer/uptime checks that only ever probe the root path.
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"service": "bos"})
}
