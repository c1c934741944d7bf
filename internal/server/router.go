package server

import "net/http"

// Router wires every route into the handler: REST routes run through
// the metrics middleware, then OpenAPI schema validation, on one mux,
// while the websocket monitor sits on a separate top-level mux so its
// ResponseWriter keeps satisfying http.Hijacker (the metrics wrapper
// in metrics.go does not).
//
// Routes:
//
// Health:
//   - GET  /
//   - GET  /v2/healthz
//   - GET  /v2/readyz
//   - GET  /v2/version
//
// Components:
//   - GET    /v2/components
//   - PATCH  /v2/components          (bulk, filter {session|ids})
//   - POST   /v2/components/applystaged
//   - GET    /v2/components/{id}
//   - PATCH  /v2/components/{id}
//   - DELETE /v2/components/{id}
//
// Sessions:
//   - GET    /v2/sessions
//   - POST   /v2/sessions
//   - GET    /v2/sessions/{name}
//   - GET    /v2/sessions/{name}/status
//   - DELETE /v2/sessions/{name}
//
// Session templates:
//   - GET    /v2/sessiontemplates
//   - POST   /v2/sessiontemplates
//   - GET    /v2/sessiontemplatetemplate
//   - GET    /v2/sessiontemplates/{name}
//   - PATCH  /v2/sessiontemplates/{name}
//   - POST   /v2/sessiontemplates/{name}/validate
//   - DELETE /v2/sessiontemplates/{name}
//
// Options:
//   - GET    /v2/options
//   - PATCH  /v2/options
//
// Monitor:
//   - GET    /v2/ws/sessions/{name}
func (h *Handler) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /", h.Root)
	mux.HandleFunc("GET /v2/healthz", h.Healthz)
	mux.HandleFunc("GET /v2/readyz", h.Readyz)
	mux.HandleFunc("GET /v2/version", h.Version)
	mux.Handle("GET /metrics", MetricsHandler())

	mux.HandleFunc("GET /v2/components", h.ListComponents)
	mux.HandleFunc("PATCH /v2/components", h.PatchComponentsBulk)
	mux.HandleFunc("POST /v2/components/applystaged", h.ApplyStaged)
	mux.HandleFunc("GET /v2/components/{id}", h.GetComponent)
	mux.HandleFunc("PATCH /v2/components/{id}", h.PatchComponent)
	mux.HandleFunc("DELETE /v2/components/{id}", h.DeleteComponent)

	mux.HandleFunc("GET /v2/sessions", h.ListSessions)
	mux.HandleFunc("POST /v2/sessions", h.CreateSession)
	mux.HandleFunc("GET /v2/sessions/{name}", h.GetSession)
	mux.HandleFunc("GET /v2/sessions/{name}/status", h.GetSessionStatus)
	mux.HandleFunc("DELETE /v2/sessions/{name}", h.DeleteSession)

	mux.HandleFunc("GET /v2/sessiontemplates", h.ListSessionTemplates)
	mux.HandleFunc("POST /v2/sessiontemplates", h.CreateSessionTemplate)
	mux.HandleFunc("GET /v2/sessiontemplatetemplate", h.GetSessionTemplateTemplate)
	mux.HandleFunc("GET /v2/sessiontemplates/{name}", h.GetSessionTemplate)
	mux.HandleFunc("PATCH /v2/sessiontemplates/{name}", h.PatchSessionTemplate)
	mux.HandleFunc("POST /v2/sessiontemplates/{name}/validate", h.ValidateSessionTemplate)
	mux.HandleFunc("DELETE /v2/sessiontemplates/{name}", h.DeleteSessionTemplate)

	mux.HandleFunc("GET /v2/options", h.GetOptions)
	mux.HandleFunc("PATCH /v2/options", h.PatchOptions)

	apiHandler := h.metrics.MetricsMiddleware(h.validate.Middleware(mux))
	corsHandler := corsMiddleware(apiHandler)

	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /v2/ws/sessions/{name}", h.MonitorSession)
	topMux.Handle("/", corsHandler)

	return topMux
}
