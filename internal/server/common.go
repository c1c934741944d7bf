// Package server implements BOS's REST and websocket API: the
// components, sessions, session templates, and options resources,
// plus health/version/metrics and a websocket monitor fed by
// internal/eventbus. A Handler struct holds every dependency, routed
// with Go 1.22 method-pattern routing, and the
// same writeJSON/writeError/generateID helpers.
package server

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"

	"github.com/hpe-cray/bos/internal/eventbus"
	"github.com/hpe-cray/bos/internal/options"
	"github.com/hpe-cray/bos/internal/store"
	"github.com/hpe-cray/bos/pkg/logging"
)

// Handler is the entry point for every HTTP and websocket route.
type Handler struct {
	store    store.Store
	tokens   store.TokenStore
	opts     *options.Provider
	events   *eventbus.Bus
	log      *logging.Logger
	metrics  *Metrics
	validate *schemaValidator

	livenessPath string
	version      string
}

// Config bundles the dependencies NewHandler wires together.
type Config struct {
	Store        store.Store
	Tokens       store.TokenStore
	Options      *options.Provider
	Events       *eventbus.Bus
	Log          *logging.Logger
	LivenessPath string
	Version      string
}

// NewHandler constructs a Handler from cfg.
func NewHandler(cfg Config) (*Handler, error) {
	validate, err := newSchemaValidator()
	if err != nil {
		return nil, err
	}
	return &Handler{
		store:        cfg.Store,
		tokens:       cfg.Tokens,
		opts:         cfg.Options,
		events:       cfg.Events,
		log:          cfg.Log,
		metrics:      NewMetrics("bos"),
		validate:     validate,
		livenessPath: cfg.LivenessPath,
		version:      cfg.Version,
	}, nil
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// generateID returns a short, collision-resistant session name suffix
// when a caller doesn't supply one of their own.
func generateID(prefix string) string {
	b := make([]byte, 6)
	rand.Read(b)
	return prefix + "-" + hex.EncodeToString(b)
}

// tenantFromRequest reads the tenant the request is scoped to from
// the Cray-Tenant-Name header, empty for the default (non-tenant)
// namespace — see store.Key's "empty tenant is a valid literal prefix".
func tenantFromRequest(r *http.Request) string {
	return r.Header.Get("Cray-Tenant-Name")
}

// corsMiddleware allows cross-origin reads from a BOS dashboard.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Cray-Tenant-Name")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
