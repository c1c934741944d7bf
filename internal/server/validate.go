package server

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/gorillamux"

	"github.com/hpe-cray/bos/internal/server/openapi"
)

// schemaValidator enforces the exact field names and request shapes
// the embedded OpenAPI document defines. Loaded once at startup, it
// rejects a request body before any handler sees it rather than
// letting a typo'd field name silently no-op through encoding/json's
// default ignore-unknown-fields behavior.
type schemaValidator struct {
	router routers.Router
}

func newSchemaValidator() (*schemaValidator, error) {
	raw, err := openapi.FS.ReadFile("bos-v2.yaml")
	if err != nil {
		return nil, fmt.Errorf("openapi: read embedded document: %w", err)
	}
	doc, err := openapi3.NewLoader().LoadFromData(raw)
	if err != nil {
		return nil, fmt.Errorf("openapi: parse embedded document: %w", err)
	}
	if err := doc.Validate(context.Background()); err != nil {
		return nil, fmt.Errorf("openapi: invalid embedded document: %w", err)
	}
	router, err := gorillamux.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("openapi: build router: %w", err)
	}
	return &schemaValidator{router: router}, nil
}

// Middleware validates every request against the matching operation's
// path/query parameters and request body schema. A route the document
// doesn't describe (the websocket upgrade, /metrics, /v2/healthz and
// friends, which are intentionally left out of bos-v2.yaml since they
// carry no discriminated request bodies to enforce) passes through
// unchecked.
func (v *schemaValidator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route, pathParams, err := v.router.FindRoute(r)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		// ValidateRequest consumes the body it's handed; buffer it so
		// the real handler still sees a fresh, rewound reader.
		var body []byte
		if r.Body != nil {
			body, err = io.ReadAll(r.Body)
			if err != nil {
				writeError(w, http.StatusBadRequest, "read request body: "+err.Error())
				return
			}
		}
		r.Body = io.NopCloser(bytes.NewReader(body))
		r.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(body)), nil
		}

		input := &openapi3filter.RequestValidationInput{
			Request:    r,
			PathParams: pathParams,
			Route:      route,
		}
		if err := openapi3filter.ValidateRequest(r.Context(), input); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		r.Body = io.NopCloser(bytes.NewReader(body))
		next.ServeHTTP(w, r)
	})
}
