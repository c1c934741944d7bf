package server

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSchemaValidatorRejectsUnknownField(t *testing.T) {
	v, err := newSchemaValidator()
	if err != nil {
		t.Fatalf("newSchemaValidator() error = %v", err)
	}

	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true })

	body := []byte(`{"enabled":true,"bogus_field":"nope"}`)
	req := httptest.NewRequest(http.MethodPatch, "/v2/components/n0", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.SetPathValue("id", "n0")
	w := httptest.NewRecorder()

	v.Middleware(next).ServeHTTP(w, req)

	if called {
		t.Error("handler ran on a request with an undeclared field")
	}
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d, body %s", w.Code, http.StatusBadRequest, w.Body.String())
	}
}

func TestSchemaValidatorAllowsValidBodyAndPreservesIt(t *testing.T) {
	v, err := newSchemaValidator()
	if err != nil {
		t.Fatalf("newSchemaValidator() error = %v", err)
	}

	var seenBody []byte
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenBody = make([]byte, r.ContentLength)
		r.Body.Read(seenBody)
		w.WriteHeader(http.StatusOK)
	})

	body := []byte(`{"enabled":true}`)
	req := httptest.NewRequest(http.MethodPatch, "/v2/components/n0", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.SetPathValue("id", "n0")
	w := httptest.NewRecorder()

	v.Middleware(next).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d, body %s", w.Code, http.StatusOK, w.Body.String())
	}
	if string(seenBody) != string(body) {
		t.Errorf("downstream handler saw body %q, want %q", seenBody, body)
	}
}

func TestSchemaValidatorPassesThroughUndescribedRoutes(t *testing.T) {
	v, err := newSchemaValidator()
	if err != nil {
		t.Fatalf("newSchemaValidator() error = %v", err)
	}

	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/v2/healthz", nil)
	w := httptest.NewRecorder()

	v.Middleware(next).ServeHTTP(w, req)

	if !called {
		t.Error("handler did not run for a route absent from the OpenAPI document")
	}
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
}
