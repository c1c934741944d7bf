package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hpe-cray/bos/internal/model"
	"github.com/hpe-cray/bos/internal/store"
)

func putComponent(t *testing.T, h *Handler, c model.Component) {
	t.Helper()
	doc, err := json.Marshal(c)
	if err != nil {
		t.Fatalf("marshal component: %v", err)
	}
	if err := h.store.Put(context.Background(), store.KindComponents, store.Key(c.Tenant, c.ID), doc); err != nil {
		t.Fatalf("put component: %v", err)
	}
}

func TestGetComponentNotFound(t *testing.T) {
	h, err := newTestHandler()
	if err != nil {
		t.Fatalf("newTestHandler() error = %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/v2/components/nx9001c0s0b0n0", nil)
	req.SetPathValue("id", "nx9001c0s0b0n0")
	w := httptest.NewRecorder()
	h.GetComponent(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestGetComponentFound(t *testing.T) {
	h, err := newTestHandler()
	if err != nil {
		t.Fatalf("newTestHandler() error = %v", err)
	}
	putComponent(t, h, model.Component{ID: "nx9001c0s0b0n0", Tenant: "acme", Enabled: true})

	req := httptest.NewRequest(http.MethodGet, "/v2/components/nx9001c0s0b0n0", nil)
	req.Header.Set("Cray-Tenant-Name", "acme")
	req.SetPathValue("id", "nx9001c0s0b0n0")
	w := httptest.NewRecorder()
	h.GetComponent(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d, body %s", w.Code, http.StatusOK, w.Body.String())
	}
	var got model.Component
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if got.ID != "nx9001c0s0b0n0" || !got.Enabled {
		t.Errorf("got %+v", got)
	}
}

func TestListComponentsFiltersByEnabledAndSession(t *testing.T) {
	h, err := newTestHandler()
	if err != nil {
		t.Fatalf("newTestHandler() error = %v", err)
	}
	putComponent(t, h, model.Component{ID: "n0", Tenant: "acme", Enabled: true, Session: "boot-1"})
	putComponent(t, h, model.Component{ID: "n1", Tenant: "acme", Enabled: false, Session: "boot-1"})
	putComponent(t, h, model.Component{ID: "n2", Tenant: "acme", Enabled: true, Session: "boot-2"})

	req := httptest.NewRequest(http.MethodGet, "/v2/components?enabled=true&session=boot-1", nil)
	req.Header.Set("Cray-Tenant-Name", "acme")
	w := httptest.NewRecorder()
	h.ListComponents(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d, body %s", w.Code, http.StatusOK, w.Body.String())
	}
	var resp struct {
		Components []model.Component `json:"components"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if len(resp.Components) != 1 || resp.Components[0].ID != "n0" {
		t.Errorf("got %+v, want exactly [n0]", resp.Components)
	}
}

func TestPatchComponentUpdatesDesiredState(t *testing.T) {
	h, err := newTestHandler()
	if err != nil {
		t.Fatalf("newTestHandler() error = %v", err)
	}
	putComponent(t, h, model.Component{ID: "n0", Tenant: "acme", Enabled: true})

	body := []byte(`{"desired_state":{"configuration":"cfg-1"}}`)
	req := httptest.NewRequest(http.MethodPatch, "/v2/components/n0", bytes.NewReader(body))
	req.Header.Set("Cray-Tenant-Name", "acme")
	req.SetPathValue("id", "n0")
	w := httptest.NewRecorder()
	h.PatchComponent(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d, body %s", w.Code, http.StatusOK, w.Body.String())
	}
	var got model.Component
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if got.DesiredState == nil || got.DesiredState.Configuration != "cfg-1" {
		t.Errorf("got %+v", got)
	}
}

func TestApplyStagedMovesStagedToDesired(t *testing.T) {
	h, err := newTestHandler()
	if err != nil {
		t.Fatalf("newTestHandler() error = %v", err)
	}
	putComponent(t, h, model.Component{
		ID: "n0", Tenant: "acme", Enabled: true,
		StagedState: &model.DesiredState{Configuration: "cfg-staged"},
	})

	body := []byte(`{"filter":{"ids":["n0"]}}`)
	req := httptest.NewRequest(http.MethodPost, "/v2/components/applystaged", bytes.NewReader(body))
	req.Header.Set("Cray-Tenant-Name", "acme")
	w := httptest.NewRecorder()
	h.ApplyStaged(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d, body %s", w.Code, http.StatusOK, w.Body.String())
	}

	raw, found, err := h.store.Get(context.Background(), store.KindComponents, store.Key("acme", "n0"))
	if err != nil || !found {
		t.Fatalf("component missing after apply-staged: found=%v err=%v", found, err)
	}
	var c model.Component
	if err := json.Unmarshal(raw, &c); err != nil {
		t.Fatalf("unmarshal stored component: %v", err)
	}
	if c.StagedState != nil {
		t.Error("staged_state was not cleared")
	}
	if c.DesiredState == nil || c.DesiredState.Configuration != "cfg-staged" {
		t.Errorf("desired_state = %+v, want configuration cfg-staged", c.DesiredState)
	}
}

func TestPatchComponentsBulkSkipsBadIDs(t *testing.T) {
	h, err := newTestHandler()
	if err != nil {
		t.Fatalf("newTestHandler() error = %v", err)
	}
	putComponent(t, h, model.Component{ID: "n0", Tenant: "acme", Enabled: true})

	body := []byte(`{"filter":{"ids":["n0","missing"]},"patch":{"enabled":false},"skip_bad_ids":true}`)
	req := httptest.NewRequest(http.MethodPatch, "/v2/components", bytes.NewReader(body))
	req.Header.Set("Cray-Tenant-Name", "acme")
	w := httptest.NewRecorder()
	h.PatchComponentsBulk(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d, body %s", w.Code, http.StatusOK, w.Body.String())
	}
	var resp struct {
		Updated []string `json:"updated"`
		Skipped []string `json:"skipped"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if len(resp.Updated) != 1 || resp.Updated[0] != "n0" {
		t.Errorf("updated = %v, want [n0]", resp.Updated)
	}
	if len(resp.Skipped) != 1 || resp.Skipped[0] != "missing" {
		t.Errorf("skipped = %v, want [missing]", resp.Skipped)
	}
}
