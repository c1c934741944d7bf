package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/hpe-cray/bos/internal/model"
	"github.com/hpe-cray/bos/internal/store"
)

// CreateSessionTemplate handles POST /v2/sessiontemplates. Architecture
// names are not validated here against HSM's known set — that happens
// per boot set at session-setup time via nodeselect.ArchitectureFilter,
// once the template is actually resolved against live inventory.
func (h *Handler) CreateSessionTemplate(w http.ResponseWriter, r *http.Request) {
	tenant := tenantFromRequest(r)

	var t model.SessionTemplate
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if t.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	t.Tenant = tenant

	if problems := t.Validate(nil); len(problems) > 0 {
		writeError(w, http.StatusBadRequest, strings.Join(problems, "; "))
		return
	}

	key := store.Key(tenant, t.Name)
	if _, found, err := h.store.Get(r.Context(), store.KindSessionTemplates, key); err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	} else if found {
		writeError(w, http.StatusConflict, "session template already exists")
		return
	}

	doc, err := json.Marshal(t)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := h.store.Put(r.Context(), store.KindSessionTemplates, key, doc); err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

// ListSessionTemplates handles GET /v2/sessiontemplates.
func (h *Handler) ListSessionTemplates(w http.ResponseWriter, r *http.Request) {
	tenant := tenantFromRequest(r)

	pred := func(raw []byte) (bool, error) {
		var t model.SessionTemplate
		if err := json.Unmarshal(raw, &t); err != nil {
			return false, nil
		}
		return t.Tenant == tenant, nil
	}

	cursor := r.URL.Query().Get("cursor")
	page, err := h.store.Scan(r.Context(), store.KindSessionTemplates, pred, 500, cursor)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	out := make([]model.SessionTemplate, 0, len(page.Records))
	for _, raw := range page.Records {
		var t model.SessionTemplate
		if json.Unmarshal(raw, &t) == nil {
			out = append(out, t)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"session_templates": out, "next_cursor": page.Cursor})
}

// GetSessionTemplate handles GET /v2/sessiontemplates/{name}.
func (h *Handler) GetSessionTemplate(w http.ResponseWriter, r *http.Request) {
	tenant := tenantFromRequest(r)
	name := r.PathValue("name")
	raw, found, err := h.store.Get(r.Context(), store.KindSessionTemplates, store.Key(tenant, name))
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "session template not found")
		return
	}
	var t model.SessionTemplate
	if err := json.Unmarshal(raw, &t); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// PatchSessionTemplate handles PATCH /v2/sessiontemplates/{name}: each
// boot set named in the request replaces the stored one of that name,
// boot sets it does not name are kept, and the result is re-validated
// the same way as creation.
func (h *Handler) PatchSessionTemplate(w http.ResponseWriter, r *http.Request) {
	tenant := tenantFromRequest(r)
	name := r.PathValue("name")

	var patch struct {
		BootSets map[string]model.BootSet `json:"boot_sets"`
	}
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	key := store.Key(tenant, name)
	var updated model.SessionTemplate
	err := h.store.Patch(r.Context(), store.KindSessionTemplates, key, func(before []byte, exists bool) ([]byte, error) {
		if !exists {
			return nil, store.ErrNotFound
		}
		var t model.SessionTemplate
		if err := json.Unmarshal(before, &t); err != nil {
			return nil, err
		}
		for k, v := range patch.BootSets {
			if v.Name == "" {
				v.Name = k
			}
			t.BootSets[k] = v
		}
		if problems := t.Validate(nil); len(problems) > 0 {
			return nil, &validationError{problems}
		}
		updated = t
		return json.Marshal(t)
	})
	if err == store.ErrNotFound {
		writeError(w, http.StatusNotFound, "session template not found")
		return
	}
	if ve, ok := err.(*validationError); ok {
		writeError(w, http.StatusBadRequest, strings.Join(ve.problems, "; "))
		return
	}
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// ValidateSessionTemplate handles POST /v2/sessiontemplates/{name}/validate:
// re-runs the same creation-time checks against the stored template,
// without mutating it. Validate is called with no known-architecture
// set, so architecture names are not checked.
func (h *Handler) ValidateSessionTemplate(w http.ResponseWriter, r *http.Request) {
	tenant := tenantFromRequest(r)
	name := r.PathValue("name")

	raw, found, err := h.store.Get(r.Context(), store.KindSessionTemplates, store.Key(tenant, name))
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "session template not found")
		return
	}
	var t model.SessionTemplate
	if err := json.Unmarshal(raw, &t); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	problems := t.Validate(nil)
	writeJSON(w, http.StatusOK, map[string]any{"valid": len(problems) == 0, "problems": problems})
}

// GetSessionTemplateTemplate handles GET /v2/sessiontemplatetemplate:
// an empty, field-complete template skeleton for clients building a
// create request, not a stored record.
func (h *Handler) GetSessionTemplateTemplate(w http.ResponseWriter, r *http.Request) {
	skeleton := model.SessionTemplate{
		Name: "",
		BootSets: map[string]model.BootSet{
			"example": {
				Name:             "example",
				Node:             []string{},
				Groups:           []string{},
				Roles:            []string{},
				Arch:             "",
				BootArtifacts:    &model.BootArtifacts{},
				CFSConfiguration: "",
				RootfsProvider:   "",
			},
		},
	}
	writeJSON(w, http.StatusOK, skeleton)
}

// DeleteSessionTemplate handles DELETE /v2/sessiontemplates/{name}.
func (h *Handler) DeleteSessionTemplate(w http.ResponseWriter, r *http.Request) {
	tenant := tenantFromRequest(r)
	name := r.PathValue("name")
	if err := h.store.Delete(r.Context(), store.KindSessionTemplates, store.Key(tenant, name)); err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// validationError carries Validate's problem list out of a Patch
// mutator, which may only return a plain error.
type validationError struct {
	problems []string
}

func (e *validationError) Error() string { return strings.Join(e.problems, "; ") }
