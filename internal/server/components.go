package server

import (
	"encoding/json"
	"net/http"

	"github.com/oapi-codegen/runtime"

	"github.com/hpe-cray/bos/internal/model"
	"github.com/hpe-cray/bos/internal/store"
)

// ListComponents handles GET /v2/components, filtering by the
// optional enabled/status/session query parameters and paging via
// store.Scan.
func (h *Handler) ListComponents(w http.ResponseWriter, r *http.Request) {
	tenant := tenantFromRequest(r)
	q := r.URL.Query()
	statusFilter := q.Get("status")
	sessionFilter := q.Get("session")
	var enabledFilter *bool
	if v := q.Get("enabled"); v != "" {
		var b bool
		if err := runtime.BindStyledParameter("form", true, "enabled", v, &b); err != nil {
			writeError(w, http.StatusBadRequest, "invalid enabled filter")
			return
		}
		enabledFilter = &b
	}

	pred := func(raw []byte) (bool, error) {
		var c model.Component
		if err := json.Unmarshal(raw, &c); err != nil {
			return false, nil
		}
		if c.Tenant != tenant {
			return false, nil
		}
		if statusFilter != "" && string(c.Status.Status) != statusFilter {
			return false, nil
		}
		if sessionFilter != "" && c.Session != sessionFilter {
			return false, nil
		}
		if enabledFilter != nil && c.Enabled != *enabledFilter {
			return false, nil
		}
		return true, nil
	}

	cursor := q.Get("cursor")
	pageSize := 500
	page, err := h.store.Scan(r.Context(), store.KindComponents, pred, pageSize, cursor)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	out := make([]model.Component, 0, len(page.Records))
	for _, raw := range page.Records {
		var c model.Component
		if json.Unmarshal(raw, &c) == nil {
			out = append(out, c)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"components": out, "next_cursor": page.Cursor})
}

// GetComponent handles GET /v2/components/{id}.
func (h *Handler) GetComponent(w http.ResponseWriter, r *http.Request) {
	tenant := tenantFromRequest(r)
	id := r.PathValue("id")
	raw, found, err := h.store.Get(r.Context(), store.KindComponents, store.Key(tenant, id))
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "component not found")
		return
	}
	var c model.Component
	if err := json.Unmarshal(raw, &c); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// patchComponentRequest is the subset of a component callers may
// modify directly; every other field (status, last_action, event
// stats) is owned exclusively by the operators.
type patchComponentRequest struct {
	Enabled      *bool               `json:"enabled,omitempty"`
	DesiredState *model.DesiredState `json:"desired_state,omitempty"`
	StagedState  *model.DesiredState `json:"staged_state,omitempty"`
	RetryPolicy  *int                `json:"retry_policy,omitempty"`
}

// PatchComponent handles PATCH /v2/components/{id}: an operator-facing
// edit of the fields the status/power operators don't themselves own.
func (h *Handler) PatchComponent(w http.ResponseWriter, r *http.Request) {
	tenant := tenantFromRequest(r)
	id := r.PathValue("id")

	var req patchComponentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	key := store.Key(tenant, id)
	var updated model.Component
	err := h.store.Patch(r.Context(), store.KindComponents, key, func(before []byte, exists bool) ([]byte, error) {
		if !exists {
			return nil, store.ErrNotFound
		}
		var c model.Component
		if err := json.Unmarshal(before, &c); err != nil {
			return nil, err
		}
		if req.Enabled != nil {
			c.Enabled = *req.Enabled
		}
		if req.DesiredState != nil {
			c.DesiredState = req.DesiredState
		}
		if req.StagedState != nil {
			c.StagedState = req.StagedState
		}
		if req.RetryPolicy != nil {
			c.RetryPolicy = *req.RetryPolicy
		}
		updated = c
		return json.Marshal(c)
	})
	if err == store.ErrNotFound {
		writeError(w, http.StatusNotFound, "component not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// componentFilter selects the components a bulk operation applies to:
// either every component owned by a session, or an explicit id list.
type componentFilter struct {
	Session string   `json:"session,omitempty"`
	IDs     []string `json:"ids,omitempty"`
}

// resolveFilter returns the ids a componentFilter names, reading the
// session's component list when filtering by session rather than an
// explicit id set.
func (h *Handler) resolveFilter(r *http.Request, tenant string, f componentFilter) ([]string, error) {
	if len(f.IDs) > 0 {
		return f.IDs, nil
	}
	if f.Session == "" {
		return nil, nil
	}
	raw, found, err := h.store.Get(r.Context(), store.KindSessions, store.Key(tenant, f.Session))
	if err != nil || !found {
		return nil, err
	}
	var s model.Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	return s.Components, nil
}

// bulkPatchComponentsRequest is the body of a bulk PATCH across every
// component named by Filter: a filter {session|ids}, a patch body, and
// an optional skip_bad_ids to tolerate a stale id in the filter.
type bulkPatchComponentsRequest struct {
	Filter     componentFilter       `json:"filter"`
	Patch      patchComponentRequest `json:"patch"`
	SkipBadIDs bool                  `json:"skip_bad_ids,omitempty"`
}

// PatchComponentsBulk handles PATCH /v2/components: the same field-set
// as PatchComponent, applied across every id named by the filter. A
// missing id is either skipped (skip_bad_ids) or reported as a 404
// with no ids touched.
func (h *Handler) PatchComponentsBulk(w http.ResponseWriter, r *http.Request) {
	tenant := tenantFromRequest(r)

	var req bulkPatchComponentsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ids, err := h.resolveFilter(r, tenant, req.Filter)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	if !req.SkipBadIDs {
		for _, id := range ids {
			_, found, err := h.store.Get(r.Context(), store.KindComponents, store.Key(tenant, id))
			if err != nil {
				writeError(w, http.StatusServiceUnavailable, err.Error())
				return
			}
			if !found {
				writeError(w, http.StatusNotFound, "component not found: "+id)
				return
			}
		}
	}

	var touched []string
	var skipped []string
	for _, id := range ids {
		key := store.Key(tenant, id)
		var ok bool
		patchErr := h.store.Patch(r.Context(), store.KindComponents, key, func(before []byte, exists bool) ([]byte, error) {
			if !exists {
				return nil, store.ErrNotFound
			}
			var c model.Component
			if err := json.Unmarshal(before, &c); err != nil {
				return nil, err
			}
			if req.Patch.Enabled != nil {
				c.Enabled = *req.Patch.Enabled
			}
			if req.Patch.DesiredState != nil {
				c.DesiredState = req.Patch.DesiredState
			}
			if req.Patch.StagedState != nil {
				c.StagedState = req.Patch.StagedState
			}
			if req.Patch.RetryPolicy != nil {
				c.RetryPolicy = *req.Patch.RetryPolicy
			}
			ok = true
			return json.Marshal(c)
		})
		switch {
		case patchErr == store.ErrNotFound:
			if !req.SkipBadIDs {
				writeError(w, http.StatusNotFound, "component not found: "+id)
				return
			}
			skipped = append(skipped, id)
		case patchErr != nil:
			writeError(w, http.StatusServiceUnavailable, patchErr.Error())
			return
		case ok:
			touched = append(touched, id)
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{"updated": touched, "skipped": skipped})
}

// ApplyStaged handles POST /v2/components/applystaged: moves every
// matching component's staged_state into desired_state and clears
// staged_state in one step, with no intermediate reconcile phase.
func (h *Handler) ApplyStaged(w http.ResponseWriter, r *http.Request) {
	tenant := tenantFromRequest(r)

	var req struct {
		Filter     componentFilter `json:"filter"`
		SkipBadIDs bool            `json:"skip_bad_ids,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ids, err := h.resolveFilter(r, tenant, req.Filter)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	var applied, skipped []string
	for _, id := range ids {
		key := store.Key(tenant, id)
		var didApply bool
		patchErr := h.store.Patch(r.Context(), store.KindComponents, key, func(before []byte, exists bool) ([]byte, error) {
			if !exists {
				return nil, store.ErrNotFound
			}
			var c model.Component
			if err := json.Unmarshal(before, &c); err != nil {
				return nil, err
			}
			if c.StagedState == nil {
				return json.Marshal(c)
			}
			c.DesiredState = c.StagedState
			c.StagedState = nil
			c.ResetActionState()
			didApply = true
			return json.Marshal(c)
		})
		switch {
		case patchErr == store.ErrNotFound:
			if !req.SkipBadIDs {
				writeError(w, http.StatusNotFound, "component not found: "+id)
				return
			}
			skipped = append(skipped, id)
		case patchErr != nil:
			writeError(w, http.StatusServiceUnavailable, patchErr.Error())
			return
		case didApply:
			applied = append(applied, id)
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{"applied": applied, "skipped": skipped})
}

// DeleteComponent handles DELETE /v2/components/{id}: drops BOS's
// reconciliation record for a node. A later discovery pass will
// recreate it as soon as HSM reports the node again.
func (h *Handler) DeleteComponent(w http.ResponseWriter, r *http.Request) {
	tenant := tenantFromRequest(r)
	id := r.PathValue("id")
	if err := h.store.Delete(r.Context(), store.KindComponents, store.Key(tenant, id)); err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
