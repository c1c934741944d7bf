package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/hpe-cray/bos/internal/aggregator"
	"github.com/hpe-cray/bos/internal/model"
	"github.com/hpe-cray/bos/internal/store"
)

// createSessionRequest is the caller-supplied subset of a Session; the
// status block is always server-owned.
type createSessionRequest struct {
	Name            string `json:"name,omitempty"`
	TemplateName    string `json:"template_name"`
	Operation       string `json:"operation"`
	Limit           string `json:"limit,omitempty"`
	Stage           bool   `json:"stage,omitempty"`
	IncludeDisabled bool   `json:"include_disabled,omitempty"`
	SkipBadIDs      bool   `json:"skip_bad_ids,omitempty"`
}

// CreateSession handles POST /v2/sessions. The session is written with
// Status.Status == SessionPending so the session-setup operator's next
// tick picks it up; this handler does no node resolution itself.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	tenant := tenantFromRequest(r)

	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.TemplateName == "" {
		writeError(w, http.StatusBadRequest, "template_name is required")
		return
	}
	op := model.Operation(req.Operation)
	switch op {
	case model.OperationBoot, model.OperationReboot, model.OperationShutdown:
	default:
		writeError(w, http.StatusBadRequest, "operation must be boot, reboot, or shutdown")
		return
	}

	name := req.Name
	if name == "" {
		name = generateID(string(op))
	}

	key := store.Key(tenant, name)
	if _, found, err := h.store.Get(r.Context(), store.KindSessions, key); err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	} else if found {
		writeError(w, http.StatusConflict, "session already exists")
		return
	}

	if _, found, err := h.store.Get(r.Context(), store.KindSessionTemplates, store.Key(tenant, req.TemplateName)); err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	} else if !found {
		writeError(w, http.StatusNotFound, "session template not found")
		return
	}

	s := model.Session{
		Name:            name,
		Tenant:          tenant,
		TemplateName:    req.TemplateName,
		Operation:       op,
		Limit:           req.Limit,
		Stage:           req.Stage,
		IncludeDisabled: req.IncludeDisabled,
		SkipBadIDs:      req.SkipBadIDs,
		Status: model.SessionStatus{
			StartTime: time.Now(),
			Status:    model.SessionPending,
		},
	}

	doc, err := json.Marshal(s)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := h.store.Put(r.Context(), store.KindSessions, key, doc); err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, s)
}

// ListSessions handles GET /v2/sessions, optionally filtered by phase.
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	tenant := tenantFromRequest(r)
	phaseFilter := r.URL.Query().Get("status")

	pred := func(raw []byte) (bool, error) {
		var s model.Session
		if err := json.Unmarshal(raw, &s); err != nil {
			return false, nil
		}
		if s.Tenant != tenant {
			return false, nil
		}
		if phaseFilter != "" && string(s.Status.Status) != phaseFilter {
			return false, nil
		}
		return true, nil
	}

	cursor := r.URL.Query().Get("cursor")
	page, err := h.store.Scan(r.Context(), store.KindSessions, pred, 500, cursor)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	out := make([]model.Session, 0, len(page.Records))
	for _, raw := range page.Records {
		var s model.Session
		if json.Unmarshal(raw, &s) == nil {
			out = append(out, s)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": out, "next_cursor": page.Cursor})
}

// GetSession handles GET /v2/sessions/{name}.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	tenant := tenantFromRequest(r)
	name := r.PathValue("name")
	raw, found, err := h.store.Get(r.Context(), store.KindSessions, store.Key(tenant, name))
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	var s model.Session
	if err := json.Unmarshal(raw, &s); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// GetSessionStatus handles GET /v2/sessions/{name}/status: a session
// status summary, computed fresh from the owned components on every
// call rather than cached.
func (h *Handler) GetSessionStatus(w http.ResponseWriter, r *http.Request) {
	tenant := tenantFromRequest(r)
	name := r.PathValue("name")

	raw, found, err := h.store.Get(r.Context(), store.KindSessions, store.Key(tenant, name))
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	var s model.Session
	if err := json.Unmarshal(raw, &s); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	summary, err := aggregator.Compute(r.Context(), h.store, tenant, name, s.Operation)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// DeleteSession handles DELETE /v2/sessions/{name}. It removes the
// session record only. Components still recorded against the session
// keep that session name: the session-cleanup operator detaches
// components only for stored sessions it deletes itself.
func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	tenant := tenantFromRequest(r)
	name := r.PathValue("name")
	if err := h.store.Delete(r.Context(), store.KindSessions, store.Key(tenant, name)); err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
