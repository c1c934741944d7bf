package server

import (
	"encoding/json"
	"net/http"

	"github.com/hpe-cray/bos/internal/model"
)

// GetOptions handles GET /v2/options: the current tunables snapshot,
// regardless of tenant — options are a single cluster-wide record.
func (h *Handler) GetOptions(w http.ResponseWriter, r *http.Request) {
	snap := h.opts.Get(r.Context())
	writeJSON(w, http.StatusOK, snap.Options)
}

// PatchOptions handles PATCH /v2/options: a partial update of the
// options record via internal/options.Provider.Update, which merges
// into the current typed value so callers only send the fields they
// want to change.
func (h *Handler) PatchOptions(w http.ResponseWriter, r *http.Request) {
	var patch map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	snap, err := h.opts.Update(r.Context(), func(opts *model.Options) {
		merged, mErr := json.Marshal(opts)
		if mErr != nil {
			return
		}
		var asMap map[string]json.RawMessage
		if json.Unmarshal(merged, &asMap) != nil {
			return
		}
		for k, v := range patch {
			asMap[k] = v
		}
		remerged, mErr := json.Marshal(asMap)
		if mErr != nil {
			return
		}
		var next model.Options
		if json.Unmarshal(remerged, &next) == nil {
			*opts = next
		}
	})
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, snap.Options)
}
