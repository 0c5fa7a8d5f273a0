package api

import (
	"net/http"
	"strconv"
)

// pageParams reads limit and offset. Bad values fall back to the defaults.
func pageParams(r *http.Request) (limit, offset int) {
	q := r.URL.Query()
	limit = 50
	if l := q.Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 && v <= 500 {
			limit = v
		}
	}
	if o := q.Get("offset"); o != "" {
		if v, err := strconv.Atoi(o); err == nil && v >= 0 {
			offset = v
		}
	}
	return limit, offset
}

// ListActivities returns the audit trail of one request, newest first.
func (h *MarketHandler) ListActivities(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.target(w, r)
	if !ok {
		return
	}
	limit, offset := pageParams(r)

	acts, err := h.svc.Activity(r.Context(), actor, id, limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := map[string]any{
		"limit":  limit,
		"offset": offset,
		"items":  acts,
	}
	writeJSON(w, resp, http.StatusOK)
}
