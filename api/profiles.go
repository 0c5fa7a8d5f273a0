package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/garnizeh/servicehub/internal/engine"
	"github.com/garnizeh/servicehub/internal/market"
)

// UpdateSettings saves the profile settings of the signed-in user. Role,
// email and progression are not editable.
func (h *MarketHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentUser(w, r, h.users)
	if !ok {
		return
	}
	var req engine.Settings
	if err := decodeBody(r, "settings", &req); err != nil {
		writeError(w, err)
		return
	}
	u, err := h.svc.UpdateSettings(r.Context(), actor.Role, actor.Email, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, u, http.StatusOK)
}

func (h *MarketHandler) ProviderProfile(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.ProviderProfile(r.Context(), mux.Vars(r)["email"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, p, http.StatusOK)
}

func (h *MarketHandler) Achievements(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{"items": market.Achievements}, http.StatusOK)
}
