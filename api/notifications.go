package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/garnizeh/servicehub/internal/market"
)

type feedResponse struct {
	Items  market.Feed `json:"items"`
	Unread int         `json:"unread"`
}

func (h *MarketHandler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentUser(w, r, h.users)
	if !ok {
		return
	}
	feed, unread, err := h.svc.Notifications(r.Context(), actor.Email)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, feedResponse{Items: feed, Unread: unread}, http.StatusOK)
}

// MarkRead flips one notification. Unknown ids are accepted silently.
func (h *MarketHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentUser(w, r, h.users)
	if !ok {
		return
	}
	if err := h.svc.MarkRead(r.Context(), actor.Email, mux.Vars(r)["id"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *MarketHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentUser(w, r, h.users)
	if !ok {
		return
	}
	if err := h.svc.MarkAllRead(r.Context(), actor.Email); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
