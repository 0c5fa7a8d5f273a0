package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/garnizeh/servicehub/internal/engine"
	"github.com/garnizeh/servicehub/internal/market"
	"github.com/garnizeh/servicehub/pkg/models"
	"github.com/garnizeh/servicehub/pkg/repository"
)

// MarketHandler serves the request board: requests, offers, chat hooks,
// closure and rating.
type MarketHandler struct {
	svc   *engine.Service
	users repository.UserRepo
}

func NewMarketHandler(svc *engine.Service, users repository.UserRepo) *MarketHandler {
	return &MarketHandler{svc: svc, users: users}
}

type offerRequest struct {
	Price   float64 `json:"price"`
	Message string  `json:"message"`
}

type messageRequest struct {
	Text string `json:"text"`
}

type ratingRequest struct {
	Stars int `json:"stars"`
}

// actionResponse is the body of every successful action.
type actionResponse struct {
	Action       string                `json:"action"`
	Request      *models.Request       `json:"request,omitempty"`
	RatingPrompt bool                  `json:"rating_prompt"`
	Rating       *market.RatingOutcome `json:"rating,omitempty"`
}

func newActionResponse(out engine.Outcome) actionResponse {
	resp := actionResponse{Action: out.Action, RatingPrompt: out.RatingPrompt, Rating: out.Rating}
	if !out.Deleted {
		r := out.Request
		resp.Request = &r
	}
	return resp
}

func requestID(r *http.Request) (int64, error) {
	raw := mux.Vars(r)["id"]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("request id %q: %w", raw, market.ErrValidation)
	}
	return id, nil
}

// target loads the actor and the request id shared by every request route.
func (h *MarketHandler) target(w http.ResponseWriter, r *http.Request) (models.User, int64, bool) {
	actor, ok := currentUser(w, r, h.users)
	if !ok {
		return models.User{}, 0, false
	}
	id, err := requestID(r)
	if err != nil {
		writeError(w, err)
		return models.User{}, 0, false
	}
	return actor, id, true
}

func (h *MarketHandler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentUser(w, r, h.users)
	if !ok {
		return
	}
	var d market.RequestDetails
	if err := decodeBody(r, "request", &d); err != nil {
		writeError(w, err)
		return
	}
	out, err := h.svc.CreateRequest(r.Context(), actor, d)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, newActionResponse(out), http.StatusCreated)
}

func (h *MarketHandler) ListRequests(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentUser(w, r, h.users)
	if !ok {
		return
	}
	views, err := h.svc.VisibleRequests(r.Context(), actor)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"items": views}, http.StatusOK)
}

func (h *MarketHandler) GetRequest(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.target(w, r)
	if !ok {
		return
	}
	req, err := h.svc.OpenRequest(r.Context(), actor, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, req, http.StatusOK)
}

func (h *MarketHandler) EditRequest(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.target(w, r)
	if !ok {
		return
	}
	var d market.RequestDetails
	if err := decodeBody(r, "request", &d); err != nil {
		writeError(w, err)
		return
	}
	out, err := h.svc.EditRequest(r.Context(), actor, id, d)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, newActionResponse(out), http.StatusOK)
}

func (h *MarketHandler) DeleteRequest(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.target(w, r)
	if !ok {
		return
	}
	if _, err := h.svc.DeleteRequest(r.Context(), actor, id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *MarketHandler) SubmitOffer(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.target(w, r)
	if !ok {
		return
	}
	var req offerRequest
	if err := decodeBody(r, "offer", &req); err != nil {
		writeError(w, err)
		return
	}
	out, err := h.svc.SubmitOffer(r.Context(), actor, id, req.Price, req.Message)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, newActionResponse(out), http.StatusCreated)
}

// offerProvider reads the {provider} path segment, which may be escaped.
func offerProvider(r *http.Request) (string, error) {
	raw := mux.Vars(r)["provider"]
	email, err := url.PathUnescape(raw)
	if err != nil || email == "" {
		return "", fmt.Errorf("provider %q: %w", raw, market.ErrValidation)
	}
	return email, nil
}

func (h *MarketHandler) AcceptOffer(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.svc.AcceptOffer)
}

func (h *MarketHandler) DeclineOffer(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.svc.DeclineOffer)
}

func (h *MarketHandler) decide(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, actor models.User, id int64, provider string) (engine.Outcome, error)) {
	actor, id, ok := h.target(w, r)
	if !ok {
		return
	}
	provider, err := offerProvider(r)
	if err != nil {
		writeError(w, err)
		return
	}
	out, err := fn(r.Context(), actor, id, provider)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, newActionResponse(out), http.StatusOK)
}

func (h *MarketHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.target(w, r)
	if !ok {
		return
	}
	var req messageRequest
	if err := decodeBody(r, "message", &req); err != nil {
		writeError(w, err)
		return
	}
	out, err := h.svc.SendMessage(r.Context(), actor, id, req.Text)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, newActionResponse(out), http.StatusOK)
}

func (h *MarketHandler) RequestClosure(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.target(w, r)
	if !ok {
		return
	}
	out, err := h.svc.RequestClosure(r.Context(), actor, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, newActionResponse(out), http.StatusOK)
}

func (h *MarketHandler) SubmitRating(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.target(w, r)
	if !ok {
		return
	}
	var req ratingRequest
	if err := decodeBody(r, "rating", &req); err != nil {
		writeError(w, err)
		return
	}
	out, err := h.svc.SubmitRating(r.Context(), actor, id, req.Stars)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, newActionResponse(out), http.StatusOK)
}
