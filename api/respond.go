package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/garnizeh/servicehub/internal/market"
	"github.com/garnizeh/servicehub/pkg/repository"
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, v any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("encode response", slog.Any("err", err))
	}
}

func writeErrorStatus(w http.ResponseWriter, status int, kind, msg string) {
	writeJSON(w, errorResponse{Error: kind, Message: msg}, status)
}

// writeError maps err onto a status code by its kind. Errors of no known
// kind are logged and reported as 500 without their text.
func writeError(w http.ResponseWriter, err error) {
	if kind := market.Kind(err); kind != "" {
		writeErrorStatus(w, statusForKind(kind), kind, err.Error())
		return
	}
	if errors.Is(err, repository.ErrAlreadyExists) {
		writeErrorStatus(w, http.StatusConflict, "already_exists", err.Error())
		return
	}
	logger.Error("request failed", slog.Any("err", err))
	writeErrorStatus(w, http.StatusInternalServerError, "internal", "internal server error")
}

func statusForKind(kind string) int {
	switch kind {
	case "invalid_state", "already_done":
		return http.StatusConflict
	case "not_found":
		return http.StatusNotFound
	case "forbidden":
		return http.StatusForbidden
	case "validation_error":
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
