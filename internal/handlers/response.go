package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/jwebster45206/taleparty/internal/session"
)

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, logger *slog.Logger, status int, code, msg string) {
	writeJSON(w, logger, status, ErrorResponse{Error: msg, Code: code})
}

// writeSessionError maps the session error taxonomy onto HTTP. Server-side
// failures get a generic message; the detail goes to the log.
func writeSessionError(w http.ResponseWriter, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, session.ErrInvalidInput):
		writeError(w, logger, http.StatusBadRequest, "invalid_input", err.Error())
	case errors.Is(err, session.ErrNotFound):
		writeError(w, logger, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, session.ErrTurnViolation):
		writeError(w, logger, http.StatusForbidden, "turn_violation", "It is not your turn.")
	case errors.Is(err, session.ErrForbidden):
		writeError(w, logger, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, session.ErrConflict):
		writeError(w, logger, http.StatusConflict, "conflict", "The session changed while your request was in flight. Reload and try again.")
	case errors.Is(err, session.ErrInvalidState):
		writeError(w, logger, http.StatusConflict, "invalid_state", err.Error())
	case errors.Is(err, session.ErrNarrationFailure):
		logger.Error("Narration failed", "error", err)
		writeError(w, logger, http.StatusBadGateway, "narration_failure", "The narrator could not respond. Please try again.")
	default:
		logger.Error("Request failed", "error", err)
		writeError(w, logger, http.StatusInternalServerError, "internal", "Something went wrong. Reload the session before retrying.")
	}
}

// decodeBody reads a JSON request body into v, rejecting unknown fields.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
