package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"ladder-app/internal/ladder"
)

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, map[string]string{"message": msg})
}

func InternalServerError(w http.ResponseWriter, msg string, err error) {
	slog.Error(msg, "error", err)
	writeMessage(w, http.StatusInternalServerError, "Internal Server Error")
}

func BadRequest(w http.ResponseWriter, msg string, err error) {
	if err != nil {
		slog.Warn("bad request", "message", msg, "error", err)
	} else {
		slog.Warn("bad request", "message", msg)
	}
	writeMessage(w, http.StatusBadRequest, msg)
}

func NotFound(w http.ResponseWriter, msg string, err error) {
	if err != nil {
		slog.Warn("not found", "message", msg, "error", err)
	} else {
		slog.Warn("not found", "message", msg)
	}
	writeMessage(w, http.StatusNotFound, msg)
}

func Unauthorized(w http.ResponseWriter) {
	writeMessage(w, http.StatusUnauthorized, "Unauthorized")
}

// Error maps a service error onto the HTTP status for its kind. Validation,
// not-found, forbidden and conflict errors carry their own user-facing
// message; everything else is a 500 with the detail kept server-side.
func Error(w http.ResponseWriter, err error) {
	var validationErr *ladder.ValidationError
	switch {
	case errors.As(err, &validationErr):
		slog.Warn("bad request", "error", err)
		writeMessage(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ladder.ErrNotFound):
		slog.Warn("not found", "error", err)
		writeMessage(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ladder.ErrForbidden):
		slog.Warn("forbidden", "error", err)
		writeMessage(w, http.StatusForbidden, err.Error())
	case errors.Is(err, ladder.ErrConflict):
		slog.Warn("conflict", "error", err)
		writeMessage(w, http.StatusConflict, err.Error())
	default:
		slog.Error("request failed", "error", err)
		writeMessage(w, http.StatusInternalServerError, "Internal Server Error")
	}
}
