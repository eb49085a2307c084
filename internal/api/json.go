package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/starford/postdesk/internal/apperr"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

type errResponse struct {
	Error string `json:"error" validate:"required"`
}

func errorBody(msg string) errResponse {
	return errResponse{Error: msg}
}

// statusFor maps the error taxonomy to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, apperr.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// describe returns the status and the message safe to show the caller.
func describe(err error) (int, string) {
	status := statusFor(err)
	switch status {
	case http.StatusUnauthorized:
		return status, "unauthorized"
	case http.StatusNotFound:
		return status, "not found"
	case http.StatusConflict:
		return status, "conflict: the file already exists or was changed since it was read"
	case http.StatusBadRequest:
		return status, err.Error()
	default:
		return status, "internal error"
	}
}

// writeError logs server-side failures and writes {"error": msg}.
func writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, msg := describe(err)
	if status >= http.StatusInternalServerError {
		slog.Error(op+" failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()))
	}
	writeJSON(w, status, errorBody(msg))
}
