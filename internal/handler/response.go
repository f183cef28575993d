package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/dukerupert/larder/internal/auth"
	"github.com/dukerupert/larder/internal/family"
	"github.com/dukerupert/larder/internal/inventory"
	"github.com/dukerupert/larder/internal/model"
	"github.com/dukerupert/larder/internal/port"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps domain and store errors to a status code. Unexpected errors
// are logged and answered with a generic message.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	status := errorStatus(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		logger.Error("request failed", "error", err)
		msg = "internal error"
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, inventory.ErrPermissionDenied),
		errors.Is(err, auth.ErrNoFamily),
		errors.Is(err, family.ErrNotMember):
		return http.StatusForbidden
	case errors.Is(err, port.ErrNotFound), errors.Is(err, family.ErrInvalidCode):
		return http.StatusNotFound
	case errors.Is(err, inventory.ErrNoStock),
		errors.Is(err, port.ErrConflict),
		errors.Is(err, family.ErrFamilyFull):
		return http.StatusConflict
	case errors.Is(err, port.ErrUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, model.ErrInvalid):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON reads a request body into v. An empty body leaves v untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
	if err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return false
	}
	return true
}

// session returns the caller set by middleware.RequireAuth.
func session(r *http.Request) auth.Session {
	sess, _ := auth.FromContext(r.Context())
	return sess
}

func emptyIfNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
