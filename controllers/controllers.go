// Package controllers holds the HTTP handlers. Each controller decodes a
// request, calls one service and maps domain errors onto status codes.
package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/kbcarlson3/meal-match/logger"
	"github.com/kbcarlson3/meal-match/models"
)

// DefaultTimeout bounds one request's service call
const DefaultTimeout = 5 * time.Second

// ErrorResponse is the body of every non-2xx reply
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type errorKind struct {
	target error
	status int
	code   string
}

// order matters: the first match wins
var errorKinds = []errorKind{
	{models.ErrStorageUnavailable, http.StatusServiceUnavailable, "storage_unavailable"},
	{models.ErrInvalidRequest, http.StatusBadRequest, "invalid_request"},
	{models.ErrInvalidDirection, http.StatusBadRequest, "invalid_direction"},
	{models.ErrDuplicatePreference, http.StatusConflict, "duplicate_preference"},
	{models.ErrGroupExists, http.StatusConflict, "group_exists"},
	{models.ErrGroupComplete, http.StatusConflict, "group_complete"},
	{models.ErrActorInGroup, http.StatusConflict, "actor_in_group"},
	{models.ErrNotGroupMember, http.StatusForbidden, "not_group_member"},
	{models.ErrGroupNotFound, http.StatusNotFound, "group_not_found"},
	{models.ErrMatchNotFound, http.StatusNotFound, "match_not_found"},
	{models.ErrPreferenceNotFound, http.StatusNotFound, "preference_not_found"},
	{context.DeadlineExceeded, http.StatusGatewayTimeout, "timeout"},
}

// StatusFor maps an error to its HTTP status and stable code
func StatusFor(err error) (int, string) {
	for _, k := range errorKinds {
		if errors.Is(err, k.target) {
			return k.status, k.code
		}
	}
	return http.StatusInternalServerError, "internal"
}

// WriteJSON writes v with status
func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Get().Warn().Err(err).Msg("write response")
	}
}

// WriteError maps err and writes it. Server-side failures are logged.
func WriteError(w http.ResponseWriter, err error) {
	status, code := StatusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Get().Error().Err(err).Int("status", status).Msg("request failed")
	}
	WriteJSON(w, status, ErrorResponse{Error: code, Message: err.Error()})
}

func badRequest(w http.ResponseWriter, msg string) {
	WriteJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid_request", Message: msg})
}

func decode(r *http.Request, v interface{}) error {
	return json.NewDecoder(r.Body).Decode(v)
}

// HealthCheckHandler reports liveness
func HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func withTimeout(r *http.Request, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = DefaultTimeout
	}
	return context.WithTimeout(r.Context(), d)
}
