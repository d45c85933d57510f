package controllers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kbcarlson3/meal-match/models"

	"github.com/stretchr/testify/assert"
)

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{models.ErrDuplicatePreference, http.StatusConflict, "duplicate_preference"},
		{fmt.Errorf("insert: %w: %w", models.ErrStorageUnavailable, assert.AnError), http.StatusServiceUnavailable, "storage_unavailable"},
		{fmt.Errorf("wrapped: %w", models.ErrNotGroupMember), http.StatusForbidden, "not_group_member"},
		{models.ErrMatchNotFound, http.StatusNotFound, "match_not_found"},
		{context.DeadlineExceeded, http.StatusGatewayTimeout, "timeout"},
		{assert.AnError, http.StatusInternalServerError, "internal"},
	}
	for _, tc := range cases {
		status, code := StatusFor(tc.err)
		assert.Equal(t, tc.status, status, tc.err.Error())
		assert.Equal(t, tc.code, code, tc.err.Error())
	}
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, models.ErrGroupComplete)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"error":"group_complete","message":"group already has two members"}`, rec.Body.String())
}
