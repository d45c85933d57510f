package services

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kbcarlson3/meal-match/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func expoServer(t *testing.T, status int, reply string, seen *[]models.NotificationEnvelope, auth *string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		if auth != nil {
			*auth = r.Header.Get("Authorization")
		}
		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		if seen != nil {
			assert.NoError(t, json.Unmarshal(body, seen))
		}
		w.WriteHeader(status)
		_, _ = io.WriteString(w, reply)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestExpoGatewaySend(t *testing.T) {
	var seen []models.NotificationEnvelope
	var auth string
	srv := expoServer(t, http.StatusOK, `{"data":[{"status":"ok","id":"abc"}]}`, &seen, &auth)

	gw := NewExpoGateway(srv.URL, "secret")
	env := Envelope("", models.MatchRecord{MatchID: "m1", GroupID: "G", ItemID: "R1"})
	require.NoError(t, gw.Send(context.Background(), "ExponentPushToken[x]", env))

	require.Len(t, seen, 1)
	assert.Equal(t, "ExponentPushToken[x]", seen[0].To)
	assert.Equal(t, MatchTitle, seen[0].Title)
	assert.Equal(t, "match", seen[0].Data["type"])
	assert.Equal(t, "Bearer secret", auth)
}

func TestExpoGatewayFailures(t *testing.T) {
	cases := []struct {
		name   string
		status int
		reply  string
		msg    string
	}{
		{"error ticket", http.StatusOK, `{"data":[{"status":"error","message":"not registered","details":{"error":"DeviceNotRegistered"}}]}`, "DeviceNotRegistered"},
		{"request error", http.StatusOK, `{"errors":[{"code":"VALIDATION_ERROR","message":"bad"}]}`, "VALIDATION_ERROR"},
		{"http status", http.StatusTooManyRequests, `slow down`, "429"},
		{"garbage", http.StatusOK, `not json`, "decode"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := expoServer(t, tc.status, tc.reply, nil, nil)
			err := NewExpoGateway(srv.URL, "").Send(context.Background(), "tok", models.NotificationEnvelope{Title: "t"})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.msg)
		})
	}
}

func TestExpoGatewayDefaultURL(t *testing.T) {
	assert.Equal(t, DefaultExpoURL, NewExpoGateway("", "").URL)
}
