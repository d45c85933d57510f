package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/kbcarlson3/meal-match/controllers"
	"github.com/kbcarlson3/meal-match/models"
	"github.com/kbcarlson3/meal-match/services"
	"github.com/kbcarlson3/meal-match/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureGateway struct {
	mu   sync.Mutex
	sent []string
}

func (g *captureGateway) Send(_ context.Context, token string, _ models.NotificationEnvelope) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sent = append(g.sent, token)
	return nil
}

type apiFixture struct {
	srv     *httptest.Server
	actions *services.ActionService
	gateway *captureGateway
}

func newAPI(t *testing.T) *apiFixture {
	t.Helper()
	st := store.NewMemory()
	gw := &captureGateway{}
	ledger := services.NewLedgerService(st, st, nil)
	matches := services.NewMatchService(st, st, st, nil)
	notifier := services.NewNotificationService(st, gw, time.Second, nil)
	actions := services.NewActionService(ledger, matches, notifier, nil, nil)
	t.Cleanup(actions.Close)

	r := NewRouter(Services{
		Actions:       actions,
		Matches:       matches,
		Groups:        services.NewGroupService(st, nil),
		Notifications: notifier,
		Timeout:       time.Second,
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &apiFixture{srv: srv, actions: actions, gateway: gw}
}

func (a *apiFixture) do(t *testing.T, method, path string, body interface{}, out interface{}) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, a.srv.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func seed(t *testing.T, a *apiFixture) {
	t.Helper()
	var g models.Group
	require.Equal(t, http.StatusCreated, a.do(t, "POST", "/api/groups", map[string]string{"groupId": "G", "actorId": "alice"}, &g))
	assert.Equal(t, "alice", g.First)
	require.Equal(t, http.StatusOK, a.do(t, "POST", "/api/groups/G/join", map[string]string{"actorId": "bob"}, &g))
	assert.True(t, g.Complete())
	require.Equal(t, http.StatusOK, a.do(t, "PUT", "/api/actors/alice/push-token", map[string]string{"token": "tok-alice"}, nil))
}

func swipe(actor, item, dir string) map[string]string {
	return map[string]string{"actorId": actor, "itemId": item, "groupId": "G", "direction": dir}
}

func TestHealth(t *testing.T) {
	a := newAPI(t)
	var body map[string]string
	assert.Equal(t, http.StatusOK, a.do(t, "GET", "/health", nil, &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestSwipeFlowOverHTTP(t *testing.T) {
	a := newAPI(t)
	seed(t, a)

	var res services.SubmitResult
	require.Equal(t, http.StatusCreated, a.do(t, "POST", "/api/preferences", swipe("alice", "R1", "like"), &res))
	assert.Equal(t, services.NoMatchPossible, res.Outcome)

	require.Equal(t, http.StatusCreated, a.do(t, "POST", "/api/preferences", swipe("bob", "R1", "like"), &res))
	assert.Equal(t, services.MatchCreated, res.Outcome)
	require.NotNil(t, res.Match)

	var errBody controllers.ErrorResponse
	assert.Equal(t, http.StatusConflict, a.do(t, "POST", "/api/preferences", swipe("alice", "R1", "like"), &errBody))
	assert.Equal(t, "duplicate_preference", errBody.Error)

	var matches []models.MatchRecord
	require.Equal(t, http.StatusOK, a.do(t, "GET", "/api/groups/G/matches", nil, &matches))
	require.Len(t, matches, 1)
	assert.Equal(t, "R1", matches[0].ItemID)

	var rec models.MatchRecord
	require.Equal(t, http.StatusOK, a.do(t, "PATCH", "/api/matches/"+res.Match.MatchID+"/favorite", map[string]bool{"isFavorite": true}, &rec))
	assert.True(t, rec.IsFavorite)

	var retried services.SubmitResult
	require.Equal(t, http.StatusOK, a.do(t, "POST", "/api/preferences/retry", swipe("bob", "R1", ""), &retried))
	assert.Equal(t, services.MatchAlreadyExists, retried.Outcome)

	var prefs []models.PreferenceEvent
	require.Equal(t, http.StatusOK, a.do(t, "GET", "/api/groups/G/preferences?actorId=alice", nil, &prefs))
	assert.Len(t, prefs, 1)

	a.actions.Wait()
	a.gateway.mu.Lock()
	assert.Equal(t, []string{"tok-alice"}, a.gateway.sent)
	a.gateway.mu.Unlock()
}

func TestErrorStatuses(t *testing.T) {
	a := newAPI(t)
	seed(t, a)

	cases := []struct {
		name   string
		method string
		path   string
		body   interface{}
		status int
		code   string
	}{
		{"bad direction", "POST", "/api/preferences", swipe("alice", "R1", "love"), http.StatusBadRequest, "invalid_direction"},
		{"outsider", "POST", "/api/preferences", swipe("mallory", "R1", "like"), http.StatusForbidden, "not_group_member"},
		{"unknown group", "GET", "/api/groups/nope/matches", nil, http.StatusNotFound, "group_not_found"},
		{"unknown match", "PATCH", "/api/matches/nope/favorite", map[string]bool{"isFavorite": true}, http.StatusNotFound, "match_not_found"},
		{"missing favorite flag", "PATCH", "/api/matches/nope/favorite", map[string]string{}, http.StatusBadRequest, "invalid_request"},
		{"retry unknown", "POST", "/api/preferences/retry", swipe("alice", "R9", ""), http.StatusNotFound, "preference_not_found"},
		{"group full", "POST", "/api/groups/G/join", map[string]string{"actorId": "carol"}, http.StatusConflict, "group_complete"},
		{"missing actor query", "GET", "/api/groups/G/preferences", nil, http.StatusBadRequest, "invalid_request"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var body controllers.ErrorResponse
			assert.Equal(t, tc.status, a.do(t, tc.method, tc.path, tc.body, &body))
			assert.Equal(t, tc.code, body.Error)
		})
	}
}

func TestActorGroupLookup(t *testing.T) {
	a := newAPI(t)
	seed(t, a)

	var g models.Group
	require.Equal(t, http.StatusOK, a.do(t, "GET", "/api/actors/bob/group", nil, &g))
	assert.Equal(t, "G", g.GroupID)

	var body controllers.ErrorResponse
	assert.Equal(t, http.StatusNotFound, a.do(t, "GET", "/api/actors/zed/group", nil, &body))
}
