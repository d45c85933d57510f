package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/kbcarlson3/meal-match/models"
)

// ErrDetectionPending means the swipe is in the ledger but match detection
// hit a storage fault. Call Retry to finish it.
var ErrDetectionPending = errors.New("swipe recorded, match detection pending")

// ErrSwipeInFlight means an earlier Swipe of the same item has not settled
var ErrSwipeInFlight = errors.New("swipe already in flight")

// APIError is a non-2xx reply from the server
type APIError struct {
	Status  int
	Code    string `json:"error"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api %d %s: %s", e.Status, e.Code, e.Message)
}

// SwipeResult mirrors the server's submit reply
type SwipeResult struct {
	Event   models.PreferenceEvent `json:"event"`
	Outcome string                 `json:"outcome"`
	Match   *models.MatchRecord    `json:"match,omitempty"`
}

// API talks to the HTTP surface on behalf of one actor and keeps Cache in
// step with every answer
type API struct {
	BaseURL string
	ActorID string
	HTTP    *http.Client
	Cache   *Cache
}

// New returns an API client for actorID against baseURL
func New(baseURL, actorID string) *API {
	return &API{
		BaseURL: strings.TrimRight(baseURL, "/"),
		ActorID: actorID,
		HTTP:    &http.Client{},
		Cache:   NewCache(),
	}
}

type swipeBody struct {
	ActorID   string           `json:"actorId"`
	ItemID    string           `json:"itemId"`
	GroupID   string           `json:"groupId"`
	Direction models.Direction `json:"direction,omitempty"`
}

// Swipe applies the swipe locally, submits it and settles the cache.
// A duplicate rejection or a fault with no event runs Retry, since the
// ledger write may have landed without its detection. A detection fault
// keeps the swipe and returns ErrDetectionPending; anything else rolls it
// back.
func (a *API) Swipe(ctx context.Context, groupID, itemID string, dir models.Direction) (SwipeResult, error) {
	if !a.Cache.ApplyOptimistic(groupID, itemID, dir) {
		if s, ok := a.Cache.Swiped(groupID, itemID); ok {
			if s.State == SwipePending {
				return SwipeResult{}, ErrSwipeInFlight
			}
			if s.EventID != "" {
				return SwipeResult{Event: models.PreferenceEvent{EventID: s.EventID}, Outcome: "duplicate"}, nil
			}
		}
	}

	var res SwipeResult
	err := a.do(ctx, http.MethodPost, "/api/preferences", swipeBody{a.ActorID, itemID, groupID, dir}, &res)

	var apiErr *APIError
	switch {
	case err == nil:
		a.settle(groupID, itemID, res)
		return res, nil
	case errors.As(err, &apiErr) && apiErr.Code == "duplicate_preference":
		// recorded already, maybe by a submit whose reply was lost
		retried, rerr := a.Retry(ctx, groupID, itemID)
		if rerr != nil {
			a.Cache.Confirm(groupID, itemID, models.PreferenceEvent{})
			return SwipeResult{}, fmt.Errorf("%w: %w", ErrDetectionPending, rerr)
		}
		return retried, nil
	case errors.As(err, &apiErr) && apiErr.Code == "storage_unavailable" && res.Event.EventID != "":
		a.Cache.Confirm(groupID, itemID, res.Event)
		return res, fmt.Errorf("%w: %w", ErrDetectionPending, err)
	case errors.As(err, &apiErr) && apiErr.Code == "storage_unavailable":
		// the ledger write may have landed before the fault
		if retried, rerr := a.Retry(ctx, groupID, itemID); rerr == nil {
			return retried, nil
		}
		a.Cache.Rollback(groupID, itemID)
		return SwipeResult{}, err
	default:
		a.Cache.Rollback(groupID, itemID)
		return SwipeResult{}, err
	}
}

// Retry finishes a swipe whose detection failed
func (a *API) Retry(ctx context.Context, groupID, itemID string) (SwipeResult, error) {
	var res SwipeResult
	if err := a.do(ctx, http.MethodPost, "/api/preferences/retry", swipeBody{ActorID: a.ActorID, ItemID: itemID, GroupID: groupID}, &res); err != nil {
		return SwipeResult{}, err
	}
	a.settle(groupID, itemID, res)
	return res, nil
}

func (a *API) settle(groupID, itemID string, res SwipeResult) {
	a.Cache.Confirm(groupID, itemID, res.Event)
	if res.Match != nil {
		a.Cache.PutMatch(*res.Match)
	}
}

// Refresh refetches matches and this actor's swipes and reconciles the cache
func (a *API) Refresh(ctx context.Context, groupID string) error {
	var matches []models.MatchRecord
	if err := a.do(ctx, http.MethodGet, "/api/groups/"+url.PathEscape(groupID)+"/matches", nil, &matches); err != nil {
		return err
	}
	var prefs []models.PreferenceEvent
	path := "/api/groups/" + url.PathEscape(groupID) + "/preferences?actorId=" + url.QueryEscape(a.ActorID)
	if err := a.do(ctx, http.MethodGet, path, nil, &prefs); err != nil {
		return err
	}
	a.Cache.Reconcile(groupID, matches, prefs)
	return nil
}

// SetFavorite toggles a match's favorite flag and caches the result
func (a *API) SetFavorite(ctx context.Context, matchID string, favorite bool) (models.MatchRecord, error) {
	var rec models.MatchRecord
	body := map[string]bool{"isFavorite": favorite}
	if err := a.do(ctx, http.MethodPatch, "/api/matches/"+url.PathEscape(matchID)+"/favorite", body, &rec); err != nil {
		return models.MatchRecord{}, err
	}
	a.Cache.PutMatch(rec)
	return rec, nil
}

// RegisterPushToken stores the device's push token
func (a *API) RegisterPushToken(ctx context.Context, token string) error {
	return a.do(ctx, http.MethodPut, "/api/actors/"+url.PathEscape(a.ActorID)+"/push-token", map[string]string{"token": token}, nil)
}

// do sends one request. On a non-2xx reply out is still decoded when the
// body carries extra fields, which is how a 503 swipe returns its event.
func (a *API) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, a.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	client := a.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		if jerr := json.Unmarshal(raw, apiErr); jerr != nil || apiErr.Code == "" {
			apiErr.Message = strings.TrimSpace(string(raw))
		}
		if out != nil && resp.StatusCode == http.StatusServiceUnavailable {
			_ = json.Unmarshal(raw, out)
		}
		return apiErr
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
