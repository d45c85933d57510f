package controllers

import (
	"errors"
	"net/http"
	"time"

	"github.com/kbcarlson3/meal-match/logger"
	"github.com/kbcarlson3/meal-match/models"
	"github.com/kbcarlson3/meal-match/services"

	"github.com/gorilla/mux"
)

// ActionController handles swipes
type ActionController struct {
	ActionService *services.ActionService
	Timeout       time.Duration
}

// NewActionController creates a new ActionController instance
func NewActionController(actionService *services.ActionService, timeout time.Duration) *ActionController {
	return &ActionController{ActionService: actionService, Timeout: timeout}
}

type swipeRequest struct {
	ActorID   string           `json:"actorId"`
	ItemID    string           `json:"itemId"`
	GroupID   string           `json:"groupId"`
	Direction models.Direction `json:"direction,omitempty"`
}

// SwipeFailure is the 503 body for a swipe whose event was recorded but whose
// detection failed; the client finishes it with the retry endpoint
type SwipeFailure struct {
	ErrorResponse
	Event *models.PreferenceEvent `json:"event,omitempty"`
}

// HandleSubmit records a swipe and runs match detection
func (c *ActionController) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	var request swipeRequest
	if err := decode(r, &request); err != nil {
		badRequest(w, "Invalid request payload")
		return
	}

	ctx, cancel := withTimeout(r, c.Timeout)
	defer cancel()

	res, err := c.ActionService.Submit(ctx, request.ActorID, request.ItemID, request.GroupID, request.Direction)
	if err != nil {
		c.writeSwipeError(w, res, err)
		return
	}
	WriteJSON(w, http.StatusCreated, res)
}

// HandleRetry reruns detection for a swipe already in the ledger
func (c *ActionController) HandleRetry(w http.ResponseWriter, r *http.Request) {
	var request swipeRequest
	if err := decode(r, &request); err != nil {
		badRequest(w, "Invalid request payload")
		return
	}

	ctx, cancel := withTimeout(r, c.Timeout)
	defer cancel()

	res, err := c.ActionService.Retry(ctx, request.ActorID, request.ItemID, request.GroupID)
	if err != nil {
		c.writeSwipeError(w, res, err)
		return
	}
	WriteJSON(w, http.StatusOK, res)
}

func (c *ActionController) writeSwipeError(w http.ResponseWriter, res services.SubmitResult, err error) {
	if !errors.Is(err, models.ErrStorageUnavailable) || res.Event.EventID == "" {
		WriteError(w, err)
		return
	}
	status, code := StatusFor(err)
	logger.Get().Warn().Err(err).Str("event_id", res.Event.EventID).Msg("swipe recorded, detection pending")
	ev := res.Event
	WriteJSON(w, status, SwipeFailure{ErrorResponse: ErrorResponse{Error: code, Message: err.Error()}, Event: &ev})
}

// HandleListPreferences returns one actor's recorded swipes in a group
func (c *ActionController) HandleListPreferences(w http.ResponseWriter, r *http.Request) {
	groupID := mux.Vars(r)["groupId"]
	actorID := r.URL.Query().Get("actorId")
	if actorID == "" {
		badRequest(w, "actorId query parameter is required")
		return
	}

	ctx, cancel := withTimeout(r, c.Timeout)
	defer cancel()

	prefs, err := c.ActionService.Ledger.List(ctx, groupID, actorID)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, prefs)
}
