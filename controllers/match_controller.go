package controllers

import (
	"net/http"
	"time"

	"github.com/kbcarlson3/meal-match/services"

	"github.com/gorilla/mux"
)

// MatchController serves the match list and favorites
type MatchController struct {
	MatchService *services.MatchService
	Timeout      time.Duration
}

// NewMatchController initializes the controller
func NewMatchController(service *services.MatchService, timeout time.Duration) *MatchController {
	return &MatchController{MatchService: service, Timeout: timeout}
}

// HandleGetMatches returns every match of a group
func (c *MatchController) HandleGetMatches(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r, c.Timeout)
	defer cancel()

	matches, err := c.MatchService.ListMatches(ctx, mux.Vars(r)["groupId"])
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, matches)
}

// HandleSetFavorite toggles is_favorite on one match
func (c *MatchController) HandleSetFavorite(w http.ResponseWriter, r *http.Request) {
	var request struct {
		IsFavorite *bool `json:"isFavorite"`
	}
	if err := decode(r, &request); err != nil || request.IsFavorite == nil {
		badRequest(w, "isFavorite is required")
		return
	}

	ctx, cancel := withTimeout(r, c.Timeout)
	defer cancel()

	rec, err := c.MatchService.SetFavorite(ctx, mux.Vars(r)["matchId"], *request.IsFavorite)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, rec)
}
