package controllers

import (
	"net/http"
	"time"

	"github.com/kbcarlson3/meal-match/services"

	"github.com/gorilla/mux"
)

// ActorController manages per-actor settings
type ActorController struct {
	NotificationService *services.NotificationService
	Timeout             time.Duration
}

// NewActorController creates an ActorController
func NewActorController(service *services.NotificationService, timeout time.Duration) *ActorController {
	return &ActorController{NotificationService: service, Timeout: timeout}
}

// HandlePutPushToken registers the actor's push endpoint
func (c *ActorController) HandlePutPushToken(w http.ResponseWriter, r *http.Request) {
	var request struct {
		Token string `json:"token"`
	}
	if err := decode(r, &request); err != nil {
		badRequest(w, "Invalid request payload")
		return
	}

	ctx, cancel := withTimeout(r, c.Timeout)
	defer cancel()

	tok, err := c.NotificationService.RegisterPushToken(ctx, mux.Vars(r)["actorId"], request.Token)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, tok)
}
