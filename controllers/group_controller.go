package controllers

import (
	"net/http"
	"time"

	"github.com/kbcarlson3/meal-match/services"

	"github.com/gorilla/mux"
)

// GroupController seeds and resolves groups
type GroupController struct {
	GroupService *services.GroupService
	Timeout      time.Duration
}

// NewGroupController creates a GroupController
func NewGroupController(service *services.GroupService, timeout time.Duration) *GroupController {
	return &GroupController{GroupService: service, Timeout: timeout}
}

// HandleCreateGroup opens a group with the caller in the first slot
func (c *GroupController) HandleCreateGroup(w http.ResponseWriter, r *http.Request) {
	var request struct {
		GroupID string `json:"groupId"`
		ActorID string `json:"actorId"`
	}
	if err := decode(r, &request); err != nil {
		badRequest(w, "Invalid request payload")
		return
	}

	ctx, cancel := withTimeout(r, c.Timeout)
	defer cancel()

	g, err := c.GroupService.Create(ctx, request.GroupID, request.ActorID)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, g)
}

// HandleJoinGroup fills the second slot
func (c *GroupController) HandleJoinGroup(w http.ResponseWriter, r *http.Request) {
	var request struct {
		ActorID string `json:"actorId"`
	}
	if err := decode(r, &request); err != nil {
		badRequest(w, "Invalid request payload")
		return
	}

	ctx, cancel := withTimeout(r, c.Timeout)
	defer cancel()

	g, err := c.GroupService.Join(ctx, mux.Vars(r)["groupId"], request.ActorID)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, g)
}

// HandleGetActorGroup resolves the group an actor belongs to
func (c *GroupController) HandleGetActorGroup(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r, c.Timeout)
	defer cancel()

	g, err := c.GroupService.ForActor(ctx, mux.Vars(r)["actorId"])
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, g)
}
