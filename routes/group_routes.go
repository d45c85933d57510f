package routes

import (
	"time"

	"github.com/kbcarlson3/meal-match/controllers"
	"github.com/kbcarlson3/meal-match/services"

	"github.com/gorilla/mux"
)

// RegisterGroupRoutes registers group directory routes
func RegisterGroupRoutes(r *mux.Router, groupService *services.GroupService, timeout time.Duration) {
	controller := controllers.NewGroupController(groupService, timeout)

	r.HandleFunc("/api/groups", controller.HandleCreateGroup).Methods("POST")
	r.HandleFunc("/api/groups/{groupId}/join", controller.HandleJoinGroup).Methods("POST")
	r.HandleFunc("/api/actors/{actorId}/group", controller.HandleGetActorGroup).Methods("GET")
}
