package routes

import (
	"time"

	"github.com/kbcarlson3/meal-match/controllers"
	"github.com/kbcarlson3/meal-match/services"

	"github.com/gorilla/mux"
)

// RegisterActionRoutes sets up swipe routes under /api/preferences
func RegisterActionRoutes(r *mux.Router, actionService *services.ActionService, timeout time.Duration) {
	controller := controllers.NewActionController(actionService, timeout)

	prefRouter := r.PathPrefix("/api/preferences").Subrouter()
	prefRouter.HandleFunc("", controller.HandleSubmit).Methods("POST")
	prefRouter.HandleFunc("/retry", controller.HandleRetry).Methods("POST")

	r.HandleFunc("/api/groups/{groupId}/preferences", controller.HandleListPreferences).Methods("GET")
}
