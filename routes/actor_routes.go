package routes

import (
	"time"

	"github.com/kbcarlson3/meal-match/controllers"
	"github.com/kbcarlson3/meal-match/services"

	"github.com/gorilla/mux"
)

// RegisterActorRoutes sets up per-actor settings under /api/actors
func RegisterActorRoutes(r *mux.Router, notificationService *services.NotificationService, timeout time.Duration) {
	controller := controllers.NewActorController(notificationService, timeout)

	actorRouter := r.PathPrefix("/api/actors").Subrouter()
	actorRouter.HandleFunc("/{actorId}/push-token", controller.HandlePutPushToken).Methods("PUT")
}
