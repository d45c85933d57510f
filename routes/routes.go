// Package routes mounts the controllers on a gorilla/mux router
package routes

import (
	"time"

	"github.com/kbcarlson3/meal-match/controllers"
	"github.com/kbcarlson3/meal-match/services"

	"github.com/gorilla/mux"
)

// Services is everything the HTTP surface calls into
type Services struct {
	Actions       *services.ActionService
	Matches       *services.MatchService
	Groups        *services.GroupService
	Notifications *services.NotificationService
	Timeout       time.Duration
}

// RegisterRoutes sets up the service-level routes
func RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/health", controllers.HealthCheckHandler).Methods("GET")
}

// NewRouter builds the full API router
func NewRouter(s Services) *mux.Router {
	r := mux.NewRouter()
	RegisterRoutes(r)
	RegisterActionRoutes(r, s.Actions, s.Timeout)
	RegisterMatchRoutes(r, s.Matches, s.Timeout)
	RegisterGroupRoutes(r, s.Groups, s.Timeout)
	RegisterActorRoutes(r, s.Notifications, s.Timeout)
	return r
}
