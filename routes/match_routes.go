package routes

import (
	"time"

	"github.com/kbcarlson3/meal-match/controllers"
	"github.com/kbcarlson3/meal-match/services"

	"github.com/gorilla/mux"
)

// RegisterMatchRoutes sets up the match list and favorite toggle
func RegisterMatchRoutes(r *mux.Router, matchService *services.MatchService, timeout time.Duration) {
	controller := controllers.NewMatchController(matchService, timeout)

	r.HandleFunc("/api/groups/{groupId}/matches", controller.HandleGetMatches).Methods("GET")

	matchRouter := r.PathPrefix("/api/matches").Subrouter()
	matchRouter.HandleFunc("/{matchId}/favorite", controller.HandleSetFavorite).Methods("PATCH")
}
