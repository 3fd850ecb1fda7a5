package routes

import (
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/igornazarenko434/LLM-Agent-Orchestration-HW7-sub001/handlers"
	"github.com/igornazarenko434/LLM-Agent-Orchestration-HW7-sub001/middleware"
)

// SetupCoordinatorRoutes wires the coordinator's HTTP surface: the agent
// RPC endpoint, the spectator websocket and — when configured — the
// operator API. Pass a nil operator handler to leave that surface off.
func SetupCoordinatorRoutes(
	router *chi.Mux,
	coordinator *handlers.CoordinatorHandler,
	operator *handlers.OperatorHandler,
	ws *handlers.WebSocketHandler,
	jwtSecret []byte,
) {
	router.Use(chiMiddleware.Recoverer)

	router.Post("/rpc", coordinator.RPC)
	router.Get("/ws/tournaments/{tournamentID}", ws.ServeWs)

	if operator != nil {
		router.Route("/operator", func(r chi.Router) {
			r.Use(cors.Handler(cors.Options{
				AllowedOrigins: []string{"*"},
				AllowedMethods: []string{"GET", "POST", "OPTIONS"},
				AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
			}))

			r.Post("/login", operator.Login)

			r.Group(func(r chi.Router) {
				r.Use(middleware.OperatorAuth(jwtSecret))
				r.Get("/standings", operator.Standings)
				r.Get("/matches", operator.Matches)
				r.Get("/matches/{matchID}", operator.MatchByID)
			})
		})
	}
}
