/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/users/*              Accounts, stats, energy, per-user lists, dashboard
  /api/pool-missions/*      Backlog mission status changes
  /api/scheduled-missions/* Calendar mission status changes
  /api/habits/*             Habit template lifecycle
  /api/occurrences/*        Occurrence status changes

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go, missions.go, habits.go, dashboard.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		// User routes
		r.Route("/users", func(r chi.Router) {
			r.Post("/", h.CreateUser)
			r.Get("/{id}", h.GetUser)
			r.Get("/{id}/stats", h.GetStats)
			r.Get("/{id}/energy-balance", h.GetEnergyBalance)
			r.Get("/{id}/energy-log", h.GetEnergyLog)

			r.Get("/{id}/quests", h.ListQuests)
			r.Post("/{id}/quests", h.CreateQuest)

			r.Get("/{id}/pool-missions", h.ListPoolMissions)
			r.Post("/{id}/pool-missions", h.CreatePoolMission)
			r.Get("/{id}/scheduled-missions", h.ListScheduledMissions)
			r.Post("/{id}/scheduled-missions", h.CreateScheduledMission)

			r.Get("/{id}/habits", h.ListHabits)
			r.Post("/{id}/habits", h.CreateHabit)
			r.Get("/{id}/occurrences", h.ListOccurrences)

			r.Get("/{id}/today-agenda", h.TodayAgenda)
			r.Get("/{id}/recent-activity", h.RecentActivity)
		})

		// Mission status routes
		r.Post("/pool-missions/{id}/status", h.UpdatePoolMissionStatus)
		r.Delete("/pool-missions/{id}", h.DeletePoolMission)
		r.Post("/scheduled-missions/{id}/status", h.UpdateScheduledMissionStatus)
		r.Delete("/scheduled-missions/{id}", h.DeleteScheduledMission)

		// Habit template lifecycle
		r.Route("/habits", func(r chi.Router) {
			r.Get("/{id}", h.GetHabit)
			r.Put("/{id}", h.UpdateHabit)
			r.Post("/{id}/activate", h.ActivateHabit)
			r.Post("/{id}/deactivate", h.DeactivateHabit)
			r.Post("/{id}/extend", h.ExtendHabit)
		})

		// Occurrence status
		r.Post("/occurrences/{id}/status", h.UpdateOccurrenceStatus)
	})

	return r
}
