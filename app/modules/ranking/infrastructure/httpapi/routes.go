package rankinghttp

import (
	rankingjwt "github.com/Black-And-White-Club/photoseason/app/modules/ranking/infrastructure/jwt"
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes mounts the read API under /api and the job API under
// /api/admin. Read routes are limited per client IP. Admin routes require an
// admin bearer token and are limited per token subject.
func RegisterRoutes(r chi.Router, h *Handlers, tokens rankingjwt.Provider, limits RouteLimits) {
	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(LimitByIP(limits.Read))

			r.Get("/seasons/current", h.HandleGetCurrentSeason)
			r.Get("/seasons/{seasonID}/region-tops", h.HandleGetRegionTops)
			r.Get("/users/{userID}/season-ranks/{seasonID}", h.HandleGetSeasonRank)
			r.Get("/users/{userID}/progress", h.HandleGetUserProgress)
			r.Get("/users/top", h.HandleGetTopUsers)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(BearerAuth(tokens, rankingjwt.RoleAdmin), LimitBySubject(limits.Admin))
			r.Get("/jobs", h.HandleListJobs)
			r.Post("/jobs/{job}", h.HandleEnqueueJob)
		})
	})
}
