package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(h *APIHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		r.Post("/signup", h.SignupHandler)
		r.Post("/login", h.LoginHandler)

		// Public surfaces: shared dream pages and public profiles.
		r.Get("/d/{slug}", h.GetDreamBySlugHandler)
		r.Get("/u/{username}/dreams", h.PublicProfileDreamsHandler)

		r.Group(func(r chi.Router) {
			r.Use(h.JWTAuthMiddleware)

			r.Route("/dreams", func(r chi.Router) {
				r.Post("/", h.CreateDreamHandler)
				r.Get("/", h.ListDreamsHandler)
				r.Get("/export-pdf", h.ExportPDFHandler)
				r.Get("/{dreamID}", h.GetDreamHandler)
				r.Put("/{dreamID}", h.UpdateDreamHandler)
				r.Delete("/{dreamID}", h.DeleteDreamHandler)
			})

			r.Get("/profile", h.GetProfileHandler)
			r.Put("/profile", h.UpdateProfileHandler)

			r.Post("/images/import", h.ImportImageHandler)

			r.Route("/ai", func(r chi.Router) {
				r.Post("/summary", h.DreamSummaryHandler)
				r.Post("/aggregate", h.AggregateSummaryHandler)
				r.Post("/aggregate/load", h.AggregateLoadHandler)
				r.Post("/chat", h.ChatHandler)
				r.Post("/chat/load", h.ChatLoadHandler)
			})
		})
	})

	return r
}
