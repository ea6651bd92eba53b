package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// events, if non-nil, receives change notifications from mutating routes.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(lib Library, events Publisher, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(lib, events)

	r := chi.NewRouter()

	// Melody compilation touches no library data.
	r.Post("/melody/compile", h.CompileMelody)

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(authEnabled, token))

		// Search.
		r.Get("/modules", h.SearchModules)
		r.Get("/modules/all", h.AllModules)

		// Single records.
		r.Get("/module", h.GetModule)
		r.Delete("/module", h.DeleteModule)
		r.Put("/module/comment", h.SetComment)
		r.Put("/module/fingerprint", h.SetFingerprint)

		// Library maintenance.
		r.Get("/duplicates", h.Duplicates)
		r.Post("/scan", h.Scan)
		r.Post("/maintenance", h.Maintenance)

		// SSE endpoint (protected by same auth middleware).
		if sseHandler != nil {
			r.Get("/events", sseHandler.ServeHTTP)
		}
	})

	return r
}
