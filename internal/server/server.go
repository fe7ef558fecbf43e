// Package server exposes the profile-switching core over a local HTTP
// control API so external presentation shells (status bars, pickers) can
// drive it without touching secret material or the file format.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/pysugar/codex-profiles/internal/logging"
	"github.com/pysugar/codex-profiles/internal/switcher"
	"go.uber.org/zap"
)

// NewRouter builds the control API router.
func NewRouter(mgr *switcher.Manager, log *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(logging.RequestID(log))

	r.Get("/healthz", HealthHandler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/profiles", ListProfilesHandler(mgr))
		r.Post("/profiles/import", ImportHandler(mgr))
		r.Put("/profiles/{id}", RenameHandler(mgr))
		r.Delete("/profiles/{id}", DeleteHandler(mgr))

		r.Get("/active", ActiveHandler(mgr))
		r.Put("/active", SetActiveHandler(mgr))
		r.Post("/active/toggle", ToggleHandler(mgr))
		r.Post("/active/refresh", RefreshHandler(mgr))

		r.Post("/sync", SyncHandler(mgr))
	})

	return r
}

// Serve runs the control API until the listener fails.
func Serve(addr string, mgr *switcher.Manager, log *zap.Logger) error {
	log.Info("control API listening", zap.String("addr", addr))
	return http.ListenAndServe(addr, NewRouter(mgr, log))
}
