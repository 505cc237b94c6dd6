package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"videofetch/internal/http/handlers"
	"videofetch/internal/infra"
	"videofetch/internal/middleware"
)

// NewRouter wires the job API routes with the shared middleware stack.
func NewRouter(app *handlers.App, cfg *infra.Config, log infra.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(log),
		middleware.CORS(cfg.AllowedOrigins),
		middleware.Locale("en"),
	)

	r.Get("/healthz", app.Health)

	r.Route("/api", func(r chi.Router) {
		r.Get("/metrics", app.Metrics)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(cfg.RateLimitPerMin, time.Minute))
			r.Post("/download", app.Submit)
		})

		r.Get("/download/{id}/status", app.Status)
		r.Get("/download/{id}", app.Artifact)
		r.Get("/progress_stream/{id}", app.Stream)
		r.Post("/cancel/{id}", app.Cancel)
	})

	return r
}
