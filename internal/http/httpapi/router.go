package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"imagestudio/internal/http/handlers"
	"imagestudio/internal/infra"
	"imagestudio/internal/middleware"
)

// NewRouter wires the form routes and their middleware.
func NewRouter(app *handlers.App, cfg *infra.Config, logger infra.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		middleware.Logger(logger),
		chimw.Recoverer,
		middleware.CORS(cfg.CORSAllowedOrigins),
	)

	r.Get("/v1/healthz", app.Health)

	r.Get("/", app.NewView)
	r.Route("/views", func(r chi.Router) {
		r.With(middleware.RateLimit(cfg.RateLimitPerMin, time.Minute)).Post("/", app.NewView)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", app.ShowView)
			r.Get("/state", app.ViewState)
			r.Delete("/", app.CloseView)

			r.Post("/file", app.SelectFile)
			r.Post("/tags", app.ToggleTag)
			r.With(middleware.RateLimit(cfg.RateLimitPerMin, time.Minute)).Post("/submit", app.Submit)

			r.Get("/images/archive", app.DownloadArchive)
			r.Get("/images/{index}/download", app.DownloadImage)
		})
	})

	return r
}
