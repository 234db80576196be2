package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"floorvis/internal/http/handlers"
	"floorvis/internal/infra"
	"floorvis/internal/middleware"
)

// NewRouter assembles the middleware chain and routes. Order matters: the
// request id and country annotations must be on the context before the
// access log runs, and the origin check rejects disallowed origins before
// any credential or body handling.
func NewRouter(app *handlers.App, cfg *infra.Config, lookup middleware.CountryLookup) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Country(lookup),
		middleware.Logger(app.Logger),
		middleware.CORS(cfg.AllowedOrigins),
	)

	// Health and API docs
	r.Get("/v1/healthz", app.Health)
	r.Get("/v1/openapi.json", app.OpenAPIJSON)
	r.Get("/v1/docs", app.OpenAPIDocs)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.RateLimit(cfg.RateLimitPerMin, time.Minute))
		r.Use(middleware.APIKey(cfg.ProxyAPIKey))
		r.Post("/generate", app.Generate)
	})

	return r
}
