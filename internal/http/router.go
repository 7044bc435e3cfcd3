package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type RouterConfig struct {
	Events    *EventHandler
	Tasks     *TaskHandler
	Divisions *DivisionHandler
	Me        *MeHandler
	Health    *HealthHandler

	Logger         *slog.Logger
	AllowedOrigins []string
	// RateLimit disables rate limiting when RequestsPerSecond is zero.
	RateLimit  RateLimitConfig
	Middleware []func(http.Handler) http.Handler
}

// NewRouter assembles the API. Everything below /api requires a principal;
// /healthz is public.
func NewRouter(cfg RouterConfig) http.Handler {
	logger := defaultLogger(cfg.Logger)

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(RequestID)
	r.Use(RequestLogger(logger))
	if len(cfg.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.AllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Content-Type", "If-None-Match", HeaderUserID, HeaderUserRole, HeaderDivisionID, HeaderRequestID},
			ExposedHeaders:   []string{"ETag", HeaderRequestID, "Retry-After"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}
	if cfg.RateLimit.RequestsPerSecond > 0 {
		r.Use(RateLimiter(cfg.RateLimit, logger))
	}
	for _, mw := range cfg.Middleware {
		if mw != nil {
			r.Use(mw)
		}
	}

	if cfg.Health != nil {
		r.Method(http.MethodGet, "/healthz", cfg.Health)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(RequirePrincipal(logger))

		if h := cfg.Events; h != nil {
			r.Route("/events", func(r chi.Router) {
				r.Get("/", h.List)
				r.Post("/", h.Create)
				r.Post("/import", h.ImportICS)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", h.Get)
					r.Put("/", h.Update)
					r.Delete("/", h.Delete)
					r.Post("/status", h.ChangeStatus)
					r.Post("/notes", h.AddNote)
				})
			})
			r.Get("/calendar.ics", h.ExportICS)
			r.Route("/calendar", func(r chi.Router) {
				r.Get("/conflicts", h.Conflicts)
				r.Get("/availability", h.Availability)
				r.Get("/slots", h.Slots)
			})
		}

		if h := cfg.Tasks; h != nil {
			r.Route("/tasks", func(r chi.Router) {
				r.Get("/", h.List)
				r.Post("/", h.Create)
				r.Get("/followup", h.FollowUp)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", h.Get)
					r.Put("/", h.Update)
					r.Delete("/", h.Delete)
					r.Post("/status", h.ChangeStatus)
					r.Get("/status-history", h.StatusHistory)
					r.Get("/history", h.History)
					r.Post("/history", h.AddHistory)
				})
			})
			r.Get("/statistics/tasks", h.Statistics)
		}

		if h := cfg.Divisions; h != nil {
			r.Get("/divisions", h.List)
			r.Post("/divisions", h.Create)
		}

		if h := cfg.Me; h != nil {
			r.Get("/me/permissions", h.Permissions)
			r.Get("/me/access", h.Access)
		}
	})

	return r
}
