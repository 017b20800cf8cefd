package router

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kazdocs/kazdocs-platform/internal/contacts"
	httpmiddleware "github.com/kazdocs/kazdocs-platform/internal/http/middleware"
	"github.com/kazdocs/kazdocs-platform/internal/observability/metrics"
	"github.com/kazdocs/kazdocs-platform/internal/subscriptions"
	"github.com/kazdocs/kazdocs-platform/internal/users"
	"github.com/kazdocs/kazdocs-platform/pkg/logging"
)

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Config holds router configuration
type Config struct {
	Logger               *logging.Logger
	ContactsHandler      *contacts.Handler
	SubscriptionsHandler *subscriptions.Handler
	UsersHandler         *users.Handler
	RegisterLimiter      *httpmiddleware.RateLimiter
	LoginLimiter         *httpmiddleware.RateLimiter
	AdminAuthSecret      string
	MetricsHandler       http.Handler
	StatsGatherer        prometheus.Gatherer
	CORSAllowedOrigins   []string
	HealthChecks         map[string]HealthCheck
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Group(func(public chi.Router) {
		public.Get("/health", healthHandler(cfg.HealthChecks))
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
		public.Route("/api", func(api chi.Router) {
			if cfg.ContactsHandler != nil {
				var limits []func(http.Handler) http.Handler
				if cfg.RegisterLimiter != nil {
					limits = append(limits, httpmiddleware.RateLimit(cfg.RegisterLimiter))
				}
				api.With(limits...).Post("/register", cfg.ContactsHandler.Register)
			}
			if cfg.SubscriptionsHandler != nil {
				api.Get("/subscription-types", cfg.SubscriptionsHandler.List)
			}
		})
	})

	if cfg.AdminAuthSecret != "" {
		r.Route("/admin", func(root chi.Router) {
			if cfg.UsersHandler != nil {
				var limits []func(http.Handler) http.Handler
				if cfg.LoginLimiter != nil {
					limits = append(limits, httpmiddleware.RateLimit(cfg.LoginLimiter))
				}
				root.With(limits...).Post("/login", cfg.UsersHandler.Login)
			}
			root.Group(func(admin chi.Router) {
				admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
				if cfg.ContactsHandler != nil {
					admin.Route("/contacts", func(r chi.Router) {
						r.Get("/", cfg.ContactsHandler.ListContacts)
						r.Get("/{contactID}", cfg.ContactsHandler.GetContact)
						r.Patch("/{contactID}/status", cfg.ContactsHandler.UpdateStatus)
					})
				}
				if cfg.SubscriptionsHandler != nil {
					admin.Route("/subscription-types", func(r chi.Router) {
						r.Post("/", cfg.SubscriptionsHandler.Create)
						r.Delete("/{typeID}", cfg.SubscriptionsHandler.Delete)
					})
				}
				admin.Get("/stats", statsHandler(cfg.StatsGatherer))
				if cfg.UsersHandler != nil {
					admin.Route("/users", func(r chi.Router) {
						r.Get("/", cfg.UsersHandler.List)
						r.Post("/", cfg.UsersHandler.Create)
						r.Delete("/{userID}", cfg.UsersHandler.Delete)
					})
				}
			})
		})
	}

	return r
}

func statsHandler(gatherer prometheus.Gatherer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(metrics.SnapshotIntake(gatherer))
	}
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		resp := healthResponse{Status: "ok"}
		status := http.StatusOK
		if len(checks) > 0 {
			resp.Checks = make(map[string]string, len(checks))
		}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				resp.Checks[name] = err.Error()
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "ok"
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(resp)
	}
}
