package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/wellness-commerce-bot/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/wellness-commerce-bot/internal/http/middleware"
	"github.com/wolfman30/wellness-commerce-bot/internal/storefront"
	"github.com/wolfman30/wellness-commerce-bot/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger         *logging.Logger
	Health         http.Handler
	Storefront     *storefront.Handler
	Inbound        http.Handler
	Admin          *handlers.AdminHandler
	AdminJWTSecret string
	MetricsHandler http.Handler

	// WebhookLimiter throttles /webhook and /incoming per client IP. Optional.
	WebhookLimiter *httpmiddleware.RateLimiter
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	health := cfg.Health
	if health == nil {
		health = handlers.NewHealthHandler(nil, cfg.Logger)
	}
	r.Method(http.MethodGet, "/health", health)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	r.Group(func(hooks chi.Router) {
		if cfg.WebhookLimiter != nil {
			hooks.Use(httpmiddleware.RateLimit(cfg.WebhookLimiter, httpmiddleware.ClientIP))
		}
		if cfg.Storefront != nil {
			hooks.Get("/webhook", cfg.Storefront.Liveness)
			hooks.Post("/webhook", cfg.Storefront.Receive)
		}
		if cfg.Inbound != nil {
			hooks.Method(http.MethodPost, "/incoming", cfg.Inbound)
		}
	})

	// Admin routes exist only when a signing secret is configured.
	if cfg.Admin != nil && cfg.AdminJWTSecret != "" {
		r.Route("/admin", func(admin chi.Router) {
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminJWTSecret))
			admin.Get("/followups", cfg.Admin.ListFollowups)
			admin.Get("/slots", cfg.Admin.PreviewSlots)
			admin.Post("/bookings", cfg.Admin.CreateBooking)
			admin.Get("/collisions", cfg.Admin.ListCollisions)
		})
	}

	return r
}
