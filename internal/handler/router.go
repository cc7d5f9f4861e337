package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/coursecart/fulfillment/internal/middleware"
	"github.com/coursecart/fulfillment/internal/model"
)

// RouterConfig collects the handlers and middleware settings for NewRouter.
type RouterConfig struct {
	Logger        *slog.Logger
	IsDevelopment bool
	MaxBodySize   int64

	Auth      middleware.AuthConfig
	RateLimit middleware.RateLimitConfig

	Health  *HealthHandler
	Orders  *OrderHandler
	Account *AccountHandler
	Admin   *AdminHandler
	APIKeys *APIKeyHandler
	// Metrics serves /metrics; nil leaves the route unregistered.
	Metrics http.Handler
}

// NewRouter builds the chi router for the fulfillment API.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recoverer(cfg.Logger))
	r.Use(middleware.SecureHeaders(cfg.IsDevelopment))
	if cfg.MaxBodySize > 0 {
		r.Use(middleware.MaxBodySize(cfg.MaxBodySize))
	}

	r.Get("/healthz", cfg.Health.Healthz)
	r.Get("/readyz", cfg.Health.Readyz)
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/razorpay-key", cfg.Orders.RazorpayKey)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.Auth))

			r.Group(func(r chi.Router) {
				r.Use(middleware.RateLimitOrders(cfg.RateLimit))
				r.Post("/create-order", cfg.Orders.CreateOrder)
				r.Post("/create-razorpay-order", cfg.Orders.CreateRazorpayOrder)
			})

			r.Get("/me", cfg.Account.Me)
			r.Get("/notifications", cfg.Account.Notifications)

			r.Route("/api-keys", func(r chi.Router) {
				r.Get("/", cfg.APIKeys.List)
				r.Post("/", cfg.APIKeys.Create)
				r.Delete("/{keyID}", cfg.APIKeys.Revoke)
			})

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(model.RoleAdmin))
				r.Get("/get-orders", cfg.Admin.GetOrders)
				r.Get("/admin/users/{userID}/api-keys", cfg.Admin.ListUserAPIKeys)
			})
		})
	})

	r.NotFound(NotFound)
	r.MethodNotAllowed(MethodNotAllowed)

	return r
}
