package router

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"mobile-payment-backend/internal/config"
	"mobile-payment-backend/internal/handler"
	"mobile-payment-backend/internal/metrics"
	"mobile-payment-backend/internal/middleware"
)

type Handlers struct {
	Auth    *handler.AuthHandler
	User    *handler.UserHandler
	Payment *handler.PaymentHandler
	Product *handler.ProductHandler
	Pages   *handler.PagesHandler
}

// New builds the route table. m may be nil when metrics are disabled.
func New(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics, authMiddleware *middleware.AuthMiddleware, h Handlers) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logging(logger))
	r.Use(middleware.Metrics(m))
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(middleware.SecurityHeaders)

	r.Get("/health", handler.Health)
	r.Get("/checkout", h.Pages.Checkout)
	r.Get("/payments/complete", h.Pages.Complete)
	if cfg.MetricsEnabled && m != nil {
		r.Method(http.MethodGet, "/metrics", m.Handler())
	}

	r.Route("/api", func(api chi.Router) {
		api.Use(middleware.Timeout(cfg.RequestTimeout))

		api.Get("/health", handler.Health)

		api.Route("/auth", func(auth chi.Router) {
			auth.With(authMiddleware.OptionalAuth).Post("/signup", h.Auth.Signup)
			auth.Post("/login", h.Auth.Login)
			auth.Post("/logout", h.Auth.Logout)
			auth.Post("/refresh", h.Auth.Refresh)
			auth.With(authMiddleware.RequireAuth).Get("/me", h.Auth.Me)
			auth.With(authMiddleware.RequireAuth).Put("/me", h.Auth.UpdateMe)
			auth.With(authMiddleware.OptionalAuth).Get("/verify", h.Auth.Verify)

			auth.Route("/users", func(users chi.Router) {
				users.Use(authMiddleware.RequireAdmin)
				users.Get("/", h.User.List)
				users.Get("/{id}", h.User.Get)
				users.Put("/{id}", h.User.Update)
				users.Delete("/{id}", h.User.Delete)
			})
		})

		api.Post("/scan", h.Product.Scan)
		api.Get("/products", h.Product.List)
		api.Get("/products/{barcode}", h.Product.Get)
		api.Get("/products/{barcode}/stock", h.Product.Stock)

		api.Route("/payments", func(payments chi.Router) {
			payments.With(authMiddleware.OptionalAuth).Post("/", h.Payment.Create)
			payments.With(authMiddleware.RequireAuth).Get("/", h.Payment.List)
			payments.Post("/callback", h.Payment.Callback)
			payments.Get("/{id}", h.Payment.Status)
			payments.With(authMiddleware.RequireAdmin).Post("/{id}/approve", h.Payment.Approve)
			payments.With(authMiddleware.RequireAuth).Post("/{id}/cancel", h.Payment.Cancel)
		})
	})

	return r
}
