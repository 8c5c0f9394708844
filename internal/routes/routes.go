package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/melizondo/voltcart/internal/auth"
	"github.com/melizondo/voltcart/internal/handlers"
	"github.com/melizondo/voltcart/internal/middleware"
)

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	authHandler *handlers.AuthHandler,
	challengeHandler *handlers.ChallengeHandler,
	orderHandler *handlers.OrderHandler,
	adminHandler *handlers.AdminHandler,
	tokenManager *auth.TokenManager,
	events auth.EventRecorder,
) {
	authLimit := middleware.DefaultAuthRateLimit()
	checkoutLimit := middleware.DefaultCheckoutRateLimit()

	// Public routes - no authentication required
	router.With(middleware.RateLimitByIP(authLimit)).Post("/auth/login", authHandler.Login)
	router.With(middleware.RateLimitByIP(authLimit)).Get("/checkout/challenge", challengeHandler.New)
	router.With(middleware.RateLimitByIP(checkoutLimit)).Post("/checkout/orders", orderHandler.Checkout)

	// Admin routes - authenticated, admin role only
	router.Group(func(r chi.Router) {
		r.Use(auth.Middleware(tokenManager, events))
		r.Use(auth.RequireRole("admin", events))

		r.Post("/admin/orders", adminHandler.CreateOrder)
		r.Get("/admin/orders", adminHandler.ListOrders)
		r.Get("/admin/attempts", adminHandler.GetAttemptStatus)
		r.Get("/admin/security-events", adminHandler.ListSecurityEvents)
		r.Get("/admin/security-events/export", adminHandler.ExportSecurityEvents)
		r.Post("/admin/mfa/setup", adminHandler.SetupMFA)
		r.Post("/admin/mfa/activate", adminHandler.ActivateMFA)
	})
}
