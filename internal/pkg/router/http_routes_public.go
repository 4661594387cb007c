package router

import (
	"github.com/gofiber/fiber/v2"
	gothfiber "github.com/shareed2k/goth_fiber"

	"github.com/faithcal/faithcal/app/controllers"
	"github.com/faithcal/faithcal/internal/pkg/metrics"
	"github.com/faithcal/faithcal/internal/pkg/middleware"
)

func (h HttpRouter) registerPublicRoutes(app *fiber.App) {
	// Prometheus exposition
	app.Get("/metrics/prometheus", metrics.Handler())

	// Auth
	app.Post("/logout", middleware.RequireAuth, controllers.HandleAuthLogout)

	// Social OAuth
	app.Get("/auth/:provider", gothfiber.BeginAuthHandler)
	app.Get("/auth/:provider/callback", controllers.HandleOAuthCallback)

	// Stripe webhooks (no CSRF, signature-verified in controller). Registered
	// before the API group so the rate limiter never rejects a delivery.
	app.Post("/webhooks/stripe", h.billing.HandleStripeWebhook)
	app.Post("/api/stripe/webhook", h.billing.HandleStripeWebhook)

	// Public event pages
	app.Get("/events/:id", controllers.HandleEventPage)
}
