package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/faithcal/faithcal/app/controllers"
	"github.com/faithcal/faithcal/internal/pkg/middleware"
)

type ApiRouter struct {
	billing *controllers.BillingController
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New())
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	// Events (guests may post; ownership is checked on update)
	api.Post("/events", controllers.HandleCreateEvent)
	api.Get("/events/:id", controllers.HandleGetEvent)
	api.Put("/events/:id", controllers.HandleUpdateEvent)

	// Checkout
	stripeGroup := api.Group("/stripe", middleware.RequireAPISessionAuth)
	stripeGroup.Post("/create-checkout", h.billing.HandleCreateCheckout)
	stripeGroup.Post("/create-premium-checkout", h.billing.HandleCreatePremiumCheckout)

	// API v1
	v1 := api.Group("/v1", middleware.RequireAPISessionAuth)
	v1.Get("/user/account", controllers.HandleGetUserAccount)
	v1.Get("/user/payments", controllers.HandleGetUserPayments)
}

func NewApiRouter(billing *controllers.BillingController) *ApiRouter {
	return &ApiRouter{billing: billing}
}
