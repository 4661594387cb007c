package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/faithcal/faithcal/app/controllers"
	"github.com/faithcal/faithcal/internal/pkg/metrics"
	"github.com/faithcal/faithcal/internal/pkg/middleware"
	"github.com/faithcal/faithcal/internal/pkg/oauth"
	"github.com/faithcal/faithcal/internal/pkg/session"
)

type HttpRouter struct {
	billing *controllers.BillingController
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	// init session
	if session.GetSessionStore() == nil {
		session.NewSessionStore()
	}

	// init oauth providers
	oauth.Setup()

	app.Use(metrics.Middleware())

	// Apply UserContext middleware globally as first middleware
	app.Use(middleware.UserContextMiddleware)

	h.registerPublicRoutes(app)
	h.registerCSRFProtectedRoutes(app)
}

func NewHttpRouter(billing *controllers.BillingController) *HttpRouter {
	return &HttpRouter{billing: billing}
}
