package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/faithcal/faithcal/app/controllers"
)

// Router installs one group of routes on the app.
type Router interface {
	InstallRouter(app *fiber.App)
}

func InstallRouter(app *fiber.App, billing *controllers.BillingController) {
	// Install HttpRouter first to initialize session store, oauth providers,
	// and the global UserContext middleware. Then register API routes which
	// depend on that middleware.
	setup(app, NewHttpRouter(billing), NewApiRouter(billing))
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
