package router

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/csrf"

	"github.com/faithcal/faithcal/app/controllers"
	"github.com/faithcal/faithcal/internal/pkg/env"
	"github.com/faithcal/faithcal/internal/pkg/middleware"
)

func (h HttpRouter) registerCSRFProtectedRoutes(app *fiber.App) {
	csrfConf := csrf.Config{
		KeyLookup:      "form:_csrf",
		ContextKey:     "csrf",
		CookieName:     "csrf_",
		CookieSameSite: "Lax",
		Expiration:     1 * time.Hour,
		CookieSecure:   !env.IsDev(),
		Next: func(c *fiber.Ctx) bool {
			return strings.HasPrefix(c.Path(), "/api/")
		},
	}

	group := app.Group("", cors.New(), csrf.New(csrfConf))
	group.Get("/", controllers.HandleStart)
	group.Get("/login", controllers.HandleAuthLogin)
	group.Post("/login", controllers.HandleAuthLogin)
	group.Get("/register", controllers.HandleAuthRegister)
	group.Post("/register", controllers.HandleAuthRegister)
	group.Get("/dashboard", middleware.RequireAuth, controllers.HandleDashboard)
	group.Get("/premium", controllers.HandlePremiumPage)
}
