package controllers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/sujit-baniya/flash"

	"github.com/faithcal/faithcal/internal/pkg/env"
	"github.com/faithcal/faithcal/internal/pkg/usercontext"
)

const mainLayout = "layouts/main"

// renderPage renders view inside the main layout together with the values
// every page template reads.
func renderPage(c *fiber.Ctx, view, title string, data fiber.Map) error {
	if data == nil {
		data = fiber.Map{}
	}
	data["Title"] = title
	data["User"] = usercontext.GetUserContext(c)
	data["Flash"] = flash.Get(c)
	data["IsDev"] = env.IsDev()
	if token, ok := c.Locals("csrf").(string); ok {
		data["CSRF"] = token
	}

	return c.Render(view, data, mainLayout)
}

func isLoggedIn(c *fiber.Ctx) bool {
	var fromProtected bool
	if protectedValue := c.Locals(FROM_PROTECTED); protectedValue != nil {
		fromProtected, _ = protectedValue.(bool)
	}

	return fromProtected
}

// ExtractUsername gets the username from Locals (set by middleware)
func ExtractUsername(c *fiber.Ctx) string {
	if userNameValue := c.Locals(USER_NAME); userNameValue != nil {
		if userName, ok := userNameValue.(string); ok {
			return userName
		}
	}

	return ""
}

// paramID parses a positive numeric route parameter.
func paramID(c *fiber.Ctx, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Params(name), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

func jsonError(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"error":   code,
		"message": message,
	})
}
