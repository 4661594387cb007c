package usercontext

import "github.com/gofiber/fiber/v2"

// UserContext represents the complete user context for a request
type UserContext struct {
	UserID     uint   `json:"user_id"`
	Username   string `json:"username"`
	IsLoggedIn bool   `json:"is_logged_in"`
	IsAdmin    bool   `json:"is_admin"`
	IsPremium  bool   `json:"is_premium"`
}

// GetUserContext retrieves the user context from fiber context
// Returns a default anonymous context if none is set
func GetUserContext(c *fiber.Ctx) UserContext {
	if ctx, ok := c.Locals(KeyContext).(UserContext); ok {
		return ctx
	}
	return UserContext{IsLoggedIn: false, IsAdmin: false}
}

// SetUserContext stores ctx on the request together with the flat locals
// older handlers read.
func SetUserContext(c *fiber.Ctx, ctx UserContext) {
	c.Locals(KeyContext, ctx)
	c.Locals(KeyFromProtected, ctx.IsLoggedIn)
	c.Locals(KeyIsAdmin, ctx.IsAdmin)
	c.Locals(KeyIsPremium, ctx.IsPremium)
	if ctx.IsLoggedIn {
		c.Locals(KeyUserID, ctx.UserID)
		c.Locals(KeyUsername, ctx.Username)
	}
}

// IsLoggedIn checks if the current user is logged in
func IsLoggedIn(c *fiber.Ctx) bool {
	return GetUserContext(c).IsLoggedIn
}

// IsPremium checks if the current user holds the premium membership
func IsPremium(c *fiber.Ctx) bool {
	return GetUserContext(c).IsPremium
}

// GetUserID returns the current user's ID, or 0 if not logged in
func GetUserID(c *fiber.Ctx) uint {
	return GetUserContext(c).UserID
}

// GetUsername returns the current user's username, or empty string if not logged in
func GetUsername(c *fiber.Ctx) string {
	return GetUserContext(c).Username
}
