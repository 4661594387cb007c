package controllers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/sujit-baniya/flash"
	"gorm.io/gorm"

	"github.com/faithcal/faithcal/app/models"
	"github.com/faithcal/faithcal/app/repository"
	"github.com/faithcal/faithcal/internal/pkg/env"
	"github.com/faithcal/faithcal/internal/pkg/hcaptcha"
	"github.com/faithcal/faithcal/internal/pkg/oauth"
	"github.com/faithcal/faithcal/internal/pkg/session"
	"github.com/faithcal/faithcal/internal/pkg/usercontext"
)

const (
	AUTH_KEY       string = usercontext.AuthKey
	USER_ID        string = usercontext.KeyUserID
	USER_NAME      string = usercontext.KeyUsername
	USER_IS_ADMIN  string = usercontext.KeyIsAdmin
	FROM_PROTECTED string = usercontext.KeyFromProtected
)

const loginFailedMessage = "There is a problem with the login process"

func HandleAuthLogin(c *fiber.Ctx) error {
	if c.Method() == fiber.MethodPost {
		fm := fiber.Map{
			"type": "error",
		}

		// notice: in production you should not inform the user
		// with detailed messages about login failures
		users := repository.GetGlobalFactory().GetUserRepository()
		user, err := users.GetByEmail(c.FormValue("email"))
		if err != nil || !user.IsActive() || !user.CheckPassword(c.FormValue("password")) {
			fm["message"] = loginFailedMessage

			return flash.WithError(c, fm).Redirect("/login")
		}

		if err := startSession(c, user); err != nil {
			fm["message"] = fmt.Sprintf("something went wrong: %s", err)

			return flash.WithError(c, fm).Redirect("/login")
		}

		if err := users.UpdateLastLogin(user.ID); err != nil {
			log.Warnf("[Auth] Failed to update last login for user %d: %v", user.ID, err)
		}

		fm = fiber.Map{
			"type":    "success",
			"message": "Welcome back, " + user.Name + "!",
		}

		return flash.WithSuccess(c, fm).Redirect("/dashboard")
	}

	return renderPage(c, "auth/login", "Log in", fiber.Map{
		"GoogleEnabled": oauth.Enabled(),
	})
}

func HandleAuthLogout(c *fiber.Ctx) error {
	fm := fiber.Map{
		"type": "error",
	}

	sess, err := session.GetSessionStore().Get(c)
	if err != nil {
		fm["message"] = "logged out (no sess)"

		return flash.WithError(c, fm).Redirect("/login")
	}

	if err := sess.Destroy(); err != nil {
		fm["message"] = fmt.Sprintf("something went wrong: %s", err)

		return flash.WithError(c, fm).Redirect("/login")
	}

	fm = fiber.Map{
		"type":    "success",
		"message": "You have been logged out.",
	}

	usercontext.SetUserContext(c, usercontext.UserContext{})

	return flash.WithSuccess(c, fm).Redirect("/login")
}

func HandleAuthRegister(c *fiber.Ctx) error {
	if c.Method() == fiber.MethodPost {
		if hcaptcha.Enabled() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			valid, err := hcaptcha.Verify(ctx, c.FormValue("h-captcha-response"))
			cancel()
			if err != nil || !valid {
				errorMsg := "Captcha validation failed. Please try again."
				if err != nil {
					if env.IsDev() {
						errorMsg = fmt.Sprintf("Captcha validation failed: %v", err)
					}
					log.Warnf("[Auth] hCaptcha validation error: %v", err)
				}

				return flash.WithError(c, fiber.Map{"type": "error", "message": errorMsg}).Redirect("/register")
			}
		}

		email := strings.ToLower(strings.TrimSpace(c.FormValue("email")))
		users := repository.GetGlobalFactory().GetUserRepository()
		if _, err := users.GetByEmail(email); err == nil {
			return flash.WithError(c, fiber.Map{
				"type":    "error",
				"message": "An account with this email already exists",
			}).Redirect("/register")
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return flash.WithError(c, fiber.Map{
				"type":    "error",
				"message": fmt.Sprintf("something went wrong: %s", err),
			}).Redirect("/register")
		}

		user, err := models.CreateUser(strings.TrimSpace(c.FormValue("username")), email, c.FormValue("password"))
		if err != nil {
			fm := fiber.Map{
				"type":    "error",
				"message": fmt.Sprintf("something went wrong: %s", err),
			}

			return flash.WithError(c, fm).Redirect("/register")
		}

		if err := users.Create(user); err != nil {
			fm := fiber.Map{
				"type":    "error",
				"message": fmt.Sprintf("something went wrong: %s", err),
			}

			return flash.WithError(c, fm).Redirect("/register")
		}

		fm := fiber.Map{
			"type":    "success",
			"message": "Your account is ready. Please log in.",
		}

		return flash.WithSuccess(c, fm).Redirect("/login")
	}

	return renderPage(c, "auth/register", "Register", fiber.Map{
		"HCaptchaSiteKey": hcaptcha.SiteKey(),
		"HCaptchaEnabled": hcaptcha.Enabled(),
	})
}

// startSession stores the login in the user's session. The premium flag is
// not part of it; the user context middleware reads that fresh.
func startSession(c *fiber.Ctx, user *models.User) error {
	sess, err := session.GetSessionStore().Get(c)
	if err != nil {
		return err
	}
	sess.Set(AUTH_KEY, true)
	sess.Set(USER_ID, user.ID)
	sess.Set(USER_NAME, user.Name)
	sess.Set(USER_IS_ADMIN, user.Role == models.ROLE_ADMIN)

	return sess.Save()
}
