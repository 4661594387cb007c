package controllers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/faithcal/faithcal/app/models"
	"github.com/faithcal/faithcal/app/repository"
	"github.com/faithcal/faithcal/internal/pkg/entitlements"
	"github.com/faithcal/faithcal/internal/pkg/usercontext"
)

const recentPaymentsLimit = 5

// HandleGetUserAccount returns account information for the session user.
func HandleGetUserAccount(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return jsonError(c, fiber.StatusUnauthorized, "unauthorized", "Missing or invalid authentication")
	}

	repos := repository.GetGlobalRepositories()
	account, err := repos.User.GetByID(userCtx.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusNotFound, "not_found", "User not found")
		}
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load user")
	}

	paymentCount, err := repos.Payment.CountByUser(account.ID)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load payments")
	}

	plan := entitlements.PlanFor(account.IsPremium)
	prices := fiber.Map{}
	for _, tier := range entitlements.Tiers() {
		prices[string(tier)] = tier.PriceCents(plan)
	}

	return c.JSON(fiber.Map{
		"id":                     account.ID,
		"name":                   account.Name,
		"email":                  account.Email,
		"isPremium":              account.IsPremium,
		"plan":                   plan,
		"is_admin":               account.Role == models.ROLE_ADMIN,
		"created_at":             account.CreatedAt.UTC().Format(time.RFC3339),
		"last_login_at":          formatTimePtr(account.LastLoginAt),
		"payments":               paymentCount,
		"placement_prices_cents": prices,
	})
}

// HandleGetUserPayments lists the session user's most recent payments.
func HandleGetUserPayments(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return jsonError(c, fiber.StatusUnauthorized, "unauthorized", "Missing or invalid authentication")
	}

	payments, err := repository.GetGlobalFactory().GetPaymentRepository().ListRecentByUser(userCtx.UserID, recentPaymentsLimit)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load payments")
	}

	items := make([]fiber.Map, 0, len(payments))
	for _, p := range payments {
		item := fiber.Map{
			"id":           p.ID,
			"amount":       p.Amount,
			"currency":     p.Currency,
			"status":       p.Status,
			"payment_type": p.PaymentType,
			"event_id":     p.EventID,
			"event_title":  nil,
			"created_at":   p.CreatedAt.UTC().Format(time.RFC3339),
		}
		if p.Event != nil {
			item["event_title"] = p.Event.Title
		}
		items = append(items, item)
	}

	return c.JSON(fiber.Map{"payments": items})
}

func formatTimePtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}
