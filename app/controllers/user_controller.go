package controllers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/faithcal/faithcal/app/models"
	"github.com/faithcal/faithcal/app/repository"
	"github.com/faithcal/faithcal/internal/pkg/entitlements"
	"github.com/faithcal/faithcal/internal/pkg/usercontext"
)

const dashboardEventLimit = 50

// HandleDashboard lists the user's events and latest payments.
func HandleDashboard(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	repos := repository.GetGlobalRepositories()

	events, err := repos.Event.GetByUserID(userCtx.UserID, 0, dashboardEventLimit)
	if err != nil {
		log.Errorf("[Dashboard] Failed to load events for user %d: %v", userCtx.UserID, err)
		events = []models.Event{}
	}
	payments, err := repos.Payment.ListRecentByUser(userCtx.UserID, recentPaymentsLimit)
	if err != nil {
		log.Errorf("[Dashboard] Failed to load payments for user %d: %v", userCtx.UserID, err)
		payments = []models.Payment{}
	}

	return renderPage(c, "dashboard", "Dashboard", fiber.Map{
		"Username": ExtractUsername(c),
		"Events":   events,
		"Payments": payments,
	})
}

// HandlePremiumPage shows the membership state and the upgrade button.
func HandlePremiumPage(c *fiber.Ctx) error {
	return renderPage(c, "premium", "Premium", fiber.Map{
		"IsPremium": usercontext.IsPremium(c),
		"Discount":  entitlements.PremiumPlacementDiscountPercent,
		"Notice": paymentNotice(c,
			"Welcome to Premium! Your membership is active as soon as the payment is confirmed.",
			"Checkout cancelled. You can upgrade any time."),
	})
}
