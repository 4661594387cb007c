package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/faithcal/faithcal/app/repository"
	"github.com/faithcal/faithcal/internal/pkg/billing"
	"github.com/faithcal/faithcal/internal/pkg/entitlements"
	"github.com/faithcal/faithcal/internal/pkg/usercontext"
)

const checkoutTimeout = 20 * time.Second

type createCheckoutRequest struct {
	// EventID arrives as a JSON number or a numeric string.
	EventID       json.Number `json:"eventId" form:"eventId"`
	PlacementType string      `json:"placementType" form:"placementType"`
}

// HandleCreateCheckout starts a prime placement purchase for one of the
// event's tiers.
func (bc *BillingController) HandleCreateCheckout(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return jsonError(c, fiber.StatusUnauthorized, "unauthorized", "Unauthorized")
	}

	var req createCheckoutRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "Invalid request body")
	}
	rawID := strings.TrimSpace(req.EventID.String())
	if rawID == "" || strings.TrimSpace(req.PlacementType) == "" {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "Event ID and placement type are required")
	}
	eventID, err := strconv.ParseUint(rawID, 10, 64)
	if err != nil || eventID == 0 {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "Invalid event ID")
	}
	tier, err := entitlements.ParsePlacementTier(req.PlacementType)
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "Invalid placement type")
	}

	repos := repository.GetGlobalRepositories()
	event, err := repos.Event.GetByID(uint(eventID))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusNotFound, "not_found", "Event not found")
		}
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load event")
	}
	user, err := repos.User.GetByID(userCtx.UserID)
	if err != nil {
		return jsonError(c, fiber.StatusUnauthorized, "unauthorized", "Unauthorized")
	}

	if bc.gateway == nil {
		log.Error("[Checkout] Gateway unavailable: stripe secret key not configured")
		return jsonError(c, fiber.StatusInternalServerError, "checkout_failed", "Failed to create checkout session")
	}

	ctx, cancel := context.WithTimeout(context.Background(), checkoutTimeout)
	defer cancel()

	session, err := bc.gateway.CreatePlacementCheckout(ctx, user, event, tier)
	if err != nil {
		log.Errorf("[Checkout] Placement checkout for event %d failed: %v", event.ID, err)
		return jsonError(c, fiber.StatusInternalServerError, "checkout_failed", "Failed to create checkout session")
	}

	return c.JSON(session)
}

// HandleCreatePremiumCheckout starts the premium membership subscription.
func (bc *BillingController) HandleCreatePremiumCheckout(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return jsonError(c, fiber.StatusUnauthorized, "unauthorized", "Unauthorized")
	}

	user, err := repository.GetGlobalFactory().GetUserRepository().GetByID(userCtx.UserID)
	if err != nil {
		return jsonError(c, fiber.StatusUnauthorized, "unauthorized", "Unauthorized")
	}

	if bc.gateway == nil {
		log.Error("[Checkout] Gateway unavailable: stripe secret key not configured")
		return jsonError(c, fiber.StatusInternalServerError, "checkout_failed", "Failed to create checkout session")
	}

	ctx, cancel := context.WithTimeout(context.Background(), checkoutTimeout)
	defer cancel()

	session, err := bc.gateway.CreatePremiumCheckout(ctx, user)
	if err != nil {
		log.Errorf("[Checkout] Premium checkout for user %d failed: %v", user.ID, err)
		if errors.Is(err, billing.ErrNotConfigured) {
			return jsonError(c, fiber.StatusInternalServerError, "not_configured", "Premium price is not configured")
		}
		return jsonError(c, fiber.StatusInternalServerError, "checkout_failed", "Failed to create checkout session")
	}

	return c.JSON(session)
}
