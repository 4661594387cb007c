package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/faithcal/faithcal/app/repository"
	"github.com/faithcal/faithcal/internal/pkg/entitlements"
	"github.com/faithcal/faithcal/internal/pkg/usercontext"
)

// placementOption is one tier as offered to the current viewer.
type placementOption struct {
	Tier       string
	Label      string
	Price      string
	ListPrice  string
	Discounted bool
}

func placementOptions(plan entitlements.Plan) []placementOption {
	options := make([]placementOption, 0, len(entitlements.Tiers()))
	for _, tier := range entitlements.Tiers() {
		price := tier.PriceCents(plan)
		options = append(options, placementOption{
			Tier:       string(tier),
			Label:      tier.Label(),
			Price:      entitlements.FormatCents(price),
			ListPrice:  entitlements.FormatCents(tier.BasePriceCents()),
			Discounted: price != tier.BasePriceCents(),
		})
	}
	return options
}

// paymentNotice turns the checkout redirect query into a banner.
func paymentNotice(c *fiber.Ctx, success, cancelled string) fiber.Map {
	switch c.Query("payment") {
	case "success":
		return fiber.Map{"type": "success", "message": success}
	case "cancelled":
		return fiber.Map{"type": "info", "message": cancelled}
	}
	return nil
}

func HandleStart(c *fiber.Ctx) error {
	return renderPage(c, "home", "", fiber.Map{
		"LoggedIn":   isLoggedIn(c),
		"Placements": placementOptions(entitlements.PlanFor(usercontext.IsPremium(c))),
		"Discount":   entitlements.PremiumPlacementDiscountPercent,
	})
}

// HandleEventPage shows an event and, to its owner, the placement options.
func HandleEventPage(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return fiber.ErrNotFound
	}

	event, err := repository.GetGlobalFactory().GetEventRepository().GetWithDetails(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.ErrNotFound
		}
		return err
	}

	userCtx := usercontext.GetUserContext(c)
	canEdit := userCtx.IsLoggedIn && event.IsOwnedBy(userCtx.UserID)

	return renderPage(c, "events/show", event.Title, fiber.Map{
		"Event":      event,
		"CanEdit":    canEdit,
		"CanPromote": canEdit && !event.IsPrimePlacement,
		"Placements": placementOptions(entitlements.PlanFor(userCtx.IsPremium)),
		"Notice": paymentNotice(c,
			"Thank you! Your prime placement is active as soon as the payment is confirmed.",
			"Payment cancelled. Your event was not promoted."),
	})
}
