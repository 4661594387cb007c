package controllers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/faithcal/faithcal/internal/pkg/billing"
)

const webhookTimeout = 15 * time.Second

// BillingController serves the Stripe webhook and checkout endpoints. Its
// verifier, reconciler and gateway are built once at startup and shared by
// every request.
type BillingController struct {
	verifier *billing.Verifier
	service  *billing.Service
	// gateway is nil when no Stripe secret key is configured.
	gateway *billing.Gateway
}

func NewBillingController(verifier *billing.Verifier, service *billing.Service, gateway *billing.Gateway) *BillingController {
	return &BillingController{
		verifier: verifier,
		service:  service,
		gateway:  gateway,
	}
}

// HandleStripeWebhook verifies a Stripe delivery and reconciles it into
// entitlements and the payment ledger.
func (bc *BillingController) HandleStripeWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)
	signature := strings.TrimSpace(c.Get("Stripe-Signature"))

	event, err := bc.verifier.Verify(rawBody, signature)
	if err != nil {
		if errors.Is(err, billing.ErrMissingSignature) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "missing_signature"})
		}
		log.Warnf("[Billing] Rejected webhook delivery: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_signature"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), webhookTimeout)
	defer cancel()

	res, err := bc.service.HandleEvent(ctx, event, rawBody)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "webhook_persist_failed"})
	}

	switch res.Outcome {
	case billing.OutcomeDuplicate:
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"received": true, "duplicate": true})
	case billing.OutcomeAnomaly:
		if errors.Is(res.Reason, billing.ErrInvalidPayload) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_payload"})
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"received": true, "ignored": true})
	case billing.OutcomeIgnored:
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"received": true, "ignored": true})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"received": true})
}
