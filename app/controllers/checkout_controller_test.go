package controllers

import (
	"net/http"
	"strconv"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82"
	"gorm.io/gorm"

	"github.com/faithcal/faithcal/internal/pkg/billing"
)

type fakeCheckoutSessions struct {
	calls  int
	params *stripe.CheckoutSessionParams
}

func (f *fakeCheckoutSessions) New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	f.calls++
	f.params = params
	return &stripe.CheckoutSession{ID: "cs_test_ctrl", URL: "https://checkout.stripe.com/c/pay/cs_test_ctrl"}, nil
}

func newCheckoutApp(t *testing.T, db *gorm.DB, cfg billing.Config) (*fiber.App, *fakeCheckoutSessions) {
	t.Helper()
	sessions := &fakeCheckoutSessions{}
	gateway := billing.NewGateway(sessions, billing.NewRepository(db), cfg)
	return checkoutApp(NewBillingController(billing.NewVerifier(cfg.WebhookSecret), nil, gateway)), sessions
}

func checkoutApp(ctrl *BillingController) *fiber.App {
	app := fiber.New()
	app.Use(withTestUser)
	app.Post("/api/stripe/create-checkout", ctrl.HandleCreateCheckout)
	app.Post("/api/stripe/create-premium-checkout", ctrl.HandleCreatePremiumCheckout)
	return app
}

func checkoutTestConfig() billing.Config {
	return billing.Config{
		SecretKey:      "sk_test",
		WebhookSecret:  testWebhookSecret,
		PremiumPriceID: "price_premium",
		Currency:       "usd",
		BaseURL:        "https://faithcal.test",
	}
}

func TestHandleCreateCheckout_RequiresLogin(t *testing.T) {
	db := setupTestEnv(t)
	app, sessions := newCheckoutApp(t, db, checkoutTestConfig())

	req := jsonRequest(t, http.MethodPost, "/api/stripe/create-checkout", map[string]interface{}{"eventId": 1, "placementType": "homepage"})
	resp, body := doRequest(t, app, req)

	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "unauthorized", body["error"])
	assert.Zero(t, sessions.calls)
}

func TestHandleCreateCheckout_Validation(t *testing.T) {
	db := setupTestEnv(t)
	app, sessions := newCheckoutApp(t, db, checkoutTestConfig())
	user := createUser(t, db, "buyer@example.com", false)
	event := createEvent(t, db, user)

	tests := []struct {
		name    string
		body    map[string]interface{}
		status  int
		message string
	}{
		{
			name:    "missing placement type",
			body:    map[string]interface{}{"eventId": event.ID},
			status:  fiber.StatusBadRequest,
			message: "Event ID and placement type are required",
		},
		{
			name:    "missing event id",
			body:    map[string]interface{}{"placementType": "homepage"},
			status:  fiber.StatusBadRequest,
			message: "Event ID and placement type are required",
		},
		{
			name:    "non numeric event id",
			body:    map[string]interface{}{"eventId": "abc", "placementType": "homepage"},
			status:  fiber.StatusBadRequest,
			message: "Invalid request body",
		},
		{
			name:    "zero event id",
			body:    map[string]interface{}{"eventId": 0, "placementType": "homepage"},
			status:  fiber.StatusBadRequest,
			message: "Invalid event ID",
		},
		{
			name:    "unknown tier",
			body:    map[string]interface{}{"eventId": event.ID, "placementType": "billboard"},
			status:  fiber.StatusBadRequest,
			message: "Invalid placement type",
		},
		{
			name:    "unknown event",
			body:    map[string]interface{}{"eventId": event.ID + 100, "placementType": "homepage"},
			status:  fiber.StatusNotFound,
			message: "Event not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := asUser(jsonRequest(t, http.MethodPost, "/api/stripe/create-checkout", tt.body), user)
			resp, body := doRequest(t, app, req)

			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, tt.message, body["message"])
		})
	}
	assert.Zero(t, sessions.calls)
}

func TestHandleCreateCheckout_Success(t *testing.T) {
	db := setupTestEnv(t)
	app, sessions := newCheckoutApp(t, db, checkoutTestConfig())
	user := createUser(t, db, "member@example.com", true)
	event := createEvent(t, db, user)

	req := asUser(jsonRequest(t, http.MethodPost, "/api/stripe/create-checkout", map[string]interface{}{
		"eventId":       event.ID,
		"placementType": "homepage",
	}), user)
	resp, body := doRequest(t, app, req)

	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "cs_test_ctrl", body["sessionId"])
	assert.Equal(t, "https://checkout.stripe.com/c/pay/cs_test_ctrl", body["url"])
	// premium members pay the discounted price
	assert.Equal(t, float64(4000), body["amountCents"])

	require.Equal(t, 1, sessions.calls)
	intent, err := billing.DecodeCheckoutIntent(sessions.params.Metadata)
	require.NoError(t, err)
	placement, ok := intent.(billing.PlacementIntent)
	require.True(t, ok)
	assert.Equal(t, event.ID, placement.EventID)
	assert.Equal(t, user.ID, placement.UserID)
}

func TestHandleCreateCheckout_AcceptsStringEventID(t *testing.T) {
	db := setupTestEnv(t)
	app, sessions := newCheckoutApp(t, db, checkoutTestConfig())
	user := createUser(t, db, "buyer@example.com", false)
	event := createEvent(t, db, user)

	req := asUser(jsonRequest(t, http.MethodPost, "/api/stripe/create-checkout", map[string]interface{}{
		"eventId":       strconv.FormatUint(uint64(event.ID), 10),
		"placementType": "search",
	}), user)
	resp, body := doRequest(t, app, req)

	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(2000), body["amountCents"])
	assert.Equal(t, 1, sessions.calls)
}

func TestHandleCreatePremiumCheckout(t *testing.T) {
	t.Run("requires login", func(t *testing.T) {
		db := setupTestEnv(t)
		app, _ := newCheckoutApp(t, db, checkoutTestConfig())

		resp, _ := doRequest(t, app, jsonRequest(t, http.MethodPost, "/api/stripe/create-premium-checkout", map[string]interface{}{}))
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("creates subscription session", func(t *testing.T) {
		db := setupTestEnv(t)
		app, sessions := newCheckoutApp(t, db, checkoutTestConfig())
		user := createUser(t, db, "member@example.com", false)

		req := asUser(jsonRequest(t, http.MethodPost, "/api/stripe/create-premium-checkout", map[string]interface{}{}), user)
		resp, body := doRequest(t, app, req)

		require.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.Equal(t, "cs_test_ctrl", body["sessionId"])
		require.NotNil(t, sessions.params)
		assert.Equal(t, string(stripe.CheckoutSessionModeSubscription), *sessions.params.Mode)
	})

	t.Run("price not configured", func(t *testing.T) {
		db := setupTestEnv(t)
		cfg := checkoutTestConfig()
		cfg.PremiumPriceID = ""
		app, sessions := newCheckoutApp(t, db, cfg)
		user := createUser(t, db, "member@example.com", false)

		req := asUser(jsonRequest(t, http.MethodPost, "/api/stripe/create-premium-checkout", map[string]interface{}{}), user)
		resp, body := doRequest(t, app, req)

		assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
		assert.Equal(t, "not_configured", body["error"])
		assert.Zero(t, sessions.calls)
	})
}

func TestHandleCreateCheckout_GatewayNotConfigured(t *testing.T) {
	db := setupTestEnv(t)
	app := checkoutApp(NewBillingController(billing.NewVerifier(testWebhookSecret), nil, nil))
	user := createUser(t, db, "buyer@example.com", false)
	event := createEvent(t, db, user)

	req := asUser(jsonRequest(t, http.MethodPost, "/api/stripe/create-checkout", map[string]interface{}{
		"eventId":       event.ID,
		"placementType": "homepage",
	}), user)
	resp, body := doRequest(t, app, req)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "checkout_failed", body["error"])

	resp, body = doRequest(t, app, asUser(jsonRequest(t, http.MethodPost, "/api/stripe/create-premium-checkout", map[string]interface{}{}), user))
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "checkout_failed", body["error"])
}

func TestNewStripeGatewayWithoutSecretKey(t *testing.T) {
	cfg := checkoutTestConfig()
	cfg.SecretKey = ""
	gateway, err := billing.NewStripeGateway(cfg, nil)
	assert.Nil(t, gateway)
	assert.ErrorIs(t, err, billing.ErrNotConfigured)
}
