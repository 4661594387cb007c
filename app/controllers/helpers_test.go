package controllers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	fibersession "github.com/gofiber/fiber/v2/middleware/session"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82/webhook"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/faithcal/faithcal/app/models"
	"github.com/faithcal/faithcal/app/repository"
	"github.com/faithcal/faithcal/internal/pkg/cache"
	"github.com/faithcal/faithcal/internal/pkg/database"
	"github.com/faithcal/faithcal/internal/pkg/session"
	"github.com/faithcal/faithcal/internal/pkg/usercontext"
)

const (
	testWebhookSecret = "whsec_controller_test"
	testUserHeader    = "X-Test-User"
)

// setupTestEnv points the global DB, repositories, session store and cache at
// test doubles. The cache client is unreachable so every call fails fast.
func setupTestEnv(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.AutoMigrate(db))
	require.NoError(t, database.SeedCategories(db))

	prevDB := database.DB
	database.DB = db
	t.Cleanup(func() { database.DB = prevDB })
	repository.InitializeFactory(db)

	session.UseStore(fibersession.New())
	cache.SetClient(redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	}))

	t.Setenv("UPLOADS_DIR", t.TempDir())
	return db
}

// withTestUser sets the user context from the X-Test-User header so handlers
// can be exercised without a session round trip.
func withTestUser(c *fiber.Ctx) error {
	raw := c.Get(testUserHeader)
	if raw == "" {
		usercontext.SetUserContext(c, usercontext.UserContext{})
		return c.Next()
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return fiber.ErrBadRequest
	}
	usercontext.SetUserContext(c, usercontext.UserContext{
		UserID:     uint(id),
		Username:   "tester",
		IsLoggedIn: true,
	})
	return c.Next()
}

func createUser(t *testing.T, db *gorm.DB, email string, premium bool) *models.User {
	t.Helper()
	user, err := models.CreateUser("Test User", email, "secret123")
	require.NoError(t, err)
	user.IsPremium = premium
	require.NoError(t, db.Create(user).Error)
	return user
}

func concertCategory(t *testing.T, db *gorm.DB) models.Category {
	t.Helper()
	var category models.Category
	require.NoError(t, db.Where("slug = ?", "concert").First(&category).Error)
	return category
}

func createEvent(t *testing.T, db *gorm.DB, owner *models.User) *models.Event {
	t.Helper()
	event := &models.Event{
		Title:       "Night of Worship",
		Description: "An evening of music and prayer",
		CategoryID:  concertCategory(t, db).ID,
		StartDate:   time.Date(2026, 11, 20, 0, 0, 0, 0, time.UTC),
		StartTime:   "19:00",
		Location:    "Grace Chapel",
	}
	if owner != nil {
		event.UserID = &owner.ID
	}
	require.NoError(t, db.Create(event).Error)
	return event
}

func asUser(req *http.Request, user *models.User) *http.Request {
	req.Header.Set(testUserHeader, strconv.FormatUint(uint64(user.ID), 10))
	return req
}

func jsonRequest(t *testing.T, method, target string, body interface{}) *http.Request {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(method, target, bytes.NewReader(payload))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return req
}

func doRequest(t *testing.T, app *fiber.App, req *http.Request) (*http.Response, map[string]interface{}) {
	t.Helper()
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var body map[string]interface{}
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &body))
	}
	return resp, body
}

func stripeEventPayload(t *testing.T, eventID, eventType string, object map[string]interface{}) []byte {
	t.Helper()
	payload, err := json.Marshal(map[string]interface{}{
		"id":          eventID,
		"object":      "event",
		"api_version": "2025-03-31.basil",
		"type":        eventType,
		"created":     time.Now().Unix(),
		"data":        map[string]interface{}{"object": object},
	})
	require.NoError(t, err)
	return payload
}

func checkoutCompletedPayload(t *testing.T, eventID, sessionID string, amount int64, md map[string]string) []byte {
	t.Helper()
	return stripeEventPayload(t, eventID, "checkout.session.completed", map[string]interface{}{
		"id":           sessionID,
		"object":       "checkout.session",
		"amount_total": amount,
		"currency":     "usd",
		"metadata":     md,
	})
}

func signedWebhookRequest(t *testing.T, target string, payload []byte) *http.Request {
	t.Helper()
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    testWebhookSecret,
		Timestamp: time.Now(),
	})
	req := httptest.NewRequest(http.MethodPost, target, bytes.NewReader(payload))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	req.Header.Set("Stripe-Signature", signed.Header)
	return req
}
