package billing

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/faithcal/faithcal/app/models"
	"github.com/faithcal/faithcal/internal/pkg/database"
)

func newTestDB(t *testing.T) *gorm.DB {
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
	return db
}

func newObservedService(t *testing.T, db *gorm.DB, opts ...Option) (*Service, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	opts = append([]Option{WithAuditLogger(zap.New(core))}, opts...)
	return NewServiceFromDB(db, opts...), logs
}

func createUser(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()
	user := &models.User{Name: "Test User", Email: email, Password: "x", Role: models.ROLE_USER, Status: models.STATUS_ACTIVE}
	require.NoError(t, db.Create(user).Error)
	return user
}

func createEvent(t *testing.T, db *gorm.DB, owner *models.User) *models.Event {
	t.Helper()
	var category models.Category
	require.NoError(t, db.Where("slug = ?", "concert").First(&category).Error)

	event := &models.Event{
		Title:       "Night of Worship",
		Description: "An evening of music and prayer",
		CategoryID:  category.ID,
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

func eventPayload(t *testing.T, eventID, eventType string, object map[string]interface{}) []byte {
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

func checkoutEventPayload(t *testing.T, eventID, sessionID string, amount int64, md map[string]string) []byte {
	t.Helper()
	return checkoutEventPayloadWithCustomer(t, eventID, sessionID, amount, md, "", "")
}

func checkoutEventPayloadWithCustomer(t *testing.T, eventID, sessionID string, amount int64, md map[string]string, customerID, subscriptionID string) []byte {
	t.Helper()
	object := map[string]interface{}{
		"id":           sessionID,
		"object":       "checkout.session",
		"amount_total": amount,
		"currency":     "usd",
		"metadata":     md,
	}
	if customerID != "" {
		object["customer"] = customerID
	}
	if subscriptionID != "" {
		object["subscription"] = subscriptionID
	}
	return eventPayload(t, eventID, "checkout.session.completed", object)
}

func subscriptionDeletedPayload(t *testing.T, eventID, subscriptionID, customerID string) []byte {
	t.Helper()
	return eventPayload(t, eventID, "customer.subscription.deleted", map[string]interface{}{
		"id":       subscriptionID,
		"object":   "subscription",
		"status":   "canceled",
		"customer": customerID,
	})
}

// verifiedEvent signs and verifies payload so tests drive the reconciler with
// exactly what the webhook endpoint would hand it.
func verifiedEvent(t *testing.T, payload []byte) (stripe.Event, []byte) {
	t.Helper()
	event, err := NewVerifier(testWebhookSecret).Verify(payload, signPayload(t, payload, testWebhookSecret, time.Now()))
	require.NoError(t, err)
	return event, payload
}
