package billing

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/faithcal/faithcal/app/models"
)

func premiumMetadata(userID uint) map[string]string {
	return PremiumIntent{UserID: userID}.Metadata()
}

func TestHandleEventPremiumCheckout(t *testing.T) {
	db := newTestDB(t)
	user := createUser(t, db, "premium@example.com")
	svc, logs := newObservedService(t, db)

	event, payload := verifiedEvent(t, checkoutEventPayloadWithCustomer(t, "evt_premium", "cs_premium", 999, premiumMetadata(user.ID), "cus_1", "sub_1"))
	res, err := svc.HandleEvent(context.Background(), event, payload)
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, res.Outcome)
	assert.Equal(t, TransitionPremiumGranted, res.Transition)
	assert.Equal(t, user.ID, res.UserID)
	assert.NotZero(t, res.PaymentID)

	var stored models.User
	require.NoError(t, db.First(&stored, user.ID).Error)
	assert.True(t, stored.IsPremium)

	var payments []models.Payment
	require.NoError(t, db.Find(&payments).Error)
	require.Len(t, payments, 1)
	assert.Equal(t, 9.99, payments[0].Amount)
	assert.Equal(t, int64(999), payments[0].AmountCents)
	assert.Equal(t, "usd", payments[0].Currency)
	assert.Equal(t, models.PaymentTypePremiumSubscription, payments[0].PaymentType)
	assert.Equal(t, models.PaymentStatusCompleted, payments[0].Status)
	assert.Equal(t, "cs_premium", payments[0].ProviderPaymentID)
	assert.Nil(t, payments[0].EventID)

	var customer models.BillingCustomer
	require.NoError(t, db.Where("user_id = ?", user.ID).First(&customer).Error)
	assert.Equal(t, "cus_1", customer.ProviderCustomerID)
	assert.Equal(t, "sub_1", customer.ProviderSubscriptionID)
	assert.Equal(t, models.SubscriptionStatusActive, customer.SubscriptionStatus)

	var hook models.BillingWebhookEvent
	require.NoError(t, db.Where("provider_event_id = ?", "evt_premium").First(&hook).Error)
	assert.Equal(t, models.WebhookOutcomeApplied, hook.Outcome)
	assert.NotNil(t, hook.ProcessedAt)

	entries := logs.FilterMessage("entitlement applied").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "premium_granted", entries[0].ContextMap()["transition"])
}

func TestHandleEventPlacementCheckout(t *testing.T) {
	db := newTestDB(t)
	user := createUser(t, db, "organizer@example.com")
	ev := createEvent(t, db, user)
	svc, _ := newObservedService(t, db)

	md := PlacementIntent{UserID: user.ID, EventID: ev.ID, Tier: "homepage"}.Metadata()
	event, payload := verifiedEvent(t, checkoutEventPayload(t, "evt_place", "cs_place", 5000, md))
	res, err := svc.HandleEvent(context.Background(), event, payload)
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, res.Outcome)
	assert.Equal(t, TransitionPlacementGranted, res.Transition)
	require.NotNil(t, res.EventRef)
	assert.Equal(t, ev.ID, *res.EventRef)

	var stored models.Event
	require.NoError(t, db.First(&stored, ev.ID).Error)
	assert.True(t, stored.IsPrimePlacement)
	require.NotNil(t, stored.PrimePlacementType)
	assert.Equal(t, "homepage", *stored.PrimePlacementType)

	var payment models.Payment
	require.NoError(t, db.Where("provider_payment_id = ?", "cs_place").First(&payment).Error)
	assert.Equal(t, 50.0, payment.Amount)
	assert.Equal(t, models.PaymentTypePrimePlacement, payment.PaymentType)
	require.NotNil(t, payment.EventID)
	assert.Equal(t, ev.ID, *payment.EventID)
	assert.Equal(t, "homepage", payment.Metadata["placementType"])

	var buyer models.User
	require.NoError(t, db.First(&buyer, user.ID).Error)
	assert.False(t, buyer.IsPremium)
}

func TestHandleEventRedeliveryIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	user := createUser(t, db, "again@example.com")
	ev := createEvent(t, db, user)
	calls := 0
	svc, logs := newObservedService(t, db, WithEntitlementListener(func(uint) { calls++ }))

	md := PlacementIntent{UserID: user.ID, EventID: ev.ID, Tier: "category"}.Metadata()
	event, payload := verifiedEvent(t, checkoutEventPayload(t, "evt_dup", "cs_dup", 3000, md))

	first, err := svc.HandleEvent(context.Background(), event, payload)
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, first.Outcome)

	second, err := svc.HandleEvent(context.Background(), event, payload)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, second.Outcome)

	// Same checkout reported under a fresh event id.
	event2, payload2 := verifiedEvent(t, checkoutEventPayload(t, "evt_dup_2", "cs_dup", 3000, md))
	third, err := svc.HandleEvent(context.Background(), event2, payload2)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, third.Outcome)
	assert.ErrorIs(t, third.Reason, ErrDuplicateDelivery)

	var count int64
	require.NoError(t, db.Model(&models.Payment{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
	require.NoError(t, db.Model(&models.BillingWebhookEvent{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)

	assert.Equal(t, 1, calls)
	assert.Len(t, logs.FilterMessage("duplicate delivery ignored").All(), 2)
}

func TestHandleEventWithoutIDDedupesOnPayloadHash(t *testing.T) {
	db := newTestDB(t)
	user := createUser(t, db, "noid@example.com")
	svc, _ := newObservedService(t, db)

	payload := checkoutEventPayload(t, "", "cs_noid", 999, premiumMetadata(user.ID))
	event, _ := verifiedEvent(t, payload)
	event.ID = ""

	first, err := svc.HandleEvent(context.Background(), event, payload)
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, first.Outcome)
	assert.Contains(t, first.EventID, "hash:")

	second, err := svc.HandleEvent(context.Background(), event, payload)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, second.Outcome)
	assert.Equal(t, first.EventID, second.EventID)
}

func TestHandleEventAnomalies(t *testing.T) {
	db := newTestDB(t)
	user := createUser(t, db, "anomaly@example.com")
	ev := createEvent(t, db, nil)

	tests := []struct {
		name    string
		eventID string
		md      map[string]string
		want    error
	}{
		{name: "no metadata", eventID: "evt_a1", md: nil, want: ErrMissingMetadata},
		{name: "user id missing", eventID: "evt_a2", md: map[string]string{"type": "premium"}, want: ErrMissingMetadata},
		{name: "user id not numeric", eventID: "evt_a3", md: map[string]string{"userId": "abc", "type": "premium"}, want: ErrInvalidMetadata},
		{name: "placement without tier", eventID: "evt_a4", md: map[string]string{"userId": "1", "eventId": "1"}, want: ErrMissingMetadata},
		{name: "unknown tier", eventID: "evt_a5", md: map[string]string{"userId": "1", "eventId": "1", "placementType": "sidebar"}, want: ErrInvalidMetadata},
		{name: "unknown user", eventID: "evt_a6", md: premiumMetadata(user.ID + 100), want: ErrUnknownReference},
		{name: "unknown event", eventID: "evt_a7", md: PlacementIntent{UserID: user.ID, EventID: ev.ID + 100, Tier: "search"}.Metadata(), want: ErrUnknownReference},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, logs := newObservedService(t, db)
			event, payload := verifiedEvent(t, checkoutEventPayload(t, tt.eventID, "cs_"+tt.eventID, 1000, tt.md))

			res, err := svc.HandleEvent(context.Background(), event, payload)
			require.NoError(t, err)
			assert.Equal(t, OutcomeAnomaly, res.Outcome)
			assert.ErrorIs(t, res.Reason, tt.want)

			var hook models.BillingWebhookEvent
			require.NoError(t, db.Where("provider_event_id = ?", tt.eventID).First(&hook).Error)
			assert.Equal(t, models.WebhookOutcomeAnomaly, hook.Outcome)
			assert.NotEmpty(t, hook.ProcessingError)

			warnings := logs.FilterLevelExact(zap.WarnLevel).All()
			require.Len(t, warnings, 1)
			assert.Equal(t, "billing webhook anomaly", warnings[0].Message)
		})
	}

	var count int64
	require.NoError(t, db.Model(&models.Payment{}).Count(&count).Error)
	assert.Zero(t, count)

	var stored models.User
	require.NoError(t, db.First(&stored, user.ID).Error)
	assert.False(t, stored.IsPremium)
}

func TestHandleEventIgnoresUnrecognizedType(t *testing.T) {
	db := newTestDB(t)
	svc, _ := newObservedService(t, db)

	event, payload := verifiedEvent(t, eventPayload(t, "evt_inv", "invoice.paid", map[string]interface{}{"id": "in_1", "object": "invoice"}))
	res, err := svc.HandleEvent(context.Background(), event, payload)
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, res.Outcome)
	assert.ErrorIs(t, res.Reason, ErrUnrecognizedEventType)

	var hook models.BillingWebhookEvent
	require.NoError(t, db.Where("provider_event_id = ?", "evt_inv").First(&hook).Error)
	assert.Equal(t, models.WebhookOutcomeIgnored, hook.Outcome)
}

func TestHandleEventUndecodableObject(t *testing.T) {
	db := newTestDB(t)
	svc, _ := newObservedService(t, db)

	event := stripe.Event{
		ID:   "evt_bad",
		Type: stripe.EventTypeCheckoutSessionCompleted,
		Data: &stripe.EventData{Raw: []byte(`[1,2,3]`)},
	}
	res, err := svc.HandleEvent(context.Background(), event, []byte(`{"id":"evt_bad"}`))
	require.NoError(t, err)
	assert.Equal(t, OutcomeAnomaly, res.Outcome)
	assert.ErrorIs(t, res.Reason, ErrInvalidPayload)
}

func TestHandleEventSubscriptionDeleted(t *testing.T) {
	db := newTestDB(t)
	user := createUser(t, db, "cancel@example.com")
	var revoked []uint
	svc, _ := newObservedService(t, db, WithEntitlementListener(func(id uint) { revoked = append(revoked, id) }))
	ctx := context.Background()

	event, payload := verifiedEvent(t, checkoutEventPayloadWithCustomer(t, "evt_sub", "cs_sub", 999, premiumMetadata(user.ID), "cus_c", "sub_c"))
	_, err := svc.HandleEvent(ctx, event, payload)
	require.NoError(t, err)

	event, payload = verifiedEvent(t, subscriptionDeletedPayload(t, "evt_cancel", "sub_c", "cus_c"))
	res, err := svc.HandleEvent(ctx, event, payload)
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, res.Outcome)
	assert.Equal(t, TransitionPremiumRevoked, res.Transition)
	assert.Equal(t, user.ID, res.UserID)

	var stored models.User
	require.NoError(t, db.First(&stored, user.ID).Error)
	assert.False(t, stored.IsPremium)

	var customer models.BillingCustomer
	require.NoError(t, db.Where("provider_customer_id = ?", "cus_c").First(&customer).Error)
	assert.Equal(t, models.SubscriptionStatusCanceled, customer.SubscriptionStatus)
	assert.NotNil(t, customer.CanceledAt)

	// Cancellation adds no ledger row.
	var count int64
	require.NoError(t, db.Model(&models.Payment{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	assert.Equal(t, []uint{user.ID, user.ID}, revoked)
}

func TestHandleEventSubscriptionDeletedUnknownCustomer(t *testing.T) {
	db := newTestDB(t)
	svc, logs := newObservedService(t, db)

	event, payload := verifiedEvent(t, subscriptionDeletedPayload(t, "evt_orphan", "sub_x", "cus_unknown"))
	res, err := svc.HandleEvent(context.Background(), event, payload)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAnomaly, res.Outcome)
	assert.ErrorIs(t, res.Reason, ErrUnknownCustomer)
	assert.Len(t, logs.FilterMessage("billing webhook anomaly").All(), 1)
}

func TestHandleEventSupersededSubscriptionKeepsPremium(t *testing.T) {
	db := newTestDB(t)
	user := createUser(t, db, "resub@example.com")
	svc, _ := newObservedService(t, db)
	ctx := context.Background()

	event, payload := verifiedEvent(t, checkoutEventPayloadWithCustomer(t, "evt_new_sub", "cs_new_sub", 999, premiumMetadata(user.ID), "cus_r", "sub_new"))
	_, err := svc.HandleEvent(ctx, event, payload)
	require.NoError(t, err)

	event, payload = verifiedEvent(t, subscriptionDeletedPayload(t, "evt_old_cancel", "sub_old", "cus_r"))
	res, err := svc.HandleEvent(ctx, event, payload)
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, res.Outcome)
	assert.ErrorIs(t, res.Reason, ErrSupersededSubscription)

	var stored models.User
	require.NoError(t, db.First(&stored, user.ID).Error)
	assert.True(t, stored.IsPremium)
}

func TestHandleEventPersistenceFailure(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	db, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	mock.ExpectBegin().WillReturnError(errors.New("connection refused"))

	called := false
	svc, logs := newObservedService(t, db, WithEntitlementListener(func(uint) { called = true }))
	event, payload := verifiedEvent(t, checkoutEventPayload(t, "evt_down", "cs_down", 999, premiumMetadata(1)))

	res, err := svc.HandleEvent(context.Background(), event, payload)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrPersistence)
	assert.False(t, called)
	assert.Len(t, logs.FilterMessage("billing webhook persistence failed").All(), 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

var errWriteFailed = errors.New("Error 1213: Deadlock found when trying to get lock")

// failingRepository fails one named write inside the transaction while every
// other call reaches the real repository.
type failingRepository struct {
	Repository
	failOn string
}

func (r *failingRepository) WithinTransaction(ctx context.Context, fn func(tx Repository) error) error {
	return r.Repository.WithinTransaction(ctx, func(tx Repository) error {
		return fn(&failingRepository{Repository: tx, failOn: r.failOn})
	})
}

func (r *failingRepository) GrantPrimePlacement(eventID uint, tier string) error {
	if r.failOn == "GrantPrimePlacement" {
		return errWriteFailed
	}
	return r.Repository.GrantPrimePlacement(eventID, tier)
}

func (r *failingRepository) SetUserPremium(userID uint, premium bool) error {
	if r.failOn == "SetUserPremium" {
		return errWriteFailed
	}
	return r.Repository.SetUserPremium(userID, premium)
}

func (r *failingRepository) UpsertBillingCustomer(customer *models.BillingCustomer) error {
	if r.failOn == "UpsertBillingCustomer" {
		return errWriteFailed
	}
	return r.Repository.UpsertBillingCustomer(customer)
}

func TestHandleEventRollsBackMidTransactionFailure(t *testing.T) {
	tests := []struct {
		name       string
		failOn     string
		premium    bool
		transition Transition
	}{
		{name: "placement grant fails", failOn: "GrantPrimePlacement", transition: TransitionPlacementGranted},
		{name: "premium flag fails", failOn: "SetUserPremium", premium: true, transition: TransitionPremiumGranted},
		{name: "customer mapping fails", failOn: "UpsertBillingCustomer", premium: true, transition: TransitionPremiumGranted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := newTestDB(t)
			user := createUser(t, db, "rollback@example.com")
			ev := createEvent(t, db, user)

			md := PlacementIntent{UserID: user.ID, EventID: ev.ID, Tier: "homepage"}.Metadata()
			amount := int64(5000)
			if tt.premium {
				md = premiumMetadata(user.ID)
				amount = 999
			}
			event, payload := verifiedEvent(t, checkoutEventPayloadWithCustomer(t, "evt_rollback", "cs_rollback", amount, md, "cus_rollback", "sub_rollback"))

			called := false
			core, logs := observer.New(zapcore.DebugLevel)
			failing := NewService(&failingRepository{Repository: NewRepository(db), failOn: tt.failOn},
				WithAuditLogger(zap.New(core)),
				WithEntitlementListener(func(uint) { called = true }),
			)

			res, err := failing.HandleEvent(context.Background(), event, payload)
			assert.Nil(t, res)
			require.ErrorIs(t, err, ErrPersistence)
			assert.Contains(t, err.Error(), "Deadlock")
			assert.False(t, called)
			assert.Len(t, logs.FilterMessage("billing webhook persistence failed").All(), 1)

			var payments, hooks, customers int64
			require.NoError(t, db.Model(&models.Payment{}).Count(&payments).Error)
			require.NoError(t, db.Model(&models.BillingWebhookEvent{}).Count(&hooks).Error)
			require.NoError(t, db.Model(&models.BillingCustomer{}).Count(&customers).Error)
			assert.Zero(t, payments)
			assert.Zero(t, hooks)
			assert.Zero(t, customers)

			var storedUser models.User
			require.NoError(t, db.First(&storedUser, user.ID).Error)
			assert.False(t, storedUser.IsPremium)
			var storedEvent models.Event
			require.NoError(t, db.First(&storedEvent, ev.ID).Error)
			assert.False(t, storedEvent.IsPrimePlacement)

			// the provider redelivers once storage recovers
			healthy, _ := newObservedService(t, db)
			res, err = healthy.HandleEvent(context.Background(), event, payload)
			require.NoError(t, err)
			assert.Equal(t, OutcomeApplied, res.Outcome)
			assert.Equal(t, tt.transition, res.Transition)
			require.NoError(t, db.Model(&models.Payment{}).Count(&payments).Error)
			assert.Equal(t, int64(1), payments)
		})
	}
}

func TestHandleEventCustomerOwnedByAnotherUser(t *testing.T) {
	db := newTestDB(t)
	first := createUser(t, db, "first@example.com")
	second := createUser(t, db, "second@example.com")
	svc, logs := newObservedService(t, db)
	ctx := context.Background()

	event, payload := verifiedEvent(t, checkoutEventPayloadWithCustomer(t, "evt_owner", "cs_owner", 999, premiumMetadata(first.ID), "cus_shared", "sub_first"))
	res, err := svc.HandleEvent(ctx, event, payload)
	require.NoError(t, err)
	require.Equal(t, OutcomeApplied, res.Outcome)

	event, payload = verifiedEvent(t, checkoutEventPayloadWithCustomer(t, "evt_intruder", "cs_intruder", 999, premiumMetadata(second.ID), "cus_shared", "sub_second"))
	res, err = svc.HandleEvent(ctx, event, payload)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAnomaly, res.Outcome)
	assert.ErrorIs(t, res.Reason, ErrCustomerConflict)
	assert.Len(t, logs.FilterMessage("billing webhook anomaly").All(), 1)

	var mapping models.BillingCustomer
	require.NoError(t, db.Where("provider_customer_id = ?", "cus_shared").First(&mapping).Error)
	assert.Equal(t, first.ID, mapping.UserID)
	assert.Equal(t, "sub_first", mapping.ProviderSubscriptionID)

	var storedSecond models.User
	require.NoError(t, db.First(&storedSecond, second.ID).Error)
	assert.False(t, storedSecond.IsPremium)

	var payments int64
	require.NoError(t, db.Model(&models.Payment{}).Count(&payments).Error)
	assert.Equal(t, int64(1), payments)

	var hook models.BillingWebhookEvent
	require.NoError(t, db.Where("provider_event_id = ?", "evt_intruder").First(&hook).Error)
	assert.Equal(t, models.WebhookOutcomeAnomaly, hook.Outcome)
	assert.Contains(t, hook.ProcessingError, "cus_shared")
}
