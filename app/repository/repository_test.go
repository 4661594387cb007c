package repository

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
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
	require.NoError(t, database.AutoMigrate(db))
	require.NoError(t, database.SeedCategories(db))
	return db
}

func seedUser(t *testing.T, repos *Repositories, email string) *models.User {
	t.Helper()
	user := &models.User{Name: "Test User", Email: email, Password: "x", Role: models.ROLE_USER, Status: models.STATUS_ACTIVE}
	require.NoError(t, repos.User.Create(user))
	return user
}

func seedEvent(t *testing.T, repos *Repositories, owner *models.User, slug string, start time.Time) *models.Event {
	t.Helper()
	category, err := repos.Category.GetBySlug(slug)
	require.NoError(t, err)
	event := &models.Event{
		Title:       "Event " + slug,
		Description: "desc",
		CategoryID:  category.ID,
		StartDate:   start,
		StartTime:   "18:00",
		Location:    "Hall",
	}
	if owner != nil {
		event.UserID = &owner.ID
	}
	require.NoError(t, repos.Event.Create(event))
	return event
}

func TestUserRepositoryUpdateKeepsPremiumFlag(t *testing.T) {
	db := newTestDB(t)
	repos := NewRepositories(db)
	user := seedUser(t, repos, "keep@example.com")

	require.NoError(t, db.Model(&models.User{}).Where("id = ?", user.ID).Update("is_premium", true).Error)

	// A stale copy must not clear the flag the reconciler set.
	user.Name = "Renamed"
	user.IsPremium = false
	require.NoError(t, repos.User.Update(user))

	premium, err := repos.User.IsPremium(user.ID)
	require.NoError(t, err)
	assert.True(t, premium)

	stored, err := repos.User.GetByEmail("KEEP@example.com ")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", stored.Name)
}

func TestEventRepositoryUpdateLeavesPlacementAlone(t *testing.T) {
	db := newTestDB(t)
	repos := NewRepositories(db)
	owner := seedUser(t, repos, "owner@example.com")
	event := seedEvent(t, repos, owner, "concert", time.Now().Add(48*time.Hour))

	tier := "homepage"
	require.NoError(t, db.Model(&models.Event{}).Where("id = ?", event.ID).Updates(map[string]interface{}{
		"is_prime_placement": true, "prime_placement_type": tier,
	}).Error)

	event.Title = "New title"
	event.IsPrimePlacement = false
	event.PrimePlacementType = nil
	require.NoError(t, repos.Event.Update(event))

	stored, err := repos.Event.GetWithDetails(event.ID)
	require.NoError(t, err)
	assert.Equal(t, "New title", stored.Title)
	assert.True(t, stored.IsPrimePlacement)
	require.NotNil(t, stored.Category)
	assert.Equal(t, "concert", stored.Category.Slug)
}

func TestEventRepositoryMedia(t *testing.T) {
	repos := NewRepositories(newTestDB(t))
	event := seedEvent(t, repos, nil, "workshop", time.Now().Add(24*time.Hour))

	require.NoError(t, repos.Event.AddMedia(&models.EventMedia{EventID: event.ID, Type: models.MediaTypeImage, URL: "/uploads/images/a.jpg"}))
	require.NoError(t, repos.Event.AddMedia(&models.EventMedia{EventID: event.ID, Type: models.MediaTypeAudio, URL: "/uploads/audio/b.mp3"}))

	stored, err := repos.Event.GetWithDetails(event.ID)
	require.NoError(t, err)
	require.Len(t, stored.Media, 2)
	assert.Equal(t, models.MediaTypeImage, stored.Media[0].Type)
	assert.Nil(t, stored.UserID)
}

func TestPaymentRepositoryListRecentByUser(t *testing.T) {
	db := newTestDB(t)
	repos := NewRepositories(db)
	user := seedUser(t, repos, "ledger@example.com")
	other := seedUser(t, repos, "other@example.com")
	event := seedEvent(t, repos, user, "seminar", time.Now().Add(24*time.Hour))

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 7; i++ {
		p := models.Payment{
			UserID:            user.ID,
			Amount:            9.99,
			AmountCents:       999,
			Currency:          "usd",
			Provider:          "stripe",
			ProviderPaymentID: uuid.NewString(),
			Status:            models.PaymentStatusCompleted,
			PaymentType:       models.PaymentTypePremiumSubscription,
			CreatedAt:         base.Add(time.Duration(i) * time.Minute),
		}
		if i == 6 {
			p.EventID = &event.ID
			p.PaymentType = models.PaymentTypePrimePlacement
		}
		require.NoError(t, db.Create(&p).Error)
	}
	require.NoError(t, db.Create(&models.Payment{
		UserID: other.ID, Amount: 1, Currency: "usd", Provider: "stripe",
		ProviderPaymentID: "cs_other", Status: models.PaymentStatusCompleted, PaymentType: models.PaymentTypePrimePlacement,
	}).Error)

	payments, err := repos.Payment.ListRecentByUser(user.ID, 5)
	require.NoError(t, err)
	require.Len(t, payments, 5)
	require.NotNil(t, payments[0].Event)
	assert.Equal(t, event.Title, payments[0].Event.Title)
	for i := 1; i < len(payments); i++ {
		assert.False(t, payments[i].CreatedAt.After(payments[i-1].CreatedAt))
	}

	count, err := repos.Payment.CountByUser(user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(7), count)
}

func TestEventRepositoryDelete(t *testing.T) {
	db := newTestDB(t)
	repos := NewRepositories(db)
	event := seedEvent(t, repos, nil, "concert", time.Now().Add(24*time.Hour))
	keep := seedEvent(t, repos, nil, "workshop", time.Now().Add(48*time.Hour))
	require.NoError(t, repos.Event.AddMedia(&models.EventMedia{EventID: event.ID, Type: models.MediaTypeImage, URL: "/uploads/images/a.jpg"}))
	require.NoError(t, repos.Event.AddMedia(&models.EventMedia{EventID: keep.ID, Type: models.MediaTypeImage, URL: "/uploads/images/b.jpg"}))

	require.NoError(t, repos.Event.Delete(event.ID))

	_, err := repos.Event.GetByID(event.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	var media []models.EventMedia
	require.NoError(t, db.Find(&media).Error)
	require.Len(t, media, 1)
	assert.Equal(t, keep.ID, media[0].EventID)
}
