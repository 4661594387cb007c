package billing

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/faithcal/faithcal/app/models"
)

// Repository provides DB operations used by the billing service.
type Repository interface {
	// WithinTransaction runs fn against a repository bound to one transaction.
	WithinTransaction(ctx context.Context, fn func(tx Repository) error) error
	CreateWebhookEventIfNotExists(event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error)
	MarkWebhookProcessed(id uint, outcome, processingError string) error
	FindUser(id uint) (*models.User, error)
	FindEvent(id uint) (*models.Event, error)
	CreatePaymentIfNotExists(payment *models.Payment) (bool, error)
	SetUserPremium(userID uint, premium bool) error
	GrantPrimePlacement(eventID uint, tier string) error
	UpsertBillingCustomer(customer *models.BillingCustomer) error
	GetBillingCustomerByProviderCustomerID(provider, providerCustomerID string) (*models.BillingCustomer, error)
	GetBillingCustomerByUser(provider string, userID uint) (*models.BillingCustomer, error)
	MarkSubscriptionCanceled(id uint, at time.Time) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a billing repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) WithinTransaction(ctx context.Context, fn func(tx Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormRepository{db: tx})
	})
}

func (r *gormRepository) CreateWebhookEventIfNotExists(event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"},
			{Name: "provider_event_id"},
		},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.BillingWebhookEvent
	if err := r.db.Where("provider = ? AND provider_event_id = ?", event.Provider, event.ProviderEventID).
		First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *gormRepository) MarkWebhookProcessed(id uint, outcome, processingError string) error {
	now := time.Now()
	updates := map[string]interface{}{
		"processed_at":     &now,
		"outcome":          outcome,
		"processing_error": processingError,
	}
	return r.db.Model(&models.BillingWebhookEvent{}).Where("id = ?", id).Updates(updates).Error
}

func (r *gormRepository) FindUser(id uint) (*models.User, error) {
	var user models.User
	if err := r.db.First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *gormRepository) FindEvent(id uint) (*models.Event, error) {
	var event models.Event
	if err := r.db.First(&event, id).Error; err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *gormRepository) CreatePaymentIfNotExists(payment *models.Payment) (bool, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "provider_payment_id"}},
		DoNothing: true,
	}).Create(payment)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (r *gormRepository) SetUserPremium(userID uint, premium bool) error {
	return r.db.Model(&models.User{}).Where("id = ?", userID).Update("is_premium", premium).Error
}

func (r *gormRepository) GrantPrimePlacement(eventID uint, tier string) error {
	return r.db.Model(&models.Event{}).Where("id = ?", eventID).Updates(map[string]interface{}{
		"is_prime_placement":   true,
		"prime_placement_type": tier,
	}).Error
}

// UpsertBillingCustomer writes the user's customer mapping. MySQL applies the
// upsert on any unique key, so a customer id owned by another user is refused
// before the write.
func (r *gormRepository) UpsertBillingCustomer(customer *models.BillingCustomer) error {
	var owner models.BillingCustomer
	found := r.db.Where("provider = ? AND provider_customer_id = ?", customer.Provider, customer.ProviderCustomerID).
		Limit(1).Find(&owner)
	if found.Error != nil {
		return found.Error
	}
	if found.RowsAffected > 0 && owner.UserID != customer.UserID {
		return fmt.Errorf("%w: %s is mapped to user %d", ErrCustomerConflict, customer.ProviderCustomerID, owner.UserID)
	}

	if err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"},
			{Name: "user_id"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"provider_customer_id",
			"provider_subscription_id",
			"subscription_status",
			"canceled_at",
			"updated_at",
		}),
	}).Create(customer).Error; err != nil {
		return err
	}

	// Ensure ID is populated after upsert.
	return r.db.Where("provider = ? AND user_id = ?", customer.Provider, customer.UserID).
		First(customer).Error
}

func (r *gormRepository) GetBillingCustomerByProviderCustomerID(provider, providerCustomerID string) (*models.BillingCustomer, error) {
	var customer models.BillingCustomer
	err := r.db.Where("provider = ? AND provider_customer_id = ?", provider, providerCustomerID).First(&customer).Error
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

func (r *gormRepository) GetBillingCustomerByUser(provider string, userID uint) (*models.BillingCustomer, error) {
	var customer models.BillingCustomer
	err := r.db.Where("provider = ? AND user_id = ?", provider, userID).First(&customer).Error
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

func (r *gormRepository) MarkSubscriptionCanceled(id uint, at time.Time) error {
	return r.db.Model(&models.BillingCustomer{}).Where("id = ?", id).Updates(map[string]interface{}{
		"subscription_status": models.SubscriptionStatusCanceled,
		"canceled_at":         &at,
	}).Error
}
