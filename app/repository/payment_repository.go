package repository

import (
	"gorm.io/gorm"

	"github.com/faithcal/faithcal/app/models"
)

type paymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository creates a read-only view over the payment ledger
func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

// ListRecentByUser returns the newest payments first, each with its event
// (if any) for display.
func (r *paymentRepository) ListRecentByUser(userID uint, limit int) ([]models.Payment, error) {
	var payments []models.Payment
	err := r.db.Preload("Event").
		Where("user_id = ?", userID).
		Order("created_at DESC").Order("id DESC").
		Limit(limit).
		Find(&payments).Error
	return payments, err
}

func (r *paymentRepository) CountByUser(userID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.Payment{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}
