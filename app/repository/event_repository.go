package repository

import (
	"gorm.io/gorm"

	"github.com/faithcal/faithcal/app/models"
)

type eventRepository struct {
	db *gorm.DB
}

// NewEventRepository creates a new event repository instance
func NewEventRepository(db *gorm.DB) EventRepository {
	return &eventRepository{db: db}
}

func (r *eventRepository) Create(event *models.Event) error {
	return r.db.Create(event).Error
}

func (r *eventRepository) GetByID(id uint) (*models.Event, error) {
	var event models.Event
	if err := r.db.First(&event, id).Error; err != nil {
		return nil, err
	}
	return &event, nil
}

// GetWithDetails loads an event with its category and media.
func (r *eventRepository) GetWithDetails(id uint) (*models.Event, error) {
	var event models.Event
	err := r.db.Preload("Category").
		Preload("Media", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		First(&event, id).Error
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// Update saves the editable event fields. Placement columns belong to the
// billing reconciler and are never written here.
func (r *eventRepository) Update(event *models.Event) error {
	return r.db.Model(event).
		Select("title", "description", "category_id", "start_date", "start_time", "location", "performers", "speakers", "topics").
		Updates(event).Error
}

// Delete removes an event together with its media rows.
func (r *eventRepository) Delete(id uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("event_id = ?", id).Delete(&models.EventMedia{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Event{}, id).Error
	})
}

func (r *eventRepository) AddMedia(media *models.EventMedia) error {
	return r.db.Create(media).Error
}

func (r *eventRepository) UpdateMedia(media *models.EventMedia) error {
	return r.db.Save(media).Error
}

func (r *eventRepository) GetMediaByID(id uint) (*models.EventMedia, error) {
	var media models.EventMedia
	if err := r.db.First(&media, id).Error; err != nil {
		return nil, err
	}
	return &media, nil
}

func (r *eventRepository) GetByUserID(userID uint, offset, limit int) ([]models.Event, error) {
	var events []models.Event
	err := r.db.Preload("Category").
		Where("user_id = ?", userID).
		Order("start_date ASC").
		Offset(offset).Limit(limit).
		Find(&events).Error
	return events, err
}
