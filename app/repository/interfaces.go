package repository

import (
	"gorm.io/gorm"

	"github.com/faithcal/faithcal/app/models"
)

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	Update(user *models.User) error
	UpdateLastLogin(id uint) error
	IsPremium(id uint) (bool, error)
	Count() (int64, error)
}

// EventRepository defines the interface for event-related database operations
type EventRepository interface {
	Create(event *models.Event) error
	GetByID(id uint) (*models.Event, error)
	GetWithDetails(id uint) (*models.Event, error)
	Update(event *models.Event) error
	Delete(id uint) error
	AddMedia(media *models.EventMedia) error
	UpdateMedia(media *models.EventMedia) error
	GetMediaByID(id uint) (*models.EventMedia, error)
	GetByUserID(userID uint, offset, limit int) ([]models.Event, error)
}

// CategoryRepository defines the interface for category-related database operations
type CategoryRepository interface {
	List() ([]models.Category, error)
	GetByID(id uint) (*models.Category, error)
	GetBySlug(slug string) (*models.Category, error)
}

// PaymentRepository provides read access to the payment ledger. Rows are
// written only by the billing reconciler.
type PaymentRepository interface {
	ListRecentByUser(userID uint, limit int) ([]models.Payment, error)
	CountByUser(userID uint) (int64, error)
}

// Repositories struct holds all repository instances
type Repositories struct {
	User     UserRepository
	Event    EventRepository
	Category CategoryRepository
	Payment  PaymentRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:     NewUserRepository(db),
		Event:    NewEventRepository(db),
		Category: NewCategoryRepository(db),
		Payment:  NewPaymentRepository(db),
	}
}
