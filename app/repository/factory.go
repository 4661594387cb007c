package repository

import (
	"sync"

	"gorm.io/gorm"
)

// Factory manages repository instances and ensures they are singletons
type Factory struct {
	db    *gorm.DB
	repos *Repositories
	once  sync.Once
}

// NewFactory creates a new repository factory
func NewFactory(db *gorm.DB) *Factory {
	return &Factory{
		db: db,
	}
}

// GetRepositories returns a singleton instance of all repositories
func (f *Factory) GetRepositories() *Repositories {
	f.once.Do(func() {
		f.repos = NewRepositories(f.db)
	})
	return f.repos
}

func (f *Factory) GetUserRepository() UserRepository {
	return f.GetRepositories().User
}

func (f *Factory) GetEventRepository() EventRepository {
	return f.GetRepositories().Event
}

func (f *Factory) GetCategoryRepository() CategoryRepository {
	return f.GetRepositories().Category
}

func (f *Factory) GetPaymentRepository() PaymentRepository {
	return f.GetRepositories().Payment
}

// Global factory instance
var (
	globalFactory *Factory
	factoryMu     sync.RWMutex
)

// InitializeFactory sets the global repository factory. Calling it again
// replaces the factory, which tests rely on to swap databases.
func InitializeFactory(db *gorm.DB) {
	factoryMu.Lock()
	defer factoryMu.Unlock()
	globalFactory = NewFactory(db)
}

// GetGlobalFactory returns the global repository factory instance
func GetGlobalFactory() *Factory {
	factoryMu.RLock()
	defer factoryMu.RUnlock()
	if globalFactory == nil {
		panic("Repository factory not initialized. Call InitializeFactory first.")
	}
	return globalFactory
}

// GetGlobalRepositories returns the global repositories instance
func GetGlobalRepositories() *Repositories {
	return GetGlobalFactory().GetRepositories()
}
