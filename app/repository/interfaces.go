package repository

import (
	"github.com/payfox/payfox/app/models"
	"gorm.io/gorm"
)

// UserRepository defines the interface for user-related database operations.
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	GetByAPIKeyHash(hash string) (*models.User, error)
	Update(user *models.User) error
	List(offset, limit int) ([]models.User, error)
	Count() (int64, error)
	TouchAPIKeyUsage(userID uint) error
}

// PlanRepository defines the interface for plan catalog operations.
type PlanRepository interface {
	Create(plan *models.Plan) error
	GetByID(id uint) (*models.Plan, error)
	GetByName(name string) (*models.Plan, error)
	ListActive() ([]models.Plan, error)
	List() ([]models.Plan, error)
	Update(plan *models.Plan) error
	Deactivate(id uint) error
}

// Repositories bundles all repository instances.
type Repositories struct {
	User UserRepository
	Plan PlanRepository
}

// NewRepositories creates all repositories backed by the given DB handle.
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User: NewUserRepository(db),
		Plan: NewPlanRepository(db),
	}
}
