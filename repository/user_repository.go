package repository

import (
	"context"
	"errors"

	"github.com/yeremiapane/gaming-portal/models"
	"gorm.io/gorm"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) FindByID(ctx context.Context, id uint) (*models.User, error) {
	var u models.User
	if err := r.db.WithContext(ctx).First(&u, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

func (r *UserRepository) ListActiveUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := r.db.WithContext(ctx).
		Where("role = ? AND is_active = ?", models.RoleUser, true).
		Order("id ASC").
		Find(&users).Error
	return users, err
}

// IsActive reports whether an account with the given id and role exists and
// is enabled. Unknown accounts are inactive, not an error.
func (r *UserRepository) IsActive(ctx context.Context, id uint, role string) (bool, error) {
	var u models.User
	err := r.db.WithContext(ctx).Where("id = ? AND role = ?", id, role).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return u.IsActive, nil
}
