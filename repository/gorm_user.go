package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/agroadvisor/community/models"
)

// GormUserRepository stores accounts through GORM.
type GormUserRepository struct {
	db *gorm.DB
}

func NewGormUserRepository(db *gorm.DB) *GormUserRepository {
	return &GormUserRepository{db: db}
}

func (r *GormUserRepository) Create(ctx context.Context, user *models.User) error {
	var existing int64
	if err := r.db.WithContext(ctx).Model(&models.User{}).Where("username = ?", user.Username).Count(&existing).Error; err != nil {
		return err
	}
	if existing > 0 {
		return ErrUsernameTaken
	}
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *GormUserRepository) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}
