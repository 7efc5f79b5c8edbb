package repository

import (
	"github.com/ndthien/promptshrink/internal/model"
	"gorm.io/gorm"
)

type UserRepository interface {
	Create(user *model.User) error
	FindByLogin(login string) (*model.User, error)
	ExistsByLoginOrEmail(login, email string) (bool, error)
}

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(user *model.User) error {
	return r.db.Create(user).Error
}

func (r *userRepository) FindByLogin(login string) (*model.User, error) {
	var user model.User
	if err := r.db.First(&user, "login = ?", login).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) ExistsByLoginOrEmail(login, email string) (bool, error) {
	var count int64
	err := r.db.Model(&model.User{}).
		Where("login = ? OR email = ?", login, email).
		Count(&count).Error
	return count > 0, err
}
