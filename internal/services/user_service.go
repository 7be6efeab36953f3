package services

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	apperrors "tallybook/internal/errors"
	"tallybook/internal/models"
	"tallybook/internal/uuid"
)

// userService handles user-related business logic.
type userService struct {
	db *gorm.DB
}

// NewUserService creates a new UserServicer.
func NewUserService(db *gorm.DB) UserServicer {
	return &userService{db: db}
}

// CreateUser registers a new user projection
func (s *userService) CreateUser(email, firstName, lastName string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "email is required")
	}

	var count int64
	if err := s.db.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if count > 0 {
		return nil, apperrors.ErrDuplicateEmail
	}

	user := &models.User{
		Email:     email,
		FirstName: firstName,
		LastName:  lastName,
		IsActive:  true,
	}
	if err := s.db.Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperrors.ErrDuplicateEmail
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	return user, nil
}

// GetUserByID retrieves a user by ID
func (s *userService) GetUserByID(userID string) (*models.User, error) {
	var user models.User
	if err := s.db.Where("id = ?", userID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &user, nil
}

// resolveActor checks that actorID names an existing user and returns the
// canonical ID and the snapshot recorded with ledger and audit rows. It runs
// before the mutation's transaction so a bad actor has no side effects.
func resolveActor(db *gorm.DB, actorID string) (string, map[string]any, error) {
	if actorID == "" {
		return "", nil, apperrors.ErrUnauthorized
	}
	id, err := uuid.Parse(actorID)
	if err != nil {
		return "", nil, apperrors.WithMessage(apperrors.ErrUnauthorized, "actor ID must be a UUID")
	}

	var user models.User
	if err := db.Where("id = ?", id).Limit(1).Find(&user).Error; err != nil {
		return "", nil, persistenceError(err)
	}
	if user.ID == "" {
		return "", nil, apperrors.WithMessage(apperrors.ErrUnauthorized, "unknown actor")
	}
	return user.ID, user.Snapshot(), nil
}
