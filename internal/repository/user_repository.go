package repository

import (
	"context"
	"strings"

	"github.com/tavern-guild/tavern/internal/models"
)

// UserRepository handles user-related database operations.
type UserRepository struct {
	db *DB
}

// NewUserRepository creates a new user repository.
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create creates a new user. Email and username are stored lowercased.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = models.NewID()
	}
	user.Email = strings.ToLower(user.Email)
	user.Username = strings.ToLower(user.Username)

	if err := r.db.conn(ctx).Create(user).Error; err != nil {
		return wrap(err, "failed to create user")
	}
	return nil
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := r.db.conn(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, wrap(err, "failed to get user by id %s", id)
	}
	return &user, nil
}

// GetByEmail retrieves a user by email, case-insensitively.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.conn(ctx).Where("email = ?", strings.ToLower(email)).First(&user).Error; err != nil {
		return nil, wrap(err, "failed to get user by email")
	}
	return &user, nil
}

// GetByUsername retrieves a user by username, case-insensitively.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := r.db.conn(ctx).Where("username = ?", strings.ToLower(username)).First(&user).Error; err != nil {
		return nil, wrap(err, "failed to get user by username %s", username)
	}
	return &user, nil
}
