package docstore

import (
	"context"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/tavern-guild/tavern/internal/models"
)

// UserStore persists users in the users collection.
type UserStore struct {
	coll *mongo.Collection
}

// Create inserts a user. Email and username are stored lowercased.
func (s *UserStore) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = models.NewID()
	}
	user.Email = strings.ToLower(user.Email)
	user.Username = strings.ToLower(user.Username)
	user.CreatedAt = now()
	user.UpdatedAt = user.CreatedAt

	if _, err := s.coll.InsertOne(ctx, user); err != nil {
		return wrap(err, "failed to create user")
	}
	return nil
}

// GetByID retrieves a user by ID.
func (s *UserStore) GetByID(ctx context.Context, id string) (*models.User, error) {
	return s.findOne(ctx, bson.M{"_id": id}, "id "+id)
}

// GetByEmail retrieves a user by email.
func (s *UserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findOne(ctx, bson.M{"email": strings.ToLower(email)}, "email")
}

// GetByUsername retrieves a user by username.
func (s *UserStore) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.findOne(ctx, bson.M{"username": strings.ToLower(username)}, "username "+username)
}

func (s *UserStore) findOne(ctx context.Context, filter bson.M, what string) (*models.User, error) {
	var user models.User
	if err := s.coll.FindOne(ctx, filter).Decode(&user); err != nil {
		return nil, wrap(err, "failed to get user by %s", what)
	}
	return &user, nil
}
