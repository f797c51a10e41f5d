package docstore

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tavern-guild/tavern/internal/models"
)

// AdventurerStore persists profiles and skills in two collections.
type AdventurerStore struct {
	profiles *mongo.Collection
	skills   *mongo.Collection
}

// Create inserts a profile.
func (s *AdventurerStore) Create(ctx context.Context, profile *models.AdventurerProfile) error {
	if profile.ID == "" {
		profile.ID = models.NewID()
	}
	profile.CreatedAt = now()
	profile.UpdatedAt = profile.CreatedAt

	if _, err := s.profiles.InsertOne(ctx, profile); err != nil {
		return wrap(err, "failed to create adventurer profile for user %s", profile.UserID)
	}
	return nil
}

// GetByUserID retrieves the profile owned by a user.
func (s *AdventurerStore) GetByUserID(ctx context.Context, userID string) (*models.AdventurerProfile, error) {
	var profile models.AdventurerProfile
	if err := s.profiles.FindOne(ctx, bson.M{"userId": userID}).Decode(&profile); err != nil {
		return nil, wrap(err, "failed to get adventurer profile for user %s", userID)
	}
	return &profile, nil
}

// UpdateDetails sets the descriptive fields and attributes.
func (s *AdventurerStore) UpdateDetails(ctx context.Context, profile *models.AdventurerProfile) error {
	at := now()
	err := setByID(ctx, s.profiles, profile.ID, bson.M{
		"title":      profile.Title,
		"bio":        profile.Bio,
		"className":  profile.ClassName,
		"attributes": profile.Attributes,
		"updatedAt":  at,
	})
	if err != nil {
		return wrap(err, "failed to update adventurer profile %s", profile.ID)
	}
	profile.UpdatedAt = at
	return nil
}

// AddXP increments xp and questsCompleted with $inc and returns the updated document.
func (s *AdventurerStore) AddXP(ctx context.Context, userID string, xp int64) (*models.AdventurerProfile, error) {
	var profile models.AdventurerProfile
	err := s.profiles.FindOneAndUpdate(ctx,
		bson.M{"userId": userID},
		bson.M{
			"$inc": bson.M{"xp": xp, "questsCompleted": 1},
			"$set": bson.M{"updatedAt": now()},
		},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&profile)
	if err != nil {
		return nil, wrap(err, "failed to add xp for user %s", userID)
	}
	return &profile, nil
}

// SetRank sets the rank when the profile still holds xp.
func (s *AdventurerStore) SetRank(ctx context.Context, profileID string, xp int64, rank models.Rank) error {
	_, err := s.profiles.UpdateOne(ctx,
		bson.M{"_id": profileID, "xp": xp},
		bson.M{"$set": bson.M{"rank": rank}},
	)
	if err != nil {
		return wrap(err, "failed to set rank of adventurer profile %s", profileID)
	}
	return nil
}

// ListTopByXP returns profiles with the most XP first.
func (s *AdventurerStore) ListTopByXP(ctx context.Context, limit int) ([]models.AdventurerProfile, error) {
	profiles := []models.AdventurerProfile{}
	opts := page(bson.D{{Key: "xp", Value: -1}, {Key: "updatedAt", Value: 1}}, limit, 0)
	if err := findAll(ctx, s.profiles, bson.M{}, opts, &profiles); err != nil {
		return nil, wrap(err, "failed to list adventurers by xp")
	}
	return profiles, nil
}

// CreateSkill inserts a skill.
func (s *AdventurerStore) CreateSkill(ctx context.Context, skill *models.AdventurerSkill) error {
	if skill.ID == "" {
		skill.ID = models.NewID()
	}
	skill.CreatedAt = now()
	skill.UpdatedAt = skill.CreatedAt

	if _, err := s.skills.InsertOne(ctx, skill); err != nil {
		return wrap(err, "failed to create skill %q", skill.Name)
	}
	return nil
}

// GetSkill retrieves a skill by ID.
func (s *AdventurerStore) GetSkill(ctx context.Context, id string) (*models.AdventurerSkill, error) {
	var skill models.AdventurerSkill
	if err := s.skills.FindOne(ctx, bson.M{"_id": id}).Decode(&skill); err != nil {
		return nil, wrap(err, "failed to get skill %s", id)
	}
	return &skill, nil
}

// ListSkills returns an adventurer's skills ordered by level then name.
func (s *AdventurerStore) ListSkills(ctx context.Context, adventurerID string) ([]models.AdventurerSkill, error) {
	skills := []models.AdventurerSkill{}
	opts := page(bson.D{{Key: "level", Value: -1}, {Key: "name", Value: 1}}, 0, 0)
	if err := findAll(ctx, s.skills, bson.M{"adventurerId": adventurerID}, opts, &skills); err != nil {
		return nil, wrap(err, "failed to list skills for adventurer %s", adventurerID)
	}
	return skills, nil
}

// UpdateSkill replaces a skill document.
func (s *AdventurerStore) UpdateSkill(ctx context.Context, skill *models.AdventurerSkill) error {
	skill.UpdatedAt = now()
	if err := replaceByID(ctx, s.skills, skill.ID, skill); err != nil {
		return wrap(err, "failed to update skill %s", skill.ID)
	}
	return nil
}

// DeleteSkill removes a skill.
func (s *AdventurerStore) DeleteSkill(ctx context.Context, id string) error {
	if err := deleteByID(ctx, s.skills, id); err != nil {
		return wrap(err, "failed to delete skill %s", id)
	}
	return nil
}
