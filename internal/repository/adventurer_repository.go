package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/tavern-guild/tavern/internal/models"
	"github.com/tavern-guild/tavern/internal/store"
)

// AdventurerRepository handles adventurer profile and skill operations.
type AdventurerRepository struct {
	db *DB
}

// NewAdventurerRepository creates a new adventurer repository.
func NewAdventurerRepository(db *DB) *AdventurerRepository {
	return &AdventurerRepository{db: db}
}

// Create creates a new profile.
func (r *AdventurerRepository) Create(ctx context.Context, profile *models.AdventurerProfile) error {
	if profile.ID == "" {
		profile.ID = models.NewID()
	}
	if err := r.db.conn(ctx).Create(profile).Error; err != nil {
		return wrap(err, "failed to create adventurer profile for user %s", profile.UserID)
	}
	return nil
}

// GetByUserID retrieves the profile owned by a user.
func (r *AdventurerRepository) GetByUserID(ctx context.Context, userID string) (*models.AdventurerProfile, error) {
	var profile models.AdventurerProfile
	if err := r.db.conn(ctx).Where("user_id = ?", userID).First(&profile).Error; err != nil {
		return nil, wrap(err, "failed to get adventurer profile for user %s", userID)
	}
	return &profile, nil
}

// UpdateDetails writes the descriptive and attribute columns of the profile.
// XP, rank and the completed quest count are left to AddXP and SetRank.
func (r *AdventurerRepository) UpdateDetails(ctx context.Context, profile *models.AdventurerProfile) error {
	at, err := r.db.updateColumns(ctx, &models.AdventurerProfile{}, profile.ID, map[string]interface{}{
		"title":             profile.Title,
		"bio":               profile.Bio,
		"class_name":        profile.ClassName,
		"attr_strength":     profile.Attributes.Strength,
		"attr_dexterity":    profile.Attributes.Dexterity,
		"attr_constitution": profile.Attributes.Constitution,
		"attr_intelligence": profile.Attributes.Intelligence,
		"attr_wisdom":       profile.Attributes.Wisdom,
		"attr_charisma":     profile.Attributes.Charisma,
	})
	if err != nil {
		return wrap(err, "failed to update adventurer profile %s", profile.ID)
	}
	profile.UpdatedAt = at
	return nil
}

// AddXP increments xp and quests_completed in one statement and reads the row back.
// Inside a transaction the row stays locked until commit.
func (r *AdventurerRepository) AddXP(ctx context.Context, userID string, xp int64) (*models.AdventurerProfile, error) {
	res := r.db.conn(ctx).
		Model(&models.AdventurerProfile{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"xp":               gorm.Expr("xp + ?", xp),
			"quests_completed": gorm.Expr("quests_completed + 1"),
			"updated_at":       r.db.NowFunc(),
		})
	if res.Error != nil {
		return nil, wrap(res.Error, "failed to add xp for user %s", userID)
	}
	if res.RowsAffected == 0 {
		return nil, wrap(store.ErrNotFound, "failed to add xp for user %s", userID)
	}
	return r.GetByUserID(ctx, userID)
}

// SetRank writes the rank when the profile still holds xp. A newer total is
// left for the writer that produced it.
func (r *AdventurerRepository) SetRank(ctx context.Context, profileID string, xp int64, rank models.Rank) error {
	err := r.db.conn(ctx).
		Model(&models.AdventurerProfile{}).
		Where("id = ? AND xp = ?", profileID, xp).
		UpdateColumn("rank", rank).Error
	if err != nil {
		return wrap(err, "failed to set rank of adventurer profile %s", profileID)
	}
	return nil
}

// ListTopByXP returns profiles with the most XP first. Ties go to the profile
// that reached its total earliest.
func (r *AdventurerRepository) ListTopByXP(ctx context.Context, limit int) ([]models.AdventurerProfile, error) {
	query := r.db.conn(ctx).Order("xp DESC").Order("updated_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var profiles []models.AdventurerProfile
	if err := query.Find(&profiles).Error; err != nil {
		return nil, wrap(err, "failed to list adventurers by xp")
	}
	return profiles, nil
}

// CreateSkill adds a skill. Returns store.ErrDuplicate when the name is taken.
func (r *AdventurerRepository) CreateSkill(ctx context.Context, skill *models.AdventurerSkill) error {
	if skill.ID == "" {
		skill.ID = models.NewID()
	}
	if err := r.db.conn(ctx).Create(skill).Error; err != nil {
		return wrap(err, "failed to create skill %q", skill.Name)
	}
	return nil
}

// GetSkill retrieves a skill by ID.
func (r *AdventurerRepository) GetSkill(ctx context.Context, id string) (*models.AdventurerSkill, error) {
	var skill models.AdventurerSkill
	if err := r.db.conn(ctx).Where("id = ?", id).First(&skill).Error; err != nil {
		return nil, wrap(err, "failed to get skill %s", id)
	}
	return &skill, nil
}

// ListSkills returns an adventurer's skills ordered by level then name.
func (r *AdventurerRepository) ListSkills(ctx context.Context, adventurerID string) ([]models.AdventurerSkill, error) {
	var skills []models.AdventurerSkill
	err := r.db.conn(ctx).
		Where("adventurer_id = ?", adventurerID).
		Order("level DESC").
		Order("name ASC").
		Find(&skills).Error
	if err != nil {
		return nil, wrap(err, "failed to list skills for adventurer %s", adventurerID)
	}
	return skills, nil
}

// UpdateSkill saves a skill.
func (r *AdventurerRepository) UpdateSkill(ctx context.Context, skill *models.AdventurerSkill) error {
	if err := r.db.conn(ctx).Save(skill).Error; err != nil {
		return wrap(err, "failed to update skill %s", skill.ID)
	}
	return nil
}

// DeleteSkill removes a skill.
func (r *AdventurerRepository) DeleteSkill(ctx context.Context, id string) error {
	res := r.db.conn(ctx).Where("id = ?", id).Delete(&models.AdventurerSkill{})
	if res.Error != nil {
		return wrap(res.Error, "failed to delete skill %s", id)
	}
	if res.RowsAffected == 0 {
		return wrap(store.ErrNotFound, "failed to delete skill %s", id)
	}
	return nil
}
