package repository

import (
	"context"
	"time"

	"github.com/tavern-guild/tavern/internal/models"
	"github.com/tavern-guild/tavern/internal/store"
)

// QuestRepository handles quest operations.
type QuestRepository struct {
	db *DB
}

// NewQuestRepository creates a new quest repository.
func NewQuestRepository(db *DB) *QuestRepository {
	return &QuestRepository{db: db}
}

// Create creates a new quest.
func (r *QuestRepository) Create(ctx context.Context, quest *models.Quest) error {
	if quest.ID == "" {
		quest.ID = models.NewID()
	}
	if quest.Tags == nil {
		quest.Tags = []string{}
	}
	if err := r.db.conn(ctx).Create(quest).Error; err != nil {
		return wrap(err, "failed to create quest %q", quest.Title)
	}
	return nil
}

// GetByID retrieves a quest by ID.
func (r *QuestRepository) GetByID(ctx context.Context, id string) (*models.Quest, error) {
	var quest models.Quest
	if err := r.db.conn(ctx).Where("id = ?", id).First(&quest).Error; err != nil {
		return nil, wrap(err, "failed to get quest %s", id)
	}
	return &quest, nil
}

// Update saves every field of the quest.
func (r *QuestRepository) Update(ctx context.Context, quest *models.Quest) error {
	if err := r.db.conn(ctx).Save(quest).Error; err != nil {
		return wrap(err, "failed to update quest %s", quest.ID)
	}
	return nil
}

// MarkCompleted completes the quest only while it is still open, so two
// concurrent completions cannot both succeed.
func (r *QuestRepository) MarkCompleted(ctx context.Context, id string, at time.Time) error {
	res := r.db.conn(ctx).
		Model(&models.Quest{}).
		Where("id = ? AND status IN ?", id, []models.QuestStatus{models.QuestPosted, models.QuestInProgress}).
		Updates(map[string]interface{}{
			"status":       models.QuestCompleted,
			"completed_at": at,
			"updated_at":   r.db.NowFunc(),
		})
	if res.Error != nil {
		return wrap(res.Error, "failed to complete quest %s", id)
	}
	if res.RowsAffected == 0 {
		return wrap(store.ErrConflict, "failed to complete quest %s", id)
	}
	return nil
}

// Delete removes a quest.
func (r *QuestRepository) Delete(ctx context.Context, id string) error {
	res := r.db.conn(ctx).Where("id = ?", id).Delete(&models.Quest{})
	if res.Error != nil {
		return wrap(res.Error, "failed to delete quest %s", id)
	}
	if res.RowsAffected == 0 {
		return wrap(store.ErrNotFound, "failed to delete quest %s", id)
	}
	return nil
}

// ListByCreator returns the quests created by an NPC, newest first.
func (r *QuestRepository) ListByCreator(ctx context.Context, creatorID string, status models.QuestStatus) ([]models.Quest, error) {
	query := r.db.conn(ctx).Where("created_by = ?", creatorID)
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var quests []models.Quest
	if err := query.Order("created_at DESC").Order("id ASC").Find(&quests).Error; err != nil {
		return nil, wrap(err, "failed to list quests for creator %s", creatorID)
	}
	return quests, nil
}
