package docstore

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/tavern-guild/tavern/internal/models"
	"github.com/tavern-guild/tavern/internal/store"
)

// QuestStore persists quests.
type QuestStore struct {
	coll *mongo.Collection
}

// Create inserts a quest.
func (s *QuestStore) Create(ctx context.Context, quest *models.Quest) error {
	if quest.ID == "" {
		quest.ID = models.NewID()
	}
	if quest.Tags == nil {
		quest.Tags = []string{}
	}
	quest.CreatedAt = now()
	quest.UpdatedAt = quest.CreatedAt

	if _, err := s.coll.InsertOne(ctx, quest); err != nil {
		return wrap(err, "failed to create quest %q", quest.Title)
	}
	return nil
}

// GetByID retrieves a quest by ID.
func (s *QuestStore) GetByID(ctx context.Context, id string) (*models.Quest, error) {
	var quest models.Quest
	if err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&quest); err != nil {
		return nil, wrap(err, "failed to get quest %s", id)
	}
	return &quest, nil
}

// Update replaces the quest document.
func (s *QuestStore) Update(ctx context.Context, quest *models.Quest) error {
	quest.UpdatedAt = now()
	if err := replaceByID(ctx, s.coll, quest.ID, quest); err != nil {
		return wrap(err, "failed to update quest %s", quest.ID)
	}
	return nil
}

// MarkCompleted completes the quest only while it is still open.
func (s *QuestStore) MarkCompleted(ctx context.Context, id string, at time.Time) error {
	res, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": id, "status": bson.M{"$in": bson.A{models.QuestPosted, models.QuestInProgress}}},
		bson.M{"$set": bson.M{"status": models.QuestCompleted, "completedAt": at, "updatedAt": now()}},
	)
	if err != nil {
		return wrap(err, "failed to complete quest %s", id)
	}
	if res.MatchedCount == 0 {
		return wrap(store.ErrConflict, "failed to complete quest %s", id)
	}
	return nil
}

// Delete removes a quest.
func (s *QuestStore) Delete(ctx context.Context, id string) error {
	if err := deleteByID(ctx, s.coll, id); err != nil {
		return wrap(err, "failed to delete quest %s", id)
	}
	return nil
}

// ListByCreator returns the quests created by an NPC, newest first.
func (s *QuestStore) ListByCreator(ctx context.Context, creatorID string, status models.QuestStatus) ([]models.Quest, error) {
	quests := []models.Quest{}
	opts := page(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: 1}}, 0, 0)
	if err := findAll(ctx, s.coll, questQuery(creatorID, status), opts, &quests); err != nil {
		return nil, wrap(err, "failed to list quests for creator %s", creatorID)
	}
	return quests, nil
}

func questQuery(creatorID string, status models.QuestStatus) bson.M {
	query := bson.M{"createdBy": creatorID}
	if status != "" {
		query["status"] = status
	}
	return query
}
