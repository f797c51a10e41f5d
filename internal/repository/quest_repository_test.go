package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tavern-guild/tavern/internal/models"
	"github.com/tavern-guild/tavern/internal/store"
)

func TestQuestRepository_CreateAndUpdate(t *testing.T) {
	db := setupTestDB(t)
	repo := NewQuestRepository(db)
	ctx := context.Background()

	npc := createTestUser(t, db, "bram", models.RoleNPC)
	hero := createTestUser(t, db, "aria", models.RoleAdventurer)
	quest := createTestQuest(t, db, npc.ID, "Clear the cellar", models.QuestDraft)

	got, err := repo.GetByID(ctx, quest.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"escort"}, got.Tags)
	assert.Nil(t, got.AssignedTo)

	now := time.Now().UTC()
	got.Status = models.QuestCompleted
	got.AssignedTo = &hero.ID
	got.CompletedAt = &now
	require.NoError(t, repo.Update(ctx, got))

	reloaded, err := repo.GetByID(ctx, quest.ID)
	require.NoError(t, err)
	assert.Equal(t, models.QuestCompleted, reloaded.Status)
	require.NotNil(t, reloaded.AssignedTo)
	assert.Equal(t, hero.ID, *reloaded.AssignedTo)
	assert.NotNil(t, reloaded.CompletedAt)
}

func TestQuestRepository_MarkCompletedOnce(t *testing.T) {
	db := setupTestDB(t)
	repo := NewQuestRepository(db)
	ctx := context.Background()

	npc := createTestUser(t, db, "bram", models.RoleNPC)
	quest := createTestQuest(t, db, npc.ID, "Clear the cellar", models.QuestInProgress)
	draft := createTestQuest(t, db, npc.ID, "Guard the gate", models.QuestDraft)

	at := time.Now().UTC()
	require.NoError(t, repo.MarkCompleted(ctx, quest.ID, at))
	assert.ErrorIs(t, repo.MarkCompleted(ctx, quest.ID, at), store.ErrConflict)
	assert.ErrorIs(t, repo.MarkCompleted(ctx, draft.ID, at), store.ErrConflict)

	reloaded, err := repo.GetByID(ctx, quest.ID)
	require.NoError(t, err)
	assert.Equal(t, models.QuestCompleted, reloaded.Status)
	assert.NotNil(t, reloaded.CompletedAt)

	untouched, err := repo.GetByID(ctx, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, models.QuestDraft, untouched.Status)
}

func TestQuestRepository_ListByCreator(t *testing.T) {
	db := setupTestDB(t)
	repo := NewQuestRepository(db)
	ctx := context.Background()

	npc := createTestUser(t, db, "bram", models.RoleNPC)
	other := createTestUser(t, db, "other", models.RoleNPC)

	createTestQuest(t, db, npc.ID, "first", models.QuestDraft)
	createTestQuest(t, db, npc.ID, "second", models.QuestPosted)
	createTestQuest(t, db, other.ID, "foreign", models.QuestPosted)

	all, err := repo.ListByCreator(ctx, npc.ID, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "second", all[0].Title)

	posted, err := repo.ListByCreator(ctx, npc.ID, models.QuestPosted)
	require.NoError(t, err)
	require.Len(t, posted, 1)
	assert.Equal(t, "second", posted[0].Title)
}

func TestQuestRepository_Delete(t *testing.T) {
	db := setupTestDB(t)
	repo := NewQuestRepository(db)
	ctx := context.Background()

	npc := createTestUser(t, db, "bram", models.RoleNPC)
	quest := createTestQuest(t, db, npc.ID, "doomed", models.QuestDraft)

	require.NoError(t, repo.Delete(ctx, quest.ID))
	_, err := repo.GetByID(ctx, quest.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, quest.ID), store.ErrNotFound)
}
