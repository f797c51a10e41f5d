package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tavern-guild/tavern/internal/models"
	"github.com/tavern-guild/tavern/internal/store"
)

func createTestProfile(t *testing.T, db *DB, username string, xp int64) *models.AdventurerProfile {
	t.Helper()

	user := createTestUser(t, db, username, models.RoleAdventurer)
	profile := &models.AdventurerProfile{
		UserID:     user.ID,
		XP:         xp,
		Rank:       models.RankF,
		Attributes: models.DefaultAttributes(),
	}
	require.NoError(t, NewAdventurerRepository(db).Create(context.Background(), profile))
	return profile
}

func TestAdventurerRepository_UpdateDetails(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAdventurerRepository(db)
	ctx := context.Background()

	profile := createTestProfile(t, db, "aria", 0)

	got, err := repo.GetByUserID(ctx, profile.UserID)
	require.NoError(t, err)
	assert.Equal(t, 10, got.Attributes.Strength)

	got.Title = "Wanderer"
	got.Attributes.Wisdom = 17
	got.XP = 9999
	require.NoError(t, repo.UpdateDetails(ctx, got))

	reloaded, err := repo.GetByUserID(ctx, profile.UserID)
	require.NoError(t, err)
	assert.Equal(t, "Wanderer", reloaded.Title)
	assert.Equal(t, 17, reloaded.Attributes.Wisdom)
	assert.Equal(t, int64(0), reloaded.XP)

	assert.ErrorIs(t, repo.UpdateDetails(ctx, &models.AdventurerProfile{ID: "missing"}), store.ErrNotFound)
}

func TestAdventurerRepository_DetailsEditKeepsAwardedXP(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAdventurerRepository(db)
	ctx := context.Background()

	profile := createTestProfile(t, db, "aria", 0)

	// The profile editor loaded its copy before the quest was completed.
	stale, err := repo.GetByUserID(ctx, profile.UserID)
	require.NoError(t, err)

	awarded, err := repo.AddXP(ctx, profile.UserID, 700)
	require.NoError(t, err)
	assert.Equal(t, int64(700), awarded.XP)
	assert.Equal(t, 1, awarded.QuestsCompleted)
	require.NoError(t, repo.SetRank(ctx, awarded.ID, awarded.XP, models.RankC))

	stale.Bio = "Seeks the lost crown."
	require.NoError(t, repo.UpdateDetails(ctx, stale))

	reloaded, err := repo.GetByUserID(ctx, profile.UserID)
	require.NoError(t, err)
	assert.Equal(t, int64(700), reloaded.XP)
	assert.Equal(t, models.RankC, reloaded.Rank)
	assert.Equal(t, 1, reloaded.QuestsCompleted)
	assert.Equal(t, "Seeks the lost crown.", reloaded.Bio)
}

func TestAdventurerRepository_AddXPAccumulates(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAdventurerRepository(db)
	ctx := context.Background()

	profile := createTestProfile(t, db, "aria", 150)

	first, err := repo.AddXP(ctx, profile.UserID, 400)
	require.NoError(t, err)
	second, err := repo.AddXP(ctx, profile.UserID, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(550), first.XP)
	assert.Equal(t, int64(650), second.XP)
	assert.Equal(t, 2, second.QuestsCompleted)

	// A rank computed from an older total is ignored.
	require.NoError(t, repo.SetRank(ctx, profile.ID, first.XP, models.RankA))
	require.NoError(t, repo.SetRank(ctx, profile.ID, second.XP, models.RankD))

	reloaded, err := repo.GetByUserID(ctx, profile.UserID)
	require.NoError(t, err)
	assert.Equal(t, models.RankD, reloaded.Rank)

	_, err = repo.AddXP(ctx, "missing", 100)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestAdventurerRepository_ListTopByXP(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAdventurerRepository(db)

	createTestProfile(t, db, "low", 100)
	createTestProfile(t, db, "high", 900)
	createTestProfile(t, db, "mid", 400)

	top, err := repo.ListTopByXP(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, int64(900), top[0].XP)
	assert.Equal(t, int64(400), top[1].XP)
}

func TestAdventurerRepository_Skills(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAdventurerRepository(db)
	ctx := context.Background()

	profile := createTestProfile(t, db, "aria", 0)

	sword := &models.AdventurerSkill{AdventurerID: profile.ID, Name: "Swordplay", Level: 3}
	require.NoError(t, repo.CreateSkill(ctx, sword))
	require.NoError(t, repo.CreateSkill(ctx, &models.AdventurerSkill{AdventurerID: profile.ID, Name: "Alchemy", Level: 7}))

	err := repo.CreateSkill(ctx, &models.AdventurerSkill{AdventurerID: profile.ID, Name: "Swordplay", Level: 1})
	assert.ErrorIs(t, err, store.ErrDuplicate)

	skills, err := repo.ListSkills(ctx, profile.ID)
	require.NoError(t, err)
	require.Len(t, skills, 2)
	assert.Equal(t, "Alchemy", skills[0].Name)

	sword.Level = 9
	require.NoError(t, repo.UpdateSkill(ctx, sword))
	got, err := repo.GetSkill(ctx, sword.ID)
	require.NoError(t, err)
	assert.Equal(t, 9, got.Level)

	require.NoError(t, repo.DeleteSkill(ctx, sword.ID))
	assert.ErrorIs(t, repo.DeleteSkill(ctx, sword.ID), store.ErrNotFound)
}
