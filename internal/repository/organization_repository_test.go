package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tavern-guild/tavern/internal/models"
	"github.com/tavern-guild/tavern/internal/store"
)

func createTestOrg(t *testing.T, db *DB, username string, verified, flagged bool) *models.NpcOrganization {
	t.Helper()

	user := createTestUser(t, db, username, models.RoleNPC)
	org := &models.NpcOrganization{
		UserID:    user.ID,
		Name:      username + " Guild",
		Slug:      username + "-guild",
		Verified:  verified,
		IsFlagged: flagged,
	}
	org.SetTrust(50)
	require.NoError(t, NewOrganizationRepository(db).Create(context.Background(), org))
	return org
}

func TestOrganizationRepository_CreateAndGet(t *testing.T) {
	db := setupTestDB(t)
	repo := NewOrganizationRepository(db)
	ctx := context.Background()

	org := createTestOrg(t, db, "bram", false, false)

	got, err := repo.GetByUserID(ctx, org.UserID)
	require.NoError(t, err)
	assert.Equal(t, org.ID, got.ID)
	assert.Equal(t, models.TrustMedium, got.TrustTier)

	got.SetTrust(0)
	require.NoError(t, repo.UpdateTrust(ctx, got))

	reloaded, err := repo.GetByID(ctx, org.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, reloaded.TrustScore)
	assert.Equal(t, models.TrustLow, reloaded.TrustTier)
}

func TestOrganizationRepository_TrustWriteKeepsModeration(t *testing.T) {
	db := setupTestDB(t)
	repo := NewOrganizationRepository(db)
	ctx := context.Background()

	org := createTestOrg(t, db, "bram", false, false)

	// A refresh holds a copy from before the guild master acts.
	stale, err := repo.GetByID(ctx, org.ID)
	require.NoError(t, err)

	moderated, err := repo.GetByID(ctx, org.ID)
	require.NoError(t, err)
	moderated.Verified = true
	moderated.IsFlagged = true
	moderated.FlagReason = "fraud"
	require.NoError(t, repo.UpdateModeration(ctx, moderated))

	stale.SetTrust(40)
	require.NoError(t, repo.UpdateTrust(ctx, stale))
	stale.Name = "Bram Traders"
	require.NoError(t, repo.UpdateProfile(ctx, stale))

	reloaded, err := repo.GetByID(ctx, org.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.IsFlagged)
	assert.True(t, reloaded.Verified)
	assert.Equal(t, "fraud", reloaded.FlagReason)
	assert.Equal(t, 40, reloaded.TrustScore)
	assert.Equal(t, models.TrustMedium, reloaded.TrustTier)
	assert.Equal(t, "Bram Traders", reloaded.Name)
	assert.Equal(t, "bram-guild", reloaded.Slug)
}

func TestOrganizationRepository_UpdateMissing(t *testing.T) {
	db := setupTestDB(t)
	repo := NewOrganizationRepository(db)

	err := repo.UpdateModeration(context.Background(), &models.NpcOrganization{ID: "missing"})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestOrganizationRepository_DuplicateSlug(t *testing.T) {
	db := setupTestDB(t)
	repo := NewOrganizationRepository(db)

	createTestOrg(t, db, "bram", false, false)
	other := createTestUser(t, db, "other", models.RoleNPC)

	err := repo.Create(context.Background(), &models.NpcOrganization{
		UserID: other.ID,
		Name:   "Bram Guild",
		Slug:   "bram-guild",
	})
	assert.ErrorIs(t, err, store.ErrDuplicate)
}

func TestOrganizationRepository_ListFilters(t *testing.T) {
	db := setupTestDB(t)
	repo := NewOrganizationRepository(db)
	ctx := context.Background()

	createTestOrg(t, db, "a", true, false)
	createTestOrg(t, db, "b", false, true)
	createTestOrg(t, db, "c", true, true)

	verified := true
	orgs, total, err := repo.List(ctx, store.OrganizationFilter{Verified: &verified})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, orgs, 2)

	flagged := true
	orgs, total, err = repo.List(ctx, store.OrganizationFilter{Verified: &verified, Flagged: &flagged})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, orgs, 1)
	assert.Equal(t, "c-guild", orgs[0].Slug)

	orgs, total, err = repo.List(ctx, store.OrganizationFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, orgs, 1)
}
