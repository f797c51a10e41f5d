package quests

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tavern-guild/tavern/internal/apperr"
	"github.com/tavern-guild/tavern/internal/mattermost"
	"github.com/tavern-guild/tavern/internal/models"
	"github.com/tavern-guild/tavern/internal/service/certificates"
	"github.com/tavern-guild/tavern/internal/service/notifications"
	"github.com/tavern-guild/tavern/internal/store"
	"github.com/tavern-guild/tavern/pkg/logger"
	"github.com/tavern-guild/tavern/test/mocks"
)

type recordingAnnouncer struct {
	calls []mattermost.QuestCompletion
}

func (a *recordingAnnouncer) AnnounceQuestCompleted(_ context.Context, qc mattermost.QuestCompletion) error {
	a.calls = append(a.calls, qc)
	return nil
}

type fixture struct {
	svc       *Service
	mem       *mocks.MemoryStore
	stores    store.Stores
	announcer *recordingAnnouncer
	npc       *models.User
	hero      *models.User
}

func setup(t *testing.T) *fixture {
	t.Helper()

	mem := mocks.NewMemoryStore()
	stores := mem.Stores()
	log := logger.Nop()

	certs := certificates.NewService(stores, nil, log)
	notifier := notifications.NewService(stores, nil, mocks.NewRecordingPublisher(), log)
	announcer := &recordingAnnouncer{}

	f := &fixture{
		svc:       NewService(stores, certs, notifier, announcer, log),
		mem:       mem,
		stores:    stores,
		announcer: announcer,
	}
	f.npc = f.createUser(t, "ravenhold", models.RoleNPC)
	f.hero = f.createUser(t, "aria", models.RoleAdventurer)

	ctx := context.Background()
	require.NoError(t, stores.Organizations.Create(ctx, &models.NpcOrganization{
		UserID: f.npc.ID,
		Name:   "Ravenhold Trading Co",
		Slug:   "ravenhold-trading-co",
	}))
	require.NoError(t, stores.Adventurers.Create(ctx, &models.AdventurerProfile{
		UserID:     f.hero.ID,
		Rank:       models.RankF,
		Attributes: models.DefaultAttributes(),
	}))
	return f
}

func (f *fixture) createUser(t *testing.T, username string, role models.Role) *models.User {
	t.Helper()

	user := &models.User{Email: username + "@example.com", Username: username, Role: role, PasswordHash: "x"}
	require.NoError(t, f.stores.Users.Create(context.Background(), user))
	return user
}

// seedQuest stores a quest directly so tests can start from any status.
func (f *fixture) seedQuest(t *testing.T, status models.QuestStatus, difficulty models.Difficulty, assignee *models.User) *models.Quest {
	t.Helper()

	quest := &models.Quest{
		Title:      "Clear the cellar",
		Difficulty: difficulty,
		RewardGold: 50,
		Status:     status,
		CreatedBy:  f.npc.ID,
	}
	if assignee != nil {
		id := assignee.ID
		quest.AssignedTo = &id
	}
	require.NoError(t, f.stores.Quests.Create(context.Background(), quest))
	return quest
}

func (f *fixture) notificationTypes(t *testing.T, userID string) []models.NotificationType {
	t.Helper()

	items, err := f.stores.Notifications.ListByUser(context.Background(), userID, store.NotificationFilter{})
	require.NoError(t, err)
	types := make([]models.NotificationType, 0, len(items))
	for _, n := range items {
		types = append(types, n.Type)
	}
	return types
}

func strPtr(s string) *string { return &s }

func TestCreate_Defaults(t *testing.T) {
	f := setup(t)

	quest, err := f.svc.Create(context.Background(), f.npc.ID, CreateInput{
		Title: "  Escort the caravan ",
		Tags:  []string{"Escort", "escort", " road "},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, quest.ID)
	assert.Equal(t, "Escort the caravan", quest.Title)
	assert.Equal(t, models.QuestDraft, quest.Status)
	assert.Equal(t, models.DifficultyEasy, quest.Difficulty)
	assert.Equal(t, []string{"escort", "road"}, quest.Tags)
	assert.Equal(t, f.npc.ID, quest.CreatedBy)
}

func TestCreate_InitialStatus(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	quest, err := f.svc.Create(ctx, f.npc.ID, CreateInput{Title: "Posted", Status: models.QuestPosted})
	require.NoError(t, err)
	assert.Equal(t, models.QuestPosted, quest.Status)

	for _, status := range []models.QuestStatus{models.QuestInProgress, models.QuestCompleted, models.QuestCancelled} {
		_, err := f.svc.Create(ctx, f.npc.ID, CreateInput{Title: "Bad", Status: status})
		assert.True(t, apperr.IsKind(err, apperr.KindValidation), string(status))
	}
}

func TestCreate_Validation(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, f.npc.ID, CreateInput{Title: "   "})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	_, err = f.svc.Create(ctx, f.npc.ID, CreateInput{Title: "x", Difficulty: "LEGENDARY"})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	_, err = f.svc.Create(ctx, f.npc.ID, CreateInput{Title: "x", RewardGold: -1})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestListMine(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	other := f.createUser(t, "other", models.RoleNPC)
	f.seedQuest(t, models.QuestDraft, models.DifficultyEasy, nil)
	f.seedQuest(t, models.QuestPosted, models.DifficultyEasy, nil)
	_, err := f.svc.Create(ctx, other.ID, CreateInput{Title: "Not mine"})
	require.NoError(t, err)

	all, err := f.svc.ListMine(ctx, f.npc.ID, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	posted, err := f.svc.ListMine(ctx, f.npc.ID, models.QuestPosted)
	require.NoError(t, err)
	require.Len(t, posted, 1)
	assert.Equal(t, models.QuestPosted, posted[0].Status)

	_, err = f.svc.ListMine(ctx, f.npc.ID, "LOST")
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestGetMine_HidesOtherNPCsQuests(t *testing.T) {
	f := setup(t)
	other := f.createUser(t, "other", models.RoleNPC)
	quest := f.seedQuest(t, models.QuestDraft, models.DifficultyEasy, nil)

	_, err := f.svc.GetMine(context.Background(), other.ID, quest.ID)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))

	_, err = f.svc.GetMine(context.Background(), f.npc.ID, "missing")
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestUpdate_GatedByStatus(t *testing.T) {
	for _, status := range models.AllQuestStatuses {
		t.Run(string(status), func(t *testing.T) {
			f := setup(t)
			quest := f.seedQuest(t, status, models.DifficultyEasy, nil)

			updated, err := f.svc.Update(context.Background(), f.npc.ID, quest.ID, UpdateInput{Title: strPtr("Renamed")})
			if Editable(status) {
				require.NoError(t, err)
				assert.Equal(t, "Renamed", updated.Title)
				return
			}
			assert.True(t, apperr.IsKind(err, apperr.KindPolicy))
		})
	}
}

func TestUpdate_Assignment(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	quest := f.seedQuest(t, models.QuestPosted, models.DifficultyEasy, nil)

	updated, err := f.svc.Update(ctx, f.npc.ID, quest.ID, UpdateInput{AssignedTo: strPtr(f.hero.ID)})
	require.NoError(t, err)
	require.NotNil(t, updated.AssignedTo)
	assert.Equal(t, f.hero.ID, *updated.AssignedTo)
	assert.Equal(t, models.QuestPosted, updated.Status)
	assert.Equal(t, []models.NotificationType{models.NotificationQuestAssigned}, f.notificationTypes(t, f.hero.ID))

	_, err = f.svc.Update(ctx, f.npc.ID, quest.ID, UpdateInput{AssignedTo: strPtr(f.npc.ID)})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	_, err = f.svc.Update(ctx, f.npc.ID, quest.ID, UpdateInput{AssignedTo: strPtr("ghost")})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	cleared, err := f.svc.Update(ctx, f.npc.ID, quest.ID, UpdateInput{AssignedTo: strPtr("")})
	require.NoError(t, err)
	assert.Nil(t, cleared.AssignedTo)
}

func TestDelete_OnlyDraft(t *testing.T) {
	for _, status := range models.AllQuestStatuses {
		t.Run(string(status), func(t *testing.T) {
			f := setup(t)
			quest := f.seedQuest(t, status, models.DifficultyEasy, nil)

			err := f.svc.Delete(context.Background(), f.npc.ID, quest.ID)
			if status == models.QuestDraft {
				require.NoError(t, err)
				_, err = f.stores.Quests.GetByID(context.Background(), quest.ID)
				assert.ErrorIs(t, err, store.ErrNotFound)
				return
			}
			assert.True(t, apperr.IsKind(err, apperr.KindPolicy))
		})
	}
}

func TestChangeStatus(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	quest := f.seedQuest(t, models.QuestDraft, models.DifficultyEasy, f.hero)

	same, err := f.svc.ChangeStatus(ctx, f.npc.ID, quest.ID, models.QuestDraft)
	require.NoError(t, err)
	assert.Equal(t, models.QuestDraft, same.Status)

	posted, err := f.svc.ChangeStatus(ctx, f.npc.ID, quest.ID, models.QuestPosted)
	require.NoError(t, err)
	assert.Equal(t, models.QuestPosted, posted.Status)

	_, err = f.svc.ChangeStatus(ctx, f.npc.ID, quest.ID, models.QuestDraft)
	assert.True(t, apperr.IsKind(err, apperr.KindPolicy))

	_, err = f.svc.ChangeStatus(ctx, f.npc.ID, quest.ID, models.QuestCompleted)
	assert.True(t, apperr.IsKind(err, apperr.KindPolicy))

	_, err = f.svc.ChangeStatus(ctx, f.npc.ID, quest.ID, "LOST")
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	cancelled, err := f.svc.ChangeStatus(ctx, f.npc.ID, quest.ID, models.QuestCancelled)
	require.NoError(t, err)
	assert.Equal(t, models.QuestCancelled, cancelled.Status)
	assert.NotNil(t, cancelled.CancelledAt)
	assert.Contains(t, f.notificationTypes(t, f.hero.ID), models.NotificationQuestCancelled)

	_, err = f.svc.ChangeStatus(ctx, f.npc.ID, quest.ID, models.QuestPosted)
	assert.True(t, apperr.IsKind(err, apperr.KindPolicy))
}

func TestComplete_AwardsOnce(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	quest := f.seedQuest(t, models.QuestPosted, models.DifficultyHard, f.hero)

	result, err := f.svc.Complete(ctx, f.npc.ID, quest.ID)
	require.NoError(t, err)

	assert.Equal(t, int64(400), result.XPAwarded)
	assert.Equal(t, int64(400), result.XP)
	assert.Equal(t, models.RankD, result.Rank)
	assert.Equal(t, models.RankF, result.PreviousRank)
	assert.True(t, result.RankChanged)
	require.NotNil(t, result.Certificate)
	assert.Equal(t, quest.ID, result.Certificate.QuestID)
	assert.Equal(t, f.hero.ID, result.Certificate.AdventurerID)
	assert.Equal(t, "Ravenhold Trading Co", result.Certificate.OrganizationName)
	assert.Equal(t, models.RankD, result.Certificate.RankAtIssue)

	stored, err := f.stores.Quests.GetByID(ctx, quest.ID)
	require.NoError(t, err)
	assert.Equal(t, models.QuestCompleted, stored.Status)
	assert.NotNil(t, stored.CompletedAt)

	profile, err := f.stores.Adventurers.GetByUserID(ctx, f.hero.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(400), profile.XP)
	assert.Equal(t, models.RankD, profile.Rank)
	assert.Equal(t, 1, profile.QuestsCompleted)

	types := f.notificationTypes(t, f.hero.ID)
	assert.Contains(t, types, models.NotificationQuestCompleted)
	assert.Contains(t, types, models.NotificationRankUp)

	require.Len(t, f.announcer.calls, 1)
	assert.Equal(t, "aria", f.announcer.calls[0].AdventurerName)
	assert.Equal(t, result.Certificate.ScrollID, f.announcer.calls[0].ScrollID)

	_, err = f.svc.Complete(ctx, f.npc.ID, quest.ID)
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindPolicy))
	assert.Contains(t, err.Error(), "already completed")
	assert.Equal(t, 1, f.mem.CertificateCount())

	profile, err = f.stores.Adventurers.GetByUserID(ctx, f.hero.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(400), profile.XP)
}

func TestComplete_NoRankChange(t *testing.T) {
	f := setup(t)
	quest := f.seedQuest(t, models.QuestPosted, models.DifficultyEasy, f.hero)

	result, err := f.svc.Complete(context.Background(), f.npc.ID, quest.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RankF, result.Rank)
	assert.False(t, result.RankChanged)
	assert.NotContains(t, f.notificationTypes(t, f.hero.ID), models.NotificationRankUp)
}

func TestComplete_Preconditions(t *testing.T) {
	tests := []struct {
		name     string
		status   models.QuestStatus
		assigned bool
		caller   func(f *fixture, t *testing.T) string
		wantKind apperr.Kind
	}{
		{name: "other npc", status: models.QuestPosted, assigned: true, wantKind: apperr.KindForbidden,
			caller: func(f *fixture, t *testing.T) string { return f.createUser(t, "rival", models.RoleNPC).ID }},
		{name: "draft", status: models.QuestDraft, assigned: true, wantKind: apperr.KindPolicy},
		{name: "cancelled", status: models.QuestCancelled, assigned: true, wantKind: apperr.KindPolicy},
		{name: "completed", status: models.QuestCompleted, assigned: true, wantKind: apperr.KindPolicy},
		{name: "unassigned", status: models.QuestPosted, assigned: false, wantKind: apperr.KindPolicy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setup(t)
			var assignee *models.User
			if tt.assigned {
				assignee = f.hero
			}
			quest := f.seedQuest(t, tt.status, models.DifficultyEasy, assignee)

			caller := f.npc.ID
			if tt.caller != nil {
				caller = tt.caller(f, t)
			}

			_, err := f.svc.Complete(context.Background(), caller, quest.ID)
			require.Error(t, err)
			assert.Equal(t, tt.wantKind, apperr.KindOf(err))
			assert.Equal(t, 0, f.mem.CertificateCount())
		})
	}
}

func TestComplete_MissingQuest(t *testing.T) {
	f := setup(t)

	_, err := f.svc.Complete(context.Background(), f.npc.ID, "missing")
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestComplete_InProgress(t *testing.T) {
	f := setup(t)
	quest := f.seedQuest(t, models.QuestInProgress, models.DifficultyMedium, f.hero)

	result, err := f.svc.Complete(context.Background(), f.npc.ID, quest.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(200), result.XPAwarded)
	assert.Equal(t, models.RankE, result.Rank)
}

func TestComplete_CreatesMissingProfile(t *testing.T) {
	f := setup(t)
	rookie := f.createUser(t, "rookie", models.RoleAdventurer)
	quest := f.seedQuest(t, models.QuestPosted, models.DifficultyEpic, rookie)

	result, err := f.svc.Complete(context.Background(), f.npc.ID, quest.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(700), result.XP)
	assert.Equal(t, models.RankC, result.Rank)

	profile, err := f.stores.Adventurers.GetByUserID(context.Background(), rookie.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(700), profile.XP)
	assert.Equal(t, models.DefaultAttributes(), profile.Attributes)
}

func TestComplete_UnknownAdventurer(t *testing.T) {
	f := setup(t)
	quest := f.seedQuest(t, models.QuestPosted, models.DifficultyEasy, nil)
	quest.AssignedTo = strPtr("ghost")
	require.NoError(t, f.stores.Quests.Update(context.Background(), quest))

	_, err := f.svc.Complete(context.Background(), f.npc.ID, quest.ID)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestComplete_RollsBackOnFailure(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	quest := f.seedQuest(t, models.QuestPosted, models.DifficultyHard, f.hero)

	f.mem.FailOn("adventurers.AddXP", errors.New("disk full"))
	_, err := f.svc.Complete(ctx, f.npc.ID, quest.ID)
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindInternal))

	stored, err := f.stores.Quests.GetByID(ctx, quest.ID)
	require.NoError(t, err)
	assert.Equal(t, models.QuestPosted, stored.Status)
	assert.Equal(t, 0, f.mem.CertificateCount())
	assert.Empty(t, f.notificationTypes(t, f.hero.ID))
	assert.Empty(t, f.announcer.calls)

	f.mem.FailOn("adventurers.AddXP", nil)
	result, err := f.svc.Complete(ctx, f.npc.ID, quest.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(400), result.XP)
	assert.Equal(t, 1, f.mem.CertificateCount())
}

func TestComplete_OtherAdventurersCertificateBlocksAward(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	quest := f.seedQuest(t, models.QuestPosted, models.DifficultyHard, f.hero)
	rival := f.createUser(t, "brom", models.RoleAdventurer)

	require.NoError(t, f.stores.Certificates.Create(ctx, &models.Certificate{
		ScrollID:     "SOD-EXISTING-000000",
		AdventurerID: rival.ID,
		QuestID:      quest.ID,
	}))

	_, err := f.svc.Complete(ctx, f.npc.ID, quest.ID)
	assert.True(t, apperr.IsKind(err, apperr.KindPolicy))

	profile, err := f.stores.Adventurers.GetByUserID(ctx, f.hero.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), profile.XP)
}

func TestComplete_RetryFinishesWithoutRollback(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.mem.DisableRollback()
	quest := f.seedQuest(t, models.QuestPosted, models.DifficultyHard, f.hero)

	f.mem.FailOn("quests.MarkCompleted", errors.New("connection reset"))
	_, err := f.svc.Complete(ctx, f.npc.ID, quest.ID)
	require.Error(t, err)

	// The certificate survived the failed attempt; nothing else did.
	minted, err := f.stores.Certificates.GetByQuestID(ctx, quest.ID)
	require.NoError(t, err)
	stored, err := f.stores.Quests.GetByID(ctx, quest.ID)
	require.NoError(t, err)
	assert.Equal(t, models.QuestPosted, stored.Status)

	f.mem.FailOn("quests.MarkCompleted", nil)
	result, err := f.svc.Complete(ctx, f.npc.ID, quest.ID)
	require.NoError(t, err)
	assert.Equal(t, minted.ScrollID, result.Certificate.ScrollID)
	assert.Equal(t, int64(400), result.XPAwarded)
	assert.Equal(t, 1, f.mem.CertificateCount())

	profile, err := f.stores.Adventurers.GetByUserID(ctx, f.hero.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(400), profile.XP)
	assert.Equal(t, models.RankD, profile.Rank)
	assert.Equal(t, 1, profile.QuestsCompleted)

	_, err = f.svc.Complete(ctx, f.npc.ID, quest.ID)
	assert.True(t, apperr.IsKind(err, apperr.KindPolicy))
	profile, err = f.stores.Adventurers.GetByUserID(ctx, f.hero.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(400), profile.XP)
}

func TestComplete_AddsToCurrentTotal(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	first := f.seedQuest(t, models.QuestPosted, models.DifficultyEpic, f.hero)
	second := f.seedQuest(t, models.QuestPosted, models.DifficultyHard, f.hero)

	_, err := f.svc.Complete(ctx, f.npc.ID, first.ID)
	require.NoError(t, err)
	result, err := f.svc.Complete(ctx, f.npc.ID, second.ID)
	require.NoError(t, err)

	assert.Equal(t, int64(1100), result.XP)
	assert.Equal(t, models.RankC, result.PreviousRank)
	assert.Equal(t, models.RankB, result.Rank)
	assert.True(t, result.RankChanged)
	assert.Equal(t, models.RankB, result.Certificate.RankAtIssue)

	profile, err := f.stores.Adventurers.GetByUserID(ctx, f.hero.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1100), profile.XP)
	assert.Equal(t, models.RankB, profile.Rank)
	assert.Equal(t, 2, profile.QuestsCompleted)
}
