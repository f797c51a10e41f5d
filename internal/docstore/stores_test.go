package docstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/tavern-guild/tavern/internal/models"
	"github.com/tavern-guild/tavern/internal/store"
	"github.com/tavern-guild/tavern/pkg/logger"
)

func mockStores(mt *mtest.T) store.Stores {
	return New(mt.DB, logger.Nop()).Stores()
}

func ns(mt *mtest.T, coll string) string {
	return mt.DB.Name() + "." + coll
}

// matched is the reply to an update or delete touching n documents.
func matched(n int32) bson.D {
	return mtest.CreateSuccessResponse(
		bson.E{Key: "n", Value: n},
		bson.E{Key: "nModified", Value: n},
	)
}

func duplicateKey() bson.D {
	return mtest.CreateWriteErrorsResponse(mtest.WriteError{
		Index:   0,
		Code:    11000,
		Message: "E11000 duplicate key error",
	})
}

func TestCertificateStore(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("second certificate for a quest is a duplicate", func(mt *mtest.T) {
		certs := mockStores(mt).Certificates
		ctx := context.Background()
		mt.AddMockResponses(mtest.CreateSuccessResponse(), duplicateKey())

		first := &models.Certificate{ScrollID: "SOD-A-000001", AdventurerID: "a1", QuestID: "q1"}
		require.NoError(mt, certs.Create(ctx, first))
		assert.NotEmpty(mt, first.ID)

		err := certs.Create(ctx, &models.Certificate{ScrollID: "SOD-A-000002", AdventurerID: "a1", QuestID: "q1"})
		assert.ErrorIs(mt, err, store.ErrDuplicate)
	})

	mt.Run("get by quest id", func(mt *mtest.T) {
		certs := mockStores(mt).Certificates
		ctx := context.Background()
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, ns(mt, collCertificates), mtest.FirstBatch, bson.D{
				{Key: "_id", Value: "c1"},
				{Key: "scrollId", Value: "SOD-A-000001"},
				{Key: "adventurerId", Value: "a1"},
				{Key: "questId", Value: "q1"},
				{Key: "xpAwarded", Value: int64(400)},
			}),
			mtest.CreateCursorResponse(0, ns(mt, collCertificates), mtest.FirstBatch),
		)

		cert, err := certs.GetByQuestID(ctx, "q1")
		require.NoError(mt, err)
		assert.Equal(mt, "SOD-A-000001", cert.ScrollID)
		assert.Equal(mt, int64(400), cert.XPAwarded)

		_, err = certs.GetByQuestID(ctx, "q2")
		assert.ErrorIs(mt, err, store.ErrNotFound)
	})
}

func TestUserStore_DuplicateUsername(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("duplicate", func(mt *mtest.T) {
		users := mockStores(mt).Users
		mt.AddMockResponses(duplicateKey())

		err := users.Create(context.Background(), &models.User{Email: "Aria@Example.com", Username: "Aria", Role: models.RoleAdventurer})
		assert.ErrorIs(mt, err, store.ErrDuplicate)
	})
}

func TestQuestStore_MissingDocuments(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("update delete and complete", func(mt *mtest.T) {
		quests := mockStores(mt).Quests
		ctx := context.Background()
		mt.AddMockResponses(matched(0), matched(0), matched(0), matched(1))

		err := quests.Update(ctx, &models.Quest{ID: "missing", Status: models.QuestPosted})
		assert.ErrorIs(mt, err, store.ErrNotFound)

		assert.ErrorIs(mt, quests.Delete(ctx, "missing"), store.ErrNotFound)

		// The status filter matched nothing: the quest was already closed.
		assert.ErrorIs(mt, quests.MarkCompleted(ctx, "q1", time.Now()), store.ErrConflict)
		assert.NoError(mt, quests.MarkCompleted(ctx, "q2", time.Now()))
	})
}

func TestOrganizationStore_ScopedUpdates(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("missing organization", func(mt *mtest.T) {
		orgs := mockStores(mt).Organizations
		mt.AddMockResponses(matched(0))

		err := orgs.UpdateModeration(context.Background(), &models.NpcOrganization{ID: "missing", IsFlagged: true})
		assert.ErrorIs(mt, err, store.ErrNotFound)
	})

	mt.Run("trust update stamps the copy", func(mt *mtest.T) {
		orgs := mockStores(mt).Organizations
		mt.AddMockResponses(matched(1))

		org := &models.NpcOrganization{ID: "o1"}
		org.SetTrust(80)
		require.NoError(mt, orgs.UpdateTrust(context.Background(), org))
		assert.False(mt, org.UpdatedAt.IsZero())
	})
}

func TestAdventurerStore_AddXP(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("returns the incremented profile", func(mt *mtest.T) {
		profiles := mockStores(mt).Adventurers
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: bson.D{
			{Key: "_id", Value: "p1"},
			{Key: "userId", Value: "u1"},
			{Key: "xp", Value: int64(700)},
			{Key: "rank", Value: "F"},
			{Key: "questsCompleted", Value: int32(1)},
		}}))

		profile, err := profiles.AddXP(context.Background(), "u1", 700)
		require.NoError(mt, err)
		assert.Equal(mt, "p1", profile.ID)
		assert.Equal(mt, int64(700), profile.XP)
		assert.Equal(mt, 1, profile.QuestsCompleted)
	})

	mt.Run("missing profile", func(mt *mtest.T) {
		profiles := mockStores(mt).Adventurers
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: nil}))

		_, err := profiles.AddXP(context.Background(), "ghost", 100)
		assert.ErrorIs(mt, err, store.ErrNotFound)
	})

	mt.Run("details of a missing profile", func(mt *mtest.T) {
		profiles := mockStores(mt).Adventurers
		mt.AddMockResponses(matched(0))

		err := profiles.UpdateDetails(context.Background(), &models.AdventurerProfile{ID: "missing"})
		assert.ErrorIs(mt, err, store.ErrNotFound)
	})
}

func TestNotificationStore_Counts(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("mark all read, count and purge", func(mt *mtest.T) {
		notifications := mockStores(mt).Notifications
		ctx := context.Background()
		mt.AddMockResponses(
			matched(2),
			mtest.CreateCursorResponse(0, ns(mt, collNotifications), mtest.FirstBatch, bson.D{{Key: "n", Value: int32(3)}}),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: int32(4)}),
		)

		changed, err := notifications.MarkAllRead(ctx, "u1", time.Now())
		require.NoError(mt, err)
		assert.Equal(mt, int64(2), changed)

		unread, err := notifications.CountUnread(ctx, "u1")
		require.NoError(mt, err)
		assert.Equal(mt, int64(3), unread)

		purged, err := notifications.DeleteReadBefore(ctx, time.Now())
		require.NoError(mt, err)
		assert.Equal(mt, int64(4), purged)
	})
}
