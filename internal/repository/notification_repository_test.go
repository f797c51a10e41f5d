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

func createTestNotification(t *testing.T, db *DB, userID, title string) *models.Notification {
	t.Helper()

	n := &models.Notification{UserID: userID, Title: title, Type: models.NotificationGeneral}
	require.NoError(t, NewNotificationRepository(db).Create(context.Background(), n))
	time.Sleep(2 * time.Millisecond)
	return n
}

func TestNotificationRepository_ReadFlow(t *testing.T) {
	db := setupTestDB(t)
	repo := NewNotificationRepository(db)
	ctx := context.Background()

	user := createTestUser(t, db, "aria", models.RoleAdventurer)
	first := createTestNotification(t, db, user.ID, "first")
	createTestNotification(t, db, user.ID, "second")
	createTestNotification(t, db, user.ID, "third")

	count, err := repo.CountUnread(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	readAt := time.Now().UTC()
	require.NoError(t, repo.MarkRead(ctx, first.ID, readAt))
	// second call leaves readAt untouched
	require.NoError(t, repo.MarkRead(ctx, first.ID, readAt.Add(time.Hour)))

	got, err := repo.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.True(t, got.Read)
	require.NotNil(t, got.ReadAt)
	assert.WithinDuration(t, readAt, *got.ReadAt, time.Second)

	unread, err := repo.ListByUser(ctx, user.ID, store.NotificationFilter{UnreadOnly: true})
	require.NoError(t, err)
	require.Len(t, unread, 2)
	assert.Equal(t, "third", unread[0].Title)

	changed, err := repo.MarkAllRead(ctx, user.ID, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, int64(2), changed)

	count, err = repo.CountUnread(ctx, user.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestNotificationRepository_DeleteReadBefore(t *testing.T) {
	db := setupTestDB(t)
	repo := NewNotificationRepository(db)
	ctx := context.Background()

	user := createTestUser(t, db, "aria", models.RoleAdventurer)
	read := createTestNotification(t, db, user.ID, "old read")
	createTestNotification(t, db, user.ID, "old unread")
	require.NoError(t, repo.MarkRead(ctx, read.ID, time.Now().UTC()))

	purged, err := repo.DeleteReadBefore(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	left, err := repo.ListByUser(ctx, user.ID, store.NotificationFilter{})
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "old unread", left[0].Title)
}
