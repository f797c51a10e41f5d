package docstore

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/tavern-guild/tavern/internal/models"
	"github.com/tavern-guild/tavern/internal/store"
)

// NotificationStore persists notifications.
type NotificationStore struct {
	coll *mongo.Collection
}

// Create inserts a notification.
func (s *NotificationStore) Create(ctx context.Context, n *models.Notification) error {
	if n.ID == "" {
		n.ID = models.NewID()
	}
	n.CreatedAt = now()

	if _, err := s.coll.InsertOne(ctx, n); err != nil {
		return wrap(err, "failed to create notification for user %s", n.UserID)
	}
	return nil
}

// GetByID retrieves a notification by ID.
func (s *NotificationStore) GetByID(ctx context.Context, id string) (*models.Notification, error) {
	var n models.Notification
	if err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&n); err != nil {
		return nil, wrap(err, "failed to get notification %s", id)
	}
	return &n, nil
}

// ListByUser returns a user's notifications, newest first.
func (s *NotificationStore) ListByUser(ctx context.Context, userID string, filter store.NotificationFilter) ([]models.Notification, error) {
	list := []models.Notification{}
	opts := page(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: 1}}, filter.Limit, filter.Offset)
	if err := findAll(ctx, s.coll, notificationQuery(userID, filter.UnreadOnly), opts, &list); err != nil {
		return nil, wrap(err, "failed to list notifications for user %s", userID)
	}
	return list, nil
}

// MarkRead flips an unread notification to read.
func (s *NotificationStore) MarkRead(ctx context.Context, id string, at time.Time) error {
	_, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": id, "read": false},
		bson.M{"$set": bson.M{"read": true, "readAt": at}},
	)
	if err != nil {
		return wrap(err, "failed to mark notification %s read", id)
	}
	return nil
}

// MarkAllRead flips every unread notification of a user.
func (s *NotificationStore) MarkAllRead(ctx context.Context, userID string, at time.Time) (int64, error) {
	res, err := s.coll.UpdateMany(ctx,
		notificationQuery(userID, true),
		bson.M{"$set": bson.M{"read": true, "readAt": at}},
	)
	if err != nil {
		return 0, wrap(err, "failed to mark notifications read for user %s", userID)
	}
	return res.ModifiedCount, nil
}

// CountUnread counts a user's unread notifications.
func (s *NotificationStore) CountUnread(ctx context.Context, userID string) (int64, error) {
	count, err := s.coll.CountDocuments(ctx, notificationQuery(userID, true))
	if err != nil {
		return 0, wrap(err, "failed to count unread notifications for user %s", userID)
	}
	return count, nil
}

// DeleteReadBefore purges read notifications created before cutoff.
func (s *NotificationStore) DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.coll.DeleteMany(ctx, bson.M{"read": true, "createdAt": bson.M{"$lt": cutoff}})
	if err != nil {
		return 0, wrap(err, "failed to purge read notifications")
	}
	return res.DeletedCount, nil
}

func notificationQuery(userID string, unreadOnly bool) bson.M {
	query := bson.M{"userId": userID}
	if unreadOnly {
		query["read"] = false
	}
	return query
}
