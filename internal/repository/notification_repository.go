package repository

import (
	"context"
	"time"

	"github.com/tavern-guild/tavern/internal/models"
	"github.com/tavern-guild/tavern/internal/store"
)

// NotificationRepository handles notification operations.
type NotificationRepository struct {
	db *DB
}

// NewNotificationRepository creates a new notification repository.
func NewNotificationRepository(db *DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create inserts a notification.
func (r *NotificationRepository) Create(ctx context.Context, n *models.Notification) error {
	if n.ID == "" {
		n.ID = models.NewID()
	}
	if err := r.db.conn(ctx).Create(n).Error; err != nil {
		return wrap(err, "failed to create notification for user %s", n.UserID)
	}
	return nil
}

// GetByID retrieves a notification by ID.
func (r *NotificationRepository) GetByID(ctx context.Context, id string) (*models.Notification, error) {
	var n models.Notification
	if err := r.db.conn(ctx).Where("id = ?", id).First(&n).Error; err != nil {
		return nil, wrap(err, "failed to get notification %s", id)
	}
	return &n, nil
}

// ListByUser returns a user's notifications, newest first.
func (r *NotificationRepository) ListByUser(ctx context.Context, userID string, filter store.NotificationFilter) ([]models.Notification, error) {
	query := r.db.conn(ctx).Where("user_id = ?", userID)
	if filter.UnreadOnly {
		query = query.Where("read = ?", false)
	}
	query = query.Order("created_at DESC").Order("id ASC")
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var list []models.Notification
	if err := query.Find(&list).Error; err != nil {
		return nil, wrap(err, "failed to list notifications for user %s", userID)
	}
	return list, nil
}

// MarkRead flips an unread notification to read.
func (r *NotificationRepository) MarkRead(ctx context.Context, id string, at time.Time) error {
	err := r.db.conn(ctx).
		Model(&models.Notification{}).
		Where("id = ? AND read = ?", id, false).
		Updates(map[string]interface{}{"read": true, "read_at": at}).Error
	if err != nil {
		return wrap(err, "failed to mark notification %s read", id)
	}
	return nil
}

// MarkAllRead flips every unread notification of a user and returns how many changed.
func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID string, at time.Time) (int64, error) {
	res := r.db.conn(ctx).
		Model(&models.Notification{}).
		Where("user_id = ? AND read = ?", userID, false).
		Updates(map[string]interface{}{"read": true, "read_at": at})
	if res.Error != nil {
		return 0, wrap(res.Error, "failed to mark notifications read for user %s", userID)
	}
	return res.RowsAffected, nil
}

// CountUnread counts a user's unread notifications.
func (r *NotificationRepository) CountUnread(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := r.db.conn(ctx).
		Model(&models.Notification{}).
		Where("user_id = ? AND read = ?", userID, false).
		Count(&count).Error
	if err != nil {
		return 0, wrap(err, "failed to count unread notifications for user %s", userID)
	}
	return count, nil
}

// DeleteReadBefore purges read notifications created before cutoff.
func (r *NotificationRepository) DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.conn(ctx).
		Where("read = ? AND created_at < ?", true, cutoff).
		Delete(&models.Notification{})
	if res.Error != nil {
		return 0, wrap(res.Error, "failed to purge read notifications")
	}
	return res.RowsAffected, nil
}
