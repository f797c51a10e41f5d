// Package notifications stores per-user notifications and pushes them to connected clients.
package notifications

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tavern-guild/tavern/internal/apperr"
	prommetrics "github.com/tavern-guild/tavern/internal/metrics"
	"github.com/tavern-guild/tavern/internal/models"
	"github.com/tavern-guild/tavern/internal/store"
	"github.com/tavern-guild/tavern/pkg/logger"
)

// Realtime event names.
const (
	EventNew   = "notification:new"
	EventRead  = "notification:read"
	EventBadge = "notification:badge"
)

const unreadCacheTTL = 10 * time.Minute

// NotificationRepository interface for notification operations.
type NotificationRepository interface {
	Create(ctx context.Context, n *models.Notification) error
	GetByID(ctx context.Context, id string) (*models.Notification, error)
	ListByUser(ctx context.Context, userID string, filter store.NotificationFilter) ([]models.Notification, error)
	MarkRead(ctx context.Context, id string, at time.Time) error
	MarkAllRead(ctx context.Context, userID string, at time.Time) (int64, error)
	CountUnread(ctx context.Context, userID string) (int64, error)
	DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// UserRepository interface for user lookups.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// Cache interface for the unread counter cache.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

// Publisher delivers an event to every connection of a user. Delivery is best-effort.
type Publisher interface {
	Publish(userID, event string, payload interface{})
}

// CreateInput describes a notification to store.
type CreateInput struct {
	UserID  string                  `json:"userId"`
	Title   string                  `json:"title" binding:"required,max=200"`
	Message string                  `json:"message" binding:"max=2000"`
	Type    models.NotificationType `json:"type"`
	Link    string                  `json:"link" binding:"max=255"`
}

// ListOptions controls notification listing.
type ListOptions struct {
	UnreadOnly bool
	Limit      int
	Offset     int
}

// Page is a slice of notifications plus the user's unread count.
type Page struct {
	Items  []models.Notification `json:"items"`
	Unread int64                 `json:"unread"`
}

// Service handles notification storage and fan-out.
type Service struct {
	repo      NotificationRepository
	users     UserRepository
	cache     Cache
	publisher Publisher
	log       *logger.Logger
	now       func() time.Time
}

// NewService creates a new notification service. cache and publisher may be nil.
func NewService(stores store.Stores, cache Cache, publisher Publisher, log *logger.Logger) *Service {
	return NewServiceWithInterfaces(stores.Notifications, stores.Users, cache, publisher, log)
}

// NewServiceWithInterfaces creates a new notification service with interface dependencies (useful for testing).
func NewServiceWithInterfaces(
	repo NotificationRepository,
	users UserRepository,
	cache Cache,
	publisher Publisher,
	log *logger.Logger,
) *Service {
	return &Service{
		repo:      repo,
		users:     users,
		cache:     cache,
		publisher: publisher,
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Notify stores a notification for in.UserID and pushes it.
func (s *Service) Notify(ctx context.Context, in CreateInput) (*models.Notification, error) {
	in.Title = strings.TrimSpace(in.Title)
	if in.UserID == "" {
		return nil, apperr.Validation("invalid notification", apperr.Issue{Field: "userId", Message: "is required"})
	}
	if in.Title == "" {
		return nil, apperr.Validation("invalid notification", apperr.Issue{Field: "title", Message: "is required"})
	}
	if in.Type == "" {
		in.Type = models.NotificationGeneral
	}
	if !in.Type.Valid() {
		return nil, apperr.Validation("invalid notification", apperr.Issue{Field: "type", Message: "is not a known notification type"})
	}

	n := &models.Notification{
		UserID:  in.UserID,
		Title:   in.Title,
		Message: in.Message,
		Type:    in.Type,
		Link:    in.Link,
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return nil, apperr.Internal("failed to create notification", err)
	}

	prommetrics.RecordNotificationCreated(string(n.Type))
	s.log.Debug().
		Str("user_id", n.UserID).
		Str("notification_id", n.ID).
		Str("type", string(n.Type)).
		Msg("Notification created")

	s.invalidate(ctx, n.UserID)
	s.publish(n.UserID, EventNew, n)
	s.publishBadge(ctx, n.UserID)

	return n, nil
}

// Post creates a notification on behalf of actor. Only a guild master may
// target another user; everyone else always targets themselves.
func (s *Service) Post(ctx context.Context, actor *models.User, in CreateInput) (*models.Notification, error) {
	target := in.UserID
	switch {
	case target == "" || target == actor.ID:
		target = actor.ID
	case actor.Role != models.RoleGuildMaster:
		return nil, apperr.Forbidden("only a guild master can notify other users")
	default:
		if _, err := s.users.GetByID(ctx, target); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, apperr.NotFound("user %s not found", target)
			}
			return nil, apperr.Internal("failed to load target user", err)
		}
	}

	in.UserID = target
	return s.Notify(ctx, in)
}

// List returns a page of the user's notifications and the unread count.
func (s *Service) List(ctx context.Context, userID string, opts ListOptions) (*Page, error) {
	items, err := s.repo.ListByUser(ctx, userID, store.NotificationFilter{
		UnreadOnly: opts.UnreadOnly,
		Limit:      opts.Limit,
		Offset:     opts.Offset,
	})
	if err != nil {
		return nil, apperr.Internal("failed to list notifications", err)
	}

	unread, err := s.UnreadCount(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &Page{Items: items, Unread: unread}, nil
}

// MarkRead marks one of the user's notifications read. Marking an already
// read notification succeeds without changing readAt.
func (s *Service) MarkRead(ctx context.Context, userID, id string) (*models.Notification, error) {
	n, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("notification %s not found", id)
		}
		return nil, apperr.Internal("failed to load notification", err)
	}
	if n.UserID != userID {
		return nil, apperr.Forbidden("notification belongs to another user")
	}
	if n.Read {
		return n, nil
	}

	at := s.now()
	if err := s.repo.MarkRead(ctx, id, at); err != nil {
		return nil, apperr.Internal("failed to mark notification read", err)
	}
	n.Read = true
	n.ReadAt = &at

	s.invalidate(ctx, userID)
	s.publish(userID, EventRead, map[string]interface{}{"id": id})
	s.publishBadge(ctx, userID)

	return n, nil
}

// MarkAllRead marks every unread notification of the user read and returns how many changed.
func (s *Service) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	updated, err := s.repo.MarkAllRead(ctx, userID, s.now())
	if err != nil {
		return 0, apperr.Internal("failed to mark notifications read", err)
	}

	s.invalidate(ctx, userID)
	s.publish(userID, EventRead, map[string]interface{}{"all": true, "updated": updated})
	s.publishBadge(ctx, userID)

	s.log.Debug().
		Str("user_id", userID).
		Int64("updated", updated).
		Msg("Marked all notifications read")

	return updated, nil
}

// UnreadCount returns the user's unread count, served from the cache when possible.
func (s *Service) UnreadCount(ctx context.Context, userID string) (int64, error) {
	key := unreadKey(userID)

	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, key); err == nil && cached != "" {
			if n, err := strconv.ParseInt(cached, 10, 64); err == nil {
				return n, nil
			}
		} else if err != nil {
			s.log.Warn().Err(err).Str("user_id", userID).Msg("Failed to read unread count from cache")
		}
	}

	count, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return 0, apperr.Internal("failed to count unread notifications", err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, count, unreadCacheTTL); err != nil {
			s.log.Warn().Err(err).Str("user_id", userID).Msg("Failed to cache unread count")
		}
	}
	return count, nil
}

// PurgeRead deletes read notifications older than retention.
func (s *Service) PurgeRead(ctx context.Context, retention time.Duration) (int64, error) {
	purged, err := s.repo.DeleteReadBefore(ctx, s.now().Add(-retention))
	if err != nil {
		return 0, fmt.Errorf("failed to purge notifications: %w", err)
	}
	return purged, nil
}

func (s *Service) invalidate(ctx context.Context, userID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, unreadKey(userID)); err != nil {
		s.log.Warn().Err(err).Str("user_id", userID).Msg("Failed to invalidate unread count")
	}
}

func (s *Service) publish(userID, event string, payload interface{}) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(userID, event, payload)
}

func (s *Service) publishBadge(ctx context.Context, userID string) {
	if s.publisher == nil {
		return
	}
	unread, err := s.UnreadCount(ctx, userID)
	if err != nil {
		s.log.Warn().Err(err).Str("user_id", userID).Msg("Failed to compute unread badge")
		return
	}
	s.publisher.Publish(userID, EventBadge, map[string]interface{}{"unread": unread})
}

func unreadKey(userID string) string {
	return "tavern:notifications:unread:" + userID
}
