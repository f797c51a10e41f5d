package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tavern-guild/tavern/internal/models"
	"github.com/tavern-guild/tavern/internal/service/notifications"
)

// ListNotifications returns a page of the caller's notifications and the unread count.
// GET /notifications?unread=true&limit=20&offset=0.
func (h *Handler) ListNotifications(c *gin.Context) {
	unread, err := parseBoolQuery(c, "unread")
	if err != nil {
		h.fail(c, err)
		return
	}
	limit, offset, err := parsePaging(c, defaultPageLimit, maxPageLimit)
	if err != nil {
		h.fail(c, err)
		return
	}

	page, err := h.notifications.List(c.Request.Context(), currentUser(c).ID, notifications.ListOptions{
		UnreadOnly: unread != nil && *unread,
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	if page.Items == nil {
		page.Items = []models.Notification{}
	}
	respond(c, http.StatusOK, page)
}

// CreateNotification stores a notification for the caller, or for any user
// when the caller is a guild master.
// POST /notifications.
func (h *Handler) CreateNotification(c *gin.Context) {
	var in notifications.CreateInput
	if err := bind(c, &in); err != nil {
		h.fail(c, err)
		return
	}

	n, err := h.notifications.Post(c.Request.Context(), currentUser(c), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusCreated, n)
}

// MarkNotificationRead marks one notification read.
// PATCH /notifications/:id/read.
func (h *Handler) MarkNotificationRead(c *gin.Context) {
	n, err := h.notifications.MarkRead(c.Request.Context(), currentUser(c).ID, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, n)
}

// MarkAllNotificationsRead marks every unread notification read.
// PATCH /notifications/mark-all-read.
func (h *Handler) MarkAllNotificationsRead(c *gin.Context) {
	updated, err := h.notifications.MarkAllRead(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"updated": updated})
}
