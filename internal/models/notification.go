package models

import "time"

// NotificationType categorizes a notification.
type NotificationType string

// NotificationType constants.
const (
	NotificationGeneral        NotificationType = "GENERAL"
	NotificationQuestCompleted NotificationType = "QUEST_COMPLETED"
	NotificationQuestCancelled NotificationType = "QUEST_CANCELLED"
	NotificationQuestAssigned  NotificationType = "QUEST_ASSIGNED"
	NotificationRankUp         NotificationType = "RANK_UP"
	NotificationOrgVerified    NotificationType = "ORGANIZATION_VERIFIED"
	NotificationOrgFlagged     NotificationType = "ORGANIZATION_FLAGGED"
	NotificationAnnouncement   NotificationType = "ANNOUNCEMENT"
)

// Valid reports whether t is a known type.
func (t NotificationType) Valid() bool {
	switch t {
	case NotificationGeneral, NotificationQuestCompleted, NotificationQuestCancelled,
		NotificationQuestAssigned, NotificationRankUp, NotificationOrgVerified,
		NotificationOrgFlagged, NotificationAnnouncement:
		return true
	}
	return false
}

// Notification is a per-user message. Read only moves from false to true.
type Notification struct {
	ID        string           `gorm:"primaryKey;size:36" bson:"_id" json:"id"`
	UserID    string           `gorm:"not null;size:36;index:idx_notifications_user_read" bson:"userId" json:"userId"`
	Title     string           `gorm:"not null;size:200" bson:"title" json:"title"`
	Message   string           `gorm:"type:text" bson:"message" json:"message"`
	Type      NotificationType `gorm:"size:40;not null" bson:"type" json:"type"`
	Link      string           `gorm:"size:255" bson:"link,omitempty" json:"link,omitempty"`
	Read      bool             `gorm:"not null;default:false;index:idx_notifications_user_read" bson:"read" json:"read"`
	ReadAt    *time.Time       `bson:"readAt,omitempty" json:"readAt,omitempty"`
	CreatedAt time.Time        `gorm:"index" bson:"createdAt" json:"createdAt"`
}

// TableName specifies the table name for Notification model.
func (Notification) TableName() string {
	return "notifications"
}
