package models

import "time"

// QuestStatus is a state of the quest lifecycle.
type QuestStatus string

// QuestStatus constants.
const (
	QuestDraft      QuestStatus = "DRAFT"
	QuestPosted     QuestStatus = "POSTED"
	QuestInProgress QuestStatus = "IN_PROGRESS"
	QuestCompleted  QuestStatus = "COMPLETED"
	QuestCancelled  QuestStatus = "CANCELLED"
)

// AllQuestStatuses lists every status in lifecycle order.
var AllQuestStatuses = []QuestStatus{QuestDraft, QuestPosted, QuestInProgress, QuestCompleted, QuestCancelled}

// Valid reports whether s is a known status.
func (s QuestStatus) Valid() bool {
	for _, known := range AllQuestStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Terminal reports whether no transition may leave s.
func (s QuestStatus) Terminal() bool {
	return s == QuestCompleted || s == QuestCancelled
}

// Difficulty grades a quest and decides its XP award.
type Difficulty string

// Difficulty constants.
const (
	DifficultyEasy   Difficulty = "EASY"
	DifficultyMedium Difficulty = "MEDIUM"
	DifficultyHard   Difficulty = "HARD"
	DifficultyEpic   Difficulty = "EPIC"
)

// Quest is created and exclusively mutated by its NPC.
type Quest struct {
	ID          string      `gorm:"primaryKey;size:36" bson:"_id" json:"id"`
	Title       string      `gorm:"not null;size:200" bson:"title" json:"title"`
	Description string      `gorm:"type:text" bson:"description" json:"description"`
	Difficulty  Difficulty  `gorm:"size:10;not null;default:EASY" bson:"difficulty" json:"difficulty"`
	RewardGold  int64       `gorm:"not null;default:0" bson:"rewardGold" json:"rewardGold"`
	Location    string      `gorm:"size:120" bson:"location" json:"location"`
	Deadline    *time.Time  `bson:"deadline,omitempty" json:"deadline,omitempty"`
	Tags        []string    `gorm:"serializer:json;type:text" bson:"tags" json:"tags"`
	Status      QuestStatus `gorm:"size:20;not null;index" bson:"status" json:"status"`
	CreatedBy   string      `gorm:"not null;size:36;index" bson:"createdBy" json:"createdBy"`
	AssignedTo  *string     `gorm:"size:36;index" bson:"assignedTo,omitempty" json:"assignedTo"`
	CompletedAt *time.Time  `bson:"completedAt,omitempty" json:"completedAt,omitempty"`
	CancelledAt *time.Time  `bson:"cancelledAt,omitempty" json:"cancelledAt,omitempty"`
	CreatedAt   time.Time   `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time   `bson:"updatedAt" json:"updatedAt"`
}

// TableName specifies the table name for Quest model.
func (Quest) TableName() string {
	return "quests"
}

// Certificate is the Scroll of Deed minted once per completed quest. Never mutated.
type Certificate struct {
	ID               string     `gorm:"primaryKey;size:36" bson:"_id" json:"id"`
	ScrollID         string     `gorm:"uniqueIndex;not null;size:40" bson:"scrollId" json:"scrollId"`
	AdventurerID     string     `gorm:"not null;size:36;index" bson:"adventurerId" json:"adventurerId"`
	QuestID          string     `gorm:"uniqueIndex;not null;size:36" bson:"questId" json:"questId"`
	QuestTitle       string     `gorm:"size:200" bson:"questTitle" json:"questTitle"`
	OrganizationName string     `gorm:"size:120" bson:"organizationName" json:"organizationName"`
	Difficulty       Difficulty `gorm:"size:10" bson:"difficulty" json:"difficulty"`
	XPAwarded        int64      `gorm:"not null" bson:"xpAwarded" json:"xpAwarded"`
	RankAtIssue      Rank       `gorm:"size:3" bson:"rankAtIssue" json:"rankAtIssue"`
	IssuedAt         time.Time  `gorm:"not null" bson:"issuedAt" json:"issuedAt"`
}

// TableName specifies the table name for Certificate model.
func (Certificate) TableName() string {
	return "certificates"
}
