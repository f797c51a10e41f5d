// Package store declares the persistence contracts shared by the relational and document backends.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/tavern-guild/tavern/internal/models"
)

// Sentinel errors returned by every backend.
var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
	ErrConflict  = errors.New("record changed concurrently")
)

// Transactor runs fn inside a unit of work. Backends without multi-document
// transactions run fn directly.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// UserStore persists users.
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
}

// AdventurerStore persists adventurer profiles and their skills.
type AdventurerStore interface {
	Create(ctx context.Context, profile *models.AdventurerProfile) error
	GetByUserID(ctx context.Context, userID string) (*models.AdventurerProfile, error)
	// UpdateDetails writes the title, bio, class and attributes only.
	UpdateDetails(ctx context.Context, profile *models.AdventurerProfile) error
	// AddXP atomically adds xp and one completed quest to the user's profile
	// and returns the profile as stored after the increment.
	AddXP(ctx context.Context, userID string, xp int64) (*models.AdventurerProfile, error)
	// SetRank writes rank only while the profile still holds xp, so a rank
	// computed from an older total never overwrites a newer one.
	SetRank(ctx context.Context, profileID string, xp int64, rank models.Rank) error
	ListTopByXP(ctx context.Context, limit int) ([]models.AdventurerProfile, error)

	CreateSkill(ctx context.Context, skill *models.AdventurerSkill) error
	GetSkill(ctx context.Context, id string) (*models.AdventurerSkill, error)
	ListSkills(ctx context.Context, adventurerID string) ([]models.AdventurerSkill, error)
	UpdateSkill(ctx context.Context, skill *models.AdventurerSkill) error
	DeleteSkill(ctx context.Context, id string) error
}

// OrganizationFilter narrows organization listings.
type OrganizationFilter struct {
	Verified *bool
	Flagged  *bool
	Limit    int
	Offset   int
}

// OrganizationStore persists NPC organizations.
type OrganizationStore interface {
	Create(ctx context.Context, org *models.NpcOrganization) error
	GetByID(ctx context.Context, id string) (*models.NpcOrganization, error)
	GetByUserID(ctx context.Context, userID string) (*models.NpcOrganization, error)
	// UpdateProfile writes the owner-editable fields: name, description,
	// website, location and contact email.
	UpdateProfile(ctx context.Context, org *models.NpcOrganization) error
	// UpdateModeration writes verified, flagged and the flag reason.
	UpdateModeration(ctx context.Context, org *models.NpcOrganization) error
	// UpdateTrust writes the trust score and tier.
	UpdateTrust(ctx context.Context, org *models.NpcOrganization) error
	List(ctx context.Context, filter OrganizationFilter) ([]models.NpcOrganization, int64, error)
}

// QuestStore persists quests.
type QuestStore interface {
	Create(ctx context.Context, quest *models.Quest) error
	GetByID(ctx context.Context, id string) (*models.Quest, error)
	Update(ctx context.Context, quest *models.Quest) error
	// MarkCompleted moves a POSTED or IN_PROGRESS quest to COMPLETED. It returns
	// ErrConflict when the quest is in any other status by the time it runs.
	MarkCompleted(ctx context.Context, id string, at time.Time) error
	Delete(ctx context.Context, id string) error
	// ListByCreator returns the NPC's quests, newest first. An empty status means all.
	ListByCreator(ctx context.Context, creatorID string, status models.QuestStatus) ([]models.Quest, error)
}

// CertificateStore persists certificates. Create returns ErrDuplicate when the
// quest already has a certificate.
type CertificateStore interface {
	Create(ctx context.Context, cert *models.Certificate) error
	GetByQuestID(ctx context.Context, questID string) (*models.Certificate, error)
	ListByAdventurer(ctx context.Context, adventurerID string) ([]models.Certificate, error)
}

// NotificationFilter narrows notification listings.
type NotificationFilter struct {
	UnreadOnly bool
	Limit      int
	Offset     int
}

// NotificationStore persists notifications.
type NotificationStore interface {
	Create(ctx context.Context, n *models.Notification) error
	GetByID(ctx context.Context, id string) (*models.Notification, error)
	ListByUser(ctx context.Context, userID string, filter NotificationFilter) ([]models.Notification, error)
	// MarkRead sets read=true once; already-read notifications are left untouched.
	MarkRead(ctx context.Context, id string, at time.Time) error
	MarkAllRead(ctx context.Context, userID string, at time.Time) (int64, error)
	CountUnread(ctx context.Context, userID string) (int64, error)
	DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Stores bundles one backend's implementations.
type Stores struct {
	Users         UserStore
	Adventurers   AdventurerStore
	Organizations OrganizationStore
	Quests        QuestStore
	Certificates  CertificateStore
	Notifications NotificationStore
	Tx            Transactor
}

// Backend is an opened persistence backend.
type Backend interface {
	Stores() Stores
	Health(ctx context.Context) error
	Close(ctx context.Context) error
}
