// Package api provides the REST and websocket handlers of the tavern API.
package api

import (
	"context"
	"net/http"

	"github.com/tavern-guild/tavern/internal/models"
	"github.com/tavern-guild/tavern/internal/service/adventurers"
	"github.com/tavern-guild/tavern/internal/service/auth"
	"github.com/tavern-guild/tavern/internal/service/leaderboard"
	"github.com/tavern-guild/tavern/internal/service/notifications"
	"github.com/tavern-guild/tavern/internal/service/organizations"
	"github.com/tavern-guild/tavern/internal/service/quests"
	"github.com/tavern-guild/tavern/internal/service/trust"
	"github.com/tavern-guild/tavern/pkg/logger"
)

// AuthService interface for registration, login and token verification.
type AuthService interface {
	Register(ctx context.Context, in auth.RegisterInput) (*models.User, error)
	Login(ctx context.Context, in auth.LoginInput) (*auth.Session, error)
	Authenticate(ctx context.Context, raw string) (*models.User, error)
}

// AdventurerService interface for adventurer profile operations.
type AdventurerService interface {
	GetProfile(ctx context.Context, userID string) (*adventurers.Profile, error)
	UpdateProfile(ctx context.Context, userID string, in adventurers.UpdateProfileInput) (*adventurers.Profile, error)
	ListSkills(ctx context.Context, userID string) ([]models.AdventurerSkill, error)
	AddSkill(ctx context.Context, userID string, in adventurers.SkillInput) (*models.AdventurerSkill, error)
	UpdateSkill(ctx context.Context, userID, skillID string, in adventurers.SkillUpdateInput) (*models.AdventurerSkill, error)
	DeleteSkill(ctx context.Context, userID, skillID string) error
	Certificates(ctx context.Context, userID string) ([]models.Certificate, error)
}

// LeaderboardService interface for leaderboard operations.
type LeaderboardService interface {
	GetLeaderboard(ctx context.Context, limit int) ([]leaderboard.Entry, error)
}

// OrganizationService interface for NPC organization operations.
type OrganizationService interface {
	Create(ctx context.Context, user *models.User, in organizations.CreateInput) (*models.NpcOrganization, error)
	GetMine(ctx context.Context, userID string) (*models.NpcOrganization, error)
	UpdateMine(ctx context.Context, userID string, in organizations.UpdateInput) (*models.NpcOrganization, error)
	Trust(ctx context.Context, userID string) (*trust.Report, error)
	List(ctx context.Context, opts organizations.ListOptions) (*organizations.ListResult, error)
	Get(ctx context.Context, id string) (*models.NpcOrganization, error)
	Moderate(ctx context.Context, id string, in organizations.ModerateInput) (*models.NpcOrganization, error)
}

// QuestService interface for quest lifecycle operations.
type QuestService interface {
	Create(ctx context.Context, npcID string, in quests.CreateInput) (*models.Quest, error)
	ListMine(ctx context.Context, npcID string, status models.QuestStatus) ([]models.Quest, error)
	GetMine(ctx context.Context, npcID, questID string) (*models.Quest, error)
	Update(ctx context.Context, npcID, questID string, in quests.UpdateInput) (*models.Quest, error)
	Delete(ctx context.Context, npcID, questID string) error
	ChangeStatus(ctx context.Context, npcID, questID string, to models.QuestStatus) (*models.Quest, error)
	Complete(ctx context.Context, npcID, questID string) (*quests.CompletionResult, error)
}

// NotificationService interface for notification operations.
type NotificationService interface {
	Post(ctx context.Context, actor *models.User, in notifications.CreateInput) (*models.Notification, error)
	List(ctx context.Context, userID string, opts notifications.ListOptions) (*notifications.Page, error)
	MarkRead(ctx context.Context, userID, id string) (*models.Notification, error)
	MarkAllRead(ctx context.Context, userID string) (int64, error)
}

// RealtimeHub upgrades a request to a websocket joined to the user's room.
type RealtimeHub interface {
	ServeUser(w http.ResponseWriter, r *http.Request, userID string) error
}

// HealthChecker reports whether a dependency is reachable.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Services bundles the handler dependencies. Cache may be nil.
type Services struct {
	Auth          AuthService
	Adventurers   AdventurerService
	Leaderboard   LeaderboardService
	Organizations OrganizationService
	Quests        QuestService
	Notifications NotificationService
	Hub           RealtimeHub
	Store         HealthChecker
	Cache         HealthChecker
}

// Handler handles tavern API requests.
type Handler struct {
	auth          AuthService
	adventurers   AdventurerService
	leaderboard   LeaderboardService
	organizations OrganizationService
	quests        QuestService
	notifications NotificationService
	hub           RealtimeHub
	store         HealthChecker
	cache         HealthChecker
	log           *logger.Logger
}

// NewHandler creates a new API handler.
func NewHandler(svc Services, log *logger.Logger) *Handler {
	return &Handler{
		auth:          svc.Auth,
		adventurers:   svc.Adventurers,
		leaderboard:   svc.Leaderboard,
		organizations: svc.Organizations,
		quests:        svc.Quests,
		notifications: svc.Notifications,
		hub:           svc.Hub,
		store:         svc.Store,
		cache:         svc.Cache,
		log:           log,
	}
}
