// Package quests manages the quest lifecycle of NPC organizations.
package quests

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/tavern-guild/tavern/internal/apperr"
	"github.com/tavern-guild/tavern/internal/mattermost"
	prommetrics "github.com/tavern-guild/tavern/internal/metrics"
	"github.com/tavern-guild/tavern/internal/models"
	"github.com/tavern-guild/tavern/internal/service/certificates"
	"github.com/tavern-guild/tavern/internal/service/notifications"
	"github.com/tavern-guild/tavern/internal/store"
	"github.com/tavern-guild/tavern/pkg/logger"
)

// QuestRepository interface for quest operations.
type QuestRepository interface {
	Create(ctx context.Context, quest *models.Quest) error
	GetByID(ctx context.Context, id string) (*models.Quest, error)
	Update(ctx context.Context, quest *models.Quest) error
	MarkCompleted(ctx context.Context, id string, at time.Time) error
	Delete(ctx context.Context, id string) error
	ListByCreator(ctx context.Context, creatorID string, status models.QuestStatus) ([]models.Quest, error)
}

// UserRepository interface for user lookups.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// AdventurerRepository interface for the profile written on completion.
type AdventurerRepository interface {
	Create(ctx context.Context, profile *models.AdventurerProfile) error
	GetByUserID(ctx context.Context, userID string) (*models.AdventurerProfile, error)
	AddXP(ctx context.Context, userID string, xp int64) (*models.AdventurerProfile, error)
	SetRank(ctx context.Context, profileID string, xp int64, rank models.Rank) error
}

// OrganizationRepository interface for the quest giver's organization.
type OrganizationRepository interface {
	GetByUserID(ctx context.Context, userID string) (*models.NpcOrganization, error)
}

// CertificateIssuer mints and archives certificates.
type CertificateIssuer interface {
	Issue(ctx context.Context, in certificates.IssueInput) (*models.Certificate, error)
	ForQuest(ctx context.Context, questID string) (*models.Certificate, error)
	Archive(ctx context.Context, cert *models.Certificate)
}

// Notifier stores and pushes a notification.
type Notifier interface {
	Notify(ctx context.Context, in notifications.CreateInput) (*models.Notification, error)
}

// Announcer posts completions to the guild channel.
type Announcer interface {
	AnnounceQuestCompleted(ctx context.Context, qc mattermost.QuestCompletion) error
}

// CreateInput describes a new quest.
type CreateInput struct {
	Title       string             `json:"title" binding:"required,max=200"`
	Description string             `json:"description" binding:"max=5000"`
	Difficulty  models.Difficulty  `json:"difficulty" binding:"omitempty,oneof=EASY MEDIUM HARD EPIC"`
	RewardGold  int64              `json:"rewardGold" binding:"min=0"`
	Location    string             `json:"location" binding:"max=120"`
	Deadline    *time.Time         `json:"deadline"`
	Tags        []string           `json:"tags" binding:"max=20,dive,max=40"`
	Status      models.QuestStatus `json:"status" binding:"omitempty,oneof=DRAFT POSTED"`
}

// UpdateInput carries the fields to change. Nil fields are left untouched;
// an empty AssignedTo clears the assignment.
type UpdateInput struct {
	Title       *string            `json:"title" binding:"omitempty,min=1,max=200"`
	Description *string            `json:"description" binding:"omitempty,max=5000"`
	Difficulty  *models.Difficulty `json:"difficulty" binding:"omitempty,oneof=EASY MEDIUM HARD EPIC"`
	RewardGold  *int64             `json:"rewardGold" binding:"omitempty,min=0"`
	Location    *string            `json:"location" binding:"omitempty,max=120"`
	Deadline    *time.Time         `json:"deadline"`
	Tags        []string           `json:"tags" binding:"omitempty,max=20,dive,max=40"`
	AssignedTo  *string            `json:"assignedTo"`
}

// Service handles quest lifecycle operations.
type Service struct {
	quests      QuestRepository
	users       UserRepository
	adventurers AdventurerRepository
	orgs        OrganizationRepository
	tx          store.Transactor
	certs       CertificateIssuer
	notifier    Notifier
	announcer   Announcer
	log         *logger.Logger
	now         func() time.Time
}

// NewService creates a new quest service. announcer may be nil.
func NewService(
	stores store.Stores,
	certs CertificateIssuer,
	notifier Notifier,
	announcer Announcer,
	log *logger.Logger,
) *Service {
	return NewServiceWithInterfaces(
		stores.Quests,
		stores.Users,
		stores.Adventurers,
		stores.Organizations,
		stores.Tx,
		certs,
		notifier,
		announcer,
		log,
	)
}

// NewServiceWithInterfaces creates a new quest service with interface dependencies (useful for testing).
func NewServiceWithInterfaces(
	quests QuestRepository,
	users UserRepository,
	adventurers AdventurerRepository,
	orgs OrganizationRepository,
	tx store.Transactor,
	certs CertificateIssuer,
	notifier Notifier,
	announcer Announcer,
	log *logger.Logger,
) *Service {
	return &Service{
		quests:      quests,
		users:       users,
		adventurers: adventurers,
		orgs:        orgs,
		tx:          tx,
		certs:       certs,
		notifier:    notifier,
		announcer:   announcer,
		log:         log,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Create stores a new quest owned by npcID. The initial status is DRAFT unless POSTED is requested.
func (s *Service) Create(ctx context.Context, npcID string, in CreateInput) (*models.Quest, error) {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return nil, apperr.Validation("invalid quest", apperr.Issue{Field: "title", Message: "is required"})
	}
	if in.Difficulty == "" {
		in.Difficulty = models.DifficultyEasy
	}
	if issue, ok := checkDifficulty(in.Difficulty); !ok {
		return nil, apperr.Validation("invalid quest", issue)
	}
	if in.RewardGold < 0 {
		return nil, apperr.Validation("invalid quest", apperr.Issue{Field: "rewardGold", Message: "must be at least 0"})
	}
	if in.Status == "" {
		in.Status = models.QuestDraft
	}
	if in.Status != models.QuestDraft && in.Status != models.QuestPosted {
		return nil, apperr.Validation("invalid quest", apperr.Issue{Field: "status", Message: "must be DRAFT or POSTED"})
	}

	quest := &models.Quest{
		Title:       in.Title,
		Description: in.Description,
		Difficulty:  in.Difficulty,
		RewardGold:  in.RewardGold,
		Location:    in.Location,
		Deadline:    in.Deadline,
		Tags:        normalizeTags(in.Tags),
		Status:      in.Status,
		CreatedBy:   npcID,
	}
	if err := s.quests.Create(ctx, quest); err != nil {
		return nil, apperr.Internal("failed to create quest", err)
	}

	prommetrics.RecordQuestCreated(string(quest.Difficulty))
	s.log.Info().
		Str("quest_id", quest.ID).
		Str("npc_id", npcID).
		Str("status", string(quest.Status)).
		Msg("Quest created")

	return quest, nil
}

// ListMine returns the NPC's quests, newest first. An empty status means all.
func (s *Service) ListMine(ctx context.Context, npcID string, status models.QuestStatus) ([]models.Quest, error) {
	if status != "" && !status.Valid() {
		return nil, apperr.Validation("invalid filter", apperr.Issue{Field: "status", Message: "is not a known quest status"})
	}
	quests, err := s.quests.ListByCreator(ctx, npcID, status)
	if err != nil {
		return nil, apperr.Internal("failed to list quests", err)
	}
	return quests, nil
}

// GetMine returns one of the NPC's quests.
func (s *Service) GetMine(ctx context.Context, npcID, questID string) (*models.Quest, error) {
	return s.owned(ctx, npcID, questID)
}

// Update changes quest fields while the quest is DRAFT or POSTED.
func (s *Service) Update(ctx context.Context, npcID, questID string, in UpdateInput) (*models.Quest, error) {
	quest, err := s.owned(ctx, npcID, questID)
	if err != nil {
		return nil, err
	}
	if !Editable(quest.Status) {
		return nil, apperr.Policy("quest can only be edited while DRAFT or POSTED, current status is %s", quest.Status)
	}

	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			return nil, apperr.Validation("invalid quest", apperr.Issue{Field: "title", Message: "must not be empty"})
		}
		quest.Title = title
	}
	if in.Description != nil {
		quest.Description = *in.Description
	}
	if in.Difficulty != nil {
		if issue, ok := checkDifficulty(*in.Difficulty); !ok {
			return nil, apperr.Validation("invalid quest", issue)
		}
		quest.Difficulty = *in.Difficulty
	}
	if in.RewardGold != nil {
		if *in.RewardGold < 0 {
			return nil, apperr.Validation("invalid quest", apperr.Issue{Field: "rewardGold", Message: "must be at least 0"})
		}
		quest.RewardGold = *in.RewardGold
	}
	if in.Location != nil {
		quest.Location = *in.Location
	}
	if in.Deadline != nil {
		quest.Deadline = in.Deadline
	}
	if in.Tags != nil {
		quest.Tags = normalizeTags(in.Tags)
	}

	var newlyAssigned string
	if in.AssignedTo != nil {
		assignee := strings.TrimSpace(*in.AssignedTo)
		switch {
		case assignee == "":
			quest.AssignedTo = nil
		case quest.AssignedTo == nil || *quest.AssignedTo != assignee:
			if err := s.checkAssignee(ctx, assignee); err != nil {
				return nil, err
			}
			quest.AssignedTo = &assignee
			newlyAssigned = assignee
		}
	}

	if err := s.quests.Update(ctx, quest); err != nil {
		return nil, apperr.Internal("failed to update quest", err)
	}

	s.log.Info().
		Str("quest_id", quest.ID).
		Str("npc_id", npcID).
		Msg("Quest updated")

	if newlyAssigned != "" {
		s.notify(ctx, notifications.CreateInput{
			UserID:  newlyAssigned,
			Title:   "New quest assignment",
			Message: "You have been assigned to \"" + quest.Title + "\".",
			Type:    models.NotificationQuestAssigned,
		})
	}

	return quest, nil
}

// Delete removes a quest that is still a DRAFT.
func (s *Service) Delete(ctx context.Context, npcID, questID string) error {
	quest, err := s.owned(ctx, npcID, questID)
	if err != nil {
		return err
	}
	if !Deletable(quest.Status) {
		return apperr.Policy("quest can only be deleted while DRAFT, current status is %s", quest.Status)
	}

	if err := s.quests.Delete(ctx, quest.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFound("quest not found")
		}
		return apperr.Internal("failed to delete quest", err)
	}

	s.log.Info().
		Str("quest_id", quest.ID).
		Str("npc_id", npcID).
		Msg("Quest deleted")

	return nil
}

// ChangeStatus moves a quest along the lifecycle. Setting the current status again is a no-op.
func (s *Service) ChangeStatus(ctx context.Context, npcID, questID string, to models.QuestStatus) (*models.Quest, error) {
	if !to.Valid() {
		return nil, apperr.Validation("invalid status", apperr.Issue{Field: "status", Message: "is not a known quest status"})
	}

	quest, err := s.owned(ctx, npcID, questID)
	if err != nil {
		return nil, err
	}

	from := quest.Status
	if err := CheckStatusChange(from, to); err != nil {
		prommetrics.RecordQuestTransition(string(from), string(to), "rejected")
		return nil, err
	}
	if from == to {
		return quest, nil
	}

	quest.Status = to
	if to == models.QuestCancelled {
		at := s.now()
		quest.CancelledAt = &at
	}
	if err := s.quests.Update(ctx, quest); err != nil {
		return nil, apperr.Internal("failed to update quest status", err)
	}

	prommetrics.RecordQuestTransition(string(from), string(to), "ok")
	s.log.Info().
		Str("quest_id", quest.ID).
		Str("from", string(from)).
		Str("to", string(to)).
		Msg("Quest status changed")

	if to == models.QuestCancelled && quest.AssignedTo != nil {
		s.notify(ctx, notifications.CreateInput{
			UserID:  *quest.AssignedTo,
			Title:   "Quest cancelled",
			Message: "\"" + quest.Title + "\" has been cancelled by its quest giver.",
			Type:    models.NotificationQuestCancelled,
		})
	}

	return quest, nil
}

// owned loads a quest and hides quests of other NPCs.
func (s *Service) owned(ctx context.Context, npcID, questID string) (*models.Quest, error) {
	quest, err := s.load(ctx, questID)
	if err != nil {
		return nil, err
	}
	if quest.CreatedBy != npcID {
		return nil, apperr.NotFound("quest not found")
	}
	return quest, nil
}

func (s *Service) load(ctx context.Context, questID string) (*models.Quest, error) {
	quest, err := s.quests.GetByID(ctx, questID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("quest not found")
		}
		return nil, apperr.Internal("failed to load quest", err)
	}
	return quest, nil
}

func (s *Service) checkAssignee(ctx context.Context, userID string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.Validation("invalid quest", apperr.Issue{Field: "assignedTo", Message: "must reference an existing adventurer"})
		}
		return apperr.Internal("failed to load assignee", err)
	}
	if user.Role != models.RoleAdventurer {
		return apperr.Validation("invalid quest", apperr.Issue{Field: "assignedTo", Message: "must reference an adventurer"})
	}
	return nil
}

func (s *Service) notify(ctx context.Context, in notifications.CreateInput) {
	if s.notifier == nil {
		return
	}
	if _, err := s.notifier.Notify(ctx, in); err != nil {
		s.log.Warn().
			Err(err).
			Str("user_id", in.UserID).
			Str("type", string(in.Type)).
			Msg("Failed to send notification")
	}
}

func checkDifficulty(d models.Difficulty) (apperr.Issue, bool) {
	switch d {
	case models.DifficultyEasy, models.DifficultyMedium, models.DifficultyHard, models.DifficultyEpic:
		return apperr.Issue{}, true
	}
	return apperr.Issue{Field: "difficulty", Message: "must be one of EASY, MEDIUM, HARD, EPIC"}, false
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	return out
}
