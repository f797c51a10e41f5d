package quests

import (
	"context"
	"errors"
	"fmt"

	"github.com/tavern-guild/tavern/internal/apperr"
	"github.com/tavern-guild/tavern/internal/mattermost"
	prommetrics "github.com/tavern-guild/tavern/internal/metrics"
	"github.com/tavern-guild/tavern/internal/models"
	"github.com/tavern-guild/tavern/internal/service/certificates"
	"github.com/tavern-guild/tavern/internal/service/notifications"
	"github.com/tavern-guild/tavern/internal/service/progression"
	"github.com/tavern-guild/tavern/internal/store"
)

// CompletionResult is returned by Complete.
type CompletionResult struct {
	progression.Award
	Certificate *models.Certificate `json:"certificate"`
}

// Complete closes a quest for its assigned adventurer: the adventurer gains XP,
// the rank is recomputed and exactly one certificate is minted. The writes share
// one transaction where the backend supports it.
//
// The certificate is written first and the quest is then moved to COMPLETED
// with a status check, so of two concurrent completions only one awards XP.
// Without a transaction a failure can leave a certificate behind on an open
// quest; a retry picks that certificate up and finishes the completion.
func (s *Service) Complete(ctx context.Context, npcID, questID string) (*CompletionResult, error) {
	var (
		result     CompletionResult
		quest      *models.Quest
		adventurer *models.User
		from       models.QuestStatus
	)

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		quest, err = s.load(ctx, questID)
		if err != nil {
			return err
		}
		if quest.CreatedBy != npcID {
			return apperr.Forbidden("only the quest giver can complete this quest")
		}

		from = quest.Status
		switch quest.Status {
		case models.QuestCompleted:
			return apperr.Policy("quest already completed")
		case models.QuestPosted, models.QuestInProgress:
		default:
			return apperr.Policy("quest in status %s cannot be completed", quest.Status)
		}
		if quest.AssignedTo == nil || *quest.AssignedTo == "" {
			return apperr.Policy("quest has no assigned adventurer")
		}

		profile, user, err := s.profileFor(ctx, *quest.AssignedTo)
		if err != nil {
			return err
		}
		adventurer = user

		cert, err := s.issue(ctx, npcID, quest, profile)
		if err != nil {
			return err
		}

		at := s.now()
		if err := s.quests.MarkCompleted(ctx, quest.ID, at); err != nil {
			if errors.Is(err, store.ErrConflict) {
				return apperr.Policy("quest already completed")
			}
			return apperr.Internal("failed to complete quest", err)
		}
		quest.Status = models.QuestCompleted
		quest.CompletedAt = &at
		quest.UpdatedAt = at

		updated, err := s.adventurers.AddXP(ctx, profile.UserID, cert.XPAwarded)
		if err != nil {
			s.log.Error().
				Err(err).
				Str("quest_id", quest.ID).
				Str("adventurer_id", profile.UserID).
				Str("scroll_id", cert.ScrollID).
				Msg("Failed to award experience")
			return apperr.Internal("failed to award experience", err)
		}

		award := progression.AwardFor(updated.XP-cert.XPAwarded, cert.XPAwarded)
		if updated.Rank != award.Rank {
			if err := s.adventurers.SetRank(ctx, updated.ID, updated.XP, award.Rank); err != nil {
				return apperr.Internal("failed to update rank", err)
			}
		}

		result = CompletionResult{Award: award, Certificate: cert}
		return nil
	})
	if err != nil {
		if apperr.KindOf(err) == apperr.KindPolicy {
			prommetrics.RecordQuestTransition(string(from), string(models.QuestCompleted), "rejected")
		}
		return nil, err
	}

	s.afterCompletion(ctx, quest, adventurer, from, &result)
	return &result, nil
}

// issue mints the certificate of quest. When the quest already has one for the
// same adventurer, an earlier completion stopped after minting it and that
// certificate is returned so the completion can finish.
func (s *Service) issue(ctx context.Context, npcID string, quest *models.Quest, profile *models.AdventurerProfile) (*models.Certificate, error) {
	preview := progression.AwardFor(profile.XP, progression.XPFor(quest.Difficulty))

	cert, err := s.certs.Issue(ctx, certificates.IssueInput{
		AdventurerID:     profile.UserID,
		Quest:            quest,
		OrganizationName: s.organizationName(ctx, npcID),
		XPAwarded:        preview.XPAwarded,
		RankAtIssue:      preview.Rank,
	})
	if err == nil {
		return cert, nil
	}
	if !apperr.IsKind(err, apperr.KindConflict) {
		return nil, err
	}

	existing, err := s.certs.ForQuest(ctx, quest.ID)
	if err != nil {
		if apperr.IsKind(err, apperr.KindNotFound) {
			return nil, apperr.Policy("quest already completed")
		}
		return nil, err
	}
	if existing.AdventurerID != profile.UserID {
		return nil, apperr.Policy("quest already completed")
	}

	s.log.Warn().
		Str("quest_id", quest.ID).
		Str("adventurer_id", profile.UserID).
		Str("scroll_id", existing.ScrollID).
		Msg("Resuming completion with existing certificate")
	return existing, nil
}

// profileFor returns the adventurer profile, creating an empty one when the
// user exists but never got a profile. user is nil when the profile already existed.
func (s *Service) profileFor(ctx context.Context, userID string) (*models.AdventurerProfile, *models.User, error) {
	profile, err := s.adventurers.GetByUserID(ctx, userID)
	if err == nil {
		return profile, nil, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, nil, apperr.Internal("failed to load adventurer profile", err)
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, apperr.NotFound("assigned adventurer not found")
		}
		return nil, nil, apperr.Internal("failed to load adventurer", err)
	}
	if user.Role != models.RoleAdventurer {
		return nil, nil, apperr.NotFound("assigned adventurer not found")
	}

	profile = &models.AdventurerProfile{
		UserID:     user.ID,
		Rank:       models.RankF,
		Attributes: models.DefaultAttributes(),
	}
	if err := s.adventurers.Create(ctx, profile); err != nil {
		return nil, nil, apperr.Internal("failed to create adventurer profile", err)
	}
	return profile, user, nil
}

func (s *Service) organizationName(ctx context.Context, npcID string) string {
	org, err := s.orgs.GetByUserID(ctx, npcID)
	if err == nil {
		return org.Name
	}
	if !errors.Is(err, store.ErrNotFound) {
		s.log.Warn().Err(err).Str("npc_id", npcID).Msg("Failed to load organization for certificate")
	}
	user, err := s.users.GetByID(ctx, npcID)
	if err != nil {
		return ""
	}
	return displayName(user)
}

// afterCompletion runs the best-effort side effects once the completion is committed.
func (s *Service) afterCompletion(
	ctx context.Context,
	quest *models.Quest,
	adventurer *models.User,
	from models.QuestStatus,
	result *CompletionResult,
) {
	prommetrics.RecordQuestTransition(string(from), string(models.QuestCompleted), "ok")
	prommetrics.RecordQuestCompleted(string(quest.Difficulty), result.XPAwarded)

	s.log.Info().
		Str("quest_id", quest.ID).
		Str("adventurer_id", *quest.AssignedTo).
		Int64("xp_awarded", result.XPAwarded).
		Str("rank", string(result.Rank)).
		Bool("rank_changed", result.RankChanged).
		Str("scroll_id", result.Certificate.ScrollID).
		Msg("Quest completed")

	s.notify(ctx, notifications.CreateInput{
		UserID:  *quest.AssignedTo,
		Title:   "Quest completed",
		Message: fmt.Sprintf("\"%s\" is complete. You earned %d XP.", quest.Title, result.XPAwarded),
		Type:    models.NotificationQuestCompleted,
		Link:    "/adventurers/me/certificates",
	})

	if result.RankChanged {
		prommetrics.RecordRankUp(string(result.Rank))
		s.notify(ctx, notifications.CreateInput{
			UserID:  *quest.AssignedTo,
			Title:   "Rank up",
			Message: fmt.Sprintf("You have risen from rank %s to rank %s.", result.PreviousRank, result.Rank),
			Type:    models.NotificationRankUp,
			Link:    "/adventurers/me",
		})
	}

	s.certs.Archive(ctx, result.Certificate)

	if s.announcer != nil {
		if adventurer == nil {
			if user, err := s.users.GetByID(ctx, *quest.AssignedTo); err == nil {
				adventurer = user
			}
		}
		name := *quest.AssignedTo
		if adventurer != nil {
			name = displayName(adventurer)
		}

		err := s.announcer.AnnounceQuestCompleted(ctx, mattermost.QuestCompletion{
			QuestTitle:       quest.Title,
			OrganizationName: result.Certificate.OrganizationName,
			AdventurerName:   name,
			Difficulty:       string(quest.Difficulty),
			XPAwarded:        result.XPAwarded,
			Rank:             string(result.Rank),
			RankChanged:      result.RankChanged,
			ScrollID:         result.Certificate.ScrollID,
		})
		if err != nil {
			s.log.Warn().Err(err).Str("quest_id", quest.ID).Msg("Failed to announce quest completion")
		}
	}
}

func displayName(u *models.User) string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Username
}
