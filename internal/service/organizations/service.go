// Package organizations manages NPC organizations and their moderation.
package organizations

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/gosimple/slug"

	"github.com/tavern-guild/tavern/internal/apperr"
	"github.com/tavern-guild/tavern/internal/models"
	"github.com/tavern-guild/tavern/internal/service/notifications"
	"github.com/tavern-guild/tavern/internal/service/trust"
	"github.com/tavern-guild/tavern/internal/store"
	"github.com/tavern-guild/tavern/pkg/logger"
)

const (
	initialTrustScore = 50
	maxSlugAttempts   = 20
	defaultListLimit  = 20
	maxListLimit      = 100
)

// OrganizationRepository interface for organization operations.
type OrganizationRepository interface {
	Create(ctx context.Context, org *models.NpcOrganization) error
	GetByID(ctx context.Context, id string) (*models.NpcOrganization, error)
	GetByUserID(ctx context.Context, userID string) (*models.NpcOrganization, error)
	UpdateProfile(ctx context.Context, org *models.NpcOrganization) error
	UpdateModeration(ctx context.Context, org *models.NpcOrganization) error
	List(ctx context.Context, filter store.OrganizationFilter) ([]models.NpcOrganization, int64, error)
}

// TrustEvaluator computes and persists trust reports.
type TrustEvaluator interface {
	Evaluate(ctx context.Context, org *models.NpcOrganization) (*trust.Report, error)
}

// Notifier stores and pushes a notification.
type Notifier interface {
	Notify(ctx context.Context, in notifications.CreateInput) (*models.Notification, error)
}

// Announcer posts moderation notices to the guild channel.
type Announcer interface {
	AnnounceOrganizationFlagged(ctx context.Context, organizationName, reason string) error
}

// CreateInput describes a new organization.
type CreateInput struct {
	Name         string `json:"name" binding:"required,max=120"`
	Description  string `json:"description" binding:"max=2000"`
	Website      string `json:"website" binding:"omitempty,url,max=255"`
	Location     string `json:"location" binding:"max=120"`
	ContactEmail string `json:"contactEmail" binding:"omitempty,email,max=255"`
}

// UpdateInput carries profile changes. The slug is kept when the name changes.
type UpdateInput struct {
	Name         *string `json:"name" binding:"omitempty,min=1,max=120"`
	Description  *string `json:"description" binding:"omitempty,max=2000"`
	Website      *string `json:"website" binding:"omitempty,max=255"`
	Location     *string `json:"location" binding:"omitempty,max=120"`
	ContactEmail *string `json:"contactEmail" binding:"omitempty,max=255"`
}

// ModerateInput carries guild master changes.
type ModerateInput struct {
	Verified   *bool   `json:"verified"`
	IsFlagged  *bool   `json:"isFlagged"`
	FlagReason *string `json:"flagReason" binding:"omitempty,max=1000"`
}

// ListOptions filters the admin listing.
type ListOptions struct {
	Verified *bool
	Flagged  *bool
	Limit    int
	Offset   int
}

// ListResult is one page of organizations.
type ListResult struct {
	Items  []models.NpcOrganization `json:"items"`
	Total  int64                    `json:"total"`
	Limit  int                      `json:"limit"`
	Offset int                      `json:"offset"`
}

// Service handles organization operations.
type Service struct {
	repo      OrganizationRepository
	trust     TrustEvaluator
	notifier  Notifier
	announcer Announcer
	log       *logger.Logger
}

// NewService creates a new organization service. announcer may be nil.
func NewService(stores store.Stores, evaluator TrustEvaluator, notifier Notifier, announcer Announcer, log *logger.Logger) *Service {
	return NewServiceWithInterfaces(stores.Organizations, evaluator, notifier, announcer, log)
}

// NewServiceWithInterfaces creates a new organization service with interface dependencies (useful for testing).
func NewServiceWithInterfaces(
	repo OrganizationRepository,
	evaluator TrustEvaluator,
	notifier Notifier,
	announcer Announcer,
	log *logger.Logger,
) *Service {
	return &Service{
		repo:      repo,
		trust:     evaluator,
		notifier:  notifier,
		announcer: announcer,
		log:       log,
	}
}

// Create registers the organization of an NPC user. Each NPC has at most one.
func (s *Service) Create(ctx context.Context, user *models.User, in CreateInput) (*models.NpcOrganization, error) {
	if user.Role != models.RoleNPC {
		return nil, apperr.Forbidden("only NPC users can create an organization")
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperr.Validation("invalid organization", apperr.Issue{Field: "name", Message: "is required"})
	}

	if _, err := s.repo.GetByUserID(ctx, user.ID); err == nil {
		return nil, apperr.Conflict("organization already exists")
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, apperr.Internal("failed to check organization", err)
	}

	org := &models.NpcOrganization{
		UserID:       user.ID,
		Name:         name,
		Description:  in.Description,
		Website:      strings.TrimSpace(in.Website),
		Location:     strings.TrimSpace(in.Location),
		ContactEmail: strings.ToLower(strings.TrimSpace(in.ContactEmail)),
	}
	org.SetTrust(initialTrustScore)

	base := slug.Make(name)
	if base == "" {
		base = "organization"
	}

	for attempt := 1; attempt <= maxSlugAttempts; attempt++ {
		org.ID = ""
		org.Slug = base
		if attempt > 1 {
			org.Slug = base + "-" + strconv.Itoa(attempt)
		}

		err := s.repo.Create(ctx, org)
		if err == nil {
			s.log.Info().
				Str("organization_id", org.ID).
				Str("user_id", user.ID).
				Str("slug", org.Slug).
				Msg("Organization created")
			return org, nil
		}
		if !errors.Is(err, store.ErrDuplicate) {
			return nil, apperr.Internal("failed to create organization", err)
		}

		// The duplicate is either this user's organization or a slug collision.
		if _, err := s.repo.GetByUserID(ctx, user.ID); err == nil {
			return nil, apperr.Conflict("organization already exists")
		}
	}

	return nil, apperr.Conflict("could not find a free slug for %q", name)
}

// GetMine returns the organization of an NPC user.
func (s *Service) GetMine(ctx context.Context, userID string) (*models.NpcOrganization, error) {
	org, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("organization not found")
		}
		return nil, apperr.Internal("failed to load organization", err)
	}
	return org, nil
}

// UpdateMine changes the profile fields of the user's organization.
func (s *Service) UpdateMine(ctx context.Context, userID string, in UpdateInput) (*models.NpcOrganization, error) {
	org, err := s.GetMine(ctx, userID)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, apperr.Validation("invalid organization", apperr.Issue{Field: "name", Message: "must not be empty"})
		}
		org.Name = name
	}
	if in.Description != nil {
		org.Description = *in.Description
	}
	if in.Website != nil {
		org.Website = strings.TrimSpace(*in.Website)
	}
	if in.Location != nil {
		org.Location = strings.TrimSpace(*in.Location)
	}
	if in.ContactEmail != nil {
		email := strings.ToLower(strings.TrimSpace(*in.ContactEmail))
		if email != "" && !strings.Contains(email, "@") {
			return nil, apperr.Validation("invalid organization", apperr.Issue{Field: "contactEmail", Message: "must be a valid email address"})
		}
		org.ContactEmail = email
	}

	if err := s.repo.UpdateProfile(ctx, org); err != nil {
		return nil, apperr.Internal("failed to update organization", err)
	}

	s.log.Info().
		Str("organization_id", org.ID).
		Msg("Organization updated")

	return org, nil
}

// Trust computes the trust report of the user's organization and stores the new score.
func (s *Service) Trust(ctx context.Context, userID string) (*trust.Report, error) {
	org, err := s.GetMine(ctx, userID)
	if err != nil {
		return nil, err
	}
	report, err := s.trust.Evaluate(ctx, org)
	if err != nil {
		return nil, apperr.Internal("failed to compute trust score", err)
	}
	return report, nil
}

// List returns organizations for guild masters, newest first.
func (s *Service) List(ctx context.Context, opts ListOptions) (*ListResult, error) {
	if opts.Limit <= 0 {
		opts.Limit = defaultListLimit
	}
	if opts.Limit > maxListLimit {
		opts.Limit = maxListLimit
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}

	items, total, err := s.repo.List(ctx, store.OrganizationFilter{
		Verified: opts.Verified,
		Flagged:  opts.Flagged,
		Limit:    opts.Limit,
		Offset:   opts.Offset,
	})
	if err != nil {
		return nil, apperr.Internal("failed to list organizations", err)
	}
	return &ListResult{Items: items, Total: total, Limit: opts.Limit, Offset: opts.Offset}, nil
}

// Get returns an organization by id.
func (s *Service) Get(ctx context.Context, id string) (*models.NpcOrganization, error) {
	org, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("organization not found")
		}
		return nil, apperr.Internal("failed to load organization", err)
	}
	return org, nil
}

// Moderate sets the verified and flagged state of an organization. The owner is
// notified when the organization becomes verified or flagged; flagging is also announced.
func (s *Service) Moderate(ctx context.Context, id string, in ModerateInput) (*models.NpcOrganization, error) {
	org, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	wasVerified, wasFlagged := org.Verified, org.IsFlagged

	if in.Verified != nil {
		org.Verified = *in.Verified
	}
	if in.IsFlagged != nil {
		org.IsFlagged = *in.IsFlagged
	}
	if in.FlagReason != nil {
		org.FlagReason = strings.TrimSpace(*in.FlagReason)
	}
	if !org.IsFlagged {
		org.FlagReason = ""
	}

	if err := s.repo.UpdateModeration(ctx, org); err != nil {
		return nil, apperr.Internal("failed to update organization", err)
	}

	s.log.Info().
		Str("organization_id", org.ID).
		Bool("verified", org.Verified).
		Bool("flagged", org.IsFlagged).
		Msg("Organization moderated")

	if org.Verified && !wasVerified {
		s.notify(ctx, notifications.CreateInput{
			UserID:  org.UserID,
			Title:   "Organization verified",
			Message: org.Name + " has been verified by the guild.",
			Type:    models.NotificationOrgVerified,
			Link:    "/npc-organizations/me",
		})
	}

	if org.IsFlagged && !wasFlagged {
		message := org.Name + " has been flagged for review by the guild."
		if org.FlagReason != "" {
			message += " Reason: " + org.FlagReason
		}
		s.notify(ctx, notifications.CreateInput{
			UserID:  org.UserID,
			Title:   "Organization flagged",
			Message: message,
			Type:    models.NotificationOrgFlagged,
			Link:    "/npc-organizations/me",
		})

		if s.announcer != nil {
			if err := s.announcer.AnnounceOrganizationFlagged(ctx, org.Name, org.FlagReason); err != nil {
				s.log.Warn().Err(err).Str("organization_id", org.ID).Msg("Failed to announce flagged organization")
			}
		}
	}

	return org, nil
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
