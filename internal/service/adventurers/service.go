// Package adventurers manages adventurer profiles, skills and scrolls.
package adventurers

import (
	"context"
	"errors"
	"strings"

	"github.com/tavern-guild/tavern/internal/apperr"
	"github.com/tavern-guild/tavern/internal/models"
	"github.com/tavern-guild/tavern/internal/service/progression"
	"github.com/tavern-guild/tavern/internal/store"
	"github.com/tavern-guild/tavern/pkg/logger"
)

// AdventurerRepository interface for profile and skill operations.
type AdventurerRepository interface {
	Create(ctx context.Context, profile *models.AdventurerProfile) error
	GetByUserID(ctx context.Context, userID string) (*models.AdventurerProfile, error)
	UpdateDetails(ctx context.Context, profile *models.AdventurerProfile) error

	CreateSkill(ctx context.Context, skill *models.AdventurerSkill) error
	GetSkill(ctx context.Context, id string) (*models.AdventurerSkill, error)
	ListSkills(ctx context.Context, adventurerID string) ([]models.AdventurerSkill, error)
	UpdateSkill(ctx context.Context, skill *models.AdventurerSkill) error
	DeleteSkill(ctx context.Context, id string) error
}

// CertificateLister lists an adventurer's scrolls.
type CertificateLister interface {
	ListForAdventurer(ctx context.Context, adventurerID string) ([]models.Certificate, error)
}

// Profile is an adventurer profile with its rank progress.
type Profile struct {
	*models.AdventurerProfile
	Progress progression.Progress `json:"progress"`
}

// AttributesInput carries attribute changes. Nil fields are left untouched.
type AttributesInput struct {
	Strength     *int `json:"strength" binding:"omitempty,min=1,max=20"`
	Dexterity    *int `json:"dexterity" binding:"omitempty,min=1,max=20"`
	Constitution *int `json:"constitution" binding:"omitempty,min=1,max=20"`
	Intelligence *int `json:"intelligence" binding:"omitempty,min=1,max=20"`
	Wisdom       *int `json:"wisdom" binding:"omitempty,min=1,max=20"`
	Charisma     *int `json:"charisma" binding:"omitempty,min=1,max=20"`
}

// UpdateProfileInput carries profile changes. XP and rank are never client-writable.
type UpdateProfileInput struct {
	Title      *string          `json:"title" binding:"omitempty,max=100"`
	Bio        *string          `json:"bio" binding:"omitempty,max=2000"`
	ClassName  *string          `json:"className" binding:"omitempty,max=50"`
	Attributes *AttributesInput `json:"attributes"`
}

// SkillInput describes a new skill. Level defaults to 1.
type SkillInput struct {
	Name        string `json:"name" binding:"required,max=100"`
	Level       int    `json:"level" binding:"omitempty,min=1,max=10"`
	Description string `json:"description" binding:"max=1000"`
}

// SkillUpdateInput carries skill changes.
type SkillUpdateInput struct {
	Name        *string `json:"name" binding:"omitempty,min=1,max=100"`
	Level       *int    `json:"level" binding:"omitempty,min=1,max=10"`
	Description *string `json:"description" binding:"omitempty,max=1000"`
}

// Service handles adventurer profile operations.
type Service struct {
	repo  AdventurerRepository
	certs CertificateLister
	log   *logger.Logger
}

// NewService creates a new adventurer service.
func NewService(stores store.Stores, certs CertificateLister, log *logger.Logger) *Service {
	return NewServiceWithInterfaces(stores.Adventurers, certs, log)
}

// NewServiceWithInterfaces creates a new adventurer service with interface dependencies (useful for testing).
func NewServiceWithInterfaces(repo AdventurerRepository, certs CertificateLister, log *logger.Logger) *Service {
	return &Service{repo: repo, certs: certs, log: log}
}

// GetProfile returns the user's profile, creating an empty one on first access.
func (s *Service) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	profile, err := s.profile(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &Profile{AdventurerProfile: profile, Progress: progression.ProgressFor(profile.XP)}, nil
}

// UpdateProfile changes the descriptive fields and attributes of the profile.
// XP, rank and the completed quest count are never written here.
func (s *Service) UpdateProfile(ctx context.Context, userID string, in UpdateProfileInput) (*Profile, error) {
	profile, err := s.profile(ctx, userID)
	if err != nil {
		return nil, err
	}

	if in.Title != nil {
		profile.Title = strings.TrimSpace(*in.Title)
	}
	if in.Bio != nil {
		profile.Bio = *in.Bio
	}
	if in.ClassName != nil {
		profile.ClassName = strings.TrimSpace(*in.ClassName)
	}
	if in.Attributes != nil {
		if issues := applyAttributes(&profile.Attributes, in.Attributes); len(issues) > 0 {
			return nil, apperr.Validation("invalid attributes", issues...)
		}
	}

	if err := s.repo.UpdateDetails(ctx, profile); err != nil {
		return nil, apperr.Internal("failed to update profile", err)
	}

	s.log.Info().
		Str("user_id", userID).
		Msg("Adventurer profile updated")

	return &Profile{AdventurerProfile: profile, Progress: progression.ProgressFor(profile.XP)}, nil
}

// ListSkills returns the user's skills.
func (s *Service) ListSkills(ctx context.Context, userID string) ([]models.AdventurerSkill, error) {
	profile, err := s.profile(ctx, userID)
	if err != nil {
		return nil, err
	}
	skills, err := s.repo.ListSkills(ctx, profile.ID)
	if err != nil {
		return nil, apperr.Internal("failed to list skills", err)
	}
	return skills, nil
}

// AddSkill adds a skill. Skill names are unique per adventurer.
func (s *Service) AddSkill(ctx context.Context, userID string, in SkillInput) (*models.AdventurerSkill, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperr.Validation("invalid skill", apperr.Issue{Field: "name", Message: "is required"})
	}
	if in.Level == 0 {
		in.Level = models.MinSkillLevel
	}
	if issue, ok := checkLevel(in.Level); !ok {
		return nil, apperr.Validation("invalid skill", issue)
	}

	profile, err := s.profile(ctx, userID)
	if err != nil {
		return nil, err
	}

	skill := &models.AdventurerSkill{
		AdventurerID: profile.ID,
		Name:         name,
		Level:        in.Level,
		Description:  in.Description,
	}
	if err := s.repo.CreateSkill(ctx, skill); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, apperr.Conflict("skill %q already exists", name)
		}
		return nil, apperr.Internal("failed to add skill", err)
	}

	s.log.Info().
		Str("user_id", userID).
		Str("skill", skill.Name).
		Int("level", skill.Level).
		Msg("Skill added")

	return skill, nil
}

// UpdateSkill changes one of the user's skills.
func (s *Service) UpdateSkill(ctx context.Context, userID, skillID string, in SkillUpdateInput) (*models.AdventurerSkill, error) {
	skill, err := s.ownedSkill(ctx, userID, skillID)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, apperr.Validation("invalid skill", apperr.Issue{Field: "name", Message: "must not be empty"})
		}
		skill.Name = name
	}
	if in.Level != nil {
		if issue, ok := checkLevel(*in.Level); !ok {
			return nil, apperr.Validation("invalid skill", issue)
		}
		skill.Level = *in.Level
	}
	if in.Description != nil {
		skill.Description = *in.Description
	}

	if err := s.repo.UpdateSkill(ctx, skill); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, apperr.Conflict("skill %q already exists", skill.Name)
		}
		return nil, apperr.Internal("failed to update skill", err)
	}
	return skill, nil
}

// DeleteSkill removes one of the user's skills.
func (s *Service) DeleteSkill(ctx context.Context, userID, skillID string) error {
	skill, err := s.ownedSkill(ctx, userID, skillID)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteSkill(ctx, skill.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFound("skill not found")
		}
		return apperr.Internal("failed to delete skill", err)
	}

	s.log.Info().
		Str("user_id", userID).
		Str("skill", skill.Name).
		Msg("Skill deleted")

	return nil
}

// Certificates returns the user's scrolls, newest first.
func (s *Service) Certificates(ctx context.Context, userID string) ([]models.Certificate, error) {
	return s.certs.ListForAdventurer(ctx, userID)
}

func (s *Service) profile(ctx context.Context, userID string) (*models.AdventurerProfile, error) {
	profile, err := s.repo.GetByUserID(ctx, userID)
	if err == nil {
		return profile, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, apperr.Internal("failed to load profile", err)
	}

	profile = &models.AdventurerProfile{
		UserID:     userID,
		Rank:       models.RankF,
		Attributes: models.DefaultAttributes(),
	}
	if err := s.repo.Create(ctx, profile); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return s.repo.GetByUserID(ctx, userID)
		}
		return nil, apperr.Internal("failed to create profile", err)
	}
	return profile, nil
}

func (s *Service) ownedSkill(ctx context.Context, userID, skillID string) (*models.AdventurerSkill, error) {
	profile, err := s.profile(ctx, userID)
	if err != nil {
		return nil, err
	}
	skill, err := s.repo.GetSkill(ctx, skillID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("skill not found")
		}
		return nil, apperr.Internal("failed to load skill", err)
	}
	if skill.AdventurerID != profile.ID {
		return nil, apperr.NotFound("skill not found")
	}
	return skill, nil
}

func checkLevel(level int) (apperr.Issue, bool) {
	if level < models.MinSkillLevel || level > models.MaxSkillLevel {
		return apperr.Issue{Field: "level", Message: "must be between 1 and 10"}, false
	}
	return apperr.Issue{}, true
}

func applyAttributes(attrs *models.Attributes, in *AttributesInput) []apperr.Issue {
	var issues []apperr.Issue
	set := func(field string, dst *int, v *int) {
		if v == nil {
			return
		}
		if *v < models.MinAttribute || *v > models.MaxAttribute {
			issues = append(issues, apperr.Issue{Field: "attributes." + field, Message: "must be between 1 and 20"})
			return
		}
		*dst = *v
	}

	set("strength", &attrs.Strength, in.Strength)
	set("dexterity", &attrs.Dexterity, in.Dexterity)
	set("constitution", &attrs.Constitution, in.Constitution)
	set("intelligence", &attrs.Intelligence, in.Intelligence)
	set("wisdom", &attrs.Wisdom, in.Wisdom)
	set("charisma", &attrs.Charisma, in.Charisma)
	return issues
}
