// Package leaderboard ranks adventurers by experience.
package leaderboard

import (
	"context"
	"fmt"

	"github.com/tavern-guild/tavern/internal/models"
	"github.com/tavern-guild/tavern/internal/store"
	"github.com/tavern-guild/tavern/pkg/logger"
)

const (
	defaultLimit = 10
	maxLimit     = 100
)

// AdventurerRepository interface for ranked profile lookups.
type AdventurerRepository interface {
	ListTopByXP(ctx context.Context, limit int) ([]models.AdventurerProfile, error)
}

// UserRepository interface for user operations.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// Entry represents a single entry in a leaderboard.
type Entry struct {
	Position        int         `json:"position"`
	UserID          string      `json:"userId"`
	Username        string      `json:"username"`
	DisplayName     string      `json:"displayName"`
	ClassName       string      `json:"className"`
	Title           string      `json:"title"`
	Rank            models.Rank `json:"rank"`
	XP              int64       `json:"xp"`
	QuestsCompleted int         `json:"questsCompleted"`
}

// Service handles leaderboard generation.
type Service struct {
	adventurerRepo AdventurerRepository
	userRepo       UserRepository
	log            *logger.Logger
}

// NewService creates a new leaderboard service.
func NewService(stores store.Stores, log *logger.Logger) *Service {
	return NewServiceWithInterfaces(stores.Adventurers, stores.Users, log)
}

// NewServiceWithInterfaces creates a new leaderboard service with interface dependencies (useful for testing).
func NewServiceWithInterfaces(adventurerRepo AdventurerRepository, userRepo UserRepository, log *logger.Logger) *Service {
	return &Service{
		adventurerRepo: adventurerRepo,
		userRepo:       userRepo,
		log:            log,
	}
}

// GetLeaderboard returns the top adventurers by XP. Ties keep the order of the
// store, which favors whoever reached the XP first.
func (s *Service) GetLeaderboard(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	profiles, err := s.adventurerRepo.ListTopByXP(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get top adventurers: %w", err)
	}

	entries := make([]Entry, 0, len(profiles))
	for _, p := range profiles {
		user, err := s.userRepo.GetByID(ctx, p.UserID)
		if err != nil {
			s.log.Warn().Err(err).Str("user_id", p.UserID).Msg("Failed to get user")
			continue
		}

		entries = append(entries, Entry{
			UserID:          p.UserID,
			Username:        user.Username,
			DisplayName:     user.DisplayName,
			ClassName:       p.ClassName,
			Title:           p.Title,
			Rank:            p.Rank,
			XP:              p.XP,
			QuestsCompleted: p.QuestsCompleted,
		})
	}

	// Assign positions
	for i := range entries {
		entries[i].Position = i + 1
	}

	return entries, nil
}
