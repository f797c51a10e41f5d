package trust

import (
	"context"
	"fmt"

	prommetrics "github.com/tavern-guild/tavern/internal/metrics"
	"github.com/tavern-guild/tavern/internal/models"
	"github.com/tavern-guild/tavern/internal/store"
	"github.com/tavern-guild/tavern/pkg/logger"
)

const refreshPageSize = 100

// QuestRepository interface for quest history lookups.
type QuestRepository interface {
	ListByCreator(ctx context.Context, creatorID string, status models.QuestStatus) ([]models.Quest, error)
}

// OrganizationRepository interface for organization operations.
type OrganizationRepository interface {
	UpdateTrust(ctx context.Context, org *models.NpcOrganization) error
	List(ctx context.Context, filter store.OrganizationFilter) ([]models.NpcOrganization, int64, error)
}

// Service computes and persists trust scores.
type Service struct {
	quests QuestRepository
	orgs   OrganizationRepository
	log    *logger.Logger
}

// NewService creates a new trust service.
func NewService(stores store.Stores, log *logger.Logger) *Service {
	return NewServiceWithInterfaces(stores.Quests, stores.Organizations, log)
}

// NewServiceWithInterfaces creates a new trust service with interface dependencies (useful for testing).
func NewServiceWithInterfaces(quests QuestRepository, orgs OrganizationRepository, log *logger.Logger) *Service {
	return &Service{quests: quests, orgs: orgs, log: log}
}

// Evaluate computes the report from the organization's full quest history and
// writes the score back when it changed. Only the trust columns are written,
// so moderation made after org was loaded is kept.
func (s *Service) Evaluate(ctx context.Context, org *models.NpcOrganization) (*Report, error) {
	quests, err := s.quests.ListByCreator(ctx, org.UserID, "")
	if err != nil {
		return nil, fmt.Errorf("failed to load quests for organization %s: %w", org.ID, err)
	}

	report := Calculate(quests, org.IsFlagged)
	report.OrganizationID = org.ID
	prommetrics.ObserveTrustScore(report.TrustScore)

	if org.TrustScore != report.TrustScore || org.TrustTier != report.TrustTier {
		org.SetTrust(report.TrustScore)
		if err := s.orgs.UpdateTrust(ctx, org); err != nil {
			return nil, fmt.Errorf("failed to save trust for organization %s: %w", org.ID, err)
		}
		s.log.Debug().
			Str("organization_id", org.ID).
			Int("trust_score", report.TrustScore).
			Str("trust_tier", string(report.TrustTier)).
			Msg("Updated trust score")
	}

	return &report, nil
}

// RefreshAll re-evaluates every organization. It returns how many were evaluated.
// A failure on one organization is logged and does not stop the others.
func (s *Service) RefreshAll(ctx context.Context) (int, error) {
	evaluated := 0
	failed := 0

	for offset := 0; ; offset += refreshPageSize {
		orgs, _, err := s.orgs.List(ctx, store.OrganizationFilter{Limit: refreshPageSize, Offset: offset})
		if err != nil {
			return evaluated, fmt.Errorf("failed to list organizations: %w", err)
		}

		for i := range orgs {
			if err := ctx.Err(); err != nil {
				return evaluated, err
			}
			if _, err := s.Evaluate(ctx, &orgs[i]); err != nil {
				failed++
				s.log.Error().
					Err(err).
					Str("organization_id", orgs[i].ID).
					Msg("Failed to refresh trust score")
				continue
			}
			evaluated++
		}

		if len(orgs) < refreshPageSize {
			break
		}
	}

	s.log.Info().
		Int("evaluated", evaluated).
		Int("failed", failed).
		Msg("Trust refresh completed")

	return evaluated, nil
}
