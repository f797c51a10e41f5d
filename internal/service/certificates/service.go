// Package certificates mints and lists Scrolls of Deed.
package certificates

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/tavern-guild/tavern/internal/apperr"
	prommetrics "github.com/tavern-guild/tavern/internal/metrics"
	"github.com/tavern-guild/tavern/internal/models"
	"github.com/tavern-guild/tavern/internal/store"
	"github.com/tavern-guild/tavern/pkg/logger"
)

// CertificateRepository interface for certificate operations.
type CertificateRepository interface {
	Create(ctx context.Context, cert *models.Certificate) error
	GetByQuestID(ctx context.Context, questID string) (*models.Certificate, error)
	ListByAdventurer(ctx context.Context, adventurerID string) ([]models.Certificate, error)
}

// Archiver stores a copy of a minted certificate outside the database.
type Archiver interface {
	Archive(ctx context.Context, cert *models.Certificate) error
}

// IssueInput describes the completed quest a certificate is minted for.
type IssueInput struct {
	AdventurerID     string
	Quest            *models.Quest
	OrganizationName string
	XPAwarded        int64
	RankAtIssue      models.Rank
}

// Service mints certificates.
type Service struct {
	repo     CertificateRepository
	archiver Archiver
	log      *logger.Logger
	now      func() time.Time
}

// NewService creates a new certificate service. archiver may be nil.
func NewService(stores store.Stores, archiver Archiver, log *logger.Logger) *Service {
	return NewServiceWithInterfaces(stores.Certificates, archiver, log)
}

// NewServiceWithInterfaces creates a new certificate service with interface dependencies (useful for testing).
func NewServiceWithInterfaces(repo CertificateRepository, archiver Archiver, log *logger.Logger) *Service {
	return &Service{
		repo:     repo,
		archiver: archiver,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Issue mints the certificate for a quest. A quest can only ever have one
// certificate; a second attempt fails with a conflict.
func (s *Service) Issue(ctx context.Context, in IssueInput) (*models.Certificate, error) {
	issuedAt := s.now()
	cert := &models.Certificate{
		ScrollID:         NewScrollID(issuedAt),
		AdventurerID:     in.AdventurerID,
		QuestID:          in.Quest.ID,
		QuestTitle:       in.Quest.Title,
		OrganizationName: in.OrganizationName,
		Difficulty:       in.Quest.Difficulty,
		XPAwarded:        in.XPAwarded,
		RankAtIssue:      in.RankAtIssue,
		IssuedAt:         issuedAt,
	}

	if err := s.repo.Create(ctx, cert); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, apperr.Conflict("quest %s already has a certificate", in.Quest.ID)
		}
		return nil, apperr.Internal("failed to issue certificate", err)
	}

	prommetrics.RecordCertificateIssued()
	s.log.Info().
		Str("scroll_id", cert.ScrollID).
		Str("quest_id", cert.QuestID).
		Str("adventurer_id", cert.AdventurerID).
		Msg("Certificate issued")

	return cert, nil
}

// ForQuest returns the certificate minted for a quest.
func (s *Service) ForQuest(ctx context.Context, questID string) (*models.Certificate, error) {
	cert, err := s.repo.GetByQuestID(ctx, questID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("certificate not found")
		}
		return nil, apperr.Internal("failed to load certificate", err)
	}
	return cert, nil
}

// Archive uploads a copy of cert when an archiver is configured. Failures are
// logged and never returned.
func (s *Service) Archive(ctx context.Context, cert *models.Certificate) {
	if s.archiver == nil {
		return
	}
	if err := s.archiver.Archive(ctx, cert); err != nil {
		prommetrics.RecordCertificateArchive("error")
		s.log.Warn().
			Err(err).
			Str("scroll_id", cert.ScrollID).
			Msg("Failed to archive certificate")
		return
	}
	prommetrics.RecordCertificateArchive("success")
}

// ListForAdventurer returns the adventurer's certificates, newest first.
func (s *Service) ListForAdventurer(ctx context.Context, adventurerID string) ([]models.Certificate, error) {
	certs, err := s.repo.ListByAdventurer(ctx, adventurerID)
	if err != nil {
		return nil, apperr.Internal("failed to list certificates", err)
	}
	return certs, nil
}

// NewScrollID returns an identifier of the form SOD-<base36 unix millis>-<6 hex>.
func NewScrollID(at time.Time) string {
	buf := make([]byte, 3)
	_, _ = rand.Read(buf) // never fails since Go 1.24
	return strings.ToUpper("SOD-" + strconv.FormatInt(at.UnixMilli(), 36) + "-" + hex.EncodeToString(buf))
}
