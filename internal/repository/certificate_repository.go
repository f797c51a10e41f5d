package repository

import (
	"context"

	"github.com/tavern-guild/tavern/internal/models"
)

// CertificateRepository handles Scroll of Deed records.
type CertificateRepository struct {
	db *DB
}

// NewCertificateRepository creates a new certificate repository.
func NewCertificateRepository(db *DB) *CertificateRepository {
	return &CertificateRepository{db: db}
}

// Create inserts a certificate. The unique index on quest_id makes a second
// certificate for the same quest fail with store.ErrDuplicate.
func (r *CertificateRepository) Create(ctx context.Context, cert *models.Certificate) error {
	if cert.ID == "" {
		cert.ID = models.NewID()
	}
	if err := r.db.conn(ctx).Create(cert).Error; err != nil {
		return wrap(err, "failed to create certificate for quest %s", cert.QuestID)
	}
	return nil
}

// GetByQuestID retrieves the certificate minted for a quest.
func (r *CertificateRepository) GetByQuestID(ctx context.Context, questID string) (*models.Certificate, error) {
	var cert models.Certificate
	if err := r.db.conn(ctx).Where("quest_id = ?", questID).First(&cert).Error; err != nil {
		return nil, wrap(err, "failed to get certificate for quest %s", questID)
	}
	return &cert, nil
}

// ListByAdventurer returns an adventurer's certificates, newest first.
func (r *CertificateRepository) ListByAdventurer(ctx context.Context, adventurerID string) ([]models.Certificate, error) {
	var certs []models.Certificate
	err := r.db.conn(ctx).
		Where("adventurer_id = ?", adventurerID).
		Order("issued_at DESC").
		Find(&certs).Error
	if err != nil {
		return nil, wrap(err, "failed to list certificates for adventurer %s", adventurerID)
	}
	return certs, nil
}
