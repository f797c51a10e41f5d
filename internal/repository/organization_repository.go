package repository

import (
	"context"

	"github.com/tavern-guild/tavern/internal/models"
	"github.com/tavern-guild/tavern/internal/store"
)

// OrganizationRepository handles NPC organization operations.
type OrganizationRepository struct {
	db *DB
}

// NewOrganizationRepository creates a new organization repository.
func NewOrganizationRepository(db *DB) *OrganizationRepository {
	return &OrganizationRepository{db: db}
}

// Create creates a new organization.
func (r *OrganizationRepository) Create(ctx context.Context, org *models.NpcOrganization) error {
	if org.ID == "" {
		org.ID = models.NewID()
	}
	if err := r.db.conn(ctx).Create(org).Error; err != nil {
		return wrap(err, "failed to create organization for user %s", org.UserID)
	}
	return nil
}

// GetByID retrieves an organization by ID.
func (r *OrganizationRepository) GetByID(ctx context.Context, id string) (*models.NpcOrganization, error) {
	var org models.NpcOrganization
	if err := r.db.conn(ctx).Where("id = ?", id).First(&org).Error; err != nil {
		return nil, wrap(err, "failed to get organization %s", id)
	}
	return &org, nil
}

// GetByUserID retrieves the organization owned by an NPC user.
func (r *OrganizationRepository) GetByUserID(ctx context.Context, userID string) (*models.NpcOrganization, error) {
	var org models.NpcOrganization
	if err := r.db.conn(ctx).Where("user_id = ?", userID).First(&org).Error; err != nil {
		return nil, wrap(err, "failed to get organization for user %s", userID)
	}
	return &org, nil
}

// UpdateProfile writes the owner-editable columns of the organization.
func (r *OrganizationRepository) UpdateProfile(ctx context.Context, org *models.NpcOrganization) error {
	return r.updateColumns(ctx, org, map[string]interface{}{
		"name":          org.Name,
		"description":   org.Description,
		"website":       org.Website,
		"location":      org.Location,
		"contact_email": org.ContactEmail,
	})
}

// UpdateModeration writes the verified and flag columns of the organization.
func (r *OrganizationRepository) UpdateModeration(ctx context.Context, org *models.NpcOrganization) error {
	return r.updateColumns(ctx, org, map[string]interface{}{
		"verified":    org.Verified,
		"is_flagged":  org.IsFlagged,
		"flag_reason": org.FlagReason,
	})
}

// UpdateTrust writes the trust score and tier of the organization.
func (r *OrganizationRepository) UpdateTrust(ctx context.Context, org *models.NpcOrganization) error {
	return r.updateColumns(ctx, org, map[string]interface{}{
		"trust_score": org.TrustScore,
		"trust_tier":  org.TrustTier,
	})
}

func (r *OrganizationRepository) updateColumns(ctx context.Context, org *models.NpcOrganization, columns map[string]interface{}) error {
	at, err := r.db.updateColumns(ctx, &models.NpcOrganization{}, org.ID, columns)
	if err != nil {
		return wrap(err, "failed to update organization %s", org.ID)
	}
	org.UpdatedAt = at
	return nil
}

// List returns a page of organizations and the total matching the filter.
func (r *OrganizationRepository) List(ctx context.Context, filter store.OrganizationFilter) ([]models.NpcOrganization, int64, error) {
	query := r.db.conn(ctx).Model(&models.NpcOrganization{})

	if filter.Verified != nil {
		query = query.Where("verified = ?", *filter.Verified)
	}
	if filter.Flagged != nil {
		query = query.Where("is_flagged = ?", *filter.Flagged)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, wrap(err, "failed to count organizations")
	}

	query = query.Order("created_at DESC").Order("id ASC")
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var orgs []models.NpcOrganization
	if err := query.Find(&orgs).Error; err != nil {
		return nil, 0, wrap(err, "failed to list organizations")
	}
	return orgs, total, nil
}
