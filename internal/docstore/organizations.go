package docstore

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/tavern-guild/tavern/internal/models"
	"github.com/tavern-guild/tavern/internal/store"
)

// OrganizationStore persists NPC organizations.
type OrganizationStore struct {
	coll *mongo.Collection
}

// Create inserts an organization.
func (s *OrganizationStore) Create(ctx context.Context, org *models.NpcOrganization) error {
	if org.ID == "" {
		org.ID = models.NewID()
	}
	org.CreatedAt = now()
	org.UpdatedAt = org.CreatedAt

	if _, err := s.coll.InsertOne(ctx, org); err != nil {
		return wrap(err, "failed to create organization for user %s", org.UserID)
	}
	return nil
}

// GetByID retrieves an organization by ID.
func (s *OrganizationStore) GetByID(ctx context.Context, id string) (*models.NpcOrganization, error) {
	var org models.NpcOrganization
	if err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&org); err != nil {
		return nil, wrap(err, "failed to get organization %s", id)
	}
	return &org, nil
}

// GetByUserID retrieves the organization owned by an NPC user.
func (s *OrganizationStore) GetByUserID(ctx context.Context, userID string) (*models.NpcOrganization, error) {
	var org models.NpcOrganization
	if err := s.coll.FindOne(ctx, bson.M{"userId": userID}).Decode(&org); err != nil {
		return nil, wrap(err, "failed to get organization for user %s", userID)
	}
	return &org, nil
}

// UpdateProfile sets the owner-editable fields.
func (s *OrganizationStore) UpdateProfile(ctx context.Context, org *models.NpcOrganization) error {
	return s.set(ctx, org, bson.M{
		"name":         org.Name,
		"description":  org.Description,
		"website":      org.Website,
		"location":     org.Location,
		"contactEmail": org.ContactEmail,
	})
}

// UpdateModeration sets the verified and flag fields.
func (s *OrganizationStore) UpdateModeration(ctx context.Context, org *models.NpcOrganization) error {
	return s.set(ctx, org, bson.M{
		"verified":   org.Verified,
		"isFlagged":  org.IsFlagged,
		"flagReason": org.FlagReason,
	})
}

// UpdateTrust sets the trust score and tier.
func (s *OrganizationStore) UpdateTrust(ctx context.Context, org *models.NpcOrganization) error {
	return s.set(ctx, org, bson.M{
		"trustScore": org.TrustScore,
		"trustTier":  org.TrustTier,
	})
}

func (s *OrganizationStore) set(ctx context.Context, org *models.NpcOrganization, fields bson.M) error {
	at := now()
	fields["updatedAt"] = at
	if err := setByID(ctx, s.coll, org.ID, fields); err != nil {
		return wrap(err, "failed to update organization %s", org.ID)
	}
	org.UpdatedAt = at
	return nil
}

// List returns a page of organizations and the total matching the filter.
func (s *OrganizationStore) List(ctx context.Context, filter store.OrganizationFilter) ([]models.NpcOrganization, int64, error) {
	query := organizationQuery(filter)

	total, err := s.coll.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, wrap(err, "failed to count organizations")
	}

	orgs := []models.NpcOrganization{}
	opts := page(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: 1}}, filter.Limit, filter.Offset)
	if err := findAll(ctx, s.coll, query, opts, &orgs); err != nil {
		return nil, 0, wrap(err, "failed to list organizations")
	}
	return orgs, total, nil
}

func organizationQuery(filter store.OrganizationFilter) bson.M {
	query := bson.M{}
	if filter.Verified != nil {
		query["verified"] = *filter.Verified
	}
	if filter.Flagged != nil {
		query["isFlagged"] = *filter.Flagged
	}
	return query
}
