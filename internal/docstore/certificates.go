package docstore

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/tavern-guild/tavern/internal/models"
)

// CertificateStore persists Scroll of Deed records.
type CertificateStore struct {
	coll *mongo.Collection
}

// Create inserts a certificate. The unique questId index rejects a second one.
func (s *CertificateStore) Create(ctx context.Context, cert *models.Certificate) error {
	if cert.ID == "" {
		cert.ID = models.NewID()
	}
	if _, err := s.coll.InsertOne(ctx, cert); err != nil {
		return wrap(err, "failed to create certificate for quest %s", cert.QuestID)
	}
	return nil
}

// GetByQuestID retrieves the certificate minted for a quest.
func (s *CertificateStore) GetByQuestID(ctx context.Context, questID string) (*models.Certificate, error) {
	var cert models.Certificate
	if err := s.coll.FindOne(ctx, bson.M{"questId": questID}).Decode(&cert); err != nil {
		return nil, wrap(err, "failed to get certificate for quest %s", questID)
	}
	return &cert, nil
}

// ListByAdventurer returns an adventurer's certificates, newest first.
func (s *CertificateStore) ListByAdventurer(ctx context.Context, adventurerID string) ([]models.Certificate, error) {
	certs := []models.Certificate{}
	opts := page(bson.D{{Key: "issuedAt", Value: -1}}, 0, 0)
	if err := findAll(ctx, s.coll, bson.M{"adventurerId": adventurerID}, opts, &certs); err != nil {
		return nil, wrap(err, "failed to list certificates for adventurer %s", adventurerID)
	}
	return certs, nil
}
