package docstore

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/tavern-guild/tavern/internal/models"
	"github.com/tavern-guild/tavern/internal/store"
)

func TestTranslate(t *testing.T) {
	assert.ErrorIs(t, translate(mongo.ErrNoDocuments), store.ErrNotFound)

	dup := mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: 11000, Message: "E11000 duplicate key"}}}
	assert.ErrorIs(t, translate(dup), store.ErrDuplicate)

	other := errors.New("socket closed")
	assert.Equal(t, other, translate(other))
}

func TestWrapKeepsSentinel(t *testing.T) {
	err := wrap(mongo.ErrNoDocuments, "failed to get quest %s", "q1")

	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Equal(t, fmt.Sprintf("failed to get quest q1: %v", store.ErrNotFound), err.Error())
}

func TestOrganizationQuery(t *testing.T) {
	yes, no := true, false

	assert.Equal(t, bson.M{}, organizationQuery(store.OrganizationFilter{}))
	assert.Equal(t, bson.M{"verified": true, "isFlagged": false},
		organizationQuery(store.OrganizationFilter{Verified: &yes, Flagged: &no}))
}

func TestQuestQuery(t *testing.T) {
	assert.Equal(t, bson.M{"createdBy": "npc"}, questQuery("npc", ""))
	assert.Equal(t, bson.M{"createdBy": "npc", "status": models.QuestPosted}, questQuery("npc", models.QuestPosted))
}

func TestNotificationQuery(t *testing.T) {
	assert.Equal(t, bson.M{"userId": "u1"}, notificationQuery("u1", false))
	assert.Equal(t, bson.M{"userId": "u1", "read": false}, notificationQuery("u1", true))
}

func TestPage(t *testing.T) {
	opts := page(bson.D{{Key: "createdAt", Value: -1}}, 20, 40)

	if assert.NotNil(t, opts.Limit) {
		assert.Equal(t, int64(20), *opts.Limit)
	}
	if assert.NotNil(t, opts.Skip) {
		assert.Equal(t, int64(40), *opts.Skip)
	}

	unbounded := page(bson.D{}, 0, 0)
	assert.Nil(t, unbounded.Limit)
	assert.Nil(t, unbounded.Skip)
}
