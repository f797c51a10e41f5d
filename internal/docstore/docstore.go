// Package docstore implements the persistence contracts on MongoDB.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/tavern-guild/tavern/internal/config"
	"github.com/tavern-guild/tavern/internal/store"
	"github.com/tavern-guild/tavern/pkg/logger"
)

// Collection names.
const (
	collUsers         = "users"
	collAdventurers   = "adventurer_profiles"
	collSkills        = "adventurer_skills"
	collOrganizations = "npc_organizations"
	collQuests        = "quests"
	collCertificates  = "certificates"
	collNotifications = "notifications"
)

// Store holds the MongoDB client and database handle.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
	log    *logger.Logger
}

// New wraps an open database handle. Close disconnects its client.
func New(db *mongo.Database, log *logger.Logger) *Store {
	return &Store{client: db.Client(), db: db, log: log}
}

// Connect opens a MongoDB connection, pings it and ensures indexes exist.
func Connect(ctx context.Context, cfg *config.MongoConfig, log *logger.Logger) (*Store, error) {
	timeout := time.Duration(cfg.ConnectTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	s := New(client.Database(cfg.Database), log)
	if err := s.EnsureIndexes(connectCtx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}

	log.Info().
		Str("database", cfg.Database).
		Msg("Connected to MongoDB")

	return s, nil
}

// EnsureIndexes creates the unique and lookup indexes every collection relies on.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	unique := func(keys bson.D) mongo.IndexModel {
		return mongo.IndexModel{Keys: keys, Options: options.Index().SetUnique(true)}
	}
	plain := func(keys bson.D) mongo.IndexModel {
		return mongo.IndexModel{Keys: keys}
	}

	indexes := map[string][]mongo.IndexModel{
		collUsers: {
			unique(bson.D{{Key: "email", Value: 1}}),
			unique(bson.D{{Key: "username", Value: 1}}),
		},
		collAdventurers: {
			unique(bson.D{{Key: "userId", Value: 1}}),
			plain(bson.D{{Key: "xp", Value: -1}, {Key: "updatedAt", Value: 1}}),
		},
		collSkills: {
			unique(bson.D{{Key: "adventurerId", Value: 1}, {Key: "name", Value: 1}}),
		},
		collOrganizations: {
			unique(bson.D{{Key: "userId", Value: 1}}),
			unique(bson.D{{Key: "slug", Value: 1}}),
		},
		collQuests: {
			plain(bson.D{{Key: "createdBy", Value: 1}, {Key: "createdAt", Value: -1}}),
		},
		collCertificates: {
			unique(bson.D{{Key: "questId", Value: 1}}),
			unique(bson.D{{Key: "scrollId", Value: 1}}),
			plain(bson.D{{Key: "adventurerId", Value: 1}}),
		},
		collNotifications: {
			plain(bson.D{{Key: "userId", Value: 1}, {Key: "read", Value: 1}}),
			plain(bson.D{{Key: "createdAt", Value: 1}}),
		},
	}

	for coll, models := range indexes {
		if _, err := s.db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", coll, err)
		}
	}
	return nil
}

// Stores returns the MongoDB-backed implementations of every store.
func (s *Store) Stores() store.Stores {
	return store.Stores{
		Users:         &UserStore{coll: s.db.Collection(collUsers)},
		Adventurers:   &AdventurerStore{profiles: s.db.Collection(collAdventurers), skills: s.db.Collection(collSkills)},
		Organizations: &OrganizationStore{coll: s.db.Collection(collOrganizations)},
		Quests:        &QuestStore{coll: s.db.Collection(collQuests)},
		Certificates:  &CertificateStore{coll: s.db.Collection(collCertificates)},
		Notifications: &NotificationStore{coll: s.db.Collection(collNotifications)},
		Tx:            s,
	}
}

// WithinTx runs fn directly. Writes are not rolled back on failure; callers
// order their writes so a unique index insert comes first and guards the rest.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// Health pings the primary.
func (s *Store) Health(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// translate maps driver errors to store sentinels.
func translate(err error) error {
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return store.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return store.ErrDuplicate
	default:
		return err
	}
}

func wrap(err error, format string, args ...interface{}) error {
	return fmt.Errorf(format+": %w", append(args, translate(err))...)
}

// page builds find options for a sorted, optionally paginated query.
func page(sort bson.D, limit, offset int) *options.FindOptions {
	opts := options.Find().SetSort(sort)
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	if offset > 0 {
		opts.SetSkip(int64(offset))
	}
	return opts
}

// findAll runs a query and decodes every document into out.
func findAll(ctx context.Context, coll *mongo.Collection, filter interface{}, opts *options.FindOptions, out interface{}) error {
	cursor, err := coll.Find(ctx, filter, opts)
	if err != nil {
		return err
	}
	return cursor.All(ctx, out)
}

// replaceByID replaces a document, returning ErrNotFound when nothing matched.
func replaceByID(ctx context.Context, coll *mongo.Collection, id string, doc interface{}) error {
	res, err := coll.ReplaceOne(ctx, bson.M{"_id": id}, doc)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

// setByID applies a $set to one document, returning ErrNotFound when nothing matched.
func setByID(ctx context.Context, coll *mongo.Collection, id string, fields bson.M) error {
	res, err := coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": fields})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

// deleteByID deletes a document, returning ErrNotFound when nothing matched.
func deleteByID(ctx context.Context, coll *mongo.Collection, id string) error {
	res, err := coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}
