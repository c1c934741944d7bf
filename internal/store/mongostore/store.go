// Package mongostore implements store.Store on top of MongoDB, BOS's
// primary backend. Mongo's native document model is the natural fit for a
// "keyed hash-per-object" store: each kind becomes a collection, _id is the
// tenant-prefixed key, and the caller's JSON document is held verbatim in
// a "doc" field alongside a "rev" counter used for optimistic locking.
//
// Uses the mongo-go-driver v2 client, with findOneDoc/findManyDocs helpers
// and a wrapError translation of driver errors into store-level
// sentinels.
package mongostore

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/hpe-cray/bos/internal/store"
)

// doc is the envelope every kind's collection stores: the tenant-prefixed
// key as _id, an opaque JSON payload, and the optimistic-locking counter.
type doc struct {
	ID  string `bson:"_id"`
	Rev int64  `bson:"rev"`
	Doc string `bson:"doc"`
}

// Store is the MongoDB-backed store.Store implementation.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
	log    *slog.Logger
}

// NewStore connects to MongoDB and ensures the indexes each kind's
// collection needs for ListKeys/Scan.
func NewStore(uri, dbName string, log *slog.Logger) (*Store, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongostore: connect failed: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("mongostore: ping failed: %w", err)
	}

	if log == nil {
		log = slog.Default()
	}
	s := &Store{client: client, db: client.Database(dbName), log: log}
	if err := s.ensureIndexes(ctx); err != nil {
		log.Warn("mongostore: ensure indexes failed", "error", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *Store) col(kind store.Kind) *mongo.Collection {
	return s.db.Collection(string(kind))
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	for _, kind := range []store.Kind{
		store.KindComponents, store.KindSessions, store.KindSessionTemplates, store.KindOptions,
	} {
		model := mongo.IndexModel{Keys: bson.D{{Key: "_id", Value: 1}}}
		if _, err := s.col(kind).Indexes().CreateOne(ctx, model); err != nil {
			return fmt.Errorf("create index on %s: %w", kind, err)
		}
	}
	return nil
}
