package mongostore

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/hpe-cray/bos/internal/store"
)

// Patch implements the store's atomic read/modify/write primitive:
// read the current document and its revision, apply the caller's pure
// mutator, then attempt a conditional write gated on the revision being
// unchanged (a FindOneAndUpdate filtered on {_id, rev: oldRev}). On a
// lost race it re-reads and retries up to store.MaxPatchAttempts times
// with jittered backoff before returning store.ErrConflict.
func (s *Store) Patch(ctx context.Context, kind store.Kind, key string, mutate store.Mutator) error {
	col := s.col(kind)

	for attempt := 0; attempt < store.MaxPatchAttempts; attempt++ {
		current, err := findOneDoc(ctx, col, key)
		if err != nil {
			return err
		}

		var before []byte
		var oldRev int64
		exists := current != nil
		if exists {
			before = []byte(current.Doc)
			oldRev = current.Rev
		}

		after, err := mutate(before, exists)
		if err != nil {
			return err
		}

		if after == nil {
			if !exists {
				return nil
			}
			res, err := col.DeleteOne(ctx, bson.D{{Key: "_id", Value: key}, {Key: "rev", Value: oldRev}})
			if err != nil {
				return wrapError(err)
			}
			if res.DeletedCount == 1 {
				return nil
			}
			time.Sleep(store.PatchBackoff(attempt))
			continue
		}

		if !exists {
			_, err := col.InsertOne(ctx, doc{ID: key, Rev: 1, Doc: string(after)})
			if err != nil {
				if mongo.IsDuplicateKeyError(err) {
					time.Sleep(store.PatchBackoff(attempt))
					continue
				}
				return wrapError(err)
			}
			return nil
		}

		result := col.FindOneAndUpdate(ctx,
			bson.D{{Key: "_id", Value: key}, {Key: "rev", Value: oldRev}},
			bson.D{{Key: "$set", Value: bson.D{{Key: "doc", Value: string(after)}, {Key: "rev", Value: oldRev + 1}}}},
		)
		if err := result.Err(); err != nil {
			if err == mongo.ErrNoDocuments {
				time.Sleep(store.PatchBackoff(attempt))
				continue
			}
			return wrapError(err)
		}
		return nil
	}

	return store.ErrConflict
}
