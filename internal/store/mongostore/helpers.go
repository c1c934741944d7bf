package mongostore

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/hpe-cray/bos/internal/store"
)

// wrapError translates MongoDB driver errors into store-level sentinels.
func wrapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return store.ErrNotFound
	}
	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) {
		return store.ErrUnavailable
	}
	var serverErr mongo.ServerError
	if errors.As(err, &serverErr) {
		return store.ErrUnavailable
	}
	return err
}

// findOneDoc looks up one envelope by id. A missing document is reported
// as (nil, nil), matching the (nil, false, nil) convention store.Store
// exposes one layer up.
func findOneDoc(ctx context.Context, col *mongo.Collection, id string) (*doc, error) {
	var d doc
	err := col.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&d)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, wrapError(err)
	}
	return &d, nil
}

// findManyDocs decodes every document matching filter.
func findManyDocs(ctx context.Context, col *mongo.Collection, filter bson.D) ([]*doc, error) {
	cursor, err := col.Find(ctx, filter)
	if err != nil {
		return nil, wrapError(err)
	}
	defer cursor.Close(ctx)

	var results []*doc
	for cursor.Next(ctx) {
		var d doc
		if err := cursor.Decode(&d); err != nil {
			return nil, err
		}
		results = append(results, &d)
	}
	return results, cursor.Err()
}
