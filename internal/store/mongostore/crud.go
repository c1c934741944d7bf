package mongostore

import (
	"context"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongoopts "go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/hpe-cray/bos/internal/store"
)

func (s *Store) Get(ctx context.Context, kind store.Kind, key string) ([]byte, bool, error) {
	d, err := findOneDoc(ctx, s.col(kind), key)
	if err != nil {
		return nil, false, err
	}
	if d == nil {
		return nil, false, nil
	}
	return []byte(d.Doc), true, nil
}

func (s *Store) GetMulti(ctx context.Context, kind store.Kind, keys []string) (map[string][]byte, error) {
	if len(keys) == 0 {
		return map[string][]byte{}, nil
	}
	ids := make(bson.A, len(keys))
	for i, k := range keys {
		ids[i] = k
	}
	docs, err := findManyDocs(ctx, s.col(kind), bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: ids}}}})
	if err != nil {
		return nil, err
	}
	out := make(map[string][]byte, len(docs))
	for _, d := range docs {
		out[d.ID] = []byte(d.Doc)
	}
	return out, nil
}

func (s *Store) Put(ctx context.Context, kind store.Kind, key string, raw []byte) error {
	_, err := s.col(kind).ReplaceOne(ctx,
		bson.D{{Key: "_id", Value: key}},
		doc{ID: key, Rev: 1, Doc: string(raw)},
		mongoopts.Replace().SetUpsert(true),
	)
	return wrapError(err)
}

func (s *Store) Delete(ctx context.Context, kind store.Kind, key string) error {
	_, err := s.col(kind).DeleteOne(ctx, bson.D{{Key: "_id", Value: key}})
	return wrapError(err)
}

func (s *Store) ListKeys(ctx context.Context, kind store.Kind, prefix string) ([]string, error) {
	filter := bson.D{}
	if prefix != "" {
		filter = bson.D{{Key: "_id", Value: bson.D{{Key: "$regex", Value: "^" + regexEscape(prefix)}}}}
	}
	docs, err := findManyDocs(ctx, s.col(kind), filter)
	if err != nil {
		return nil, err
	}
	keys := make([]string, len(docs))
	for i, d := range docs {
		keys[i] = d.ID
	}
	return keys, nil
}

// Scan decodes documents in the kind's collection page by page and
// applies pred in Go — the store's predicate language ranges over
// decoded record fields, not every combination of which is expressible
// as a single Mongo query.
func (s *Store) Scan(ctx context.Context, kind store.Kind, pred store.Predicate, pageSize int, cursor string) (store.Page, error) {
	skip, err := parseCursor(cursor)
	if err != nil {
		return store.Page{}, fmt.Errorf("mongostore: bad cursor: %w", err)
	}
	findOpts := mongoopts.Find().SetSort(bson.D{{Key: "_id", Value: 1}}).SetSkip(int64(skip))

	mcursor, err := s.col(kind).Find(ctx, bson.D{}, findOpts)
	if err != nil {
		return store.Page{}, wrapError(err)
	}
	defer mcursor.Close(ctx)

	var page store.Page
	seen := 0
	for len(page.Records) < pageSize && mcursor.Next(ctx) {
		var d doc
		if err := mcursor.Decode(&d); err != nil {
			return store.Page{}, err
		}
		seen++
		if pred == nil {
			page.Records = append(page.Records, []byte(d.Doc))
			continue
		}
		ok, err := pred([]byte(d.Doc))
		if err != nil {
			return store.Page{}, err
		}
		if ok {
			page.Records = append(page.Records, []byte(d.Doc))
		}
	}
	if mcursor.Next(ctx) {
		page.Cursor = fmt.Sprintf("%d", skip+seen)
	}
	return page, mcursor.Err()
}

func parseCursor(cursor string) (int, error) {
	if cursor == "" {
		return 0, nil
	}
	var skip int
	_, err := fmt.Sscanf(cursor, "%d", &skip)
	return skip, err
}

func regexEscape(s string) string {
	const special = `\.+*?()|[]{}^$`
	var b strings.Builder
	for _, r := range s {
		if strings.ContainsRune(special, r) {
			b.WriteRune('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
