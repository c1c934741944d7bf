package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hpe-cray/bos/internal/store"
)

// Patch mirrors mongostore's read-mutate-conditional-write loop using
// plain UPDATE ... WHERE key = ? AND rev = ? with a rows-affected check
// in place of Mongo's filtered FindOneAndUpdate.
func (s *Store) Patch(ctx context.Context, kind store.Kind, key string, mutate store.Mutator) error {
	for attempt := 0; attempt < store.MaxPatchAttempts; attempt++ {
		var before []byte
		var oldRev int64
		exists := true

		getQ := s.dialect.Rebind(fmt.Sprintf("SELECT doc, rev FROM %s WHERE key = $1", kind))
		var raw string
		err := s.db.QueryRowContext(ctx, getQ, key).Scan(&raw, &oldRev)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			exists = false
		case err != nil:
			return wrapErr(err)
		default:
			before = []byte(raw)
		}

		after, err := mutate(before, exists)
		if err != nil {
			return err
		}

		if after == nil {
			if !exists {
				return nil
			}
			delQ := s.dialect.Rebind(fmt.Sprintf("DELETE FROM %s WHERE key = $1 AND rev = $2", kind))
			res, err := s.db.ExecContext(ctx, delQ, key, oldRev)
			if err != nil {
				return wrapErr(err)
			}
			if n, _ := res.RowsAffected(); n == 1 {
				return nil
			}
			time.Sleep(store.PatchBackoff(attempt))
			continue
		}

		if !exists {
			insQ := s.dialect.Rebind(fmt.Sprintf(
				"INSERT INTO %s (key, tenant, rev, doc) VALUES ($1, $2, 1, $3)", kind))
			_, err := s.db.ExecContext(ctx, insQ, key, tenantOf(key), string(after))
			if err != nil {
				// Lost the race to create the same key; retry as an update.
				time.Sleep(store.PatchBackoff(attempt))
				continue
			}
			return nil
		}

		updQ := s.dialect.Rebind(fmt.Sprintf(
			"UPDATE %s SET doc = $1, rev = $2 WHERE key = $3 AND rev = $4", kind))
		res, err := s.db.ExecContext(ctx, updQ, string(after), oldRev+1, key, oldRev)
		if err != nil {
			return wrapErr(err)
		}
		if n, _ := res.RowsAffected(); n == 1 {
			return nil
		}
		time.Sleep(store.PatchBackoff(attempt))
	}

	return store.ErrConflict
}
