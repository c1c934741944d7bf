package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/hpe-cray/bos/internal/store"
)

// Store is the SQL-backed store.Store implementation, parameterized by
// Dialect so the same code runs against Postgres and against SQLite
// (the single-node driver selected by driver: sqlite).
type Store struct {
	db      *sql.DB
	dialect Dialect
}

// New wraps an already-open *sql.DB with the given dialect. AutoMigrate
// is invoked so a SQLite store self-creates its schema; Postgres's
// AutoMigrate is a no-op by design (see driver/postgres).
func New(db *sql.DB, dialect Dialect) (*Store, error) {
	if err := dialect.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("sqlstore: automigrate: %w", err)
	}
	return &Store{db: db, dialect: dialect}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func tenantOf(key string) string {
	if i := strings.IndexByte(key, '/'); i >= 0 {
		return key[:i]
	}
	return ""
}

func (s *Store) Get(ctx context.Context, kind store.Kind, key string) ([]byte, bool, error) {
	q := s.dialect.Rebind(fmt.Sprintf("SELECT doc FROM %s WHERE key = $1", kind))
	var raw string
	err := s.db.QueryRowContext(ctx, q, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, wrapErr(err)
	}
	return []byte(raw), true, nil
}

func (s *Store) GetMulti(ctx context.Context, kind store.Kind, keys []string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	placeholders := PlaceholderList(s.dialect, 1, len(keys))
	args := make([]interface{}, len(keys))
	for i, k := range keys {
		args[i] = k
	}
	q := s.dialect.Rebind(fmt.Sprintf("SELECT key, doc FROM %s WHERE key IN (%s)", kind, placeholders))
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, wrapErr(err)
	}
	defer rows.Close()
	for rows.Next() {
		var key, raw string
		if err := rows.Scan(&key, &raw); err != nil {
			return nil, err
		}
		out[key] = []byte(raw)
	}
	return out, rows.Err()
}

func (s *Store) Put(ctx context.Context, kind store.Kind, key string, raw []byte) error {
	upsert := s.dialect.UpsertConflict("key", []string{"doc = EXCLUDED.doc", "rev = " + string(kind) + ".rev + 1"})
	q := s.dialect.Rebind(fmt.Sprintf(
		"INSERT INTO %s (key, tenant, rev, doc) VALUES ($1, $2, 1, $3) %s",
		kind, upsert))
	_, err := s.db.ExecContext(ctx, q, key, tenantOf(key), string(raw))
	return wrapErr(err)
}

func (s *Store) Delete(ctx context.Context, kind store.Kind, key string) error {
	q := s.dialect.Rebind(fmt.Sprintf("DELETE FROM %s WHERE key = $1", kind))
	_, err := s.db.ExecContext(ctx, q, key)
	return wrapErr(err)
}

func (s *Store) ListKeys(ctx context.Context, kind store.Kind, prefix string) ([]string, error) {
	q := s.dialect.Rebind(fmt.Sprintf("SELECT key FROM %s WHERE key LIKE $1 ORDER BY key", kind))
	rows, err := s.db.QueryContext(ctx, q, prefix+"%")
	if err != nil {
		return nil, wrapErr(err)
	}
	defer rows.Close()
	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (s *Store) Scan(ctx context.Context, kind store.Kind, pred store.Predicate, pageSize int, cursor string) (store.Page, error) {
	offset := 0
	if cursor != "" {
		if _, err := fmt.Sscanf(cursor, "%d", &offset); err != nil {
			return store.Page{}, fmt.Errorf("sqlstore: bad cursor: %w", err)
		}
	}

	q := s.dialect.Rebind(fmt.Sprintf("SELECT doc FROM %s ORDER BY key LIMIT $1 OFFSET $2", kind))
	// Read up to four pages' worth of rows plus one; pred is applied in
	// Go, so the page can fill (or the rows run out) before the limit.
	limit := pageSize*4 + 1
	rows, err := s.db.QueryContext(ctx, q, limit, offset)
	if err != nil {
		return store.Page{}, wrapErr(err)
	}
	defer rows.Close()

	var page store.Page
	seen := 0
	for rows.Next() {
		if len(page.Records) >= pageSize {
			page.Cursor = fmt.Sprintf("%d", offset+seen)
			break
		}
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return store.Page{}, err
		}
		seen++
		if pred == nil {
			page.Records = append(page.Records, []byte(raw))
			continue
		}
		ok, err := pred([]byte(raw))
		if err != nil {
			return store.Page{}, err
		}
		if ok {
			page.Records = append(page.Records, []byte(raw))
		}
	}
	if page.Cursor == "" && seen == limit {
		// every fetched row was consumed; more may follow the limit.
		page.Cursor = fmt.Sprintf("%d", offset+seen)
	}
	return page, rows.Err()
}

func wrapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
}
