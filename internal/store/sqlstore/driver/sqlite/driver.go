// Package sqlite provides the SQLite dialect for sqlstore, the
// single-node store driver selected by driver: sqlite.
package sqlite

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/hpe-cray/bos/internal/store/sqlstore"
)

// Dialect is the SQLite implementation of sqlstore.Dialect.
type Dialect struct{}

var _ sqlstore.Dialect = (*Dialect)(nil)

func (d *Dialect) DriverType() sqlstore.DriverType { return sqlstore.DriverSQLite }

func (d *Dialect) Rebind(query string) string { return sqlstore.RebindToQuestion(query) }

func (d *Dialect) CurrentTimestamp() string { return "datetime('now')" }

func (d *Dialect) UpsertConflict(conflictColumn string, updateExprs []string) string {
	result := fmt.Sprintf("ON CONFLICT (%s) DO UPDATE SET ", conflictColumn)
	for i, expr := range updateExprs {
		if i > 0 {
			result += ", "
		}
		result += expr
	}
	return result
}

func (d *Dialect) AutoMigrate(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}

// Open creates a SQLite connection tuned for concurrent readers/single
// writer use, matching a long-running BOS operator process.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return nil, fmt.Errorf("failed to set pragma %s: %w", p, err)
		}
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping sqlite: %w", err)
	}
	return db, nil
}

// NewDialect constructs the SQLite dialect.
func NewDialect() *Dialect { return &Dialect{} }

// schema creates one table per store.Kind. Column layout is shared by
// all kinds: the tenant-prefixed key, a tenant column for prefix scans,
// the revision counter, and the JSON document blob.
const schema = `
CREATE TABLE IF NOT EXISTS components (
	key TEXT PRIMARY KEY,
	tenant TEXT NOT NULL,
	rev INTEGER NOT NULL DEFAULT 1,
	doc TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_components_tenant ON components(tenant);

CREATE TABLE IF NOT EXISTS sessions (
	key TEXT PRIMARY KEY,
	tenant TEXT NOT NULL,
	rev INTEGER NOT NULL DEFAULT 1,
	doc TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sessions_tenant ON sessions(tenant);

CREATE TABLE IF NOT EXISTS session_templates (
	key TEXT PRIMARY KEY,
	tenant TEXT NOT NULL,
	rev INTEGER NOT NULL DEFAULT 1,
	doc TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_session_templates_tenant ON session_templates(tenant);

CREATE TABLE IF NOT EXISTS options (
	key TEXT PRIMARY KEY,
	tenant TEXT NOT NULL,
	rev INTEGER NOT NULL DEFAULT 1,
	doc TEXT NOT NULL
);
`
