// Package postgres provides the production SQL dialect for sqlstore.
package postgres

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/hpe-cray/bos/internal/store/sqlstore"
)

// Dialect is the PostgreSQL implementation of sqlstore.Dialect.
type Dialect struct{}

var _ sqlstore.Dialect = (*Dialect)(nil)

func (d *Dialect) DriverType() sqlstore.DriverType { return sqlstore.DriverPostgres }

func (d *Dialect) Rebind(query string) string { return sqlstore.RebindToPositional(query) }

func (d *Dialect) CurrentTimestamp() string { return "NOW()" }

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

// AutoMigrate is a no-op: production Postgres schemas are managed by an
// external migration tool, not created from Go code.
func (d *Dialect) AutoMigrate(db *sql.DB) error { return nil }

// Open creates and verifies a PostgreSQL connection pool.
func Open(databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	return db, nil
}

// NewDialect constructs the Postgres dialect.
func NewDialect() *Dialect { return &Dialect{} }
