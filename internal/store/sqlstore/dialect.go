// Package sqlstore implements store.Store on top of a SQL database behind
// a Dialect abstraction, following a Dialect-plus-repository pattern.
// Every kind becomes a table with one JSONB/TEXT blob column ("doc")
// holding the marshaled record, a "rev" integer column for optimistic
// locking, and
// narrow indexed columns ("tenant", "key") for ListKeys/Scan.
package sqlstore

import (
	"database/sql"
	"fmt"
	"regexp"
	"strings"
)

// DriverType identifies which SQL dialect is in use.
type DriverType string

const (
	DriverPostgres DriverType = "postgres"
	DriverSQLite   DriverType = "sqlite"
)

// Dialect hides SQL differences between Postgres and SQLite from the
// store implementation: placeholder style, upsert syntax, timestamp
// expressions, and schema creation. MySQL is not a dialect here.
type Dialect interface {
	DriverType() DriverType
	Rebind(query string) string
	CurrentTimestamp() string
	UpsertConflict(conflictColumn string, updateExprs []string) string
	AutoMigrate(db *sql.DB) error
}

var pgPlaceholderRe = regexp.MustCompile(`\$(\d+)`)

// RebindToPositional keeps $N placeholders as-is (Postgres).
func RebindToPositional(query string) string { return query }

// RebindToQuestion converts $N placeholders to ? (SQLite).
func RebindToQuestion(query string) string {
	return pgPlaceholderRe.ReplaceAllString(query, "?")
}

// PlaceholderList generates a comma-joined placeholder list starting at
// index `start`, rebinding it for the given dialect.
func PlaceholderList(d Dialect, start, count int) string {
	parts := make([]string, count)
	for i := 0; i < count; i++ {
		parts[i] = fmt.Sprintf("$%d", start+i)
	}
	return d.Rebind(strings.Join(parts, ", "))
}
