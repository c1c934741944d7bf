// Package store defines the keyed-document contract every BOS backend
// implements: hash-per-record CRUD with atomic single-record updates,
// namespaced per kind, with tenant-prefixed keys. It generalizes a
// small, fixed set of named collections into an arbitrary Kind plus a
// generic predicate-based Scan.
package store

import (
	"context"
	"errors"
	"time"
)

// Kind namespaces a record within the store: components, sessions,
// session_templates, or options. Each backend maps a Kind to its own
// collection/table.
type Kind string

const (
	KindComponents       Kind = "components"
	KindSessions         Kind = "sessions"
	KindSessionTemplates Kind = "session_templates"
	KindOptions          Kind = "options"
)

var (
	// ErrUnavailable is returned when the backend cannot currently be
	// reached. Runner.Run treats this as a skip-and-sleep condition,
	// never a crash.
	ErrUnavailable = errors.New("store: unavailable")

	// ErrNotFound is what a Mutator returns when it is called with
	// exists=false and the caller requires the record; Patch passes it
	// through unchanged. Get reports a miss as (nil, false, nil) instead.
	ErrNotFound = errors.New("store: not found")

	// ErrConflict is returned by Patch when its bounded number of
	// optimistic-locking retries is exhausted by concurrent writers.
	ErrConflict = errors.New("store: conflict, too many concurrent writers")
)

// Mutator is a pure function from the current value of a record (nil if
// absent) to its replacement. Patch retries the mutator against a fresh
// read whenever the conditional write loses a race. Returning (nil, nil)
// deletes the record; returning a non-nil error aborts the Patch without
// writing.
type Mutator func(before []byte, exists bool) (after []byte, err error)

// Predicate is evaluated in Go over a decoded record during Scan; not
// every operator filter is expressible as a single backend query.
type Predicate func(raw []byte) (bool, error)

// Page is one page of a Scan result.
type Page struct {
	Records [][]byte
	Cursor  string // opaque; pass back into Scan to continue, "" when done
}

// Store is the contract every BOS persistence backend implements.
type Store interface {
	// Get fetches one record. A missing key returns (nil, false, nil).
	Get(ctx context.Context, kind Kind, key string) (doc []byte, found bool, err error)

	// GetMulti fetches several records in one round trip; missing keys
	// are simply absent from the result map.
	GetMulti(ctx context.Context, kind Kind, keys []string) (map[string][]byte, error)

	// Put replaces a record wholesale, creating it if absent.
	Put(ctx context.Context, kind Kind, key string, doc []byte) error

	// Patch atomically reads, mutates, and conditionally writes a single
	// record, retrying on lost optimistic-locking races up to a bounded
	// attempt count with jittered backoff before returning ErrConflict.
	Patch(ctx context.Context, kind Kind, key string, mutate Mutator) error

	// Delete removes a record. Deleting an absent key is not an error.
	Delete(ctx context.Context, kind Kind, key string) error

	// ListKeys returns keys under a kind matching a prefix (typically a
	// tenant prefix), as a finite slice.
	ListKeys(ctx context.Context, kind Kind, prefix string) ([]string, error)

	// Scan pages through records of a kind matching pred. pageSize bounds
	// how many matching records one page returns; cursor is "" on
	// the first call and is threaded from the previous Page.Cursor.
	Scan(ctx context.Context, kind Kind, pred Predicate, pageSize int, cursor string) (Page, error)

	// Close releases backend resources.
	Close() error
}

// TokenStore is the narrow contract served only by internal/store/etcdstore
// for the bss_tokens/<tenant>/<id> kind: a TTL-bearing key to opaque-token
// mapping. Tokens are never scanned or patched, only looked up and
// replaced, so they do not need the full Store contract.
type TokenStore interface {
	Put(ctx context.Context, tenant, id, token string, ttl time.Duration) error
	Get(ctx context.Context, tenant, id string) (token string, found bool, err error)
	Delete(ctx context.Context, tenant, id string) error
	Close() error
}

// Key builds the tenant-prefixed key for a record. The empty tenant is
// a valid, literal prefix — it is not special-cased away.
func Key(tenant, id string) string {
	return tenant + "/" + id
}
