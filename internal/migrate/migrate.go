// Package migrate runs at process startup, before any operator or
// REST handler touches the store: it rejects a store written by an
// incompatible schema version and sanitizes records left behind by
// the immediately prior one.
package migrate

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hpe-cray/bos/internal/model"
	"github.com/hpe-cray/bos/internal/store"
	"github.com/hpe-cray/bos/pkg/logging"
)

// CurrentSchemaVersion is the schema this binary understands. Only
// the immediately prior version is sanitized in place; anything older
// is rejected outright rather than chained through multiple
// migrations, since BOS has shipped exactly one schema revision so far.
const CurrentSchemaVersion = 1

// schemaVersionKey is a sibling record to the global options hash,
// not the options record itself, so a schema check never needs to
// decode (and risk failing on) the options record's own shape.
const schemaVersionKey = "/schema_version"

type schemaVersionRecord struct {
	Version int `json:"version"`
}

// ErrIncompatibleSchema is returned when the store's recorded schema
// version is older than CurrentSchemaVersion-1, or newer than what
// this binary understands.
var ErrIncompatibleSchema = fmt.Errorf("migrate: store schema version is incompatible with this build")

// Run checks the store's schema version, sanitizes records left by the
// immediately prior version, and stamps the store with
// CurrentSchemaVersion. Safe to call from every bos-api and
// bos-operators replica concurrently: Sanitize's per-record rewrites
// are idempotent, and the version stamp is a single Put of the same
// value every replica agrees on.
func Run(ctx context.Context, s store.Store, log *logging.Logger) error {
	version, err := readSchemaVersion(ctx, s)
	if err != nil {
		return fmt.Errorf("migrate: read schema version: %w", err)
	}

	switch {
	case version == CurrentSchemaVersion:
		// already current, nothing to sanitize
	case version == CurrentSchemaVersion-1:
		log.Info("sanitizing store records from prior schema version", "from", version, "to", CurrentSchemaVersion)
		if err := sanitizeComponents(ctx, s, log); err != nil {
			return fmt.Errorf("migrate: sanitize components: %w", err)
		}
		if err := sanitizeSessions(ctx, s, log); err != nil {
			return fmt.Errorf("migrate: sanitize sessions: %w", err)
		}
	case version == 0:
		// not reached while CurrentSchemaVersion is 1: a fresh store with
		// no version record reads as 0 and takes the prior-version case
		// above, whose sanitize pass is a no-op on an empty store.
	default:
		return fmt.Errorf("%w: found %d, want %d or %d", ErrIncompatibleSchema, version, CurrentSchemaVersion, CurrentSchemaVersion-1)
	}

	return writeSchemaVersion(ctx, s, CurrentSchemaVersion)
}

func readSchemaVersion(ctx context.Context, s store.Store) (int, error) {
	raw, found, err := s.Get(ctx, store.KindOptions, schemaVersionKey)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, nil
	}
	var rec schemaVersionRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return 0, err
	}
	return rec.Version, nil
}

func writeSchemaVersion(ctx context.Context, s store.Store, version int) error {
	doc, err := json.Marshal(schemaVersionRecord{Version: version})
	if err != nil {
		return err
	}
	return s.Put(ctx, store.KindOptions, schemaVersionKey, doc)
}

// knownPhases and knownStatuses bound what counts as a valid component
// record; anything outside them cannot have been produced by this
// binary's own writers and is deleted rather than guessed at.
var knownPhases = map[model.Phase]bool{
	model.PhaseNone: true, model.PhasePoweringOn: true,
	model.PhasePoweringOff: true, model.PhaseConfiguring: true,
}

var knownStatuses = map[model.StatusValue]bool{
	model.StatusStable: true, model.StatusOn: true, model.StatusOff: true,
	model.StatusPowerOnPending: true, model.StatusPowerOnCalled: true,
	model.StatusPowerOffPending: true, model.StatusPowerOffGracefulCalled: true,
	model.StatusPowerOffForcefulCalled: true, model.StatusConfiguring: true,
	model.StatusFailed: true,
}

// sanitizeComponents normalizes a missing tenant to the empty-tenant
// bucket and deletes any record whose phase or status value isn't one
// this binary recognizes.
func sanitizeComponents(ctx context.Context, s store.Store, log *logging.Logger) error {
	cursor := ""
	for {
		page, err := s.Scan(ctx, store.KindComponents, func([]byte) (bool, error) { return true, nil }, 500, cursor)
		if err != nil {
			return err
		}
		for _, raw := range page.Records {
			var c model.Component
			if err := json.Unmarshal(raw, &c); err != nil {
				log.Warn("skipping unparseable component record", "error", err)
				continue
			}
			if !knownPhases[c.Status.Phase] || !knownStatuses[c.Status.Status] {
				log.Warn("deleting component with invalid phase/status",
					"id", c.ID, "tenant", c.Tenant, "phase", c.Status.Phase, "status", c.Status.Status)
				if err := s.Delete(ctx, store.KindComponents, store.Key(c.Tenant, c.ID)); err != nil {
					return err
				}
				continue
			}
			// model.Component.Tenant already defaults to "" when absent
			// from the decoded JSON; re-Put is a no-op rewrite that
			// exists only to exercise the same Put path a real
			// field-rename migration would need.
			if err := s.Put(ctx, store.KindComponents, store.Key(c.Tenant, c.ID), raw); err != nil {
				return err
			}
		}
		if page.Cursor == "" {
			return nil
		}
		cursor = page.Cursor
	}
}

var knownSessionPhases = map[model.SessionPhase]bool{
	model.SessionPending: true, model.SessionRunning: true, model.SessionComplete: true,
}

// sanitizeSessions deletes session records with an unrecognized phase,
// the session-level analog of sanitizeComponents.
func sanitizeSessions(ctx context.Context, s store.Store, log *logging.Logger) error {
	cursor := ""
	for {
		page, err := s.Scan(ctx, store.KindSessions, func([]byte) (bool, error) { return true, nil }, 500, cursor)
		if err != nil {
			return err
		}
		for _, raw := range page.Records {
			var sess model.Session
			if err := json.Unmarshal(raw, &sess); err != nil {
				log.Warn("skipping unparseable session record", "error", err)
				continue
			}
			if !knownSessionPhases[sess.Status.Status] {
				log.Warn("deleting session with invalid phase", "name", sess.Name, "tenant", sess.Tenant, "phase", sess.Status.Status)
				if err := s.Delete(ctx, store.KindSessions, store.Key(sess.Tenant, sess.Name)); err != nil {
					return err
				}
			}
		}
		if page.Cursor == "" {
			return nil
		}
		cursor = page.Cursor
	}
}
