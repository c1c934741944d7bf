package operator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hpe-cray/bos/internal/model"
	"github.com/hpe-cray/bos/internal/store"
)

// SessionCleanupRunner deletes sessions that completed more than
// session_retention ago, detaching ownership from any component still
// recorded against them.
type SessionCleanupRunner struct {
	env *Env
}

// NewSessionCleanupRunner constructs the session_cleanup operator.
func NewSessionCleanupRunner(env *Env) *SessionCleanupRunner {
	return &SessionCleanupRunner{env: env}
}

// Run blocks until ctx is canceled, polling on session_cleanup_frequency.
func (r *SessionCleanupRunner) Run(ctx context.Context) {
	log := r.env.Log.WithContext(ctx)
	log.Info("operator starting", "operator", "session_cleanup")

	r.tick(ctx)
	for {
		opts := r.env.Options.Get(ctx)
		select {
		case <-ctx.Done():
			log.Info("operator stopping", "operator", "session_cleanup")
			return
		case <-time.After(opts.SessionCleanupFrequency):
			r.tick(ctx)
		}
	}
}

func (r *SessionCleanupRunner) tick(ctx context.Context) {
	start := time.Now()
	touched, err := r.runOnce(ctx)
	r.env.Log.WithContext(ctx).IterationLog("session_cleanup", touched, time.Since(start), err)
}

func (r *SessionCleanupRunner) runOnce(ctx context.Context) (int, error) {
	opts := r.env.Options.Get(ctx)

	pred := func(raw []byte) (bool, error) {
		var s model.Session
		if err := json.Unmarshal(raw, &s); err != nil {
			return false, nil
		}
		if s.Status.Status != model.SessionComplete || s.Status.EndTime == nil {
			return false, nil
		}
		return time.Since(*s.Status.EndTime) > opts.SessionRetention, nil
	}

	touched := 0
	cursor := ""
	for {
		page, err := r.env.Store.Scan(ctx, store.KindSessions, pred, 100, cursor)
		if err != nil {
			return touched, fmt.Errorf("session_cleanup: scan sessions: %w", err)
		}

		for _, raw := range page.Records {
			var s model.Session
			if err := json.Unmarshal(raw, &s); err != nil {
				continue
			}
			if err := r.detachComponents(ctx, s.Tenant, s.Name); err != nil {
				continue
			}
			if err := r.env.Store.Delete(ctx, store.KindSessions, store.Key(s.Tenant, s.Name)); err != nil {
				continue
			}
			touched++
		}

		if page.Cursor == "" {
			break
		}
		cursor = page.Cursor
	}
	return touched, nil
}

func (r *SessionCleanupRunner) detachComponents(ctx context.Context, tenant, session string) error {
	pred := func(raw []byte) (bool, error) {
		var c model.Component
		if err := json.Unmarshal(raw, &c); err != nil {
			return false, nil
		}
		return c.Tenant == tenant && c.Session == session, nil
	}

	cursor := ""
	for {
		page, err := r.env.Store.Scan(ctx, store.KindComponents, pred, 200, cursor)
		if err != nil {
			return fmt.Errorf("session_cleanup: scan components for %s/%s: %w", tenant, session, err)
		}
		for _, raw := range page.Records {
			var c model.Component
			if err := json.Unmarshal(raw, &c); err != nil {
				continue
			}
			key := store.Key(c.Tenant, c.ID)
			_ = r.env.Store.Patch(ctx, store.KindComponents, key, func(before []byte, exists bool) ([]byte, error) {
				if !exists {
					return nil, nil
				}
				var cur model.Component
				if err := json.Unmarshal(before, &cur); err != nil {
					return nil, err
				}
				if cur.Session != session {
					return before, nil
				}
				cur.Session = ""
				return json.Marshal(cur)
			})
		}
		if page.Cursor == "" {
			return nil
		}
		cursor = page.Cursor
	}
}
