package operator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hpe-cray/bos/internal/aggregator"
	"github.com/hpe-cray/bos/internal/model"
	"github.com/hpe-cray/bos/internal/store"
)

// SessionCompletionRunner marks sessions `complete` once every owned
// component has settled or failed. It scans Sessions, not Components,
// so it does not fit the component-centric Operator shape.
type SessionCompletionRunner struct {
	env *Env
}

// NewSessionCompletionRunner constructs the session_completion operator.
func NewSessionCompletionRunner(env *Env) *SessionCompletionRunner {
	return &SessionCompletionRunner{env: env}
}

// Run blocks until ctx is canceled, polling on session_completion_frequency.
func (r *SessionCompletionRunner) Run(ctx context.Context) {
	log := r.env.Log.WithContext(ctx)
	log.Info("operator starting", "operator", "session_completion")

	r.tick(ctx)
	for {
		opts := r.env.Options.Get(ctx)
		select {
		case <-ctx.Done():
			log.Info("operator stopping", "operator", "session_completion")
			return
		case <-time.After(opts.SessionCompletionFrequency):
			r.tick(ctx)
		}
	}
}

func (r *SessionCompletionRunner) tick(ctx context.Context) {
	start := time.Now()
	touched, err := r.runOnce(ctx)
	r.env.Log.WithContext(ctx).IterationLog("session_completion", touched, time.Since(start), err)
}

func (r *SessionCompletionRunner) runOnce(ctx context.Context) (int, error) {
	pred := func(raw []byte) (bool, error) {
		var s model.Session
		if err := json.Unmarshal(raw, &s); err != nil {
			return false, nil
		}
		return s.Status.Status == model.SessionRunning, nil
	}

	touched := 0
	cursor := ""
	for {
		page, err := r.env.Store.Scan(ctx, store.KindSessions, pred, 100, cursor)
		if err != nil {
			return touched, fmt.Errorf("session_completion: scan sessions: %w", err)
		}

		for _, raw := range page.Records {
			var s model.Session
			if err := json.Unmarshal(raw, &s); err != nil {
				continue
			}
			summary, err := aggregator.Compute(ctx, r.env.Store, s.Tenant, s.Name, s.Operation)
			if err != nil || !summary.Terminal {
				continue
			}
			if r.complete(ctx, s.Tenant, s.Name) {
				touched++
			}
		}

		if page.Cursor == "" {
			break
		}
		cursor = page.Cursor
	}
	return touched, nil
}

func (r *SessionCompletionRunner) complete(ctx context.Context, tenant, name string) bool {
	key := store.Key(tenant, name)
	err := r.env.Store.Patch(ctx, store.KindSessions, key, func(before []byte, exists bool) ([]byte, error) {
		if !exists {
			return nil, nil
		}
		var s model.Session
		if err := json.Unmarshal(before, &s); err != nil {
			return nil, err
		}
		if s.Status.Status != model.SessionRunning {
			return before, nil
		}
		now := time.Now()
		s.Status.Status = model.SessionComplete
		s.Status.EndTime = &now
		return json.Marshal(s)
	})
	return err == nil
}
