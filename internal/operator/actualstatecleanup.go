package operator

import (
	"context"
	"time"

	"github.com/hpe-cray/bos/internal/model"
	"github.com/hpe-cray/bos/internal/options"
	"github.com/hpe-cray/bos/internal/store"
)

// NewActualStateCleanup builds the actual_state_cleanup operator: it
// forgets actual_state for components nobody has heard from in a
// while, forcing the status operator to re-derive phase and status
// from scratch on its next pass rather than trusting a stale
// observation.
func NewActualStateCleanup() Operator {
	return Operator{
		Name: "actual_state_cleanup",
		Filter: func(c model.Component, opts options.Snapshot) bool {
			if c.ActualState == nil || c.ActualState.LastUpdated.IsZero() {
				return false
			}
			return time.Since(c.ActualState.LastUpdated) > opts.ActualStateStaleTTL
		},
		Act: func(ctx context.Context, env *Env, batch []model.Component, opts options.Snapshot) []Result {
			results := make([]Result, len(batch))
			for i, c := range batch {
				results[i] = Result{Key: store.Key(c.Tenant, c.ID)}
			}
			return results
		},
		Patch: func(before model.Component, res Result) (model.Component, error) {
			before.ActualState = nil
			before.Status.Status = model.StatusStable
			before.Status.Phase = model.PhaseNone
			return before, nil
		},
		Frequency: func(s options.Snapshot) time.Duration { return s.ActualStateCleanupFrequency },
	}
}
