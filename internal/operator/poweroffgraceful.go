package operator

import (
	"context"
	"time"

	"github.com/hpe-cray/bos/internal/model"
	"github.com/hpe-cray/bos/internal/options"
	"github.com/hpe-cray/bos/internal/store"
)

type powerOffResult struct{ err error }

// NewPowerOffGraceful builds the power_off_graceful operator.
func NewPowerOffGraceful() Operator {
	return Operator{
		Name: "power_off_graceful",
		Filter: func(c model.Component, _ options.Snapshot) bool {
			return c.Enabled && c.Status.Status == model.StatusPowerOffPending
		},
		Act: func(ctx context.Context, env *Env, batch []model.Component, opts options.Snapshot) []Result {
			ids := make([]string, len(batch))
			keys := make([]string, len(batch))
			for i, c := range batch {
				ids[i] = c.ID
				keys[i] = store.Key(c.Tenant, c.ID)
			}
			pcsCtx, cancel := CallTimeout(ctx, opts.PCSReadTimeout)
			outcomes, err := env.PowerCtl.PowerOffGraceful(pcsCtx, ids)
			cancel()
			results := make([]Result, len(batch))
			for i, id := range ids {
				var perID error
				if err != nil {
					perID = err
				} else {
					perID = outcomes[id]
				}
				results[i] = Result{Key: keys[i], Observed: powerOffResult{err: perID}}
			}
			return results
		},
		Patch: func(before model.Component, res Result) (model.Component, error) {
			obs := res.Observed.(powerOffResult)
			before.LastAction.Action = model.ActionPowerOffGraceful
			before.LastAction.NumAttempts++
			before.LastAction.LastUpdated = time.Now()
			before.EventStats.PowerOffGracefulAttempts++

			if obs.err != nil {
				before.Error = obs.err.Error()
				return before, nil
			}
			before.Error = ""
			before.Status.Status = model.StatusPowerOffGracefulCalled
			return before, nil
		},
		Frequency: func(s options.Snapshot) time.Duration { return s.PowerOffGracefulFrequency },
	}
}
