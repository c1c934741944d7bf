package operator

import (
	"context"
	"time"

	"github.com/hpe-cray/bos/internal/model"
	"github.com/hpe-cray/bos/internal/options"
	"github.com/hpe-cray/bos/internal/store"
)

// NewPowerOffForceful builds the power_off_forceful operator: the
// graceful-to-forceful escalation. Filter evaluation needs the
// snapshot's forceful_timeout, so Filter reads it from the snapshot it
// is passed.
func NewPowerOffForceful() Operator {
	return Operator{
		Name: "power_off_forceful",
		Filter: func(c model.Component, opts options.Snapshot) bool {
			if !c.Enabled || c.Status.Status != model.StatusPowerOffGracefulCalled {
				return false
			}
			return time.Since(c.LastAction.LastUpdated) > opts.ForcefulTimeout
		},
		Act: func(ctx context.Context, env *Env, batch []model.Component, opts options.Snapshot) []Result {
			ids := make([]string, len(batch))
			keys := make([]string, len(batch))
			for i, c := range batch {
				ids[i] = c.ID
				keys[i] = store.Key(c.Tenant, c.ID)
			}
			pcsCtx, cancel := CallTimeout(ctx, opts.PCSReadTimeout)
			outcomes, err := env.PowerCtl.PowerOffForceful(pcsCtx, ids)
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
			before.LastAction.Action = model.ActionPowerOffForceful
			before.LastAction.NumAttempts++
			before.LastAction.LastUpdated = time.Now()
			before.EventStats.PowerOffForcefulAttempts++

			if obs.err != nil {
				before.Error = obs.err.Error()
				return before, nil
			}
			before.Error = ""
			before.Status.Status = model.StatusPowerOffForcefulCalled
			return before, nil
		},
		Frequency: func(s options.Snapshot) time.Duration { return s.PowerOffForcefulFrequency },
	}
}
