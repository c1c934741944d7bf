package operator

import (
	"context"
	"time"

	"github.com/hpe-cray/bos/internal/model"
	"github.com/hpe-cray/bos/internal/options"
	"github.com/hpe-cray/bos/internal/store"
)

// configResult is the Observed payload configuration's Act attaches
// per component: nil on success, or the per-id error CFS returned.
type configResult struct{ err error }

// NewConfiguration builds the configuration operator: posts the
// desired configuration id for every component the status operator has
// phased into configuring — booted with the right identity, awaiting a
// CFS run. Once CFS reports configured, the status operator moves the
// phase to none and this filter stops matching; it never re-fires for
// an already-stable component, so there is no stable/configuring churn.
func NewConfiguration() Operator {
	return Operator{
		Name: "configuration",
		Filter: func(c model.Component, _ options.Snapshot) bool {
			if !c.Enabled || c.DesiredState == nil || c.DesiredState.Configuration == "" {
				return false
			}
			return c.Status.Phase == model.PhaseConfiguring
		},
		Act: func(ctx context.Context, env *Env, batch []model.Component, opts options.Snapshot) []Result {
			// CFS takes one configuration name per call; group the
			// batch by the configuration each component actually wants.
			groups := map[string][]model.Component{}
			for _, c := range batch {
				groups[c.DesiredState.Configuration] = append(groups[c.DesiredState.Configuration], c)
			}

			results := make([]Result, 0, len(batch))
			for configName, group := range groups {
				ids := make([]string, len(group))
				for i, c := range group {
					ids[i] = c.ID
				}
				cfsCtx, cancel := CallTimeout(ctx, opts.CFSReadTimeout)
				outcomes, err := env.CFS.SetDesired(cfsCtx, ids, configName)
				cancel()
				for _, c := range group {
					var perID error
					if err != nil {
						perID = err
					} else {
						perID = outcomes[c.ID]
					}
					results = append(results, Result{Key: store.Key(c.Tenant, c.ID), Observed: configResult{err: perID}})
				}
			}
			return results
		},
		Patch: func(before model.Component, res Result) (model.Component, error) {
			obs := res.Observed.(configResult)
			if obs.err != nil {
				before.Error = obs.err.Error()
				return before, nil
			}
			before.Status.Phase = model.PhaseConfiguring
			before.Status.Status = model.StatusConfiguring
			return before, nil
		},
		Frequency: func(s options.Snapshot) time.Duration { return s.ConfigurationFrequency },
	}
}
