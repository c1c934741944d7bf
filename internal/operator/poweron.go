package operator

import (
	"context"
	"fmt"
	"time"

	"github.com/hpe-cray/bos/internal/model"
	"github.com/hpe-cray/bos/internal/options"
	"github.com/hpe-cray/bos/internal/store"
)

// powerOnResult carries the new referral token on success, or the
// failure reason (image resolution or the power-control batch call)
// otherwise.
type powerOnResult struct {
	token string
	err   error
}

// NewPowerOn builds the power_on operator: resolves the desired image,
// registers boot parameters with BSS to mint a referral token, then
// requests power-on from power-control.
func NewPowerOn() Operator {
	return Operator{
		Name: "power_on",
		Filter: func(c model.Component, _ options.Snapshot) bool {
			if !c.Enabled || c.DesiredState == nil || c.DesiredState.BootArtifacts == nil {
				return false
			}
			return c.Status.Status == model.StatusPowerOnPending
		},
		Act: func(ctx context.Context, env *Env, batch []model.Component, opts options.Snapshot) []Result {
			results := make([]Result, 0, len(batch))
			var readyIDs []string
			tokenByKey := map[string]string{}

			for _, c := range batch {
				k := store.Key(c.Tenant, c.ID)

				if c.DesiredState.BootArtifacts.Kernel != "" {
					imsCtx, cancel := CallTimeout(ctx, opts.IMSReadTimeout)
					_, err := env.IMS.Resolve(imsCtx, c.DesiredState.BootArtifacts.Kernel)
					cancel()
					if err != nil {
						if opts.IMSErrorsFatal {
							results = append(results, Result{Key: k, Observed: powerOnResult{err: fmt.Errorf("power_on: resolve image: %w", err)}})
							continue
						}
					}
				}

				bssCtx, cancelBSS := CallTimeout(ctx, opts.BSSReadTimeout)
				token, err := env.BSS.SetBootParams(bssCtx, c.ID, c.DesiredState.BootArtifacts)
				cancelBSS()
				if err != nil {
					results = append(results, Result{Key: k, Observed: powerOnResult{err: fmt.Errorf("power_on: set boot params: %w", err)}})
					continue
				}
				tokenByKey[k] = token
				readyIDs = append(readyIDs, c.ID)
			}

			if len(readyIDs) == 0 {
				return results
			}

			pcsCtx, cancelPCS := CallTimeout(ctx, opts.PCSReadTimeout)
			outcomes, err := env.PowerCtl.PowerOn(pcsCtx, readyIDs)
			cancelPCS()
			idToKey := map[string]string{}
			for _, c := range batch {
				idToKey[c.ID] = store.Key(c.Tenant, c.ID)
			}
			for _, id := range readyIDs {
				k := idToKey[id]
				if err != nil {
					results = append(results, Result{Key: k, Observed: powerOnResult{err: fmt.Errorf("power_on: power-control: %w", err)}})
					continue
				}
				results = append(results, Result{Key: k, Observed: powerOnResult{token: tokenByKey[k], err: outcomes[id]}})
			}
			return results
		},
		Patch: func(before model.Component, res Result) (model.Component, error) {
			obs := res.Observed.(powerOnResult)
			before.LastAction.Action = model.ActionPowerOn
			before.LastAction.NumAttempts++
			before.LastAction.LastUpdated = time.Now()
			before.EventStats.PowerOnAttempts++

			if obs.err != nil {
				before.Error = obs.err.Error()
				if before.RetryExhausted() {
					before.LastAction.Failed = true
					before.Status.Status = model.StatusFailed
				}
				return before, nil
			}

			before.Error = ""
			before.Status.Status = model.StatusPowerOnCalled
			if before.DesiredState != nil {
				before.DesiredState.BSSToken = obs.token
			}
			return before, nil
		},
		Frequency: func(s options.Snapshot) time.Duration { return s.PowerOnFrequency },
	}
}
