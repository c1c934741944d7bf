package operator

import (
	"context"
	"time"

	"github.com/hpe-cray/bos/internal/clients/cfs"
	"github.com/hpe-cray/bos/internal/eventbus"
	"github.com/hpe-cray/bos/internal/model"
	"github.com/hpe-cray/bos/internal/options"
	"github.com/hpe-cray/bos/internal/store"
)

// statusDecision is what one component's status pass decided, computed
// in Act (where the external observations and the eventbus live) and
// folded into the stored record by Patch.
type statusDecision struct {
	status      model.StatusValue
	phase       model.Phase
	clearAction bool
	failed      bool
	errText     string
	actual      *model.ActualState
}

// componentStatusEvent is the payload published on a component's
// status change, consumed only by the websocket monitor in
// internal/server — never read back by any operator as a source of
// truth.
type componentStatusEvent struct {
	ID      string            `json:"id"`
	Tenant  string            `json:"tenant"`
	Session string            `json:"session,omitempty"`
	Status  model.StatusValue `json:"status"`
	Phase   model.Phase       `json:"phase"`
	Error   string            `json:"error,omitempty"`
}

// NewStatus builds the status operator: the only one that reads
// external observed truth and derives a component's phase/status from
// it, following the five ordered phase/status transitions. Components
// the power-control service didn't answer for in this pass are left
// untouched — a missing power state is a no-op, never a clobber to
// "unknown". A missing CFS answer counts as not configured.
func NewStatus() Operator {
	return Operator{
		Name: "status",
		Filter: func(c model.Component, _ options.Snapshot) bool {
			return c.Enabled
		},
		Act: func(ctx context.Context, env *Env, batch []model.Component, opts options.Snapshot) []Result {
			ids := make([]string, len(batch))
			for i, c := range batch {
				ids[i] = c.ID
			}

			powerCtx, cancelPower := CallTimeout(ctx, opts.PCSReadTimeout)
			powerStates, _ := env.PowerCtl.GetPowerState(powerCtx, ids)
			cancelPower()

			cfsCtx, cancelCFS := CallTimeout(ctx, opts.CFSReadTimeout)
			configStates, _ := env.CFS.GetStates(cfsCtx, ids)
			cancelCFS()

			results := make([]Result, 0, len(batch))
			for _, c := range batch {
				ps, havePower := powerStates[c.ID]
				if !havePower {
					continue
				}
				_, haveConfig := configStates[c.ID]
				configured := haveConfig && configStates[c.ID] == cfs.ConfigConfigured

				decision := decideStatus(c, ps.Power == "on", configured)
				results = append(results, Result{Key: store.Key(c.Tenant, c.ID), Observed: decision})

				if env.Events != nil {
					env.Events.Publish(ctx, c.Tenant, eventbus.EventComponentStatus, componentStatusEvent{
						ID: c.ID, Tenant: c.Tenant, Session: c.Session,
						Status: decision.status, Phase: decision.phase, Error: decision.errText,
					})
				}
			}
			return results
		},
		Patch: func(before model.Component, res Result) (model.Component, error) {
			d := res.Observed.(statusDecision)
			before.Status.Status = d.status
			before.Status.Phase = d.phase
			before.ActualState = d.actual
			if d.clearAction {
				before.LastAction = model.LastAction{}
			}
			if d.failed {
				before.LastAction.Failed = true
			}
			before.Error = d.errText
			return before, nil
		},
		Frequency: func(s options.Snapshot) time.Duration { return s.StatusFrequency },
	}
}

// decideStatus sets the coarse phase from observed truth, then derives
// the fine-grained status from phase + last_action via deriveStatus,
// overriding it to failed when retries are exhausted without the
// desired artifacts landing. The power operators also write status
// directly when they record a call; this pass recomputes it each time.
func decideStatus(c model.Component, on, configured bool) statusDecision {
	desiredArtifacts := c.DesiredState != nil && c.DesiredState.BootArtifacts != nil
	wantsConfig := c.DesiredState != nil && c.DesiredState.Configuration != ""
	artifactsMatch := c.ActualState.Matches(c.DesiredState)

	d := statusDecision{
		phase:   c.Status.Phase,
		errText: c.Error,
		actual:  actualState(c, on),
	}

	switch {
	case !on && !desiredArtifacts:
		// 1. observed off, no desired boot artifacts: settled off.
		d.phase = model.PhaseNone
		d.errText = ""
		d.clearAction = true

	case !on && desiredArtifacts:
		// 2. observed off, desired artifacts present: power_on will
		// pick this up next cycle.
		d.phase = model.PhasePoweringOn

	case on && !desiredArtifacts:
		// 3. observed on, no desired boot artifacts: awaiting power-off.
		d.phase = model.PhasePoweringOff

	case on && artifactsMatch && (!wantsConfig || configured):
		// 4. stable: everything matches, nothing left to configure.
		d.phase = model.PhaseNone
		d.errText = ""
		d.clearAction = true

	case on && artifactsMatch:
		// 4b. booted with the right identity, awaiting configuration.
		d.phase = model.PhaseConfiguring

	default:
		// 5. on && !artifactsMatch: boot attempt hasn't landed yet.
		// A fresh power_on is still in flight until its retry budget
		// runs out; after that, treat it as needing a power cycle.
		if c.LastAction.Action == model.ActionPowerOn && !c.RetryExhausted() {
			d.phase = model.PhasePoweringOn
		} else {
			d.phase = model.PhasePoweringOff
		}
	}

	if on && desiredArtifacts && !artifactsMatch && c.RetryExhausted() {
		d.failed = true
		d.errText = "observed boot artifacts do not match desired state after exhausting retries"
	}

	lastAction := c.LastAction.Action
	if d.clearAction {
		lastAction = model.ActionNone
	}
	d.status = deriveStatus(d.phase, lastAction)
	if d.failed {
		d.status = model.StatusFailed
	}

	return d
}

// deriveStatus computes the fine-grained status from phase and the
// most recent action.
func deriveStatus(phase model.Phase, lastAction model.ActionType) model.StatusValue {
	switch phase {
	case model.PhasePoweringOn:
		if lastAction == model.ActionPowerOn {
			return model.StatusPowerOnCalled
		}
		return model.StatusPowerOnPending
	case model.PhasePoweringOff:
		switch lastAction {
		case model.ActionPowerOffGraceful:
			return model.StatusPowerOffGracefulCalled
		case model.ActionPowerOffForceful:
			return model.StatusPowerOffForcefulCalled
		default:
			return model.StatusPowerOffPending
		}
	case model.PhaseConfiguring:
		return model.StatusConfiguring
	default:
		return model.StatusStable
	}
}

// actualState reports what was actually observed booted: the desired
// artifacts when power is on (BOS has no independent channel to
// confirm *which* image is running beyond PCS's on/off signal and
// CFS's configuration state), or nil when off.
func actualState(c model.Component, on bool) *model.ActualState {
	if !on || c.DesiredState == nil {
		return nil
	}
	return &model.ActualState{
		BootArtifacts: c.DesiredState.BootArtifacts,
		Configuration: c.DesiredState.Configuration,
		BSSToken:      c.DesiredState.BSSToken,
		LastUpdated:   time.Now(),
	}
}
