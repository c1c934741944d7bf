// Package sessionsetup implements the operator that turns a pending
// session into a running one by resolving its template's boot sets to
// concrete component ids and writing their goal state.
package sessionsetup

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hpe-cray/bos/internal/clients/ims"
	"github.com/hpe-cray/bos/internal/model"
	"github.com/hpe-cray/bos/internal/operator"
	"github.com/hpe-cray/bos/internal/operator/sessionsetup/nodeselect"
	"github.com/hpe-cray/bos/internal/options"
	"github.com/hpe-cray/bos/internal/store"
)

// Runner drives the session-setup pass over pending sessions. It
// scans Sessions rather than Components, so — like session_completion
// and session_cleanup — it does not fit the component-centric
// operator.Operator shape.
type Runner struct {
	env *operator.Env
}

// New constructs the session-setup operator.
func New(env *operator.Env) *Runner {
	return &Runner{env: env}
}

// Run blocks until ctx is canceled, polling on session_setup_frequency.
func (r *Runner) Run(ctx context.Context) {
	log := r.env.Log.WithContext(ctx)
	log.Info("operator starting", "operator", "session_setup")

	r.tick(ctx)
	for {
		opts := r.env.Options.Get(ctx)
		select {
		case <-ctx.Done():
			log.Info("operator stopping", "operator", "session_setup")
			return
		case <-time.After(opts.SessionSetupFrequency):
			r.tick(ctx)
		}
	}
}

func (r *Runner) tick(ctx context.Context) {
	start := time.Now()
	touched, err := r.runOnce(ctx)
	r.env.Log.WithContext(ctx).IterationLog("session_setup", touched, time.Since(start), err)
}

func (r *Runner) runOnce(ctx context.Context) (int, error) {
	opts := r.env.Options.Get(ctx)

	pred := func(raw []byte) (bool, error) {
		var s model.Session
		if err := json.Unmarshal(raw, &s); err != nil {
			return false, nil
		}
		return s.Status.Status == model.SessionPending, nil
	}

	touched := 0
	cursor := ""
	for {
		page, err := r.env.Store.Scan(ctx, store.KindSessions, pred, 50, cursor)
		if err != nil {
			return touched, fmt.Errorf("session_setup: scan sessions: %w", err)
		}
		for _, raw := range page.Records {
			var s model.Session
			if err := json.Unmarshal(raw, &s); err != nil {
				continue
			}
			r.setup(ctx, s, opts)
			touched++
		}
		if page.Cursor == "" {
			break
		}
		cursor = page.Cursor
	}
	return touched, nil
}

// setup runs the seven-step session-setup sequence for one session.
func (r *Runner) setup(ctx context.Context, s model.Session, opts options.Snapshot) {
	tmplRaw, found, err := r.env.Store.Get(ctx, store.KindSessionTemplates, store.Key(s.Tenant, s.TemplateName))
	if err != nil || !found {
		r.fail(ctx, s, "template not found")
		return
	}
	var tmpl model.SessionTemplate
	if err := json.Unmarshal(tmplRaw, &tmpl); err != nil {
		r.fail(ctx, s, "template decode failed")
		return
	}

	chain := nodeselect.NewChain(
		nodeselect.UnionFilter{},
		nodeselect.ArchitectureFilter{},
		nodeselect.DisabledFilter{},
		nodeselect.LockFilter{},
		nodeselect.TenancyFilter{},
		nodeselect.LimitFilter{},
		nodeselect.RejectNIDsFilter{},
	)

	var sessionWarnings []string
	resolved := map[string]model.BootSet{}

	for _, bs := range tmpl.BootSets {
		hsmCtx, cancel := operator.CallTimeout(ctx, opts.HSMReadTimeout)
		cands, err := chain.Resolve(hsmCtx, bs, nodeselect.ChainOptions{
			IncludeDisabled:      s.IncludeDisabled,
			SessionTenant:        s.Tenant,
			Limit:                s.Limit,
			RejectNIDs:           opts.RejectNIDs,
			SessionLimitRequired: opts.SessionLimitRequired,
			HSM:                  r.env.HSM,
			Tenant:               r.env.Tenant,
			ComponentLookup: func(id string) (model.Component, bool) {
				raw, found, err := r.env.Store.Get(ctx, store.KindComponents, store.Key(s.Tenant, id))
				if err != nil || !found {
					return model.Component{}, false
				}
				var c model.Component
				if err := json.Unmarshal(raw, &c); err != nil {
					return model.Component{}, false
				}
				return c, true
			},
		})
		cancel()
		if err != nil {
			r.fail(ctx, s, err.Error())
			return
		}
		sessionWarnings = append(sessionWarnings, cands.Warnings...)

		var imgErr error
		bs, imgErr = r.resolveImage(ctx, bs, opts.IMSImagesMustExist, opts.IMSReadTimeout, &sessionWarnings)
		if imgErr != nil && opts.IMSErrorsFatal {
			r.fail(ctx, s, imgErr.Error())
			return
		}

		for id := range cands.IDs {
			resolved[id] = bs
		}
	}

	for id, bs := range resolved {
		r.applyToComponent(ctx, s, id, bs)
	}

	r.transitionRunning(ctx, s, len(resolved), sessionWarnings)
}

// resolveImage performs step 3: resolve the boot set's image (identified
// by its kernel artifact reference, not by the rootfs provider protocol
// name) and tag SBPS-backed artifacts accordingly. The caller treats a
// non-nil error as fatal under ims_errors_fatal; otherwise a missing
// image under ims_images_must_exist is recorded as a warning and setup
// continues with the boot set's artifacts unresolved.
func (r *Runner) resolveImage(ctx context.Context, bs model.BootSet, mustExist bool, imsTimeout time.Duration, warnings *[]string) (model.BootSet, error) {
	if bs.BootArtifacts == nil || bs.BootArtifacts.Kernel == "" {
		return bs, nil
	}
	imsCtx, cancel := operator.CallTimeout(ctx, imsTimeout)
	img, err := r.env.IMS.Resolve(imsCtx, bs.BootArtifacts.Kernel)
	cancel()
	if err != nil {
		if err == ims.ErrImageNotFound {
			if mustExist {
				*warnings = append(*warnings, fmt.Sprintf("boot set %s: image %s not found", bs.Name, bs.BootArtifacts.Kernel))
			}
			return bs, err
		}
		return bs, err
	}
	if img.RootfsProvider == "sbps" {
		artifacts := *bs.BootArtifacts
		artifacts.SBPSProject = true
		bs.BootArtifacts = &artifacts
	}
	return bs, nil
}

// applyToComponent performs steps 4–5 for one resolved node.
func (r *Runner) applyToComponent(ctx context.Context, s model.Session, id string, bs model.BootSet) {
	key := store.Key(s.Tenant, id)
	_ = r.env.Store.Patch(ctx, store.KindComponents, key, func(before []byte, exists bool) ([]byte, error) {
		var c model.Component
		if exists {
			if err := json.Unmarshal(before, &c); err != nil {
				return nil, err
			}
		} else {
			c = model.Component{ID: id, Tenant: s.Tenant, Enabled: true}
		}

		c.Session = s.Name
		c.ResetActionState()

		goal := &model.DesiredState{
			BootArtifacts: bs.BootArtifacts,
			Configuration: bs.CFSConfiguration,
		}

		switch {
		case s.Operation == model.OperationShutdown:
			// 5. goal = off: clear boot artifacts, keep configuration.
			if c.DesiredState != nil {
				c.DesiredState.BootArtifacts = nil
			} else {
				c.DesiredState = &model.DesiredState{}
			}
		case s.Stage:
			c.StagedState = goal
		default:
			c.DesiredState = goal
			if c.ActualState != nil && !c.ActualState.Matches(c.DesiredState) {
				c.ActualState = nil
			}
		}

		return json.Marshal(c)
	})
}

// transitionRunning performs step 7.
func (r *Runner) transitionRunning(ctx context.Context, s model.Session, resolvedCount int, warnings []string) {
	key := store.Key(s.Tenant, s.Name)
	_ = r.env.Store.Patch(ctx, store.KindSessions, key, func(before []byte, exists bool) ([]byte, error) {
		if !exists {
			return nil, nil
		}
		var cur model.Session
		if err := json.Unmarshal(before, &cur); err != nil {
			return nil, err
		}
		if cur.Status.Status != model.SessionPending {
			return before, nil
		}
		cur.Status.Status = model.SessionRunning
		if len(warnings) > 0 {
			cur.Status.Error = warnings[0]
		}
		return json.Marshal(cur)
	})
}

// fail marks a session terminal with an error when setup cannot
// proceed at all (missing template, a hard filter-chain failure).
// Session has no distinct "failed" status; a setup failure is
// represented as an immediately-complete session carrying an error,
// the only terminal state the model provides.
func (r *Runner) fail(ctx context.Context, s model.Session, reason string) {
	key := store.Key(s.Tenant, s.Name)
	_ = r.env.Store.Patch(ctx, store.KindSessions, key, func(before []byte, exists bool) ([]byte, error) {
		if !exists {
			return nil, nil
		}
		var cur model.Session
		if err := json.Unmarshal(before, &cur); err != nil {
			return nil, err
		}
		now := time.Now()
		cur.Status.Status = model.SessionComplete
		cur.Status.EndTime = &now
		cur.Status.Error = reason
		return json.Marshal(cur)
	})
}
