package operator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hpe-cray/bos/internal/model"
	"github.com/hpe-cray/bos/internal/store"
)

// DiscoveryRunner is the scanner-loop operator: it has no component
// filter, so it does not fit the generic Operator{Filter,Act,Patch}
// shape. It lists
// every node the hardware state manager knows about and upserts a bare
// component record for any id BOS has never seen, and disables (never
// deletes) any locally-known id HSM no longer reports.
type DiscoveryRunner struct {
	env *Env
}

// NewDiscoveryRunner constructs the discovery operator.
func NewDiscoveryRunner(env *Env) *DiscoveryRunner {
	return &DiscoveryRunner{env: env}
}

// Run blocks until ctx is canceled, polling HSM on discovery_frequency.
func (d *DiscoveryRunner) Run(ctx context.Context) {
	log := d.env.Log.WithContext(ctx)
	log.Info("operator starting", "operator", "discovery")

	d.tick(ctx)
	for {
		opts := d.env.Options.Get(ctx)
		select {
		case <-ctx.Done():
			log.Info("operator stopping", "operator", "discovery")
			return
		case <-time.After(opts.DiscoveryFrequency):
			d.tick(ctx)
		}
	}
}

func (d *DiscoveryRunner) tick(ctx context.Context) {
	start := time.Now()
	touched, err := d.runOnce(ctx)
	d.env.Log.WithContext(ctx).IterationLog("discovery", touched, time.Since(start), err)
}

// discoveryTenant is the untenanted bucket discovery writes into.
// Hardware inventory is not itself tenant-scoped; a component only
// gains a tenant once a session claims it (session setup rewrites the
// component under its owning tenant's key when that happens).
const discoveryTenant = ""

func (d *DiscoveryRunner) runOnce(ctx context.Context) (int, error) {
	opts := d.env.Options.Get(ctx)

	hsmCtx, cancel := CallTimeout(ctx, opts.HSMReadTimeout)
	nodes, err := d.env.HSM.ListNodes(hsmCtx)
	cancel()
	if err != nil {
		return 0, fmt.Errorf("discovery: list nodes: %w", err)
	}

	prefix := discoveryTenant + "/"
	known, err := d.env.Store.ListKeys(ctx, store.KindComponents, prefix)
	if err != nil {
		return 0, fmt.Errorf("discovery: list known components: %w", err)
	}
	knownSet := make(map[string]bool, len(known))
	for _, k := range known {
		knownSet[k] = true
	}

	reported := make(map[string]bool, len(nodes))
	touched := 0

	for _, n := range nodes {
		reported[n.ID] = true
		key := store.Key(discoveryTenant, n.ID)
		if knownSet[key] {
			continue
		}
		c := model.Component{
			ID:      n.ID,
			Tenant:  discoveryTenant,
			Enabled: true,
			Status:  model.Status{Phase: model.PhaseNone, Status: model.StatusStable},
		}
		raw, err := json.Marshal(c)
		if err != nil {
			continue
		}
		if err := d.env.Store.Put(ctx, store.KindComponents, key, raw); err != nil {
			continue
		}
		touched++
	}

	// Nodes HSM no longer reports are disabled, never deleted.
	for key := range knownSet {
		id := key[len(prefix):]
		if reported[id] {
			continue
		}
		err := d.env.Store.Patch(ctx, store.KindComponents, key, func(before []byte, exists bool) ([]byte, error) {
			if !exists {
				return nil, nil
			}
			var c model.Component
			if err := json.Unmarshal(before, &c); err != nil {
				return nil, err
			}
			if !c.Enabled {
				return before, nil
			}
			c.Enabled = false
			return json.Marshal(c)
		})
		if err == nil {
			touched++
		}
	}

	return touched, nil
}
