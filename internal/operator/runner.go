package operator

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/hpe-cray/bos/internal/model"
	"github.com/hpe-cray/bos/internal/options"
	"github.com/hpe-cray/bos/internal/store"
)

// Result is one operator's outcome for a single component, reported to
// Patch for folding into the stored record. Per-component failures ride
// inside Observed (each operator defines its own observed-payload type
// with an err field) rather than a separate Result-level error, since
// Patch always needs the failure reason alongside whatever else it
// observed to decide how to record it — a retry count, a partial
// success, a token. One component's external failure never blocks
// another's in the same batch.
type Result struct {
	// Key is the component's tenant-prefixed store key (store.Key(tenant, id)).
	Key      string
	Observed any
}

// Operator is a named reconciliation pass, expressed as three pure-ish
// functions rather than a method set, so every catalog entry
// (discovery, configuration, power_on, ...) is a plain value built by
// a constructor function instead of its own type.
type Operator struct {
	Name string

	// Filter selects which components this pass considers, evaluated
	// against every component in the store on every iteration.
	Filter func(c model.Component, opts options.Snapshot) bool

	// Act performs the operator's external work (a power-control call,
	// an HSM query, ...) against a batch of filtered components and
	// reports a Result per component it attempted.
	Act func(ctx context.Context, env *Env, batch []model.Component, opts options.Snapshot) []Result

	// Patch folds one Result into the component's current stored value,
	// returning the record to write. A nil error patches; a non-nil
	// error aborts that component's patch (the store.Patch retry loop
	// in the Runner still applies to lost optimistic-locking races).
	Patch func(before model.Component, result Result) (model.Component, error)

	// Frequency reads this operator's polling interval off an options
	// snapshot.
	Frequency func(options.Snapshot) time.Duration
}

// Runner drives one Operator's filter/act/patch cycle on a loop.
type Runner struct {
	op  Operator
	env *Env
}

// NewRunner builds a Runner for op.
func NewRunner(op Operator, env *Env) *Runner {
	return &Runner{op: op, env: env}
}

// Run blocks until ctx is canceled, running one iteration immediately
// and then on every subsequent tick.
func (r *Runner) Run(ctx context.Context) {
	log := r.env.Log.WithContext(ctx)
	log.Info("operator starting", "operator", r.op.Name)

	r.tick(ctx)

	for {
		opts := r.env.Options.Get(ctx)
		interval := r.op.Frequency(opts)
		if interval <= 0 {
			interval = time.Second
		}

		select {
		case <-ctx.Done():
			log.Info("operator stopping", "operator", r.op.Name)
			return
		case <-time.After(interval):
			r.tick(ctx)
		case <-r.waitForWake(ctx, interval):
			r.tick(ctx)
		}
	}
}

// waitForWake returns a channel that fires if a wakebus signal for
// this operator arrives before timeout. With wakebus disabled (nil
// Env.Wake) it returns a channel that never fires.
func (r *Runner) waitForWake(ctx context.Context, timeout time.Duration) <-chan struct{} {
	ch := make(chan struct{})
	if r.env.Wake == nil {
		return ch
	}
	go func() {
		if r.env.Wake.WaitForWake(ctx, r.op.Name, timeout) {
			select {
			case ch <- struct{}{}:
			case <-ctx.Done():
			}
		}
	}()
	return ch
}

func (r *Runner) touchLiveness() {
	if r.env.LivenessPath == "" {
		return
	}
	now := time.Now()
	if err := os.Chtimes(r.env.LivenessPath, now, now); err != nil {
		f, createErr := os.Create(r.env.LivenessPath)
		if createErr == nil {
			f.Close()
		}
	}
}

func (r *Runner) tick(ctx context.Context) {
	r.touchLiveness()
	start := time.Now()
	opts := r.env.Options.Get(ctx)

	batch, err := r.collect(ctx, opts)
	if err != nil {
		r.env.Log.WithContext(ctx).IterationLog(r.op.Name, 0, time.Since(start), err)
		return
	}
	if len(batch) == 0 {
		r.env.Log.WithContext(ctx).IterationLog(r.op.Name, 0, time.Since(start), nil)
		return
	}

	results := r.op.Act(ctx, r.env, batch, opts)
	for _, res := range results {
		r.applyResult(ctx, res)
	}

	r.env.Log.WithContext(ctx).IterationLog(r.op.Name, len(results), time.Since(start), nil)
}

// collect pages through every component via Scan, keeping those the
// operator's Filter selects, bounded by the options snapshot's batch
// size per page and overall.
func (r *Runner) collect(ctx context.Context, opts options.Snapshot) ([]model.Component, error) {
	pageSize := opts.MaxComponentBatchSize
	if pageSize <= 0 {
		pageSize = 100
	}

	pred := func(raw []byte) (bool, error) {
		var c model.Component
		if err := json.Unmarshal(raw, &c); err != nil {
			return false, nil
		}
		return r.op.Filter(c, opts), nil
	}

	var batch []model.Component
	cursor := ""
	for {
		page, err := r.env.Store.Scan(ctx, store.KindComponents, pred, pageSize, cursor)
		if err != nil {
			return nil, fmt.Errorf("operator %s: scan components: %w", r.op.Name, err)
		}
		for _, raw := range page.Records {
			var c model.Component
			if err := json.Unmarshal(raw, &c); err != nil {
				continue
			}
			batch = append(batch, c)
		}
		if page.Cursor == "" || len(batch) >= pageSize {
			break
		}
		cursor = page.Cursor
	}
	return batch, nil
}

// applyResult folds one Result into its component via an atomic Patch,
// retrying on optimistic-locking conflicts per the store's own policy.
// A Patch-layer failure (including ErrConflict exhaustion) is logged
// and dropped — the next iteration's Scan picks the component back up.
func (r *Runner) applyResult(ctx context.Context, res Result) {
	key := res.Key
	err := r.env.Store.Patch(ctx, store.KindComponents, key, func(before []byte, exists bool) ([]byte, error) {
		if !exists {
			return nil, nil
		}
		var c model.Component
		if err := json.Unmarshal(before, &c); err != nil {
			return nil, fmt.Errorf("operator %s: decode %s: %w", r.op.Name, key, err)
		}
		patched, err := r.op.Patch(c, res)
		if err != nil {
			return nil, err
		}
		return json.Marshal(patched)
	})
	if err != nil {
		r.env.Log.WithContext(ctx).WithComponentID(key).WithError(err).
			Warn("operator patch failed", "operator", r.op.Name)
	}
}
