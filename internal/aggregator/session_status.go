// Package aggregator derives session-level status from the component
// records a session owns. It holds no state and performs no writes —
// every call is a pure function of a store Scan.
package aggregator

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hpe-cray/bos/internal/model"
	"github.com/hpe-cray/bos/internal/store"
)

// Summary is the computed status of one session's owned components.
type Summary struct {
	PhasePercentages map[model.Phase]float64    `json:"phase_percentages"`
	ErrorSummary     map[string][]string        `json:"error_summary"`
	PercentComplete  float64                    `json:"percent_complete"`
	PercentFailed    float64                    `json:"percent_failed"`
	Terminal         bool                       `json:"terminal"`
	Total            int                        `json:"total"`
}

// Compute scans every component owned by (tenant, session) and derives
// its Summary. op is the session's operation, used to decide what
// "eligible and complete" means for a component (stable for boot/
// reboot, off for shutdown).
func Compute(ctx context.Context, s store.Store, tenant, session string, op model.Operation) (Summary, error) {
	pred := func(raw []byte) (bool, error) {
		var c model.Component
		if err := json.Unmarshal(raw, &c); err != nil {
			return false, nil
		}
		return c.Tenant == tenant && c.Session == session, nil
	}

	var components []model.Component
	cursor := ""
	for {
		page, err := s.Scan(ctx, store.KindComponents, pred, 500, cursor)
		if err != nil {
			return Summary{}, fmt.Errorf("aggregator: scan session %s/%s: %w", tenant, session, err)
		}
		for _, raw := range page.Records {
			var c model.Component
			if err := json.Unmarshal(raw, &c); err == nil {
				components = append(components, c)
			}
		}
		if page.Cursor == "" {
			break
		}
		cursor = page.Cursor
	}

	return summarize(components, op), nil
}

func summarize(components []model.Component, op model.Operation) Summary {
	sum := Summary{
		PhasePercentages: map[model.Phase]float64{},
		ErrorSummary:     map[string][]string{},
		Total:            len(components),
	}
	if len(components) == 0 {
		sum.Terminal = true
		return sum
	}

	phaseCounts := map[model.Phase]int{}
	var eligible, failed, complete int

	for _, c := range components {
		if c.Error != "" {
			sum.ErrorSummary[c.Error] = append(sum.ErrorSummary[c.Error], c.ID)
		}

		if c.Status.Status == model.StatusFailed {
			failed++
			continue // excluded from phase/percent-complete denominators
		}

		eligible++
		phaseCounts[c.Status.Phase]++

		if isComponentComplete(c, op) {
			complete++
		}
	}

	nonFailed := len(components) - failed
	if nonFailed > 0 {
		for phase, count := range phaseCounts {
			sum.PhasePercentages[phase] = 100 * float64(count) / float64(nonFailed)
		}
	}
	if eligible > 0 {
		sum.PercentComplete = 100 * float64(complete) / float64(eligible)
	}
	total := len(components)
	if total > 0 {
		sum.PercentFailed = 100 * float64(failed) / float64(total)
	}

	// Terminal once every eligible component has settled (stable/off
	// per the session's operation) or failed — i.e. nothing left that
	// still needs a phase update.
	sum.Terminal = eligible == complete
	return sum
}

// isComponentComplete reports whether c has reached the terminal state
// appropriate to a session's operation. "stable" covers both a booted,
// configured component and a powered-down one with no desired
// artifacts, so shutdown and boot/reboot are told apart by whether
// actual_state was observed on (booted) or nil (off).
func isComponentComplete(c model.Component, op model.Operation) bool {
	if c.Status.Status != model.StatusStable {
		return false
	}
	switch op {
	case model.OperationShutdown:
		return c.ActualState == nil
	default:
		return c.ActualState != nil
	}
}
