// Package nodeselect narrows a boot set's node/group/role selectors
// down to the concrete set of component ids a session setup pass will
// act on, using a Strategy/StrategyChain pattern generalized from
// "pick one node" to "narrow a candidate set" — the natural dual of
// the same idea.
package nodeselect

import (
	"context"
	"regexp"
	"strings"

	"github.com/hpe-cray/bos/internal/clients/hsm"
	"github.com/hpe-cray/bos/internal/clients/tenant"
	"github.com/hpe-cray/bos/internal/model"
)

// Candidates is threaded through a Chain, narrowed by each Filter in
// turn: the inputs every filter might need plus an accumulator for
// diagnostics.
type Candidates struct {
	BootSet         model.BootSet
	IncludeDisabled bool
	SessionTenant   string
	Limit           string
	RejectNIDs      bool
	SessionLimitRequired bool

	HSM    *hsm.Client
	Tenant *tenant.Client
	// ComponentLookup returns the component record for id, or false if
	// unknown, letting DisabledFilter decide without a roundtrip per
	// filter — session setup populates this once per boot set.
	ComponentLookup func(id string) (model.Component, bool)

	IDs      map[string]bool
	Warnings []string
	Errors   []string
}

// newCandidates seeds the initial id set from the union filter's work.
func newCandidates(bs model.BootSet) *Candidates {
	return &Candidates{BootSet: bs, IDs: map[string]bool{}}
}

// Filter narrows Candidates.IDs in place. Name is used for logging and
// for attributing any warnings/errors it appends.
type Filter interface {
	Name() string
	Apply(ctx context.Context, c *Candidates) error
}

// Chain runs every Filter in order, short-circuiting on the first error
// that requires failing the session (an error from Apply, not a
// warning appended to Candidates.Warnings).
type Chain struct {
	filters []Filter
}

// NewChain builds the standard node-selection filter chain, in the
// fixed sub-step order a–g.
func NewChain(filters ...Filter) *Chain {
	return &Chain{filters: filters}
}

// Resolve runs bs through the chain and returns the final candidate id
// set plus any warnings/errors the filters accumulated.
func (ch *Chain) Resolve(ctx context.Context, bs model.BootSet, opts ChainOptions) (*Candidates, error) {
	c := newCandidates(bs)
	c.IncludeDisabled = opts.IncludeDisabled
	c.SessionTenant = opts.SessionTenant
	c.Limit = opts.Limit
	c.RejectNIDs = opts.RejectNIDs
	c.SessionLimitRequired = opts.SessionLimitRequired
	c.HSM = opts.HSM
	c.Tenant = opts.Tenant
	c.ComponentLookup = opts.ComponentLookup

	for _, f := range ch.filters {
		if err := f.Apply(ctx, c); err != nil {
			return c, err
		}
	}
	return c, nil
}

// ChainOptions carries the session-level inputs every filter in the
// chain may need, separate from the per-boot-set Candidates so Resolve
// can be called once per boot set with the same options.
type ChainOptions struct {
	IncludeDisabled      bool
	SessionTenant        string
	Limit                string
	RejectNIDs           bool
	SessionLimitRequired bool
	HSM                  *hsm.Client
	Tenant               *tenant.Client
	ComponentLookup      func(id string) (model.Component, bool)
}

// UnionFilter seeds Candidates.IDs from the boot set's explicit node
// list plus group and role membership expansion (step 2a).
type UnionFilter struct{}

func (UnionFilter) Name() string { return "union" }

func (UnionFilter) Apply(ctx context.Context, c *Candidates) error {
	for _, id := range c.BootSet.Node {
		c.IDs[id] = true
	}
	if len(c.BootSet.Groups) > 0 {
		members, err := c.HSM.ExpandGroups(ctx, c.BootSet.Groups)
		if err != nil {
			return err
		}
		for _, id := range members {
			c.IDs[id] = true
		}
	}
	if len(c.BootSet.Roles) > 0 {
		members, err := c.HSM.ExpandRoles(ctx, c.BootSet.Roles)
		if err != nil {
			return err
		}
		for _, id := range members {
			c.IDs[id] = true
		}
	}
	return nil
}

// ArchitectureFilter retains nodes whose HSM-reported architecture
// equals the boot set's (step 2b). A boot set with no architecture
// constraint passes everything through.
type ArchitectureFilter struct{}

func (ArchitectureFilter) Name() string { return "architecture" }

func (ArchitectureFilter) Apply(ctx context.Context, c *Candidates) error {
	if c.BootSet.Arch == "" || len(c.IDs) == 0 {
		return nil
	}
	inventory, err := c.HSM.Inventory(ctx, idList(c.IDs))
	if err != nil {
		return err
	}
	for id := range c.IDs {
		info, ok := inventory[id]
		if !ok || info.Arch != c.BootSet.Arch {
			delete(c.IDs, id)
		}
	}
	return nil
}

// DisabledFilter drops disabled components unless IncludeDisabled is
// set (step 2c).
type DisabledFilter struct{}

func (DisabledFilter) Name() string { return "disabled" }

func (DisabledFilter) Apply(_ context.Context, c *Candidates) error {
	if c.IncludeDisabled || c.ComponentLookup == nil {
		return nil
	}
	for id := range c.IDs {
		comp, known := c.ComponentLookup(id)
		if known && !comp.Enabled {
			delete(c.IDs, id)
		}
	}
	return nil
}

// LockFilter drops nodes HSM reports as locked (step 2d).
type LockFilter struct{}

func (LockFilter) Name() string { return "lock" }

func (LockFilter) Apply(ctx context.Context, c *Candidates) error {
	if len(c.IDs) == 0 {
		return nil
	}
	inventory, err := c.HSM.Inventory(ctx, idList(c.IDs))
	if err != nil {
		return err
	}
	for id := range c.IDs {
		if info, ok := inventory[id]; ok && info.Locked {
			delete(c.IDs, id)
		}
	}
	return nil
}

// TenancyFilter retains only nodes the session tenant owns, when the
// session has a tenant (step 2e).
type TenancyFilter struct{}

func (TenancyFilter) Name() string { return "tenancy" }

func (TenancyFilter) Apply(ctx context.Context, c *Candidates) error {
	if c.SessionTenant == "" || c.Tenant == nil {
		return nil
	}
	members, err := c.Tenant.MembersOf(ctx, c.SessionTenant)
	if err != nil {
		return err
	}
	if members == nil {
		return nil
	}
	for id := range c.IDs {
		if !members[id] {
			delete(c.IDs, id)
		}
	}
	return nil
}

// LimitFilter applies the session's limit selector, "*" meaning no
// restriction (step 2f). When session_limit_required is set and no
// limit was given, it fails the session outright.
type LimitFilter struct{}

func (LimitFilter) Name() string { return "limit" }

func (LimitFilter) Apply(_ context.Context, c *Candidates) error {
	if c.Limit == "" {
		if c.SessionLimitRequired {
			return errLimitRequired
		}
		return nil
	}
	if c.Limit == "*" {
		return nil
	}
	allowed := map[string]bool{}
	for _, id := range strings.Split(c.Limit, ",") {
		allowed[strings.TrimSpace(id)] = true
	}
	for id := range c.IDs {
		if !allowed[id] {
			delete(c.IDs, id)
		}
	}
	return nil
}

var errLimitRequired = &chainError{"limit required by session_limit_required but none given"}

// RejectNIDsFilter fails the session if reject_nids is set and any raw
// selector parses as a bare numeric id (step 2g).
type RejectNIDsFilter struct{}

func (RejectNIDsFilter) Name() string { return "reject_nids" }

var numericID = regexp.MustCompile(`^[0-9]+$`)

func (RejectNIDsFilter) Apply(_ context.Context, c *Candidates) error {
	if !c.RejectNIDs {
		return nil
	}
	for _, id := range c.BootSet.Node {
		if numericID.MatchString(id) {
			return &chainError{"numeric node id rejected by reject_nids: " + id}
		}
	}
	return nil
}

type chainError struct{ msg string }

func (e *chainError) Error() string { return e.msg }

func idList(set map[string]bool) []string {
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	return ids
}
