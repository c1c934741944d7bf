// Package tenant wraps the multi-tenancy authority: which nodes a
// tenant owns, used by the sessionsetup/nodeselect tenancy filter to
// reject targets outside a session's tenant boundary.
package tenant

import (
	"context"
	"fmt"

	"github.com/hpe-cray/bos/internal/clients/httpclient"
)

// Client is a thin wrapper over the tenant-management REST API.
type Client struct{ http *httpclient.Client }

// New constructs a tenant client bound to baseURL.
func New(baseURL string) *Client {
	return &Client{http: httpclient.New(baseURL)}
}

// Tenant is the subset of a tenant record BOS cares about.
type Tenant struct {
	Name       string   `json:"name"`
	MemberIDs  []string `json:"memberids"`
}

// Get fetches one tenant's membership by name.
func (c *Client) Get(ctx context.Context, name string) (*Tenant, error) {
	var out Tenant
	if err := c.http.DoJSON(ctx, "GET", "/tapms/v1/tenants/"+name, nil, &out); err != nil {
		return nil, fmt.Errorf("tenant: get %s: %w", name, err)
	}
	return &out, nil
}

// MembersOf resolves a tenant name to the set of node ids it owns. An
// empty tenant name means "no tenant boundary" and resolves to nil
// without a call.
func (c *Client) MembersOf(ctx context.Context, name string) (map[string]bool, error) {
	if name == "" {
		return nil, nil
	}
	t, err := c.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	members := make(map[string]bool, len(t.MemberIDs))
	for _, id := range t.MemberIDs {
		members[id] = true
	}
	return members, nil
}
