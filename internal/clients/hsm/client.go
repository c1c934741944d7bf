// Package hsm wraps the Hardware State Manager: the source of truth for
// node existence, group/role membership, architecture, and lock state.
// BOS never owns this data; it only queries it, in batches, during
// discovery and session setup.
package hsm

import (
	"context"
	"fmt"

	"github.com/hpe-cray/bos/internal/clients/httpclient"
)

// Client is a thin wrapper over the HSM REST API.
type Client struct{ http *httpclient.Client }

// New constructs an HSM client bound to baseURL.
func New(baseURL string) *Client {
	return &Client{http: httpclient.New(baseURL)}
}

// NodeInfo is HSM's per-node inventory record, as far as BOS cares.
type NodeInfo struct {
	ID      string `json:"id"`
	Arch    string `json:"arch"`
	Locked  bool   `json:"locked"`
	Missing bool   `json:"missing"`
}

// ListNodes returns every node HSM currently knows about. Used by the
// discovery operator's scanner loop.
func (c *Client) ListNodes(ctx context.Context) ([]NodeInfo, error) {
	var out []NodeInfo
	if err := c.http.DoJSON(ctx, "GET", "/hsm/v2/State/Components", nil, &out); err != nil {
		return nil, fmt.Errorf("hsm: list nodes: %w", err)
	}
	return out, nil
}

// ExpandGroups resolves group names to member node ids. An empty input
// short-circuits without a call.
func (c *Client) ExpandGroups(ctx context.Context, groups []string) ([]string, error) {
	if len(groups) == 0 {
		return nil, nil
	}
	var out struct {
		Members []string `json:"members"`
	}
	req := struct {
		Groups []string `json:"groups"`
	}{Groups: groups}
	if err := c.http.DoJSON(ctx, "POST", "/hsm/v2/groups/expand", req, &out); err != nil {
		return nil, fmt.Errorf("hsm: expand groups: %w", err)
	}
	return out.Members, nil
}

// ExpandRoles resolves role names to member node ids.
func (c *Client) ExpandRoles(ctx context.Context, roles []string) ([]string, error) {
	if len(roles) == 0 {
		return nil, nil
	}
	var out struct {
		Members []string `json:"members"`
	}
	req := struct {
		Roles []string `json:"roles"`
	}{Roles: roles}
	if err := c.http.DoJSON(ctx, "POST", "/hsm/v2/roles/expand", req, &out); err != nil {
		return nil, fmt.Errorf("hsm: expand roles: %w", err)
	}
	return out.Members, nil
}

// Inventory fetches architecture and lock state for a batch of node ids.
// Missing is decoded as HSM reports it. The discovery operator does not
// call Inventory: it disables (never deletes) components whose ids
// ListNodes no longer returns.
func (c *Client) Inventory(ctx context.Context, ids []string) (map[string]NodeInfo, error) {
	if len(ids) == 0 {
		return map[string]NodeInfo{}, nil
	}
	var out []NodeInfo
	req := struct {
		IDs []string `json:"ids"`
	}{IDs: ids}
	if err := c.http.DoJSON(ctx, "POST", "/hsm/v2/State/Components/query", req, &out); err != nil {
		return nil, fmt.Errorf("hsm: inventory: %w", err)
	}
	result := make(map[string]NodeInfo, len(out))
	for _, n := range out {
		result[n.ID] = n
	}
	return result, nil
}
