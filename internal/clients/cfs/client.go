// Package cfs wraps the configuration framework service: applies and
// reports on the configuration state of components once their boot
// artifacts are in place.
package cfs

import (
	"context"
	"fmt"

	"github.com/hpe-cray/bos/internal/clients/httpclient"
)

// Client is a thin wrapper over the configuration framework REST API.
type Client struct{ http *httpclient.Client }

// New constructs a CFS client bound to baseURL.
func New(baseURL string) *Client {
	return &Client{http: httpclient.New(baseURL)}
}

// ConfigState is CFS's reported configuration state for one component.
type ConfigState string

const (
	ConfigPending    ConfigState = "pending"
	ConfigConfigured ConfigState = "configured"
	ConfigFailed     ConfigState = "failed"
)

// SetDesired posts the desired configuration id for a batch of
// component ids. Per-id failures come back embedded in the returned map
// rather than failing the whole batch.
func (c *Client) SetDesired(ctx context.Context, ids []string, configurationName string) (map[string]error, error) {
	if len(ids) == 0 {
		return map[string]error{}, nil
	}
	req := struct {
		IDs           []string `json:"ids"`
		Configuration string   `json:"configuration"`
	}{IDs: ids, Configuration: configurationName}
	var out []struct {
		ID    string `json:"id"`
		Error string `json:"error,omitempty"`
	}
	if err := c.http.DoJSON(ctx, "POST", "/cfs/v3/configurations/apply", req, &out); err != nil {
		return nil, fmt.Errorf("cfs: set desired configuration: %w", err)
	}
	result := make(map[string]error, len(out))
	for _, r := range out {
		if r.Error != "" {
			result[r.ID] = fmt.Errorf("%s", r.Error)
		} else {
			result[r.ID] = nil
		}
	}
	return result, nil
}

// GetStates fetches the current configuration state for a batch of
// component ids. Ids CFS did not answer for are absent from the map.
func (c *Client) GetStates(ctx context.Context, ids []string) (map[string]ConfigState, error) {
	if len(ids) == 0 {
		return map[string]ConfigState{}, nil
	}
	req := struct {
		IDs []string `json:"ids"`
	}{IDs: ids}
	var out []struct {
		ID    string      `json:"id"`
		State ConfigState `json:"state"`
	}
	if err := c.http.DoJSON(ctx, "POST", "/cfs/v3/configurations/state", req, &out); err != nil {
		return nil, fmt.Errorf("cfs: get configuration states: %w", err)
	}
	result := make(map[string]ConfigState, len(out))
	for _, r := range out {
		result[r.ID] = r.State
	}
	return result, nil
}
