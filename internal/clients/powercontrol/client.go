// Package powercontrol wraps the power-control service (PCS): the
// external authority on whether a node is actually powered on or off,
// and the only path by which BOS changes that.
package powercontrol

import (
	"context"
	"fmt"

	"github.com/hpe-cray/bos/internal/clients/httpclient"
)

// Client is a thin wrapper over the power-control REST API.
type Client struct{ http *httpclient.Client }

// New constructs a power-control client bound to baseURL.
func New(baseURL string) *Client {
	return &Client{http: httpclient.New(baseURL)}
}

// PowerState is PCS's observed power state for one component.
type PowerState struct {
	ID    string `json:"id"`
	Power string `json:"power"` // "on" or "off"
	Error string `json:"error,omitempty"`
}

// GetPowerState asks PCS for the current observed power state of a
// batch of components. Any ids PCS did not answer for are simply absent
// from the result, letting the caller preserve prior status rather than
// clobber it to unknown.
func (c *Client) GetPowerState(ctx context.Context, ids []string) (map[string]PowerState, error) {
	if len(ids) == 0 {
		return map[string]PowerState{}, nil
	}
	var out []PowerState
	req := struct {
		IDs []string `json:"ids"`
	}{IDs: ids}
	if err := c.http.DoJSON(ctx, "POST", "/power-status", req, &out); err != nil {
		return nil, fmt.Errorf("powercontrol: get power state: %w", err)
	}
	result := make(map[string]PowerState, len(out))
	for _, s := range out {
		result[s.ID] = s
	}
	return result, nil
}

// BatchResult is the per-id outcome of a power transition request.
type BatchResult struct {
	ID    string `json:"id"`
	Error string `json:"error,omitempty"`
}

func (c *Client) transition(ctx context.Context, path string, ids []string) (map[string]error, error) {
	if len(ids) == 0 {
		return map[string]error{}, nil
	}
	var out []BatchResult
	req := struct {
		IDs []string `json:"ids"`
	}{IDs: ids}
	if err := c.http.DoJSON(ctx, "POST", path, req, &out); err != nil {
		return nil, fmt.Errorf("powercontrol: %s: %w", path, err)
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

// PowerOn requests power-on for a batch of components. The returned map
// carries a nil error for ids that succeeded and a non-nil per-id error
// for ids PCS rejected — never an all-or-nothing failure for the batch.
func (c *Client) PowerOn(ctx context.Context, ids []string) (map[string]error, error) {
	return c.transition(ctx, "/power-on", ids)
}

// PowerOffGraceful requests a graceful shutdown.
func (c *Client) PowerOffGraceful(ctx context.Context, ids []string) (map[string]error, error) {
	return c.transition(ctx, "/power-off-graceful", ids)
}

// PowerOffForceful requests an immediate forced power-off.
func (c *Client) PowerOffForceful(ctx context.Context, ids []string) (map[string]error, error) {
	return c.transition(ctx, "/power-off-forceful", ids)
}
