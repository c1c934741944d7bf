// Package bss wraps the boot script service: the external collaborator
// that maps a referral token back to a node's desired boot parameters
// when that node network-boots.
package bss

import (
	"context"
	"fmt"

	"github.com/hpe-cray/bos/internal/clients/httpclient"
	"github.com/hpe-cray/bos/internal/model"
)

// Client is a thin wrapper over the boot script service REST API.
type Client struct{ http *httpclient.Client }

// New constructs a BSS client bound to baseURL.
func New(baseURL string) *Client {
	return &Client{http: httpclient.New(baseURL)}
}

// BootParams is what BSS serves a node that presents the referral token
// created by SetBootParams.
type BootParams struct {
	Kernel           string `json:"kernel"`
	KernelParameters string `json:"params"`
	Initrd           string `json:"initrd"`
}

// SetBootParams posts the desired boot artifacts for a component and
// returns the opaque referral token the node will present on next
// network boot. Called by the power_on operator before requesting
// power-on, so the token is ready the instant the node reaches PXE.
func (c *Client) SetBootParams(ctx context.Context, componentID string, artifacts *model.BootArtifacts) (string, error) {
	if artifacts == nil {
		return "", fmt.Errorf("bss: set boot params: no boot artifacts for %s", componentID)
	}
	req := struct {
		ID     string            `json:"id"`
		Params BootParams        `json:"params"`
	}{
		ID: componentID,
		Params: BootParams{
			Kernel:           artifacts.Kernel,
			KernelParameters: artifacts.KernelParameters,
			Initrd:           artifacts.Initrd,
		},
	}
	var out struct {
		Token string `json:"token"`
	}
	if err := c.http.DoJSON(ctx, "POST", "/boot-params", req, &out); err != nil {
		return "", fmt.Errorf("bss: set boot params for %s: %w", componentID, err)
	}
	return out.Token, nil
}

// DeleteBootParams removes a component's boot parameters. Nothing in
// BOS calls it; actual-state cleanup clears only the stored record.
func (c *Client) DeleteBootParams(ctx context.Context, componentID string) error {
	if err := c.http.DoJSON(ctx, "DELETE", "/boot-params/"+componentID, nil, nil); err != nil {
		return fmt.Errorf("bss: delete boot params for %s: %w", componentID, err)
	}
	return nil
}
