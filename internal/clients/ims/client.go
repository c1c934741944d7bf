// Package ims wraps the image service: resolves an image reference named
// in a session template's boot set to a concrete, existing image record.
package ims

import (
	"context"
	"errors"
	"fmt"

	"github.com/containerd/errdefs"

	"github.com/hpe-cray/bos/internal/clients/httpclient"
)

// Client is a thin wrapper over the image service REST API.
type Client struct{ http *httpclient.Client }

// New constructs an image-service client bound to baseURL.
func New(baseURL string) *Client {
	return &Client{http: httpclient.New(baseURL)}
}

// Image is the subset of an IMS image record BOS cares about.
type Image struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	RootfsProvider string `json:"rootfs_provider"`
}

// ErrImageNotFound is returned by Resolve when the image reference does
// not name a known image; callers decide whether that is fatal
// (ims_errors_fatal) or merely a warning (ims_images_must_exist,
// recorded without failing the session).
var ErrImageNotFound = errors.New("ims: image not found")

// Resolve looks up an image by reference (id or name). A resolution
// failure distinguishes "does not exist" (ErrImageNotFound, a policy
// decision for the caller) from a genuine transient service error.
func (c *Client) Resolve(ctx context.Context, ref string) (*Image, error) {
	var out Image
	err := c.http.DoJSON(ctx, "GET", "/ims/v3/images/"+ref, nil, &out)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return nil, ErrImageNotFound
		}
		return nil, fmt.Errorf("ims: resolve %s: %w", ref, err)
	}
	return &out, nil
}
