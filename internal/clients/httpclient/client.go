// Package httpclient is the shared foundation every external-service
// client in internal/clients builds on: per-call timeouts, retry on
// transient errors with capped exponential backoff, and a response-size
// limit on every read. Error classification distinguishes transient
// conditions (retry locally) from permanent per-call conditions
// (surface to the caller, never retried).
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/containerd/errdefs"
)

// Client is a thin, retrying JSON-over-HTTP client bound to one external
// service's base URL.
type Client struct {
	BaseURL     string
	HTTPClient  *http.Client
	MaxRetries  int
	MaxBodySize int64 // response-size limit; 0 disables the limit
}

// New constructs a Client with the timeout and sane retry/size defaults
// every BOS external client shares. Individual per-call timeouts are
// applied via the context passed to Do, sourced from options.Snapshot
// (pcs_read_timeout, hsm_read_timeout, etc).
func New(baseURL string) *Client {
	return &Client{
		BaseURL:     baseURL,
		HTTPClient:  &http.Client{},
		MaxRetries:  3,
		MaxBodySize: 10 << 20, // 10 MiB, overridable per call site for image manifests
	}
}

// transientStatus reports whether an HTTP status code indicates a
// transient server-side condition worth retrying.
func transientStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

// classify maps a client-side error into the errdefs taxonomy the rest
// of BOS switches on: transient errors are retried inside Do; everything
// else is returned to the caller as a permanent per-call error.
func classify(err error, resp *http.Response) error {
	if err != nil {
		return errdefs.ErrUnavailable.WithMessage(err.Error())
	}
	if resp == nil {
		return nil
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return errdefs.ErrNotFound.WithMessage(resp.Status)
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity:
		return errdefs.ErrInvalidArgument.WithMessage(resp.Status)
	case transientStatus(resp.StatusCode):
		return errdefs.ErrUnavailable.WithMessage(resp.Status)
	case resp.StatusCode >= 300:
		return fmt.Errorf("httpclient: unexpected status %s", resp.Status)
	default:
		return nil
	}
}

// DoJSON issues method against path with an optional JSON body, decoding
// a successful JSON response into out (which may be nil). Transient
// failures (errdefs.IsUnavailable) are retried up to MaxRetries times
// with capped exponential backoff; permanent failures are returned
// immediately.
func (c *Client) DoJSON(ctx context.Context, method, path string, body, out interface{}) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("httpclient: marshal request: %w", err)
		}
	}

	var lastErr error
	for attempt := 0; attempt <= c.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff(attempt)):
			}
		}

		req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("httpclient: build request: %w", err)
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.HTTPClient.Do(req)
		classified := classify(err, resp)
		if classified != nil && errdefs.IsUnavailable(classified) {
			lastErr = classified
			if resp != nil {
				resp.Body.Close()
			}
			continue
		}
		if err != nil {
			return classified
		}
		defer resp.Body.Close()

		if classified != nil {
			return classified
		}

		if out == nil {
			io.Copy(io.Discard, resp.Body)
			return nil
		}

		reader := io.Reader(resp.Body)
		if c.MaxBodySize > 0 {
			reader = io.LimitReader(resp.Body, c.MaxBodySize+1)
		}
		data, err := io.ReadAll(reader)
		if err != nil {
			return fmt.Errorf("httpclient: read response: %w", err)
		}
		if c.MaxBodySize > 0 && int64(len(data)) > c.MaxBodySize {
			return fmt.Errorf("httpclient: response exceeded %d bytes", c.MaxBodySize)
		}
		if len(data) == 0 {
			return nil
		}
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("httpclient: decode response: %w", err)
		}
		return nil
	}

	return lastErr
}

func backoff(attempt int) time.Duration {
	d := time.Duration(1<<uint(attempt)) * 100 * time.Millisecond
	if d > 5*time.Second {
		d = 5 * time.Second
	}
	return d
}
