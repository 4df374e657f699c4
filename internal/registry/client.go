package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// ErrSyncFailed marks a registry interaction that did not complete: the
// administrative operation must be reported as failed rather than
// leaving the route table silently stale.
var ErrSyncFailed = errors.New("registry sync failed")

// Client is an HTTP client for the core service's plugin registry.
type Client struct {
	base   string
	http   *http.Client
	logger *slog.Logger
}

// NewClient validates the registry URL and builds a client with a
// per-call timeout.
func NewClient(rawURL string, timeout time.Duration, logger *slog.Logger) (*Client, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("registry url %q is not an absolute URL", rawURL)
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		base:   rawURL,
		http:   &http.Client{Timeout: timeout},
		logger: logger,
	}, nil
}

// List fetches every registered plugin.
func (c *Client) List(ctx context.Context) ([]Plugin, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSyncFailed, err)
	}
	req.Header.Set("X-Plugin-Name", "all")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: registry unreachable", ErrSyncFailed)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: registry returned status %d", ErrSyncFailed, resp.StatusCode)
	}

	var out listResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: undecodable registry response", ErrSyncFailed)
	}
	if out.Result == "error" {
		return nil, fmt.Errorf("%w: %s", ErrSyncFailed, out.Error)
	}
	return out.Plugins, nil
}

// Register records a new plugin in the registry.
func (c *Client) Register(ctx context.Context, p Plugin) error {
	return c.mutate(ctx, http.MethodPost, p)
}

// Update applies a partial update (or rename) to an existing plugin.
func (c *Client) Update(ctx context.Context, req UpdateRequest) error {
	return c.mutate(ctx, http.MethodPatch, req)
}

// Delete removes a plugin by name.
func (c *Client) Delete(ctx context.Context, name string) error {
	return c.mutate(ctx, http.MethodDelete, map[string]string{"name": name})
}

func (c *Client) mutate(ctx context.Context, method string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSyncFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSyncFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: registry unreachable", ErrSyncFailed)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("%w: registry returned status %d", ErrSyncFailed, resp.StatusCode)
	}

	var out mutateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("%w: undecodable registry response", ErrSyncFailed)
	}
	if out.Result != "success" {
		return fmt.Errorf("%w: %s", ErrSyncFailed, out.Error)
	}
	return nil
}
