// Package httpapi provides the HTTP session abstraction sources use to
// fetch both API responses and raw file content, grounded on
// discovery-service/internal/client.ScannerClient's newRequest/doJSON
// shape.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Session is satisfied by *Client and by test doubles; it is also
// model.Session, used directly by event Realize implementations.
type Session interface {
	Get(ctx context.Context, url string) ([]byte, int, error)
	GetJSON(ctx context.Context, url string, dest any) error
}

// Client is the default httpapi.Session, a thin wrapper around
// *http.Client that attaches the headers every upstream source needs
// (User-Agent, Accept, optional bearer-style token) and bounds
// per-host connection reuse the way a long-running poller should.
type Client struct {
	httpClient  *http.Client
	userAgent   string
	accept      string
	oauthToken  string
	extraHeader map[string]string
}

// Option configures a Client.
type Option func(*Client)

func WithOAuthToken(token string) Option {
	return func(c *Client) { c.oauthToken = token }
}

func WithAccept(accept string) Option {
	return func(c *Client) { c.accept = accept }
}

func WithHeader(key, value string) Option {
	return func(c *Client) {
		if c.extraHeader == nil {
			c.extraHeader = map[string]string{}
		}
		c.extraHeader[key] = value
	}
}

// NewClient builds a Client with sane pooling defaults for a poller
// that talks to a handful of fixed upstream hosts.
func NewClient(timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 8,
			},
		},
		userAgent: "infosweep",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) newRequest(ctx context.Context, method, url string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, fmt.Errorf("httpapi: new request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	if c.accept != "" {
		req.Header.Set("Accept", c.accept)
	}
	if c.oauthToken != "" {
		req.Header.Set("Authorization", "token "+c.oauthToken)
	}
	for k, v := range c.extraHeader {
		req.Header.Set(k, v)
	}
	return req, nil
}

// Get performs a GET and returns the raw body plus status code. A
// transport-level error is returned to the caller; non-2xx is not an
// error — the caller decides what a given status means.
func (c *Client) Get(ctx context.Context, url string) ([]byte, int, error) {
	req, err := c.newRequest(ctx, http.MethodGet, url)
	if err != nil {
		return nil, 0, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("httpapi: do: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("httpapi: read body: %w", err)
	}
	return body, resp.StatusCode, nil
}

// GetJSON performs a GET and decodes a 2xx body as JSON into dest.
func (c *Client) GetJSON(ctx context.Context, url string, dest any) error {
	body, status, err := c.Get(ctx, url)
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		return fmt.Errorf("httpapi: unexpected status %d for %s", status, url)
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("httpapi: decode json: %w", err)
	}
	return nil
}
