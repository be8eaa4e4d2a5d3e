// Package api is the HTTP client for the quill backend: identity,
// entitlement, license, and comment-generation endpoints.
//
// The base Client handles JSON encode/decode, error-body parsing, and
// bearer-credential attachment through a pluggable AuthMethod. Typed
// wrappers for each endpoint live in endpoints.go.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// AuthMethod attaches credentials to an outbound request and executes it.
// Implementations may transparently refresh credentials and retry once; see
// the session package.
type AuthMethod interface {
	DoWithAuth(ctx context.Context, req *http.Request, client *http.Client) (*http.Response, error)
}

// Client is a quill backend API client. Fields may be set directly;
// zero-value HTTPClient falls back to http.DefaultClient (tests); real
// callers should supply a robusthttp client.
type Client struct {
	HTTPClient     *http.Client
	Host           string
	Auth           AuthMethod
	UserAgent      string
	DefaultHeaders map[string]string
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient == nil {
		return http.DefaultClient
	}
	return c.HTTPClient
}

// Get performs a JSON "read" call. Query params may be nil. A non-nil out
// receives the decoded response body.
func (c *Client) Get(ctx context.Context, path string, params url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, params, nil, out)
}

// Post performs a JSON "write" call. A nil body sends no payload.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		rdr = bytes.NewReader(b)
	}
	return c.do(ctx, http.MethodPost, path, nil, rdr, out)
}

func (c *Client) do(ctx context.Context, method, path string, params url.Values, body io.Reader, out any) error {
	uri := c.Host + path
	if len(params) > 0 {
		uri += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, uri, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	for k, v := range c.DefaultHeaders {
		req.Header.Set(k, v)
	}

	var resp *http.Response
	if c.Auth != nil {
		resp, err = c.Auth.DoWithAuth(ctx, req, c.httpClient())
	} else {
		resp, err = c.httpClient().Do(req)
	}
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var eb ErrorBody
		if err := json.NewDecoder(resp.Body).Decode(&eb); err != nil {
			return &APIError{StatusCode: resp.StatusCode}
		}
		return eb.APIError(resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}
