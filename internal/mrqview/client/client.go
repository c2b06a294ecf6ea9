// Package client provides an HTTP client for the Marquee authority API
package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/marqueehq/marquee/internal/mrqview/errors"
)

// Client provides methods for interacting with the authority API
type Client struct {
	// baseURL is the root URL for all API requests
	baseURL string
	// httpClient is the underlying HTTP client
	httpClient *http.Client
	// token is the authentication token
	token string
}

// Option configures a Client
type Option func(*Client)

// WithToken sets the authentication token
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithTimeout overrides the default per-request timeout
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithTLSConfig sets custom TLS configuration
func WithTLSConfig(config *tls.Config) Option {
	return func(c *Client) {
		c.httpClient.Transport = &http.Transport{
			TLSClientConfig: config,
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client, mostly for tests
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// New creates a new API client
func New(baseURL string, options ...Option) (*Client, error) {
	// Validate and normalize base URL
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q: scheme and host required", baseURL)
	}

	c := &Client{
		baseURL: u.String(),
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}

	for _, opt := range options {
		opt(c)
	}

	return c, nil
}

// doRequest performs an HTTP request with automatic error handling
func (c *Client) doRequest(ctx context.Context, method, pathStr string, body interface{}) (*http.Response, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	u.Path = path.Join(u.Path, pathStr)

	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("error encoding request body: %w", err)
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), bodyReader)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.NewError("FETCH_FAILED", "request failed", method+" "+pathStr, fmt.Errorf("%w: %v", errors.ErrFetch, err))
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		resp.Body.Close()
		return nil, errors.NewError("FORBIDDEN", "not authorized for this resource", method+" "+pathStr, errors.ErrForbidden)
	case resp.StatusCode >= 400:
		msg := decodeErrorMessage(resp.Body)
		resp.Body.Close()
		return nil, errors.NewError("FETCH_FAILED",
			fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, msg),
			method+" "+pathStr, errors.ErrFetch)
	}

	return resp, nil
}

// decodeErrorMessage pulls the error text out of a failure response body
func decodeErrorMessage(body io.Reader) string {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(body).Decode(&payload); err != nil {
		return "no error details"
	}
	if payload.Error != "" {
		return payload.Error
	}
	if payload.Message != "" {
		return payload.Message
	}
	return "no error details"
}

// decodeJSON decodes a response body into out and closes the body
func decodeJSON(resp *http.Response, out interface{}) error {
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("error decoding response: %w", err)
	}
	return nil
}
