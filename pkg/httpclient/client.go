package httpclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultTimeout bounds page and feed requests when nothing else is configured.
const DefaultTimeout = 60 * time.Second

// ClientType represents the header profile sent with every request
type ClientType string

const (
	// BrowserClient uses browser-like headers to avoid 406 (Not Acceptable) errors
	BrowserClient ClientType = "browser"

	// CloudflareClient uses simple headers (like curl) to avoid 403 (Forbidden) errors
	// from Cloudflare-protected sites that block browser-like User-Agents
	CloudflareClient ClientType = "cloudflare"

	// DefaultClient sends Go's default headers
	DefaultClient ClientType = "default"
)

// ParseClientType maps a configuration value to a ClientType.
func ParseClientType(s string) (ClientType, error) {
	switch ClientType(s) {
	case BrowserClient, CloudflareClient, DefaultClient:
		return ClientType(s), nil
	case "":
		return BrowserClient, nil
	default:
		return "", fmt.Errorf("unknown http profile %q", s)
	}
}

// HTTPClient wraps an http.Client with a header profile
type HTTPClient struct {
	client     *http.Client
	clientType ClientType
}

// NewClient creates a new HTTP client with the specified type and overall
// request timeout. A zero timeout leaves requests bounded only by their context.
func NewClient(clientType ClientType, timeout time.Duration) *HTTPClient {
	client := &http.Client{
		Timeout: timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			// Follow up to 10 redirects
			if len(via) >= 10 {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}

	return &HTTPClient{
		client:     client,
		clientType: clientType,
	}
}

// WithTimeout returns a copy of the client sharing the same transport but
// using a different overall timeout.
func (c *HTTPClient) WithTimeout(timeout time.Duration) *HTTPClient {
	inner := *c.client
	inner.Timeout = timeout
	return &HTTPClient{client: &inner, clientType: c.clientType}
}

// Do executes an HTTP request with the appropriate headers for the client type
func (c *HTTPClient) Do(req *http.Request) (*http.Response, error) {
	c.setHeaders(req)
	return c.client.Do(req)
}

// Get is a convenience method for GET requests
func (c *HTTPClient) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	return c.Do(req)
}

// GetBody fetches url and returns the full body. Any status other than 200 is an error.
func (c *HTTPClient) GetBody(ctx context.Context, url string) ([]byte, error) {
	resp, err := c.Get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer DrainAndClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, nil
}

// setHeaders sets the appropriate headers based on client type
func (c *HTTPClient) setHeaders(req *http.Request) {
	switch c.clientType {
	case BrowserClient:
		req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
		if req.Header.Get("Accept") == "" {
			req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		}
		req.Header.Set("Accept-Language", "fr-FR,fr;q=0.9,en-US;q=0.8,en;q=0.7")
		req.Header.Set("Connection", "keep-alive")

	case CloudflareClient:
		// Cloudflare lets simple tools like curl through but blocks browser-like User-Agents
		req.Header.Set("User-Agent", "curl/8.7.1")

	default:
		// Default: use Go's default User-Agent
	}
}

// DrainAndClose discards what is left of a body so the connection can be reused.
func DrainAndClose(rc io.ReadCloser) {
	if rc == nil {
		return
	}
	_, _ = io.Copy(io.Discard, rc)
	_ = rc.Close()
}
