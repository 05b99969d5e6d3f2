// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api provides the REST client for the G4 chat backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/jeranaias/g4chat/internal/util"
)

// Configuration constants for the backend API.
const (
	// APIPrefix is prepended to every request path.
	APIPrefix = "/api/v1"

	// DefaultTimeout is the default timeout for REST requests.
	DefaultTimeout = 30 * time.Second

	// DefaultRateLimit is the default sustained request rate (requests/second).
	DefaultRateLimit = 5.0

	// DefaultBurst is the default number of requests allowed at once.
	DefaultBurst = 10

	// MaxResponseSize is the maximum allowed response body size.
	// SECURITY: Response size limit prevents memory exhaustion.
	MaxResponseSize = 10 * 1024 * 1024
)

// UserAgent is sent with every request.
var UserAgent = "g4chat/dev"

// CredentialSource supplies the bearer token for a request.
type CredentialSource interface {
	Token() (string, error)
}

// Client talks to the backend's REST endpoints. It is safe for concurrent use.
type Client struct {
	baseURL     string
	credentials CredentialSource
	httpClient  *http.Client
	limiter     *rate.Limiter
	logger      *zap.Logger
}

// NewClient creates a client for the backend at baseURL (scheme and host,
// without /api/v1).
func NewClient(baseURL string, credentials CredentialSource) *Client {
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		credentials: credentials,
		httpClient: &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 5,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultBurst),
		logger:  zap.NewNop(),
	}
}

// WithHTTPClient replaces the HTTP client (tests use httptest's client).
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	if hc != nil {
		c.httpClient = hc
	}
	return c
}

// WithTimeout sets the per-request timeout.
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	if timeout > 0 {
		c.httpClient.Timeout = timeout
	}
	return c
}

// WithRateLimit sets the sustained request rate and burst. A non-positive
// rate disables limiting.
func (c *Client) WithRateLimit(perSecond float64, burst int) *Client {
	if perSecond <= 0 {
		c.limiter = nil
		return c
	}
	if burst < 1 {
		burst = 1
	}
	c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	return c
}

// WithLogger sets the logger.
func (c *Client) WithLogger(logger *zap.Logger) *Client {
	if logger != nil {
		c.logger = logger
	}
	return c
}

// BaseURL returns the configured backend origin.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// =============================================================================
// REQUEST PLUMBING
// =============================================================================

// endpoint builds the absolute URL for an /api/v1 path.
func (c *Client) endpoint(path string, query url.Values) (string, error) {
	if c.baseURL == "" {
		return "", ErrNotConfigured
	}
	u, err := url.Parse(c.baseURL + APIPrefix + path)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("%w: %q", ErrNotConfigured, c.baseURL)
	}
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String(), nil
}

// setHeaders sets the required headers for backend requests.
func (c *Client) setHeaders(req *http.Request) error {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", UserAgent)

	if c.credentials == nil {
		return nil
	}
	token, err := c.credentials.Token()
	if err != nil {
		return fmt.Errorf("failed to load credential: %w", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return nil
}

// do performs one request. in, when non-nil, is sent as JSON; out, when
// non-nil, receives the decoded response body.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	endpoint, err := c.endpoint(path, query)
	if err != nil {
		return err
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if err := c.setHeaders(req); err != nil {
		return err
	}

	// Don't log headers (auth) or bodies (conversation content)
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("api request failed",
			zap.String("method", method),
			zap.String("path", req.URL.Path),
			zap.Error(err))
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	c.logger.Debug("api request",
		zap.String("method", method),
		zap.String("path", req.URL.Path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)))

	data, err := readResponse(resp)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return handleErrorResponse(resp.StatusCode, data)
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// readResponse reads the response body with size limits.
func readResponse(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(body)) > MaxResponseSize {
		return nil, fmt.Errorf("response exceeded maximum size of %d bytes", MaxResponseSize)
	}
	return body, nil
}

// CredentialFingerprint returns a loggable fingerprint of the current token.
func (c *Client) CredentialFingerprint() string {
	if c.credentials == nil {
		return util.Fingerprint("")
	}
	token, err := c.credentials.Token()
	if err != nil {
		return util.Fingerprint("")
	}
	return util.Fingerprint(token)
}

func pageQuery(p Page) url.Values {
	q := url.Values{}
	q.Set("page", fmt.Sprint(max(p.Page, 0)))
	size := p.Size
	if size <= 0 {
		size = 10
	}
	q.Set("size", fmt.Sprint(size))
	return q
}

func escape(segment string) string {
	return url.PathEscape(segment)
}
