// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/g4chat/internal/util"
)

// =============================================================================
// DRIVER CONSTANTS
// =============================================================================

const (
	// apiPrefix is prepended to every backend path.
	apiPrefix = "/api/v1"

	// maxErrorBody caps how much of a non-2xx body is kept for the error.
	maxErrorBody = 4 * 1024
)

// sharedStreamingClient is used when DriverOptions.HTTPClient is nil.
// No timeout: streams are bounded by the caller's context.
var sharedStreamingClient = &http.Client{
	Transport: &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 5,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	},
}

// =============================================================================
// DRIVER TYPES
// =============================================================================

// CredentialSource supplies the bearer token for a request.
type CredentialSource interface {
	Token() (string, error)
}

// DriverOptions configures a Driver.
type DriverOptions struct {
	// BaseURL is the backend origin, e.g. "https://chat.example.com".
	BaseURL string

	// HTTPClient overrides the shared streaming client. It should not set a
	// Timeout, which would cut long answers short.
	HTTPClient *http.Client

	// Credentials supplies the bearer token. Nil sends no Authorization header.
	Credentials CredentialSource

	// ReadBufferSize is passed to Decode.
	ReadBufferSize int

	// Logger receives debug output. Defaults to a no-op logger.
	Logger *zap.Logger
}

// Request describes one streamed turn.
type Request struct {
	Message   string
	SessionID string // empty starts a new session
}

// DeltaFunc receives each text delta, in stream order, on the goroutine that
// called Start.
type DeltaFunc func(text string)

// Outcome summarizes a stream that ended without error.
type Outcome struct {
	Metadata  Metadata
	Deltas    int
	Cancelled bool

	// FirstDelta is the time from request to first delta, zero if none.
	FirstDelta time.Duration
	Elapsed    time.Duration
}

// Driver runs one streamed request. It is single use.
type Driver struct {
	opts    DriverOptions
	client  *http.Client
	logger  *zap.Logger
	started atomic.Bool
}

type streamRequest struct {
	Message string `json:"message"`
}

// NewDriver creates a driver from opts.
func NewDriver(opts DriverOptions) *Driver {
	d := &Driver{
		opts:   opts,
		client: opts.HTTPClient,
		logger: opts.Logger,
	}
	if d.client == nil {
		d.client = sharedStreamingClient
	}
	if d.logger == nil {
		d.logger = zap.NewNop()
	}
	return d
}

// =============================================================================
// STREAMING
// =============================================================================

// Start opens the stream and blocks until it ends.
//
// Every delta is passed to onDelta exactly once, in order. The returned error
// is an *InitiationError when the stream could not be opened and a
// *StreamError when it broke after opening. Cancelling ctx is not an error:
// Start returns the partial Outcome with Cancelled set.
func (d *Driver) Start(ctx context.Context, req Request, onDelta DeltaFunc) (Outcome, error) {
	if !d.started.CompareAndSwap(false, true) {
		return Outcome{}, ErrDriverUsed
	}
	if strings.TrimSpace(req.Message) == "" {
		return Outcome{}, ErrEmptyMessage
	}
	if onDelta == nil {
		onDelta = func(string) {}
	}

	start := time.Now()
	var out Outcome
	finish := func() (Outcome, error) {
		out.Elapsed = time.Since(start)
		return out, nil
	}
	cancelled := func() (Outcome, error) {
		out.Cancelled = true
		d.logger.Debug("stream cancelled", zap.Int("deltas", out.Deltas))
		return finish()
	}

	httpReq, err := d.newRequest(ctx, req)
	if err != nil {
		return out, &InitiationError{Err: err}
	}

	d.logger.Debug("stream request",
		zap.String("method", httpReq.Method),
		zap.String("path", httpReq.URL.Path))

	resp, err := d.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return cancelled()
		}
		return out, &InitiationError{Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		resp.Body.Close()
		d.logger.Debug("stream rejected", zap.Int("status", resp.StatusCode))
		return out, &InitiationError{
			Status: resp.StatusCode,
			Body:   strings.TrimSpace(string(body)),
		}
	}

	events := Decode(ctx, resp.Body, DecodeOptions{ReadBufferSize: d.opts.ReadBufferSize})
	defer func() {
		// Closing the body unblocks the reader goroutine; draining lets it exit.
		resp.Body.Close()
		for range events {
		}
	}()

	for ev := range events {
		if ctx.Err() != nil {
			return cancelled()
		}
		switch ev.Kind {
		case KindMetadata:
			out.Metadata.Merge(ev.Metadata)
		case KindDelta:
			if out.Deltas == 0 {
				out.FirstDelta = time.Since(start)
			}
			out.Deltas++
			onDelta(ev.Text)
		case KindDone:
			d.logger.Debug("stream done",
				zap.Int("deltas", out.Deltas),
				zap.Duration("first_delta", out.FirstDelta),
				zap.String("session_id", out.Metadata.SessionID))
			return finish()
		case KindError:
			if ctx.Err() != nil {
				return cancelled()
			}
			out.Elapsed = time.Since(start)
			d.logger.Debug("stream failed", zap.Int("deltas", out.Deltas), zap.Error(ev.Err))
			return out, &StreamError{Metadata: out.Metadata, Deltas: out.Deltas, Err: ev.Err}
		}
	}

	// Channel closed without a terminal event: Decode only does that on cancel.
	return cancelled()
}

// newRequest builds the POST for req, authorizing it when credentials exist.
func (d *Driver) newRequest(ctx context.Context, req Request) (*http.Request, error) {
	endpoint, err := StreamURL(d.opts.BaseURL, req.SessionID)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(streamRequest{Message: req.Message})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("Cache-Control", "no-cache")

	if d.opts.Credentials != nil {
		token, err := d.opts.Credentials.Token()
		if err != nil {
			return nil, fmt.Errorf("failed to load credential: %w", err)
		}
		if token != "" {
			httpReq.Header.Set("Authorization", "Bearer "+token)
			d.logger.Debug("stream credential", zap.String("fingerprint", util.Fingerprint(token)))
		}
	}
	return httpReq, nil
}

// StreamURL returns the streaming endpoint for a new session (empty
// sessionID) or an existing one.
func StreamURL(baseURL, sessionID string) (string, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return "", fmt.Errorf("invalid base URL %q: scheme and host required", baseURL)
	}
	path := apiPrefix + "/chat/stream"
	if sessionID != "" {
		path = apiPrefix + "/chat/sessions/" + url.PathEscape(sessionID) + "/stream"
	}
	return base.String() + path, nil
}
