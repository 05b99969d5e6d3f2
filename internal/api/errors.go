// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error variables for common backend failures. An *Error matches the one
// corresponding to its status with errors.Is.
var (
	// ErrNotConfigured indicates the client has no usable base URL.
	ErrNotConfigured = errors.New("backend URL not configured")

	// ErrBadRequest indicates the backend rejected the request as invalid (400).
	ErrBadRequest = errors.New("bad request")

	// ErrUnauthorized indicates a missing or expired credential (401).
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates the resource belongs to someone else (403).
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound indicates the session or message does not exist (404).
	ErrNotFound = errors.New("not found")

	// ErrRateLimited indicates too many requests were made (429).
	ErrRateLimited = errors.New("rate limited")

	// ErrServer indicates a backend failure (5xx).
	ErrServer = errors.New("server error")
)

// Error represents an error response from the backend.
type Error struct {
	Status  int    // HTTP status code
	Reason  string // short reason, e.g. "Not Found"
	Message string // human-readable detail
	Path    string // request path reported by the backend
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Reason
	}
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	return fmt.Sprintf("backend error (HTTP %d): %s", e.Status, msg)
}

// Is maps the status code onto the package sentinels.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrBadRequest:
		return e.Status == http.StatusBadRequest
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized
	case ErrForbidden:
		return e.Status == http.StatusForbidden
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	case ErrRateLimited:
		return e.Status == http.StatusTooManyRequests
	case ErrServer:
		return e.Status >= 500 && e.Status < 600
	}
	return false
}

// errorBody is the backend's error shape.
type errorBody struct {
	Status  int    `json:"status"`
	Error   string `json:"error"`
	Message string `json:"message"`
	Path    string `json:"path"`
}

// handleErrorResponse converts a non-2xx response into an *Error.
func handleErrorResponse(statusCode int, body []byte) error {
	apiErr := &Error{Status: statusCode}

	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil {
		apiErr.Reason = eb.Error
		apiErr.Message = eb.Message
		apiErr.Path = eb.Path
	} else if text := strings.TrimSpace(string(body)); text != "" {
		// Fallback for unparseable error bodies (proxies, HTML pages)
		if len(text) > 200 {
			text = text[:200]
		}
		apiErr.Message = text
	}
	return apiErr
}
