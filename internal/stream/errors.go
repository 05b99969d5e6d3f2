// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"errors"
	"fmt"
)

// Error variables for stream failures.
var (
	// ErrDriverUsed is returned when Start is called twice on one Driver.
	ErrDriverUsed = errors.New("stream driver already started")

	// ErrEmptyMessage indicates the message is empty or whitespace only.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrInitiation matches every InitiationError.
	ErrInitiation = errors.New("stream initiation failed")

	// ErrInvalidUTF8 indicates the body contained an invalid UTF-8 sequence.
	ErrInvalidUTF8 = errors.New("invalid UTF-8 in stream")

	// ErrIncompleteUTF8 indicates the body ended inside a multibyte character.
	ErrIncompleteUTF8 = errors.New("stream ended inside a UTF-8 sequence")

	// ErrRead wraps failures of the underlying reader.
	ErrRead = errors.New("stream read failed")
)

// InitiationError is returned when the stream could not be opened: the
// request failed before a response, or the backend answered non-2xx. No delta
// was produced.
type InitiationError struct {
	Status int    // HTTP status, 0 if no response was received
	Body   string // truncated response body, if any
	Err    error  // underlying cause, if any
}

// Error implements the error interface.
func (e *InitiationError) Error() string {
	switch {
	case e.Status != 0 && e.Body != "":
		return fmt.Sprintf("stream initiation failed (HTTP %d): %s", e.Status, e.Body)
	case e.Status != 0:
		return fmt.Sprintf("stream initiation failed (HTTP %d)", e.Status)
	case e.Err != nil:
		return fmt.Sprintf("stream initiation failed: %v", e.Err)
	default:
		return ErrInitiation.Error()
	}
}

// Unwrap returns the underlying error.
func (e *InitiationError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrInitiation) true for every InitiationError.
func (e *InitiationError) Is(target error) bool {
	return target == ErrInitiation
}

// StreamError represents a failure after the stream was opened, preserving
// the metadata and the number of deltas delivered before it.
type StreamError struct {
	Metadata Metadata
	Deltas   int
	Err      error
}

// Error implements the error interface.
func (e *StreamError) Error() string {
	if e.Deltas > 0 {
		return fmt.Sprintf("stream error (after %d deltas): %v", e.Deltas, e.Err)
	}
	return fmt.Sprintf("stream error: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *StreamError) Unwrap() error {
	return e.Err
}
