// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// json_output.go - JSON output for --json mode.
//
// Every command that prints data wraps it in a JSONResponse so scripts can
// rely on one envelope.
package cli

import (
	"encoding/json"
	"io"
	"time"
)

// JSONResponse is the envelope written by --json.
type JSONResponse struct {
	// Success indicates whether the command completed successfully
	Success bool `json:"success"`

	// Data contains the command-specific response data
	Data any `json:"data"`

	// Error contains the error message if Success is false, null otherwise
	Error *string `json:"error"`

	// Timestamp is the RFC3339 time the response was generated
	Timestamp string `json:"timestamp"`

	// Command is the command that was executed
	Command string `json:"command,omitempty"`
}

// NewJSONResponse creates a new successful JSON response.
func NewJSONResponse(command string, data any) *JSONResponse {
	return &JSONResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// NewJSONErrorResponse creates a new error JSON response.
func NewJSONErrorResponse(command string, err error) *JSONResponse {
	errStr := err.Error()
	return &JSONResponse{
		Success:   false,
		Error:     &errStr,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// Write encodes the response to w, indented.
func (r *JSONResponse) Write(w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(r)
}

// SessionInfo is the JSON shape of a session.
type SessionInfo struct {
	ID             string `json:"id"`
	Title          string `json:"title"`
	Status         string `json:"status"`
	IsPublic       bool   `json:"is_public"`
	MessageCount   int    `json:"message_count"`
	Model          string `json:"model,omitempty"`
	TokenUsage     int64  `json:"token_usage,omitempty"`
	Project        string `json:"project,omitempty"`
	CreatedAt      string `json:"created_at,omitempty"`
	UpdatedAt      string `json:"updated_at,omitempty"`
	LastAccessedAt string `json:"last_accessed_at,omitempty"`
}

// MessageInfo is the JSON shape of a message.
type MessageInfo struct {
	ID         string `json:"id"`
	SessionID  string `json:"session_id,omitempty"`
	Role       string `json:"role"`
	Content    string `json:"content"`
	Timestamp  string `json:"timestamp,omitempty"`
	IsEdited   bool   `json:"is_edited,omitempty"`
	TokenCount int    `json:"token_count,omitempty"`
	Model      string `json:"model,omitempty"`
}

// SendResult is the JSON shape of a finished send.
type SendResult struct {
	SessionID          string `json:"session_id"`
	UserMessageID      string `json:"user_message_id"`
	AssistantMessageID string `json:"assistant_message_id"`
	NewSession         bool   `json:"new_session"`
	State              string `json:"state"`
	Deltas             int    `json:"deltas"`
	Reply              string `json:"reply"`
	ElapsedMs          int64  `json:"elapsed_ms"`
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
