// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/jeranaias/g4chat/internal/model"
)

// =============================================================================
// SCALAR TYPES
// =============================================================================

// ID is an identifier that the backend sends either as a JSON number (message
// ids) or a string (session ids). It is always carried as a decimal string.
type ID string

// UnmarshalJSON accepts numbers, strings and null.
func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*id = ""
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return fmt.Errorf("invalid id %s: %w", b, err)
		}
		*id = ID(n.String())
	}
	return nil
}

// String returns the id.
func (id ID) String() string { return string(id) }

// numericID returns id as a JSON number when it is one, so requests echo ids
// in the form the backend issued them.
func numericID(id string) any {
	if n, err := strconv.ParseInt(id, 10, 64); err == nil {
		return n
	}
	return id
}

// localDateTimeLayouts are tried in order. Fractional seconds are accepted by
// the parser even though the layouts omit them.
var localDateTimeLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// Timestamp decodes the backend's timestamps. They are usually zone-less
// local date-times ("2025-01-02T15:04:05.123456"), interpreted in the local
// zone; RFC 3339 strings and the array form [y,m,d,h,m,s,nanos] are also
// accepted.
type Timestamp struct {
	time.Time
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}

	if b[0] == '[' {
		var parts []int
		if err := json.Unmarshal(b, &parts); err != nil {
			return fmt.Errorf("invalid timestamp %s: %w", b, err)
		}
		for len(parts) < 7 {
			parts = append(parts, 0)
		}
		if parts[1] == 0 {
			parts[1] = 1
		}
		if parts[2] == 0 {
			parts[2] = 1
		}
		t.Time = time.Date(parts[0], time.Month(parts[1]), parts[2], parts[3], parts[4], parts[5], parts[6], time.Local)
		return nil
	}

	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("invalid timestamp %s: %w", b, err)
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

// MarshalJSON writes RFC 3339 with nanoseconds, or null for the zero time.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Format(time.RFC3339Nano))
}

// ParseTimestamp parses a backend timestamp string.
func ParseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return ts, nil
	}
	for _, layout := range localDateTimeLayouts {
		if ts, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
}

// =============================================================================
// SESSION TYPES
// =============================================================================

// Page selects one page of a paginated listing. Zero values use the
// backend's defaults (page 0, size 10).
type Page struct {
	Page int
	Size int
}

// SessionResponse is the backend's session shape.
type SessionResponse struct {
	SessionID      ID        `json:"sessionId"`
	Title          string    `json:"title"`
	Model          string    `json:"model"`
	Status         string    `json:"status"`
	MessageCount   int       `json:"messageCount"`
	TokenUsage     int64     `json:"tokenUsage"`
	IsPublic       bool      `json:"isPublic"`
	CreatedAt      Timestamp `json:"createdAt"`
	UpdatedAt      Timestamp `json:"updatedAt"`
	LastAccessedAt Timestamp `json:"lastAccessedAt"`
	ExpiresAt      Timestamp `json:"expiresAt"`
}

// ToModel converts the wire shape to a model.Session.
func (r SessionResponse) ToModel() model.Session {
	return model.Session{
		ID:             r.SessionID.String(),
		Title:          r.Title,
		Status:         model.ParseStatus(r.Status),
		IsPublic:       r.IsPublic,
		MessageCount:   r.MessageCount,
		Model:          r.Model,
		TokenUsage:     r.TokenUsage,
		CreatedAt:      r.CreatedAt.Time,
		UpdatedAt:      r.UpdatedAt.Time,
		LastAccessedAt: r.LastAccessedAt.Time,
		ExpiresAt:      r.ExpiresAt.Time,
	}
}

// SessionList is one page of sessions.
type SessionList struct {
	Sessions      []SessionResponse `json:"sessions"`
	TotalPages    int               `json:"totalPages"`
	TotalElements int64             `json:"totalElements"`
	CurrentPage   int               `json:"currentPage"`
	PageSize      int               `json:"pageSize"`
}

// Models converts every session on the page.
func (l SessionList) Models() []model.Session {
	return sessionModels(l.Sessions)
}

// HasMore reports whether later pages exist.
func (l SessionList) HasMore() bool {
	return l.CurrentPage+1 < l.TotalPages
}

func sessionModels(in []SessionResponse) []model.Session {
	out := make([]model.Session, len(in))
	for i, r := range in {
		out[i] = r.ToModel()
	}
	return out
}

// =============================================================================
// MESSAGE TYPES
// =============================================================================

// MessageResponse is the backend's message shape. Roles arrive lower-case.
type MessageResponse struct {
	ID         ID        `json:"id"`
	SessionID  string    `json:"sessionId"`
	Role       string    `json:"role"`
	Content    string    `json:"content"`
	TokenCount int       `json:"tokenCount"`
	Model      string    `json:"model"`
	Timestamp  Timestamp `json:"timestamp"`
}

// ToModel converts the wire shape to a model.Message.
func (r MessageResponse) ToModel() model.Message {
	return model.Message{
		ID:         r.ID.String(),
		SessionID:  r.SessionID,
		Role:       model.ParseRole(r.Role),
		Content:    r.Content,
		Timestamp:  r.Timestamp.Time,
		TokenCount: r.TokenCount,
		Model:      r.Model,
	}
}

// MessageHistory is a session's full transcript.
type MessageHistory struct {
	SessionID     string            `json:"sessionId"`
	TotalMessages int               `json:"totalMessages"`
	Messages      []MessageResponse `json:"messages"`
}

// Models converts every message, in order.
func (h MessageHistory) Models() []model.Message {
	out := make([]model.Message, len(h.Messages))
	for i, r := range h.Messages {
		out[i] = r.ToModel()
		if out[i].SessionID == "" {
			out[i].SessionID = h.SessionID
		}
	}
	return out
}

// =============================================================================
// CHAT TYPES
// =============================================================================

// ChatResponse is the result of a non-streaming chat call.
type ChatResponse struct {
	SessionID          string    `json:"sessionId"`
	UserMessageID      ID        `json:"userMessageId"`
	AssistantMessageID ID        `json:"assistantMessageId"`
	UserMessage        string    `json:"userMessage"`
	AssistantMessage   string    `json:"assistantMessage"`
	Model              string    `json:"model"`
	TokenCount         int       `json:"tokenCount"`
	Timestamp          Timestamp `json:"timestamp"`
	IsNewSession       bool      `json:"isNewSession"`
}
