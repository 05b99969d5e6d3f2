// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"strings"
	"time"
)

// =============================================================================
// STATUS TYPE
// =============================================================================

// Status is the server-authoritative lifecycle state of a session.
type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusPaused   Status = "PAUSED"
	StatusArchived Status = "ARCHIVED"
	// StatusDeleted is reported by the backend for soft-deleted sessions.
	StatusDeleted Status = "DELETED"
)

// ParseStatus normalizes a wire status to a Status.
func ParseStatus(s string) Status {
	return Status(strings.ToUpper(strings.TrimSpace(s)))
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusPaused, StatusArchived, StatusDeleted:
		return true
	}
	return false
}

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// =============================================================================
// SESSION TYPE
// =============================================================================

// DefaultTitle is used when a session has no title yet.
const DefaultTitle = "New Conversation"

// Session is a persisted conversation container.
type Session struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Status       Status `json:"status"`
	IsPublic     bool   `json:"is_public"`
	MessageCount int    `json:"message_count"`

	// Advisory fields reported by the backend.
	Model          string    `json:"model,omitempty"`
	TokenUsage     int64     `json:"token_usage,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	LastAccessedAt time.Time `json:"last_accessed_at"`
	ExpiresAt      time.Time `json:"expires_at"`
}

// DisplayTitle returns the title, or DefaultTitle when it is blank.
func (s Session) DisplayTitle() string {
	if strings.TrimSpace(s.Title) == "" {
		return DefaultTitle
	}
	return s.Title
}

// Visibility returns "public" or "private".
func (s Session) Visibility() string {
	if s.IsPublic {
		return "public"
	}
	return "private"
}

// FindSession returns the index of the session with the given id, or -1.
func FindSession(sessions []Session, id string) int {
	for i := range sessions {
		if sessions[i].ID == id {
			return i
		}
	}
	return -1
}
