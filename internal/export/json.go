// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"time"
)

// =============================================================================
// JSON EXPORTER
// =============================================================================

// JSONExporter exports transcripts to JSON. The whole transcript is always
// written; IncludeMetadata and IncludeTimestamps do not apply.
type JSONExporter struct {
	options *Options
}

// NewJSONExporter creates a new JSON exporter.
func NewJSONExporter(opts *Options) *JSONExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &JSONExporter{options: opts}
}

type jsonMessage struct {
	ID         string `json:"id"`
	Role       string `json:"role"`
	Content    string `json:"content"`
	Timestamp  string `json:"timestamp,omitempty"`
	IsEdited   bool   `json:"is_edited,omitempty"`
	TokenCount int    `json:"token_count,omitempty"`
	Model      string `json:"model,omitempty"`
}

type jsonDocument struct {
	ID           string        `json:"id"`
	Title        string        `json:"title"`
	Status       string        `json:"status"`
	IsPublic     bool          `json:"is_public"`
	Model        string        `json:"model,omitempty"`
	Project      string        `json:"project,omitempty"`
	TokenUsage   int64         `json:"token_usage,omitempty"`
	CreatedAt    string        `json:"created_at,omitempty"`
	UpdatedAt    string        `json:"updated_at,omitempty"`
	ExportedAt   string        `json:"exported_at"`
	MessageCount int           `json:"message_count"`
	Messages     []jsonMessage `json:"messages"`
}

// Export converts a transcript to indented JSON.
func (e *JSONExporter) Export(t *Transcript) ([]byte, error) {
	if err := t.validate(); err != nil {
		return nil, err
	}
	s := t.Session
	doc := jsonDocument{
		ID:           s.ID,
		Title:        t.Title(),
		Status:       s.Status.String(),
		IsPublic:     s.IsPublic,
		Model:        s.Model,
		Project:      t.Project,
		TokenUsage:   s.TokenUsage,
		CreatedAt:    rfc3339(s.CreatedAt),
		UpdatedAt:    rfc3339(s.UpdatedAt),
		ExportedAt:   rfc3339(e.options.now()),
		MessageCount: len(t.Messages),
		Messages:     make([]jsonMessage, len(t.Messages)),
	}
	for i, m := range t.Messages {
		doc.Messages[i] = jsonMessage{
			ID:         m.ID,
			Role:       m.Role.String(),
			Content:    m.Content,
			Timestamp:  rfc3339(m.Timestamp),
			IsEdited:   m.IsEdited,
			TokenCount: m.TokenCount,
			Model:      m.Model,
		}
	}
	return json.MarshalIndent(doc, "", "  ")
}

// FileExtension returns the file extension for JSON.
func (e *JSONExporter) FileExtension() string {
	return ".json"
}

// MimeType returns the MIME type for JSON.
func (e *JSONExporter) MimeType() string {
	return "application/json"
}

func rfc3339(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
