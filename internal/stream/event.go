// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream decodes and drives the assistant's server-sent event stream.
package stream

// =============================================================================
// EVENT TYPES
// =============================================================================

// Kind identifies the variant carried by an Event.
type Kind int

const (
	// KindMetadata carries ids from a JSON control frame.
	KindMetadata Kind = iota
	// KindDelta carries a fragment of assistant text.
	KindDelta
	// KindDone marks normal termination.
	KindDone
	// KindError marks abnormal termination.
	KindError
)

// String returns the name of the kind.
func (k Kind) String() string {
	switch k {
	case KindMetadata:
		return "metadata"
	case KindDelta:
		return "delta"
	case KindDone:
		return "done"
	case KindError:
		return "error"
	default:
		return "unknown"
	}
}

// Metadata holds the ids the backend reports for a turn. Empty fields were not
// reported.
type Metadata struct {
	SessionID          string
	UserMessageID      string
	AssistantMessageID string
}

// IsZero reports whether no id is set.
func (m Metadata) IsZero() bool {
	return m.SessionID == "" && m.UserMessageID == "" && m.AssistantMessageID == ""
}

// Merge copies the non-empty fields of other into m. Set fields are never
// cleared by an empty value.
func (m *Metadata) Merge(other Metadata) {
	if other.SessionID != "" {
		m.SessionID = other.SessionID
	}
	if other.UserMessageID != "" {
		m.UserMessageID = other.UserMessageID
	}
	if other.AssistantMessageID != "" {
		m.AssistantMessageID = other.AssistantMessageID
	}
}

// Event is one decoded stream item. Only the field matching Kind is meaningful.
type Event struct {
	Kind     Kind
	Metadata Metadata // KindMetadata
	Text     string   // KindDelta
	Err      error    // KindError
}

// Terminal reports whether the event ends the stream.
func (e Event) Terminal() bool {
	return e.Kind == KindDone || e.Kind == KindError
}

func metadataEvent(m Metadata) Event { return Event{Kind: KindMetadata, Metadata: m} }
func deltaEvent(text string) Event   { return Event{Kind: KindDelta, Text: text} }
func doneEvent() Event               { return Event{Kind: KindDone} }
func errorEvent(err error) Event     { return Event{Kind: KindError, Err: err} }
