// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"time"

	"github.com/jeranaias/g4chat/internal/model"
)

// MessagePatch is a shallow merge applied to one message. Nil fields are left
// unchanged.
type MessagePatch struct {
	ID          *string
	SessionID   *string
	Content     *string
	IsStreaming *bool
	IsEdited    *bool
	Timestamp   *time.Time
	TokenCount  *int
	Model       *string
}

// Ptr returns a pointer to v, for building patches inline.
func Ptr[T any](v T) *T {
	return &v
}

func (p MessagePatch) apply(m *model.Message) {
	if p.ID != nil {
		m.ID = *p.ID
	}
	if p.SessionID != nil {
		m.SessionID = *p.SessionID
	}
	if p.Content != nil {
		m.Content = *p.Content
	}
	if p.IsStreaming != nil {
		m.IsStreaming = *p.IsStreaming
	}
	if p.IsEdited != nil {
		m.IsEdited = *p.IsEdited
	}
	if p.Timestamp != nil {
		m.Timestamp = *p.Timestamp
	}
	if p.TokenCount != nil {
		m.TokenCount = *p.TokenCount
	}
	if p.Model != nil {
		m.Model = *p.Model
	}
}

// =============================================================================
// MESSAGE OPERATIONS
// =============================================================================

// AppendMessage adds m to the end of the list.
func (s *Store) AppendMessage(m model.Message) error {
	if m.ID == "" {
		return ErrEmptyID
	}

	s.mu.Lock()
	if model.FindMessage(s.messages, m.ID) >= 0 {
		s.mu.Unlock()
		return ErrDuplicateID
	}
	s.messages = append(s.messages, m)
	s.mu.Unlock()

	s.notify(Change{Kind: MessageAppended, ID: m.ID})
	return nil
}

// PatchMessage merges patch into the message with the given id. It reports
// false if the message is absent or the patch would give it an id that
// another message already holds.
func (s *Store) PatchMessage(id string, patch MessagePatch) bool {
	return s.UpdateMessage(id, func(model.Message) MessagePatch { return patch })
}

// UpdateMessage computes a patch from the current value of the message and
// merges it, atomically. fn runs under the store lock and must not call back
// into the store.
func (s *Store) UpdateMessage(id string, fn func(model.Message) MessagePatch) bool {
	s.mu.Lock()
	idx := model.FindMessage(s.messages, id)
	if idx < 0 {
		s.mu.Unlock()
		return false
	}

	patch := fn(s.messages[idx])
	if patch.ID != nil && *patch.ID != id {
		if *patch.ID == "" || model.FindMessage(s.messages, *patch.ID) >= 0 {
			s.mu.Unlock()
			return false
		}
	}
	patch.apply(&s.messages[idx])
	newID := s.messages[idx].ID
	s.mu.Unlock()

	s.notify(Change{Kind: MessageUpdated, ID: newID})
	return true
}

// RemoveMessage deletes the message with the given id. Removing an absent id
// is a no-op that reports false.
func (s *Store) RemoveMessage(id string) bool {
	s.mu.Lock()
	idx := model.FindMessage(s.messages, id)
	if idx < 0 {
		s.mu.Unlock()
		return false
	}
	s.messages = append(s.messages[:idx], s.messages[idx+1:]...)
	s.mu.Unlock()

	s.notify(Change{Kind: MessageRemoved, ID: id})
	return true
}

// ReplaceAllMessages adopts msgs as the message list, in order. When msgs
// repeats an id only the first occurrence is kept.
func (s *Store) ReplaceAllMessages(msgs []model.Message) {
	next := make([]model.Message, 0, len(msgs))
	seen := make(map[string]struct{}, len(msgs))
	for _, m := range msgs {
		if _, dup := seen[m.ID]; dup {
			continue
		}
		seen[m.ID] = struct{}{}
		next = append(next, m)
	}

	s.mu.Lock()
	s.messages = next
	s.mu.Unlock()

	s.notify(Change{Kind: MessagesReplaced})
}

// ClearMessages empties the message list.
func (s *Store) ClearMessages() {
	s.ReplaceAllMessages(nil)
}

// Messages returns a copy of the message list.
func (s *Store) Messages() []model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Message returns a copy of the message with the given id.
func (s *Store) Message(id string) (model.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := model.FindMessage(s.messages, id)
	if idx < 0 {
		return model.Message{}, false
	}
	return s.messages[idx], true
}
