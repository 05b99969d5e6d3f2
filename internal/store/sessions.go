// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"github.com/jeranaias/g4chat/internal/model"
)

// SessionPatch is a shallow merge applied to one session. Nil fields are left
// unchanged.
type SessionPatch struct {
	Title        *string
	Status       *model.Status
	IsPublic     *bool
	MessageCount *int
}

// IsEmpty reports whether the patch changes nothing.
func (p SessionPatch) IsEmpty() bool {
	return p.Title == nil && p.Status == nil && p.IsPublic == nil && p.MessageCount == nil
}

func (p SessionPatch) apply(sess *model.Session) {
	if p.Title != nil {
		sess.Title = *p.Title
	}
	if p.Status != nil {
		sess.Status = *p.Status
	}
	if p.IsPublic != nil {
		sess.IsPublic = *p.IsPublic
	}
	if p.MessageCount != nil {
		sess.MessageCount = *p.MessageCount
	}
}

// =============================================================================
// SESSION OPERATIONS
// =============================================================================

// PatchSession merges patch into the session with the given id. It reports
// false if the session is absent.
func (s *Store) PatchSession(id string, patch SessionPatch) bool {
	return s.UpdateSession(id, func(model.Session) SessionPatch { return patch })
}

// UpdateSession computes a patch from the current value of the session and
// merges it, atomically. fn runs under the store lock.
func (s *Store) UpdateSession(id string, fn func(model.Session) SessionPatch) bool {
	s.mu.Lock()
	idx := model.FindSession(s.sessions, id)
	if idx < 0 {
		s.mu.Unlock()
		return false
	}
	fn(s.sessions[idx]).apply(&s.sessions[idx])
	s.mu.Unlock()

	s.notify(Change{Kind: SessionUpdated, ID: id})
	return true
}

// PutSession replaces the session with sess.ID, or appends it when absent.
// Used to merge the backend's view of a single session.
func (s *Store) PutSession(sess model.Session) {
	s.mu.Lock()
	if idx := model.FindSession(s.sessions, sess.ID); idx >= 0 {
		s.sessions[idx] = sess
	} else {
		s.sessions = append(s.sessions, sess)
	}
	s.mu.Unlock()

	s.notify(Change{Kind: SessionUpdated, ID: sess.ID})
}

// ReplaceSession replaces the session with sess.ID with the backend's view
// of it. It reports false, and changes nothing, if the session is absent.
func (s *Store) ReplaceSession(sess model.Session) bool {
	s.mu.Lock()
	idx := model.FindSession(s.sessions, sess.ID)
	if idx < 0 {
		s.mu.Unlock()
		return false
	}
	s.sessions[idx] = sess
	s.mu.Unlock()

	s.notify(Change{Kind: SessionUpdated, ID: sess.ID})
	return true
}

// RemoveSession deletes the session with the given id. When it was the
// current session, the current session is cleared.
func (s *Store) RemoveSession(id string) bool {
	s.mu.Lock()
	idx := model.FindSession(s.sessions, id)
	if idx < 0 {
		s.mu.Unlock()
		return false
	}
	s.sessions = append(s.sessions[:idx], s.sessions[idx+1:]...)
	wasCurrent := s.current == id
	if wasCurrent {
		s.current = ""
	}
	s.mu.Unlock()

	s.notify(Change{Kind: SessionRemoved, ID: id})
	if wasCurrent {
		s.notify(Change{Kind: CurrentChanged})
	}
	return true
}

// SetSessionList adopts sessions as the session list, in order.
func (s *Store) SetSessionList(sessions []model.Session) {
	next := make([]model.Session, 0, len(sessions))
	seen := make(map[string]struct{}, len(sessions))
	for _, sess := range sessions {
		if _, dup := seen[sess.ID]; dup {
			continue
		}
		seen[sess.ID] = struct{}{}
		next = append(next, sess)
	}

	s.mu.Lock()
	s.sessions = next
	s.mu.Unlock()

	s.notify(Change{Kind: SessionsReplaced})
}

// Sessions returns a copy of the session list.
func (s *Store) Sessions() []model.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Session, len(s.sessions))
	copy(out, s.sessions)
	return out
}

// Session returns a copy of the session with the given id.
func (s *Store) Session(id string) (model.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := model.FindSession(s.sessions, id)
	if idx < 0 {
		return model.Session{}, false
	}
	return s.sessions[idx], true
}
